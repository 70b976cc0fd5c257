// Package jobs implements the translation job lifecycle: submission with
// validation and method selection, result retrieval, deletion, and
// resubmission of failed jobs.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"doc-translator/internal/chunker"
	"doc-translator/internal/language"
	"doc-translator/internal/logger"
	"doc-translator/internal/reconstruct"
	"doc-translator/internal/skeleton"
	"doc-translator/internal/storage"
	"doc-translator/internal/store"
	"doc-translator/internal/translate"
)

var (
	// ErrUnsupportedType rejects uploads whose extension is not handled.
	ErrUnsupportedType = errors.New("unsupported document type")
	// ErrTooLarge rejects uploads over the configured size cap.
	ErrTooLarge = errors.New("document exceeds the upload size limit")
	// ErrEmptyDocument rejects uploads with no translatable text.
	ErrEmptyDocument = errors.New("document contains no translatable text")
	// ErrNotReady means the job has not produced an output yet.
	ErrNotReady = errors.New("job result is not ready")
	// ErrNotFailed means resubmit was called on a job that is not failed.
	ErrNotFailed = errors.New("job is not in a failed state")
	// ErrInvalidLanguage rejects unparseable or identical language pairs.
	ErrInvalidLanguage = errors.New("invalid language pair")
)

// Service owns job submission and retrieval. Chunked and native jobs are
// advanced later by queue ticks; small DOCX jobs are translated inline.
type Service struct {
	jobs           store.JobRepository
	chunks         store.ChunkRepository
	objects        storage.ObjectStore
	provider       translate.Provider
	builder        *reconstruct.Builder
	maxChunkChars  int
	maxUploadBytes int64
}

func NewService(jobs store.JobRepository, chunks store.ChunkRepository, objects storage.ObjectStore, provider translate.Provider, builder *reconstruct.Builder, maxChunkChars int, maxUploadBytes int64) *Service {
	return &Service{
		jobs:           jobs,
		chunks:         chunks,
		objects:        objects,
		provider:       provider,
		builder:        builder,
		maxChunkChars:  maxChunkChars,
		maxUploadBytes: maxUploadBytes,
	}
}

// CreateRequest is a job submission.
type CreateRequest struct {
	OwnerID    string
	Filename   string
	Data       []byte
	SourceLang string
	TargetLang string
}

// Create validates a submission, stores the original document, and either
// translates it inline (small DOCX) or queues chunked/native work. The
// returned job reflects the state after any inline work.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*store.TranslationJob, error) {
	if _, err := language.ParsePair(req.SourceLang, req.TargetLang); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidLanguage, err)
	}
	if len(req.Data) == 0 {
		return nil, ErrEmptyDocument
	}
	if int64(len(req.Data)) > s.maxUploadBytes {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, len(req.Data))
	}
	kind, err := detectKind(req.Filename)
	if err != nil {
		return nil, err
	}

	owner := req.OwnerID
	if owner == "" {
		owner = "anonymous"
	}

	job := &store.TranslationJob{
		ID:          uuid.NewString(),
		OwnerID:     owner,
		SourceLang:  req.SourceLang,
		TargetLang:  req.TargetLang,
		ContentKind: kind,
		Status:      store.StatusActive,
	}
	job.OriginalKey = storage.OriginalKey(owner, job.ID, req.Filename)

	if err := s.objects.Upload(ctx, job.OriginalKey, req.Data, contentTypeFor(kind)); err != nil {
		return nil, fmt.Errorf("failed to store original document: %w", err)
	}

	job, err = s.dispatch(ctx, job, req.Data)
	if err != nil {
		if delErr := s.objects.Delete(ctx, job.OriginalKey); delErr != nil {
			logger.Warn("failed to clean up rejected upload",
				logger.String("key", job.OriginalKey), logger.Err(delErr))
		}
		return nil, err
	}

	logger.Info("job created",
		logger.String("job", job.ID),
		logger.String("kind", string(kind)),
		logger.String("method", string(job.Method)))
	return job, nil
}

// dispatch picks the translation method for the document and queues or runs
// the work.
func (s *Service) dispatch(ctx context.Context, job *store.TranslationJob, data []byte) (*store.TranslationJob, error) {
	switch job.ContentKind {
	case store.KindDocx:
		return s.dispatchDocx(ctx, job, data)
	case store.KindPDF:
		texts, err := s.builder.PDFChunks(data)
		if err != nil {
			return nil, err
		}
		return s.createChunked(ctx, job, texts)
	case store.KindPlain:
		return s.createChunked(ctx, job, chunker.Split(string(data), s.maxChunkChars))
	case store.KindHTML:
		blocks, err := reconstruct.ExtractHTMLBlocks(string(data))
		if err != nil {
			return nil, err
		}
		return s.createChunked(ctx, job, blocks)
	default:
		return nil, ErrUnsupportedType
	}
}

// dispatchDocx strips the document skeleton. When the extracted text fits a
// single provider request the job is translated inline; otherwise the whole
// package goes through the native document provider.
func (s *Service) dispatchDocx(ctx context.Context, job *store.TranslationJob, pkg []byte) (*store.TranslationJob, error) {
	documentXML, err := skeleton.ReadDocument(pkg)
	if err != nil {
		return nil, err
	}
	m, err := skeleton.Strip(documentXML)
	if err != nil {
		return nil, err
	}

	if utf8.RuneCountInString(m.Text) > s.maxChunkChars {
		job.Method = store.MethodNativeAsync
		if err := s.jobs.Create(ctx, job); err != nil {
			return nil, fmt.Errorf("failed to create job: %w", err)
		}
		return job, nil
	}

	job.Method = store.MethodSkeletonSync
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}
	s.runSkeletonSync(ctx, job, m, pkg)
	return s.jobs.Get(ctx, job.ID)
}

// runSkeletonSync translates the stripped text in one provider call and
// rebuilds the package. Failures mark the job failed; they are not returned
// to the submitter as transport errors.
func (s *Service) runSkeletonSync(ctx context.Context, job *store.TranslationJob, m *skeleton.Map, pkg []byte) {
	translated, err := s.provider.Translate(ctx, translate.Request{
		Text:       m.Text,
		SourceLang: job.SourceLang,
		TargetLang: job.TargetLang,
		Preserve:   string(m.Delimiter),
	})
	if err != nil {
		s.failSync(ctx, job.ID, fmt.Sprintf("translation failed: %v", err))
		return
	}

	rebuilt, err := m.Rebuild(translated)
	if err != nil {
		s.failSync(ctx, job.ID, fmt.Sprintf("document rebuild failed: %v", err))
		return
	}

	output, err := skeleton.RewritePackage(pkg, rebuilt)
	if err != nil {
		s.failSync(ctx, job.ID, fmt.Sprintf("package rewrite failed: %v", err))
		return
	}

	outputKey := storage.OutputKey(job.OwnerID, job.ID, ".docx")
	if err := s.objects.Upload(ctx, outputKey, output, contentTypeFor(store.KindDocx)); err != nil {
		s.failSync(ctx, job.ID, fmt.Sprintf("failed to store output: %v", err))
		return
	}

	if _, err := s.jobs.Complete(ctx, job.ID, outputKey, ""); err != nil {
		logger.Error("failed to mark job completed", err, logger.String("job", job.ID))
	}
}

func (s *Service) failSync(ctx context.Context, jobID, msg string) {
	if err := s.jobs.Fail(ctx, jobID, msg); err != nil {
		logger.Error("failed to mark job failed", err, logger.String("job", jobID))
	}
}

// createChunked persists the job and its chunk rows for queue processing.
func (s *Service) createChunked(ctx context.Context, job *store.TranslationJob, texts []string) (*store.TranslationJob, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyDocument
	}

	job.Method = store.MethodChunkedAsync
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	chunks := make([]store.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = store.Chunk{JobID: job.ID, Seq: i + 1, Total: len(texts), SourceText: text}
	}
	if err := s.chunks.CreateBatch(ctx, chunks); err != nil {
		return nil, fmt.Errorf("failed to create chunks: %w", err)
	}
	return job, nil
}

// Get returns a job by ID.
func (s *Service) Get(ctx context.Context, id string) (*store.TranslationJob, error) {
	return s.jobs.Get(ctx, id)
}

// Result returns the translated document bytes for a completed job. It
// returns ErrNotReady while the job is still running or failed.
func (s *Service) Result(ctx context.Context, id string) ([]byte, string, string, error) {
	job, err := s.jobs.Get(ctx, id)
	if err != nil {
		return nil, "", "", err
	}
	if job.Status != store.StatusCompleted || job.OutputKey == nil {
		return nil, "", "", ErrNotReady
	}

	data, err := s.objects.Download(ctx, *job.OutputKey)
	if err != nil {
		return nil, "", "", fmt.Errorf("failed to load output: %w", err)
	}

	ext := filepath.Ext(*job.OutputKey)
	return data, "translated" + ext, contentTypeFor(job.ContentKind), nil
}

// Delete removes the job record, its chunks, and both storage objects.
// Storage failures are logged but never block the metadata deletion.
func (s *Service) Delete(ctx context.Context, id string) error {
	job, err := s.jobs.Get(ctx, id)
	if err != nil {
		return err
	}

	keys := []string{job.OriginalKey}
	if job.OutputKey != nil {
		keys = append(keys, *job.OutputKey)
	}
	for _, key := range keys {
		if key == "" {
			continue
		}
		if err := s.objects.Delete(ctx, key); err != nil {
			logger.Warn("failed to delete storage object",
				logger.String("job", id), logger.String("key", key), logger.Err(err))
		}
	}

	if err := s.chunks.DeleteByJob(ctx, id); err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}
	return s.jobs.Delete(ctx, id)
}

// Resubmit moves a failed job back to active with a fresh retry budget.
// Chunked and native jobs resume on the next queue tick; skeleton-sync jobs
// have no queue path, so their inline pipeline is re-run here.
func (s *Service) Resubmit(ctx context.Context, id string) (*store.TranslationJob, error) {
	ok, err := s.jobs.Resubmit(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		if _, err := s.jobs.Get(ctx, id); err != nil {
			return nil, err
		}
		return nil, ErrNotFailed
	}
	if err := s.chunks.ResetFailures(ctx, id); err != nil {
		return nil, fmt.Errorf("failed to reset chunk retry state: %w", err)
	}

	logger.Info("job resubmitted", logger.String("job", id))

	job, err := s.jobs.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Method == store.MethodSkeletonSync {
		s.rerunSkeletonSync(ctx, job)
		return s.jobs.Get(ctx, id)
	}
	return job, nil
}

// rerunSkeletonSync repeats the inline DOCX pipeline from the stored
// original. The document already passed structural validation at submission,
// so errors here mark the job failed rather than surfacing to the caller.
func (s *Service) rerunSkeletonSync(ctx context.Context, job *store.TranslationJob) {
	pkg, err := s.objects.Download(ctx, job.OriginalKey)
	if err != nil {
		s.failSync(ctx, job.ID, fmt.Sprintf("failed to load original document: %v", err))
		return
	}
	documentXML, err := skeleton.ReadDocument(pkg)
	if err != nil {
		s.failSync(ctx, job.ID, fmt.Sprintf("document read failed: %v", err))
		return
	}
	m, err := skeleton.Strip(documentXML)
	if err != nil {
		s.failSync(ctx, job.ID, fmt.Sprintf("document read failed: %v", err))
		return
	}
	s.runSkeletonSync(ctx, job, m, pkg)
}

func detectKind(filename string) (store.ContentKind, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".docx":
		return store.KindDocx, nil
	case ".pdf":
		return store.KindPDF, nil
	case ".txt", ".text", ".md":
		return store.KindPlain, nil
	case ".html", ".htm":
		return store.KindHTML, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, filepath.Ext(filename))
	}
}

func contentTypeFor(kind store.ContentKind) string {
	switch kind {
	case store.KindDocx:
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case store.KindPDF:
		return "application/pdf"
	case store.KindHTML:
		return "text/html; charset=utf-8"
	default:
		return "text/plain; charset=utf-8"
	}
}
