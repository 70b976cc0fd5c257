// Package reconstruct assembles translated output documents from translated
// chunks and drives the native document-provider path. It is the bridge
// between the chunk queue and the format-specific rebuild logic.
package reconstruct

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"doc-translator/internal/chunker"
	"doc-translator/internal/logger"
	"doc-translator/internal/pdf"
	"doc-translator/internal/storage"
	"doc-translator/internal/store"
	"doc-translator/internal/translate"
)

const (
	contentTypeDocx = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	contentTypePDF  = "application/pdf"
	contentTypeHTML = "text/html; charset=utf-8"
	contentTypeText = "text/plain; charset=utf-8"
)

// Builder reconstructs output documents. The docs provider may be nil when
// the native path is not configured.
type Builder struct {
	store     storage.ObjectStore
	docs      translate.DocumentProvider
	extractor *pdf.Extractor
	overlay   *pdf.Overlay
}

func NewBuilder(objStore storage.ObjectStore, docs translate.DocumentProvider) *Builder {
	return &Builder{
		store:     objStore,
		docs:      docs,
		extractor: pdf.NewExtractor(),
		overlay:   pdf.NewOverlay(),
	}
}

// Finalize builds the output document for a chunked job from its translated
// chunks and uploads it. It returns the output storage key and an optional
// warning.
func (b *Builder) Finalize(ctx context.Context, job *store.TranslationJob, chunks []store.Chunk) (string, string, error) {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		if c.TranslatedText == nil {
			return "", "", fmt.Errorf("chunk %d of job %s is not translated", c.Seq, job.ID)
		}
		texts[i] = *c.TranslatedText
	}

	switch job.ContentKind {
	case store.KindPlain:
		return b.finalizePlain(ctx, job, texts)
	case store.KindHTML:
		return b.finalizeHTML(ctx, job, texts)
	case store.KindPDF:
		return b.finalizePDF(ctx, job, texts)
	default:
		return "", "", fmt.Errorf("content kind %q has no chunked reconstruction", job.ContentKind)
	}
}

func (b *Builder) finalizePlain(ctx context.Context, job *store.TranslationJob, texts []string) (string, string, error) {
	output := strings.Join(texts, chunker.ParagraphSeparator)
	key := storage.OutputKey(job.OwnerID, job.ID, ".txt")
	if err := b.store.Upload(ctx, key, []byte(output), contentTypeText); err != nil {
		return "", "", fmt.Errorf("failed to store output: %w", err)
	}
	return key, "", nil
}

func (b *Builder) finalizeHTML(ctx context.Context, job *store.TranslationJob, texts []string) (string, string, error) {
	original, err := b.store.Download(ctx, job.OriginalKey)
	if err != nil {
		return "", "", fmt.Errorf("failed to load original document: %w", err)
	}

	output, err := ReinsertHTML(string(original), texts)
	if err != nil {
		return "", "", err
	}

	key := storage.OutputKey(job.OwnerID, job.ID, ".html")
	if err := b.store.Upload(ctx, key, []byte(output), contentTypeHTML); err != nil {
		return "", "", fmt.Errorf("failed to store output: %w", err)
	}
	return key, "", nil
}

// finalizePDF re-extracts the original's text layout and stamps the
// translated text over a copy of each page. Extraction is deterministic, so
// the page grouping here matches the one used when the job was chunked.
func (b *Builder) finalizePDF(ctx context.Context, job *store.TranslationJob, texts []string) (string, string, error) {
	original, err := b.store.Download(ctx, job.OriginalKey)
	if err != nil {
		return "", "", fmt.Errorf("failed to load original document: %w", err)
	}

	dir, err := os.MkdirTemp("", "doctrans-pdf-*")
	if err != nil {
		return "", "", fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer os.RemoveAll(dir)

	inputPath := filepath.Join(dir, "original.pdf")
	outputPath := filepath.Join(dir, "translated.pdf")
	if err := os.WriteFile(inputPath, original, 0644); err != nil {
		return "", "", fmt.Errorf("failed to write temp file: %w", err)
	}

	runs, err := b.extractor.ExtractRuns(inputPath)
	if err != nil {
		return "", "", err
	}
	pages := groupByPage(pdf.ClusterRuns(runs))
	if len(pages) != len(texts) {
		return "", "", fmt.Errorf("layout mismatch: original has %d text pages, job has %d chunks", len(pages), len(texts))
	}

	var clusters []pdf.Cluster
	var translations []string
	for i, page := range pages {
		aligned := pdf.AlignWords(page, texts[i])
		clusters = append(clusters, page...)
		translations = append(translations, aligned...)
	}

	if err := b.overlay.Render(inputPath, outputPath, clusters, translations); err != nil {
		return "", "", err
	}

	output, err := os.ReadFile(outputPath)
	if err != nil {
		return "", "", fmt.Errorf("failed to read rendered output: %w", err)
	}

	key := storage.OutputKey(job.OwnerID, job.ID, ".pdf")
	if err := b.store.Upload(ctx, key, output, contentTypePDF); err != nil {
		return "", "", fmt.Errorf("failed to store output: %w", err)
	}
	return key, "", nil
}

// PDFChunks extracts per-page translation units from a PDF. Each page's
// clusters are joined into one chunk; Finalize redoes the same extraction
// and aligns the translated text back onto the clusters.
func (b *Builder) PDFChunks(data []byte) ([]string, error) {
	dir, err := os.MkdirTemp("", "doctrans-pdf-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "original.pdf")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write temp file: %w", err)
	}

	runs, err := b.extractor.ExtractRuns(path)
	if err != nil {
		return nil, err
	}

	var texts []string
	for _, page := range groupByPage(pdf.ClusterRuns(runs)) {
		parts := make([]string, len(page))
		for i, c := range page {
			parts[i] = c.Text
		}
		texts = append(texts, strings.Join(parts, "\n"))
	}
	return texts, nil
}

// groupByPage splits clusters into per-page groups, preserving the reading
// order within each page.
func groupByPage(clusters []pdf.Cluster) [][]pdf.Cluster {
	var pages [][]pdf.Cluster
	for _, c := range clusters {
		if len(pages) == 0 || pages[len(pages)-1][0].Page != c.Page {
			pages = append(pages, []pdf.Cluster{c})
			continue
		}
		pages[len(pages)-1] = append(pages[len(pages)-1], c)
	}
	return pages
}

// NativeUpload submits the job's original file to the document provider.
func (b *Builder) NativeUpload(ctx context.Context, job *store.TranslationJob) (string, error) {
	if b.docs == nil {
		return "", fmt.Errorf("document provider is not configured")
	}

	data, err := b.store.Download(ctx, job.OriginalKey)
	if err != nil {
		return "", fmt.Errorf("failed to load original document: %w", err)
	}

	filename := filepath.Base(job.OriginalKey)
	ref, err := b.docs.Upload(ctx, filename, data, job.SourceLang, job.TargetLang)
	if err != nil {
		return "", err
	}

	logger.Info("document submitted to native provider",
		logger.String("job", job.ID),
		logger.String("ref", ref))
	return ref, nil
}

// NativePoll reports the provider-side status of the job's document.
func (b *Builder) NativePoll(ctx context.Context, job *store.TranslationJob) (translate.DocumentStatus, error) {
	if b.docs == nil {
		return "", fmt.Errorf("document provider is not configured")
	}
	return b.docs.Poll(ctx, job.ProviderRef)
}

// NativeFetch downloads the provider's translated document and stores it.
// For PDF output a page-count sanity check runs and reports a warning when
// the translated document's length drifts past the threshold.
func (b *Builder) NativeFetch(ctx context.Context, job *store.TranslationJob) (string, string, error) {
	if b.docs == nil {
		return "", "", fmt.Errorf("document provider is not configured")
	}

	data, err := b.docs.Download(ctx, job.ProviderRef)
	if err != nil {
		return "", "", err
	}

	ext := filepath.Ext(job.OriginalKey)
	if ext == "" {
		ext = ".docx"
	}
	key := storage.OutputKey(job.OwnerID, job.ID, ext)
	if err := b.store.Upload(ctx, key, data, contentTypeFor(job.ContentKind)); err != nil {
		return "", "", fmt.Errorf("failed to store output: %w", err)
	}

	warning := ""
	if job.ContentKind == store.KindPDF {
		warning = b.pageCountWarning(ctx, job, data)
	}
	return key, warning, nil
}

// pageCountWarning compares the page counts of the original and translated
// documents. Check failures are logged, never propagated.
func (b *Builder) pageCountWarning(ctx context.Context, job *store.TranslationJob, translated []byte) string {
	original, err := b.store.Download(ctx, job.OriginalKey)
	if err != nil {
		logger.Warn("page count check skipped", logger.String("job", job.ID), logger.Err(err))
		return ""
	}

	dir, err := os.MkdirTemp("", "doctrans-pagecheck-*")
	if err != nil {
		return ""
	}
	defer os.RemoveAll(dir)

	origPath := filepath.Join(dir, "original.pdf")
	transPath := filepath.Join(dir, "translated.pdf")
	if os.WriteFile(origPath, original, 0644) != nil || os.WriteFile(transPath, translated, 0644) != nil {
		return ""
	}

	result, err := pdf.CheckPageCount(origPath, transPath)
	if err != nil {
		logger.Warn("page count check failed", logger.String("job", job.ID), logger.Err(err))
		return ""
	}
	if !result.IsSuspicious {
		return ""
	}
	return pdf.FormatPageCountWarning(result)
}

func contentTypeFor(kind store.ContentKind) string {
	switch kind {
	case store.KindDocx:
		return contentTypeDocx
	case store.KindPDF:
		return contentTypePDF
	case store.KindHTML:
		return contentTypeHTML
	default:
		return contentTypeText
	}
}
