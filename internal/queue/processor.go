// Package queue implements the per-tick chunk processing state machine. Each
// tick advances at most one unit of queued work: it claims one pending chunk,
// translates it, and finalizes the owning job when that was the last chunk.
// There are no resident workers; an external scheduler fires ticks.
package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"doc-translator/internal/cache"
	"doc-translator/internal/logger"
	"doc-translator/internal/store"
	"doc-translator/internal/translate"
)

// Outcome describes what a tick accomplished.
type Outcome string

const (
	OutcomeIdle            Outcome = "idle"
	OutcomeChunkTranslated Outcome = "chunk-translated"
	OutcomeChunkRetrying   Outcome = "chunk-retrying"
	OutcomeJobCompleted    Outcome = "job-completed"
	OutcomeJobFailed       Outcome = "job-failed"
	OutcomeClaimLost       Outcome = "claim-lost"
	OutcomeNativePolling   Outcome = "native-polling"
)

// TickResult is the JSON summary returned to the tick scheduler.
type TickResult struct {
	Outcome  Outcome `json:"outcome"`
	JobID    string  `json:"job_id,omitempty"`
	ChunkSeq int     `json:"chunk_seq,omitempty"`
	Elapsed  int64   `json:"elapsed_ms"`
	Error    string  `json:"error,omitempty"`
}

// Reconstructor assembles the final translated document once every chunk of
// a job is translated, and drives the native document-provider path.
type Reconstructor interface {
	// Finalize builds and stores the output document for a chunked job.
	// It returns the storage key of the output and an optional warning.
	Finalize(ctx context.Context, job *store.TranslationJob, chunks []store.Chunk) (outputKey, warning string, err error)

	// NativeUpload submits the job's original file to the document provider
	// and returns the provider's reference handle.
	NativeUpload(ctx context.Context, job *store.TranslationJob) (ref string, err error)

	// NativePoll reports the provider-side status of an uploaded document.
	NativePoll(ctx context.Context, job *store.TranslationJob) (translate.DocumentStatus, error)

	// NativeFetch downloads the provider's result and stores it, returning
	// the output key and an optional warning.
	NativeFetch(ctx context.Context, job *store.TranslationJob) (outputKey, warning string, err error)
}

// Config tunes the processor.
type Config struct {
	MaxRetries     int           // chunk failures before the job fails
	BackoffBase    time.Duration // first retry delay, doubled per failure
	BackoffMax     time.Duration // backoff ceiling
	ClaimTTL       time.Duration // claim expiry for crashed ticks
	NativeDeadline time.Duration // ceiling on the native provider round trip
	Model          string        // provider model name, part of cache keys
}

// DefaultConfig returns the processor defaults.
func DefaultConfig() Config {
	return Config{
		MaxRetries:     3,
		BackoffBase:    2 * time.Second,
		BackoffMax:     30 * time.Second,
		ClaimTTL:       2 * time.Minute,
		NativeDeadline: 30 * time.Minute,
		Model:          "gpt-4o-mini",
	}
}

// Processor runs ticks over the shared store.
type Processor struct {
	jobs     store.JobRepository
	chunks   store.ChunkRepository
	provider translate.Provider
	cache    cache.Cache // nil disables caching
	rec      Reconstructor
	cfg      Config
	now      func() time.Time
}

// NewProcessor wires a processor. cache may be nil.
func NewProcessor(jobs store.JobRepository, chunks store.ChunkRepository, provider translate.Provider, c cache.Cache, rec Reconstructor, cfg Config) *Processor {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 2 * time.Second
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = 30 * time.Second
	}
	if cfg.ClaimTTL <= 0 {
		cfg.ClaimTTL = 2 * time.Minute
	}
	if cfg.NativeDeadline <= 0 {
		cfg.NativeDeadline = 30 * time.Minute
	}
	return &Processor{
		jobs:     jobs,
		chunks:   chunks,
		provider: provider,
		cache:    c,
		rec:      rec,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Tick advances at most one unit of work and reports what happened. Safe to
// call concurrently: overlapping ticks contend on the atomic chunk claim and
// at most one wins.
func (p *Processor) Tick(ctx context.Context) TickResult {
	start := p.now()
	result := p.tick(ctx)
	result.Elapsed = p.now().Sub(start).Milliseconds()
	return result
}

func (p *Processor) tick(ctx context.Context) TickResult {
	now := p.now()

	job, err := p.jobs.OldestActiveChunked(ctx, now)
	if err != nil {
		return TickResult{Outcome: OutcomeIdle, Error: err.Error()}
	}
	if job != nil {
		return p.tickChunked(ctx, job, now)
	}

	native, err := p.jobs.OldestActiveNative(ctx)
	if err != nil {
		return TickResult{Outcome: OutcomeIdle, Error: err.Error()}
	}
	if native != nil {
		return p.tickNative(ctx, native, now)
	}

	return TickResult{Outcome: OutcomeIdle}
}

func (p *Processor) tickChunked(ctx context.Context, job *store.TranslationJob, now time.Time) TickResult {
	chunk, err := p.chunks.Claim(ctx, job.ID, now, p.cfg.ClaimTTL)
	if errors.Is(err, store.ErrClaimLost) {
		return TickResult{Outcome: OutcomeClaimLost, JobID: job.ID}
	}
	if err != nil {
		return TickResult{Outcome: OutcomeIdle, JobID: job.ID, Error: err.Error()}
	}
	if chunk == nil {
		// No claimable chunk. Either all chunks are translated and a
		// previous finalizer crashed, or the remaining work is backed off.
		translated, total, err := p.chunks.Counts(ctx, job.ID)
		if err != nil {
			return TickResult{Outcome: OutcomeIdle, JobID: job.ID, Error: err.Error()}
		}
		if total > 0 && translated == total {
			return p.finalize(ctx, job, now)
		}
		return TickResult{Outcome: OutcomeIdle, JobID: job.ID}
	}

	text, err := p.translateChunk(ctx, job, chunk)
	if err != nil {
		return p.handleChunkFailure(ctx, job, chunk, now, err)
	}

	if err := p.chunks.StoreTranslation(ctx, chunk.ID, text); err != nil {
		return TickResult{Outcome: OutcomeIdle, JobID: job.ID, ChunkSeq: chunk.Seq, Error: err.Error()}
	}

	translated, total, err := p.chunks.Counts(ctx, job.ID)
	if err != nil {
		return TickResult{Outcome: OutcomeChunkTranslated, JobID: job.ID, ChunkSeq: chunk.Seq, Error: err.Error()}
	}
	progress := int(translated * 100 / total)
	if err := p.jobs.UpdateProgress(ctx, job.ID, progress); err != nil {
		logger.Warn("failed to persist progress",
			logger.String("job", job.ID),
			logger.Err(err))
	}

	logger.Info("chunk translated",
		logger.String("job", job.ID),
		logger.Int("seq", chunk.Seq),
		logger.Int("progress", progress))

	if translated == total {
		if res := p.finalize(ctx, job, now); res.Outcome != OutcomeClaimLost {
			return res
		}
		// Another tick holds the finalize claim; this one still did useful
		// chunk work.
	}
	return TickResult{Outcome: OutcomeChunkTranslated, JobID: job.ID, ChunkSeq: chunk.Seq}
}

// translateChunk resolves a chunk's translation through the cache or the
// provider. Cache failures never fail a tick.
func (p *Processor) translateChunk(ctx context.Context, job *store.TranslationJob, chunk *store.Chunk) (string, error) {
	var key string
	if p.cache != nil {
		key = cache.Key(chunk.SourceText, job.SourceLang, job.TargetLang, p.cfg.Model)
		if cached, ok := p.cache.Get(key); ok {
			return cached, nil
		}
	}

	text, err := p.provider.Translate(ctx, translate.Request{
		Text:       chunk.SourceText,
		SourceLang: job.SourceLang,
		TargetLang: job.TargetLang,
	})
	if err != nil {
		return "", err
	}

	if p.cache != nil {
		if err := p.cache.Set(key, text); err != nil {
			logger.Warn("translation cache write failed", logger.Err(err))
		}
	}
	return text, nil
}

func (p *Processor) handleChunkFailure(ctx context.Context, job *store.TranslationJob, chunk *store.Chunk, now time.Time, cause error) TickResult {
	failures := chunk.RetryCount + 1
	if failures >= p.cfg.MaxRetries {
		msg := fmt.Sprintf("chunk %d failed %d times: %v", chunk.Seq, failures, cause)
		if err := p.jobs.Fail(ctx, job.ID, msg); err != nil {
			return TickResult{Outcome: OutcomeJobFailed, JobID: job.ID, ChunkSeq: chunk.Seq, Error: err.Error()}
		}
		logger.Error("job failed, retry ceiling reached", cause,
			logger.String("job", job.ID),
			logger.Int("seq", chunk.Seq))
		return TickResult{Outcome: OutcomeJobFailed, JobID: job.ID, ChunkSeq: chunk.Seq, Error: msg}
	}

	next := now.Add(p.backoff(chunk.RetryCount))
	if err := p.chunks.RecordFailure(ctx, chunk.ID, cause.Error(), next); err != nil {
		return TickResult{Outcome: OutcomeChunkRetrying, JobID: job.ID, ChunkSeq: chunk.Seq, Error: err.Error()}
	}
	logger.Warn("chunk translation failed, will retry",
		logger.String("job", job.ID),
		logger.Int("seq", chunk.Seq),
		logger.Int("failures", failures),
		logger.Err(cause))
	return TickResult{Outcome: OutcomeChunkRetrying, JobID: job.ID, ChunkSeq: chunk.Seq, Error: cause.Error()}
}

func (p *Processor) backoff(retryCount int) time.Duration {
	delay := p.cfg.BackoffBase << retryCount
	if delay > p.cfg.BackoffMax || delay <= 0 {
		delay = p.cfg.BackoffMax
	}
	return delay
}

// finalize runs reconstruction exactly once per job via the finalize claim.
func (p *Processor) finalize(ctx context.Context, job *store.TranslationJob, now time.Time) TickResult {
	won, err := p.jobs.ClaimFinalize(ctx, job.ID, now, p.cfg.ClaimTTL)
	if err != nil {
		return TickResult{Outcome: OutcomeIdle, JobID: job.ID, Error: err.Error()}
	}
	if !won {
		return TickResult{Outcome: OutcomeClaimLost, JobID: job.ID}
	}

	chunks, err := p.chunks.ListByJob(ctx, job.ID)
	if err != nil {
		return p.failJob(ctx, job, fmt.Sprintf("load chunks for reconstruction: %v", err))
	}

	outputKey, warning, err := p.rec.Finalize(ctx, job, chunks)
	if err != nil {
		return p.failJob(ctx, job, fmt.Sprintf("reconstruction failed: %v", err))
	}

	completed, err := p.jobs.Complete(ctx, job.ID, outputKey, warning)
	if err != nil {
		return p.failJob(ctx, job, fmt.Sprintf("persist completion: %v", err))
	}
	if !completed {
		return TickResult{Outcome: OutcomeClaimLost, JobID: job.ID}
	}

	logger.Info("job completed",
		logger.String("job", job.ID),
		logger.String("output", outputKey))
	return TickResult{Outcome: OutcomeJobCompleted, JobID: job.ID}
}

func (p *Processor) failJob(ctx context.Context, job *store.TranslationJob, msg string) TickResult {
	if err := p.jobs.Fail(ctx, job.ID, msg); err != nil {
		return TickResult{Outcome: OutcomeJobFailed, JobID: job.ID, Error: err.Error()}
	}
	logger.Error("job failed", nil, logger.String("job", job.ID), logger.String("reason", msg))
	return TickResult{Outcome: OutcomeJobFailed, JobID: job.ID, Error: msg}
}

// tickNative advances the external document provider state machine: upload
// once, then poll until done, fetch the result, or fail on error/deadline.
func (p *Processor) tickNative(ctx context.Context, job *store.TranslationJob, now time.Time) TickResult {
	if job.ProviderRef == "" {
		ref, err := p.rec.NativeUpload(ctx, job)
		if err != nil {
			if translate.IsRetryable(err) && now.Sub(job.CreatedAt) < p.cfg.NativeDeadline {
				return TickResult{Outcome: OutcomeNativePolling, JobID: job.ID, Error: err.Error()}
			}
			return p.failJob(ctx, job, fmt.Sprintf("document upload failed: %v", err))
		}
		if err := p.jobs.SetProviderRef(ctx, job.ID, ref); err != nil {
			return TickResult{Outcome: OutcomeNativePolling, JobID: job.ID, Error: err.Error()}
		}
		return TickResult{Outcome: OutcomeNativePolling, JobID: job.ID}
	}

	status, err := p.rec.NativePoll(ctx, job)
	if err != nil {
		if now.Sub(job.CreatedAt) >= p.cfg.NativeDeadline {
			return p.failJob(ctx, job, fmt.Sprintf("document provider deadline exceeded: %v", err))
		}
		return TickResult{Outcome: OutcomeNativePolling, JobID: job.ID, Error: err.Error()}
	}

	switch status {
	case translate.DocumentDone:
		won, err := p.jobs.ClaimFinalize(ctx, job.ID, now, p.cfg.ClaimTTL)
		if err != nil || !won {
			return TickResult{Outcome: OutcomeClaimLost, JobID: job.ID}
		}
		outputKey, warning, err := p.rec.NativeFetch(ctx, job)
		if err != nil {
			return p.failJob(ctx, job, fmt.Sprintf("document download failed: %v", err))
		}
		completed, err := p.jobs.Complete(ctx, job.ID, outputKey, warning)
		if err != nil || !completed {
			return TickResult{Outcome: OutcomeClaimLost, JobID: job.ID}
		}
		return TickResult{Outcome: OutcomeJobCompleted, JobID: job.ID}

	case translate.DocumentError:
		return p.failJob(ctx, job, "document provider reported an error")

	default:
		if now.Sub(job.CreatedAt) >= p.cfg.NativeDeadline {
			return p.failJob(ctx, job, "document provider deadline exceeded")
		}
		return TickResult{Outcome: OutcomeNativePolling, JobID: job.ID}
	}
}
