package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryJobRepository is an in-process JobRepository with the same state
// transition semantics as the relational one. Used by the one-shot CLI and
// the queue tests.
type MemoryJobRepository struct {
	mu     sync.Mutex
	jobs   map[string]*TranslationJob
	chunks *MemoryChunkRepository
}

// NewMemoryJobRepository creates an empty in-memory job repository.
func NewMemoryJobRepository() *MemoryJobRepository {
	return &MemoryJobRepository{jobs: make(map[string]*TranslationJob)}
}

// BindChunks lets OldestActiveChunked apply the same chunk eligibility rule
// as the relational implementation. Unbound, every active chunked job is
// eligible regardless of backoff.
func (r *MemoryJobRepository) BindChunks(chunks *MemoryChunkRepository) {
	r.chunks = chunks
}

func (r *MemoryJobRepository) Create(ctx context.Context, job *TranslationJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *job
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	r.jobs[job.ID] = &cp
	return nil
}

func (r *MemoryJobRepository) Get(ctx context.Context, id string) (*TranslationJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *job
	return &cp, nil
}

func (r *MemoryJobRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[id]; !ok {
		return ErrNotFound
	}
	delete(r.jobs, id)
	return nil
}

func (r *MemoryJobRepository) UpdateProgress(ctx context.Context, id string, progress int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if job, ok := r.jobs[id]; ok {
		job.Progress = progress
	}
	return nil
}

func (r *MemoryJobRepository) Complete(ctx context.Context, id, outputKey, warning string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok || job.Status != StatusActive {
		return false, nil
	}
	job.Status = StatusCompleted
	job.OutputKey = &outputKey
	job.Progress = 100
	job.Warning = warning
	return true, nil
}

func (r *MemoryJobRepository) Fail(ctx context.Context, id, errorMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok || (job.Status != StatusQueued && job.Status != StatusActive) {
		return nil
	}
	job.Status = StatusFailed
	job.ErrorMsg = errorMsg
	return nil
}

func (r *MemoryJobRepository) Resubmit(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok || job.Status != StatusFailed {
		return false, nil
	}
	job.Status = StatusActive
	job.ErrorMsg = ""
	job.FinalizeStartedAt = nil
	return true, nil
}

func (r *MemoryJobRepository) ClaimFinalize(ctx context.Context, id string, now time.Time, ttl time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok || job.Status != StatusActive {
		return false, nil
	}
	if job.FinalizeStartedAt != nil && job.FinalizeStartedAt.After(now.Add(-ttl)) {
		return false, nil
	}
	claimTime := now
	job.FinalizeStartedAt = &claimTime
	return true, nil
}

func (r *MemoryJobRepository) SetProviderRef(ctx context.Context, id, ref string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if job, ok := r.jobs[id]; ok {
		job.ProviderRef = ref
	}
	return nil
}

func (r *MemoryJobRepository) OldestActiveChunked(ctx context.Context, now time.Time) (*TranslationJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var oldest *TranslationJob
	for _, job := range r.jobs {
		if job.Status != StatusActive || job.Method != MethodChunkedAsync {
			continue
		}
		if r.chunks != nil && !r.chunks.jobEligible(job.ID, now) {
			continue
		}
		if oldest == nil || job.CreatedAt.Before(oldest.CreatedAt) {
			oldest = job
		}
	}
	if oldest == nil {
		return nil, nil
	}
	cp := *oldest
	return &cp, nil
}

func (r *MemoryJobRepository) OldestActiveNative(ctx context.Context) (*TranslationJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var oldest *TranslationJob
	for _, job := range r.jobs {
		if job.Status != StatusActive || job.Method != MethodNativeAsync {
			continue
		}
		if oldest == nil || job.CreatedAt.Before(oldest.CreatedAt) {
			oldest = job
		}
	}
	if oldest == nil {
		return nil, nil
	}
	cp := *oldest
	return &cp, nil
}

// MemoryChunkRepository is an in-process ChunkRepository. Claim uses the same
// check-then-mark rule as the relational implementation, made atomic by the
// repository mutex.
type MemoryChunkRepository struct {
	mu     sync.Mutex
	nextID uint
	chunks map[uint]*Chunk
}

// NewMemoryChunkRepository creates an empty in-memory chunk repository.
func NewMemoryChunkRepository() *MemoryChunkRepository {
	return &MemoryChunkRepository{chunks: make(map[uint]*Chunk)}
}

func (r *MemoryChunkRepository) CreateBatch(ctx context.Context, chunks []Chunk) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range chunks {
		r.nextID++
		cp := chunks[i]
		cp.ID = r.nextID
		r.chunks[cp.ID] = &cp
		chunks[i].ID = cp.ID
	}
	return nil
}

func (r *MemoryChunkRepository) ListByJob(ctx context.Context, jobID string) ([]Chunk, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Chunk
	for _, c := range r.chunks {
		if c.JobID == jobID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

func (r *MemoryChunkRepository) DeleteByJob(ctx context.Context, jobID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, c := range r.chunks {
		if c.JobID == jobID {
			delete(r.chunks, id)
		}
	}
	return nil
}

func (r *MemoryChunkRepository) Claim(ctx context.Context, jobID string, now time.Time, claimTTL time.Duration) (*Chunk, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	staleBefore := now.Add(-claimTTL)
	var candidate *Chunk
	for _, c := range r.chunks {
		if c.JobID != jobID || !c.Pending() || !c.Due(now) {
			continue
		}
		if c.ClaimedAt != nil && c.ClaimedAt.After(staleBefore) {
			continue
		}
		if candidate == nil || c.Seq < candidate.Seq {
			candidate = c
		}
	}
	if candidate == nil {
		return nil, nil
	}

	claimTime := now
	candidate.ClaimedAt = &claimTime
	cp := *candidate
	return &cp, nil
}

func (r *MemoryChunkRepository) StoreTranslation(ctx context.Context, chunkID uint, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.chunks[chunkID]
	if !ok {
		return ErrNotFound
	}
	c.TranslatedText = &text
	c.LastError = ""
	c.ClaimedAt = nil
	return nil
}

func (r *MemoryChunkRepository) RecordFailure(ctx context.Context, chunkID uint, errorMsg string, nextAttempt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.chunks[chunkID]
	if !ok {
		return ErrNotFound
	}
	c.RetryCount++
	c.LastError = errorMsg
	c.ClaimedAt = nil
	at := nextAttempt
	c.NextAttemptAt = &at
	return nil
}

func (r *MemoryChunkRepository) Counts(ctx context.Context, jobID string) (int64, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var translated, total int64
	for _, c := range r.chunks {
		if c.JobID != jobID {
			continue
		}
		total++
		if !c.Pending() {
			translated++
		}
	}
	return translated, total, nil
}

// jobEligible reports whether a chunked job has due pending work, or has
// every chunk translated and so only reconstruction left.
func (r *MemoryChunkRepository) jobEligible(jobID string, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	pending := false
	for _, c := range r.chunks {
		if c.JobID != jobID || !c.Pending() {
			continue
		}
		pending = true
		if c.Due(now) {
			return true
		}
	}
	return !pending
}

func (r *MemoryChunkRepository) ResetFailures(ctx context.Context, jobID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.chunks {
		if c.JobID != jobID || !c.Pending() {
			continue
		}
		c.RetryCount = 0
		c.LastError = ""
		c.ClaimedAt = nil
		c.NextAttemptAt = nil
	}
	return nil
}

var (
	_ JobRepository   = (*MemoryJobRepository)(nil)
	_ ChunkRepository = (*MemoryChunkRepository)(nil)
)
