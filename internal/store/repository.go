package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

// JobRepository persists translation jobs.
type JobRepository interface {
	Create(ctx context.Context, job *TranslationJob) error
	Get(ctx context.Context, id string) (*TranslationJob, error)
	Delete(ctx context.Context, id string) error

	// UpdateProgress persists a recomputed progress percentage.
	UpdateProgress(ctx context.Context, id string, progress int) error

	// Complete transitions active -> completed and records the output key.
	// Returns false when the job was not active, which makes the
	// reconstruction trigger idempotent under concurrent ticks.
	Complete(ctx context.Context, id, outputKey, warning string) (bool, error)

	// Fail transitions a job to failed with an error message.
	Fail(ctx context.Context, id, errorMsg string) error

	// Resubmit transitions failed -> active, clearing the error. Returns
	// false when the job was not failed.
	Resubmit(ctx context.Context, id string) (bool, error)

	// SetProviderRef records the external document service handle.
	SetProviderRef(ctx context.Context, id, ref string) error

	// ClaimFinalize atomically marks the job as being reconstructed, so the
	// reconstructor runs at most once even when concurrent ticks both see
	// the last chunk land. A stale claim (crashed finalizer) expires after
	// ttl. Returns false when another tick holds the claim or the job is
	// not active.
	ClaimFinalize(ctx context.Context, id string, now time.Time, ttl time.Duration) (bool, error)

	// OldestActiveChunked returns the active chunked job with the oldest due
	// pending chunk, or nil when no such job exists.
	OldestActiveChunked(ctx context.Context, now time.Time) (*TranslationJob, error)

	// OldestActiveNative returns the oldest active native-provider job, or
	// nil when none exists.
	OldestActiveNative(ctx context.Context) (*TranslationJob, error)
}

// ChunkRepository persists chunks and implements the exclusive claim.
type ChunkRepository interface {
	CreateBatch(ctx context.Context, chunks []Chunk) error
	ListByJob(ctx context.Context, jobID string) ([]Chunk, error)
	DeleteByJob(ctx context.Context, jobID string) error

	// Claim atomically marks the job's lowest-seq due pending chunk as
	// claimed. Returns (nil, nil) when nothing is claimable and
	// (nil, ErrClaimLost) when a concurrent tick won the same chunk.
	Claim(ctx context.Context, jobID string, now time.Time, claimTTL time.Duration) (*Chunk, error)

	// StoreTranslation records the translated text and releases the claim.
	StoreTranslation(ctx context.Context, chunkID uint, text string) error

	// RecordFailure increments the retry count, stores the error, releases
	// the claim, and schedules the next attempt.
	RecordFailure(ctx context.Context, chunkID uint, errorMsg string, nextAttempt time.Time) error

	// Counts reports translated and total chunk counts for a job.
	Counts(ctx context.Context, jobID string) (translated, total int64, err error)

	// ResetFailures clears retry state on a job's untranslated chunks so a
	// resubmitted job starts with a fresh retry budget.
	ResetFailures(ctx context.Context, jobID string) error
}

// ErrClaimLost means a concurrent tick claimed the chunk first.
var ErrClaimLost = errors.New("store: chunk claim lost to concurrent tick")

// GormJobRepository is the relational JobRepository.
type GormJobRepository struct {
	db *gorm.DB
}

// NewGormJobRepository creates a job repository on db.
func NewGormJobRepository(db *gorm.DB) *GormJobRepository {
	return &GormJobRepository{db: db}
}

func (r *GormJobRepository) Create(ctx context.Context, job *TranslationJob) error {
	return r.db.WithContext(ctx).Create(job).Error
}

func (r *GormJobRepository) Get(ctx context.Context, id string) (*TranslationJob, error) {
	var job TranslationJob
	err := r.db.WithContext(ctx).First(&job, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *GormJobRepository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Delete(&TranslationJob{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *GormJobRepository) UpdateProgress(ctx context.Context, id string, progress int) error {
	return r.db.WithContext(ctx).Model(&TranslationJob{}).
		Where("id = ?", id).
		Update("progress", progress).Error
}

func (r *GormJobRepository) Complete(ctx context.Context, id, outputKey, warning string) (bool, error) {
	result := r.db.WithContext(ctx).Model(&TranslationJob{}).
		Where("id = ? AND status = ?", id, StatusActive).
		Updates(map[string]interface{}{
			"status":     StatusCompleted,
			"output_key": outputKey,
			"progress":   100,
			"warning":    warning,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *GormJobRepository) Fail(ctx context.Context, id, errorMsg string) error {
	return r.db.WithContext(ctx).Model(&TranslationJob{}).
		Where("id = ? AND status IN ?", id, []JobStatus{StatusQueued, StatusActive}).
		Updates(map[string]interface{}{
			"status":    StatusFailed,
			"error_msg": errorMsg,
		}).Error
}

func (r *GormJobRepository) Resubmit(ctx context.Context, id string) (bool, error) {
	result := r.db.WithContext(ctx).Model(&TranslationJob{}).
		Where("id = ? AND status = ?", id, StatusFailed).
		Updates(map[string]interface{}{
			"status":              StatusActive,
			"error_msg":           "",
			"finalize_started_at": nil,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *GormJobRepository) SetProviderRef(ctx context.Context, id, ref string) error {
	return r.db.WithContext(ctx).Model(&TranslationJob{}).
		Where("id = ?", id).
		Update("provider_ref", ref).Error
}

func (r *GormJobRepository) ClaimFinalize(ctx context.Context, id string, now time.Time, ttl time.Duration) (bool, error) {
	staleBefore := now.Add(-ttl)
	result := r.db.WithContext(ctx).Model(&TranslationJob{}).
		Where("id = ? AND status = ?", id, StatusActive).
		Where("finalize_started_at IS NULL OR finalize_started_at <= ?", staleBefore).
		Update("finalize_started_at", now)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *GormJobRepository) OldestActiveChunked(ctx context.Context, now time.Time) (*TranslationJob, error) {
	// A job is eligible when it has due pending work, or when every chunk is
	// translated but a crashed tick left reconstruction unfinished.
	var job TranslationJob
	err := r.db.WithContext(ctx).
		Where("status = ? AND method = ?", StatusActive, MethodChunkedAsync).
		Where(`EXISTS (
			SELECT 1 FROM chunks
			WHERE chunks.job_id = translation_jobs.id
			  AND chunks.translated_text IS NULL
			  AND (chunks.next_attempt_at IS NULL OR chunks.next_attempt_at <= ?)
		) OR NOT EXISTS (
			SELECT 1 FROM chunks
			WHERE chunks.job_id = translation_jobs.id
			  AND chunks.translated_text IS NULL
		)`, now).
		Order("created_at").
		First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *GormJobRepository) OldestActiveNative(ctx context.Context) (*TranslationJob, error) {
	var job TranslationJob
	err := r.db.WithContext(ctx).
		Where("status = ? AND method = ?", StatusActive, MethodNativeAsync).
		Order("created_at").
		First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// GormChunkRepository is the relational ChunkRepository.
type GormChunkRepository struct {
	db *gorm.DB
}

// NewGormChunkRepository creates a chunk repository on db.
func NewGormChunkRepository(db *gorm.DB) *GormChunkRepository {
	return &GormChunkRepository{db: db}
}

func (r *GormChunkRepository) CreateBatch(ctx context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&chunks).Error
}

func (r *GormChunkRepository) ListByJob(ctx context.Context, jobID string) ([]Chunk, error) {
	var chunks []Chunk
	err := r.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		Order("seq").
		Find(&chunks).Error
	return chunks, err
}

func (r *GormChunkRepository) DeleteByJob(ctx context.Context, jobID string) error {
	return r.db.WithContext(ctx).Delete(&Chunk{}, "job_id = ?", jobID).Error
}

func (r *GormChunkRepository) Claim(ctx context.Context, jobID string, now time.Time, claimTTL time.Duration) (*Chunk, error) {
	staleBefore := now.Add(-claimTTL)

	var chunk Chunk
	err := r.db.WithContext(ctx).
		Where("job_id = ? AND translated_text IS NULL", jobID).
		Where("next_attempt_at IS NULL OR next_attempt_at <= ?", now).
		Where("claimed_at IS NULL OR claimed_at <= ?", staleBefore).
		Order("seq").
		First(&chunk).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	// The claim only lands if the chunk is still unclaimed and untranslated.
	// RowsAffected == 0 means a concurrent tick won.
	result := r.db.WithContext(ctx).Model(&Chunk{}).
		Where("id = ? AND translated_text IS NULL", chunk.ID).
		Where("claimed_at IS NULL OR claimed_at <= ?", staleBefore).
		Update("claimed_at", now)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrClaimLost
	}

	chunk.ClaimedAt = &now
	return &chunk, nil
}

func (r *GormChunkRepository) StoreTranslation(ctx context.Context, chunkID uint, text string) error {
	return r.db.WithContext(ctx).Model(&Chunk{}).
		Where("id = ?", chunkID).
		Updates(map[string]interface{}{
			"translated_text": text,
			"last_error":      "",
			"claimed_at":      nil,
		}).Error
}

func (r *GormChunkRepository) RecordFailure(ctx context.Context, chunkID uint, errorMsg string, nextAttempt time.Time) error {
	return r.db.WithContext(ctx).Model(&Chunk{}).
		Where("id = ?", chunkID).
		Updates(map[string]interface{}{
			"retry_count":     gorm.Expr("retry_count + 1"),
			"last_error":      errorMsg,
			"claimed_at":      nil,
			"next_attempt_at": nextAttempt,
		}).Error
}

func (r *GormChunkRepository) Counts(ctx context.Context, jobID string) (int64, int64, error) {
	var total, translated int64
	if err := r.db.WithContext(ctx).Model(&Chunk{}).
		Where("job_id = ?", jobID).
		Count(&total).Error; err != nil {
		return 0, 0, err
	}
	if err := r.db.WithContext(ctx).Model(&Chunk{}).
		Where("job_id = ? AND translated_text IS NOT NULL", jobID).
		Count(&translated).Error; err != nil {
		return 0, 0, err
	}
	return translated, total, nil
}

func (r *GormChunkRepository) ResetFailures(ctx context.Context, jobID string) error {
	return r.db.WithContext(ctx).Model(&Chunk{}).
		Where("job_id = ? AND translated_text IS NULL", jobID).
		Updates(map[string]interface{}{
			"retry_count":     0,
			"last_error":      "",
			"claimed_at":      nil,
			"next_attempt_at": nil,
		}).Error
}

// Migrate creates or updates the schema for all store models.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&TranslationJob{}, &Chunk{})
}

var (
	_ JobRepository   = (*GormJobRepository)(nil)
	_ ChunkRepository = (*GormChunkRepository)(nil)
)
