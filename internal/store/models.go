// Package store holds the persistent data model and repositories for
// translation jobs and their chunks.
package store

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a job or chunk does not exist.
var ErrNotFound = errors.New("store: not found")

// JobStatus is the lifecycle state of a translation job.
type JobStatus string

const (
	StatusQueued    JobStatus = "queued"
	StatusActive    JobStatus = "active"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
)

// JobMethod selects the translation strategy for a job.
type JobMethod string

const (
	MethodSkeletonSync JobMethod = "skeleton-sync"
	MethodChunkedAsync JobMethod = "chunked-async"
	MethodNativeAsync  JobMethod = "native-provider-async"
)

// ContentKind is the detected document format.
type ContentKind string

const (
	KindDocx  ContentKind = "docx"
	KindPDF   ContentKind = "pdf"
	KindPlain ContentKind = "plain"
	KindHTML  ContentKind = "html"
)

// TranslationJob is one document translation request.
type TranslationJob struct {
	ID                string      `gorm:"primaryKey;size:36" json:"id"`
	OwnerID           string      `gorm:"index;size:64" json:"owner_id"`
	SourceLang        string      `gorm:"size:16" json:"source_lang"`
	TargetLang        string      `gorm:"size:16" json:"target_lang"`
	ContentKind       ContentKind `gorm:"size:8" json:"content_kind"`
	Method            JobMethod   `gorm:"size:32" json:"method"`
	Status            JobStatus   `gorm:"index;size:16;default:'queued'" json:"status"`
	Progress          int         `gorm:"default:0" json:"progress"`
	OriginalKey       string      `gorm:"size:255" json:"original_key"`
	OutputKey         *string     `gorm:"size:255" json:"output_key,omitempty"`
	ProviderRef       string      `gorm:"size:255" json:"-"`
	ErrorMsg          string      `gorm:"type:text" json:"error,omitempty"`
	RetryCount        int         `gorm:"default:0" json:"retry_count"`
	Warning           string      `gorm:"type:text" json:"warning,omitempty"`
	FinalizeStartedAt *time.Time  `json:"-"`
	CreatedAt         time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

// Chunk is one translatable unit of a chunked-async job. A chunk is pending
// while TranslatedText is NULL.
type Chunk struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	JobID          string     `gorm:"size:36;uniqueIndex:idx_chunk_job_seq;index" json:"job_id"`
	Seq            int        `gorm:"uniqueIndex:idx_chunk_job_seq" json:"seq"`
	Total          int        `json:"total"`
	SourceText     string     `gorm:"type:text" json:"-"`
	TranslatedText *string    `gorm:"type:text" json:"-"`
	RetryCount     int        `gorm:"default:0" json:"retry_count"`
	LastError      string     `gorm:"type:text" json:"last_error,omitempty"`
	ClaimedAt      *time.Time `gorm:"index" json:"-"`
	NextAttemptAt  *time.Time `gorm:"index" json:"-"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// Pending reports whether the chunk still needs translation.
func (c *Chunk) Pending() bool {
	return c.TranslatedText == nil
}

// Due reports whether the chunk's retry backoff has elapsed at now.
func (c *Chunk) Due(now time.Time) bool {
	return c.NextAttemptAt == nil || !c.NextAttemptAt.After(now)
}
