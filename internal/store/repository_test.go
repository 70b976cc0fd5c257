package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "store_test.db")
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestGormJobRoundTrip(t *testing.T) {
	db := newTestDB(t)
	repo := NewGormJobRepository(db)
	ctx := context.Background()

	job := &TranslationJob{
		ID:          "job-1",
		OwnerID:     "owner-1",
		SourceLang:  "en",
		TargetLang:  "fr",
		ContentKind: KindDocx,
		Method:      MethodChunkedAsync,
		Status:      StatusActive,
		OriginalKey: "owner/owner-1/job-1/original.docx",
	}
	if err := repo.Create(ctx, job); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := repo.Get(ctx, "job-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.TargetLang != "fr" || got.Status != StatusActive {
		t.Errorf("round trip mismatch: %+v", got)
	}

	if _, err := repo.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get missing = %v, want ErrNotFound", err)
	}

	if err := repo.Delete(ctx, "job-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := repo.Delete(ctx, "job-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete = %v, want ErrNotFound", err)
	}
}

func TestGormCompleteOnlyFromActive(t *testing.T) {
	db := newTestDB(t)
	repo := NewGormJobRepository(db)
	ctx := context.Background()

	repo.Create(ctx, &TranslationJob{ID: "job-1", Status: StatusActive})

	ok, err := repo.Complete(ctx, "job-1", "out", "")
	if err != nil || !ok {
		t.Fatalf("Complete = %v, %v", ok, err)
	}
	ok, err = repo.Complete(ctx, "job-1", "out2", "")
	if err != nil {
		t.Fatalf("second Complete: %v", err)
	}
	if ok {
		t.Error("Complete on completed job must report false")
	}

	got, _ := repo.Get(ctx, "job-1")
	if got.Status != StatusCompleted || got.Progress != 100 {
		t.Errorf("job = %+v", got)
	}
	if got.OutputKey == nil || *got.OutputKey != "out" {
		t.Errorf("OutputKey = %v", got.OutputKey)
	}
}

func TestGormChunkClaimLifecycle(t *testing.T) {
	db := newTestDB(t)
	jobs := NewGormJobRepository(db)
	chunks := NewGormChunkRepository(db)
	ctx := context.Background()
	now := time.Now()

	jobs.Create(ctx, &TranslationJob{ID: "job-1", Status: StatusActive, Method: MethodChunkedAsync})
	batch := []Chunk{
		{JobID: "job-1", Seq: 1, Total: 2, SourceText: "first"},
		{JobID: "job-1", Seq: 2, Total: 2, SourceText: "second"},
	}
	if err := chunks.CreateBatch(ctx, batch); err != nil {
		t.Fatalf("CreateBatch: %v", err)
	}

	claimed, err := chunks.Claim(ctx, "job-1", now, time.Minute)
	if err != nil || claimed == nil {
		t.Fatalf("Claim: %v, %v", claimed, err)
	}
	if claimed.Seq != 1 {
		t.Errorf("claimed Seq = %d, want 1", claimed.Seq)
	}

	// The second claim at the same instant must get the next chunk, not the
	// one already held.
	second, err := chunks.Claim(ctx, "job-1", now, time.Minute)
	if err != nil || second == nil {
		t.Fatalf("second Claim: %v, %v", second, err)
	}
	if second.Seq != 2 {
		t.Errorf("second claim Seq = %d, want 2", second.Seq)
	}

	// Both held; nothing left to claim.
	third, err := chunks.Claim(ctx, "job-1", now, time.Minute)
	if err != nil {
		t.Fatalf("third Claim: %v", err)
	}
	if third != nil {
		t.Errorf("third claim should find nothing, got seq %d", third.Seq)
	}

	if err := chunks.StoreTranslation(ctx, claimed.ID, "premier"); err != nil {
		t.Fatalf("StoreTranslation: %v", err)
	}
	translated, total, err := chunks.Counts(ctx, "job-1")
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	if translated != 1 || total != 2 {
		t.Errorf("Counts = %d/%d", translated, total)
	}
}

func TestGormRecordFailureSchedulesBackoff(t *testing.T) {
	db := newTestDB(t)
	chunks := NewGormChunkRepository(db)
	ctx := context.Background()
	now := time.Now()

	batch := []Chunk{{JobID: "job-1", Seq: 1, Total: 1, SourceText: "text"}}
	chunks.CreateBatch(ctx, batch)

	claimed, _ := chunks.Claim(ctx, "job-1", now, time.Minute)
	if err := chunks.RecordFailure(ctx, claimed.ID, "rate limited", now.Add(time.Hour)); err != nil {
		t.Fatalf("RecordFailure: %v", err)
	}

	// Not due yet.
	if c, _ := chunks.Claim(ctx, "job-1", now.Add(time.Minute), time.Minute); c != nil {
		t.Error("chunk claimed before backoff elapsed")
	}
	// Due after the backoff.
	c, err := chunks.Claim(ctx, "job-1", now.Add(2*time.Hour), time.Minute)
	if err != nil || c == nil {
		t.Fatalf("Claim after backoff: %v, %v", c, err)
	}
	if c.RetryCount != 1 || c.LastError != "rate limited" {
		t.Errorf("chunk = %+v", c)
	}
}

func TestGormClaimFinalizeOnce(t *testing.T) {
	db := newTestDB(t)
	repo := NewGormJobRepository(db)
	ctx := context.Background()
	now := time.Now()

	repo.Create(ctx, &TranslationJob{ID: "job-1", Status: StatusActive})

	ok, err := repo.ClaimFinalize(ctx, "job-1", now, time.Minute)
	if err != nil || !ok {
		t.Fatalf("first ClaimFinalize = %v, %v", ok, err)
	}
	ok, err = repo.ClaimFinalize(ctx, "job-1", now, time.Minute)
	if err != nil {
		t.Fatalf("second ClaimFinalize: %v", err)
	}
	if ok {
		t.Error("second ClaimFinalize must report false")
	}
	ok, _ = repo.ClaimFinalize(ctx, "job-1", now.Add(2*time.Minute), time.Minute)
	if !ok {
		t.Error("stale finalize claim should be reclaimable")
	}
}

func TestGormOldestActiveChunkedRequiresDuePendingChunk(t *testing.T) {
	db := newTestDB(t)
	jobs := NewGormJobRepository(db)
	chunks := NewGormChunkRepository(db)
	ctx := context.Background()
	now := time.Now()

	jobs.Create(ctx, &TranslationJob{ID: "job-a", Status: StatusActive, Method: MethodChunkedAsync, CreatedAt: now.Add(-2 * time.Hour)})
	jobs.Create(ctx, &TranslationJob{ID: "job-b", Status: StatusActive, Method: MethodChunkedAsync, CreatedAt: now.Add(-time.Hour)})

	// job-a's only chunk is backed off beyond now; job-b has due work.
	backedOff := now.Add(time.Hour)
	chunks.CreateBatch(ctx, []Chunk{{JobID: "job-a", Seq: 1, Total: 1, SourceText: "x", NextAttemptAt: &backedOff}})
	chunks.CreateBatch(ctx, []Chunk{{JobID: "job-b", Seq: 1, Total: 1, SourceText: "y"}})

	job, err := jobs.OldestActiveChunked(ctx, now)
	if err != nil || job == nil {
		t.Fatalf("OldestActiveChunked: %v, %v", job, err)
	}
	if job.ID != "job-b" {
		t.Errorf("got %s, want job-b (job-a has no due work)", job.ID)
	}
}
