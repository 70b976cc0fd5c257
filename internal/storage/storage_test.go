package storage

import (
	"context"
	"errors"
	"testing"
)

func TestLocalStoreRoundTrip(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	ctx := context.Background()

	key := OriginalKey("alice", "job-1", "report.docx")
	if key != "owner/alice/job-1/original.docx" {
		t.Fatalf("key = %q", key)
	}

	payload := []byte("PK\x03\x04 docx bytes")
	if err := store.Upload(ctx, key, payload, "application/vnd.openxmlformats-officedocument.wordprocessingml.document"); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	got, err := store.Download(ctx, key)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if string(got) != string(payload) {
		t.Errorf("payload mismatch: %q", got)
	}
	if ct := store.ContentType(key); ct == "" {
		t.Error("content type not recorded")
	}
}

func TestLocalStoreDownloadMissing(t *testing.T) {
	store, _ := NewLocalStore(t.TempDir())
	_, err := store.Download(context.Background(), "owner/a/b/original.pdf")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestLocalStoreDeleteIdempotent(t *testing.T) {
	store, _ := NewLocalStore(t.TempDir())
	ctx := context.Background()

	key := OutputKey("alice", "job-1", ".pdf")
	if err := store.Upload(ctx, key, []byte("x"), "application/pdf"); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Download(ctx, key); !errors.Is(err, ErrNotFound) {
		t.Errorf("object still present after delete")
	}
	// Deleting a missing object is not an error.
	if err := store.Delete(ctx, key); err != nil {
		t.Errorf("second Delete: %v", err)
	}
}

func TestLocalStoreRejectsTraversal(t *testing.T) {
	store, _ := NewLocalStore(t.TempDir())
	ctx := context.Background()

	for _, key := range []string{"../outside", "/etc/passwd", "."} {
		if err := store.Upload(ctx, key, []byte("x"), ""); err == nil {
			t.Errorf("Upload(%q) accepted an unsafe key", key)
		}
	}
}
