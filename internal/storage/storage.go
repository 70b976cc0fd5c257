// Package storage provides object storage for original and translated
// documents. Objects are addressed by slash-separated keys namespaced per
// owner and job, e.g. "owner/alice/6f1c.../original.docx".
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"doc-translator/internal/logger"
)

// ErrNotFound is returned when no object exists under the requested key.
var ErrNotFound = errors.New("object not found")

// ObjectStore stores and retrieves document blobs.
type ObjectStore interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	Download(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// OriginalKey returns the storage key for a job's uploaded document.
func OriginalKey(ownerID, jobID, filename string) string {
	ext := filepath.Ext(filename)
	return fmt.Sprintf("owner/%s/%s/original%s", ownerID, jobID, ext)
}

// OutputKey returns the storage key for a job's translated document.
func OutputKey(ownerID, jobID, ext string) string {
	return fmt.Sprintf("owner/%s/%s/translated%s", ownerID, jobID, ext)
}

// LocalStore keeps objects as files under a root directory. Content types
// are recorded in a sidecar file next to each object.
type LocalStore struct {
	root string
}

// NewLocalStore creates the root directory if needed.
func NewLocalStore(root string) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage root: %w", err)
	}
	return &LocalStore{root: root}, nil
}

func (s *LocalStore) path(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == "." || strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return filepath.Join(s.root, clean), nil
}

func (s *LocalStore) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create object directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write object: %w", err)
	}
	if contentType != "" {
		if err := os.WriteFile(path+".type", []byte(contentType), 0644); err != nil {
			logger.Warn("failed to record content type",
				logger.String("key", key), logger.Err(err))
		}
	}
	return nil
}

func (s *LocalStore) Download(ctx context.Context, key string) ([]byte, error) {
	path, err := s.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read object: %w", err)
	}
	return data, nil
}

func (s *LocalStore) Delete(ctx context.Context, key string) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	os.Remove(path + ".type")
	return nil
}

// ContentType returns the recorded content type for a key, or empty when
// none was recorded.
func (s *LocalStore) ContentType(key string) string {
	path, err := s.path(key)
	if err != nil {
		return ""
	}
	data, err := os.ReadFile(path + ".type")
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
