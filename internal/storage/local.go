package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Static errors for storage operations.
var (
	// ErrS3NotConfigured is returned when S3 operations are attempted
	// without proper configuration.
	ErrS3NotConfigured = errors.New("S3 storage is not configured")
	// ErrNilArtifact is returned when an operation receives a nil artifact.
	ErrNilArtifact = errors.New("artifact is nil")
)

// LocalStorage implements the Storage interface using local disk.
// It does not support S3 operations unless wrapped with S3Storage.
type LocalStorage struct {
	tempDir string
	now     func() time.Time
}

// NewLocalStorage creates a new LocalStorage instance.
// If tempDir is empty, a directory under os.TempDir() is used.
// The directory is created if it doesn't exist.
func NewLocalStorage(tempDir string) (*LocalStorage, error) {
	if tempDir == "" {
		tempDir = filepath.Join(os.TempDir(), "interview-feedback")
	}

	if err := os.MkdirAll(tempDir, 0750); err != nil {
		return nil, fmt.Errorf("create temp directory: %w", err)
	}

	return &LocalStorage{tempDir: tempDir, now: time.Now}, nil
}

// TempDir returns the temporary directory path.
func (s *LocalStorage) TempDir() string {
	return s.tempDir
}

// Acquire reserves a unique path named <kind>_<uuid><ext>.
func (s *LocalStorage) Acquire(kind Kind, ext string) (*Artifact, error) {
	if kind != KindVideo && kind != KindAudio {
		return nil, fmt.Errorf("acquire artifact: unknown kind %q", kind)
	}
	if ext != "" && ext[0] != '.' {
		ext = "." + ext
	}

	name := fmt.Sprintf("%s_%s%s", kind, uuid.NewString(), ext)
	return &Artifact{
		Path:      filepath.Join(s.tempDir, name),
		Kind:      kind,
		CreatedAt: s.now(),
	}, nil
}

// Write creates the artifact file exclusively and copies data into it.
// A partially written file is removed before returning an error.
func (s *LocalStorage) Write(ctx context.Context, a *Artifact, data io.Reader) (int64, error) {
	if a == nil {
		return 0, ErrNilArtifact
	}
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	// #nosec G304 - path is generated by Acquire
	f, err := os.OpenFile(a.Path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}

	n, err := io.Copy(f, data)
	if err != nil {
		_ = f.Close()
		_ = os.Remove(a.Path)
		return 0, fmt.Errorf("write temp file: %w", err)
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(a.Path)
		return 0, fmt.Errorf("close temp file: %w", err)
	}

	return n, nil
}

// Open returns a reader over the artifact contents.
func (s *LocalStorage) Open(ctx context.Context, a *Artifact) (io.ReadCloser, error) {
	if a == nil {
		return nil, ErrNilArtifact
	}
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	f, err := os.Open(a.Path) // #nosec G304 - path is generated by Acquire
	if err != nil {
		return nil, fmt.Errorf("open temp file: %w", err)
	}

	return f, nil
}

// Release removes the artifact file if present. Calling it on an already
// removed artifact, or on nil, is a no-op.
func (s *LocalStorage) Release(a *Artifact) error {
	if a == nil {
		return nil
	}
	if err := os.Remove(a.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove temp file %s: %w", a.Path, err)
	}
	return nil
}

// UploadToS3 is not supported by LocalStorage and returns ErrS3NotConfigured.
func (s *LocalStorage) UploadToS3(_ context.Context, _ string, _ io.Reader) (string, error) {
	return "", ErrS3NotConfigured
}
