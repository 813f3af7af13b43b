// Package storage manages the temporary artifacts of one analysis run and the
// optional S3 archive of uploaded recordings.
// It defines the Storage interface (port) and implementations for local disk
// and S3.
package storage

import (
	"context"
	"io"
	"time"
)

// Kind classifies a temporary artifact.
type Kind string

const (
	// KindVideo is the uploaded recording.
	KindVideo Kind = "video"
	// KindAudio is audio extracted from the recording.
	KindAudio Kind = "audio"
)

// Artifact is a uniquely named temporary file owned by a single analysis run.
type Artifact struct {
	Path      string
	Kind      Kind
	CreatedAt time.Time
}

// Storage defines temporary artifact handling plus optional archiving.
type Storage interface {
	// Acquire reserves a unique path in the temp directory for an artifact of
	// the given kind. The file itself is created by whoever writes it.
	Acquire(kind Kind, ext string) (*Artifact, error)

	// Write streams data into the artifact and returns the number of bytes written.
	Write(ctx context.Context, a *Artifact, data io.Reader) (int64, error)

	// Open returns a reader over the artifact contents.
	// The caller is responsible for closing the returned ReadCloser.
	Open(ctx context.Context, a *Artifact) (io.ReadCloser, error)

	// Release removes the artifact file. It is idempotent and does not take a
	// context so that it still runs after a request deadline has passed.
	Release(a *Artifact) error

	// UploadToS3 uploads data to S3 and returns the object URL.
	// Returns ErrS3NotConfigured if S3 is not configured.
	UploadToS3(ctx context.Context, key string, data io.Reader) (url string, err error)
}
