package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/maauso/interview-feedback-api/internal/media"
)

// Default polling parameters for remote file processing.
const (
	DefaultPollInterval = 2 * time.Second
	DefaultPollTimeout  = 30 * time.Second
	deleteTimeout       = 10 * time.Second
)

// errStillProcessing signals the retry loop that the file is not ready yet.
var errStillProcessing = errors.New("remote file still processing")

// UploadErrorKind classifies upload handshake failures.
type UploadErrorKind string

const (
	// KindProcessingFailed means the backend reported FAILED.
	KindProcessingFailed UploadErrorKind = "processing_failed"
	// KindTimeout means the file never became ACTIVE within the poll budget.
	KindTimeout UploadErrorKind = "timeout"
)

// UploadError is returned when an uploaded file never becomes usable.
type UploadError struct {
	Kind   UploadErrorKind
	Name   string
	Waited time.Duration
}

func (e *UploadError) Error() string {
	if e.Kind == KindTimeout {
		return fmt.Sprintf("remote file %s processing timeout after %s", e.Name, e.Waited.Round(time.Millisecond))
	}
	return fmt.Sprintf("remote file %s processing failed", e.Name)
}

// WaitObserver is told how each handshake ended ("active", "failed",
// "timeout" or "error") and how long the wait took.
type WaitObserver func(outcome string, waited time.Duration)

// Uploader uploads local artifacts and waits until the backend marks them ACTIVE.
type Uploader struct {
	backend      Backend
	logger       *slog.Logger
	interval     time.Duration
	timeout      time.Duration
	newTimer     func() backoff.Timer
	observer     WaitObserver
	deleteRemote bool
}

// UploaderOption configures an Uploader.
type UploaderOption func(*Uploader)

// WithPollInterval sets the delay between state checks.
func WithPollInterval(d time.Duration) UploaderOption {
	return func(u *Uploader) {
		if d > 0 {
			u.interval = d
		}
	}
}

// WithPollTimeout sets the total polling budget.
func WithPollTimeout(d time.Duration) UploaderOption {
	return func(u *Uploader) {
		if d > 0 {
			u.timeout = d
		}
	}
}

// WithTimer replaces the wall-clock timer used between polls.
func WithTimer(newTimer func() backoff.Timer) UploaderOption {
	return func(u *Uploader) {
		u.newTimer = newTimer
	}
}

// WithWaitObserver registers a callback for handshake outcomes.
func WithWaitObserver(o WaitObserver) UploaderOption {
	return func(u *Uploader) {
		u.observer = o
	}
}

// WithDeleteRemote controls whether Discard deletes remote files.
func WithDeleteRemote(enabled bool) UploaderOption {
	return func(u *Uploader) {
		u.deleteRemote = enabled
	}
}

// NewUploader creates an Uploader.
func NewUploader(backend Backend, logger *slog.Logger, opts ...UploaderOption) *Uploader {
	if logger == nil {
		logger = slog.Default()
	}
	u := &Uploader{
		backend:      backend,
		logger:       logger,
		interval:     DefaultPollInterval,
		timeout:      DefaultPollTimeout,
		newTimer:     func() backoff.Timer { return nil },
		deleteRemote: true,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// UploadAndWait uploads localPath and polls its state until ACTIVE, FAILED or
// the poll budget runs out. The returned handle is always ACTIVE.
// A handle that was created but never became usable is discarded before
// returning the error.
func (u *Uploader) UploadAndWait(ctx context.Context, localPath string) (*RemoteFile, error) {
	start := time.Now()

	file, err := u.backend.Upload(ctx, localPath, media.MIMEType(localPath))
	if err != nil {
		u.observe("error", start)
		return nil, err
	}
	file.LocalPath = localPath

	u.logger.Debug("file uploaded, waiting for processing",
		slog.String("name", file.Name),
		slog.String("state", string(file.State)),
	)

	ready, err := u.wait(ctx, file)
	if err != nil {
		u.Discard(file)
		return nil, err
	}

	u.logger.Info("remote file active",
		slog.String("name", ready.Name),
		slog.Duration("waited", time.Since(start)),
	)
	u.observe("active", start)
	return ready, nil
}

func (u *Uploader) wait(ctx context.Context, file *RemoteFile) (*RemoteFile, error) {
	start := time.Now()
	current := file

	check := func(f *RemoteFile) error {
		switch f.State {
		case StateActive:
			return nil
		case StateFailed:
			return backoff.Permanent(&UploadError{Kind: KindProcessingFailed, Name: f.Name, Waited: time.Since(start)})
		default:
			return errStillProcessing
		}
	}

	if err := check(current); !errors.Is(err, errStillProcessing) {
		return u.finish(current, err, start)
	}

	maxPolls := uint64(u.timeout / u.interval)
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(u.interval), maxPolls),
		ctx,
	)

	op := func() error {
		f, err := u.backend.Get(ctx, file.Name)
		if err != nil {
			return backoff.Permanent(err)
		}
		f.LocalPath = file.LocalPath
		if f.MIMEType == "" {
			f.MIMEType = file.MIMEType
		}
		current = f
		return check(f)
	}

	notify := func(_ error, next time.Duration) {
		u.logger.Debug("remote file not ready",
			slog.String("name", file.Name),
			slog.Duration("next_check", next),
		)
	}

	err := backoff.RetryNotifyWithTimer(op, policy, notify, u.newTimer())
	return u.finish(current, err, start)
}

func (u *Uploader) finish(file *RemoteFile, err error, start time.Time) (*RemoteFile, error) {
	if err == nil {
		return file, nil
	}

	var upErr *UploadError
	switch {
	case errors.Is(err, errStillProcessing):
		u.observe("timeout", start)
		return nil, &UploadError{Kind: KindTimeout, Name: file.Name, Waited: u.timeout}
	case errors.As(err, &upErr):
		u.observe("failed", start)
		return nil, upErr
	default:
		u.observe("error", start)
		return nil, fmt.Errorf("wait for remote file %s: %w", file.Name, err)
	}
}

// Discard deletes a remote file on a detached context. Failures are logged.
func (u *Uploader) Discard(file *RemoteFile) {
	if file == nil || file.Name == "" || !u.deleteRemote {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), deleteTimeout)
	defer cancel()

	if err := u.backend.Delete(ctx, file.Name); err != nil {
		u.logger.Warn("failed to delete remote file",
			slog.String("name", file.Name),
			slog.String("error", err.Error()),
		)
	}
}

func (u *Uploader) observe(outcome string, start time.Time) {
	if u.observer != nil {
		u.observer(outcome, time.Since(start))
	}
}
