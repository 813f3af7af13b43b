// Package audio converts interview recordings into mp3 audio for the
// audio-only analysis fallback.
package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DefaultTimeout bounds a single extraction engine run.
const DefaultTimeout = 30 * time.Second

// ErrEngineUnavailable is returned by an engine whose tooling is missing.
var ErrEngineUnavailable = errors.New("extraction engine unavailable")

// Params describes the target audio encoding.
type Params struct {
	SampleRate int
	Bitrate    string
	Channels   int
	Codec      string
}

// DefaultParams returns 44.1 kHz stereo mp3 at 192 kbit/s.
func DefaultParams() Params {
	return Params{
		SampleRate: 44100,
		Bitrate:    "192k",
		Channels:   2,
		Codec:      "libmp3lame",
	}
}

// Engine writes the audio track of videoPath to audioPath.
type Engine interface {
	// Name identifies the engine in logs and metrics.
	Name() string
	// Available reports whether the engine's tooling can be used.
	Available() bool
	// Extract performs the conversion. It does not verify the output.
	Extract(ctx context.Context, videoPath, audioPath string) error
}

// ErrorKind classifies extraction failures.
type ErrorKind string

const (
	// KindSubprocessFailure covers non-zero exits, crashes and empty output.
	KindSubprocessFailure ErrorKind = "subprocess_failure"
	// KindTimeout means the engine exceeded its wall-clock budget.
	KindTimeout ErrorKind = "timeout"
)

// ExtractionError is returned when no engine produced usable audio.
type ExtractionError struct {
	Kind   ErrorKind
	Engine string
	Err    error
}

func (e *ExtractionError) Error() string {
	if e.Kind == KindTimeout {
		return fmt.Sprintf("audio extraction timeout (%s): %v", e.Engine, e.Err)
	}
	return fmt.Sprintf("audio extraction failed (%s): %v", e.Engine, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// Observer is notified after every engine run.
type Observer func(engine string, err error)

// Extractor picks an engine by container type. webm recordings go straight to
// the command engine. Other containers try the library engine first and fall
// back to the command engine when it is unavailable, fails, or writes nothing.
type Extractor struct {
	library  Engine
	command  Engine
	logger   *slog.Logger
	observer Observer
}

// ExtractorOption configures an Extractor.
type ExtractorOption func(*Extractor)

// WithLibraryEngine sets the engine tried first for non-webm containers.
func WithLibraryEngine(e Engine) ExtractorOption {
	return func(x *Extractor) {
		x.library = e
	}
}

// WithObserver registers a callback invoked after each engine run.
func WithObserver(o Observer) ExtractorOption {
	return func(x *Extractor) {
		x.observer = o
	}
}

// NewExtractor creates an Extractor around the command engine.
func NewExtractor(command Engine, logger *slog.Logger, opts ...ExtractorOption) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	x := &Extractor{command: command, logger: logger}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// Extract writes the audio of videoPath to audioPath. On success audioPath
// exists and is non-empty.
func (x *Extractor) Extract(ctx context.Context, videoPath, audioPath string) error {
	if _, err := os.Stat(videoPath); err != nil {
		return &ExtractionError{Kind: KindSubprocessFailure, Engine: "input", Err: err}
	}

	ext := strings.ToLower(filepath.Ext(videoPath))
	if ext != ".webm" && ext != "" && x.library != nil {
		if !x.library.Available() {
			x.logger.Info("library engine unavailable, using command engine",
				slog.String("engine", x.library.Name()),
			)
		} else {
			err := x.run(ctx, x.library, videoPath, audioPath)
			if err == nil {
				return nil
			}
			x.logger.Warn("library extraction failed, falling back to command engine",
				slog.String("video", videoPath),
				slog.String("error", err.Error()),
			)
			_ = os.Remove(audioPath)
		}
	}

	return x.run(ctx, x.command, videoPath, audioPath)
}

func (x *Extractor) run(ctx context.Context, engine Engine, videoPath, audioPath string) error {
	err := engine.Extract(ctx, videoPath, audioPath)
	if err == nil {
		err = verifyOutput(audioPath)
	}
	if err != nil {
		var xerr *ExtractionError
		if !errors.As(err, &xerr) {
			err = &ExtractionError{Kind: KindSubprocessFailure, Engine: engine.Name(), Err: err}
		}
	}
	if x.observer != nil {
		x.observer(engine.Name(), err)
	}
	return err
}

// verifyOutput treats a missing or zero-byte file as a failed extraction.
func verifyOutput(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("output missing: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("output is empty: %s", path)
	}
	return nil
}
