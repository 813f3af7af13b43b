package audio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/xfrr/goffmpeg"
	"github.com/xfrr/goffmpeg/transcoder"
)

// defaultStopGrace is how long a stopped transcoder gets to exit before it is killed.
const defaultStopGrace = 2 * time.Second

// LibraryEngine extracts audio through the goffmpeg transcoder, which probes
// the container with ffprobe before encoding.
//
// goffmpeg resolves its binaries through PATH. The engine reports itself
// unavailable unless those resolve to the configured ffmpeg and ffprobe.
type LibraryEngine struct {
	ffmpegPath  string
	ffprobePath string
	timeout     time.Duration
	stopGrace   time.Duration
	params      Params
}

// NewLibraryEngine creates a LibraryEngine. Empty paths default to the
// binaries found via PATH.
func NewLibraryEngine(ffmpegPath, ffprobePath string, timeout time.Duration) *LibraryEngine {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &LibraryEngine{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		timeout:     timeout,
		stopGrace:   defaultStopGrace,
		params:      DefaultParams(),
	}
}

// Name implements Engine.
func (e *LibraryEngine) Name() string { return "goffmpeg" }

// Available implements Engine. The transcoder needs both ffmpeg and ffprobe.
func (e *LibraryEngine) Available() bool {
	_, err := e.binaries(context.Background())
	return err == nil
}

func (e *LibraryEngine) binaries(ctx context.Context) (goffmpeg.Configuration, error) {
	cfg, err := goffmpeg.Configure(ctx)
	if err != nil {
		return goffmpeg.Configuration{}, fmt.Errorf("%w: %w", ErrEngineUnavailable, err)
	}
	if err := sameBinary(e.ffmpegPath, cfg.FFmpegBinPath()); err != nil {
		return goffmpeg.Configuration{}, err
	}
	if err := sameBinary(e.ffprobePath, cfg.FFprobeBinPath()); err != nil {
		return goffmpeg.Configuration{}, err
	}
	return cfg, nil
}

// sameBinary checks that the configured binary is the one goffmpeg resolved.
func sameBinary(configured, resolved string) error {
	path, err := exec.LookPath(configured)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrEngineUnavailable, err)
	}
	want, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrEngineUnavailable, err)
	}
	got, err := os.Stat(resolved)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrEngineUnavailable, err)
	}
	if !os.SameFile(want, got) {
		return fmt.Errorf("%w: PATH resolves %s, configured %s", ErrEngineUnavailable, resolved, path)
	}
	return nil
}

// Extract implements Engine. The transcoder writes to a sibling partial file
// that is renamed to audioPath only after a clean exit. The partial file is
// gone by the time Extract returns.
func (e *LibraryEngine) Extract(ctx context.Context, videoPath, audioPath string) error {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	bins, err := e.binaries(ctx)
	if err != nil {
		return err
	}

	ext := filepath.Ext(audioPath)
	partial := strings.TrimSuffix(audioPath, ext) + ".partial" + ext

	trans := new(transcoder.Transcoder)
	trans.SetConfiguration(bins)
	if err := trans.Initialize(videoPath, partial); err != nil {
		return fmt.Errorf("initialize transcoder: %w", err)
	}

	mf := trans.MediaFile()
	mf.SetSkipVideo(true)
	mf.SetAudioCodec(e.params.Codec)
	mf.SetAudioRate(e.params.SampleRate)
	mf.SetAudioBitRate(e.params.Bitrate)
	mf.SetAudioChannels(e.params.Channels)

	done := trans.Run(false)
	select {
	case err := <-done:
		if err != nil {
			_ = os.Remove(partial)
			return fmt.Errorf("transcode: %w", err)
		}
		if err := os.Rename(partial, audioPath); err != nil {
			_ = os.Remove(partial)
			return fmt.Errorf("move transcoded audio: %w", err)
		}
		return nil
	case <-ctx.Done():
		e.stop(trans, done)
		_ = os.Remove(partial)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return &ExtractionError{Kind: KindTimeout, Engine: e.Name(), Err: ctx.Err()}
		}
		return ctx.Err()
	}
}

// stop asks ffmpeg to quit, kills it after the grace period and waits for exit.
func (e *LibraryEngine) stop(trans *transcoder.Transcoder, done <-chan error) {
	_ = trans.Stop()
	select {
	case <-done:
		return
	case <-time.After(e.stopGrace):
	}
	if proc := trans.Process(); proc != nil && proc.Process != nil {
		_ = proc.Process.Kill()
	}
	<-done
}
