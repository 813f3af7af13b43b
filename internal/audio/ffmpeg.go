package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// probeTimeout bounds the `ffmpeg -version` availability check.
const probeTimeout = 5 * time.Second

// CommandEngine extracts audio by running the ffmpeg CLI.
type CommandEngine struct {
	// ffmpegPath is the path to the ffmpeg binary. Defaults to "ffmpeg".
	ffmpegPath string
	timeout    time.Duration
	params     Params
}

// NewCommandEngine creates a CommandEngine.
// If ffmpegPath is empty, it defaults to "ffmpeg" (found via PATH).
// A non-positive timeout falls back to DefaultTimeout.
func NewCommandEngine(ffmpegPath string, timeout time.Duration) *CommandEngine {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &CommandEngine{ffmpegPath: ffmpegPath, timeout: timeout, params: DefaultParams()}
}

// Name implements Engine.
func (e *CommandEngine) Name() string { return "ffmpeg" }

// Available implements Engine by resolving the binary.
func (e *CommandEngine) Available() bool {
	_, err := exec.LookPath(e.ffmpegPath)
	return err == nil
}

// Extract strips the video stream and encodes the audio track as mp3.
func (e *CommandEngine) Extract(ctx context.Context, videoPath, audioPath string) error {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	err := e.runFFmpeg(ctx, e.args(videoPath, audioPath))
	if err == nil {
		return nil
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &ExtractionError{Kind: KindTimeout, Engine: e.Name(), Err: fmt.Errorf("exceeded %s: %w", e.timeout, err)}
	}
	return &ExtractionError{Kind: KindSubprocessFailure, Engine: e.Name(), Err: err}
}

func (e *CommandEngine) args(videoPath, audioPath string) []string {
	return []string{
		"-i", videoPath,
		"-vn",
		"-acodec", e.params.Codec,
		"-ab", e.params.Bitrate,
		"-ac", strconv.Itoa(e.params.Channels),
		"-ar", strconv.Itoa(e.params.SampleRate),
		"-y", // Overwrite output file without asking
		audioPath,
	}
}

// runFFmpeg executes ffmpeg with the given arguments and returns an error
// containing stderr output if the command fails.
func (e *CommandEngine) runFFmpeg(ctx context.Context, args []string) error {
	// #nosec G204 - ffmpegPath is set by the application, not user input
	cmd := exec.CommandContext(ctx, e.ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("ffmpeg cancelled: %w", ctx.Err())
		}
		return &FFmpegError{
			Args:   args,
			Stderr: stderr.String(),
			Err:    err,
		}
	}

	return nil
}

// FFmpegError represents an error from running ffmpeg, including the stderr output.
type FFmpegError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *FFmpegError) Error() string {
	return fmt.Sprintf("ffmpeg error: %v\nargs: %v\nstderr: %s", e.Err, e.Args, e.Stderr)
}

func (e *FFmpegError) Unwrap() error {
	return e.Err
}

// ProbeFFmpeg runs `ffmpeg -version` and returns the first line of its output.
func ProbeFFmpeg(ctx context.Context, ffmpegPath string) (string, error) {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	// #nosec G204 - ffmpegPath is set by the application, not user input
	out, err := exec.CommandContext(ctx, ffmpegPath, "-version").Output()
	if err != nil {
		return "", fmt.Errorf("probe ffmpeg: %w", err)
	}
	line, _, _ := strings.Cut(string(out), "\n")
	return strings.TrimSpace(line), nil
}
