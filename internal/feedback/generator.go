package feedback

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/maauso/interview-feedback-api/internal/gemini"
)

// ErrFileNotActive is returned when generation is attempted on a handle the
// backend has not finished processing.
var ErrFileNotActive = errors.New("feedback: remote file is not active")

// PingPrompt is the connectivity check sent by Ping.
const PingPrompt = "Hello, please respond with 'Gemini is working!' and nothing else."

// ContentGenerator runs a prompt, optionally with an uploaded file as context.
type ContentGenerator interface {
	Generate(ctx context.Context, model, prompt string, file *gemini.RemoteFile) (string, error)
}

// GenerationError wraps a backend failure without changing its text, so the
// original status markers remain visible to classification.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string { return e.Err.Error() }

func (e *GenerationError) Unwrap() error { return e.Err }

// Generator produces interview feedback from an ACTIVE remote file.
type Generator struct {
	backend ContentGenerator
	model   string
	logger  *slog.Logger
}

// NewGenerator creates a Generator for the given model.
func NewGenerator(backend ContentGenerator, model string, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{backend: backend, model: model, logger: logger}
}

// Model returns the configured model id.
func (g *Generator) Model() string { return g.model }

// Generate builds the prompt for (questionType, modality) and returns the
// model's response text verbatim.
func (g *Generator) Generate(ctx context.Context, questionType string, file *gemini.RemoteFile, modality Modality) (string, error) {
	if !file.Active() {
		return "", ErrFileNotActive
	}

	start := time.Now()
	text, err := g.backend.Generate(ctx, g.model, Prompt(questionType, modality), file)
	if err != nil {
		return "", &GenerationError{Err: err}
	}

	g.logger.Debug("feedback generated",
		slog.String("model", g.model),
		slog.String("modality", string(modality)),
		slog.String("file", file.Name),
		slog.Duration("duration", time.Since(start)),
	)
	return text, nil
}

// Ping sends a short text-only prompt to confirm the backend answers.
func (g *Generator) Ping(ctx context.Context) (string, error) {
	text, err := g.backend.Generate(ctx, g.model, PingPrompt, nil)
	if err != nil {
		return "", &GenerationError{Err: err}
	}
	return text, nil
}
