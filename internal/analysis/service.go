package analysis

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/maauso/interview-feedback-api/internal/feedback"
	"github.com/maauso/interview-feedback-api/internal/gemini"
	"github.com/maauso/interview-feedback-api/internal/media"
	"github.com/maauso/interview-feedback-api/internal/storage"
)

// DefaultTimeout bounds a whole analysis request.
const DefaultTimeout = 3 * time.Minute

// UnavailableMessage is returned as feedback when no AI backend is configured.
const UnavailableMessage = "AI analysis is not available. Please check your API configuration."

// AnalysisType tags how the feedback was produced.
type AnalysisType string

const (
	AnalysisVideoDirect   AnalysisType = "video_direct"
	AnalysisAudioFallback AnalysisType = "audio_fallback"
	AnalysisUnavailable   AnalysisType = "unavailable"
)

// Uploader hands local files to the AI backend and waits until they are usable.
type Uploader interface {
	UploadAndWait(ctx context.Context, localPath string) (*gemini.RemoteFile, error)
	Discard(file *gemini.RemoteFile)
}

// Generator produces feedback text from an ACTIVE remote file.
type Generator interface {
	Generate(ctx context.Context, questionType string, file *gemini.RemoteFile, modality feedback.Modality) (string, error)
}

// AudioExtractor writes the audio track of a video to audioPath.
type AudioExtractor interface {
	Extract(ctx context.Context, videoPath, audioPath string) error
}

// Metrics receives one call per finished analysis.
type Metrics interface {
	AnalysisCompleted(analysisType string, d time.Duration)
	AnalysisFailed(category string, d time.Duration)
}

// Request is one uploaded recording.
type Request struct {
	Payload      io.Reader
	DeclaredName string
	DeclaredSize int64
	QuestionType string
}

// Outcome is the result of one analysis run. It is never persisted.
type Outcome struct {
	RunID        string
	Success      bool
	Feedback     string
	QuestionType string
	AnalysisType AnalysisType
	// Category is set on failure only.
	Category Category
	// Err is the raw failure for logging. It must not be shown to users.
	Err    error
	States []State
}

// Message returns the user-facing text for a failed outcome.
func (o *Outcome) Message() string {
	var verr *media.ValidationError
	if errors.As(o.Err, &verr) {
		return verr.Message
	}
	return o.Category.Message()
}

// HTTPStatus returns the response status for the outcome.
func (o *Outcome) HTTPStatus() int {
	if o.Success {
		return http.StatusOK
	}
	var verr *media.ValidationError
	if errors.As(o.Err, &verr) {
		return http.StatusBadRequest
	}
	return o.Category.HTTPStatus()
}

// FallbackError is returned when both the video attempt and the audio
// fallback failed. It keeps both causes.
type FallbackError struct {
	Video error
	Audio error
}

func (e *FallbackError) Error() string {
	return fmt.Sprintf("%s: video: %v; audio: %v", bothFailedSentinel, e.Video, e.Audio)
}

func (e *FallbackError) Unwrap() []error {
	return []error{e.Video, e.Audio}
}

// summary is the text the failure is classified by. Encoder output from the
// audio side stays out of it.
func (e *FallbackError) summary() string {
	return fmt.Sprintf("%s: video: %v", bothFailedSentinel, e.Video)
}

// Service drives a request through VALIDATING, STORED, VIDEO_ATTEMPT and, at
// most once, AUDIO_FALLBACK. Every artifact it acquires is released before
// Analyze returns.
type Service struct {
	validator *media.Validator
	store     storage.Storage
	extractor AudioExtractor
	uploader  Uploader
	generator Generator
	metrics   Metrics
	logger    *slog.Logger
	timeout   time.Duration
	archive   bool
}

// Option configures a Service.
type Option func(*Service)

// WithBackend enables AI analysis. Without it every run ends as unavailable.
func WithBackend(u Uploader, g Generator) Option {
	return func(s *Service) {
		s.uploader = u
		s.generator = g
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithTimeout sets the request-level timeout.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithArchive copies every stored recording to S3 before analysis.
func WithArchive(enabled bool) Option {
	return func(s *Service) {
		s.archive = enabled
	}
}

// NewService creates a Service.
func NewService(store storage.Storage, extractor AudioExtractor, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		validator: media.NewValidator(),
		store:     store,
		extractor: extractor,
		metrics:   nopMetrics{},
		logger:    logger,
		timeout:   DefaultTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AIAvailable reports whether a backend was configured.
func (s *Service) AIAvailable() bool {
	return s.uploader != nil && s.generator != nil
}

// Analyze runs the pipeline for req. It always returns an Outcome; failures
// are described by Outcome.Category and Outcome.Err.
func (s *Service) Analyze(ctx context.Context, req Request) *Outcome {
	if req.QuestionType == "" {
		req.QuestionType = string(feedback.QuestionGeneral)
	}

	run := newRun(req.QuestionType)
	logger := s.logger.With(slog.String("run_id", run.ID))

	out := s.execute(ctx, run, req, logger)
	out.RunID = run.ID
	out.QuestionType = req.QuestionType
	out.States = run.History

	elapsed := time.Since(run.StartedAt)
	if out.Success {
		s.metrics.AnalysisCompleted(string(out.AnalysisType), elapsed)
		logger.Info("analysis completed",
			slog.String("analysis_type", string(out.AnalysisType)),
			slog.String("question_type", req.QuestionType),
			slog.Duration("duration", elapsed),
		)
		return out
	}

	out.Category = ClassifyError(out.Err)
	var verr *media.ValidationError
	if errors.As(out.Err, &verr) {
		out.Category = CategoryInvalidInput
	}
	s.metrics.AnalysisFailed(string(out.Category), elapsed)
	logger.Error("analysis failed",
		slog.String("category", string(out.Category)),
		slog.String("error", out.Err.Error()),
		slog.Duration("duration", elapsed),
	)
	return out
}

func (s *Service) execute(ctx context.Context, run *Run, req Request, logger *slog.Logger) *Outcome {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var (
		video    *storage.Artifact
		videoErr error
		out      *Outcome
	)
	defer func() { s.release(video, logger) }()

	for !run.IsTerminal() {
		switch run.State {
		case StateValidating:
			var err error
			video, err = s.stage(ctx, req, logger)
			if err != nil {
				out = s.fail(run, err, logger)
				continue
			}
			s.advance(run, StateStored, logger)

		case StateStored:
			if s.archive {
				s.archiveVideo(ctx, run.ID, video, logger)
			}
			if !s.AIAvailable() {
				s.advance(run, StateFailed, logger)
				out = &Outcome{Success: true, Feedback: UnavailableMessage, AnalysisType: AnalysisUnavailable}
				continue
			}
			s.advance(run, StateVideoAttempt, logger)

		case StateVideoAttempt:
			text, err := s.attempt(ctx, run.QuestionType, video.Path, feedback.ModalityVideo)
			if err == nil {
				s.advance(run, StateSuccess, logger)
				out = &Outcome{Success: true, Feedback: text, AnalysisType: AnalysisVideoDirect}
				continue
			}
			logger.Warn("video analysis failed, falling back to audio",
				slog.String("error", err.Error()),
			)
			videoErr = err
			s.advance(run, StateAudioFallback, logger)

		case StateAudioFallback:
			text, err := s.fallback(ctx, run.QuestionType, video, logger)
			if err == nil {
				s.advance(run, StateSuccess, logger)
				out = &Outcome{Success: true, Feedback: text, AnalysisType: AnalysisAudioFallback}
				continue
			}
			out = s.fail(run, &FallbackError{Video: videoErr, Audio: err}, logger)
		}
	}

	if out == nil {
		out = &Outcome{Err: fmt.Errorf("run ended in %s without an outcome", run.State)}
	}
	return out
}

// stage validates the upload and writes it to a fresh video artifact.
func (s *Service) stage(ctx context.Context, req Request, logger *slog.Logger) (*storage.Artifact, error) {
	if req.Payload == nil {
		return nil, media.NewValidationError(media.ReasonMissing, nil)
	}

	payload := bufio.NewReader(req.Payload)
	_, peekErr := payload.Peek(1)
	if peekErr != nil && !errors.Is(peekErr, io.EOF) {
		return nil, fmt.Errorf("read upload: %w", peekErr)
	}
	if err := s.validator.Validate(req.DeclaredName, req.DeclaredSize, peekErr == nil); err != nil {
		return nil, err
	}

	video, err := s.store.Acquire(storage.KindVideo, media.StorageExtension(req.DeclaredName))
	if err != nil {
		return nil, fmt.Errorf("acquire video artifact: %w", err)
	}

	n, err := s.store.Write(ctx, video, io.LimitReader(payload, media.MaxUploadBytes+1))
	if err == nil && n > media.MaxUploadBytes {
		err = media.NewValidationError(media.ReasonTooLarge, fmt.Errorf("payload is %d bytes", n))
	}
	if err != nil {
		s.release(video, logger)
		return nil, err
	}

	logger.Info("recording stored",
		slog.String("path", video.Path),
		slog.Int64("size", n),
	)
	return video, nil
}

// attempt uploads path, generates feedback for it and discards the remote file.
func (s *Service) attempt(ctx context.Context, questionType, path string, modality feedback.Modality) (string, error) {
	file, err := s.uploader.UploadAndWait(ctx, path)
	if err != nil {
		return "", fmt.Errorf("%s upload: %w", modality, err)
	}
	defer s.uploader.Discard(file)

	text, err := s.generator.Generate(ctx, questionType, file, modality)
	if err != nil {
		return "", fmt.Errorf("%s generate: %w", modality, err)
	}
	return text, nil
}

// fallback extracts audio from video and analyses it. The audio artifact is
// released before returning.
func (s *Service) fallback(ctx context.Context, questionType string, video *storage.Artifact, logger *slog.Logger) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	audio, err := s.store.Acquire(storage.KindAudio, ".mp3")
	if err != nil {
		return "", fmt.Errorf("acquire audio artifact: %w", err)
	}
	defer s.release(audio, logger)

	if err := s.extractor.Extract(ctx, video.Path, audio.Path); err != nil {
		return "", fmt.Errorf("extract audio: %w", err)
	}

	return s.attempt(ctx, questionType, audio.Path, feedback.ModalityAudio)
}

// archiveVideo copies the recording to S3. Failures never affect the run.
func (s *Service) archiveVideo(ctx context.Context, runID string, video *storage.Artifact, logger *slog.Logger) {
	r, err := s.store.Open(ctx, video)
	if err != nil {
		logger.Warn("archive skipped", slog.String("error", err.Error()))
		return
	}
	defer func() { _ = r.Close() }()

	url, err := s.store.UploadToS3(ctx, runID+media.Extension(video.Path), r)
	if err != nil {
		if !errors.Is(err, storage.ErrS3NotConfigured) {
			logger.Warn("archive upload failed", slog.String("error", err.Error()))
		}
		return
	}
	logger.Info("recording archived", slog.String("url", url))
}

func (s *Service) fail(run *Run, err error, logger *slog.Logger) *Outcome {
	s.advance(run, StateFailed, logger)
	return &Outcome{Success: false, Err: err}
}

func (s *Service) advance(run *Run, to State, logger *slog.Logger) {
	from := run.State
	if err := run.TransitionTo(to); err != nil {
		logger.Error("invalid run transition",
			slog.String("from", string(from)),
			slog.String("to", string(to)),
		)
		run.State = StateFailed
		run.History = append(run.History, StateFailed)
	}
}

func (s *Service) release(a *storage.Artifact, logger *slog.Logger) {
	if a == nil {
		return
	}
	if err := s.store.Release(a); err != nil {
		logger.Warn("failed to release artifact",
			slog.String("path", a.Path),
			slog.String("error", err.Error()),
		)
	}
}

type nopMetrics struct{}

func (nopMetrics) AnalysisCompleted(string, time.Duration) {}
func (nopMetrics) AnalysisFailed(string, time.Duration)    {}
