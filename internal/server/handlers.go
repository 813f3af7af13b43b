package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/maauso/interview-feedback-api/internal/analysis"
	"github.com/maauso/interview-feedback-api/internal/feedback"
	"github.com/maauso/interview-feedback-api/internal/media"
)

const (
	// formOverhead is the multipart framing allowed on top of MaxUploadBytes.
	formOverhead = 1 << 20
	// maxFormMemory is how much of a multipart body is held in memory.
	maxFormMemory = 32 << 20
	// pingTimeout bounds the AI connection test.
	pingTimeout = 30 * time.Second
	// probeTimeout bounds the ffmpeg availability probe.
	probeTimeout = 5 * time.Second
)

// Analyzer runs one recording through the analysis pipeline.
type Analyzer interface {
	Analyze(ctx context.Context, req analysis.Request) *analysis.Outcome
	AIAvailable() bool
}

// Pinger sends a connectivity check to the AI backend.
type Pinger interface {
	Ping(ctx context.Context) (string, error)
}

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	analyzer      Analyzer
	pinger        Pinger
	probeFFmpeg   func(ctx context.Context) (string, error)
	libraryEngine func() bool
	logger        *slog.Logger
}

// HandlerOption is a function that configures a Handlers instance.
type HandlerOption func(*Handlers)

// WithPinger enables GET /status/ai. Without it the endpoint answers 503.
func WithPinger(p Pinger) HandlerOption {
	return func(h *Handlers) {
		h.pinger = p
	}
}

// WithFFmpegProbe sets the check used by GET /status to detect ffmpeg.
func WithFFmpegProbe(probe func(ctx context.Context) (string, error)) HandlerOption {
	return func(h *Handlers) {
		h.probeFFmpeg = probe
	}
}

// WithLibraryEngineCheck sets the check reporting whether the library
// extraction engine can run.
func WithLibraryEngineCheck(available func() bool) HandlerOption {
	return func(h *Handlers) {
		h.libraryEngine = available
	}
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(analyzer Analyzer, logger *slog.Logger, opts ...HandlerOption) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{
		analyzer: analyzer,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// Analyze handles POST /analyze requests. The body is a multipart form with a
// video_file part and an optional question_type field.
func (h *Handlers) Analyze(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, media.MaxUploadBytes+formOverhead)

	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeValidation(w, r, media.NewValidationError(media.ReasonTooLarge, err))
			return
		}
		h.writeValidation(w, r, media.NewValidationError(media.ReasonMissing, err))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("video_file")
	if err != nil {
		h.writeValidation(w, r, media.NewValidationError(media.ReasonMissing, err))
		return
	}
	defer func() { _ = file.Close() }()

	questionType := r.FormValue("question_type")
	if questionType == "" {
		questionType = string(feedback.QuestionGeneral)
	}

	out := h.analyzer.Analyze(r.Context(), analysis.Request{
		Payload:      file,
		DeclaredName: header.Filename,
		DeclaredSize: header.Size,
		QuestionType: questionType,
	})
	w.Header().Set("X-Run-ID", out.RunID)

	if !out.Success {
		writeError(w, out.HTTPStatus(), out.Message(), string(out.Category))
		return
	}

	writeJSON(w, http.StatusOK, AnalyzeResponse{
		Success:      true,
		Feedback:     out.Feedback,
		QuestionType: out.QuestionType,
		AnalysisType: string(out.AnalysisType),
	})
}

// Status handles GET /status requests.
func (h *Handlers) Status(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{AIConfigured: h.analyzer.AIAvailable()}

	if h.probeFFmpeg != nil {
		ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
		version, err := h.probeFFmpeg(ctx)
		cancel()
		if err != nil {
			h.logger.Warn("ffmpeg probe failed", slog.String("error", err.Error()))
		} else {
			resp.FFmpegAvailable = true
			resp.FFmpegVersion = version
		}
	}
	if h.libraryEngine != nil {
		resp.LibraryEngineAvailable = h.libraryEngine()
	}
	resp.SystemReady = resp.AIConfigured && resp.FFmpegAvailable

	writeJSON(w, http.StatusOK, resp)
}

// AIStatus handles GET /status/ai requests by sending a short prompt.
func (h *Handlers) AIStatus(w http.ResponseWriter, r *http.Request) {
	if h.pinger == nil {
		writeError(w, http.StatusServiceUnavailable, analysis.UnavailableMessage, string(analysis.AnalysisUnavailable))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
	defer cancel()

	text, err := h.pinger.Ping(ctx)
	if err != nil {
		category := analysis.ClassifyError(err)
		h.logger.Error("AI connection test failed",
			slog.String("request_id", RequestIDFromContext(r.Context())),
			slog.String("category", string(category)),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadGateway, category.Message(), string(category))
		return
	}

	writeJSON(w, http.StatusOK, AIStatusResponse{
		Success:  true,
		Message:  "AI connection is working",
		Response: text,
	})
}

func (h *Handlers) writeValidation(w http.ResponseWriter, r *http.Request, verr *media.ValidationError) {
	h.logger.Warn("upload rejected",
		slog.String("request_id", RequestIDFromContext(r.Context())),
		slog.String("reason", string(verr.Reason)),
		slog.String("error", verr.Error()),
	)
	writeError(w, http.StatusBadRequest, verr.Message, string(analysis.CategoryInvalidInput))
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Success: false,
		Error:   message,
		Code:    code,
	})
}
