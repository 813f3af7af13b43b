// Package server provides the HTTP server for the interview feedback API.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

// AnalyzeResponse is the HTTP response for a successful analysis.
type AnalyzeResponse struct {
	Success bool `json:"success"`
	// Feedback is the model's text, or an explanation when analysis is unavailable.
	Feedback string `json:"feedback"`
	// QuestionType echoes the submitted question type.
	QuestionType string `json:"question_type"`
	// AnalysisType is video_direct, audio_fallback or unavailable.
	AnalysisType string `json:"analysis_type"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Success bool `json:"success"`
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error category for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}

// StatusResponse reports which parts of the pipeline can run.
type StatusResponse struct {
	AIConfigured           bool   `json:"ai_configured"`
	FFmpegAvailable        bool   `json:"ffmpeg_available"`
	FFmpegVersion          string `json:"ffmpeg_version,omitempty"`
	LibraryEngineAvailable bool   `json:"library_engine_available"`
	SystemReady            bool   `json:"system_ready"`
}

// AIStatusResponse is the HTTP response for a successful AI connection test.
type AIStatusResponse struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	Response string `json:"response"`
}
