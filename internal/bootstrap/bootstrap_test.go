package bootstrap

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/interview-feedback-api/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Port:              8080,
		GeminiModel:       config.DefaultGeminiModel,
		DeleteRemoteFiles: true,
		TempDir:           t.TempDir(),
		FFmpegPath:        "ffmpeg",
		FFprobePath:       "ffprobe",
		ExtractionTimeout: 30 * time.Second,
		FilePollInterval:  2 * time.Second,
		FilePollTimeout:   30 * time.Second,
		AnalysisTimeout:   time.Minute,
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewDependencies_WithoutAPIKey(t *testing.T) {
	deps, err := NewDependencies(context.Background(), testConfig(t), discardLogger())
	require.NoError(t, err)

	assert.False(t, deps.Analyzer.AIAvailable())
	assert.Nil(t, deps.Generator)
	assert.NotNil(t, deps.LibraryEngine)
	assert.Len(t, deps.HandlerOptions(), 2)
}

func TestNewDependencies_WithAPIKey(t *testing.T) {
	cfg := testConfig(t)
	cfg.GeminiAPIKey = "test-key"

	deps, err := NewDependencies(context.Background(), cfg, discardLogger())
	require.NoError(t, err)

	assert.True(t, deps.Analyzer.AIAvailable())
	require.NotNil(t, deps.Generator)
	assert.Equal(t, config.DefaultGeminiModel, deps.Generator.Model())
	assert.Len(t, deps.HandlerOptions(), 3)
}

func TestNewDependencies_MetricsHandler(t *testing.T) {
	deps, err := NewDependencies(context.Background(), testConfig(t), discardLogger())
	require.NoError(t, err)

	deps.Metrics.AnalysisCompleted("unavailable", time.Second)

	rec := httptest.NewRecorder()
	deps.MetricsHandler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `interview_analysis_total{analysis_type="unavailable"} 1`)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
