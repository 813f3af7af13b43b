// Package bootstrap provides dependency initialization for the interview feedback API.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/maauso/interview-feedback-api/internal/analysis"
	"github.com/maauso/interview-feedback-api/internal/audio"
	"github.com/maauso/interview-feedback-api/internal/config"
	"github.com/maauso/interview-feedback-api/internal/feedback"
	"github.com/maauso/interview-feedback-api/internal/gemini"
	"github.com/maauso/interview-feedback-api/internal/metrics"
	"github.com/maauso/interview-feedback-api/internal/server"
	"github.com/maauso/interview-feedback-api/internal/storage"
)

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	Analyzer *analysis.Service
	// Generator is nil when no AI backend is configured.
	Generator      *feedback.Generator
	LibraryEngine  *audio.LibraryEngine
	Metrics        *metrics.Recorder
	MetricsHandler http.Handler
	ffmpegPath     string
}

// NewDependencies creates and initializes all dependencies for the application.
// Backend availability is resolved here, once.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	store, err := initStorage(cfg, logger)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := metrics.New(reg)

	library := audio.NewLibraryEngine(cfg.FFmpegPath, cfg.FFprobePath, cfg.ExtractionTimeout)
	extractor := audio.NewExtractor(
		audio.NewCommandEngine(cfg.FFmpegPath, cfg.ExtractionTimeout),
		logger,
		audio.WithLibraryEngine(library),
		audio.WithObserver(recorder.AudioExtraction),
	)

	opts := []analysis.Option{
		analysis.WithMetrics(recorder),
		analysis.WithTimeout(cfg.AnalysisTimeout),
		analysis.WithArchive(cfg.S3Enabled()),
	}

	var generator *feedback.Generator
	if cfg.GeminiEnabled() {
		client, err := gemini.NewClient(ctx, cfg.GeminiAPIKey)
		if err != nil {
			return nil, fmt.Errorf("create Gemini client: %w", err)
		}
		uploader := gemini.NewUploader(client, logger,
			gemini.WithPollInterval(cfg.FilePollInterval),
			gemini.WithPollTimeout(cfg.FilePollTimeout),
			gemini.WithWaitObserver(recorder.RemoteFileWait),
			gemini.WithDeleteRemote(cfg.DeleteRemoteFiles),
		)
		generator = feedback.NewGenerator(client, cfg.GeminiModel, logger)
		opts = append(opts, analysis.WithBackend(uploader, generator))
		logger.Info("Gemini backend configured", slog.String("model", cfg.GeminiModel))
	} else {
		logger.Warn("GEMINI_API_KEY not set, analysis will report unavailable")
	}

	return &Dependencies{
		Analyzer:       analysis.NewService(store, extractor, logger, opts...),
		Generator:      generator,
		LibraryEngine:  library,
		Metrics:        recorder,
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		ffmpegPath:     cfg.FFmpegPath,
	}, nil
}

// HandlerOptions returns the server options backed by these dependencies.
func (d *Dependencies) HandlerOptions() []server.HandlerOption {
	opts := []server.HandlerOption{
		server.WithFFmpegProbe(func(ctx context.Context) (string, error) {
			return audio.ProbeFFmpeg(ctx, d.ffmpegPath)
		}),
		server.WithLibraryEngineCheck(d.LibraryEngine.Available),
	}
	if d.Generator != nil {
		opts = append(opts, server.WithPinger(d.Generator))
	}
	return opts
}

// initStorage creates the appropriate storage backend based on configuration.
func initStorage(cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	if cfg.S3Enabled() {
		s3Cfg := storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			Prefix:          cfg.S3Prefix,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}
		s3Store, err := storage.NewS3Storage(cfg.TempDir, s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 recording archive configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
		)
		return s3Store, nil
	}

	localStore, err := storage.NewLocalStorage(cfg.TempDir)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Info("local storage configured",
		slog.String("temp_dir", cfg.TempDir),
	)
	return localStore, nil
}
