// Package metrics exposes Prometheus instrumentation for the analysis pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "interview"

// Recorder records pipeline metrics. A nil *Recorder discards everything.
type Recorder struct {
	analyses    *prometheus.CounterVec
	failures    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	fileWait    *prometheus.HistogramVec
	extractions *prometheus.CounterVec
}

// New creates a Recorder and registers its collectors on reg.
// It panics if the collectors are already registered on reg.
func New(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		analyses: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analysis_total",
			Help:      "Completed analyses by analysis type.",
		}, []string{"analysis_type"}),
		failures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analysis_failures_total",
			Help:      "Failed analyses by error category.",
		}, []string{"category"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_duration_seconds",
			Help:      "Wall-clock time of an analysis request.",
			Buckets:   []float64{1, 2.5, 5, 10, 20, 30, 60, 120, 180},
		}, []string{"analysis_type"}),
		fileWait: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "remote_file_wait_seconds",
			Help:      "Time spent waiting for uploaded files to become ACTIVE.",
			Buckets:   prometheus.LinearBuckets(2, 4, 8),
		}, []string{"outcome"}),
		extractions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_extractions_total",
			Help:      "Audio extraction attempts by engine and result.",
		}, []string{"engine", "result"}),
	}
}

// AnalysisCompleted records a successful analysis.
func (r *Recorder) AnalysisCompleted(analysisType string, d time.Duration) {
	if r == nil {
		return
	}
	r.analyses.WithLabelValues(analysisType).Inc()
	r.duration.WithLabelValues(analysisType).Observe(d.Seconds())
}

// AnalysisFailed records a terminal failure. Validation rejections are
// recorded too, under their category.
func (r *Recorder) AnalysisFailed(category string, d time.Duration) {
	if r == nil {
		return
	}
	r.failures.WithLabelValues(category).Inc()
	r.duration.WithLabelValues("failed").Observe(d.Seconds())
}

// RemoteFileWait records how an upload handshake ended. It matches
// gemini.WaitObserver.
func (r *Recorder) RemoteFileWait(outcome string, waited time.Duration) {
	if r == nil {
		return
	}
	r.fileWait.WithLabelValues(outcome).Observe(waited.Seconds())
}

// AudioExtraction records one engine run. It matches audio.Observer.
func (r *Recorder) AudioExtraction(engine string, err error) {
	if r == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	r.extractions.WithLabelValues(engine, result).Inc()
}
