// Package metrics exports run outcomes for the node exporter textfile collector.
package metrics

import (
	"os"
	"path/filepath"
	"time"

	"CSU/internal/model"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder collects the metrics of the runs performed by this process.
type Recorder struct {
	registry *prometheus.Registry

	runsTotal       *prometheus.CounterVec
	runDuration     *prometheus.HistogramVec
	scriptsTotal    *prometheus.CounterVec
	patchedFiles    prometheus.Counter
	restartRequired prometheus.Gauge
	lastSuccess     prometheus.Gauge
}

// NewRecorder returns a Recorder with its own registry.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		runsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "csu_runs_total",
			Help: "Provisioning runs by configuration kind, backend and outcome",
		}, []string{"kind", "backend", "status"}),
		runDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "csu_run_duration_seconds",
			Help:    "Wall time of provisioning runs",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 900, 1800},
		}, []string{"kind", "backend"}),
		scriptsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "csu_scripts_total",
			Help: "SQL scripts and statement batches executed, by result",
		}, []string{"result"}),
		patchedFiles: factory.NewCounter(prometheus.CounterOpts{
			Name: "csu_config_files_patched_total",
			Help: "Configuration files rewritten",
		}),
		restartRequired: factory.NewGauge(prometheus.GaugeOpts{
			Name: "csu_service_restart_required",
			Help: "1 when the last run stopped the service",
		}),
		lastSuccess: factory.NewGauge(prometheus.GaugeOpts{
			Name: "csu_last_success_timestamp_seconds",
			Help: "Unix time of the last successful run",
		}),
	}
}

// ObserveScript counts one executed script.
func (r *Recorder) ObserveScript(exitCode int) {
	result := "ok"
	if exitCode != 0 {
		result = "failed"
	}
	r.scriptsTotal.WithLabelValues(result).Inc()
}

// ObserveRun records a finished run. An empty backend is reported as "none".
func (r *Recorder) ObserveRun(kind, backend string, state *model.State, elapsed time.Duration, finished time.Time) {
	if backend == "" {
		backend = "none"
	}

	r.runsTotal.WithLabelValues(kind, backend, state.Outcome.Status.String()).Inc()
	r.runDuration.WithLabelValues(kind, backend).Observe(elapsed.Seconds())
	r.patchedFiles.Add(float64(len(state.PatchedTargets)))

	if state.RestartRequired {
		r.restartRequired.Set(1)
	} else {
		r.restartRequired.Set(0)
	}
	if state.Outcome.Status == model.StatusSucceeded {
		r.lastSuccess.Set(float64(finished.Unix()))
	}
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// WriteTextfile writes the metrics to path; an empty path is a no-op.
func (r *Recorder) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "failed to create metrics directory for %s", path)
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return errors.Wrapf(err, "failed to write metrics textfile %s", path)
	}
	return nil
}
