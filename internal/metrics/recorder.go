package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/RevCBH/flashrig/internal/events"
)

// Recorder turns flash events into Prometheus metrics. Subscribe its Handle
// method to the bus.
type Recorder struct {
	registry *prometheus.Registry

	runsTotal      *prometheus.CounterVec
	runDuration    *prometheus.HistogramVec
	stageDuration  *prometheus.HistogramVec
	stageFailures  *prometheus.CounterVec
	runCounter     prometheus.Gauge
	lastRunPercent prometheus.Gauge

	mu     sync.Mutex
	runs   map[string]runTiming
	stages map[string]stageTiming
}

type runTiming struct {
	mode    string
	started time.Time
}

type stageTiming struct {
	stage   string
	started time.Time
}

// NewRecorder creates a recorder with its own registry.
func NewRecorder() *Recorder {
	registry := prometheus.NewRegistry()

	r := &Recorder{
		registry: registry,
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flashrig_runs_total",
			Help: "Total number of flash runs by mode and result.",
		}, []string{"mode", "result"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "flashrig_run_duration_seconds",
			Help:    "Duration of flash runs.",
			Buckets: []float64{5, 10, 20, 30, 45, 60, 90, 120, 180, 300},
		}, []string{"mode", "result"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "flashrig_stage_duration_seconds",
			Help:    "Duration of pipeline stages.",
			Buckets: prometheus.DefBuckets,
		}, []string{"stage"}),
		stageFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flashrig_stage_failures_total",
			Help: "Total stage failures by stage and reason.",
		}, []string{"stage", "reason"}),
		runCounter: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "flashrig_run_counter",
			Help: "Persisted count of completed full (MCU and module) runs.",
		}),
		lastRunPercent: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "flashrig_last_run_progress_percent",
			Help: "Progress percentage reached by the most recent run.",
		}),
		runs:   make(map[string]runTiming),
		stages: make(map[string]stageTiming),
	}

	registry.MustRegister(r.runsTotal)
	registry.MustRegister(r.runDuration)
	registry.MustRegister(r.stageDuration)
	registry.MustRegister(r.stageFailures)
	registry.MustRegister(r.runCounter)
	registry.MustRegister(r.lastRunPercent)

	return r
}

// Registry returns the Prometheus registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// SetCounter seeds the run counter gauge (e.g. from persisted state).
func (r *Recorder) SetCounter(n int) {
	r.runCounter.Set(float64(n))
}

// Handle records e.
func (r *Recorder) Handle(e events.Event) {
	at := e.Time
	if at.IsZero() {
		at = time.Now()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	switch e.Type {
	case events.RunStarted:
		p, _ := e.Payload.(events.RunStartedPayload)
		r.runs[e.RunID] = runTiming{mode: p.Mode, started: at}

	case events.StageStarted:
		r.endStage(e.RunID, at)
		r.stages[e.RunID] = stageTiming{stage: e.Stage, started: at}

	case events.StageFailed:
		p, _ := e.Payload.(events.FailurePayload)
		r.stageFailures.WithLabelValues(e.Stage, p.Reason).Inc()

	case events.CounterUpdated:
		if p, ok := e.Payload.(events.CounterPayload); ok {
			r.runCounter.Set(float64(p.Counter))
		}

	case events.RunCompleted:
		r.endStage(e.RunID, at)
		p, _ := e.Payload.(events.RunCompletedPayload)
		result := "failed"
		if p.Success {
			result = "done"
		}
		mode := p.Mode
		run, ok := r.runs[e.RunID]
		if mode == "" {
			mode = run.mode
		}
		r.runsTotal.WithLabelValues(mode, result).Inc()
		if ok {
			r.runDuration.WithLabelValues(mode, result).Observe(at.Sub(run.started).Seconds())
			delete(r.runs, e.RunID)
		}
		r.lastRunPercent.Set(float64(p.Percent))
		logrus.Debugf("metrics: run %s %s", e.RunID, result)
	}
}

// endStage closes the open stage of a run. Caller holds r.mu.
func (r *Recorder) endStage(runID string, at time.Time) {
	st, ok := r.stages[runID]
	if !ok {
		return
	}
	r.stageDuration.WithLabelValues(st.stage).Observe(at.Sub(st.started).Seconds())
	delete(r.stages, runID)
}

// WriteTextfile writes the registry in the node-exporter textfile format.
// The file is replaced atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create metrics dir: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
