// Package metrics holds the prometheus registry for pathload runs.
//
// Labels are bounded: kind is one of file|http|s3|ssm and outcome is one of
// the buckets returned by pathload.Outcome. Targets are never labels.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/keithlinneman/pathload/internal/version"
)

type LoadMetrics struct {
	reg       *prometheus.Registry
	inflight  prometheus.Gauge
	loads     *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	bytes     *prometheus.HistogramVec
	buildInfo *prometheus.GaugeVec
	lastRun   prometheus.Gauge
}

// New returns a fresh registry with the Go/process collectors and the load
// metrics registered.
func New() *LoadMetrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &LoadMetrics{
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pathload_inflight_loads",
			Help: "Current number of loads in progress",
		}),
		loads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pathload_loads_total",
			Help: "Total loads by target kind and outcome",
		}, []string{"kind", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pathload_load_duration_seconds",
			Help:    "Load latency by target kind",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"kind"}),
		bytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pathload_load_bytes",
			Help:    "Size of successfully loaded content by target kind",
			Buckets: prometheus.ExponentialBuckets(256, 4, 10),
		}, []string{"kind"}),
		buildInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "build_info",
			Help: "Build metadata (value is always 1)",
		}, []string{"app", "version", "commit", "build_id", "vcs_dirty", "go_version"}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pathload_last_run_timestamp_seconds",
			Help: "Unix timestamp of when the metrics were last written",
		}),
	}
	reg.MustRegister(m.inflight, m.loads, m.duration, m.bytes, m.buildInfo, m.lastRun)
	m.reg = reg
	return m
}

func (m *LoadMetrics) LoadStarted(kind string) {
	m.inflight.Inc()
}

func (m *LoadMetrics) LoadFinished(kind, outcome string, n int, d time.Duration) {
	m.inflight.Dec()
	m.loads.WithLabelValues(kind, outcome).Inc()
	m.duration.WithLabelValues(kind).Observe(d.Seconds())
	if outcome == "ok" {
		m.bytes.WithLabelValues(kind).Observe(float64(n))
	}
}

// set once at startup.
func (m *LoadMetrics) SetBuildInfo(vi version.Info) {
	dirty := "unknown"
	if vi.VCSDirty != nil {
		dirty = strconv.FormatBool(*vi.VCSDirty)
	}
	m.buildInfo.With(prometheus.Labels{
		"app":        version.AppName,
		"version":    vi.Version,
		"commit":     vi.Commit,
		"build_id":   vi.BuildId,
		"vcs_dirty":  dirty,
		"go_version": vi.GoVersion,
	}).Set(1)
}

func (m *LoadMetrics) Registry() *prometheus.Registry { return m.reg }

// WriteTextfile writes the registry in the text exposition format for the
// node_exporter textfile collector. The write is atomic.
func (m *LoadMetrics) WriteTextfile(path string) error {
	m.lastRun.SetToCurrentTime()
	return prometheus.WriteToTextfile(path, m.reg)
}
