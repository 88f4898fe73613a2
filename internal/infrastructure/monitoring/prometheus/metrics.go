package prometheus

import (
	"strconv"
	"time"
)

// AppMetrics is the metric set shared by the apiserver, worker and CLI.
// Methods are safe on a nil receiver so callers can run without metrics.
type AppMetrics struct {
	HTTPRequestsTotal   CounterVec
	HTTPRequestDuration HistogramVec
	HTTPActiveRequests  GaugeVec

	BinComputationsTotal CounterVec
	BinComputeDuration   HistogramVec
	BinGroups            HistogramVec
	LadderPrecompute     HistogramVec

	MessagesTotal     CounterVec
	InstructionsTotal CounterVec
	SessionsActive    GaugeVec
	DatasetRecords    GaugeVec

	CacheHitsTotal   CounterVec
	CacheMissesTotal CounterVec

	ErrorsTotal CounterVec
}

var (
	DefaultHTTPDurationBuckets = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5}
	DefaultBinDurationBuckets  = []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5}
	DefaultGroupCountBuckets   = []float64{1, 10, 50, 100, 250, 500, 1000, 2000}
)

func NewAppMetrics(c MetricsCollector) *AppMetrics {
	return &AppMetrics{
		HTTPRequestsTotal:   c.RegisterCounter("http_requests_total", "HTTP requests served", "method", "route", "status_code"),
		HTTPRequestDuration: c.RegisterHistogram("http_request_duration_seconds", "HTTP request latency", DefaultHTTPDurationBuckets, "method", "route"),
		HTTPActiveRequests:  c.RegisterGauge("http_active_requests", "In-flight HTTP requests"),

		BinComputationsTotal: c.RegisterCounter("bin_computations_total", "Bin layers served", "level", "source"),
		BinComputeDuration:   c.RegisterHistogram("bin_compute_duration_seconds", "Time to produce a bin layer", DefaultBinDurationBuckets, "source"),
		BinGroups:            c.RegisterHistogram("bin_groups", "Bin groups per layer", DefaultGroupCountBuckets, "level"),
		LadderPrecompute:     c.RegisterHistogram("ladder_precompute_duration_seconds", "Whole-ladder precompute time", DefaultBinDurationBuckets),

		MessagesTotal:     c.RegisterCounter("messages_total", "Chat messages received", "source", "status"),
		InstructionsTotal: c.RegisterCounter("instructions_applied_total", "Instructions applied", "kind"),
		SessionsActive:    c.RegisterGauge("sessions_active", "Live explorer sessions"),
		DatasetRecords:    c.RegisterGauge("dataset_records", "Records in the loaded dataset", "kind"),

		CacheHitsTotal:   c.RegisterCounter("cache_hits_total", "Cache hits", "cache"),
		CacheMissesTotal: c.RegisterCounter("cache_misses_total", "Cache misses", "cache"),

		ErrorsTotal: c.RegisterCounter("errors_total", "Errors by component and code", "component", "code"),
	}
}

// ObserveBins records one served layer. source is "computed" or "cache".
func (m *AppMetrics) ObserveBins(level int, source string, groups int, d time.Duration) {
	if m == nil {
		return
	}
	lv := strconv.Itoa(level)
	m.BinComputationsTotal.WithLabelValues(lv, source).Inc()
	m.BinComputeDuration.WithLabelValues(source).Observe(d.Seconds())
	m.BinGroups.WithLabelValues(lv).Observe(float64(groups))
}

func (m *AppMetrics) ObserveLadder(d time.Duration) {
	if m == nil {
		return
	}
	m.LadderPrecompute.WithLabelValues().Observe(d.Seconds())
}

// ObserveMessage counts a message by source (http, kafka, cli) and outcome
// (applied, duplicate, rejected).
func (m *AppMetrics) ObserveMessage(source, status string) {
	if m == nil {
		return
	}
	m.MessagesTotal.WithLabelValues(source, status).Inc()
}

func (m *AppMetrics) ObserveInstruction(kind string) {
	if m == nil {
		return
	}
	m.InstructionsTotal.WithLabelValues(kind).Inc()
}

func (m *AppMetrics) SetSessions(n int) {
	if m == nil {
		return
	}
	m.SessionsActive.WithLabelValues().Set(float64(n))
}

func (m *AppMetrics) SetDatasetRecords(kind string, n int) {
	if m == nil {
		return
	}
	m.DatasetRecords.WithLabelValues(kind).Set(float64(n))
}

func (m *AppMetrics) ObserveCache(cache string, hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheHitsTotal.WithLabelValues(cache).Inc()
	} else {
		m.CacheMissesTotal.WithLabelValues(cache).Inc()
	}
}

func (m *AppMetrics) ObserveError(component, code string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(component, code).Inc()
}

func RecordHTTPRequest(m *AppMetrics, method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
