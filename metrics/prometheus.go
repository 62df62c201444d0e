package metrics

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusExporter exposes Collector's counters as Prometheus text
// format 0.0.4 metrics on a dedicated registry, independent of any
// process-wide default registry.
type PrometheusExporter struct {
	collector *Collector
	registry  *prometheus.Registry

	operationsTotal *prometheus.Desc
	errorsTotal     *prometheus.Desc
	durationSeconds *prometheus.Desc
}

// NewPrometheusExporter wraps c in a prometheus.Collector and registers
// it on a fresh registry.
func NewPrometheusExporter(c *Collector) *PrometheusExporter {
	e := &PrometheusExporter{
		collector: c,
		registry:  prometheus.NewRegistry(),
		operationsTotal: prometheus.NewDesc(
			"operations_total", "Total operations processed, by operation and resource.",
			[]string{"operation", "resource"}, nil),
		errorsTotal: prometheus.NewDesc(
			"operations_errors_total", "Total operation failures, by operation and resource.",
			[]string{"operation", "resource"}, nil),
		durationSeconds: prometheus.NewDesc(
			"operations_duration_seconds_sum", "Cumulative operation duration in seconds, by operation and resource.",
			[]string{"operation", "resource"}, nil),
	}
	e.registry.MustRegister(e)
	return e
}

// Describe implements prometheus.Collector.
func (e *PrometheusExporter) Describe(ch chan<- *prometheus.Desc) {
	ch <- e.operationsTotal
	ch <- e.errorsTotal
	ch <- e.durationSeconds
}

// Collect implements prometheus.Collector, emitting one sample set per
// resource/operation pair plus the all-resources global total under
// resource label "_all".
func (e *PrometheusExporter) Collect(ch chan<- prometheus.Metric) {
	e.collector.mu.Lock()
	defer e.collector.mu.Unlock()

	for op, s := range e.collector.global {
		e.emit(ch, string(op), "_all", s)
	}
	for resourceName, ops := range e.collector.byRes {
		for op, s := range ops {
			e.emit(ch, string(op), resourceName, s)
		}
	}
}

func (e *PrometheusExporter) emit(ch chan<- prometheus.Metric, op, resourceName string, s *OperationStats) {
	ch <- prometheus.MustNewConstMetric(e.operationsTotal, prometheus.CounterValue, float64(s.Count), op, resourceName)
	ch <- prometheus.MustNewConstMetric(e.errorsTotal, prometheus.CounterValue, float64(s.Errors), op, resourceName)
	ch <- prometheus.MustNewConstMetric(e.durationSeconds, prometheus.CounterValue, s.TotalTime.Seconds(), op, resourceName)
}

// Handler returns an http.Handler serving this exporter's registry in
// Prometheus text exposition format.
func (e *PrometheusExporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// MountEcho registers the exporter's handler at path on an
// externally-owned echo.Echo instance, grounded on the teacher CLI's
// pattern of embedding one Echo server for the whole process rather
// than standing up a second HTTP listener per concern.
func (e *PrometheusExporter) MountEcho(srv *echo.Echo, path string) {
	handler := e.Handler()
	srv.GET(path, echo.WrapHandler(handler))
}

// ListenAndServe starts a standalone HTTP server exposing this
// exporter at path, for callers that do not already embed an Echo
// server.
func (e *PrometheusExporter) ListenAndServe(addr, path string) error {
	mux := http.NewServeMux()
	mux.Handle(path, e.Handler())
	return http.ListenAndServe(addr, mux)
}
