package metrics

import (
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	loads         *prom.CounterVec
	stageDuration *prom.HistogramVec
	inflight      prom.Gauge
	cacheSize     prom.Gauge
	unsupported   *prom.CounterVec
}

// NewPrometheusRecorder constructs the loader metrics and registers them on reg.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		loads: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "quire",
			Name:      "loads_total",
			Help:      "Document loads by outcome",
		}, []string{"outcome"}),
		stageDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "quire",
			Name:      "stage_duration_seconds",
			Help:      "Duration of loader stages",
			Buckets:   prom.DefBuckets,
		}, []string{"stage"}),
		inflight: prom.NewGauge(prom.GaugeOpts{
			Namespace: "quire",
			Name:      "loads_inflight",
			Help:      "Resolutions currently holding a concurrency slot",
		}),
		cacheSize: prom.NewGauge(prom.GaugeOpts{
			Namespace: "quire",
			Name:      "cache_entries",
			Help:      "Resolved documents held in the cache",
		}),
		unsupported: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "quire",
			Name:      "unsupported_nodes_total",
			Help:      "Nodes a serializer replaced with a placeholder",
		}, []string{"format", "kind"}),
	}
	reg.MustRegister(pr.loads, pr.stageDuration, pr.inflight, pr.cacheSize, pr.unsupported)
	return pr
}

func (p *PrometheusRecorder) IncLoad(outcome Outcome) {
	if p == nil {
		return
	}
	p.loads.WithLabelValues(string(outcome)).Inc()
}

func (p *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	if p == nil {
		return
	}
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) SetInflight(n int) {
	if p == nil {
		return
	}
	p.inflight.Set(float64(n))
}

func (p *PrometheusRecorder) SetCacheSize(n int) {
	if p == nil {
		return
	}
	p.cacheSize.Set(float64(n))
}

func (p *PrometheusRecorder) IncUnsupportedNode(format, kind string) {
	if p == nil {
		return
	}
	p.unsupported.WithLabelValues(format, kind).Inc()
}

// HTTPHandler serves the metrics registered on reg.
func HTTPHandler(reg *prom.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
