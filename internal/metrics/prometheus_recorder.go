package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	registry      *prom.Registry
	taskDuration  *prom.HistogramVec
	taskResults   *prom.CounterVec
	reloads       *prom.CounterVec
	reloadClients prom.Gauge
	imageCache    *prom.CounterVec
}

// NewPrometheusRecorder constructs and registers Prometheus metrics on reg.
// A nil registry gets a fresh one, available through Registry.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{registry: reg}
	pr.taskDuration = prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: "sitebuild",
		Name:      "task_duration_seconds",
		Help:      "Duration of individual task executions",
		Buckets:   prom.DefBuckets,
	}, []string{"task"})
	pr.taskResults = prom.NewCounterVec(prom.CounterOpts{
		Namespace: "sitebuild",
		Name:      "task_results_total",
		Help:      "Task executions by outcome",
	}, []string{"task", "result"})
	pr.reloads = prom.NewCounterVec(prom.CounterOpts{
		Namespace: "sitebuild",
		Name:      "livereload_broadcasts_total",
		Help:      "Reload broadcasts sent to connected clients",
	}, []string{"kind"})
	pr.reloadClients = prom.NewGauge(prom.GaugeOpts{
		Namespace: "sitebuild",
		Name:      "livereload_clients",
		Help:      "Currently connected live reload clients",
	})
	pr.imageCache = prom.NewCounterVec(prom.CounterOpts{
		Namespace: "sitebuild",
		Name:      "image_cache_lookups_total",
		Help:      "Image optimisation cache lookups by result",
	}, []string{"result"})
	reg.MustRegister(pr.taskDuration, pr.taskResults, pr.reloads, pr.reloadClients, pr.imageCache)
	return pr
}

// Registry returns the registry the metrics are registered on.
func (p *PrometheusRecorder) Registry() *prom.Registry {
	if p == nil {
		return nil
	}
	return p.registry
}

func (p *PrometheusRecorder) ObserveTaskDuration(task string, d time.Duration) {
	if p == nil || p.taskDuration == nil {
		return
	}
	p.taskDuration.WithLabelValues(task).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncTaskResult(task string, result ResultLabel) {
	if p == nil || p.taskResults == nil {
		return
	}
	p.taskResults.WithLabelValues(task, string(result)).Inc()
}

func (p *PrometheusRecorder) IncReloadBroadcast(kind string) {
	if p == nil || p.reloads == nil {
		return
	}
	p.reloads.WithLabelValues(kind).Inc()
}

func (p *PrometheusRecorder) SetReloadClients(n int) {
	if p == nil || p.reloadClients == nil {
		return
	}
	p.reloadClients.Set(float64(n))
}

func (p *PrometheusRecorder) IncImageCache(hit bool) {
	if p == nil || p.imageCache == nil {
		return
	}
	res := "miss"
	if hit {
		res = "hit"
	}
	p.imageCache.WithLabelValues(res).Inc()
}
