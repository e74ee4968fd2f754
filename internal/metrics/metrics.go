// Package metrics exposes crawl and HTTP counters in Prometheus format.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "jhunt"

const (
	ResultOK      = "ok"
	ResultFailed  = "failed"
	ResultPartial = "partial"
)

// Recorder owns its own registry so tests and multiple engines do not
// collide on the global one.
type Recorder struct {
	reg *prometheus.Registry

	runs          *prometheus.CounterVec
	sourceFetches *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec
	jobsInserted  *prometheus.CounterVec
	cooldown      *prometheus.GaugeVec
	httpRequests  *prometheus.CounterVec
	httpLatency   *prometheus.HistogramVec
}

func New() *Recorder {
	r := &Recorder{reg: prometheus.NewRegistry()}

	r.runs = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "crawl_runs_total",
		Help:      "Finished crawl runs partitioned by result.",
	}, []string{"result"})
	r.sourceFetches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "source_fetch_total",
		Help:      "Source fetches partitioned by source and result.",
	}, []string{"source", "result"})
	r.fetchDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "source_fetch_duration_seconds",
		Help:      "Wall time of one source fetch including dedup.",
		Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	}, []string{"source"})
	r.jobsInserted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "jobs_inserted_total",
		Help:      "New jobs stored per source.",
	}, []string{"source"})
	r.cooldown = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "source_cooldown",
		Help:      "1 while the source is in cooldown.",
	}, []string{"source"})
	r.httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "API requests partitioned by status code, method and route.",
	}, []string{"code", "method", "path"})
	r.httpLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_milliseconds",
		Help:      "API request latency partitioned by route.",
		Buckets:   []float64{5, 25, 100, 300, 1000, 5000},
	}, []string{"method", "path"})

	r.reg.MustRegister(
		r.runs, r.sourceFetches, r.fetchDuration, r.jobsInserted, r.cooldown,
		r.httpRequests, r.httpLatency,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

func (r *Recorder) Registry() *prometheus.Registry { return r.reg }

// RunFinished counts a run; result is ok, partial or failed.
func (r *Recorder) RunFinished(result string) {
	r.runs.With(prometheus.Labels{"result": result}).Inc()
}

func (r *Recorder) SourceFetched(source string, ok bool, d time.Duration) {
	result := ResultOK
	if !ok {
		result = ResultFailed
	}
	r.sourceFetches.With(prometheus.Labels{"source": source, "result": result}).Inc()
	r.fetchDuration.With(prometheus.Labels{"source": source}).Observe(d.Seconds())
}

func (r *Recorder) JobsInserted(source string, n int) {
	if n > 0 {
		r.jobsInserted.With(prometheus.Labels{"source": source}).Add(float64(n))
	}
}

func (r *Recorder) SetCooldown(source string, in bool) {
	v := 0.0
	if in {
		v = 1
	}
	r.cooldown.With(prometheus.Labels{"source": source}).Set(v)
}

// Handler serves the registry for /metrics.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

// Middleware counts requests by their chi route pattern, so path parameters
// do not explode label cardinality.
func (r *Recorder) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, req.ProtoMajor)
		next.ServeHTTP(ww, req)

		path := req.URL.Path
		if rc := chi.RouteContext(req.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				path = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		r.httpRequests.WithLabelValues(strconv.Itoa(status), req.Method, path).Inc()
		r.httpLatency.WithLabelValues(req.Method, path).Observe(float64(time.Since(start).Milliseconds()))
	})
}
