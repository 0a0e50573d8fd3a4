// Package telemetry owns the Prometheus registry of the service.
package telemetry

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	Submissions *prometheus.CounterVec
	Reviews     *prometheus.CounterVec
	MetricSyncs *prometheus.CounterVec
	Uploads     *prometheus.CounterVec

	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter
}

// New registers every collector on a fresh registry, so tests can build
// as many instances as they like.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	m := &Metrics{
		HTTPRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
		Submissions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "profile_submissions_total",
			Help: "Profile registrations and edits by outcome",
		}, []string{"kind", "outcome"}),
		Reviews: f.NewCounterVec(prometheus.CounterOpts{
			Name: "company_reviews_total",
			Help: "Admin review decisions",
		}, []string{"decision"}),
		MetricSyncs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "metric_syncs_total",
			Help: "Provider metric syncs by provider and outcome",
		}, []string{"provider", "outcome"}),
		Uploads: f.NewCounterVec(prometheus.CounterOpts{
			Name: "uploads_total",
			Help: "File uploads by kind and outcome",
		}, []string{"kind", "outcome"}),
		CacheHits: f.NewCounter(prometheus.CounterOpts{
			Name: "listing_cache_hits_total",
			Help: "Company listing cache hits",
		}),
		CacheMisses: f.NewCounter(prometheus.CounterOpts{
			Name: "listing_cache_misses_total",
			Help: "Company listing cache misses",
		}),
	}
	m.registry = reg
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Outcome turns an error into a low-cardinality label value.
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// UnmatchedRoute labels requests that match no known route.
const UnmatchedRoute = "unmatched"

// Routes maps request paths onto route templates such as
// "/v1/companies/{id}", so labels stay bounded whatever clients send.
type Routes struct {
	templates [][]string
	names     []string
}

func NewRoutes(templates ...string) *Routes {
	rs := &Routes{}
	for _, t := range templates {
		rs.templates = append(rs.templates, strings.Split(strings.Trim(t, "/"), "/"))
		rs.names = append(rs.names, t)
	}
	return rs
}

// Match returns the template path matches, preferring literal segments
// over variables, or UnmatchedRoute.
func (rs *Routes) Match(path string) string {
	if rs == nil {
		return UnmatchedRoute
	}
	segs := strings.Split(strings.Trim(path, "/"), "/")
	best, bestScore := UnmatchedRoute, -1
	for i, tmpl := range rs.templates {
		if len(tmpl) != len(segs) {
			continue
		}
		score := 0
		for j, part := range tmpl {
			if strings.HasPrefix(part, "{") {
				if segs[j] == "" {
					score = -1
					break
				}
				continue
			}
			if part != segs[j] {
				score = -1
				break
			}
			score++
		}
		if score > bestScore {
			best, bestScore = rs.names[i], score
		}
	}
	return best
}

func methodLabel(method string) string {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut,
		http.MethodPatch, http.MethodDelete, http.MethodOptions:
		return method
	}
	return "OTHER"
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware records request count and latency per route template.
func (m *Metrics) Middleware(next http.Handler, routes *Routes) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		method, route := methodLabel(r.Method), routes.Match(r.URL.Path)
		m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(rec.status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	})
}
