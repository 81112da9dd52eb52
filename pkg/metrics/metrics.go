package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BuildInfo is set once at startup with the build's version metadata.
	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "driftwatch_build_info",
		Help: "Build information for the running binary.",
	}, []string{"version", "commit", "date"})

	// ViewRefreshTotal counts view refresh outcomes by view name and status
	// (success, error, panic).
	ViewRefreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "driftwatch_view_refresh_total",
		Help: "Number of view refreshes by view and status.",
	}, []string{"view", "status"})

	// ViewRefreshDuration observes how long each view refresh took.
	ViewRefreshDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "driftwatch_view_refresh_duration_seconds",
		Help:    "Duration of view refreshes.",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
	}, []string{"view"})

	// ReconcileTotal counts reconciliation runs by status (success, error).
	ReconcileTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "driftwatch_reconcile_total",
		Help: "Number of reconciliation runs by status.",
	}, []string{"status"})

	// ReconcileDuration observes how long each reconciliation run took.
	ReconcileDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "driftwatch_reconcile_duration_seconds",
		Help:    "Duration of reconciliation runs.",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
	})

	// ReconciledLinks tracks the link count of the most recent run per
	// health category.
	ReconciledLinks = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "driftwatch_reconciled_links",
		Help: "Links in the most recent reconciliation by health category.",
	}, []string{"health"})

	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "driftwatch_http_requests_total",
		Help: "Number of HTTP requests by route, method, and status code.",
	}, []string{"route", "method", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "driftwatch_http_request_duration_seconds",
		Help:    "Duration of HTTP requests by route and method.",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
	}, []string{"route", "method"})
)

// RecordReconcile records the outcome of a single reconciliation run.
func RecordReconcile(duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	ReconcileTotal.WithLabelValues(status).Inc()
	ReconcileDuration.Observe(duration.Seconds())
}

// Middleware records request counts and durations. The route label uses the
// chi route pattern rather than the raw path to keep cardinality bounded.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}

		httpRequestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(ww.Status())).Inc()
		httpRequestDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}
