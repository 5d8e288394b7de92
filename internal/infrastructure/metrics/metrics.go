package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

var (
	NegotiationTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "negotiation_transitions_total",
			Help: "Committed ad request transitions by ledger action and resulting status",
		},
		[]string{"action", "status"},
	)

	NegotiationConflicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "negotiation_conflicts_total",
			Help: "Rejected negotiation writes by reason",
		},
		[]string{"reason"},
	)

	PaymentsCompleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "payments_completed_total",
			Help: "Completed payments",
		},
	)

	PlatformFeesCollected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "platform_fees_collected",
			Help: "Sum of platform fees on completed payments",
		},
	)

	ProgressReviews = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "progress_reviews_total",
			Help: "Sponsor reviews of progress updates by resulting status",
		},
		[]string{"status"},
	)

	CampaignsDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "campaigns_deleted_total",
			Help: "Campaigns removed with their negotiations",
		},
	)

	EventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_dropped_total",
			Help: "Outbound events dropped because the dispatch buffer was full",
		},
		[]string{"event"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP response times",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

func ObserveTransition(action, status string) {
	NegotiationTransitions.WithLabelValues(action, status).Inc()
}

func ObserveConflict(reason string) {
	NegotiationConflicts.WithLabelValues(reason).Inc()
}

func ObservePayment(fee decimal.Decimal) {
	PaymentsCompleted.Inc()
	f, _ := fee.Float64()
	PlatformFeesCollected.Add(f)
}

func ObserveProgressReview(status string) {
	ProgressReviews.WithLabelValues(status).Inc()
}

func ObserveCampaignDeleted() {
	CampaignsDeleted.Inc()
}

func ObserveDroppedEvent(name string) {
	EventsDropped.WithLabelValues(name).Inc()
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request latency labelled by the matched chi route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		HTTPRequestDuration.
			WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).
			Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Flush keeps SSE streaming working through the recorder.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
