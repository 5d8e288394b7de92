package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestObserveTransition(t *testing.T) {
	before := testutil.ToFloat64(NegotiationTransitions.WithLabelValues("accept", "Accepted"))
	ObserveTransition("accept", "Accepted")
	assert.Equal(t, before+1, testutil.ToFloat64(NegotiationTransitions.WithLabelValues("accept", "Accepted")))
}

func TestObservePayment(t *testing.T) {
	count := testutil.ToFloat64(PaymentsCompleted)
	fees := testutil.ToFloat64(PlatformFeesCollected)

	ObservePayment(decimal.RequireFromString("12.00"))

	assert.Equal(t, count+1, testutil.ToFloat64(PaymentsCompleted))
	assert.InDelta(t, fees+12, testutil.ToFloat64(PlatformFeesCollected), 0.0001)
}

func TestMiddleware_UsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/v1/ad-requests/{adRequestId}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/ad-requests/abc", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, 1, testutil.CollectAndCount(HTTPRequestDuration, "http_request_duration_seconds"))
}
