package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	appCampaign "github.com/sponnect/sponnect/internal/application/campaign"
	appNegotiation "github.com/sponnect/sponnect/internal/application/negotiation"
	appProgress "github.com/sponnect/sponnect/internal/application/progress"
	appSettlement "github.com/sponnect/sponnect/internal/application/settlement"
	"github.com/sponnect/sponnect/internal/domain/apperr"
	domainUser "github.com/sponnect/sponnect/internal/domain/user"
	"github.com/sponnect/sponnect/internal/infrastructure/identity"
	"github.com/sponnect/sponnect/internal/infrastructure/metrics"
	"github.com/sponnect/sponnect/internal/infrastructure/sse"
)

// Server holds dependencies for HTTP handlers.
type Server struct {
	negotiationSvc *appNegotiation.Service
	progressSvc    *appProgress.Service
	settlementSvc  *appSettlement.Service
	campaignSvc    *appCampaign.Service
	sseHub         *sse.Hub
	verifier       *identity.Verifier
	logger         zerolog.Logger
}

func NewServer(
	negotiationSvc *appNegotiation.Service,
	progressSvc *appProgress.Service,
	settlementSvc *appSettlement.Service,
	campaignSvc *appCampaign.Service,
	sseHub *sse.Hub,
	verifier *identity.Verifier,
	logger zerolog.Logger,
) *Server {
	return &Server{
		negotiationSvc: negotiationSvc,
		progressSvc:    progressSvc,
		settlementSvc:  settlementSvc,
		campaignSvc:    campaignSvc,
		sseHub:         sseHub,
		verifier:       verifier,
		logger:         logger.With().Str("component", "http").Logger(),
	}
}

// Router builds the HTTP router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)

	r.Get("/healthz", s.healthz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.requireAuth)

		// The stream outlives the request timeout.
		r.Get("/events/stream", s.sseEndpoint)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(30 * time.Second))

			r.Route("/campaigns/{campaignId}", func(r chi.Router) {
				r.Delete("/", s.deleteCampaign)
				r.With(s.requireRole(string(domainUser.RoleSponsor))).Post("/ad-requests", s.createAdRequest)
				r.With(s.requireRole(string(domainUser.RoleInfluencer))).Post("/applications", s.applyToCampaign)
				r.Get("/negotiation-summary", s.campaignSummary)
			})

			r.Route("/ad-requests", func(r chi.Router) {
				r.Get("/", s.listAdRequests)
				r.Get("/{adRequestId}", s.getAdRequest)
				r.Delete("/{adRequestId}", s.deleteAdRequest)
				r.Post("/{adRequestId}/respond", s.respondToAdRequest)
				r.Get("/{adRequestId}/history", s.listNegotiationHistory)

				r.Get("/{adRequestId}/progress", s.listProgressUpdates)
				r.Post("/{adRequestId}/progress", s.submitProgressUpdate)

				r.Get("/{adRequestId}/payments", s.listPayments)
				r.Post("/{adRequestId}/payments", s.createPayment)
			})

			r.Post("/progress/{updateId}/review", s.reviewProgressUpdate)

			r.With(s.requireRole(string(domainUser.RoleInfluencer))).Get("/negotiations", s.influencerSummary)

			r.With(s.requireRole(string(domainUser.RoleAdmin))).Get("/admin/platform-fees", s.platformFeeReport)
		})
	})

	return r
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{"status": "ok"})
}

// Helpers
func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, map[string]interface{}{
		"error":   code,
		"message": message,
	})
}

// respondAppError maps a service error to its HTTP status. Untyped errors
// are logged and hidden behind a generic 500.
func (s *Server) respondAppError(w http.ResponseWriter, r *http.Request, err error) {
	e, ok := apperr.As(err)
	if !ok || e.Kind == apperr.KindInvariant {
		s.logger.Error().Err(err).
			Str("requestId", middleware.GetReqID(r.Context())).
			Str("path", r.URL.Path).
			Msg("request failed")
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal error")
		return
	}

	status := http.StatusInternalServerError
	switch e.Kind {
	case apperr.KindValidation:
		status = http.StatusBadRequest
	case apperr.KindNotFound:
		status = http.StatusNotFound
	case apperr.KindForbidden:
		status = http.StatusForbidden
	case apperr.KindConflict:
		status = http.StatusConflict
	}
	body := map[string]interface{}{
		"error":   string(e.Kind),
		"message": e.Message,
	}
	if e.Field != "" {
		body["field"] = e.Field
	}
	if len(e.Details) > 0 {
		body["details"] = e.Details
	}
	respondJSON(w, status, body)
}

func parseUUIDParam(r *http.Request, key string) (uuid.UUID, error) {
	val := chi.URLParam(r, key)
	return uuid.Parse(val)
}

// decodeBody decodes a JSON request body. Decode failures come back as
// validation errors naming the offending field where one is known.
func decodeBody(r *http.Request, v interface{}) error {
	if err := decodeStrict(r, v); err != nil {
		return bodyError(err)
	}
	return nil
}

// decodeOptionalBody is decodeBody for endpoints whose body may be omitted.
func decodeOptionalBody(r *http.Request, v interface{}) error {
	if err := decodeStrict(r, v); err != nil && !errors.Is(err, io.EOF) {
		return bodyError(err)
	}
	return nil
}

func decodeStrict(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func bodyError(err error) error {
	var typeErr *json.UnmarshalTypeError
	var syntaxErr *json.SyntaxError
	switch {
	case errors.As(err, &typeErr):
		field := typeErr.Field
		if field == "" {
			field = "body"
		}
		if typeErr.Type == decimalType {
			return apperr.Validation(field, "must be a decimal number")
		}
		return apperr.Validation(field, "must be of type "+typeErr.Type.String())
	case errors.As(err, &syntaxErr), errors.Is(err, io.ErrUnexpectedEOF):
		return apperr.Validation("body", "malformed JSON")
	case errors.Is(err, io.EOF):
		return apperr.Validation("body", "is required")
	}
	// encoding/json has no typed error for unknown fields.
	if name, ok := strings.CutPrefix(err.Error(), "json: unknown field "); ok {
		return apperr.Validation(strings.Trim(name, `"`), "unknown field")
	}
	return apperr.Validation("body", err.Error())
}

var decimalType = reflect.TypeOf(decimal.Decimal{})

// money is a decimal request field. Malformed values surface as type errors
// so the decoder reports which field held them.
type money struct{ decimal.Decimal }

func (m *money) UnmarshalJSON(b []byte) error {
	if err := m.Decimal.UnmarshalJSON(b); err != nil {
		return &json.UnmarshalTypeError{Value: string(b), Type: decimalType}
	}
	return nil
}

func (m *money) value() *decimal.Decimal {
	if m == nil {
		return nil
	}
	d := m.Decimal
	return &d
}

func parseLimitOffset(r *http.Request, defaultLimit, maxLimit int) (int, int) {
	limit := defaultLimit
	offset := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if l, err := strconv.Atoi(v); err == nil {
			limit = l
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if o, err := strconv.Atoi(v); err == nil {
			offset = o
		}
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func parseTimeQuery(r *http.Request, key string) (*time.Time, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, apperr.Validation(key, "must be an RFC3339 timestamp")
	}
	return &t, nil
}
