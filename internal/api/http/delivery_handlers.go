package httpapi

import (
	"encoding/json"
	"net/http"

	appSettlement "github.com/sponnect/sponnect/internal/application/settlement"
	domainProgress "github.com/sponnect/sponnect/internal/domain/progress"
)

type submitProgressRequest struct {
	Content     string          `json:"content"`
	MediaURLs   []string        `json:"media_urls,omitempty"`
	MetricsData json.RawMessage `json:"metrics_data,omitempty"`
}

type reviewProgressRequest struct {
	Action   string  `json:"action"`
	Feedback *string `json:"feedback,omitempty"`
}

type createPaymentRequest struct {
	Amount        *money `json:"amount,omitempty"`
	PaymentMethod string `json:"payment_method,omitempty"`
}

func (s *Server) submitProgressUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "adRequestId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid adRequestId")
		return
	}
	var req submitProgressRequest
	if err := decodeBody(r, &req); err != nil {
		s.respondAppError(w, r, err)
		return
	}
	actor, _ := actorFromContext(r.Context())
	u, err := s.progressSvc.Submit(r.Context(), actor, id, domainProgress.SubmitInput{
		Content:     req.Content,
		MediaURLs:   req.MediaURLs,
		MetricsData: req.MetricsData,
	})
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, u)
}

func (s *Server) reviewProgressUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "updateId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid updateId")
		return
	}
	var req reviewProgressRequest
	if err := decodeBody(r, &req); err != nil {
		s.respondAppError(w, r, err)
		return
	}
	review, err := domainProgress.ParseReview(req.Action, req.Feedback)
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}
	actor, _ := actorFromContext(r.Context())
	u, err := s.progressSvc.Review(r.Context(), actor, id, review)
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, u)
}

func (s *Server) listProgressUpdates(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "adRequestId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid adRequestId")
		return
	}
	actor, _ := actorFromContext(r.Context())
	items, err := s.progressSvc.List(r.Context(), actor, id)
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"progressUpdates": items})
}

func (s *Server) createPayment(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "adRequestId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid adRequestId")
		return
	}
	var req createPaymentRequest
	if err := decodeOptionalBody(r, &req); err != nil {
		s.respondAppError(w, r, err)
		return
	}
	actor, _ := actorFromContext(r.Context())
	res, err := s.settlementSvc.CreatePayment(r.Context(), actor, id, appSettlement.CreatePaymentInput{
		Amount: req.Amount.value(),
		Method: req.PaymentMethod,
	})
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, res)
}

func (s *Server) listPayments(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "adRequestId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid adRequestId")
		return
	}
	actor, _ := actorFromContext(r.Context())
	items, err := s.settlementSvc.List(r.Context(), actor, id)
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"payments": items})
}

func (s *Server) platformFeeReport(w http.ResponseWriter, r *http.Request) {
	from, err := parseTimeQuery(r, "from")
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}
	to, err := parseTimeQuery(r, "to")
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}
	actor, _ := actorFromContext(r.Context())
	report, err := s.settlementSvc.FeeReport(r.Context(), actor, from, to)
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

func (s *Server) deleteCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "campaignId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid campaignId")
		return
	}
	actor, _ := actorFromContext(r.Context())
	res, err := s.campaignSvc.Delete(r.Context(), actor, id)
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}
