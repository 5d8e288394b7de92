package httpapi

import (
	"net/http"

	"github.com/google/uuid"

	appNegotiation "github.com/sponnect/sponnect/internal/application/negotiation"
	"github.com/sponnect/sponnect/internal/domain/adrequest"
)

type createAdRequestRequest struct {
	InfluencerID  uuid.UUID `json:"influencer_id"`
	PaymentAmount *money    `json:"payment_amount"`
	Requirements  string    `json:"requirements"`
	Message       *string   `json:"message,omitempty"`
}

type applyRequest struct {
	PaymentAmount *money  `json:"payment_amount,omitempty"`
	Requirements  string  `json:"requirements,omitempty"`
	Message       *string `json:"message,omitempty"`
}

type respondRequest struct {
	Action        string  `json:"action"`
	PaymentAmount *money  `json:"payment_amount,omitempty"`
	Requirements  *string `json:"requirements,omitempty"`
	Message       *string `json:"message,omitempty"`
}

func (s *Server) createAdRequest(w http.ResponseWriter, r *http.Request) {
	campaignID, err := parseUUIDParam(r, "campaignId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid campaignId")
		return
	}
	var req createAdRequestRequest
	if err := decodeBody(r, &req); err != nil {
		s.respondAppError(w, r, err)
		return
	}
	if req.InfluencerID == uuid.Nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "influencer_id is required")
		return
	}
	actor, _ := actorFromContext(r.Context())
	res, err := s.negotiationSvc.CreateAdRequest(r.Context(), actor, appNegotiation.CreateInput{
		CampaignID:   campaignID,
		InfluencerID: req.InfluencerID,
		Terms: adrequest.Terms{
			PaymentAmount: req.PaymentAmount.value(),
			Requirements:  req.Requirements,
			Message:       req.Message,
		},
	})
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, res)
}

func (s *Server) applyToCampaign(w http.ResponseWriter, r *http.Request) {
	campaignID, err := parseUUIDParam(r, "campaignId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid campaignId")
		return
	}
	var req applyRequest
	if err := decodeOptionalBody(r, &req); err != nil {
		s.respondAppError(w, r, err)
		return
	}
	actor, _ := actorFromContext(r.Context())
	res, err := s.negotiationSvc.ApplyToCampaign(r.Context(), actor, appNegotiation.ApplyInput{
		CampaignID: campaignID,
		Terms: adrequest.Terms{
			PaymentAmount: req.PaymentAmount.value(),
			Requirements:  req.Requirements,
			Message:       req.Message,
		},
	})
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, res)
}

func (s *Server) respondToAdRequest(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "adRequestId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid adRequestId")
		return
	}
	var req respondRequest
	if err := decodeBody(r, &req); err != nil {
		s.respondAppError(w, r, err)
		return
	}
	actor, _ := actorFromContext(r.Context())
	res, err := s.negotiationSvc.Respond(r.Context(), actor, id, adrequest.ActionInput{
		Action:        req.Action,
		PaymentAmount: req.PaymentAmount.value(),
		Requirements:  req.Requirements,
		Message:       req.Message,
	})
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (s *Server) getAdRequest(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "adRequestId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid adRequestId")
		return
	}
	actor, _ := actorFromContext(r.Context())
	item, err := s.negotiationSvc.Get(r.Context(), actor, id)
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, item)
}

func (s *Server) listAdRequests(w http.ResponseWriter, r *http.Request) {
	limit, offset := parseLimitOffset(r, 50, 200)
	filter := appNegotiation.ListFilter{Limit: limit, Offset: offset}
	if v := r.URL.Query().Get("status"); v != "" {
		st, err := adrequest.ParseStatus(v)
		if err != nil {
			s.respondAppError(w, r, err)
			return
		}
		filter.Status = &st
	}
	if v := r.URL.Query().Get("campaign_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid campaign_id")
			return
		}
		filter.CampaignID = &id
	}
	actor, _ := actorFromContext(r.Context())
	items, err := s.negotiationSvc.List(r.Context(), actor, filter)
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"adRequests": items})
}

func (s *Server) deleteAdRequest(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "adRequestId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid adRequestId")
		return
	}
	actor, _ := actorFromContext(r.Context())
	if err := s.negotiationSvc.Delete(r.Context(), actor, id); err != nil {
		s.respondAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listNegotiationHistory(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "adRequestId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid adRequestId")
		return
	}
	actor, _ := actorFromContext(r.Context())
	entries, err := s.negotiationSvc.History(r.Context(), actor, id)
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"history": entries})
}

func (s *Server) campaignSummary(w http.ResponseWriter, r *http.Request) {
	campaignID, err := parseUUIDParam(r, "campaignId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid campaignId")
		return
	}
	actor, _ := actorFromContext(r.Context())
	items, err := s.negotiationSvc.CampaignSummary(r.Context(), actor, campaignID)
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"negotiations": items})
}

func (s *Server) influencerSummary(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFromContext(r.Context())
	items, err := s.negotiationSvc.InfluencerSummary(r.Context(), actor)
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"negotiations": items})
}
