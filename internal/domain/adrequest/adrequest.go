package adrequest

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sponnect/sponnect/internal/domain/apperr"
	"github.com/sponnect/sponnect/internal/domain/user"
)

// Status is the negotiation state of an ad request.
type Status string

const (
	StatusPending     Status = "Pending"
	StatusNegotiating Status = "Negotiating"
	StatusAccepted    Status = "Accepted"
	StatusRejected    Status = "Rejected"
)

// IsTerminal reports whether no further offer may be made.
func (s Status) IsTerminal() bool {
	return s == StatusAccepted || s == StatusRejected
}

// CanTransitionTo checks the negotiation transition table.
func (s Status) CanTransitionTo(target Status) bool {
	transitions := map[Status][]Status{
		StatusPending:     {StatusNegotiating, StatusAccepted, StatusRejected},
		StatusNegotiating: {StatusNegotiating, StatusAccepted, StatusRejected},
		StatusAccepted:    {},
		StatusRejected:    {},
	}
	allowed, ok := transitions[s]
	if !ok {
		return false
	}
	for _, a := range allowed {
		if a == target {
			return true
		}
	}
	return false
}

func ParseStatus(raw string) (Status, error) {
	switch s := Status(strings.TrimSpace(raw)); s {
	case StatusPending, StatusNegotiating, StatusAccepted, StatusRejected:
		return s, nil
	}
	return "", apperr.Validation("status", "must be one of Pending, Negotiating, Accepted, Rejected")
}

// Party is a side of the negotiation.
type Party string

const (
	PartySponsor    Party = "sponsor"
	PartyInfluencer Party = "influencer"
)

// Other returns the counterparty.
func (p Party) Other() Party {
	if p == PartySponsor {
		return PartyInfluencer
	}
	return PartySponsor
}

// AdRequest is one proposed collaboration between a campaign and an influencer.
// Offer fields always hold the offer currently on the table.
type AdRequest struct {
	ID            int64           `json:"id"`
	AdRequestID   uuid.UUID       `json:"adRequestId"`
	CampaignID    uuid.UUID       `json:"campaignId"`
	SponsorID     uuid.UUID       `json:"sponsorId"`
	InfluencerID  uuid.UUID       `json:"influencerId"`
	InitiatorID   uuid.UUID       `json:"initiatorId"`
	PaymentAmount decimal.Decimal `json:"paymentAmount"`
	Requirements  string          `json:"requirements"`
	Message       *string         `json:"message,omitempty"`
	Status        Status          `json:"status"`
	LastOfferBy   Party           `json:"lastOfferBy"`
	Version       int             `json:"version"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// IsApplication reports whether the influencer opened the request.
func (r *AdRequest) IsApplication() bool {
	return r.InitiatorID == r.InfluencerID
}

// NextParty is the side expected to act.
func (r *AdRequest) NextParty() Party {
	return r.LastOfferBy.Other()
}

// PartyOf resolves which side the user plays, if any.
func (r *AdRequest) PartyOf(userID uuid.UUID, role user.Role) (Party, bool) {
	switch {
	case role == user.RoleSponsor && userID == r.SponsorID:
		return PartySponsor, true
	case role == user.RoleInfluencer && userID == r.InfluencerID:
		return PartyInfluencer, true
	}
	return "", false
}

// PartyUserID returns the user playing p.
func (r *AdRequest) PartyUserID(p Party) uuid.UUID {
	if p == PartySponsor {
		return r.SponsorID
	}
	return r.InfluencerID
}

func (r *AdRequest) clone() *AdRequest {
	cp := *r
	if r.Message != nil {
		m := *r.Message
		cp.Message = &m
	}
	return &cp
}

// HistoryAction tags a negotiation ledger row.
type HistoryAction string

const (
	ActionPropose           HistoryAction = "propose"
	ActionCounter           HistoryAction = "counter"
	ActionNegotiate         HistoryAction = "negotiate"
	ActionAccept            HistoryAction = "accept"
	ActionReject            HistoryAction = "reject"
	ActionAcceptApplication HistoryAction = "accept_application"
	ActionRejectApplication HistoryAction = "reject_application"
	ActionExpire            HistoryAction = "expire"
)

// HistoryEntry is an immutable ledger row with the offer as it stood after the action.
type HistoryEntry struct {
	ID            int64           `json:"id"`
	EntryID       uuid.UUID       `json:"entryId"`
	AdRequestID   uuid.UUID       `json:"adRequestId"`
	UserID        *uuid.UUID      `json:"userId,omitempty"`
	UserRole      user.Role       `json:"userRole"`
	Action        HistoryAction   `json:"action"`
	PaymentAmount decimal.Decimal `json:"paymentAmount"`
	Requirements  string          `json:"requirements"`
	Message       *string         `json:"message,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
}

func snapshot(r *AdRequest, userID *uuid.UUID, role user.Role, action HistoryAction, at time.Time) *HistoryEntry {
	e := &HistoryEntry{
		EntryID:       uuid.New(),
		AdRequestID:   r.AdRequestID,
		UserID:        userID,
		UserRole:      role,
		Action:        action,
		PaymentAmount: r.PaymentAmount,
		Requirements:  r.Requirements,
		CreatedAt:     at,
	}
	if r.Message != nil {
		m := *r.Message
		e.Message = &m
	}
	return e
}

// Matches reports whether the entry snapshots the given request state.
func (e *HistoryEntry) Matches(r *AdRequest) bool {
	if e.AdRequestID != r.AdRequestID || !e.PaymentAmount.Equal(r.PaymentAmount) || e.Requirements != r.Requirements {
		return false
	}
	switch {
	case e.Message == nil && r.Message == nil:
		return true
	case e.Message == nil || r.Message == nil:
		return false
	}
	return *e.Message == *r.Message
}

// Summary pairs a request with its most recent ledger action.
type Summary struct {
	AdRequest      *AdRequest     `json:"adRequest"`
	LatestAction   *HistoryAction `json:"latestAction,omitempty"`
	LatestActionAt *time.Time     `json:"latestActionAt,omitempty"`
}

// Terms are the offer fields supplied when a request is opened.
type Terms struct {
	PaymentAmount *decimal.Decimal
	Requirements  string
	Message       *string
}

// Default terms recorded when an influencer applies without details.
const (
	DefaultApplicationRequirements = "Influencer proposal based on campaign goals."
	DefaultApplicationMessage      = "Interested in collaborating on this campaign."
)

// NewInput opens a request.
type NewInput struct {
	CampaignID   uuid.UUID
	SponsorID    uuid.UUID
	InfluencerID uuid.UUID
	InitiatorID  uuid.UUID
	Terms        Terms
}

// New builds a Pending request and its propose ledger row.
func New(in NewInput, now time.Time) (*AdRequest, *HistoryEntry, error) {
	if in.CampaignID == uuid.Nil {
		return nil, nil, apperr.Validation("campaign_id", "is required")
	}
	if in.InfluencerID == uuid.Nil {
		return nil, nil, apperr.Validation("influencer_id", "is required")
	}
	var initiator Party
	var role user.Role
	switch in.InitiatorID {
	case in.SponsorID:
		initiator, role = PartySponsor, user.RoleSponsor
	case in.InfluencerID:
		initiator, role = PartyInfluencer, user.RoleInfluencer
	default:
		return nil, nil, apperr.Validation("initiator_id", "must be the campaign sponsor or the influencer")
	}
	amount, err := ValidateAmount(in.Terms.PaymentAmount)
	if err != nil {
		return nil, nil, err
	}
	requirements := strings.TrimSpace(in.Terms.Requirements)
	if requirements == "" {
		return nil, nil, apperr.Validation("requirements", "is required")
	}

	r := &AdRequest{
		AdRequestID:   uuid.New(),
		CampaignID:    in.CampaignID,
		SponsorID:     in.SponsorID,
		InfluencerID:  in.InfluencerID,
		InitiatorID:   in.InitiatorID,
		PaymentAmount: amount,
		Requirements:  requirements,
		Message:       normalizeMessage(in.Terms.Message),
		Status:        StatusPending,
		LastOfferBy:   initiator,
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	initiatorID := in.InitiatorID
	return r, snapshot(r, &initiatorID, role, ActionPropose, now), nil
}

// MaxAmount is the largest amount the NUMERIC(14,2) money columns hold.
var MaxAmount = decimal.RequireFromString("999999999999.99")

// ValidateAmount checks an offered amount: present, positive, within
// MaxAmount, at most cents precision.
func ValidateAmount(amount *decimal.Decimal) (decimal.Decimal, error) {
	if amount == nil {
		return decimal.Zero, apperr.Validation("payment_amount", "is required")
	}
	if !amount.IsPositive() {
		return decimal.Zero, apperr.Validation("payment_amount", "must be a positive number")
	}
	if amount.GreaterThan(MaxAmount) {
		return decimal.Zero, apperr.Validation("payment_amount", "must not exceed "+MaxAmount.StringFixed(2))
	}
	if !amount.Equal(amount.Round(2)) {
		return decimal.Zero, apperr.Validation("payment_amount", "must have at most 2 decimal places")
	}
	return *amount, nil
}

func normalizeMessage(msg *string) *string {
	if msg == nil {
		return nil
	}
	m := strings.TrimSpace(*msg)
	if m == "" {
		return nil
	}
	return &m
}
