package event

//go:generate go run go.uber.org/mock/mockgen -destination=mocks/mock_publisher.go -package=mocks . Publisher

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Name identifies an outbound event.
type Name string

const (
	AdRequestCreated        Name = "ad_request.created"
	NegotiationTransitioned Name = "negotiation.transitioned"
	NegotiationReminder     Name = "negotiation.reminder"
	NegotiationStale        Name = "negotiation.stale"
	ProgressSubmitted       Name = "progress.submitted"
	ProgressReviewed        Name = "progress.reviewed"
	PaymentCompleted        Name = "payment.completed"
	CampaignDeleted         Name = "campaign.deleted"
)

// Event is emitted after a committed change. Consumers observe it; they
// cannot affect the change.
type Event struct {
	ID           uuid.UUID        `json:"id"`
	Name         Name             `json:"name"`
	AdRequestID  uuid.UUID        `json:"adRequestId"`
	CampaignID   uuid.UUID        `json:"campaignId"`
	SponsorID    uuid.UUID        `json:"sponsorId"`
	InfluencerID uuid.UUID        `json:"influencerId"`
	Action       string           `json:"action"`
	Status       string           `json:"status"`
	ActorID      *uuid.UUID       `json:"actorId,omitempty"`
	ActorRole    string           `json:"actorRole"`
	Amount       *decimal.Decimal `json:"amount,omitempty"`
	SubjectID    *uuid.UUID       `json:"subjectId,omitempty"`
	IdleDays     int              `json:"idleDays,omitempty"`
	OccurredAt   time.Time        `json:"occurredAt"`
}

// New stamps an event with an id and time.
func New(name Name) Event {
	return Event{ID: uuid.New(), Name: name, OccurredAt: time.Now().UTC()}
}

// Params exposes the event to rule expressions.
func (e Event) Params() map[string]interface{} {
	params := map[string]interface{}{
		"event":         string(e.Name),
		"action":        e.Action,
		"status":        e.Status,
		"actor_role":    e.ActorRole,
		"ad_request_id": e.AdRequestID.String(),
		"campaign_id":   e.CampaignID.String(),
		"amount":        0.0,
		"idle_days":     float64(e.IdleDays),
	}
	if e.Amount != nil {
		f, _ := e.Amount.Float64()
		params["amount"] = f
	}
	return params
}

// Publisher hands events to subscribers. Publish must not block and must not fail the caller.
type Publisher interface {
	Publish(ctx context.Context, e Event)
}
