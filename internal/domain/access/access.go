package access

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/sponnect/sponnect/internal/domain/apperr"
	"github.com/sponnect/sponnect/internal/domain/user"
)

// RoleSystem is carried by background sweeps. It never comes from a token.
const RoleSystem user.Role = "system"

// Actor is the caller of a core operation as resolved by the identity gate.
type Actor struct {
	ID   uuid.UUID `json:"id"`
	Role user.Role `json:"role"`
}

// System returns the actor used by scheduled jobs.
func System() Actor {
	return Actor{Role: RoleSystem}
}

func (a Actor) IsSystem() bool {
	return a.Role == RoleSystem
}

// UserID returns nil for the system actor.
func (a Actor) UserID() *uuid.UUID {
	if a.IsSystem() || a.ID == uuid.Nil {
		return nil
	}
	id := a.ID
	return &id
}

func (a Actor) String() string {
	if a.IsSystem() {
		return "system"
	}
	return fmt.Sprintf("%s:%s", a.Role, a.ID)
}

// Relationship describes how an actor relates to a resource.
type Relationship string

const (
	RelOwningSponsor    Relationship = "owning_sponsor"
	RelTargetInfluencer Relationship = "target_influencer"
	RelAdmin            Relationship = "admin"
	RelAnySponsor       Relationship = "any_sponsor"
	RelAnyInfluencer    Relationship = "any_influencer"
	RelSystem           Relationship = "system"
)

// Operation names a guarded core call.
type Operation string

const (
	OpCreateAdRequest   Operation = "create_ad_request"
	OpApplyToCampaign   Operation = "apply_to_campaign"
	OpRespond           Operation = "respond_to_ad_request"
	OpViewAdRequest     Operation = "view_ad_request"
	OpListAdRequests    Operation = "list_ad_requests"
	OpListHistory       Operation = "list_negotiation_history"
	OpDeleteAdRequest   Operation = "delete_ad_request"
	OpCampaignSummary   Operation = "campaign_negotiation_summary"
	OpInfluencerSummary Operation = "influencer_negotiations"
	OpSubmitProgress    Operation = "submit_progress_update"
	OpReviewProgress    Operation = "review_progress_update"
	OpViewProgress      Operation = "view_progress_updates"
	OpCreatePayment     Operation = "create_payment"
	OpViewPayments      Operation = "view_payments"
	OpFeeReport         Operation = "platform_fee_report"
	OpDeleteCampaign    Operation = "delete_campaign"
	OpExpire            Operation = "expire_stale_negotiation"
)

var policy = map[Operation][]Relationship{
	OpCreateAdRequest:   {RelOwningSponsor},
	OpApplyToCampaign:   {RelAnyInfluencer},
	OpRespond:           {RelOwningSponsor, RelTargetInfluencer},
	OpViewAdRequest:     {RelOwningSponsor, RelTargetInfluencer, RelAdmin},
	OpListAdRequests:    {RelAnySponsor, RelAnyInfluencer, RelAdmin},
	OpListHistory:       {RelOwningSponsor, RelTargetInfluencer, RelAdmin},
	OpDeleteAdRequest:   {RelOwningSponsor},
	OpCampaignSummary:   {RelOwningSponsor, RelAdmin},
	OpInfluencerSummary: {RelAnyInfluencer},
	OpSubmitProgress:    {RelTargetInfluencer},
	OpReviewProgress:    {RelOwningSponsor},
	OpViewProgress:      {RelOwningSponsor, RelTargetInfluencer, RelAdmin},
	OpCreatePayment:     {RelOwningSponsor},
	OpViewPayments:      {RelOwningSponsor, RelTargetInfluencer, RelAdmin},
	OpFeeReport:         {RelAdmin},
	OpDeleteCampaign:    {RelOwningSponsor, RelAdmin},
	OpExpire:            {RelSystem},
}

// Subject identifies the parties of the resource being acted on.
// Zero IDs mean the resource has no such party.
type Subject struct {
	SponsorID    uuid.UUID
	InfluencerID uuid.UUID
}

// Relationships lists every relationship actor holds to subj.
func Relationships(actor Actor, subj Subject) []Relationship {
	switch actor.Role {
	case RoleSystem:
		return []Relationship{RelSystem}
	case user.RoleAdmin:
		return []Relationship{RelAdmin}
	case user.RoleSponsor:
		rels := []Relationship{RelAnySponsor}
		if subj.SponsorID != uuid.Nil && actor.ID == subj.SponsorID {
			rels = append(rels, RelOwningSponsor)
		}
		return rels
	case user.RoleInfluencer:
		rels := []Relationship{RelAnyInfluencer}
		if subj.InfluencerID != uuid.Nil && actor.ID == subj.InfluencerID {
			rels = append(rels, RelTargetInfluencer)
		}
		return rels
	}
	return nil
}

// Allowed reports whether actor may perform op on subj. Unknown operations deny.
func Allowed(op Operation, actor Actor, subj Subject) bool {
	required, ok := policy[op]
	if !ok {
		return false
	}
	for _, have := range Relationships(actor, subj) {
		for _, want := range required {
			if have == want {
				return true
			}
		}
	}
	return false
}

// Check returns a forbidden error when actor may not perform op on subj.
func Check(op Operation, actor Actor, subj Subject) error {
	if Allowed(op, actor, subj) {
		return nil
	}
	return apperr.Forbidden(fmt.Sprintf("%s is not permitted to %s", actor.Role, humanize(op)))
}

func humanize(op Operation) string {
	out := []byte(op)
	for i, c := range out {
		if c == '_' {
			out[i] = ' '
		}
	}
	return string(out)
}
