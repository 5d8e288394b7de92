package adrequest

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/sponnect/sponnect/internal/domain/apperr"
)

// Action is a response to the offer on the table. Exactly one of the
// concrete types below.
type Action interface {
	tag() HistoryAction
}

// Accept takes the current offer as the agreed terms.
type Accept struct{}

// Reject ends the negotiation.
type Reject struct{}

// Counter replaces the current offer and hands the turn to the other side.
type Counter struct {
	Amount       decimal.Decimal
	Requirements *string
	Message      *string
}

// Expire closes an idle negotiation. Only the system actor may issue it.
type Expire struct{}

func (Accept) tag() HistoryAction  { return ActionAccept }
func (Reject) tag() HistoryAction  { return ActionReject }
func (Counter) tag() HistoryAction { return ActionNegotiate }
func (Expire) tag() HistoryAction  { return ActionExpire }

// ActionInput is the loosely typed payload received from callers.
type ActionInput struct {
	Action        string
	PaymentAmount *decimal.Decimal
	Requirements  *string
	Message       *string
}

// ParseAction turns a raw payload into a typed action. "counter" and
// "negotiate" are the same action. Accept and reject carry no payload: a
// ledger row snapshots the offer as it stands after the transition, so a
// message that would not change the offer has nowhere to go and is refused.
func ParseAction(in ActionInput) (Action, error) {
	switch strings.ToLower(strings.TrimSpace(in.Action)) {
	case "accept":
		if err := noOfferFields(in); err != nil {
			return nil, err
		}
		return Accept{}, nil
	case "reject":
		if err := noOfferFields(in); err != nil {
			return nil, err
		}
		return Reject{}, nil
	case "negotiate", "counter":
		amount, err := ValidateAmount(in.PaymentAmount)
		if err != nil {
			return nil, err
		}
		c := Counter{Amount: amount, Message: in.Message}
		if in.Requirements != nil {
			req := strings.TrimSpace(*in.Requirements)
			if req == "" {
				return nil, apperr.Validation("requirements", "cannot be empty")
			}
			c.Requirements = &req
		}
		return c, nil
	case "":
		return nil, apperr.Validation("action", "is required")
	default:
		return nil, apperr.Validation("action", "must be one of accept, reject, negotiate")
	}
}

func noOfferFields(in ActionInput) error {
	if in.PaymentAmount != nil {
		return apperr.Validation("payment_amount", "only allowed when negotiating")
	}
	if in.Requirements != nil {
		return apperr.Validation("requirements", "only allowed when negotiating")
	}
	if in.Message != nil {
		return apperr.Validation("message", "only allowed when negotiating")
	}
	return nil
}
