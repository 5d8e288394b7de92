package adrequest

import (
	"fmt"
	"time"

	"github.com/sponnect/sponnect/internal/domain/access"
	"github.com/sponnect/sponnect/internal/domain/apperr"
)

var (
	ErrNotParty    = apperr.Forbidden("actor is not a party to this ad request")
	ErrNotYourTurn = apperr.Forbidden("not your turn: waiting for the other party to respond")
	ErrTerminal    = apperr.Conflict("ad request is already resolved")
	ErrStaleState  = apperr.Conflict("ad request changed concurrently: re-fetch and retry")
	ErrDuplicate   = apperr.Conflict("an ad request already exists for this campaign and influencer")
	ErrSystemOnly  = apperr.Forbidden("only the system may expire a negotiation")
)

// Transition is the result of applying an action: the next state of the
// request and the single ledger row that records it.
type Transition struct {
	Previous Status
	Request  *AdRequest
	Entry    *HistoryEntry
}

// Apply validates action against current and returns the next state.
// current is never modified.
//
// Checks run in a fixed order: party membership, terminal state, turn.
// A resolved request therefore reports a conflict even to the party
// who made the last offer.
func Apply(current *AdRequest, actor access.Actor, action Action, now time.Time) (*Transition, error) {
	if current == nil {
		return nil, apperr.Invariant("apply on nil ad request", nil)
	}
	if _, ok := action.(Expire); ok {
		return expire(current, actor, now)
	}

	party, ok := current.PartyOf(actor.ID, actor.Role)
	if !ok {
		return nil, ErrNotParty
	}
	if current.Status.IsTerminal() {
		return nil, ErrTerminal
	}
	if party == current.LastOfferBy {
		return nil, ErrNotYourTurn
	}

	next := current.clone()
	tag := action.tag()
	switch a := action.(type) {
	case Accept:
		next.Status = StatusAccepted
		if current.Status == StatusPending && current.IsApplication() {
			tag = ActionAcceptApplication
		}
	case Reject:
		next.Status = StatusRejected
		if current.Status == StatusPending && current.IsApplication() {
			tag = ActionRejectApplication
		}
	case Counter:
		if !a.Amount.IsPositive() {
			return nil, apperr.Validation("payment_amount", "must be a positive number")
		}
		next.PaymentAmount = a.Amount
		if a.Requirements != nil {
			next.Requirements = *a.Requirements
		}
		if m := normalizeMessage(a.Message); m != nil {
			next.Message = m
		}
		next.Status = StatusNegotiating
		next.LastOfferBy = party
	default:
		return nil, apperr.Validation("action", fmt.Sprintf("unsupported action %T", action))
	}

	if !current.Status.CanTransitionTo(next.Status) {
		return nil, apperr.Invariant(fmt.Sprintf("transition %s -> %s not in table", current.Status, next.Status), nil)
	}
	next.UpdatedAt = now
	next.Version = current.Version + 1

	return &Transition{
		Previous: current.Status,
		Request:  next,
		Entry:    snapshot(next, actor.UserID(), actor.Role, tag, now),
	}, nil
}

func expire(current *AdRequest, actor access.Actor, now time.Time) (*Transition, error) {
	if !actor.IsSystem() {
		return nil, ErrSystemOnly
	}
	if current.Status.IsTerminal() {
		return nil, ErrTerminal
	}
	next := current.clone()
	next.Status = StatusRejected
	next.UpdatedAt = now
	next.Version = current.Version + 1
	return &Transition{
		Previous: current.Status,
		Request:  next,
		Entry:    snapshot(next, nil, access.RoleSystem, ActionExpire, now),
	}, nil
}
