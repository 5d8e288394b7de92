package settlement

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/sponnect/sponnect/internal/domain/access"
	"github.com/sponnect/sponnect/internal/domain/adrequest"
	"github.com/sponnect/sponnect/internal/domain/apperr"
	"github.com/sponnect/sponnect/internal/domain/event"
	"github.com/sponnect/sponnect/internal/domain/payment"
	"github.com/sponnect/sponnect/internal/domain/progress"
	"github.com/sponnect/sponnect/internal/domain/txn"
	"github.com/sponnect/sponnect/internal/domain/user"
	"github.com/sponnect/sponnect/internal/infrastructure/metrics"
)

var errNotAccepted = apperr.Conflict("payment requires an accepted ad request")

// Service settles accepted ad requests and reports platform revenue.
type Service struct {
	payments   payment.Repository
	updates    progress.Repository
	adRequests adrequest.Repository
	users      user.Repository
	tx         txn.Manager
	events     event.Publisher
	feeRate    decimal.Decimal
	now        func() time.Time
	logger     zerolog.Logger
}

// NewService creates a settlement service charging feeRate on every payment.
func NewService(
	payments payment.Repository,
	updates progress.Repository,
	adRequests adrequest.Repository,
	users user.Repository,
	tx txn.Manager,
	events event.Publisher,
	feeRate decimal.Decimal,
	logger zerolog.Logger,
) *Service {
	return &Service{
		payments:   payments,
		updates:    updates,
		adRequests: adRequests,
		users:      users,
		tx:         tx,
		events:     events,
		feeRate:    feeRate,
		now:        func() time.Time { return time.Now().UTC() },
		logger:     logger.With().Str("service", "settlement").Logger(),
	}
}

// CreatePaymentInput is a sponsor payment. A nil Amount pays the full agreed amount.
type CreatePaymentInput struct {
	Amount *decimal.Decimal
	Method string
}

// PaymentResult is a completed payment with its receipt figures.
type PaymentResult struct {
	Payment *payment.Payment `json:"payment"`
	Receipt *payment.Receipt `json:"receipt"`
}

// CreatePayment pays out an accepted request that has approved work.
func (s *Service) CreatePayment(ctx context.Context, actor access.Actor, adRequestID uuid.UUID, in CreatePaymentInput) (*PaymentResult, error) {
	var (
		p   *payment.Payment
		req *adrequest.AdRequest
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		// the row lock serialises payments against the same request
		req, err = s.adRequests.GetForUpdate(ctx, adRequestID)
		if err != nil {
			return err
		}
		if req == nil {
			return apperr.NotFound("ad request not found")
		}
		if err := access.Check(access.OpCreatePayment, actor, subjectOf(req)); err != nil {
			return err
		}
		sponsor, err := s.users.GetByID(ctx, actor.ID)
		if err != nil {
			return err
		}
		if !sponsor.CanSponsor() {
			return apperr.Forbidden("sponsor account is not active or not approved")
		}
		if req.Status != adrequest.StatusAccepted {
			return errNotAccepted.WithDetail("status", req.Status)
		}
		approved, err := s.updates.CountByStatus(ctx, req.AdRequestID, progress.StatusApproved)
		if err != nil {
			return err
		}
		if approved == 0 {
			return payment.ErrNoApprovedWork
		}
		amount, err := payment.ResolveAmount(in.Amount, req.PaymentAmount)
		if err != nil {
			return err
		}
		p = payment.New(req.AdRequestID, amount, s.feeRate, in.Method, s.now())
		return s.payments.Create(ctx, p)
	})
	if err != nil {
		return nil, err
	}

	metrics.ObservePayment(p.PlatformFee)
	s.logger.Info().
		Str("adRequestId", adRequestID.String()).
		Str("transactionId", p.TransactionID).
		Str("amount", p.Amount.StringFixed(2)).
		Str("platformFee", p.PlatformFee.StringFixed(2)).
		Msg("payment completed")

	e := event.New(event.PaymentCompleted)
	e.AdRequestID = req.AdRequestID
	e.CampaignID = req.CampaignID
	e.SponsorID = req.SponsorID
	e.InfluencerID = req.InfluencerID
	e.Action = "pay"
	e.Status = string(p.Status)
	e.ActorID = actor.UserID()
	e.ActorRole = string(actor.Role)
	gross := p.Amount
	e.Amount = &gross
	pid := p.PaymentID
	e.SubjectID = &pid
	s.events.Publish(ctx, e)

	return &PaymentResult{Payment: p, Receipt: p.Receipt(s.feeRate)}, nil
}

// List returns the payments of a request, newest first.
func (s *Service) List(ctx context.Context, actor access.Actor, adRequestID uuid.UUID) ([]*payment.Payment, error) {
	req, err := s.adRequests.GetByID(ctx, adRequestID)
	if err != nil {
		return nil, err
	}
	if req == nil || !access.Allowed(access.OpViewPayments, actor, subjectOf(req)) {
		return nil, apperr.NotFound("ad request not found")
	}
	return s.payments.ListByAdRequest(ctx, adRequestID)
}

// FeeReport totals completed payments created in [from, to).
func (s *Service) FeeReport(ctx context.Context, actor access.Actor, from, to *time.Time) (*payment.FeeReport, error) {
	if err := access.Check(access.OpFeeReport, actor, access.Subject{}); err != nil {
		return nil, err
	}
	if from != nil && to != nil && !from.Before(*to) {
		return nil, apperr.Validation("from", "must be before to")
	}
	rows, err := s.payments.ListCompleted(ctx, from, to)
	if err != nil {
		return nil, err
	}
	return payment.BuildFeeReport(rows, from, to), nil
}

func subjectOf(req *adrequest.AdRequest) access.Subject {
	return access.Subject{SponsorID: req.SponsorID, InfluencerID: req.InfluencerID}
}
