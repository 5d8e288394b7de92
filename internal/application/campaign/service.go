package campaign

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sponnect/sponnect/internal/domain/access"
	"github.com/sponnect/sponnect/internal/domain/adrequest"
	"github.com/sponnect/sponnect/internal/domain/apperr"
	domainCampaign "github.com/sponnect/sponnect/internal/domain/campaign"
	"github.com/sponnect/sponnect/internal/domain/event"
	"github.com/sponnect/sponnect/internal/domain/payment"
	"github.com/sponnect/sponnect/internal/domain/progress"
	"github.com/sponnect/sponnect/internal/domain/txn"
)

// Service removes campaigns together with everything negotiated under them.
type Service struct {
	campaigns  domainCampaign.Repository
	adRequests adrequest.Repository
	updates    progress.Repository
	payments   payment.Repository
	tx         txn.Manager
	events     event.Publisher
	logger     zerolog.Logger
}

// NewService creates a campaign service.
func NewService(
	campaigns domainCampaign.Repository,
	adRequests adrequest.Repository,
	updates progress.Repository,
	payments payment.Repository,
	tx txn.Manager,
	events event.Publisher,
	logger zerolog.Logger,
) *Service {
	return &Service{
		campaigns:  campaigns,
		adRequests: adRequests,
		updates:    updates,
		payments:   payments,
		tx:         tx,
		events:     events,
		logger:     logger.With().Str("service", "campaign").Logger(),
	}
}

// Delete removes the campaign in one transaction, children first:
// payments, progress updates, ledger and ad requests, then the campaign.
func (s *Service) Delete(ctx context.Context, actor access.Actor, campaignID uuid.UUID) (*domainCampaign.CascadeResult, error) {
	c, err := s.campaigns.GetByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, apperr.NotFound("campaign not found")
	}
	if err := access.Check(access.OpDeleteCampaign, actor, access.Subject{SponsorID: c.SponsorID}); err != nil {
		return nil, err
	}

	res := &domainCampaign.CascadeResult{CampaignID: campaignID}
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if res.Payments, err = s.payments.DeleteByCampaign(ctx, campaignID); err != nil {
			return err
		}
		if res.ProgressUpdates, err = s.updates.DeleteByCampaign(ctx, campaignID); err != nil {
			return err
		}
		if res.AdRequests, err = s.adRequests.DeleteByCampaign(ctx, campaignID); err != nil {
			return err
		}
		return s.campaigns.Delete(ctx, campaignID)
	})
	if err != nil {
		s.logger.Error().Err(err).Str("campaignId", campaignID.String()).Msg("campaign cascade failed")
		return nil, err
	}

	s.logger.Info().
		Str("campaignId", campaignID.String()).
		Str("actor", actor.String()).
		Int64("adRequests", res.AdRequests).
		Int64("progressUpdates", res.ProgressUpdates).
		Int64("payments", res.Payments).
		Msg("campaign deleted")

	e := event.New(event.CampaignDeleted)
	e.CampaignID = campaignID
	e.SponsorID = c.SponsorID
	e.Action = "delete"
	e.ActorID = actor.UserID()
	e.ActorRole = string(actor.Role)
	s.events.Publish(ctx, e)
	return res, nil
}
