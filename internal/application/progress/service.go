package progress

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sponnect/sponnect/internal/domain/access"
	"github.com/sponnect/sponnect/internal/domain/adrequest"
	"github.com/sponnect/sponnect/internal/domain/apperr"
	"github.com/sponnect/sponnect/internal/domain/event"
	domainProgress "github.com/sponnect/sponnect/internal/domain/progress"
	"github.com/sponnect/sponnect/internal/domain/txn"
	"github.com/sponnect/sponnect/internal/domain/user"
)

// Service runs the deliverable review cycle of accepted ad requests.
type Service struct {
	updates    domainProgress.Repository
	adRequests adrequest.Repository
	users      user.Repository
	tx         txn.Manager
	events     event.Publisher
	now        func() time.Time
	logger     zerolog.Logger
}

// NewService creates a progress service.
func NewService(
	updates domainProgress.Repository,
	adRequests adrequest.Repository,
	users user.Repository,
	tx txn.Manager,
	events event.Publisher,
	logger zerolog.Logger,
) *Service {
	return &Service{
		updates:    updates,
		adRequests: adRequests,
		users:      users,
		tx:         tx,
		events:     events,
		now:        func() time.Time { return time.Now().UTC() },
		logger:     logger.With().Str("service", "progress").Logger(),
	}
}

// Submit records a new Pending update from the target influencer.
func (s *Service) Submit(ctx context.Context, actor access.Actor, adRequestID uuid.UUID, in domainProgress.SubmitInput) (*domainProgress.Update, error) {
	req, err := s.adRequests.GetByID(ctx, adRequestID)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, apperr.NotFound("ad request not found")
	}
	if err := access.Check(access.OpSubmitProgress, actor, subjectOf(req)); err != nil {
		return nil, err
	}
	u, err := s.users.GetByID(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	if !u.IsActive() {
		return nil, apperr.Forbidden("account is not active")
	}
	if req.Status != adrequest.StatusAccepted {
		return nil, domainProgress.ErrNotCollaborating.WithDetail("status", req.Status)
	}

	update, err := domainProgress.NewUpdate(req.AdRequestID, in, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.updates.Create(ctx, update); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("adRequestId", req.AdRequestID.String()).
		Str("updateId", update.UpdateID.String()).
		Int("mediaCount", len(update.MediaURLs)).
		Msg("progress update submitted")
	s.events.Publish(ctx, s.eventFor(event.ProgressSubmitted, actor, req, update, "submit"))
	return update, nil
}

// Review approves a Pending update or sends it back for revision.
func (s *Service) Review(ctx context.Context, actor access.Actor, updateID uuid.UUID, review domainProgress.Review) (*domainProgress.Update, error) {
	var (
		update *domainProgress.Update
		req    *adrequest.AdRequest
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		update, err = s.updates.GetForUpdate(ctx, updateID)
		if err != nil {
			return err
		}
		if update == nil {
			return apperr.NotFound("progress update not found")
		}
		req, err = s.adRequests.GetByID(ctx, update.AdRequestID)
		if err != nil {
			return err
		}
		if req == nil {
			return apperr.Invariant("progress update without ad request", nil)
		}
		if err := access.Check(access.OpReviewProgress, actor, subjectOf(req)); err != nil {
			return err
		}
		if err := update.Apply(review, actor.ID, s.now()); err != nil {
			return err
		}
		return s.updates.Update(ctx, update)
	})
	if err != nil {
		if apperr.IsKind(err, apperr.KindInvariant) {
			s.logger.Error().Err(err).Str("updateId", updateID.String()).Msg("progress review aborted")
		}
		return nil, err
	}

	action := domainProgress.ActionName(review)
	s.logger.Info().
		Str("updateId", updateID.String()).
		Str("action", action).
		Str("status", string(update.Status)).
		Msg("progress update reviewed")
	s.events.Publish(ctx, s.eventFor(event.ProgressReviewed, actor, req, update, action))
	return update, nil
}

// List returns the updates of a request, newest first.
func (s *Service) List(ctx context.Context, actor access.Actor, adRequestID uuid.UUID) ([]*domainProgress.Update, error) {
	req, err := s.adRequests.GetByID(ctx, adRequestID)
	if err != nil {
		return nil, err
	}
	if req == nil || !access.Allowed(access.OpViewProgress, actor, subjectOf(req)) {
		return nil, apperr.NotFound("ad request not found")
	}
	return s.updates.ListByAdRequest(ctx, adRequestID)
}

func (s *Service) eventFor(name event.Name, actor access.Actor, req *adrequest.AdRequest, u *domainProgress.Update, action string) event.Event {
	e := event.New(name)
	e.AdRequestID = req.AdRequestID
	e.CampaignID = req.CampaignID
	e.SponsorID = req.SponsorID
	e.InfluencerID = req.InfluencerID
	e.Action = action
	e.Status = string(u.Status)
	e.ActorID = actor.UserID()
	e.ActorRole = string(actor.Role)
	id := u.UpdateID
	e.SubjectID = &id
	return e
}

func subjectOf(req *adrequest.AdRequest) access.Subject {
	return access.Subject{SponsorID: req.SponsorID, InfluencerID: req.InfluencerID}
}
