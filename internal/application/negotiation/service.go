package negotiation

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sponnect/sponnect/internal/domain/access"
	"github.com/sponnect/sponnect/internal/domain/adrequest"
	"github.com/sponnect/sponnect/internal/domain/apperr"
	"github.com/sponnect/sponnect/internal/domain/campaign"
	"github.com/sponnect/sponnect/internal/domain/event"
	"github.com/sponnect/sponnect/internal/domain/txn"
	"github.com/sponnect/sponnect/internal/domain/user"
	"github.com/sponnect/sponnect/internal/infrastructure/metrics"
)

var errNotFound = apperr.NotFound("ad request not found")

// Service owns the ad request state machine and its ledger.
type Service struct {
	adRequests adrequest.Repository
	campaigns  campaign.Repository
	users      user.Repository
	tx         txn.Manager
	events     event.Publisher
	now        func() time.Time
	logger     zerolog.Logger
}

// NewService creates a negotiation service.
func NewService(
	adRequests adrequest.Repository,
	campaigns campaign.Repository,
	users user.Repository,
	tx txn.Manager,
	events event.Publisher,
	logger zerolog.Logger,
) *Service {
	return &Service{
		adRequests: adRequests,
		campaigns:  campaigns,
		users:      users,
		tx:         tx,
		events:     events,
		now:        func() time.Time { return time.Now().UTC() },
		logger:     logger.With().Str("service", "negotiation").Logger(),
	}
}

// CreateInput opens a sponsor outreach.
type CreateInput struct {
	CampaignID   uuid.UUID
	InfluencerID uuid.UUID
	Terms        adrequest.Terms
}

// ApplyInput opens an influencer application. Blank requirements and a nil
// message fall back to the default application terms.
type ApplyInput struct {
	CampaignID uuid.UUID
	Terms      adrequest.Terms
}

// Result is a committed transition.
type Result struct {
	AdRequest    *adrequest.AdRequest    `json:"adRequest"`
	HistoryEntry *adrequest.HistoryEntry `json:"historyEntry"`
}

// ListFilter narrows List. Party scoping is derived from the actor.
type ListFilter struct {
	CampaignID *uuid.UUID
	Status     *adrequest.Status
	Limit      int
	Offset     int
}

// CreateAdRequest opens a Pending request from the campaign's sponsor to an influencer.
func (s *Service) CreateAdRequest(ctx context.Context, actor access.Actor, in CreateInput) (*Result, error) {
	c, err := s.campaigns.GetByID(ctx, in.CampaignID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, apperr.NotFound("campaign not found")
	}
	if err := access.Check(access.OpCreateAdRequest, actor, access.Subject{SponsorID: c.SponsorID}); err != nil {
		return nil, err
	}
	sponsor, err := s.users.GetByID(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	if !sponsor.CanSponsor() {
		return nil, apperr.Forbidden("sponsor account is not active or not approved")
	}
	influencer, err := s.users.GetByID(ctx, in.InfluencerID)
	if err != nil {
		return nil, err
	}
	if !influencer.CanInfluence() {
		return nil, apperr.NotFound("influencer not found")
	}

	req, entry, err := adrequest.New(adrequest.NewInput{
		CampaignID:   c.CampaignID,
		SponsorID:    c.SponsorID,
		InfluencerID: in.InfluencerID,
		InitiatorID:  actor.ID,
		Terms:        in.Terms,
	}, s.now())
	if err != nil {
		return nil, err
	}
	return s.open(ctx, actor, req, entry)
}

// ApplyToCampaign opens a Pending request from an influencer to a public campaign.
func (s *Service) ApplyToCampaign(ctx context.Context, actor access.Actor, in ApplyInput) (*Result, error) {
	if err := access.Check(access.OpApplyToCampaign, actor, access.Subject{}); err != nil {
		return nil, err
	}
	influencer, err := s.users.GetByID(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	if !influencer.CanInfluence() {
		return nil, apperr.Forbidden("influencer account is not active")
	}
	c, err := s.campaigns.GetByID(ctx, in.CampaignID)
	if err != nil {
		return nil, err
	}
	// private and flagged campaigns are indistinguishable from missing ones
	if c == nil || !c.AcceptsApplications() {
		return nil, apperr.NotFound("campaign not found")
	}

	terms := in.Terms
	if strings.TrimSpace(terms.Requirements) == "" {
		terms.Requirements = adrequest.DefaultApplicationRequirements
	}
	if terms.Message == nil {
		msg := adrequest.DefaultApplicationMessage
		terms.Message = &msg
	}
	req, entry, err := adrequest.New(adrequest.NewInput{
		CampaignID:   c.CampaignID,
		SponsorID:    c.SponsorID,
		InfluencerID: actor.ID,
		InitiatorID:  actor.ID,
		Terms:        terms,
	}, s.now())
	if err != nil {
		return nil, err
	}
	return s.open(ctx, actor, req, entry)
}

func (s *Service) open(ctx context.Context, actor access.Actor, req *adrequest.AdRequest, entry *adrequest.HistoryEntry) (*Result, error) {
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		existing, err := s.adRequests.GetByPair(ctx, req.CampaignID, req.InfluencerID)
		if err != nil {
			return err
		}
		if existing != nil {
			return adrequest.ErrDuplicate
		}
		if err := s.adRequests.Create(ctx, req); err != nil {
			return err
		}
		return s.adRequests.AppendHistory(ctx, entry)
	})
	if err != nil {
		s.observeFailure(err, req.AdRequestID, actor)
		return nil, err
	}

	metrics.ObserveTransition(string(entry.Action), string(req.Status))
	s.logger.Info().
		Str("adRequestId", req.AdRequestID.String()).
		Str("campaignId", req.CampaignID.String()).
		Str("actorRole", string(actor.Role)).
		Bool("application", req.IsApplication()).
		Msg("ad request opened")

	e := s.eventFor(event.AdRequestCreated, actor, req, entry)
	s.events.Publish(ctx, e)
	return &Result{AdRequest: req, HistoryEntry: entry}, nil
}

// Respond applies accept, reject or a counter-offer to the request.
func (s *Service) Respond(ctx context.Context, actor access.Actor, adRequestID uuid.UUID, in adrequest.ActionInput) (*Result, error) {
	action, err := adrequest.ParseAction(in)
	if err != nil {
		return nil, err
	}
	u, err := s.users.GetByID(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	if !u.IsActive() {
		return nil, apperr.Forbidden("account is not active")
	}
	t, err := s.transition(ctx, actor, adRequestID, action, access.OpRespond, 0)
	if err != nil {
		return nil, err
	}
	return &Result{AdRequest: t.Request, HistoryEntry: t.Entry}, nil
}

// transition runs one state machine step under a row lock. seenVersion > 0
// makes the step fail when the request moved on since it was read.
func (s *Service) transition(ctx context.Context, actor access.Actor, adRequestID uuid.UUID, action adrequest.Action, op access.Operation, seenVersion int) (*adrequest.Transition, error) {
	var t *adrequest.Transition
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		current, err := s.adRequests.GetForUpdate(ctx, adRequestID)
		if err != nil {
			return err
		}
		if current == nil {
			return errNotFound
		}
		if err := access.Check(op, actor, subjectOf(current)); err != nil {
			return err
		}
		if seenVersion > 0 && current.Version != seenVersion {
			return adrequest.ErrStaleState
		}
		t, err = adrequest.Apply(current, actor, action, s.now())
		if err != nil {
			return err
		}
		if !t.Entry.Matches(t.Request) {
			return apperr.Invariant("history snapshot diverges from ad request", nil)
		}
		if err := s.adRequests.Update(ctx, t.Request, current.Version); err != nil {
			return err
		}
		return s.adRequests.AppendHistory(ctx, t.Entry)
	})
	if err != nil {
		s.observeFailure(err, adRequestID, actor)
		return nil, err
	}

	metrics.ObserveTransition(string(t.Entry.Action), string(t.Request.Status))
	s.logger.Info().
		Str("adRequestId", adRequestID.String()).
		Str("action", string(t.Entry.Action)).
		Str("actorRole", string(actor.Role)).
		Str("from", string(t.Previous)).
		Str("status", string(t.Request.Status)).
		Msg("negotiation transitioned")

	s.events.Publish(ctx, s.eventFor(event.NegotiationTransitioned, actor, t.Request, t.Entry))
	return t, nil
}

// Get returns a request visible to actor. Requests the actor may not see
// are reported as missing.
func (s *Service) Get(ctx context.Context, actor access.Actor, adRequestID uuid.UUID) (*adrequest.AdRequest, error) {
	req, err := s.adRequests.GetByID(ctx, adRequestID)
	if err != nil {
		return nil, err
	}
	if req == nil || !access.Allowed(access.OpViewAdRequest, actor, subjectOf(req)) {
		return nil, errNotFound
	}
	return req, nil
}

// List returns the requests actor takes part in, most recently updated first.
// Admins see every request.
func (s *Service) List(ctx context.Context, actor access.Actor, f ListFilter) ([]*adrequest.AdRequest, error) {
	if err := access.Check(access.OpListAdRequests, actor, access.Subject{}); err != nil {
		return nil, err
	}
	filter := adrequest.Filter{CampaignID: f.CampaignID, Status: f.Status}
	switch actor.Role {
	case user.RoleSponsor:
		filter.SponsorID = &actor.ID
	case user.RoleInfluencer:
		filter.InfluencerID = &actor.ID
	}
	limit, offset := f.Limit, f.Offset
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.adRequests.List(ctx, filter, limit, offset)
}

// History returns the ledger of a request, oldest first.
func (s *Service) History(ctx context.Context, actor access.Actor, adRequestID uuid.UUID) ([]*adrequest.HistoryEntry, error) {
	req, err := s.adRequests.GetByID(ctx, adRequestID)
	if err != nil {
		return nil, err
	}
	if req == nil || !access.Allowed(access.OpListHistory, actor, subjectOf(req)) {
		return nil, errNotFound
	}
	return s.adRequests.ListHistory(ctx, adRequestID)
}

// Delete removes a Pending or Rejected request and everything attached to it.
func (s *Service) Delete(ctx context.Context, actor access.Actor, adRequestID uuid.UUID) error {
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		req, err := s.adRequests.GetForUpdate(ctx, adRequestID)
		if err != nil {
			return err
		}
		if req == nil {
			return errNotFound
		}
		if err := access.Check(access.OpDeleteAdRequest, actor, subjectOf(req)); err != nil {
			return err
		}
		if req.Status != adrequest.StatusPending && req.Status != adrequest.StatusRejected {
			return apperr.Conflict("only Pending or Rejected ad requests can be deleted").
				WithDetail("status", req.Status)
		}
		return s.adRequests.Delete(ctx, adRequestID)
	})
	if err != nil {
		return err
	}
	s.logger.Info().Str("adRequestId", adRequestID.String()).Str("actor", actor.String()).Msg("ad request deleted")
	return nil
}

// CampaignSummary lists a campaign's requests with their latest ledger action.
func (s *Service) CampaignSummary(ctx context.Context, actor access.Actor, campaignID uuid.UUID) ([]*adrequest.Summary, error) {
	c, err := s.campaigns.GetByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, apperr.NotFound("campaign not found")
	}
	if err := access.Check(access.OpCampaignSummary, actor, access.Subject{SponsorID: c.SponsorID}); err != nil {
		return nil, err
	}
	return s.adRequests.ListSummaries(ctx, adrequest.Filter{CampaignID: &campaignID})
}

// InfluencerSummary lists the calling influencer's negotiations.
func (s *Service) InfluencerSummary(ctx context.Context, actor access.Actor) ([]*adrequest.Summary, error) {
	if err := access.Check(access.OpInfluencerSummary, actor, access.Subject{}); err != nil {
		return nil, err
	}
	return s.adRequests.ListSummaries(ctx, adrequest.Filter{InfluencerID: &actor.ID})
}

// ExpireStale rejects open negotiations idle for longer than olderThan.
// Requests that change while the sweep runs are left alone.
func (s *Service) ExpireStale(ctx context.Context, olderThan time.Duration, limit int) (int, error) {
	cutoff := s.now().Add(-olderThan)
	idle, err := s.adRequests.ListIdle(ctx, []adrequest.Status{adrequest.StatusPending, adrequest.StatusNegotiating}, cutoff, limit)
	if err != nil {
		return 0, err
	}
	expired := 0
	for _, req := range idle {
		if ctx.Err() != nil {
			return expired, ctx.Err()
		}
		_, err := s.transition(ctx, access.System(), req.AdRequestID, adrequest.Expire{}, access.OpExpire, req.Version)
		switch {
		case err == nil:
			expired++
		case apperr.IsKind(err, apperr.KindConflict), apperr.IsKind(err, apperr.KindNotFound):
			continue
		default:
			return expired, err
		}
	}
	return expired, nil
}

func (s *Service) observeFailure(err error, adRequestID uuid.UUID, actor access.Actor) {
	switch apperr.KindOf(err) {
	case apperr.KindConflict:
		metrics.ObserveConflict(conflictReason(err))
		s.logger.Warn().Err(err).Str("adRequestId", adRequestID.String()).Str("actor", actor.String()).Msg("negotiation write rejected")
	case apperr.KindInvariant:
		s.logger.Error().Err(err).Str("adRequestId", adRequestID.String()).Str("actor", actor.String()).Msg("negotiation invariant violated")
	case "":
		s.logger.Error().Err(err).Str("adRequestId", adRequestID.String()).Msg("negotiation write failed")
	}
}

func conflictReason(err error) string {
	switch {
	case errors.Is(err, adrequest.ErrStaleState):
		return "stale_state"
	case errors.Is(err, adrequest.ErrTerminal):
		return "terminal"
	case errors.Is(err, adrequest.ErrDuplicate):
		return "duplicate"
	}
	return "other"
}

func (s *Service) eventFor(name event.Name, actor access.Actor, req *adrequest.AdRequest, entry *adrequest.HistoryEntry) event.Event {
	e := event.New(name)
	e.AdRequestID = req.AdRequestID
	e.CampaignID = req.CampaignID
	e.SponsorID = req.SponsorID
	e.InfluencerID = req.InfluencerID
	e.Action = string(entry.Action)
	e.Status = string(req.Status)
	e.ActorID = actor.UserID()
	e.ActorRole = string(actor.Role)
	amount := req.PaymentAmount
	e.Amount = &amount
	return e
}

func subjectOf(req *adrequest.AdRequest) access.Subject {
	return access.Subject{SponsorID: req.SponsorID, InfluencerID: req.InfluencerID}
}
