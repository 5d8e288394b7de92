package notification

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sponnect/sponnect/internal/domain/adrequest"
	"github.com/sponnect/sponnect/internal/domain/event"
	domainNotification "github.com/sponnect/sponnect/internal/domain/notification"
)

// Service pushes committed changes to the parties' streams and to rule groups.
// It only observes; nothing here writes negotiation state.
type Service struct {
	hub        domainNotification.SSEHub
	adRequests adrequest.Repository
	rules      []compiledRule
	now        func() time.Time
	logger     zerolog.Logger

	mu       sync.Mutex
	notified map[noticeKey]struct{}
}

// NewService creates a notification service. Rules with invalid conditions
// are rejected here rather than at delivery time.
func NewService(hub domainNotification.SSEHub, adRequests adrequest.Repository, rules []domainNotification.Rule, logger zerolog.Logger) (*Service, error) {
	compiled, err := compileRules(rules)
	if err != nil {
		return nil, err
	}
	return &Service{
		hub:        hub,
		adRequests: adRequests,
		rules:      compiled,
		now:        func() time.Time { return time.Now().UTC() },
		logger:     logger.With().Str("service", "notification").Logger(),
		notified:   make(map[noticeKey]struct{}),
	}, nil
}

// Handle delivers e to both parties and to every group whose rule matches.
func (s *Service) Handle(_ context.Context, e event.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	msg := domainNotification.NewSSEMessage(string(e.Name), data)

	for _, id := range []uuid.UUID{e.SponsorID, e.InfluencerID} {
		if id != uuid.Nil {
			s.hub.BroadcastToUser(id.String(), msg)
		}
	}

	params := e.Params()
	for _, r := range s.rules {
		ok, err := r.matches(params)
		if err != nil {
			s.logger.Warn().Err(err).Str("rule", r.Name).Str("event", string(e.Name)).Msg("notification rule failed")
			continue
		}
		if ok {
			s.hub.BroadcastToGroup(r.Group, msg)
		}
	}
	return nil
}

// Notice tiers. A request is notified once per tier and version.
const (
	TierReminder  = "remind"
	TierUrgent    = "remind_urgent"
	TierStale     = "stale"
	TierVeryStale = "very_stale"
)

type noticeKey struct {
	id      uuid.UUID
	version int
	tier    string
}

// ReminderPolicy sets when pending requests are reminded.
type ReminderPolicy struct {
	After       time.Duration
	UrgentAfter time.Duration
}

// StalePolicy sets when idle negotiations are reported. Very stale notices
// also reach the admins group.
type StalePolicy struct {
	After          time.Duration
	VeryStaleAfter time.Duration
}

// SendPendingReminders reminds both parties of Pending requests idle longer
// than p.After, escalating to an urgent reminder past p.UrgentAfter.
func (s *Service) SendPendingReminders(ctx context.Context, p ReminderPolicy, limit int) (int, error) {
	now := s.now()
	idle, err := s.adRequests.ListIdle(ctx, []adrequest.Status{adrequest.StatusPending}, now.Add(-p.After), limit)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	sent := 0
	for _, req := range idle {
		tier := TierReminder
		if !req.UpdatedAt.After(now.Add(-p.UrgentAfter)) {
			tier = TierUrgent
		}
		ok, err := s.noticeLocked(req, event.NegotiationReminder, tier, now, false)
		if err != nil {
			return sent, err
		}
		if ok {
			sent++
		}
	}
	if len(idle) < limit {
		s.pruneLocked(idle, TierReminder, TierUrgent)
	}
	return sent, nil
}

// SendStaleNotices reports Negotiating requests idle longer than p.After to
// both parties, and any open request idle longer than p.VeryStaleAfter to
// both parties and the admins group. Nothing is transitioned.
func (s *Service) SendStaleNotices(ctx context.Context, p StalePolicy, limit int) (int, error) {
	now := s.now()
	veryStale, err := s.adRequests.ListIdle(ctx,
		[]adrequest.Status{adrequest.StatusPending, adrequest.StatusNegotiating},
		now.Add(-p.VeryStaleAfter), limit)
	if err != nil {
		return 0, err
	}
	stale, err := s.adRequests.ListIdle(ctx,
		[]adrequest.Status{adrequest.StatusNegotiating},
		now.Add(-p.After), limit)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	sent := 0
	escalated := make(map[uuid.UUID]struct{}, len(veryStale))
	for _, req := range veryStale {
		escalated[req.AdRequestID] = struct{}{}
		ok, err := s.noticeLocked(req, event.NegotiationStale, TierVeryStale, now, true)
		if err != nil {
			return sent, err
		}
		if ok {
			sent++
		}
	}
	for _, req := range stale {
		if _, ok := escalated[req.AdRequestID]; ok {
			continue
		}
		ok, err := s.noticeLocked(req, event.NegotiationStale, TierStale, now, false)
		if err != nil {
			return sent, err
		}
		if ok {
			sent++
		}
	}
	if len(veryStale) < limit {
		s.pruneLocked(veryStale, TierVeryStale)
	}
	if len(stale) < limit {
		s.pruneLocked(stale, TierStale)
	}
	return sent, nil
}

// noticeLocked pushes one notice to both parties, and to admins when
// escalate is set. It reports false when this tier was already sent for
// the request's current version.
func (s *Service) noticeLocked(req *adrequest.AdRequest, name event.Name, tier string, now time.Time, escalate bool) (bool, error) {
	key := noticeKey{id: req.AdRequestID, version: req.Version, tier: tier}
	if _, ok := s.notified[key]; ok {
		return false, nil
	}

	e := event.New(name)
	e.AdRequestID = req.AdRequestID
	e.CampaignID = req.CampaignID
	e.SponsorID = req.SponsorID
	e.InfluencerID = req.InfluencerID
	e.Action = tier
	e.Status = string(req.Status)
	e.ActorRole = string(req.NextParty())
	e.IdleDays = int(now.Sub(req.UpdatedAt).Hours() / 24)
	amount := req.PaymentAmount
	e.Amount = &amount

	data, err := json.Marshal(e)
	if err != nil {
		return false, err
	}
	msg := domainNotification.NewSSEMessage(string(e.Name), data)
	s.hub.BroadcastToUser(req.SponsorID.String(), msg)
	s.hub.BroadcastToUser(req.InfluencerID.String(), msg)
	if escalate {
		s.hub.BroadcastToGroup(domainNotification.GroupAdmins, msg)
	}
	s.notified[key] = struct{}{}
	s.logger.Debug().Str("adRequestId", req.AdRequestID.String()).Str("tier", tier).Int("idleDays", e.IdleDays).Msg("notice sent")
	return true, nil
}

// pruneLocked forgets notices of the given tiers for requests that are no
// longer idle. idle must be the complete idle set for those tiers.
func (s *Service) pruneLocked(idle []*adrequest.AdRequest, tiers ...string) {
	current := make(map[uuid.UUID]struct{}, len(idle))
	for _, req := range idle {
		current[req.AdRequestID] = struct{}{}
	}
	for key := range s.notified {
		if _, ok := current[key.id]; ok {
			continue
		}
		for _, t := range tiers {
			if key.tier == t {
				delete(s.notified, key)
				break
			}
		}
	}
}
