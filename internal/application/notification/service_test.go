package notification

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/sponnect/sponnect/internal/domain/adrequest"
	adrequestmocks "github.com/sponnect/sponnect/internal/domain/adrequest/mocks"
	"github.com/sponnect/sponnect/internal/domain/event"
	domainNotification "github.com/sponnect/sponnect/internal/domain/notification"
	notificationmocks "github.com/sponnect/sponnect/internal/domain/notification/mocks"
)

func TestCompileRules(t *testing.T) {
	_, err := compileRules([]domainNotification.Rule{{Name: "broken", Condition: "(amount >= 5", Group: "g"}})
	assert.Error(t, err)

	rules, err := compileRules([]domainNotification.Rule{
		{Name: "always", Condition: "", Group: "g"},
		{Name: "literal", Condition: "TRUE", Group: "g"},
		{Name: "big", Condition: "event == 'payment.completed' && amount >= 1000", Group: "g"},
	})
	require.NoError(t, err)

	params := map[string]interface{}{"event": "payment.completed", "amount": 1200.0}
	for _, r := range rules {
		ok, err := r.matches(params)
		require.NoError(t, err)
		assert.True(t, ok, r.Name)
	}

	ok, err := rules[2].matches(map[string]interface{}{"event": "payment.completed", "amount": 10.0})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCompiledRule_NonBoolean(t *testing.T) {
	rules, err := compileRules([]domainNotification.Rule{{Name: "sum", Condition: "amount + 1", Group: "g"}})
	require.NoError(t, err)
	_, err = rules[0].matches(map[string]interface{}{"amount": 1.0})
	assert.Error(t, err)
}

func TestHandle(t *testing.T) {
	ctrl := gomock.NewController(t)
	hub := notificationmocks.NewMockSSEHub(ctrl)
	svc, err := NewService(hub, nil, []domainNotification.Rule{
		{Name: "accepted deals", Condition: "action == 'accept'", Group: domainNotification.GroupAdmins},
		{Name: "bad param", Condition: "missing > 1", Group: "never"},
	}, zerolog.Nop())
	require.NoError(t, err)

	e := event.New(event.NegotiationTransitioned)
	e.SponsorID = uuid.New()
	e.InfluencerID = uuid.New()
	e.Action = "accept"
	e.Status = "Accepted"

	var delivered *domainNotification.SSEMessage
	hub.EXPECT().BroadcastToUser(e.SponsorID.String(), gomock.Any()).
		Do(func(_ string, m *domainNotification.SSEMessage) { delivered = m })
	hub.EXPECT().BroadcastToUser(e.InfluencerID.String(), gomock.Any())
	hub.EXPECT().BroadcastToGroup(domainNotification.GroupAdmins, gomock.Any())

	require.NoError(t, svc.Handle(context.Background(), e))

	require.NotNil(t, delivered)
	assert.Equal(t, string(event.NegotiationTransitioned), delivered.Event)
	var decoded event.Event
	require.NoError(t, json.Unmarshal(delivered.Data, &decoded))
	assert.Equal(t, e.ID, decoded.ID)
}

func TestHandle_SkipsMissingParties(t *testing.T) {
	ctrl := gomock.NewController(t)
	hub := notificationmocks.NewMockSSEHub(ctrl)
	svc, err := NewService(hub, nil, nil, zerolog.Nop())
	require.NoError(t, err)

	e := event.New(event.CampaignDeleted)
	e.SponsorID = uuid.New()
	hub.EXPECT().BroadcastToUser(e.SponsorID.String(), gomock.Any()).Times(1)

	require.NoError(t, svc.Handle(context.Background(), e))
}

func idleRequest(status adrequest.Status, updatedAt time.Time) *adrequest.AdRequest {
	sponsorID := uuid.New()
	return &adrequest.AdRequest{
		AdRequestID:   uuid.New(),
		CampaignID:    uuid.New(),
		SponsorID:     sponsorID,
		InfluencerID:  uuid.New(),
		InitiatorID:   sponsorID,
		PaymentAmount: decimal.NewFromInt(900),
		Status:        status,
		LastOfferBy:   adrequest.PartySponsor,
		Version:       1,
		UpdatedAt:     updatedAt,
	}
}

func decodeNotice(t *testing.T, m *domainNotification.SSEMessage) event.Event {
	t.Helper()
	var e event.Event
	require.NoError(t, json.Unmarshal(m.Data, &e))
	return e
}

func TestSendPendingReminders(t *testing.T) {
	ctrl := gomock.NewController(t)
	hub := notificationmocks.NewMockSSEHub(ctrl)
	repo := adrequestmocks.NewMockRepository(ctrl)
	svc, err := NewService(hub, repo, nil, zerolog.Nop())
	require.NoError(t, err)
	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	policy := ReminderPolicy{After: 72 * time.Hour, UrgentAfter: 168 * time.Hour}
	pending := []adrequest.Status{adrequest.StatusPending}
	cutoff := now.Add(-72 * time.Hour)

	recent := idleRequest(adrequest.StatusPending, now.Add(-4*24*time.Hour))
	old := idleRequest(adrequest.StatusPending, now.Add(-9*24*time.Hour))

	t.Run("both parties reminded per tier", func(t *testing.T) {
		repo.EXPECT().ListIdle(gomock.Any(), pending, cutoff, 50).Return([]*adrequest.AdRequest{recent, old}, nil)
		got := map[string]event.Event{}
		hub.EXPECT().BroadcastToUser(gomock.Any(), gomock.Any()).Times(4).
			Do(func(userID string, m *domainNotification.SSEMessage) { got[userID] = decodeNotice(t, m) })

		n, err := svc.SendPendingReminders(context.Background(), policy, 50)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		for _, id := range []uuid.UUID{recent.SponsorID, recent.InfluencerID} {
			assert.Equal(t, TierReminder, got[id.String()].Action)
			assert.Equal(t, 4, got[id.String()].IdleDays)
		}
		for _, id := range []uuid.UUID{old.SponsorID, old.InfluencerID} {
			assert.Equal(t, TierUrgent, got[id.String()].Action)
			assert.Equal(t, event.NegotiationReminder, got[id.String()].Name)
		}
	})

	t.Run("same state is reminded once", func(t *testing.T) {
		repo.EXPECT().ListIdle(gomock.Any(), pending, cutoff, 50).Return([]*adrequest.AdRequest{recent, old}, nil)
		n, err := svc.SendPendingReminders(context.Background(), policy, 50)
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	})

	t.Run("escalates when a reminded request turns urgent", func(t *testing.T) {
		later := now.Add(4 * 24 * time.Hour)
		svc.now = func() time.Time { return later }
		repo.EXPECT().ListIdle(gomock.Any(), pending, later.Add(-72*time.Hour), 50).Return([]*adrequest.AdRequest{recent}, nil)
		hub.EXPECT().BroadcastToUser(recent.SponsorID.String(), gomock.Any()).
			Do(func(_ string, m *domainNotification.SSEMessage) {
				assert.Equal(t, TierUrgent, decodeNotice(t, m).Action)
			})
		hub.EXPECT().BroadcastToUser(recent.InfluencerID.String(), gomock.Any())

		n, err := svc.SendPendingReminders(context.Background(), policy, 50)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})
}

func TestSendStaleNotices(t *testing.T) {
	ctrl := gomock.NewController(t)
	hub := notificationmocks.NewMockSSEHub(ctrl)
	repo := adrequestmocks.NewMockRepository(ctrl)
	svc, err := NewService(hub, repo, nil, zerolog.Nop())
	require.NoError(t, err)
	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	policy := StalePolicy{After: 14 * 24 * time.Hour, VeryStaleAfter: 30 * 24 * time.Hour}
	open := []adrequest.Status{adrequest.StatusPending, adrequest.StatusNegotiating}
	negotiating := []adrequest.Status{adrequest.StatusNegotiating}

	stale := idleRequest(adrequest.StatusNegotiating, now.Add(-15*24*time.Hour))
	veryStale := idleRequest(adrequest.StatusNegotiating, now.Add(-31*24*time.Hour))
	abandoned := idleRequest(adrequest.StatusPending, now.Add(-40*24*time.Hour))

	expectListings := func() {
		repo.EXPECT().ListIdle(gomock.Any(), open, now.Add(-30*24*time.Hour), 50).Return([]*adrequest.AdRequest{abandoned, veryStale}, nil)
		repo.EXPECT().ListIdle(gomock.Any(), negotiating, now.Add(-14*24*time.Hour), 50).Return([]*adrequest.AdRequest{veryStale, stale}, nil)
	}

	t.Run("tiers and admin escalation", func(t *testing.T) {
		expectListings()
		got := map[string]event.Event{}
		hub.EXPECT().BroadcastToUser(gomock.Any(), gomock.Any()).Times(6).
			Do(func(userID string, m *domainNotification.SSEMessage) { got[userID] = decodeNotice(t, m) })
		var escalated []uuid.UUID
		hub.EXPECT().BroadcastToGroup(domainNotification.GroupAdmins, gomock.Any()).Times(2).
			Do(func(_ string, m *domainNotification.SSEMessage) {
				escalated = append(escalated, decodeNotice(t, m).AdRequestID)
			})

		n, err := svc.SendStaleNotices(context.Background(), policy, 50)
		require.NoError(t, err)
		assert.Equal(t, 3, n)

		assert.Equal(t, TierStale, got[stale.SponsorID.String()].Action)
		assert.Equal(t, TierStale, got[stale.InfluencerID.String()].Action)
		assert.Equal(t, TierVeryStale, got[veryStale.SponsorID.String()].Action)
		assert.Equal(t, TierVeryStale, got[abandoned.InfluencerID.String()].Action)
		assert.Equal(t, 40, got[abandoned.SponsorID.String()].IdleDays)
		assert.Equal(t, event.NegotiationStale, got[stale.SponsorID.String()].Name)
		assert.ElementsMatch(t, []uuid.UUID{abandoned.AdRequestID, veryStale.AdRequestID}, escalated)
	})

	t.Run("notices are not repeated", func(t *testing.T) {
		expectListings()
		n, err := svc.SendStaleNotices(context.Background(), policy, 50)
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	})

	t.Run("renewed after the request moves", func(t *testing.T) {
		moved := *stale
		moved.Version = 2
		repo.EXPECT().ListIdle(gomock.Any(), open, now.Add(-30*24*time.Hour), 50).Return(nil, nil)
		repo.EXPECT().ListIdle(gomock.Any(), negotiating, now.Add(-14*24*time.Hour), 50).Return([]*adrequest.AdRequest{&moved}, nil)
		hub.EXPECT().BroadcastToUser(gomock.Any(), gomock.Any()).Times(2)

		n, err := svc.SendStaleNotices(context.Background(), policy, 50)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})
}
