package adrequest

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sponnect/sponnect/internal/domain/access"
	"github.com/sponnect/sponnect/internal/domain/apperr"
	"github.com/sponnect/sponnect/internal/domain/user"
)

type fixture struct {
	sponsor    access.Actor
	influencer access.Actor
	campaignID uuid.UUID
	now        time.Time
}

func newFixture() fixture {
	return fixture{
		sponsor:    access.Actor{ID: uuid.New(), Role: user.RoleSponsor},
		influencer: access.Actor{ID: uuid.New(), Role: user.RoleInfluencer},
		campaignID: uuid.New(),
		now:        time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (f fixture) outreach(t *testing.T) (*AdRequest, *HistoryEntry) {
	t.Helper()
	r, e, err := New(NewInput{
		CampaignID:   f.campaignID,
		SponsorID:    f.sponsor.ID,
		InfluencerID: f.influencer.ID,
		InitiatorID:  f.sponsor.ID,
		Terms:        Terms{PaymentAmount: amountPtr("1000"), Requirements: "3 posts"},
	}, f.now)
	require.NoError(t, err)
	return r, e
}

func (f fixture) application(t *testing.T) *AdRequest {
	t.Helper()
	r, _, err := New(NewInput{
		CampaignID:   f.campaignID,
		SponsorID:    f.sponsor.ID,
		InfluencerID: f.influencer.ID,
		InitiatorID:  f.influencer.ID,
		Terms: Terms{
			PaymentAmount: amountPtr("800"),
			Requirements:  DefaultApplicationRequirements,
			Message:       strPtr(DefaultApplicationMessage),
		},
	}, f.now)
	require.NoError(t, err)
	return r
}

func mustApply(t *testing.T, r *AdRequest, actor access.Actor, a Action, at time.Time) *Transition {
	t.Helper()
	tr, err := Apply(r, actor, a, at)
	require.NoError(t, err)
	return tr
}

func TestNew(t *testing.T) {
	f := newFixture()

	t.Run("sponsor outreach", func(t *testing.T) {
		r, e := f.outreach(t)
		assert.Equal(t, StatusPending, r.Status)
		assert.Equal(t, PartySponsor, r.LastOfferBy)
		assert.Equal(t, 1, r.Version)
		assert.False(t, r.IsApplication())
		assert.Equal(t, ActionPropose, e.Action)
		assert.Equal(t, user.RoleSponsor, e.UserRole)
		require.NotNil(t, e.UserID)
		assert.Equal(t, f.sponsor.ID, *e.UserID)
		assert.True(t, e.Matches(r))
	})

	t.Run("influencer application", func(t *testing.T) {
		r := f.application(t)
		assert.Equal(t, PartyInfluencer, r.LastOfferBy)
		assert.True(t, r.IsApplication())
		require.NotNil(t, r.Message)
		assert.Equal(t, DefaultApplicationMessage, *r.Message)
	})

	t.Run("validation", func(t *testing.T) {
		base := NewInput{CampaignID: f.campaignID, SponsorID: f.sponsor.ID, InfluencerID: f.influencer.ID, InitiatorID: f.sponsor.ID}

		in := base
		in.Terms = Terms{Requirements: "3 posts"}
		_, _, err := New(in, f.now)
		assert.True(t, apperr.IsKind(err, apperr.KindValidation))

		in.Terms = Terms{PaymentAmount: amountPtr("100"), Requirements: "   "}
		_, _, err = New(in, f.now)
		assert.True(t, apperr.IsKind(err, apperr.KindValidation))

		for _, v := range []string{"1000000000000", "1e20"} {
			in = base
			in.Terms = Terms{PaymentAmount: amountPtr(v), Requirements: "3 posts"}
			_, _, err = New(in, f.now)
			e, ok := apperr.As(err)
			require.True(t, ok, v)
			assert.Equal(t, "payment_amount", e.Field, v)
		}

		in = base
		in.InitiatorID = uuid.New()
		in.Terms = Terms{PaymentAmount: amountPtr("100"), Requirements: "x"}
		_, _, err = New(in, f.now)
		assert.True(t, apperr.IsKind(err, apperr.KindValidation))
	})
}

// Walks the full negotiation: propose, counter, counter, accept.
func TestApply_NegotiationScenario(t *testing.T) {
	f := newFixture()
	r, first := f.outreach(t)
	ledger := []*HistoryEntry{first}

	t1 := f.now.Add(time.Hour)
	tr := mustApply(t, r, f.influencer, Counter{Amount: decimal.NewFromInt(1500)}, t1)
	assert.Equal(t, StatusNegotiating, tr.Request.Status)
	assert.Equal(t, PartyInfluencer, tr.Request.LastOfferBy)
	assert.True(t, tr.Request.PaymentAmount.Equal(decimal.NewFromInt(1500)))
	assert.Equal(t, ActionNegotiate, tr.Entry.Action)
	assert.Equal(t, t1, tr.Request.UpdatedAt)
	assert.Equal(t, 2, tr.Request.Version)
	ledger = append(ledger, tr.Entry)
	r = tr.Request

	tr = mustApply(t, r, f.sponsor, Counter{Amount: decimal.NewFromInt(1200), Message: strPtr("meet halfway")}, t1.Add(time.Hour))
	assert.Equal(t, PartySponsor, tr.Request.LastOfferBy)
	require.NotNil(t, tr.Request.Message)
	assert.Equal(t, "meet halfway", *tr.Request.Message)
	ledger = append(ledger, tr.Entry)
	r = tr.Request

	tr = mustApply(t, r, f.influencer, Accept{}, t1.Add(2*time.Hour))
	assert.Equal(t, StatusAccepted, tr.Request.Status)
	assert.True(t, tr.Request.PaymentAmount.Equal(decimal.NewFromInt(1200)))
	assert.Equal(t, PartySponsor, tr.Request.LastOfferBy)
	assert.Equal(t, ActionAccept, tr.Entry.Action)
	ledger = append(ledger, tr.Entry)
	r = tr.Request

	assert.Len(t, ledger, 4)
	for _, a := range []Action{Accept{}, Reject{}} {
		_, err := Apply(r, f.influencer, a, t1.Add(3*time.Hour))
		assert.True(t, errors.Is(err, ErrTerminal))
	}
}

func TestApply_DoesNotMutateInput(t *testing.T) {
	f := newFixture()
	r, _ := f.outreach(t)
	before := *r

	_ = mustApply(t, r, f.influencer, Counter{Amount: decimal.NewFromInt(2000), Requirements: strPtr("5 posts")}, f.now.Add(time.Minute))

	assert.Equal(t, before, *r)
}

func TestApply_TurnInvariant(t *testing.T) {
	f := newFixture()
	r, _ := f.outreach(t)
	r = mustApply(t, r, f.influencer, Counter{Amount: decimal.NewFromInt(1500)}, f.now).Request
	require.Equal(t, StatusNegotiating, r.Status)

	actions := []Action{Accept{}, Reject{}, Counter{Amount: decimal.NewFromInt(1)}}
	for _, a := range actions {
		_, err := Apply(r, f.influencer, a, f.now)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrNotYourTurn))
		assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
	}

	// the sponsor may act on every variant
	for _, a := range actions {
		_, err := Apply(r, f.sponsor, a, f.now)
		assert.NoError(t, err)
	}
}

func TestApply_PendingIsCounterpartyOnly(t *testing.T) {
	f := newFixture()

	t.Run("outreach", func(t *testing.T) {
		r, _ := f.outreach(t)
		for _, a := range []Action{Accept{}, Reject{}, Counter{Amount: decimal.NewFromInt(1)}} {
			_, err := Apply(r, f.sponsor, a, f.now)
			assert.True(t, errors.Is(err, ErrNotYourTurn))
		}
		tr := mustApply(t, r, f.influencer, Reject{}, f.now)
		assert.Equal(t, StatusRejected, tr.Request.Status)
		assert.Equal(t, ActionReject, tr.Entry.Action)
	})

	t.Run("application", func(t *testing.T) {
		r := f.application(t)
		_, err := Apply(r, f.influencer, Accept{}, f.now)
		assert.True(t, errors.Is(err, ErrNotYourTurn))

		tr := mustApply(t, r, f.sponsor, Accept{}, f.now)
		assert.Equal(t, StatusAccepted, tr.Request.Status)
		assert.Equal(t, ActionAcceptApplication, tr.Entry.Action)

		tr = mustApply(t, r, f.sponsor, Reject{}, f.now)
		assert.Equal(t, ActionRejectApplication, tr.Entry.Action)
	})

	t.Run("application accepted after negotiating is a plain accept", func(t *testing.T) {
		r := f.application(t)
		r = mustApply(t, r, f.sponsor, Counter{Amount: decimal.NewFromInt(700)}, f.now).Request
		r = mustApply(t, r, f.influencer, Counter{Amount: decimal.NewFromInt(750)}, f.now).Request
		tr := mustApply(t, r, f.sponsor, Accept{}, f.now)
		assert.Equal(t, ActionAccept, tr.Entry.Action)
	})
}

func TestApply_NonParties(t *testing.T) {
	f := newFixture()
	r, _ := f.outreach(t)

	outsiders := []access.Actor{
		{ID: uuid.New(), Role: user.RoleSponsor},
		{ID: uuid.New(), Role: user.RoleInfluencer},
		{ID: uuid.New(), Role: user.RoleAdmin},
		{ID: f.influencer.ID, Role: user.RoleSponsor},
	}
	for _, actor := range outsiders {
		_, err := Apply(r, actor, Accept{}, f.now)
		assert.True(t, errors.Is(err, ErrNotParty), actor.String())
	}
}

func TestApply_TerminalImmutability(t *testing.T) {
	f := newFixture()
	accepted, _ := f.outreach(t)
	accepted = mustApply(t, accepted, f.influencer, Accept{}, f.now).Request
	rejected, _ := f.outreach(t)
	rejected = mustApply(t, rejected, f.influencer, Reject{}, f.now).Request

	for _, r := range []*AdRequest{accepted, rejected} {
		before := *r
		for _, actor := range []access.Actor{f.sponsor, f.influencer} {
			for _, a := range []Action{Accept{}, Reject{}, Counter{Amount: decimal.NewFromInt(5)}} {
				_, err := Apply(r, actor, a, f.now)
				require.Error(t, err)
				assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
			}
		}
		_, err := Apply(r, access.System(), Expire{}, f.now)
		assert.True(t, errors.Is(err, ErrTerminal))
		assert.Equal(t, before, *r)
	}
}

func TestApply_HistoryCompleteness(t *testing.T) {
	f := newFixture()
	r, _ := f.outreach(t)

	steps := []struct {
		actor  access.Actor
		action Action
	}{
		{f.influencer, Counter{Amount: decimal.NewFromInt(1500), Requirements: strPtr("4 posts")}},
		{f.sponsor, Counter{Amount: decimal.RequireFromString("1250.50"), Message: strPtr("final")}},
		{f.influencer, Counter{Amount: decimal.NewFromInt(1300)}},
		{f.sponsor, Accept{}},
	}
	for i, st := range steps {
		tr := mustApply(t, r, st.actor, st.action, f.now.Add(time.Duration(i)*time.Minute))
		assert.True(t, tr.Entry.Matches(tr.Request), "step %d", i)
		assert.Equal(t, st.actor.Role, tr.Entry.UserRole)
		assert.Equal(t, tr.Request.UpdatedAt, tr.Entry.CreatedAt)
		assert.Equal(t, r.Status, tr.Previous)
		r = tr.Request
	}
	assert.Equal(t, "4 posts", r.Requirements)
}

func TestApply_Expire(t *testing.T) {
	f := newFixture()
	r, _ := f.outreach(t)

	_, err := Apply(r, f.influencer, Expire{}, f.now)
	assert.True(t, errors.Is(err, ErrSystemOnly))

	tr := mustApply(t, r, access.System(), Expire{}, f.now)
	assert.Equal(t, StatusRejected, tr.Request.Status)
	assert.Equal(t, ActionExpire, tr.Entry.Action)
	assert.Equal(t, access.RoleSystem, tr.Entry.UserRole)
	assert.Nil(t, tr.Entry.UserID)

	_, err = Apply(r, access.System(), Accept{}, f.now)
	assert.True(t, errors.Is(err, ErrNotParty))
}

func TestStatus_CanTransitionTo(t *testing.T) {
	assert.True(t, StatusPending.CanTransitionTo(StatusNegotiating))
	assert.True(t, StatusNegotiating.CanTransitionTo(StatusNegotiating))
	assert.False(t, StatusNegotiating.CanTransitionTo(StatusPending))
	assert.False(t, StatusAccepted.CanTransitionTo(StatusRejected))
	assert.False(t, Status("Unknown").CanTransitionTo(StatusPending))
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus("Negotiating")
	require.NoError(t, err)
	assert.Equal(t, StatusNegotiating, s)
	_, err = ParseStatus("negotiating")
	assert.Error(t, err)
}
