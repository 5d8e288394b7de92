package progress

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

	"github.com/sponnect/sponnect/internal/domain/access"
	"github.com/sponnect/sponnect/internal/domain/adrequest"
	adrequestmocks "github.com/sponnect/sponnect/internal/domain/adrequest/mocks"
	"github.com/sponnect/sponnect/internal/domain/apperr"
	"github.com/sponnect/sponnect/internal/domain/event"
	eventmocks "github.com/sponnect/sponnect/internal/domain/event/mocks"
	domainProgress "github.com/sponnect/sponnect/internal/domain/progress"
	progressmocks "github.com/sponnect/sponnect/internal/domain/progress/mocks"
	txnmocks "github.com/sponnect/sponnect/internal/domain/txn/mocks"
	"github.com/sponnect/sponnect/internal/domain/user"
	usermocks "github.com/sponnect/sponnect/internal/domain/user/mocks"
)

var fixedNow = time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

type fixture struct {
	updates    *progressmocks.MockRepository
	adRequests *adrequestmocks.MockRepository
	users      *usermocks.MockRepository
	svc        *Service
	published  []event.Event

	request    *adrequest.AdRequest
	sponsor    access.Actor
	influencer access.Actor
}

func newFixture(t *testing.T) *fixture {
	ctrl := gomock.NewController(t)
	f := &fixture{
		updates:    progressmocks.NewMockRepository(ctrl),
		adRequests: adrequestmocks.NewMockRepository(ctrl),
		users:      usermocks.NewMockRepository(ctrl),
		sponsor:    access.Actor{ID: uuid.New(), Role: user.RoleSponsor},
		influencer: access.Actor{ID: uuid.New(), Role: user.RoleInfluencer},
	}
	tx := txnmocks.NewMockManager(ctrl)
	tx.EXPECT().WithinTx(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, fn func(context.Context) error) error { return fn(ctx) }).
		AnyTimes()
	events := eventmocks.NewMockPublisher(ctrl)
	events.EXPECT().Publish(gomock.Any(), gomock.Any()).
		Do(func(_ context.Context, e event.Event) { f.published = append(f.published, e) }).
		AnyTimes()
	f.users.EXPECT().GetByID(gomock.Any(), f.influencer.ID).
		Return(&user.User{UserID: f.influencer.ID, Role: user.RoleInfluencer, Active: true}, nil).AnyTimes()

	f.request = &adrequest.AdRequest{
		AdRequestID:   uuid.New(),
		CampaignID:    uuid.New(),
		SponsorID:     f.sponsor.ID,
		InfluencerID:  f.influencer.ID,
		InitiatorID:   f.sponsor.ID,
		PaymentAmount: decimal.NewFromInt(1200),
		Requirements:  "3 posts",
		Status:        adrequest.StatusAccepted,
		LastOfferBy:   adrequest.PartySponsor,
		Version:       4,
	}
	f.svc = NewService(f.updates, f.adRequests, f.users, tx, events, zerolog.Nop())
	f.svc.now = func() time.Time { return fixedNow }
	return f
}

func (f *fixture) pending() *domainProgress.Update {
	return &domainProgress.Update{
		UpdateID:    uuid.New(),
		AdRequestID: f.request.AdRequestID,
		Content:     "first post live",
		MediaURLs:   []string{},
		Status:      domainProgress.StatusPending,
	}
}

func TestSubmit(t *testing.T) {
	t.Run("accepted request takes updates", func(t *testing.T) {
		f := newFixture(t)
		f.adRequests.EXPECT().GetByID(gomock.Any(), f.request.AdRequestID).Return(f.request, nil)
		f.updates.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)

		u, err := f.svc.Submit(context.Background(), f.influencer, f.request.AdRequestID, domainProgress.SubmitInput{
			Content:     " first post live ",
			MediaURLs:   []string{"https://cdn.example/p1.jpg", " "},
			MetricsData: json.RawMessage(`{"likes":120}`),
		})
		require.NoError(t, err)
		assert.Equal(t, domainProgress.StatusPending, u.Status)
		assert.Equal(t, "first post live", u.Content)
		assert.Equal(t, []string{"https://cdn.example/p1.jpg"}, u.MediaURLs)
		require.Len(t, f.published, 1)
		assert.Equal(t, event.ProgressSubmitted, f.published[0].Name)
	})

	t.Run("negotiating request is not a collaboration", func(t *testing.T) {
		f := newFixture(t)
		f.request.Status = adrequest.StatusNegotiating
		f.adRequests.EXPECT().GetByID(gomock.Any(), f.request.AdRequestID).Return(f.request, nil)

		_, err := f.svc.Submit(context.Background(), f.influencer, f.request.AdRequestID, domainProgress.SubmitInput{Content: "early"})
		assert.ErrorIs(t, err, domainProgress.ErrNotCollaborating)
	})

	t.Run("sponsor cannot submit", func(t *testing.T) {
		f := newFixture(t)
		f.adRequests.EXPECT().GetByID(gomock.Any(), f.request.AdRequestID).Return(f.request, nil)

		_, err := f.svc.Submit(context.Background(), f.sponsor, f.request.AdRequestID, domainProgress.SubmitInput{Content: "x"})
		assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
	})

	t.Run("bad metrics json", func(t *testing.T) {
		f := newFixture(t)
		f.adRequests.EXPECT().GetByID(gomock.Any(), f.request.AdRequestID).Return(f.request, nil)

		_, err := f.svc.Submit(context.Background(), f.influencer, f.request.AdRequestID, domainProgress.SubmitInput{
			Content:     "x",
			MetricsData: json.RawMessage(`{"likes":`),
		})
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	})
}

func TestReview(t *testing.T) {
	t.Run("owning sponsor approves", func(t *testing.T) {
		f := newFixture(t)
		u := f.pending()
		f.updates.EXPECT().GetForUpdate(gomock.Any(), u.UpdateID).Return(u, nil)
		f.adRequests.EXPECT().GetByID(gomock.Any(), f.request.AdRequestID).Return(f.request, nil)
		f.updates.EXPECT().Update(gomock.Any(), u).Return(nil)

		got, err := f.svc.Review(context.Background(), f.sponsor, u.UpdateID, domainProgress.Approve{})
		require.NoError(t, err)
		assert.Equal(t, domainProgress.StatusApproved, got.Status)
		require.NotNil(t, got.ReviewedBy)
		assert.Equal(t, f.sponsor.ID, *got.ReviewedBy)
		assert.Equal(t, fixedNow, got.UpdatedAt)
		require.Len(t, f.published, 1)
		assert.Equal(t, "approve", f.published[0].Action)
	})

	t.Run("revision carries feedback", func(t *testing.T) {
		f := newFixture(t)
		u := f.pending()
		f.updates.EXPECT().GetForUpdate(gomock.Any(), u.UpdateID).Return(u, nil)
		f.adRequests.EXPECT().GetByID(gomock.Any(), f.request.AdRequestID).Return(f.request, nil)
		f.updates.EXPECT().Update(gomock.Any(), u).Return(nil)

		got, err := f.svc.Review(context.Background(), f.sponsor, u.UpdateID, domainProgress.RequestRevision{Feedback: "tag the brand"})
		require.NoError(t, err)
		assert.Equal(t, domainProgress.StatusRevisionRequested, got.Status)
		require.NotNil(t, got.Feedback)
		assert.Equal(t, "tag the brand", *got.Feedback)
	})

	t.Run("reviewed update is final", func(t *testing.T) {
		f := newFixture(t)
		u := f.pending()
		u.Status = domainProgress.StatusApproved
		f.updates.EXPECT().GetForUpdate(gomock.Any(), u.UpdateID).Return(u, nil)
		f.adRequests.EXPECT().GetByID(gomock.Any(), f.request.AdRequestID).Return(f.request, nil)

		_, err := f.svc.Review(context.Background(), f.sponsor, u.UpdateID, domainProgress.Approve{})
		assert.ErrorIs(t, err, domainProgress.ErrNotReviewable)
		assert.Empty(t, f.published)
	})

	t.Run("influencer cannot review", func(t *testing.T) {
		f := newFixture(t)
		u := f.pending()
		f.updates.EXPECT().GetForUpdate(gomock.Any(), u.UpdateID).Return(u, nil)
		f.adRequests.EXPECT().GetByID(gomock.Any(), f.request.AdRequestID).Return(f.request, nil)

		_, err := f.svc.Review(context.Background(), f.influencer, u.UpdateID, domainProgress.Approve{})
		assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
	})

	t.Run("unknown update", func(t *testing.T) {
		f := newFixture(t)
		f.updates.EXPECT().GetForUpdate(gomock.Any(), gomock.Any()).Return(nil, nil)

		_, err := f.svc.Review(context.Background(), f.sponsor, uuid.New(), domainProgress.Approve{})
		assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	})
}

func TestList(t *testing.T) {
	f := newFixture(t)
	f.adRequests.EXPECT().GetByID(gomock.Any(), f.request.AdRequestID).Return(f.request, nil).Times(2)
	f.updates.EXPECT().ListByAdRequest(gomock.Any(), f.request.AdRequestID).Return([]*domainProgress.Update{f.pending()}, nil)

	got, err := f.svc.List(context.Background(), f.sponsor, f.request.AdRequestID)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	_, err = f.svc.List(context.Background(), access.Actor{ID: uuid.New(), Role: user.RoleInfluencer}, f.request.AdRequestID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}
