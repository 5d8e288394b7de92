package progress

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sponnect/sponnect/internal/domain/apperr"
)

func TestNewUpdate(t *testing.T) {
	now := time.Now().UTC()
	adID := uuid.New()

	t.Run("success", func(t *testing.T) {
		u, err := NewUpdate(adID, SubmitInput{
			Content:     " first reel posted ",
			MediaURLs:   []string{"https://cdn.example/a.mp4", " ", ""},
			MetricsData: json.RawMessage(`{"views": 1200, "likes": 87}`),
		}, now)
		require.NoError(t, err)
		assert.Equal(t, "first reel posted", u.Content)
		assert.Equal(t, []string{"https://cdn.example/a.mp4"}, u.MediaURLs)
		assert.JSONEq(t, `{"views": 1200, "likes": 87}`, string(u.MetricsData))
		assert.Equal(t, StatusPending, u.Status)
		assert.Equal(t, adID, u.AdRequestID)
	})

	t.Run("content required", func(t *testing.T) {
		_, err := NewUpdate(adID, SubmitInput{Content: "  "}, now)
		e, ok := apperr.As(err)
		require.True(t, ok)
		assert.Equal(t, "content", e.Field)
	})

	t.Run("metrics must be json", func(t *testing.T) {
		_, err := NewUpdate(adID, SubmitInput{Content: "x", MetricsData: json.RawMessage(`{views:`)}, now)
		assert.True(t, apperr.IsKind(err, apperr.KindValidation))
	})

	t.Run("null metrics dropped", func(t *testing.T) {
		u, err := NewUpdate(adID, SubmitInput{Content: "x", MetricsData: json.RawMessage(`null`)}, now)
		require.NoError(t, err)
		assert.Nil(t, u.MetricsData)
	})
}

func TestParseReview(t *testing.T) {
	r, err := ParseReview("approve", nil)
	require.NoError(t, err)
	assert.Equal(t, Approve{}, r)

	fb := " add the discount code "
	r, err = ParseReview("request_revision", &fb)
	require.NoError(t, err)
	assert.Equal(t, RequestRevision{Feedback: "add the discount code"}, r)
	assert.Equal(t, "request_revision", ActionName(r))

	blank := ""
	_, err = ParseReview("request_revision", &blank)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
	_, err = ParseReview("request_revision", nil)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
	_, err = ParseReview("reject", nil)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestUpdate_Apply(t *testing.T) {
	now := time.Now().UTC()
	reviewer := uuid.New()

	t.Run("approve", func(t *testing.T) {
		u, _ := NewUpdate(uuid.New(), SubmitInput{Content: "x"}, now)
		require.NoError(t, u.Apply(Approve{}, reviewer, now.Add(time.Minute)))
		assert.Equal(t, StatusApproved, u.Status)
		assert.Nil(t, u.Feedback)
		require.NotNil(t, u.ReviewedBy)
		assert.Equal(t, reviewer, *u.ReviewedBy)
	})

	t.Run("request revision", func(t *testing.T) {
		u, _ := NewUpdate(uuid.New(), SubmitInput{Content: "x"}, now)
		require.NoError(t, u.Apply(RequestRevision{Feedback: "reshoot"}, reviewer, now))
		assert.Equal(t, StatusRevisionRequested, u.Status)
		require.NotNil(t, u.Feedback)
		assert.Equal(t, "reshoot", *u.Feedback)
	})

	t.Run("only pending is reviewable", func(t *testing.T) {
		for _, st := range []Status{StatusApproved, StatusRevisionRequested} {
			u := &Update{Status: st}
			for _, r := range []Review{Approve{}, RequestRevision{Feedback: "again"}} {
				err := u.Apply(r, reviewer, now)
				assert.True(t, errors.Is(err, ErrNotReviewable))
				assert.Equal(t, st, u.Status)
			}
		}
	})
}
