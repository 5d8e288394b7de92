package progress

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sponnect/sponnect/internal/domain/apperr"
)

// Status represents the review state of a progress update.
type Status string

const (
	StatusPending           Status = "Pending"
	StatusApproved          Status = "Approved"
	StatusRevisionRequested Status = "Revision Requested"
)

var (
	ErrNotReviewable    = apperr.Conflict("progress update has already been reviewed")
	ErrNotCollaborating = apperr.Conflict("ad request is not an active collaboration")
)

// Update is one deliverable report submitted by the influencer.
type Update struct {
	ID          int64           `json:"id"`
	UpdateID    uuid.UUID       `json:"updateId"`
	AdRequestID uuid.UUID       `json:"adRequestId"`
	Content     string          `json:"content"`
	MediaURLs   []string        `json:"mediaUrls"`
	MetricsData json.RawMessage `json:"metricsData,omitempty"`
	Status      Status          `json:"status"`
	Feedback    *string         `json:"feedback,omitempty"`
	ReviewedBy  *uuid.UUID      `json:"reviewedBy,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// SubmitInput carries a new deliverable report.
type SubmitInput struct {
	Content     string
	MediaURLs   []string
	MetricsData json.RawMessage
}

// NewUpdate validates in and returns a Pending update.
func NewUpdate(adRequestID uuid.UUID, in SubmitInput, now time.Time) (*Update, error) {
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, apperr.Validation("content", "is required")
	}
	urls := make([]string, 0, len(in.MediaURLs))
	for _, u := range in.MediaURLs {
		if u = strings.TrimSpace(u); u != "" {
			urls = append(urls, u)
		}
	}
	var metrics json.RawMessage
	if len(in.MetricsData) > 0 && string(in.MetricsData) != "null" {
		if !json.Valid(in.MetricsData) {
			return nil, apperr.Validation("metrics_data", "must be valid JSON")
		}
		metrics = in.MetricsData
	}
	return &Update{
		UpdateID:    uuid.New(),
		AdRequestID: adRequestID,
		Content:     content,
		MediaURLs:   urls,
		MetricsData: metrics,
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// CanTransitionTo checks the review transition table.
func (u *Update) CanTransitionTo(target Status) bool {
	transitions := map[Status][]Status{
		StatusPending:           {StatusApproved, StatusRevisionRequested},
		StatusApproved:          {},
		StatusRevisionRequested: {},
	}
	for _, s := range transitions[u.Status] {
		if s == target {
			return true
		}
	}
	return false
}

// Review is a sponsor decision on a Pending update.
type Review interface {
	target() Status
}

// Approve accepts the deliverable.
type Approve struct{}

// RequestRevision sends the deliverable back with feedback.
type RequestRevision struct {
	Feedback string
}

func (Approve) target() Status         { return StatusApproved }
func (RequestRevision) target() Status { return StatusRevisionRequested }

// ParseReview maps a raw action to a Review.
func ParseReview(action string, feedback *string) (Review, error) {
	switch strings.ToLower(strings.TrimSpace(action)) {
	case "approve":
		return Approve{}, nil
	case "request_revision":
		if feedback == nil || strings.TrimSpace(*feedback) == "" {
			return nil, apperr.Validation("feedback", "is required when requesting a revision")
		}
		return RequestRevision{Feedback: strings.TrimSpace(*feedback)}, nil
	case "":
		return nil, apperr.Validation("action", "is required")
	}
	return nil, apperr.Validation("action", "must be approve or request_revision")
}

// Apply records review on the update.
func (u *Update) Apply(review Review, reviewer uuid.UUID, now time.Time) error {
	if !u.CanTransitionTo(review.target()) {
		return ErrNotReviewable
	}
	u.Status = review.target()
	if r, ok := review.(RequestRevision); ok {
		fb := r.Feedback
		u.Feedback = &fb
	}
	u.ReviewedBy = &reviewer
	u.UpdatedAt = now
	return nil
}

// ActionName returns the wire name of a review.
func ActionName(r Review) string {
	if _, ok := r.(RequestRevision); ok {
		return "request_revision"
	}
	return "approve"
}
