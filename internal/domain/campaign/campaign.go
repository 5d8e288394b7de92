package campaign

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Visibility controls whether influencers may apply directly.
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

// Campaign is the read-only view of a sponsor's campaign.
type Campaign struct {
	ID         int64           `json:"id"`
	CampaignID uuid.UUID       `json:"campaignId"`
	SponsorID  uuid.UUID       `json:"sponsorId"`
	Name       string          `json:"name"`
	Budget     decimal.Decimal `json:"budget"`
	Visibility Visibility      `json:"visibility"`
	Category   *string         `json:"category,omitempty"`
	Flagged    bool            `json:"isFlagged"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// AcceptsApplications reports whether influencers may apply without an invitation.
func (c *Campaign) AcceptsApplications() bool {
	return c.Visibility == VisibilityPublic && !c.Flagged
}

// CascadeResult counts rows removed by a campaign delete.
type CascadeResult struct {
	CampaignID      uuid.UUID `json:"campaignId"`
	AdRequests      int64     `json:"adRequests"`
	ProgressUpdates int64     `json:"progressUpdates"`
	Payments        int64     `json:"payments"`
}
