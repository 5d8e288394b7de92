package adrequest

//go:generate go run go.uber.org/mock/mockgen -destination=mocks/mock_repository.go -package=mocks . Repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Filter controls ad request listing.
type Filter struct {
	CampaignID   *uuid.UUID
	SponsorID    *uuid.UUID
	InfluencerID *uuid.UUID
	Status       *Status
}

// Repository defines persistence for ad requests and their negotiation ledger.
// Methods run inside the transaction carried by ctx when there is one.
type Repository interface {
	// Create fails with ErrDuplicate when the (campaign, influencer) pair is taken.
	Create(ctx context.Context, req *AdRequest) error
	GetByID(ctx context.Context, adRequestID uuid.UUID) (*AdRequest, error)
	// GetForUpdate locks the row until the surrounding transaction ends.
	GetForUpdate(ctx context.Context, adRequestID uuid.UUID) (*AdRequest, error)
	GetByPair(ctx context.Context, campaignID, influencerID uuid.UUID) (*AdRequest, error)
	// Update writes req when the stored version equals expectedVersion,
	// otherwise it fails with ErrStaleState.
	Update(ctx context.Context, req *AdRequest, expectedVersion int) error
	// Delete removes the request with its ledger, progress updates and payments.
	Delete(ctx context.Context, adRequestID uuid.UUID) error
	// DeleteByCampaign removes every request of a campaign with its ledger.
	DeleteByCampaign(ctx context.Context, campaignID uuid.UUID) (int64, error)
	List(ctx context.Context, filter Filter, limit, offset int) ([]*AdRequest, error)
	ListSummaries(ctx context.Context, filter Filter) ([]*Summary, error)
	// ListIdle returns open requests last touched before the cutoff, oldest first.
	ListIdle(ctx context.Context, statuses []Status, before time.Time, limit int) ([]*AdRequest, error)

	AppendHistory(ctx context.Context, entry *HistoryEntry) error
	ListHistory(ctx context.Context, adRequestID uuid.UUID) ([]*HistoryEntry, error)
}
