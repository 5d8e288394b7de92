package payment

//go:generate go run go.uber.org/mock/mockgen -destination=mocks/mock_repository.go -package=mocks . Repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines persistence for payments.
type Repository interface {
	Create(ctx context.Context, p *Payment) error
	ListByAdRequest(ctx context.Context, adRequestID uuid.UUID) ([]*Payment, error)
	// ListCompleted returns completed payments created in [from, to); nil bounds are open.
	ListCompleted(ctx context.Context, from, to *time.Time) ([]*ReportRow, error)
	DeleteByCampaign(ctx context.Context, campaignID uuid.UUID) (int64, error)
}
