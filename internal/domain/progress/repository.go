package progress

//go:generate go run go.uber.org/mock/mockgen -destination=mocks/mock_repository.go -package=mocks . Repository

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines persistence for progress updates.
type Repository interface {
	Create(ctx context.Context, u *Update) error
	GetByID(ctx context.Context, updateID uuid.UUID) (*Update, error)
	GetForUpdate(ctx context.Context, updateID uuid.UUID) (*Update, error)
	Update(ctx context.Context, u *Update) error
	ListByAdRequest(ctx context.Context, adRequestID uuid.UUID) ([]*Update, error)
	CountByStatus(ctx context.Context, adRequestID uuid.UUID, status Status) (int, error)
	DeleteByCampaign(ctx context.Context, campaignID uuid.UUID) (int64, error)
}
