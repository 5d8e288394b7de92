package campaign

//go:generate go run go.uber.org/mock/mockgen -destination=mocks/mock_repository.go -package=mocks . Repository

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines read access to campaigns plus removal.
type Repository interface {
	GetByID(ctx context.Context, campaignID uuid.UUID) (*Campaign, error)
	Delete(ctx context.Context, campaignID uuid.UUID) error
}
