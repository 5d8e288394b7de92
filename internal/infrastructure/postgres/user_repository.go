package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sponnect/sponnect/internal/domain/user"
)

// UserRepository implements user.Repository over the mirrored accounts table.
type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func (r *UserRepository) GetByID(ctx context.Context, userID uuid.UUID) (*user.User, error) {
	row := conn(ctx, r.pool).QueryRow(ctx, `
		SELECT id, user_id, username, role, is_active, sponsor_approved, is_flagged, created_at
		FROM users WHERE user_id=$1
	`, userID)
	var u user.User
	if err := row.Scan(&u.ID, &u.UserID, &u.Username, &u.Role, &u.Active, &u.SponsorApproved, &u.Flagged, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}
