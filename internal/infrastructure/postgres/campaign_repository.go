package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sponnect/sponnect/internal/domain/campaign"
)

// CampaignRepository implements campaign.Repository.
type CampaignRepository struct {
	pool *pgxpool.Pool
}

func NewCampaignRepository(pool *pgxpool.Pool) *CampaignRepository {
	return &CampaignRepository{pool: pool}
}

func (r *CampaignRepository) GetByID(ctx context.Context, campaignID uuid.UUID) (*campaign.Campaign, error) {
	row := conn(ctx, r.pool).QueryRow(ctx, `
		SELECT id, campaign_id, sponsor_id, name, budget::text, visibility, category, is_flagged, created_at
		FROM campaigns WHERE campaign_id=$1
	`, campaignID)
	var c campaign.Campaign
	var budget string
	if err := row.Scan(&c.ID, &c.CampaignID, &c.SponsorID, &c.Name, &budget, &c.Visibility, &c.Category, &c.Flagged, &c.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	var err error
	if c.Budget, err = parseNumeric("budget", budget); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CampaignRepository) Delete(ctx context.Context, campaignID uuid.UUID) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM campaigns WHERE campaign_id=$1`, campaignID)
	return err
}
