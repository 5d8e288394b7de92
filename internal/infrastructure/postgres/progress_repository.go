package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sponnect/sponnect/internal/domain/progress"
)

const progressColumns = `id, update_id, ad_request_id, content, media_urls, metrics_data, status, feedback, reviewed_by, created_at, updated_at`

// ProgressRepository implements progress.Repository.
type ProgressRepository struct {
	pool *pgxpool.Pool
}

func NewProgressRepository(pool *pgxpool.Pool) *ProgressRepository {
	return &ProgressRepository{pool: pool}
}

func (r *ProgressRepository) Create(ctx context.Context, u *progress.Update) error {
	urls := u.MediaURLs
	if urls == nil {
		urls = []string{}
	}
	return conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO progress_updates
		(update_id, ad_request_id, content, media_urls, metrics_data, status, feedback, reviewed_by, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING id
	`, u.UpdateID, u.AdRequestID, u.Content, urls, jsonArg(u.MetricsData), u.Status, u.Feedback, u.ReviewedBy, u.CreatedAt, u.UpdatedAt).Scan(&u.ID)
}

func (r *ProgressRepository) GetByID(ctx context.Context, updateID uuid.UUID) (*progress.Update, error) {
	row := conn(ctx, r.pool).QueryRow(ctx, `SELECT `+progressColumns+` FROM progress_updates WHERE update_id=$1`, updateID)
	return scanProgress(row)
}

func (r *ProgressRepository) GetForUpdate(ctx context.Context, updateID uuid.UUID) (*progress.Update, error) {
	row := conn(ctx, r.pool).QueryRow(ctx, `SELECT `+progressColumns+` FROM progress_updates WHERE update_id=$1 FOR UPDATE`, updateID)
	return scanProgress(row)
}

func (r *ProgressRepository) Update(ctx context.Context, u *progress.Update) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE progress_updates
		SET status=$1, feedback=$2, reviewed_by=$3, updated_at=$4
		WHERE update_id=$5
	`, u.Status, u.Feedback, u.ReviewedBy, u.UpdatedAt, u.UpdateID)
	return err
}

func (r *ProgressRepository) ListByAdRequest(ctx context.Context, adRequestID uuid.UUID) ([]*progress.Update, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT `+progressColumns+` FROM progress_updates
		WHERE ad_request_id=$1 ORDER BY created_at DESC, id DESC
	`, adRequestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var updates []*progress.Update
	for rows.Next() {
		u, err := scanProgress(rows)
		if err != nil {
			return nil, err
		}
		updates = append(updates, u)
	}
	return updates, rows.Err()
}

func (r *ProgressRepository) CountByStatus(ctx context.Context, adRequestID uuid.UUID, status progress.Status) (int, error) {
	var n int
	err := conn(ctx, r.pool).QueryRow(ctx, `
		SELECT COUNT(*) FROM progress_updates WHERE ad_request_id=$1 AND status=$2
	`, adRequestID, status).Scan(&n)
	return n, err
}

func (r *ProgressRepository) DeleteByCampaign(ctx context.Context, campaignID uuid.UUID) (int64, error) {
	tag, err := conn(ctx, r.pool).Exec(ctx, `
		DELETE FROM progress_updates
		WHERE ad_request_id IN (SELECT ad_request_id FROM ad_requests WHERE campaign_id=$1)
	`, campaignID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanProgress(row pgx.Row) (*progress.Update, error) {
	var u progress.Update
	var metrics []byte
	if err := row.Scan(&u.ID, &u.UpdateID, &u.AdRequestID, &u.Content, &u.MediaURLs, &metrics, &u.Status, &u.Feedback, &u.ReviewedBy, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if len(metrics) > 0 {
		u.MetricsData = metrics
	}
	return &u, nil
}

// jsonArg passes raw JSON to a JSONB column, mapping empty to NULL.
func jsonArg(raw []byte) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
