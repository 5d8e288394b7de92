package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sponnect/sponnect/internal/domain/adrequest"
)

const adRequestColumns = `ar.id, ar.ad_request_id, ar.campaign_id, c.sponsor_id, ar.influencer_id, ar.initiator_id,
	ar.payment_amount::text, ar.requirements, ar.message, ar.status, ar.last_offer_by, ar.version, ar.created_at, ar.updated_at`

const adRequestFrom = ` FROM ad_requests ar JOIN campaigns c ON c.campaign_id = ar.campaign_id`

// AdRequestRepository implements adrequest.Repository.
type AdRequestRepository struct {
	pool *pgxpool.Pool
}

func NewAdRequestRepository(pool *pgxpool.Pool) *AdRequestRepository {
	return &AdRequestRepository{pool: pool}
}

func (r *AdRequestRepository) Create(ctx context.Context, req *adrequest.AdRequest) error {
	err := conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO ad_requests
		(ad_request_id, campaign_id, influencer_id, initiator_id, payment_amount, requirements, message, status, last_offer_by, version, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		RETURNING id
	`, req.AdRequestID, req.CampaignID, req.InfluencerID, req.InitiatorID, req.PaymentAmount, req.Requirements, req.Message,
		req.Status, req.LastOfferBy, req.Version, req.CreatedAt, req.UpdatedAt).Scan(&req.ID)
	if isUniqueViolation(err) {
		return adrequest.ErrDuplicate
	}
	return err
}

func (r *AdRequestRepository) GetByID(ctx context.Context, adRequestID uuid.UUID) (*adrequest.AdRequest, error) {
	row := conn(ctx, r.pool).QueryRow(ctx, `SELECT `+adRequestColumns+adRequestFrom+` WHERE ar.ad_request_id=$1`, adRequestID)
	return scanAdRequest(row)
}

func (r *AdRequestRepository) GetForUpdate(ctx context.Context, adRequestID uuid.UUID) (*adrequest.AdRequest, error) {
	row := conn(ctx, r.pool).QueryRow(ctx, `SELECT `+adRequestColumns+adRequestFrom+` WHERE ar.ad_request_id=$1 FOR UPDATE OF ar`, adRequestID)
	return scanAdRequest(row)
}

func (r *AdRequestRepository) GetByPair(ctx context.Context, campaignID, influencerID uuid.UUID) (*adrequest.AdRequest, error) {
	row := conn(ctx, r.pool).QueryRow(ctx, `SELECT `+adRequestColumns+adRequestFrom+` WHERE ar.campaign_id=$1 AND ar.influencer_id=$2`, campaignID, influencerID)
	return scanAdRequest(row)
}

func (r *AdRequestRepository) Update(ctx context.Context, req *adrequest.AdRequest, expectedVersion int) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE ad_requests
		SET payment_amount=$1, requirements=$2, message=$3, status=$4, last_offer_by=$5, version=$6, updated_at=$7
		WHERE ad_request_id=$8 AND version=$9
	`, req.PaymentAmount, req.Requirements, req.Message, req.Status, req.LastOfferBy, req.Version, req.UpdatedAt,
		req.AdRequestID, expectedVersion)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return adrequest.ErrStaleState
	}
	return nil
}

func (r *AdRequestRepository) Delete(ctx context.Context, adRequestID uuid.UUID) error {
	q := conn(ctx, r.pool)
	for _, stmt := range []string{
		`DELETE FROM payments WHERE ad_request_id=$1`,
		`DELETE FROM progress_updates WHERE ad_request_id=$1`,
		`DELETE FROM negotiation_history WHERE ad_request_id=$1`,
		`DELETE FROM ad_requests WHERE ad_request_id=$1`,
	} {
		if _, err := q.Exec(ctx, stmt, adRequestID); err != nil {
			return fmt.Errorf("delete ad request %s: %w", adRequestID, err)
		}
	}
	return nil
}

// DeleteByCampaign expects payments and progress updates of the campaign to be gone already.
func (r *AdRequestRepository) DeleteByCampaign(ctx context.Context, campaignID uuid.UUID) (int64, error) {
	q := conn(ctx, r.pool)
	if _, err := q.Exec(ctx, `
		DELETE FROM negotiation_history
		WHERE ad_request_id IN (SELECT ad_request_id FROM ad_requests WHERE campaign_id=$1)
	`, campaignID); err != nil {
		return 0, fmt.Errorf("delete negotiation history: %w", err)
	}
	tag, err := q.Exec(ctx, `DELETE FROM ad_requests WHERE campaign_id=$1`, campaignID)
	if err != nil {
		return 0, fmt.Errorf("delete ad requests: %w", err)
	}
	return tag.RowsAffected(), nil
}

func filterWhere(filter adrequest.Filter) *where {
	w := &where{}
	if filter.CampaignID != nil {
		w.add("ar.campaign_id=?", *filter.CampaignID)
	}
	if filter.SponsorID != nil {
		w.add("c.sponsor_id=?", *filter.SponsorID)
	}
	if filter.InfluencerID != nil {
		w.add("ar.influencer_id=?", *filter.InfluencerID)
	}
	if filter.Status != nil {
		w.add("ar.status=?", *filter.Status)
	}
	return w
}

func (r *AdRequestRepository) List(ctx context.Context, filter adrequest.Filter, limit, offset int) ([]*adrequest.AdRequest, error) {
	w := filterWhere(filter)
	query := `SELECT ` + adRequestColumns + adRequestFrom + w.String() +
		` ORDER BY ar.updated_at DESC, ar.id DESC LIMIT ` + w.next(limit) + ` OFFSET ` + w.next(offset)

	rows, err := conn(ctx, r.pool).Query(ctx, query, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*adrequest.AdRequest
	for rows.Next() {
		req, err := scanAdRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

func (r *AdRequestRepository) ListSummaries(ctx context.Context, filter adrequest.Filter) ([]*adrequest.Summary, error) {
	w := filterWhere(filter)
	query := `SELECT ` + adRequestColumns + `, h.action, h.created_at` + adRequestFrom + `
		LEFT JOIN LATERAL (
			SELECT action, created_at FROM negotiation_history
			WHERE ad_request_id = ar.ad_request_id
			ORDER BY created_at DESC, id DESC LIMIT 1
		) h ON TRUE` + w.String() + ` ORDER BY ar.updated_at DESC, ar.id DESC`

	rows, err := conn(ctx, r.pool).Query(ctx, query, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*adrequest.Summary
	for rows.Next() {
		var (
			req      adrequest.AdRequest
			amount   string
			action   *adrequest.HistoryAction
			actionAt *time.Time
		)
		if err := rows.Scan(&req.ID, &req.AdRequestID, &req.CampaignID, &req.SponsorID, &req.InfluencerID, &req.InitiatorID,
			&amount, &req.Requirements, &req.Message, &req.Status, &req.LastOfferBy, &req.Version, &req.CreatedAt, &req.UpdatedAt,
			&action, &actionAt); err != nil {
			return nil, err
		}
		if req.PaymentAmount, err = parseNumeric("payment_amount", amount); err != nil {
			return nil, err
		}
		out = append(out, &adrequest.Summary{AdRequest: &req, LatestAction: action, LatestActionAt: actionAt})
	}
	return out, rows.Err()
}

func (r *AdRequestRepository) ListIdle(ctx context.Context, statuses []adrequest.Status, before time.Time, limit int) ([]*adrequest.AdRequest, error) {
	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}
	rows, err := conn(ctx, r.pool).Query(ctx, `SELECT `+adRequestColumns+adRequestFrom+`
		WHERE ar.status = ANY($1) AND ar.updated_at < $2
		ORDER BY ar.updated_at ASC, ar.id ASC LIMIT $3
	`, names, before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*adrequest.AdRequest
	for rows.Next() {
		req, err := scanAdRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

func (r *AdRequestRepository) AppendHistory(ctx context.Context, e *adrequest.HistoryEntry) error {
	return conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO negotiation_history
		(entry_id, ad_request_id, user_id, user_role, action, payment_amount, requirements, message, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING id
	`, e.EntryID, e.AdRequestID, e.UserID, e.UserRole, e.Action, e.PaymentAmount, e.Requirements, e.Message, e.CreatedAt).Scan(&e.ID)
}

func (r *AdRequestRepository) ListHistory(ctx context.Context, adRequestID uuid.UUID) ([]*adrequest.HistoryEntry, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT id, entry_id, ad_request_id, user_id, user_role, action, payment_amount::text, requirements, message, created_at
		FROM negotiation_history WHERE ad_request_id=$1 ORDER BY created_at ASC, id ASC
	`, adRequestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []*adrequest.HistoryEntry
	for rows.Next() {
		var e adrequest.HistoryEntry
		var amount string
		if err := rows.Scan(&e.ID, &e.EntryID, &e.AdRequestID, &e.UserID, &e.UserRole, &e.Action, &amount, &e.Requirements, &e.Message, &e.CreatedAt); err != nil {
			return nil, err
		}
		if e.PaymentAmount, err = parseNumeric("payment_amount", amount); err != nil {
			return nil, err
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

func scanAdRequest(row pgx.Row) (*adrequest.AdRequest, error) {
	var req adrequest.AdRequest
	var amount string
	if err := row.Scan(&req.ID, &req.AdRequestID, &req.CampaignID, &req.SponsorID, &req.InfluencerID, &req.InitiatorID,
		&amount, &req.Requirements, &req.Message, &req.Status, &req.LastOfferBy, &req.Version, &req.CreatedAt, &req.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	var err error
	if req.PaymentAmount, err = parseNumeric("payment_amount", amount); err != nil {
		return nil, err
	}
	return &req, nil
}
