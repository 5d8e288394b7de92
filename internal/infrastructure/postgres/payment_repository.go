package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sponnect/sponnect/internal/domain/payment"
)

const paymentColumns = `p.id, p.payment_id, p.ad_request_id, p.amount::text, p.platform_fee::text, p.influencer_amount::text,
	p.status, p.payment_method, p.transaction_id, p.created_at, p.updated_at`

// PaymentRepository implements payment.Repository.
type PaymentRepository struct {
	pool *pgxpool.Pool
}

func NewPaymentRepository(pool *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{pool: pool}
}

func (r *PaymentRepository) Create(ctx context.Context, p *payment.Payment) error {
	return conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO payments
		(payment_id, ad_request_id, amount, platform_fee, influencer_amount, status, payment_method, transaction_id, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING id
	`, p.PaymentID, p.AdRequestID, p.Amount, p.PlatformFee, p.InfluencerAmount, p.Status, p.PaymentMethod, p.TransactionID, p.CreatedAt, p.UpdatedAt).Scan(&p.ID)
}

func (r *PaymentRepository) ListByAdRequest(ctx context.Context, adRequestID uuid.UUID) ([]*payment.Payment, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT `+paymentColumns+` FROM payments p
		WHERE p.ad_request_id=$1 ORDER BY p.created_at DESC, p.id DESC
	`, adRequestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var payments []*payment.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func (r *PaymentRepository) ListCompleted(ctx context.Context, from, to *time.Time) ([]*payment.ReportRow, error) {
	w := &where{}
	w.add("p.status=?", payment.StatusCompleted)
	if from != nil {
		w.add("p.created_at>=?", *from)
	}
	if to != nil {
		w.add("p.created_at<?", *to)
	}
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT `+paymentColumns+`, c.campaign_id, c.name, c.sponsor_id, ar.influencer_id
		FROM payments p
		JOIN ad_requests ar ON ar.ad_request_id = p.ad_request_id
		JOIN campaigns c ON c.campaign_id = ar.campaign_id`+w.String()+`
		ORDER BY p.created_at DESC, p.id DESC
	`, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*payment.ReportRow
	for rows.Next() {
		var (
			p                payment.Payment
			amount, fee, net string
			row              payment.ReportRow
		)
		if err := rows.Scan(&p.ID, &p.PaymentID, &p.AdRequestID, &amount, &fee, &net, &p.Status, &p.PaymentMethod, &p.TransactionID, &p.CreatedAt, &p.UpdatedAt,
			&row.CampaignID, &row.CampaignName, &row.SponsorID, &row.InfluencerID); err != nil {
			return nil, err
		}
		if err := setPaymentAmounts(&p, amount, fee, net); err != nil {
			return nil, err
		}
		row.Payment = &p
		out = append(out, &row)
	}
	return out, rows.Err()
}

func (r *PaymentRepository) DeleteByCampaign(ctx context.Context, campaignID uuid.UUID) (int64, error) {
	tag, err := conn(ctx, r.pool).Exec(ctx, `
		DELETE FROM payments
		WHERE ad_request_id IN (SELECT ad_request_id FROM ad_requests WHERE campaign_id=$1)
	`, campaignID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanPayment(row pgx.Row) (*payment.Payment, error) {
	var p payment.Payment
	var amount, fee, net string
	if err := row.Scan(&p.ID, &p.PaymentID, &p.AdRequestID, &amount, &fee, &net, &p.Status, &p.PaymentMethod, &p.TransactionID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if err := setPaymentAmounts(&p, amount, fee, net); err != nil {
		return nil, err
	}
	return &p, nil
}

func setPaymentAmounts(p *payment.Payment, amount, fee, net string) error {
	var err error
	if p.Amount, err = parseNumeric("amount", amount); err != nil {
		return err
	}
	if p.PlatformFee, err = parseNumeric("platform_fee", fee); err != nil {
		return err
	}
	p.InfluencerAmount, err = parseNumeric("influencer_amount", net)
	return err
}
