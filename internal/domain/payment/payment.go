package payment

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"

	"github.com/sponnect/sponnect/internal/domain/apperr"
)

// Status represents the settlement state of a payment.
type Status string

const (
	StatusCompleted Status = "Completed"
)

// DefaultMethod is recorded when the sponsor does not name one.
const DefaultMethod = "Credit Card"

// DefaultFeeRate is the platform's share of every payment.
var DefaultFeeRate = decimal.RequireFromString("0.01")

var ErrNoApprovedWork = apperr.Conflict("payment requires at least one approved progress update")

// Payment is one settlement event against an accepted ad request.
type Payment struct {
	ID               int64           `json:"id"`
	PaymentID        uuid.UUID       `json:"paymentId"`
	AdRequestID      uuid.UUID       `json:"adRequestId"`
	Amount           decimal.Decimal `json:"amount"`
	PlatformFee      decimal.Decimal `json:"platformFee"`
	InfluencerAmount decimal.Decimal `json:"influencerAmount"`
	Status           Status          `json:"status"`
	PaymentMethod    string          `json:"paymentMethod"`
	TransactionID    string          `json:"transactionId"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

// Receipt carries the figures shown to the sponsor after paying.
type Receipt struct {
	TransactionID    string `json:"transactionId"`
	Amount           string `json:"amount"`
	FeeRate          string `json:"feeRate"`
	PlatformFee      string `json:"platformFee"`
	InfluencerAmount string `json:"influencerAmount"`
}

// ComputeFee splits amount into the platform fee, rounded half away from
// zero to cents, and the influencer's remainder. fee+net always equals amount.
func ComputeFee(amount, rate decimal.Decimal) (fee, net decimal.Decimal) {
	fee = amount.Mul(rate).Round(2)
	net = amount.Sub(fee)
	return fee, net
}

// ResolveAmount picks the gross amount for a payment: the agreed amount when
// none is requested, otherwise a positive partial amount no larger than agreed.
func ResolveAmount(requested *decimal.Decimal, agreed decimal.Decimal) (decimal.Decimal, error) {
	if requested == nil {
		return agreed, nil
	}
	amount := *requested
	if !amount.IsPositive() {
		return decimal.Zero, apperr.Validation("amount", "must be a positive number")
	}
	if !amount.Equal(amount.Round(2)) {
		return decimal.Zero, apperr.Validation("amount", "must have at most 2 decimal places")
	}
	if amount.GreaterThan(agreed) {
		return decimal.Zero, apperr.Validation("amount", fmt.Sprintf("must not exceed the agreed payment amount of %s", agreed.StringFixed(2)))
	}
	return amount, nil
}

// New builds a completed payment. Payments complete synchronously; there is no gateway.
func New(adRequestID uuid.UUID, amount, rate decimal.Decimal, method string, now time.Time) *Payment {
	method = strings.TrimSpace(method)
	if method == "" {
		method = DefaultMethod
	}
	fee, net := ComputeFee(amount, rate)
	return &Payment{
		PaymentID:        uuid.New(),
		AdRequestID:      adRequestID,
		Amount:           amount,
		PlatformFee:      fee,
		InfluencerAmount: net,
		Status:           StatusCompleted,
		PaymentMethod:    method,
		TransactionID:    NewTransactionID(adRequestID, now),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// Receipt renders the payment figures at cent precision.
func (p *Payment) Receipt(rate decimal.Decimal) *Receipt {
	return &Receipt{
		TransactionID:    p.TransactionID,
		Amount:           p.Amount.StringFixed(2),
		FeeRate:          rate.String(),
		PlatformFee:      p.PlatformFee.StringFixed(2),
		InfluencerAmount: p.InfluencerAmount.StringFixed(2),
	}
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
)

// NewTransactionID returns TXN-<first block of the ad request id>-<ulid>.
// The ulid embeds the timestamp and sorts by it.
func NewTransactionID(adRequestID uuid.UUID, now time.Time) string {
	entropyMu.Lock()
	id := ulid.MustNew(ulid.Timestamp(now), entropy)
	entropyMu.Unlock()
	return fmt.Sprintf("TXN-%s-%s", strings.ToUpper(adRequestID.String()[:8]), id.String())
}

// ReportRow is a completed payment with the parties it settled.
type ReportRow struct {
	Payment      *Payment  `json:"payment"`
	CampaignID   uuid.UUID `json:"campaignId"`
	CampaignName string    `json:"campaignName"`
	SponsorID    uuid.UUID `json:"sponsorId"`
	InfluencerID uuid.UUID `json:"influencerId"`
}

// FeeReport summarises platform revenue over a period.
type FeeReport struct {
	From         *time.Time   `json:"from,omitempty"`
	To           *time.Time   `json:"to,omitempty"`
	PaymentCount int          `json:"paymentCount"`
	GrossVolume  string       `json:"grossVolume"`
	TotalFees    string       `json:"totalFees"`
	TotalPayouts string       `json:"totalPayouts"`
	Payments     []*ReportRow `json:"payments"`
}

// BuildFeeReport totals rows at cent precision.
func BuildFeeReport(rows []*ReportRow, from, to *time.Time) *FeeReport {
	gross, fees, payouts := decimal.Zero, decimal.Zero, decimal.Zero
	for _, r := range rows {
		gross = gross.Add(r.Payment.Amount)
		fees = fees.Add(r.Payment.PlatformFee)
		payouts = payouts.Add(r.Payment.InfluencerAmount)
	}
	if rows == nil {
		rows = []*ReportRow{}
	}
	return &FeeReport{
		From:         from,
		To:           to,
		PaymentCount: len(rows),
		GrossVolume:  gross.StringFixed(2),
		TotalFees:    fees.StringFixed(2),
		TotalPayouts: payouts.StringFixed(2),
		Payments:     rows,
	}
}
