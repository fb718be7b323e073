package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type EscrowStatus string

const (
	EscrowHeld     EscrowStatus = "held"
	EscrowReleased EscrowStatus = "released"
	EscrowRefunded EscrowStatus = "refunded"
	EscrowSplit    EscrowStatus = "split"
	EscrowDisputed EscrowStatus = "disputed"
)

func (s EscrowStatus) Valid() bool {
	switch s {
	case EscrowHeld, EscrowReleased, EscrowRefunded, EscrowSplit, EscrowDisputed:
		return true
	}
	return false
}

// Rates applied on top of the influencer's net amount.
var (
	CommissionRate = decimal.RequireFromString("0.03")
	VATRate        = decimal.RequireFromString("0.15")
)

// FinancialBreakdown is the full charge derived from a single agreed net
// payout. All monetary fields are rounded to 2 decimal places.
type FinancialBreakdown struct {
	NetToInfluencer        decimal.Decimal `json:"net_to_influencer"`
	Commission             decimal.Decimal `json:"commission"`
	CommissionRate         decimal.Decimal `json:"commission_rate"`
	VAT                    decimal.Decimal `json:"vat"`
	VATRate                decimal.Decimal `json:"vat_rate"`
	AmountBeforeCommission decimal.Decimal `json:"amount_before_commission"`
	TotalPaid              decimal.Decimal `json:"total_paid"`
	PlatformRevenue        decimal.Decimal `json:"platform_revenue"`
}

// EscrowPayment is a campaign payment held by the platform.
type EscrowPayment struct {
	ID             string             `json:"id"`
	CampaignID     string             `json:"campaign_id"`
	CampaignTitle  string             `json:"campaign_title"`
	BusinessName   string             `json:"business_name"`
	InfluencerName string             `json:"influencer_name"`
	SourceAmount   decimal.Decimal    `json:"source_amount"`
	SourceCurrency string             `json:"source_currency"`
	Breakdown      FinancialBreakdown `json:"breakdown"`
	Status         EscrowStatus       `json:"status"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
}
