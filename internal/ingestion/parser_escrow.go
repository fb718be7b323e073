package ingestion

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/marketplace/adminpanel/internal/currency"
	"github.com/marketplace/adminpanel/internal/domain"
	"github.com/marketplace/adminpanel/internal/escrow"
	"github.com/marketplace/adminpanel/internal/validation"
)

var escrowColumns = []string{
	"campaign_id", "campaign", "business", "influencer",
	"net_amount", "currency", "status", "created_at",
}

type escrowRow struct {
	CampaignID string `json:"campaign_id" validate:"required"`
	Campaign   string `json:"campaign" validate:"required"`
	Business   string `json:"business" validate:"required"`
	Influencer string `json:"influencer" validate:"required"`
	NetAmount  string `json:"net_amount" validate:"required"`
	Currency   string `json:"currency" validate:"required,currency_code"`
	Status     string `json:"status" validate:"omitempty,oneof=held released refunded split disputed"`
	CreatedAt  string `json:"created_at" validate:"required"`
}

// ParseEscrowCSV parses the escrow payments export.
//
// Expected header (any column order):
//
//	campaign_id,campaign,business,influencer,net_amount,currency,status,created_at
//
// net_amount is what the influencer receives, in the row's currency. It is
// converted to SAR before the breakdown is computed.
func ParseEscrowCSV(data []byte) ([]domain.EscrowPayment, error) {
	reader := csv.NewReader(strings.NewReader(string(data)))
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, col := range escrowColumns {
		if _, ok := index[col]; !ok {
			return nil, domain.NewFieldError(domain.ErrMissingField, col, "column not in header")
		}
	}

	var payments []domain.EscrowPayment
	lineNum := 1

	for {
		lineNum++
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}

		get := func(col string) string {
			i := index[col]
			if i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}
		rec := escrowRow{
			CampaignID: get("campaign_id"),
			Campaign:   get("campaign"),
			Business:   get("business"),
			Influencer: get("influencer"),
			NetAmount:  get("net_amount"),
			Currency:   strings.ToUpper(get("currency")),
			Status:     get("status"),
			CreatedAt:  get("created_at"),
		}

		p, err := toPayment(rec)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		payments = append(payments, p)
	}

	return payments, nil
}

func toPayment(rec escrowRow) (domain.EscrowPayment, error) {
	if err := validation.Struct(rec); err != nil {
		return domain.EscrowPayment{}, err
	}

	amount, err := decimal.NewFromString(rec.NetAmount)
	if err != nil {
		return domain.EscrowPayment{}, domain.NewFieldError(domain.ErrInvalidAmount, "net_amount", rec.NetAmount)
	}
	createdAt, err := parseDate(rec.CreatedAt)
	if err != nil {
		return domain.EscrowPayment{}, domain.NewFieldError(domain.ErrInvalidTimestamp, "created_at", rec.CreatedAt)
	}

	sar, err := currency.ToSAR(amount, rec.Currency)
	if err != nil {
		return domain.EscrowPayment{}, err
	}
	breakdown, err := escrow.ComputeBreakdown(sar)
	if err != nil {
		return domain.EscrowPayment{}, err
	}

	status := domain.EscrowStatus(rec.Status)
	if status == "" {
		status = domain.EscrowHeld
	}

	return domain.EscrowPayment{
		ID:             "ESC-" + rec.CampaignID,
		CampaignID:     rec.CampaignID,
		CampaignTitle:  rec.Campaign,
		BusinessName:   rec.Business,
		InfluencerName: rec.Influencer,
		SourceAmount:   amount,
		SourceCurrency: rec.Currency,
		Breakdown:      breakdown,
		Status:         status,
		CreatedAt:      createdAt,
		UpdatedAt:      createdAt,
	}, nil
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	return time.Parse("2006-01-02", s)
}
