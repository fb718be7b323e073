package ingestion

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/marketplace/adminpanel/internal/currency"
	"github.com/marketplace/adminpanel/internal/dispute"
	"github.com/marketplace/adminpanel/internal/domain"
	"github.com/marketplace/adminpanel/internal/validation"
)

// disputesFile is the top-level JSON export of the dispute queue.
type disputesFile struct {
	GeneratedAt time.Time       `json:"generated_at"`
	Disputes    []disputeRecord `json:"disputes"`
}

type partyRecord struct {
	ID   string `json:"id" validate:"required"`
	Name string `json:"name" validate:"required"`
}

type disputeRecord struct {
	ID              string               `json:"id" validate:"required"`
	CampaignID      string               `json:"campaign_id" validate:"required"`
	CampaignTitle   string               `json:"campaign_title" validate:"required"`
	EscrowID        string               `json:"escrow_id"`
	Business        partyRecord          `json:"business"`
	Influencer      partyRecord          `json:"influencer"`
	Status          string               `json:"status" validate:"required,oneof=new evidence review escalated resolved"`
	Priority        string               `json:"priority" validate:"required,oneof=critical high medium low"`
	Category        string               `json:"category" validate:"omitempty,oneof=content_quality missed_deadline requirements_not_met payment communication other"`
	Summary         string               `json:"summary"`
	AmountInDispute jsonText             `json:"amount_in_dispute"`
	Currency        string               `json:"currency" validate:"omitempty,currency_code"`
	OpenedAt        string               `json:"opened_at"`
	Deadline        string               `json:"deadline"`
	Requirements    []domain.Requirement `json:"requirements"`
	Evidence        []domain.Evidence    `json:"evidence"`
	Messages        []domain.Message     `json:"messages"`
	Resolution      *domain.Resolution   `json:"resolution"`
}

// jsonText keeps the raw text of a JSON string or number so it can be parsed
// with a field-level error later.
type jsonText string

func (t *jsonText) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*t = jsonText(s)
		return nil
	}
	*t = jsonText(b)
	return nil
}

// ParseDisputesJSON decodes a dispute export. Amounts given in another
// currency are converted to SAR. Every record must pass dispute.Validate.
func ParseDisputesJSON(data []byte) ([]domain.Dispute, error) {
	var file disputesFile
	if err := json.Unmarshal(data, &file); err != nil {
		var perr *time.ParseError
		if errors.As(err, &perr) {
			return nil, domain.NewFieldError(domain.ErrInvalidTimestamp, "timestamp", perr.Value)
		}
		return nil, fmt.Errorf("unmarshal: %w", err)
	}

	disputes := make([]domain.Dispute, 0, len(file.Disputes))
	for i, rec := range file.Disputes {
		if err := validation.Struct(rec); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}

		amount, err := parseAmount(rec.AmountInDispute)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		openedAt, err := parseTimestamp("opened_at", rec.OpenedAt)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		deadline, err := parseTimestamp("deadline", rec.Deadline)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}

		resolution := rec.Resolution
		if rec.Currency != "" {
			sar, err := currency.ToSAR(amount, rec.Currency)
			if err != nil {
				return nil, fmt.Errorf("record %d currency: %w", i, err)
			}
			amount = sar
			if resolution != nil {
				if resolution, err = resolutionToSAR(*resolution, amount, rec.Currency); err != nil {
					return nil, fmt.Errorf("record %d currency: %w", i, err)
				}
			}
		}

		category := domain.Category(rec.Category)
		if category == "" {
			category = domain.CategoryOther
		}

		d := domain.Dispute{
			ID:              rec.ID,
			CampaignID:      rec.CampaignID,
			CampaignTitle:   rec.CampaignTitle,
			EscrowID:        rec.EscrowID,
			Business:        domain.Party{ID: rec.Business.ID, Name: rec.Business.Name},
			Influencer:      domain.Party{ID: rec.Influencer.ID, Name: rec.Influencer.Name},
			Status:          domain.DisputeStatus(rec.Status),
			Priority:        domain.Priority(rec.Priority),
			Category:        category,
			Summary:         rec.Summary,
			AmountInDispute: amount,
			OpenedAt:        openedAt,
			Deadline:        deadline,
			Requirements:    rec.Requirements,
			Evidence:        rec.Evidence,
			Messages:        rec.Messages,
			Resolution:      resolution,
		}
		for j := range d.Evidence {
			if d.Evidence[j].ID == "" {
				d.Evidence[j].ID = uuid.NewString()
			}
		}
		for j := range d.Messages {
			if d.Messages[j].ID == "" {
				d.Messages[j].ID = uuid.NewString()
			}
		}

		if err := dispute.Validate(d); err != nil {
			return nil, fmt.Errorf("record %d (%s): %w", i, rec.ID, err)
		}
		disputes = append(disputes, d)
	}

	return disputes, nil
}

func parseAmount(raw jsonText) (decimal.Decimal, error) {
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return decimal.Zero, nil
	}
	amount, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Zero, domain.NewFieldError(domain.ErrInvalidAmount, "amount_in_dispute", text)
	}
	return amount, nil
}

// parseTimestamp accepts RFC3339 with any offset and normalizes to UTC. An
// empty value is left zero for dispute.Validate to report.
func parseTimestamp(field, raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, domain.NewFieldError(domain.ErrInvalidTimestamp, field, raw)
	}
	return t.UTC(), nil
}

// resolutionToSAR converts a recorded ruling alongside its dispute amount.
// The business share absorbs conversion rounding so the shares still add up.
func resolutionToSAR(res domain.Resolution, amount decimal.Decimal, code string) (*domain.Resolution, error) {
	influencer, err := currency.ToSAR(res.InfluencerAmount, code)
	if err != nil {
		return nil, err
	}
	res.InfluencerAmount = influencer
	res.BusinessAmount = amount.Sub(influencer)
	return &res, nil
}
