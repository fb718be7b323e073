package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type FindingType string

const (
	FindingBreakdownMismatch   FindingType = "BREAKDOWN_MISMATCH"
	FindingOrphanedDispute     FindingType = "ORPHANED_DISPUTE"
	FindingReleasedInDispute   FindingType = "RELEASED_DURING_DISPUTE"
	FindingUnsettledResolution FindingType = "UNSETTLED_RESOLUTION"
)

type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Finding is an inconsistency between the escrow book and the dispute queue.
type Finding struct {
	ID          string          `json:"id"`
	Type        FindingType     `json:"type"`
	EscrowID    string          `json:"escrow_id,omitempty"`
	DisputeID   string          `json:"dispute_id,omitempty"`
	Expected    decimal.Decimal `json:"expected"`
	Actual      decimal.Decimal `json:"actual"`
	Difference  decimal.Decimal `json:"difference"`
	Severity    Severity        `json:"severity"`
	Description string          `json:"description"`
	DetectedAt  time.Time       `json:"detected_at"`
}
