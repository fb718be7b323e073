package dispute

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/marketplace/adminpanel/internal/domain"
)

const MinReasoningLength = 30

var hundred = decimal.NewFromInt(100)

// ComputeSplit divides the disputed amount according to a ruling. For a
// split the influencer share is rounded to whole currency units and the
// business receives the exact remainder.
func ComputeSplit(amount decimal.Decimal, decision domain.DecisionType, percentage int) (domain.Split, error) {
	if amount.IsNegative() {
		return domain.Split{}, domain.NewFieldError(domain.ErrInvalidAmount, "amount_in_dispute", amount.String())
	}

	switch decision {
	case domain.DecisionInfluencer:
		return domain.Split{InfluencerAmount: amount, BusinessAmount: decimal.Zero}, nil
	case domain.DecisionBusiness:
		return domain.Split{InfluencerAmount: decimal.Zero, BusinessAmount: amount}, nil
	case domain.DecisionSplit:
		if percentage < 0 || percentage > 100 {
			return domain.Split{}, domain.NewFieldError(domain.ErrInvalidPercentage, "percentage", fmt.Sprintf("%d not in [0,100]", percentage))
		}
		influencer := amount.Mul(decimal.NewFromInt(int64(percentage))).Div(hundred).Round(0)
		return domain.Split{InfluencerAmount: influencer, BusinessAmount: amount.Sub(influencer)}, nil
	default:
		return domain.Split{}, domain.NewFieldError(domain.ErrInvalidDecision, "type", string(decision))
	}
}

type GateReason string

const (
	GateOK                GateReason = ""
	GateInvalidType       GateReason = "invalid_type"
	GatePercentageMissing GateReason = "percentage_missing"
	GatePercentageRange   GateReason = "percentage_out_of_range"
	GateReasoningTooShort GateReason = "reasoning_too_short"
	GateNotReviewed       GateReason = "not_reviewed"
	GateNotAcknowledged   GateReason = "not_acknowledged"
	GateDisputeResolved   GateReason = "dispute_resolved"
)

// Gate is the outcome of a submission check. A closed gate is an expected
// state of the decision form, not an error.
type Gate struct {
	Allowed bool       `json:"allowed"`
	Reason  GateReason `json:"reason,omitempty"`
}

// GateError reports a closed gate on submission. It matches
// domain.ErrGateClosed with errors.Is.
type GateError struct {
	Reason GateReason
}

func (e *GateError) Error() string {
	return fmt.Sprintf("%v: %s", domain.ErrGateClosed, e.Reason)
}

func (e *GateError) Unwrap() error { return domain.ErrGateClosed }

func open() Gate { return Gate{Allowed: true} }
func closed(r GateReason) Gate { return Gate{Reason: r} }

// CanFinalize checks the decision form in the order the wizard presents it.
func CanFinalize(decision domain.Decision) Gate {
	switch decision.Type {
	case domain.DecisionInfluencer, domain.DecisionBusiness:
	case domain.DecisionSplit:
		if decision.Percentage == nil {
			return closed(GatePercentageMissing)
		}
		if pct := *decision.Percentage; pct < 0 || pct > 100 {
			return closed(GatePercentageRange)
		}
	default:
		return closed(GateInvalidType)
	}
	if utf8.RuneCountInString(strings.TrimSpace(decision.Reasoning)) < MinReasoningLength {
		return closed(GateReasoningTooShort)
	}
	if !decision.Reviewed {
		return closed(GateNotReviewed)
	}
	if !decision.Understand {
		return closed(GateNotAcknowledged)
	}
	return open()
}

// CanFinalizeFor is CanFinalize against a specific dispute.
func CanFinalizeFor(d domain.Dispute, decision domain.Decision) Gate {
	if !IsOpen(d) {
		return closed(GateDisputeResolved)
	}
	return CanFinalize(decision)
}
