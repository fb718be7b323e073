package dispute

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/marketplace/adminpanel/internal/domain"
)

var allowedTransitions = map[domain.DisputeStatus]map[domain.DisputeStatus]bool{
	domain.StatusNew:       {domain.StatusEvidence: true, domain.StatusEscalated: true},
	domain.StatusEvidence:  {domain.StatusReview: true, domain.StatusEscalated: true},
	domain.StatusReview:    {domain.StatusResolved: true, domain.StatusEscalated: true},
	domain.StatusEscalated: {domain.StatusResolved: true},
}

// ValidateTransition checks a status change. Repeating a non-terminal status
// is a no-op; nothing leaves resolved.
func ValidateTransition(from, to domain.DisputeStatus) error {
	if !to.Valid() {
		return domain.NewFieldError(domain.ErrInvalidTransition, "status", fmt.Sprintf("unknown status %q", to))
	}
	if from == domain.StatusResolved {
		return domain.ErrDisputeResolved
	}
	if from == to {
		return nil
	}
	if allowedTransitions[from][to] {
		return nil
	}
	return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, from, to)
}

// Transition returns a copy of d in the new status. Resolving goes through
// Resolve so the resolution is always present.
func Transition(d domain.Dispute, to domain.DisputeStatus) (domain.Dispute, error) {
	if err := ValidateTransition(d.Status, to); err != nil {
		return d, err
	}
	if to == domain.StatusResolved {
		return d, fmt.Errorf("%w: resolving requires a decision", domain.ErrInvalidTransition)
	}
	d.Status = to
	return d, nil
}

// Resolve applies a finalized decision. The gate is checked first so a
// closed gate is reported as ErrGateClosed with its reason.
func Resolve(d domain.Dispute, decision domain.Decision, actor string, now time.Time) (domain.Dispute, error) {
	if gate := CanFinalizeFor(d, decision); !gate.Allowed {
		if gate.Reason == GateDisputeResolved {
			return d, domain.ErrDisputeResolved
		}
		return d, &GateError{Reason: gate.Reason}
	}
	if err := ValidateTransition(d.Status, domain.StatusResolved); err != nil {
		return d, err
	}

	split, err := ComputeSplit(d.AmountInDispute, decision.Type, decision.SplitPercentage())
	if err != nil {
		return d, err
	}

	d.Status = domain.StatusResolved
	d.Resolution = &domain.Resolution{
		ID:         uuid.NewString(),
		Type:       decision.Type,
		Percentage: effectivePercentage(decision),
		Reasoning:  strings.TrimSpace(decision.Reasoning),
		Split:      split,
		ResolvedBy: actor,
		ResolvedAt: now,
	}
	return d, nil
}

func effectivePercentage(decision domain.Decision) int {
	switch decision.Type {
	case domain.DecisionInfluencer:
		return 100
	case domain.DecisionBusiness:
		return 0
	default:
		return decision.SplitPercentage()
	}
}

// Validate checks a dispute record at ingestion so derived functions can
// assume a structurally complete record.
func Validate(d domain.Dispute) error {
	required := []struct {
		field string
		value string
	}{
		{"id", d.ID},
		{"campaign_id", d.CampaignID},
		{"business.id", d.Business.ID},
		{"influencer.id", d.Influencer.ID},
		{"status", string(d.Status)},
		{"priority", string(d.Priority)},
		{"category", string(d.Category)},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return domain.NewFieldError(domain.ErrMissingField, r.field, "")
		}
	}
	if !d.Status.Valid() {
		return domain.NewFieldError(domain.ErrInvalidField, "status", fmt.Sprintf("unknown status %q", d.Status))
	}
	if d.AmountInDispute.IsNegative() {
		return domain.NewFieldError(domain.ErrInvalidAmount, "amount_in_dispute", d.AmountInDispute.String())
	}
	if d.OpenedAt.IsZero() {
		return domain.NewFieldError(domain.ErrInvalidTimestamp, "opened_at", "zero time")
	}
	if d.Deadline.IsZero() {
		return domain.NewFieldError(domain.ErrInvalidTimestamp, "deadline", "zero time")
	}
	if d.Deadline.Before(d.OpenedAt) {
		return domain.NewFieldError(domain.ErrInvalidTimestamp, "deadline", "before opened_at")
	}
	for i, r := range d.Requirements {
		if strings.TrimSpace(r.Label) == "" {
			return domain.NewFieldError(domain.ErrMissingField, fmt.Sprintf("requirements[%d].label", i), "")
		}
	}
	for i, e := range d.Evidence {
		if !e.UploadedBy.Valid() {
			return domain.NewFieldError(roleKind(e.UploadedBy), fmt.Sprintf("evidence[%d].uploaded_by", i), string(e.UploadedBy))
		}
	}
	for i, m := range d.Messages {
		if !m.Author.Valid() {
			return domain.NewFieldError(roleKind(m.Author), fmt.Sprintf("messages[%d].author", i), string(m.Author))
		}
		if m.SentAt.IsZero() {
			return domain.NewFieldError(domain.ErrInvalidTimestamp, fmt.Sprintf("messages[%d].sent_at", i), "zero time")
		}
	}
	if d.Status == domain.StatusResolved && d.Resolution == nil {
		return domain.NewFieldError(domain.ErrMissingField, "resolution", "required when status is resolved")
	}
	if d.Status != domain.StatusResolved && d.Resolution != nil {
		return domain.NewFieldError(domain.ErrInvalidTransition, "resolution", "present on an open dispute")
	}
	if res := d.Resolution; res != nil {
		if res.InfluencerAmount.IsNegative() || res.BusinessAmount.IsNegative() {
			return domain.NewFieldError(domain.ErrInvalidAmount, "resolution", "negative share")
		}
		if sum := res.InfluencerAmount.Add(res.BusinessAmount); !sum.Equal(d.AmountInDispute) {
			return domain.NewFieldError(domain.ErrInvalidAmount, "resolution",
				fmt.Sprintf("shares add up to %s, amount in dispute is %s", sum, d.AmountInDispute))
		}
	}
	return nil
}

func roleKind(r domain.Role) error {
	if r == "" {
		return domain.ErrMissingField
	}
	return domain.ErrInvalidField
}
