// Package dispute derives time, urgency and requirement facts about disputes
// and validates their lifecycle. Every function takes "now" explicitly.
package dispute

import (
	"math"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/marketplace/adminpanel/internal/domain"
)

const (
	UrgentWindowHours      = 48
	DecisionDueWindowHours = 72
	DefaultTopUrgentLimit  = 2
)

// HoursRemaining rounds the time left up to whole hours. It never goes
// negative: a passed deadline reports 0.
func HoursRemaining(deadline, now time.Time) int {
	diff := deadline.Sub(now)
	if diff <= 0 {
		return 0
	}
	return int(math.Ceil(diff.Hours()))
}

// IsOverdue reports whether the deadline has passed. HoursRemaining cannot
// express this on its own since it is clamped at zero.
func IsOverdue(deadline, now time.Time) bool {
	return now.After(deadline)
}

func IsOpen(d domain.Dispute) bool {
	return d.Status != domain.StatusResolved
}

func IsUrgent(d domain.Dispute, now time.Time) bool {
	if !IsOpen(d) {
		return false
	}
	return d.Priority == domain.PriorityCritical || HoursRemaining(d.Deadline, now) < UrgentWindowHours
}

// RequirementsMet returns the share of met requirements as a whole percentage.
func RequirementsMet(reqs []domain.Requirement) int {
	if len(reqs) == 0 {
		return 0
	}
	met := 0
	for _, r := range reqs {
		if r.Met {
			met++
		}
	}
	return int(math.Round(100 * float64(met) / float64(len(reqs))))
}

func PriorityRank(p domain.Priority) int {
	switch p {
	case domain.PriorityCritical:
		return 0
	case domain.PriorityHigh:
		return 1
	case domain.PriorityMedium:
		return 2
	case domain.PriorityLow:
		return 3
	default:
		return 4
	}
}

// SortByUrgency returns a new slice ordered by priority rank, then by the
// fewest hours remaining. Ties keep their input order.
func SortByUrgency(disputes []domain.Dispute, now time.Time) []domain.Dispute {
	out := slices.Clone(disputes)
	slices.SortStableFunc(out, func(a, b domain.Dispute) int {
		if ra, rb := PriorityRank(a.Priority), PriorityRank(b.Priority); ra != rb {
			return ra - rb
		}
		return HoursRemaining(a.Deadline, now) - HoursRemaining(b.Deadline, now)
	})
	return out
}

// SelectTopUrgent picks the open disputes that are critical or inside the
// urgent window, closest deadline first, capped at limit.
func SelectTopUrgent(disputes []domain.Dispute, now time.Time, limit int) []domain.Dispute {
	if limit <= 0 {
		limit = DefaultTopUrgentLimit
	}

	var urgent []domain.Dispute
	for _, d := range disputes {
		if IsUrgent(d, now) {
			urgent = append(urgent, d)
		}
	}
	slices.SortStableFunc(urgent, func(a, b domain.Dispute) int {
		return HoursRemaining(a.Deadline, now) - HoursRemaining(b.Deadline, now)
	})

	if len(urgent) > limit {
		urgent = urgent[:limit]
	}
	return urgent
}

type Stats struct {
	TotalOpen        int             `json:"total_open"`
	AwaitingEvidence int             `json:"awaiting_evidence"`
	DecisionDue      int             `json:"decision_due"`
	ValueAtStake     decimal.Decimal `json:"value_at_stake"`
}

func AggregateStats(disputes []domain.Dispute, now time.Time) Stats {
	s := Stats{ValueAtStake: decimal.Zero}
	for _, d := range disputes {
		if d.Status == domain.StatusEvidence {
			s.AwaitingEvidence++
		}
		if !IsOpen(d) {
			continue
		}
		s.TotalOpen++
		s.ValueAtStake = s.ValueAtStake.Add(d.AmountInDispute)
		if HoursRemaining(d.Deadline, now) < DecisionDueWindowHours {
			s.DecisionDue++
		}
	}
	return s
}

// View holds the derived fields shown next to a dispute.
type View struct {
	HoursRemaining  int  `json:"hours_remaining"`
	Overdue         bool `json:"overdue"`
	Urgent          bool `json:"urgent"`
	RequirementsMet int  `json:"requirements_met"`
	PriorityRank    int  `json:"priority_rank"`
}

func Derive(d domain.Dispute, now time.Time) View {
	v := View{
		RequirementsMet: RequirementsMet(d.Requirements),
		PriorityRank:    PriorityRank(d.Priority),
	}
	// Countdown is frozen once a dispute is resolved.
	if IsOpen(d) {
		v.HoursRemaining = HoursRemaining(d.Deadline, now)
		v.Overdue = IsOverdue(d.Deadline, now)
		v.Urgent = IsUrgent(d, now)
	}
	return v
}
