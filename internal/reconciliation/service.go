package reconciliation

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/marketplace/adminpanel/internal/dispute"
	"github.com/marketplace/adminpanel/internal/domain"
	"github.com/marketplace/adminpanel/internal/escrow"
	"github.com/marketplace/adminpanel/internal/repository"
)

// AuditResult summarises a full audit run.
type AuditResult struct {
	PaymentsChecked      int              `json:"payments_checked"`
	DisputesChecked      int              `json:"disputes_checked"`
	BreakdownMismatches  int              `json:"breakdown_mismatches"`
	OrphanedDisputes     int              `json:"orphaned_disputes"`
	ReleasedInDispute    int              `json:"released_during_dispute"`
	UnsettledResolutions int              `json:"unsettled_resolutions"`
	Findings             []domain.Finding `json:"findings"`
}

// Service cross-checks stored escrow payments against their breakdowns and
// against the disputes that reference them.
type Service struct {
	escrow   *repository.EscrowRepo
	disputes *repository.DisputeRepo
	log      logrus.FieldLogger
	nowFn    func() time.Time
}

func NewService(escrowRepo *repository.EscrowRepo, disputes *repository.DisputeRepo, log logrus.FieldLogger) *Service {
	return &Service{
		escrow:   escrowRepo,
		disputes: disputes,
		log:      log.WithField("component", "reconciliation"),
		nowFn:    time.Now,
	}
}

// Run loads both books once and runs every detector over them. Nothing is
// written; findings are recomputed on each call.
func (s *Service) Run() (*AuditResult, error) {
	payments, err := s.escrow.ListAll()
	if err != nil {
		return nil, fmt.Errorf("load escrow payments: %w", err)
	}
	disputes, err := s.disputes.ListAll(repository.DisputeFilter{})
	if err != nil {
		return nil, fmt.Errorf("load disputes: %w", err)
	}

	now := s.nowFn()
	byID := make(map[string]domain.EscrowPayment, len(payments))
	for _, p := range payments {
		byID[p.ID] = p
	}

	mismatches := DetectBreakdownMismatches(payments, now)
	orphaned, released, unsettled := DetectLinkIssues(disputes, byID, now)

	result := &AuditResult{
		PaymentsChecked:      len(payments),
		DisputesChecked:      len(disputes),
		BreakdownMismatches:  len(mismatches),
		OrphanedDisputes:     len(orphaned),
		ReleasedInDispute:    len(released),
		UnsettledResolutions: len(unsettled),
	}
	result.Findings = make([]domain.Finding, 0, len(mismatches)+len(orphaned)+len(released)+len(unsettled))
	result.Findings = append(result.Findings, mismatches...)
	result.Findings = append(result.Findings, orphaned...)
	result.Findings = append(result.Findings, released...)
	result.Findings = append(result.Findings, unsettled...)
	sort.SliceStable(result.Findings, func(i, j int) bool {
		return severityRank(result.Findings[i].Severity) < severityRank(result.Findings[j].Severity)
	})

	s.log.WithFields(logrus.Fields{
		"payments":   result.PaymentsChecked,
		"disputes":   result.DisputesChecked,
		"mismatches": result.BreakdownMismatches,
		"orphaned":   result.OrphanedDisputes,
		"released":   result.ReleasedInDispute,
		"unsettled":  result.UnsettledResolutions,
	}).Info("audit complete")

	return result, nil
}

// DetectBreakdownMismatches recomputes each payment's breakdown from its net
// amount and flags stored totals that differ, or that no longer add up.
func DetectBreakdownMismatches(payments []domain.EscrowPayment, now time.Time) []domain.Finding {
	var findings []domain.Finding
	for _, p := range payments {
		stored := p.Breakdown
		expected, err := escrow.ComputeBreakdown(stored.NetToInfluencer)
		if err != nil {
			findings = append(findings, domain.Finding{
				ID:          "FND-BM-" + p.ID,
				Type:        domain.FindingBreakdownMismatch,
				EscrowID:    p.ID,
				Actual:      stored.NetToInfluencer,
				Severity:    domain.SeverityCritical,
				Description: fmt.Sprintf("Payment %s has an invalid net amount: %v", p.ID, err),
				DetectedAt:  now,
			})
			continue
		}

		driftErr := escrow.Reconcile(stored)
		if driftErr == nil && stored.TotalPaid.Equal(expected.TotalPaid) &&
			stored.Commission.Equal(expected.Commission) && stored.VAT.Equal(expected.VAT) {
			continue
		}

		diff := stored.TotalPaid.Sub(expected.TotalPaid)
		desc := fmt.Sprintf("Payment %s: stored total %s, recomputed %s", p.ID,
			stored.TotalPaid.StringFixed(2), expected.TotalPaid.StringFixed(2))
		if driftErr != nil {
			desc += fmt.Sprintf(" (%v)", driftErr)
		}
		findings = append(findings, domain.Finding{
			ID:          "FND-BM-" + p.ID,
			Type:        domain.FindingBreakdownMismatch,
			EscrowID:    p.ID,
			Expected:    expected.TotalPaid,
			Actual:      stored.TotalPaid,
			Difference:  diff,
			Severity:    mismatchSeverity(diff.Abs()),
			Description: desc,
			DetectedAt:  now,
		})
	}
	return findings
}

// DetectLinkIssues checks every dispute against the payment it references:
// the payment must exist, stay frozen while the dispute is open, and match
// the ruling once it is resolved.
func DetectLinkIssues(disputes []domain.Dispute, payments map[string]domain.EscrowPayment, now time.Time) (orphaned, released, unsettled []domain.Finding) {
	for _, d := range disputes {
		if d.EscrowID == "" {
			continue
		}
		p, ok := payments[d.EscrowID]
		if !ok {
			orphaned = append(orphaned, domain.Finding{
				ID:          "FND-OD-" + d.ID,
				Type:        domain.FindingOrphanedDispute,
				EscrowID:    d.EscrowID,
				DisputeID:   d.ID,
				Expected:    d.AmountInDispute,
				Difference:  d.AmountInDispute,
				Severity:    domain.SeverityHigh,
				Description: fmt.Sprintf("Dispute %s references payment %s which does not exist", d.ID, d.EscrowID),
				DetectedAt:  now,
			})
			continue
		}

		if dispute.IsOpen(d) {
			if p.Status == domain.EscrowHeld || p.Status == domain.EscrowDisputed {
				continue
			}
			released = append(released, domain.Finding{
				ID:          "FND-RD-" + d.ID,
				Type:        domain.FindingReleasedInDispute,
				EscrowID:    p.ID,
				DisputeID:   d.ID,
				Expected:    d.AmountInDispute,
				Difference:  d.AmountInDispute,
				Severity:    domain.SeverityCritical,
				Description: fmt.Sprintf("Payment %s is %s while dispute %s is still %s", p.ID, p.Status, d.ID, d.Status),
				DetectedAt:  now,
			})
			continue
		}

		if d.Resolution == nil {
			continue
		}
		want := d.Resolution.Type.EscrowOutcome()
		if p.Status == want {
			continue
		}
		unsettled = append(unsettled, domain.Finding{
			ID:          "FND-UR-" + d.ID,
			Type:        domain.FindingUnsettledResolution,
			EscrowID:    p.ID,
			DisputeID:   d.ID,
			Expected:    d.AmountInDispute,
			Difference:  d.AmountInDispute,
			Severity:    severityByAmount(d.AmountInDispute),
			Description: fmt.Sprintf("Dispute %s was resolved for the %s but payment %s is %s, expected %s", d.ID, d.Resolution.Type, p.ID, p.Status, want),
			DetectedAt:  now,
		})
	}
	return orphaned, released, unsettled
}

// --- helpers ---

var (
	highAmount   = decimal.NewFromInt(10000)
	mediumAmount = decimal.NewFromInt(1000)
	criticalDiff = decimal.NewFromInt(100)
	highDiff     = decimal.NewFromInt(1)
)

func severityByAmount(sar decimal.Decimal) domain.Severity {
	switch {
	case sar.GreaterThan(highAmount):
		return domain.SeverityHigh
	case sar.GreaterThan(mediumAmount):
		return domain.SeverityMedium
	default:
		return domain.SeverityLow
	}
}

func mismatchSeverity(absDiff decimal.Decimal) domain.Severity {
	switch {
	case absDiff.GreaterThan(criticalDiff):
		return domain.SeverityCritical
	case absDiff.GreaterThan(highDiff):
		return domain.SeverityHigh
	default:
		return domain.SeverityMedium
	}
}

func severityRank(s domain.Severity) int {
	switch s {
	case domain.SeverityCritical:
		return 0
	case domain.SeverityHigh:
		return 1
	case domain.SeverityMedium:
		return 2
	default:
		return 3
	}
}
