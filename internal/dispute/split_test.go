package dispute

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketplace/adminpanel/internal/domain"
)

const goodReasoning = "Influencer delivered two of three stories on time; reel was late."

func TestComputeSplitWholeRulings(t *testing.T) {
	amount := decimal.RequireFromString("4500.75")

	s, err := ComputeSplit(amount, domain.DecisionInfluencer, 0)
	require.NoError(t, err)
	assert.True(t, s.InfluencerAmount.Equal(amount))
	assert.True(t, s.BusinessAmount.IsZero())

	s, err = ComputeSplit(amount, domain.DecisionBusiness, 100)
	require.NoError(t, err)
	assert.True(t, s.InfluencerAmount.IsZero())
	assert.True(t, s.BusinessAmount.Equal(amount))
}

func TestComputeSplitPercentages(t *testing.T) {
	tests := []struct {
		amount     string
		pct        int
		influencer string
		business   string
	}{
		{"5000", 60, "3000", "2000"},
		{"999", 50, "500", "499"},
		{"1001", 50, "501", "500"},
		{"333", 33, "110", "223"},
		{"4500.75", 50, "2250", "2250.75"},
		{"0", 40, "0", "0"},
		{"1200", 0, "0", "1200"},
		{"1200", 100, "1200", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			s, err := ComputeSplit(decimal.RequireFromString(tt.amount), domain.DecisionSplit, tt.pct)
			require.NoError(t, err)
			assert.True(t, s.InfluencerAmount.Equal(decimal.RequireFromString(tt.influencer)), "influencer %s", s.InfluencerAmount)
			assert.True(t, s.BusinessAmount.Equal(decimal.RequireFromString(tt.business)), "business %s", s.BusinessAmount)
		})
	}
}

func TestComputeSplitIsExact(t *testing.T) {
	for cents := int64(0); cents <= 2_000_000; cents += 3331 {
		amount := decimal.New(cents, -2)
		for pct := 0; pct <= 100; pct += 7 {
			s, err := ComputeSplit(amount, domain.DecisionSplit, pct)
			require.NoError(t, err)
			assert.True(t, s.InfluencerAmount.Add(s.BusinessAmount).Equal(amount), "%s at %d%%", amount, pct)
			assert.False(t, s.BusinessAmount.IsNegative())
		}
	}
}

func TestComputeSplitRejectsBadInput(t *testing.T) {
	_, err := ComputeSplit(decimal.NewFromInt(-1), domain.DecisionSplit, 50)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = ComputeSplit(decimal.NewFromInt(100), domain.DecisionSplit, 101)
	assert.ErrorIs(t, err, domain.ErrInvalidPercentage)

	_, err = ComputeSplit(decimal.NewFromInt(100), domain.DecisionSplit, -1)
	assert.ErrorIs(t, err, domain.ErrInvalidPercentage)

	_, err = ComputeSplit(decimal.NewFromInt(100), domain.DecisionType("coin_flip"), 50)
	assert.ErrorIs(t, err, domain.ErrInvalidDecision)
}

func TestCanFinalize(t *testing.T) {
	valid := domain.Decision{Type: domain.DecisionSplit, Percentage: ptr(60), Reasoning: goodReasoning, Reviewed: true, Understand: true}

	tests := []struct {
		name   string
		mutate func(*domain.Decision)
		want   GateReason
	}{
		{"valid", func(*domain.Decision) {}, GateOK},
		{"short reasoning", func(d *domain.Decision) { d.Reasoning = "too short" }, GateReasoningTooShort},
		{"whitespace padded reasoning", func(d *domain.Decision) { d.Reasoning = "   " + strings.Repeat("x", 29) + "    " }, GateReasoningTooShort},
		{"exactly thirty", func(d *domain.Decision) { d.Reasoning = strings.Repeat("x", 30) }, GateOK},
		{"not reviewed", func(d *domain.Decision) { d.Reviewed = false }, GateNotReviewed},
		{"not understood", func(d *domain.Decision) { d.Understand = false }, GateNotAcknowledged},
		{"percentage above range", func(d *domain.Decision) { d.Percentage = ptr(120) }, GatePercentageRange},
		{"percentage below range", func(d *domain.Decision) { d.Percentage = ptr(-1) }, GatePercentageRange},
		{"split without percentage", func(d *domain.Decision) { d.Percentage = nil }, GatePercentageMissing},
		{"zero percent split is explicit", func(d *domain.Decision) { d.Percentage = ptr(0) }, GateOK},
		{"percentage ignored for whole rulings", func(d *domain.Decision) {
			d.Type = domain.DecisionBusiness
			d.Percentage = ptr(500)
		}, GateOK},
		{"whole rulings need no percentage", func(d *domain.Decision) {
			d.Type = domain.DecisionInfluencer
			d.Percentage = nil
		}, GateOK},
		{"unknown type", func(d *domain.Decision) { d.Type = "" }, GateInvalidType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := valid
			tt.mutate(&d)
			gate := CanFinalize(d)
			assert.Equal(t, tt.want, gate.Reason)
			assert.Equal(t, tt.want == GateOK, gate.Allowed)
		})
	}
}

func TestCanFinalizeForResolvedDispute(t *testing.T) {
	decision := domain.Decision{Type: domain.DecisionInfluencer, Reasoning: goodReasoning, Reviewed: true, Understand: true}

	d := newDispute("x", domain.StatusResolved, domain.PriorityHigh, 10, 100)
	gate := CanFinalizeFor(d, decision)
	assert.False(t, gate.Allowed)
	assert.Equal(t, GateDisputeResolved, gate.Reason)

	d.Status = domain.StatusReview
	assert.True(t, CanFinalizeFor(d, decision).Allowed)
}

func ptr[T any](v T) *T { return &v }
