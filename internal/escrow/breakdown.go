package escrow

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/marketplace/adminpanel/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// Commission is 3% of the total charged, so the net is the remaining 97%.
var (
	commissionUnits = domain.CommissionRate.Mul(hundred)
	netUnits        = hundred.Sub(commissionUnits)
)

var driftTolerance = decimal.RequireFromString("0.01")

// ComputeBreakdown derives the full charge to the business from the amount
// the influencer is guaranteed to receive. Commission is added on top of the
// net rather than deducted from it.
func ComputeBreakdown(netToInfluencer decimal.Decimal) (domain.FinancialBreakdown, error) {
	if !netToInfluencer.IsPositive() {
		return domain.FinancialBreakdown{}, domain.NewFieldError(
			domain.ErrInvalidAmount, "net_to_influencer",
			fmt.Sprintf("must be positive, got %s", netToInfluencer.String()),
		)
	}
	net := netToInfluencer.Round(2)
	if !net.IsPositive() {
		return domain.FinancialBreakdown{}, domain.NewFieldError(
			domain.ErrInvalidAmount, "net_to_influencer",
			fmt.Sprintf("%s rounds below 0.01", netToInfluencer.String()),
		)
	}

	commission := net.Div(netUnits).Mul(commissionUnits).Round(2)
	beforeCommission := net.Add(commission).Round(2)
	vat := commission.Mul(domain.VATRate).Round(2)
	total := beforeCommission.Add(vat).Round(2)

	return domain.FinancialBreakdown{
		NetToInfluencer:        net,
		Commission:             commission,
		CommissionRate:         domain.CommissionRate,
		VAT:                    vat,
		VATRate:                domain.VATRate,
		AmountBeforeCommission: beforeCommission,
		TotalPaid:              total,
		PlatformRevenue:        commission,
	}, nil
}

// ComputeBreakdownFloat is ComputeBreakdown for callers holding float amounts.
func ComputeBreakdownFloat(netToInfluencer float64) (domain.FinancialBreakdown, error) {
	return ComputeBreakdown(decimal.NewFromFloat(netToInfluencer))
}

// Reconcile checks a stored breakdown against its own components.
func Reconcile(b domain.FinancialBreakdown) error {
	sum := b.NetToInfluencer.Add(b.Commission).Add(b.VAT)
	if sum.Sub(b.TotalPaid).Abs().GreaterThan(driftTolerance) {
		return fmt.Errorf("%w: total %s, components %s", domain.ErrRoundingDrift, b.TotalPaid, sum)
	}
	if !b.PlatformRevenue.Equal(b.Commission) {
		return fmt.Errorf("%w: platform revenue %s != commission %s",
			domain.ErrRoundingDrift, b.PlatformRevenue, b.Commission)
	}
	return nil
}
