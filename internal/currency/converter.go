package currency

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const Base = "SAR"

// unitsPerSAR maps currency codes to the number of local units per 1 SAR.
// The riyal is pegged to the dollar, so these move only with the other leg.
var unitsPerSAR = map[string]decimal.Decimal{
	"SAR": decimal.NewFromInt(1),
	"USD": decimal.RequireFromString("0.2667"),
	"AED": decimal.RequireFromString("0.9793"),
	"EUR": decimal.RequireFromString("0.2460"),
	"KWD": decimal.RequireFromString("0.0819"),
}

func lookup(code string) (decimal.Decimal, error) {
	rate, ok := unitsPerSAR[strings.ToUpper(strings.TrimSpace(code))]
	if !ok {
		return decimal.Zero, fmt.Errorf("unsupported currency: %s", code)
	}
	return rate, nil
}

// ToSAR converts a local currency amount to riyals, rounded to halalas.
func ToSAR(amount decimal.Decimal, code string) (decimal.Decimal, error) {
	rate, err := lookup(code)
	if err != nil {
		return decimal.Zero, err
	}
	return amount.Div(rate).Round(2), nil
}

// FromSAR converts a riyal amount to the given currency.
func FromSAR(amount decimal.Decimal, code string) (decimal.Decimal, error) {
	rate, err := lookup(code)
	if err != nil {
		return decimal.Zero, err
	}
	return amount.Mul(rate).Round(2), nil
}

func Supported(code string) bool {
	_, err := lookup(code)
	return err == nil
}

// Rate returns the number of local units per 1 SAR.
func Rate(code string) (decimal.Decimal, error) {
	return lookup(code)
}

// Format renders an amount the way the admin panel shows it, e.g. "SAR 6,213.41".
func Format(amount decimal.Decimal) string {
	s := amount.Abs().StringFixed(2)
	whole, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}

	sign := ""
	if amount.IsNegative() {
		sign = "-"
	}
	return fmt.Sprintf("%s%s %s.%s", sign, Base, b.String(), frac)
}
