// Package pricing turns provider proposals into client-facing prices.
package pricing

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/baharkarakas/broker-ledger/internal/apperr"
	"github.com/baharkarakas/broker-ledger/internal/models"
)

var (
	hundred = decimal.NewFromInt(100)
	one     = decimal.NewFromInt(1)
)

// ClampMargin bounds a margin percentage to [0, 100].
func ClampMargin(marginPercent decimal.Decimal) decimal.Decimal {
	if marginPercent.IsNegative() {
		return decimal.Zero
	}
	if marginPercent.GreaterThan(hundred) {
		return hundred
	}
	return marginPercent
}

// FinalPrice returns proposed * (1 + margin/100) rounded half-up to cents.
func FinalPrice(proposed, marginPercent decimal.Decimal) decimal.Decimal {
	factor := one.Add(ClampMargin(marginPercent).Div(hundred))
	return proposed.Mul(factor).Round(2)
}

// ApplyToOffers sets FinalPrice on every offer independently and returns the
// updated copies. The input slice is not modified.
func ApplyToOffers(offers []models.Offer, marginPercent decimal.Decimal) []models.Offer {
	out := make([]models.Offer, len(offers))
	for i, o := range offers {
		o.FinalPrice = decimal.NewNullDecimal(FinalPrice(o.ProposedPrice, marginPercent))
		out[i] = o
	}
	return out
}

// ParseAmount validates a positive money amount with at most two decimals.
func ParseAmount(field, raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, apperr.Validation("%s: malformed amount %q", field, raw)
	}
	if !d.IsPositive() {
		return decimal.Zero, apperr.Validation("%s: must be greater than zero", field)
	}
	if d.Exponent() < -2 && !d.Equal(d.Round(2)) {
		return decimal.Zero, apperr.Validation("%s: at most two decimal places", field)
	}
	return d, nil
}

// ParsePercent validates a percentage in [0, 100].
func ParsePercent(field, raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, apperr.Validation("%s: malformed percentage %q", field, raw)
	}
	if d.IsNegative() || d.GreaterThan(hundred) {
		return decimal.Zero, apperr.Validation("%s: must be between 0 and 100", field)
	}
	return d, nil
}
