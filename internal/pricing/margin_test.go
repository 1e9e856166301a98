package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baharkarakas/broker-ledger/internal/apperr"
	"github.com/baharkarakas/broker-ledger/internal/models"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestFinalPrice(t *testing.T) {
	cases := []struct {
		proposed, margin, want string
	}{
		{"100", "10", "110.00"},
		{"100", "0", "100.00"},
		{"33.33", "15", "38.33"},
		{"10.005", "0", "10.01"},
		{"50", "-5", "50.00"},
		{"50", "250", "100.00"},
		{"19.99", "12.5", "22.49"},
	}
	for _, c := range cases {
		got := FinalPrice(d(c.proposed), d(c.margin))
		assert.Equal(t, c.want, got.StringFixed(2), "FinalPrice(%s, %s)", c.proposed, c.margin)
	}
}

func TestApplyToOffers(t *testing.T) {
	offers := []models.Offer{
		{ID: "a", ProposedPrice: d("100")},
		{ID: "b", ProposedPrice: d("250")},
	}
	out := ApplyToOffers(offers, d("20"))

	require.Len(t, out, 2)
	assert.Equal(t, "120.00", out[0].Price().StringFixed(2))
	assert.Equal(t, "300.00", out[1].Price().StringFixed(2))
	assert.False(t, offers[0].FinalPrice.Valid, "input must not be modified")
}

func TestParseAmount(t *testing.T) {
	v, err := ParseAmount("amount", " 12.50 ")
	require.NoError(t, err)
	assert.True(t, v.Equal(d("12.5")))

	for _, raw := range []string{"", "abc", "0", "-3", "1.234"} {
		_, err := ParseAmount("amount", raw)
		assert.ErrorIs(t, err, apperr.ErrValidation, raw)
	}
}

func TestParsePercent(t *testing.T) {
	_, err := ParsePercent("refund_percent", "100")
	require.NoError(t, err)
	_, err = ParsePercent("refund_percent", "100.1")
	require.ErrorIs(t, err, apperr.ErrValidation)
}
