package validate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baharkarakas/broker-ledger/internal/apperr"
)

type sample struct {
	Amount  string  `json:"amount" validate:"required,money"`
	Margin  *string `json:"margin_percent" validate:"omitempty,percent"`
	Outcome string  `json:"outcome" validate:"omitempty,oneof=resolved_client resolved_provider"`
}

func TestStruct(t *testing.T) {
	require.NoError(t, Struct(sample{Amount: "10.50"}))

	m := "120"
	err := Struct(sample{Amount: "10.555", Margin: &m, Outcome: "coinflip"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	var errs Errs
	require.True(t, errors.As(err, &errs))
	fields := map[string]bool{}
	for _, f := range errs {
		fields[f.Field] = true
	}
	assert.Equal(t, map[string]bool{"amount": true, "margin_percent": true, "outcome": true}, fields)
}

func TestStructMissingAmount(t *testing.T) {
	err := Struct(sample{})
	var errs Errs
	require.True(t, errors.As(err, &errs))
	assert.Equal(t, "amount", errs[0].Field)
	assert.Equal(t, "required", errs[0].Msg)
}
