package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baharkarakas/broker-ledger/internal/models"
)

func TestGenerateAndParse(t *testing.T) {
	tm := NewTokenManager("acc", "ref", "broker-ledger", time.Minute, time.Hour)
	actor := models.Actor{UserID: "u1", Role: models.RoleProvider}

	access, refresh, exp, err := tm.GeneratePair(actor)
	require.NoError(t, err)
	assert.True(t, exp.After(time.Now()))

	claims, err := tm.ParseAccess(access)
	require.NoError(t, err)
	assert.Equal(t, actor, claims.Actor())

	_, err = tm.ParseAccess(refresh)
	assert.ErrorIs(t, err, ErrInvalidToken)
	claims, err = tm.ParseRefresh(refresh)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
}

func TestParseRejectsForeignTokens(t *testing.T) {
	tm := NewTokenManager("acc", "ref", "broker-ledger", time.Minute, time.Hour)
	other := NewTokenManager("acc", "ref", "someone-else", time.Minute, time.Hour)
	expired := NewTokenManager("acc", "ref", "broker-ledger", -time.Minute, time.Hour)

	tok, _, _, err := other.GeneratePair(models.Actor{UserID: "u1", Role: models.RoleClient})
	require.NoError(t, err)
	_, err = tm.ParseAccess(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)

	tok, _, _, err = expired.GeneratePair(models.Actor{UserID: "u1", Role: models.RoleClient})
	require.NoError(t, err)
	_, err = tm.ParseAccess(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)

	tok, _, _, err = tm.GeneratePair(models.Actor{UserID: "u1", Role: "superuser"})
	require.NoError(t, err)
	_, err = tm.ParseAccess(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = tm.ParseAccess("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
