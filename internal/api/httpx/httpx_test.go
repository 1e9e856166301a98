package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baharkarakas/broker-ledger/internal/apperr"
)

func TestStatusOf(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, StatusOf(apperr.ErrRequestNotFound))
	assert.Equal(t, http.StatusConflict, StatusOf(apperr.ErrNothingHeld))
	assert.Equal(t, http.StatusUnprocessableEntity, StatusOf(apperr.ErrInsufficientFunds))
	assert.Equal(t, http.StatusForbidden, StatusOf(apperr.Unauthorized("x")))
	assert.Equal(t, http.StatusConflict, StatusOf(apperr.ErrAlreadyFinalized))
	assert.Equal(t, http.StatusBadRequest, StatusOf(apperr.Validation("x")))
	assert.Equal(t, http.StatusInternalServerError, StatusOf(errors.New("db down")))
}

func TestFailHidesInternalErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	Fail(rec, httptest.NewRequest(http.MethodGet, "/x", nil), errors.New("pq: password leaked"))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var body APIError
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "internal", body.Code)
	assert.NotContains(t, body.Error, "password")
}

func TestDecode(t *testing.T) {
	var v struct {
		Amount string `json:"amount"`
	}
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"amount":"1.00"}`))
	require.NoError(t, Decode(r, &v))
	assert.Equal(t, "1.00", v.Amount)

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"amount":"1.00","extra":1}`))
	assert.ErrorIs(t, Decode(r, &v), apperr.ErrValidation)

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(``))
	assert.ErrorIs(t, Decode(r, &v), apperr.ErrValidation)
}
