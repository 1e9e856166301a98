// Package handlers adapts HTTP requests to the marketplace services. Amounts
// travel as decimal strings in both directions.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/baharkarakas/broker-ledger/internal/api/httpx"
	"github.com/baharkarakas/broker-ledger/internal/api/validate"
	"github.com/baharkarakas/broker-ledger/internal/apperr"
	"github.com/baharkarakas/broker-ledger/internal/auth"
	"github.com/baharkarakas/broker-ledger/internal/middleware"
	"github.com/baharkarakas/broker-ledger/internal/models"
	"github.com/baharkarakas/broker-ledger/internal/pricing"
	"github.com/baharkarakas/broker-ledger/internal/services"
)

type Handlers struct {
	Ledger      *services.Ledger
	Market      *services.Marketplace
	Disputes    *services.Disputes
	Withdrawals *services.Withdrawals
	Tokens      *auth.TokenManager
}

// actor returns the caller or writes 401.
func actor(w http.ResponseWriter, r *http.Request) (models.Actor, bool) {
	a, ok := middleware.ActorFrom(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthenticated", "authentication required", nil)
	}
	return a, ok
}

// bind decodes and validates a JSON body into v.
func bind(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := httpx.Decode(r, v); err != nil {
		httpx.Fail(w, r, err)
		return false
	}
	if err := validate.Struct(v); err != nil {
		if errs, ok := err.(validate.Errs); ok {
			httpx.WriteError(w, http.StatusBadRequest, string(apperr.KindValidation), "invalid request body", errs)
			return false
		}
		httpx.Fail(w, r, err)
		return false
	}
	return true
}

// bindOptional is bind for endpoints whose body may be omitted.
func bindOptional(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.ContentLength == 0 {
		return true
	}
	return bind(w, r, v)
}

func optionalPercent(field string, raw *string) (*decimal.Decimal, error) {
	if raw == nil {
		return nil, nil
	}
	d, err := pricing.ParsePercent(field, *raw)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func optionalAmount(field string, raw *string) (*decimal.Decimal, error) {
	if raw == nil {
		return nil, nil
	}
	d, err := pricing.ParseAmount(field, *raw)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func queryInt(r *http.Request, key string) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, apperr.Validation("%s must be a non-negative integer", key)
	}
	return n, nil
}

// reply writes v, or the error's status when err is set.
func reply(w http.ResponseWriter, r *http.Request, status int, v any, err error) {
	if err != nil {
		httpx.Fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, status, v)
}
