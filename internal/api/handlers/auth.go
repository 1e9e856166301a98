package handlers

import (
	"net/http"
	"time"

	"github.com/baharkarakas/broker-ledger/internal/api/httpx"
)

type refreshBody struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type tokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Refresh trades a valid refresh token for a new pair. Tokens are first
// issued by the identity service that shares the signing secrets.
func (h *Handlers) Refresh(w http.ResponseWriter, r *http.Request) {
	var body refreshBody
	if !bind(w, r, &body) {
		return
	}
	claims, err := h.Tokens.ParseRefresh(body.RefreshToken)
	if err != nil {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthenticated", "invalid refresh token", nil)
		return
	}
	access, refresh, exp, err := h.Tokens.GeneratePair(claims.Actor())
	if err != nil {
		httpx.Fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, tokenPair{AccessToken: access, RefreshToken: refresh, ExpiresAt: exp})
}
