package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/baharkarakas/broker-ledger/internal/api/httpx"
	"github.com/baharkarakas/broker-ledger/internal/apperr"
	"github.com/baharkarakas/broker-ledger/internal/models"
	"github.com/baharkarakas/broker-ledger/internal/pricing"
	"github.com/baharkarakas/broker-ledger/internal/services"
)

// GetWallet returns the caller's wallet. Arbitrators may pass ?user_id=.
func (h *Handlers) GetWallet(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	uid := a.UserID
	if q := r.URL.Query().Get("user_id"); q != "" && q != a.UserID {
		if !a.IsArbitrator() {
			httpx.Fail(w, r, apperr.Unauthorized("user %s cannot read wallet of %s", a.UserID, q))
			return
		}
		uid = q
	}
	wallet, err := h.Ledger.GetOrCreateWallet(r.Context(), uid)
	reply(w, r, http.StatusOK, wallet, err)
}

func (h *Handlers) ListTransactions(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	f, err := transactionFilter(r)
	if err != nil {
		httpx.Fail(w, r, err)
		return
	}
	txs, err := h.Ledger.ListTransactions(r.Context(), a, f)
	if txs == nil {
		txs = []models.Transaction{}
	}
	reply(w, r, http.StatusOK, txs, err)
}

func transactionFilter(r *http.Request) (models.TransactionFilter, error) {
	q := r.URL.Query()
	f := models.TransactionFilter{UserID: q.Get("user_id")}
	var err error
	if v := q.Get("kind"); v != "" {
		if f.Kind, err = models.ParseTransactionKind(v); err != nil {
			return f, err
		}
	}
	if v := q.Get("status"); v != "" {
		if f.Status, err = models.ParseTransactionStatus(v); err != nil {
			return f, err
		}
	}
	if f.From, err = queryTime(q.Get("from"), "from"); err != nil {
		return f, err
	}
	if f.To, err = queryTime(q.Get("to"), "to"); err != nil {
		return f, err
	}
	if f.Limit, err = queryInt(r, "limit"); err != nil {
		return f, err
	}
	if f.Offset, err = queryInt(r, "offset"); err != nil {
		return f, err
	}
	return f.Normalize(), nil
}

func queryTime(v, key string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, apperr.Validation("%s must be an RFC 3339 timestamp", key)
	}
	return t, nil
}

func (h *Handlers) GetTransaction(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	tx, err := h.Ledger.GetTransaction(r.Context(), a, chi.URLParam(r, "id"))
	reply(w, r, http.StatusOK, tx, err)
}

type recordTransactionBody struct {
	UserID             string         `json:"user_id" validate:"required"`
	CounterpartyUserID string         `json:"counterparty_user_id"`
	Kind               string         `json:"kind" validate:"required"`
	Amount             string         `json:"amount" validate:"required,money"`
	Status             string         `json:"status" validate:"omitempty,oneof=pending completed"`
	RequestID          *string        `json:"request_id"`
	Description        string         `json:"description" validate:"max=500"`
	Metadata           map[string]any `json:"metadata"`
}

// RecordTransaction is the arbitrator's manual posting. It honors an
// Idempotency-Key header.
func (h *Handlers) RecordTransaction(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var body recordTransactionBody
	if !bind(w, r, &body) {
		return
	}
	kind, err := models.ParseTransactionKind(body.Kind)
	if err != nil {
		httpx.Fail(w, r, err)
		return
	}
	amount, err := pricing.ParseAmount("amount", body.Amount)
	if err != nil {
		httpx.Fail(w, r, err)
		return
	}
	tx, err := h.Ledger.RecordTransaction(r.Context(), a, services.Posting{
		UserID:             body.UserID,
		CounterpartyUserID: body.CounterpartyUserID,
		Kind:               kind,
		Amount:             amount,
		Status:             models.TransactionStatus(body.Status),
		RequestID:          body.RequestID,
		Description:        body.Description,
		Metadata:           body.Metadata,
	}, r.Header.Get("Idempotency-Key"))
	reply(w, r, http.StatusCreated, tx, err)
}

type statusBody struct {
	Status string `json:"status" validate:"required"`
}

func (h *Handlers) SetTransactionStatus(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var body statusBody
	if !bind(w, r, &body) {
		return
	}
	status, err := models.ParseTransactionStatus(body.Status)
	if err != nil {
		httpx.Fail(w, r, err)
		return
	}
	tx, err := h.Ledger.SetTransactionStatus(r.Context(), a, chi.URLParam(r, "id"), status)
	reply(w, r, http.StatusOK, tx, err)
}
