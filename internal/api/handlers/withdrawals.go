package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/baharkarakas/broker-ledger/internal/api/httpx"
	"github.com/baharkarakas/broker-ledger/internal/models"
	"github.com/baharkarakas/broker-ledger/internal/pricing"
	"github.com/baharkarakas/broker-ledger/internal/services"
)

type createWithdrawalBody struct {
	Amount         string         `json:"amount" validate:"required,money"`
	PaymentMethod  string         `json:"payment_method" validate:"required,max=64"`
	PaymentDetails map[string]any `json:"payment_details"`
}

func (h *Handlers) CreateWithdrawal(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var body createWithdrawalBody
	if !bind(w, r, &body) {
		return
	}
	amount, err := pricing.ParseAmount("amount", body.Amount)
	if err != nil {
		httpx.Fail(w, r, err)
		return
	}
	wr, err := h.Withdrawals.Create(r.Context(), a, services.CreateWithdrawalInput{
		Amount:         amount,
		PaymentMethod:  body.PaymentMethod,
		PaymentDetails: body.PaymentDetails,
	})
	reply(w, r, http.StatusCreated, wr, err)
}

func (h *Handlers) ListWithdrawals(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	list, err := h.Withdrawals.List(r.Context(), a, r.URL.Query().Get("user_id"))
	if list == nil {
		list = []models.WithdrawalRequest{}
	}
	reply(w, r, http.StatusOK, list, err)
}

func (h *Handlers) GetWithdrawal(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	wr, err := h.Withdrawals.Get(r.Context(), a, chi.URLParam(r, "id"))
	reply(w, r, http.StatusOK, wr, err)
}

type decisionBody struct {
	AdminNote *string `json:"admin_note" validate:"omitempty,max=1000"`
}

func (h *Handlers) ApproveWithdrawal(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var body decisionBody
	if !bindOptional(w, r, &body) {
		return
	}
	wr, err := h.Withdrawals.Approve(r.Context(), a, chi.URLParam(r, "id"), body.AdminNote)
	reply(w, r, http.StatusOK, wr, err)
}

func (h *Handlers) RejectWithdrawal(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var body decisionBody
	if !bindOptional(w, r, &body) {
		return
	}
	wr, err := h.Withdrawals.Reject(r.Context(), a, chi.URLParam(r, "id"), body.AdminNote)
	reply(w, r, http.StatusOK, wr, err)
}

func (h *Handlers) ProcessWithdrawal(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	wr, err := h.Withdrawals.Process(r.Context(), a, chi.URLParam(r, "id"))
	reply(w, r, http.StatusOK, wr, err)
}
