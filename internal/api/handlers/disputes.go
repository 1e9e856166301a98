package handlers

import (
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/go-chi/chi/v5"

	"github.com/baharkarakas/broker-ledger/internal/api/httpx"
	"github.com/baharkarakas/broker-ledger/internal/apperr"
	"github.com/baharkarakas/broker-ledger/internal/models"
	"github.com/baharkarakas/broker-ledger/internal/services"
)

type openDisputeBody struct {
	Reason string `json:"reason" validate:"required,max=4000"`
}

func (h *Handlers) OpenDispute(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var body openDisputeBody
	if !bind(w, r, &body) {
		return
	}
	d, err := h.Disputes.Open(r.Context(), a, chi.URLParam(r, "id"), body.Reason)
	reply(w, r, http.StatusCreated, d, err)
}

func (h *Handlers) GetDispute(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	d, err := h.Disputes.Get(r.Context(), a, chi.URLParam(r, "id"))
	reply(w, r, http.StatusOK, d, err)
}

type replyBody struct {
	Content     string   `json:"content" validate:"required,max=4000"`
	Attachments []string `json:"attachments" validate:"max=10,dive,url"`
}

func (h *Handlers) AddDisputeReply(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var body replyBody
	if !bind(w, r, &body) {
		return
	}
	rep, err := h.Disputes.AddReply(r.Context(), a, chi.URLParam(r, "id"), body.Content, body.Attachments)
	reply(w, r, http.StatusCreated, rep, err)
}

func (h *Handlers) CancelDispute(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	d, err := h.Disputes.Cancel(r.Context(), a, chi.URLParam(r, "id"))
	reply(w, r, http.StatusOK, d, err)
}

func (h *Handlers) ReviewDispute(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	d, err := h.Disputes.StartReview(r.Context(), a, chi.URLParam(r, "id"))
	reply(w, r, http.StatusOK, d, err)
}

type resolveBody struct {
	Outcome       string  `json:"outcome" validate:"required,oneof=resolved_client resolved_provider resolved_partial canceled"`
	Resolution    string  `json:"resolution" validate:"max=4000"`
	RefundAmount  *string `json:"refund_amount"`
	RefundPercent *string `json:"refund_percent" validate:"omitempty,percent"`
}

func (h *Handlers) ResolveDispute(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var body resolveBody
	if !bind(w, r, &body) {
		return
	}
	in := services.ResolveInput{
		DisputeID:  chi.URLParam(r, "id"),
		Outcome:    models.DisputeStatus(body.Outcome),
		Resolution: body.Resolution,
	}
	var err error
	if in.RefundAmount, err = optionalRefund(body.RefundAmount); err != nil {
		httpx.Fail(w, r, err)
		return
	}
	if in.RefundPercent, err = optionalPercent("refund_percent", body.RefundPercent); err != nil {
		httpx.Fail(w, r, err)
		return
	}
	d, err := h.Disputes.Resolve(r.Context(), a, in)
	reply(w, r, http.StatusOK, d, err)
}

// optionalRefund parses a refund amount. Zero is a valid refund.
func optionalRefund(raw *string) (*decimal.Decimal, error) {
	if raw == nil {
		return nil, nil
	}
	d, err := decimal.NewFromString(strings.TrimSpace(*raw))
	if err != nil || d.IsNegative() || !d.Equal(d.Round(2)) {
		return nil, apperr.Validation("refund_amount: must be a non-negative amount with at most two decimals")
	}
	return &d, nil
}
