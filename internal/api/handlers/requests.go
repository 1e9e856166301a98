package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/baharkarakas/broker-ledger/internal/api/httpx"
	"github.com/baharkarakas/broker-ledger/internal/models"
	"github.com/baharkarakas/broker-ledger/internal/pricing"
	"github.com/baharkarakas/broker-ledger/internal/services"
)

type createRequestBody struct {
	CategoryID  string  `json:"category_id" validate:"required"`
	Description string  `json:"description" validate:"required,max=4000"`
	Budget      *string `json:"budget" validate:"omitempty,money"`
}

func (h *Handlers) CreateRequest(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var body createRequestBody
	if !bind(w, r, &body) {
		return
	}
	budget, err := optionalAmount("budget", body.Budget)
	if err != nil {
		httpx.Fail(w, r, err)
		return
	}
	req, err := h.Market.CreateRequest(r.Context(), a, services.CreateRequestInput{
		CategoryID:  body.CategoryID,
		Description: body.Description,
		Budget:      budget,
	})
	reply(w, r, http.StatusCreated, req, err)
}

func (h *Handlers) GetRequest(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	req, err := h.Market.GetRequest(r.Context(), a, chi.URLParam(r, "id"))
	reply(w, r, http.StatusOK, req, err)
}

func (h *Handlers) CancelRequest(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	req, err := h.Market.CancelRequest(r.Context(), a, chi.URLParam(r, "id"))
	reply(w, r, http.StatusOK, req, err)
}

func (h *Handlers) CompleteRequest(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	req, err := h.Market.ConfirmCompletion(r.Context(), a, chi.URLParam(r, "id"))
	reply(w, r, http.StatusOK, req, err)
}

type submitOfferBody struct {
	Price        string `json:"price" validate:"required,money"`
	DurationDays int    `json:"duration_days" validate:"min=1,max=3650"`
}

func (h *Handlers) SubmitOffer(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var body submitOfferBody
	if !bind(w, r, &body) {
		return
	}
	price, err := pricing.ParseAmount("price", body.Price)
	if err != nil {
		httpx.Fail(w, r, err)
		return
	}
	o, err := h.Market.SubmitOffer(r.Context(), a, services.SubmitOfferInput{
		RequestID:    chi.URLParam(r, "id"),
		Price:        price,
		DurationDays: body.DurationDays,
	})
	reply(w, r, http.StatusCreated, o, err)
}

func (h *Handlers) ListOffers(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	offers, err := h.Market.ListOffers(r.Context(), a, chi.URLParam(r, "id"))
	if offers == nil {
		offers = []models.Offer{}
	}
	reply(w, r, http.StatusOK, offers, err)
}

func (h *Handlers) AcceptOffer(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	o, err := h.Market.AcceptOffer(r.Context(), a, chi.URLParam(r, "id"))
	reply(w, r, http.StatusOK, o, err)
}

func (h *Handlers) RejectOffer(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	o, err := h.Market.RejectOffer(r.Context(), a, chi.URLParam(r, "id"))
	reply(w, r, http.StatusOK, o, err)
}

type marginBody struct {
	MarginPercent *string `json:"margin_percent" validate:"omitempty,percent"`
}

// AdjustOfferPrice sets one offer's final price. Without a margin the
// configured default applies.
func (h *Handlers) AdjustOfferPrice(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var body marginBody
	if !bindOptional(w, r, &body) {
		return
	}
	margin, err := optionalPercent("margin_percent", body.MarginPercent)
	if err != nil {
		httpx.Fail(w, r, err)
		return
	}
	o, err := h.Market.AdjustOfferPrice(r.Context(), a, chi.URLParam(r, "id"), margin)
	reply(w, r, http.StatusOK, o, err)
}

func (h *Handlers) ApplyMargin(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var body marginBody
	if !bindOptional(w, r, &body) {
		return
	}
	margin, err := optionalPercent("margin_percent", body.MarginPercent)
	if err != nil {
		httpx.Fail(w, r, err)
		return
	}
	offers, err := h.Market.ApplyMargin(r.Context(), a, chi.URLParam(r, "id"), margin)
	if offers == nil {
		offers = []models.Offer{}
	}
	reply(w, r, http.StatusOK, offers, err)
}
