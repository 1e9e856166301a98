package services

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/baharkarakas/broker-ledger/internal/apperr"
	"github.com/baharkarakas/broker-ledger/internal/models"
	"github.com/baharkarakas/broker-ledger/internal/notify"
	"github.com/baharkarakas/broker-ledger/internal/pricing"
)

type CreateRequestInput struct {
	CategoryID  string
	Description string
	Budget      *decimal.Decimal
}

type SubmitOfferInput struct {
	RequestID    string
	Price        decimal.Decimal
	DurationDays int
}

// Marketplace drives the request and offer lifecycles.
type Marketplace struct {
	runner
	escrow *Escrow
}

func NewMarketplace(d Deps, escrow *Escrow) *Marketplace {
	return &Marketplace{runner: runner{Deps: d.withDefaults()}, escrow: escrow}
}

func (m *Marketplace) CreateRequest(ctx context.Context, actor models.Actor, in CreateRequestInput) (models.ServiceRequest, error) {
	if err := requireRole(actor, models.RoleClient); err != nil {
		return models.ServiceRequest{}, err
	}
	in.CategoryID = strings.TrimSpace(in.CategoryID)
	in.Description = strings.TrimSpace(in.Description)
	if in.CategoryID == "" || in.Description == "" {
		return models.ServiceRequest{}, apperr.Validation("category and description are required")
	}
	req := models.ServiceRequest{
		ClientID:    actor.UserID,
		CategoryID:  in.CategoryID,
		Description: in.Description,
		Status:      models.RequestOpen,
	}
	if in.Budget != nil {
		if !in.Budget.IsPositive() {
			return models.ServiceRequest{}, apperr.Validation("budget must be greater than zero")
		}
		req.Budget = decimal.NewNullDecimal(*in.Budget)
	}

	err := m.run(ctx, "create_request", actor.UserID, func(u *unit) error {
		var err error
		if req, err = u.r.Requests.Create(u.ctx, req); err != nil {
			return err
		}
		u.moved("request", string(models.RequestOpen))
		return u.audit("request", req.ID, "created", map[string]any{"category_id": req.CategoryID})
	})
	return req, err
}

// GetRequest is visible to its client and arbitrators. Providers see open
// requests they can bid on and any request they have made an offer for.
func (m *Marketplace) GetRequest(ctx context.Context, actor models.Actor, id string) (models.ServiceRequest, error) {
	r := m.Store.Read()
	req, err := r.Requests.GetByID(ctx, id)
	if err != nil {
		return models.ServiceRequest{}, err
	}
	if actor.IsArbitrator() || actor.UserID == req.ClientID {
		return req, nil
	}
	if actor.Role == models.RoleProvider {
		if req.Status == models.RequestOpen {
			return req, nil
		}
		offers, err := r.Offers.ListByRequest(ctx, id)
		if err != nil {
			return models.ServiceRequest{}, err
		}
		for _, o := range offers {
			if o.ProviderID == actor.UserID {
				return req, nil
			}
		}
	}
	return models.ServiceRequest{}, apperr.Unauthorized("user %s cannot read request %s", actor.UserID, id)
}

func (m *Marketplace) SubmitOffer(ctx context.Context, actor models.Actor, in SubmitOfferInput) (models.Offer, error) {
	if err := requireRole(actor, models.RoleProvider); err != nil {
		return models.Offer{}, err
	}
	if !in.Price.IsPositive() || !in.Price.Equal(in.Price.Round(2)) {
		return models.Offer{}, apperr.Validation("price must be a positive amount with at most two decimals")
	}
	if in.DurationDays < 0 {
		return models.Offer{}, apperr.Validation("duration cannot be negative")
	}

	var out models.Offer
	err := m.run(ctx, "submit_offer", actor.UserID, func(u *unit) error {
		req, err := u.r.Requests.GetForUpdate(u.ctx, in.RequestID)
		if err != nil {
			return err
		}
		if req.Status != models.RequestOpen {
			return apperr.InvalidState("request %s is %s and no longer takes offers", req.ID, req.Status)
		}
		if req.ClientID == actor.UserID {
			return apperr.Unauthorized("user %s cannot bid on their own request", actor.UserID)
		}
		out, err = u.r.Offers.Create(u.ctx, models.Offer{
			RequestID:     req.ID,
			ProviderID:    actor.UserID,
			ProposedPrice: in.Price,
			DurationDays:  in.DurationDays,
			Status:        models.OfferPending,
		})
		if err != nil {
			return err
		}
		u.moved("offer", string(models.OfferPending))
		return u.audit("offer", out.ID, "created", map[string]any{"proposed_price": in.Price.StringFixed(2)})
	})
	return out, err
}

// ListOffers shows the request owner and arbitrators every offer; a provider
// sees only their own.
func (m *Marketplace) ListOffers(ctx context.Context, actor models.Actor, requestID string) ([]models.Offer, error) {
	r := m.Store.Read()
	req, err := r.Requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	offers, err := r.Offers.ListByRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if actor.IsArbitrator() || actor.UserID == req.ClientID {
		return offers, nil
	}
	var own []models.Offer
	for _, o := range offers {
		if o.ProviderID == actor.UserID {
			own = append(own, o)
		}
	}
	return own, nil
}

func (m *Marketplace) margin(p *decimal.Decimal) decimal.Decimal {
	if p == nil {
		return m.DefaultMargin
	}
	return *p
}

// AdjustOfferPrice sets the client-facing price of one pending offer.
func (m *Marketplace) AdjustOfferPrice(ctx context.Context, actor models.Actor, offerID string, marginPercent *decimal.Decimal) (models.Offer, error) {
	if err := requireArbitrator(actor); err != nil {
		return models.Offer{}, err
	}
	margin := m.margin(marginPercent)

	var out models.Offer
	err := m.run(ctx, "adjust_offer_price", actor.UserID, func(u *unit) error {
		o, err := u.r.Offers.GetByID(u.ctx, offerID)
		if err != nil {
			return err
		}
		req, err := u.r.Requests.GetForUpdate(u.ctx, o.RequestID)
		if err != nil {
			return err
		}
		if req.Status != models.RequestOpen || o.Status != models.OfferPending {
			return apperr.InvalidState("offer %s is %s on a %s request", o.ID, o.Status, req.Status)
		}
		o.FinalPrice = decimal.NewNullDecimal(pricing.FinalPrice(o.ProposedPrice, margin))
		if err := u.r.Offers.Update(u.ctx, o); err != nil {
			return err
		}
		out = o
		return u.audit("offer", o.ID, "price_adjusted", map[string]any{
			"margin_percent": pricing.ClampMargin(margin).String(),
			"final_price":    o.FinalPrice.Decimal.StringFixed(2),
		})
	})
	return out, err
}

// ApplyMargin prices every pending offer of an open request with one margin.
func (m *Marketplace) ApplyMargin(ctx context.Context, actor models.Actor, requestID string, marginPercent *decimal.Decimal) ([]models.Offer, error) {
	if err := requireArbitrator(actor); err != nil {
		return nil, err
	}
	margin := m.margin(marginPercent)

	var out []models.Offer
	err := m.run(ctx, "apply_margin", actor.UserID, func(u *unit) error {
		req, err := u.r.Requests.GetForUpdate(u.ctx, requestID)
		if err != nil {
			return err
		}
		if req.Status != models.RequestOpen {
			return apperr.InvalidState("request %s is %s", req.ID, req.Status)
		}
		offers, err := u.r.Offers.ListByRequest(u.ctx, requestID)
		if err != nil {
			return err
		}
		var pending []models.Offer
		for _, o := range offers {
			if o.Status == models.OfferPending {
				pending = append(pending, o)
			}
		}
		out = pricing.ApplyToOffers(pending, margin)
		for _, o := range out {
			if err := u.r.Offers.Update(u.ctx, o); err != nil {
				return err
			}
		}
		return u.audit("request", req.ID, "margin_applied", map[string]any{
			"margin_percent": pricing.ClampMargin(margin).String(),
			"offers":         len(out),
		})
	})
	return out, err
}

// AcceptOffer accepts one pending offer, rejects its pending siblings and
// holds the offer price in escrow, all in one unit of work.
func (m *Marketplace) AcceptOffer(ctx context.Context, actor models.Actor, offerID string) (models.Offer, error) {
	var out models.Offer
	err := m.run(ctx, "accept_offer", actor.UserID, func(u *unit) error {
		o, err := u.r.Offers.GetByID(u.ctx, offerID)
		if err != nil {
			return err
		}
		req, err := u.r.Requests.GetForUpdate(u.ctx, o.RequestID)
		if err != nil {
			return err
		}
		if req.ClientID != actor.UserID {
			return apperr.Unauthorized("user %s does not own request %s", actor.UserID, req.ID)
		}
		if req.Status != models.RequestOpen {
			return apperr.InvalidState("request %s is %s", req.ID, req.Status)
		}
		// Re-read under the request lock.
		if o, err = u.r.Offers.GetByID(u.ctx, offerID); err != nil {
			return err
		}
		if o.Status != models.OfferPending {
			return apperr.InvalidState("offer %s is %s", o.ID, o.Status)
		}

		siblings, err := u.r.Offers.ListByRequest(u.ctx, req.ID)
		if err != nil {
			return err
		}
		for _, s := range siblings {
			if s.ID == o.ID || s.Status != models.OfferPending {
				continue
			}
			if err := m.setOffer(u, s, models.OfferRejected); err != nil {
				return err
			}
		}
		if err := m.setOffer(u, o, models.OfferAccepted); err != nil {
			return err
		}
		o.Status = models.OfferAccepted

		req, _, err = m.escrow.hold(u, req, o.Price(), strPtr(o.ID))
		if err != nil {
			return err
		}
		u.notify(o.ProviderID, notify.RequestInProgress, "request", req.ID, "work on request can start")
		out = o
		return nil
	})
	return out, err
}

func (m *Marketplace) RejectOffer(ctx context.Context, actor models.Actor, offerID string) (models.Offer, error) {
	var out models.Offer
	err := m.run(ctx, "reject_offer", actor.UserID, func(u *unit) error {
		o, err := u.r.Offers.GetByID(u.ctx, offerID)
		if err != nil {
			return err
		}
		req, err := u.r.Requests.GetForUpdate(u.ctx, o.RequestID)
		if err != nil {
			return err
		}
		if req.ClientID != actor.UserID && !actor.IsArbitrator() {
			return apperr.Unauthorized("user %s does not own request %s", actor.UserID, req.ID)
		}
		if o, err = u.r.Offers.GetByID(u.ctx, offerID); err != nil {
			return err
		}
		if o.Status != models.OfferPending {
			return apperr.InvalidState("offer %s is %s", o.ID, o.Status)
		}
		if err := m.setOffer(u, o, models.OfferRejected); err != nil {
			return err
		}
		o.Status = models.OfferRejected
		out = o
		return nil
	})
	return out, err
}

// CancelRequest cancels an open request, rejecting its pending offers. An
// arbitrator may also cancel a started request, refunding the escrow.
func (m *Marketplace) CancelRequest(ctx context.Context, actor models.Actor, requestID string) (models.ServiceRequest, error) {
	var out models.ServiceRequest
	err := m.run(ctx, "cancel_request", actor.UserID, func(u *unit) error {
		req, err := u.r.Requests.GetForUpdate(u.ctx, requestID)
		if err != nil {
			return err
		}
		if req.ClientID != actor.UserID && !actor.IsArbitrator() {
			return apperr.Unauthorized("user %s does not own request %s", actor.UserID, req.ID)
		}

		switch {
		case req.Status == models.RequestOpen:
			offers, err := u.r.Offers.ListByRequest(u.ctx, req.ID)
			if err != nil {
				return err
			}
			for _, o := range offers {
				if o.Status == models.OfferPending {
					if err := m.setOffer(u, o, models.OfferRejected); err != nil {
						return err
					}
				}
			}
			if err := m.escrow.moveRequest(u, &req, models.RequestCanceled); err != nil {
				return err
			}
			out = req
			return nil
		case req.Status == models.RequestInProgress && actor.IsArbitrator():
			out, err = m.escrow.refund(u, req)
			return err
		default:
			return apperr.InvalidState("request %s is %s and cannot be canceled", req.ID, req.Status)
		}
	})
	return out, err
}

// ConfirmCompletion is the client's sign-off; it releases escrow to the
// accepted provider.
func (m *Marketplace) ConfirmCompletion(ctx context.Context, actor models.Actor, requestID string) (models.ServiceRequest, error) {
	var out models.ServiceRequest
	err := m.run(ctx, "confirm_completion", actor.UserID, func(u *unit) error {
		req, err := u.r.Requests.GetForUpdate(u.ctx, requestID)
		if err != nil {
			return err
		}
		if req.ClientID != actor.UserID {
			return apperr.Unauthorized("user %s does not own request %s", actor.UserID, req.ID)
		}
		if req.Status != models.RequestInProgress {
			return apperr.InvalidState("request %s is %s", req.ID, req.Status)
		}
		offer, err := m.escrow.acceptedOffer(u, req.ID)
		if err != nil {
			return err
		}
		if out, err = m.escrow.release(u, req, offer.ProviderID); err != nil {
			return err
		}
		u.notify(offer.ProviderID, notify.RequestCompleted, "request", req.ID, "client confirmed completion")
		return nil
	})
	return out, err
}

func (m *Marketplace) setOffer(u *unit, o models.Offer, to models.OfferStatus) error {
	from := o.Status
	o.Status = to
	if err := u.r.Offers.Update(u.ctx, o); err != nil {
		return err
	}
	u.moved("offer", string(to))
	kind := notify.OfferRejected
	if to == models.OfferAccepted {
		kind = notify.OfferAccepted
	}
	u.notify(o.ProviderID, kind, "offer", o.ID, "offer was "+string(to))
	return u.audit("offer", o.ID, "status_change", map[string]any{"from": from, "to": to})
}
