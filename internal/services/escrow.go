package services

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/baharkarakas/broker-ledger/internal/apperr"
	"github.com/baharkarakas/broker-ledger/internal/models"
	"github.com/baharkarakas/broker-ledger/internal/notify"
)

// Escrow moves request funds through hold, release and refund. Every
// operation locks the request row before touching the ledger.
type Escrow struct {
	runner
	ledger *Ledger
}

func NewEscrow(d Deps, ledger *Ledger) *Escrow {
	return &Escrow{runner: runner{Deps: d.withDefaults()}, ledger: ledger}
}

func (e *Escrow) Hold(ctx context.Context, requestID string, amount decimal.Decimal) (models.ServiceRequest, error) {
	var out models.ServiceRequest
	err := e.run(ctx, "escrow_hold", "", func(u *unit) error {
		req, err := u.r.Requests.GetForUpdate(u.ctx, requestID)
		if err != nil {
			return err
		}
		out, _, err = e.hold(u, req, amount, nil)
		return err
	})
	return out, err
}

func (e *Escrow) Release(ctx context.Context, requestID, providerID string) (models.ServiceRequest, error) {
	var out models.ServiceRequest
	err := e.run(ctx, "escrow_release", "", func(u *unit) error {
		req, err := u.r.Requests.GetForUpdate(u.ctx, requestID)
		if err != nil {
			return err
		}
		if err := e.undisputed(u, req); err != nil {
			return err
		}
		out, err = e.release(u, req, providerID)
		return err
	})
	return out, err
}

func (e *Escrow) Refund(ctx context.Context, requestID string) (models.ServiceRequest, error) {
	var out models.ServiceRequest
	err := e.run(ctx, "escrow_refund", "", func(u *unit) error {
		req, err := u.r.Requests.GetForUpdate(u.ctx, requestID)
		if err != nil {
			return err
		}
		if err := e.undisputed(u, req); err != nil {
			return err
		}
		out, err = e.refund(u, req)
		return err
	})
	return out, err
}

// undisputed rejects requests whose escrow belongs to a dispute. Those funds
// move only through dispute resolution.
func (e *Escrow) undisputed(u *unit, req models.ServiceRequest) error {
	if req.Status == models.RequestDisputed {
		return apperr.InvalidState("request %s is disputed, settle it through the dispute", req.ID)
	}
	d, err := u.r.Disputes.ActiveForRequest(u.ctx, req.ID)
	switch {
	case err == nil:
		return apperr.InvalidState("request %s has active dispute %s", req.ID, d.ID)
	case errors.Is(err, apperr.ErrNotFound):
		return nil
	default:
		return err
	}
}

// hold earmarks amount on the client's wallet and starts the request.
func (e *Escrow) hold(u *unit, req models.ServiceRequest, amount decimal.Decimal, offerID *string) (models.ServiceRequest, models.Transaction, error) {
	if !req.Status.CanTransition(models.RequestInProgress) {
		return req, models.Transaction{}, apperr.InvalidState("request %s is %s, cannot hold funds", req.ID, req.Status)
	}
	if req.EscrowAmount.Valid {
		return req, models.Transaction{}, apperr.InvalidState("request %s already holds %s", req.ID, req.EscrowAmount.Decimal.StringFixed(2))
	}
	p := Posting{
		UserID:      req.ClientID,
		Kind:        models.TxnEscrowHold,
		Amount:      amount,
		Status:      models.TxnCompleted,
		RequestID:   strPtr(req.ID),
		OfferID:     offerID,
		Description: "escrow hold for request " + req.ID,
	}
	if err := p.validate(); err != nil {
		return req, models.Transaction{}, err
	}
	tx, err := e.ledger.post(u, p)
	if err != nil {
		return req, models.Transaction{}, err
	}

	req.EscrowAmount = decimal.NewNullDecimal(amount)
	if err := e.moveRequest(u, &req, models.RequestInProgress); err != nil {
		return req, tx, err
	}
	return req, tx, nil
}

// release pays the whole held amount to the accepted provider.
func (e *Escrow) release(u *unit, req models.ServiceRequest, providerID string) (models.ServiceRequest, error) {
	if !req.EscrowAmount.Valid {
		return req, apperr.ErrNothingHeld
	}
	offer, err := e.acceptedOffer(u, req.ID)
	if err != nil {
		return req, err
	}
	if offer.ProviderID != providerID {
		return req, apperr.ErrNoAcceptedOffer
	}
	if !req.Status.CanTransition(models.RequestCompleted) {
		return req, apperr.InvalidState("request %s is %s, cannot release funds", req.ID, req.Status)
	}
	if err := e.payout(u, req, offer, req.EscrowAmount.Decimal, decimal.Zero, nil); err != nil {
		return req, err
	}
	err = e.moveRequest(u, &req, models.RequestCompleted)
	return req, err
}

// refund returns the whole held amount to the client.
func (e *Escrow) refund(u *unit, req models.ServiceRequest) (models.ServiceRequest, error) {
	if !req.EscrowAmount.Valid {
		return req, apperr.ErrNothingHeld
	}
	if !req.Status.CanTransition(models.RequestCanceled) || req.Status == models.RequestOpen {
		return req, apperr.InvalidState("request %s is %s, cannot refund", req.ID, req.Status)
	}
	if err := e.payout(u, req, models.Offer{}, decimal.Zero, req.EscrowAmount.Decimal, nil); err != nil {
		return req, err
	}
	err := e.moveRequest(u, &req, models.RequestCanceled)
	return req, err
}

// payout settles a held amount as a release leg to the provider and a refund
// leg to the client. Zero legs are skipped. A non-nil disputeID books the
// legs as dispute postings.
func (e *Escrow) payout(u *unit, req models.ServiceRequest, offer models.Offer, toProvider, toClient decimal.Decimal, disputeID *string) error {
	releaseKind, refundKind := models.TxnEscrowRelease, models.TxnEscrowRefund
	if disputeID != nil {
		releaseKind, refundKind = models.TxnDisputeRelease, models.TxnDisputeRefund
	}

	if toClient.IsPositive() {
		_, err := e.ledger.post(u, Posting{
			UserID:      req.ClientID,
			Kind:        refundKind,
			Amount:      toClient,
			Status:      models.TxnCompleted,
			RequestID:   strPtr(req.ID),
			DisputeID:   disputeID,
			Description: "escrow refund for request " + req.ID,
		})
		if err != nil {
			return err
		}
	}
	if toProvider.IsPositive() {
		_, err := e.ledger.post(u, Posting{
			UserID:             offer.ProviderID,
			CounterpartyUserID: req.ClientID,
			Kind:               releaseKind,
			Amount:             toProvider,
			Status:             models.TxnCompleted,
			RequestID:          strPtr(req.ID),
			OfferID:            strPtr(offer.ID),
			DisputeID:          disputeID,
			Description:        "escrow release for request " + req.ID,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (e *Escrow) acceptedOffer(u *unit, requestID string) (models.Offer, error) {
	offers, err := u.r.Offers.ListByRequest(u.ctx, requestID)
	if err != nil {
		return models.Offer{}, err
	}
	var (
		found models.Offer
		n     int
	)
	for _, o := range offers {
		if o.Status == models.OfferAccepted {
			found = o
			n++
		}
	}
	if n != 1 {
		return models.Offer{}, apperr.ErrNoAcceptedOffer
	}
	return found, nil
}

var requestEvents = map[models.RequestStatus]notify.Kind{
	models.RequestInProgress: notify.RequestInProgress,
	models.RequestCompleted:  notify.RequestCompleted,
	models.RequestCanceled:   notify.RequestCanceled,
	models.RequestDisputed:   notify.RequestDisputed,
}

// moveRequest applies a lifecycle transition and persists the request.
func (e *Escrow) moveRequest(u *unit, req *models.ServiceRequest, to models.RequestStatus) error {
	from := req.Status
	if !from.CanTransition(to) {
		return apperr.InvalidState("request %s cannot move from %s to %s", req.ID, from, to)
	}
	req.Status = to
	if err := u.r.Requests.Update(u.ctx, *req); err != nil {
		return err
	}
	u.moved("request", string(to))
	if kind, ok := requestEvents[to]; ok {
		u.notify(req.ClientID, kind, "request", req.ID, "request is now "+string(to))
	}
	details := map[string]any{"from": from, "to": to}
	if req.EscrowAmount.Valid {
		details["escrow_amount"] = req.EscrowAmount.Decimal.StringFixed(2)
	}
	return u.audit("request", req.ID, "status_change", details)
}
