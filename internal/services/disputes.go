package services

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/baharkarakas/broker-ledger/internal/apperr"
	"github.com/baharkarakas/broker-ledger/internal/models"
	"github.com/baharkarakas/broker-ledger/internal/notify"
)

type ResolveInput struct {
	DisputeID  string
	Outcome    models.DisputeStatus
	Resolution string
	// Exactly one of RefundAmount and RefundPercent is required for a partial
	// outcome; it is the share of the escrow returned to the client.
	RefundAmount  *decimal.Decimal
	RefundPercent *decimal.Decimal
}

// Disputes runs the dispute lifecycle and settles escrow on resolution.
type Disputes struct {
	runner
	escrow *Escrow
	now    func() time.Time
}

func NewDisputes(d Deps, escrow *Escrow) *Disputes {
	return &Disputes{
		runner: runner{Deps: d.withDefaults()},
		escrow: escrow,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *Disputes) Open(ctx context.Context, actor models.Actor, requestID, reason string) (models.Dispute, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return models.Dispute{}, apperr.Validation("reason is required")
	}

	var out models.Dispute
	err := s.run(ctx, "open_dispute", actor.UserID, func(u *unit) error {
		req, err := u.r.Requests.GetForUpdate(u.ctx, requestID)
		if err != nil {
			return err
		}
		if req.Status != models.RequestInProgress {
			return apperr.InvalidState("request %s is %s, disputes need in_progress", req.ID, req.Status)
		}
		offer, err := s.escrow.acceptedOffer(u, req.ID)
		if err != nil {
			return err
		}
		if actor.UserID != req.ClientID && actor.UserID != offer.ProviderID {
			return apperr.Unauthorized("user %s is not a party to request %s", actor.UserID, req.ID)
		}
		if err := s.escrow.undisputed(u, req); err != nil {
			return err
		}

		out, err = u.r.Disputes.Create(u.ctx, models.Dispute{
			RequestID:  req.ID,
			ClientID:   req.ClientID,
			ProviderID: offer.ProviderID,
			OpenedBy:   actor.UserID,
			Reason:     reason,
			Status:     models.DisputeOpen,
		})
		if err != nil {
			return err
		}
		u.moved("dispute", string(models.DisputeOpen))
		if err := u.audit("dispute", out.ID, "created", map[string]any{"request_id": req.ID}); err != nil {
			return err
		}
		s.notifyParties(u, out, actor.UserID, notify.DisputeOpened, "dispute opened")
		if err := s.escrow.moveRequest(u, &req, models.RequestDisputed); err != nil {
			return err
		}
		u.notify(offer.ProviderID, notify.RequestDisputed, "request", req.ID, "request is now disputed")
		return nil
	})
	return out, err
}

func (s *Disputes) Get(ctx context.Context, actor models.Actor, id string) (models.Dispute, error) {
	d, err := s.Store.Read().Disputes.GetByID(ctx, id)
	if err != nil {
		return models.Dispute{}, err
	}
	if !d.IsParty(actor.UserID) && !actor.IsArbitrator() {
		return models.Dispute{}, apperr.Unauthorized("user %s is not a party to dispute %s", actor.UserID, id)
	}
	return d, nil
}

func (s *Disputes) StartReview(ctx context.Context, actor models.Actor, id string) (models.Dispute, error) {
	if err := requireArbitrator(actor); err != nil {
		return models.Dispute{}, err
	}
	var out models.Dispute
	err := s.run(ctx, "review_dispute", actor.UserID, func(u *unit) error {
		d, err := u.r.Disputes.GetForUpdate(u.ctx, id)
		if err != nil {
			return err
		}
		if d.Status != models.DisputeOpen {
			return apperr.InvalidState("dispute %s is %s, review needs open", d.ID, d.Status)
		}
		if err := s.setStatus(u, &d, models.DisputeInReview); err != nil {
			return err
		}
		s.notifyParties(u, d, "", notify.DisputeInReview, "dispute is under review")
		out = d
		return nil
	})
	return out, err
}

func (s *Disputes) AddReply(ctx context.Context, actor models.Actor, id, content string, attachments []string) (models.DisputeReply, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return models.DisputeReply{}, apperr.Validation("reply content is required")
	}

	var out models.DisputeReply
	err := s.run(ctx, "dispute_reply", actor.UserID, func(u *unit) error {
		d, err := u.r.Disputes.GetForUpdate(u.ctx, id)
		if err != nil {
			return err
		}
		if !d.IsParty(actor.UserID) && !actor.IsArbitrator() {
			return apperr.Unauthorized("user %s is not a party to dispute %s", actor.UserID, id)
		}
		if !d.Status.Active() {
			return apperr.InvalidState("dispute %s is %s and closed to replies", d.ID, d.Status)
		}
		out, err = u.r.Disputes.AddReply(u.ctx, models.DisputeReply{
			DisputeID:   d.ID,
			AuthorID:    actor.UserID,
			Content:     content,
			Attachments: attachments,
		})
		if err != nil {
			return err
		}
		s.notifyParties(u, d, actor.UserID, notify.DisputeReply, "new reply on dispute")
		return nil
	})
	return out, err
}

// Resolve settles an in-review dispute exactly once.
func (s *Disputes) Resolve(ctx context.Context, actor models.Actor, in ResolveInput) (models.Dispute, error) {
	if err := requireArbitrator(actor); err != nil {
		return models.Dispute{}, err
	}
	if !in.Outcome.IsResolution() {
		return models.Dispute{}, apperr.Validation("%q is not a dispute outcome", in.Outcome)
	}
	if in.Outcome == models.DisputeResolvedPartial && (in.RefundAmount == nil) == (in.RefundPercent == nil) {
		return models.Dispute{}, apperr.Validation("partial resolution needs exactly one of refund amount and refund percent")
	}

	var out models.Dispute
	err := s.run(ctx, "resolve_dispute", actor.UserID, func(u *unit) error {
		d, err := u.r.Disputes.GetForUpdate(u.ctx, in.DisputeID)
		if err != nil {
			return err
		}
		if d.Status != models.DisputeInReview {
			return apperr.InvalidState("dispute %s is %s, resolution needs in_review", d.ID, d.Status)
		}
		if in.Outcome == models.DisputeCanceled {
			out, err = s.cancel(u, d)
			return err
		}

		req, err := u.r.Requests.GetForUpdate(u.ctx, d.RequestID)
		if err != nil {
			return err
		}
		if req.Status != models.RequestDisputed {
			return apperr.InvalidState("request %s is %s", req.ID, req.Status)
		}
		if !req.EscrowAmount.Valid {
			return apperr.ErrNothingHeld
		}
		offer, err := s.escrow.acceptedOffer(u, req.ID)
		if err != nil {
			return err
		}

		escrow := req.EscrowAmount.Decimal
		toClient, toProvider, target := decimal.Zero, decimal.Zero, models.RequestCompleted
		switch in.Outcome {
		case models.DisputeResolvedClient:
			toClient, target = escrow, models.RequestCanceled
		case models.DisputeResolvedProvider:
			toProvider = escrow
		case models.DisputeResolvedPartial:
			if toClient, err = splitRefund(escrow, in.RefundAmount, in.RefundPercent); err != nil {
				return err
			}
			toProvider = escrow.Sub(toClient)
			d.RefundAmount = decimal.NewNullDecimal(toClient)
			if in.RefundPercent != nil {
				d.RefundPercent = decimal.NewNullDecimal(*in.RefundPercent)
			}
		}

		if err := s.escrow.payout(u, req, offer, toProvider, toClient, strPtr(d.ID)); err != nil {
			return err
		}
		if err := s.escrow.moveRequest(u, &req, target); err != nil {
			return err
		}

		now := s.now()
		d.Resolution = strings.TrimSpace(in.Resolution)
		d.ResolvedBy = strPtr(actor.UserID)
		d.ResolvedAt = &now
		if err := s.setStatus(u, &d, in.Outcome); err != nil {
			return err
		}
		s.notifyParties(u, d, "", notify.DisputeResolved, "dispute resolved: "+string(in.Outcome))
		out = d
		return nil
	})
	return out, err
}

// Cancel withdraws an active dispute; the request resumes with its escrow
// still held. Only the opener or an arbitrator may cancel.
func (s *Disputes) Cancel(ctx context.Context, actor models.Actor, id string) (models.Dispute, error) {
	var out models.Dispute
	err := s.run(ctx, "cancel_dispute", actor.UserID, func(u *unit) error {
		d, err := u.r.Disputes.GetForUpdate(u.ctx, id)
		if err != nil {
			return err
		}
		if d.OpenedBy != actor.UserID && !actor.IsArbitrator() {
			return apperr.Unauthorized("user %s did not open dispute %s", actor.UserID, id)
		}
		if !d.Status.Active() {
			return apperr.InvalidState("dispute %s is %s", d.ID, d.Status)
		}
		out, err = s.cancel(u, d)
		return err
	})
	return out, err
}

func (s *Disputes) cancel(u *unit, d models.Dispute) (models.Dispute, error) {
	req, err := u.r.Requests.GetForUpdate(u.ctx, d.RequestID)
	if err != nil {
		return d, err
	}
	if req.Status == models.RequestDisputed {
		if err := s.escrow.moveRequest(u, &req, models.RequestInProgress); err != nil {
			return d, err
		}
	}
	if err := s.setStatus(u, &d, models.DisputeCanceled); err != nil {
		return d, err
	}
	s.notifyParties(u, d, u.actorID, notify.DisputeCanceled, "dispute canceled")
	return d, nil
}

func (s *Disputes) setStatus(u *unit, d *models.Dispute, to models.DisputeStatus) error {
	from := d.Status
	d.Status = to
	if err := u.r.Disputes.Update(u.ctx, *d); err != nil {
		return err
	}
	u.moved("dispute", string(to))
	details := map[string]any{"from": from, "to": to}
	if d.RefundAmount.Valid {
		details["refund_amount"] = d.RefundAmount.Decimal.StringFixed(2)
	}
	return u.audit("dispute", d.ID, "status_change", details)
}

// notifyParties tells both parties except skip.
func (s *Disputes) notifyParties(u *unit, d models.Dispute, skip string, kind notify.Kind, summary string) {
	for _, id := range []string{d.ClientID, d.ProviderID} {
		if id != skip {
			u.notify(id, kind, "dispute", d.ID, summary)
		}
	}
}

var hundred = decimal.NewFromInt(100)

// splitRefund returns the client's share of escrow, from either an amount or
// a percentage rounded to cents. The share must lie within [0, escrow].
func splitRefund(escrow decimal.Decimal, amount, percent *decimal.Decimal) (decimal.Decimal, error) {
	var share decimal.Decimal
	if amount != nil {
		share = *amount
		if !share.Equal(share.Round(2)) {
			return decimal.Zero, apperr.Validation("refund amount has more than two decimal places")
		}
	} else {
		if percent.IsNegative() || percent.GreaterThan(hundred) {
			return decimal.Zero, apperr.Validation("refund percent must be between 0 and 100")
		}
		share = escrow.Mul(*percent).Div(hundred).Round(2)
	}
	if share.IsNegative() || share.GreaterThan(escrow) {
		return decimal.Zero, apperr.Validation("refund %s is outside 0..%s", share.StringFixed(2), escrow.StringFixed(2))
	}
	return share, nil
}
