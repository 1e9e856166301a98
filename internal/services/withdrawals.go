package services

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/baharkarakas/broker-ledger/internal/apperr"
	"github.com/baharkarakas/broker-ledger/internal/models"
	"github.com/baharkarakas/broker-ledger/internal/notify"
)

type CreateWithdrawalInput struct {
	Amount         decimal.Decimal
	PaymentMethod  string
	PaymentDetails map[string]any
}

// Withdrawals runs the cash-out lifecycle. Pending and approved requests
// reserve their amount against the wallet's available balance.
type Withdrawals struct {
	runner
	ledger *Ledger
}

func NewWithdrawals(d Deps, ledger *Ledger) *Withdrawals {
	return &Withdrawals{runner: runner{Deps: d.withDefaults()}, ledger: ledger}
}

func (s *Withdrawals) Create(ctx context.Context, actor models.Actor, in CreateWithdrawalInput) (models.WithdrawalRequest, error) {
	if !in.Amount.IsPositive() || !in.Amount.Equal(in.Amount.Round(2)) {
		return models.WithdrawalRequest{}, apperr.Validation("amount must be a positive amount with at most two decimals")
	}
	in.PaymentMethod = strings.TrimSpace(in.PaymentMethod)
	if in.PaymentMethod == "" {
		return models.WithdrawalRequest{}, apperr.Validation("payment method is required")
	}

	var out models.WithdrawalRequest
	err := s.run(ctx, "create_withdrawal", actor.UserID, func(u *unit) error {
		w, err := u.r.Wallets.GetOrCreateForUpdate(u.ctx, actor.UserID, s.Currency)
		if err != nil {
			return err
		}
		reserved, err := u.r.Withdrawals.Outstanding(u.ctx, actor.UserID)
		if err != nil {
			return err
		}
		if free := w.AvailableBalance.Sub(reserved); free.LessThan(in.Amount) {
			return insufficientFor(w, free, in.Amount)
		}
		out, err = u.r.Withdrawals.Create(u.ctx, models.WithdrawalRequest{
			UserID:         actor.UserID,
			Amount:         in.Amount,
			Status:         models.WithdrawalPending,
			PaymentMethod:  in.PaymentMethod,
			PaymentDetails: in.PaymentDetails,
		})
		if err != nil {
			return err
		}
		u.moved("withdrawal", string(models.WithdrawalPending))
		return u.audit("withdrawal", out.ID, "created", map[string]any{"amount": in.Amount.StringFixed(2)})
	})
	return out, err
}

func (s *Withdrawals) Get(ctx context.Context, actor models.Actor, id string) (models.WithdrawalRequest, error) {
	w, err := s.Store.Read().Withdrawals.GetByID(ctx, id)
	if err != nil {
		return models.WithdrawalRequest{}, err
	}
	if w.UserID != actor.UserID && !actor.IsArbitrator() {
		return models.WithdrawalRequest{}, apperr.Unauthorized("user %s cannot read withdrawal %s", actor.UserID, id)
	}
	return w, nil
}

func (s *Withdrawals) List(ctx context.Context, actor models.Actor, userID string) ([]models.WithdrawalRequest, error) {
	if userID == "" {
		userID = actor.UserID
	}
	if userID != actor.UserID && !actor.IsArbitrator() {
		return nil, apperr.Unauthorized("user %s cannot list withdrawals of %s", actor.UserID, userID)
	}
	return s.Store.Read().Withdrawals.ListByUser(ctx, userID)
}

func (s *Withdrawals) Approve(ctx context.Context, actor models.Actor, id string, note *string) (models.WithdrawalRequest, error) {
	return s.decide(ctx, actor, "approve_withdrawal", id, note, models.WithdrawalApproved)
}

func (s *Withdrawals) Reject(ctx context.Context, actor models.Actor, id string, note *string) (models.WithdrawalRequest, error) {
	return s.decide(ctx, actor, "reject_withdrawal", id, note, models.WithdrawalRejected)
}

func (s *Withdrawals) decide(ctx context.Context, actor models.Actor, op, id string, note *string, to models.WithdrawalStatus) (models.WithdrawalRequest, error) {
	if err := requireArbitrator(actor); err != nil {
		return models.WithdrawalRequest{}, err
	}
	var out models.WithdrawalRequest
	err := s.run(ctx, op, actor.UserID, func(u *unit) error {
		w, err := s.lock(u, id)
		if err != nil {
			return err
		}
		if w.Status != models.WithdrawalPending {
			return apperr.InvalidState("withdrawal %s is %s", w.ID, w.Status)
		}
		if note != nil {
			w.AdminNote = note
		}
		out, err = s.move(u, w, to)
		return err
	})
	return out, err
}

// Process pays out an approved withdrawal: it posts exactly one withdrawal
// transaction and links it to the request.
func (s *Withdrawals) Process(ctx context.Context, actor models.Actor, id string) (models.WithdrawalRequest, error) {
	if err := requireArbitrator(actor); err != nil {
		return models.WithdrawalRequest{}, err
	}
	var out models.WithdrawalRequest
	err := s.run(ctx, "process_withdrawal", actor.UserID, func(u *unit) error {
		w, err := s.lock(u, id)
		if err != nil {
			return err
		}
		if w.Status != models.WithdrawalApproved {
			return apperr.InvalidState("withdrawal %s is %s, processing needs approved", w.ID, w.Status)
		}
		tx, err := s.ledger.post(u, Posting{
			UserID:      w.UserID,
			Kind:        models.TxnWithdrawal,
			Amount:      w.Amount,
			Status:      models.TxnCompleted,
			Description: "withdrawal via " + w.PaymentMethod,
			Metadata:    map[string]any{"withdrawal_id": w.ID},
		})
		if err != nil {
			return err
		}
		w.TransactionID = strPtr(tx.ID)
		out, err = s.move(u, w, models.WithdrawalProcessed)
		return err
	})
	return out, err
}

// lock loads a withdrawal for update and rejects finalized ones.
func (s *Withdrawals) lock(u *unit, id string) (models.WithdrawalRequest, error) {
	w, err := u.r.Withdrawals.GetForUpdate(u.ctx, id)
	if err != nil {
		return models.WithdrawalRequest{}, err
	}
	if w.Status.Final() {
		return models.WithdrawalRequest{}, apperr.ErrAlreadyFinalized
	}
	return w, nil
}

var withdrawalEvents = map[models.WithdrawalStatus]notify.Kind{
	models.WithdrawalApproved:  notify.WithdrawalApproved,
	models.WithdrawalRejected:  notify.WithdrawalRejected,
	models.WithdrawalProcessed: notify.WithdrawalProcessed,
}

func (s *Withdrawals) move(u *unit, w models.WithdrawalRequest, to models.WithdrawalStatus) (models.WithdrawalRequest, error) {
	from := w.Status
	w.Status = to
	if err := u.r.Withdrawals.Update(u.ctx, w); err != nil {
		return w, err
	}
	u.moved("withdrawal", string(to))
	u.notify(w.UserID, withdrawalEvents[to], "withdrawal", w.ID, "withdrawal of "+w.Amount.StringFixed(2)+" "+string(to))
	return w, u.audit("withdrawal", w.ID, "status_change", map[string]any{"from": from, "to": to})
}

func insufficientFor(w models.Wallet, free, amount decimal.Decimal) error {
	return apperr.InsufficientFunds("wallet %s has %s free after reserved withdrawals, needs %s",
		w.UserID, free.StringFixed(2), amount.StringFixed(2))
}
