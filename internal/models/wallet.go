package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/baharkarakas/broker-ledger/internal/apperr"
)

// Wallet is the single-currency custodial account of one user. Balance is
// total custody; AvailableBalance excludes amounts held in escrow.
type Wallet struct {
	ID               string          `json:"id"`
	UserID           string          `json:"user_id"`
	Balance          decimal.Decimal `json:"balance"`
	AvailableBalance decimal.Decimal `json:"available_balance"`
	Currency         string          `json:"currency"`
	IsActive         bool            `json:"is_active"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// Held is the amount currently earmarked by escrow holds.
func (w *Wallet) Held() decimal.Decimal {
	return w.Balance.Sub(w.AvailableBalance)
}

// Check verifies 0 <= available <= balance.
func (w *Wallet) Check() error {
	if w.AvailableBalance.IsNegative() {
		return fmt.Errorf("%w: wallet %s available balance %s", apperr.ErrInsufficientFunds, w.UserID, w.AvailableBalance)
	}
	if w.AvailableBalance.GreaterThan(w.Balance) {
		return apperr.InvalidState("wallet %s available %s exceeds balance %s", w.UserID, w.AvailableBalance, w.Balance)
	}
	return nil
}

func (w *Wallet) ensureActive() error {
	if !w.IsActive {
		return apperr.InvalidState("wallet %s is inactive", w.UserID)
	}
	return nil
}

func (w *Wallet) touch() { w.UpdatedAt = time.Now().UTC() }

// Credit adds to both balance levels (deposit, release receiver side).
func (w *Wallet) Credit(amount decimal.Decimal) error {
	if err := w.ensureActive(); err != nil {
		return err
	}
	w.Balance = w.Balance.Add(amount)
	w.AvailableBalance = w.AvailableBalance.Add(amount)
	w.touch()
	return nil
}

// Debit removes spendable funds at both levels (withdrawal, platform fee).
func (w *Wallet) Debit(amount decimal.Decimal) error {
	if err := w.ensureActive(); err != nil {
		return err
	}
	if w.AvailableBalance.LessThan(amount) {
		return w.insufficient(amount)
	}
	w.Balance = w.Balance.Sub(amount)
	w.AvailableBalance = w.AvailableBalance.Sub(amount)
	w.touch()
	return nil
}

// Hold moves amount out of available funds; the total balance is unchanged.
func (w *Wallet) Hold(amount decimal.Decimal) error {
	if err := w.ensureActive(); err != nil {
		return err
	}
	if w.AvailableBalance.LessThan(amount) {
		return w.insufficient(amount)
	}
	w.AvailableBalance = w.AvailableBalance.Sub(amount)
	w.touch()
	return nil
}

// ReturnHeld reverses a hold: available grows back, balance is unchanged.
func (w *Wallet) ReturnHeld(amount decimal.Decimal) error {
	if held := w.Held(); held.LessThan(amount) {
		return apperr.InvalidState("wallet %s holds %s, cannot return %s", w.UserID, held, amount)
	}
	w.AvailableBalance = w.AvailableBalance.Add(amount)
	w.touch()
	return nil
}

// SettleHeld pays a held amount away: balance drops, available was already
// reduced by the hold and is left alone.
func (w *Wallet) SettleHeld(amount decimal.Decimal) error {
	if held := w.Held(); held.LessThan(amount) {
		return apperr.InvalidState("wallet %s holds %s, cannot settle %s", w.UserID, held, amount)
	}
	w.Balance = w.Balance.Sub(amount)
	w.touch()
	return nil
}

func (w *Wallet) insufficient(amount decimal.Decimal) error {
	return fmt.Errorf("%w: wallet %s has %s available, needs %s",
		apperr.ErrInsufficientFunds, w.UserID, w.AvailableBalance.StringFixed(2), amount.StringFixed(2))
}
