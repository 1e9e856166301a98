package services

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/baharkarakas/broker-ledger/internal/apperr"
	"github.com/baharkarakas/broker-ledger/internal/models"
	"github.com/baharkarakas/broker-ledger/internal/notify"
)

// Posting describes a ledger entry to record.
type Posting struct {
	// UserID owns the entry. For release kinds it is the receiver.
	UserID string
	// CounterpartyUserID is the fund holder debited by release kinds.
	CounterpartyUserID string
	Kind               models.TransactionKind
	Amount             decimal.Decimal
	// Status defaults to completed. Only pending and completed are accepted.
	Status      models.TransactionStatus
	RequestID   *string
	OfferID     *string
	DisputeID   *string
	Description string
	Metadata    map[string]any
}

func (p Posting) validate() error {
	if p.UserID == "" {
		return apperr.Validation("user id is required")
	}
	if !p.Kind.Valid() {
		return apperr.Validation("unknown transaction kind %q", p.Kind)
	}
	if !p.Amount.IsPositive() {
		return apperr.Validation("amount must be greater than zero")
	}
	if !p.Amount.Equal(p.Amount.Round(2)) {
		return apperr.Validation("amount has more than two decimal places")
	}
	switch p.Status {
	case models.TxnPending, models.TxnCompleted:
	default:
		return apperr.Validation("transactions are recorded as pending or completed, not %q", p.Status)
	}
	for field, id := range map[string]*string{"request_id": p.RequestID, "offer_id": p.OfferID, "dispute_id": p.DisputeID} {
		if id == nil {
			continue
		}
		if _, err := uuid.Parse(*id); err != nil {
			return apperr.Validation("%s %q is not a valid id", field, *id)
		}
	}
	if p.Kind.IsRelease() {
		if p.CounterpartyUserID == "" {
			return apperr.Validation("%s needs the holder as counterparty", p.Kind)
		}
		if p.CounterpartyUserID == p.UserID {
			return apperr.Validation("%s receiver and holder must differ", p.Kind)
		}
	}
	return nil
}

// Ledger is the only component that mutates wallet balances.
type Ledger struct {
	runner

	idemMu sync.Mutex
	idem   sync.Map // Idempotency-Key -> txID
}

func NewLedger(d Deps) *Ledger {
	return &Ledger{runner: runner{Deps: d.withDefaults()}}
}

func (l *Ledger) GetOrCreateWallet(ctx context.Context, userID string) (models.Wallet, error) {
	if userID == "" {
		return models.Wallet{}, apperr.Validation("user id is required")
	}
	return l.Store.Read().Wallets.GetOrCreate(ctx, userID, l.Currency)
}

// RecordTransaction appends a ledger entry and, when it is completed, applies
// its balance rule in the same unit of work. A non-empty idempotency key
// returns the transaction first recorded under it.
func (l *Ledger) RecordTransaction(ctx context.Context, actor models.Actor, p Posting, idemKey string) (models.Transaction, error) {
	if err := requireArbitrator(actor); err != nil {
		return models.Transaction{}, err
	}
	if p.Status == "" {
		p.Status = models.TxnCompleted
	}
	if err := p.validate(); err != nil {
		return models.Transaction{}, err
	}

	if idemKey != "" {
		l.idemMu.Lock()
		defer l.idemMu.Unlock()
		if v, ok := l.idem.Load(idemKey); ok {
			return l.Store.Read().Transactions.GetByID(ctx, v.(string))
		}
	}

	var out models.Transaction
	err := l.run(ctx, "record_transaction", actor.UserID, func(u *unit) error {
		var err error
		out, err = l.post(u, p)
		return err
	})
	if err != nil {
		return models.Transaction{}, err
	}
	if idemKey != "" {
		l.idem.Store(idemKey, out.ID)
	}
	return out, nil
}

// SetTransactionStatus finishes a pending transaction. Completing it applies
// its balance rule; failing or canceling it leaves balances untouched.
func (l *Ledger) SetTransactionStatus(ctx context.Context, actor models.Actor, id string, status models.TransactionStatus) (models.Transaction, error) {
	if err := requireArbitrator(actor); err != nil {
		return models.Transaction{}, err
	}
	if !status.Valid() {
		return models.Transaction{}, apperr.Validation("unknown transaction status %q", status)
	}

	var out models.Transaction
	err := l.run(ctx, "set_transaction_status", actor.UserID, func(u *unit) error {
		tx, err := u.r.Transactions.GetForUpdate(u.ctx, id)
		if err != nil {
			return err
		}
		if tx.Status != models.TxnPending || status == models.TxnPending {
			return apperr.InvalidState("transaction %s cannot move from %s to %s", id, tx.Status, status)
		}
		if status == models.TxnCompleted {
			if _, _, err := l.apply(u, tx); err != nil {
				return err
			}
		}
		if err := u.r.Transactions.UpdateStatus(u.ctx, id, status); err != nil {
			return err
		}
		tx.Status = status
		if status == models.TxnCompleted {
			l.completed(u, tx)
		}
		out = tx
		return u.audit("transaction", id, "status_change", map[string]any{"status": status})
	})
	return out, err
}

// ListTransactions returns entries owned by or touching the filter's user,
// newest first. Non-arbitrators only see their own.
func (l *Ledger) ListTransactions(ctx context.Context, actor models.Actor, f models.TransactionFilter) ([]models.Transaction, error) {
	if !actor.IsArbitrator() {
		if f.UserID != "" && f.UserID != actor.UserID {
			return nil, apperr.Unauthorized("user %s cannot list transactions of %s", actor.UserID, f.UserID)
		}
		f.UserID = actor.UserID
	}
	if f.Kind != "" && !f.Kind.Valid() {
		return nil, apperr.Validation("unknown transaction kind %q", f.Kind)
	}
	if f.Status != "" && !f.Status.Valid() {
		return nil, apperr.Validation("unknown transaction status %q", f.Status)
	}
	if !f.From.IsZero() && !f.To.IsZero() && !f.From.Before(f.To) {
		return nil, apperr.Validation("date range is empty")
	}
	return l.Store.Read().Transactions.List(ctx, f)
}

func (l *Ledger) GetTransaction(ctx context.Context, actor models.Actor, id string) (models.Transaction, error) {
	tx, err := l.Store.Read().Transactions.GetByID(ctx, id)
	if err != nil {
		return models.Transaction{}, err
	}
	if actor.IsArbitrator() || tx.UserID == actor.UserID ||
		(tx.CounterpartyUserID != nil && *tx.CounterpartyUserID == actor.UserID) {
		return tx, nil
	}
	return models.Transaction{}, apperr.Unauthorized("user %s cannot read transaction %s", actor.UserID, id)
}

// post records p inside u. Callers have validated p.
func (l *Ledger) post(u *unit, p Posting) (models.Transaction, error) {
	if p.Status == "" {
		p.Status = models.TxnCompleted
	}
	tx := models.Transaction{
		UserID:      p.UserID,
		Kind:        p.Kind,
		Amount:      p.Amount,
		Status:      p.Status,
		RequestID:   p.RequestID,
		OfferID:     p.OfferID,
		DisputeID:   p.DisputeID,
		Description: p.Description,
		Metadata:    p.Metadata,
	}
	if p.CounterpartyUserID != "" {
		tx.CounterpartyUserID = strPtr(p.CounterpartyUserID)
	}

	var (
		owner, holder models.Wallet
		err           error
	)
	if tx.Status == models.TxnCompleted {
		owner, holder, err = l.apply(u, tx)
	} else {
		owner, holder, err = l.lockWallets(u, tx)
	}
	if err != nil {
		return models.Transaction{}, err
	}
	tx.WalletID = owner.ID
	if tx.CounterpartyUserID != nil {
		tx.CounterpartyWalletID = strPtr(holder.ID)
	}

	tx, err = u.r.Transactions.Create(u.ctx, tx)
	if err != nil {
		return models.Transaction{}, err
	}
	if tx.Status == models.TxnCompleted {
		l.completed(u, tx)
	}
	err = u.audit("transaction", tx.ID, "created", map[string]any{
		"kind":   tx.Kind,
		"amount": tx.Amount.StringFixed(2),
		"status": tx.Status,
	})
	return tx, err
}

func (l *Ledger) completed(u *unit, tx models.Transaction) {
	u.posted = append(u.posted, tx)
	u.notify(tx.UserID, notify.TransactionCompleted, "transaction", tx.ID,
		string(tx.Kind)+" of "+tx.Amount.StringFixed(2)+" completed")
	if tx.CounterpartyUserID != nil {
		u.notify(*tx.CounterpartyUserID, notify.TransactionCompleted, "transaction", tx.ID,
			string(tx.Kind)+" of "+tx.Amount.StringFixed(2)+" paid out of escrow")
	}
}

// lockWallets locks the owner wallet and, for release kinds, the holder
// wallet. Wallets are always locked in ascending user id order.
func (l *Ledger) lockWallets(u *unit, tx models.Transaction) (owner, holder models.Wallet, err error) {
	ids := []string{tx.UserID}
	if tx.CounterpartyUserID != nil {
		ids = append(ids, *tx.CounterpartyUserID)
	}
	sort.Strings(ids)

	locked := make(map[string]models.Wallet, len(ids))
	for _, id := range ids {
		w, err := u.r.Wallets.GetOrCreateForUpdate(u.ctx, id, l.Currency)
		if err != nil {
			return models.Wallet{}, models.Wallet{}, err
		}
		locked[id] = w
	}
	owner = locked[tx.UserID]
	if tx.CounterpartyUserID != nil {
		holder = locked[*tx.CounterpartyUserID]
	}
	return owner, holder, nil
}

// apply performs the balance rule of a completed transaction.
func (l *Ledger) apply(u *unit, tx models.Transaction) (owner, holder models.Wallet, err error) {
	owner, holder, err = l.lockWallets(u, tx)
	if err != nil {
		return owner, holder, err
	}

	switch tx.Kind {
	case models.TxnDeposit:
		err = owner.Credit(tx.Amount)
	case models.TxnWithdrawal, models.TxnPlatformFee:
		err = owner.Debit(tx.Amount)
	case models.TxnEscrowHold:
		err = owner.Hold(tx.Amount)
	case models.TxnEscrowRefund, models.TxnDisputeRefund:
		err = owner.ReturnHeld(tx.Amount)
	case models.TxnEscrowRelease, models.TxnDisputeRelease:
		if tx.CounterpartyUserID == nil {
			return owner, holder, apperr.Validation("%s %s has no holder", tx.Kind, tx.ID)
		}
		if err = holder.SettleHeld(tx.Amount); err == nil {
			err = owner.Credit(tx.Amount)
		}
	default:
		err = apperr.Validation("unknown transaction kind %q", tx.Kind)
	}
	if err != nil {
		return owner, holder, err
	}

	if err := l.save(u, owner); err != nil {
		return owner, holder, err
	}
	if tx.CounterpartyUserID != nil {
		if err := l.save(u, holder); err != nil {
			return owner, holder, err
		}
	}
	return owner, holder, nil
}

func (l *Ledger) save(u *unit, w models.Wallet) error {
	if err := w.Check(); err != nil {
		return err
	}
	return u.r.Wallets.Update(u.ctx, w)
}
