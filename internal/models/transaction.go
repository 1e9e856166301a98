package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionKind string

const (
	TxnDeposit        TransactionKind = "deposit"
	TxnWithdrawal     TransactionKind = "withdrawal"
	TxnEscrowHold     TransactionKind = "escrow_hold"
	TxnEscrowRelease  TransactionKind = "escrow_release"
	TxnEscrowRefund   TransactionKind = "escrow_refund"
	TxnPlatformFee    TransactionKind = "platform_fee"
	TxnDisputeRelease TransactionKind = "dispute_release"
	TxnDisputeRefund  TransactionKind = "dispute_refund"
)

func (k TransactionKind) Valid() bool {
	switch k {
	case TxnDeposit, TxnWithdrawal, TxnEscrowHold, TxnEscrowRelease,
		TxnEscrowRefund, TxnPlatformFee, TxnDisputeRelease, TxnDisputeRefund:
		return true
	}
	return false
}

// IsRelease reports whether the kind pays a held amount out to a receiver.
// Release postings touch two wallets: the receiver (owner) and the holder
// (counterparty).
func (k TransactionKind) IsRelease() bool {
	return k == TxnEscrowRelease || k == TxnDisputeRelease
}

func ParseTransactionKind(s string) (TransactionKind, error) {
	return parseEnum[TransactionKind]("transaction kind", s)
}

type TransactionStatus string

const (
	TxnPending   TransactionStatus = "pending"
	TxnCompleted TransactionStatus = "completed"
	TxnFailed    TransactionStatus = "failed"
	TxnCanceled  TransactionStatus = "canceled"
)

func (s TransactionStatus) Valid() bool {
	switch s {
	case TxnPending, TxnCompleted, TxnFailed, TxnCanceled:
		return true
	}
	return false
}

func ParseTransactionStatus(s string) (TransactionStatus, error) {
	return parseEnum[TransactionStatus]("transaction status", s)
}

type Transaction struct {
	ID                   string            `json:"id"`
	UserID               string            `json:"user_id"`
	WalletID             string            `json:"wallet_id"`
	CounterpartyUserID   *string           `json:"counterparty_user_id,omitempty"`
	CounterpartyWalletID *string           `json:"counterparty_wallet_id,omitempty"`
	Kind                 TransactionKind   `json:"kind"`
	Amount               decimal.Decimal   `json:"amount"`
	Status               TransactionStatus `json:"status"`
	RequestID            *string           `json:"request_id,omitempty"`
	OfferID              *string           `json:"offer_id,omitempty"`
	DisputeID            *string           `json:"dispute_id,omitempty"`
	Description          string            `json:"description,omitempty"`
	Metadata             map[string]any    `json:"metadata,omitempty"`
	CreatedAt            time.Time         `json:"created_at"`
	UpdatedAt            time.Time         `json:"updated_at"`
}

// TransactionFilter narrows ListTransactions. Zero values mean "any".
type TransactionFilter struct {
	UserID string
	Kind   TransactionKind
	Status TransactionStatus
	From   time.Time
	To     time.Time
	Limit  int
	Offset int
}

const (
	DefaultPageSize = 50
	MaxPageSize     = 200
)

// Normalize clamps paging to sane bounds.
func (f TransactionFilter) Normalize() TransactionFilter {
	if f.Limit <= 0 {
		f.Limit = DefaultPageSize
	}
	if f.Limit > MaxPageSize {
		f.Limit = MaxPageSize
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// Matches is used by stores that filter in memory.
func (f TransactionFilter) Matches(tx Transaction) bool {
	if f.UserID != "" && tx.UserID != f.UserID &&
		(tx.CounterpartyUserID == nil || *tx.CounterpartyUserID != f.UserID) {
		return false
	}
	if f.Kind != "" && tx.Kind != f.Kind {
		return false
	}
	if f.Status != "" && tx.Status != f.Status {
		return false
	}
	if !f.From.IsZero() && tx.CreatedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !tx.CreatedAt.Before(f.To) {
		return false
	}
	return true
}
