package repository

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/baharkarakas/broker-ledger/internal/models"
)

// Lookups of a missing row return an error wrapping apperr.ErrNotFound.
// The *ForUpdate variants lock the row until the surrounding unit of work
// ends; outside WithTx they behave like plain reads.

type Wallets interface {
	GetOrCreateForUpdate(ctx context.Context, userID, currency string) (models.Wallet, error)
	Get(ctx context.Context, userID string) (models.Wallet, error)
	GetOrCreate(ctx context.Context, userID, currency string) (models.Wallet, error)
	Update(ctx context.Context, w models.Wallet) error
}

type Transactions interface {
	Create(ctx context.Context, tx models.Transaction) (models.Transaction, error)
	GetByID(ctx context.Context, id string) (models.Transaction, error)
	GetForUpdate(ctx context.Context, id string) (models.Transaction, error)
	List(ctx context.Context, f models.TransactionFilter) ([]models.Transaction, error)
	UpdateStatus(ctx context.Context, id string, status models.TransactionStatus) error
}

type Requests interface {
	Create(ctx context.Context, r models.ServiceRequest) (models.ServiceRequest, error)
	GetByID(ctx context.Context, id string) (models.ServiceRequest, error)
	GetForUpdate(ctx context.Context, id string) (models.ServiceRequest, error)
	Update(ctx context.Context, r models.ServiceRequest) error
}

type Offers interface {
	Create(ctx context.Context, o models.Offer) (models.Offer, error)
	GetByID(ctx context.Context, id string) (models.Offer, error)
	ListByRequest(ctx context.Context, requestID string) ([]models.Offer, error)
	Update(ctx context.Context, o models.Offer) error
}

type Disputes interface {
	Create(ctx context.Context, d models.Dispute) (models.Dispute, error)
	GetByID(ctx context.Context, id string) (models.Dispute, error)
	GetForUpdate(ctx context.Context, id string) (models.Dispute, error)
	// ActiveForRequest returns the open or in-review dispute of a request.
	ActiveForRequest(ctx context.Context, requestID string) (models.Dispute, error)
	Update(ctx context.Context, d models.Dispute) error
	AddReply(ctx context.Context, r models.DisputeReply) (models.DisputeReply, error)
	ListReplies(ctx context.Context, disputeID string) ([]models.DisputeReply, error)
}

type Withdrawals interface {
	Create(ctx context.Context, w models.WithdrawalRequest) (models.WithdrawalRequest, error)
	GetByID(ctx context.Context, id string) (models.WithdrawalRequest, error)
	GetForUpdate(ctx context.Context, id string) (models.WithdrawalRequest, error)
	ListByUser(ctx context.Context, userID string) ([]models.WithdrawalRequest, error)
	// Outstanding sums pending and approved withdrawals of a user.
	Outstanding(ctx context.Context, userID string) (decimal.Decimal, error)
	Update(ctx context.Context, w models.WithdrawalRequest) error
}

type AuditLogs interface {
	Create(ctx context.Context, l models.AuditLog) error
}

// Repositories bundles every repository bound to one connection or unit of work.
type Repositories struct {
	Wallets      Wallets
	Transactions Transactions
	Requests     Requests
	Offers       Offers
	Disputes     Disputes
	Withdrawals  Withdrawals
	AuditLogs    AuditLogs
}

// Store hands out repositories. WithTx runs fn atomically: either every write
// made through the repositories it receives is committed, or none is.
type Store interface {
	Read() Repositories
	WithTx(ctx context.Context, fn func(Repositories) error) error
}
