package services

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/baharkarakas/broker-ledger/internal/models"
	"github.com/baharkarakas/broker-ledger/internal/notify"
	"github.com/baharkarakas/broker-ledger/internal/repository/memory"
)

var (
	client   = models.Actor{UserID: "client-1", Role: models.RoleClient}
	provider = models.Actor{UserID: "provider-1", Role: models.RoleProvider}
	rival    = models.Actor{UserID: "provider-2", Role: models.RoleProvider}
	admin    = models.Actor{UserID: "admin-1", Role: models.RoleAdmin}
)

type recorder struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *recorder) Notify(_ context.Context, events ...notify.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, events...)
}

func (r *recorder) kinds() []notify.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]notify.Kind, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Kind)
	}
	return out
}

type env struct {
	store       *memory.Store
	events      *recorder
	ledger      *Ledger
	escrow      *Escrow
	market      *Marketplace
	disputes    *Disputes
	withdrawals *Withdrawals
}

func newEnv(t *testing.T) *env {
	t.Helper()
	store := memory.New()
	rec := &recorder{}
	d := Deps{
		Store:         store,
		Notifier:      rec,
		Log:           slog.New(slog.NewTextHandler(io.Discard, nil)),
		Currency:      "USD",
		DefaultMargin: decimal.NewFromInt(10),
	}
	ledger := NewLedger(d)
	escrow := NewEscrow(d, ledger)
	return &env{
		store:       store,
		events:      rec,
		ledger:      ledger,
		escrow:      escrow,
		market:      NewMarketplace(d, escrow),
		disputes:    NewDisputes(d, escrow),
		withdrawals: NewWithdrawals(d, ledger),
	}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func (e *env) deposit(t *testing.T, userID, amount string) {
	t.Helper()
	_, err := e.ledger.RecordTransaction(context.Background(), admin, Posting{
		UserID: userID,
		Kind:   models.TxnDeposit,
		Amount: dec(amount),
	}, "")
	require.NoError(t, err)
}

func (e *env) wallet(t *testing.T, userID string) models.Wallet {
	t.Helper()
	w, err := e.ledger.GetOrCreateWallet(context.Background(), userID)
	require.NoError(t, err)
	return w
}

func (e *env) requireBalances(t *testing.T, userID, balance, available string) {
	t.Helper()
	w := e.wallet(t, userID)
	require.Truef(t, w.Balance.Equal(dec(balance)), "%s balance = %s, want %s", userID, w.Balance, balance)
	require.Truef(t, w.AvailableBalance.Equal(dec(available)), "%s available = %s, want %s", userID, w.AvailableBalance, available)
}

// startedRequest returns a request of client with an accepted offer of price
// from provider, so price is held in escrow.
func (e *env) startedRequest(t *testing.T, price string) (models.ServiceRequest, models.Offer) {
	t.Helper()
	ctx := context.Background()
	req, err := e.market.CreateRequest(ctx, client, CreateRequestInput{CategoryID: "plumbing", Description: "fix the sink"})
	require.NoError(t, err)
	o, err := e.market.SubmitOffer(ctx, provider, SubmitOfferInput{RequestID: req.ID, Price: dec(price), DurationDays: 3})
	require.NoError(t, err)
	o, err = e.market.AcceptOffer(ctx, client, o.ID)
	require.NoError(t, err)
	req, err = e.market.GetRequest(ctx, client, req.ID)
	require.NoError(t, err)
	return req, o
}
