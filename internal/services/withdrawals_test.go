package services

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baharkarakas/broker-ledger/internal/apperr"
	"github.com/baharkarakas/broker-ledger/internal/models"
	"github.com/baharkarakas/broker-ledger/internal/notify"
)

func withdraw(t *testing.T, e *env, actor models.Actor, amount string) (models.WithdrawalRequest, error) {
	t.Helper()
	return e.withdrawals.Create(context.Background(), actor, CreateWithdrawalInput{
		Amount:         dec(amount),
		PaymentMethod:  "bank_transfer",
		PaymentDetails: map[string]any{"iban": "TR00"},
	})
}

func TestWithdrawalLifecycle(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.deposit(t, provider.UserID, "100")

	w, err := withdraw(t, e, provider, "60")
	require.NoError(t, err)
	assert.Equal(t, models.WithdrawalPending, w.Status)
	e.requireBalances(t, provider.UserID, "100", "100")

	_, err = withdraw(t, e, provider, "40.01")
	assert.ErrorIs(t, err, apperr.ErrInsufficientFunds, "pending withdrawals reserve funds")

	_, err = e.withdrawals.Process(ctx, admin, w.ID)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)

	_, err = e.withdrawals.Approve(ctx, provider, w.ID, nil)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
	note := "verified"
	w, err = e.withdrawals.Approve(ctx, admin, w.ID, &note)
	require.NoError(t, err)
	assert.Equal(t, models.WithdrawalApproved, w.Status)
	assert.Equal(t, "verified", *w.AdminNote)

	w, err = e.withdrawals.Process(ctx, admin, w.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WithdrawalProcessed, w.Status)
	require.NotNil(t, w.TransactionID)
	e.requireBalances(t, provider.UserID, "40", "40")

	_, err = e.withdrawals.Process(ctx, admin, w.ID)
	assert.ErrorIs(t, err, apperr.ErrAlreadyFinalized)
	_, err = e.withdrawals.Reject(ctx, admin, w.ID, nil)
	assert.ErrorIs(t, err, apperr.ErrAlreadyFinalized)

	txs, err := e.ledger.ListTransactions(ctx, admin, models.TransactionFilter{Kind: models.TxnWithdrawal})
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, *w.TransactionID, txs[0].ID)
	e.requireBalances(t, provider.UserID, "40", "40")

	kinds := e.events.kinds()
	assert.Contains(t, kinds, notify.WithdrawalApproved)
	assert.Contains(t, kinds, notify.WithdrawalProcessed)
}

func TestRejectWithdrawal(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.deposit(t, provider.UserID, "100")
	w, err := withdraw(t, e, provider, "100")
	require.NoError(t, err)

	w, err = e.withdrawals.Reject(ctx, admin, w.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, models.WithdrawalRejected, w.Status)

	_, err = e.withdrawals.Approve(ctx, admin, w.ID, nil)
	assert.ErrorIs(t, err, apperr.ErrAlreadyFinalized)

	_, err = withdraw(t, e, provider, "100")
	assert.NoError(t, err, "rejected withdrawals release their reservation")
}

func TestWithdrawal_Validation(t *testing.T) {
	e := newEnv(t)
	e.deposit(t, provider.UserID, "100")

	_, err := withdraw(t, e, provider, "0")
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = e.withdrawals.Create(context.Background(), provider, CreateWithdrawalInput{Amount: dec("10")})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = withdraw(t, e, provider, "100.01")
	assert.ErrorIs(t, err, apperr.ErrInsufficientFunds)
}

func TestWithdrawal_ConcurrentRequestsCannotOverdraw(t *testing.T) {
	e := newEnv(t)
	e.deposit(t, provider.UserID, "100")

	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := withdraw(t, e, provider, "30")
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				ok++
			} else {
				assert.ErrorIs(t, err, apperr.ErrInsufficientFunds)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 3, ok)
}

func TestListWithdrawals(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.deposit(t, provider.UserID, "100")
	w, err := withdraw(t, e, provider, "10")
	require.NoError(t, err)

	list, err := e.withdrawals.List(ctx, provider, "")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, w.ID, list[0].ID)

	_, err = e.withdrawals.List(ctx, client, provider.UserID)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
	list, err = e.withdrawals.List(ctx, admin, provider.UserID)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = e.withdrawals.Get(ctx, client, w.ID)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}
