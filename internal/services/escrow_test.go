package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baharkarakas/broker-ledger/internal/apperr"
	"github.com/baharkarakas/broker-ledger/internal/models"
)

func TestScenario_HoldThenRelease(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.deposit(t, client.UserID, "1000")
	e.deposit(t, provider.UserID, "500")

	req, _ := e.startedRequest(t, "280")
	assert.Equal(t, models.RequestInProgress, req.Status)
	assert.True(t, req.EscrowAmount.Decimal.Equal(dec("280")))
	e.requireBalances(t, client.UserID, "1000", "720")

	req, err := e.escrow.Release(ctx, req.ID, provider.UserID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestCompleted, req.Status)
	assert.True(t, req.EscrowAmount.Valid, "escrow amount is kept for audit")

	e.requireBalances(t, client.UserID, "720", "720")
	e.requireBalances(t, provider.UserID, "780", "780")
}

func TestScenario_HoldThenRefund(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.deposit(t, client.UserID, "1000")
	e.deposit(t, provider.UserID, "500")

	req, _ := e.startedRequest(t, "280")
	req, err := e.escrow.Refund(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestCanceled, req.Status)

	e.requireBalances(t, client.UserID, "1000", "1000")
	e.requireBalances(t, provider.UserID, "500", "500")
}

func TestReleaseTouchesBothWallets(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.deposit(t, client.UserID, "300")
	req, _ := e.startedRequest(t, "120.55")

	_, err := e.escrow.Release(ctx, req.ID, provider.UserID)
	require.NoError(t, err)

	txs, err := e.ledger.ListTransactions(ctx, admin, models.TransactionFilter{Kind: models.TxnEscrowRelease})
	require.NoError(t, err)
	require.Len(t, txs, 1)
	tx := txs[0]
	assert.Equal(t, provider.UserID, tx.UserID)
	require.NotNil(t, tx.CounterpartyUserID)
	assert.Equal(t, client.UserID, *tx.CounterpartyUserID)
	assert.Equal(t, e.wallet(t, provider.UserID).ID, tx.WalletID)
	assert.Equal(t, e.wallet(t, client.UserID).ID, *tx.CounterpartyWalletID)

	c, p := e.wallet(t, client.UserID), e.wallet(t, provider.UserID)
	assert.True(t, c.Balance.Add(p.Balance).Equal(dec("300")), "funds are conserved")
}

func TestEscrowFailureModes(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.deposit(t, client.UserID, "100")

	_, err := e.escrow.Release(ctx, "missing", provider.UserID)
	assert.ErrorIs(t, err, apperr.ErrRequestNotFound)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	open, err := e.market.CreateRequest(ctx, client, CreateRequestInput{CategoryID: "c", Description: "d"})
	require.NoError(t, err)
	_, err = e.escrow.Refund(ctx, open.ID)
	assert.ErrorIs(t, err, apperr.ErrNothingHeld)
	_, err = e.escrow.Release(ctx, open.ID, provider.UserID)
	assert.ErrorIs(t, err, apperr.ErrNothingHeld)

	held, err := e.escrow.Hold(ctx, open.ID, dec("40"))
	require.NoError(t, err)
	assert.Equal(t, models.RequestInProgress, held.Status)
	_, err = e.escrow.Release(ctx, open.ID, provider.UserID)
	assert.ErrorIs(t, err, apperr.ErrNoAcceptedOffer)

	_, err = e.escrow.Hold(ctx, open.ID, dec("10"))
	assert.ErrorIs(t, err, apperr.ErrInvalidState)

	big, err := e.market.CreateRequest(ctx, client, CreateRequestInput{CategoryID: "c", Description: "d"})
	require.NoError(t, err)
	_, err = e.escrow.Hold(ctx, big.ID, dec("60.01"))
	assert.ErrorIs(t, err, apperr.ErrInsufficientFunds)
	got, err := e.market.GetRequest(ctx, client, big.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestOpen, got.Status)
	assert.False(t, got.EscrowAmount.Valid)
}

func TestReleaseWrongProvider(t *testing.T) {
	e := newEnv(t)
	e.deposit(t, client.UserID, "100")
	req, _ := e.startedRequest(t, "50")

	_, err := e.escrow.Release(context.Background(), req.ID, rival.UserID)
	assert.ErrorIs(t, err, apperr.ErrNoAcceptedOffer)
	e.requireBalances(t, client.UserID, "100", "50")
}

func TestRefundAfterReleaseIsRejected(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.deposit(t, client.UserID, "100")
	req, _ := e.startedRequest(t, "50")

	_, err := e.escrow.Release(ctx, req.ID, provider.UserID)
	require.NoError(t, err)
	_, err = e.escrow.Refund(ctx, req.ID)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
	e.requireBalances(t, client.UserID, "50", "50")
}

func TestAuditTrailFollowsCommits(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.deposit(t, client.UserID, "100")
	req, _ := e.startedRequest(t, "80")

	before := len(e.store.AuditLogs())
	_, err := e.escrow.Release(ctx, req.ID, rival.UserID)
	require.ErrorIs(t, err, apperr.ErrNoAcceptedOffer)
	assert.Len(t, e.store.AuditLogs(), before, "a failed unit writes no audit rows")

	_, err = e.escrow.Release(ctx, req.ID, provider.UserID)
	require.NoError(t, err)

	var released, completed bool
	for _, l := range e.store.AuditLogs()[before:] {
		switch {
		case l.EntityType == "transaction" && l.Action == "created":
			released = true
		case l.EntityType == "request" && l.Action == "status_change" && l.Details["to"] == models.RequestCompleted:
			completed = true
		}
	}
	assert.True(t, released)
	assert.True(t, completed)
}

func TestDisputedEscrowSettlesOnlyThroughResolution(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	req, d := reviewedDispute(t, e)

	_, err := e.escrow.Release(ctx, req.ID, provider.UserID)
	require.ErrorIs(t, err, apperr.ErrInvalidState)
	_, err = e.escrow.Refund(ctx, req.ID)
	require.ErrorIs(t, err, apperr.ErrInvalidState)

	assert.Equal(t, models.RequestDisputed, requestStatus(t, e, req.ID))
	e.requireBalances(t, client.UserID, "1000", "720")
	e.requireBalances(t, provider.UserID, "500", "500")

	d, err = e.disputes.Resolve(ctx, admin, ResolveInput{DisputeID: d.ID, Outcome: models.DisputeResolvedProvider})
	require.NoError(t, err)
	assert.Equal(t, models.DisputeResolvedProvider, d.Status)
	assert.Equal(t, models.RequestCompleted, requestStatus(t, e, req.ID))
	e.requireBalances(t, provider.UserID, "780", "780")
}

func TestCanceledDisputeReleasesEscrowAgain(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	req, d := reviewedDispute(t, e)

	_, err := e.disputes.Cancel(ctx, client, d.ID)
	require.NoError(t, err)

	req, err = e.escrow.Refund(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestCanceled, req.Status)
	e.requireBalances(t, client.UserID, "1000", "1000")
}
