package services

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baharkarakas/broker-ledger/internal/apperr"
	"github.com/baharkarakas/broker-ledger/internal/models"
	"github.com/baharkarakas/broker-ledger/internal/notify"
)

func TestCreateRequestAndOffers(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	_, err := e.market.CreateRequest(ctx, provider, CreateRequestInput{CategoryID: "c", Description: "d"})
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
	_, err = e.market.CreateRequest(ctx, client, CreateRequestInput{CategoryID: " ", Description: "d"})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	budget := dec("500")
	req, err := e.market.CreateRequest(ctx, client, CreateRequestInput{CategoryID: "c", Description: "d", Budget: &budget})
	require.NoError(t, err)
	assert.Equal(t, models.RequestOpen, req.Status)
	assert.True(t, req.Budget.Decimal.Equal(budget))

	_, err = e.market.SubmitOffer(ctx, provider, SubmitOfferInput{RequestID: req.ID, Price: dec("100")})
	require.NoError(t, err)
	_, err = e.market.SubmitOffer(ctx, provider, SubmitOfferInput{RequestID: req.ID, Price: dec("90")})
	assert.ErrorIs(t, err, apperr.ErrInvalidState, "one offer per provider")
	_, err = e.market.SubmitOffer(ctx, rival, SubmitOfferInput{RequestID: req.ID, Price: dec("0")})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = e.market.SubmitOffer(ctx, rival, SubmitOfferInput{RequestID: req.ID, Price: dec("95.50")})
	require.NoError(t, err)

	all, err := e.market.ListOffers(ctx, client, req.ID)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	own, err := e.market.ListOffers(ctx, rival, req.ID)
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, rival.UserID, own[0].ProviderID)
}

func TestApplyMarginAndAcceptHoldsFinalPrice(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.deposit(t, client.UserID, "1000")

	req, err := e.market.CreateRequest(ctx, client, CreateRequestInput{CategoryID: "c", Description: "d"})
	require.NoError(t, err)
	a, err := e.market.SubmitOffer(ctx, provider, SubmitOfferInput{RequestID: req.ID, Price: dec("100")})
	require.NoError(t, err)
	_, err = e.market.SubmitOffer(ctx, rival, SubmitOfferInput{RequestID: req.ID, Price: dec("33.33")})
	require.NoError(t, err)

	_, err = e.market.ApplyMargin(ctx, client, req.ID, nil)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	priced, err := e.market.ApplyMargin(ctx, admin, req.ID, nil)
	require.NoError(t, err)
	require.Len(t, priced, 2)
	finals := map[string]string{}
	for _, o := range priced {
		finals[o.ProviderID] = o.FinalPrice.Decimal.StringFixed(2)
	}
	assert.Equal(t, map[string]string{provider.UserID: "110.00", rival.UserID: "36.66"}, finals)

	var rivalOffer string
	for _, o := range priced {
		if o.ProviderID == rival.UserID {
			rivalOffer = o.ID
		}
	}
	fifteen := decimal.NewFromInt(15)
	b, err := e.market.AdjustOfferPrice(ctx, admin, rivalOffer, &fifteen)
	require.NoError(t, err)
	assert.Equal(t, "38.33", b.FinalPrice.Decimal.StringFixed(2))
	assert.Equal(t, "33.33", b.ProposedPrice.StringFixed(2))

	accepted, err := e.market.AcceptOffer(ctx, client, a.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OfferAccepted, accepted.Status)
	e.requireBalances(t, client.UserID, "1000", "890")

	offers, err := e.market.ListOffers(ctx, admin, req.ID)
	require.NoError(t, err)
	for _, o := range offers {
		if o.ID == a.ID {
			assert.Equal(t, models.OfferAccepted, o.Status)
		} else {
			assert.Equal(t, models.OfferRejected, o.Status)
		}
	}
	assert.Contains(t, e.events.kinds(), notify.OfferAccepted)
	assert.Contains(t, e.events.kinds(), notify.OfferRejected)
	assert.Contains(t, e.events.kinds(), notify.RequestInProgress)

	_, err = e.market.AdjustOfferPrice(ctx, admin, a.ID, nil)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
}

func TestAcceptOffer_SingleAcceptanceUnderConcurrency(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.deposit(t, client.UserID, "1000")

	req, err := e.market.CreateRequest(ctx, client, CreateRequestInput{CategoryID: "c", Description: "d"})
	require.NoError(t, err)

	providers := []models.Actor{provider, rival,
		{UserID: "provider-3", Role: models.RoleProvider},
		{UserID: "provider-4", Role: models.RoleProvider},
	}
	var ids []string
	for _, p := range providers {
		o, err := e.market.SubmitOffer(ctx, p, SubmitOfferInput{RequestID: req.ID, Price: dec("100")})
		require.NoError(t, err)
		ids = append(ids, o.ID)
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := e.market.AcceptOffer(ctx, client, id)
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		}(id)
	}
	wg.Wait()

	var ok int
	for _, err := range errs {
		if err == nil {
			ok++
		} else {
			assert.ErrorIs(t, err, apperr.ErrInvalidState)
		}
	}
	assert.Equal(t, 1, ok)

	offers, err := e.market.ListOffers(ctx, client, req.ID)
	require.NoError(t, err)
	counts := map[models.OfferStatus]int{}
	for _, o := range offers {
		counts[o.Status]++
	}
	assert.Equal(t, 1, counts[models.OfferAccepted])
	assert.Equal(t, 3, counts[models.OfferRejected])
	e.requireBalances(t, client.UserID, "1000", "900")
}

func TestAcceptOffer_InsufficientFundsRollsBack(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.deposit(t, client.UserID, "50")
	before := len(e.events.kinds())

	req, err := e.market.CreateRequest(ctx, client, CreateRequestInput{CategoryID: "c", Description: "d"})
	require.NoError(t, err)
	a, err := e.market.SubmitOffer(ctx, provider, SubmitOfferInput{RequestID: req.ID, Price: dec("80")})
	require.NoError(t, err)
	_, err = e.market.SubmitOffer(ctx, rival, SubmitOfferInput{RequestID: req.ID, Price: dec("40")})
	require.NoError(t, err)

	_, err = e.market.AcceptOffer(ctx, client, a.ID)
	require.ErrorIs(t, err, apperr.ErrInsufficientFunds)
	assert.Len(t, e.events.kinds(), before, "no events for a rolled back unit")

	offers, err := e.market.ListOffers(ctx, client, req.ID)
	require.NoError(t, err)
	for _, o := range offers {
		assert.Equal(t, models.OfferPending, o.Status)
	}
	got, err := e.market.GetRequest(ctx, client, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestOpen, got.Status)
	e.requireBalances(t, client.UserID, "50", "50")
}

func TestAcceptOffer_OnlyRequestOwner(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	req, err := e.market.CreateRequest(ctx, client, CreateRequestInput{CategoryID: "c", Description: "d"})
	require.NoError(t, err)
	o, err := e.market.SubmitOffer(ctx, provider, SubmitOfferInput{RequestID: req.ID, Price: dec("10")})
	require.NoError(t, err)

	_, err = e.market.AcceptOffer(ctx, provider, o.ID)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestRejectOffer(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	req, err := e.market.CreateRequest(ctx, client, CreateRequestInput{CategoryID: "c", Description: "d"})
	require.NoError(t, err)
	o, err := e.market.SubmitOffer(ctx, provider, SubmitOfferInput{RequestID: req.ID, Price: dec("10")})
	require.NoError(t, err)

	o, err = e.market.RejectOffer(ctx, client, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OfferRejected, o.Status)
	_, err = e.market.RejectOffer(ctx, client, o.ID)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
}

func TestCancelRequest(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.deposit(t, client.UserID, "100")

	open, err := e.market.CreateRequest(ctx, client, CreateRequestInput{CategoryID: "c", Description: "d"})
	require.NoError(t, err)
	o, err := e.market.SubmitOffer(ctx, provider, SubmitOfferInput{RequestID: open.ID, Price: dec("10")})
	require.NoError(t, err)

	_, err = e.market.CancelRequest(ctx, rival, open.ID)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	canceled, err := e.market.CancelRequest(ctx, client, open.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestCanceled, canceled.Status)
	offers, err := e.market.ListOffers(ctx, client, open.ID)
	require.NoError(t, err)
	assert.Equal(t, o.ID, offers[0].ID)
	assert.Equal(t, models.OfferRejected, offers[0].Status)

	started, _ := e.startedRequest(t, "60")
	_, err = e.market.CancelRequest(ctx, client, started.ID)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)

	refunded, err := e.market.CancelRequest(ctx, admin, started.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestCanceled, refunded.Status)
	e.requireBalances(t, client.UserID, "100", "100")
}

func TestConfirmCompletion(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.deposit(t, client.UserID, "100")
	req, _ := e.startedRequest(t, "75")

	_, err := e.market.ConfirmCompletion(ctx, provider, req.ID)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	done, err := e.market.ConfirmCompletion(ctx, client, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestCompleted, done.Status)
	e.requireBalances(t, client.UserID, "25", "25")
	e.requireBalances(t, provider.UserID, "75", "75")

	_, err = e.market.ConfirmCompletion(ctx, client, req.ID)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
}

func TestGetRequest_Visibility(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	stranger := models.Actor{UserID: "client-2", Role: models.RoleClient}

	open, err := e.market.CreateRequest(ctx, client, CreateRequestInput{CategoryID: "c", Description: "d"})
	require.NoError(t, err)
	_, err = e.market.GetRequest(ctx, rival, open.ID)
	require.NoError(t, err, "providers browse open requests")
	_, err = e.market.GetRequest(ctx, stranger, open.ID)
	require.ErrorIs(t, err, apperr.ErrUnauthorized)

	e.deposit(t, client.UserID, "100")
	started, _ := e.startedRequest(t, "50")
	for _, a := range []models.Actor{client, provider, admin} {
		_, err := e.market.GetRequest(ctx, a, started.ID)
		require.NoError(t, err, a.UserID)
	}
	for _, a := range []models.Actor{rival, stranger} {
		_, err := e.market.GetRequest(ctx, a, started.ID)
		require.ErrorIs(t, err, apperr.ErrUnauthorized, a.UserID)
	}

	_, err = e.market.GetRequest(ctx, admin, "missing")
	require.ErrorIs(t, err, apperr.ErrNotFound)
}
