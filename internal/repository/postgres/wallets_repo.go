package postgres

import (
	"context"

	"github.com/google/uuid"

	"github.com/baharkarakas/broker-ledger/internal/apperr"
	"github.com/baharkarakas/broker-ledger/internal/models"
)

type walletsRepo struct{ q querier }

const walletColumns = `id, user_id, balance::text, available_balance::text, currency, is_active, created_at, updated_at`

func scanWallet(row interface{ Scan(...any) error }) (models.Wallet, error) {
	var (
		w                  models.Wallet
		balance, available string
	)
	if err := row.Scan(&w.ID, &w.UserID, &balance, &available, &w.Currency, &w.IsActive, &w.CreatedAt, &w.UpdatedAt); err != nil {
		return models.Wallet{}, err
	}
	var err error
	if w.Balance, err = parseDecimal(balance); err != nil {
		return models.Wallet{}, err
	}
	if w.AvailableBalance, err = parseDecimal(available); err != nil {
		return models.Wallet{}, err
	}
	return w, nil
}

func (r *walletsRepo) ensure(ctx context.Context, userID, currency string) error {
	_, err := r.q.Exec(ctx,
		`INSERT INTO wallets (id, user_id, balance, available_balance, currency, is_active)
		 VALUES ($1, $2, 0, 0, $3, true)
		 ON CONFLICT (user_id) DO NOTHING`,
		uuid.NewString(), userID, currency,
	)
	return err
}

func (r *walletsRepo) GetOrCreate(ctx context.Context, userID, currency string) (models.Wallet, error) {
	if w, err := r.Get(ctx, userID); err == nil {
		return w, nil
	}
	if err := r.ensure(ctx, userID, currency); err != nil {
		return models.Wallet{}, err
	}
	return r.Get(ctx, userID)
}

func (r *walletsRepo) GetOrCreateForUpdate(ctx context.Context, userID, currency string) (models.Wallet, error) {
	if err := r.ensure(ctx, userID, currency); err != nil {
		return models.Wallet{}, err
	}
	w, err := scanWallet(r.q.QueryRow(ctx,
		`SELECT `+walletColumns+` FROM wallets WHERE user_id = $1 FOR UPDATE`, userID))
	return w, notFound(err, "wallet of user %s", userID)
}

func (r *walletsRepo) Get(ctx context.Context, userID string) (models.Wallet, error) {
	w, err := scanWallet(r.q.QueryRow(ctx,
		`SELECT `+walletColumns+` FROM wallets WHERE user_id = $1`, userID))
	return w, notFound(err, "wallet of user %s", userID)
}

func (r *walletsRepo) Update(ctx context.Context, w models.Wallet) error {
	tag, err := r.q.Exec(ctx,
		`UPDATE wallets
		    SET balance = $2,
		        available_balance = $3,
		        is_active = $4,
		        updated_at = now()
		  WHERE user_id = $1`,
		w.UserID, w.Balance.String(), w.AvailableBalance.String(), w.IsActive,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("wallet of user %s", w.UserID)
	}
	return nil
}
