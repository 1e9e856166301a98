package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/baharkarakas/broker-ledger/internal/apperr"
	"github.com/baharkarakas/broker-ledger/internal/models"
)

type transactionsRepo struct{ q querier }

const txColumns = `id, user_id, wallet_id, counterparty_user_id, counterparty_wallet_id, kind, amount::text, status,
       request_id, offer_id, dispute_id, description, metadata, created_at, updated_at`

func scanTransaction(row interface{ Scan(...any) error }) (models.Transaction, error) {
	var (
		tx     models.Transaction
		amount string
	)
	err := row.Scan(&tx.ID, &tx.UserID, &tx.WalletID, &tx.CounterpartyUserID, &tx.CounterpartyWalletID,
		&tx.Kind, &amount, &tx.Status, &tx.RequestID, &tx.OfferID, &tx.DisputeID,
		&tx.Description, &tx.Metadata, &tx.CreatedAt, &tx.UpdatedAt)
	if err != nil {
		return models.Transaction{}, err
	}
	if tx.Amount, err = parseDecimal(amount); err != nil {
		return models.Transaction{}, err
	}
	return tx, nil
}

func (r *transactionsRepo) Create(ctx context.Context, tx models.Transaction) (models.Transaction, error) {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	const q = `
INSERT INTO transactions (
  id, user_id, wallet_id, counterparty_user_id, counterparty_wallet_id, kind, amount, status,
  request_id, offer_id, dispute_id, description, metadata
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
RETURNING ` + txColumns
	return scanTransaction(r.q.QueryRow(ctx, q,
		tx.ID, tx.UserID, tx.WalletID, tx.CounterpartyUserID, tx.CounterpartyWalletID, tx.Kind,
		tx.Amount.String(), tx.Status, tx.RequestID, tx.OfferID, tx.DisputeID, tx.Description, tx.Metadata,
	))
}

func (r *transactionsRepo) GetByID(ctx context.Context, id string) (models.Transaction, error) {
	if !validID(id) {
		return models.Transaction{}, apperr.NotFound("transaction %s", id)
	}
	tx, err := scanTransaction(r.q.QueryRow(ctx, `SELECT `+txColumns+` FROM transactions WHERE id = $1`, id))
	return tx, notFound(err, "transaction %s", id)
}

func (r *transactionsRepo) GetForUpdate(ctx context.Context, id string) (models.Transaction, error) {
	if !validID(id) {
		return models.Transaction{}, apperr.NotFound("transaction %s", id)
	}
	tx, err := scanTransaction(r.q.QueryRow(ctx, `SELECT `+txColumns+` FROM transactions WHERE id = $1 FOR UPDATE`, id))
	return tx, notFound(err, "transaction %s", id)
}

func (r *transactionsRepo) List(ctx context.Context, f models.TransactionFilter) ([]models.Transaction, error) {
	f = f.Normalize()
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if f.UserID != "" {
		p := arg(f.UserID)
		where = append(where, "(user_id = "+p+" OR counterparty_user_id = "+p+")")
	}
	if f.Kind != "" {
		where = append(where, "kind = "+arg(f.Kind))
	}
	if f.Status != "" {
		where = append(where, "status = "+arg(f.Status))
	}
	if !f.From.IsZero() {
		where = append(where, "created_at >= "+arg(f.From))
	}
	if !f.To.IsZero() {
		where = append(where, "created_at < "+arg(f.To))
	}

	q := `SELECT ` + txColumns + ` FROM transactions`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY created_at DESC, seq DESC LIMIT " + arg(f.Limit) + " OFFSET " + arg(f.Offset)

	rows, err := r.q.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

func (r *transactionsRepo) UpdateStatus(ctx context.Context, id string, status models.TransactionStatus) error {
	tag, err := r.q.Exec(ctx,
		`UPDATE transactions SET status = $2, updated_at = now() WHERE id = $1`,
		id, status,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("transaction %s", id)
	}
	return nil
}
