package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/baharkarakas/broker-ledger/internal/apperr"
	"github.com/baharkarakas/broker-ledger/internal/models"
)

type withdrawalsRepo struct{ q querier }

const withdrawalColumns = `id, user_id, amount::text, status, payment_method, payment_details, admin_note, transaction_id, created_at, updated_at`

func scanWithdrawal(row pgx.Row) (models.WithdrawalRequest, error) {
	var (
		w      models.WithdrawalRequest
		amount string
	)
	err := row.Scan(&w.ID, &w.UserID, &amount, &w.Status, &w.PaymentMethod, &w.PaymentDetails,
		&w.AdminNote, &w.TransactionID, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return models.WithdrawalRequest{}, err
	}
	if w.Amount, err = parseDecimal(amount); err != nil {
		return models.WithdrawalRequest{}, err
	}
	return w, nil
}

func (r *withdrawalsRepo) Create(ctx context.Context, w models.WithdrawalRequest) (models.WithdrawalRequest, error) {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	return scanWithdrawal(r.q.QueryRow(ctx,
		`INSERT INTO withdrawal_requests (id, user_id, amount, status, payment_method, payment_details)
		 VALUES ($1,$2,$3,$4,$5,$6)
		 RETURNING `+withdrawalColumns,
		w.ID, w.UserID, w.Amount.String(), w.Status, w.PaymentMethod, w.PaymentDetails,
	))
}

func (r *withdrawalsRepo) GetByID(ctx context.Context, id string) (models.WithdrawalRequest, error) {
	if !validID(id) {
		return models.WithdrawalRequest{}, apperr.NotFound("withdrawal %s", id)
	}
	w, err := scanWithdrawal(r.q.QueryRow(ctx, `SELECT `+withdrawalColumns+` FROM withdrawal_requests WHERE id = $1`, id))
	return w, notFound(err, "withdrawal %s", id)
}

func (r *withdrawalsRepo) GetForUpdate(ctx context.Context, id string) (models.WithdrawalRequest, error) {
	if !validID(id) {
		return models.WithdrawalRequest{}, apperr.NotFound("withdrawal %s", id)
	}
	w, err := scanWithdrawal(r.q.QueryRow(ctx, `SELECT `+withdrawalColumns+` FROM withdrawal_requests WHERE id = $1 FOR UPDATE`, id))
	return w, notFound(err, "withdrawal %s", id)
}

func (r *withdrawalsRepo) ListByUser(ctx context.Context, userID string) ([]models.WithdrawalRequest, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+withdrawalColumns+` FROM withdrawal_requests WHERE user_id = $1 ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.WithdrawalRequest
	for rows.Next() {
		w, err := scanWithdrawal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (r *withdrawalsRepo) Outstanding(ctx context.Context, userID string) (decimal.Decimal, error) {
	var sum string
	err := r.q.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0)::text FROM withdrawal_requests
		  WHERE user_id = $1 AND status IN ('pending', 'approved')`, userID).Scan(&sum)
	if err != nil {
		return decimal.Zero, err
	}
	return parseDecimal(sum)
}

func (r *withdrawalsRepo) Update(ctx context.Context, w models.WithdrawalRequest) error {
	tag, err := r.q.Exec(ctx,
		`UPDATE withdrawal_requests
		    SET status = $2, admin_note = $3, transaction_id = $4, updated_at = now()
		  WHERE id = $1`,
		w.ID, w.Status, w.AdminNote, w.TransactionID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("withdrawal %s", w.ID)
	}
	return nil
}
