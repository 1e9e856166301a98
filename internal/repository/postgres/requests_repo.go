package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/baharkarakas/broker-ledger/internal/apperr"
	"github.com/baharkarakas/broker-ledger/internal/models"
)

type requestsRepo struct{ q querier }

const requestColumns = `id, client_id, category_id, description, budget::text, status, escrow_amount::text, created_at, updated_at`

func scanRequest(row pgx.Row) (models.ServiceRequest, error) {
	var (
		r              models.ServiceRequest
		budget, escrow *string
	)
	err := row.Scan(&r.ID, &r.ClientID, &r.CategoryID, &r.Description, &budget, &r.Status, &escrow, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) || isInvalidText(err) {
		return models.ServiceRequest{}, apperr.ErrRequestNotFound
	}
	if err != nil {
		return models.ServiceRequest{}, err
	}
	if r.Budget, err = parseNullDecimal(budget); err != nil {
		return models.ServiceRequest{}, err
	}
	if r.EscrowAmount, err = parseNullDecimal(escrow); err != nil {
		return models.ServiceRequest{}, err
	}
	return r, nil
}

func (r *requestsRepo) Create(ctx context.Context, req models.ServiceRequest) (models.ServiceRequest, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	return scanRequest(r.q.QueryRow(ctx,
		`INSERT INTO service_requests (id, client_id, category_id, description, budget, status, escrow_amount)
		 VALUES ($1,$2,$3,$4,$5,$6,$7)
		 RETURNING `+requestColumns,
		req.ID, req.ClientID, req.CategoryID, req.Description,
		nullDecimalArg(req.Budget), req.Status, nullDecimalArg(req.EscrowAmount),
	))
}

func (r *requestsRepo) GetByID(ctx context.Context, id string) (models.ServiceRequest, error) {
	if !validID(id) {
		return models.ServiceRequest{}, apperr.ErrRequestNotFound
	}
	return scanRequest(r.q.QueryRow(ctx, `SELECT `+requestColumns+` FROM service_requests WHERE id = $1`, id))
}

func (r *requestsRepo) GetForUpdate(ctx context.Context, id string) (models.ServiceRequest, error) {
	if !validID(id) {
		return models.ServiceRequest{}, apperr.ErrRequestNotFound
	}
	return scanRequest(r.q.QueryRow(ctx, `SELECT `+requestColumns+` FROM service_requests WHERE id = $1 FOR UPDATE`, id))
}

func (r *requestsRepo) Update(ctx context.Context, req models.ServiceRequest) error {
	tag, err := r.q.Exec(ctx,
		`UPDATE service_requests
		    SET status = $2, escrow_amount = $3, budget = $4, description = $5, updated_at = now()
		  WHERE id = $1`,
		req.ID, req.Status, nullDecimalArg(req.EscrowAmount), nullDecimalArg(req.Budget), req.Description,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrRequestNotFound
	}
	return nil
}
