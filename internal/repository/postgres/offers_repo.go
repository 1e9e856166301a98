package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/baharkarakas/broker-ledger/internal/apperr"
	"github.com/baharkarakas/broker-ledger/internal/models"
)

type offersRepo struct{ q querier }

const offerColumns = `id, request_id, provider_id, proposed_price::text, final_price::text, duration_days, status, created_at, updated_at`

func scanOffer(row pgx.Row) (models.Offer, error) {
	var (
		o        models.Offer
		proposed string
		final    *string
	)
	err := row.Scan(&o.ID, &o.RequestID, &o.ProviderID, &proposed, &final, &o.DurationDays, &o.Status, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return models.Offer{}, err
	}
	if o.ProposedPrice, err = parseDecimal(proposed); err != nil {
		return models.Offer{}, err
	}
	if o.FinalPrice, err = parseNullDecimal(final); err != nil {
		return models.Offer{}, err
	}
	return o, nil
}

func (r *offersRepo) Create(ctx context.Context, o models.Offer) (models.Offer, error) {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	out, err := scanOffer(r.q.QueryRow(ctx,
		`INSERT INTO offers (id, request_id, provider_id, proposed_price, final_price, duration_days, status)
		 VALUES ($1,$2,$3,$4,$5,$6,$7)
		 RETURNING `+offerColumns,
		o.ID, o.RequestID, o.ProviderID, o.ProposedPrice.String(), nullDecimalArg(o.FinalPrice), o.DurationDays, o.Status,
	))
	if isUniqueViolation(err) {
		return models.Offer{}, apperr.InvalidState("provider %s already made an offer on request %s", o.ProviderID, o.RequestID)
	}
	return out, err
}

func (r *offersRepo) GetByID(ctx context.Context, id string) (models.Offer, error) {
	if !validID(id) {
		return models.Offer{}, apperr.NotFound("offer %s", id)
	}
	o, err := scanOffer(r.q.QueryRow(ctx, `SELECT `+offerColumns+` FROM offers WHERE id = $1`, id))
	return o, notFound(err, "offer %s", id)
}

func (r *offersRepo) ListByRequest(ctx context.Context, requestID string) ([]models.Offer, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+offerColumns+` FROM offers WHERE request_id = $1 ORDER BY created_at ASC, id ASC`, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Offer
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *offersRepo) Update(ctx context.Context, o models.Offer) error {
	tag, err := r.q.Exec(ctx,
		`UPDATE offers SET final_price = $2, status = $3, updated_at = now() WHERE id = $1`,
		o.ID, nullDecimalArg(o.FinalPrice), o.Status,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("offer %s", o.ID)
	}
	return nil
}
