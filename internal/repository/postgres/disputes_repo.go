package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/baharkarakas/broker-ledger/internal/apperr"
	"github.com/baharkarakas/broker-ledger/internal/models"
)

type disputesRepo struct{ q querier }

const disputeColumns = `id, request_id, client_id, provider_id, opened_by, reason, status, resolution,
       refund_amount::text, refund_percent::text, resolved_by, resolved_at, created_at, updated_at`

func scanDispute(row pgx.Row) (models.Dispute, error) {
	var (
		d               models.Dispute
		amount, percent *string
	)
	err := row.Scan(&d.ID, &d.RequestID, &d.ClientID, &d.ProviderID, &d.OpenedBy, &d.Reason, &d.Status, &d.Resolution,
		&amount, &percent, &d.ResolvedBy, &d.ResolvedAt, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return models.Dispute{}, err
	}
	if d.RefundAmount, err = parseNullDecimal(amount); err != nil {
		return models.Dispute{}, err
	}
	if d.RefundPercent, err = parseNullDecimal(percent); err != nil {
		return models.Dispute{}, err
	}
	return d, nil
}

func (r *disputesRepo) Create(ctx context.Context, d models.Dispute) (models.Dispute, error) {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	out, err := scanDispute(r.q.QueryRow(ctx,
		`INSERT INTO disputes (id, request_id, client_id, provider_id, opened_by, reason, status, resolution)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		 RETURNING `+disputeColumns,
		d.ID, d.RequestID, d.ClientID, d.ProviderID, d.OpenedBy, d.Reason, d.Status, d.Resolution,
	))
	if isUniqueViolation(err) {
		return models.Dispute{}, apperr.InvalidState("request %s already has an active dispute", d.RequestID)
	}
	return out, err
}

func (r *disputesRepo) get(ctx context.Context, q, id string) (models.Dispute, error) {
	if !validID(id) {
		return models.Dispute{}, apperr.NotFound("dispute %s", id)
	}
	d, err := scanDispute(r.q.QueryRow(ctx, q, id))
	if err != nil {
		return models.Dispute{}, notFound(err, "dispute %s", id)
	}
	if d.Replies, err = r.ListReplies(ctx, id); err != nil {
		return models.Dispute{}, err
	}
	return d, nil
}

func (r *disputesRepo) GetByID(ctx context.Context, id string) (models.Dispute, error) {
	return r.get(ctx, `SELECT `+disputeColumns+` FROM disputes WHERE id = $1`, id)
}

func (r *disputesRepo) GetForUpdate(ctx context.Context, id string) (models.Dispute, error) {
	return r.get(ctx, `SELECT `+disputeColumns+` FROM disputes WHERE id = $1 FOR UPDATE`, id)
}

func (r *disputesRepo) ActiveForRequest(ctx context.Context, requestID string) (models.Dispute, error) {
	d, err := scanDispute(r.q.QueryRow(ctx,
		`SELECT `+disputeColumns+` FROM disputes
		  WHERE request_id = $1 AND status IN ('open', 'in_review')`, requestID))
	return d, notFound(err, "active dispute for request %s", requestID)
}

func (r *disputesRepo) Update(ctx context.Context, d models.Dispute) error {
	tag, err := r.q.Exec(ctx,
		`UPDATE disputes
		    SET status = $2, resolution = $3, refund_amount = $4, refund_percent = $5,
		        resolved_by = $6, resolved_at = $7, updated_at = now()
		  WHERE id = $1`,
		d.ID, d.Status, d.Resolution, nullDecimalArg(d.RefundAmount), nullDecimalArg(d.RefundPercent),
		d.ResolvedBy, d.ResolvedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("dispute %s", d.ID)
	}
	return nil
}

func (r *disputesRepo) AddReply(ctx context.Context, reply models.DisputeReply) (models.DisputeReply, error) {
	if reply.ID == "" {
		reply.ID = uuid.NewString()
	}
	if reply.Attachments == nil {
		reply.Attachments = []string{}
	}
	err := r.q.QueryRow(ctx,
		`INSERT INTO dispute_replies (id, dispute_id, author_id, content, attachments)
		 VALUES ($1,$2,$3,$4,$5)
		 RETURNING created_at`,
		reply.ID, reply.DisputeID, reply.AuthorID, reply.Content, reply.Attachments,
	).Scan(&reply.CreatedAt)
	return reply, err
}

func (r *disputesRepo) ListReplies(ctx context.Context, disputeID string) ([]models.DisputeReply, error) {
	rows, err := r.q.Query(ctx,
		`SELECT id, dispute_id, author_id, content, attachments, created_at
		   FROM dispute_replies WHERE dispute_id = $1 ORDER BY created_at ASC, id ASC`, disputeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.DisputeReply
	for rows.Next() {
		var rep models.DisputeReply
		if err := rows.Scan(&rep.ID, &rep.DisputeID, &rep.AuthorID, &rep.Content, &rep.Attachments, &rep.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rep)
	}
	return out, rows.Err()
}
