package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/baharkarakas/broker-ledger/internal/notify"
)

// NotificationSink persists notification events for later retrieval.
type NotificationSink struct{ pool *pgxpool.Pool }

func NewNotificationSink(pool *pgxpool.Pool) *NotificationSink { return &NotificationSink{pool: pool} }

func (s *NotificationSink) Deliver(ctx context.Context, e notify.Event) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO notifications (recipient_id, kind, summary, entity_type, entity_id) VALUES ($1,$2,$3,$4,$5)`,
		e.RecipientID, string(e.Kind), e.Summary, e.EntityType, e.EntityID,
	)
	return err
}
