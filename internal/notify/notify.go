// Package notify delivers best-effort notifications about committed state
// changes. Delivery never blocks or fails the operation that produced them.
package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/baharkarakas/broker-ledger/internal/metrics"
	"github.com/baharkarakas/broker-ledger/internal/worker"
)

type Kind string

const (
	TransactionCompleted Kind = "transaction.completed"

	RequestInProgress Kind = "request.in_progress"
	RequestCompleted  Kind = "request.completed"
	RequestCanceled   Kind = "request.canceled"
	RequestDisputed   Kind = "request.disputed"

	OfferAccepted Kind = "offer.accepted"
	OfferRejected Kind = "offer.rejected"

	DisputeOpened   Kind = "dispute.opened"
	DisputeInReview Kind = "dispute.in_review"
	DisputeResolved Kind = "dispute.resolved"
	DisputeCanceled Kind = "dispute.canceled"
	DisputeReply    Kind = "dispute.reply"

	WithdrawalApproved  Kind = "withdrawal.approved"
	WithdrawalRejected  Kind = "withdrawal.rejected"
	WithdrawalProcessed Kind = "withdrawal.processed"
)

type Event struct {
	RecipientID string `json:"recipient_id"`
	Kind        Kind   `json:"kind"`
	Summary     string `json:"summary"`
	EntityType  string `json:"entity_type"`
	EntityID    string `json:"entity_id"`
}

type Notifier interface {
	Notify(ctx context.Context, events ...Event)
}

type Sink interface {
	Deliver(ctx context.Context, e Event) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Notify(context.Context, ...Event) {}

const deliverTimeout = 5 * time.Second

// Dispatcher fans events out to its sinks on a worker pool.
type Dispatcher struct {
	pool  *worker.Pool
	sinks []Sink
	log   *slog.Logger
}

func NewDispatcher(pool *worker.Pool, log *slog.Logger, sinks ...Sink) *Dispatcher {
	return &Dispatcher{pool: pool, sinks: sinks, log: log}
}

func (d *Dispatcher) Notify(ctx context.Context, events ...Event) {
	for _, e := range events {
		e := e
		err := d.pool.TrySubmit(func() { d.deliver(e) })
		if err != nil {
			metrics.NotificationsDropped.Inc()
			d.log.WarnContext(ctx, "notification dropped", "kind", e.Kind, "recipient", e.RecipientID, "err", err)
		}
	}
}

func (d *Dispatcher) deliver(e Event) {
	ctx, cancel := context.WithTimeout(context.Background(), deliverTimeout)
	defer cancel()
	for _, s := range d.sinks {
		if err := s.Deliver(ctx, e); err != nil {
			metrics.NotificationsDropped.Inc()
			d.log.Warn("notification delivery failed", "kind", e.Kind, "recipient", e.RecipientID, "err", err)
		}
	}
}

// LogSink writes each event to the structured log.
type LogSink struct{ Log *slog.Logger }

func (s LogSink) Deliver(ctx context.Context, e Event) error {
	s.Log.InfoContext(ctx, "notification",
		"kind", e.Kind,
		"recipient", e.RecipientID,
		"entity_type", e.EntityType,
		"entity_id", e.EntityID,
		"summary", e.Summary,
	)
	return nil
}
