package services

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/baharkarakas/broker-ledger/internal/apperr"
	"github.com/baharkarakas/broker-ledger/internal/metrics"
	"github.com/baharkarakas/broker-ledger/internal/models"
	"github.com/baharkarakas/broker-ledger/internal/notify"
	repo "github.com/baharkarakas/broker-ledger/internal/repository"
)

// Deps are shared by every service.
type Deps struct {
	Store         repo.Store
	Notifier      notify.Notifier
	Log           *slog.Logger
	Currency      string
	DefaultMargin decimal.Decimal
}

func (d Deps) withDefaults() Deps {
	if d.Notifier == nil {
		d.Notifier = notify.Nop{}
	}
	if d.Log == nil {
		d.Log = slog.Default()
	}
	if d.Currency == "" {
		d.Currency = "USD"
	}
	return d
}

type transition struct{ entity, to string }

// unit collects everything a single unit of work produced. Events, postings
// and transitions are published only after the store commits.
type unit struct {
	ctx         context.Context
	r           repo.Repositories
	actorID     string
	events      []notify.Event
	posted      []models.Transaction
	transitions []transition
}

func (u *unit) notify(recipient string, kind notify.Kind, entityType, entityID, summary string) {
	u.events = append(u.events, notify.Event{
		RecipientID: recipient,
		Kind:        kind,
		Summary:     summary,
		EntityType:  entityType,
		EntityID:    entityID,
	})
}

func (u *unit) moved(entity string, to string) {
	u.transitions = append(u.transitions, transition{entity: entity, to: to})
}

func (u *unit) audit(entityType, entityID, action string, details map[string]any) error {
	id := entityID
	return u.r.AuditLogs.Create(u.ctx, models.AuditLog{
		EntityType: entityType,
		EntityID:   &id,
		Action:     action,
		ActorID:    u.actorID,
		Details:    details,
	})
}

type runner struct {
	Deps
}

// run executes fn atomically. Nothing fn queued is published when it fails.
func (s *runner) run(ctx context.Context, op, actorID string, fn func(u *unit) error) error {
	var u *unit
	err := s.Store.WithTx(ctx, func(r repo.Repositories) error {
		u = &unit{ctx: ctx, r: r, actorID: actorID}
		return fn(u)
	})
	if err != nil {
		kind := apperr.KindOf(err)
		metrics.TransactionsFailed.WithLabelValues(op, string(kind)).Inc()
		if kind == apperr.KindInternal {
			s.Log.ErrorContext(ctx, "operation failed", "op", op, "actor", actorID, "err", err)
		} else {
			s.Log.WarnContext(ctx, "operation rejected", "op", op, "actor", actorID, "kind", kind, "err", err)
		}
		return err
	}

	for _, tx := range u.posted {
		metrics.TransactionsTotal.WithLabelValues(string(tx.Kind)).Inc()
		s.Log.InfoContext(ctx, "ledger posting",
			"tx_id", tx.ID,
			"kind", tx.Kind,
			"amount", tx.Amount.StringFixed(2),
			"user_id", tx.UserID,
		)
	}
	for _, t := range u.transitions {
		metrics.StateTransitions.WithLabelValues(t.entity, t.to).Inc()
	}
	if len(u.events) > 0 {
		s.Notifier.Notify(ctx, u.events...)
	}
	return nil
}

func requireArbitrator(actor models.Actor) error {
	if !actor.IsArbitrator() {
		return apperr.Unauthorized("user %s is not an arbitrator", actor.UserID)
	}
	return nil
}

func requireRole(actor models.Actor, role models.Role) error {
	if actor.Role != role {
		return apperr.Unauthorized("user %s is not a %s", actor.UserID, role)
	}
	return nil
}

func strPtr(s string) *string { return &s }
