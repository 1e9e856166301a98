package middleware

import (
	"context"

	"github.com/baharkarakas/broker-ledger/internal/models"
)

type actorKey struct{}

func WithActor(ctx context.Context, a models.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

// ActorFrom returns the authenticated caller set by Auth.
func ActorFrom(ctx context.Context) (models.Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(models.Actor)
	return a, ok && a.UserID != ""
}
