package httpapi

import (
	"context"

	"github.com/sponnect/sponnect/internal/domain/access"
)

type authContextKey string

const authActorKey authContextKey = "authActor"

func withActor(ctx context.Context, a access.Actor) context.Context {
	return context.WithValue(ctx, authActorKey, a)
}

func actorFromContext(ctx context.Context) (access.Actor, bool) {
	a, ok := ctx.Value(authActorKey).(access.Actor)
	return a, ok
}
