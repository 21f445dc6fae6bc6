package service

import "context"

const systemActor = "system"

type actorContextKey struct{}

// WithActor records who performs the operations run with ctx
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext returns the recorded actor, or "system"
func ActorFromContext(ctx context.Context) string {
	if actor, ok := ctx.Value(actorContextKey{}).(string); ok && actor != "" {
		return actor
	}
	return systemActor
}
