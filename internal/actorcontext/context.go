package actorcontext

import (
	"context"

	"github.com/servineo/servineo/internal/identity/domain"
)

// ActorContextKey is the request context key for the authenticated user.
type ActorContextKey struct{}

// WithActor stores the authenticated user in the context.
func WithActor(ctx context.Context, user domain.User) context.Context {
	return context.WithValue(ctx, ActorContextKey{}, user)
}

// ActorFromContext returns the authenticated user from context, if set.
func ActorFromContext(ctx context.Context) (domain.User, bool) {
	if ctx == nil {
		return domain.User{}, false
	}
	user, ok := ctx.Value(ActorContextKey{}).(domain.User)
	if !ok || user.ID == 0 {
		return domain.User{}, false
	}
	return user, true
}
