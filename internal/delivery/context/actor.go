package context

import (
	"context"
	"slices"

	"github.com/labstack/echo/v4"
)

// KeyActor is the key for the authenticated caller.
const KeyActor ContextKey = "actor"

// Actor is the authenticated caller of a request, taken from a verified access token.
type Actor struct {
	Subject string
	Roles   []string
}

// HasRole reports whether the actor carries role.
func (a *Actor) HasRole(role string) bool {
	return a != nil && slices.Contains(a.Roles, role)
}

// SetActor stores the actor on both the echo and the request context.
func SetActor(c echo.Context, actor *Actor) {
	c.Set(string(KeyActor), actor)
	c.SetRequest(c.Request().WithContext(WithActor(c.Request().Context(), actor)))
}

// GetActor returns the actor stored by SetActor, or nil.
func GetActor(c echo.Context) *Actor {
	if actor, ok := c.Get(string(KeyActor)).(*Actor); ok {
		return actor
	}

	return nil
}

// WithActor returns a new context with the actor.
func WithActor(ctx context.Context, actor *Actor) context.Context {
	return context.WithValue(ctx, KeyActor, actor)
}

// GetActorFromContext returns the actor from a standard context, or nil.
func GetActorFromContext(ctx context.Context) *Actor {
	if actor, ok := ctx.Value(KeyActor).(*Actor); ok {
		return actor
	}

	return nil
}
