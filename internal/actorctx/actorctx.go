// Package actorctx carries the authenticated caller on a request context so
// that services below the HTTP layer can read it without importing gin.
package actorctx

import (
	"context"

	"github.com/urwriter/marketplace/internal/domain/user"
)

type ctxKey int

const (
	keyActor ctxKey = iota
	keyRequestID
)

type Actor struct {
	UserID    string
	Email     string
	RoleFlags user.RoleMask
	Status    user.Status
}

func (a Actor) IsAdmin() bool {
	return a.RoleFlags.Has(user.RoleAdmin)
}

func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, keyActor, a)
}

func From(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(keyActor).(Actor)
	return a, ok && a.UserID != ""
}

func UserIDFrom(ctx context.Context) (string, bool) {
	a, ok := From(ctx)
	return a.UserID, ok
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, keyRequestID, id)
}

func RequestIDFrom(ctx context.Context) string {
	v, _ := ctx.Value(keyRequestID).(string)
	return v
}
