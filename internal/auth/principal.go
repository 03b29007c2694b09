package auth

import (
	"context"

	"github.com/google/uuid"
)

// Principal is the authenticated caller as seen by the domain services.
type Principal struct {
	UserID uuid.UUID
	Email  string
	Role   Role
}

// System acts for background jobs such as the no-show sweep.
var System = Principal{UserID: uuid.Nil, Email: "system", Role: RoleAdministrator}

// ActorID returns the user id to record, or nil for the system principal.
func (p Principal) ActorID() *uuid.UUID {
	if p.UserID == uuid.Nil {
		return nil
	}
	id := p.UserID
	return &id
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
