package internal

import (
	"context"
	"time"
)

// SuperAdminPermission is the capability that exempts an actor from tenant
// scoping. Downstream services should not depend on any other claim.
const SuperAdminPermission = "system.super_admin"

// Actor is the request-scoped identity resolved from a verified access
// token. It is passed explicitly through every call into the identity core;
// nothing reads it from ambient global state.
type Actor struct {
	UserID      string   `json:"user_id"`
	OrgID       string   `json:"org_id"`
	FullName    string   `json:"full_name"`
	RoleCodes   []string `json:"role_codes"`
	Permissions []string `json:"permissions"`
	IPAddress   string   `json:"-"`
	UserAgent   string   `json:"-"`
}

func (a *Actor) HasPermission(permission string) bool {
	for _, p := range a.Permissions {
		if p == permission {
			return true
		}
	}
	return false
}

func (a *Actor) HasAnyPermission(permissions []string) bool {
	for _, required := range permissions {
		if a.HasPermission(required) {
			return true
		}
	}
	return false
}

func (a *Actor) IsSuperAdmin() bool {
	return a.HasPermission(SuperAdminPermission)
}

type ctxKey string

const contextActorKey ctxKey = "actor"

func ContextWithActor(ctx context.Context, actor *Actor) context.Context {
	return context.WithValue(ctx, contextActorKey, actor)
}

func ActorFromContext(ctx context.Context) (*Actor, bool) {
	if ctx == nil {
		return nil, false
	}
	a, ok := ctx.Value(contextActorKey).(*Actor)
	return a, ok && a != nil
}

// RequireActor returns the actor or an Unauthorized error when the request
// carries no verified identity.
func RequireActor(ctx context.Context) (*Actor, error) {
	a, ok := ActorFromContext(ctx)
	if !ok {
		return nil, ErrInvalidToken
	}
	return a, nil
}

// RequireAuthority is the explicit per-operation authorization check: every
// exposed operation calls it at the top instead of relying on hidden
// middleware weaving.
func RequireAuthority(ctx context.Context, permission string) (*Actor, error) {
	a, err := RequireActor(ctx)
	if err != nil {
		return nil, err
	}
	if !a.HasPermission(permission) && !a.IsSuperAdmin() {
		return nil, ErrInsufficientScope
	}
	return a, nil
}

// WithTimeout returns a context with timeout, defaulting to 5 seconds if duration is zero or negative.
func WithTimeout(ctx context.Context, duration time.Duration) (context.Context, context.CancelFunc) {
	if duration <= 0 {
		duration = 5 * time.Second
	}
	return context.WithTimeout(ctx, duration)
}
