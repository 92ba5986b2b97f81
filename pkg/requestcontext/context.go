// Package requestcontext provides HTTP-independent context accessors for request-scoped values.
//
// Middleware sets the values; handlers and services read them:
//
//	role, callerID := requestcontext.Caller(ctx)
//	now := requestcontext.Now(ctx)
//
// Tests inject them directly:
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
//	ctx = requestcontext.WithCaller(ctx, "manager", "mgr-1")
package requestcontext

import (
	"context"
	"time"
)

type (
	callerRoleKey  struct{}
	callerIDKey    struct{}
	requestTimeKey struct{}
)

// Caller returns the role and id of the caller, or empty strings.
func Caller(ctx context.Context) (role, id string) {
	role, _ = ctx.Value(callerRoleKey{}).(string)
	id, _ = ctx.Value(callerIDKey{}).(string)
	return role, id
}

// WithCaller injects the caller's role and id.
func WithCaller(ctx context.Context, role, id string) context.Context {
	ctx = context.WithValue(ctx, callerRoleKey{}, role)
	return context.WithValue(ctx, callerIDKey{}, id)
}

// Now returns the request-scoped time, falling back to the wall clock when
// no middleware set one.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestTimeKey{}).(time.Time); ok {
		return t
	}
	return time.Now().UTC()
}

// WithTime injects a specific time into a context.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, t)
}
