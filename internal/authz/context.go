package authz

import (
	"context"
	"net/http"
)

type contextKey string

const callerKey contextKey = "caller"

// WithCaller stores the authenticated subject on the context.
func WithCaller(ctx context.Context, subject string) context.Context {
	if subject == "" {
		return ctx
	}
	return context.WithValue(ctx, callerKey, subject)
}

func CallerFromContext(ctx context.Context) (string, bool) {
	sub, ok := ctx.Value(callerKey).(string)
	if !ok || sub == "" {
		return "", false
	}
	return sub, true
}

func CallerFromRequest(r *http.Request) (string, bool) {
	return CallerFromContext(r.Context())
}
