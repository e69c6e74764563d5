package api

import (
	"context"

	"github.com/sfp-labs/fellowship-portal/internal/sessions"
)

type contextKey string

const sessionContextKey contextKey = "form_session"

// SessionFromContext extracts the form session from context
func SessionFromContext(ctx context.Context) *sessions.Session {
	sess, ok := ctx.Value(sessionContextKey).(*sessions.Session)
	if !ok {
		return nil
	}
	return sess
}

// ContextWithSession adds a form session to context
func ContextWithSession(ctx context.Context, sess *sessions.Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, sess)
}
