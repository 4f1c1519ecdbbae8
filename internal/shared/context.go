package shared

import (
	"context"
	"net/http"

	"github.com/odyssey-erp/warehouse-console/internal/authz"
)

type sessionContextKey struct{}

// ContextWithSession stores the session in context.
func ContextWithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

// SessionFromContext extracts the session from context.
func SessionFromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(sessionContextKey{}).(*Session)
	return sess
}

// IdentitySource adapts the request session to authz lookups. Requests
// without a session yield a source that reports no identity.
func IdentitySource(r *http.Request) authz.IdentitySource {
	return SessionFromContext(r.Context())
}

// EvaluatorFor returns an evaluator bound to the request session.
func EvaluatorFor(r *http.Request) authz.Evaluator {
	return authz.NewEvaluator(IdentitySource(r))
}

// DeauthorizeContext discards the session carried by ctx. It is the reaction
// to an upstream 401/403 and reports true only for the call that ended a
// live session.
func DeauthorizeContext(ctx context.Context) bool {
	return SessionFromContext(ctx).Discard()
}
