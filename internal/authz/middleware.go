package authz

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/odyssey-erp/warehouse-console/internal/platform/httpx"
)

// Middleware guards handlers with gate checks, answering 403 on denial.
type Middleware struct {
	Source func(*http.Request) IdentitySource
	Logger *slog.Logger
}

// Require allows the request through only when opts pass the gate.
func (m Middleware) Require(opts GateOptions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var source IdentitySource
			if m.Source != nil {
				source = m.Source(r)
			}
			if Allow(NewEvaluator(source), opts) {
				next.ServeHTTP(w, r)
				return
			}
			if m.Logger != nil {
				m.Logger.Warn("action denied",
					slog.String("path", r.URL.Path),
					slog.String("module", opts.Module),
					slog.String("action", string(opts.Action)))
			}
			if wantsJSON(r) {
				httpx.Problem(w, http.StatusForbidden, "Forbidden", "insufficient permissions")
				return
			}
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		})
	}
}

// RequireAction is Require for a single module action.
func (m Middleware) RequireAction(module string, action Action) func(http.Handler) http.Handler {
	return m.Require(GateOptions{Module: module, Action: action})
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}
