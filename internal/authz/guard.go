package authz

import (
	"log/slog"
	"net/http"
)

// RouteDecision is the outcome of a single navigation attempt.
type RouteDecision int

const (
	// Render mounts the requested view.
	Render RouteDecision = iota
	// RedirectLogin sends unauthenticated visitors to the login page.
	RedirectLogin
	// RedirectLanding sends authenticated visitors whose role is not listed to the landing page.
	RedirectLanding
)

func (d RouteDecision) String() string {
	switch d {
	case Render:
		return "render"
	case RedirectLogin:
		return "redirect_login"
	case RedirectLanding:
		return "redirect_landing"
	}
	return "unknown"
}

// Decide evaluates a navigation attempt. It is synchronous and has no
// pending state: the identity is either loaded or absent.
func Decide(t *RouteTable, route string, id *Identity) RouteDecision {
	if id == nil {
		return RedirectLogin
	}
	if !t.IsRouteAllowed(route, id.Role) {
		return RedirectLanding
	}
	return Render
}

// RouteGuard protects views with a route table. Denied requests are
// redirected, never rendered.
type RouteGuard struct {
	Table       *RouteTable
	Source      func(*http.Request) IdentitySource
	LoginPath   string
	LandingPath string
	Logger      *slog.Logger
	// Observe, when set, receives every decision.
	Observe func(RouteDecision)
}

// Middleware applies the guard to next.
func (g RouteGuard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var id *Identity
		if g.Source != nil {
			id = NewEvaluator(g.Source(r)).Current()
		}
		decision := Decide(g.Table, r.URL.Path, id)
		if g.Observe != nil {
			g.Observe(decision)
		}
		switch decision {
		case Render:
			next.ServeHTTP(w, r)
		case RedirectLanding:
			target := g.LandingPath
			// A role shut out of the landing page too has nowhere to go but login.
			if target == "" || target == r.URL.Path || !g.Table.IsRouteAllowed(target, id.Role) {
				target = g.LoginPath
			}
			if g.Logger != nil {
				g.Logger.Warn("route denied",
					slog.String("path", r.URL.Path),
					slog.String("role", id.Role.String()),
					slog.String("redirect", target))
			}
			http.Redirect(w, r, target, http.StatusSeeOther)
		default:
			http.Redirect(w, r, g.LoginPath, http.StatusSeeOther)
		}
	})
}
