// Package guard decides where the UI should navigate given the
// authentication state and the current path.
package guard

import (
	"net/http"

	"github.com/tphummel/sitewatch/internal/session"
)

const (
	// DashboardPath is where authenticated users land.
	DashboardPath = "/dashboard"
	// LandingPath is where unauthenticated users land.
	LandingPath = "/"
)

// PublicPaths may be visited without a session. Every other page path is
// protected.
var PublicPaths = map[string]bool{
	"/":            true,
	"/auth":        true,
	"/agent-setup": true,
}

// IsPublic reports whether path is on the public allow-list.
func IsPublic(path string) bool {
	return PublicPaths[path]
}

// Target returns the path to navigate to, or false when the current path is
// consistent with the authentication state.
func Target(authenticated bool, path string) (string, bool) {
	switch {
	case authenticated && IsPublic(path):
		return DashboardPath, true
	case !authenticated && !IsPublic(path):
		return LandingPath, true
	}
	return "", false
}

// Tracker holds {authenticated, current path} and evaluates Target once per
// change of either. After a redirect the current path becomes the target,
// so the same state never produces a second redirect.
type Tracker struct {
	authenticated bool
	path          string
}

// NewTracker starts tracking at path with the given authentication state.
func NewTracker(authenticated bool, path string) *Tracker {
	return &Tracker{authenticated: authenticated, path: path}
}

// Authenticated reports the tracked authentication state.
func (t *Tracker) Authenticated() bool { return t.authenticated }

// Path reports the tracked current path.
func (t *Tracker) Path() string { return t.path }

// Check evaluates the current state without requiring a change. Use it once
// when a tracker is created.
func (t *Tracker) Check() (string, bool) {
	return t.evaluate()
}

// Apply folds a session event into the state. TOKEN_REFRESHED and events
// that leave the authentication state unchanged never navigate.
func (t *Tracker) Apply(ev session.Event) (string, bool) {
	if ev.Kind == session.TokenRefreshed {
		return "", false
	}
	authenticated := ev.Authenticated()
	if authenticated == t.authenticated {
		return "", false
	}
	t.authenticated = authenticated
	return t.evaluate()
}

// Visit records a user navigation to path.
func (t *Tracker) Visit(path string) (string, bool) {
	if path == t.path {
		return "", false
	}
	t.path = path
	return t.evaluate()
}

func (t *Tracker) evaluate() (string, bool) {
	target, ok := Target(t.authenticated, t.path)
	if ok {
		t.path = target
	}
	return target, ok
}

// Middleware redirects page requests whose path is inconsistent with the
// caller's authentication state, as decided by authenticated.
func Middleware(authenticated func(*http.Request) bool, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if target, ok := Target(authenticated(r), r.URL.Path); ok {
			http.Redirect(w, r, target, http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}
