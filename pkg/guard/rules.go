package guard

import (
	"net/url"
	"strings"
)

// Rules is the static guard configuration: which path prefixes are
// auth pages, protected pages, and admin pages, where denials
// redirect, and which cookie marks an authenticated browser. Rules
// are declared once at startup, never computed.
type Rules struct {
	// AuthPages are the login/register pages themselves. An already
	// authenticated visitor is bounced off them to the dashboard.
	AuthPages []string

	// ProtectedPages require the auth cookie to be present.
	ProtectedPages []string

	// AdminPages additionally require a server-verified admin role.
	AdminPages []string

	// LoginPath is where unauthenticated visitors are sent.
	LoginPath string

	// HomePath is where failed or under-privileged role checks land.
	HomePath string

	// DashboardPath is where authenticated visitors leaving an auth
	// page land.
	DashboardPath string

	// AuthCookie is the authentication cookie name. Only its presence
	// is ever tested; the guard never parses its value.
	AuthCookie string
}

// DefaultRules returns the application's standard rule set.
func DefaultRules() Rules {
	return Rules{
		AuthPages:      []string{"/login", "/register"},
		ProtectedPages: []string{"/dashboard", "/profile", "/admin"},
		AdminPages:     []string{"/admin"},
		LoginPath:      "/login",
		HomePath:       "/",
		DashboardPath:  "/dashboard",
		AuthCookie:     "hamrah_session",
	}
}

func (r Rules) isAuthPage(path string) bool {
	return matchesAny(path, r.AuthPages)
}

func (r Rules) isProtected(path string) bool {
	return matchesAny(path, r.ProtectedPages)
}

func (r Rules) isAdmin(path string) bool {
	return matchesAny(path, r.AdminPages)
}

// LoginRedirect builds the login target carrying the denied path, so
// the visitor returns there after authenticating.
func (r Rules) LoginRedirect(deniedPath string) string {
	if deniedPath == "" || deniedPath == r.LoginPath {
		return r.LoginPath
	}
	return r.LoginPath + "?redirect=" + url.QueryEscape(deniedPath)
}

func matchesAny(path string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if matchesPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// matchesPrefix is segment-aware: "/admin" matches "/admin" and
// "/admin/users" but not "/administration".
func matchesPrefix(path, prefix string) bool {
	if prefix == "" {
		return false
	}
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix == "" {
		// A bare "/" prefix would match everything; that is never a
		// meaningful guard rule.
		return false
	}
	if !strings.HasPrefix(path, prefix) {
		return false
	}
	rest := path[len(prefix):]
	return rest == "" || rest[0] == '/'
}

// Decision is the outcome of evaluating one navigation: allow, or
// redirect. Decisions are derived per navigation, never stored.
type Decision struct {
	target string
	rule   string
}

// Allow lets the navigation proceed to render.
func Allow() Decision {
	return Decision{}
}

// RedirectTo short-circuits the navigation to the given path.
func RedirectTo(path string) Decision {
	return Decision{target: path}
}

// Allowed reports whether the navigation may proceed.
func (d Decision) Allowed() bool {
	return d.target == ""
}

// Target returns the redirect path; empty when allowed.
func (d Decision) Target() string {
	return d.target
}

func (d Decision) withRule(rule string) Decision {
	d.rule = rule
	return d
}
