package guard

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/hamrah-app/hamrah/pkg/routepath"
	"github.com/hamrah-app/hamrah/pkg/session"
)

// Rule and outcome labels reported to the Observer.
const (
	RuleCookie = "cookie"
	RuleRole   = "role"

	OutcomeAllow             = "allow"
	OutcomeRedirectLogin     = "redirect_login"
	OutcomeRedirectHome      = "redirect_home"
	OutcomeRedirectDashboard = "redirect_dashboard"
)

// Verifier performs the server-side role lookup for admin paths. The
// cookies of the inbound navigation are forwarded so the lookup runs
// as the same browser session.
type Verifier interface {
	VerifyRole(ctx context.Context, cookies []*http.Cookie) (session.Role, error)
}

// Observer receives guard decisions and verification timings.
type Observer interface {
	Decision(rule, outcome string)
	VerifyObserved(d time.Duration, err error)
}

// Guard evaluates inbound navigations against a rule set. It holds no
// mutable per-request state; one Guard serves all requests.
type Guard struct {
	rules    Rules
	verifier Verifier
	log      *slog.Logger
	observer Observer
}

// GuardOption configures a Guard.
type GuardOption func(*Guard)

// WithLogger sets the structured logger.
func WithLogger(log *slog.Logger) GuardOption {
	return func(g *Guard) { g.log = log }
}

// WithObserver attaches a metrics observer.
func WithObserver(o Observer) GuardOption {
	return func(g *Guard) { g.observer = o }
}

// New creates a Guard. The verifier may be nil only when no admin
// pages are configured.
func New(rules Rules, verifier Verifier, opts ...GuardOption) *Guard {
	g := &Guard{rules: rules, verifier: verifier}
	for _, opt := range opts {
		opt(g)
	}
	if g.log == nil {
		g.log = slog.Default()
	}
	return g
}

// Decide evaluates one navigation. The path is canonicalized before
// matching so slash or dot-segment tricks cannot slip past a prefix
// rule. Rule 1 (cookie presence) runs first and issues no network
// calls; rule 2 (role verification) runs only for admin paths and
// fails closed: any ambiguity denies.
func (g *Guard) Decide(r *http.Request) Decision {
	path, err := routepath.Canonicalize(r.URL.Path)
	if err != nil {
		g.log.Warn("guard: rejecting malformed path", "path", r.URL.Path, "error", err)
		return g.observe(RedirectTo(g.rules.HomePath).withRule(RuleCookie), OutcomeRedirectHome)
	}

	// Rule 1: cookie presence. Cheap, avoids flashing protected
	// content before a real check has run.
	hasCookie := g.hasAuthCookie(r)

	if g.rules.isAuthPage(path) && hasCookie {
		return g.observe(RedirectTo(g.rules.DashboardPath).withRule(RuleCookie), OutcomeRedirectDashboard)
	}
	if g.rules.isProtected(path) && !hasCookie {
		return g.observe(RedirectTo(g.rules.LoginRedirect(path)).withRule(RuleCookie), OutcomeRedirectLogin)
	}

	// Rule 2: server-verified role, admin paths only.
	if g.rules.isAdmin(path) {
		if !g.verifyAdmin(r) {
			return g.observe(RedirectTo(g.rules.HomePath).withRule(RuleRole), OutcomeRedirectHome)
		}
		return g.observe(Allow().withRule(RuleRole), OutcomeAllow)
	}

	return g.observe(Allow().withRule(RuleCookie), OutcomeAllow)
}

// Middleware adapts the guard to a chi-compatible middleware. Denied
// navigations are redirected before the page handler runs.
func (g *Guard) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if d := g.Decide(r); !d.Allowed() {
				http.Redirect(w, r, d.Target(), http.StatusFound)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (g *Guard) hasAuthCookie(r *http.Request) bool {
	if g.rules.AuthCookie == "" {
		return false
	}
	cookie, err := r.Cookie(g.rules.AuthCookie)
	return err == nil && cookie.Value != ""
}

// verifyAdmin returns true only for a positively confirmed admin.
func (g *Guard) verifyAdmin(r *http.Request) bool {
	if g.verifier == nil {
		g.log.Error("guard: admin path configured without a verifier, denying")
		return false
	}

	start := time.Now()
	role, err := g.verifier.VerifyRole(r.Context(), r.Cookies())
	if g.observer != nil {
		g.observer.VerifyObserved(time.Since(start), err)
	}
	if err != nil {
		// Transport error, bad status, malformed body: all denied
		// alike. Cause does not matter when failing closed.
		g.log.Warn("guard: role verification failed, denying", "path", r.URL.Path, "error", err)
		return false
	}
	return role.Satisfies(session.RoleAdmin)
}

func (g *Guard) observe(d Decision, outcome string) Decision {
	if g.observer != nil {
		g.observer.Decision(d.rule, outcome)
	}
	return d
}
