package guard

import (
	"log/slog"
	"sync"

	"github.com/hamrah-app/hamrah/pkg/session"
)

// RenderState is the three-state machine a guarded region renders by.
type RenderState int

const (
	// Pending: the session is still unknown or being checked. Render
	// a placeholder; never redirect on first paint.
	Pending RenderState = iota

	// Denied: the session resolved and the role does not satisfy the
	// requirement. A redirect has been (or is being) issued.
	Denied

	// Granted: the session resolved with a sufficient role. Render
	// the children.
	Granted
)

// String returns a short name for the render state.
func (s RenderState) String() string {
	switch s {
	case Denied:
		return "denied"
	case Granted:
		return "granted"
	default:
		return "pending"
	}
}

// Navigator performs a client-side navigation. It is the only side
// effect the component guard ever triggers.
type Navigator interface {
	Navigate(path string)
}

// NavigatorFunc adapts a function to the Navigator interface.
type NavigatorFunc func(path string)

// Navigate implements Navigator.
func (f NavigatorFunc) Navigate(path string) {
	f(path)
}

// Component wraps privileged UI. It subscribes to the session store
// and re-evaluates on every transition, so a check that resolves
// after the first render still triggers the redirect. The redirect is
// latched: one per denial, not one per render.
type Component struct {
	store    *session.Store
	nav      Navigator
	required session.Role
	rules    Rules
	path     string
	log      *slog.Logger

	mu         sync.Mutex
	redirected bool

	cancel func()
}

// ComponentOption configures a Component.
type ComponentOption func(*Component)

// WithComponentLogger sets the structured logger.
func WithComponentLogger(log *slog.Logger) ComponentOption {
	return func(c *Component) { c.log = log }
}

// NewComponent mounts a guard for the region at path requiring the
// given role. It evaluates once immediately and then on every store
// transition until Close.
func NewComponent(store *session.Store, nav Navigator, required session.Role, path string, rules Rules, opts ...ComponentOption) *Component {
	c := &Component{
		store:    store,
		nav:      nav,
		required: required,
		rules:    rules,
		path:     path,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = slog.Default()
	}

	c.cancel = store.Subscribe(func(state session.State) {
		c.evaluate(state)
	})
	c.evaluate(store.State())
	return c
}

// State returns the current render state.
func (c *Component) State() RenderState {
	return classify(c.store.State(), c.required)
}

// Close detaches the guard from the store.
func (c *Component) Close() {
	if c.cancel != nil {
		c.cancel()
	}
}

func (c *Component) evaluate(state session.State) {
	switch classify(state, c.required) {
	case Granted:
		// Re-arm: a later denial (logout in another tab) must
		// redirect again.
		c.mu.Lock()
		c.redirected = false
		c.mu.Unlock()
	case Denied:
		c.mu.Lock()
		if c.redirected {
			c.mu.Unlock()
			return
		}
		c.redirected = true
		c.mu.Unlock()

		target := c.rules.HomePath
		if !state.Authenticated() {
			target = c.rules.LoginRedirect(c.path)
		}
		c.log.Debug("guard: denying render", "path", c.path, "target", target)
		c.nav.Navigate(target)
	}
}

// classify maps session state to the render machine. StatusError maps
// to Pending: an ambiguous identity neither renders
// privileged UI nor bounces the visitor around on a transient
// failure.
func classify(state session.State, required session.Role) RenderState {
	switch state.Status {
	case session.StatusResolved:
		if state.Role().Satisfies(required) {
			return Granted
		}
		return Denied
	default:
		return Pending
	}
}
