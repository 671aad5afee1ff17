package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/hamrah-app/hamrah/pkg/toast"
)

// API is the slice of the identity service the store consumes.
// FetchCurrentUser returns (nil, nil) when the server reports no
// session; a transport failure is a non-nil error and must never be
// interpreted as "logged out".
type API interface {
	Login(ctx context.Context, creds Credentials) (*User, error)
	Register(ctx context.Context, reg Registration) (*User, error)
	Logout(ctx context.Context) error
	FetchCurrentUser(ctx context.Context) (*User, error)
}

// TokenRemover is the slice of the XSRF token store the store needs:
// it only ever discards the token, on logout.
type TokenRemover interface {
	Remove()
}

// Subscriber receives the store state after every transition.
// Callbacks run synchronously on the goroutine that performed the
// transition, before the triggering operation returns.
type Subscriber func(State)

// Observer receives verification lifecycle hooks. Used for metrics.
type Observer interface {
	CheckStarted()
	CheckFinished(err error)
}

// Option configures a Store.
type Option func(*Store)

// WithTokenStore attaches the XSRF token store cleared on logout.
func WithTokenStore(t TokenRemover) Option {
	return func(s *Store) { s.tokens = t }
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(s *Store) { s.log = log }
}

// WithNotifier attaches an alert sink that receives check and login
// failures. The store never renders anything itself.
func WithNotifier(n toast.Notifier) Option {
	return func(s *Store) { s.notifier = n }
}

// WithObserver attaches a metrics observer.
func WithObserver(o Observer) Option {
	return func(s *Store) { s.observer = o }
}

// WithSnapshots attaches a snapshot backend keyed by the visitor
// session ID. Resolved states are persisted best-effort; Seed reads
// them back on a fresh load.
func WithSnapshots(store SnapshotStore, sid string) Option {
	return func(s *Store) {
		s.snapshots = store
		s.sid = sid
	}
}

// flight is a de-duplicated in-flight verification. Every concurrent
// CheckAuth caller blocks on done and shares the one result.
type flight struct {
	done chan struct{}
	user *User
	err  error
}

type subscriber struct {
	id uint64
	fn Subscriber
}

// Store is the process-wide authentication state for one application
// load. All methods are safe for concurrent use.
type Store struct {
	api      API
	tokens   TokenRemover
	log      *slog.Logger
	notifier toast.Notifier
	observer Observer

	snapshots SnapshotStore
	sid       string

	mu      sync.Mutex
	user    *User
	status  Status
	lastErr error

	// gen stamps every operation; a resolution whose stamp no longer
	// matches has been superseded and is discarded.
	gen uint64

	// inflight is the current CheckAuth flight, nil when idle.
	inflight *flight

	subMu   sync.Mutex
	subs    []subscriber
	nextSub uint64
}

// New creates an empty store (StatusUnknown, no user).
func New(api API, opts ...Option) *Store {
	s := &Store{
		api:    api,
		status: StatusUnknown,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	return s
}

// State returns the current state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{User: s.user, Status: s.status, LastErr: s.lastErr}
}

// Subscribe registers fn and returns a cancel function. fn is not
// called with the current state; read State first if needed.
func (s *Store) Subscribe(fn Subscriber) func() {
	s.subMu.Lock()
	s.nextSub++
	id := s.nextSub
	s.subs = append(s.subs, subscriber{id: id, fn: fn})
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		for i, sub := range s.subs {
			if sub.id == id {
				s.subs[i] = s.subs[len(s.subs)-1]
				s.subs = s.subs[:len(s.subs)-1]
				return
			}
		}
	}
}

// notify runs all subscribers with the current state. Copy before
// notify so callbacks can subscribe or unsubscribe without deadlock.
func (s *Store) notify() {
	state := s.State()

	s.subMu.Lock()
	subs := make([]subscriber, len(s.subs))
	copy(subs, s.subs)
	s.subMu.Unlock()

	for _, sub := range subs {
		sub.fn(state)
	}
}

// CheckAuth verifies the session against the identity service.
//
// If a verification is already in flight the caller joins it and
// receives its result; at most one FetchCurrentUser request exists at
// a time. A (nil, nil) return means the visitor is confirmed
// anonymous. The store never retries on its own.
func (s *Store) CheckAuth(ctx context.Context) (*User, error) {
	s.mu.Lock()
	if f := s.inflight; f != nil {
		s.mu.Unlock()
		<-f.done
		return f.user, f.err
	}

	s.gen++
	gen := s.gen
	f := &flight{done: make(chan struct{})}
	s.inflight = f
	s.status = StatusChecking
	s.mu.Unlock()
	s.notify()
	if s.observer != nil {
		s.observer.CheckStarted()
	}

	user, err := s.api.FetchCurrentUser(ctx)

	if s.observer != nil {
		s.observer.CheckFinished(err)
	}

	s.mu.Lock()
	if s.inflight == f {
		s.inflight = nil
	}
	stale := gen != s.gen
	if !stale {
		if err != nil {
			s.status = StatusError
			s.lastErr = err
		} else {
			s.user = user
			s.status = StatusResolved
			s.lastErr = nil
		}
	}
	s.mu.Unlock()

	if !stale {
		s.notify()
		if err != nil {
			s.alert(toast.LevelError, "session check failed")
		} else {
			s.persist(ctx)
		}
	} else {
		s.log.Debug("session: discarding superseded check result")
	}

	f.user, f.err = user, err
	close(f.done)
	return user, err
}

// Login authenticates the visitor. On failure an existing valid user
// is left untouched: a failed login attempt while already
// authenticated must not log the visitor out.
func (s *Store) Login(ctx context.Context, creds Credentials) (*User, error) {
	return s.authenticate(ctx, func(ctx context.Context) (*User, error) {
		return s.api.Login(ctx, creds)
	})
}

// Register creates an account and authenticates the visitor. Failure
// semantics match Login.
func (s *Store) Register(ctx context.Context, reg Registration) (*User, error) {
	return s.authenticate(ctx, func(ctx context.Context) (*User, error) {
		return s.api.Register(ctx, reg)
	})
}

func (s *Store) authenticate(ctx context.Context, call func(context.Context) (*User, error)) (*User, error) {
	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	user, err := call(ctx)

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		s.log.Debug("session: discarding superseded auth result")
		return user, err
	}
	if err != nil {
		s.lastErr = err
		if s.user == nil {
			s.status = StatusError
		}
		s.mu.Unlock()
		s.notify()
		s.alert(toast.LevelError, "authentication failed")
		return nil, err
	}
	s.user = user
	s.status = StatusResolved
	s.lastErr = nil
	s.mu.Unlock()
	s.notify()
	s.persist(ctx)
	return user, nil
}

// Logout ends the session. The server call is best-effort: its outcome
// is ignored because the visitor's intent is to leave regardless. The
// XSRF token is removed and local state resolves anonymous.
func (s *Store) Logout(ctx context.Context) {
	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	if err := s.api.Logout(ctx); err != nil {
		s.log.Warn("session: server logout failed, clearing local state anyway", "error", err)
	}

	s.mu.Lock()
	if gen != s.gen {
		// A newer operation started during the server call; its
		// outcome wins.
		s.mu.Unlock()
		return
	}
	if s.tokens != nil {
		s.tokens.Remove()
	}
	s.user = nil
	s.status = StatusResolved
	s.lastErr = nil
	s.mu.Unlock()
	s.notify()
	s.dropSnapshot(ctx)
}

// Seed loads the visitor's last persisted snapshot into an untouched
// store (StatusUnknown only). It exists to avoid flashing anonymous UI
// on reload; the snapshot is a hint, not an authority, and callers
// must still run CheckAuth.
func (s *Store) Seed(ctx context.Context) bool {
	if s.snapshots == nil || s.sid == "" {
		return false
	}

	s.mu.Lock()
	if s.status != StatusUnknown {
		s.mu.Unlock()
		return false
	}
	s.mu.Unlock()

	snap, err := s.snapshots.Load(ctx, s.sid)
	if err != nil {
		s.log.Warn("session: snapshot load failed", "error", err)
		return false
	}
	if snap == nil {
		return false
	}

	s.mu.Lock()
	if s.status != StatusUnknown {
		// Something else resolved the store while we were loading.
		s.mu.Unlock()
		return false
	}
	s.user = snap.User
	s.status = StatusResolved
	s.mu.Unlock()
	s.notify()
	return true
}

func (s *Store) persist(ctx context.Context) {
	if s.snapshots == nil || s.sid == "" {
		return
	}
	state := s.State()
	if state.Status != StatusResolved {
		return
	}
	if err := s.snapshots.Save(ctx, s.sid, Snapshot{User: state.User}); err != nil {
		s.log.Warn("session: snapshot save failed", "error", err)
	}
}

func (s *Store) dropSnapshot(ctx context.Context) {
	if s.snapshots == nil || s.sid == "" {
		return
	}
	if err := s.snapshots.Delete(ctx, s.sid); err != nil {
		s.log.Warn("session: snapshot delete failed", "error", err)
	}
}

func (s *Store) alert(level toast.Level, message string) {
	if s.notifier != nil {
		s.notifier.Notify(level, message)
	}
}
