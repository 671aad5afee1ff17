package main

import (
	"container/list"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hamrah-app/hamrah/internal/config"
	"github.com/hamrah-app/hamrah/pkg/identity"
	"github.com/hamrah-app/hamrah/pkg/middleware"
	"github.com/hamrah-app/hamrah/pkg/session"
	"github.com/hamrah-app/hamrah/pkg/toast"
	"github.com/hamrah-app/hamrah/pkg/token"
)

// sidCookie keys per-visitor state on this frontend. It is distinct
// from the auth cookie: it exists for anonymous visitors too.
const sidCookie = "hamrah_sid"

// Visitor registry limits. The sid cookie is client-chosen, so the
// registry must survive a client that mints a fresh sid per request:
// idle visitors are evicted LRU-first, and the total count is capped.
const (
	defaultMaxVisitors     = 10000
	defaultVisitorIdleTTL  = time.Hour
	defaultCleanupInterval = time.Minute
)

// app owns the per-visitor session stores. Each visitor gets one
// store, one token store, and one identity client with its own cookie
// jar, created lazily on first contact and evicted when idle or when
// the registry cap is exceeded.
type app struct {
	cfg     *config.Config
	log     *slog.Logger
	snaps   session.SnapshotStore
	metrics *middleware.Metrics
	hub     *session.SyncHub

	maxVisitors int
	idleTTL     time.Duration

	mu       sync.Mutex
	visitors map[string]*visitor

	// lru orders visitors by last contact (front = most recent).
	lru   *list.List
	index map[string]*list.Element

	done    chan struct{}
	stopped bool
}

type visitor struct {
	sid      string
	store    *session.Store
	tokens   *token.Store
	unwatch  func()
	lastSeen time.Time
}

func newApp(cfg *config.Config, log *slog.Logger, snaps session.SnapshotStore, metrics *middleware.Metrics, hub *session.SyncHub) *app {
	a := &app{
		cfg:         cfg,
		log:         log,
		snaps:       snaps,
		metrics:     metrics,
		hub:         hub,
		maxVisitors: defaultMaxVisitors,
		idleTTL:     defaultVisitorIdleTTL,
		visitors:    make(map[string]*visitor),
		lru:         list.New(),
		index:       make(map[string]*list.Element),
		done:        make(chan struct{}),
	}
	go a.cleanupLoop(defaultCleanupInterval)
	return a
}

// visitor returns the state for sid, creating it on first contact.
// Every contact moves the visitor to the front of the LRU order.
func (a *app) visitor(sid string) *visitor {
	a.mu.Lock()
	defer a.mu.Unlock()

	if v, ok := a.visitors[sid]; ok {
		v.lastSeen = time.Now()
		a.lru.MoveToFront(a.index[sid])
		return v
	}

	tokens := token.NewStore(token.NewMemJar())

	// Each visitor's client carries its own cookie jar so the
	// identity service's session cookie stays with that visitor.
	jar, _ := cookiejar.New(nil)
	api := identity.NewClient(a.cfg.IdentityURL, tokens,
		identity.WithLogger(a.log),
		identity.WithHTTPClient(&http.Client{Jar: jar, Timeout: 15 * time.Second}),
	)

	store := session.New(api,
		session.WithTokenStore(tokens),
		session.WithLogger(a.log),
		session.WithObserver(a.metrics),
		session.WithSnapshots(a.snaps, sid),
		session.WithNotifier(toast.Logger(a.log)),
	)

	v := &visitor{
		sid:      sid,
		store:    store,
		tokens:   tokens,
		unwatch:  a.hub.Watch(store, sid),
		lastSeen: time.Now(),
	}
	a.visitors[sid] = v
	a.index[sid] = a.lru.PushFront(sid)

	for len(a.visitors) > a.maxVisitors {
		a.evictOneLocked()
	}
	return v
}

// evictOneLocked drops the least recently seen visitor. Must be
// called with the lock held.
func (a *app) evictOneLocked() {
	back := a.lru.Back()
	if back == nil {
		return
	}
	a.removeLocked(back.Value.(string), "visitor_limit_exceeded")
}

func (a *app) removeLocked(sid, reason string) {
	v, ok := a.visitors[sid]
	if !ok {
		return
	}
	v.unwatch()
	delete(a.visitors, sid)
	if elem, ok := a.index[sid]; ok {
		a.lru.Remove(elem)
		delete(a.index, sid)
	}
	a.log.Debug("evicted visitor", "sid", sid, "reason", reason)
}

// evictIdle drops every visitor whose last contact is older than the
// idle TTL, walking from the least recently seen end.
func (a *app) evictIdle(now time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()

	cutoff := now.Add(-a.idleTTL)
	for {
		back := a.lru.Back()
		if back == nil {
			return
		}
		sid := back.Value.(string)
		v := a.visitors[sid]
		if v == nil {
			a.lru.Remove(back)
			delete(a.index, sid)
			continue
		}
		if !v.lastSeen.Before(cutoff) {
			return
		}
		a.removeLocked(sid, "idle")
	}
}

func (a *app) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-a.done:
			return
		case now := <-ticker.C:
			a.evictIdle(now)
		}
	}
}

// Close stops the cleanup loop and detaches every visitor from the
// sync hub. Idempotent.
func (a *app) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopped {
		return
	}
	a.stopped = true
	close(a.done)
	for sid := range a.visitors {
		a.removeLocked(sid, "shutdown")
	}
}

// sid returns the visitor ID, assigning one when absent.
func (a *app) sid(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(sidCookie); err == nil && c.Value != "" {
		return c.Value
	}
	sid := uuid.NewString()
	http.SetCookie(w, newSIDCookie(sid))
	return sid
}

func newSIDCookie(sid string) *http.Cookie {
	return &http.Cookie{
		Name:     sidCookie,
		Value:    sid,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

// setAuthCookie writes or clears the presence cookie the route guard
// tests. Its value is opaque and never parsed.
func (a *app) setAuthCookie(w http.ResponseWriter, present bool) {
	cookie := &http.Cookie{
		Name:     a.cfg.Guard.AuthCookie,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if present {
		cookie.Value = uuid.NewString()
	} else {
		cookie.MaxAge = -1
	}
	http.SetCookie(w, cookie)
}
