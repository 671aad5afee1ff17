package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hamrah-app/hamrah/internal/config"
	"github.com/hamrah-app/hamrah/pkg/middleware"
	"github.com/hamrah-app/hamrah/pkg/session"
)

// newTestApp wires an app against a scripted identity service.
func newTestApp(t *testing.T, identityHandler http.Handler) *app {
	t.Helper()
	srv := httptest.NewServer(identityHandler)
	t.Cleanup(srv.Close)

	cfg := config.Default()
	cfg.IdentityURL = srv.URL

	snaps := session.NewMemorySnapshots()
	t.Cleanup(func() { snaps.Close() })

	hub := session.NewSyncHub()
	t.Cleanup(func() { hub.Close() })

	metrics := middleware.NewMetrics(middleware.WithRegistry(prometheus.NewRegistry()))
	log := slog.New(slog.NewTextHandler(testWriter{t}, nil))

	a := newApp(cfg, log, snaps, metrics, hub)
	t.Cleanup(a.Close)
	return a
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(strings.TrimSuffix(string(p), "\n"))
	return len(p), nil
}

func identityStub(user string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /login", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(user))
	})
	mux.HandleFunc("GET /users/check", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"user":null}`))
	})
	mux.HandleFunc("POST /logout", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

func decodeState(t *testing.T, rec *httptest.ResponseRecorder) stateResponse {
	t.Helper()
	var resp stateResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func cookieByName(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestHandleState_AssignsVisitorCookie(t *testing.T) {
	a := newTestApp(t, identityStub(""))

	rec := httptest.NewRecorder()
	a.handleState(rec, httptest.NewRequest(http.MethodGet, "/api/session", nil))

	if c := cookieByName(rec, sidCookie); c == nil || c.Value == "" {
		t.Fatal("expected visitor cookie assigned")
	}
	if resp := decodeState(t, rec); resp.Status != "resolved" || resp.User != nil {
		t.Errorf("expected resolved anonymous, got %+v", resp)
	}
}

func TestHandleLogin_SetsAuthCookieAndRedirect(t *testing.T) {
	a := newTestApp(t, identityStub(`{"user":{"id":"1","name":"Sara","role":"user"}}`))

	body := strings.NewReader(`{"email":"a@b.ir","password":"x"}`)
	rec := httptest.NewRecorder()
	a.handleLogin(rec, httptest.NewRequest(http.MethodPost, "/api/session/login?redirect=%2Fprofile", body))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	resp := decodeState(t, rec)
	if resp.User == nil || resp.User.ID != "1" {
		t.Errorf("unexpected user %+v", resp.User)
	}
	if resp.Redirect != "/profile" {
		t.Errorf("expected redirect /profile, got %q", resp.Redirect)
	}

	auth := cookieByName(rec, a.cfg.Guard.AuthCookie)
	if auth == nil || auth.Value == "" {
		t.Fatal("expected auth cookie set")
	}
	if !auth.HttpOnly {
		t.Error("auth cookie must be HttpOnly")
	}
}

func TestHandleLogin_ExternalRedirectFallsBack(t *testing.T) {
	a := newTestApp(t, identityStub(`{"user":{"id":"1","role":"user"}}`))

	body := strings.NewReader(`{"email":"a@b.ir","password":"x"}`)
	rec := httptest.NewRecorder()
	a.handleLogin(rec, httptest.NewRequest(http.MethodPost,
		"/api/session/login?redirect=https%3A%2F%2Fevil.example", body))

	if resp := decodeState(t, rec); resp.Redirect != a.cfg.Guard.DashboardPath {
		t.Errorf("external target must fall back to dashboard, got %q", resp.Redirect)
	}
}

func TestHandleLogin_InvalidCredentials(t *testing.T) {
	a := newTestApp(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	body := strings.NewReader(`{"email":"a@b.ir","password":"wrong"}`)
	rec := httptest.NewRecorder()
	a.handleLogin(rec, httptest.NewRequest(http.MethodPost, "/api/session/login", body))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
	if cookieByName(rec, a.cfg.Guard.AuthCookie) != nil {
		t.Error("failed login must not set the auth cookie")
	}
}

func TestHandleLogin_ValidationErrors(t *testing.T) {
	a := newTestApp(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"errors":{"email":["required"]}}`))
	}))

	rec := httptest.NewRecorder()
	a.handleRegister(rec, httptest.NewRequest(http.MethodPost, "/api/session/register",
		strings.NewReader(`{}`)))

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	var resp struct {
		Fields map[string][]string `json:"fields"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got := resp.Fields["email"]; len(got) != 1 || got[0] != "required" {
		t.Errorf("unexpected fields %v", resp.Fields)
	}
}

func TestHandleLogin_MalformedBody(t *testing.T) {
	a := newTestApp(t, identityStub(""))

	rec := httptest.NewRecorder()
	a.handleLogin(rec, httptest.NewRequest(http.MethodPost, "/api/session/login",
		strings.NewReader(`{not json`)))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestHandleLogout_ClearsAuthCookie(t *testing.T) {
	a := newTestApp(t, identityStub(""))

	rec := httptest.NewRecorder()
	a.handleLogout(rec, httptest.NewRequest(http.MethodPost, "/api/session/logout", nil))

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	auth := cookieByName(rec, a.cfg.Guard.AuthCookie)
	if auth == nil || auth.MaxAge != -1 {
		t.Errorf("expected auth cookie expired, got %+v", auth)
	}
}

func TestVisitor_ReusedAcrossRequests(t *testing.T) {
	a := newTestApp(t, identityStub(""))

	first := a.visitor("sid-1")
	second := a.visitor("sid-1")
	other := a.visitor("sid-2")

	if first != second {
		t.Error("same sid must map to the same visitor")
	}
	if first == other {
		t.Error("distinct sids must not share a visitor")
	}
}
