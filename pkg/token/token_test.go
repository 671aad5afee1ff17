package token_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hamrah-app/hamrah/pkg/token"
)

func TestGet_AbsentToken(t *testing.T) {
	store := token.NewStore(token.NewMemJar())

	if value, ok := store.Get(); ok || value != "" {
		t.Fatalf("expected no token, got %q", value)
	}
}

func TestSetThenGet(t *testing.T) {
	store := token.NewStore(token.NewMemJar())

	store.Set("abc123")

	value, ok := store.Get()
	if !ok {
		t.Fatal("expected token present")
	}
	if value != "abc123" {
		t.Errorf("expected abc123, got %q", value)
	}
}

func TestSet_Overwrites(t *testing.T) {
	store := token.NewStore(token.NewMemJar())

	store.Set("first")
	store.Set("second")

	value, _ := store.Get()
	if value != "second" {
		t.Errorf("expected second, got %q", value)
	}
}

func TestRemove(t *testing.T) {
	store := token.NewStore(token.NewMemJar())

	store.Set("abc123")
	store.Remove()

	if _, ok := store.Get(); ok {
		t.Fatal("expected token removed")
	}
}

func TestRemove_Idempotent(t *testing.T) {
	store := token.NewStore(token.NewMemJar())

	// Removing an absent token must be a no-op.
	store.Remove()
	store.Remove()

	if _, ok := store.Get(); ok {
		t.Fatal("expected no token")
	}
}

func TestHTTPJar_ReadsRequestCookie(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: token.CookieName, Value: "from-browser"})
	w := httptest.NewRecorder()

	store := token.NewStore(token.NewHTTPJar(w, r))

	value, ok := store.Get()
	if !ok || value != "from-browser" {
		t.Fatalf("expected from-browser, got %q (present=%v)", value, ok)
	}
}

func TestHTTPJar_SetWritesResponseCookie(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()

	store := token.NewStore(token.NewHTTPJar(w, r))
	store.Set("fresh")

	cookies := w.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected 1 cookie, got %d", len(cookies))
	}
	c := cookies[0]
	if c.Name != token.CookieName || c.Value != "fresh" {
		t.Errorf("unexpected cookie %s=%s", c.Name, c.Value)
	}
	if c.Path != "/" {
		t.Errorf("expected path /, got %q", c.Path)
	}
	if c.HttpOnly {
		t.Error("token cookie must be readable by the client")
	}
}

func TestHTTPJar_WriteShadowsRead(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: token.CookieName, Value: "stale"})
	w := httptest.NewRecorder()

	store := token.NewStore(token.NewHTTPJar(w, r))
	store.Set("rotated")

	value, _ := store.Get()
	if value != "rotated" {
		t.Errorf("expected rotated, got %q", value)
	}
}

func TestHTTPJar_RemoveShadowsRequestCookie(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: token.CookieName, Value: "stale"})
	w := httptest.NewRecorder()

	store := token.NewStore(token.NewHTTPJar(w, r))
	store.Remove()

	if _, ok := store.Get(); ok {
		t.Fatal("removed token must not be readable again")
	}

	cookies := w.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected 1 cookie, got %d", len(cookies))
	}
	if cookies[0].MaxAge >= 0 {
		t.Errorf("expected expired cookie, got MaxAge=%d", cookies[0].MaxAge)
	}
}
