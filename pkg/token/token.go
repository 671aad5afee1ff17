// Package token mirrors the XSRF token cookie. The store cannot fail:
// it only reflects cookie storage state.
package token

import "net/http"

// CookieName is the cookie the identity service issues the XSRF token
// under. It is not HttpOnly: the client must be able to read it back
// into the request header (double submit).
const CookieName = "XSRF-TOKEN"

// HeaderName is the request header the token is echoed into on every
// mutating call.
const HeaderName = "X-XSRF-TOKEN"

// Jar is the cookie storage the token store sits on.
type Jar interface {
	// Get returns the named cookie's value, reporting presence.
	Get(name string) (string, bool)

	// Set writes a cookie.
	Set(cookie *http.Cookie)
}

// Store reads, writes, and removes the XSRF token. Every method is
// safe to call at any time; none has failure semantics.
type Store struct {
	jar Jar
}

// NewStore creates a token store over the given jar.
func NewStore(jar Jar) *Store {
	return &Store{jar: jar}
}

// Get returns the token, reporting whether a non-empty one is present.
func (s *Store) Get() (string, bool) {
	value, ok := s.jar.Get(CookieName)
	if !ok || value == "" {
		return "", false
	}
	return value, true
}

// Set overwrites the token cookie, scoped to the whole origin.
func (s *Store) Set(token string) {
	s.jar.Set(&http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: false,
		SameSite: http.SameSiteLaxMode,
	})
}

// Remove expires the token cookie immediately. Idempotent: removing an
// absent token is observably a no-op.
func (s *Store) Remove() {
	s.jar.Set(&http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: false,
		SameSite: http.SameSiteLaxMode,
	})
}
