package token

import (
	"net/http"
	"sync"
)

// HTTPJar adapts one HTTP exchange to the Jar interface: reads come
// from the inbound request, writes become Set-Cookie headers on the
// response. Writes shadow reads within the same exchange, so a token
// set moments ago reads back without a round trip.
type HTTPJar struct {
	r *http.Request
	w http.ResponseWriter

	mu      sync.Mutex
	written map[string]*http.Cookie
}

// NewHTTPJar creates a jar bound to a request/response pair.
func NewHTTPJar(w http.ResponseWriter, r *http.Request) *HTTPJar {
	return &HTTPJar{r: r, w: w, written: make(map[string]*http.Cookie)}
}

// Get implements Jar.
func (j *HTTPJar) Get(name string) (string, bool) {
	j.mu.Lock()
	if c, ok := j.written[name]; ok {
		j.mu.Unlock()
		if c.MaxAge < 0 {
			return "", false
		}
		return c.Value, true
	}
	j.mu.Unlock()

	c, err := j.r.Cookie(name)
	if err != nil {
		return "", false
	}
	return c.Value, true
}

// Set implements Jar.
func (j *HTTPJar) Set(cookie *http.Cookie) {
	j.mu.Lock()
	j.written[cookie.Name] = cookie
	j.mu.Unlock()
	http.SetCookie(j.w, cookie)
}

// MemJar is an in-memory Jar for tests and non-HTTP callers.
type MemJar struct {
	mu      sync.Mutex
	cookies map[string]string
}

// NewMemJar creates an empty in-memory jar.
func NewMemJar() *MemJar {
	return &MemJar{cookies: make(map[string]string)}
}

// Get implements Jar.
func (j *MemJar) Get(name string) (string, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	value, ok := j.cookies[name]
	return value, ok
}

// Set implements Jar.
func (j *MemJar) Set(cookie *http.Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if cookie.MaxAge < 0 {
		delete(j.cookies, cookie.Name)
		return
	}
	j.cookies[cookie.Name] = cookie.Value
}
