package main

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/hamrah-app/hamrah/pkg/identity"
	"github.com/hamrah-app/hamrah/pkg/routepath"
	"github.com/hamrah-app/hamrah/pkg/session"
)

// stateResponse is the JSON shape of the session state. Redirect is
// only set on successful login/register: the path the client should
// navigate to next.
type stateResponse struct {
	Status   string        `json:"status"`
	User     *session.User `json:"user,omitempty"`
	Error    string        `json:"error,omitempty"`
	Redirect string        `json:"redirect,omitempty"`
}

func stateJSON(state session.State) stateResponse {
	resp := stateResponse{Status: state.Status.String()}
	if state.User != nil {
		// Copy so the store's user is never mutated from a handler.
		u := *state.User
		u.RawRole = u.Role.String()
		resp.User = &u
	}
	if state.LastErr != nil {
		resp.Error = state.LastErr.Error()
	}
	return resp
}

// handleState returns the current session state. A store that has
// never been checked is seeded from its snapshot and then verified.
func (a *app) handleState(w http.ResponseWriter, r *http.Request) {
	v := a.visitor(a.sid(w, r))

	if v.store.State().Status == session.StatusUnknown {
		v.store.Seed(r.Context())
		v.store.CheckAuth(r.Context())
	}

	writeJSON(w, http.StatusOK, stateJSON(v.store.State()))
}

// handleCheck forces a verification round trip.
func (a *app) handleCheck(w http.ResponseWriter, r *http.Request) {
	v := a.visitor(a.sid(w, r))
	v.store.CheckAuth(r.Context())
	writeJSON(w, http.StatusOK, stateJSON(v.store.State()))
}

func (a *app) handleLogin(w http.ResponseWriter, r *http.Request) {
	var creds session.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeJSON(w, http.StatusBadRequest, stateResponse{Error: "malformed body"})
		return
	}

	v := a.visitor(a.sid(w, r))
	if _, err := v.store.Login(r.Context(), creds); err != nil {
		a.writeAuthError(w, err)
		return
	}

	a.setAuthCookie(w, true)
	resp := stateJSON(v.store.State())
	resp.Redirect = a.postLoginTarget(r)
	writeJSON(w, http.StatusOK, resp)
}

func (a *app) handleRegister(w http.ResponseWriter, r *http.Request) {
	var reg session.Registration
	if err := json.NewDecoder(r.Body).Decode(&reg); err != nil {
		writeJSON(w, http.StatusBadRequest, stateResponse{Error: "malformed body"})
		return
	}

	v := a.visitor(a.sid(w, r))
	if _, err := v.store.Register(r.Context(), reg); err != nil {
		a.writeAuthError(w, err)
		return
	}

	a.setAuthCookie(w, true)
	resp := stateJSON(v.store.State())
	resp.Redirect = a.postLoginTarget(r)
	writeJSON(w, http.StatusOK, resp)
}

// postLoginTarget resolves where the client goes after authenticating.
// The redirect query parameter carries the path the guard bounced the
// visitor off; anything that is not a local path falls back to the
// dashboard.
func (a *app) postLoginTarget(r *http.Request) string {
	if target := r.URL.Query().Get("redirect"); target != "" {
		if path, err := routepath.ValidateLocalRedirect(target); err == nil {
			return path
		}
		a.log.Warn("login: discarding non-local redirect target", "target", target)
	}
	return a.cfg.Guard.DashboardPath
}

func (a *app) handleLogout(w http.ResponseWriter, r *http.Request) {
	v := a.visitor(a.sid(w, r))
	v.store.Logout(r.Context())
	a.setAuthCookie(w, false)
	w.WriteHeader(http.StatusNoContent)
}

func (a *app) handleSync(w http.ResponseWriter, r *http.Request) {
	// The upgrade hijacks the connection, so a Set-Cookie written to w
	// would never reach the browser; a first-contact sid rides on the
	// handshake response instead.
	var respHeader http.Header
	sid := ""
	if c, err := r.Cookie(sidCookie); err == nil && c.Value != "" {
		sid = c.Value
	} else {
		sid = uuid.NewString()
		respHeader = http.Header{}
		respHeader.Add("Set-Cookie", newSIDCookie(sid).String())
	}

	// Ensure the visitor exists so transitions have a store to come from.
	a.visitor(sid)
	a.hub.Handler(sid, respHeader)(w, r)
}

func (a *app) writeAuthError(w http.ResponseWriter, err error) {
	var fieldErrs *identity.FieldErrors
	switch {
	case errors.As(err, &fieldErrs):
		writeJSON(w, http.StatusUnprocessableEntity, struct {
			Error  string              `json:"error"`
			Fields map[string][]string `json:"fields,omitempty"`
		}{Error: "validation failed", Fields: fieldErrs.Fields})
	case errors.Is(err, identity.ErrInvalidCredentials):
		writeJSON(w, http.StatusUnauthorized, stateResponse{Error: "invalid credentials"})
	case errors.Is(err, identity.ErrMissingToken):
		writeJSON(w, http.StatusForbidden, stateResponse{Error: "missing token"})
	default:
		writeJSON(w, http.StatusBadGateway, stateResponse{Error: "identity service unavailable"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
