package identity

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Failure kinds surfaced by the client. Callers branch with errors.Is;
// the session store records them, guards never see them.
var (
	// ErrInvalidCredentials covers rejected login and register
	// credentials (4xx from the identity service).
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrValidationFailed covers field-level register failures. The
	// concrete error is a *FieldErrors wrapping this sentinel.
	ErrValidationFailed = errors.New("validation failed")

	// ErrMissingToken means a mutating call was rejected because no
	// XSRF token accompanied it.
	ErrMissingToken = errors.New("missing xsrf token")

	// ErrServiceUnavailable covers transport failures, timeouts, and
	// 5xx responses. It must never be read as "no session".
	ErrServiceUnavailable = errors.New("identity service unavailable")
)

// FieldErrors carries per-field validation messages from register.
type FieldErrors struct {
	Fields map[string][]string
}

// Error implements error.
func (e *FieldErrors) Error() string {
	if len(e.Fields) == 0 {
		return ErrValidationFailed.Error()
	}
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return fmt.Sprintf("%v: %s", ErrValidationFailed, strings.Join(names, ", "))
}

// Unwrap makes errors.Is(err, ErrValidationFailed) hold.
func (e *FieldErrors) Unwrap() error {
	return ErrValidationFailed
}
