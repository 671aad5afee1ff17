// Package identity is the HTTP client for the external identity
// service. It implements the session.API contract plus the role
// verification used by the route guard.
//
// The service itself is an external collaborator: this package only
// defines how the frontend consumes it. Mutating calls carry the XSRF
// token from pkg/token in the X-XSRF-TOKEN header, and a token rotated
// by the server in a response cookie is adopted automatically.
//
// Failure taxonomy: ErrInvalidCredentials, ErrValidationFailed,
// ErrMissingToken, ErrServiceUnavailable. "No session" is not a
// failure; FetchCurrentUser reports it as (nil, nil).
package identity
