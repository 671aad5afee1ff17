package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hamrah-app/hamrah/pkg/session"
	"github.com/hamrah-app/hamrah/pkg/token"
)

// Service endpoints, relative to the base URL.
const (
	loginPath    = "/login"
	registerPath = "/register"
	logoutPath   = "/logout"
	checkPath    = "/users/check"
)

const defaultTimeout = 15 * time.Second

// tracerName identifies spans emitted by this package.
const tracerName = "hamrah/identity"

// TokenSource is the slice of the XSRF token store the client needs.
type TokenSource interface {
	Get() (string, bool)
	Set(token string)
}

// Client talks to the identity service. It implements session.API.
type Client struct {
	base   string
	hc     *http.Client
	tokens TokenSource
	log    *slog.Logger
	tracer trace.Tracer
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets the underlying HTTP client. The default has a
// 15s timeout; cookie handling is the caller's choice of jar.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.hc = hc }
}

// WithLogger sets the structured logger.
func WithLogger(log *slog.Logger) ClientOption {
	return func(c *Client) { c.log = log }
}

// NewClient creates a client for the identity service at base.
func NewClient(base string, tokens TokenSource, opts ...ClientOption) *Client {
	c := &Client{
		base:   strings.TrimRight(base, "/"),
		tokens: tokens,
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.hc == nil {
		c.hc = &http.Client{Timeout: defaultTimeout}
	}
	if c.log == nil {
		c.log = slog.Default()
	}
	return c
}

// userEnvelope is the service's response shape for identity payloads.
type userEnvelope struct {
	User *session.User `json:"user"`
}

// validationEnvelope is the service's 422 response shape.
type validationEnvelope struct {
	Errors map[string][]string `json:"errors"`
}

// Login authenticates with credentials. On success the server also
// rotates cookies; a rotated XSRF token is adopted into the token
// store.
func (c *Client) Login(ctx context.Context, creds session.Credentials) (*session.User, error) {
	return c.authCall(ctx, "identity.login", loginPath, creds)
}

// Register creates an account. ErrValidationFailed (a *FieldErrors)
// reports field-level rejections.
func (c *Client) Register(ctx context.Context, reg session.Registration) (*session.User, error) {
	return c.authCall(ctx, "identity.register", registerPath, reg)
}

// Logout invalidates the server-side session. Callers treat this as
// best-effort; the error is informational.
func (c *Client) Logout(ctx context.Context) error {
	ctx, span := c.tracer.Start(ctx, "identity.logout")
	defer span.End()

	resp, err := c.do(ctx, http.MethodPost, logoutPath, nil)
	if err != nil {
		return c.spanErr(span, fmt.Errorf("%w: %v", ErrServiceUnavailable, err))
	}
	defer drain(resp)

	c.adoptRotatedToken(resp)
	if resp.StatusCode >= 400 {
		return c.spanErr(span, c.mutationError(resp))
	}
	return nil
}

// FetchCurrentUser asks the service who the current visitor is.
// (nil, nil) means the server explicitly reported no session. Any
// transport or server failure is ErrServiceUnavailable and must not
// be read as logged out.
func (c *Client) FetchCurrentUser(ctx context.Context) (*session.User, error) {
	ctx, span := c.tracer.Start(ctx, "identity.check")
	defer span.End()

	resp, err := c.do(ctx, http.MethodGet, checkPath, nil)
	if err != nil {
		return nil, c.spanErr(span, fmt.Errorf("%w: %v", ErrServiceUnavailable, err))
	}
	defer drain(resp)

	c.adoptRotatedToken(resp)

	switch {
	case resp.StatusCode == http.StatusOK:
		user, err := decodeUser(resp.Body)
		if err != nil {
			return nil, c.spanErr(span, fmt.Errorf("%w: %v", ErrServiceUnavailable, err))
		}
		span.SetAttributes(attribute.Bool("identity.authenticated", user != nil))
		return user, nil
	case resp.StatusCode == http.StatusNoContent,
		resp.StatusCode == http.StatusUnauthorized:
		// Explicit "no session".
		span.SetAttributes(attribute.Bool("identity.authenticated", false))
		return nil, nil
	default:
		return nil, c.spanErr(span, fmt.Errorf("%w: status %d", ErrServiceUnavailable, resp.StatusCode))
	}
}

// VerifyRole checks the role of the session carried by the given
// cookies. Every failure path returns an error so the caller can fail
// closed; a successful call returns the parsed role, which may still
// be anonymous.
func (c *Client) VerifyRole(ctx context.Context, cookies []*http.Cookie) (session.Role, error) {
	ctx, span := c.tracer.Start(ctx, "identity.verify_role")
	defer span.End()

	req, err := c.newRequest(ctx, http.MethodGet, checkPath, nil)
	if err != nil {
		return session.RoleAnonymous, c.spanErr(span, err)
	}
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		c.log.Warn("identity: role verification request failed", "error", err)
		return session.RoleAnonymous, c.spanErr(span, fmt.Errorf("%w: %v", ErrServiceUnavailable, err))
	}
	defer drain(resp)

	if resp.StatusCode != http.StatusOK {
		return session.RoleAnonymous, c.spanErr(span, fmt.Errorf("%w: status %d", ErrServiceUnavailable, resp.StatusCode))
	}

	user, err := decodeUser(resp.Body)
	if err != nil {
		return session.RoleAnonymous, c.spanErr(span, fmt.Errorf("%w: %v", ErrServiceUnavailable, err))
	}
	if user == nil {
		return session.RoleAnonymous, nil
	}
	span.SetAttributes(attribute.String("identity.role", user.Role.String()))
	return user.Role, nil
}

// authCall is the shared login/register path.
func (c *Client) authCall(ctx context.Context, spanName, path string, payload any) (*session.User, error) {
	ctx, span := c.tracer.Start(ctx, spanName)
	defer span.End()

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, c.spanErr(span, err)
	}

	resp, err := c.do(ctx, http.MethodPost, path, bytes.NewReader(body))
	if err != nil {
		return nil, c.spanErr(span, fmt.Errorf("%w: %v", ErrServiceUnavailable, err))
	}
	defer drain(resp)

	c.adoptRotatedToken(resp)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		user, err := decodeUser(resp.Body)
		if err != nil || user == nil {
			return nil, c.spanErr(span, fmt.Errorf("%w: malformed user payload", ErrServiceUnavailable))
		}
		return user, nil
	case resp.StatusCode == http.StatusUnprocessableEntity:
		var env validationEnvelope
		if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
			return nil, c.spanErr(span, &FieldErrors{})
		}
		return nil, c.spanErr(span, &FieldErrors{Fields: env.Errors})
	default:
		return nil, c.spanErr(span, c.mutationError(resp))
	}
}

// mutationError maps a non-2xx mutating response to a failure kind.
func (c *Client) mutationError(resp *http.Response) error {
	_, hadToken := c.tokens.Get()
	switch {
	case resp.StatusCode == 419,
		resp.StatusCode == http.StatusForbidden && !hadToken:
		// 419 is the service's CSRF rejection; a 403 without a token
		// on hand means the same thing.
		return ErrMissingToken
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %d", ErrServiceUnavailable, resp.StatusCode)
	default:
		return ErrInvalidCredentials
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method != http.MethodGet && method != http.MethodHead {
		// The call proceeds without a token when none is held; the
		// service rejects it and that surfaces as ErrMissingToken.
		if value, ok := c.tokens.Get(); ok {
			req.Header.Set(token.HeaderName, value)
		}
	}
	return req, nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return nil, err
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		c.log.Warn("identity: request failed", "method", method, "path", path, "error", err)
	}
	return resp, err
}

// adoptRotatedToken mirrors a server-issued XSRF cookie into the token
// store so the next mutating call signs with the current value.
func (c *Client) adoptRotatedToken(resp *http.Response) {
	for _, cookie := range resp.Cookies() {
		if cookie.Name == token.CookieName && cookie.Value != "" {
			c.tokens.Set(cookie.Value)
			c.log.Debug("identity: adopted rotated xsrf token")
			return
		}
	}
}

func (c *Client) spanErr(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func decodeUser(r io.Reader) (*session.User, error) {
	var env userEnvelope
	if err := json.NewDecoder(r).Decode(&env); err != nil {
		return nil, err
	}
	if env.User == nil {
		return nil, nil
	}
	role, err := session.ParseRole(env.User.RawRole)
	if err != nil {
		return nil, err
	}
	env.User.Role = role
	return env.User, nil
}

func drain(resp *http.Response) {
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	resp.Body.Close()
}
