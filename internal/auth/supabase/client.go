// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Solver Space Contributors

// Package supabase implements auth.Backend against a Supabase GoTrue
// server's REST API.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/samber/oops"

	"github.com/solverspace/solverspace/internal/auth"
	"github.com/solverspace/solverspace/internal/observability"
)

const defaultTimeout = 10 * time.Second

// Config holds the connection settings for a Supabase project.
type Config struct {
	// BaseURL is the project URL, e.g. https://xyzcompany.supabase.co.
	BaseURL string
	// APIKey is the project's anon (publishable) API key.
	APIKey string
	// HTTPClient overrides the default client when set.
	HTTPClient *http.Client
}

// Client talks to GoTrue and holds the access token of the signed-in
// identity. One Client serves one end-user session.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *slog.Logger

	mu          sync.Mutex
	accessToken string
}

// Ensure interface compliance
var _ auth.Backend = (*Client)(nil)

// NewClient creates a Client with a no-op logger.
func NewClient(cfg Config) (*Client, error) {
	return NewClientWithLogger(cfg, slog.New(slog.DiscardHandler))
}

// NewClientWithLogger creates a Client with the provided logger.
func NewClientWithLogger(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, oops.Errorf("supabase base URL is required")
	}
	if cfg.APIKey == "" {
		return nil, oops.Errorf("supabase API key is required")
	}
	if logger == nil {
		return nil, oops.Errorf("logger is required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    httpClient,
		logger:  logger,
	}, nil
}

// sessionResponse is the GoTrue token grant payload.
type sessionResponse struct {
	AccessToken  string          `json:"access_token"`
	RefreshToken string          `json:"refresh_token"`
	User         identityPayload `json:"user"`
}

type identityPayload struct {
	ID         string     `json:"id"`
	Email      string     `json:"email"`
	CreatedAt  time.Time  `json:"created_at"`
	LastSignIn *time.Time `json:"last_sign_in_at"`
}

// signupResponse covers both shapes GoTrue returns from /signup: a full
// session when autoconfirm is on, a bare user object otherwise.
type signupResponse struct {
	identityPayload
	AccessToken string          `json:"access_token"`
	User        identityPayload `json:"user"`
}

func (r *signupResponse) identity() *auth.Identity {
	if r.User.ID != "" {
		return r.User.identity()
	}
	return r.identityPayload.identity()
}

// errorResponse is GoTrue's error body. Older deployments use error/
// error_description, newer ones use error_code/msg.
type errorResponse struct {
	Code             string `json:"error_code"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func (e *errorResponse) text() string {
	for _, s := range []string{e.Msg, e.Message, e.ErrorDescription, e.Error} {
		if s != "" {
			return s
		}
	}
	return "authentication request rejected"
}

// SignIn performs a password grant and stores the access token.
func (c *Client) SignIn(ctx context.Context, email, password string) (*auth.Identity, error) {
	body := map[string]string{"email": email, "password": password}

	var sess sessionResponse
	if err := c.post(ctx, "/auth/v1/token?grant_type=password", body, &sess); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.accessToken = sess.AccessToken
	c.mu.Unlock()

	c.logger.Debug("signed in", "identity_id", sess.User.ID)
	return sess.User.identity(), nil
}

// SignUp registers a new identity. Depending on project settings GoTrue
// may or may not return a usable session; only the identity is reported.
func (c *Client) SignUp(ctx context.Context, email, password string) (*auth.Identity, error) {
	body := map[string]string{"email": email, "password": password}

	var resp signupResponse
	if err := c.post(ctx, "/auth/v1/signup", body, &resp); err != nil {
		return nil, err
	}

	ident := resp.identity()
	c.logger.Debug("signed up", "identity_id", ident.ID)
	return ident, nil
}

// SignOut revokes the stored token. The local token is always cleared,
// even when revocation fails.
func (c *Client) SignOut(ctx context.Context) error {
	c.mu.Lock()
	token := c.accessToken
	c.accessToken = ""
	c.mu.Unlock()

	if token == "" {
		return nil
	}
	return c.do(ctx, http.MethodPost, "/auth/v1/logout", nil, nil, token)
}

// CurrentSession fetches the identity behind the stored token. Returns
// auth.ErrNoSession when no token is held or the token is no longer
// accepted.
func (c *Client) CurrentSession(ctx context.Context) (*auth.Identity, error) {
	c.mu.Lock()
	token := c.accessToken
	c.mu.Unlock()

	if token == "" {
		return nil, auth.ErrNoSession
	}

	var user identityPayload
	if err := c.do(ctx, http.MethodGet, "/auth/v1/user", nil, &user, token); err != nil {
		var berr *auth.BackendError
		if errors.As(err, &berr) && berr.Kind == auth.KindInvalidCredentials {
			return nil, auth.ErrNoSession
		}
		return nil, err
	}
	return user.identity(), nil
}

// VerifyCode confirms a signup email with a one-time code and stores
// the resulting session token.
func (c *Client) VerifyCode(ctx context.Context, email, code string) (*auth.Identity, error) {
	body := map[string]string{"type": "signup", "email": email, "token": code}

	var sess sessionResponse
	if err := c.post(ctx, "/auth/v1/verify", body, &sess); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.accessToken = sess.AccessToken
	c.mu.Unlock()

	return sess.User.identity(), nil
}

// ResendCode requests a fresh signup confirmation code for the email.
func (c *Client) ResendCode(ctx context.Context, email string) error {
	body := map[string]string{"type": "signup", "email": email}
	return c.post(ctx, "/auth/v1/resend", body, nil)
}

func (p *identityPayload) identity() *auth.Identity {
	return &auth.Identity{
		ID:        p.ID,
		Email:     p.Email,
		CreatedAt: p.CreatedAt,
		LastLogin: p.LastSignIn,
	}
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out, "")
}

// do issues one request. The apikey header always carries the project
// key; the bearer token is the user token when set, the project key
// otherwise (GoTrue requires both headers).
func (c *Client) do(ctx context.Context, method, path string, body, out any, token string) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return oops.Code("SUPABASE_REQUEST_FAILED").Wrapf(err, "encoding request body")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return oops.Code("SUPABASE_REQUEST_FAILED").Wrapf(err, "building request")
	}
	req.Header.Set("apikey", c.apiKey)
	if token == "" {
		token = c.apiKey
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		observability.RecordBackendRequest(endpointLabel(path), "error")
		return &auth.BackendError{
			Kind:    auth.KindUnavailable,
			Message: fmt.Sprintf("auth service unreachable: %v", err),
		}
	}
	defer resp.Body.Close() //nolint:errcheck
	observability.RecordBackendRequest(endpointLabel(path), strconv.Itoa(resp.StatusCode))

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return oops.Code("SUPABASE_REQUEST_FAILED").Wrapf(err, "reading response body")
	}

	if resp.StatusCode >= 400 {
		return c.rejection(resp.StatusCode, raw)
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return oops.Code("SUPABASE_REQUEST_FAILED").
				With("status", resp.StatusCode).
				Wrapf(err, "decoding response body")
		}
	}
	return nil
}

// endpointLabel reduces a request path to its metric label: the final
// path segment with any query string removed.
func endpointLabel(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		path = path[i+1:]
	}
	return path
}

// rejection maps a GoTrue error response to a typed BackendError.
func (c *Client) rejection(status int, raw []byte) error {
	var body errorResponse
	_ = json.Unmarshal(raw, &body) //nolint:errcheck

	kind := classify(status, body.Code, body.text())
	c.logger.Debug("backend rejected request",
		"status", status,
		"error_code", body.Code,
		"kind", string(kind),
	)
	return &auth.BackendError{Kind: kind, Message: body.text()}
}

func classify(status int, code, msg string) auth.ErrorKind {
	switch code {
	case "invalid_credentials":
		return auth.KindInvalidCredentials
	case "weak_password":
		return auth.KindWeakPassword
	case "user_already_exists", "email_exists":
		return auth.KindEmailTaken
	case "validation_failed", "email_address_invalid":
		return auth.KindInvalidEmail
	case "otp_expired", "otp_disabled":
		return auth.KindCodeInvalid
	}

	// Older GoTrue deployments omit error_code; fall back to status and
	// message text.
	switch {
	case status >= 500:
		return auth.KindUnavailable
	case status == http.StatusUnauthorized:
		return auth.KindInvalidCredentials
	case strings.Contains(msg, "Invalid login credentials"):
		return auth.KindInvalidCredentials
	case strings.Contains(msg, "already registered"):
		return auth.KindEmailTaken
	case strings.Contains(msg, "Password should"):
		return auth.KindWeakPassword
	}
	return auth.KindUnavailable
}
