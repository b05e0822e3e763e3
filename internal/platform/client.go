// Package platform is the gateway to the analytics platform's data-model API.
//
// A Client is unauthenticated and can only log in. Authenticate returns a
// Session, which carries the bearer token and exposes every resource
// operation. Each operation is one HTTP call whose JSON response is decoded
// into a validated domain value.
package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"cube-sync/internal/domain"
	"cube-sync/internal/httpclient"
)

const loginPath = "/api/v1/authentication/login"

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying transport client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http.HTTPClient = hc }
}

// WithLogger sets the logger used for request tracing.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// Client talks to the platform before a session exists.
type Client struct {
	http   *httpclient.Client
	logger *slog.Logger
}

// NewClient creates an unauthenticated client for baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		http:   httpclient.NewClient(baseURL, ""),
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the platform address requests are sent to.
func (c *Client) BaseURL() string { return c.http.BaseURL }

// Authenticate exchanges credentials for a bearer token.
func (c *Client) Authenticate(ctx context.Context, username, password string) (*Session, error) {
	resp, err := c.http.DoForm(ctx, loginPath, url.Values{
		"username": {username},
		"password": {password},
	})
	if err != nil {
		return nil, &domain.HostResolutionError{Host: c.http.BaseURL, Err: err}
	}
	target := c.http.URL(loginPath, nil)
	if err := httpclient.CheckError(resp); err != nil {
		var apiErr *httpclient.APIError
		if errors.As(err, &apiErr) && apiErr.IsClientError() {
			return nil, &domain.AuthenticationError{StatusCode: apiErr.HTTPStatus, Body: apiErr.Body}
		}
		return nil, requestError(http.MethodPost, target, err)
	}
	body, err := httpclient.ReadBody(resp)
	if err != nil {
		return nil, requestError(http.MethodPost, target, err)
	}

	var out struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode login response: %w", err)
	}
	if out.AccessToken == "" {
		return nil, &domain.MissingFieldError{Entity: "login response", Field: "access_token"}
	}

	s := &Session{
		http:      c.http.WithToken(out.AccessToken),
		logger:    c.logger,
		expiresAt: tokenExpiry(out.AccessToken),
	}
	if !s.expiresAt.IsZero() {
		c.logger.Debug("authenticated", "expires_at", s.expiresAt)
	} else {
		c.logger.Debug("authenticated")
	}
	return s, nil
}

// tokenExpiry reads the exp claim of a JWT access token without verifying
// it. Opaque tokens yield the zero time.
func tokenExpiry(token string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}

// Session is an authenticated connection to the platform.
type Session struct {
	http      *httpclient.Client
	logger    *slog.Logger
	expiresAt time.Time
}

// Token returns the bearer token the session authenticates with.
func (s *Session) Token() string { return s.http.Token }

// ExpiresAt returns the token expiry, or the zero time when unknown.
func (s *Session) ExpiresAt() time.Time { return s.expiresAt }

// BaseURL returns the platform address requests are sent to.
func (s *Session) BaseURL() string { return s.http.BaseURL }

// call sends a JSON request and decodes a 2xx response into out. Transport
// failures and non-2xx responses become *domain.RemoteRequestError.
func (s *Session) call(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	target := s.http.URL(path, query)
	resp, err := s.http.Do(ctx, method, path, query, body)
	if err != nil {
		return requestError(method, target, err)
	}
	s.logger.Debug("platform request", "method", method, "path", path, "status", resp.StatusCode)
	if err := httpclient.CheckError(resp); err != nil {
		return requestError(method, target, err)
	}
	data, err := httpclient.ReadBody(resp)
	if err != nil {
		return requestError(method, target, err)
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}

// requestError wraps a failed platform call. Rejections reported by
// httpclient.CheckError keep their status and the remote body verbatim.
func requestError(method, target string, err error) error {
	reqErr := &domain.RemoteRequestError{Method: method, URL: target, Err: err}
	var apiErr *httpclient.APIError
	if errors.As(err, &apiErr) {
		reqErr.StatusCode = apiErr.HTTPStatus
		reqErr.Body = apiErr.Body
	}
	return reqErr
}

var (
	_ domain.SchemaGateway = (*Session)(nil)
	_ domain.BuildGateway  = (*Session)(nil)
	_ domain.FileUploader  = (*Session)(nil)
)
