// Package httpclient is the thin JSON-over-HTTP layer the platform gateway is
// built on. It owns header injection and status checking; it knows nothing
// about platform resources.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultTimeout bounds a single request.
const DefaultTimeout = 30 * time.Second

// RequestIDHeader carries a per-request identifier for correlating platform logs.
const RequestIDHeader = "X-Request-ID"

// Client sends requests to a single base URL.
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

// NewClient creates a client for baseURL. An empty token sends no
// Authorization header.
func NewClient(baseURL, token string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Token:      token,
		HTTPClient: &http.Client{Timeout: DefaultTimeout},
	}
}

// WithToken returns a copy of c that authenticates with token.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.Token = token
	return &cp
}

// URL returns the absolute URL for path and query.
func (c *Client) URL(path string, query url.Values) string {
	u := c.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// Do sends a request with an optional JSON body.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body interface{}) (*http.Response, error) {
	var (
		reader      io.Reader
		contentType string
	)
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
		contentType = "application/json"
	}
	return c.send(ctx, method, c.URL(path, query), contentType, reader, nil)
}

// DoForm sends a POST with a form-encoded body.
func (c *Client) DoForm(ctx context.Context, path string, form url.Values) (*http.Response, error) {
	return c.send(ctx, http.MethodPost, c.URL(path, nil), "application/x-www-form-urlencoded",
		strings.NewReader(form.Encode()), nil)
}

// DoMultipart sends a POST whose body is a single multipart file part. The
// content is held in memory; header is merged into the request headers.
func (c *Client) DoMultipart(ctx context.Context, path, field, filename string, content []byte, header http.Header) (*http.Response, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(field, filename)
	if err != nil {
		return nil, fmt.Errorf("create multipart part: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return nil, fmt.Errorf("write multipart part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart body: %w", err)
	}
	return c.send(ctx, http.MethodPost, c.URL(path, nil), mw.FormDataContentType(), &buf, header)
}

func (c *Client) send(ctx context.Context, method, target, contentType string, body io.Reader, header http.Header) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, uuid.New().String())
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	for k, vals := range header {
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	return resp, nil
}

// APIError is a non-2xx platform response.
type APIError struct {
	HTTPStatus int
	Code       interface{}
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("API error (HTTP %d): %s", e.HTTPStatus, e.Message)
	}
	return fmt.Sprintf("API error (HTTP %d): %s", e.HTTPStatus, e.Body)
}

// IsServerError reports whether the platform failed on its side.
func (e *APIError) IsServerError() bool {
	return e.HTTPStatus >= 500
}

// IsClientError reports whether the platform rejected the request.
func (e *APIError) IsClientError() bool {
	return e.HTTPStatus >= 400 && e.HTTPStatus < 500
}

// CheckError returns nil for 2xx responses. Otherwise it consumes the body
// and returns an *APIError.
func CheckError(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := ReadBody(resp)
	return NewAPIError(resp.StatusCode, body)
}

// NewAPIError builds an APIError from a status and raw body. Platform error
// envelopes come in two shapes: {"code","message"} and {"error":{...}}.
func NewAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{HTTPStatus: status, Body: string(body)}
	var envelope struct {
		Code    interface{} `json:"code"`
		Message string      `json:"message"`
		Error   *struct {
			Code    interface{} `json:"code"`
			Message string      `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &envelope) != nil {
		return apiErr
	}
	apiErr.Code = envelope.Code
	apiErr.Message = envelope.Message
	if envelope.Error != nil && apiErr.Message == "" {
		apiErr.Code = envelope.Error.Code
		apiErr.Message = envelope.Error.Message
	}
	return apiErr
}

// ReadBody reads and closes the response body.
func ReadBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close() //nolint:errcheck
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return data, nil
}

// PrintJSON writes v as indented JSON.
func PrintJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
