package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// === NewClient ===

func TestNewClient_TrailingSlash(t *testing.T) {
	c := NewClient("https://cube.example.com:30845/", "")
	assert.Equal(t, "https://cube.example.com:30845", c.BaseURL)
}

func TestNewClient_SetsTimeout(t *testing.T) {
	c := NewClient("https://cube.example.com", "")
	require.NotNil(t, c.HTTPClient)
	assert.Equal(t, 30*time.Second, c.HTTPClient.Timeout)
}

func TestWithToken_DoesNotMutateOriginal(t *testing.T) {
	c := NewClient("https://cube.example.com", "")
	authed := c.WithToken("tok")
	assert.Empty(t, c.Token)
	assert.Equal(t, "tok", authed.Token)
	assert.Same(t, c.HTTPClient, authed.HTTPClient)
}

// === Client.Do ===

func TestDo_URLAndQuery(t *testing.T) {
	var (
		gotPath  string
		gotQuery url.Values
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	c := NewClient(srv.URL, "")
	q := url.Values{}
	q.Set("title", "sales model")
	resp, err := c.Do(context.Background(), http.MethodGet, "/api/v2/datamodels/schema", q, nil)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "/api/v2/datamodels/schema", gotPath)
	assert.Equal(t, "sales model", gotQuery.Get("title"))
}

func TestDo_WithBody(t *testing.T) {
	var (
		gotContentType string
		gotBody        []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	c := NewClient(srv.URL, "")
	resp, err := c.Do(context.Background(), http.MethodPost, "/api/v2/datamodels", nil, map[string]string{"title": "sales"})
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "application/json", gotContentType)
	var parsed map[string]string
	require.NoError(t, json.Unmarshal(gotBody, &parsed))
	assert.Equal(t, "sales", parsed["title"])
}

func TestDo_NilBody(t *testing.T) {
	var (
		gotContentType string
		gotBodyLen     int64
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		gotBodyLen = r.ContentLength
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	c := NewClient(srv.URL, "")
	resp, err := c.Do(context.Background(), http.MethodGet, "/api/v2/builds/b-1", nil, nil)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Empty(t, gotContentType)
	assert.LessOrEqual(t, gotBodyLen, int64(0))
}

func TestDo_Headers(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	c := NewClient(srv.URL, "my-token")
	resp, err := c.Do(context.Background(), http.MethodGet, "/api/v2/builds/b-1", nil, nil)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "application/json", got.Get("Accept"))
	assert.Equal(t, "Bearer my-token", got.Get("Authorization"))
	assert.Len(t, got.Get(RequestIDHeader), 36)
}

func TestDo_NoAuth(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	c := NewClient(srv.URL, "")
	resp, err := c.Do(context.Background(), http.MethodGet, "/api/v2/builds/b-1", nil, nil)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Empty(t, gotAuth)
}

func TestDo_HTTPMethod(t *testing.T) {
	tests := []struct {
		name   string
		method string
	}{
		{name: "GET", method: http.MethodGet},
		{name: "POST", method: http.MethodPost},
		{name: "DELETE", method: http.MethodDelete},
		{name: "PATCH", method: http.MethodPatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotMethod string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotMethod = r.Method
				w.WriteHeader(http.StatusOK)
			}))
			t.Cleanup(srv.Close)

			c := NewClient(srv.URL, "")
			resp, err := c.Do(context.Background(), tt.method, "/resource", nil, nil)
			require.NoError(t, err)
			resp.Body.Close()

			assert.Equal(t, tt.method, gotMethod)
		})
	}
}

func TestDo_ConnectionRefused(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", "")
	_, err := c.Do(context.Background(), http.MethodGet, "/api/v2/builds/b-1", nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "execute request")
}

// === DoForm / DoMultipart ===

func TestDoForm_EncodesFields(t *testing.T) {
	var (
		gotContentType string
		gotForm        url.Values
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		_ = r.ParseForm()
		gotForm = r.PostForm
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	c := NewClient(srv.URL, "")
	resp, err := c.DoForm(context.Background(), "/api/v1/authentication/login", url.Values{
		"username": {"admin@example.com"},
		"password": {"s3cret"},
	})
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "application/x-www-form-urlencoded", gotContentType)
	assert.Equal(t, "admin@example.com", gotForm.Get("username"))
	assert.Equal(t, "s3cret", gotForm.Get("password"))
}

func TestDoMultipart_SendsFileAndHeaders(t *testing.T) {
	var (
		gotToken    string
		gotFilename string
		gotContent  []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get("x-upload-token")
		file, header, err := r.FormFile("file")
		if err == nil {
			gotFilename = header.Filename
			gotContent, _ = io.ReadAll(file)
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	c := NewClient(srv.URL, "tok")
	resp, err := c.DoMultipart(context.Background(), "/storage/fs/upload", "file", "orders.csv",
		[]byte("id,name\n1,a\n"), http.Header{"X-Upload-Token": {"upload-1"}})
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "upload-1", gotToken)
	assert.Equal(t, "orders.csv", gotFilename)
	assert.Equal(t, "id,name\n1,a\n", string(gotContent))
}

// === CheckError ===

func TestCheckError_SuccessRange(t *testing.T) {
	for _, code := range []int{200, 201, 204} {
		resp := &http.Response{StatusCode: code, Body: io.NopCloser(strings.NewReader(""))}
		assert.NoError(t, CheckError(resp))
	}
}

func TestCheckError_StructuredError(t *testing.T) {
	resp := &http.Response{
		StatusCode: 403,
		Body:       io.NopCloser(strings.NewReader(`{"code":403,"message":"forbidden"}`)),
	}
	err := CheckError(resp)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API error (HTTP 403): forbidden")
}

func TestCheckError_NestedEnvelope(t *testing.T) {
	body := `{"error":{"code":5001,"message":"Invalid domain.","status":401,"httpMessage":"Unauthorized"}}`
	resp := &http.Response{StatusCode: 401, Body: io.NopCloser(strings.NewReader(body))}
	err := CheckError(resp)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Invalid domain.", apiErr.Message)
	assert.Equal(t, body, apiErr.Body)
	assert.True(t, apiErr.IsClientError())
	assert.False(t, apiErr.IsServerError())
}

func TestCheckError_RawBodyFallback(t *testing.T) {
	resp := &http.Response{
		StatusCode: 500,
		Body:       io.NopCloser(strings.NewReader("Internal Server Error")),
	}
	err := CheckError(resp)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API error (HTTP 500): Internal Server Error")
}

// === ReadBody ===

// spyReadCloser tracks whether Close was called.
type spyReadCloser struct {
	io.Reader
	mu     sync.Mutex
	closed bool
}

func (s *spyReadCloser) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func TestReadBody_ClosesBody(t *testing.T) {
	spy := &spyReadCloser{Reader: strings.NewReader("some content")}
	data, err := ReadBody(&http.Response{Body: spy})
	require.NoError(t, err)
	assert.Equal(t, "some content", string(data))
	assert.True(t, spy.closed, "expected body to be closed after ReadBody")
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PrintJSON(&buf, map[string]string{"status": "success"}))
	assert.JSONEq(t, `{"status":"success"}`, buf.String())
}
