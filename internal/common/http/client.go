// internal/common/http/client.go
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const (
	// HeaderRequestID carries a per-request id for log correlation.
	HeaderRequestID = "X-Request-Id"

	userAgent = "canary-speech-client/1.0"

	// maxBodyBytes bounds how much of a response body is kept in memory.
	maxBodyBytes = 8 << 20
	// maxExcerpt bounds how much of a body ends up in error messages.
	maxExcerpt = 512
)

type Client struct {
	httpClient *http.Client
}

func NewClient(timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// NewClientWith wraps an existing *http.Client, e.g. one from httptest.
func NewClientWith(c *http.Client) *Client {
	return &Client{httpClient: c}
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	RequestID  string
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Excerpt returns the start of the body, for error details.
func (r *Response) Excerpt() string {
	return Excerpt(r.Body)
}

// Excerpt trims b to a loggable length.
func Excerpt(b []byte) string {
	b = bytes.TrimSpace(b)
	if len(b) > maxExcerpt {
		return string(b[:maxExcerpt]) + "..."
	}
	return string(b)
}

// do stamps the request id and user agent headers when they are unset.
func (c *Client) do(req *http.Request) (*http.Response, error) {
	if req.Header.Get(HeaderRequestID) == "" {
		req.Header.Set(HeaderRequestID, uuid.NewString())
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", userAgent)
	}
	return c.httpClient.Do(req)
}

// Send performs req and reads the whole response body. Non-2xx statuses are
// not errors here; callers map them with their own step context.
func (c *Client) Send(req *http.Request) (*Response, error) {
	resp, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
		RequestID:  req.Header.Get(HeaderRequestID),
	}, nil
}

// NewJSONRequest builds a request whose body is payload encoded as JSON.
// A nil payload sends no body.
func NewJSONRequest(ctx context.Context, method, url string, payload interface{}) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal payload: %w", err)
		}
		body = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return req, nil
}
