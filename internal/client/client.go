// ABOUTME: HTTP client for the arcstate bridge API
// ABOUTME: Wraps the preferences and workspace routes with typed methods

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// APIError is a non-2xx response from the bridge, carrying the server's
// error message and correlation ID.
type APIError struct {
	StatusCode int
	Message    string
	RequestID  string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("server returned status %d", e.StatusCode)
}

// Client talks to a running arcstate-server instance.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithToken sets the bearer token sent on every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a client for the server at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// LoadPreferences returns the stored preferences, optionally restricted to
// the given names.
func (c *Client) LoadPreferences(ctx context.Context, scope ...string) (map[string]any, error) {
	target := c.baseURL + "/api/preferences"
	if len(scope) > 0 {
		q := url.Values{}
		for _, name := range scope {
			q.Add("scope", name)
		}
		target += "?" + q.Encode()
	}

	var payload struct {
		Preferences map[string]any `json:"preferences"`
	}
	if err := c.do(ctx, http.MethodGet, target, nil, &payload); err != nil {
		return nil, err
	}
	return payload.Preferences, nil
}

// SetPreference stores one named preference.
func (c *Client) SetPreference(ctx context.Context, name string, value any) error {
	body := map[string]any{"name": name, "value": value}
	return c.do(ctx, http.MethodPut, c.baseURL+"/api/preferences", body, nil)
}

// ClearPreferences removes every preference under the server's prefix.
func (c *Client) ClearPreferences(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, c.baseURL+"/api/preferences", nil, nil)
}

// LoadWorkspace returns the stored workspace fields.
func (c *Client) LoadWorkspace(ctx context.Context) (map[string]any, error) {
	var payload struct {
		Workspace map[string]any `json:"workspace"`
	}
	if err := c.do(ctx, http.MethodGet, c.baseURL+"/api/workspace", nil, &payload); err != nil {
		return nil, err
	}
	return payload.Workspace, nil
}

// SetWorkspace submits a workspace payload for the debounced write. A nil
// error means the server accepted it, not that it was persisted yet.
func (c *Client) SetWorkspace(ctx context.Context, value map[string]any) error {
	body := map[string]any{"value": value}
	return c.do(ctx, http.MethodPost, c.baseURL+"/api/workspace", body, nil)
}

// ClearWorkspace removes every workspace field under the server's prefix.
func (c *Client) ClearWorkspace(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, c.baseURL+"/api/workspace", nil, nil)
}

// Health probes the liveness endpoint.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, c.baseURL+"/health", nil, nil)
}

// do performs one request and decodes the response into out when non-nil.
// Non-2xx responses come back as *APIError.
func (c *Client) do(ctx context.Context, method, target string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var errResp struct {
			Error     string `json:"error"`
			RequestID string `json:"request_id"`
		}
		if json.NewDecoder(resp.Body).Decode(&errResp) == nil {
			apiErr.Message = errResp.Error
			apiErr.RequestID = errResp.RequestID
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
