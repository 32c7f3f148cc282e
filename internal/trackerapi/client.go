package trackerapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/issuetrackhq/tracker-tui/internal/logger"
)

const (
	// DefaultBaseURL is the default tracker API base URL.
	DefaultBaseURL = "http://localhost:8000"
)

// ClientConfig contains configuration for creating a new tracker API client.
type ClientConfig struct {
	// Token is the identity-provider bearer token for authentication.
	Token string
	// BaseURL is the API base URL (defaults to DefaultBaseURL).
	BaseURL string
	// HTTPClient is an optional custom HTTP client (useful for testing).
	HTTPClient *http.Client
	// Timeout is the HTTP request timeout (defaults to 30s).
	Timeout time.Duration
}

// Client is a client for the tracker's REST API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

// NewClient creates a new tracker API client with the provided configuration.
func NewClient(cfg ClientConfig) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	var httpClient *http.Client
	if cfg.HTTPClient != nil {
		// Use provided HTTP client but wrap its transport with auth
		httpClient = cfg.HTTPClient
		if httpClient.Transport == nil {
			httpClient.Transport = http.DefaultTransport
		}
		httpClient.Transport = &authTransport{
			Token: cfg.Token,
			Base:  httpClient.Transport,
		}
	} else {
		httpClient = &http.Client{
			Timeout: timeout,
			Transport: &authTransport{
				Token: cfg.Token,
				Base:  http.DefaultTransport,
			},
		}
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		token:      cfg.Token,
	}
}

// authTransport adds the Authorization header to requests.
type authTransport struct {
	Token string
	Base  http.RoundTripper
}

// RoundTrip implements http.RoundTripper.
func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Token != "" {
		req.Header.Set("Authorization", "Bearer "+t.Token)
	}
	if t.Base == nil {
		return http.DefaultTransport.RoundTrip(req)
	}
	return t.Base.RoundTrip(req)
}

// BaseURL returns the API base URL being used.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ListIssues fetches all issues in server order.
func (c *Client) ListIssues(ctx context.Context) ([]Issue, error) {
	var issues []Issue
	if err := c.do(ctx, http.MethodGet, "/api/issues", nil, &issues); err != nil {
		logger.ErrorWithErr(err, "api: ListIssues failed")
		return nil, fmt.Errorf("list issues: %w", err)
	}
	return issues, nil
}

// GetIssue fetches a single issue by its id.
func (c *Client) GetIssue(ctx context.Context, id int64) (Issue, error) {
	var envelope struct {
		Status string `json:"status"`
		Data   Issue  `json:"data"`
	}
	path := fmt.Sprintf("/api/issue/%d", id)
	if err := c.do(ctx, http.MethodGet, path, nil, &envelope); err != nil {
		logger.ErrorWithErr(err, "api: GetIssue failed id=%d", id)
		return Issue{}, fmt.Errorf("get issue %d: %w", id, err)
	}
	return envelope.Data, nil
}

// CreateIssue submits a new issue.
func (c *Client) CreateIssue(ctx context.Context, input NewIssue) error {
	if err := c.do(ctx, http.MethodPost, "/api/issue", input, nil); err != nil {
		logger.ErrorWithErr(err, "api: CreateIssue failed title=%s", input.Title)
		return fmt.Errorf("create issue: %w", err)
	}
	return nil
}

// UpdateIssue submits a full replacement of an existing issue.
func (c *Client) UpdateIssue(ctx context.Context, id int64, input NewIssue) error {
	path := fmt.Sprintf("/api/issue/%d", id)
	if err := c.do(ctx, http.MethodPatch, path, input, nil); err != nil {
		logger.ErrorWithErr(err, "api: UpdateIssue failed id=%d", id)
		return fmt.Errorf("update issue %d: %w", id, err)
	}
	return nil
}

// DeleteIssue removes an issue.
func (c *Client) DeleteIssue(ctx context.Context, id int64) error {
	path := fmt.Sprintf("/api/issue/%d", id)
	if err := c.do(ctx, http.MethodDelete, path, nil, nil); err != nil {
		logger.ErrorWithErr(err, "api: DeleteIssue failed id=%d", id)
		return fmt.Errorf("delete issue %d: %w", id, err)
	}
	return nil
}

// GetUser fetches the display projection for a user id.
func (c *Client) GetUser(ctx context.Context, userID string) (User, error) {
	var user User
	if err := c.do(ctx, http.MethodGet, "/api/user/"+userID, nil, &user); err != nil {
		logger.ErrorWithErr(err, "api: GetUser failed user_id=%s", userID)
		return User{}, fmt.Errorf("get user %s: %w", userID, err)
	}
	return user, nil
}

// GetCurrentUser fetches the authenticated user behind the bearer token.
func (c *Client) GetCurrentUser(ctx context.Context) (User, error) {
	var user User
	if err := c.do(ctx, http.MethodGet, "/api/user/me", nil, &user); err != nil {
		logger.ErrorWithErr(err, "api: GetCurrentUser failed")
		return User{}, fmt.Errorf("get current user: %w", err)
	}
	return user, nil
}

// do issues a JSON request and decodes the response into out (when non-nil).
// Non-2xx responses are returned as *APIError carrying the server's failure
// envelope message when one is present.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// decodeAPIError turns a failed response into an *APIError, preserving the
// server's message when the body is a failure envelope.
func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err == nil && len(data) > 0 {
		_ = json.Unmarshal(data, apiErr)
	}
	return apiErr
}
