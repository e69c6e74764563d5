package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sfp-labs/fellowship-portal/internal/application"
	"github.com/sfp-labs/fellowship-portal/internal/models"
	"github.com/sfp-labs/fellowship-portal/internal/program"
)

// Client is a Go SDK for the fellowship-portal API
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Option configures the client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the client timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithAPIKey sets the admin API key
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = key
	}
}

// NewClient creates a new fellowship-portal client. The default timeout
// leaves room for the server's slowest submission path.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 90 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// APIError is an error reported by the API
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("API error: HTTP %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("API error: %s - %s", e.Code, e.Message)
}

// Phase is the current application window
type Phase struct {
	Phase            application.Phase     `json:"phase"`
	NextDeadline     *time.Time            `json:"next_deadline,omitempty"`
	SecondsRemaining int64                 `json:"seconds_remaining"`
	Deadlines        application.Deadlines `json:"deadlines"`
}

// Toast is a notification raised by a form operation
type Toast struct {
	Level   application.ToastLevel `json:"level"`
	Message string                 `json:"message"`
}

// Session is a form session as returned by the session endpoints
type Session struct {
	Key     string            `json:"key"`
	State   application.State `json:"state"`
	Signals struct {
		Toasts      []Toast `json:"toasts"`
		ScrollToTop bool    `json:"scroll_to_top"`
	} `json:"signals"`
}

// SessionError is a rejected form operation. Session holds the state the
// server returned with the error.
type SessionError struct {
	*APIError
	Session *Session
}

func (e *SessionError) Unwrap() error {
	return e.APIError
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// GetPhase retrieves the current phase and countdown
func (c *Client) GetPhase(ctx context.Context) (*Phase, error) {
	var p Phase
	if err := c.call(ctx, http.MethodGet, "/api/v1/phase", nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// GetProgram retrieves the program definition
func (c *Client) GetProgram(ctx context.Context) (*program.Program, error) {
	var p program.Program
	if err := c.call(ctx, http.MethodGet, "/api/v1/program", nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// OpenSession opens or resumes the session for key
func (c *Client) OpenSession(ctx context.Context, key string) (*Session, error) {
	return c.sessionCall(ctx, http.MethodPut, key, "", nil)
}

// GetSession retrieves a session
func (c *Client) GetSession(ctx context.Context, key string) (*Session, error) {
	return c.sessionCall(ctx, http.MethodGet, key, "", nil)
}

// UpdateField sets one answer. value must encode as the field's kind: a
// string, a list of strings, or application.Rating.
func (c *Client) UpdateField(ctx context.Context, key string, field application.Field, value interface{}) (*Session, error) {
	return c.sessionCall(ctx, http.MethodPatch, key, "/fields", map[string]interface{}{
		"field": field,
		"value": value,
	})
}

// Next moves to the next step
func (c *Client) Next(ctx context.Context, key string) (*Session, error) {
	return c.sessionCall(ctx, http.MethodPost, key, "/next", nil)
}

// Back returns to an earlier step
func (c *Client) Back(ctx context.Context, key string, step int) (*Session, error) {
	return c.sessionCall(ctx, http.MethodPost, key, "/back", map[string]int{"step": step})
}

// SubmitSession submits the session's application
func (c *Client) SubmitSession(ctx context.Context, key string) (*Session, error) {
	return c.sessionCall(ctx, http.MethodPost, key, "/submit", nil)
}

// Reset discards the session's answers
func (c *Client) Reset(ctx context.Context, key string, confirm bool) (*Session, error) {
	return c.sessionCall(ctx, http.MethodPost, key, "/reset", map[string]bool{"confirm": confirm})
}

// Submit posts a prepared payload to the submission relay. It implements
// application.Submitter; failures are *application.SubmissionError carrying
// the relay's message.
func (c *Client) Submit(ctx context.Context, p application.Payload) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	status, raw, err := c.doRequest(ctx, http.MethodPost, "/api/submit", bytes.NewReader(body))
	if err != nil {
		return &application.SubmissionError{Err: err}
	}

	var result struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return &application.SubmissionError{StatusCode: status, Err: fmt.Errorf("failed to unmarshal response: %w", err)}
	}
	if status >= 400 || !result.Success {
		return &application.SubmissionError{
			StatusCode: status,
			Message:    result.Error,
			Err:        fmt.Errorf("HTTP %d", status),
		}
	}
	return nil
}

// Health checks if the service is healthy
func (c *Client) Health(ctx context.Context) error {
	return c.call(ctx, http.MethodGet, "/health", nil, nil)
}

// AttemptList is a page of relayed submission attempts
type AttemptList struct {
	Attempts []*models.SubmissionAttempt `json:"attempts"`
	Total    int                         `json:"total"`
	Limit    int                         `json:"limit"`
	Offset   int                         `json:"offset"`
}

// ListAttempts lists relayed submissions (requires API key)
func (c *Client) ListAttempts(ctx context.Context, filters models.AttemptFilters) (*AttemptList, error) {
	q := url.Values{}
	if filters.Outcome != "" {
		q.Set("outcome", string(filters.Outcome))
	}
	if filters.FormType != "" {
		q.Set("form_type", filters.FormType)
	}
	if filters.Email != "" {
		q.Set("email", filters.Email)
	}
	if filters.Limit > 0 {
		q.Set("limit", strconv.Itoa(filters.Limit))
	}
	if filters.Offset > 0 {
		q.Set("offset", strconv.Itoa(filters.Offset))
	}

	path := "/api/v1/admin/attempts"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var list AttemptList
	if err := c.call(ctx, http.MethodGet, path, nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// GetAttempt retrieves one relayed submission (requires API key)
func (c *Client) GetAttempt(ctx context.Context, id string) (*models.SubmissionAttempt, error) {
	var a models.SubmissionAttempt
	if err := c.call(ctx, http.MethodGet, "/api/v1/admin/attempts/"+url.PathEscape(id), nil, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (c *Client) sessionCall(ctx context.Context, method, key, suffix string, body interface{}) (*Session, error) {
	var s Session
	err := c.call(ctx, method, "/api/v1/sessions/"+url.PathEscape(key)+suffix, body, &s)

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		se := &SessionError{APIError: apiErr}
		if s.Key != "" {
			se.Session = &s
		}
		return nil, se
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// call performs a request against an enveloped endpoint and decodes its data
// into out. On API errors out still receives any data sent with the error.
func (c *Client) call(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	status, raw, err := c.doRequest(ctx, method, path, reader)
	if err != nil {
		return err
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if status >= 400 {
			return &APIError{StatusCode: status, Message: string(raw)}
		}
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if out != nil && len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("failed to unmarshal data: %w", err)
		}
	}

	if !env.Success || status >= 400 {
		apiErr := &APIError{StatusCode: status}
		if env.Error != nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		}
		return apiErr
	}
	return nil
}

// doRequest performs an HTTP request
func (c *Client) doRequest(ctx context.Context, method, path string, body io.Reader) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response: %w", err)
	}

	return resp.StatusCode, respBody, nil
}
