// Package tablestore mirrors submissions into a hosted table service.
package tablestore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	tokenPath = "/open-apis/auth/v3/tenant_access_token/internal"

	// DefaultExpiryMargin is how long before expiry a cached token is refreshed.
	DefaultExpiryMargin = 5 * time.Minute
)

// ErrNoCredentials means the app id or secret is missing.
var ErrNoCredentials = errors.New("table service credentials not configured")

// Credentials identify the integration to the table service.
type Credentials struct {
	AppID     string
	AppSecret string
}

// TokenSource hands out a tenant access token, refreshing it shortly before
// it expires. Concurrent refreshes collapse into one request.
type TokenSource struct {
	baseURL    string
	creds      Credentials
	httpClient *http.Client
	margin     time.Duration
	now        func() time.Time

	group singleflight.Group

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// NewTokenSource creates a token source for the service at baseURL
func NewTokenSource(baseURL string, creds Credentials, httpClient *http.Client) *TokenSource {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &TokenSource{
		baseURL:    baseURL,
		creds:      creds,
		httpClient: httpClient,
		margin:     DefaultExpiryMargin,
		now:        time.Now,
	}
}

// Token returns a valid token, fetching a new one if needed.
func (s *TokenSource) Token(ctx context.Context) (string, error) {
	if tok, ok := s.cached(); ok {
		return tok, nil
	}

	v, err, _ := s.group.Do("tenant", func() (any, error) {
		if tok, ok := s.cached(); ok {
			return tok, nil
		}
		return s.refresh(context.WithoutCancel(ctx))
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Invalidate drops the cached token so the next call fetches a fresh one.
func (s *TokenSource) Invalidate() {
	s.mu.Lock()
	s.token = ""
	s.expiresAt = time.Time{}
	s.mu.Unlock()
}

func (s *TokenSource) cached() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == "" || !s.now().Add(s.margin).Before(s.expiresAt) {
		return "", false
	}
	return s.token, true
}

func (s *TokenSource) refresh(ctx context.Context) (string, error) {
	if s.creds.AppID == "" || s.creds.AppSecret == "" {
		return "", ErrNoCredentials
	}

	body, err := json.Marshal(map[string]string{
		"app_id":     s.creds.AppID,
		"app_secret": s.creds.AppSecret,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+tokenPath, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read token response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("token request: HTTP %d", resp.StatusCode)
	}

	var result struct {
		Code   int    `json:"code"`
		Msg    string `json:"msg"`
		Token  string `json:"tenant_access_token"`
		Expire int    `json:"expire"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", fmt.Errorf("failed to unmarshal token response: %w", err)
	}
	if result.Code != 0 || result.Token == "" {
		return "", fmt.Errorf("token request rejected: code %d: %s", result.Code, result.Msg)
	}

	s.mu.Lock()
	s.token = result.Token
	s.expiresAt = s.now().Add(time.Duration(result.Expire) * time.Second)
	s.mu.Unlock()

	return result.Token, nil
}
