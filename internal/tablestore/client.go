package tablestore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// errUnauthorized marks a rejected token; the request is retried once.
var errUnauthorized = errors.New("table service rejected token")

// Table addresses one table inside a base.
type Table struct {
	AppToken string
	TableID  string
}

// Client writes records to a table.
type Client struct {
	baseURL    string
	table      Table
	tokens     *TokenSource
	httpClient *http.Client
}

// NewClient creates a table client that authenticates through tokens
func NewClient(baseURL string, table Table, tokens *TokenSource, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		baseURL:    baseURL,
		table:      table,
		tokens:     tokens,
		httpClient: httpClient,
	}
}

// CreateRecord appends one record and returns its id.
func (c *Client) CreateRecord(ctx context.Context, fields map[string]any) (string, error) {
	id, err := c.createRecord(ctx, fields)
	if errors.Is(err, errUnauthorized) {
		c.tokens.Invalidate()
		id, err = c.createRecord(ctx, fields)
	}
	return id, err
}

// Mirror copies a submission payload into the table.
func (c *Client) Mirror(ctx context.Context, payload map[string]any) error {
	_, err := c.CreateRecord(ctx, payload)
	return err
}

func (c *Client) createRecord(ctx context.Context, fields map[string]any) (string, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return "", err
	}

	body, err := json.Marshal(map[string]any{"fields": fields})
	if err != nil {
		return "", fmt.Errorf("failed to marshal record: %w", err)
	}

	url := fmt.Sprintf("%s/open-apis/bitable/v1/apps/%s/tables/%s/records", c.baseURL, c.table.AppToken, c.table.TableID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return "", errUnauthorized
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	var result struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
		Data struct {
			Record struct {
				ID string `json:"record_id"`
			} `json:"record"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if result.Code != 0 {
		return "", fmt.Errorf("create record rejected: code %d: %s", result.Code, result.Msg)
	}

	return result.Data.Record.ID, nil
}
