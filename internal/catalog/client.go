// Package catalog provides the client for the destination model
// catalog API: model submission and tag management.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Client submits model payloads and tag definitions to the catalog API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	attempts   int
	backoff    time.Duration
	logger     *slog.Logger
}

// Options configures a catalog client.
type Options struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	// Attempts bounds retries of transient failures; 0 means 3.
	Attempts int
	// Backoff is the base delay, doubled after each failed attempt; 0 means 2s.
	Backoff time.Duration
	Logger  *slog.Logger
}

// New creates a catalog client.
func New(opts Options) *Client {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Attempts <= 0 {
		opts.Attempts = 3
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 2 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		apiKey:     opts.APIKey,
		httpClient: &http.Client{Timeout: opts.Timeout},
		attempts:   opts.Attempts,
		backoff:    opts.Backoff,
		logger:     opts.Logger,
	}
}

// SeedResult reports a successful submission.
type SeedResult struct {
	StatusCode int
	Attempts   int
	Response   map[string]any
}

// SeedModel submits one mapped payload to the catalog's models endpoint.
// Transient failures (timeouts, 5xx) are retried with exponential
// backoff up to the configured attempt bound; a 4xx rejection returns
// immediately as a terminal *APIError.
func (c *Client) SeedModel(ctx context.Context, payload map[string]any) (*SeedResult, error) {
	var lastErr error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		if attempt > 1 {
			delay := c.backoff << (attempt - 2)
			c.logger.Debug("retrying catalog submission",
				"attempt", attempt, "max_attempts", c.attempts, "delay", delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		respBody, status, err := c.post(ctx, "/models", payload)
		if err == nil {
			var parsed map[string]any
			if len(respBody) > 0 {
				// Non-JSON success bodies are tolerated.
				_ = json.Unmarshal(respBody, &parsed)
			}
			if attempt > 1 {
				c.logger.Info("submission succeeded after retries", "attempts", attempt)
			}
			return &SeedResult{StatusCode: status, Attempts: attempt, Response: parsed}, nil
		}

		lastErr = err
		if !IsTransient(err) {
			return nil, err
		}
		c.logger.Warn("transient catalog failure",
			"attempt", attempt, "max_attempts", c.attempts, "error", err)
	}
	return nil, fmt.Errorf("catalog submission failed after %d attempts: %w", c.attempts, lastErr)
}

// Tag is one catalog tag definition.
type Tag struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ListTags fetches all tags known to the catalog.
func (c *Client) ListTags(ctx context.Context) ([]Tag, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: errMessage(body, resp.Status)}
	}

	var tags []Tag
	if err := json.Unmarshal(body, &tags); err != nil {
		return nil, fmt.Errorf("unmarshal tags: %w", err)
	}
	return tags, nil
}

// CreateTag registers a new tag and returns its identifier.
func (c *Client) CreateTag(ctx context.Context, name string) (string, error) {
	body, status, err := c.post(ctx, "/tags", map[string]string{"name": name})
	if err != nil {
		return "", fmt.Errorf("create tag %q: %w", name, err)
	}
	var tag Tag
	if err := json.Unmarshal(body, &tag); err != nil {
		return "", fmt.Errorf("create tag %q: unmarshal response (status %d): %w", name, status, err)
	}
	if tag.ID == "" {
		return "", fmt.Errorf("create tag %q: response carried no id", name)
	}
	return tag.ID, nil
}

func (c *Client) post(ctx context.Context, path string, payload any) ([]byte, int, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("read response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusAccepted:
		return body, resp.StatusCode, nil
	}
	return nil, resp.StatusCode, &APIError{StatusCode: resp.StatusCode, Message: errMessage(body, resp.Status)}
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

// errMessage pulls a "message" field out of an error body, falling back
// to the raw body or HTTP status line.
func errMessage(body []byte, status string) string {
	var parsed struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil {
		if parsed.Message != "" {
			return parsed.Message
		}
		if parsed.Error != "" {
			return parsed.Error
		}
	}
	if len(body) > 0 {
		return string(body)
	}
	return status
}
