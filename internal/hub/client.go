// Package hub provides a read-only client for a model-hub API
// (Hugging Face compatible) used to enrich extracted records.
package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client queries a model hub's public model index.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// New creates a hub client. If baseURL is empty it defaults to the
// public Hugging Face API.
func New(baseURL, apiKey string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = "https://huggingface.co/api"
	}
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// ModelInfo is the subset of hub model metadata the enricher consumes.
type ModelInfo struct {
	ID        string   `json:"id"`
	Author    string   `json:"author"`
	Downloads int64    `json:"downloads"`
	Likes     int64    `json:"likes"`
	Tags      []string `json:"tags"`
	PipelineT string   `json:"pipeline_tag"`
}

// URL returns the hub page for this model.
func (m ModelInfo) URL() string {
	return "https://huggingface.co/" + m.ID
}

// FindModel searches the hub for the closest match to the given model
// name. Exact id matches (or repo-name suffix matches) win over search
// ranking; with no match at all it returns (nil, nil).
func (c *Client) FindModel(ctx context.Context, name string) (*ModelInfo, error) {
	search := strings.ToLower(strings.ReplaceAll(name, "_", "-"))
	// Ollama names carry a ":tag" suffix the hub doesn't know about.
	if i := strings.IndexByte(search, ':'); i >= 0 {
		search = search[:i]
	}

	endpoint := fmt.Sprintf("%s/models?search=%s&limit=10", c.baseURL, url.QueryEscape(search))
	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search hub: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("hub error: %s - %s", resp.Status, string(body))
	}

	var results []ModelInfo
	if err := json.Unmarshal(body, &results); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if len(results) == 0 {
		return nil, nil
	}

	for i, m := range results {
		id := strings.ToLower(m.ID)
		if id == search || strings.HasSuffix(id, "/"+search) {
			return &results[i], nil
		}
	}
	return &results[0], nil
}
