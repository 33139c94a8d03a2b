// Package ollama provides a client for the Ollama server's model
// metadata endpoints (/api/tags and /api/show).
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// Client talks to a local or remote Ollama server.
type Client struct {
	host       string
	httpClient *http.Client
}

// New creates a new Ollama client.
// If host is empty, uses the OLLAMA_HOST env var or defaults to localhost:11434.
func New(host string, timeout time.Duration) *Client {
	if host == "" {
		host = os.Getenv("OLLAMA_HOST")
	}
	if host == "" {
		host = "http://localhost:11434"
	}
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		host: host,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Host returns the configured server URL.
func (c *Client) Host() string {
	return c.host
}

// ModelDetails carries the per-model detail block Ollama returns.
type ModelDetails struct {
	ParentModel       string   `json:"parent_model"`
	Format            string   `json:"format"`
	Family            string   `json:"family"`
	Families          []string `json:"families"`
	ParameterSize     string   `json:"parameter_size"`
	QuantizationLevel string   `json:"quantization_level"`
}

// Model is one entry from the /api/tags listing.
type Model struct {
	Name       string       `json:"name"`
	ModifiedAt time.Time    `json:"modified_at"`
	Size       int64        `json:"size"`
	Digest     string       `json:"digest"`
	Details    ModelDetails `json:"details"`
}

// ShowResponse is the /api/show payload for one model.
type ShowResponse struct {
	License   string       `json:"license"`
	Template  string       `json:"template"`
	Modelfile string       `json:"modelfile"`
	Details   ModelDetails `json:"details"`
}

type listResponse struct {
	Models []Model `json:"models"`
}

// List fetches the installed models from /api/tags.
func (c *Client) List(ctx context.Context) ([]Model, error) {
	var resp listResponse
	if err := c.do(ctx, "GET", "/api/tags", nil, &resp); err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	return resp.Models, nil
}

// Show fetches the detailed metadata for one model from /api/show.
func (c *Client) Show(ctx context.Context, name string) (*ShowResponse, error) {
	req := map[string]string{"model": name}
	var resp ShowResponse
	if err := c.do(ctx, "POST", "/api/show", req, &resp); err != nil {
		return nil, fmt.Errorf("show model %s: %w", name, err)
	}
	return &resp, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.host+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server error: %s - %s", resp.Status, string(data))
	}

	if result != nil {
		if err := json.Unmarshal(data, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}
