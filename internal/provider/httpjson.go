// Package provider holds the JSON-over-HTTP plumbing shared by the remote
// layout, OCR, inpaint and style backends.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"bananaslides/internal/config"
	"bananaslides/internal/retry"
)

const defaultTimeout = 120 * time.Second

// localLock serializes every call to the locally hosted OCR and inpaint servers,
// which run one model instance each.
var localLock sync.Mutex

// Client posts JSON requests to one endpoint.
type Client struct {
	name     string
	endpoint string
	apiKey   string
	client   *http.Client
	local    bool
}

// NewClient creates a client for a remote provider.
func NewClient(name string, cfg *config.EndpointConfig) *Client {
	return newClient(name, cfg, false)
}

// NewLocalClient creates a client for a locally hosted backend. Calls made through
// any local client never overlap.
func NewLocalClient(name string, cfg *config.EndpointConfig) *Client {
	return newClient(name, cfg, true)
}

func newClient(name string, cfg *config.EndpointConfig, local bool) *Client {
	timeout := cfg.Timeout()
	if timeout == 0 {
		timeout = defaultTimeout
	}
	return &Client{
		name:     name,
		endpoint: cfg.URL,
		apiKey:   cfg.APIKey,
		client:   &http.Client{Timeout: timeout},
		local:    local,
	}
}

// Name returns the provider name used in errors and logs.
func (c *Client) Name() string { return c.name }

// PostJSON sends in as JSON to the endpoint joined with path and decodes the response into out.
// Non-2xx responses come back as *retry.StatusError; transport failures are marked transient.
func (c *Client) PostJSON(ctx context.Context, path string, in, out interface{}) error {
	bodyBytes, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	if c.local {
		localLock.Lock()
		defer localLock.Unlock()
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return retry.Transient(fmt.Errorf("calling %s API: %w", c.name, err))
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return retry.Transient(fmt.Errorf("reading %s response: %w", c.name, err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &retry.StatusError{Provider: c.name, StatusCode: resp.StatusCode, Body: truncate(string(respBody), 500)}
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("unmarshaling %s response: %w (raw: %s)", c.name, err, truncate(string(respBody), 200))
	}
	return nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
