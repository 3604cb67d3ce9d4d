// Package client talks to the conversion HTTP API. It is used by slidectl and
// by anything else that wants to submit pages and poll for slides.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"bananaslides/internal/domain"
	"bananaslides/internal/retry"
	"bananaslides/internal/service"
)

// CreateRequest is the body of POST /api/v1/conversions.
type CreateRequest struct {
	ProjectID   string                    `json:"project_id,omitempty"`
	Pages       []domain.PageRef          `json:"pages"`
	Settings    domain.ConversionSettings `json:"settings"`
	NotifyEmail string                    `json:"notify_email,omitempty"`
}

// Client is a thin JSON client for the conversion API.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a Client. timeout bounds each HTTP request, not a whole poll.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// codeErrors maps API error codes back to domain sentinels.
var codeErrors = map[string]error{
	"TASK_NOT_FOUND":           domain.ErrTaskNotFound,
	"SETTINGS_INVALID":         domain.ErrSettingsInvalid,
	"INVALID_TRANSITION":       domain.ErrInvalidTransition,
	"VERIFICATION_UNAVAILABLE": domain.ErrVerificationUnavailable,
	"INVALID_ELEMENT":          domain.ErrInvalidElement,
	"ARTIFACT_NOT_FOUND":       domain.ErrArtifactNotFound,
}

// CreateConversion submits a new task.
func (c *Client) CreateConversion(ctx context.Context, req *CreateRequest) (*domain.ConversionTask, error) {
	var task domain.ConversionTask
	if err := c.do(ctx, http.MethodPost, "/api/v1/conversions", req, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// GetConversion fetches the current task status. Unknown ids return domain.ErrTaskNotFound.
func (c *Client) GetConversion(ctx context.Context, id uuid.UUID) (*domain.ConversionTask, error) {
	var task domain.ConversionTask
	if err := c.do(ctx, http.MethodGet, "/api/v1/conversions/"+id.String(), nil, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// Confirm resumes a task awaiting verification. A nil pages uses the server-side session.
func (c *Client) Confirm(ctx context.Context, id uuid.UUID, pages map[string][]string) (*domain.ConversionTask, error) {
	var body interface{}
	if pages != nil {
		body = map[string]interface{}{"pages": pages}
	}
	var task domain.ConversionTask
	if err := c.do(ctx, http.MethodPost, "/api/v1/conversions/"+id.String()+"/confirm", body, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// Verification returns the open verification session of a task.
func (c *Client) Verification(ctx context.Context, id uuid.UUID) (*service.VerificationView, error) {
	var view service.VerificationView
	if err := c.do(ctx, http.MethodGet, "/api/v1/conversions/"+id.String()+"/verification", nil, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

// Toggle flips one element between keep and erase.
func (c *Client) Toggle(ctx context.Context, id uuid.UUID, pageID, elementID string) (*service.VerificationView, error) {
	return c.verificationEdit(ctx, id, "toggle", map[string]string{"page_id": pageID, "element_id": elementID})
}

// BulkSet sets every element of a page to status.
func (c *Client) BulkSet(ctx context.Context, id uuid.UUID, pageID string, status domain.ElementStatus) (*service.VerificationView, error) {
	return c.verificationEdit(ctx, id, "bulk", map[string]string{"page_id": pageID, "status": string(status)})
}

// Reset restores a page to its baseline recommendation.
func (c *Client) Reset(ctx context.Context, id uuid.UUID, pageID string) (*service.VerificationView, error) {
	return c.verificationEdit(ctx, id, "reset", map[string]string{"page_id": pageID})
}

func (c *Client) verificationEdit(ctx context.Context, id uuid.UUID, op string, body interface{}) (*service.VerificationView, error) {
	var view service.VerificationView
	if err := c.do(ctx, http.MethodPost, "/api/v1/conversions/"+id.String()+"/verification/"+op, body, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

// DownloadArtifact fetches the bundle of a completed task and the server's suggested file name.
func (c *Client) DownloadArtifact(ctx context.Context, id uuid.UUID) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/conversions/"+id.String()+"/artifact", http.NoBody)
	if err != nil {
		return nil, "", fmt.Errorf("creating request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", retry.Transient(fmt.Errorf("downloading artifact: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", retry.Transient(fmt.Errorf("reading artifact: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, "", decodeError(resp.StatusCode, data)
	}

	name := id.String() + ".zip"
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil && params["filename"] != "" {
		name = params["filename"]
	}
	return data, name, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader = http.NoBody
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return retry.Transient(fmt.Errorf("%s %s: %w", method, path, err))
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return retry.Transient(fmt.Errorf("reading response: %w", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp.StatusCode, data)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("decoding response envelope: %w", err)
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decoding response data: %w", err)
	}
	return nil
}

// decodeError turns a non-2xx response into a domain sentinel when the code is
// known, and into a *retry.StatusError otherwise so 429/5xx stay retryable.
func decodeError(status int, data []byte) error {
	var env envelope
	if err := json.Unmarshal(data, &env); err == nil && env.Error != nil {
		if sentinel, ok := codeErrors[env.Error.Code]; ok {
			return fmt.Errorf("%w: %s", sentinel, env.Error.Message)
		}
		return &retry.StatusError{Provider: "bananaslides", StatusCode: status, Body: env.Error.Code + ": " + env.Error.Message}
	}
	if status == http.StatusNotFound {
		return errors.New("endpoint not found")
	}
	body := string(data)
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	return &retry.StatusError{Provider: "bananaslides", StatusCode: status, Body: body}
}
