// Package gemini is a minimal client for the generateContent API, used for
// generative background repaint and text style captioning.
package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"bananaslides/internal/config"
	"bananaslides/internal/retry"
)

const (
	apiBaseURL = "https://generativelanguage.googleapis.com/v1beta/models"
)

// ErrNoContent is returned when the model answered without a usable part.
var ErrNoContent = errors.New("empty response from API")

// Client calls one model's generateContent endpoint.
type Client struct {
	apiKey   string
	model    string
	endpoint string
	client   *http.Client
}

// NewClient creates a client. cfg.URL overrides the public endpoint, e.g. for a proxy or tests.
func NewClient(cfg *config.EndpointConfig, defaultModel string) *Client {
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	timeout := cfg.Timeout()
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	endpoint := cfg.URL
	if endpoint == "" {
		endpoint = fmt.Sprintf("%s/%s:generateContent", apiBaseURL, model)
	}
	return &Client{
		apiKey:   cfg.APIKey,
		model:    model,
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.model }

// Part is one input part: either inline image bytes or text.
type Part struct {
	MIMEType string
	Data     []byte
	Text     string
}

// ImagePart wraps PNG bytes.
func ImagePart(png []byte) Part {
	return Part{MIMEType: "image/png", Data: png}
}

// TextPart wraps a prompt.
func TextPart(text string) Part {
	return Part{Text: text}
}

// Output is the first candidate's content.
type Output struct {
	Text   string
	Images [][]byte
}

// Generate sends parts as a single user turn. responseMIME, when set, asks for
// structured text output (e.g. application/json).
func (c *Client) Generate(ctx context.Context, parts []Part, responseMIME string, responseModalities []string) (*Output, error) {
	reqParts := make([]map[string]interface{}, 0, len(parts))
	for _, p := range parts {
		if p.Data != nil {
			reqParts = append(reqParts, map[string]interface{}{
				"inline_data": map[string]interface{}{
					"mime_type": p.MIMEType,
					"data":      base64.StdEncoding.EncodeToString(p.Data),
				},
			})
			continue
		}
		reqParts = append(reqParts, map[string]interface{}{"text": p.Text})
	}

	genConfig := map[string]interface{}{
		"maxOutputTokens": 8192,
	}
	if responseMIME != "" {
		genConfig["responseMimeType"] = responseMIME
	}
	if len(responseModalities) > 0 {
		genConfig["responseModalities"] = responseModalities
	}

	reqBody := map[string]interface{}{
		"contents": []map[string]interface{}{
			{
				"role":  "user",
				"parts": reqParts,
			},
		},
		"generationConfig": genConfig,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, retry.Transient(fmt.Errorf("calling gemini API: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, retry.Transient(fmt.Errorf("reading response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &retry.StatusError{Provider: "gemini", StatusCode: resp.StatusCode, Body: truncate(string(respBody), 500)}
	}

	return parseResponse(respBody)
}

// geminiResponse models the Gemini API response.
type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text       string `json:"text"`
				InlineData *struct {
					MIMEType string `json:"mime_type"`
					Data     string `json:"data"`
				} `json:"inline_data"`
				InlineDataCamel *struct {
					MIMEType string `json:"mimeType"`
					Data     string `json:"data"`
				} `json:"inlineData"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
}

func parseResponse(body []byte) (*Output, error) {
	var resp geminiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("unmarshaling response: %w", err)
	}

	if len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("%w: no candidates", ErrNoContent)
	}
	if len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("%w: no parts", ErrNoContent)
	}

	out := &Output{}
	for _, p := range resp.Candidates[0].Content.Parts {
		data := ""
		switch {
		case p.InlineData != nil:
			data = p.InlineData.Data
		case p.InlineDataCamel != nil:
			data = p.InlineDataCamel.Data
		default:
			out.Text += p.Text
			continue
		}
		img, err := base64.StdEncoding.DecodeString(data)
		if err != nil {
			return nil, fmt.Errorf("decoding inline image: %w", err)
		}
		out.Images = append(out.Images, img)
	}
	return out, nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
