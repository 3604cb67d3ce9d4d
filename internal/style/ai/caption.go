// Package ai asks a vision model for the style of the text in a crop.
package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"bananaslides/internal/config"
	"bananaslides/internal/domain"
	"bananaslides/internal/gemini"
	"bananaslides/internal/port"
)

const promptTemplate = `The image is a crop of a slide that contains the text %q.
Describe how the text is rendered. Answer with JSON only, using this shape:
{"font_size_px": number, "bold": boolean, "italic": boolean, "color_rgb": [r, g, b], "align": "left" | "center" | "right"}
font_size_px is the em size in pixels of the crop.`

// Inferrer implements port.StyleInferrer.
type Inferrer struct {
	client *gemini.Client
}

// NewInferrer creates a style model client.
func NewInferrer(cfg *config.EndpointConfig) *Inferrer {
	return &Inferrer{client: gemini.NewClient(cfg, "gemini-2.5-flash")}
}

type styleJSON struct {
	FontSizePx float64 `json:"font_size_px"`
	Bold       bool    `json:"bold"`
	Italic     bool    `json:"italic"`
	ColorRGB   []int   `json:"color_rgb"`
	Align      string  `json:"align"`
}

func (a *Inferrer) InferStyle(ctx context.Context, crop port.PageImage, text string) (*domain.TextStyle, error) {
	out, err := a.client.Generate(ctx, []gemini.Part{
		gemini.ImagePart(crop.Data),
		gemini.TextPart(fmt.Sprintf(promptTemplate, text)),
	}, "application/json", nil)
	if err != nil {
		return nil, err
	}
	return parseStyle(out.Text)
}

func parseStyle(text string) (*domain.TextStyle, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimSuffix(strings.TrimPrefix(text, "```"), "```")

	var s styleJSON
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &s); err != nil {
		return nil, fmt.Errorf("parsing style JSON: %w", err)
	}
	if s.FontSizePx <= 0 {
		return nil, fmt.Errorf("style model returned font size %v", s.FontSizePx)
	}

	st := &domain.TextStyle{
		FontSizePx: s.FontSizePx,
		Bold:       s.Bold,
		Italic:     s.Italic,
		Align:      "left",
		Confidence: 0.9,
	}
	switch s.Align {
	case "center", "right":
		st.Align = s.Align
	}
	if len(s.ColorRGB) == 3 {
		for i, c := range s.ColorRGB {
			st.ColorRGB[i] = clamp(c)
		}
	}
	return st, nil
}

func clamp(c int) int {
	if c < 0 {
		return 0
	}
	if c > 255 {
		return 255
	}
	return c
}
