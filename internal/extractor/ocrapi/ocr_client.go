// Package ocrapi talks to an accurate text and table recognition service used
// for the second pass of hybrid extraction.
package ocrapi

import (
	"context"
	"encoding/base64"
	"strings"

	"bananaslides/internal/config"
	"bananaslides/internal/domain"
	"bananaslides/internal/port"
	"bananaslides/internal/provider"
)

// Recognizer implements port.RegionRecognizer.
type Recognizer struct {
	http *provider.Client
}

// NewRecognizer creates an OCR service client.
func NewRecognizer(cfg *config.EndpointConfig) *Recognizer {
	return &Recognizer{http: provider.NewClient("ocr", cfg)}
}

func (r *Recognizer) Name() string { return r.http.Name() }

type recognizeRequest struct {
	Image string `json:"image_base64"`
	Mode  string `json:"mode"`
}

type location struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type word struct {
	Words       string   `json:"words"`
	Location    location `json:"location"`
	Probability struct {
		Average float64 `json:"average"`
	} `json:"probability"`
}

type cell struct {
	Words    string   `json:"words"`
	Location location `json:"location"`
}

type recognizeResponse struct {
	WordsResult []word `json:"words_result"`
	Table       *struct {
		HTML  string `json:"html"`
		Cells []cell `json:"cells"`
	} `json:"table"`
}

// Recognize reads one crop. Tables come back with their HTML markup as content
// and one child per cell; text comes back as joined lines.
func (r *Recognizer) Recognize(ctx context.Context, crop port.PageImage, kind domain.ElementType) (*port.Recognition, error) {
	mode := "accurate"
	if kind == domain.ElementTable {
		mode = "table"
	}

	var resp recognizeResponse
	err := r.http.PostJSON(ctx, "/recognize", recognizeRequest{
		Image: base64.StdEncoding.EncodeToString(crop.Data),
		Mode:  mode,
	}, &resp)
	if err != nil {
		return nil, err
	}

	if kind == domain.ElementTable && resp.Table != nil {
		out := &port.Recognition{Content: resp.Table.HTML, Confidence: 1}
		for _, c := range resp.Table.Cells {
			out.Children = append(out.Children, port.DetectedRegion{
				Type:       domain.ElementText,
				BBox:       toBBox(c.Location),
				Content:    c.Words,
				Confidence: 1,
			})
		}
		return out, nil
	}

	lines := make([]string, 0, len(resp.WordsResult))
	var confSum float64
	for _, w := range resp.WordsResult {
		lines = append(lines, w.Words)
		confSum += w.Probability.Average
	}
	out := &port.Recognition{Content: strings.Join(lines, "\n")}
	if len(lines) > 0 {
		out.Confidence = confSum / float64(len(lines))
	}
	return out, nil
}

func toBBox(l location) domain.BBox {
	return domain.BBox{X0: l.Left, Y0: l.Top, X1: l.Left + l.Width, Y1: l.Top + l.Height}
}
