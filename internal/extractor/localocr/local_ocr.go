// Package localocr detects text lines with a locally hosted OCR server.
package localocr

import (
	"context"
	"encoding/base64"
	"fmt"
	"math"
	"strings"

	"bananaslides/internal/config"
	"bananaslides/internal/domain"
	"bananaslides/internal/port"
	"bananaslides/internal/provider"
)

// Detector implements port.LayoutDetector. Every detected line becomes a text region.
type Detector struct {
	http *provider.Client
}

// NewDetector creates a local OCR client. Requests share the process-wide local backend lock.
func NewDetector(cfg *config.EndpointConfig) *Detector {
	return &Detector{http: provider.NewLocalClient("local-ocr", cfg)}
}

func (d *Detector) Name() string { return d.http.Name() }

type ocrRequest struct {
	Image string `json:"image_base64"`
}

type ocrResponse struct {
	JSONContent struct {
		RecTexts  []string       `json:"rec_texts"`
		RecPolys  [][][2]float64 `json:"rec_polys"`
		RecScores []float64      `json:"rec_scores"`
	} `json:"json_content"`
}

func (d *Detector) Detect(ctx context.Context, page port.PageImage) ([]port.DetectedRegion, error) {
	var resp ocrResponse
	if err := d.http.PostJSON(ctx, "/ocr", ocrRequest{Image: base64.StdEncoding.EncodeToString(page.Data)}, &resp); err != nil {
		return nil, err
	}

	res := resp.JSONContent
	if len(res.RecPolys) != len(res.RecTexts) {
		return nil, fmt.Errorf("local ocr returned %d texts and %d polygons", len(res.RecTexts), len(res.RecPolys))
	}

	out := make([]port.DetectedRegion, 0, len(res.RecTexts))
	for i, text := range res.RecTexts {
		if strings.TrimSpace(text) == "" || len(res.RecPolys[i]) == 0 {
			continue
		}
		conf := 1.0
		if i < len(res.RecScores) {
			conf = res.RecScores[i]
		}
		out = append(out, port.DetectedRegion{
			Type:       domain.ElementText,
			BBox:       polyBBox(res.RecPolys[i]),
			Content:    text,
			Confidence: conf,
		})
	}
	return out, nil
}

func polyBBox(poly [][2]float64) domain.BBox {
	b := domain.BBox{X0: math.Inf(1), Y0: math.Inf(1), X1: math.Inf(-1), Y1: math.Inf(-1)}
	for _, p := range poly {
		b.X0 = math.Min(b.X0, p[0])
		b.Y0 = math.Min(b.Y0, p[1])
		b.X1 = math.Max(b.X1, p[0])
		b.Y1 = math.Max(b.Y1, p[1])
	}
	return b
}
