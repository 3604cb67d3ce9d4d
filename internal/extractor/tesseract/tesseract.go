//go:build ocr

// Package tesseract detects text regions in-process with Tesseract. It is the
// offline fallback when no local OCR server is configured.
//
// This file requires the "ocr" build tag and a system Tesseract install.
package tesseract

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"bananaslides/internal/domain"
	"bananaslides/internal/port"
)

// Enabled reports whether Tesseract support was compiled in.
const Enabled = true

// Detector implements port.LayoutDetector with paragraph-level Tesseract boxes.
type Detector struct {
	langs []string
}

// NewDetector creates a detector for "+"-separated languages, e.g. "eng+deu".
func NewDetector(lang string) *Detector {
	if lang == "" {
		lang = "eng"
	}
	return &Detector{langs: strings.Split(lang, "+")}
}

func (d *Detector) Name() string { return "tesseract" }

// Detect runs one Tesseract pass. A client is created per call because
// gosseract clients are not safe for concurrent use.
func (d *Detector) Detect(ctx context.Context, page port.PageImage) ([]port.DetectedRegion, error) {
	client := gosseract.NewClient()
	defer func() { _ = client.Close() }()

	if err := client.SetLanguage(d.langs...); err != nil {
		return nil, fmt.Errorf("tesseract set language: %w", err)
	}
	if err := client.SetImageFromBytes(page.Data); err != nil {
		return nil, fmt.Errorf("tesseract set image: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_PARA)
	if err != nil {
		return nil, fmt.Errorf("tesseract recognize: %w", err)
	}

	out := make([]port.DetectedRegion, 0, len(boxes))
	for _, b := range boxes {
		text := strings.TrimSpace(b.Word)
		if text == "" {
			continue
		}
		out = append(out, port.DetectedRegion{
			Type: domain.ElementText,
			BBox: domain.BBox{
				X0: float64(b.Box.Min.X), Y0: float64(b.Box.Min.Y),
				X1: float64(b.Box.Max.X), Y1: float64(b.Box.Max.Y),
			},
			Content:    text,
			Confidence: b.Confidence / 100,
		})
	}
	return out, nil
}
