//go:build !ocr

package tesseract

import (
	"context"
	"errors"

	"bananaslides/internal/port"
)

// ErrNotEnabled is returned when Tesseract support was not compiled in.
// Rebuild with -tags ocr to enable it.
var ErrNotEnabled = errors.New("tesseract support not enabled; rebuild with -tags ocr")

// Enabled reports whether Tesseract support was compiled in.
const Enabled = false

// Detector is a stub that fails every call.
type Detector struct{}

// NewDetector returns the stub detector.
func NewDetector(lang string) *Detector {
	return &Detector{}
}

func (d *Detector) Name() string { return "tesseract" }

func (d *Detector) Detect(ctx context.Context, page port.PageImage) ([]port.DetectedRegion, error) {
	return nil, ErrNotEnabled
}
