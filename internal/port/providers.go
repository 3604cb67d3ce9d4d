package port

import (
	"context"

	"bananaslides/internal/domain"
)

// PageImage is a page raster encoded as PNG, with its pixel size.
type PageImage struct {
	Data   []byte
	Width  int
	Height int
}

// DetectedRegion is one region reported by a layout backend, before ids are assigned.
type DetectedRegion struct {
	Type       domain.ElementType
	BBox       domain.BBox
	Content    string
	Confidence float64
	Children   []DetectedRegion
}

// LayoutDetector finds the structural regions of a whole page.
type LayoutDetector interface {
	Name() string
	Detect(ctx context.Context, page PageImage) ([]DetectedRegion, error)
}

// Recognition is the refined reading of one cropped region. Child boxes are
// relative to the crop origin.
type Recognition struct {
	Content    string
	Confidence float64
	Children   []DetectedRegion
}

// RegionRecognizer re-reads a single region with a text/table specialised model.
type RegionRecognizer interface {
	Name() string
	Recognize(ctx context.Context, crop PageImage, kind domain.ElementType) (*Recognition, error)
}

// Inpainter repaints the white pixels of mask over img. Both are PNG encoded and
// the result must have img's dimensions.
type Inpainter interface {
	Name() string
	Inpaint(ctx context.Context, img, mask []byte) ([]byte, error)
}

// StyleInferrer asks a model for the appearance of the text in a crop.
type StyleInferrer interface {
	InferStyle(ctx context.Context, crop PageImage, text string) (*domain.TextStyle, error)
}
