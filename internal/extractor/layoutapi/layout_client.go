// Package layoutapi talks to a document layout analysis service that returns
// a region tree for a whole page.
package layoutapi

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"bananaslides/internal/config"
	"bananaslides/internal/domain"
	"bananaslides/internal/port"
	"bananaslides/internal/provider"
)

// Detector implements port.LayoutDetector over the layout service.
type Detector struct {
	http *provider.Client
}

// NewDetector creates a layout service client.
func NewDetector(cfg *config.EndpointConfig) *Detector {
	return &Detector{http: provider.NewClient("layout", cfg)}
}

func (d *Detector) Name() string { return d.http.Name() }

type detectRequest struct {
	Image  string `json:"image_base64"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type region struct {
	Type       string    `json:"type"`
	BBox       []float64 `json:"bbox"`
	Content    string    `json:"content"`
	Confidence float64   `json:"confidence"`
	Children   []region  `json:"children"`
}

type detectResponse struct {
	Regions []region `json:"regions"`
}

func (d *Detector) Detect(ctx context.Context, page port.PageImage) ([]port.DetectedRegion, error) {
	var resp detectResponse
	err := d.http.PostJSON(ctx, "/layout", detectRequest{
		Image:  base64.StdEncoding.EncodeToString(page.Data),
		Width:  page.Width,
		Height: page.Height,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return convert(resp.Regions)
}

func convert(in []region) ([]port.DetectedRegion, error) {
	out := make([]port.DetectedRegion, 0, len(in))
	for _, r := range in {
		if len(r.BBox) != 4 {
			return nil, fmt.Errorf("layout region %q has %d bbox values, want 4", r.Type, len(r.BBox))
		}
		children, err := convert(r.Children)
		if err != nil {
			return nil, err
		}
		out = append(out, port.DetectedRegion{
			Type:       MapType(r.Type),
			BBox:       domain.BBox{X0: r.BBox[0], Y0: r.BBox[1], X1: r.BBox[2], Y1: r.BBox[3]},
			Content:    r.Content,
			Confidence: r.Confidence,
			Children:   children,
		})
	}
	return out, nil
}

// MapType folds the service's fine-grained categories into element types.
func MapType(t string) domain.ElementType {
	switch strings.ToLower(t) {
	case "text", "title", "paragraph", "list", "caption", "header", "footer", "formula", "page_number":
		return domain.ElementText
	case "table", "table_body":
		return domain.ElementTable
	case "image", "figure", "chart", "picture":
		return domain.ElementImage
	default:
		return domain.ElementOther
	}
}
