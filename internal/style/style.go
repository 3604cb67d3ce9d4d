// Package style infers the appearance of regenerated text.
package style

import (
	"context"
	"errors"
	"image"
	"strings"

	"github.com/rs/zerolog"

	"bananaslides/internal/domain"
	"bananaslides/internal/imaging"
	"bananaslides/internal/port"
)

// Inferrer dispatches on the task's text style mode.
type Inferrer struct {
	ai  port.StyleInferrer
	log zerolog.Logger
}

// NewInferrer creates an Inferrer. ai may be nil, in which case inferred-ai is unsupported.
func NewInferrer(ai port.StyleInferrer, log zerolog.Logger) *Inferrer {
	return &Inferrer{ai: ai, log: log.With().Str("component", "style").Logger()}
}

// Supports reports whether mode can run with the configured backends.
func (s *Inferrer) Supports(mode domain.TextStyleMode) bool {
	if mode == domain.StyleInferredAI {
		return s.ai != nil
	}
	return domain.ValidTextStyleModes[mode]
}

// Infer returns the style for one text-bearing element of page. A failed model
// call falls back to pixel analysis so assembly never fails on style; fallback
// then carries the model's error while st still holds the usable style.
func (s *Inferrer) Infer(ctx context.Context, mode domain.TextStyleMode, page *image.RGBA, el *domain.LayoutElement) (st domain.TextStyle, fallback error) {
	if mode == domain.StyleDefault {
		return domain.DefaultTextStyle, nil
	}

	rect := imaging.Rect(el.BBox, page.Bounds())
	if rect.Empty() {
		return domain.DefaultTextStyle, nil
	}
	crop := imaging.Crop(page, rect)
	lines := 1 + strings.Count(strings.TrimSpace(el.Content), "\n")

	if mode == domain.StyleInferredAI && s.ai != nil {
		data, err := imaging.EncodePNG(crop)
		if err == nil {
			inferred, aerr := s.ai.InferStyle(ctx, port.PageImage{Data: data, Width: rect.Dx(), Height: rect.Dy()}, el.Content)
			if aerr == nil && inferred != nil {
				return *inferred, nil
			}
			err = aerr
			if err == nil {
				err = errors.New("style model returned no style")
			}
		}
		s.log.Warn().Err(err).Str("element_id", el.ID).Msg("style model failed, using pixel analysis")
		return Visual(crop, lines), err
	}
	return Visual(crop, lines), nil
}
