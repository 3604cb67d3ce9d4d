// Package inpaint removes erased regions from a page image and repaints the background behind them.
package inpaint

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/rs/zerolog"

	"bananaslides/internal/domain"
	"bananaslides/internal/imaging"
	"bananaslides/internal/port"
	"bananaslides/internal/retry"
)

// Options tunes reconstruction.
type Options struct {
	Retry       retry.Policy
	MaskPadding int
}

// Reconstructor produces clean backgrounds.
//
// fast and offline never change pixels outside the erase regions. generative and
// hybrid may change pixels within MaskPadding of them, never further.
type Reconstructor struct {
	generative port.Inpainter
	local      port.Inpainter
	opts       Options
	log        zerolog.Logger
}

// New creates a Reconstructor. Either backend may be nil: without local the offline
// method uses the in-process fill, without generative the hybrid and generative
// methods are unsupported.
func New(generative, local port.Inpainter, opts Options, log zerolog.Logger) *Reconstructor {
	return &Reconstructor{
		generative: generative,
		local:      local,
		opts:       opts,
		log:        log.With().Str("component", "reconstructor").Logger(),
	}
}

// Supports reports whether method can run with the configured backends.
func (r *Reconstructor) Supports(method domain.InpaintMethod) bool {
	switch method {
	case domain.InpaintFast, domain.InpaintOffline:
		return true
	case domain.InpaintGenerative, domain.InpaintHybrid:
		return r.generative != nil
	default:
		return false
	}
}

// Reconstruct returns a copy of img with the erase regions repainted.
func (r *Reconstructor) Reconstruct(ctx context.Context, img *image.RGBA, regions []domain.BBox, method domain.InpaintMethod) (*image.RGBA, error) {
	if !r.Supports(method) {
		return nil, fmt.Errorf("%w: no backend configured for %q", domain.ErrReconstructionFailed, method)
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	var exactRects, paddedRects []image.Rectangle
	for _, b := range regions {
		rect := imaging.Rect(b, bounds)
		if rect.Empty() {
			continue
		}
		exactRects = append(exactRects, rect)
		paddedRects = append(paddedRects, imaging.Rect(b.Dilate(float64(r.opts.MaskPadding)), bounds))
	}
	if len(exactRects) == 0 {
		return imaging.ToRGBA(img), nil
	}
	exact := imaging.NewMask(w, h, exactRects)
	padded := imaging.NewMask(w, h, paddedRects)

	start := time.Now()
	defer func() {
		r.log.Debug().Str("method", string(method)).Int("regions", len(exactRects)).Dur("took", time.Since(start)).Msg("background reconstructed")
	}()

	switch method {
	case domain.InpaintFast:
		return Fill(img, exact), nil

	case domain.InpaintOffline:
		if r.local == nil {
			return Fill(img, exact), nil
		}
		patch, err := r.repaint(ctx, r.local, img, padded)
		if err != nil {
			return nil, err
		}
		return imaging.CompositeMasked(img, patch, exact), nil

	case domain.InpaintGenerative:
		patch, err := r.repaint(ctx, r.generative, img, padded)
		if err != nil {
			return nil, err
		}
		return imaging.CompositeMasked(img, patch, padded), nil

	default: // hybrid
		base := Fill(img, exact)
		patch, err := r.repaint(ctx, r.generative, base, padded)
		if err != nil {
			return nil, err
		}
		return imaging.CompositeMasked(base, patch, padded), nil
	}
}

func (r *Reconstructor) repaint(ctx context.Context, backend port.Inpainter, img *image.RGBA, mask *imaging.Mask) (image.Image, error) {
	imgData, err := imaging.EncodePNG(img)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrReconstructionFailed, err)
	}
	maskData, err := imaging.EncodePNG(mask.Image())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrReconstructionFailed, err)
	}

	var out []byte
	err = retry.Do(ctx, r.opts.Retry, func(ctx context.Context) error {
		var ierr error
		out, ierr = backend.Inpaint(ctx, imgData, maskData)
		return ierr
	}, func(err error, next time.Duration) {
		r.log.Warn().Err(err).Str("backend", backend.Name()).Dur("retry_in", next).Msg("inpaint failed, retrying")
	})
	switch {
	case err == nil:
	case errors.Is(err, retry.ErrExhausted), errors.Is(err, context.DeadlineExceeded):
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrReconstructionTimeout, backend.Name(), err)
	default:
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrReconstructionFailed, backend.Name(), err)
	}

	patch, _, err := imaging.Decode(out)
	if err != nil {
		return nil, fmt.Errorf("%w: %s returned an unreadable image: %v", domain.ErrReconstructionFailed, backend.Name(), err)
	}
	return patch, nil
}
