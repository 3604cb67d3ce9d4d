// Package extractor turns a page image into a layout tree and the baseline set
// of elements recommended for regeneration.
package extractor

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/text/unicode/norm"

	"bananaslides/internal/domain"
	"bananaslides/internal/imaging"
	"bananaslides/internal/port"
	"bananaslides/internal/retry"
)

// Options tunes extraction.
type Options struct {
	PageDeadline  time.Duration
	Retry         retry.Policy
	LowConfidence float64
	// Image regions smaller than MinImageSize on either edge or MinImageArea
	// in total are never re-analysed.
	MinImageSize int
	MinImageArea int
}

// Extractor runs the configured layout backends for each extractor method.
type Extractor struct {
	detectors map[domain.ExtractorMethod]port.LayoutDetector
	refiner   port.RegionRecognizer
	opts      Options
	log       zerolog.Logger
}

// New creates an Extractor. hybrid additionally requires refiner.
func New(detectors map[domain.ExtractorMethod]port.LayoutDetector, refiner port.RegionRecognizer, opts Options, log zerolog.Logger) *Extractor {
	return &Extractor{
		detectors: detectors,
		refiner:   refiner,
		opts:      opts,
		log:       log.With().Str("component", "extractor").Logger(),
	}
}

// Supports reports whether a backend is configured for method.
func (e *Extractor) Supports(method domain.ExtractorMethod) bool {
	if _, ok := e.detectors[method]; !ok {
		return false
	}
	return method != domain.ExtractorHybrid || e.refiner != nil
}

// pageRun carries the state of one Extract call.
type pageRun struct {
	*Extractor
	pageID   string
	img      *image.RGBA
	detector port.LayoutDetector
	warnings []domain.Warning
}

// Extract analyses one page, re-analysing large image regions up to maxDepth
// levels deep. Failures wrap ErrExtractionTimeout when the page deadline passes
// and ErrExtractionFailed otherwise. Degraded regions are reported as warnings
// on the analysis.
func (e *Extractor) Extract(ctx context.Context, pageID string, img *image.RGBA, method domain.ExtractorMethod, maxDepth int) (*domain.LayoutAnalysis, error) {
	if !e.Supports(method) {
		return nil, fmt.Errorf("%w: no backend configured for %q", domain.ErrExtractionFailed, method)
	}
	run := &pageRun{Extractor: e, pageID: pageID, img: img, detector: e.detectors[method]}

	dctx := ctx
	if e.opts.PageDeadline > 0 {
		var cancel context.CancelFunc
		dctx, cancel = context.WithTimeout(ctx, e.opts.PageDeadline)
		defer cancel()
	}

	start := time.Now()
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	regions, err := run.detect(dctx, img)
	if err != nil {
		return nil, e.classify(dctx, err)
	}
	regions = sanitize(regions, w, h)

	if err := run.descend(dctx, regions, maxDepth); err != nil {
		return nil, e.classify(dctx, err)
	}

	if method == domain.ExtractorHybrid {
		if err := run.refine(dctx, regions); err != nil {
			return nil, e.classify(dctx, err)
		}
	}
	if err := dctx.Err(); err != nil {
		return nil, e.classify(dctx, err)
	}

	elements := assignIDs(regions)
	analysis := &domain.LayoutAnalysis{
		PageID:   pageID,
		Width:    w,
		Height:   h,
		Elements: elements,
		Warnings: run.warnings,
	}
	analysis.BaselineEraseIDs = baseline(elements)

	e.log.Info().
		Str("page_id", pageID).
		Str("method", string(method)).
		Int("elements", len(domain.Flatten(elements))).
		Int("baseline_erase", len(analysis.BaselineEraseIDs)).
		Int("warnings", len(run.warnings)).
		Dur("took", time.Since(start)).
		Msg("page extracted")
	return analysis, nil
}

func (e *Extractor) classify(dctx context.Context, err error) error {
	if errors.Is(dctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", domain.ErrExtractionTimeout, err)
	}
	return fmt.Errorf("%w: %w", domain.ErrExtractionFailed, err)
}

func (r *pageRun) warn(message string) {
	r.warnings = append(r.warnings, domain.Warning{PageID: r.pageID, Stage: domain.StageExtract, Message: message})
}

func (r *pageRun) detect(ctx context.Context, img *image.RGBA) ([]port.DetectedRegion, error) {
	data, err := imaging.EncodePNG(img)
	if err != nil {
		return nil, err
	}
	var regions []port.DetectedRegion
	err = retry.Do(ctx, r.opts.Retry, func(ctx context.Context) error {
		var derr error
		regions, derr = r.detector.Detect(ctx, port.PageImage{Data: data, Width: img.Bounds().Dx(), Height: img.Bounds().Dy()})
		return derr
	}, func(err error, next time.Duration) {
		r.log.Warn().Err(err).Str("page_id", r.pageID).Str("backend", r.detector.Name()).Dur("retry_in", next).Msg("layout detection failed, retrying")
	})
	return regions, err
}

// descend re-detects the inside of every large childless image region and
// attaches what it finds as children, repeating on those children while depth
// remains. A failed sub-detection leaves the region as it was.
func (r *pageRun) descend(ctx context.Context, regions []port.DetectedRegion, depth int) error {
	if depth <= 0 {
		return nil
	}
	for i := range regions {
		reg := &regions[i]
		if !r.expandable(reg) {
			if err := r.descend(ctx, reg.Children, depth); err != nil {
				return err
			}
			continue
		}
		rect := imaging.Rect(reg.BBox, r.img.Bounds())
		found, err := r.detect(ctx, imaging.Crop(r.img, rect))
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			r.log.Warn().Err(err).Str("page_id", r.pageID).Msg("image region analysis failed, keeping region as is")
			r.warn("image region analysis failed: " + err.Error())
			continue
		}
		dx, dy := float64(rect.Min.X), float64(rect.Min.Y)
		for j := range found {
			offset(&found[j], dx, dy)
		}
		reg.Children = sanitize(found, r.img.Bounds().Dx(), r.img.Bounds().Dy())
		if err := r.descend(ctx, reg.Children, depth-1); err != nil {
			return err
		}
	}
	return nil
}

func (r *pageRun) expandable(reg *port.DetectedRegion) bool {
	if reg.Type != domain.ElementImage || len(reg.Children) > 0 {
		return false
	}
	rect := imaging.Rect(reg.BBox, r.img.Bounds())
	w, h := rect.Dx(), rect.Dy()
	return w >= r.opts.MinImageSize && h >= r.opts.MinImageSize && w*h >= r.opts.MinImageArea
}

func offset(reg *port.DetectedRegion, dx, dy float64) {
	reg.BBox = reg.BBox.Offset(dx, dy)
	for i := range reg.Children {
		offset(&reg.Children[i], dx, dy)
	}
}

// refine re-reads low-confidence text and every table with the recognizer, replacing
// only those regions. A region whose refinement fails keeps its first-pass reading
// unless the page deadline has passed.
func (r *pageRun) refine(ctx context.Context, regions []port.DetectedRegion) error {
	for i := range regions {
		reg := &regions[i]
		if r.needsRefinement(reg) {
			if err := ctx.Err(); err != nil {
				return err
			}
			replaced, err := r.refineOne(ctx, reg)
			if err != nil {
				return err
			}
			if replaced {
				continue
			}
		}
		if err := r.refine(ctx, reg.Children); err != nil {
			return err
		}
	}
	return nil
}

func (e *Extractor) needsRefinement(r *port.DetectedRegion) bool {
	switch r.Type {
	case domain.ElementTable:
		return true
	case domain.ElementText:
		return r.Confidence < e.opts.LowConfidence
	default:
		return false
	}
}

// refineOne reports whether reg was replaced. Only context errors are returned.
func (r *pageRun) refineOne(ctx context.Context, reg *port.DetectedRegion) (bool, error) {
	rect := imaging.Rect(reg.BBox, r.img.Bounds())
	if rect.Empty() {
		return false, nil
	}
	crop := imaging.Crop(r.img, rect)
	data, err := imaging.EncodePNG(crop)
	if err != nil {
		return false, nil
	}

	var rec *port.Recognition
	err = retry.Do(ctx, r.opts.Retry, func(ctx context.Context) error {
		var rerr error
		rec, rerr = r.refiner.Recognize(ctx, port.PageImage{Data: data, Width: rect.Dx(), Height: rect.Dy()}, reg.Type)
		return rerr
	}, nil)
	if err != nil {
		if ctx.Err() != nil {
			return false, err
		}
		r.log.Warn().Err(err).Str("page_id", r.pageID).Str("type", string(reg.Type)).Msg("region refinement failed, keeping first pass")
		r.warn(string(reg.Type) + " refinement failed, kept first-pass reading: " + err.Error())
		return false, nil
	}

	if c := normalize(rec.Content); c != "" {
		reg.Content = c
	}
	reg.Confidence = rec.Confidence
	if len(rec.Children) > 0 {
		dx, dy := float64(rect.Min.X), float64(rect.Min.Y)
		children := make([]port.DetectedRegion, len(rec.Children))
		for i, c := range rec.Children {
			offset(&c, dx, dy)
			children[i] = c
		}
		reg.Children = sanitize(children, r.img.Bounds().Dx(), r.img.Bounds().Dy())
	}
	return true, nil
}

// sanitize clamps every box to the page, normalizes content and drops empty
// boxes. Children of a dropped region are promoted to its level.
func sanitize(regions []port.DetectedRegion, w, h int) []port.DetectedRegion {
	out := make([]port.DetectedRegion, 0, len(regions))
	for _, r := range regions {
		r.BBox = r.BBox.Clamp(w, h)
		r.Content = normalize(r.Content)
		r.Children = sanitize(r.Children, w, h)
		if !domain.ValidElementTypes[r.Type] {
			r.Type = domain.ElementOther
		}
		if r.BBox.Empty() {
			out = append(out, r.Children...)
			continue
		}
		out = append(out, r)
	}
	return out
}

func normalize(s string) string {
	return strings.TrimSpace(norm.NFC.String(s))
}

func baseline(elements []domain.LayoutElement) []string {
	var ids []string
	for _, el := range domain.Flatten(elements) {
		if domain.Recommended(el.Type) {
			ids = append(ids, el.ID)
		}
	}
	return ids
}
