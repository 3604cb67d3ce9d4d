// Package assembler merges a reconstructed background, the preserved regions of
// the source page, and regenerated editable objects into one slide.
package assembler

import (
	"context"
	"fmt"
	"image"

	"github.com/rs/zerolog"

	"bananaslides/internal/domain"
	"bananaslides/internal/imaging"
)

// Styler infers the style of one text-bearing element. A non-nil fallback
// reports that st came from a degraded path.
type Styler interface {
	Infer(ctx context.Context, mode domain.TextStyleMode, page *image.RGBA, el *domain.LayoutElement) (st domain.TextStyle, fallback error)
}

// Input carries one page through assembly.
type Input struct {
	Page          *image.RGBA
	Analysis      *domain.LayoutAnalysis
	EraseIDs      []string
	Background    *image.RGBA
	BackgroundRef string
	StyleMode     domain.TextStyleMode
}

// Result is the assembled slide plus the background it references.
type Result struct {
	Slide      domain.EditableSlide
	Background *image.RGBA
	Warnings   []domain.Warning
}

// Assembler builds editable slides.
type Assembler struct {
	styler Styler
	log    zerolog.Logger
}

// New creates an Assembler.
func New(styler Styler, log zerolog.Logger) *Assembler {
	return &Assembler{styler: styler, log: log.With().Str("component", "assembler").Logger()}
}

// Assemble produces the slide for one page.
//
// Kept regions are pasted back from the source page so they are pixel-exact, except
// where an erased element lies on top of them in traversal order. Erased elements become objects in
// depth-first order; an element whose ancestor already became a text box or table
// is part of that object and is not emitted again.
func (a *Assembler) Assemble(ctx context.Context, in Input) (*Result, error) {
	if in.Page == nil || in.Analysis == nil || in.Background == nil {
		return nil, fmt.Errorf("%w: missing page, analysis, or background", domain.ErrAssemblyFailed)
	}
	pb := in.Page.Bounds()
	if in.Background.Bounds().Size() != pb.Size() {
		return nil, fmt.Errorf("%w: background is %v, page is %v",
			domain.ErrAssemblyFailed, in.Background.Bounds().Size(), pb.Size())
	}

	index := in.Analysis.Index()
	erase := make(map[string]bool, len(in.EraseIDs))
	for _, id := range in.EraseIDs {
		if _, ok := index[id]; !ok {
			return nil, fmt.Errorf("%w: %s on page %s", domain.ErrInvalidElement, id, in.Analysis.PageID)
		}
		erase[id] = true
	}

	bg := a.preserveKept(in, erase)

	res := &Result{}
	slide := domain.EditableSlide{
		PageID:             in.Analysis.PageID,
		Width:              pb.Dx(),
		Height:             pb.Dy(),
		BackgroundImageRef: in.BackgroundRef,
		Objects:            []domain.EditableObject{},
	}

	var walk func(els []domain.LayoutElement)
	walk = func(els []domain.LayoutElement) {
		for i := range els {
			el := &els[i]
			if erase[el.ID] {
				obj := a.object(ctx, in, el, res)
				obj.ZIndex = len(slide.Objects)
				slide.Objects = append(slide.Objects, obj)
				if obj.Kind != domain.ObjectImagePlaceholder {
					continue
				}
			}
			walk(el.Children)
		}
	}
	walk(in.Analysis.Elements)

	a.log.Debug().
		Str("page_id", slide.PageID).
		Int("objects", len(slide.Objects)).
		Int("warnings", len(res.Warnings)).
		Msg("slide assembled")
	res.Slide, res.Background = slide, bg
	return res, nil
}

// preserveKept copies kept-element pixels from the source page onto the background.
// Elements are applied in traversal order, so where regions overlap the later
// element decides: erased text on a kept image stays repainted, and a kept child
// of an erased container is pasted back.
func (a *Assembler) preserveKept(in Input, erase map[string]bool) *image.RGBA {
	bounds := image.Rect(0, 0, in.Page.Bounds().Dx(), in.Page.Bounds().Dy())
	mask := imaging.NewMask(bounds.Dx(), bounds.Dy(), nil)
	kept := 0
	for _, el := range domain.Flatten(in.Analysis.Elements) {
		keep := !erase[el.ID]
		if keep {
			kept++
		}
		mask.Set(imaging.Rect(el.BBox, bounds), keep)
	}
	if kept == 0 {
		return imaging.ToRGBA(in.Background)
	}
	return imaging.CompositeMasked(in.Background, in.Page, mask)
}

func (a *Assembler) object(ctx context.Context, in Input, el *domain.LayoutElement, res *Result) domain.EditableObject {
	obj := domain.EditableObject{ElementID: el.ID, BBox: el.BBox}
	switch el.Type {
	case domain.ElementText:
		obj.Kind = domain.ObjectTextBox
		obj.Text = el.Content
		st := a.style(ctx, in, el, res)
		obj.Style = &st
	case domain.ElementTable:
		obj.Kind = domain.ObjectTable
		obj.Table = TableGrid(el)
		// Styled as one line per row so size estimates see the row count.
		proxy := domain.LayoutElement{ID: el.ID, Type: el.Type, BBox: el.BBox, Content: PlainText(obj.Table)}
		st := a.style(ctx, in, &proxy, res)
		obj.Style = &st
	default:
		obj.Kind = domain.ObjectImagePlaceholder
	}
	return obj
}

func (a *Assembler) style(ctx context.Context, in Input, el *domain.LayoutElement, res *Result) domain.TextStyle {
	st, fallback := a.styler.Infer(ctx, in.StyleMode, in.Page, el)
	if fallback != nil {
		res.Warnings = append(res.Warnings, domain.Warning{
			PageID:    in.Analysis.PageID,
			ElementID: el.ID,
			Stage:     domain.StageAssemble,
			Message:   "text style fell back to pixel analysis: " + fallback.Error(),
		})
	}
	return st
}
