package assembler_test

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bananaslides/internal/assembler"
	"bananaslides/internal/domain"
)

type fixedStyler struct {
	calls    []string
	degraded map[string]bool
}

func (f *fixedStyler) Infer(_ context.Context, mode domain.TextStyleMode, _ *image.RGBA, el *domain.LayoutElement) (domain.TextStyle, error) {
	f.calls = append(f.calls, el.ID)
	st := domain.DefaultTextStyle
	if mode == domain.StyleInferredVisual {
		st.FontSizePx = 30
	}
	if f.degraded[el.ID] {
		return st, errors.New("model unavailable")
	}
	return st, nil
}

func fill(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

var (
	red   = color.RGBA{R: 255, A: 255}
	white = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

func sampleAnalysis() *domain.LayoutAnalysis {
	return &domain.LayoutAnalysis{
		PageID: "p1",
		Width:  100,
		Height: 100,
		Elements: []domain.LayoutElement{
			{ID: "t1", Type: domain.ElementText, BBox: domain.BBox{X0: 0, Y0: 0, X1: 50, Y1: 10}, Content: "Title",
				Children: []domain.LayoutElement{
					{ID: "t1a", Type: domain.ElementText, BBox: domain.BBox{X0: 0, Y0: 0, X1: 20, Y1: 10}, Content: "Ti"},
				}},
			{ID: "im1", Type: domain.ElementImage, BBox: domain.BBox{X0: 10, Y0: 20, X1: 90, Y1: 90},
				Children: []domain.LayoutElement{
					{ID: "cap", Type: domain.ElementText, BBox: domain.BBox{X0: 20, Y0: 70, X1: 80, Y1: 80}, Content: "Caption"},
				}},
			{ID: "t2", Type: domain.ElementText, BBox: domain.BBox{X0: 0, Y0: 90, X1: 100, Y1: 100}, Content: ""},
		},
	}
}

func TestAssemble_ObjectsInTraversalOrder(t *testing.T) {
	styler := &fixedStyler{}
	a := assembler.New(styler, zerolog.Nop())

	res, err := a.Assemble(context.Background(), assembler.Input{
		Page:          fill(100, 100, red),
		Analysis:      sampleAnalysis(),
		EraseIDs:      []string{"t2", "cap", "t1", "t1a"},
		Background:    fill(100, 100, white),
		BackgroundRef: "backgrounds/001-p1.png",
		StyleMode:     domain.StyleInferredVisual,
	})
	require.NoError(t, err)

	slide := res.Slide
	assert.Equal(t, "p1", slide.PageID)
	assert.Equal(t, "backgrounds/001-p1.png", slide.BackgroundImageRef)
	require.Len(t, slide.Objects, 3, "t1a is part of t1")

	assert.Equal(t, "t1", slide.Objects[0].ElementID)
	assert.Equal(t, domain.ObjectTextBox, slide.Objects[0].Kind)
	assert.Equal(t, "Title", slide.Objects[0].Text)
	assert.Equal(t, 30.0, slide.Objects[0].Style.FontSizePx)

	assert.Equal(t, "cap", slide.Objects[1].ElementID)
	assert.Equal(t, "t2", slide.Objects[2].ElementID)
	assert.Equal(t, "", slide.Objects[2].Text, "empty content still yields an object")
	for i, obj := range slide.Objects {
		assert.Equal(t, i, obj.ZIndex)
	}
	assert.Equal(t, []string{"t1", "cap", "t2"}, styler.calls)
}

func TestAssemble_KeptRegionsArePixelExact(t *testing.T) {
	a := assembler.New(&fixedStyler{}, zerolog.Nop())

	res, err := a.Assemble(context.Background(), assembler.Input{
		Page:       fill(100, 100, red),
		Analysis:   sampleAnalysis(),
		EraseIDs:   []string{"cap"},
		Background: fill(100, 100, white),
		StyleMode:  domain.StyleDefault,
	})
	require.NoError(t, err)

	bg := res.Background
	assert.Equal(t, red, bg.RGBAAt(15, 25), "kept image region comes from the page")
	assert.Equal(t, red, bg.RGBAAt(5, 5), "kept text region comes from the page")
	assert.Equal(t, white, bg.RGBAAt(50, 75), "erased caption inside kept image stays repainted")
	assert.Equal(t, white, bg.RGBAAt(95, 50), "uncovered area stays as background")

	require.Len(t, res.Slide.Objects, 1)
	assert.Equal(t, domain.ObjectTextBox, res.Slide.Objects[0].Kind)
}

func TestAssemble_KeptChildOfErasedContainer(t *testing.T) {
	analysis := &domain.LayoutAnalysis{
		PageID: "p3", Width: 100, Height: 100,
		Elements: []domain.LayoutElement{{
			ID: "box", Type: domain.ElementOther, BBox: domain.BBox{X1: 100, Y1: 100},
			Children: []domain.LayoutElement{
				{ID: "logo", Type: domain.ElementImage, BBox: domain.BBox{X0: 10, Y0: 10, X1: 20, Y1: 20},
					Children: []domain.LayoutElement{
						{ID: "mark", Type: domain.ElementText, BBox: domain.BBox{X0: 12, Y0: 12, X1: 14, Y1: 14}, Content: "TM"},
					}},
			},
		}},
	}
	a := assembler.New(&fixedStyler{}, zerolog.Nop())

	res, err := a.Assemble(context.Background(), assembler.Input{
		Page: fill(100, 100, red), Analysis: analysis, EraseIDs: []string{"box", "mark"},
		Background: fill(100, 100, white), StyleMode: domain.StyleDefault,
	})
	require.NoError(t, err)

	bg := res.Background
	assert.Equal(t, red, bg.RGBAAt(15, 15), "kept logo is pasted back over its erased container")
	assert.Equal(t, red, bg.RGBAAt(10, 19))
	assert.Equal(t, white, bg.RGBAAt(12, 13), "erased text on the kept logo stays repainted")
	assert.Equal(t, white, bg.RGBAAt(50, 50), "erased container stays repainted")
}

func TestAssemble_StyleFallbackBecomesWarning(t *testing.T) {
	a := assembler.New(&fixedStyler{degraded: map[string]bool{"cap": true}}, zerolog.Nop())

	res, err := a.Assemble(context.Background(), assembler.Input{
		Page: fill(100, 100, red), Analysis: sampleAnalysis(), EraseIDs: []string{"t1", "cap"},
		Background: fill(100, 100, white), StyleMode: domain.StyleInferredAI,
	})
	require.NoError(t, err)

	require.Len(t, res.Slide.Objects, 2, "a degraded style still yields the object")
	require.Len(t, res.Warnings, 1)
	w := res.Warnings[0]
	assert.Equal(t, "p1", w.PageID)
	assert.Equal(t, "cap", w.ElementID)
	assert.Equal(t, domain.StageAssemble, w.Stage)
	assert.Contains(t, w.Message, "model unavailable")
}

func TestAssemble_ImagePlaceholderKeepsChildren(t *testing.T) {
	a := assembler.New(&fixedStyler{}, zerolog.Nop())

	res, err := a.Assemble(context.Background(), assembler.Input{
		Page:       fill(100, 100, red),
		Analysis:   sampleAnalysis(),
		EraseIDs:   []string{"im1", "cap"},
		Background: fill(100, 100, white),
		StyleMode:  domain.StyleDefault,
	})
	require.NoError(t, err)

	require.Len(t, res.Slide.Objects, 2)
	assert.Equal(t, domain.ObjectImagePlaceholder, res.Slide.Objects[0].Kind)
	assert.Nil(t, res.Slide.Objects[0].Style)
	assert.Equal(t, "cap", res.Slide.Objects[1].ElementID)
}

func TestAssemble_TableBecomesGrid(t *testing.T) {
	analysis := &domain.LayoutAnalysis{
		PageID: "p2", Width: 100, Height: 100,
		Elements: []domain.LayoutElement{{
			ID: "tb", Type: domain.ElementTable, BBox: domain.BBox{X1: 100, Y1: 40},
			Content: "<table><tr><td>a</td><td>b</td></tr><tr><td>c</td><td>d</td></tr></table>",
			Children: []domain.LayoutElement{
				{ID: "c1", Type: domain.ElementText, BBox: domain.BBox{X1: 50, Y1: 20}, Content: "a"},
			},
		}},
	}
	a := assembler.New(&fixedStyler{}, zerolog.Nop())

	res, err := a.Assemble(context.Background(), assembler.Input{
		Page: fill(100, 100, red), Analysis: analysis, EraseIDs: []string{"tb", "c1"},
		Background: fill(100, 100, white), StyleMode: domain.StyleDefault,
	})
	require.NoError(t, err)

	require.Len(t, res.Slide.Objects, 1)
	obj := res.Slide.Objects[0]
	assert.Equal(t, domain.ObjectTable, obj.Kind)
	require.NotNil(t, obj.Table)
	assert.Equal(t, 2, obj.Table.Rows)
	assert.Equal(t, 2, obj.Table.Cols)
	assert.Equal(t, "d", obj.Table.Cells[3].Text)
}

func TestAssemble_Errors(t *testing.T) {
	a := assembler.New(&fixedStyler{}, zerolog.Nop())

	_, err := a.Assemble(context.Background(), assembler.Input{
		Page: fill(100, 100, red), Analysis: sampleAnalysis(), EraseIDs: []string{"ghost"},
		Background: fill(100, 100, white),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidElement)

	_, err = a.Assemble(context.Background(), assembler.Input{
		Page: fill(100, 100, red), Analysis: sampleAnalysis(), Background: fill(50, 50, white),
	})
	assert.ErrorIs(t, err, domain.ErrAssemblyFailed)
}
