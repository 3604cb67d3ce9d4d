package style_test

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"bananaslides/internal/domain"
	"bananaslides/internal/style"
	"bananaslides/mocks"
)

// page draws a dark block on a white page.
func page(w, h int, block image.Rectangle, ink color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.RGBA{R: 255, G: 255, B: 255, A: 255}
			if image.Pt(x, y).In(block) {
				c = ink
			}
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestVisual_LeftAlignedDarkText(t *testing.T) {
	img := page(100, 40, image.Rect(10, 10, 40, 30), color.RGBA{R: 20, G: 30, B: 40, A: 255})

	st := style.Visual(img, 1)

	assert.Equal(t, [3]int{20, 30, 40}, st.ColorRGB)
	assert.Equal(t, "left", st.Align)
	assert.InDelta(t, 27.8, st.FontSizePx, 0.01)
	assert.True(t, st.Bold)
}

func TestVisual_CenteredText(t *testing.T) {
	img := page(100, 40, image.Rect(30, 10, 70, 30), color.RGBA{A: 255})

	st := style.Visual(img, 1)

	assert.Equal(t, "center", st.Align)
}

func TestVisual_BlankCropUsesDefault(t *testing.T) {
	img := page(50, 20, image.Rectangle{}, color.RGBA{})

	assert.Equal(t, domain.DefaultTextStyle, style.Visual(img, 1))
}

func TestInfer_DefaultModeSkipsAnalysis(t *testing.T) {
	ai := new(mocks.MockStyleInferrer)
	inf := style.NewInferrer(ai, zerolog.Nop())
	img := page(100, 40, image.Rect(10, 10, 40, 30), color.RGBA{A: 255})
	el := &domain.LayoutElement{ID: "t1", Type: domain.ElementText, BBox: domain.BBox{X1: 100, Y1: 40}}

	st, fallback := inf.Infer(context.Background(), domain.StyleDefault, img, el)

	assert.NoError(t, fallback)
	assert.Equal(t, domain.DefaultTextStyle, st)
	ai.AssertNotCalled(t, "InferStyle", mock.Anything, mock.Anything, mock.Anything)
}

func TestInfer_AIResult(t *testing.T) {
	want := &domain.TextStyle{FontSizePx: 32, Bold: true, Align: "center", ColorRGB: [3]int{10, 20, 30}, Confidence: 0.9}
	ai := new(mocks.MockStyleInferrer)
	ai.On("InferStyle", mock.Anything, mock.Anything, "Quarterly results").Return(want, nil)
	inf := style.NewInferrer(ai, zerolog.Nop())
	img := page(100, 40, image.Rect(10, 10, 40, 30), color.RGBA{A: 255})
	el := &domain.LayoutElement{ID: "t1", Type: domain.ElementText, BBox: domain.BBox{X1: 100, Y1: 40}, Content: "Quarterly results"}

	st, fallback := inf.Infer(context.Background(), domain.StyleInferredAI, img, el)

	assert.NoError(t, fallback)
	assert.Equal(t, *want, st)
}

func TestInfer_AIFailureFallsBackToPixels(t *testing.T) {
	ai := new(mocks.MockStyleInferrer)
	ai.On("InferStyle", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("quota"))
	inf := style.NewInferrer(ai, zerolog.Nop())
	img := page(100, 40, image.Rect(10, 10, 40, 30), color.RGBA{A: 255})
	el := &domain.LayoutElement{ID: "t1", Type: domain.ElementText, BBox: domain.BBox{X1: 100, Y1: 40}}

	st, fallback := inf.Infer(context.Background(), domain.StyleInferredAI, img, el)

	assert.EqualError(t, fallback, "quota")
	require.Equal(t, "left", st.Align)
	assert.Equal(t, [3]int{0, 0, 0}, st.ColorRGB)
	assert.InDelta(t, 27.8, st.FontSizePx, 0.01)
}

func TestInferrer_Supports(t *testing.T) {
	assert.False(t, style.NewInferrer(nil, zerolog.Nop()).Supports(domain.StyleInferredAI))
	assert.True(t, style.NewInferrer(nil, zerolog.Nop()).Supports(domain.StyleInferredVisual))
	assert.True(t, style.NewInferrer(new(mocks.MockStyleInferrer), zerolog.Nop()).Supports(domain.StyleInferredAI))
}
