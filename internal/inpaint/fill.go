package inpaint

import (
	"image"

	"bananaslides/internal/imaging"
)

// Fill is the in-process text removal pass. Every masked pixel is replaced by a
// blend of the nearest unmasked pixels on its row and column, weighted toward the
// shorter span. Unmasked pixels are copied unchanged.
func Fill(src *image.RGBA, mask *imaging.Mask) *image.RGBA {
	out := imaging.ToRGBA(src)
	w, h := mask.W, mask.H
	if w == 0 || h == 0 {
		return out
	}

	// Horizontal estimate per masked pixel.
	hz := make([]uint8, w*h*4)
	hzW := make([]float32, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; {
			if !mask.At(x, y) {
				x++
				continue
			}
			a := x
			for x < w && mask.At(x, y) {
				x++
			}
			interpolateRun(out, a, x, w, func(i int) (int, int) { return i, y }, func(i int) int { return y*w + i }, hz, hzW)
		}
	}

	// Vertical estimate, blended with the horizontal one.
	vt := make([]uint8, w*h*4)
	vtW := make([]float32, w*h)
	for x := 0; x < w; x++ {
		for y := 0; y < h; {
			if !mask.At(x, y) {
				y++
				continue
			}
			a := y
			for y < h && mask.At(x, y) {
				y++
			}
			interpolateRun(out, a, y, h, func(i int) (int, int) { return x, i }, func(i int) int { return i*w + x }, vt, vtW)
		}
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			k := y*w + x
			wh, wv := hzW[k], vtW[k]
			if wh+wv == 0 {
				continue
			}
			o := out.PixOffset(x, y)
			for c := 0; c < 4; c++ {
				v := (float32(hz[k*4+c])*wh + float32(vt[k*4+c])*wv) / (wh + wv)
				out.Pix[o+c] = uint8(v + 0.5)
			}
		}
	}
	return out
}

// interpolateRun fills est for the masked run [a,b) along one axis of length n.
// at maps an axis position to pixel coordinates; idx maps it to a flat index.
func interpolateRun(src *image.RGBA, a, b, n int, at func(int) (int, int), idx func(int) int, est []uint8, weight []float32) {
	hasL, hasR := a > 0, b < n
	if !hasL && !hasR {
		return
	}
	var left, right []uint8
	if hasL {
		x, y := at(a - 1)
		o := src.PixOffset(x, y)
		left = src.Pix[o : o+4]
	}
	if hasR {
		x, y := at(b)
		o := src.PixOffset(x, y)
		right = src.Pix[o : o+4]
	}

	span := float32(b - a + 1)
	for i := a; i < b; i++ {
		k := idx(i)
		switch {
		case hasL && hasR:
			t := float32(i-a+1) / span
			for c := 0; c < 4; c++ {
				est[k*4+c] = uint8(float32(left[c])*(1-t) + float32(right[c])*t + 0.5)
			}
			weight[k] = 1 / span
		case hasL:
			copy(est[k*4:k*4+4], left)
			weight[k] = 0.5 / span
		default:
			copy(est[k*4:k*4+4], right)
			weight[k] = 0.5 / span
		}
	}
}
