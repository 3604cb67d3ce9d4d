package style

import (
	"image"
	"math"

	"bananaslides/internal/domain"
)

// inkThreshold is the squared RGB distance from the background above which a pixel counts as ink.
const inkThreshold = 60 * 60

// Visual derives a text style from the pixels of a crop: background is the most
// common border color, ink is everything far from it.
func Visual(crop *image.RGBA, lines int) domain.TextStyle {
	b := crop.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return domain.DefaultTextStyle
	}
	bg := borderColor(crop)

	rowInk := make([]int, h)
	minX, maxX := w, -1
	var sum [3]int
	total := 0
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			o := crop.PixOffset(b.Min.X+x, b.Min.Y+y)
			p := crop.Pix[o : o+3]
			if dist2(p, bg) < inkThreshold {
				continue
			}
			rowInk[y]++
			total++
			sum[0] += int(p[0])
			sum[1] += int(p[1])
			sum[2] += int(p[2])
			if x < minX {
				minX = x
			}
			if x > maxX {
				maxX = x
			}
		}
	}
	if total == 0 {
		return domain.DefaultTextStyle
	}

	st := domain.TextStyle{
		ColorRGB:   [3]int{sum[0] / total, sum[1] / total, sum[2] / total},
		Align:      alignment(minX, w-1-maxX, w),
		Confidence: 0.6,
	}

	// Ink rows grouped into runs approximate text lines.
	var runs []int
	run := 0
	inkRows := 0
	for _, n := range rowInk {
		if n > 0 {
			run++
			inkRows++
			continue
		}
		if run > 0 {
			runs = append(runs, run)
			run = 0
		}
	}
	if run > 0 {
		runs = append(runs, run)
	}
	if lines < len(runs) {
		lines = len(runs)
	}
	if lines < 1 {
		lines = 1
	}
	glyph := float64(inkRows) / float64(lines)
	st.FontSizePx = math.Round(glyph/0.72*10) / 10

	// Dense strokes read as bold.
	density := float64(total) / float64(inkRows*(maxX-minX+1))
	st.Bold = density > 0.32
	return st
}

func alignment(left, right, width int) string {
	if width <= 0 {
		return "left"
	}
	diff := math.Abs(float64(left - right))
	switch {
	case diff <= 0.1*float64(width) && left > 0 && right > 0:
		return "center"
	case left <= right:
		return "left"
	default:
		return "right"
	}
}

// borderColor returns the most frequent color on the crop's border, quantized to 4 bits per channel.
func borderColor(img *image.RGBA) []uint8 {
	b := img.Bounds()
	counts := map[[3]uint8]int{}
	exemplar := map[[3]uint8][3]uint8{}
	add := func(x, y int) {
		o := img.PixOffset(x, y)
		p := [3]uint8{img.Pix[o], img.Pix[o+1], img.Pix[o+2]}
		k := [3]uint8{p[0] >> 4, p[1] >> 4, p[2] >> 4}
		counts[k]++
		if _, ok := exemplar[k]; !ok {
			exemplar[k] = p
		}
	}
	for x := b.Min.X; x < b.Max.X; x++ {
		add(x, b.Min.Y)
		add(x, b.Max.Y-1)
	}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		add(b.Min.X, y)
		add(b.Max.X-1, y)
	}
	var best [3]uint8
	bestN := -1
	for k, n := range counts {
		if n > bestN || (n == bestN && less(k, best)) {
			best, bestN = k, n
		}
	}
	p := exemplar[best]
	return p[:]
}

func less(a, b [3]uint8) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

func dist2(p, q []uint8) int {
	dr := int(p[0]) - int(q[0])
	dg := int(p[1]) - int(q[1])
	db := int(p[2]) - int(q[2])
	return dr*dr + dg*dg + db*db
}
