// Package imaging holds the raster helpers shared by the reconstruction and
// assembly stages. Every stage works on *image.RGBA so pixel comparisons are exact.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"image/png"
	"math"

	// Decoders for page sources beyond png/jpeg.
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	xdraw "golang.org/x/image/draw"

	"bananaslides/internal/domain"
)

// Decode reads a page image from bytes and returns it as RGBA anchored at (0,0).
func Decode(data []byte) (*image.RGBA, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decoding image: %w", err)
	}
	return ToRGBA(img), format, nil
}

// ToRGBA copies img into a fresh RGBA whose bounds start at the origin.
func ToRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	if src, ok := img.(*image.RGBA); ok {
		for y := 0; y < b.Dy(); y++ {
			srcOff := src.PixOffset(b.Min.X, b.Min.Y+y)
			copy(dst.Pix[y*dst.Stride:y*dst.Stride+b.Dx()*4], src.Pix[srcOff:srcOff+b.Dx()*4])
		}
		return dst
	}
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// Rect converts a bbox to integer pixel bounds clamped to the image.
// Fractional edges expand outward so the rectangle always covers the bbox.
func Rect(b domain.BBox, bounds image.Rectangle) image.Rectangle {
	r := image.Rect(
		int(math.Floor(b.X0)), int(math.Floor(b.Y0)),
		int(math.Ceil(b.X1)), int(math.Ceil(b.Y1)),
	)
	return r.Intersect(bounds)
}

// Crop returns a copy of the region r of img.
func Crop(img *image.RGBA, r image.Rectangle) *image.RGBA {
	r = r.Intersect(img.Bounds())
	return ToRGBA(img.SubImage(r))
}

// Encode writes img in the given format.
func Encode(img image.Image, format domain.ImageFormat) ([]byte, error) {
	var buf bytes.Buffer
	var err error
	switch format {
	case domain.ImageFormatJPEG:
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 92})
	case domain.ImageFormatPNG:
		err = png.Encode(&buf, img)
	default:
		return nil, fmt.Errorf("unsupported image format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", format, err)
	}
	return buf.Bytes(), nil
}

// EncodePNG is Encode with the lossless format.
func EncodePNG(img image.Image) ([]byte, error) {
	return Encode(img, domain.ImageFormatPNG)
}

// ScaleLongEdge resizes img so its longer edge equals longEdge. Zero or a
// larger-than-source target returns img unchanged.
func ScaleLongEdge(img image.Image, longEdge int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	longest := w
	if h > longest {
		longest = h
	}
	if longEdge <= 0 || longest <= longEdge {
		return img
	}
	scale := float64(longEdge) / float64(longest)
	dst := image.NewRGBA(image.Rect(0, 0, int(math.Round(float64(w)*scale)), int(math.Round(float64(h)*scale))))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
	return dst
}

// Mask is a per-pixel erase flag over an image.
type Mask struct {
	W, H int
	bits []bool
}

// NewMask builds a mask covering the union of the given rectangles.
func NewMask(w, h int, rects []image.Rectangle) *Mask {
	m := &Mask{W: w, H: h, bits: make([]bool, w*h)}
	bounds := image.Rect(0, 0, w, h)
	for _, r := range rects {
		r = r.Intersect(bounds)
		for y := r.Min.Y; y < r.Max.Y; y++ {
			row := y * w
			for x := r.Min.X; x < r.Max.X; x++ {
				m.bits[row+x] = true
			}
		}
	}
	return m
}

// Set marks or clears every pixel inside r.
func (m *Mask) Set(r image.Rectangle, on bool) {
	r = r.Intersect(image.Rect(0, 0, m.W, m.H))
	for y := r.Min.Y; y < r.Max.Y; y++ {
		row := y * m.W
		for x := r.Min.X; x < r.Max.X; x++ {
			m.bits[row+x] = on
		}
	}
}

// At reports whether (x,y) is masked.
func (m *Mask) At(x, y int) bool {
	if x < 0 || y < 0 || x >= m.W || y >= m.H {
		return false
	}
	return m.bits[y*m.W+x]
}

// Image renders the mask as a grayscale image, white where masked.
func (m *Mask) Image() *image.Gray {
	g := image.NewGray(image.Rect(0, 0, m.W, m.H))
	for i, on := range m.bits {
		if on {
			g.Pix[i] = 0xff
		}
	}
	return g
}

// CompositeMasked returns a copy of base where pixels inside mask are taken from patch.
// patch is resized to base's bounds first when the sizes differ.
func CompositeMasked(base *image.RGBA, patch image.Image, mask *Mask) *image.RGBA {
	out := ToRGBA(base)
	p := patch
	if patch.Bounds().Dx() != base.Bounds().Dx() || patch.Bounds().Dy() != base.Bounds().Dy() {
		scaled := image.NewRGBA(base.Bounds())
		xdraw.CatmullRom.Scale(scaled, scaled.Bounds(), patch, patch.Bounds(), xdraw.Src, nil)
		p = scaled
	}
	src := ToRGBA(p)
	for y := 0; y < mask.H; y++ {
		for x := 0; x < mask.W; x++ {
			if !mask.At(x, y) {
				continue
			}
			i := out.PixOffset(x, y)
			copy(out.Pix[i:i+4], src.Pix[i:i+4])
		}
	}
	return out
}
