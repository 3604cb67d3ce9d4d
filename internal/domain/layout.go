package domain

import "math"

// ElementType classifies a detected page region.
type ElementType string

const (
	ElementText  ElementType = "text"
	ElementImage ElementType = "image"
	ElementTable ElementType = "table"
	ElementOther ElementType = "other"
)

// ValidElementTypes lists the element types a layout tree may carry.
var ValidElementTypes = map[ElementType]bool{
	ElementText:  true,
	ElementImage: true,
	ElementTable: true,
	ElementOther: true,
}

// BBox is an axis-aligned rectangle in page-pixel coordinates. X0 <= X1 and Y0 <= Y1.
type BBox struct {
	X0 float64 `json:"x0"`
	Y0 float64 `json:"y0"`
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
}

// Normalize returns the box with its corners ordered.
func (b BBox) Normalize() BBox {
	return BBox{
		X0: math.Min(b.X0, b.X1),
		Y0: math.Min(b.Y0, b.Y1),
		X1: math.Max(b.X0, b.X1),
		Y1: math.Max(b.Y0, b.Y1),
	}
}

// Clamp limits the box to [0,width]x[0,height].
func (b BBox) Clamp(width, height int) BBox {
	n := b.Normalize()
	w, h := float64(width), float64(height)
	return BBox{
		X0: math.Max(0, math.Min(n.X0, w)),
		Y0: math.Max(0, math.Min(n.Y0, h)),
		X1: math.Max(0, math.Min(n.X1, w)),
		Y1: math.Max(0, math.Min(n.Y1, h)),
	}
}

// Width returns the horizontal extent of the box.
func (b BBox) Width() float64 { return b.X1 - b.X0 }

// Height returns the vertical extent of the box.
func (b BBox) Height() float64 { return b.Y1 - b.Y0 }

// Empty reports whether the box covers no area.
func (b BBox) Empty() bool { return b.Width() <= 0 || b.Height() <= 0 }

// Offset translates the box by dx, dy.
func (b BBox) Offset(dx, dy float64) BBox {
	return BBox{X0: b.X0 + dx, Y0: b.Y0 + dy, X1: b.X1 + dx, Y1: b.Y1 + dy}
}

// Dilate grows the box by margin on every side.
func (b BBox) Dilate(margin float64) BBox {
	return BBox{X0: b.X0 - margin, Y0: b.Y0 - margin, X1: b.X1 + margin, Y1: b.Y1 + margin}
}

// Within reports whether b lies entirely inside a width x height page.
func (b BBox) Within(width, height int) bool {
	return b.X0 >= 0 && b.Y0 >= 0 && b.X1 <= float64(width) && b.Y1 <= float64(height)
}

// LayoutElement is a node of a page's structural tree.
type LayoutElement struct {
	ID         string          `json:"id"`
	Type       ElementType     `json:"type"`
	BBox       BBox            `json:"bbox"`
	Content    string          `json:"content"`
	Confidence float64         `json:"confidence,omitempty"`
	Children   []LayoutElement `json:"children,omitempty"`
}

// LayoutAnalysis is the immutable result of extracting one page.
type LayoutAnalysis struct {
	PageID           string          `json:"page_id"`
	Width            int             `json:"width"`
	Height           int             `json:"height"`
	Elements         []LayoutElement `json:"elements"`
	BaselineEraseIDs []string        `json:"baseline_erase_ids"`
	Warnings         []Warning       `json:"warnings,omitempty"`
}

// Flatten returns the elements of the tree in depth-first, parent-before-children order.
// The returned slice shares no structure with the tree's children slices; Children fields
// of the returned values still point into the tree.
func Flatten(elements []LayoutElement) []*LayoutElement {
	var out []*LayoutElement
	type frame struct {
		nodes []LayoutElement
		next  int
	}
	stack := []frame{{nodes: elements}}
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.next >= len(top.nodes) {
			stack = stack[:len(stack)-1]
			continue
		}
		el := &top.nodes[top.next]
		top.next++
		out = append(out, el)
		if len(el.Children) > 0 {
			stack = append(stack, frame{nodes: el.Children})
		}
	}
	return out
}

// Order returns the element ids of the analysis in traversal order.
func (a *LayoutAnalysis) Order() []string {
	flat := Flatten(a.Elements)
	ids := make([]string, len(flat))
	for i, el := range flat {
		ids[i] = el.ID
	}
	return ids
}

// Index maps element id to element for every node in the tree.
func (a *LayoutAnalysis) Index() map[string]*LayoutElement {
	flat := Flatten(a.Elements)
	idx := make(map[string]*LayoutElement, len(flat))
	for _, el := range flat {
		idx[el.ID] = el
	}
	return idx
}

// Recommended reports whether an element type is regenerated by default.
// Text-bearing and tabular regions are; decorative regions are not.
func Recommended(t ElementType) bool {
	return t == ElementText || t == ElementTable
}
