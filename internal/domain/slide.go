package domain

// ObjectKind is the kind of an editable slide object.
type ObjectKind string

const (
	ObjectTextBox          ObjectKind = "text_box"
	ObjectTable            ObjectKind = "table"
	ObjectImagePlaceholder ObjectKind = "image_placeholder"
)

// TextStyle is the inferred appearance of a text-bearing object.
type TextStyle struct {
	FontSizePx float64 `json:"font_size_px"`
	Bold       bool    `json:"bold"`
	Italic     bool    `json:"italic"`
	ColorRGB   [3]int  `json:"color_rgb"`
	Align      string  `json:"align"`
	Confidence float64 `json:"confidence"`
}

// DefaultTextStyle is applied when no per-element analysis runs.
var DefaultTextStyle = TextStyle{
	FontSizePx: 18,
	ColorRGB:   [3]int{0, 0, 0},
	Align:      "left",
	Confidence: 0,
}

// TableCell is one cell of a regenerated table grid.
type TableCell struct {
	Row     int    `json:"row"`
	Col     int    `json:"col"`
	RowSpan int    `json:"row_span"`
	ColSpan int    `json:"col_span"`
	Text    string `json:"text"`
	BBox    *BBox  `json:"bbox,omitempty"`
}

// TableGrid is the row/column decomposition of a table element.
type TableGrid struct {
	Rows  int         `json:"rows"`
	Cols  int         `json:"cols"`
	Cells []TableCell `json:"cells"`
}

// EditableObject is one positioned, styled object on a slide.
type EditableObject struct {
	ElementID string     `json:"element_id"`
	Kind      ObjectKind `json:"kind"`
	BBox      BBox       `json:"bbox"`
	Text      string     `json:"text,omitempty"`
	Style     *TextStyle `json:"style,omitempty"`
	Table     *TableGrid `json:"table,omitempty"`
	ZIndex    int        `json:"z_index"`
}

// EditableSlide is the immutable output of assembling one page.
type EditableSlide struct {
	PageID             string           `json:"page_id"`
	Width              int              `json:"width"`
	Height             int              `json:"height"`
	BackgroundImageRef string           `json:"background_image_ref"`
	Objects            []EditableObject `json:"objects"`
}
