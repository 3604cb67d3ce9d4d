package csvexport

import (
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"bananaslides/internal/domain"
)

// UTF-8 BOM bytes for Excel compatibility on Windows.
var BOM = []byte{0xEF, 0xBB, 0xBF}

// columns defines the CSV header row.
var columns = []string{
	"Slide",
	"Page ID",
	"Element ID",
	"Kind",
	"Z Index",
	"X0",
	"Y0",
	"X1",
	"Y1",
	"Text",
	"Font Size",
	"Bold",
	"Italic",
	"Color",
	"Align",
	"Table Rows",
	"Table Cols",
}

// Writer wraps csv.Writer for exporting slide objects as CSV.
type Writer struct {
	csv *csv.Writer
}

// NewWriter creates a Writer that writes CSV to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{csv: csv.NewWriter(w)}
}

// WriteHeader writes the header row.
func (w *Writer) WriteHeader() error {
	return w.csv.Write(columns)
}

// WriteSlides writes one row per editable object, slides numbered from 1.
func (w *Writer) WriteSlides(slides []domain.EditableSlide) error {
	for i := range slides {
		for j := range slides[i].Objects {
			row := objectToRow(i+1, &slides[i], &slides[i].Objects[j])
			if err := w.csv.Write(row); err != nil {
				return err
			}
		}
	}
	return nil
}

// Flush flushes the underlying csv.Writer buffer.
func (w *Writer) Flush() {
	w.csv.Flush()
}

// Error returns any error from the underlying csv.Writer.
func (w *Writer) Error() error {
	return w.csv.Error()
}

// objectToRow converts one object to a row. Style and table columns stay empty
// for objects that carry neither.
func objectToRow(slideNo int, slide *domain.EditableSlide, obj *domain.EditableObject) []string {
	row := make([]string, len(columns))

	row[0] = strconv.Itoa(slideNo)
	row[1] = slide.PageID
	row[2] = obj.ElementID
	row[3] = string(obj.Kind)
	row[4] = strconv.Itoa(obj.ZIndex)
	row[5] = formatCoord(obj.BBox.X0)
	row[6] = formatCoord(obj.BBox.Y0)
	row[7] = formatCoord(obj.BBox.X1)
	row[8] = formatCoord(obj.BBox.Y1)
	row[9] = obj.Text

	if s := obj.Style; s != nil {
		row[10] = formatCoord(s.FontSizePx)
		row[11] = formatBool(s.Bold)
		row[12] = formatBool(s.Italic)
		row[13] = fmt.Sprintf("#%02X%02X%02X", s.ColorRGB[0], s.ColorRGB[1], s.ColorRGB[2])
		row[14] = s.Align
	}
	if t := obj.Table; t != nil {
		row[15] = strconv.Itoa(t.Rows)
		row[16] = strconv.Itoa(t.Cols)
	}
	return row
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}

func formatBool(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}

// nonAlphanumeric matches characters that are not alphanumeric, hyphen, or underscore.
var nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// multiUnderscore matches consecutive underscores.
var multiUnderscore = regexp.MustCompile(`_{2,}`)

// SanitizeFilename cleans a name for use in Content-Disposition.
// Replaces non-alphanumeric chars (except - _) with _, collapses consecutive
// underscores, and truncates to 100 chars.
func SanitizeFilename(name string) string {
	s := nonAlphanumeric.ReplaceAllString(name, "_")
	s = multiUnderscore.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if len(s) > 100 {
		s = s[:100]
	}
	return s
}

// BuildFilename returns a sanitized artifact filename for Content-Disposition.
// Format: {sanitized_project}_{YYYY-MM-DD}.zip
func BuildFilename(project string, at time.Time) string {
	sanitized := SanitizeFilename(project)
	if sanitized == "" {
		sanitized = "slides"
	}
	return fmt.Sprintf("%s_%s.zip", sanitized, at.Format("2006-01-02"))
}
