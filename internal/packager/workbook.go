package packager

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"bananaslides/internal/domain"
)

// buildWorkbook writes every table object to its own sheet. It returns nil bytes
// when no slide carries a table.
func buildWorkbook(slides []domain.EditableSlide) ([]byte, []TableRef, error) {
	var refs []TableRef
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	for i := range slides {
		n := 0
		for _, obj := range slides[i].Objects {
			if obj.Kind != domain.ObjectTable || obj.Table == nil {
				continue
			}
			n++
			sheet := fmt.Sprintf("Slide %d Table %d", i+1, n)
			if _, err := f.NewSheet(sheet); err != nil {
				return nil, nil, fmt.Errorf("creating sheet %s: %w", sheet, err)
			}
			if err := writeTable(f, sheet, obj.Table); err != nil {
				return nil, nil, err
			}
			refs = append(refs, TableRef{Slide: i + 1, ElementID: obj.ElementID, Sheet: sheet})
		}
	}
	if len(refs) == 0 {
		return nil, nil, nil
	}

	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, nil, fmt.Errorf("removing default sheet: %w", err)
	}
	f.SetActiveSheet(0)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, nil, fmt.Errorf("writing workbook: %w", err)
	}
	return buf.Bytes(), refs, nil
}

func writeTable(f *excelize.File, sheet string, g *domain.TableGrid) error {
	for _, c := range g.Cells {
		cell, err := excelize.CoordinatesToCellName(c.Col+1, c.Row+1)
		if err != nil {
			return fmt.Errorf("cell %d,%d: %w", c.Row, c.Col, err)
		}
		if err := f.SetCellValue(sheet, cell, c.Text); err != nil {
			return fmt.Errorf("setting %s!%s: %w", sheet, cell, err)
		}
		if c.RowSpan <= 1 && c.ColSpan <= 1 {
			continue
		}
		end, err := excelize.CoordinatesToCellName(c.Col+max(c.ColSpan, 1), c.Row+max(c.RowSpan, 1))
		if err != nil {
			return fmt.Errorf("cell %d,%d span: %w", c.Row, c.Col, err)
		}
		if err := f.MergeCell(sheet, cell, end); err != nil {
			return fmt.Errorf("merging %s:%s: %w", cell, end, err)
		}
	}
	return nil
}
