package packager_test

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"image"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"bananaslides/internal/domain"
	"bananaslides/internal/imaging"
	"bananaslides/internal/packager"
)

func unzip(t *testing.T, data []byte) map[string][]byte {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	files := map[string][]byte{}
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		b, err := io.ReadAll(rc)
		require.NoError(t, err)
		_ = rc.Close()
		files[f.Name] = b
	}
	return files
}

func samplePages() []packager.Page {
	return []packager.Page{
		{
			Slide: domain.EditableSlide{PageID: "p1", Width: 40, Height: 20, Objects: []domain.EditableObject{
				{ElementID: "t1", Kind: domain.ObjectTextBox, Text: "Hello", BBox: domain.BBox{X1: 10, Y1: 5}},
			}},
			Background: image.NewRGBA(image.Rect(0, 0, 40, 20)),
		},
		{
			Slide: domain.EditableSlide{PageID: "p2", Width: 40, Height: 20, Objects: []domain.EditableObject{
				{ElementID: "tb", Kind: domain.ObjectTable, Table: &domain.TableGrid{Rows: 2, Cols: 2, Cells: []domain.TableCell{
					{Row: 0, Col: 0, RowSpan: 1, ColSpan: 2, Text: "Header"},
					{Row: 1, Col: 0, RowSpan: 1, ColSpan: 1, Text: "a"},
					{Row: 1, Col: 1, RowSpan: 1, ColSpan: 1, Text: "b"},
				}}},
			}},
			Background: image.NewRGBA(image.Rect(0, 0, 40, 20)),
		},
	}
}

func TestPackage_BundleContents(t *testing.T) {
	data, err := packager.Package(samplePages(), packager.Options{
		TaskID:     "task-1",
		Resolution: domain.ResolutionOriginal,
		Format:     domain.ImageFormatPNG,
		CreatedAt:  time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	files := unzip(t, data)
	assert.Contains(t, files, "manifest.json")
	assert.Contains(t, files, "objects.csv")
	assert.Contains(t, files, "tables.xlsx")
	assert.Contains(t, files, "backgrounds/001-p1.png")
	assert.Contains(t, files, "backgrounds/002-p2.png")

	var m packager.Manifest
	require.NoError(t, json.Unmarshal(files["manifest.json"], &m))
	assert.Equal(t, packager.ManifestVersion, m.Version)
	assert.Equal(t, "task-1", m.TaskID)
	require.Len(t, m.Slides, 2)
	assert.Equal(t, "backgrounds/001-p1.png", m.Slides[0].BackgroundImageRef)
	assert.Equal(t, 40, m.Slides[0].BackgroundWidth)
	assert.Equal(t, "Hello", m.Slides[0].Objects[0].Text)
	assert.Equal(t, []packager.TableRef{{Slide: 2, ElementID: "tb", Sheet: "Slide 2 Table 1"}}, m.Tables)

	bg, format, err := imaging.Decode(files["backgrounds/002-p2.png"])
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, 40, bg.Bounds().Dx())

	wb, err := excelize.OpenReader(bytes.NewReader(files["tables.xlsx"]))
	require.NoError(t, err)
	defer func() { _ = wb.Close() }()
	assert.Equal(t, []string{"Slide 2 Table 1"}, wb.GetSheetList())
	v, err := wb.GetCellValue("Slide 2 Table 1", "B2")
	require.NoError(t, err)
	assert.Equal(t, "b", v)
	merged, err := wb.GetMergeCells("Slide 2 Table 1")
	require.NoError(t, err)
	require.Len(t, merged, 1)
	assert.Equal(t, "A1", merged[0].GetStartAxis())
	assert.Equal(t, "B1", merged[0].GetEndAxis())

	assert.True(t, bytes.HasPrefix(files["objects.csv"], []byte{0xEF, 0xBB, 0xBF}))
}

func TestPackage_ScalesAndEncodesJPEG(t *testing.T) {
	pages := []packager.Page{{
		Slide:      domain.EditableSlide{PageID: "wide", Width: 2000, Height: 1000},
		Background: image.NewRGBA(image.Rect(0, 0, 2000, 1000)),
	}}

	data, err := packager.Package(pages, packager.Options{Resolution: domain.Resolution1080p, Format: domain.ImageFormatJPEG})
	require.NoError(t, err)

	files := unzip(t, data)
	assert.NotContains(t, files, "tables.xlsx")
	img, format, err := imaging.Decode(files["backgrounds/001-wide.jpg"])
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, image.Pt(1920, 960), img.Bounds().Size())

	var m packager.Manifest
	require.NoError(t, json.Unmarshal(files["manifest.json"], &m))
	assert.Equal(t, 2000, m.Slides[0].Width, "object coordinates stay in page pixels")
	assert.Equal(t, 1920, m.Slides[0].BackgroundWidth)
}

func TestPackage_RejectsUnknownOptions(t *testing.T) {
	_, err := packager.Package(samplePages(), packager.Options{Resolution: "8k", Format: domain.ImageFormatPNG})
	assert.ErrorIs(t, err, domain.ErrPackagingFailed)

	_, err = packager.Package(samplePages(), packager.Options{Resolution: domain.ResolutionOriginal, Format: "gif"})
	assert.ErrorIs(t, err, domain.ErrPackagingFailed)
}

func TestBackgroundPath_EscapesPageID(t *testing.T) {
	assert.Equal(t, "backgrounds/001-p1.png", packager.BackgroundPath(0, "p1", domain.ImageFormatPNG))
	assert.Equal(t, "backgrounds/012-___etc_passwd.jpg", packager.BackgroundPath(11, "../etc/passwd", domain.ImageFormatJPEG))
}

func TestPackage_ManifestCarriesWarnings(t *testing.T) {
	warnings := []domain.Warning{{PageID: "p2", ElementID: "tb", Stage: domain.StageAssemble, Message: "text style fell back to pixel analysis"}}

	data, err := packager.Package(samplePages(), packager.Options{
		Resolution:   domain.ResolutionOriginal,
		Format:       domain.ImageFormatPNG,
		WarningCount: 3,
		Warnings:     warnings,
	})
	require.NoError(t, err)

	var m packager.Manifest
	require.NoError(t, json.Unmarshal(unzip(t, data)["manifest.json"], &m))
	assert.Equal(t, 3, m.WarningCount)
	assert.Equal(t, warnings, m.Warnings)
}
