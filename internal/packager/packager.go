// Package packager bundles assembled slides into one downloadable zip artifact.
//
// Layout of the bundle:
//
//	manifest.json              slides with positioned, styled objects
//	backgrounds/NNN-<page>.ext one background per slide
//	objects.csv                flat index of every object
//	tables.xlsx                one sheet per regenerated table (omitted when there are none)
package packager

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"strings"
	"time"

	"bananaslides/internal/csvexport"
	"bananaslides/internal/domain"
	"bananaslides/internal/imaging"
)

// ManifestVersion is bumped when the manifest layout changes incompatibly.
const ManifestVersion = 1

// Page is one assembled slide and its composited background.
type Page struct {
	Slide      domain.EditableSlide
	Background *image.RGBA
}

// Options controls background encoding.
type Options struct {
	TaskID     string
	ProjectID  string
	Resolution domain.OutputResolution
	Format     domain.ImageFormat
	CreatedAt  time.Time
	// Warnings are the task's degraded steps, copied into the manifest.
	WarningCount int
	Warnings     []domain.Warning
}

// Manifest is the JSON index of the bundle.
type Manifest struct {
	Version     int             `json:"version"`
	TaskID      string          `json:"task_id"`
	ProjectID   string          `json:"project_id,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	Resolution  string          `json:"resolution"`
	ImageFormat string          `json:"image_format"`
	Slides      []ManifestSlide `json:"slides"`
	Tables      []TableRef      `json:"tables,omitempty"`
	// WarningCount can exceed len(Warnings) when details were capped.
	WarningCount int              `json:"warning_count"`
	Warnings     []domain.Warning `json:"warnings,omitempty"`
}

// ManifestSlide is a slide plus the pixel size of its encoded background.
// Object coordinates stay in source page pixels.
type ManifestSlide struct {
	domain.EditableSlide
	BackgroundWidth  int `json:"background_width"`
	BackgroundHeight int `json:"background_height"`
}

// TableRef points a table object at its workbook sheet.
type TableRef struct {
	Slide     int    `json:"slide"`
	ElementID string `json:"element_id"`
	Sheet     string `json:"sheet"`
}

// BackgroundPath is the in-bundle path of slide index (0-based). Characters of
// pageID outside [A-Za-z0-9_-] become '_' so the entry stays inside backgrounds/.
func BackgroundPath(index int, pageID string, format domain.ImageFormat) string {
	ext := "png"
	if format == domain.ImageFormatJPEG {
		ext = "jpg"
	}
	return fmt.Sprintf("backgrounds/%03d-%s.%s", index+1, safeName(pageID), ext)
}

func safeName(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
}

// Package writes the bundle and returns its bytes.
func Package(pages []Page, opts Options) ([]byte, error) {
	if _, ok := domain.ValidImageFormats[opts.Format]; !ok {
		return nil, fmt.Errorf("%w: image format %q", domain.ErrPackagingFailed, opts.Format)
	}
	longEdge, ok := domain.ResolutionLongEdge[opts.Resolution]
	if !ok {
		return nil, fmt.Errorf("%w: resolution %q", domain.ErrPackagingFailed, opts.Resolution)
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	manifest := Manifest{
		Version:     ManifestVersion,
		TaskID:      opts.TaskID,
		ProjectID:   opts.ProjectID,
		CreatedAt:   opts.CreatedAt.UTC(),
		Resolution:  string(opts.Resolution),
		ImageFormat: string(opts.Format),
		Slides:      make([]ManifestSlide, 0, len(pages)),

		WarningCount: opts.WarningCount,
		Warnings:     opts.Warnings,
	}
	slides := make([]domain.EditableSlide, 0, len(pages))

	for i, p := range pages {
		if p.Background == nil {
			return nil, fmt.Errorf("%w: slide %d has no background", domain.ErrPackagingFailed, i+1)
		}
		scaled := imaging.ScaleLongEdge(p.Background, longEdge)
		data, err := imaging.Encode(scaled, opts.Format)
		if err != nil {
			return nil, fmt.Errorf("%w: encoding slide %d: %w", domain.ErrPackagingFailed, i+1, err)
		}
		slide := p.Slide
		slide.BackgroundImageRef = BackgroundPath(i, slide.PageID, opts.Format)
		if err := writeFile(zw, slide.BackgroundImageRef, data, zip.Store); err != nil {
			return nil, err
		}
		manifest.Slides = append(manifest.Slides, ManifestSlide{
			EditableSlide:    slide,
			BackgroundWidth:  scaled.Bounds().Dx(),
			BackgroundHeight: scaled.Bounds().Dy(),
		})
		slides = append(slides, slide)
	}

	tables, refs, err := buildWorkbook(slides)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrPackagingFailed, err)
	}
	if tables != nil {
		if err := writeFile(zw, "tables.xlsx", tables, zip.Deflate); err != nil {
			return nil, err
		}
		manifest.Tables = refs
	}

	var csvBuf bytes.Buffer
	csvBuf.Write(csvexport.BOM)
	cw := csvexport.NewWriter(&csvBuf)
	if err := cw.WriteHeader(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrPackagingFailed, err)
	}
	if err := cw.WriteSlides(slides); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrPackagingFailed, err)
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrPackagingFailed, err)
	}
	if err := writeFile(zw, "objects.csv", csvBuf.Bytes(), zip.Deflate); err != nil {
		return nil, err
	}

	mj, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("%w: manifest: %w", domain.ErrPackagingFailed, err)
	}
	if err := writeFile(zw, "manifest.json", mj, zip.Deflate); err != nil {
		return nil, err
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("%w: closing zip: %w", domain.ErrPackagingFailed, err)
	}
	return buf.Bytes(), nil
}

func writeFile(zw *zip.Writer, name string, data []byte, method uint16) error {
	w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: method})
	if err != nil {
		return fmt.Errorf("%w: %s: %w", domain.ErrPackagingFailed, name, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("%w: %s: %w", domain.ErrPackagingFailed, name, err)
	}
	return nil
}
