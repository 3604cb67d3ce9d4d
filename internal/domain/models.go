package domain

import (
	"regexp"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// PageRef points at a page image held by the page storage collaborator.
type PageRef struct {
	PageID   string `json:"page_id"`
	ImageKey string `json:"image_key"`
}

// ConversionSettings are fixed once a task is created from them.
type ConversionSettings struct {
	ExtractorMethod    ExtractorMethod  `json:"extractor_method"`
	InpaintMethod      InpaintMethod    `json:"inpaint_method"`
	ManualConfirmation bool             `json:"manual_confirmation"`
	TextStyleMode      TextStyleMode    `json:"text_style_mode"`
	OutputResolution   OutputResolution `json:"output_resolution"`
	ImageFormat        ImageFormat      `json:"image_format"`
	// MaxDepth bounds how many times large image regions are re-analysed for
	// nested content. Nil takes the server default.
	MaxDepth *int `json:"max_depth,omitempty"`
}

// MaxRecursionDepth is the deepest image re-analysis a task may request.
const MaxRecursionDepth = 3

// RecursionDepth returns MaxDepth, or 0 when unset.
func (s ConversionSettings) RecursionDepth() int {
	if s.MaxDepth == nil {
		return 0
	}
	return *s.MaxDepth
}

var pageIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// ValidPageID reports whether id is safe to embed in artifact paths.
func ValidPageID(id string) bool {
	return pageIDPattern.MatchString(id)
}

// Validate checks every enum and rejects method combinations the pipeline cannot run.
// An offline extractor pins the whole task to local backends.
func (s ConversionSettings) Validate() error {
	if !ValidExtractorMethods[s.ExtractorMethod] {
		return &SettingsError{Field: "extractor_method", Reason: "unsupported value " + quote(string(s.ExtractorMethod))}
	}
	if !ValidInpaintMethods[s.InpaintMethod] {
		return &SettingsError{Field: "inpaint_method", Reason: "unsupported value " + quote(string(s.InpaintMethod))}
	}
	if !ValidTextStyleModes[s.TextStyleMode] {
		return &SettingsError{Field: "text_style_mode", Reason: "unsupported value " + quote(string(s.TextStyleMode))}
	}
	if _, ok := ResolutionLongEdge[s.OutputResolution]; !ok {
		return &SettingsError{Field: "output_resolution", Reason: "unsupported value " + quote(string(s.OutputResolution))}
	}
	if _, ok := ValidImageFormats[s.ImageFormat]; !ok {
		return &SettingsError{Field: "image_format", Reason: "unsupported value " + quote(string(s.ImageFormat))}
	}
	if d := s.RecursionDepth(); d < 0 || d > MaxRecursionDepth {
		return &SettingsError{Field: "max_depth", Reason: "must be between 0 and " + strconv.Itoa(MaxRecursionDepth)}
	}
	if s.ExtractorMethod == ExtractorOffline {
		if s.InpaintMethod.NeedsNetwork() {
			return &SettingsError{Field: "inpaint_method", Reason: "offline extraction cannot be combined with " + quote(string(s.InpaintMethod))}
		}
		if s.TextStyleMode == StyleInferredAI {
			return &SettingsError{Field: "text_style_mode", Reason: "offline extraction cannot be combined with " + quote(string(s.TextStyleMode))}
		}
	}
	return nil
}

func quote(s string) string {
	return `"` + s + `"`
}

// PageProgress tracks one page of a task.
type PageProgress struct {
	PageID string `json:"page_id"`
	Index  int    `json:"index"`
	Stage  Stage  `json:"stage"`
	Failed bool   `json:"failed,omitempty"`
}

// TaskProgress holds the per-task counters exposed to pollers.
type TaskProgress struct {
	Total     int            `json:"total"`
	Extracted int            `json:"extracted"`
	Completed int            `json:"completed"`
	Failed    int            `json:"failed"`
	Pages     []PageProgress `json:"pages"`
	Messages  []string       `json:"messages"`
	// WarningCount keeps counting after Warnings is full.
	WarningCount int       `json:"warning_count"`
	Warnings     []Warning `json:"warnings,omitempty"`
}

// MaxProgressMessages bounds the rolling message log.
const MaxProgressMessages = 10

// MaxTaskWarnings bounds the warning details kept per task.
const MaxTaskWarnings = 50

// Warning records a degraded but non-fatal step, such as a style fallback or a
// region that kept its first-pass reading.
type Warning struct {
	PageID    string `json:"page_id"`
	ElementID string `json:"element_id,omitempty"`
	Stage     Stage  `json:"stage"`
	Message   string `json:"message"`
}

// AddWarnings counts every warning and keeps the first MaxTaskWarnings details.
func (p *TaskProgress) AddWarnings(ws ...Warning) {
	for _, w := range ws {
		p.WarningCount++
		if len(p.Warnings) < MaxTaskWarnings {
			p.Warnings = append(p.Warnings, w)
		}
	}
}

// ConversionTask is owned and mutated only by the conversion orchestrator.
type ConversionTask struct {
	ID                uuid.UUID                  `db:"id" json:"id"`
	ProjectID         string                     `db:"project_id" json:"project_id"`
	Pages             []PageRef                  `db:"-" json:"pages"`
	Settings          ConversionSettings         `db:"-" json:"settings"`
	Status            TaskStatus                 `db:"status" json:"status"`
	Progress          TaskProgress               `db:"-" json:"progress"`
	ResultArtifactRef string                     `db:"result_artifact_ref" json:"result_artifact_ref,omitempty"`
	Error             *TaskError                 `db:"-" json:"error,omitempty"`
	Analyses          map[string]*LayoutAnalysis `db:"-" json:"analyses,omitempty"`
	NotifyEmail       string                     `db:"notify_email" json:"-"`
	CreatedAt         time.Time                  `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time                  `db:"updated_at" json:"updated_at"`
	CompletedAt       *time.Time                 `db:"completed_at" json:"completed_at,omitempty"`
}

// Clone returns a deep-enough copy for readers: slices and maps are copied,
// layout analyses are shared because they are immutable.
func (t *ConversionTask) Clone() *ConversionTask {
	c := *t
	c.Pages = append([]PageRef(nil), t.Pages...)
	c.Progress.Pages = append([]PageProgress(nil), t.Progress.Pages...)
	c.Progress.Messages = append([]string(nil), t.Progress.Messages...)
	c.Progress.Warnings = append([]Warning(nil), t.Progress.Warnings...)
	if t.Settings.MaxDepth != nil {
		d := *t.Settings.MaxDepth
		c.Settings.MaxDepth = &d
	}
	if t.Error != nil {
		e := *t.Error
		c.Error = &e
	}
	if t.Analyses != nil {
		c.Analyses = make(map[string]*LayoutAnalysis, len(t.Analyses))
		for k, v := range t.Analyses {
			c.Analyses[k] = v
		}
	}
	if t.CompletedAt != nil {
		ts := *t.CompletedAt
		c.CompletedAt = &ts
	}
	return &c
}
