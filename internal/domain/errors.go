package domain

import (
	"errors"
	"fmt"
)

var (
	ErrExtractionFailed        = errors.New("layout extraction failed")
	ErrExtractionTimeout       = errors.New("layout extraction exceeded page deadline")
	ErrInvalidElement          = errors.New("element is not part of the page layout")
	ErrReconstructionFailed    = errors.New("background reconstruction failed")
	ErrReconstructionTimeout   = errors.New("background reconstruction exhausted retries")
	ErrAssemblyFailed          = errors.New("slide assembly failed")
	ErrTaskNotFound            = errors.New("conversion task not found")
	ErrSettingsInvalid         = errors.New("conversion settings are invalid")
	ErrInvalidTransition       = errors.New("task is not in a state that allows this action")
	ErrArtifactNotFound        = errors.New("artifact not found")
	ErrVerificationUnavailable = errors.New("task has no open verification session")
	ErrPageLoadFailed          = errors.New("page image could not be loaded")
	ErrPackagingFailed         = errors.New("artifact packaging failed")
)

// errorCodes maps sentinel errors to stable machine-readable codes.
var errorCodes = []struct {
	err  error
	code string
}{
	{ErrExtractionTimeout, "EXTRACTION_TIMEOUT"},
	{ErrExtractionFailed, "EXTRACTION_FAILED"},
	{ErrReconstructionTimeout, "RECONSTRUCTION_TIMEOUT"},
	{ErrReconstructionFailed, "RECONSTRUCTION_FAILED"},
	{ErrAssemblyFailed, "ASSEMBLY_FAILED"},
	{ErrInvalidElement, "INVALID_ELEMENT"},
	{ErrSettingsInvalid, "SETTINGS_INVALID"},
	{ErrPageLoadFailed, "PAGE_LOAD_FAILED"},
	{ErrPackagingFailed, "PACKAGING_FAILED"},
}

// ErrorCode returns the code of the first sentinel err wraps, or INTERNAL_ERROR.
func ErrorCode(err error) string {
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}
	return "INTERNAL_ERROR"
}

// SettingsError describes why a settings object was rejected.
type SettingsError struct {
	Field  string
	Reason string
}

func (e *SettingsError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrSettingsInvalid, e.Field, e.Reason)
}

func (e *SettingsError) Unwrap() error {
	return ErrSettingsInvalid
}

// StageError attaches pipeline stage and page context to a component failure.
// Page is 1-based; zero means the failure is not tied to a page.
type StageError struct {
	Stage  Stage
	Page   int
	PageID string
	Err    error
}

func (e *StageError) Error() string {
	if e.Page > 0 {
		return fmt.Sprintf("%s page %d (%s): %v", e.Stage, e.Page, e.PageID, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// TaskError is the structured cause recorded on a FAILED task.
type TaskError struct {
	Code   string `json:"code"`
	Stage  Stage  `json:"stage"`
	Page   int    `json:"page,omitempty"`
	PageID string `json:"page_id,omitempty"`
	Cause  string `json:"cause"`
}

// NewTaskError converts a failure into the task's terminal error record.
func NewTaskError(err error) *TaskError {
	te := &TaskError{Code: ErrorCode(err), Cause: err.Error()}
	var se *StageError
	if errors.As(err, &se) {
		te.Stage = se.Stage
		te.Page = se.Page
		te.PageID = se.PageID
		te.Cause = se.Err.Error()
	}
	return te
}
