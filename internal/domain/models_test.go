package domain_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bananaslides/internal/domain"
)

func validSettings() domain.ConversionSettings {
	return domain.ConversionSettings{
		ExtractorMethod:  domain.ExtractorHybrid,
		InpaintMethod:    domain.InpaintHybrid,
		TextStyleMode:    domain.StyleInferredVisual,
		OutputResolution: domain.Resolution2K,
		ImageFormat:      domain.ImageFormatPNG,
	}
}

func depth(n int) *int { return &n }

func TestConversionSettings_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(s *domain.ConversionSettings)
		field   string
		wantErr bool
	}{
		{name: "valid", mutate: func(s *domain.ConversionSettings) {}},
		{name: "unknown extractor", mutate: func(s *domain.ConversionSettings) { s.ExtractorMethod = "magic" }, field: "extractor_method", wantErr: true},
		{name: "unknown inpaint", mutate: func(s *domain.ConversionSettings) { s.InpaintMethod = "" }, field: "inpaint_method", wantErr: true},
		{name: "unknown style", mutate: func(s *domain.ConversionSettings) { s.TextStyleMode = "fancy" }, field: "text_style_mode", wantErr: true},
		{name: "unknown resolution", mutate: func(s *domain.ConversionSettings) { s.OutputResolution = "8k" }, field: "output_resolution", wantErr: true},
		{name: "unknown format", mutate: func(s *domain.ConversionSettings) { s.ImageFormat = "gif" }, field: "image_format", wantErr: true},
		{name: "offline with generative", mutate: func(s *domain.ConversionSettings) {
			s.ExtractorMethod = domain.ExtractorOffline
			s.InpaintMethod = domain.InpaintGenerative
		}, field: "inpaint_method", wantErr: true},
		{name: "offline with hybrid inpaint", mutate: func(s *domain.ConversionSettings) {
			s.ExtractorMethod = domain.ExtractorOffline
		}, field: "inpaint_method", wantErr: true},
		{name: "offline with ai style", mutate: func(s *domain.ConversionSettings) {
			s.ExtractorMethod = domain.ExtractorOffline
			s.InpaintMethod = domain.InpaintOffline
			s.TextStyleMode = domain.StyleInferredAI
		}, field: "text_style_mode", wantErr: true},
		{name: "offline with fast inpaint", mutate: func(s *domain.ConversionSettings) {
			s.ExtractorMethod = domain.ExtractorOffline
			s.InpaintMethod = domain.InpaintFast
		}},
		{name: "depth in range", mutate: func(s *domain.ConversionSettings) { s.MaxDepth = depth(domain.MaxRecursionDepth) }},
		{name: "depth too deep", mutate: func(s *domain.ConversionSettings) { s.MaxDepth = depth(domain.MaxRecursionDepth + 1) }, field: "max_depth", wantErr: true},
		{name: "negative depth", mutate: func(s *domain.ConversionSettings) { s.MaxDepth = depth(-1) }, field: "max_depth", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSettings()
			tt.mutate(&s)
			err := s.Validate()
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrSettingsInvalid)
			var se *domain.SettingsError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, tt.field, se.Field)
		})
	}
}

func TestCanTransition(t *testing.T) {
	assert.True(t, domain.CanTransition(domain.TaskPending, domain.TaskProcessing))
	assert.True(t, domain.CanTransition(domain.TaskProcessing, domain.TaskAwaitingVerification))
	assert.True(t, domain.CanTransition(domain.TaskAwaitingVerification, domain.TaskProcessing))
	assert.True(t, domain.CanTransition(domain.TaskProcessing, domain.TaskCompleted))
	assert.False(t, domain.CanTransition(domain.TaskAwaitingVerification, domain.TaskCompleted))
	assert.True(t, domain.CanTransition(domain.TaskAwaitingVerification, domain.TaskFailed))
	assert.False(t, domain.CanTransition(domain.TaskPending, domain.TaskCompleted))

	for _, terminal := range []domain.TaskStatus{domain.TaskCompleted, domain.TaskFailed} {
		assert.True(t, terminal.Terminal())
		for _, to := range []domain.TaskStatus{domain.TaskPending, domain.TaskProcessing, domain.TaskAwaitingVerification, domain.TaskCompleted, domain.TaskFailed} {
			assert.False(t, domain.CanTransition(terminal, to), "%s -> %s", terminal, to)
		}
	}
}

func TestNewTaskError_FromStageError(t *testing.T) {
	err := fmt.Errorf("pipeline: %w", &domain.StageError{
		Stage:  domain.StageReconstruct,
		Page:   2,
		PageID: "p2",
		Err:    fmt.Errorf("%w: generative backend 503", domain.ErrReconstructionTimeout),
	})

	te := domain.NewTaskError(err)

	assert.Equal(t, "RECONSTRUCTION_TIMEOUT", te.Code)
	assert.Equal(t, domain.StageReconstruct, te.Stage)
	assert.Equal(t, 2, te.Page)
	assert.Equal(t, "p2", te.PageID)
	assert.Contains(t, te.Cause, "generative backend 503")
}

func TestNewTaskError_Plain(t *testing.T) {
	te := domain.NewTaskError(errors.New("disk full"))

	assert.Equal(t, "INTERNAL_ERROR", te.Code)
	assert.Zero(t, te.Page)
	assert.Equal(t, "disk full", te.Cause)
}

func TestConversionTask_Clone(t *testing.T) {
	task := &domain.ConversionTask{
		Pages:    []domain.PageRef{{PageID: "p1"}},
		Progress: domain.TaskProgress{Messages: []string{"a"}},
		Error:    &domain.TaskError{Code: "X"},
	}

	c := task.Clone()
	c.Pages[0].PageID = "changed"
	c.Progress.Messages[0] = "b"
	c.Error.Code = "Y"

	assert.Equal(t, "p1", task.Pages[0].PageID)
	assert.Equal(t, "a", task.Progress.Messages[0])
	assert.Equal(t, "X", task.Error.Code)
}

func TestConversionTask_CloneCopiesWarningsAndDepth(t *testing.T) {
	task := &domain.ConversionTask{Settings: domain.ConversionSettings{MaxDepth: depth(2)}}
	task.Progress.AddWarnings(domain.Warning{PageID: "p1", Message: "a"})

	c := task.Clone()
	*c.Settings.MaxDepth = 0
	c.Progress.Warnings[0].Message = "b"

	assert.Equal(t, 2, task.Settings.RecursionDepth())
	assert.Equal(t, "a", task.Progress.Warnings[0].Message)
}

func TestTaskProgress_AddWarningsCapsDetails(t *testing.T) {
	var p domain.TaskProgress
	for i := 0; i < domain.MaxTaskWarnings+5; i++ {
		p.AddWarnings(domain.Warning{PageID: fmt.Sprintf("p%d", i)})
	}

	assert.Equal(t, domain.MaxTaskWarnings+5, p.WarningCount)
	assert.Len(t, p.Warnings, domain.MaxTaskWarnings)
	assert.Equal(t, "p0", p.Warnings[0].PageID)
}

func TestValidPageID(t *testing.T) {
	for _, id := range []string{"p1", "page-01", "Slide_3"} {
		assert.True(t, domain.ValidPageID(id), id)
	}
	for _, id := range []string{"", "../evil", "a/b", "p 1", "p.png", strings.Repeat("x", 129)} {
		assert.False(t, domain.ValidPageID(id), id)
	}
}
