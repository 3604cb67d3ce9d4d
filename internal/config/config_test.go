package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bananaslides/internal/config"
	"bananaslides/internal/domain"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("BANANA_SERVER_PORT", ":9999")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.Server.Port)
	assert.Equal(t, 3, cfg.Conversion.MaxAttempts)
	assert.Equal(t, 5, cfg.Conversion.MaskPadding)
	assert.Equal(t, 1, cfg.Conversion.Defaults().RecursionDepth())
	assert.Equal(t, 40000, cfg.Conversion.MinImageArea)
	assert.Equal(t, "eng", cfg.Providers.TesseractLang)
	assert.InDelta(t, 0.6, cfg.Providers.LowConfidence, 1e-9)
	assert.Empty(t, cfg.Redis.Addr)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("BANANA_CONVERSION_EXTRACTOR_METHOD", "fast")
	t.Setenv("BANANA_QUEUE_PAGE_CONCURRENCY", "7")
	t.Setenv("BANANA_PROVIDERS_LAYOUT_URL", "http://layout.local")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "fast", cfg.Conversion.ExtractorMethod)
	assert.Equal(t, 7, cfg.Queue.PageConcurrency)
	assert.True(t, cfg.Providers.Layout.Configured())
	assert.False(t, cfg.Providers.OCR.Configured())
}

func TestLoad_InvalidDefaultRejected(t *testing.T) {
	t.Setenv("BANANA_CONVERSION_INPAINT_METHOD", "magic")

	_, err := config.Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSettingsInvalid)
}

func TestConversionConfig_Defaults_PreferOffline(t *testing.T) {
	c := config.ConversionConfig{
		ExtractorMethod:  "hybrid",
		InpaintMethod:    "generative",
		TextStyleMode:    "inferred-ai",
		OutputResolution: "2k",
		ImageFormat:      "png",
		PreferOffline:    true,
	}

	s := c.Defaults()

	assert.Equal(t, domain.ExtractorOffline, s.ExtractorMethod)
	assert.Equal(t, domain.InpaintOffline, s.InpaintMethod)
	assert.Equal(t, domain.StyleInferredVisual, s.TextStyleMode)
	assert.NoError(t, s.Validate())
}

func TestConversionConfig_Defaults_KeepsFastInpaintOffline(t *testing.T) {
	c := config.ConversionConfig{
		ExtractorMethod:  "fast",
		InpaintMethod:    "fast",
		TextStyleMode:    "default",
		OutputResolution: "original",
		ImageFormat:      "jpeg",
		PreferOffline:    true,
	}

	s := c.Defaults()

	assert.Equal(t, domain.InpaintFast, s.InpaintMethod)
	assert.Equal(t, domain.StyleDefault, s.TextStyleMode)
}
