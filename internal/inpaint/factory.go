package inpaint

import (
	"github.com/rs/zerolog"

	"bananaslides/internal/config"
	"bananaslides/internal/inpaint/generative"
	"bananaslides/internal/inpaint/lama"
	"bananaslides/internal/port"
	"bananaslides/internal/retry"
)

// NewFromConfig wires the generative and local backends present in cfg.
func NewFromConfig(providers *config.ProvidersConfig, conv *config.ConversionConfig, log zerolog.Logger) *Reconstructor {
	var gen, local port.Inpainter
	if providers.Generative.APIKey != "" || providers.Generative.Configured() {
		gen = generative.NewInpainter(&providers.Generative)
	}
	if providers.LocalInpaint.Configured() {
		local = lama.NewInpainter(&providers.LocalInpaint)
	}
	return New(gen, local, Options{
		Retry:       retry.Policy{MaxAttempts: conv.MaxAttempts, BaseDelay: conv.RetryBaseDelay},
		MaskPadding: conv.MaskPadding,
	}, log)
}
