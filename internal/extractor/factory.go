package extractor

import (
	"github.com/rs/zerolog"

	"bananaslides/internal/config"
	"bananaslides/internal/domain"
	"bananaslides/internal/extractor/layoutapi"
	"bananaslides/internal/extractor/localocr"
	"bananaslides/internal/extractor/ocrapi"
	"bananaslides/internal/extractor/tesseract"
	"bananaslides/internal/port"
	"bananaslides/internal/retry"
)

// NewFromConfig wires the backends available in cfg:
//   - fast: layout service
//   - hybrid: layout service plus the OCR service second pass
//   - offline: local OCR server, or in-process Tesseract when built with -tags ocr
func NewFromConfig(providers *config.ProvidersConfig, conv *config.ConversionConfig, log zerolog.Logger) *Extractor {
	detectors := map[domain.ExtractorMethod]port.LayoutDetector{}
	var refiner port.RegionRecognizer

	if providers.Layout.Configured() {
		layout := layoutapi.NewDetector(&providers.Layout)
		detectors[domain.ExtractorFast] = layout
		detectors[domain.ExtractorHybrid] = layout
	}
	if providers.OCR.Configured() {
		refiner = ocrapi.NewRecognizer(&providers.OCR)
	}

	switch {
	case providers.LocalOCR.Configured():
		detectors[domain.ExtractorOffline] = localocr.NewDetector(&providers.LocalOCR)
	case tesseract.Enabled:
		detectors[domain.ExtractorOffline] = tesseract.NewDetector(providers.TesseractLang)
	}

	return New(detectors, refiner, Options{
		PageDeadline:  conv.PageDeadline,
		Retry:         retry.Policy{MaxAttempts: conv.MaxAttempts, BaseDelay: conv.RetryBaseDelay},
		LowConfidence: providers.LowConfidence,
		MinImageSize:  conv.MinImageSize,
		MinImageArea:  conv.MinImageArea,
	}, log)
}
