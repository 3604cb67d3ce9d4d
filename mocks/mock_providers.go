package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"bananaslides/internal/domain"
	"bananaslides/internal/port"
)

// MockLayoutDetector is a mock implementation of port.LayoutDetector.
type MockLayoutDetector struct {
	mock.Mock
}

func (m *MockLayoutDetector) Name() string { return "mock-layout" }

func (m *MockLayoutDetector) Detect(ctx context.Context, page port.PageImage) ([]port.DetectedRegion, error) {
	args := m.Called(ctx, page)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]port.DetectedRegion), args.Error(1)
}

// MockRegionRecognizer is a mock implementation of port.RegionRecognizer.
type MockRegionRecognizer struct {
	mock.Mock
}

func (m *MockRegionRecognizer) Name() string { return "mock-ocr" }

func (m *MockRegionRecognizer) Recognize(ctx context.Context, crop port.PageImage, kind domain.ElementType) (*port.Recognition, error) {
	args := m.Called(ctx, crop, kind)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*port.Recognition), args.Error(1)
}

// MockInpainter is a mock implementation of port.Inpainter.
type MockInpainter struct {
	mock.Mock
}

func (m *MockInpainter) Name() string { return "mock-inpaint" }

func (m *MockInpainter) Inpaint(ctx context.Context, img, mask []byte) ([]byte, error) {
	args := m.Called(ctx, img, mask)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// MockStyleInferrer is a mock implementation of port.StyleInferrer.
type MockStyleInferrer struct {
	mock.Mock
}

func (m *MockStyleInferrer) InferStyle(ctx context.Context, crop port.PageImage, text string) (*domain.TextStyle, error) {
	args := m.Called(ctx, crop, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TextStyle), args.Error(1)
}
