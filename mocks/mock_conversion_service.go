package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"bananaslides/internal/domain"
	"bananaslides/internal/service"
)

// MockConversionService is a mock implementation of service.ConversionService.
type MockConversionService struct {
	mock.Mock
}

func (m *MockConversionService) Create(ctx context.Context, input *service.CreateConversionInput) (*domain.ConversionTask, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ConversionTask), args.Error(1)
}

func (m *MockConversionService) Get(ctx context.Context, id uuid.UUID) (*domain.ConversionTask, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ConversionTask), args.Error(1)
}

func (m *MockConversionService) Confirm(ctx context.Context, id uuid.UUID, eraseSets map[string][]string) (*domain.ConversionTask, error) {
	args := m.Called(ctx, id, eraseSets)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ConversionTask), args.Error(1)
}

func (m *MockConversionService) Verification(ctx context.Context, id uuid.UUID) (*service.VerificationView, error) {
	args := m.Called(ctx, id)
	return viewArg(args)
}

func (m *MockConversionService) Toggle(ctx context.Context, id uuid.UUID, pageID, elementID string) (*service.VerificationView, error) {
	args := m.Called(ctx, id, pageID, elementID)
	return viewArg(args)
}

func (m *MockConversionService) BulkSet(ctx context.Context, id uuid.UUID, pageID string, status domain.ElementStatus) (*service.VerificationView, error) {
	args := m.Called(ctx, id, pageID, status)
	return viewArg(args)
}

func (m *MockConversionService) Reset(ctx context.Context, id uuid.UUID, pageID string) (*service.VerificationView, error) {
	args := m.Called(ctx, id, pageID)
	return viewArg(args)
}

func (m *MockConversionService) Artifact(ctx context.Context, ref string) ([]byte, error) {
	args := m.Called(ctx, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockConversionService) ArtifactURL(ctx context.Context, ref string) (string, error) {
	args := m.Called(ctx, ref)
	return args.String(0), args.Error(1)
}

func (m *MockConversionService) Recover(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockConversionService) Flush(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func viewArg(args mock.Arguments) (*service.VerificationView, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.VerificationView), args.Error(1)
}
