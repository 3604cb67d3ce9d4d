package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"bananaslides/internal/domain"
)

// MockStatusCache is a mock implementation of port.StatusCache.
type MockStatusCache struct {
	mock.Mock
}

func (m *MockStatusCache) Put(ctx context.Context, task *domain.ConversionTask) error {
	args := m.Called(ctx, task)
	return args.Error(0)
}

func (m *MockStatusCache) Get(ctx context.Context, id uuid.UUID) (*domain.ConversionTask, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ConversionTask), args.Error(1)
}
