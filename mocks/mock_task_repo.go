package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"bananaslides/internal/domain"
)

// MockTaskRepo is a mock implementation of port.TaskRepository.
type MockTaskRepo struct {
	mock.Mock
}

func (m *MockTaskRepo) Create(ctx context.Context, task *domain.ConversionTask) error {
	args := m.Called(ctx, task)
	return args.Error(0)
}

func (m *MockTaskRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.ConversionTask, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ConversionTask), args.Error(1)
}

func (m *MockTaskRepo) Update(ctx context.Context, task *domain.ConversionTask) error {
	args := m.Called(ctx, task)
	return args.Error(0)
}

func (m *MockTaskRepo) UpdateProgress(ctx context.Context, task *domain.ConversionTask) error {
	args := m.Called(ctx, task)
	return args.Error(0)
}

func (m *MockTaskRepo) ListByStatus(ctx context.Context, statuses []domain.TaskStatus, limit int) ([]domain.ConversionTask, error) {
	args := m.Called(ctx, statuses, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ConversionTask), args.Error(1)
}
