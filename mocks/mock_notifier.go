package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"bananaslides/internal/domain"
)

// MockNotifier is a mock implementation of port.Notifier.
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) NotifyTerminal(ctx context.Context, toEmail string, task *domain.ConversionTask) error {
	args := m.Called(ctx, toEmail, task)
	return args.Error(0)
}
