package port

import (
	"context"

	"bananaslides/internal/domain"
)

// Notifier tells a task's requester that it reached a terminal state.
type Notifier interface {
	NotifyTerminal(ctx context.Context, toEmail string, task *domain.ConversionTask) error
}
