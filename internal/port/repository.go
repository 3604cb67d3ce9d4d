package port

import (
	"context"

	"github.com/google/uuid"

	"bananaslides/internal/domain"
)

// TaskRepository defines the contract for conversion task persistence.
// Only the conversion orchestrator writes through it.
type TaskRepository interface {
	Create(ctx context.Context, task *domain.ConversionTask) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.ConversionTask, error)
	Update(ctx context.Context, task *domain.ConversionTask) error
	// UpdateProgress writes status, progress, error and completion fields but
	// leaves the stored layout analyses untouched.
	UpdateProgress(ctx context.Context, task *domain.ConversionTask) error
	ListByStatus(ctx context.Context, statuses []domain.TaskStatus, limit int) ([]domain.ConversionTask, error)
}
