package port

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"bananaslides/internal/domain"
)

// ErrCacheMiss indicates the status mirror has no entry for a task.
var ErrCacheMiss = errors.New("cache miss")

// StatusCache mirrors task snapshots for pollers that do not share the orchestrator's memory.
type StatusCache interface {
	Put(ctx context.Context, task *domain.ConversionTask) error
	Get(ctx context.Context, id uuid.UUID) (*domain.ConversionTask, error)
}
