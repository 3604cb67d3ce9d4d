package noop

import (
	"context"

	"github.com/rs/zerolog"

	"bananaslides/internal/domain"
	"bananaslides/internal/notify"
	"bananaslides/internal/port"
)

type noopNotifier struct {
	log zerolog.Logger
}

// NewNoopNotifier creates a Notifier that only logs what it would have sent.
func NewNoopNotifier(log zerolog.Logger) port.Notifier {
	return &noopNotifier{log: log.With().Str("component", "notify_noop").Logger()}
}

func (n *noopNotifier) NotifyTerminal(_ context.Context, toEmail string, task *domain.ConversionTask) error {
	msg := notify.Compose(task)
	n.log.Info().
		Str("to", toEmail).
		Str("task_id", task.ID.String()).
		Str("subject", msg.Subject).
		Msg("terminal notification")
	return nil
}
