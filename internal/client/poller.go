package client

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"bananaslides/internal/domain"
	"bananaslides/internal/retry"
)

// ErrPollTimeout is returned when the overall wait deadline passes before the
// task settles. It says nothing about the task itself, which keeps running.
var ErrPollTimeout = errors.New("timed out waiting for task")

// PollOptions controls Wait.
type PollOptions struct {
	Interval time.Duration
	// Timeout bounds the whole wait. Zero means wait until ctx ends.
	Timeout time.Duration
	// Retry bounds consecutive failed status reads.
	Retry retry.Policy
	// StopOnAwaiting returns as soon as the task pauses for verification.
	StopOnAwaiting bool
	OnUpdate       func(task *domain.ConversionTask)
}

// Wait polls a task until it is COMPLETED or FAILED (or AWAITING_VERIFICATION
// with StopOnAwaiting). A FAILED task is returned without error; callers inspect
// task.Error. A task the server does not know yet is reported as PENDING.
func (c *Client) Wait(ctx context.Context, id uuid.UUID, opts PollOptions) (*domain.ConversionTask, error) {
	if opts.Interval <= 0 {
		opts.Interval = time.Second
	}
	pollCtx := ctx
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		pollCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	var last *domain.ConversionTask
	for {
		var task *domain.ConversionTask
		err := retry.Do(pollCtx, opts.Retry, func(ctx context.Context) error {
			t, err := c.GetConversion(ctx, id)
			if errors.Is(err, domain.ErrTaskNotFound) {
				task = &domain.ConversionTask{ID: id, Status: domain.TaskPending}
				return nil
			}
			if err != nil {
				return err
			}
			task = t
			return nil
		}, nil)
		if err != nil {
			if timedOut(ctx, pollCtx) {
				return last, ErrPollTimeout
			}
			return last, err
		}

		last = task
		if opts.OnUpdate != nil {
			opts.OnUpdate(task)
		}
		if task.Status.Terminal() || (opts.StopOnAwaiting && task.Status == domain.TaskAwaitingVerification) {
			return task, nil
		}

		timer := time.NewTimer(opts.Interval)
		select {
		case <-pollCtx.Done():
			timer.Stop()
			if timedOut(ctx, pollCtx) {
				return last, ErrPollTimeout
			}
			return last, ctx.Err()
		case <-timer.C:
		}
	}
}

// timedOut reports whether pollCtx ended because of the wait deadline rather
// than the caller's own context.
func timedOut(parent, pollCtx context.Context) bool {
	return parent.Err() == nil && errors.Is(pollCtx.Err(), context.DeadlineExceeded)
}
