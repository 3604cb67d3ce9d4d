package service

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// TaskQueueConfig holds settings for the task queue worker.
type TaskQueueConfig struct {
	Concurrency int
	Backlog     int
}

// Job is one phase of a conversion task.
type Job struct {
	TaskID uuid.UUID
	Phase  string
	Run    func(ctx context.Context)
}

// JobQueue accepts task work for background execution.
type JobQueue interface {
	Submit(ctx context.Context, job Job) error
}

// TaskQueueWorker runs submitted jobs with bounded concurrency.
type TaskQueueWorker struct {
	jobs chan Job
	cfg  TaskQueueConfig
	wg   sync.WaitGroup
	log  zerolog.Logger
}

// NewTaskQueueWorker creates a new TaskQueueWorker.
func NewTaskQueueWorker(cfg TaskQueueConfig, log zerolog.Logger) *TaskQueueWorker {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.Backlog < 0 {
		cfg.Backlog = 0
	}
	return &TaskQueueWorker{
		jobs: make(chan Job, cfg.Backlog),
		cfg:  cfg,
		log:  log.With().Str("component", "task_queue").Logger(),
	}
}

// Submit blocks until the job is queued or ctx is done.
func (w *TaskQueueWorker) Submit(ctx context.Context, job Job) error {
	select {
	case w.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Start runs jobs until ctx is canceled. It blocks until all in-flight jobs
// have finished. Jobs still queued at shutdown are dropped; their tasks are
// failed by recovery on the next start.
func (w *TaskQueueWorker) Start(ctx context.Context) {
	sem := make(chan struct{}, w.cfg.Concurrency)

	w.log.Info().Int("concurrency", w.cfg.Concurrency).Int("backlog", w.cfg.Backlog).Msg("started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("shutting down, waiting for in-flight tasks")
			w.wg.Wait()
			w.log.Info().Msg("shutdown complete")
			return
		case job := <-w.jobs:
			select {
			case sem <- struct{}{}: // acquire
			case <-ctx.Done():
				w.log.Warn().Str("task_id", job.TaskID.String()).Str("phase", job.Phase).Msg("dropping queued job at shutdown")
				continue
			}
			w.wg.Add(1)
			go func() {
				defer w.wg.Done()
				defer func() { <-sem }() // release

				// Fresh context so in-flight tasks complete even during shutdown.
				w.log.Debug().Str("task_id", job.TaskID.String()).Str("phase", job.Phase).Msg("dispatching")
				job.Run(context.Background())
			}()
		}
	}
}
