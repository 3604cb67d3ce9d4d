package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"bananaslides/internal/domain"
	"bananaslides/internal/port"
	"bananaslides/internal/verification"
)

// Confirm resumes a task paused for verification. A nil eraseSets uses the
// session's current decisions; otherwise the supplied sets replace them.
func (s *conversionService) Confirm(ctx context.Context, id uuid.UUID, eraseSets map[string][]string) (*domain.ConversionTask, error) {
	h, err := s.liveHandle(ctx, id)
	if err != nil {
		return nil, err
	}

	h.mu.Lock()
	if h.task.Status != domain.TaskAwaitingVerification || h.session == nil {
		status := h.task.Status
		h.mu.Unlock()
		return nil, fmt.Errorf("%w: task is %s", domain.ErrInvalidTransition, status)
	}

	erase := h.session.Materialize()
	if eraseSets != nil {
		analyses := make([]*domain.LayoutAnalysis, len(h.pages))
		for i, pw := range h.pages {
			analyses[i] = pw.analysis
		}
		st, err := verification.InitFrom(analyses, eraseSets)
		if err != nil {
			h.mu.Unlock()
			return nil, err
		}
		erase = st.Materialize()
	}

	err = s.transitionLocked(h, domain.TaskProcessing, func(h *taskHandle) {
		h.session = nil
		n := 0
		for _, ids := range erase {
			n += len(ids)
		}
		addMessage(h.task, fmt.Sprintf("verification confirmed: %d elements to regenerate", n))
	})
	snapshot := h.task.Clone()
	h.mu.Unlock()
	if err != nil {
		return nil, err
	}

	err = s.queue.Submit(ctx, Job{TaskID: id, Phase: "render", Run: func(ctx context.Context) { s.runRender(ctx, h, erase) }})
	if err != nil {
		s.fail(h, &domain.StageError{Stage: domain.StageQueued, Err: err})
		return nil, fmt.Errorf("enqueueing render: %w", err)
	}
	return snapshot, nil
}

// liveHandle returns the in-memory handle, distinguishing unknown tasks from
// tasks that exist but are no longer live in this process.
func (s *conversionService) liveHandle(ctx context.Context, id uuid.UUID) (*taskHandle, error) {
	if h := s.handle(id); h != nil {
		return h, nil
	}
	task, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("%w: task is %s", domain.ErrInvalidTransition, task.Status)
}

// withSession runs fn against the open verification session of a task.
func (s *conversionService) withSession(ctx context.Context, id uuid.UUID, fn func(st *verification.State) error) (*VerificationView, error) {
	h := s.handle(id)
	if h == nil {
		if _, err := s.repo.GetByID(ctx, id); err != nil {
			return nil, err
		}
		return nil, domain.ErrVerificationUnavailable
	}

	// Held across fn so an edit cannot interleave with Confirm.
	h.mu.Lock()
	defer h.mu.Unlock()
	st := h.session
	if h.task.Status != domain.TaskAwaitingVerification || st == nil {
		return nil, domain.ErrVerificationUnavailable
	}

	if fn != nil {
		if err := fn(st); err != nil {
			return nil, err
		}
	}
	return &VerificationView{
		TaskID: id,
		Pages:  st.Pages(),
		Map:    st.Map(),
		Stats:  st.Stats(),
		Erase:  st.Materialize(),
	}, nil
}

func (s *conversionService) Verification(ctx context.Context, id uuid.UUID) (*VerificationView, error) {
	return s.withSession(ctx, id, nil)
}

func (s *conversionService) Toggle(ctx context.Context, id uuid.UUID, pageID, elementID string) (*VerificationView, error) {
	return s.withSession(ctx, id, func(st *verification.State) error {
		_, err := st.Toggle(pageID, elementID)
		return err
	})
}

func (s *conversionService) BulkSet(ctx context.Context, id uuid.UUID, pageID string, status domain.ElementStatus) (*VerificationView, error) {
	return s.withSession(ctx, id, func(st *verification.State) error {
		return st.BulkSet(pageID, status)
	})
}

func (s *conversionService) Reset(ctx context.Context, id uuid.UUID, pageID string) (*VerificationView, error) {
	return s.withSession(ctx, id, func(st *verification.State) error {
		return st.Reset(pageID)
	})
}

// Artifact returns the bundle bytes of a completed task.
func (s *conversionService) Artifact(ctx context.Context, ref string) ([]byte, error) {
	if err := s.checkArtifactRef(ctx, ref); err != nil {
		return nil, err
	}
	data, err := s.storage.Download(ctx, s.cfg.ArtifactBucket, ref)
	if err != nil {
		if errors.Is(err, port.ErrObjectNotFound) {
			return nil, domain.ErrArtifactNotFound
		}
		return nil, fmt.Errorf("downloading artifact: %w", err)
	}
	return data, nil
}

// ArtifactURL returns a presigned download URL for the bundle of a completed task.
func (s *conversionService) ArtifactURL(ctx context.Context, ref string) (string, error) {
	if err := s.checkArtifactRef(ctx, ref); err != nil {
		return "", err
	}
	url, err := s.storage.GetPresignedURL(ctx, s.cfg.ArtifactBucket, ref, s.cfg.PresignExpiry)
	if err != nil {
		return "", fmt.Errorf("presigning artifact: %w", err)
	}
	return url, nil
}

// checkArtifactRef accepts only the reference recorded on a completed task.
func (s *conversionService) checkArtifactRef(ctx context.Context, ref string) error {
	name, ok := strings.CutPrefix(ref, "artifacts/")
	if !ok {
		return domain.ErrArtifactNotFound
	}
	id, err := uuid.Parse(strings.TrimSuffix(name, ".zip"))
	if err != nil {
		return domain.ErrArtifactNotFound
	}
	task, err := s.Get(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrTaskNotFound) {
			return domain.ErrArtifactNotFound
		}
		return err
	}
	if task.Status != domain.TaskCompleted || task.ResultArtifactRef != ref {
		return domain.ErrArtifactNotFound
	}
	return nil
}

// recoverBatch bounds how many interrupted tasks are read per query.
const recoverBatch = 500

// Recover fails tasks a previous process left unfinished. Page images and
// verification sessions live only in memory, so such tasks cannot resume.
func (s *conversionService) Recover(ctx context.Context) (int, error) {
	total := 0
	for {
		n := 0
		tasks, err := s.repo.ListByStatus(ctx, []domain.TaskStatus{
			domain.TaskPending, domain.TaskProcessing, domain.TaskAwaitingVerification,
		}, recoverBatch)
		if err != nil {
			return total, fmt.Errorf("listing interrupted tasks: %w", err)
		}

		for i := range tasks {
			t := &tasks[i]
			if s.handle(t.ID) != nil {
				continue
			}
			stage := domain.StageQueued
			for _, p := range t.Progress.Pages {
				if !p.Failed && p.Stage != domain.StageQueued && p.Stage != domain.StageDone {
					stage = p.Stage
					break
				}
			}
			now := s.now().UTC()
			t.Status = domain.TaskFailed
			t.Error = &domain.TaskError{Code: "INTERRUPTED", Stage: stage, Cause: "server stopped before the task finished"}
			addMessage(t, "failed: interrupted by restart")
			t.UpdatedAt = now
			t.CompletedAt = &now
			if err := s.repo.Update(ctx, t); err != nil {
				return total, fmt.Errorf("failing interrupted task %s: %w", t.ID, err)
			}
			s.mirror(ctx, t)
			n++
		}
		total += n
		if len(tasks) < recoverBatch || n == 0 {
			break
		}
	}
	if total > 0 {
		s.log.Warn().Int("tasks", total).Msg("failed interrupted tasks")
	}
	return total, nil
}
