package service

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"bananaslides/internal/assembler"
	"bananaslides/internal/domain"
	"bananaslides/internal/port"
	"bananaslides/internal/verification"
)

// PageExtractor turns one page image into a layout tree.
type PageExtractor interface {
	Supports(method domain.ExtractorMethod) bool
	Extract(ctx context.Context, pageID string, img *image.RGBA, method domain.ExtractorMethod, maxDepth int) (*domain.LayoutAnalysis, error)
}

// BackgroundReconstructor repaints erased regions of a page.
type BackgroundReconstructor interface {
	Supports(method domain.InpaintMethod) bool
	Reconstruct(ctx context.Context, img *image.RGBA, regions []domain.BBox, method domain.InpaintMethod) (*image.RGBA, error)
}

// SlideAssembler builds one editable slide.
type SlideAssembler interface {
	Assemble(ctx context.Context, in assembler.Input) (*assembler.Result, error)
}

// StyleSupport reports which text style modes can run.
type StyleSupport interface {
	Supports(mode domain.TextStyleMode) bool
}

// Pipeline groups the per-page stages.
type Pipeline struct {
	Extractor     PageExtractor
	Reconstructor BackgroundReconstructor
	Assembler     SlideAssembler
	Styles        StyleSupport
}

// OrchestratorConfig holds settings for the conversion orchestrator.
type OrchestratorConfig struct {
	PageBucket      string
	ArtifactBucket  string
	PageConcurrency int
	// Retention is how long a finished task stays in memory before reads fall
	// through to the status mirror and the database.
	Retention     time.Duration
	PresignExpiry int64
	Defaults      domain.ConversionSettings
	// PersistTimeout bounds each background write of a task's state.
	PersistTimeout time.Duration
}

// CreateConversionInput is the DTO for starting a conversion. Empty settings
// fields are filled from the configured defaults.
type CreateConversionInput struct {
	ProjectID   string
	Pages       []domain.PageRef
	Settings    domain.ConversionSettings
	NotifyEmail string
}

// VerificationView is the current state of a task's verification session.
type VerificationView struct {
	TaskID uuid.UUID                                  `json:"task_id"`
	Pages  []string                                   `json:"pages"`
	Map    map[string]map[string]domain.ElementStatus `json:"map"`
	Stats  map[string]verification.Stats              `json:"stats"`
	Erase  map[string][]string                        `json:"erase"`
}

// ConversionService defines the conversion task contract.
type ConversionService interface {
	Create(ctx context.Context, input *CreateConversionInput) (*domain.ConversionTask, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.ConversionTask, error)
	Confirm(ctx context.Context, id uuid.UUID, eraseSets map[string][]string) (*domain.ConversionTask, error)
	Verification(ctx context.Context, id uuid.UUID) (*VerificationView, error)
	Toggle(ctx context.Context, id uuid.UUID, pageID, elementID string) (*VerificationView, error)
	BulkSet(ctx context.Context, id uuid.UUID, pageID string, status domain.ElementStatus) (*VerificationView, error)
	Reset(ctx context.Context, id uuid.UUID, pageID string) (*VerificationView, error)
	Artifact(ctx context.Context, ref string) ([]byte, error)
	ArtifactURL(ctx context.Context, ref string) (string, error)
	Recover(ctx context.Context) (int, error)
	Flush(ctx context.Context) error
}

// taskHandle is the only place a live task is mutated. Every change happens under
// mu; storage writes happen afterwards on store.
type taskHandle struct {
	mu       sync.Mutex
	task     *domain.ConversionTask
	settings domain.ConversionSettings
	session  *verification.State
	pages    []*pageWork
	store    *taskPersister
}

// pageWork carries one page between phases. Each worker goroutine touches only its own entry.
type pageWork struct {
	index    int
	ref      domain.PageRef
	img      *image.RGBA
	analysis *domain.LayoutAnalysis
}

type conversionService struct {
	repo     port.TaskRepository
	cache    port.StatusCache
	storage  port.ObjectStorage
	notifier port.Notifier
	pipeline Pipeline
	queue    JobQueue
	cfg      OrchestratorConfig
	log      zerolog.Logger
	now      func() time.Time

	mu      sync.RWMutex
	handles map[uuid.UUID]*taskHandle
}

// NewConversionService creates a new ConversionService. cache may be nil.
func NewConversionService(
	repo port.TaskRepository,
	cache port.StatusCache,
	storage port.ObjectStorage,
	notifier port.Notifier,
	pipeline Pipeline,
	queue JobQueue,
	cfg OrchestratorConfig,
	log zerolog.Logger,
) ConversionService {
	if cfg.PageConcurrency < 1 {
		cfg.PageConcurrency = 1
	}
	if cfg.PersistTimeout <= 0 {
		cfg.PersistTimeout = 10 * time.Second
	}
	return &conversionService{
		repo:     repo,
		cache:    cache,
		storage:  storage,
		notifier: notifier,
		pipeline: pipeline,
		queue:    queue,
		cfg:      cfg,
		log:      log.With().Str("component", "orchestrator").Logger(),
		now:      time.Now,
		handles:  make(map[uuid.UUID]*taskHandle),
	}
}

func (s *conversionService) Create(ctx context.Context, input *CreateConversionInput) (*domain.ConversionTask, error) {
	settings := withDefaults(input.Settings, s.cfg.Defaults)
	if err := s.validate(input, settings); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	task := &domain.ConversionTask{
		ID:          uuid.New(),
		ProjectID:   input.ProjectID,
		Pages:       append([]domain.PageRef(nil), input.Pages...),
		Settings:    settings,
		Status:      domain.TaskPending,
		NotifyEmail: input.NotifyEmail,
		Progress:    domain.TaskProgress{Total: len(input.Pages), Messages: []string{}},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	h := &taskHandle{task: task, settings: settings}
	for i, ref := range input.Pages {
		task.Progress.Pages = append(task.Progress.Pages, domain.PageProgress{PageID: ref.PageID, Index: i + 1, Stage: domain.StageQueued})
		h.pages = append(h.pages, &pageWork{index: i, ref: ref})
	}

	if err := s.repo.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("creating task: %w", err)
	}
	s.mirror(ctx, task)
	h.store = newTaskPersister(s.cfg.PersistTimeout, s.write)

	s.mu.Lock()
	s.handles[task.ID] = h
	s.mu.Unlock()

	s.log.Info().
		Str("task_id", task.ID.String()).
		Int("pages", len(task.Pages)).
		Str("extractor", string(settings.ExtractorMethod)).
		Str("inpaint", string(settings.InpaintMethod)).
		Bool("manual_confirmation", settings.ManualConfirmation).
		Msg("task created")

	snapshot := s.snapshot(h)
	err := s.queue.Submit(ctx, Job{TaskID: task.ID, Phase: "extract", Run: func(ctx context.Context) { s.runExtraction(ctx, h) }})
	if err != nil {
		s.fail(h, &domain.StageError{Stage: domain.StageQueued, Err: err})
		return nil, fmt.Errorf("enqueueing task: %w", err)
	}
	return snapshot, nil
}

func withDefaults(s, d domain.ConversionSettings) domain.ConversionSettings {
	if s.ExtractorMethod == "" {
		s.ExtractorMethod = d.ExtractorMethod
	}
	if s.InpaintMethod == "" {
		s.InpaintMethod = d.InpaintMethod
	}
	if s.TextStyleMode == "" {
		s.TextStyleMode = d.TextStyleMode
	}
	if s.OutputResolution == "" {
		s.OutputResolution = d.OutputResolution
	}
	if s.ImageFormat == "" {
		s.ImageFormat = d.ImageFormat
	}
	if s.MaxDepth == nil && d.MaxDepth != nil {
		depth := *d.MaxDepth
		s.MaxDepth = &depth
	}
	return s
}

// validate rejects settings the enums or the configured backends cannot run.
func (s *conversionService) validate(input *CreateConversionInput, settings domain.ConversionSettings) error {
	if len(input.Pages) == 0 {
		return &domain.SettingsError{Field: "pages", Reason: "at least one page is required"}
	}
	seen := make(map[string]bool, len(input.Pages))
	for _, p := range input.Pages {
		if p.PageID == "" || p.ImageKey == "" {
			return &domain.SettingsError{Field: "pages", Reason: "page_id and image_key are required"}
		}
		if !domain.ValidPageID(p.PageID) {
			return &domain.SettingsError{Field: "pages", Reason: "page_id " + strconv.Quote(p.PageID) + " may only contain letters, digits, '-' and '_'"}
		}
		if seen[p.PageID] {
			return &domain.SettingsError{Field: "pages", Reason: "duplicate page_id " + p.PageID}
		}
		seen[p.PageID] = true
	}
	if err := settings.Validate(); err != nil {
		return err
	}
	if !s.pipeline.Extractor.Supports(settings.ExtractorMethod) {
		return &domain.SettingsError{Field: "extractor_method", Reason: "no backend configured for " + string(settings.ExtractorMethod)}
	}
	if !s.pipeline.Reconstructor.Supports(settings.InpaintMethod) {
		return &domain.SettingsError{Field: "inpaint_method", Reason: "no backend configured for " + string(settings.InpaintMethod)}
	}
	if !s.pipeline.Styles.Supports(settings.TextStyleMode) {
		return &domain.SettingsError{Field: "text_style_mode", Reason: "no backend configured for " + string(settings.TextStyleMode)}
	}
	return nil
}

func (s *conversionService) Get(ctx context.Context, id uuid.UUID) (*domain.ConversionTask, error) {
	if h := s.handle(id); h != nil {
		return s.snapshot(h), nil
	}
	if s.cache != nil {
		task, err := s.cache.Get(ctx, id)
		if err == nil {
			return task, nil
		}
		if !errors.Is(err, port.ErrCacheMiss) {
			s.log.Warn().Err(err).Str("task_id", id.String()).Msg("status mirror read failed")
		}
	}
	return s.repo.GetByID(ctx, id)
}

func (s *conversionService) handle(id uuid.UUID) *taskHandle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.handles[id]
}

func (s *conversionService) snapshot(h *taskHandle) *domain.ConversionTask {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.task.Clone()
}

// update applies fn to the task and queues the result for persistence.
func (s *conversionService) update(h *taskHandle, fn func(t *domain.ConversionTask)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	fn(h.task)
	s.persistLocked(h, false)
}

// saveAnalyses records the page layouts, the only update that rewrites them in storage.
func (s *conversionService) saveAnalyses(h *taskHandle, byPage map[string]*domain.LayoutAnalysis) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.task.Analyses = byPage
	s.persistLocked(h, true)
}

// transition moves the task to another status if the state machine allows it.
func (s *conversionService) transition(h *taskHandle, to domain.TaskStatus, fn func(h *taskHandle)) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return s.transitionLocked(h, to, fn)
}

func (s *conversionService) transitionLocked(h *taskHandle, to domain.TaskStatus, fn func(h *taskHandle)) error {
	from := h.task.Status
	if !domain.CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, from, to)
	}
	h.task.Status = to
	if fn != nil {
		fn(h)
	}
	if to.Terminal() {
		ts := s.now().UTC()
		h.task.CompletedAt = &ts
	}
	s.persistLocked(h, true)

	s.log.Info().
		Str("task_id", h.task.ID.String()).
		Str("from", string(from)).
		Str("to", string(to)).
		Msg("task status changed")

	if to.Terminal() {
		s.finish(h)
	}
	return nil
}

// persistLocked queues a snapshot of the task. full also rewrites the analyses.
func (s *conversionService) persistLocked(h *taskHandle, full bool) {
	h.task.UpdatedAt = s.now().UTC()
	h.store.enqueue(h.task.Clone(), full)
}

// write is the persister's storage step for one snapshot.
func (s *conversionService) write(ctx context.Context, task *domain.ConversionTask, full bool) {
	var err error
	if full {
		err = s.repo.Update(ctx, task)
	} else {
		err = s.repo.UpdateProgress(ctx, task)
	}
	if err != nil {
		s.log.Error().Err(err).Str("task_id", task.ID.String()).Str("status", string(task.Status)).Msg("persisting task")
	}
	s.mirror(ctx, task)
}

// Flush waits until every queued task write has reached storage.
func (s *conversionService) Flush(ctx context.Context) error {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		if s.settled() {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("flushing task state: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

func (s *conversionService) settled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, h := range s.handles {
		if !h.store.idle() {
			return false
		}
	}
	return true
}

func (s *conversionService) mirror(ctx context.Context, task *domain.ConversionTask) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Put(ctx, task); err != nil {
		s.log.Warn().Err(err).Str("task_id", task.ID.String()).Msg("mirroring task status")
	}
}

// finish releases page images, stops the task's writer after its final snapshot,
// notifies the requester, and schedules eviction.
// Called with h.mu held.
func (s *conversionService) finish(h *taskHandle) {
	for _, pw := range h.pages {
		pw.img = nil
	}
	h.session = nil
	h.store.close()

	if h.task.NotifyEmail != "" && s.notifier != nil {
		snapshot := h.task.Clone()
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := s.notifier.NotifyTerminal(ctx, snapshot.NotifyEmail, snapshot); err != nil {
				s.log.Warn().Err(err).Str("task_id", snapshot.ID.String()).Msg("terminal notification failed")
			}
		}()
	}

	if s.cfg.Retention > 0 {
		id, store := h.task.ID, h.store
		time.AfterFunc(s.cfg.Retention, func() {
			// Readers fall back to storage once evicted, so the final write must land first.
			<-store.done
			s.mu.Lock()
			delete(s.handles, id)
			s.mu.Unlock()
		})
	}
}

func (s *conversionService) fail(h *taskHandle, err error) {
	te := domain.NewTaskError(err)
	terr := s.transition(h, domain.TaskFailed, func(h *taskHandle) {
		h.task.Error = te
		addMessage(h.task, "failed: "+err.Error())
	})
	if terr != nil {
		s.log.Error().Err(terr).AnErr("cause", err).Str("task_id", h.task.ID.String()).Msg("could not record failure")
	}
}

func addMessage(t *domain.ConversionTask, msg string) {
	t.Progress.Messages = append(t.Progress.Messages, msg)
	if n := len(t.Progress.Messages); n > domain.MaxProgressMessages {
		t.Progress.Messages = append([]string(nil), t.Progress.Messages[n-domain.MaxProgressMessages:]...)
	}
}

func (s *conversionService) setStage(h *taskHandle, index int, stage domain.Stage) {
	s.update(h, func(t *domain.ConversionTask) {
		t.Progress.Pages[index].Stage = stage
	})
}

func (s *conversionService) markPageFailed(h *taskHandle, index int, err error) {
	s.update(h, func(t *domain.ConversionTask) {
		t.Progress.Pages[index].Failed = true
		t.Progress.Failed++
		addMessage(t, fmt.Sprintf("page %d failed: %v", index+1, err))
	})
}
