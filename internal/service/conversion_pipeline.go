package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"sync"

	"bananaslides/internal/assembler"
	"bananaslides/internal/domain"
	"bananaslides/internal/imaging"
	"bananaslides/internal/packager"
	"bananaslides/internal/port"
	"bananaslides/internal/verification"
)

// ArtifactKey is the object key, and the public reference, of a task's bundle.
func ArtifactKey(taskID fmt.Stringer) string {
	return "artifacts/" + taskID.String() + ".zip"
}

// runExtraction is phase one: load and extract every page, then either pause for
// verification or continue straight into rendering with the baseline erase sets.
func (s *conversionService) runExtraction(ctx context.Context, h *taskHandle) {
	if err := s.transition(h, domain.TaskProcessing, func(h *taskHandle) {
		addMessage(h.task, fmt.Sprintf("extracting %d pages", len(h.pages)))
	}); err != nil {
		s.log.Error().Err(err).Str("task_id", h.task.ID.String()).Msg("starting extraction")
		return
	}

	errs := s.forEachPage(ctx, h, func(ctx context.Context, pw *pageWork) error {
		s.setStage(h, pw.index, domain.StageLoad)
		img, err := s.loadPage(ctx, pw.ref)
		if err != nil {
			return &domain.StageError{Stage: domain.StageLoad, Page: pw.index + 1, PageID: pw.ref.PageID, Err: err}
		}

		s.setStage(h, pw.index, domain.StageExtract)
		analysis, err := s.pipeline.Extractor.Extract(ctx, pw.ref.PageID, img, h.settings.ExtractorMethod, h.settings.RecursionDepth())
		if err != nil {
			return &domain.StageError{Stage: domain.StageExtract, Page: pw.index + 1, PageID: pw.ref.PageID, Err: err}
		}
		pw.img, pw.analysis = img, analysis

		s.update(h, func(t *domain.ConversionTask) {
			t.Progress.Extracted++
			t.Progress.AddWarnings(analysis.Warnings...)
			addMessage(t, fmt.Sprintf("page %d extracted: %d elements", pw.index+1, len(analysis.Order())))
		})
		return nil
	})
	if err := firstFailure(errs); err != nil {
		s.fail(h, err)
		return
	}

	analyses := make([]*domain.LayoutAnalysis, len(h.pages))
	byPage := make(map[string]*domain.LayoutAnalysis, len(h.pages))
	for i, pw := range h.pages {
		analyses[i] = pw.analysis
		byPage[pw.ref.PageID] = pw.analysis
	}

	if h.settings.ManualConfirmation {
		err := s.transition(h, domain.TaskAwaitingVerification, func(h *taskHandle) {
			h.session = verification.Init(analyses)
			h.task.Analyses = byPage
			for i := range h.task.Progress.Pages {
				h.task.Progress.Pages[i].Stage = domain.StageVerify
			}
			addMessage(h.task, "awaiting verification")
		})
		if err != nil {
			s.log.Error().Err(err).Str("task_id", h.task.ID.String()).Msg("pausing for verification")
		}
		return
	}

	s.saveAnalyses(h, byPage)
	erase := make(map[string][]string, len(analyses))
	for _, a := range analyses {
		erase[a.PageID] = append([]string(nil), a.BaselineEraseIDs...)
	}
	s.runRender(ctx, h, erase)
}

// runRender is phase two: reconstruct and assemble every page, then package
// and upload one artifact.
func (s *conversionService) runRender(ctx context.Context, h *taskHandle, erase map[string][]string) {
	settings := h.settings
	results := make([]packager.Page, len(h.pages))

	errs := s.forEachPage(ctx, h, func(ctx context.Context, pw *pageWork) error {
		pageID := pw.ref.PageID
		ids := erase[pageID]
		index := pw.analysis.Index()
		regions := make([]domain.BBox, 0, len(ids))
		for _, id := range ids {
			el, ok := index[id]
			if !ok {
				return &domain.StageError{Stage: domain.StageReconstruct, Page: pw.index + 1, PageID: pageID,
					Err: fmt.Errorf("%w: %s", domain.ErrInvalidElement, id)}
			}
			regions = append(regions, el.BBox)
		}

		s.setStage(h, pw.index, domain.StageReconstruct)
		bg, err := s.pipeline.Reconstructor.Reconstruct(ctx, pw.img, regions, settings.InpaintMethod)
		if err != nil {
			return &domain.StageError{Stage: domain.StageReconstruct, Page: pw.index + 1, PageID: pageID, Err: err}
		}

		s.setStage(h, pw.index, domain.StageAssemble)
		res, err := s.pipeline.Assembler.Assemble(ctx, assembler.Input{
			Page:          pw.img,
			Analysis:      pw.analysis,
			EraseIDs:      ids,
			Background:    bg,
			BackgroundRef: packager.BackgroundPath(pw.index, pageID, settings.ImageFormat),
			StyleMode:     settings.TextStyleMode,
		})
		if err != nil {
			return &domain.StageError{Stage: domain.StageAssemble, Page: pw.index + 1, PageID: pageID, Err: err}
		}
		results[pw.index] = packager.Page{Slide: res.Slide, Background: res.Background}

		s.update(h, func(t *domain.ConversionTask) {
			t.Progress.Completed++
			t.Progress.Pages[pw.index].Stage = domain.StageDone
			t.Progress.AddWarnings(res.Warnings...)
			addMessage(t, fmt.Sprintf("page %d assembled: %d objects", pw.index+1, len(res.Slide.Objects)))
		})
		return nil
	})
	if err := firstFailure(errs); err != nil {
		s.fail(h, err)
		return
	}

	var progress domain.TaskProgress
	s.update(h, func(t *domain.ConversionTask) {
		addMessage(t, "packaging artifact")
		progress.WarningCount = t.Progress.WarningCount
		progress.Warnings = append([]domain.Warning(nil), t.Progress.Warnings...)
	})
	ref, err := s.packageAndUpload(ctx, h, results, progress)
	if err != nil {
		s.fail(h, &domain.StageError{Stage: domain.StagePackage, Err: err})
		return
	}

	if err := s.transition(h, domain.TaskCompleted, func(h *taskHandle) {
		h.task.ResultArtifactRef = ref
		addMessage(h.task, "completed")
	}); err != nil {
		s.log.Error().Err(err).Str("task_id", h.task.ID.String()).Msg("completing task")
	}
}

func (s *conversionService) packageAndUpload(ctx context.Context, h *taskHandle, pages []packager.Page, progress domain.TaskProgress) (string, error) {
	data, err := packager.Package(pages, packager.Options{
		TaskID:       h.task.ID.String(),
		ProjectID:    h.task.ProjectID,
		Resolution:   h.settings.OutputResolution,
		Format:       h.settings.ImageFormat,
		CreatedAt:    s.now(),
		WarningCount: progress.WarningCount,
		Warnings:     progress.Warnings,
	})
	if err != nil {
		return "", err
	}

	key := ArtifactKey(h.task.ID)
	_, err = s.storage.Upload(ctx, port.UploadInput{
		Bucket:      s.cfg.ArtifactBucket,
		Key:         key,
		Body:        bytes.NewReader(data),
		ContentType: "application/zip",
		Size:        int64(len(data)),
	})
	if err != nil {
		return "", fmt.Errorf("%w: uploading artifact: %w", domain.ErrPackagingFailed, err)
	}
	return key, nil
}

func (s *conversionService) loadPage(ctx context.Context, ref domain.PageRef) (*image.RGBA, error) {
	data, err := s.storage.Download(ctx, s.cfg.PageBucket, ref.ImageKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrPageLoadFailed, ref.ImageKey, err)
	}
	img, _, err := imaging.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrPageLoadFailed, ref.ImageKey, err)
	}
	return img, nil
}

// forEachPage runs fn for every page with at most PageConcurrency in flight.
// The returned slice holds each page's error by index.
func (s *conversionService) forEachPage(ctx context.Context, h *taskHandle, fn func(ctx context.Context, pw *pageWork) error) []error {
	errs := make([]error, len(h.pages))
	sem := make(chan struct{}, s.cfg.PageConcurrency)
	var wg sync.WaitGroup

	for _, pw := range h.pages {
		sem <- struct{}{} // acquire
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }() // release

			if err := fn(ctx, pw); err != nil {
				errs[pw.index] = err
				s.markPageFailed(h, pw.index, err)
			}
		}()
	}
	wg.Wait()
	return errs
}

// firstFailure returns the error of the lowest-numbered failing page.
func firstFailure(errs []error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
