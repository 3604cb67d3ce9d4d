package handler

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"bananaslides/internal/csvexport"
	"bananaslides/internal/domain"
	"bananaslides/internal/service"
)

// ConversionHandler handles conversion task endpoints.
type ConversionHandler struct {
	conversionService service.ConversionService
}

// NewConversionHandler creates a new ConversionHandler.
func NewConversionHandler(conversionService service.ConversionService) *ConversionHandler {
	return &ConversionHandler{conversionService: conversionService}
}

// Create handles POST /api/v1/conversions
// @Summary Create a conversion task
// @Description Queue page images for conversion into editable slides. Omitted settings take the server defaults.
// @Tags conversions
// @Accept json
// @Produce json
// @Param request body CreateConversionRequest true "Pages and conversion settings"
// @Success 202 {object} APIResponse{data=domain.ConversionTask} "Task queued"
// @Failure 400 {object} APIResponse "Invalid request or settings"
// @Router /conversions [post]
func (h *ConversionHandler) Create(c *gin.Context) {
	var req CreateConversionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "pages is required and notify_email must be a valid address")
		return
	}

	task, err := h.conversionService.Create(c.Request.Context(), &service.CreateConversionInput{
		ProjectID:   req.ProjectID,
		Pages:       req.Pages,
		Settings:    req.Settings,
		NotifyEmail: req.NotifyEmail,
	})
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondAccepted(c, task)
}

// GetByID handles GET /api/v1/conversions/:id
// @Summary Get a conversion task
// @Description Get the status, progress, warnings and result reference of a task
// @Tags conversions
// @Produce json
// @Param id path string true "Task ID (UUID)"
// @Success 200 {object} APIResponse{data=domain.ConversionTask} "Task details"
// @Failure 400 {object} APIResponse "Invalid task ID"
// @Failure 404 {object} APIResponse "Task not found"
// @Router /conversions/{id} [get]
func (h *ConversionHandler) GetByID(c *gin.Context) {
	id, ok := parseTaskID(c)
	if !ok {
		return
	}

	task, err := h.conversionService.Get(c.Request.Context(), id)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondOK(c, task)
}

// Confirm handles POST /api/v1/conversions/:id/confirm
// The body is optional; without it the verification session's current map is used.
// @Summary Confirm verification
// @Description Resume a task paused for verification, optionally replacing the erase sets
// @Tags verification
// @Accept json
// @Produce json
// @Param id path string true "Task ID (UUID)"
// @Param request body ConfirmRequest false "Erase sets by page id"
// @Success 202 {object} APIResponse{data=domain.ConversionTask} "Rendering resumed"
// @Failure 400 {object} APIResponse "Invalid request or unknown element"
// @Failure 404 {object} APIResponse "Task not found"
// @Failure 409 {object} APIResponse "Task is not awaiting verification"
// @Router /conversions/{id}/confirm [post]
func (h *ConversionHandler) Confirm(c *gin.Context) {
	id, ok := parseTaskID(c)
	if !ok {
		return
	}

	var req ConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "pages must map page ids to element id lists")
		return
	}

	task, err := h.conversionService.Confirm(c.Request.Context(), id, req.Pages)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondAccepted(c, task)
}

// Verification handles GET /api/v1/conversions/:id/verification
// @Summary Get the verification session
// @Description Get the keep/erase map, per-page counts and materialized erase sets
// @Tags verification
// @Produce json
// @Param id path string true "Task ID (UUID)"
// @Success 200 {object} APIResponse{data=service.VerificationView} "Verification state"
// @Failure 404 {object} APIResponse "Task not found"
// @Failure 409 {object} APIResponse "No open verification session"
// @Router /conversions/{id}/verification [get]
func (h *ConversionHandler) Verification(c *gin.Context) {
	id, ok := parseTaskID(c)
	if !ok {
		return
	}

	view, err := h.conversionService.Verification(c.Request.Context(), id)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondOK(c, view)
}

// Toggle handles POST /api/v1/conversions/:id/verification/toggle
// @Summary Toggle one element
// @Description Flip an element between keep and erase
// @Tags verification
// @Accept json
// @Produce json
// @Param id path string true "Task ID (UUID)"
// @Param request body ToggleRequest true "Element to toggle"
// @Success 200 {object} APIResponse{data=service.VerificationView} "Updated verification state"
// @Failure 400 {object} APIResponse "Invalid request or unknown element"
// @Failure 409 {object} APIResponse "No open verification session"
// @Router /conversions/{id}/verification/toggle [post]
func (h *ConversionHandler) Toggle(c *gin.Context) {
	id, ok := parseTaskID(c)
	if !ok {
		return
	}

	var req ToggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "page_id and element_id are required")
		return
	}

	view, err := h.conversionService.Toggle(c.Request.Context(), id, req.PageID, req.ElementID)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondOK(c, view)
}

// BulkSet handles POST /api/v1/conversions/:id/verification/bulk
// @Summary Set every element of a page
// @Description Mark every element of one page as keep or erase
// @Tags verification
// @Accept json
// @Produce json
// @Param id path string true "Task ID (UUID)"
// @Param request body BulkSetRequest true "Page and status"
// @Success 200 {object} APIResponse{data=service.VerificationView} "Updated verification state"
// @Failure 400 {object} APIResponse "Invalid request or status"
// @Failure 409 {object} APIResponse "No open verification session"
// @Router /conversions/{id}/verification/bulk [post]
func (h *ConversionHandler) BulkSet(c *gin.Context) {
	id, ok := parseTaskID(c)
	if !ok {
		return
	}

	var req BulkSetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "page_id and status are required")
		return
	}
	status := domain.ElementStatus(req.Status)
	if !domain.ValidElementStatuses[status] {
		RespondError(c, http.StatusBadRequest, "INVALID_STATUS", "status must be keep or erase")
		return
	}

	view, err := h.conversionService.BulkSet(c.Request.Context(), id, req.PageID, status)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondOK(c, view)
}

// Reset handles POST /api/v1/conversions/:id/verification/reset
// @Summary Reset a page to its baseline
// @Description Restore one page's keep/erase map to the extractor's recommendation
// @Tags verification
// @Accept json
// @Produce json
// @Param id path string true "Task ID (UUID)"
// @Param request body ResetRequest true "Page to reset"
// @Success 200 {object} APIResponse{data=service.VerificationView} "Updated verification state"
// @Failure 400 {object} APIResponse "Invalid request"
// @Failure 409 {object} APIResponse "No open verification session"
// @Router /conversions/{id}/verification/reset [post]
func (h *ConversionHandler) Reset(c *gin.Context) {
	id, ok := parseTaskID(c)
	if !ok {
		return
	}

	var req ResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "page_id is required")
		return
	}

	view, err := h.conversionService.Reset(c.Request.Context(), id, req.PageID)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondOK(c, view)
}

// DownloadArtifact handles GET /api/v1/conversions/:id/artifact
// @Summary Download a task's bundle
// @Description Download the zip artifact of a completed task
// @Tags artifacts
// @Produce application/zip
// @Param id path string true "Task ID (UUID)"
// @Success 200 {file} file "Slide bundle"
// @Failure 400 {object} APIResponse "Invalid task ID"
// @Failure 404 {object} APIResponse "Task not found or not completed"
// @Router /conversions/{id}/artifact [get]
func (h *ConversionHandler) DownloadArtifact(c *gin.Context) {
	id, ok := parseTaskID(c)
	if !ok {
		return
	}

	task, err := h.conversionService.Get(c.Request.Context(), id)
	if err != nil {
		HandleError(c, err)
		return
	}
	if task.Status != domain.TaskCompleted {
		HandleError(c, domain.ErrArtifactNotFound)
		return
	}

	data, err := h.conversionService.Artifact(c.Request.Context(), task.ResultArtifactRef)
	if err != nil {
		HandleError(c, err)
		return
	}

	at := time.Now()
	if task.CompletedAt != nil {
		at = *task.CompletedAt
	}
	c.Header("Content-Disposition", `attachment; filename="`+csvexport.BuildFilename(task.ProjectID, at)+`"`)
	c.Data(http.StatusOK, "application/zip", data)
}

// Artifact handles GET /api/v1/artifacts/*ref
// With ?redirect=1 the client is sent to a presigned storage URL instead.
// @Summary Download an artifact by reference
// @Description Download a bundle by the result_artifact_ref of its task
// @Tags artifacts
// @Produce application/zip
// @Param ref path string true "Artifact reference"
// @Param redirect query string false "1 to redirect to a presigned URL"
// @Success 200 {file} file "Slide bundle"
// @Success 302 "Redirect to presigned URL"
// @Failure 404 {object} APIResponse "Artifact not found"
// @Router /artifacts/{ref} [get]
func (h *ConversionHandler) Artifact(c *gin.Context) {
	ref := strings.TrimPrefix(c.Param("ref"), "/")

	if c.Query("redirect") == "1" {
		url, err := h.conversionService.ArtifactURL(c.Request.Context(), ref)
		if err != nil {
			HandleError(c, err)
			return
		}
		c.Redirect(http.StatusFound, url)
		return
	}

	data, err := h.conversionService.Artifact(c.Request.Context(), ref)
	if err != nil {
		HandleError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/zip", data)
}

func parseTaskID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_ID", "invalid task ID")
		return uuid.Nil, false
	}
	return id, true
}
