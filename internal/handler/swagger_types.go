package handler

import "bananaslides/internal/domain"

// Request bodies of the conversion endpoints. Handlers bind these directly and
// swag reads them for the OpenAPI documentation.

// CreateConversionRequest represents the create conversion request body.
type CreateConversionRequest struct {
	ProjectID   string                    `json:"project_id" example:"q3-review"`
	Pages       []domain.PageRef          `json:"pages" binding:"required,min=1,dive"`
	Settings    domain.ConversionSettings `json:"settings"`
	NotifyEmail string                    `json:"notify_email" binding:"omitempty,email" example:"ops@example.com"`
}

// ConfirmRequest represents the optional confirm body: erase sets by page id.
type ConfirmRequest struct {
	Pages map[string][]string `json:"pages"`
}

// ToggleRequest represents the verification toggle request body.
type ToggleRequest struct {
	PageID    string `json:"page_id" binding:"required" example:"page-1"`
	ElementID string `json:"element_id" binding:"required" example:"e0-text-1f3a9c"`
}

// BulkSetRequest represents the verification bulk-set request body.
type BulkSetRequest struct {
	PageID string `json:"page_id" binding:"required" example:"page-1"`
	Status string `json:"status" binding:"required" enums:"keep,erase" example:"erase"`
}

// ResetRequest represents the verification reset request body.
type ResetRequest struct {
	PageID string `json:"page_id" binding:"required" example:"page-1"`
}
