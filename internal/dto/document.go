package dto

import (
	"time"

	"github.com/noah-isme/manuscript-review/internal/models"
)

// DocumentMetadata is the user supplied description of an upload.
type DocumentMetadata struct {
	Title    string   `json:"title" validate:"required,min=3"`
	Authors  []string `json:"authors" validate:"required,min=1,dive,required"`
	Abstract string   `json:"abstract"`
	Keywords []string `json:"keywords"`
}

// FileUpload is a candidate file handed to the validation collaborator.
type FileUpload struct {
	Name        string
	ContentType string
	Content     []byte
}

// UpdateDocumentRequest patches document metadata. Nil fields are left untouched.
type UpdateDocumentRequest struct {
	Title    *string  `json:"title" validate:"omitempty,min=3"`
	Authors  []string `json:"authors" validate:"omitempty,min=1,dive,required"`
	Abstract *string  `json:"abstract"`
	Keywords []string `json:"keywords"`
}

// DocumentQuery filters document listings.
type DocumentQuery struct {
	Status models.DocumentStatus
}

// ChangeStatusRequest asks for a workflow transition.
type ChangeStatusRequest struct {
	Status models.DocumentStatus `json:"status" binding:"required"`
	Notes  string                `json:"notes"`
}

// StatusChangeResult reports an applied transition.
type StatusChangeResult struct {
	DocumentID     string                    `json:"documentId"`
	PreviousStatus models.DocumentStatus     `json:"previousStatus"`
	NewStatus      models.DocumentStatus     `json:"newStatus"`
	Timestamp      time.Time                 `json:"timestamp"`
	Entry          models.StatusHistoryEntry `json:"entry"`
}

// StatusDetail is the full status view of one document.
type StatusDetail struct {
	DocumentID       string                      `json:"documentId"`
	CurrentStatus    models.DocumentStatus       `json:"currentStatus"`
	LastUpdated      time.Time                   `json:"lastUpdated"`
	History          []models.StatusHistoryEntry `json:"history"`
	ValidTransitions []models.DocumentStatus     `json:"validTransitions"`
	Display          models.StatusDisplay        `json:"display"`
}

// StatusSummary is one row of the status overview.
type StatusSummary struct {
	DocumentID    string                      `json:"documentId"`
	Title         string                      `json:"title"`
	FileName      string                      `json:"fileName"`
	CurrentStatus models.DocumentStatus       `json:"currentStatus"`
	Display       models.StatusDisplay        `json:"display"`
	UploadDate    time.Time                   `json:"uploadDate"`
	LastModified  time.Time                   `json:"lastModified"`
	SyncNeeded    bool                        `json:"syncNeeded"`
	History       []models.StatusHistoryEntry `json:"history"`
	HistoryCount  int                         `json:"historyCount"`
}

// ConnectivityRequest reports an externally observed connectivity change.
type ConnectivityRequest struct {
	Online *bool `json:"online" binding:"required"`
}

// SyncTriggerResponse acknowledges a background sync request.
type SyncTriggerResponse struct {
	Queued       bool                `json:"queued"`
	Availability models.Availability `json:"availability"`
	InProgress   bool                `json:"inProgress"`
}

// HistoryExport is a rendered status history report.
type HistoryExport struct {
	FileName    string
	ContentType string
	Content     []byte
}

// WorkflowStatus describes one workflow state for clients rendering controls.
type WorkflowStatus struct {
	Status           models.DocumentStatus   `json:"status"`
	Display          models.StatusDisplay    `json:"display"`
	ValidTransitions []models.DocumentStatus `json:"validTransitions"`
	Terminal         bool                    `json:"terminal"`
}

// ConnectivityStatus is the sync view returned by the connectivity endpoint.
type ConnectivityStatus struct {
	Availability models.Availability        `json:"availability"`
	InProgress   bool                       `json:"inProgress"`
	Metrics      models.SyncMetricsSnapshot `json:"metrics"`
}
