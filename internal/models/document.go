package models

import (
	"time"

	"github.com/lib/pq"
)

// DocumentStatus captures the editorial workflow state of a document.
type DocumentStatus string

const (
	DocumentStatusPending        DocumentStatus = "pending"
	DocumentStatusInReview       DocumentStatus = "in_review"
	DocumentStatusReviewComplete DocumentStatus = "review_complete"
	DocumentStatusAccepted       DocumentStatus = "accepted"
	DocumentStatusRejected       DocumentStatus = "rejected"
)

// FileType is the normalised type tag of an uploaded file.
type FileType string

const (
	FileTypePDF     FileType = "pdf"
	FileTypeDOCX    FileType = "docx"
	FileTypeTXT     FileType = "txt"
	FileTypeUnknown FileType = "unknown"
)

// Document is the persisted record of one submitted manuscript.
type Document struct {
	ID           string         `db:"id" json:"id"`
	Title        string         `db:"title" json:"title"`
	Authors      pq.StringArray `db:"authors" json:"authors"`
	Abstract     string         `db:"abstract" json:"abstract"`
	Keywords     pq.StringArray `db:"keywords" json:"keywords"`
	FileName     string         `db:"file_name" json:"fileName"`
	FileType     FileType       `db:"file_type" json:"fileType"`
	FileSize     int64          `db:"file_size" json:"fileSize"`
	FileContent  string         `db:"file_content" json:"fileContent,omitempty"`
	Status       DocumentStatus `db:"status" json:"status"`
	UploadDate   time.Time      `db:"upload_date" json:"uploadDate"`
	LastModified time.Time      `db:"last_modified" json:"lastModified"`
	Version      int            `db:"version" json:"version"`
	SyncNeeded   *bool          `db:"sync_needed" json:"syncNeeded,omitempty"`
	LastSynced   *time.Time     `db:"last_synced" json:"lastSynced,omitempty"`
}

// NeedsSync reports whether the document holds local changes the remote
// authority has not seen. A document whose flag was never set is treated as
// pending reconciliation while it is still in the initial status.
func (d *Document) NeedsSync() bool {
	if d == nil {
		return false
	}
	if d.SyncNeeded != nil {
		return *d.SyncNeeded
	}
	return d.Status == DocumentStatusPending
}

// MarkSyncNeeded flags the document as carrying an unreconciled change.
func (d *Document) MarkSyncNeeded() {
	needed := true
	d.SyncNeeded = &needed
}

// StatusDisplay is the presentation metadata of a status.
type StatusDisplay struct {
	Status  DocumentStatus `json:"status"`
	Label   string         `json:"label"`
	Color   string         `json:"color"`
	BgColor string         `json:"bgColor"`
}

// FileValidation is the verdict of the validation collaborator for one file.
type FileValidation struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors,omitempty"`
	FileType FileType `json:"fileType"`
	FileSize int64    `json:"fileSize"`
	FileName string   `json:"fileName"`
	MIMEType string   `json:"mimeType"`
}
