package models

import "time"

// StatusHistoryEntry is an append-only audit record of one status assignment.
type StatusHistoryEntry struct {
	ID         int64          `db:"id" json:"id"`
	DocumentID string         `db:"document_id" json:"documentId"`
	Status     DocumentStatus `db:"status" json:"status"`
	Timestamp  time.Time      `db:"recorded_at" json:"timestamp"`
	Notes      *string        `db:"notes" json:"notes,omitempty"`
}

// NoteText returns the notes or an empty string.
func (e StatusHistoryEntry) NoteText() string {
	if e.Notes == nil {
		return ""
	}
	return *e.Notes
}
