package service

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/manuscript-review/internal/models"
	appErrors "github.com/noah-isme/manuscript-review/pkg/errors"
	"github.com/noah-isme/manuscript-review/pkg/export"
)

type failingRenderer struct{}

func (failingRenderer) Render(export.Dataset, export.Report) ([]byte, error) {
	return nil, errors.New("font missing")
}

func exportFixture() (*models.Document, []models.StatusHistoryEntry) {
	note := "assigned to reviewer"
	doc := &models.Document{
		ID:       "doc-1",
		Title:    "Graph Sparsification",
		Authors:  pq.StringArray{"Ada Lovelace", "Alan Turing"},
		FileName: "paper.pdf",
		Status:   models.DocumentStatusInReview,
		Version:  2,
	}
	history := []models.StatusHistoryEntry{
		{ID: 2, DocumentID: "doc-1", Status: models.DocumentStatusInReview, Timestamp: time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC), Notes: &note},
		{ID: 1, DocumentID: "doc-1", Status: models.DocumentStatusPending, Timestamp: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)},
	}
	return doc, history
}

func TestHistoryExportCSV(t *testing.T) {
	svc := NewHistoryExportService(nil, nil, nil)
	doc, history := exportFixture()

	out, err := svc.Render(doc, history, export.FormatCSV)
	require.NoError(t, err)

	assert.Equal(t, "doc-1-history.csv", out.FileName)
	assert.Equal(t, export.FormatCSV.ContentType(), out.ContentType)
	body := string(out.Content)
	assert.Contains(t, body, "# Document: doc-1")
	assert.Contains(t, body, "# Authors: Ada Lovelace, Alan Turing")
	assert.Contains(t, body, "# Current status: In Review")
	assert.Contains(t, body, "2,in_review,In Review,2024-03-02T10:00:00Z,assigned to reviewer")
	assert.Contains(t, body, "1,pending,Pending,2024-03-01T09:00:00Z,")
	assert.Less(t, strings.Index(body, "in_review,In Review"), strings.Index(body, "pending,Pending"))
}

func TestHistoryExportPDF(t *testing.T) {
	svc := NewHistoryExportService(nil, nil, nil)
	doc, history := exportFixture()

	out, err := svc.Render(doc, history, export.FormatPDF)
	require.NoError(t, err)

	assert.Equal(t, "doc-1-history.pdf", out.FileName)
	assert.Equal(t, "application/pdf", out.ContentType)
	assert.True(t, strings.HasPrefix(string(out.Content), "%PDF"))
}

func TestHistoryExportErrors(t *testing.T) {
	svc := NewHistoryExportService(nil, failingRenderer{}, nil)
	doc, history := exportFixture()

	_, err := svc.Render(nil, history, export.FormatCSV)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	_, err = svc.Render(doc, history, export.FormatCSV)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
}
