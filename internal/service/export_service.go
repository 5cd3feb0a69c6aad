package service

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/noah-isme/manuscript-review/internal/dto"
	"github.com/noah-isme/manuscript-review/internal/models"
	appErrors "github.com/noah-isme/manuscript-review/pkg/errors"
	"github.com/noah-isme/manuscript-review/pkg/export"
)

type reportRenderer interface {
	Render(data export.Dataset, report export.Report) ([]byte, error)
}

var historyHeaders = []string{"#", "Status", "Label", "Recorded At", "Notes"}

// HistoryExportService renders a document's status history as a downloadable report.
type HistoryExportService struct {
	workflow *StatusWorkflow
	csv      reportRenderer
	pdf      reportRenderer
	now      func() time.Time
}

// NewHistoryExportService constructs the exporter. Nil renderers fall back to
// the package defaults.
func NewHistoryExportService(workflow *StatusWorkflow, csv, pdf reportRenderer) *HistoryExportService {
	if workflow == nil {
		workflow = NewStatusWorkflow()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = &export.PDFExporter{Widths: map[string]float64{"#": 12, "Status": 34, "Label": 36, "Recorded At": 48}}
	}
	return &HistoryExportService{workflow: workflow, csv: csv, pdf: pdf, now: time.Now}
}

// Render builds the report for doc and its history, most recent entry first.
func (s *HistoryExportService) Render(doc *models.Document, history []models.StatusHistoryEntry, format export.Format) (*dto.HistoryExport, error) {
	if doc == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
	}

	data := export.Dataset{Headers: historyHeaders, Rows: make([]map[string]string, 0, len(history))}
	for i, entry := range history {
		data.Rows = append(data.Rows, map[string]string{
			"#":           strconv.Itoa(len(history) - i),
			"Status":      string(entry.Status),
			"Label":       s.workflow.DisplayInfo(entry.Status).Label,
			"Recorded At": entry.Timestamp.UTC().Format(time.RFC3339),
			"Notes":       entry.NoteText(),
		})
	}

	report := export.Report{
		Title: "Status history: " + doc.Title,
		Meta: []export.MetaLine{
			{Label: "Document", Value: doc.ID},
			{Label: "File", Value: doc.FileName},
			{Label: "Authors", Value: strings.Join(doc.Authors, ", ")},
			{Label: "Current status", Value: s.workflow.DisplayInfo(doc.Status).Label},
			{Label: "Version", Value: strconv.Itoa(doc.Version)},
			{Label: "Generated", Value: s.now().UTC().Format(time.RFC3339)},
		},
	}

	renderer := s.csv
	if format == export.FormatPDF {
		renderer = s.pdf
	}
	body, err := renderer.Render(data, report)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render history report")
	}
	return &dto.HistoryExport{
		FileName:    fmt.Sprintf("%s-history.%s", doc.ID, format),
		ContentType: format.ContentType(),
		Content:     body,
	}, nil
}
