package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func historyDataset() Dataset {
	return Dataset{
		Headers: []string{"Timestamp", "Status", "Notes"},
		Rows: []map[string]string{
			{"Timestamp": "2024-05-02T10:00:00Z", "Status": "in_review", "Notes": "assigned, round 1"},
			{"Timestamp": "2024-05-01T09:00:00Z", "Status": "pending", "Notes": "document uploaded"},
		},
	}
}

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(historyDataset(), Report{
		Meta: []MetaLine{{Label: "Document", Value: "Study A"}},
	})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "# Document: Study A", lines[0])
	assert.Equal(t, "Timestamp,Status,Notes", lines[1])
	assert.Equal(t, `2024-05-02T10:00:00Z,in_review,"assigned, round 1"`, lines[2])
}

func TestCSVExporterRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{}, Report{})
	require.Error(t, err)
}

func TestPDFExporterRender(t *testing.T) {
	exporter := NewPDFExporter()
	exporter.Widths = map[string]float64{"Status": 40}
	out, err := exporter.Render(historyDataset(), Report{Title: "Status history", Meta: []MetaLine{{Label: "Document", Value: "Revisión"}}})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestPDFColumnWidths(t *testing.T) {
	exporter := &PDFExporter{Widths: map[string]float64{"Status": 40}}
	widths := exporter.columnWidths([]string{"Timestamp", "Status", "Notes"})
	assert.Equal(t, []float64{75, 40, 75}, widths)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	f, err = ParseFormat(" PDF ")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", f.ContentType())

	_, err = ParseFormat("xlsx")
	require.Error(t, err)
}
