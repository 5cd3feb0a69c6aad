package service

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/manuscript-review/internal/dto"
	"github.com/noah-isme/manuscript-review/internal/models"
	appErrors "github.com/noah-isme/manuscript-review/pkg/errors"
)

func TestValidationServiceValidateFile(t *testing.T) {
	svc := NewValidationService(nil, 0, nil)

	cases := []struct {
		name     string
		file     dto.FileUpload
		valid    bool
		fileType models.FileType
		errPart  string
	}{
		{
			name:     "pdf declared",
			file:     dto.FileUpload{Name: "paper.pdf", ContentType: "application/pdf", Content: []byte("%PDF-1.4")},
			valid:    true,
			fileType: models.FileTypePDF,
		},
		{
			name:     "docx declared",
			file:     dto.FileUpload{Name: "paper.docx", ContentType: "application/vnd.openxmlformats-officedocument.wordprocessingml.document", Content: []byte("PK")},
			valid:    true,
			fileType: models.FileTypeDOCX,
		},
		{
			name:     "txt with charset parameter",
			file:     dto.FileUpload{Name: "notes.txt", ContentType: "text/plain; charset=utf-8", Content: []byte("hello")},
			valid:    true,
			fileType: models.FileTypeTXT,
		},
		{
			name:     "sniffed pdf",
			file:     dto.FileUpload{Name: "paper", ContentType: "application/octet-stream", Content: []byte("%PDF-1.7\n1 0 obj\n")},
			valid:    true,
			fileType: models.FileTypePDF,
		},
		{
			name:     "image rejected",
			file:     dto.FileUpload{Name: "cover.png", ContentType: "image/png", Content: []byte{0x89, 'P', 'N', 'G'}},
			fileType: models.FileTypeUnknown,
			errPart:  "file type not allowed",
		},
		{
			name:     "path traversal",
			file:     dto.FileUpload{Name: "../secret.txt", ContentType: "text/plain", Content: []byte("x")},
			fileType: models.FileTypeTXT,
			errPart:  "invalid file name",
		},
		{
			name:     "nested path",
			file:     dto.FileUpload{Name: "dir/file.txt", ContentType: "text/plain", Content: []byte("x")},
			fileType: models.FileTypeTXT,
			errPart:  "invalid file name",
		},
		{
			name:     "empty name",
			file:     dto.FileUpload{ContentType: "text/plain", Content: []byte("x")},
			fileType: models.FileTypeTXT,
			errPart:  "invalid file name",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := svc.ValidateFile(tc.file)
			assert.Equal(t, tc.valid, got.Valid)
			assert.Equal(t, tc.fileType, got.FileType)
			assert.Equal(t, int64(len(tc.file.Content)), got.FileSize)
			if tc.errPart != "" {
				require.NotEmpty(t, got.Errors)
				assert.Contains(t, got.Errors[0], tc.errPart)
			} else {
				assert.Empty(t, got.Errors)
			}
		})
	}
}

func TestValidationServiceRejectsOversizedFile(t *testing.T) {
	svc := NewValidationService(nil, 1024, nil)
	got := svc.ValidateFile(dto.FileUpload{Name: "big.txt", ContentType: "text/plain", Content: bytes.Repeat([]byte("a"), 2048)})
	assert.False(t, got.Valid)
	require.Len(t, got.Errors, 1)
	assert.Contains(t, got.Errors[0], "exceeds 1.0 KB")
}

func TestValidationServiceAllowListNarrowsTypes(t *testing.T) {
	svc := NewValidationService(nil, 0, []string{"application/pdf", "application/zip"})
	assert.True(t, svc.ValidateFile(dto.FileUpload{Name: "a.pdf", ContentType: "application/pdf", Content: []byte("%PDF")}).Valid)
	assert.False(t, svc.ValidateFile(dto.FileUpload{Name: "a.txt", ContentType: "text/plain", Content: []byte("a")}).Valid)
	assert.False(t, svc.ValidateFile(dto.FileUpload{Name: "a.zip", ContentType: "application/zip", Content: []byte("PK")}).Valid)
}

func TestValidationServiceValidateMetadata(t *testing.T) {
	svc := NewValidationService(nil, 0, nil)

	assert.NoError(t, svc.ValidateMetadata(dto.DocumentMetadata{Title: "Study A", Authors: []string{"Ana"}}))

	err := svc.ValidateMetadata(dto.DocumentMetadata{Title: "  ab  ", Authors: []string{"Ana"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	assert.Contains(t, err.Error(), "title must be at least 3 characters")

	err = svc.ValidateMetadata(dto.DocumentMetadata{Title: "Study A"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one author")

	err = svc.ValidateMetadata(dto.DocumentMetadata{Title: "Study A", Authors: []string{""}})
	require.Error(t, err)
}

func TestFormatFileSize(t *testing.T) {
	assert.Equal(t, "512 B", FormatFileSize(512))
	assert.Equal(t, "1.5 KB", FormatFileSize(1536))
	assert.Equal(t, "10.0 MB", FormatFileSize(DefaultMaxFileSize))
}
