package service

import (
	"errors"
	"fmt"
	"mime"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/manuscript-review/internal/dto"
	"github.com/noah-isme/manuscript-review/internal/models"
	appErrors "github.com/noah-isme/manuscript-review/pkg/errors"
)

// DefaultMaxFileSize is the upload limit when none is configured.
const DefaultMaxFileSize int64 = 10 * 1024 * 1024

var fileTypesByMIME = map[string]models.FileType{
	"application/pdf": models.FileTypePDF,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": models.FileTypeDOCX,
	"text/plain": models.FileTypeTXT,
}

// ValidationService checks candidate uploads before they reach the record store.
type ValidationService struct {
	validate    *validator.Validate
	maxFileSize int64
	allowed     map[string]models.FileType
}

// NewValidationService constructs the service. allowedMIMEs narrows the
// supported types; an empty list accepts every supported type.
func NewValidationService(validate *validator.Validate, maxFileSize int64, allowedMIMEs []string) *ValidationService {
	if validate == nil {
		validate = validator.New()
	}
	if maxFileSize <= 0 {
		maxFileSize = DefaultMaxFileSize
	}
	allowed := make(map[string]models.FileType, len(fileTypesByMIME))
	if len(allowedMIMEs) == 0 {
		for k, v := range fileTypesByMIME {
			allowed[k] = v
		}
	} else {
		for _, raw := range allowedMIMEs {
			key := normaliseMIME(raw)
			if fileType, ok := fileTypesByMIME[key]; ok {
				allowed[key] = fileType
			}
		}
	}
	return &ValidationService{validate: validate, maxFileSize: maxFileSize, allowed: allowed}
}

// ValidateFile returns the verdict for file. The declared content type wins;
// when it is missing or generic the type is sniffed from the content.
func (s *ValidationService) ValidateFile(file dto.FileUpload) models.FileValidation {
	size := int64(len(file.Content))
	mimeType := normaliseMIME(file.ContentType)
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = normaliseMIME(mimetype.Detect(file.Content).String())
	}

	result := models.FileValidation{
		FileType: models.FileTypeUnknown,
		FileSize: size,
		FileName: file.Name,
		MIMEType: mimeType,
	}
	if fileType, ok := s.allowed[mimeType]; ok {
		result.FileType = fileType
	} else {
		result.Errors = append(result.Errors, "file type not allowed, use PDF, DOCX or TXT")
	}
	if size > s.maxFileSize {
		result.Errors = append(result.Errors, fmt.Sprintf("file exceeds %s (size: %s)", FormatFileSize(s.maxFileSize), FormatFileSize(size)))
	}
	if file.Name == "" || strings.Contains(file.Name, "..") || strings.Contains(file.Name, "/") {
		result.Errors = append(result.Errors, "invalid file name")
	}
	result.Valid = len(result.Errors) == 0
	return result
}

// ValidateMetadata checks the document description.
func (s *ValidationService) ValidateMetadata(meta dto.DocumentMetadata) error {
	meta.Title = strings.TrimSpace(meta.Title)
	if err := s.validate.Struct(meta); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, metadataMessage(err))
	}
	return nil
}

// ValidateUpdate checks a metadata patch.
func (s *ValidationService) ValidateUpdate(req dto.UpdateDocumentRequest) error {
	if req.Title != nil {
		trimmed := strings.TrimSpace(*req.Title)
		req.Title = &trimmed
	}
	if err := s.validate.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, metadataMessage(err))
	}
	return nil
}

func metadataMessage(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return "invalid document metadata"
	}
	switch fieldErrs[0].Field() {
	case "Title":
		return "title must be at least 3 characters"
	case "Authors":
		return "at least one author is required"
	default:
		return "invalid document metadata"
	}
}

func normaliseMIME(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(raw)
	if err != nil {
		return strings.ToLower(raw)
	}
	return mediaType
}

// FormatFileSize renders a byte count for messages.
func FormatFileSize(bytes int64) string {
	switch {
	case bytes < 1024:
		return fmt.Sprintf("%d B", bytes)
	case bytes < 1024*1024:
		return fmt.Sprintf("%.1f KB", float64(bytes)/1024)
	default:
		return fmt.Sprintf("%.1f MB", float64(bytes)/(1024*1024))
	}
}
