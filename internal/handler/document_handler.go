package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/manuscript-review/internal/dto"
	"github.com/noah-isme/manuscript-review/internal/models"
	appErrors "github.com/noah-isme/manuscript-review/pkg/errors"
	"github.com/noah-isme/manuscript-review/pkg/response"
)

// multipartOverhead is the room left above the upload limit for form fields
// and multipart framing.
const multipartOverhead = 1 << 20

type documentService interface {
	Upload(ctx context.Context, meta dto.DocumentMetadata, file dto.FileUpload) (*models.Document, error)
	Get(ctx context.Context, id string) (*models.Document, error)
	List(ctx context.Context, query dto.DocumentQuery) ([]models.Document, error)
	UpdateMetadata(ctx context.Context, id string, req dto.UpdateDocumentRequest) (*models.Document, error)
	Delete(ctx context.Context, id string) error
	ChangeStatus(ctx context.Context, id string, status models.DocumentStatus, notes string) (*dto.StatusChangeResult, error)
	GetStatus(ctx context.Context, id string) (*dto.StatusDetail, error)
	History(ctx context.Context, id string) ([]models.StatusHistoryEntry, error)
	ListStatuses(ctx context.Context) ([]dto.StatusSummary, error)
	ExportHistory(ctx context.Context, id, format string) (*dto.HistoryExport, error)
}

// DocumentHandler exposes document and status endpoints.
type DocumentHandler struct {
	service       documentService
	maxUploadSize int64
}

// NewDocumentHandler builds a new handler. Uploads larger than maxUploadSize
// are rejected before they are fully read.
func NewDocumentHandler(service documentService, maxUploadSize int64) *DocumentHandler {
	return &DocumentHandler{service: service, maxUploadSize: maxUploadSize}
}

// Upload godoc
// @Summary Upload a document for review
// @Tags Documents
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Manuscript (PDF, DOCX or TXT)"
// @Param title formData string false "Title (defaults to the file name)"
// @Param authors formData []string false "Authors"
// @Param abstract formData string false "Abstract"
// @Param keywords formData []string false "Keywords"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /documents [post]
func (h *DocumentHandler) Upload(c *gin.Context) {
	if h.maxUploadSize > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadSize+multipartOverhead)
	}
	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(c, h.tooLarge())
			return
		}
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "file is required"))
		return
	}
	if h.maxUploadSize > 0 && header.Size > h.maxUploadSize {
		response.Error(c, h.tooLarge())
		return
	}
	file, err := header.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unreadable file"))
		return
	}
	defer file.Close()
	content, err := io.ReadAll(file)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unreadable file"))
		return
	}

	meta := dto.DocumentMetadata{
		Title:    c.PostForm("title"),
		Authors:  formList(c.PostFormArray("authors")),
		Abstract: c.PostForm("abstract"),
		Keywords: formList(c.PostFormArray("keywords")),
	}
	upload := dto.FileUpload{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Content:     content,
	}
	doc, err := h.service.Upload(c.Request.Context(), meta, upload)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, doc)
}

func (h *DocumentHandler) tooLarge() error {
	return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file exceeds the %d byte limit", h.maxUploadSize))
}

// List godoc
// @Summary List documents
// @Tags Documents
// @Produce json
// @Param status query string false "Filter by status"
// @Success 200 {object} response.Envelope
// @Router /documents [get]
func (h *DocumentHandler) List(c *gin.Context) {
	docs, err := h.service.List(c.Request.Context(), dto.DocumentQuery{Status: models.DocumentStatus(c.Query("status"))})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, docs, map[string]interface{}{"total": len(docs)})
}

// Get godoc
// @Summary Get a document
// @Tags Documents
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /documents/{id} [get]
func (h *DocumentHandler) Get(c *gin.Context) {
	doc, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, doc)
}

// Update godoc
// @Summary Update document metadata
// @Tags Documents
// @Accept json
// @Produce json
// @Param id path string true "Document ID"
// @Param payload body dto.UpdateDocumentRequest true "Metadata patch"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /documents/{id} [patch]
func (h *DocumentHandler) Update(c *gin.Context) {
	var req dto.UpdateDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid document payload"))
		return
	}
	doc, err := h.service.UpdateMetadata(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, doc)
}

// Delete godoc
// @Summary Delete a document and its history
// @Tags Documents
// @Param id path string true "Document ID"
// @Success 204
// @Router /documents/{id} [delete]
func (h *DocumentHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ChangeStatus godoc
// @Summary Move a document along the review workflow
// @Tags Status
// @Accept json
// @Produce json
// @Param id path string true "Document ID"
// @Param payload body dto.ChangeStatusRequest true "Requested status"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /documents/{id}/status [post]
func (h *DocumentHandler) ChangeStatus(c *gin.Context) {
	var req dto.ChangeStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid status payload"))
		return
	}
	result, err := h.service.ChangeStatus(c.Request.Context(), c.Param("id"), req.Status, req.Notes)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// GetStatus godoc
// @Summary Get the status view of a document
// @Tags Status
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Router /documents/{id}/status [get]
func (h *DocumentHandler) GetStatus(c *gin.Context) {
	detail, err := h.service.GetStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail)
}

// History godoc
// @Summary Get the status history of a document
// @Tags Status
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Router /documents/{id}/history [get]
func (h *DocumentHandler) History(c *gin.Context) {
	history, err := h.service.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, history, map[string]interface{}{"total": len(history)})
}

// ExportHistory godoc
// @Summary Download the status history as CSV or PDF
// @Tags Status
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Document ID"
// @Param format query string false "csv (default) or pdf"
// @Success 200 {file} file
// @Router /documents/{id}/history/export [get]
func (h *DocumentHandler) ExportHistory(c *gin.Context) {
	report, err := h.service.ExportHistory(c.Request.Context(), c.Param("id"), c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, report.FileName, report.ContentType, report.Content)
}

// ListStatuses godoc
// @Summary Status overview of every document
// @Tags Status
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /statuses [get]
func (h *DocumentHandler) ListStatuses(c *gin.Context) {
	summaries, err := h.service.ListStatuses(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summaries, map[string]interface{}{"total": len(summaries)})
}

// formList accepts both repeated form fields and comma separated values.
func formList(values []string) []string {
	var out []string
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				out = append(out, trimmed)
			}
		}
	}
	return out
}
