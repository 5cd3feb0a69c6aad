package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/manuscript-review/internal/dto"
	"github.com/noah-isme/manuscript-review/internal/models"
	appErrors "github.com/noah-isme/manuscript-review/pkg/errors"
	"github.com/noah-isme/manuscript-review/pkg/response"
)

type workflowReader interface {
	Statuses() []models.DocumentStatus
	IsKnown(status models.DocumentStatus) bool
	IsTerminal(status models.DocumentStatus) bool
	ValidTransitions(status models.DocumentStatus) []models.DocumentStatus
	DisplayInfo(status models.DocumentStatus) models.StatusDisplay
}

// WorkflowHandler exposes the review state machine to clients.
type WorkflowHandler struct {
	workflow workflowReader
}

// NewWorkflowHandler builds a new handler.
func NewWorkflowHandler(workflow workflowReader) *WorkflowHandler {
	return &WorkflowHandler{workflow: workflow}
}

// List godoc
// @Summary List workflow states
// @Tags Workflow
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /workflow/statuses [get]
func (h *WorkflowHandler) List(c *gin.Context) {
	statuses := h.workflow.Statuses()
	out := make([]dto.WorkflowStatus, 0, len(statuses))
	for _, status := range statuses {
		out = append(out, h.describe(status))
	}
	response.JSON(c, http.StatusOK, out)
}

// Get godoc
// @Summary Describe one workflow state
// @Tags Workflow
// @Produce json
// @Param status path string true "Status"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /workflow/statuses/{status} [get]
func (h *WorkflowHandler) Get(c *gin.Context) {
	status := models.DocumentStatus(c.Param("status"))
	if !h.workflow.IsKnown(status) {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("unknown status %q", status)))
		return
	}
	response.JSON(c, http.StatusOK, h.describe(status))
}

func (h *WorkflowHandler) describe(status models.DocumentStatus) dto.WorkflowStatus {
	return dto.WorkflowStatus{
		Status:           status,
		Display:          h.workflow.DisplayInfo(status),
		ValidTransitions: h.workflow.ValidTransitions(status),
		Terminal:         h.workflow.IsTerminal(status),
	}
}
