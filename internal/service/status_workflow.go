package service

import (
	"fmt"

	"github.com/noah-isme/manuscript-review/internal/models"
	appErrors "github.com/noah-isme/manuscript-review/pkg/errors"
)

// StatusWorkflow is the fixed editorial state machine. It is stateless and
// safe for concurrent use.
type StatusWorkflow struct{}

// NewStatusWorkflow constructs the workflow.
func NewStatusWorkflow() *StatusWorkflow {
	return &StatusWorkflow{}
}

var statusOrder = []models.DocumentStatus{
	models.DocumentStatusPending,
	models.DocumentStatusInReview,
	models.DocumentStatusReviewComplete,
	models.DocumentStatusAccepted,
	models.DocumentStatusRejected,
}

var transitionTable = map[models.DocumentStatus][]models.DocumentStatus{
	models.DocumentStatusPending:        {models.DocumentStatusInReview, models.DocumentStatusRejected},
	models.DocumentStatusInReview:       {models.DocumentStatusReviewComplete, models.DocumentStatusRejected},
	models.DocumentStatusReviewComplete: {models.DocumentStatusAccepted, models.DocumentStatusRejected, models.DocumentStatusInReview},
	models.DocumentStatusAccepted:       {},
	models.DocumentStatusRejected:       {models.DocumentStatusPending},
}

type statusStyle struct {
	label   string
	color   string
	bgColor string
}

var displayTable = map[models.DocumentStatus]statusStyle{
	models.DocumentStatusPending:        {label: "Pending", color: "#f59e0b", bgColor: "#fffbeb"},
	models.DocumentStatusInReview:       {label: "In Review", color: "#3b82f6", bgColor: "#eff6ff"},
	models.DocumentStatusReviewComplete: {label: "Review Complete", color: "#8b5cf6", bgColor: "#f5f3ff"},
	models.DocumentStatusAccepted:       {label: "Accepted", color: "#10b981", bgColor: "#f0fdf4"},
	models.DocumentStatusRejected:       {label: "Rejected", color: "#ef4444", bgColor: "#fef2f2"},
}

const (
	fallbackColor   = "#6b7280"
	fallbackBgColor = "#f3f4f6"
)

// Statuses lists every known status in workflow order.
func (w *StatusWorkflow) Statuses() []models.DocumentStatus {
	out := make([]models.DocumentStatus, len(statusOrder))
	copy(out, statusOrder)
	return out
}

// IsKnown reports whether status belongs to the workflow.
func (w *StatusWorkflow) IsKnown(status models.DocumentStatus) bool {
	_, ok := transitionTable[status]
	return ok
}

// IsTerminal reports whether no transition leaves status.
func (w *StatusWorkflow) IsTerminal(status models.DocumentStatus) bool {
	next, ok := transitionTable[status]
	return ok && len(next) == 0
}

// ValidTransitions returns the statuses reachable from status in one step.
// Unknown statuses yield an empty slice.
func (w *StatusWorkflow) ValidTransitions(status models.DocumentStatus) []models.DocumentStatus {
	next := transitionTable[status]
	out := make([]models.DocumentStatus, len(next))
	copy(out, next)
	return out
}

// ApplyTransition succeeds only when to is a valid successor of from.
func (w *StatusWorkflow) ApplyTransition(from, to models.DocumentStatus) error {
	for _, candidate := range transitionTable[from] {
		if candidate == to {
			return nil
		}
	}
	return appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("invalid status transition from %s to %s", from, to))
}

// DisplayInfo returns the presentation metadata of status, falling back to
// the raw value and neutral colours for unknown statuses.
func (w *StatusWorkflow) DisplayInfo(status models.DocumentStatus) models.StatusDisplay {
	style, ok := displayTable[status]
	if !ok {
		style = statusStyle{label: string(status), color: fallbackColor, bgColor: fallbackBgColor}
	}
	return models.StatusDisplay{Status: status, Label: style.label, Color: style.color, BgColor: style.bgColor}
}
