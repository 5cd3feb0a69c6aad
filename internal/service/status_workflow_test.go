package service

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/manuscript-review/internal/models"
	appErrors "github.com/noah-isme/manuscript-review/pkg/errors"
)

func TestStatusWorkflowApplyTransitionAllPairs(t *testing.T) {
	allowed := map[models.DocumentStatus]map[models.DocumentStatus]bool{
		models.DocumentStatusPending:        {models.DocumentStatusInReview: true, models.DocumentStatusRejected: true},
		models.DocumentStatusInReview:       {models.DocumentStatusReviewComplete: true, models.DocumentStatusRejected: true},
		models.DocumentStatusReviewComplete: {models.DocumentStatusAccepted: true, models.DocumentStatusRejected: true, models.DocumentStatusInReview: true},
		models.DocumentStatusAccepted:       {},
		models.DocumentStatusRejected:       {models.DocumentStatusPending: true},
	}

	w := NewStatusWorkflow()
	statuses := w.Statuses()
	require.Len(t, statuses, 5)

	for _, from := range statuses {
		for _, to := range statuses {
			err := w.ApplyTransition(from, to)
			if allowed[from][to] {
				assert.NoError(t, err, "%s -> %s", from, to)
				continue
			}
			require.Error(t, err, "%s -> %s", from, to)
			assert.True(t, errors.Is(err, appErrors.ErrInvalidTransition))
			assert.Contains(t, err.Error(), string(from))
			assert.Contains(t, err.Error(), string(to))
		}
	}
}

func TestStatusWorkflowValidTransitions(t *testing.T) {
	w := NewStatusWorkflow()

	assert.Equal(t, []models.DocumentStatus{models.DocumentStatusAccepted, models.DocumentStatusRejected, models.DocumentStatusInReview},
		w.ValidTransitions(models.DocumentStatusReviewComplete))
	assert.Empty(t, w.ValidTransitions(models.DocumentStatusAccepted))
	assert.True(t, w.IsTerminal(models.DocumentStatusAccepted))
	assert.False(t, w.IsTerminal(models.DocumentStatusRejected))

	unknown := w.ValidTransitions("archived")
	assert.NotNil(t, unknown)
	assert.Empty(t, unknown)
	assert.False(t, w.IsKnown("archived"))
	assert.False(t, w.IsTerminal("archived"))
}

func TestStatusWorkflowValidTransitionsReturnsCopy(t *testing.T) {
	w := NewStatusWorkflow()
	next := w.ValidTransitions(models.DocumentStatusPending)
	next[0] = models.DocumentStatusAccepted

	assert.NoError(t, w.ApplyTransition(models.DocumentStatusPending, models.DocumentStatusInReview))
	assert.Error(t, w.ApplyTransition(models.DocumentStatusPending, models.DocumentStatusAccepted))
}

func TestStatusWorkflowUnknownSourceRejectsEverything(t *testing.T) {
	w := NewStatusWorkflow()
	for _, to := range w.Statuses() {
		assert.Error(t, w.ApplyTransition("archived", to))
	}
}

func TestStatusWorkflowDisplayInfo(t *testing.T) {
	w := NewStatusWorkflow()

	cases := []struct {
		status models.DocumentStatus
		label  string
		color  string
		bg     string
	}{
		{models.DocumentStatusPending, "Pending", "#f59e0b", "#fffbeb"},
		{models.DocumentStatusInReview, "In Review", "#3b82f6", "#eff6ff"},
		{models.DocumentStatusReviewComplete, "Review Complete", "#8b5cf6", "#f5f3ff"},
		{models.DocumentStatusAccepted, "Accepted", "#10b981", "#f0fdf4"},
		{models.DocumentStatusRejected, "Rejected", "#ef4444", "#fef2f2"},
		{"archived", "archived", "#6b7280", "#f3f4f6"},
	}
	for _, tc := range cases {
		info := w.DisplayInfo(tc.status)
		assert.Equal(t, tc.status, info.Status)
		assert.Equal(t, tc.label, info.Label)
		assert.Equal(t, tc.color, info.Color)
		assert.Equal(t, tc.bg, info.BgColor)
	}
}
