package handler

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/manuscript-review/internal/dto"
	"github.com/noah-isme/manuscript-review/internal/models"
	"github.com/noah-isme/manuscript-review/internal/service"
)

func TestWorkflowHandlerList(t *testing.T) {
	h := NewWorkflowHandler(service.NewStatusWorkflow())
	c, w := newTestContext(http.MethodGet, "/workflow/statuses", nil, "")

	h.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	var out []dto.WorkflowStatus
	decodeEnvelope(t, w, &out)
	require.Len(t, out, 5)
	assert.Equal(t, models.DocumentStatusPending, out[0].Status)
	assert.Equal(t, []models.DocumentStatus{models.DocumentStatusInReview, models.DocumentStatusRejected}, out[0].ValidTransitions)
	assert.False(t, out[0].Terminal)
}

func TestWorkflowHandlerGet(t *testing.T) {
	h := NewWorkflowHandler(service.NewStatusWorkflow())

	c, w := newTestContext(http.MethodGet, "/workflow/statuses/accepted", nil, "")
	c.Params = gin.Params{{Key: "status", Value: "accepted"}}
	h.Get(c)
	require.Equal(t, http.StatusOK, w.Code)
	var out dto.WorkflowStatus
	decodeEnvelope(t, w, &out)
	assert.True(t, out.Terminal)
	assert.Empty(t, out.ValidTransitions)

	c, w = newTestContext(http.MethodGet, "/workflow/statuses/archived", nil, "")
	c.Params = gin.Params{{Key: "status", Value: "archived"}}
	h.Get(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
