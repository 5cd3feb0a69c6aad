package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/manuscript-review/internal/dto"
	"github.com/noah-isme/manuscript-review/internal/models"
	appErrors "github.com/noah-isme/manuscript-review/pkg/errors"
	"github.com/noah-isme/manuscript-review/pkg/jobs"
	"github.com/noah-isme/manuscript-review/pkg/response"
)

// SyncJobKey coalesces manual sync requests into one waiting job.
const SyncJobKey = "sync"

type syncCoordinator interface {
	CheckAvailability() models.Availability
	InProgress() bool
}

type syncEnqueuer interface {
	Enqueue(job jobs.Job) (bool, error)
}

// ConnectivityReporter accepts externally observed connectivity.
type ConnectivityReporter interface {
	Set(online bool) bool
}

type syncMetrics interface {
	Snapshot() models.SyncMetricsSnapshot
}

const healthManagedReason = "connectivity is managed by the health probe"

// SyncHandler exposes connectivity and reconciliation endpoints.
type SyncHandler struct {
	coordinator syncCoordinator
	queue       syncEnqueuer
	reporter    ConnectivityReporter
	metrics     syncMetrics
	// rejectReason explains why connectivity reports are refused when there
	// is no reporter.
	rejectReason string
}

// SyncHandlerOption customises a SyncHandler.
type SyncHandlerOption func(*SyncHandler)

// WithReportingDisabled refuses connectivity reports with reason. It is used
// when sync is switched off entirely rather than delegated to a health probe.
func WithReportingDisabled(reason string) SyncHandlerOption {
	return func(h *SyncHandler) {
		h.reporter = nil
		h.rejectReason = reason
	}
}

// NewSyncHandler builds a new handler. reporter may be nil when connectivity
// is derived from a health probe.
func NewSyncHandler(coordinator syncCoordinator, queue syncEnqueuer, reporter ConnectivityReporter, metrics syncMetrics, opts ...SyncHandlerOption) *SyncHandler {
	h := &SyncHandler{coordinator: coordinator, queue: queue, reporter: reporter, metrics: metrics, rejectReason: healthManagedReason}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Status godoc
// @Summary Connectivity and reconciliation status
// @Tags Sync
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /connectivity [get]
func (h *SyncHandler) Status(c *gin.Context) {
	status := dto.ConnectivityStatus{
		Availability: h.coordinator.CheckAvailability(),
		InProgress:   h.coordinator.InProgress(),
	}
	if h.metrics != nil {
		status.Metrics = h.metrics.Snapshot()
	}
	response.JSON(c, http.StatusOK, status)
}

// ReportConnectivity godoc
// @Summary Report a connectivity change
// @Tags Sync
// @Accept json
// @Produce json
// @Param payload body dto.ConnectivityRequest true "Observed connectivity"
// @Success 202 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /connectivity [post]
func (h *SyncHandler) ReportConnectivity(c *gin.Context) {
	if h.reporter == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrUnavailable, h.rejectReason))
		return
	}
	var req dto.ConnectivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid connectivity payload"))
		return
	}
	changed := h.reporter.Set(*req.Online)
	response.Accepted(c, gin.H{"online": *req.Online, "changed": changed})
}

// Trigger godoc
// @Summary Queue a reconciliation pass
// @Tags Sync
// @Produce json
// @Success 202 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /sync [post]
func (h *SyncHandler) Trigger(c *gin.Context) {
	availability := h.coordinator.CheckAvailability()
	if !availability.Online {
		response.Error(c, appErrors.Clone(appErrors.ErrUnavailable, "remote authority is unreachable"))
		return
	}
	queued, err := h.queue.Enqueue(jobs.Job{Key: SyncJobKey, Type: SyncJobKey})
	if err != nil {
		response.Error(c, appErrors.Derive(appErrors.ErrUnavailable, err, "sync queue unavailable"))
		return
	}
	response.Accepted(c, dto.SyncTriggerResponse{
		Queued:       queued,
		Availability: availability,
		InProgress:   h.coordinator.InProgress(),
	})
}
