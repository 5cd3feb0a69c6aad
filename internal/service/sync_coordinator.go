package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/manuscript-review/internal/models"
)

// SyncStore is the slice of the record store a reconciliation pass needs.
type SyncStore interface {
	GetAll(ctx context.Context) ([]models.Document, error)
	MarkSynced(ctx context.Context, id string, seenLastModified, syncedAt time.Time) (bool, error)
}

// RemoteAuthority reconciles one document with the sync target. Calls must be
// idempotent: reconciling an already reconciled document is a no-op remotely.
type RemoteAuthority interface {
	Reconcile(ctx context.Context, doc *models.Document) error
}

// ConnectivitySource reports whether the sync target is reachable and emits
// each change of that state.
type ConnectivitySource interface {
	Online() bool
	Changes() <-chan bool
}

// SyncCoordinatorOption customises a SyncCoordinator.
type SyncCoordinatorOption func(*SyncCoordinator)

// WithClock overrides the time source.
func WithClock(now func() time.Time) SyncCoordinatorOption {
	return func(c *SyncCoordinator) {
		if now != nil {
			c.now = now
		}
	}
}

// WithInitialOnline sets the connectivity state before any signal arrives.
func WithInitialOnline(online bool) SyncCoordinatorOption {
	return func(c *SyncCoordinator) {
		c.online.Store(online)
	}
}

// WithSyncMetrics attaches Prometheus instrumentation.
func WithSyncMetrics(metrics *MetricsService) SyncCoordinatorOption {
	return func(c *SyncCoordinator) {
		c.metrics = metrics
	}
}

// SyncCoordinator tracks connectivity and drives reconciliation of pending
// documents. At most one pass runs at a time.
type SyncCoordinator struct {
	store     SyncStore
	authority RemoteAuthority
	bus       *NotificationBus
	logger    *zap.Logger
	metrics   *MetricsService
	now       func() time.Time

	online     atomic.Bool
	inProgress atomic.Bool
}

// NewSyncCoordinator constructs a coordinator. It starts offline unless
// WithInitialOnline says otherwise.
func NewSyncCoordinator(store SyncStore, authority RemoteAuthority, bus *NotificationBus, logger *zap.Logger, opts ...SyncCoordinatorOption) *SyncCoordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if bus == nil {
		bus = NewNotificationBus(logger)
	}
	c := &SyncCoordinator{
		store:     store,
		authority: authority,
		bus:       bus,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.metrics.SetOnline(c.online.Load())
	return c
}

// Bus returns the bus lifecycle events are published on.
func (c *SyncCoordinator) Bus() *NotificationBus {
	return c.bus
}

// InProgress reports whether a reconciliation pass is running.
func (c *SyncCoordinator) InProgress() bool {
	return c.inProgress.Load()
}

// CheckAvailability returns the current connectivity reading.
func (c *SyncCoordinator) CheckAvailability() models.Availability {
	online := c.online.Load()
	return models.Availability{Online: online, Offline: !online, CheckedAt: c.now().UTC()}
}

// OnConnectivityChange records a connectivity signal. Going online broadcasts
// the change and runs a pass; going offline only broadcasts. A signal that
// does not change the state is ignored.
func (c *SyncCoordinator) OnConnectivityChange(ctx context.Context, online bool) {
	if c.online.Swap(online) == online {
		return
	}
	c.metrics.SetOnline(online)

	eventType := models.SyncEventOffline
	if online {
		eventType = models.SyncEventOnline
	}
	c.logger.Info("connectivity changed", zap.Bool("online", online))
	c.publish(models.SyncEvent{Type: eventType})

	if !online {
		return
	}
	if _, err := c.AttemptSync(ctx); err != nil {
		c.logger.Warn("sync after reconnect failed", zap.Error(err))
	}
}

// AttemptSync runs one reconciliation pass. It returns a skipped result when
// offline or when another pass is running. Per-document failures do not stop
// the pass; they leave the document pending and are reported through a
// sync-error event. The returned error is set only when the pending set could
// not be loaded.
func (c *SyncCoordinator) AttemptSync(ctx context.Context) (result models.SyncResult, err error) {
	if !c.online.Load() || !c.inProgress.CompareAndSwap(false, true) {
		c.metrics.ObserveSyncPass(SyncOutcomeSkipped, models.SyncResult{Skipped: true})
		return models.SyncResult{Skipped: true}, nil
	}
	defer c.inProgress.Store(false)

	result.StartedAt = c.now().UTC()
	c.publish(models.SyncEvent{Type: models.SyncEventStart})

	docs, err := c.store.GetAll(ctx)
	if err != nil {
		c.finish(&result, SyncOutcomeError)
		c.logger.Error("sync pass could not load documents", zap.Error(err))
		c.publish(models.SyncEvent{Type: models.SyncEventError, Error: err.Error()})
		return result, err
	}

	pending := pendingDocuments(docs)
	result.Pending = len(pending)

	var failures []string
	for i := range pending {
		doc := &pending[i]
		if syncErr := c.reconcile(ctx, doc); syncErr != nil {
			result.Failed++
			result.FailedIDs = append(result.FailedIDs, doc.ID)
			failures = append(failures, fmt.Sprintf("%s: %v", doc.ID, syncErr))
			c.logger.Warn("document reconciliation failed", zap.String("document_id", doc.ID), zap.Error(syncErr))
			continue
		}
		result.Synced++
	}

	if result.Failed > 0 {
		c.finish(&result, SyncOutcomePartial)
		c.publish(models.SyncEvent{
			Type:        models.SyncEventError,
			SyncedCount: result.Synced,
			FailedCount: result.Failed,
			Error:       strings.Join(failures, "; "),
		})
		return result, nil
	}

	c.finish(&result, SyncOutcomeComplete)
	c.logger.Info("sync pass complete", zap.Int("synced", result.Synced), zap.Duration("duration", result.Duration))
	c.publish(models.SyncEvent{Type: models.SyncEventComplete, SyncedCount: result.Synced})
	return result, nil
}

// errChangedDuringSync marks a document that was modified while its
// reconciliation was in flight. It stays pending for the next pass.
var errChangedDuringSync = errors.New("document changed during reconciliation")

func (c *SyncCoordinator) reconcile(ctx context.Context, doc *models.Document) error {
	if err := c.authority.Reconcile(ctx, doc); err != nil {
		return err
	}
	marked, err := c.store.MarkSynced(ctx, doc.ID, doc.LastModified, c.now())
	if err != nil {
		return err
	}
	if !marked {
		return errChangedDuringSync
	}
	return nil
}

func (c *SyncCoordinator) finish(result *models.SyncResult, outcome string) {
	result.CompletedAt = c.now().UTC()
	result.Duration = result.CompletedAt.Sub(result.StartedAt)
	c.metrics.ObserveSyncPass(outcome, *result)
}

func (c *SyncCoordinator) publish(event models.SyncEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = c.now().UTC()
	}
	c.bus.Publish(event)
}

// Run follows source until ctx is done, feeding every change into
// OnConnectivityChange. The source's current state is applied first.
func (c *SyncCoordinator) Run(ctx context.Context, source ConnectivitySource) {
	if source == nil {
		return
	}
	c.OnConnectivityChange(ctx, source.Online())
	changes := source.Changes()
	for {
		select {
		case <-ctx.Done():
			return
		case online, ok := <-changes:
			if !ok {
				return
			}
			c.OnConnectivityChange(ctx, online)
		}
	}
}

// pendingDocuments filters docs to the ones awaiting reconciliation, ordered
// by upload date then id.
func pendingDocuments(docs []models.Document) []models.Document {
	pending := make([]models.Document, 0, len(docs))
	for _, doc := range docs {
		if doc.NeedsSync() {
			pending = append(pending, doc)
		}
	}
	sort.SliceStable(pending, func(i, j int) bool {
		if !pending[i].UploadDate.Equal(pending[j].UploadDate) {
			return pending[i].UploadDate.Before(pending[j].UploadDate)
		}
		return pending[i].ID < pending[j].ID
	})
	return pending
}
