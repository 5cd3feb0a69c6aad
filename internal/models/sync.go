package models

import "time"

// SyncEventType enumerates connectivity and reconciliation lifecycle events.
type SyncEventType string

const (
	SyncEventOnline   SyncEventType = "online"
	SyncEventOffline  SyncEventType = "offline"
	SyncEventStart    SyncEventType = "sync-start"
	SyncEventComplete SyncEventType = "sync-complete"
	SyncEventError    SyncEventType = "sync-error"
)

// SyncEvent is broadcast on the notification bus.
type SyncEvent struct {
	Type        SyncEventType `json:"type"`
	Timestamp   time.Time     `json:"timestamp"`
	SyncedCount int           `json:"syncedCount,omitempty"`
	FailedCount int           `json:"failedCount,omitempty"`
	Error       string        `json:"error,omitempty"`
}

// Availability is a point-in-time connectivity reading.
type Availability struct {
	Online    bool      `json:"isOnline"`
	Offline   bool      `json:"isOffline"`
	CheckedAt time.Time `json:"timestamp"`
}

// SyncResult summarises one reconciliation pass.
type SyncResult struct {
	// Skipped is set when the pass did not run because the coordinator was
	// offline or another pass was already in flight.
	Skipped     bool          `json:"skipped"`
	Pending     int           `json:"pending"`
	Synced      int           `json:"synced"`
	Failed      int           `json:"failed"`
	FailedIDs   []string      `json:"failedIds,omitempty"`
	StartedAt   time.Time     `json:"startedAt"`
	CompletedAt time.Time     `json:"completedAt"`
	Duration    time.Duration `json:"duration"`
}

// SyncMetricsSnapshot aggregates reconciliation counters since process start.
type SyncMetricsSnapshot struct {
	Passes              uint64     `json:"passes"`
	DocumentsSynced     uint64     `json:"documentsSynced"`
	DocumentsFailed     uint64     `json:"documentsFailed"`
	LastPassCompletedAt *time.Time `json:"lastPassCompletedAt,omitempty"`
	RequestsTotal       uint64     `json:"requestsTotal"`
	CacheHitRatio       float64    `json:"cacheHitRatio"`
	Goroutines          int        `json:"goroutines"`
	GeneratedAt         time.Time  `json:"generatedAt"`
}
