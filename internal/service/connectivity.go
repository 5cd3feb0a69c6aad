package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// HealthProbe is a ConnectivitySource that polls a health endpoint. A reply
// below 500 counts as online.
type HealthProbe struct {
	url      string
	interval time.Duration
	client   *http.Client
	logger   *zap.Logger
	metrics  *MetricsService

	mu      sync.RWMutex
	online  bool
	closed  bool
	changes chan bool
}

// NewHealthProbe constructs a probe. initial is reported until the first poll completes.
func NewHealthProbe(url string, interval, timeout time.Duration, initial bool, logger *zap.Logger, metrics *MetricsService) *HealthProbe {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthProbe{
		url:      url,
		interval: interval,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
		metrics:  metrics,
		online:   initial,
		changes:  make(chan bool, 1),
	}
}

// Online returns the last observed state.
func (p *HealthProbe) Online() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.online
}

// Changes emits state changes, keeping only the newest when the reader lags.
// The channel is closed when Start returns.
func (p *HealthProbe) Changes() <-chan bool {
	return p.changes
}

// Start polls until ctx is done. It probes once immediately.
func (p *HealthProbe) Start(ctx context.Context) {
	defer p.close()
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.Probe(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Probe(ctx)
		}
	}
}

// Probe performs one health check, records the result and emits a change if
// the state flipped. It is safe to call after Start has returned; the state
// is still recorded but nothing is emitted.
func (p *HealthProbe) Probe(ctx context.Context) bool {
	err := p.ping(ctx)
	if ctx.Err() != nil {
		// Shutting down says nothing about the remote side.
		return p.Online()
	}
	online := err == nil
	if err != nil {
		p.logger.Debug("health probe failed", zap.String("url", p.url), zap.Error(err))
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	changed := p.online != online
	p.online = online
	if changed && !p.closed {
		select {
		case p.changes <- online:
		default:
			select {
			case <-p.changes:
			default:
			}
			p.changes <- online
		}
	}
	return online
}

func (p *HealthProbe) close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	close(p.changes)
}

func (p *HealthProbe) ping(ctx context.Context) error {
	if p.url == "" {
		return errors.New("health URL not configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return err
	}

	start := time.Now()
	resp, err := p.client.Do(req)
	statusCode := http.StatusServiceUnavailable
	if err == nil {
		defer resp.Body.Close()
		statusCode = resp.StatusCode
	}
	p.metrics.ObserveHTTPRequest(http.MethodGet, "sync_health", statusCode, time.Since(start))
	if err != nil {
		return err
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("received status %d", resp.StatusCode)
	}
	return nil
}

// ManualConnectivity is a ConnectivitySource driven by explicit Set calls,
// for deployments without a health endpoint.
type ManualConnectivity struct {
	mu      sync.RWMutex
	online  bool
	changes chan bool
}

// NewManualConnectivity constructs a source with the given initial state.
func NewManualConnectivity(initial bool) *ManualConnectivity {
	return &ManualConnectivity{online: initial, changes: make(chan bool, 8)}
}

// Online returns the current state.
func (m *ManualConnectivity) Online() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.online
}

// Changes emits every state change.
func (m *ManualConnectivity) Changes() <-chan bool {
	return m.changes
}

// Set records a new state and emits it when it differs from the current one.
// It reports whether the state changed.
func (m *ManualConnectivity) Set(online bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.online == online {
		return false
	}
	m.online = online
	select {
	case m.changes <- online:
	default:
		// A full buffer only holds stale states; keep the newest.
		select {
		case <-m.changes:
		default:
		}
		m.changes <- online
	}
	return true
}
