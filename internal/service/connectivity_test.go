package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthProbeEmitsTransitions(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusOK)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(int(status.Load()))
	}))
	defer server.Close()

	probe := NewHealthProbe(server.URL, time.Hour, time.Second, false, nil, NewMetricsService())
	ctx := context.Background()

	assert.True(t, probe.Probe(ctx))
	assert.True(t, probe.Online())
	assert.True(t, <-probe.Changes())

	assert.True(t, probe.Probe(ctx))
	select {
	case v := <-probe.Changes():
		t.Fatalf("unexpected change %v", v)
	default:
	}

	status.Store(http.StatusServiceUnavailable)
	assert.False(t, probe.Probe(ctx))
	assert.False(t, <-probe.Changes())

	status.Store(http.StatusNotFound)
	assert.True(t, probe.Probe(ctx), "client errors still prove reachability")
}

func TestHealthProbeUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	probe := NewHealthProbe(url, time.Hour, 200*time.Millisecond, true, nil, nil)
	assert.False(t, probe.Probe(context.Background()))
	assert.False(t, <-probe.Changes())
}

func TestHealthProbeWithoutURLIsOffline(t *testing.T) {
	probe := NewHealthProbe("", time.Hour, time.Second, false, nil, nil)
	assert.False(t, probe.Probe(context.Background()))
	assert.False(t, probe.Online())
}

func TestHealthProbeStartClosesChannel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	probe := NewHealthProbe(server.URL, 10*time.Millisecond, time.Second, false, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		probe.Start(ctx)
		close(done)
	}()

	require.True(t, <-probe.Changes())
	cancel()
	<-done
	_, open := <-probe.Changes()
	assert.False(t, open)
}

func TestHealthCheckAfterStartReturnsDoesNotPanic(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusOK)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(int(status.Load()))
	}))
	defer server.Close()

	probe := NewHealthProbe(server.URL, time.Hour, time.Second, false, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		probe.Start(ctx)
		close(done)
	}()
	require.True(t, <-probe.Changes())
	cancel()
	<-done

	status.Store(http.StatusServiceUnavailable)
	assert.NotPanics(t, func() {
		assert.False(t, probe.Probe(context.Background()))
	})
	assert.False(t, probe.Online())
	_, open := <-probe.Changes()
	assert.False(t, open)
}

func TestManualConnectivity(t *testing.T) {
	source := NewManualConnectivity(false)
	assert.False(t, source.Online())
	assert.False(t, source.Set(false))

	assert.True(t, source.Set(true))
	assert.True(t, source.Online())
	assert.True(t, <-source.Changes())

	for i := 0; i < 20; i++ {
		source.Set(i%2 == 0)
	}
	var last bool
	for {
		select {
		case v := <-source.Changes():
			last = v
			continue
		default:
		}
		break
	}
	assert.Equal(t, source.Online(), last)
}
