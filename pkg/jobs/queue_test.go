package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueRequiresStart(t *testing.T) {
	q := NewQueue("sync", func(context.Context, Job) error { return nil }, QueueConfig{})
	_, err := q.Enqueue(Job{ID: "1"})
	require.Error(t, err)
}

func TestQueueCoalescesWaitingKeys(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 4)
	var runs int32
	q := NewQueue("sync", func(ctx context.Context, job Job) error {
		atomic.AddInt32(&runs, 1)
		started <- struct{}{}
		<-release
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 4})
	q.Start(context.Background())
	defer q.Stop()

	queued, err := q.Enqueue(Job{ID: "a", Key: "sync"})
	require.NoError(t, err)
	require.True(t, queued)
	<-started

	// The first job is running; one follow-up may wait, the rest coalesce.
	queued, err = q.Enqueue(Job{ID: "b", Key: "sync"})
	require.NoError(t, err)
	assert.True(t, queued)
	queued, err = q.Enqueue(Job{ID: "c", Key: "sync"})
	require.NoError(t, err)
	assert.False(t, queued)
	assert.Equal(t, 1, q.Waiting())

	close(release)
	<-started
	require.Eventually(t, func() bool { return q.Waiting() == 0 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(2), atomic.LoadInt32(&runs))
}

func TestQueueRetriesFailedJobs(t *testing.T) {
	var attempts int32
	done := make(chan struct{})
	q := NewQueue("sync", func(ctx context.Context, job Job) error {
		if atomic.AddInt32(&attempts, 1) < 3 {
			return errors.New("transient")
		}
		close(done)
		return nil
	}, QueueConfig{MaxRetries: 3, RetryDelay: 5 * time.Millisecond})
	q.Start(context.Background())
	defer q.Stop()

	_, err := q.Enqueue(Job{ID: "retry", Type: "sync"})
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job was not retried")
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}
