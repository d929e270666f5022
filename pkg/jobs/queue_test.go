package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueProcessesJobs(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]bool{}
	done := make(chan struct{}, 2)

	q := NewQueue("test", func(ctx context.Context, job Job) error {
		mu.Lock()
		seen[job.ID] = true
		mu.Unlock()
		done <- struct{}{}
		return nil
	}, QueueConfig{Workers: 2})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "a"}))
	require.NoError(t, q.Enqueue(Job{ID: "b"}))

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("job not processed")
		}
	}
	mu.Lock()
	defer mu.Unlock()
	assert.True(t, seen["a"])
	assert.True(t, seen["b"])
}

func TestQueueRetriesThenDrops(t *testing.T) {
	var calls int32
	dropped := make(chan Job, 1)

	q := NewQueue("retry", func(ctx context.Context, job Job) error {
		atomic.AddInt32(&calls, 1)
		return errors.New("boom")
	}, QueueConfig{
		MaxRetries: 2,
		RetryDelay: time.Millisecond,
		OnDrop:     func(j Job, err error) { dropped <- j },
	})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "x", Type: "event"}))

	select {
	case j := <-dropped:
		assert.Equal(t, "x", j.ID)
		assert.Equal(t, 3, j.Attempt)
	case <-time.After(2 * time.Second):
		t.Fatal("job never dropped")
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestQueueEnqueueBeforeStart(t *testing.T) {
	q := NewQueue("idle", func(ctx context.Context, job Job) error { return nil }, QueueConfig{})
	err := q.Enqueue(Job{ID: "a"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrQueueStopped)
}
