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
	var handled int32
	done := make(chan struct{}, 2)
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		atomic.AddInt32(&handled, 1)
		done <- struct{}{}
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 2})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{Type: "a"}))
	require.NoError(t, q.TryEnqueue(Job{Type: "b"}))

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("job not handled")
		}
	}
	assert.Equal(t, int32(2), atomic.LoadInt32(&handled))
}

func TestQueueRejectsBeforeStart(t *testing.T) {
	q := NewQueue("idle", func(context.Context, Job) error { return nil }, QueueConfig{})
	assert.Error(t, q.Enqueue(Job{Type: "x"}))
	assert.Error(t, q.TryEnqueue(Job{Type: "x"}))
}

func TestQueueTryEnqueueFull(t *testing.T) {
	block := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once
	q := NewQueue("full", func(ctx context.Context, job Job) error {
		once.Do(func() { close(started) })
		<-block
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 1})
	q.Start(context.Background())
	defer func() {
		close(block)
		q.Stop()
	}()

	require.NoError(t, q.TryEnqueue(Job{Type: "first"}))
	<-started
	require.NoError(t, q.TryEnqueue(Job{Type: "second"}))
	err := q.TryEnqueue(Job{Type: "third"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrQueueFull))
}
