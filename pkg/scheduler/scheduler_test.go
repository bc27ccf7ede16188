package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestScheduler_RunsTasksInOrder(t *testing.T) {
	s := New(10)
	defer s.Close()

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup

	for i := 0; i < 5; i++ {
		i := i
		wg.Add(1)
		s.Add(func(ctx context.Context) {
			defer wg.Done()
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		})
	}

	wg.Wait()
	require.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestScheduler_PanicDoesNotKillWorker(t *testing.T) {
	s := New(10)
	defer s.Close()

	s.Add(func(ctx context.Context) { panic("boom") })

	done := make(chan struct{})
	s.Add(func(ctx context.Context) { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not survive a panicking task")
	}
}

func TestScheduler_CloseIsIdempotent(t *testing.T) {
	s := New(1)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
}

func TestScheduler_AddNeverBlocksPastQueueSizeHint(t *testing.T) {
	s := New(0)
	defer s.Close()

	block := make(chan struct{})
	s.Add(func(ctx context.Context) { <-block })

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			s.Add(func(ctx context.Context) {})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Add blocked: queue is not unbounded")
	}
	close(block)
}

func TestScheduler_QueueDepth(t *testing.T) {
	s := New(10)
	defer s.Close()

	block := make(chan struct{})
	s.Add(func(ctx context.Context) { <-block })

	for i := 0; i < 3; i++ {
		s.Add(func(ctx context.Context) {})
	}

	require.Eventually(t, func() bool { return s.QueueDepth() == 3 }, time.Second, time.Millisecond)
	close(block)
}
