// Package scheduler implements the single-consumer asynchronous task
// queue that serializes collection-scope work: one background worker
// drains an unbounded FIFO of tasks, in enqueue order, until the
// scheduler is closed.
package scheduler

import (
	"context"
	"log"
	"sync"

	"go4.org/syncutil"
)

// Task is an opaque unit of work. A task that panics is recovered and
// logged; it never terminates the worker.
type Task func(ctx context.Context)

// Scheduler is a per-collection (or process-wide) single background
// worker draining a FIFO task queue. Tasks run to completion; a task
// may block on I/O. On Close, any unstarted task is discarded and the
// worker exits after finishing whatever task is currently running.
//
// The queue is an unbounded slice-backed ring guarded by mu/cond,
// mirroring the original JobScheduler's blocking-queue push/pop: Add
// never blocks the caller, and the worker blocks on cond.Wait until a
// task is available or the scheduler is closed.
type Scheduler struct {
	mu     sync.Mutex
	cond   *sync.Cond
	tasks  []Task
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	close  syncutil.Once
}

// New starts the background worker and returns the Scheduler.
// queueSizeHint preallocates the backing slice's capacity; it bounds
// nothing and may be zero.
func New(queueSizeHint int) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		tasks:  make([]Task, 0, queueSizeHint),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	s.cond = sync.NewCond(&s.mu)
	go s.run()
	return s
}

// Add enqueues task. It never blocks: the backing slice grows to fit.
func (s *Scheduler) Add(task Task) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.tasks = append(s.tasks, task)
	s.mu.Unlock()
	s.cond.Signal()
}

// QueueDepth reports how many tasks are currently queued and waiting
// for the worker, for status/ops reporting.
func (s *Scheduler) QueueDepth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

func (s *Scheduler) run() {
	defer close(s.done)
	for {
		s.mu.Lock()
		for len(s.tasks) == 0 && !s.closed {
			s.cond.Wait()
		}
		if s.closed {
			s.mu.Unlock()
			return
		}
		task := s.tasks[0]
		s.tasks[0] = nil
		s.tasks = s.tasks[1:]
		s.mu.Unlock()

		s.runTask(task)
	}
}

func (s *Scheduler) runTask(task Task) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("scheduler: task panicked: %v", r)
		}
	}()
	task(s.ctx)
}

// Close cancels the running task's context, stops accepting new work,
// discards anything still queued, and waits for the worker goroutine
// to exit after it finishes whatever task is currently running. It is
// safe to call more than once.
func (s *Scheduler) Close() error {
	return s.close.Do(func() error {
		s.cancel()
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		s.cond.Broadcast()
		<-s.done
		return nil
	})
}
