package queue

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// Job is one triggered report run.
type Job struct {
	ID       string
	Trigger  string
	Work     func(context.Context) error
	OnFinish func(error)
}

// Stats exposes current queue metrics.
type Stats struct {
	Length      int
	Capacity    int
	WorkerCount int
	Processed   uint64
	Failed      uint64
	Coalesced   uint64
}

// Observer receives queue stats and job outcomes.
type Observer interface {
	UpdateQueue(length, capacity int)
	RecordJobCompletion(err error)
}

// Queue is a bounded job queue with a fixed worker pool. A job submitted while
// another job with the same trigger is still waiting is coalesced into it.
type Queue struct {
	jobs        chan Job
	workerCount int
	timeout     time.Duration
	observer    Observer
	started     bool
	mu          sync.RWMutex
	waiting     map[string]bool
	wg          sync.WaitGroup
	processed   uint64
	failed      uint64
	coalesced   uint64
}

// New creates a Queue with the provided capacity, worker count, and per-job timeout.
func New(capacity, workerCount int, timeout time.Duration) *Queue {
	return &Queue{
		jobs:        make(chan Job, capacity),
		workerCount: workerCount,
		timeout:     timeout,
		waiting:     make(map[string]bool),
	}
}

// SetObserver attaches o. Call before Start.
func (q *Queue) SetObserver(o Observer) {
	q.mu.Lock()
	q.observer = o
	q.mu.Unlock()
}

// Start launches the worker pool.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	if q.started {
		q.mu.Unlock()
		return
	}
	q.started = true
	q.mu.Unlock()
	for i := 0; i < q.workerCount; i++ {
		q.wg.Add(1)
		go q.worker(ctx)
	}
}

// Enqueue attempts to queue a job without blocking. It returns false when the
// queue is full, not started, or the job was coalesced into a waiting one.
func (q *Queue) Enqueue(j Job) bool {
	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		log.Printf("queue: enqueue before start job=%s trigger=%s", j.ID, j.Trigger)
		return false
	}
	if j.Trigger != "" && q.waiting[j.Trigger] {
		q.mu.Unlock()
		atomic.AddUint64(&q.coalesced, 1)
		log.Printf("queue: coalesced job=%s trigger=%s", j.ID, j.Trigger)
		return false
	}
	select {
	case q.jobs <- j:
		if j.Trigger != "" {
			q.waiting[j.Trigger] = true
		}
		q.mu.Unlock()
		q.report(nil, false)
		return true
	default:
		q.mu.Unlock()
		log.Printf("queue: full, dropping job=%s trigger=%s", j.ID, j.Trigger)
		return false
	}
}

// Stop stops accepting new jobs and waits for workers to drain until ctx is done.
func (q *Queue) Stop(ctx context.Context) {
	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return
	}
	q.started = false
	close(q.jobs)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
	}
}

// Stats returns current queue metrics.
func (q *Queue) Stats() Stats {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return Stats{
		Length:      len(q.jobs),
		Capacity:    cap(q.jobs),
		WorkerCount: q.workerCount,
		Processed:   atomic.LoadUint64(&q.processed),
		Failed:      atomic.LoadUint64(&q.failed),
		Coalesced:   atomic.LoadUint64(&q.coalesced),
	}
}

// Healthy returns true if the queue has been started.
func (q *Queue) Healthy() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.started
}

func (q *Queue) worker(ctx context.Context) {
	defer q.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case j, ok := <-q.jobs:
			if !ok {
				return
			}
			q.mu.Lock()
			delete(q.waiting, j.Trigger)
			q.mu.Unlock()
			q.handleJob(ctx, j)
		}
	}
}

func (q *Queue) handleJob(ctx context.Context, j Job) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			log.Printf("queue: job=%s panic recovered: %v", j.ID, r)
		}
	}()

	jobCtx, cancel := context.WithTimeout(ctx, q.timeout)
	err := j.Work(jobCtx)
	cancel()
	if j.OnFinish != nil {
		j.OnFinish(err)
	}
	atomic.AddUint64(&q.processed, 1)
	if err != nil {
		atomic.AddUint64(&q.failed, 1)
	}
	q.report(err, true)
	status := "success"
	if err != nil {
		status = err.Error()
	}
	log.Printf("queue: trigger=%s job=%s duration_ms=%d status=%s", j.Trigger, j.ID, time.Since(start).Milliseconds(), status)
}

func (q *Queue) report(err error, finished bool) {
	q.mu.RLock()
	o := q.observer
	length, capacity := len(q.jobs), cap(q.jobs)
	q.mu.RUnlock()
	if o == nil {
		return
	}
	o.UpdateQueue(length, capacity)
	if finished {
		o.RecordJobCompletion(err)
	}
}
