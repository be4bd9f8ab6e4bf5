package publish

import (
	"context"
	"errors"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/uiua-boo/registry/internal/log"
	"github.com/uiua-boo/registry/internal/pubsub"
)

// DefaultWorkers is the default number of concurrent publish workers.
const DefaultWorkers = 2

// ErrPoolClosed is returned when operations are attempted on a closed pool.
var ErrPoolClosed = errors.New("worker pool is closed")

// JobEventType classifies publish job lifecycle events.
type JobEventType string

const (
	JobQueued    JobEventType = "queued"
	JobStarted   JobEventType = "started"
	JobCompleted JobEventType = "completed"
	JobFailed    JobEventType = "failed"
)

// JobEvent is published on the pool's broker as jobs move through the
// pipeline.
type JobEvent struct {
	JobID int64        `json:"job_id"`
	Type  JobEventType `json:"type"`
	Error string       `json:"error,omitempty"`
}

// JobProcessor runs one publish job to a terminal status.
type JobProcessor interface {
	Process(ctx context.Context, jobID int64) error
}

// DefaultShutdownTimeout bounds how long Close waits for in-flight jobs.
const DefaultShutdownTimeout = 30 * time.Second

// PoolConfig holds configuration for the worker pool.
type PoolConfig struct {
	Workers         int           // Concurrent workers (default: 2)
	QueueSize       int           // Maximum pending triggers (default: 100)
	ShutdownTimeout time.Duration // Grace period for in-flight jobs on Close (default: 30s)
}

// Pool runs publish jobs from a bounded FIFO trigger queue. Each worker
// processes one job fully before taking the next; a job's pipeline has no
// internal parallelism.
type Pool struct {
	processor JobProcessor
	queue     *TriggerQueue
	broker    *pubsub.Broker[JobEvent]
	signal    chan struct{}
	quit      chan struct{}
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closed    atomic.Bool
	grace     time.Duration
}

// NewPool creates the pool and starts its workers.
func NewPool(processor JobProcessor, cfg PoolConfig) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())

	p := &Pool{
		processor: processor,
		queue:     NewTriggerQueue(cfg.QueueSize),
		broker:    pubsub.NewBroker[JobEvent](),
		// Capacity matches the queue so a send after a successful
		// Enqueue never blocks.
		signal: make(chan struct{}, cfg.QueueSize),
		quit:   make(chan struct{}),
		ctx:    ctx,
		cancel: cancel,
		grace:  cfg.ShutdownTimeout,
	}

	for i := 0; i < cfg.Workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}

	return p
}

// Enqueue queues a trigger for the given job. Returns ErrPoolClosed after
// Close, or ErrQueueFull when the queue is at capacity.
func (p *Pool) Enqueue(jobID int64) error {
	if p.closed.Load() {
		return ErrPoolClosed
	}
	if err := p.queue.Enqueue(Trigger{JobID: jobID, EnqueuedAt: time.Now()}); err != nil {
		return err
	}
	p.signal <- struct{}{}

	p.broker.Publish(pubsub.CreatedEvent, JobEvent{JobID: jobID, Type: JobQueued})
	log.Debug(log.CatWorker, "publish job queued", "jobID", jobID, "queued", p.queue.Len())
	return nil
}

// Broker returns the pub/sub broker for job lifecycle events.
func (p *Pool) Broker() *pubsub.Broker[JobEvent] {
	return p.broker
}

// QueueLen returns the number of triggers waiting for a worker.
func (p *Pool) QueueLen() int {
	return p.queue.Len()
}

// Close stops accepting triggers, waits up to the shutdown timeout for
// in-flight jobs to finish, then cancels any that remain. Still-queued
// triggers are dropped. Safe to call more than once.
func (p *Pool) Close() {
	if p.closed.Swap(true) {
		return
	}

	close(p.quit)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(p.grace):
		log.Warn(log.CatWorker, "shutdown timeout reached, cancelling in-flight publish jobs")
		p.cancel()
		<-done
	}
	p.cancel()

	if dropped := p.queue.Drain(); len(dropped) > 0 {
		log.Warn(log.CatWorker, "dropped queued publish triggers on shutdown", "count", len(dropped))
	}
	p.broker.Close()
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for {
		select {
		case <-p.quit:
			return
		case <-p.signal:
		}

		trigger, ok := p.queue.Dequeue()
		if !ok {
			continue
		}
		p.runJob(id, trigger)
	}
}

func (p *Pool) runJob(workerID int, trigger Trigger) {
	defer func() {
		if r := recover(); r != nil {
			log.Error(log.CatWorker, "publish worker panic recovered",
				"workerID", workerID,
				"jobID", trigger.JobID,
				"panic", r,
				"stack", string(debug.Stack()))
			p.broker.Publish(pubsub.UpdatedEvent, JobEvent{
				JobID: trigger.JobID,
				Type:  JobFailed,
				Error: "worker panic",
			})
		}
	}()

	log.Debug(log.CatWorker, "publish job started", "workerID", workerID, "jobID", trigger.JobID)
	p.broker.Publish(pubsub.UpdatedEvent, JobEvent{JobID: trigger.JobID, Type: JobStarted})

	if err := p.processor.Process(p.ctx, trigger.JobID); err != nil {
		log.ErrorErr(log.CatWorker, "publish job failed", err, "workerID", workerID, "jobID", trigger.JobID)
		p.broker.Publish(pubsub.UpdatedEvent, JobEvent{
			JobID: trigger.JobID,
			Type:  JobFailed,
			Error: err.Error(),
		})
		return
	}

	log.Info(log.CatWorker, "publish job completed", "workerID", workerID, "jobID", trigger.JobID)
	p.broker.Publish(pubsub.UpdatedEvent, JobEvent{JobID: trigger.JobID, Type: JobCompleted})
}
