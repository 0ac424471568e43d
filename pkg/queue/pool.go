// Package queue implements the bounded turn queue and its worker pool.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/codial-dev/codial-core/pkg/domain"
	"github.com/codial-dev/codial-core/pkg/events"
	"github.com/codial-dev/codial-core/pkg/models"
)

const (
	// queueCapacity bounds the number of accepted-but-unprocessed turns.
	// Enqueue blocks once the queue is full, pushing back on ingress.
	queueCapacity = 1000

	// gracefulDrainTimeout is how long Stop waits for queued turns to
	// finish before cancelling the workers.
	gracefulDrainTimeout = 30 * time.Second

	unexpectedErrorText   = "요청 처리 중 예상치 못한 오류가 발생했어요."
	workerUnavailableText = "작업 워커를 사용할 수 없어요."
	submitCancelledText   = "턴 제출이 취소됐어요."
)

// TurnProcessor handles one dequeued task. Implementations report failures
// through the returned error; the pool owns the terminal error event.
type TurnProcessor interface {
	Process(ctx context.Context, task models.TurnTask) error
}

// PoolHealth is a point-in-time snapshot for the readiness endpoint.
type PoolHealth struct {
	Running     bool `json:"running"`
	WorkerCount int  `json:"worker_count"`
	QueueDepth  int  `json:"queue_depth"`
}

// TurnWorkerPool owns the bounded FIFO of pending turns and the worker
// goroutines that drain it. Each worker processes one task at a time, so a
// turn's events reach the sink in emit order.
type TurnWorkerPool struct {
	processor   TurnProcessor
	sink        events.Sink
	workerCount int

	queue chan models.TurnTask
	// jobs counts enqueued-but-unfinished tasks; Stop drains against it.
	jobs sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu      sync.RWMutex
	started bool
	closing bool
}

// NewTurnWorkerPool creates a pool; Start spawns the workers.
func NewTurnWorkerPool(processor TurnProcessor, sink events.Sink, workerCount int) *TurnWorkerPool {
	return &TurnWorkerPool{
		processor:   processor,
		sink:        sink,
		workerCount: workerCount,
		queue:       make(chan models.TurnTask, queueCapacity),
		stopCh:      make(chan struct{}),
	}
}

// Start spawns the worker goroutines. It is safe to call multiple times;
// subsequent calls are no-ops.
func (p *TurnWorkerPool) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		slog.Warn("Turn worker pool already started, ignoring duplicate Start call")
		return nil
	}
	p.started = true
	p.closing = false
	p.ctx, p.cancel = context.WithCancel(ctx)
	p.mu.Unlock()

	slog.Info("Starting turn worker pool", "worker_count", p.workerCount, "queue_capacity", cap(p.queue))
	for i := 0; i < p.workerCount; i++ {
		workerID := fmt.Sprintf("turn-worker-%d", i)
		p.wg.Add(1)
		go p.run(workerID)
	}
	slog.Info("Turn worker pool started")
	return nil
}

// Stop closes intake, waits up to the drain timeout for queued turns to
// finish, then cancels the workers and waits for them to exit. Turns still
// queued after the timeout are abandoned.
func (p *TurnWorkerPool) Stop() {
	p.stopOnce.Do(func() {
		slog.Info("Stopping turn worker pool gracefully")
		p.mu.Lock()
		p.closing = true
		started := p.started
		p.mu.Unlock()

		if started {
			drained := make(chan struct{})
			go func() {
				p.jobs.Wait()
				close(drained)
			}()
			select {
			case <-drained:
			case <-time.After(gracefulDrainTimeout):
				slog.Warn("turn_worker_graceful_shutdown_timeout", "pending", len(p.queue))
			}
			p.cancel()
		}

		close(p.stopCh)
		p.wg.Wait()

		p.mu.Lock()
		p.started = false
		p.mu.Unlock()
		slog.Info("Turn worker pool stopped")
	})
}

// Enqueue mints the turn's ids and queues the task, blocking while the
// queue is full. The trace id is kept when the caller already assigned one.
// Returns the task as queued, ids filled in.
func (p *TurnWorkerPool) Enqueue(ctx context.Context, task models.TurnTask) (models.TurnTask, error) {
	p.mu.RLock()
	closing := p.closing
	p.mu.RUnlock()
	if closing {
		return models.TurnTask{}, domain.NewUpstreamTransient(workerUnavailableText)
	}

	task.TurnID = uuid.NewString()
	if task.TraceID == "" {
		task.TraceID = uuid.NewString()
	}

	p.jobs.Add(1)
	select {
	case p.queue <- task:
		return task, nil
	case <-p.stopCh:
		p.jobs.Done()
		return models.TurnTask{}, domain.NewUpstreamTransient(workerUnavailableText)
	case <-ctx.Done():
		p.jobs.Done()
		return models.TurnTask{}, domain.NewTimeout(submitCancelledText).WithCause(ctx.Err())
	}
}

// Health reports the pool state for the readiness endpoint.
func (p *TurnWorkerPool) Health() PoolHealth {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return PoolHealth{
		Running:     p.started && !p.closing,
		WorkerCount: p.workerCount,
		QueueDepth:  len(p.queue),
	}
}

// run is the worker loop: dequeue, process, mark done, repeat until stopped.
func (p *TurnWorkerPool) run(workerID string) {
	defer p.wg.Done()

	log := slog.With("worker_id", workerID)
	log.Info("Turn worker started")

	for {
		select {
		case <-p.stopCh:
			log.Info("Turn worker shutting down")
			return
		case task := <-p.queue:
			p.processTask(log, task)
		}
	}
}

// processTask supervises one turn. Domain errors are logged by severity and
// surfaced as a terminal error event; anything else becomes the generic
// error event. Nothing propagates out of the worker loop.
func (p *TurnWorkerPool) processTask(log *slog.Logger, task models.TurnTask) {
	defer p.jobs.Done()

	err := p.safeProcess(task)
	if err == nil {
		return
	}
	if errors.Is(err, context.Canceled) && p.ctx.Err() != nil {
		log.Debug("Turn abandoned during shutdown", "trace_id", task.TraceID, "turn_id", task.TurnID)
		return
	}

	if domainErr, ok := domain.AsError(err); ok {
		logFn := log.Error
		if domainErr.Retryable {
			logFn = log.Warn
		}
		logFn("turn_domain_error",
			"trace_id", task.TraceID,
			"turn_id", task.TurnID,
			"error_code", domainErr.Code,
			"retryable", domainErr.Retryable,
			"error", domainErr.Message)
		p.emitError(task, domainErr.Message)
		return
	}

	log.Error("turn_unexpected_error",
		"trace_id", task.TraceID,
		"turn_id", task.TurnID,
		"error", err)
	p.emitError(task, unexpectedErrorText)
}

// safeProcess converts a processor panic into an error so the supervisor
// can log it and keep the worker alive.
func (p *TurnWorkerPool) safeProcess(task models.TurnTask) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("panic in turn processing: %v\n%s", recovered, debug.Stack())
		}
	}()
	return p.processor.Process(p.ctx, task)
}

// emitError publishes the turn's terminal error event. Publish failures are
// logged and dropped; the worker must keep running.
func (p *TurnWorkerPool) emitError(task models.TurnTask, text string) {
	event := events.StreamEvent{
		SessionID: task.SessionID,
		TurnID:    task.TurnID,
		TraceID:   task.TraceID,
		Type:      events.TypeError,
		Payload:   events.Payload{Text: text},
	}
	if err := p.sink.Publish(p.ctx, event); err != nil {
		slog.Warn("Failed to publish turn error event",
			"trace_id", task.TraceID,
			"turn_id", task.TurnID,
			"error", err)
	}
}
