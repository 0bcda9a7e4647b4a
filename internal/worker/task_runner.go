package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/relaydesk/relaydesk/internal/config"
)

// Task is one unit of background work.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// TaskRunner executes fire-and-forget side effects (notifications, webhook
// dispatch, priority classification, outbound sends) off the request path.
// Failures are logged independently and never reach the submitting caller.
type TaskRunner struct {
	queue  chan Task
	logger *zap.Logger
	wg     sync.WaitGroup
	once   sync.Once
}

// NewTaskRunner builds a runner with a bounded queue.
func NewTaskRunner(cfg config.WorkerConfig, logger *zap.Logger) *TaskRunner {
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 64
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	runner := &TaskRunner{
		queue:  make(chan Task, queueSize),
		logger: logger,
	}
	for i := 0; i < concurrency; i++ {
		runner.wg.Add(1)
		go runner.work()
	}
	return runner
}

func (r *TaskRunner) work() {
	defer r.wg.Done()
	for task := range r.queue {
		start := time.Now()
		if err := task.Run(context.Background()); err != nil {
			r.logger.Error("background task failed",
				zap.String("task", task.Name),
				zap.Duration("duration", time.Since(start)),
				zap.Error(err))
			continue
		}
		r.logger.Debug("background task done",
			zap.String("task", task.Name),
			zap.Duration("duration", time.Since(start)))
	}
}

// Submit enqueues a task without blocking. A full queue drops the task and
// logs it; best-effort side effects tolerate loss.
func (r *TaskRunner) Submit(name string, fn func(ctx context.Context) error) bool {
	select {
	case r.queue <- Task{Name: name, Run: fn}:
		return true
	default:
		r.logger.Warn("task queue full, dropping task", zap.String("task", name))
		return false
	}
}

// Stop drains the queue and waits for in-flight tasks.
func (r *TaskRunner) Stop() {
	r.once.Do(func() {
		close(r.queue)
	})
	r.wg.Wait()
}
