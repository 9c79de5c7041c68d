// Package runner executes fire-and-forget background work such as history
// appends and diary generation, off the request path.
package runner

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"echo/core"
)

// ErrStopped is passed to OnFailure for tasks submitted after Stop.
var ErrStopped = errors.New("runner: stopped")

// Task is one unit of background work. The context is cancelled when Stop's
// deadline expires.
type Task func(ctx context.Context) error

type Config struct {
	// MaxConcurrent bounds tasks running at once. Zero means DefaultConfig's value.
	MaxConcurrent int `json:"max_concurrent"`
	// StopTimeoutSeconds bounds how long Stop waits when its context has no deadline.
	StopTimeoutSeconds int `json:"stop_timeout_seconds"`
}

func DefaultConfig() Config {
	return Config{
		MaxConcurrent:      64,
		StopTimeoutSeconds: 10,
	}
}

type Runner struct {
	config Config
	logger *core.Logger

	ctx    context.Context
	cancel context.CancelFunc
	slots  chan struct{}
	wg     sync.WaitGroup

	mu      sync.RWMutex
	stopped bool

	inFlight atomic.Int64

	// OnFailure, when set, is called once per failed or panicking task.
	OnFailure func(name string, err error)
}

func NewRunner(config Config, logger *core.Logger) *Runner {
	defaults := DefaultConfig()
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = defaults.MaxConcurrent
	}
	if config.StopTimeoutSeconds <= 0 {
		config.StopTimeoutSeconds = defaults.StopTimeoutSeconds
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		config: config,
		logger: logger.With(map[string]any{"component": "runner"}),
		ctx:    ctx,
		cancel: cancel,
		slots:  make(chan struct{}, config.MaxConcurrent),
	}
}

// Go schedules task and returns immediately. It never blocks on the
// concurrency limit; queued tasks wait inside their own goroutine.
func (r *Runner) Go(name string, task Task) {
	r.mu.RLock()
	if r.stopped {
		r.mu.RUnlock()
		r.logger.With(map[string]any{"task": name}).Warn("runner stopped, dropping task")
		r.fail(name, ErrStopped)
		return
	}
	r.wg.Add(1)
	r.inFlight.Add(1)
	r.mu.RUnlock()

	go func() {
		defer r.wg.Done()
		defer r.inFlight.Add(-1)

		select {
		case r.slots <- struct{}{}:
		case <-r.ctx.Done():
			r.fail(name, r.ctx.Err())
			return
		}
		defer func() { <-r.slots }()

		r.run(name, task)
	}()
}

func (r *Runner) run(name string, task Task) {
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			err := fmt.Errorf("panic: %v", p)
			r.logger.With(map[string]any{"task": name, "error": err, "stack": string(debug.Stack())}).Error("background task panicked")
			r.fail(name, err)
		}
	}()

	if err := task(r.ctx); err != nil {
		r.logger.With(map[string]any{"task": name, "error": err, "duration": time.Since(start)}).Error("background task failed")
		r.fail(name, err)
		return
	}
	r.logger.With(map[string]any{"task": name, "duration": time.Since(start)}).Trace("background task done")
}

func (r *Runner) fail(name string, err error) {
	if r.OnFailure != nil {
		r.OnFailure(name, err)
	}
}

// InFlight reports tasks that are queued or running.
func (r *Runner) InFlight() int {
	return int(r.inFlight.Load())
}

// Drain blocks until every task submitted before the call has finished.
// Tests use it to observe background effects deterministically.
func (r *Runner) Drain() {
	r.wg.Wait()
}

// Stop rejects new tasks and waits for in-flight ones. When ctx expires first
// the task context is cancelled and ctx's error is returned.
func (r *Runner) Stop(ctx context.Context) error {
	r.mu.Lock()
	r.stopped = true
	r.mu.Unlock()

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(r.config.StopTimeoutSeconds)*time.Second)
		defer cancel()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.cancel()
		return nil
	case <-ctx.Done():
		r.cancel()
		return fmt.Errorf("runner: stop: %w", ctx.Err())
	}
}
