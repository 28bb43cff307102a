// Package supervisor runs webhook processing in the background and drains it
// on shutdown.
package supervisor

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/redhat-data-and-ai/hookbot/internal/errors"
	"github.com/redhat-data-and-ai/hookbot/internal/logging"
)

// Task is one unit of background work. The context is cancelled when the
// task times out or is abandoned at shutdown.
type Task func(ctx context.Context) error

type taskInfo struct {
	name    string
	started time.Time
}

// Stats is a snapshot of the supervisor counters
type Stats struct {
	InFlight  int    `json:"in_flight"`
	Spawned   uint64 `json:"spawned"`
	Succeeded uint64 `json:"succeeded"`
	Failed    uint64 `json:"failed"`
	Panicked  uint64 `json:"panicked"`
	Draining  bool   `json:"draining"`
}

// Supervisor tracks in-flight tasks. A task removes itself when it returns,
// whether it succeeded, failed or panicked.
type Supervisor struct {
	mu       sync.Mutex
	tasks    map[uint64]taskInfo
	nextID   uint64
	draining bool
	wg       sync.WaitGroup

	base    context.Context
	abandon context.CancelFunc
	timeout time.Duration

	spawned   atomic.Uint64
	succeeded atomic.Uint64
	failed    atomic.Uint64
	panicked  atomic.Uint64

	logger *logging.Logger
}

// New creates a supervisor. Each task runs under taskTimeout; zero disables it.
func New(taskTimeout time.Duration) *Supervisor {
	base, abandon := context.WithCancel(context.Background())
	return &Supervisor{
		tasks:   make(map[uint64]taskInfo),
		base:    base,
		abandon: abandon,
		timeout: taskTimeout,
		logger:  logging.GetLogger(),
	}
}

// Go starts fn in the background and returns its task id. Once Shutdown has
// begun no new tasks are accepted.
func (s *Supervisor) Go(name string, fn Task) (uint64, error) {
	s.mu.Lock()
	if s.draining {
		s.mu.Unlock()
		return 0, apperrors.NewError(apperrors.ErrServiceUnavailable, "Shutting down, not accepting webhooks")
	}
	s.nextID++
	id := s.nextID
	s.tasks[id] = taskInfo{name: name, started: time.Now()}
	s.wg.Add(1)
	s.mu.Unlock()

	s.spawned.Add(1)
	go s.run(id, name, fn)
	return id, nil
}

func (s *Supervisor) run(id uint64, name string, fn Task) {
	ctx := s.base
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			s.panicked.Add(1)
			appErr := apperrors.PanicError(r).
				WithContext("task_id", id).
				WithContext("task", name)
			s.logger.Error("Task panicked",
				zap.Uint64("task_id", id),
				zap.String("task", name),
				zap.Error(appErr),
				zap.ByteString("stack", debug.Stack()))
		}

		s.mu.Lock()
		delete(s.tasks, id)
		s.mu.Unlock()
		s.wg.Done()
	}()

	start := time.Now()
	if err := fn(ctx); err != nil {
		s.failed.Add(1)
		fields := []interface{}{
			zap.Uint64("task_id", id),
			zap.String("task", name),
			zap.Duration("duration", time.Since(start)),
			zap.String("error_code", string(apperrors.CodeOf(err))),
			zap.Error(err),
		}
		if ctx.Err() == context.DeadlineExceeded {
			fields = append(fields, zap.Duration("timeout", s.timeout))
		}
		s.logger.Error("Task failed", fields...)
		return
	}
	s.succeeded.Add(1)
	s.logger.Debug("Task finished",
		zap.Uint64("task_id", id),
		zap.String("task", name),
		zap.Duration("duration", time.Since(start)))
}

// InFlight is the number of tasks still running
func (s *Supervisor) InFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Draining reports whether Shutdown has been called
func (s *Supervisor) Draining() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draining
}

// Stats returns the current counters
func (s *Supervisor) Stats() Stats {
	s.mu.Lock()
	inFlight, draining := len(s.tasks), s.draining
	s.mu.Unlock()

	return Stats{
		InFlight:  inFlight,
		Spawned:   s.spawned.Load(),
		Succeeded: s.succeeded.Load(),
		Failed:    s.failed.Load(),
		Panicked:  s.panicked.Load(),
		Draining:  draining,
	}
}

// Shutdown stops accepting tasks and waits up to timeout for the running ones.
// Tasks still running afterwards have their context cancelled and are left
// behind; their number is returned.
func (s *Supervisor) Shutdown(timeout time.Duration) int {
	s.mu.Lock()
	s.draining = true
	pending := len(s.tasks)
	s.mu.Unlock()

	if pending > 0 {
		s.logger.Info(fmt.Sprintf("Waiting for %d webhook tasks to finish", pending),
			zap.Duration("timeout", timeout))
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		s.abandon()
		return 0
	case <-timer.C:
	}

	s.mu.Lock()
	abandoned := make([]string, 0, len(s.tasks))
	for id, info := range s.tasks {
		abandoned = append(abandoned, fmt.Sprintf("%d:%s (%s)", id, info.name, time.Since(info.started).Round(time.Millisecond)))
	}
	s.mu.Unlock()

	s.abandon()
	s.logger.Warn("Abandoning unfinished webhook tasks",
		zap.Int("count", len(abandoned)),
		zap.Strings("tasks", abandoned))
	return len(abandoned)
}
