package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	drepo "CryptoArchive/internal/domain/repository"
	"CryptoArchive/pkg/cache"
	applogger "CryptoArchive/pkg/logger"
	"CryptoArchive/pkg/queue"
)

// Task is a named periodic job.
type Task interface {
	Name() string
	Run(ctx context.Context) error
}

// ErrTaskLocked is returned when another process holds the task's lock.
var ErrTaskLocked = errors.New("task already running")

type scheduled struct {
	task  Task
	every time.Duration
}

// Scheduler runs tasks on fixed intervals. When a dispatcher is set, ticks enqueue the
// task instead of running it, and the queue's workers call RunTask. A distributed lock
// keeps one run per task at a time across replicas.
type Scheduler struct {
	tasks    map[string]scheduled
	locker   cache.Locker
	dispatch queue.QueueService
	timeout  time.Duration
	metrics  drepo.Metrics
	l        *applogger.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewScheduler creates a scheduler. locker may be nil for single-process deployments.
func NewScheduler(locker cache.Locker, timeout time.Duration, m drepo.Metrics, l *applogger.Logger) *Scheduler {
	if l == nil {
		l = applogger.Nop()
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Scheduler{tasks: make(map[string]scheduled), locker: locker, timeout: timeout, metrics: m, l: l}
}

// Add registers t to run every interval. A non-positive interval registers the task for
// manual and queued runs only.
func (s *Scheduler) Add(t Task, every time.Duration) {
	s.tasks[t.Name()] = scheduled{task: t, every: every}
}

// UseQueue routes ticks through q.
func (s *Scheduler) UseQueue(q queue.QueueService) { s.dispatch = q }

// Jobs returns one queue job per registered task.
func (s *Scheduler) Jobs() []queue.Job {
	out := make([]queue.Job, 0, len(s.tasks))
	for name := range s.tasks {
		out = append(out, taskJob{name: name, s: s})
	}
	return out
}

// RunTask runs the named task now under its lock and the job timeout.
func (s *Scheduler) RunTask(ctx context.Context, name string) error {
	sc, ok := s.tasks[name]
	if !ok {
		return fmt.Errorf("unknown task %q", name)
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	lockKey := cache.LockKey(name)
	if s.locker != nil {
		acquired, err := s.locker.TryLock(ctx, lockKey, s.timeout)
		if err != nil {
			return fmt.Errorf("acquire lock: %w", err)
		}
		if !acquired {
			s.l.Info("task skipped, lock held elsewhere", applogger.String("task", name))
			return ErrTaskLocked
		}
		defer func() {
			if err := s.locker.Unlock(context.Background(), lockKey); err != nil {
				s.l.Warn("release task lock failed", applogger.String("task", name), applogger.Error(err))
			}
		}()
	}

	start := time.Now()
	err := sc.task.Run(ctx)
	s.metrics.RecordLatency("task_"+name, time.Since(start).Seconds())
	if err != nil {
		s.metrics.RecordError("task_" + name)
		s.l.Error("task failed", applogger.String("task", name), applogger.Error(err))
		return err
	}
	return nil
}

// Start launches one ticker loop per periodic task.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.running = true

	for name, sc := range s.tasks {
		if sc.every <= 0 {
			continue
		}
		s.wg.Add(1)
		go s.loop(ctx, name, sc.every)
		s.l.Info("task scheduled", applogger.String("task", name), applogger.Duration("every", sc.every))
	}
}

func (s *Scheduler) loop(ctx context.Context, name string, every time.Duration) {
	defer s.wg.Done()
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.trigger(ctx, name)
		}
	}
}

func (s *Scheduler) trigger(ctx context.Context, name string) {
	if s.dispatch != nil {
		if err := s.dispatch.PublishMessage(ctx, name, taskPayload{Trigger: "schedule", At: time.Now().UTC()}); err != nil {
			s.l.Error("enqueue task failed", applogger.String("task", name), applogger.Error(err))
		}
		return
	}
	// failures are logged by RunTask; the next tick tries again
	_ = s.RunTask(ctx, name)
}

// Stop cancels tick loops and waits for in-flight runs or ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.cancel()
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type taskPayload struct {
	Trigger string    `json:"trigger"`
	At      time.Time `json:"at"`
}

type taskJob struct {
	name string
	s    *Scheduler
}

func (j taskJob) Type() string { return j.name }

// Handle runs the task. A held lock means another worker is on it, so the message is
// dropped rather than retried.
func (j taskJob) Handle(ctx context.Context, payload json.RawMessage) error {
	p, err := queue.ParsePayload[taskPayload](payload)
	if err != nil {
		return err
	}
	j.s.l.Debug("queued task received", applogger.String("task", j.name), applogger.String("trigger", p.Trigger))
	if err := j.s.RunTask(ctx, j.name); err != nil && !errors.Is(err, ErrTaskLocked) {
		return err
	}
	return nil
}
