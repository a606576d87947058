package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"CryptoArchive/pkg/cache"
	"CryptoArchive/pkg/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingTask struct {
	name string
	runs atomic.Int32
	err  error
}

func (t *countingTask) Name() string { return t.name }

func (t *countingTask) Run(context.Context) error {
	t.runs.Add(1)
	return t.err
}

type recordingQueue struct {
	mu   sync.Mutex
	sent []string
}

func (q *recordingQueue) PublishMessage(_ context.Context, msgType string, _ interface{}) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.sent = append(q.sent, msgType)
	return nil
}

func (q *recordingQueue) count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.sent)
}

func TestRunTaskHonoursLock(t *testing.T) {
	ctx := context.Background()
	locker := cache.NewMemoryCache()
	task := &countingTask{name: "grade"}
	s := NewScheduler(locker, time.Second, metrics.Nop{}, nil)
	s.Add(task, 0)

	ok, err := locker.TryLock(ctx, cache.LockKey("grade"), time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	assert.ErrorIs(t, s.RunTask(ctx, "grade"), ErrTaskLocked)
	assert.Zero(t, task.runs.Load())

	require.NoError(t, locker.Unlock(ctx, cache.LockKey("grade")))
	require.NoError(t, s.RunTask(ctx, "grade"))
	require.NoError(t, s.RunTask(ctx, "grade"))
	assert.Equal(t, int32(2), task.runs.Load())
}

func TestRunTaskUnknownAndFailing(t *testing.T) {
	s := NewScheduler(nil, time.Second, metrics.Nop{}, nil)
	s.Add(&countingTask{name: "snapshot", err: errors.New("upstream down")}, 0)

	assert.Error(t, s.RunTask(context.Background(), "nope"))
	assert.EqualError(t, s.RunTask(context.Background(), "snapshot"), "upstream down")
}

func TestSchedulerTicksInline(t *testing.T) {
	s := NewScheduler(nil, time.Second, metrics.Nop{}, nil)
	task := &countingTask{name: "snapshot"}
	s.Add(task, 10*time.Millisecond)
	s.Start()

	assert.Eventually(t, func() bool { return task.runs.Load() >= 2 }, time.Second, 5*time.Millisecond)
	require.NoError(t, s.Stop(context.Background()))
}

func TestSchedulerTicksEnqueue(t *testing.T) {
	s := NewScheduler(nil, time.Second, metrics.Nop{}, nil)
	task := &countingTask{name: "grade"}
	q := &recordingQueue{}
	s.Add(task, 10*time.Millisecond)
	s.UseQueue(q)
	s.Start()

	assert.Eventually(t, func() bool { return q.count() >= 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, s.Stop(context.Background()))
	assert.Zero(t, task.runs.Load())
}

func TestTaskJobDropsLockedRuns(t *testing.T) {
	ctx := context.Background()
	locker := cache.NewMemoryCache()
	task := &countingTask{name: "grade"}
	s := NewScheduler(locker, time.Second, metrics.Nop{}, nil)
	s.Add(task, 0)

	jobs := s.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, "grade", jobs[0].Type())

	payload, _ := json.Marshal(taskPayload{Trigger: "schedule", At: fixedNow})
	require.NoError(t, jobs[0].Handle(ctx, payload))
	assert.Equal(t, int32(1), task.runs.Load())

	_, err := locker.TryLock(ctx, cache.LockKey("grade"), time.Minute)
	require.NoError(t, err)
	require.NoError(t, jobs[0].Handle(ctx, payload))
	assert.Equal(t, int32(1), task.runs.Load())
}
