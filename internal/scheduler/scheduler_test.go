package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voltwatch/backend/internal/utils"
)

type countingTask struct {
	name    string
	runs    atomic.Int32
	release chan struct{}
	started chan struct{}
	err     error
}

func (t *countingTask) Name() string { return t.name }

func (t *countingTask) Run(ctx context.Context) error {
	t.runs.Add(1)
	if t.started != nil {
		t.started <- struct{}{}
	}
	if t.release != nil {
		<-t.release
	}
	return t.err
}

func TestScheduler_RunNow(t *testing.T) {
	s := New(utils.NewNopLogger(), time.UTC)
	task := &countingTask{name: "rollup"}
	require.NoError(t, s.Register("0 0 4 * * *", task))

	require.NoError(t, s.RunNow(context.Background(), "rollup"))
	assert.Equal(t, int32(1), task.runs.Load())

	err := s.RunNow(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrUnknownTask)
	assert.ErrorIs(t, err, utils.ErrNotFound)
}

func TestScheduler_RunNowReturnsTaskError(t *testing.T) {
	s := New(utils.NewNopLogger(), time.UTC)
	boom := errors.New("boom")
	require.NoError(t, s.Register("0 0 4 * * *", &countingTask{name: "failing", err: boom}))

	assert.ErrorIs(t, s.RunNow(context.Background(), "failing"), boom)
}

func TestScheduler_Register(t *testing.T) {
	s := New(utils.NewNopLogger(), time.UTC)

	assert.Error(t, s.Register("not a cron spec", &countingTask{name: "bad"}))

	require.NoError(t, s.Register("0 * * * * *", &countingTask{name: "schedules"}))
	assert.Error(t, s.Register("0 * * * * *", &countingTask{name: "schedules"}))

	assert.Equal(t, []string{"schedules"}, s.Tasks())
}

func TestScheduler_SkipsWhileRunning(t *testing.T) {
	s := New(utils.NewNopLogger(), time.UTC)
	task := &countingTask{
		name:    "slow",
		release: make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	require.NoError(t, s.Register("0 0 4 * * *", task))

	done := make(chan error, 1)
	go func() {
		done <- s.RunNow(context.Background(), "slow")
	}()
	<-task.started

	err := s.RunNow(context.Background(), "slow")
	assert.ErrorIs(t, err, ErrTaskRunning)
	assert.ErrorIs(t, err, utils.ErrConflict)

	close(task.release)
	require.NoError(t, <-done)
	assert.Equal(t, int32(1), task.runs.Load())
}

func TestScheduler_TriggersFromCron(t *testing.T) {
	s := New(utils.NewNopLogger(), time.UTC)
	task := &countingTask{name: "tick"}
	require.NoError(t, s.Register("* * * * * *", task))

	next, ok := s.Next("tick")
	assert.True(t, ok)
	assert.True(t, next.IsZero(), "next is only computed once started")

	s.Start()
	assert.Eventually(t, func() bool { return task.runs.Load() > 0 }, 3*time.Second, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
}
