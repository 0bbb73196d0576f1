package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadomation/utils"
)

type jobFunc func(ctx context.Context) (int, error)

func (f jobFunc) Run(ctx context.Context) (int, error) { return f(ctx) }

func TestScheduler_RegisterInvalidSpec(t *testing.T) {
	s := NewScheduler(time.Minute)
	err := s.Register("broken", "not a cron spec", jobFunc(func(context.Context) (int, error) { return 0, nil }))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
}

func TestScheduler_RunsJobsUntilStopped(t *testing.T) {
	s := NewScheduler(time.Minute)

	ran := make(chan bool, 10)
	require.NoError(t, s.Register("tick", "@every 1s", jobFunc(func(ctx context.Context) (int, error) {
		_, hasDeadline := ctx.Deadline()
		ran <- hasDeadline
		return 1, nil
	})))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	select {
	case hasDeadline := <-ran:
		assert.True(t, hasDeadline, "jobs run with a timeout")
	case <-time.After(5 * time.Second):
		t.Fatal("job did not run")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestScheduler_RunJobHandlesLockConflict(t *testing.T) {
	s := NewScheduler(time.Minute)
	calls := 0
	s.runJob("busy", jobFunc(func(context.Context) (int, error) {
		calls++
		return 0, utils.ErrRunInProgress
	}))
	assert.Equal(t, 1, calls)
}
