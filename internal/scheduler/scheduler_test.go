package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type countingRunner struct {
	calls atomic.Int32
	err   error
}

func (r *countingRunner) RunCycle(context.Context) error {
	r.calls.Add(1)
	return r.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestScheduler_RunsAfterSettleDelayThenOnInterval(t *testing.T) {
	runner := &countingRunner{}
	sched := NewScheduler(runner, 10*time.Millisecond, 25*time.Millisecond, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sched.Start(ctx) }()

	assert.Eventually(t, func() bool {
		return runner.calls.Load() >= 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestScheduler_StopsDuringSettleDelay(t *testing.T) {
	runner := &countingRunner{}
	sched := NewScheduler(runner, time.Hour, time.Hour, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sched.Start(ctx) }()

	cancel()

	assert.ErrorIs(t, <-done, context.Canceled)
	assert.Equal(t, int32(0), runner.calls.Load())
}

func TestScheduler_KeepsTickingAfterCycleErrors(t *testing.T) {
	runner := &countingRunner{err: errors.New("provider down")}
	sched := NewScheduler(runner, time.Millisecond, 10*time.Millisecond, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sched.Start(ctx) }()

	assert.Eventually(t, func() bool {
		return runner.calls.Load() >= 3
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}
