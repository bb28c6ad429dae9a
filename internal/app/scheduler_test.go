package app

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type countingSweeper struct {
	calls atomic.Int32
	err   error
}

func (c *countingSweeper) ExpireStalePending(context.Context) (int, error) {
	c.calls.Add(1)
	return 1, c.err
}

func TestScheduler_SweepsOnStartAndStops(t *testing.T) {
	sweeper := &countingSweeper{}
	s, err := NewScheduler("@every 1h", time.UTC, sweeper, zaptest.NewLogger(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return sweeper.calls.Load() == 1 }, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestScheduler_SweepErrorIsLogged(t *testing.T) {
	sweeper := &countingSweeper{err: errors.New("store down")}
	s, err := NewScheduler("@every 1h", time.UTC, sweeper, zaptest.NewLogger(t))
	require.NoError(t, err)

	s.sweep()
	assert.Equal(t, int32(1), sweeper.calls.Load())
}

func TestNewScheduler_InvalidSpec(t *testing.T) {
	_, err := NewScheduler("every tuesday", time.UTC, &countingSweeper{}, zaptest.NewLogger(t))
	assert.Error(t, err)
}
