package docex

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunner_RunsAllTasks(t *testing.T) {
	r := DefaultRunner(context.Background())
	var n atomic.Int32
	for i := 0; i < 20; i++ {
		r.Go(func() error {
			n.Add(1)
			return nil
		})
	}
	require.NoError(t, r.Wait())
	assert.Equal(t, int32(20), n.Load())
}

func TestRunner_PropagatesFirstError(t *testing.T) {
	r := NewLimitedRunner(context.Background(), 2)
	boom := errors.New("boom")
	r.Go(func() error { return nil })
	r.Go(func() error { return boom })
	assert.ErrorIs(t, r.Wait(), boom)
}

func TestLimitedRunner_BoundsConcurrency(t *testing.T) {
	const limit = 3
	r := NewLimitedRunner(context.Background(), limit)

	var mu sync.Mutex
	running, peak := 0, 0
	gate := make(chan struct{})

	for i := 0; i < 12; i++ {
		r.Go(func() error {
			mu.Lock()
			running++
			if running > peak {
				peak = running
			}
			mu.Unlock()

			<-gate

			mu.Lock()
			running--
			mu.Unlock()
			return nil
		})
	}
	close(gate)
	require.NoError(t, r.Wait())
	assert.LessOrEqual(t, peak, limit)
	assert.Greater(t, peak, 0)
}

func TestLimitedRunner_MinimumConcurrencyOfOne(t *testing.T) {
	r := NewLimitedRunner(context.Background(), 0)
	done := false
	r.Go(func() error { done = true; return nil })
	require.NoError(t, r.Wait())
	assert.True(t, done)
}
