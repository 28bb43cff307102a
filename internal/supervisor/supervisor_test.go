package supervisor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/redhat-data-and-ai/hookbot/internal/errors"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 5*time.Millisecond)
}

func TestGo_TaskRemovesItself(t *testing.T) {
	s := New(0)
	release := make(chan struct{})

	id, err := s.Go("push", func(ctx context.Context) error {
		<-release
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), id)
	assert.Equal(t, 1, s.InFlight())

	close(release)
	waitFor(t, func() bool { return s.InFlight() == 0 })

	stats := s.Stats()
	assert.Equal(t, uint64(1), stats.Spawned)
	assert.Equal(t, uint64(1), stats.Succeeded)
	assert.Equal(t, uint64(0), stats.Failed)
}

func TestGo_FailureAndPanicAreContained(t *testing.T) {
	s := New(0)

	_, err := s.Go("failing", func(ctx context.Context) error {
		return errors.New("delivery failed")
	})
	require.NoError(t, err)
	_, err = s.Go("panicking", func(ctx context.Context) error {
		panic("template blew up")
	})
	require.NoError(t, err)

	var ran atomic.Bool
	_, err = s.Go("healthy", func(ctx context.Context) error {
		ran.Store(true)
		return nil
	})
	require.NoError(t, err)

	waitFor(t, func() bool { return s.InFlight() == 0 })
	assert.True(t, ran.Load())

	stats := s.Stats()
	assert.Equal(t, uint64(3), stats.Spawned)
	assert.Equal(t, uint64(1), stats.Failed)
	assert.Equal(t, uint64(1), stats.Panicked)
	assert.Equal(t, uint64(1), stats.Succeeded)
}

func TestGo_TaskTimeout(t *testing.T) {
	s := New(20 * time.Millisecond)
	errCh := make(chan error, 1)

	_, err := s.Go("slow", func(ctx context.Context) error {
		<-ctx.Done()
		errCh <- ctx.Err()
		return ctx.Err()
	})
	require.NoError(t, err)

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(2 * time.Second):
		t.Fatal("task was not timed out")
	}
	waitFor(t, func() bool { return s.Stats().Failed == 1 })
}

func TestShutdown_WaitsForTasks(t *testing.T) {
	s := New(0)
	var finished atomic.Bool

	_, err := s.Go("quick", func(ctx context.Context) error {
		time.Sleep(20 * time.Millisecond)
		finished.Store(true)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, 0, s.Shutdown(time.Second))
	assert.True(t, finished.Load())
	assert.Equal(t, 0, s.InFlight())
}

func TestShutdown_AbandonsAfterTimeout(t *testing.T) {
	s := New(0)
	cancelled := make(chan struct{})

	_, err := s.Go("stuck", func(ctx context.Context) error {
		<-ctx.Done()
		close(cancelled)
		return ctx.Err()
	})
	require.NoError(t, err)

	start := time.Now()
	assert.Equal(t, 1, s.Shutdown(30*time.Millisecond))
	assert.Less(t, time.Since(start), time.Second)

	select {
	case <-cancelled:
	case <-time.After(2 * time.Second):
		t.Fatal("abandoned task context was not cancelled")
	}
}

func TestGo_RejectedWhileDraining(t *testing.T) {
	s := New(0)
	assert.Equal(t, 0, s.Shutdown(10*time.Millisecond))
	assert.True(t, s.Draining())

	_, err := s.Go("late", func(ctx context.Context) error { return nil })
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrServiceUnavailable, apperrors.CodeOf(err))
	assert.Equal(t, uint64(0), s.Stats().Spawned)
}
