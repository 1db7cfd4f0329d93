package refresh

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsBadInput(t *testing.T) {
	_, err := New("feeds", "not a schedule", nil, 0, func(context.Context) error { return nil })
	assert.Error(t, err)

	_, err = New("feeds", "*/5 * * * *", nil, 0, nil)
	assert.Error(t, err)
}

func TestStartRunsImmediately(t *testing.T) {
	var runs atomic.Int32
	s, err := New("feeds", "@every 1h", time.UTC, time.Second, func(ctx context.Context) error {
		runs.Add(1)
		return nil
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	defer s.Stop()

	assert.Eventually(t, func() bool { return runs.Load() == 1 }, 5*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool { last, _ := s.Last(); return !last.IsZero() }, 5*time.Second, 10*time.Millisecond)
	last, lastErr := s.Last()
	assert.False(t, last.IsZero())
	assert.NoError(t, lastErr)
	assert.True(t, s.Next().After(time.Now()))
}

func TestStartDoesNotWaitForFirstRun(t *testing.T) {
	entered := make(chan struct{})
	s, err := New("feeds", "@every 1h", time.UTC, time.Hour, func(ctx context.Context) error {
		close(entered)
		<-ctx.Done()
		return ctx.Err()
	})
	require.NoError(t, err)

	started := make(chan struct{})
	go func() {
		s.Start(context.Background())
		close(started)
	}()
	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("Start blocked on the first run")
	}
	<-entered

	// Stop cancels the hung run and waits for it.
	s.Stop()
	_, lastErr := s.Last()
	assert.ErrorIs(t, lastErr, context.Canceled)
}

func TestScheduledRuns(t *testing.T) {
	var runs atomic.Int32
	s, err := New("feeds", "@every 1s", time.UTC, time.Second, func(ctx context.Context) error {
		runs.Add(1)
		return nil
	})
	require.NoError(t, err)

	s.Start(context.Background())
	defer s.Stop()

	assert.Eventually(t, func() bool { return runs.Load() >= 2 }, 5*time.Second, 50*time.Millisecond)
}

func TestRunNowRecordsErrorsAndSkipsOverlap(t *testing.T) {
	boom := errors.New("boom")
	release := make(chan struct{})
	entered := make(chan struct{})
	s, err := New("feeds", "@every 1h", nil, time.Minute, func(ctx context.Context) error {
		close(entered)
		<-release
		return boom
	})
	require.NoError(t, err)

	done := make(chan bool)
	go func() { done <- s.RunNow() }()
	<-entered

	assert.False(t, s.RunNow())
	close(release)
	assert.True(t, <-done)

	_, lastErr := s.Last()
	assert.ErrorIs(t, lastErr, boom)
}
