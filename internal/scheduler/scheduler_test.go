package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/sitebuild/internal/config"
	"git.home.luguber.info/inful/sitebuild/internal/livereload"
)

type countingRunner struct {
	mu    sync.Mutex
	calls [][]string
}

func (c *countingRunner) Run(_ context.Context, _ config.Config, names ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, names)
	return nil
}

func (c *countingRunner) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

type countingBroadcaster struct{ n atomic.Int32 }

func (c *countingBroadcaster) Broadcast(livereload.Kind, string) { c.n.Add(1) }

func TestEvery(t *testing.T) {
	t.Run("returns job id for valid interval", func(t *testing.T) {
		s, err := New()
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Stop() })

		id, err := s.Every("test", 10*time.Second, func() {})
		require.NoError(t, err)
		require.NotEmpty(t, id)
	})

	t.Run("rejects non-positive interval", func(t *testing.T) {
		s, err := New()
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Stop() })

		_, err = s.Every("test", 0, func() {})
		require.ErrorIs(t, err, ErrInvalidInterval)
	})
}

func TestScheduleRebuild(t *testing.T) {
	s, err := New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Stop() })

	runner := &countingRunner{}
	hub := &countingBroadcaster{}
	_, err = s.ScheduleRebuild(t.Context(), config.Config{}, 30*time.Millisecond, runner, hub, "styles", "scripts")
	require.NoError(t, err)
	s.Start()

	require.Eventually(t, func() bool { return runner.count() >= 2 }, 3*time.Second, 10*time.Millisecond)
	assert.GreaterOrEqual(t, hub.n.Load(), int32(1))
	runner.mu.Lock()
	assert.Equal(t, []string{"styles", "scripts"}, runner.calls[0])
	runner.mu.Unlock()
}
