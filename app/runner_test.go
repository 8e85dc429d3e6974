package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newshub/internal/logger"
)

func newRunner(t *testing.T, f *stubFetcher) *Runner {
	t.Helper()
	svc := NewIngestService(newStore(t), f, 2, logger.Discard())
	r, err := NewRunner(svc, "", logger.Discard())
	require.NoError(t, err)
	return r
}

func TestNewRunnerRejectsBadSchedule(t *testing.T) {
	svc := NewIngestService(nil, nil, 1, logger.Discard())
	_, err := NewRunner(svc, "every now and then", logger.Discard())
	assert.Error(t, err)
}

func TestRunnerRunsAtStartup(t *testing.T) {
	f := &stubFetcher{items: fetched("a")}
	r := newRunner(t, f)
	assert.Equal(t, DefaultSchedule, r.CurrentSchedule())

	require.NoError(t, r.Start(context.Background()))
	assert.Error(t, r.Start(context.Background()), "second start")

	require.Eventually(t, func() bool { return f.calls.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, r.Stop())
	require.NoError(t, r.Stop(), "stop is idempotent")
}

func TestRunnerStopCancelsStartupRun(t *testing.T) {
	f := &stubFetcher{
		items:   fetched("a"),
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	r := newRunner(t, f)
	require.NoError(t, r.Start(context.Background()))
	<-f.started

	stopped := make(chan struct{})
	go func() {
		r.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("stop did not return while a run was blocked")
	}
}

func TestRunnerTrigger(t *testing.T) {
	r := newRunner(t, &stubFetcher{items: fetched("a", "b")})

	sum, err := r.Trigger(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Inserted)
}

func TestRunnerSetIntervalAndResize(t *testing.T) {
	r := newRunner(t, &stubFetcher{})

	require.NoError(t, r.SetInterval(90*time.Minute))
	assert.Equal(t, "@every 1h30m0s", r.CurrentSchedule())
	assert.Error(t, r.SetInterval(0))

	require.NoError(t, r.Start(context.Background()))
	t.Cleanup(func() { r.Stop() })
	require.NoError(t, r.SetInterval(time.Hour))
	assert.Equal(t, "@every 1h0m0s", r.CurrentSchedule())
	assert.Len(t, r.cron.Entries(), 1, "old entry is replaced")

	require.NoError(t, r.Resize(7))
	assert.Equal(t, 7, r.CurrentWorkers())
	assert.Error(t, r.Resize(-1))
}
