package control

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newshub/app"
	"newshub/domain"
	"newshub/internal/logger"
)

type fakeAggregator struct {
	mu         sync.Mutex
	schedule   string
	workers    int
	triggerErr error
	triggers   int
}

func (f *fakeAggregator) Start(context.Context) error { return nil }
func (f *fakeAggregator) Stop() error                 { return nil }

func (f *fakeAggregator) Trigger(context.Context) (domain.IngestSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.triggers++
	if f.triggerErr != nil {
		return domain.IngestSummary{}, f.triggerErr
	}
	return domain.IngestSummary{RunID: "run-1", Fetched: 4, Inserted: 3, Updated: 1}, nil
}

func (f *fakeAggregator) SetInterval(d time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if d <= 0 {
		return errors.New("interval must be > 0")
	}
	f.schedule = "@every " + d.String()
	return nil
}

func (f *fakeAggregator) Resize(n int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n <= 0 {
		return errors.New("workers must be > 0")
	}
	f.workers = n
	return nil
}

func (f *fakeAggregator) CurrentSchedule() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.schedule
}

func (f *fakeAggregator) CurrentWorkers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.workers
}

func (f *fakeAggregator) triggerCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.triggers
}

func newControl(t *testing.T) (*fakeAggregator, *Client) {
	t.Helper()
	agg := &fakeAggregator{schedule: "0 */6 * * *", workers: 3}
	srv := httptest.NewServer(NewServer(agg, logger.Discard()))
	t.Cleanup(srv.Close)
	return agg, NewClient(srv.URL)
}

func TestTrigger(t *testing.T) {
	agg, c := newControl(t)

	sum, err := c.Trigger()
	require.NoError(t, err)
	assert.Equal(t, "run-1", sum.RunID)
	assert.Equal(t, 3, sum.Inserted)
	assert.Equal(t, 1, sum.Updated)
	assert.Equal(t, 1, agg.triggerCount())
}

func TestTriggerInProgress(t *testing.T) {
	agg, c := newControl(t)
	agg.mu.Lock()
	agg.triggerErr = app.ErrRunInProgress
	agg.mu.Unlock()

	_, err := c.Trigger()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already in progress")
}

func TestSetInterval(t *testing.T) {
	agg, c := newControl(t)

	old, updated, err := c.SetInterval(2 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "0 */6 * * *", old)
	assert.Equal(t, "@every 2h0m0s", updated)
	assert.Equal(t, "@every 2h0m0s", agg.CurrentSchedule())

	_, _, err = c.SetInterval(0)
	assert.Error(t, err)
}

func TestSetWorkers(t *testing.T) {
	agg, c := newControl(t)

	old, err := c.SetWorkers(8)
	require.NoError(t, err)
	assert.Equal(t, 3, old)
	assert.Equal(t, 8, agg.CurrentWorkers())

	_, err = c.SetWorkers(0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "workers must be > 0")
	assert.Equal(t, 8, agg.CurrentWorkers())
}

func TestUnknownRoute(t *testing.T) {
	agg := &fakeAggregator{}
	srv := httptest.NewServer(NewServer(agg, logger.Discard()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/trigger")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Zero(t, agg.triggerCount())
}

func TestTryListen(t *testing.T) {
	ln, err := TryListen("127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	_, err = TryListen(ln.Addr().String())
	assert.ErrorIs(t, err, ErrAlreadyRunning)
}

func TestSetWorkersBoundedByRunner(t *testing.T) {
	ingest := app.NewIngestService(nil, nil, 3, logger.Discard())
	runner, err := app.NewRunner(ingest, "", logger.Discard())
	require.NoError(t, err)
	srv := httptest.NewServer(NewServer(runner, logger.Discard()))
	defer srv.Close()
	c := NewClient(srv.URL)

	_, err = c.SetWorkers(10000)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
	assert.Equal(t, 3, runner.CurrentWorkers())

	old, err := c.SetWorkers(app.MaxWorkers)
	require.NoError(t, err)
	assert.Equal(t, 3, old)
	assert.Equal(t, app.MaxWorkers, runner.CurrentWorkers())
}
