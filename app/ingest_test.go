package app

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newshub/adapter/sqlite"
	"newshub/domain"
	"newshub/internal/logger"
)

type stubFetcher struct {
	mu    sync.Mutex
	items []domain.FetchedArticle
	err   error
	calls atomic.Int32

	// started and release, when set, make Fetch block until release is closed.
	started chan struct{}
	release chan struct{}
}

func (f *stubFetcher) Fetch(ctx context.Context) ([]domain.FetchedArticle, error) {
	f.calls.Add(1)
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.items, f.err
}

func (f *stubFetcher) set(items []domain.FetchedArticle, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items, f.err = items, err
}

// failingRepo fails upserts for one article id.
type failingRepo struct {
	*sqlite.Repository
	failID string
}

func (r failingRepo) UpsertArticle(ctx context.Context, a domain.Article) (bool, error) {
	if a.ArticleID == r.failID {
		return false, errors.New("disk full")
	}
	return r.Repository.UpsertArticle(ctx, a)
}

func newStore(t *testing.T) *sqlite.Repository {
	t.Helper()
	repo, err := sqlite.Open(filepath.Join(t.TempDir(), "articles.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	require.NoError(t, repo.Ensure(context.Background()))
	return repo
}

func fetched(ids ...string) []domain.FetchedArticle {
	out := make([]domain.FetchedArticle, 0, len(ids))
	for _, id := range ids {
		out = append(out, domain.FetchedArticle{ArticleID: id, Title: "title " + id, Language: "english"})
	}
	return out
}

func count(t *testing.T, repo domain.ArticleRepository) int64 {
	t.Helper()
	n, err := repo.CountArticles(context.Background(), domain.ArticleFilter{})
	require.NoError(t, err)
	return n
}

func TestFetchAndStoreInsertsThenUpdates(t *testing.T) {
	repo := newStore(t)
	f := &stubFetcher{items: fetched("a", "b", "c")}
	svc := NewIngestService(repo, f, 3, logger.Discard())
	ctx := context.Background()

	sum, err := svc.FetchAndStore(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, sum.RunID)
	assert.Equal(t, 3, sum.Fetched)
	assert.Equal(t, 3, sum.Inserted)
	assert.Equal(t, 0, sum.Updated)
	assert.Equal(t, int64(3), count(t, repo))

	items := fetched("a", "b", "c")
	items[0].Title = "changed"
	f.set(items, nil)

	sum, err = svc.FetchAndStore(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, sum.Inserted)
	assert.Equal(t, 3, sum.Updated)
	assert.Equal(t, int64(3), count(t, repo), "re-ingesting must not duplicate")

	got, err := repo.ListArticles(ctx, domain.ArticleFilter{Search: "changed"}, 0, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ArticleID)
}

func TestFetchAndStoreSkipsItemsWithoutID(t *testing.T) {
	repo := newStore(t)
	items := append(fetched("a"), domain.FetchedArticle{Title: "orphan"})
	svc := NewIngestService(repo, &stubFetcher{items: items}, 2, logger.Discard())

	sum, err := svc.FetchAndStore(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Fetched)
	assert.Equal(t, 1, sum.Inserted)
	assert.Equal(t, 1, sum.Skipped)
	assert.Equal(t, int64(1), count(t, repo))
}

func TestFetchAndStoreEmptyFeed(t *testing.T) {
	repo := newStore(t)
	svc := NewIngestService(repo, &stubFetcher{}, 2, logger.Discard())

	sum, err := svc.FetchAndStore(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sum.Fetched)
	assert.Zero(t, sum.Inserted)
	assert.Zero(t, count(t, repo))
}

func TestFetchAndStoreFetchErrorWritesNothing(t *testing.T) {
	repo := newStore(t)
	f := &stubFetcher{items: fetched("a", "b")}
	svc := NewIngestService(repo, f, 2, logger.Discard())
	ctx := context.Background()

	_, err := svc.FetchAndStore(ctx)
	require.NoError(t, err)

	upstream := errors.New("status 401")
	f.set(nil, upstream)
	_, err = svc.FetchAndStore(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, upstream)
	assert.Equal(t, int64(2), count(t, repo))
}

func TestFetchAndStorePersistenceErrorAbortsRun(t *testing.T) {
	store := newStore(t)
	repo := failingRepo{Repository: store, failID: "b"}
	svc := NewIngestService(repo, &stubFetcher{items: fetched("a", "b", "c")}, 1, logger.Discard())

	sum, err := svc.FetchAndStore(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upsert article b")
	assert.Equal(t, 1, sum.Inserted)
	assert.Equal(t, int64(1), count(t, store), "items after the failure are not stored")
}

func TestFetchAndStoreRejectsOverlappingRun(t *testing.T) {
	repo := newStore(t)
	f := &stubFetcher{
		items:   fetched("a"),
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	svc := NewIngestService(repo, f, 1, logger.Discard())
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := svc.FetchAndStore(ctx)
		done <- err
	}()
	<-f.started

	_, err := svc.FetchAndStore(ctx)
	assert.ErrorIs(t, err, ErrRunInProgress)
	assert.Equal(t, int32(1), f.calls.Load(), "rejected run must not fetch")

	close(f.release)
	require.NoError(t, <-done)
	assert.Equal(t, int64(1), count(t, repo))

	// guard is released once the first run finishes
	f.started = nil
	_, err = svc.FetchAndStore(ctx)
	assert.NoError(t, err)
}

func TestIngestResize(t *testing.T) {
	svc := NewIngestService(nil, nil, 0, logger.Discard())
	assert.Equal(t, 1, svc.Workers())
	require.NoError(t, svc.Resize(5))
	assert.Equal(t, 5, svc.Workers())
	assert.Error(t, svc.Resize(0))
	assert.Error(t, svc.Resize(MaxWorkers+1))
	assert.Error(t, svc.Resize(10000))
	assert.Equal(t, 5, svc.Workers())
	require.NoError(t, svc.Resize(MaxWorkers))

	assert.Equal(t, MaxWorkers, NewIngestService(nil, nil, 500, logger.Discard()).Workers())
}
