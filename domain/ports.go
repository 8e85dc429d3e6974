package domain

import (
	"context"
	"time"
)

// ArticleRepository is the persistence port for articles.
type ArticleRepository interface {
	Ensure(ctx context.Context) error
	// UpsertArticle inserts a or replaces the record with the same ArticleID.
	// inserted reports whether a new record was created.
	UpsertArticle(ctx context.Context, a Article) (inserted bool, err error)
	ListArticles(ctx context.Context, f ArticleFilter, offset, limit int) ([]Article, error)
	CountArticles(ctx context.Context, f ArticleFilter) (int64, error)
	FilterOptions(ctx context.Context) (FilterOptions, error)
	// LatestPubDate returns nil when no record carries a publication date.
	LatestPubDate(ctx context.Context) (*time.Time, error)
	Ping(ctx context.Context) error
	Close() error
}

// NewsFetcher pulls the latest batch from the upstream feed.
type NewsFetcher interface {
	Fetch(ctx context.Context) ([]FetchedArticle, error)
}

// Aggregator exposes application-level controls for background ingestion.
type Aggregator interface {
	Start(ctx context.Context) error
	Stop() error

	Trigger(ctx context.Context) (IngestSummary, error)
	SetInterval(d time.Duration) error
	Resize(workers int) error
	CurrentSchedule() string
	CurrentWorkers() int
}
