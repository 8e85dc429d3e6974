package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"newshub/domain"
)

// ErrRunInProgress is returned when a run is requested while another one is
// still upserting.
var ErrRunInProgress = errors.New("ingestion run already in progress")

// MaxWorkers bounds upsert concurrency.
const MaxWorkers = 15

// IngestService fetches the feed and upserts every item by article id.
type IngestService struct {
	repo    domain.ArticleRepository
	fetcher domain.NewsFetcher
	log     *slog.Logger

	workers atomic.Int32
	running atomic.Bool
}

func NewIngestService(repo domain.ArticleRepository, fetcher domain.NewsFetcher, workers int, log *slog.Logger) *IngestService {
	workers = min(max(workers, 1), MaxWorkers)
	s := &IngestService{repo: repo, fetcher: fetcher, log: log}
	s.workers.Store(int32(workers))
	return s
}

func (s *IngestService) Workers() int { return int(s.workers.Load()) }

func (s *IngestService) Resize(workers int) error {
	if workers <= 0 || workers > MaxWorkers {
		return fmt.Errorf("workers must be between 1 and %d, got %d", MaxWorkers, workers)
	}
	s.workers.Store(int32(workers))
	return nil
}

// FetchAndStore performs one ingestion run. A fetch failure aborts the run
// before anything is written; the first upsert failure stops the remaining
// upserts but keeps what was already stored.
func (s *IngestService) FetchAndStore(ctx context.Context) (domain.IngestSummary, error) {
	if !s.running.CompareAndSwap(false, true) {
		s.log.Warn("ingestion run skipped, previous run still in progress")
		return domain.IngestSummary{}, ErrRunInProgress
	}
	defer s.running.Store(false)

	start := time.Now()
	sum := domain.IngestSummary{RunID: uuid.NewString()}
	log := s.log.With("run_id", sum.RunID)

	items, err := s.fetcher.Fetch(ctx)
	if err != nil {
		log.Error("fetch news failed", "error", err)
		return sum, fmt.Errorf("fetch news: %w", err)
	}
	sum.Fetched = len(items)
	if len(items) == 0 {
		sum.Duration = time.Since(start)
		log.Info("no articles returned by feed")
		return sum, nil
	}

	var inserted, updated atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.Workers())
	for _, it := range items {
		a, ok := Normalize(it)
		if !ok {
			sum.Skipped++
			continue
		}
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			ins, err := s.repo.UpsertArticle(gctx, a)
			if err != nil {
				return fmt.Errorf("upsert article %s: %w", a.ArticleID, err)
			}
			if ins {
				inserted.Add(1)
			} else {
				updated.Add(1)
			}
			return nil
		})
	}
	err = g.Wait()

	sum.Inserted = int(inserted.Load())
	sum.Updated = int(updated.Load())
	sum.Duration = time.Since(start)
	if err != nil {
		log.Error("store articles failed",
			"error", err, "inserted", sum.Inserted, "updated", sum.Updated)
		return sum, fmt.Errorf("store articles: %w", err)
	}

	log.Info("news ingestion finished",
		"fetched", sum.Fetched,
		"inserted", sum.Inserted,
		"updated", sum.Updated,
		"skipped", sum.Skipped,
		"duration", sum.Duration.Round(time.Millisecond),
	)
	return sum, nil
}
