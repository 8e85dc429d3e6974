package app

import (
	"context"
	"math"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"newshub/domain"
)

const (
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 100
)

// QueryService answers the read-only API. It never writes.
type QueryService struct {
	repo domain.ArticleRepository
	log  *slog.Logger
}

func NewQueryService(repo domain.ArticleRepository, log *slog.Logger) *QueryService {
	return &QueryService{repo: repo, log: log}
}

// ListArticles returns one page, newest first, together with the total
// number of matches. Out-of-range paging falls back to defaults.
func (s *QueryService) ListArticles(ctx context.Context, q domain.ArticleQuery) (domain.ArticleList, error) {
	if q.Page < 1 {
		q.Page = DefaultPage
	}
	if q.Limit < 1 {
		q.Limit = DefaultLimit
	}
	if q.Limit > MaxLimit {
		q.Limit = MaxLimit
	}
	if maxPage := math.MaxInt/q.Limit + 1; q.Page > maxPage {
		q.Page = maxPage
	}

	var (
		articles []domain.Article
		total    int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		articles, err = s.repo.ListArticles(gctx, q.Filter, q.Offset(), q.Limit)
		return err
	})
	g.Go(func() error {
		var err error
		total, err = s.repo.CountArticles(gctx, q.Filter)
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.ArticleList{}, err
	}

	if articles == nil {
		articles = []domain.Article{}
	}
	return domain.ArticleList{
		Total:      total,
		Page:       q.Page,
		TotalPages: TotalPages(total, q.Limit),
		Articles:   articles,
	}, nil
}

// TotalPages is ceil(total/limit).
func TotalPages(total int64, limit int) int64 {
	if limit <= 0 || total <= 0 {
		return 0
	}
	return (total + int64(limit) - 1) / int64(limit)
}

func (s *QueryService) FilterOptions(ctx context.Context) (domain.FilterOptions, error) {
	opts, err := s.repo.FilterOptions(ctx)
	if err != nil {
		return domain.FilterOptions{}, err
	}
	opts.Languages = nonNil(opts.Languages)
	opts.Countries = nonNil(opts.Countries)
	opts.Categories = nonNil(opts.Categories)
	opts.Datatypes = nonNil(opts.Datatypes)
	return opts, nil
}

// Status reports store size and freshness. A failed ping is reported, not
// returned.
func (s *QueryService) Status(ctx context.Context) (domain.StoreStatus, error) {
	st := domain.StoreStatus{Database: domain.DatabaseConnected}
	if err := s.repo.Ping(ctx); err != nil {
		s.log.Warn("store ping failed", "error", err)
		st.Database = domain.DatabaseDisconnected
	}

	total, err := s.repo.CountArticles(ctx, domain.ArticleFilter{})
	if err != nil {
		return st, err
	}
	latest, err := s.repo.LatestPubDate(ctx)
	if err != nil {
		return st, err
	}
	st.TotalArticles = total
	st.LatestArticle = latest
	return st, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
