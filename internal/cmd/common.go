package cmd

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"newshub/adapter/newsdata"
	"newshub/app"
	"newshub/domain"
	"newshub/internal/config"
	"newshub/internal/db"
	"newshub/internal/logger"
)

// env holds what every command needs: configuration, a logger and, when
// opened, the article store.
type env struct {
	cfg  config.Config
	log  *slog.Logger
	repo domain.ArticleRepository
}

func loadEnv() (*env, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, log: logger.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)}, nil
}

func (e *env) openStore(ctx context.Context) error {
	repo, err := db.Open(ctx, e.cfg)
	if err != nil {
		return err
	}
	e.repo = repo
	return nil
}

func (e *env) close() {
	if e.repo != nil {
		e.repo.Close()
	}
}

func (e *env) ingestService() (*app.IngestService, error) {
	if e.cfg.FeedAPIKey == "" {
		return nil, errors.New("FEED_API_KEY is required to fetch news")
	}
	fetcher := newsdata.NewHTTPFetcher(e.cfg.FeedURL, e.cfg.FeedAPIKey, e.cfg.FeedLanguage, e.cfg.FeedTimeout).
		WithLogger(e.log)
	return app.NewIngestService(e.repo, fetcher, e.cfg.IngestWorkers, e.log), nil
}
