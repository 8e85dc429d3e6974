package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"newshub/adapter/mongodb"
	"newshub/adapter/postgres"
	"newshub/adapter/sqlite"
	"newshub/domain"
	"newshub/internal/config"
)

// Open connects to the configured store, checks it is reachable and makes
// sure the schema exists.
func Open(ctx context.Context, cfg config.Config) (domain.ArticleRepository, error) {
	var (
		repo domain.ArticleRepository
		err  error
	)
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		var conn *sql.DB
		conn, err = OpenPostgres(cfg)
		if err == nil {
			repo = postgres.New(conn)
		}
	case config.DriverMongo:
		repo, err = mongodb.Open(ctx, cfg.MongoURI, cfg.MongoDatabase)
	case config.DriverSQLite:
		repo, err = sqlite.Open(cfg.SQLitePath)
	default:
		err = fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.StoreDriver, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := repo.Ping(pingCtx); err != nil {
		repo.Close()
		return nil, fmt.Errorf("failed to reach %s: %w", cfg.StoreDriver, err)
	}
	if err := repo.Ensure(ctx); err != nil {
		repo.Close()
		return nil, fmt.Errorf("db ensure failed: %w", err)
	}
	return repo, nil
}

func OpenPostgres(cfg config.Config) (*sql.DB, error) {
	dbConn, err := sql.Open("postgres", cfg.PostgresURL())
	if err != nil {
		return nil, err
	}
	dbConn.SetMaxOpenConns(10)
	dbConn.SetMaxIdleConns(10)
	dbConn.SetConnMaxLifetime(30 * time.Minute)
	return dbConn, nil
}
