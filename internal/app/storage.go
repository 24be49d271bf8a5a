package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vadimbarashkov/shortlink/internal/adapter/repository/file"
	"github.com/vadimbarashkov/shortlink/internal/adapter/repository/memory"
	"github.com/vadimbarashkov/shortlink/internal/config"
	"github.com/vadimbarashkov/shortlink/internal/entity"
	"github.com/vadimbarashkov/shortlink/migrations"
	"github.com/vadimbarashkov/shortlink/pkg/postgres"
	"github.com/vadimbarashkov/shortlink/pkg/redis"
	"github.com/vadimbarashkov/shortlink/pkg/sqlite"

	postgresRepo "github.com/vadimbarashkov/shortlink/internal/adapter/repository/postgres"
	redisRepo "github.com/vadimbarashkov/shortlink/internal/adapter/repository/redis"
	sqliteRepo "github.com/vadimbarashkov/shortlink/internal/adapter/repository/sqlite"
)

type urlRepository interface {
	Save(ctx context.Context, shortCode, originalURL string) (*entity.URL, error)
	RetrieveByShortCode(ctx context.Context, shortCode string) (*entity.URL, error)
	RetrieveAll(ctx context.Context) ([]*entity.URL, error)
	IncrementAccessCount(ctx context.Context, shortCode string) error
	Remove(ctx context.Context, shortCode string) error
}

// store is an opened repository together with the release of whatever it holds.
type store struct {
	repo   urlRepository
	driver string
	close  func() error
}

func noopClose() error { return nil }

// openStore opens the configured backend. When a durable backend cannot be
// opened the service keeps running on the in-memory repository.
func openStore(ctx context.Context, cfg config.Storage, logger *slog.Logger) *store {
	if cfg.Driver == config.DriverMemory {
		logger.Warn("using in-memory storage, data will be lost on restart")
		return &store{repo: memory.NewURLRepository(), driver: config.DriverMemory, close: noopClose}
	}

	s, err := openDurableStore(ctx, cfg)
	if err != nil {
		logger.Warn(
			"failed to open storage, falling back to in-memory storage",
			slog.String("driver", cfg.Driver),
			slog.Any("err", err),
		)
		return &store{repo: memory.NewURLRepository(), driver: config.DriverMemory, close: noopClose}
	}

	logger.Info("storage opened", slog.String("driver", s.driver))

	return s
}

func openDurableStore(ctx context.Context, cfg config.Storage) (*store, error) {
	const op = "app.openDurableStore"

	switch cfg.Driver {
	case config.DriverPostgres:
		dsn := cfg.Postgres.DSN()

		db, err := postgres.New(
			ctx,
			dsn,
			postgres.WithConnMaxIdleTime(cfg.Postgres.ConnMaxIdleTime),
			postgres.WithConnMaxLifetime(cfg.Postgres.ConnMaxLifetime),
			postgres.WithMaxIdleConns(cfg.Postgres.MaxIdleConns),
			postgres.WithMaxOpenConns(cfg.Postgres.MaxOpenConns),
			postgres.WithConnectRetry(cfg.Postgres.ConnectAttempts, cfg.Postgres.ConnectBackoff),
		)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to connect to database: %w", op, err)
		}

		if err := postgres.RunMigrations(migrations.Postgres, "postgres", dsn); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: failed to run migrations: %w", op, err)
		}

		return &store{repo: postgresRepo.NewURLRepository(db), driver: cfg.Driver, close: db.Close}, nil

	case config.DriverSQLite:
		db, err := sqlite.New(ctx, cfg.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to open database: %w", op, err)
		}

		if err := sqlite.RunMigrations(migrations.SQLite, "sqlite", cfg.SQLite.Path); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: failed to run migrations: %w", op, err)
		}

		return &store{repo: sqliteRepo.NewURLRepository(db), driver: cfg.Driver, close: db.Close}, nil

	case config.DriverFile:
		repo, err := file.NewURLRepository(cfg.File.Path)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to open file storage: %w", op, err)
		}

		return &store{repo: repo, driver: cfg.Driver, close: noopClose}, nil

	case config.DriverRedis:
		client, err := redis.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to connect to redis: %w", op, err)
		}

		return &store{repo: redisRepo.NewURLRepository(client, cfg.Redis.KeyPrefix), driver: cfg.Driver, close: client.Close}, nil

	default:
		return nil, fmt.Errorf("%s: unknown storage driver %q", op, cfg.Driver)
	}
}
