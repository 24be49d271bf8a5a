// Package postgres opens pooled Postgres connections through sqlx and the pgx driver.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const uniqueViolationErrCode = "23505"

// IsUniqueViolationError reports whether err carries the Postgres unique_violation SQLSTATE.
func IsUniqueViolationError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.SQLState() == uniqueViolationErrCode
}

type settings struct {
	connMaxIdleTime time.Duration
	connMaxLifetime time.Duration
	maxIdleConns    int
	maxOpenConns    int
	connectAttempts int
	connectBackoff  time.Duration
}

func defaultSettings() settings {
	return settings{
		connMaxIdleTime: 5 * time.Minute,
		connMaxLifetime: 30 * time.Minute,
		maxIdleConns:    5,
		maxOpenConns:    25,
		connectAttempts: 3,
		connectBackoff:  time.Second,
	}
}

type Option func(*settings)

func WithConnMaxIdleTime(d time.Duration) Option {
	return func(s *settings) {
		s.connMaxIdleTime = d
	}
}

func WithConnMaxLifetime(d time.Duration) Option {
	return func(s *settings) {
		s.connMaxLifetime = d
	}
}

func WithMaxIdleConns(n int) Option {
	return func(s *settings) {
		s.maxIdleConns = n
	}
}

func WithMaxOpenConns(n int) Option {
	return func(s *settings) {
		s.maxOpenConns = n
	}
}

// WithConnectRetry makes New ping the server up to attempts times, waiting
// backoff between tries. Values below one attempt are treated as one.
func WithConnectRetry(attempts int, backoff time.Duration) Option {
	return func(s *settings) {
		s.connectAttempts = attempts
		s.connectBackoff = backoff
	}
}

// New opens a pool for dsn and waits until the server answers a ping.
func New(ctx context.Context, dsn string, opts ...Option) (*sqlx.DB, error) {
	const op = "postgres.New"

	s := defaultSettings()
	for _, opt := range opts {
		opt(&s)
	}

	db, err := sqlx.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to open database: %w", op, err)
	}

	db.SetConnMaxIdleTime(s.connMaxIdleTime)
	db.SetConnMaxLifetime(s.connMaxLifetime)
	db.SetMaxIdleConns(s.maxIdleConns)
	db.SetMaxOpenConns(s.maxOpenConns)

	if err := ping(ctx, db, s.connectAttempts, s.connectBackoff); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: failed to connect to database: %w", op, err)
	}

	return db, nil
}

func ping(ctx context.Context, db *sqlx.DB, attempts int, backoff time.Duration) error {
	attempts = max(attempts, 1)

	var err error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return errors.Join(ctx.Err(), err)
			case <-time.After(backoff):
			}
		}

		if err = db.PingContext(ctx); err == nil {
			return nil
		}
	}

	return fmt.Errorf("%d attempts: %w", attempts, err)
}
