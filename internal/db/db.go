package db

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/alumnijourney/apiserver/config"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

const (
	driverName   = "postgres"
	pingTimeout  = 5 * time.Second
	retryBackoff = time.Second
	connMaxIdle  = 2 * time.Minute
	connMaxLife  = 30 * time.Minute
)

// URL builds the postgres connection URL for the configured database.
// golang-migrate accepts the same URL.
func URL(cfg config.DatabaseConfig) string {
	query := url.Values{}
	if cfg.UseSSL {
		query.Set("sslmode", "require")
	} else {
		query.Set("sslmode", "disable")
	}

	return (&url.URL{
		Scheme:   "postgres",
		Host:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		User:     url.UserPassword(cfg.User, cfg.Password),
		Path:     cfg.DBName,
		RawQuery: query.Encode(),
	}).String()
}

// Open connects and pings the database, retrying while it comes up.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*sqlx.DB, error) {
	conn, err := sqlx.Open(driverName, URL(cfg))
	if err != nil {
		return nil, err
	}
	conn.SetConnMaxIdleTime(connMaxIdle)
	conn.SetConnMaxLifetime(connMaxLife)
	if cfg.MaxOpenConns > 0 {
		conn.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		conn.SetMaxIdleConns(cfg.MaxIdleConns)
	}

	if err := ping(ctx, conn, max(cfg.ConnectAttempts, 1)); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("connect to %s:%d/%s: %w", cfg.Host, cfg.Port, cfg.DBName, err)
	}
	return conn, nil
}

func ping(ctx context.Context, conn *sqlx.DB, attempts int) error {
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		err = conn.PingContext(pingCtx)
		cancel()
		if err == nil || attempt == attempts {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryBackoff * time.Duration(attempt)):
		}
	}
	return err
}
