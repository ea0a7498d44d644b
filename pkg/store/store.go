// Package store loads the dimensional model into Postgres as an online
// transactional sink. Unlike the lake and warehouse sinks, the whole load
// runs inside a single transaction, so a failed run leaves no partial state.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Config holds explicit Postgres connection settings.
type Config struct {
	Host     string
	Port     uint16
	Database string
	Username string
	Password string
	MaxConns int32
}

// Validate checks the required connection settings.
func (c *Config) Validate() error {
	switch {
	case c.Host == "":
		return fmt.Errorf("host is required")
	case c.Port == 0:
		return fmt.Errorf("port is required")
	case c.Database == "":
		return fmt.Errorf("database is required")
	case c.Username == "":
		return fmt.Errorf("username is required")
	case c.MaxConns <= 0:
		return fmt.Errorf("max conns must be positive, got %d", c.MaxConns)
	}
	return nil
}

func (c *Config) connString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.Username, c.Password, c.Host, c.Port, c.Database)
}

// NewPool creates and pings a Postgres connection pool.
func NewPool(ctx context.Context, log *slog.Logger, cfg Config) (*pgxpool.Pool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid postgres config: %w", err)
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.connString())
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres config: %w", err)
	}
	poolConfig.MaxConns = cfg.MaxConns
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	log.Info("Postgres pool initialized",
		"host", cfg.Host, "port", cfg.Port, "database", cfg.Database, "username", cfg.Username)
	return pool, nil
}
