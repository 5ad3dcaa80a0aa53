// Package postgres implements the core store contracts against the
// relational read views and write tables using pgx.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Config holds the database connection settings.
type Config struct {
	DSN             string `json:"dsn"`
	MaxConns        int32  `json:"max_conns"`
	ConnTimeoutSecs int    `json:"conn_timeout_seconds"`
}

// SetDefaults fills zero-valued fields.
func (c *Config) SetDefaults() {
	if c.MaxConns == 0 {
		c.MaxConns = 8
	}
	if c.ConnTimeoutSecs == 0 {
		c.ConnTimeoutSecs = 10
	}
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	if c.DSN == "" {
		return fmt.Errorf("postgres: dsn is required")
	}
	return nil
}

// Store implements every core store interface on one pgx pool.
type Store struct {
	pool *pgxpool.Pool
}

// Connect opens a pooled connection and pings it.
func Connect(ctx context.Context, cfg Config) (*Store, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	pc.MaxConns = cfg.MaxConns
	ctx, cancel := context.WithTimeout(ctx, time.Duration(cfg.ConnTimeoutSecs)*time.Second)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &Store{pool: pool}, nil
}

// New wraps an existing pool. Used by tests.
func New(pool *pgxpool.Pool) *Store { return &Store{pool: pool} }

// Close releases the pool.
func (s *Store) Close() { s.pool.Close() }

// EnsureIndexes creates the uniqueness constraint that guards concurrent
// same-wave dispatch. The application-level already-offered check is not
// atomic; this index is the authoritative guard.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE UNIQUE INDEX IF NOT EXISTS ux_match_offers_load_escort_wave
		ON match_offers (load_id, escort_id, wave)`)
	if err != nil {
		return fmt.Errorf("ensure offer index: %w", err)
	}
	return nil
}
