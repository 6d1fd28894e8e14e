package persistence

import (
	"context"
	"database/sql"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/tadbeer/helpdesk/internal/config"
)

// Postgres wraps a pgx connection pool and the database/sql handle the
// repositories run on.
type Postgres struct {
	Pool *pgxpool.Pool
	DB   *sql.DB
}

// NewPostgres establishes a connection pool. An empty DSN yields a nil
// *Postgres so the caller can fall back to the in-memory store.
func NewPostgres(ctx context.Context, cfg config.PostgresConfig, logger *zap.Logger) (*Postgres, error) {
	if cfg.DSN == "" {
		logger.Warn("POSTGRES_DSN not provided; using in-memory store")
		return nil, nil
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, err
	}

	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.ConnMaxIdleSec > 0 {
		poolCfg.MaxConnIdleTime = time.Duration(cfg.ConnMaxIdleSec) * time.Second
	}
	if cfg.ConnMaxLifeSec > 0 {
		poolCfg.MaxConnLifetime = time.Duration(cfg.ConnMaxLifeSec) * time.Second
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	logger.Info("connected to postgres")
	return &Postgres{Pool: pool, DB: stdlib.OpenDBFromPool(pool)}, nil
}

// Close releases pool resources.
func (p *Postgres) Close() {
	if p == nil {
		return
	}
	if p.DB != nil {
		_ = p.DB.Close()
	}
	if p.Pool != nil {
		p.Pool.Close()
	}
}
