package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/thraizz/crowd-server-go/internal/config"
	"go.uber.org/zap"
)

// Querier is the part of pgx the repositories use. *pgxpool.Pool and
// pgx.Tx both satisfy it.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// DB wraps the connection pool.
type DB struct {
	*pgxpool.Pool
	logger *zap.Logger
}

// NewDB connects to Postgres and verifies the connection.
func NewDB(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*DB, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if logger != nil {
		logger.Info("connected to database",
			zap.String("host", poolCfg.ConnConfig.Host),
			zap.String("database", poolCfg.ConnConfig.Database),
			zap.Int32("max_conns", poolCfg.MaxConns),
		)
	}
	return &DB{Pool: pool, logger: logger}, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS cards (
	name          TEXT PRIMARY KEY,
	position      INTEGER NOT NULL,
	hp            INTEGER NOT NULL,
	power         INTEGER NOT NULL,
	cast_cost     INTEGER NOT NULL,
	minimum_crowd INTEGER NOT NULL,
	art           TEXT NOT NULL DEFAULT '',
	flavor        TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS game_summaries (
	game_id             TEXT PRIMARY KEY,
	turns               INTEGER NOT NULL,
	ticks               BIGINT NOT NULL,
	phase               TEXT NOT NULL,
	active              TEXT NOT NULL,
	player_crowd        INTEGER NOT NULL,
	opponent_crowd      INTEGER NOT NULL,
	player_hand         INTEGER NOT NULL,
	opponent_hand       INTEGER NOT NULL,
	player_battlefield  INTEGER NOT NULL,
	opponent_battlefield INTEGER NOT NULL,
	player_deck         INTEGER NOT NULL,
	opponent_deck       INTEGER NOT NULL,
	replay_path         TEXT NOT NULL DEFAULT '',
	started_at          TIMESTAMPTZ NOT NULL,
	ended_at            TIMESTAMPTZ NOT NULL
);
`

// EnsureSchema creates the tables if they do not exist.
func EnsureSchema(ctx context.Context, q Querier) error {
	if _, err := q.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
