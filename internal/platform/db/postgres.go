package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Querier is the subset of pgxpool.Pool and pgx.Tx used by repositories.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Pools pairs the request-scoped pool with the elevated service-role pool.
// The service pool connects as a role that bypasses row-level security and is
// reserved for privilege checks and admin lookups.
type Pools struct {
	App     *pgxpool.Pool
	Service *pgxpool.Pool
}

// New creates a new PostgreSQL connection pool.
func New(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("platform/db: parse config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("platform/db: new pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("platform/db: ping: %w", err)
	}

	return pool, nil
}

// Open connects both pools. An empty serviceDSN reuses the app pool.
func Open(ctx context.Context, appDSN, serviceDSN string) (*Pools, error) {
	app, err := New(ctx, appDSN)
	if err != nil {
		return nil, err
	}
	if serviceDSN == "" || serviceDSN == appDSN {
		return &Pools{App: app, Service: app}, nil
	}
	service, err := New(ctx, serviceDSN)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("platform/db: service pool: %w", err)
	}
	return &Pools{App: app, Service: service}, nil
}

// Close releases both pools.
func (p *Pools) Close() {
	if p == nil {
		return
	}
	if p.Service != nil && p.Service != p.App {
		p.Service.Close()
	}
	if p.App != nil {
		p.App.Close()
	}
}

var (
	_ Querier = (*pgxpool.Pool)(nil)
	_ Querier = (pgx.Tx)(nil)
)
