// README: PostgreSQL repository; module stores share one pgx transaction.
package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/unrecano/taxi24/internal/infra"
	"github.com/unrecano/taxi24/internal/modules/driver"
	"github.com/unrecano/taxi24/internal/modules/passenger"
	"github.com/unrecano/taxi24/internal/modules/trip"
)

type Repository struct {
	pool *pgxpool.Pool
}

var _ trip.Repository = (*Repository)(nil)

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Drivers() driver.Store       { return driver.NewPostgresStore(r.pool) }
func (r *Repository) Passengers() passenger.Store { return passenger.NewPostgresStore(r.pool) }
func (r *Repository) Trips() trip.Store           { return trip.NewPostgresStore(r.pool) }

// InTx commits when fn returns nil and rolls back otherwise.
func (r *Repository) InTx(ctx context.Context, fn func(tx trip.Tx) error) error {
	return pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return fn(txView{db: tx})
	})
}

type txView struct {
	db infra.DBTX
}

func (t txView) Drivers() driver.Store       { return driver.NewPostgresStore(t.db) }
func (t txView) Passengers() passenger.Store { return passenger.NewPostgresStore(t.db) }
func (t txView) Trips() trip.Store           { return trip.NewPostgresStore(t.db) }
