// README: Pricing store backed by PostgreSQL.
package pricing

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/unrecano/taxi24/internal/infra"
)

type Store struct {
	db infra.DBTX
}

var _ RateStore = (*Store)(nil)

func NewStore(db infra.DBTX) *Store {
	return &Store{db: db}
}

func (s *Store) GetRate(ctx context.Context, name string) (Rate, error) {
	r := Rate{Name: name}
	err := s.db.QueryRow(ctx, `
		SELECT base_fare, per_km, currency
		FROM pricing_rates
		WHERE name = $1`, name,
	).Scan(&r.BaseFare, &r.PerKm, &r.Currency)
	if errors.Is(err, pgx.ErrNoRows) {
		return Rate{}, ErrRateNotFound
	}
	if err != nil {
		return Rate{}, fmt.Errorf("get pricing rate %q: %w", name, err)
	}
	return r, nil
}

// SaveRate inserts or replaces a named rate.
func (s *Store) SaveRate(ctx context.Context, r Rate) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO pricing_rates (name, base_fare, per_km, currency)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (name) DO UPDATE SET
			base_fare = EXCLUDED.base_fare,
			per_km = EXCLUDED.per_km,
			currency = EXCLUDED.currency`,
		r.Name, r.BaseFare, r.PerKm, r.Currency,
	)
	if err != nil {
		return fmt.Errorf("save pricing rate %q: %w", r.Name, err)
	}
	return nil
}
