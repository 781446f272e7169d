// README: Passenger store backed by PostgreSQL.
package passenger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/unrecano/taxi24/internal/infra"
	"github.com/unrecano/taxi24/internal/types"
)

type PostgresStore struct {
	db infra.DBTX
}

func NewPostgresStore(db infra.DBTX) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Get(ctx context.Context, id types.ID) (*Passenger, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, name, lat, lng, created_at
		FROM passengers WHERE id = $1`, string(id),
	)
	p, err := scanPassenger(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get passenger %s: %w", id, err)
	}
	return p, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]*Passenger, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, name, lat, lng, created_at
		FROM passengers
		ORDER BY created_at, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list passengers: %w", err)
	}
	defer rows.Close()

	var out []*Passenger
	for rows.Next() {
		p, err := scanPassenger(rows)
		if err != nil {
			return nil, fmt.Errorf("scan passenger: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Save(ctx context.Context, p *Passenger) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO passengers (id, name, lat, lng, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			lat = EXCLUDED.lat,
			lng = EXCLUDED.lng`,
		string(p.ID), p.Name, p.Position.Lat, p.Position.Lng, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save passenger %s: %w", p.ID, err)
	}
	return nil
}

func (s *PostgresStore) SetPosition(ctx context.Context, id types.ID, pos types.Point) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE passengers SET lat = $1, lng = $2
		WHERE id = $3`,
		pos.Lat, pos.Lng, string(id),
	)
	if err != nil {
		return fmt.Errorf("update passenger %s position: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanPassenger(row pgx.Row) (*Passenger, error) {
	var p Passenger
	var id string
	if err := row.Scan(&id, &p.Name, &p.Position.Lat, &p.Position.Lng, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.ID = types.ID(id)
	return &p, nil
}
