// README: Driver store backed by PostgreSQL.
package driver

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/unrecano/taxi24/internal/geo"
	"github.com/unrecano/taxi24/internal/infra"
	"github.com/unrecano/taxi24/internal/types"
)

const driverColumns = `id, dni, name, manufacturer, model, plate, lat, lng, geohash, position_rev, status, created_at`

// nextRev bumps the single-row position clock. The row lock is held until
// commit, so revisions become visible in the order they were handed out.
const nextRev = `UPDATE driver_position_clock SET rev = rev + 1 RETURNING rev`

type PostgresStore struct {
	db infra.DBTX
}

func NewPostgresStore(db infra.DBTX) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Get(ctx context.Context, id types.ID) (*Driver, error) {
	row := s.db.QueryRow(ctx, `SELECT `+driverColumns+` FROM drivers WHERE id = $1`, string(id))
	d, err := scanDriver(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get driver %s: %w", id, err)
	}
	return d, nil
}

func (s *PostgresStore) List(ctx context.Context, status *Status) ([]*Driver, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+driverColumns+`
		FROM drivers
		WHERE $1::text IS NULL OR status = $1
		ORDER BY created_at, id`, statusParam(status),
	)
	if err != nil {
		return nil, fmt.Errorf("list drivers: %w", err)
	}
	return collectDrivers(rows)
}

func (s *PostgresStore) ListCandidates(ctx context.Context, ids []types.ID, since int64, status *Status) ([]*Driver, error) {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = string(id)
	}
	rows, err := s.db.Query(ctx, `
		SELECT `+driverColumns+`
		FROM drivers
		WHERE (id = ANY($1::text[]) OR position_rev > $2)
			AND ($3::text IS NULL OR status = $3)
		ORDER BY created_at, id`, keys, since, statusParam(status),
	)
	if err != nil {
		return nil, fmt.Errorf("list candidate drivers: %w", err)
	}
	return collectDrivers(rows)
}

func (s *PostgresStore) Save(ctx context.Context, d *Driver) error {
	err := s.db.QueryRow(ctx, `
		WITH clock AS (`+nextRev+`)
		INSERT INTO drivers (`+driverColumns+`)
		SELECT $1, $2, $3, $4, $5, $6, $7::double precision, $8::double precision, $9, clock.rev, $10, $11::timestamptz FROM clock
		ON CONFLICT (id) DO UPDATE SET
			dni = EXCLUDED.dni,
			name = EXCLUDED.name,
			manufacturer = EXCLUDED.manufacturer,
			model = EXCLUDED.model,
			plate = EXCLUDED.plate,
			lat = EXCLUDED.lat,
			lng = EXCLUDED.lng,
			geohash = EXCLUDED.geohash,
			position_rev = EXCLUDED.position_rev,
			status = EXCLUDED.status
		RETURNING position_rev`,
		string(d.ID), d.DNI, d.Name, d.Manufacturer, d.Model, d.Plate,
		d.Position.Lat, d.Position.Lng, d.Geohash, string(d.Status), d.CreatedAt,
	).Scan(&d.PositionRev)
	if err != nil {
		return fmt.Errorf("save driver %s: %w", d.ID, err)
	}
	return nil
}

func (s *PostgresStore) CompareAndSetStatus(ctx context.Context, id types.ID, from, to Status) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE drivers SET status = $1
		WHERE id = $2 AND status = $3`,
		string(to), string(id), string(from),
	)
	if err != nil {
		return false, fmt.Errorf("update driver %s status: %w", id, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) SetPosition(ctx context.Context, id types.ID, p types.Point) error {
	tag, err := s.db.Exec(ctx, `
		WITH clock AS (`+nextRev+`)
		UPDATE drivers SET lat = $1, lng = $2, geohash = $3, position_rev = clock.rev
		FROM clock
		WHERE drivers.id = $4`,
		p.Lat, p.Lng, geo.Geohash(p), string(id),
	)
	if err != nil {
		return fmt.Errorf("update driver %s position: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanDriver(row pgx.Row) (*Driver, error) {
	var d Driver
	var id, status string
	err := row.Scan(
		&id, &d.DNI, &d.Name, &d.Manufacturer, &d.Model, &d.Plate,
		&d.Position.Lat, &d.Position.Lng, &d.Geohash, &d.PositionRev, &status, &d.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	d.ID = types.ID(id)
	d.Status = Status(status)
	return &d, nil
}

func collectDrivers(rows pgx.Rows) ([]*Driver, error) {
	defer rows.Close()
	var out []*Driver
	for rows.Next() {
		d, err := scanDriver(rows)
		if err != nil {
			return nil, fmt.Errorf("scan driver: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func statusParam(status *Status) *string {
	if status == nil {
		return nil
	}
	v := string(*status)
	return &v
}
