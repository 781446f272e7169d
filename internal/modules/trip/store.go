// README: Trip store backed by PostgreSQL (trips, bills, trip_state_events).
package trip

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/unrecano/taxi24/internal/infra"
	"github.com/unrecano/taxi24/internal/types"
)

const tripColumns = `id, source_lat, source_lng, destination_lat, destination_lng,
	cost_amount, currency, distance_km, status, status_version,
	driver_id, passenger_id, created_at, ended_at`

const uniqueViolation = "23505"

type PostgresStore struct {
	db infra.DBTX
}

func NewPostgresStore(db infra.DBTX) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, t *Trip) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO trips (`+tripColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		string(t.ID),
		t.Source.Lat, t.Source.Lng,
		t.Destination.Lat, t.Destination.Lng,
		t.Cost.Amount, t.Cost.Currency,
		t.DistanceKm,
		string(t.Status),
		t.StatusVersion,
		string(t.DriverID),
		string(t.PassengerID),
		t.CreatedAt,
		t.EndedAt,
	)
	if err != nil {
		return fmt.Errorf("insert trip %s: %w", t.ID, err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id types.ID) (*Trip, error) {
	row := s.db.QueryRow(ctx, `SELECT `+tripColumns+` FROM trips WHERE id = $1`, string(id))
	t, err := scanTrip(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get trip %s: %w", id, err)
	}
	return t, nil
}

func (s *PostgresStore) List(ctx context.Context, status *Status) ([]*Trip, error) {
	var filter *string
	if status != nil {
		v := string(*status)
		filter = &v
	}
	rows, err := s.db.Query(ctx, `
		SELECT `+tripColumns+`
		FROM trips
		WHERE $1::text IS NULL OR status = $1
		ORDER BY created_at, id`, filter,
	)
	if err != nil {
		return nil, fmt.Errorf("list trips: %w", err)
	}
	defer rows.Close()

	var out []*Trip
	for rows.Next() {
		t, err := scanTrip(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trip: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CompareAndSetStatus(ctx context.Context, id types.ID, from, to Status, version int, endedAt *time.Time) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE trips
		SET status = $1,
			status_version = status_version + 1,
			ended_at = COALESCE($2, ended_at)
		WHERE id = $3 AND status = $4 AND status_version = $5`,
		string(to), endedAt, string(id), string(from), version,
	)
	if err != nil {
		return false, fmt.Errorf("update trip %s status: %w", id, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) CreateBill(ctx context.Context, b *Bill) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO bills (id, trip_id, cost_amount, currency, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		string(b.ID), string(b.TripID), b.Cost.Amount, b.Cost.Currency, b.CreatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: trip %s already billed", ErrConflict, b.TripID)
	}
	if err != nil {
		return fmt.Errorf("insert bill for trip %s: %w", b.TripID, err)
	}
	return nil
}

func (s *PostgresStore) BillByTrip(ctx context.Context, tripID types.ID) (*Bill, error) {
	var b Bill
	var id, tid string
	err := s.db.QueryRow(ctx, `
		SELECT id, trip_id, cost_amount, currency, created_at
		FROM bills WHERE trip_id = $1`, string(tripID),
	).Scan(&id, &tid, &b.Cost.Amount, &b.Cost.Currency, &b.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrBillNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get bill for trip %s: %w", tripID, err)
	}
	b.ID = types.ID(id)
	b.TripID = types.ID(tid)
	return &b, nil
}

func (s *PostgresStore) AppendEvent(ctx context.Context, e *Event) error {
	var actorID *string
	if e.ActorID != nil {
		v := string(*e.ActorID)
		actorID = &v
	}
	err := s.db.QueryRow(ctx, `
		INSERT INTO trip_state_events (trip_id, from_status, to_status, actor_type, actor_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		string(e.TripID), string(e.FromStatus), string(e.ToStatus), e.ActorType, actorID, e.CreatedAt,
	).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("append trip %s event: %w", e.TripID, err)
	}
	return nil
}

// Events returns the transition log of one trip, oldest first.
func (s *PostgresStore) Events(ctx context.Context, tripID types.ID) ([]Event, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, trip_id, from_status, to_status, actor_type, actor_id, created_at
		FROM trip_state_events
		WHERE trip_id = $1
		ORDER BY id`, string(tripID),
	)
	if err != nil {
		return nil, fmt.Errorf("list trip %s events: %w", tripID, err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		var tid, from, to string
		var actorID *string
		if err := rows.Scan(&e.ID, &tid, &from, &to, &e.ActorType, &actorID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan trip event: %w", err)
		}
		e.TripID = types.ID(tid)
		e.FromStatus = Status(from)
		e.ToStatus = Status(to)
		if actorID != nil {
			id := types.ID(*actorID)
			e.ActorID = &id
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanTrip(row pgx.Row) (*Trip, error) {
	var t Trip
	var id, status, driverID, passengerID string
	err := row.Scan(
		&id,
		&t.Source.Lat, &t.Source.Lng,
		&t.Destination.Lat, &t.Destination.Lng,
		&t.Cost.Amount, &t.Cost.Currency,
		&t.DistanceKm,
		&status,
		&t.StatusVersion,
		&driverID,
		&passengerID,
		&t.CreatedAt,
		&t.EndedAt,
	)
	if err != nil {
		return nil, err
	}
	t.ID = types.ID(id)
	t.Status = Status(status)
	t.DriverID = types.ID(driverID)
	t.PassengerID = types.ID(passengerID)
	return &t, nil
}
