// README: Persistence and collaborator contracts of the trip lifecycle.
package trip

import (
	"context"
	"time"

	"github.com/unrecano/taxi24/internal/modules/driver"
	"github.com/unrecano/taxi24/internal/modules/passenger"
	"github.com/unrecano/taxi24/internal/types"
)

// Store persists trips, their bills and the transition log. List returns
// trips in insertion order.
type Store interface {
	Get(ctx context.Context, id types.ID) (*Trip, error)
	List(ctx context.Context, status *Status) ([]*Trip, error)
	Create(ctx context.Context, t *Trip) error
	// CompareAndSetStatus applies from -> to only while the trip is still at
	// status from and version, bumping the version.
	CompareAndSetStatus(ctx context.Context, id types.ID, from, to Status, version int, endedAt *time.Time) (bool, error)
	// CreateBill fails with ErrConflict when the trip already has a bill.
	CreateBill(ctx context.Context, b *Bill) error
	BillByTrip(ctx context.Context, tripID types.ID) (*Bill, error)
	AppendEvent(ctx context.Context, e *Event) error
	Events(ctx context.Context, tripID types.ID) ([]Event, error)
}

// Tx exposes the stores taking part in one unit of work.
type Tx interface {
	Drivers() driver.Store
	Passengers() passenger.Store
	Trips() Store
}

// Repository runs fn atomically: either every write made through tx is
// kept or none is. Outside InTx the embedded stores act on committed data.
type Repository interface {
	Tx
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

type Pricer interface {
	Estimate(ctx context.Context, distanceKm float64) (types.Money, error)
}

// Notifier is told about committed transitions. Failures never roll back a
// trip.
type Notifier interface {
	TripCreated(ctx context.Context, t *Trip) error
	TripEnded(ctx context.Context, t *Trip, b *Bill) error
}
