// README: In-memory repository for tests and database-less runs. One mutex
// serialises every access; transactions run on a copy that replaces the
// committed state only when the callback succeeds.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/unrecano/taxi24/internal/geo"
	"github.com/unrecano/taxi24/internal/modules/driver"
	"github.com/unrecano/taxi24/internal/modules/passenger"
	"github.com/unrecano/taxi24/internal/modules/trip"
	"github.com/unrecano/taxi24/internal/types"
)

type state struct {
	drivers        map[types.ID]*driver.Driver
	driverOrder    []types.ID
	passengers     map[types.ID]*passenger.Passenger
	passengerOrder []types.ID
	trips          map[types.ID]*trip.Trip
	tripOrder      []types.ID
	bills          map[types.ID]*trip.Bill // by trip id
	events         []trip.Event
	nextEventID    int64
	positionRev    int64
}

func newState() *state {
	return &state{
		drivers:    make(map[types.ID]*driver.Driver),
		passengers: make(map[types.ID]*passenger.Passenger),
		trips:      make(map[types.ID]*trip.Trip),
		bills:      make(map[types.ID]*trip.Bill),
	}
}

func (s *state) clone() *state {
	c := newState()
	for id, d := range s.drivers {
		cp := *d
		c.drivers[id] = &cp
	}
	for id, p := range s.passengers {
		cp := *p
		c.passengers[id] = &cp
	}
	for id, t := range s.trips {
		c.trips[id] = copyTrip(t)
	}
	for id, b := range s.bills {
		cp := *b
		c.bills[id] = &cp
	}
	c.driverOrder = append([]types.ID(nil), s.driverOrder...)
	c.passengerOrder = append([]types.ID(nil), s.passengerOrder...)
	c.tripOrder = append([]types.ID(nil), s.tripOrder...)
	c.events = append([]trip.Event(nil), s.events...)
	c.nextEventID = s.nextEventID
	c.positionRev = s.positionRev
	return c
}

// Repository implements trip.Repository in memory.
type Repository struct {
	mu    sync.Mutex
	state *state
}

var _ trip.Repository = (*Repository)(nil)

func New() *Repository {
	return &Repository{state: newState()}
}

func (r *Repository) Drivers() driver.Store       { return driverStore{view{repo: r}} }
func (r *Repository) Passengers() passenger.Store { return passengerStore{view{repo: r}} }
func (r *Repository) Trips() trip.Store           { return tripStore{view{repo: r}} }

func (r *Repository) InTx(ctx context.Context, fn func(tx trip.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	staged := r.state.clone()
	if err := fn(txView{state: staged}); err != nil {
		return err
	}
	r.state = staged
	return nil
}

// view runs store operations either on a staged transaction state or,
// under the lock, on the committed state.
type view struct {
	repo  *Repository
	state *state
}

func (v view) do(fn func(*state) error) error {
	if v.state != nil {
		return fn(v.state)
	}
	v.repo.mu.Lock()
	defer v.repo.mu.Unlock()
	return fn(v.repo.state)
}

type txView struct {
	state *state
}

func (t txView) Drivers() driver.Store       { return driverStore{view{state: t.state}} }
func (t txView) Passengers() passenger.Store { return passengerStore{view{state: t.state}} }
func (t txView) Trips() trip.Store           { return tripStore{view{state: t.state}} }

type driverStore struct{ view }

func (s driverStore) Get(_ context.Context, id types.ID) (*driver.Driver, error) {
	var out *driver.Driver
	err := s.do(func(st *state) error {
		d, ok := st.drivers[id]
		if !ok {
			return driver.ErrNotFound
		}
		cp := *d
		out = &cp
		return nil
	})
	return out, err
}

func (s driverStore) List(_ context.Context, status *driver.Status) ([]*driver.Driver, error) {
	var out []*driver.Driver
	err := s.do(func(st *state) error {
		for _, id := range st.driverOrder {
			d := st.drivers[id]
			if status != nil && d.Status != *status {
				continue
			}
			cp := *d
			out = append(out, &cp)
		}
		return nil
	})
	return out, err
}

func (s driverStore) ListCandidates(_ context.Context, ids []types.ID, since int64, status *driver.Status) ([]*driver.Driver, error) {
	want := make(map[types.ID]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	var out []*driver.Driver
	err := s.do(func(st *state) error {
		for _, id := range st.driverOrder {
			d := st.drivers[id]
			if _, hit := want[id]; !hit && d.PositionRev <= since {
				continue
			}
			if status != nil && d.Status != *status {
				continue
			}
			cp := *d
			out = append(out, &cp)
		}
		return nil
	})
	return out, err
}

func (s driverStore) Save(_ context.Context, d *driver.Driver) error {
	return s.do(func(st *state) error {
		if _, ok := st.drivers[d.ID]; !ok {
			st.driverOrder = append(st.driverOrder, d.ID)
		}
		st.positionRev++
		d.PositionRev = st.positionRev
		cp := *d
		st.drivers[d.ID] = &cp
		return nil
	})
}

func (s driverStore) CompareAndSetStatus(_ context.Context, id types.ID, from, to driver.Status) (bool, error) {
	var swapped bool
	err := s.do(func(st *state) error {
		d, ok := st.drivers[id]
		if !ok || d.Status != from {
			return nil
		}
		d.Status = to
		swapped = true
		return nil
	})
	return swapped, err
}

func (s driverStore) SetPosition(_ context.Context, id types.ID, p types.Point) error {
	return s.do(func(st *state) error {
		d, ok := st.drivers[id]
		if !ok {
			return driver.ErrNotFound
		}
		st.positionRev++
		d.Position = p
		d.Geohash = geo.Geohash(p)
		d.PositionRev = st.positionRev
		return nil
	})
}

type passengerStore struct{ view }

func (s passengerStore) Get(_ context.Context, id types.ID) (*passenger.Passenger, error) {
	var out *passenger.Passenger
	err := s.do(func(st *state) error {
		p, ok := st.passengers[id]
		if !ok {
			return passenger.ErrNotFound
		}
		cp := *p
		out = &cp
		return nil
	})
	return out, err
}

func (s passengerStore) List(_ context.Context) ([]*passenger.Passenger, error) {
	var out []*passenger.Passenger
	err := s.do(func(st *state) error {
		for _, id := range st.passengerOrder {
			cp := *st.passengers[id]
			out = append(out, &cp)
		}
		return nil
	})
	return out, err
}

func (s passengerStore) Save(_ context.Context, p *passenger.Passenger) error {
	return s.do(func(st *state) error {
		if _, ok := st.passengers[p.ID]; !ok {
			st.passengerOrder = append(st.passengerOrder, p.ID)
		}
		cp := *p
		st.passengers[p.ID] = &cp
		return nil
	})
}

func (s passengerStore) SetPosition(_ context.Context, id types.ID, pos types.Point) error {
	return s.do(func(st *state) error {
		p, ok := st.passengers[id]
		if !ok {
			return passenger.ErrNotFound
		}
		p.Position = pos
		return nil
	})
}

type tripStore struct{ view }

func copyTrip(t *trip.Trip) *trip.Trip {
	cp := *t
	if t.EndedAt != nil {
		at := *t.EndedAt
		cp.EndedAt = &at
	}
	return &cp
}

func (s tripStore) Get(_ context.Context, id types.ID) (*trip.Trip, error) {
	var out *trip.Trip
	err := s.do(func(st *state) error {
		t, ok := st.trips[id]
		if !ok {
			return trip.ErrNotFound
		}
		out = copyTrip(t)
		return nil
	})
	return out, err
}

func (s tripStore) List(_ context.Context, status *trip.Status) ([]*trip.Trip, error) {
	var out []*trip.Trip
	err := s.do(func(st *state) error {
		for _, id := range st.tripOrder {
			t := st.trips[id]
			if status != nil && t.Status != *status {
				continue
			}
			out = append(out, copyTrip(t))
		}
		return nil
	})
	return out, err
}

func (s tripStore) Create(_ context.Context, t *trip.Trip) error {
	return s.do(func(st *state) error {
		if _, ok := st.trips[t.ID]; ok {
			return fmt.Errorf("trip %s already exists", t.ID)
		}
		st.trips[t.ID] = copyTrip(t)
		st.tripOrder = append(st.tripOrder, t.ID)
		return nil
	})
}

func (s tripStore) CompareAndSetStatus(_ context.Context, id types.ID, from, to trip.Status, version int, endedAt *time.Time) (bool, error) {
	var swapped bool
	err := s.do(func(st *state) error {
		t, ok := st.trips[id]
		if !ok || t.Status != from || t.StatusVersion != version {
			return nil
		}
		t.Status = to
		t.StatusVersion++
		if endedAt != nil {
			at := *endedAt
			t.EndedAt = &at
		}
		swapped = true
		return nil
	})
	return swapped, err
}

func (s tripStore) CreateBill(_ context.Context, b *trip.Bill) error {
	return s.do(func(st *state) error {
		if _, ok := st.bills[b.TripID]; ok {
			return fmt.Errorf("%w: trip %s already billed", trip.ErrConflict, b.TripID)
		}
		cp := *b
		st.bills[b.TripID] = &cp
		return nil
	})
}

func (s tripStore) BillByTrip(_ context.Context, tripID types.ID) (*trip.Bill, error) {
	var out *trip.Bill
	err := s.do(func(st *state) error {
		b, ok := st.bills[tripID]
		if !ok {
			return trip.ErrBillNotFound
		}
		cp := *b
		out = &cp
		return nil
	})
	return out, err
}

func (s tripStore) AppendEvent(_ context.Context, e *trip.Event) error {
	return s.do(func(st *state) error {
		st.nextEventID++
		e.ID = st.nextEventID
		st.events = append(st.events, *e)
		return nil
	})
}

func (s tripStore) Events(_ context.Context, tripID types.ID) ([]trip.Event, error) {
	var out []trip.Event
	err := s.do(func(st *state) error {
		for _, e := range st.events {
			if e.TripID == tripID {
				out = append(out, e)
			}
		}
		return nil
	})
	return out, err
}
