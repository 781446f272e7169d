// README: Trip service implements the trip lifecycle (create, end, bill).
package trip

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/unrecano/taxi24/internal/apperrors"
	"github.com/unrecano/taxi24/internal/geo"
	"github.com/unrecano/taxi24/internal/modules/driver"
	"github.com/unrecano/taxi24/internal/modules/passenger"
	"github.com/unrecano/taxi24/internal/types"
)

var (
	ErrNotFound     = fmt.Errorf("trip %w", apperrors.ErrNotFound)
	ErrBillNotFound = fmt.Errorf("bill %w", apperrors.ErrNotFound)
	ErrInvalidState = fmt.Errorf("trip: %w", apperrors.ErrInvalidState)
	ErrConflict     = fmt.Errorf("trip state %w", apperrors.ErrConflict)
	ErrInvalidInput = fmt.Errorf("trip: %w", apperrors.ErrInvalidInput)
)

const (
	actorPassenger = "passenger"
	actorSystem    = "system"
)

type Service struct {
	repo     Repository
	pricing  Pricer
	drivers  *driver.Registry
	notifier Notifier
}

// NewService wires the lifecycle. drivers is used for proximity queries and
// index upkeep after commit; when nil a registry without index is built over
// repo. notifier may be nil.
func NewService(repo Repository, pricing Pricer, drivers *driver.Registry, notifier Notifier) *Service {
	if drivers == nil {
		drivers = driver.NewRegistry(repo.Drivers(), nil)
	}
	return &Service{repo: repo, pricing: pricing, drivers: drivers, notifier: notifier}
}

type CreateCommand struct {
	Source      types.Point
	Destination types.Point
	PassengerID types.ID
	DriverID    types.ID
}

type EndCommand struct {
	TripID types.ID
}

// Create assigns an AVAILABLE driver to a new ACTIVE trip. The driver becomes
// UNAVAILABLE in the same transaction the trip is written in.
func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*Trip, error) {
	if cmd.PassengerID == "" || cmd.DriverID == "" {
		return nil, fmt.Errorf("%w: passenger and driver are required", ErrInvalidInput)
	}
	if err := geo.ValidatePoint(cmd.Source); err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}
	if err := geo.ValidatePoint(cmd.Destination); err != nil {
		return nil, fmt.Errorf("destination: %w", err)
	}

	distance := geo.Distance(cmd.Source, cmd.Destination)
	cost, err := s.pricing.Estimate(ctx, distance)
	if err != nil {
		return nil, fmt.Errorf("estimate trip cost: %w", err)
	}

	now := time.Now().UTC()
	t := &Trip{
		ID:            types.NewID(),
		Source:        cmd.Source,
		Destination:   cmd.Destination,
		Cost:          cost,
		DistanceKm:    distance,
		Status:        StatusActive,
		StatusVersion: 0,
		DriverID:      cmd.DriverID,
		PassengerID:   cmd.PassengerID,
		CreatedAt:     now,
	}

	err = s.repo.InTx(ctx, func(tx Tx) error {
		if _, err := tx.Passengers().Get(ctx, cmd.PassengerID); err != nil {
			return err
		}
		drivers := driver.NewRegistry(tx.Drivers(), nil)
		d, err := drivers.Get(ctx, cmd.DriverID)
		if err != nil {
			return err
		}
		if d.Status != driver.StatusAvailable {
			return fmt.Errorf("%w: driver %s is %s", ErrInvalidState, d.ID, d.Status)
		}
		if err := drivers.SetStatus(ctx, d.ID, driver.StatusAvailable, driver.StatusUnavailable); err != nil {
			return err
		}
		if err := tx.Trips().Create(ctx, t); err != nil {
			return err
		}
		return tx.Trips().AppendEvent(ctx, &Event{
			TripID:     t.ID,
			FromStatus: StatusNone,
			ToStatus:   StatusActive,
			ActorType:  actorPassenger,
			ActorID:    &cmd.PassengerID,
			CreatedAt:  now,
		})
	})
	if err != nil {
		return nil, err
	}

	if s.notifier != nil {
		if err := s.notifier.TripCreated(ctx, t); err != nil {
			log.Printf("notify trip %s created: %v", t.ID, err)
		}
	}
	return t, nil
}

// End closes an ACTIVE trip: it frees the driver, moves driver and passenger
// to the destination and issues the bill, all in one transaction.
func (s *Service) End(ctx context.Context, cmd EndCommand) (*Trip, error) {
	if cmd.TripID == "" {
		return nil, fmt.Errorf("%w: missing trip id", ErrInvalidInput)
	}

	var ended *Trip
	var bill *Bill
	err := s.repo.InTx(ctx, func(tx Tx) error {
		t, err := tx.Trips().Get(ctx, cmd.TripID)
		if err != nil {
			return err
		}
		if !CanTransition(t.Status, StatusEnd) {
			return fmt.Errorf("%w: trip %s is %s", ErrInvalidState, t.ID, t.Status)
		}

		now := time.Now().UTC()
		ok, err := tx.Trips().CompareAndSetStatus(ctx, t.ID, t.Status, StatusEnd, t.StatusVersion, &now)
		if err != nil {
			return err
		}
		if !ok {
			return ErrConflict
		}

		drivers := driver.NewRegistry(tx.Drivers(), nil)
		if err := drivers.SetPosition(ctx, t.DriverID, t.Destination); err != nil {
			return err
		}
		if err := passenger.NewService(tx.Passengers()).SetPosition(ctx, t.PassengerID, t.Destination); err != nil {
			return err
		}
		err = drivers.SetStatus(ctx, t.DriverID, driver.StatusUnavailable, driver.StatusAvailable)
		if errors.Is(err, driver.ErrConflict) {
			// only two statuses: the driver is already AVAILABLE
			log.Printf("trip %s: driver %s was already available", t.ID, t.DriverID)
		} else if err != nil {
			return err
		}

		b := &Bill{
			ID:        types.NewID(),
			TripID:    t.ID,
			Cost:      t.Cost,
			CreatedAt: now,
		}
		if err := tx.Trips().CreateBill(ctx, b); err != nil {
			return err
		}
		if err := tx.Trips().AppendEvent(ctx, &Event{
			TripID:     t.ID,
			FromStatus: t.Status,
			ToStatus:   StatusEnd,
			ActorType:  actorSystem,
			CreatedAt:  now,
		}); err != nil {
			return err
		}

		t.Status = StatusEnd
		t.StatusVersion++
		t.EndedAt = &now
		ended, bill = t, b
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.drivers.Reindex(ctx, ended.DriverID)
	if s.notifier != nil {
		if err := s.notifier.TripEnded(ctx, ended, bill); err != nil {
			log.Printf("notify trip %s ended: %v", ended.ID, err)
		}
	}
	return ended, nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Trip, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: missing trip id", ErrInvalidInput)
	}
	return s.repo.Trips().Get(ctx, id)
}

// List returns trips in insertion order, optionally only those in status.
func (s *Service) List(ctx context.Context, status *Status) ([]*Trip, error) {
	if status != nil && !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, *status)
	}
	return s.repo.Trips().List(ctx, status)
}

func (s *Service) Bill(ctx context.Context, tripID types.ID) (*Bill, error) {
	if _, err := s.Get(ctx, tripID); err != nil {
		return nil, err
	}
	return s.repo.Trips().BillByTrip(ctx, tripID)
}

// ClosestAvailableDrivers returns the AVAILABLE drivers within radiusKm of
// the passenger's current position, closest first.
func (s *Service) ClosestAvailableDrivers(ctx context.Context, passengerID types.ID, radiusKm float64) ([]*driver.Driver, error) {
	if passengerID == "" {
		return nil, fmt.Errorf("%w: missing passenger id", ErrInvalidInput)
	}
	p, err := s.repo.Passengers().Get(ctx, passengerID)
	if err != nil {
		return nil, err
	}
	return s.drivers.ClosestAvailable(ctx, p.Position, radiusKm)
}

// Events returns the transition log of a trip, oldest first.
func (s *Service) Events(ctx context.Context, tripID types.ID) ([]Event, error) {
	if _, err := s.Get(ctx, tripID); err != nil {
		return nil, err
	}
	return s.repo.Trips().Events(ctx, tripID)
}
