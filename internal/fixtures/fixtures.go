// README: The "core" data set: five drivers (four AVAILABLE) around Chiclayo,
// two passengers and one ACTIVE trip. It seeds development databases and
// backs the lifecycle and HTTP tests.
package fixtures

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	"github.com/unrecano/taxi24/internal/geo"
	"github.com/unrecano/taxi24/internal/modules/driver"
	"github.com/unrecano/taxi24/internal/modules/passenger"
	"github.com/unrecano/taxi24/internal/modules/trip"
	"github.com/unrecano/taxi24/internal/types"
)

//go:embed core.json
var coreJSON []byte

type Set struct {
	Drivers    []*driver.Driver
	Passengers []*passenger.Passenger
	Trips      []*trip.Trip
}

type fileDriver struct {
	ID           string    `json:"id"`
	DNI          string    `json:"dni"`
	Name         string    `json:"name"`
	Manufacturer string    `json:"manufacturer"`
	Model        string    `json:"model"`
	Plate        string    `json:"plate"`
	Lat          float64   `json:"lat"`
	Lon          float64   `json:"lon"`
	Status       string    `json:"status"`
	Created      time.Time `json:"created"`
}

type filePassenger struct {
	ID      string    `json:"id"`
	Name    string    `json:"name"`
	Lat     float64   `json:"lat"`
	Lon     float64   `json:"lon"`
	Created time.Time `json:"created"`
}

type fileTrip struct {
	ID             string    `json:"id"`
	SourceLat      float64   `json:"source_lat"`
	SourceLon      float64   `json:"source_lon"`
	DestinationLat float64   `json:"destination_lat"`
	DestinationLon float64   `json:"destination_lon"`
	Cost           int64     `json:"cost"`
	Currency       string    `json:"currency"`
	Status         string    `json:"status"`
	Driver         string    `json:"driver"`
	Passenger      string    `json:"passenger"`
	Created        time.Time `json:"created"`
}

type file struct {
	Drivers    []fileDriver    `json:"drivers"`
	Passengers []filePassenger `json:"passengers"`
	Trips      []fileTrip      `json:"trips"`
}

// Core returns a fresh copy of the core data set.
func Core() (*Set, error) {
	var f file
	if err := json.Unmarshal(coreJSON, &f); err != nil {
		return nil, fmt.Errorf("parse core fixtures: %w", err)
	}

	set := &Set{}
	for _, d := range f.Drivers {
		pos := types.Point{Lat: d.Lat, Lng: d.Lon}
		set.Drivers = append(set.Drivers, &driver.Driver{
			ID:           types.ID(d.ID),
			DNI:          d.DNI,
			Name:         d.Name,
			Manufacturer: d.Manufacturer,
			Model:        d.Model,
			Plate:        d.Plate,
			Position:     pos,
			Geohash:      geo.Geohash(pos),
			Status:       driver.Status(d.Status),
			CreatedAt:    d.Created,
		})
	}
	for _, p := range f.Passengers {
		set.Passengers = append(set.Passengers, &passenger.Passenger{
			ID:        types.ID(p.ID),
			Name:      p.Name,
			Position:  types.Point{Lat: p.Lat, Lng: p.Lon},
			CreatedAt: p.Created,
		})
	}
	for _, t := range f.Trips {
		src := types.Point{Lat: t.SourceLat, Lng: t.SourceLon}
		dst := types.Point{Lat: t.DestinationLat, Lng: t.DestinationLon}
		set.Trips = append(set.Trips, &trip.Trip{
			ID:          types.ID(t.ID),
			Source:      src,
			Destination: dst,
			Cost:        types.Money{Amount: t.Cost, Currency: t.Currency},
			DistanceKm:  geo.Distance(src, dst),
			Status:      trip.Status(t.Status),
			DriverID:    types.ID(t.Driver),
			PassengerID: types.ID(t.Passenger),
			CreatedAt:   t.Created,
		})
	}
	return set, nil
}

// Load writes set into repo in one transaction. It does nothing and
// returns false when repo already holds drivers.
func Load(ctx context.Context, repo trip.Repository, set *Set) (bool, error) {
	existing, err := repo.Drivers().List(ctx, nil)
	if err != nil {
		return false, err
	}
	if len(existing) > 0 {
		return false, nil
	}

	err = repo.InTx(ctx, func(tx trip.Tx) error {
		for _, d := range set.Drivers {
			if err := tx.Drivers().Save(ctx, d); err != nil {
				return err
			}
		}
		for _, p := range set.Passengers {
			if err := tx.Passengers().Save(ctx, p); err != nil {
				return err
			}
		}
		for _, t := range set.Trips {
			if err := tx.Trips().Create(ctx, t); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("load fixtures: %w", err)
	}
	return true, nil
}

// LoadCore loads the core set into repo and returns it.
func LoadCore(ctx context.Context, repo trip.Repository) (*Set, error) {
	set, err := Core()
	if err != nil {
		return nil, err
	}
	if _, err := Load(ctx, repo, set); err != nil {
		return nil, err
	}
	return set, nil
}
