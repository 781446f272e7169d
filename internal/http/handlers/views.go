// README: JSON representations of drivers, passengers, trips, bills and trip events.
package handlers

import (
	"time"

	"github.com/unrecano/taxi24/internal/modules/driver"
	"github.com/unrecano/taxi24/internal/modules/passenger"
	"github.com/unrecano/taxi24/internal/modules/trip"
)

type driverView struct {
	ID           string  `json:"id"`
	DNI          string  `json:"dni"`
	Name         string  `json:"name"`
	Manufacturer string  `json:"manufacturer"`
	Model        string  `json:"model"`
	Plate        string  `json:"plate"`
	Lat          float64 `json:"lat"`
	Lon          float64 `json:"lon"`
	Status       string  `json:"status"`
}

func newDriverView(d *driver.Driver) driverView {
	return driverView{
		ID:           string(d.ID),
		DNI:          d.DNI,
		Name:         d.Name,
		Manufacturer: d.Manufacturer,
		Model:        d.Model,
		Plate:        d.Plate,
		Lat:          d.Position.Lat,
		Lon:          d.Position.Lng,
		Status:       string(d.Status),
	}
}

func newDriverViews(drivers []*driver.Driver) []driverView {
	out := make([]driverView, len(drivers))
	for i, d := range drivers {
		out[i] = newDriverView(d)
	}
	return out
}

type passengerView struct {
	ID   string  `json:"id"`
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

func newPassengerView(p *passenger.Passenger) passengerView {
	return passengerView{
		ID:   string(p.ID),
		Name: p.Name,
		Lat:  p.Position.Lat,
		Lon:  p.Position.Lng,
	}
}

type tripView struct {
	ID             string     `json:"id"`
	SourceLat      float64    `json:"source_lat"`
	SourceLon      float64    `json:"source_lon"`
	DestinationLat float64    `json:"destination_lat"`
	DestinationLon float64    `json:"destination_lon"`
	Cost           string     `json:"cost"`
	Currency       string     `json:"currency"`
	Distance       float64    `json:"distance"`
	Status         string     `json:"status"`
	Driver         string     `json:"driver"`
	Passenger      string     `json:"passenger"`
	Created        time.Time  `json:"created"`
	Ended          *time.Time `json:"ended,omitempty"`
}

func newTripView(t *trip.Trip) tripView {
	return tripView{
		ID:             string(t.ID),
		SourceLat:      t.Source.Lat,
		SourceLon:      t.Source.Lng,
		DestinationLat: t.Destination.Lat,
		DestinationLon: t.Destination.Lng,
		Cost:           t.Cost.Decimal(),
		Currency:       t.Cost.Currency,
		Distance:       t.DistanceKm,
		Status:         string(t.Status),
		Driver:         string(t.DriverID),
		Passenger:      string(t.PassengerID),
		Created:        t.CreatedAt,
		Ended:          t.EndedAt,
	}
}

type billView struct {
	ID       string    `json:"id"`
	Trip     string    `json:"trip"`
	Cost     string    `json:"cost"`
	Currency string    `json:"currency"`
	Created  time.Time `json:"created"`
}

func newBillView(b *trip.Bill) billView {
	return billView{
		ID:       string(b.ID),
		Trip:     string(b.TripID),
		Cost:     b.Cost.Decimal(),
		Currency: b.Cost.Currency,
		Created:  b.CreatedAt,
	}
}

type eventView struct {
	ID      int64     `json:"id"`
	From    string    `json:"from"`
	To      string    `json:"to"`
	Actor   string    `json:"actor"`
	ActorID *string   `json:"actor_id,omitempty"`
	Created time.Time `json:"created"`
}

func newEventViews(events []trip.Event) []eventView {
	out := make([]eventView, len(events))
	for i, e := range events {
		out[i] = eventView{
			ID:      e.ID,
			From:    string(e.FromStatus),
			To:      string(e.ToStatus),
			Actor:   e.ActorType,
			Created: e.CreatedAt,
		}
		if e.ActorID != nil {
			id := string(*e.ActorID)
			out[i].ActorID = &id
		}
	}
	return out
}
