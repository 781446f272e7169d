// README: Driver aggregate, availability status and list filters.
package driver

import (
	"time"

	"github.com/unrecano/taxi24/internal/types"
)

type Status string

const (
	StatusAvailable   Status = "AVAILABLE"
	StatusUnavailable Status = "UNAVAILABLE"
)

func (s Status) Valid() bool {
	return s == StatusAvailable || s == StatusUnavailable
}

type Driver struct {
	ID           types.ID
	DNI          string
	Name         string
	Manufacturer string
	Model        string
	Plate        string
	Position     types.Point
	Geohash      string
	// PositionRev is stamped by the store on every position write. Revisions
	// grow in commit order.
	PositionRev  int64
	Status       Status
	CreatedAt    time.Time
}

// Near restricts a listing to drivers at most RadiusKm from Point.
type Near struct {
	Point    types.Point
	RadiusKm float64
}

// Filter is the closed set of listing filters. Nil fields do not filter.
type Filter struct {
	Status *Status
	Near   *Near
}

func position(d *Driver) types.Point {
	return d.Position
}
