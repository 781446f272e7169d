// README: Trip aggregate, bill and status definitions.
package trip

import (
	"time"

	"github.com/unrecano/taxi24/internal/types"
)

type Status string

const (
	StatusNone   Status = "NONE"
	StatusActive Status = "ACTIVE"
	StatusEnd    Status = "END"
)

func (s Status) Valid() bool {
	return s == StatusActive || s == StatusEnd
}

type Trip struct {
	ID            types.ID
	Source        types.Point
	Destination   types.Point
	Cost          types.Money
	DistanceKm    float64
	Status        Status
	StatusVersion int
	DriverID      types.ID
	PassengerID   types.ID
	CreatedAt     time.Time
	EndedAt       *time.Time
}

// Bill is issued exactly once per trip, when it ends. Cost is the trip's
// cost as frozen at creation.
type Bill struct {
	ID        types.ID
	TripID    types.ID
	Cost      types.Money
	CreatedAt time.Time
}

type Event struct {
	ID         int64
	TripID     types.ID
	FromStatus Status
	ToStatus   Status
	ActorType  string
	ActorID    *types.ID
	CreatedAt  time.Time
}

// AllowedTransitions represents the trip state flow as code.
var AllowedTransitions = map[Status][]Status{
	StatusNone:   {StatusActive},
	StatusActive: {StatusEnd},
}

func CanTransition(from, to Status) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}
