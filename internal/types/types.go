// README: Shared identifiers and geographic points.
package types

import "github.com/google/uuid"

type ID string

// NewID returns a random identifier for a newly persisted entity.
func NewID() ID {
	return ID(uuid.NewString())
}

// Point is a WGS84 position in decimal degrees.
type Point struct {
	Lat float64
	Lng float64
}
