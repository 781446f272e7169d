// README: Passenger aggregate.
package passenger

import (
	"time"

	"github.com/unrecano/taxi24/internal/types"
)

type Passenger struct {
	ID        types.ID
	Name      string
	Position  types.Point
	CreatedAt time.Time
}
