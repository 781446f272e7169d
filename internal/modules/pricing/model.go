// README: Pricing rate definition.
package pricing

// DefaultRateName is the pricing_rates row used for trip costs.
const DefaultRateName = "standard"

// Rate is a flat fare: BaseFare plus PerKm for every kilometre travelled,
// both in minor currency units.
type Rate struct {
	Name     string
	BaseFare int64
	PerKm    int64
	Currency string
}
