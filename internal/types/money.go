// README: Common money value object used across modules.
package types

import "fmt"

// Money is an amount in minor currency units (cents).
type Money struct {
	Amount   int64
	Currency string
}

func (m Money) String() string {
	return m.Decimal() + " " + m.Currency
}

// Decimal renders the amount in major units without the currency, e.g. "16.84".
func (m Money) Decimal() string {
	sign, v := "", m.Amount
	if v < 0 {
		sign, v = "-", -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}
