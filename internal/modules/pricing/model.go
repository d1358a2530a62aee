// README: Tariff definitions for each order type.
package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"wali/internal/types"
)

// Tariff is the rate card for one order type. Amounts are whole units of the
// table currency.
type Tariff struct {
	BaseFee   int64   `yaml:"base_fee" json:"base_fee"`
	PerKmRate int64   `yaml:"per_km_rate" json:"per_km_rate"`
	FreeKm    float64 `yaml:"free_km" json:"free_km"`
	MinFee    int64   `yaml:"min_fee" json:"min_fee"`
	MaxFee    int64   `yaml:"max_fee" json:"max_fee"`
}

func (t Tariff) validate() error {
	if t.BaseFee < 0 || t.PerKmRate < 0 || t.MinFee < 0 || t.MaxFee < 0 || t.FreeKm < 0 {
		return fmt.Errorf("negative value in tariff %+v", t)
	}
	if t.MinFee > t.MaxFee {
		return fmt.Errorf("min_fee %d greater than max_fee %d", t.MinFee, t.MaxFee)
	}
	return nil
}

// DeliveryFee charges PerKmRate for every kilometre past FreeKm, rounded up
// to a whole unit, then clamps the result to [MinFee, MaxFee].
func (t Tariff) DeliveryFee(km float64) int64 {
	chargeable := decimal.NewFromFloat(km).Sub(decimal.NewFromFloat(t.FreeKm))
	if chargeable.IsNegative() {
		chargeable = decimal.Zero
	}
	fee := chargeable.Mul(decimal.NewFromInt(t.PerKmRate)).Ceil().IntPart()
	if fee < t.MinFee {
		return t.MinFee
	}
	if fee > t.MaxFee {
		return t.MaxFee
	}
	return fee
}

// Table maps every order type to its tariff.
type Table struct {
	Currency string
	Tariffs  map[types.OrderType]Tariff
}

func (tb Table) Validate() error {
	if tb.Currency == "" {
		return fmt.Errorf("pricing: table currency is empty")
	}
	for _, ot := range types.OrderTypes {
		t, ok := tb.Tariffs[ot]
		if !ok {
			return fmt.Errorf("pricing: no tariff for %s", ot)
		}
		if err := t.validate(); err != nil {
			return fmt.Errorf("pricing: %s: %w", ot, err)
		}
	}
	return nil
}

type Request struct {
	Type     types.OrderType
	Pickup   types.Point
	Delivery types.Point
	Items    []types.OrderItem
}
