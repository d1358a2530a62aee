// README: Order value objects shared by pricing and the order lifecycle.
package types

import (
	"fmt"
	"strings"
)

type OrderType string

const (
	OrderTypeDelivery OrderType = "DELIVERY"
	OrderTypeFood     OrderType = "FOOD"
	OrderTypeShopping OrderType = "SHOPPING"
)

var OrderTypes = []OrderType{OrderTypeDelivery, OrderTypeFood, OrderTypeShopping}

func ParseOrderType(v string) (OrderType, error) {
	t := OrderType(strings.ToUpper(strings.TrimSpace(v)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown order type %q", v)
	}
	return t, nil
}

func (t OrderType) Valid() bool {
	switch t {
	case OrderTypeDelivery, OrderTypeFood, OrderTypeShopping:
		return true
	}
	return false
}

// RequiresItems reports whether an order of this type must carry at least one item.
func (t OrderType) RequiresItems() bool {
	return t == OrderTypeFood || t == OrderTypeShopping
}

// Per-item bounds. With them one line's subtotal stays far below int64 range.
const (
	MaxItemQuantity = 100
	MaxUnitPrice    = 10_000_000
)

type OrderItem struct {
	Name        string `json:"name" validate:"required,min=2,max=100"`
	Description string `json:"description,omitempty" validate:"max=500"`
	Quantity    int    `json:"quantity" validate:"min=1,max=100"`
	UnitPrice   int64  `json:"unit_price" validate:"min=0,max=10000000"`
}

func (i OrderItem) Subtotal() int64 {
	return int64(i.Quantity) * i.UnitPrice
}

// PriceBreakdown is frozen into an order at creation. Amounts are whole
// units of Currency.
type PriceBreakdown struct {
	DistanceKm               float64 `json:"distance_km"`
	EstimatedDurationMinutes int     `json:"estimated_duration_minutes"`
	BasePrice                int64   `json:"base_price"`
	DeliveryFee              int64   `json:"delivery_fee"`
	ItemsSubtotal            int64   `json:"items_subtotal"`
	TotalAmount              int64   `json:"total_amount"`
	Currency                 string  `json:"currency"`
}

func (b PriceBreakdown) Consistent() bool {
	return b.TotalAmount == b.BasePrice+b.DeliveryFee+b.ItemsSubtotal
}

func (b PriceBreakdown) Total() Money {
	return Money{Amount: b.TotalAmount, Currency: b.Currency}
}
