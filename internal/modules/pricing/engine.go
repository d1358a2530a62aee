package pricing

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"wali/internal/apperr"
	"wali/internal/modules/geo"
	"wali/internal/types"
)

// Engine prices orders against one immutable tariff table. It holds no
// mutable state and is safe for concurrent use.
type Engine struct {
	table Table
	area  geo.ServiceArea
}

func NewEngine(table Table, area geo.ServiceArea) (*Engine, error) {
	if err := table.Validate(); err != nil {
		return nil, err
	}
	cp := Table{Currency: table.Currency, Tariffs: make(map[types.OrderType]Tariff, len(table.Tariffs))}
	for k, v := range table.Tariffs {
		cp.Tariffs[k] = v
	}
	return &Engine{table: cp, area: area}, nil
}

func (e *Engine) Calculate(req Request) (types.PriceBreakdown, error) {
	tariff, ok := e.table.Tariffs[req.Type]
	if !ok {
		return types.PriceBreakdown{}, fmt.Errorf("%w: unknown order type %q", apperr.ErrInvalidRequest, req.Type)
	}
	if err := e.area.Check(req.Pickup); err != nil {
		return types.PriceBreakdown{}, fmt.Errorf("pickup: %w", err)
	}
	if err := e.area.Check(req.Delivery); err != nil {
		return types.PriceBreakdown{}, fmt.Errorf("delivery: %w", err)
	}
	if req.Type.RequiresItems() && len(req.Items) == 0 {
		return types.PriceBreakdown{}, fmt.Errorf("%w: %s orders need at least one item", apperr.ErrInvalidRequest, req.Type)
	}
	subtotal, err := itemsSubtotal(req.Items)
	if err != nil {
		return types.PriceBreakdown{}, err
	}

	est, err := geo.Distance(req.Pickup, req.Delivery)
	if err != nil {
		return types.PriceBreakdown{}, err
	}
	fee := tariff.DeliveryFee(est.Km)
	total, ok := addAmounts(tariff.BaseFee, fee, subtotal)
	if !ok {
		return types.PriceBreakdown{}, fmt.Errorf("%w: order total overflows", apperr.ErrInvalidRequest)
	}

	return types.PriceBreakdown{
		DistanceKm:               decimal.NewFromFloat(est.Km).Round(2).InexactFloat64(),
		EstimatedDurationMinutes: est.Minutes,
		BasePrice:                tariff.BaseFee,
		DeliveryFee:              fee,
		ItemsSubtotal:            subtotal,
		TotalAmount:              total,
		Currency:                 e.table.Currency,
	}, nil
}

func (e *Engine) Table() Table {
	return e.table
}

func itemsSubtotal(items []types.OrderItem) (int64, error) {
	var sum int64
	for i, it := range items {
		if it.Quantity < 1 || it.Quantity > types.MaxItemQuantity {
			return 0, fmt.Errorf("%w: item %d quantity %d outside [1,%d]", apperr.ErrInvalidRequest, i, it.Quantity, types.MaxItemQuantity)
		}
		if it.UnitPrice < 0 || it.UnitPrice > types.MaxUnitPrice {
			return 0, fmt.Errorf("%w: item %d unit price %d outside [0,%d]", apperr.ErrInvalidRequest, i, it.UnitPrice, int64(types.MaxUnitPrice))
		}
		var ok bool
		if sum, ok = addAmounts(sum, it.Subtotal()); !ok {
			return 0, fmt.Errorf("%w: items subtotal overflows", apperr.ErrInvalidRequest)
		}
	}
	return sum, nil
}

// addAmounts sums non-negative amounts, reporting false on int64 overflow.
func addAmounts(vs ...int64) (int64, bool) {
	var sum int64
	for _, v := range vs {
		if v < 0 || sum > math.MaxInt64-v {
			return 0, false
		}
		sum += v
	}
	return sum, true
}
