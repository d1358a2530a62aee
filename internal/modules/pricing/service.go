// README: Pricing service keeps the active tariff table and computes price breakdowns.
package pricing

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"wali/internal/modules/geo"
	"wali/internal/types"
)

var tracer = otel.Tracer("wali/pricing")

var ErrNoTable = errors.New("pricing: no tariff table loaded")

// TariffSource supplies the tariff table at startup and on reload.
type TariffSource interface {
	LoadTariffs(ctx context.Context) (Table, error)
}

// StaticSource serves a fixed table.
type StaticSource Table

func (s StaticSource) LoadTariffs(context.Context) (Table, error) {
	return Table(s), nil
}

type Service struct {
	source TariffSource
	area   geo.ServiceArea
	engine atomic.Pointer[Engine]
}

func NewService(source TariffSource, area geo.ServiceArea) *Service {
	return &Service{source: source, area: area}
}

// Reload swaps in a freshly loaded table. On failure the previous table
// stays active.
func (s *Service) Reload(ctx context.Context) error {
	table, err := s.source.LoadTariffs(ctx)
	if err != nil {
		return err
	}
	engine, err := NewEngine(table, s.area)
	if err != nil {
		return err
	}
	s.engine.Store(engine)
	slog.InfoContext(ctx, "tariff table loaded", "currency", table.Currency, "types", len(table.Tariffs))
	return nil
}

func (s *Service) Calculate(ctx context.Context, req Request) (types.PriceBreakdown, error) {
	_, span := tracer.Start(ctx, "pricing.Calculate")
	defer span.End()
	span.SetAttributes(attribute.String("order.type", string(req.Type)))

	engine := s.engine.Load()
	if engine == nil {
		span.SetStatus(codes.Error, ErrNoTable.Error())
		return types.PriceBreakdown{}, ErrNoTable
	}
	b, err := engine.Calculate(req)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return types.PriceBreakdown{}, err
	}
	span.SetAttributes(
		attribute.Float64("distance_km", b.DistanceKm),
		attribute.Int64("total_amount", b.TotalAmount),
	)
	return b, nil
}

// Table returns the active table, if any.
func (s *Service) Table() (Table, bool) {
	engine := s.engine.Load()
	if engine == nil {
		return Table{}, false
	}
	return engine.Table(), true
}

func (s *Service) Area() geo.ServiceArea {
	return s.area
}
