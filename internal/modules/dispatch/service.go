// README: Dispatch service records courier positions and ranks couriers for confirmed orders.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"wali/internal/apperr"
	"wali/internal/modules/geo"
	"wali/internal/modules/order"
	"wali/internal/types"
)

const overFetchFactor = 4

type PositionStore interface {
	SetPosition(ctx context.Context, c Courier) error
	Remove(ctx context.Context, id types.ID) error
	Nearby(ctx context.Context, p types.Point, radiusKm float64, limit int) ([]Courier, error)
}

type OrderLoader interface {
	Load(ctx context.Context, id types.ID) (*order.Order, error)
}

type Service struct {
	store  PositionStore
	orders OrderLoader
	area   geo.ServiceArea
	cfg    Config
	now    func() time.Time
}

func NewService(store PositionStore, orders OrderLoader, area geo.ServiceArea, cfg Config) *Service {
	if cfg.RadiusKm <= 0 {
		cfg.RadiusKm = 5
	}
	if cfg.MaxCandidates <= 0 {
		cfg.MaxCandidates = 10
	}
	return &Service{store: store, orders: orders, area: area, cfg: cfg, now: time.Now}
}

func (s *Service) UpdatePosition(ctx context.Context, courierID types.ID, p types.Point) error {
	if courierID == "" {
		return fmt.Errorf("%w: courier id required", apperr.ErrInvalidRequest)
	}
	if err := s.area.Check(p); err != nil {
		return err
	}
	return s.store.SetPosition(ctx, Courier{ID: courierID, Position: p, SeenAt: s.now().UTC()})
}

func (s *Service) RemoveCourier(ctx context.Context, courierID types.ID) error {
	return s.store.Remove(ctx, courierID)
}

// Candidates lists couriers near the pickup of a CONFIRMED order, nearest
// first. Assignment itself goes through the order service.
func (s *Service) Candidates(ctx context.Context, orderID types.ID) ([]Candidate, error) {
	o, err := s.orders.Load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status != order.StatusConfirmed {
		return nil, fmt.Errorf("%w: order is %s, couriers are proposed only for CONFIRMED orders", apperr.ErrInvalidState, o.Status)
	}

	couriers, err := s.nearbyFresh(ctx, o.Pickup.Point)
	if err != nil {
		return nil, err
	}
	out := make([]Candidate, 0, len(couriers))
	for _, c := range couriers {
		est, err := geo.Distance(c.Position, o.Pickup.Point)
		if err != nil {
			slog.WarnContext(ctx, "skipping courier with bad position", "courier_id", c.ID, "err", err)
			continue
		}
		out = append(out, Candidate{
			CourierID:  c.ID,
			Position:   c.Position,
			DistanceKm: est.Km,
			EtaMinutes: est.Minutes,
			Zone:       s.area.ZoneOf(c.Position),
		})
	}
	geo.SortByDistance(out, func(c Candidate) float64 { return c.DistanceKm })
	if len(out) > s.cfg.MaxCandidates {
		out = out[:s.cfg.MaxCandidates]
	}
	slog.DebugContext(ctx, "dispatch candidates", "order_id", o.ID, "count", len(out))
	return out, nil
}

// nearbyFresh widens the geo search until it holds MaxCandidates couriers
// with a recent position or the radius runs out of couriers.
func (s *Service) nearbyFresh(ctx context.Context, p types.Point) ([]Courier, error) {
	limit := s.cfg.MaxCandidates * overFetchFactor
	for {
		couriers, err := s.store.Nearby(ctx, p, s.cfg.RadiusKm, limit)
		if err != nil {
			return nil, err
		}
		fresh := s.dropStale(couriers)
		if len(fresh) >= s.cfg.MaxCandidates || len(couriers) < limit {
			return fresh, nil
		}
		limit *= 2
	}
}

func (s *Service) dropStale(couriers []Courier) []Courier {
	if s.cfg.PositionMaxAge <= 0 {
		return couriers
	}
	now := s.now()
	fresh := couriers[:0:0]
	for _, c := range couriers {
		if !c.SeenAt.IsZero() && now.Sub(c.SeenAt) > s.cfg.PositionMaxAge {
			continue
		}
		fresh = append(fresh, c)
	}
	return fresh
}
