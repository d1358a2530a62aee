// README: Order service orchestrates creation, pricing and state transitions.
package order

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"wali/internal/apperr"
	"wali/internal/modules/pricing"
	"wali/internal/types"
)

var tracer = otel.Tracer("wali/order")

const (
	createAttempts = 3
	repriceReason  = "price_recalculated"
)

type Pricer interface {
	Calculate(ctx context.Context, req pricing.Request) (types.PriceBreakdown, error)
}

type Service struct {
	repo     Repository
	pricing  Pricer
	cache    Cache
	validate *validator.Validate
	now      func() time.Time
}

// NewService wires the service. cache may be nil.
func NewService(repo Repository, pricing Pricer, cache Cache) *Service {
	return &Service{
		repo:     repo,
		pricing:  pricing,
		cache:    cache,
		validate: validator.New(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// MaxItems caps the item lines of one order; keep in step with the Items tag.
const MaxItems = 50

type CreateCommand struct {
	CustomerID  types.ID        `validate:"required,max=64"`
	Type        types.OrderType `validate:"required"`
	Pickup      types.Place
	Delivery    types.Place
	Items       []types.OrderItem `validate:"max=50,dive"`
	Notes       string            `validate:"max=500"`
	ScheduledAt *time.Time
}

type TransitionCommand struct {
	OrderID types.ID
	Target  Status
	TransitionContext
}

type CancelCommand struct {
	OrderID   types.ID
	Reason    string
	ActorType string
	ActorID   *types.ID
}

func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*Order, error) {
	ctx, span := tracer.Start(ctx, "order.Create", trace.WithAttributes(attribute.String("order.type", string(cmd.Type))))
	defer span.End()

	if err := s.validate.StructCtx(ctx, cmd); err != nil {
		return nil, spanErr(span, fmt.Errorf("%w: %v", apperr.ErrInvalidRequest, err))
	}
	now := s.now()
	if cmd.ScheduledAt != nil && cmd.ScheduledAt.Before(now) {
		return nil, spanErr(span, fmt.Errorf("%w: scheduled_at is in the past", apperr.ErrInvalidRequest))
	}

	price, err := s.pricing.Calculate(ctx, pricing.Request{
		Type:     cmd.Type,
		Pickup:   cmd.Pickup.Point,
		Delivery: cmd.Delivery.Point,
		Items:    cmd.Items,
	})
	if err != nil {
		return nil, spanErr(span, err)
	}

	o := &Order{
		ID:          newID(),
		CustomerID:  cmd.CustomerID,
		Type:        cmd.Type,
		Status:      StatusPending,
		Pickup:      cmd.Pickup,
		Delivery:    cmd.Delivery,
		Items:       append([]types.OrderItem{}, cmd.Items...),
		Price:       price,
		Notes:       cmd.Notes,
		ScheduledAt: cloneTime(cmd.ScheduledAt),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	customer := cmd.CustomerID
	ev := Event{
		OrderID:   o.ID,
		ToStatus:  StatusPending,
		ActorType: ActorCustomer,
		ActorID:   &customer,
		CreatedAt: now,
	}

	for attempt := 1; ; attempt++ {
		o.Number = NewNumber(now)
		err = s.repo.Create(ctx, o, ev)
		if err == nil {
			break
		}
		if !errors.Is(err, ErrDuplicateNumber) || attempt == createAttempts {
			return nil, spanErr(span, err)
		}
	}

	span.SetAttributes(attribute.String("order.id", string(o.ID)))
	s.refreshCache(ctx, o)
	slog.InfoContext(ctx, "order created",
		"order_id", o.ID,
		"order_number", o.Number,
		"type", o.Type,
		"total_amount", o.Price.TotalAmount,
	)
	return o, nil
}

// Get serves from the cache when one is configured.
func (s *Service) Get(ctx context.Context, id types.ID) (*Order, error) {
	if s.cache != nil {
		o, ok, err := s.cache.Get(ctx, id)
		if err != nil {
			slog.WarnContext(ctx, "order cache read failed", "order_id", id, "err", err)
		} else if ok {
			return o, nil
		}
	}
	o, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.refreshCache(ctx, o)
	return o, nil
}

// Load always reads the repository, bypassing the cache.
func (s *Service) Load(ctx context.Context, id types.ID) (*Order, error) {
	return s.repo.Get(ctx, id)
}

// GetByReference accepts either an order id or an order number.
func (s *Service) GetByReference(ctx context.Context, ref string) (*Order, error) {
	if ref == "" {
		return nil, fmt.Errorf("%w: empty order reference", apperr.ErrInvalidRequest)
	}
	if IsNumber(ref) {
		return s.repo.GetByNumber(ctx, strings.ToUpper(ref))
	}
	return s.Get(ctx, types.ID(ref))
}

// LoadByReference is GetByReference without the cache.
func (s *Service) LoadByReference(ctx context.Context, ref string) (*Order, error) {
	if ref == "" {
		return nil, fmt.Errorf("%w: empty order reference", apperr.ErrInvalidRequest)
	}
	if IsNumber(ref) {
		return s.repo.GetByNumber(ctx, strings.ToUpper(ref))
	}
	return s.repo.Get(ctx, types.ID(ref))
}

func (s *Service) Events(ctx context.Context, id types.ID) ([]Event, error) {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.ListEvents(ctx, id)
}

// RequestTransition loads the order and applies one state-machine step.
func (s *Service) RequestTransition(ctx context.Context, cmd TransitionCommand) (*Order, error) {
	o, err := s.repo.Get(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}
	return s.Apply(ctx, *o, cmd.Target, cmd.TransitionContext)
}

// Apply transitions an order the caller has already loaded. The write fails
// with apperr.ErrConcurrentModification if o is stale.
func (s *Service) Apply(ctx context.Context, o Order, target Status, tc TransitionContext) (*Order, error) {
	ctx, span := tracer.Start(ctx, "order.Transition", trace.WithAttributes(
		attribute.String("order.id", string(o.ID)),
		attribute.String("order.from", string(o.Status)),
		attribute.String("order.to", string(target)),
	))
	defer span.End()

	now := s.now()
	next, err := Transition(o, target, tc, now)
	if err != nil {
		return nil, spanErr(span, err)
	}
	if err := s.repo.Update(ctx, &next, o.Version, transitionEvent(o, next, tc, now)); err != nil {
		return nil, spanErr(span, err)
	}
	s.refreshCache(ctx, &next)
	slog.InfoContext(ctx, "order transitioned",
		"order_id", next.ID,
		"from", o.Status,
		"to", next.Status,
		"actor", tc.ActorType,
		"version", next.Version,
	)
	return &next, nil
}

// RecalculatePrice re-quotes a PENDING order against the active tariffs and
// stores the new breakdown. Any other status is rejected.
func (s *Service) RecalculatePrice(ctx context.Context, id types.ID) (types.PriceBreakdown, error) {
	ctx, span := tracer.Start(ctx, "order.RecalculatePrice", trace.WithAttributes(attribute.String("order.id", string(id))))
	defer span.End()

	o, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.PriceBreakdown{}, spanErr(span, err)
	}
	if o.Status != StatusPending {
		return types.PriceBreakdown{}, spanErr(span, fmt.Errorf("%w: cannot reprice a %s order", apperr.ErrInvalidState, o.Status))
	}
	price, err := s.pricing.Calculate(ctx, pricing.Request{
		Type:     o.Type,
		Pickup:   o.Pickup.Point,
		Delivery: o.Delivery.Point,
		Items:    o.Items,
	})
	if err != nil {
		return types.PriceBreakdown{}, spanErr(span, err)
	}

	now := s.now()
	next := o.Clone()
	next.Price = price
	next.UpdatedAt = now
	ev := Event{
		OrderID:    o.ID,
		FromStatus: o.Status,
		ToStatus:   o.Status,
		ActorType:  ActorSystem,
		Reason:     repriceReason,
		CreatedAt:  now,
	}
	if err := s.repo.Update(ctx, &next, o.Version, ev); err != nil {
		return types.PriceBreakdown{}, spanErr(span, err)
	}
	s.refreshCache(ctx, &next)
	slog.InfoContext(ctx, "order repriced",
		"order_id", o.ID,
		"old_total", o.Price.TotalAmount,
		"new_total", price.TotalAmount,
	)
	return price, nil
}

// Cancel is allowed while the order is PENDING, CONFIRMED or ASSIGNED.
func (s *Service) Cancel(ctx context.Context, cmd CancelCommand) (*Order, error) {
	o, err := s.repo.Get(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(o.Status, StatusCancelled) {
		return nil, fmt.Errorf("%w: cannot cancel a %s order", apperr.ErrInvalidState, o.Status)
	}
	actor := cmd.ActorType
	if actor == "" {
		actor = ActorCustomer
	}
	return s.Apply(ctx, *o, StatusCancelled, TransitionContext{
		ActorType: actor,
		ActorID:   cmd.ActorID,
		Reason:    cmd.Reason,
	})
}

func (s *Service) refreshCache(ctx context.Context, o *Order) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, o); err != nil {
		slog.WarnContext(ctx, "order cache write failed", "order_id", o.ID, "err", err)
	}
}

func spanErr(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
