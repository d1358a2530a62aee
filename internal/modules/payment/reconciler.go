// README: Maps provider webhooks onto order transitions, idempotently.
package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"wali/internal/apperr"
	"wali/internal/modules/order"
)

var tracer = otel.Tracer("wali/payment")

const maxAttempts = 3

// Orders is the slice of the order service reconciliation depends on.
type Orders interface {
	LoadByReference(ctx context.Context, ref string) (*order.Order, error)
	Apply(ctx context.Context, o order.Order, target order.Status, tc order.TransitionContext) (*order.Order, error)
}

type Reconciler struct {
	adapters *Registry
	orders   Orders
}

func NewReconciler(adapters *Registry, orders Orders) *Reconciler {
	return &Reconciler{adapters: adapters, orders: orders}
}

// SignatureHeader names the header carrying provider's signature.
func (r *Reconciler) SignatureHeader(provider string) (string, error) {
	a, err := r.adapters.Lookup(provider)
	if err != nil {
		return "", err
	}
	return a.SignatureHeader(), nil
}

// HandleProviderEvent verifies and applies one webhook delivery. Only an
// unknown provider, a bad signature or an infrastructure failure return an
// error; everything else is acknowledged with Accepted set accordingly.
func (r *Reconciler) HandleProviderEvent(ctx context.Context, provider string, payload []byte, signature string) (Result, error) {
	ctx, span := tracer.Start(ctx, "payment.HandleProviderEvent")
	defer span.End()
	span.SetAttributes(attribute.String("payment.provider", provider))

	adapter, err := r.adapters.Lookup(provider)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return Result{}, err
	}
	if !adapter.VerifySignature(payload, signature) {
		slog.WarnContext(ctx, "payment webhook rejected: bad signature", "provider", adapter.Provider())
		err := fmt.Errorf("%w: %s webhook", apperr.ErrInvalidSignature, adapter.Provider())
		span.SetStatus(codes.Error, err.Error())
		return Result{}, err
	}

	n, err := adapter.NormalizeEvent(payload)
	if err != nil {
		slog.WarnContext(ctx, "payment webhook ignored: malformed payload", "provider", adapter.Provider(), "err", err)
		return Result{Reason: ReasonMalformed}, nil
	}
	span.SetAttributes(
		attribute.String("payment.reference", n.Reference),
		attribute.String("payment.event", string(n.Type)),
	)
	if n.Type == "" {
		slog.InfoContext(ctx, "payment webhook ignored: unmapped event",
			"provider", n.Provider, "event", n.RawEvent, "reference", n.Reference)
		return Result{Reason: ReasonUnmappedEvent}, nil
	}

	for attempt := 1; ; attempt++ {
		res, err := r.reconcile(ctx, n)
		if err == nil {
			return res, nil
		}
		if !errors.Is(err, apperr.ErrConcurrentModification) || attempt == maxAttempts {
			span.SetStatus(codes.Error, err.Error())
			return Result{}, err
		}
		slog.InfoContext(ctx, "payment webhook raced another update, re-reading order",
			"reference", n.Reference, "attempt", attempt)
	}
}

func (r *Reconciler) reconcile(ctx context.Context, n Notification) (Result, error) {
	o, err := r.orders.LoadByReference(ctx, n.Reference)
	if errors.Is(err, apperr.ErrNotFound) || errors.Is(err, apperr.ErrInvalidRequest) {
		slog.WarnContext(ctx, "payment webhook for unknown order",
			"provider", n.Provider, "reference", n.Reference, "event", n.Type)
		return Result{Reason: ReasonUnknownOrder}, nil
	}
	if err != nil {
		return Result{}, err
	}

	res := Result{Accepted: true, OrderID: o.ID}
	if o.Status != order.StatusPending {
		// duplicates and late arrivals: the order has already moved on
		level := slog.LevelInfo
		if n.Type == EventPaymentSucceeded && (o.Status == order.StatusCancelled || o.Status == order.StatusFailed) {
			level = slog.LevelWarn
		}
		slog.Log(ctx, level, "payment webhook is a no-op",
			"order_id", o.ID, "status", o.Status, "event", n.Type, "provider", n.Provider)
		res.Reason = ReasonNoop
		return res, nil
	}

	var (
		target order.Status
		tc     = order.TransitionContext{ActorType: order.ActorPayment}
	)
	switch n.Type {
	case EventPaymentSucceeded:
		if reason := amountMismatch(n, o); reason != "" {
			slog.WarnContext(ctx, "payment webhook not applied: "+reason,
				"order_id", o.ID, "provider", n.Provider,
				"paid", n.Amount.String(), "paid_currency", n.Currency,
				"expected", o.Price.TotalAmount, "expected_currency", o.Price.Currency)
			return Result{OrderID: o.ID, Reason: ReasonAmountMismatch}, nil
		}
		target = order.StatusConfirmed
		tc.Reason = n.Provider
		if n.ProviderRef != "" {
			tc.Reason += ":" + n.ProviderRef
		}
	case EventPaymentFailed:
		target = order.StatusCancelled
		tc.Reason = ReasonPaymentFailed
	case EventPaymentCancelled:
		// stored like a failure; the result still tells the two apart
		target = order.StatusCancelled
		tc.Reason = ReasonPaymentFailed
		res.Reason = ReasonPaymentCancelled
	default:
		return Result{Reason: ReasonUnmappedEvent}, nil
	}

	next, err := r.orders.Apply(ctx, *o, target, tc)
	if err != nil {
		return Result{}, err
	}
	applied := next.Status
	res.AppliedTransition = &applied
	slog.InfoContext(ctx, "payment webhook applied",
		"order_id", o.ID, "provider", n.Provider, "event", n.Type, "status", applied)
	return res, nil
}

func amountMismatch(n Notification, o *order.Order) string {
	if n.Currency != "" && !strings.EqualFold(n.Currency, o.Price.Currency) {
		return "currency mismatch"
	}
	if !n.Amount.IsZero() && !n.Amount.Equal(decimal.NewFromInt(o.Price.TotalAmount)) {
		return "amount mismatch"
	}
	return ""
}
