// README: Reconciliation tests against the real order service on the in-memory store.
package payment_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"testing"

	"wali/internal/apperr"
	"wali/internal/modules/geo"
	"wali/internal/modules/order"
	"wali/internal/modules/order/ordertest"
	"wali/internal/modules/payment"
	"wali/internal/modules/pricing"
	"wali/internal/types"
)

const (
	paystackSecret = "sk_test_wali"
	flwHash        = "flw-secret-hash"
)

type harness struct {
	orders     *order.Service
	store      *ordertest.Store
	reconciler *payment.Reconciler
}

func newHarness(t *testing.T) harness {
	t.Helper()
	ps := pricing.NewService(pricing.StaticSource(pricing.Table{
		Currency: types.CurrencyXOF,
		Tariffs: map[types.OrderType]pricing.Tariff{
			types.OrderTypeDelivery: {BaseFee: 500, PerKmRate: 200, FreeKm: 1, MinFee: 500, MaxFee: 5000},
			types.OrderTypeFood:     {BaseFee: 700, PerKmRate: 250, FreeKm: 1, MinFee: 600, MaxFee: 6000},
			types.OrderTypeShopping: {BaseFee: 1000, PerKmRate: 250, FreeKm: 1, MinFee: 700, MaxFee: 7000},
		},
	}), geo.DefaultServiceArea())
	if err := ps.Reload(context.Background()); err != nil {
		t.Fatal(err)
	}
	store := ordertest.NewStore()
	orders := order.NewService(store, ps, nil)
	reg := payment.NewRegistry(payment.NewPaystack(paystackSecret), payment.NewFlutterwave(flwHash))
	return harness{orders: orders, store: store, reconciler: payment.NewReconciler(reg, orders)}
}

// newOrder creates a DELIVERY order priced at 1000 XOF.
func (h harness) newOrder(t *testing.T) *order.Order {
	t.Helper()
	o, err := h.orders.Create(context.Background(), order.CreateCommand{
		CustomerID: "cus-pay",
		Type:       types.OrderTypeDelivery,
		Pickup:     types.Place{Point: types.Point{Lat: 5.3364, Lng: -4.0267}},
		Delivery:   types.Place{Point: types.Point{Lat: 5.3400, Lng: -4.0300}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if o.Price.TotalAmount != 1000 {
		t.Fatalf("unexpected total %d", o.Price.TotalAmount)
	}
	return o
}

func (h harness) status(t *testing.T, id types.ID) order.Status {
	t.Helper()
	o, err := h.orders.Load(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	return o.Status
}

func paystackEvent(event, ref, status string, subunits int64) ([]byte, string) {
	body := []byte(fmt.Sprintf(`{"event":%q,"data":{"id":4099,"reference":%q,"status":%q,"amount":%d,"currency":"XOF"}}`,
		event, ref, status, subunits))
	mac := hmac.New(sha512.New, []byte(paystackSecret))
	mac.Write(body)
	return body, hex.EncodeToString(mac.Sum(nil))
}

func paystackSuccess(ref string) ([]byte, string) {
	return paystackEvent("charge.success", ref, "success", 100000)
}

func paystackFailed(ref string) ([]byte, string) {
	return paystackEvent("charge.failed", ref, "failed", 100000)
}

func TestHandle_SuccessConfirmsOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	o := h.newOrder(t)
	body, sig := paystackSuccess(o.Number)

	res, err := h.reconciler.HandleProviderEvent(ctx, "paystack", body, sig)
	if err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	if !res.Accepted || res.OrderID != o.ID || res.AppliedTransition == nil || *res.AppliedTransition != order.StatusConfirmed {
		t.Fatalf("first result = %+v", res)
	}

	res, err = h.reconciler.HandleProviderEvent(ctx, "paystack", body, sig)
	if err != nil {
		t.Fatalf("second delivery: %v", err)
	}
	if !res.Accepted || res.AppliedTransition != nil || res.Reason != payment.ReasonNoop {
		t.Fatalf("second result = %+v", res)
	}

	events, _ := h.orders.Events(ctx, o.ID)
	confirmed := 0
	for _, e := range events {
		if e.ToStatus == order.StatusConfirmed {
			confirmed++
			if e.ActorType != order.ActorPayment || e.Reason != "paystack:4099" {
				t.Errorf("confirm event = %+v", e)
			}
		}
	}
	if confirmed != 1 {
		t.Errorf("confirmed %d times, want 1", confirmed)
	}
}

func TestHandle_FailureAfterConfirmationIsNoop(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	o := h.newOrder(t)

	body, sig := paystackSuccess(o.Number)
	if _, err := h.reconciler.HandleProviderEvent(ctx, "paystack", body, sig); err != nil {
		t.Fatal(err)
	}
	body, sig = paystackFailed(o.Number)
	res, err := h.reconciler.HandleProviderEvent(ctx, "paystack", body, sig)
	if err != nil {
		t.Fatal(err)
	}
	if res.AppliedTransition != nil {
		t.Errorf("late failure applied %s", *res.AppliedTransition)
	}
	if got := h.status(t, o.ID); got != order.StatusConfirmed {
		t.Errorf("status = %s, want CONFIRMED", got)
	}
}

func TestHandle_FailureCancelsPendingOrder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	o := h.newOrder(t)

	body, sig := paystackFailed(o.Number)
	res, err := h.reconciler.HandleProviderEvent(ctx, "paystack", body, sig)
	if err != nil {
		t.Fatal(err)
	}
	if res.AppliedTransition == nil || *res.AppliedTransition != order.StatusCancelled {
		t.Fatalf("result = %+v", res)
	}
	got, _ := h.orders.Load(ctx, o.ID)
	if got.CancelReason != payment.ReasonPaymentFailed {
		t.Errorf("cancel reason = %q", got.CancelReason)
	}

	// a success arriving after the failure does not resurrect the order
	body, sig = paystackSuccess(o.Number)
	res, err = h.reconciler.HandleProviderEvent(ctx, "paystack", body, sig)
	if err != nil {
		t.Fatal(err)
	}
	if res.AppliedTransition != nil || h.status(t, o.ID) != order.StatusCancelled {
		t.Errorf("late success changed a cancelled order: %+v", res)
	}
}

func TestHandle_FlutterwaveCancelled(t *testing.T) {
	h := newHarness(t)
	o := h.newOrder(t)
	body := []byte(fmt.Sprintf(`{"event":"charge.completed","data":{"tx_ref":%q,"amount":1000,"currency":"XOF","status":"cancelled"}}`, o.ID))

	res, err := h.reconciler.HandleProviderEvent(context.Background(), "flutterwave", body, flwHash)
	if err != nil {
		t.Fatal(err)
	}
	if res.AppliedTransition == nil || *res.AppliedTransition != order.StatusCancelled {
		t.Fatalf("result = %+v", res)
	}
	if res.Reason != payment.ReasonPaymentCancelled {
		t.Errorf("result reason = %q, want %q", res.Reason, payment.ReasonPaymentCancelled)
	}
	got, _ := h.orders.Load(context.Background(), o.ID)
	if got.CancelReason != payment.ReasonPaymentFailed {
		t.Errorf("cancel reason = %q, want %q", got.CancelReason, payment.ReasonPaymentFailed)
	}
}

func TestHandle_InvalidSignatureHasNoSideEffects(t *testing.T) {
	h := newHarness(t)
	o := h.newOrder(t)
	body, _ := paystackSuccess(o.Number)

	_, err := h.reconciler.HandleProviderEvent(context.Background(), "paystack", body, "deadbeef")
	if !errors.Is(err, apperr.ErrInvalidSignature) {
		t.Fatalf("err = %v, want ErrInvalidSignature", err)
	}
	_, err = h.reconciler.HandleProviderEvent(context.Background(), "flutterwave", body, "wrong")
	if !errors.Is(err, apperr.ErrInvalidSignature) {
		t.Fatalf("err = %v, want ErrInvalidSignature", err)
	}
	if got := h.status(t, o.ID); got != order.StatusPending {
		t.Errorf("status = %s, want PENDING", got)
	}
}

func TestHandle_SoftFailures(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	o := h.newOrder(t)

	unknown, sig := paystackSuccess("WL-000000-000000")
	res, err := h.reconciler.HandleProviderEvent(ctx, "paystack", unknown, sig)
	if err != nil || res.Accepted || res.Reason != payment.ReasonUnknownOrder {
		t.Errorf("unknown order: %+v, %v", res, err)
	}

	unmapped, sig := paystackEvent("refund.processed", o.Number, "processed", 0)
	res, err = h.reconciler.HandleProviderEvent(ctx, "paystack", unmapped, sig)
	if err != nil || res.Accepted || res.Reason != payment.ReasonUnmappedEvent {
		t.Errorf("unmapped event: %+v, %v", res, err)
	}

	short, sig := paystackEvent("charge.success", o.Number, "success", 50000)
	res, err = h.reconciler.HandleProviderEvent(ctx, "paystack", short, sig)
	if err != nil || res.Accepted || res.Reason != payment.ReasonAmountMismatch {
		t.Errorf("underpayment: %+v, %v", res, err)
	}

	eur := []byte(fmt.Sprintf(`{"event":"charge.completed","data":{"tx_ref":%q,"amount":1000,"currency":"EUR","status":"successful"}}`, o.Number))
	res, err = h.reconciler.HandleProviderEvent(ctx, "flutterwave", eur, flwHash)
	if err != nil || res.Accepted || res.Reason != payment.ReasonAmountMismatch {
		t.Errorf("wrong currency: %+v, %v", res, err)
	}

	res, err = h.reconciler.HandleProviderEvent(ctx, "flutterwave", []byte(`{oops`), flwHash)
	if err != nil || res.Accepted || res.Reason != payment.ReasonMalformed {
		t.Errorf("malformed: %+v, %v", res, err)
	}

	if got := h.status(t, o.ID); got != order.StatusPending {
		t.Errorf("status = %s, want PENDING", got)
	}

	if _, err := h.reconciler.HandleProviderEvent(ctx, "stripe", nil, ""); !errors.Is(err, payment.ErrUnknownProvider) {
		t.Errorf("unknown provider: err = %v", err)
	}
}

func TestHandle_RacingDuplicatesConfirmOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	o := h.newOrder(t)
	body, sig := paystackSuccess(o.Number)

	const deliveries = 8
	start := make(chan struct{})
	results := make(chan payment.Result, deliveries)
	errs := make(chan error, deliveries)
	var wg sync.WaitGroup
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			res, err := h.reconciler.HandleProviderEvent(ctx, "paystack", body, sig)
			if err != nil {
				errs <- err
				return
			}
			results <- res
		}()
	}
	close(start)
	wg.Wait()
	close(results)
	close(errs)

	for err := range errs {
		// only possible if one delivery lost the race three times in a row
		if !errors.Is(err, apperr.ErrConcurrentModification) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	applied := 0
	for res := range results {
		if res.AppliedTransition != nil {
			applied++
		}
	}
	if applied != 1 {
		t.Fatalf("applied %d transitions, want 1", applied)
	}
	if got := h.status(t, o.ID); got != order.StatusConfirmed {
		t.Errorf("status = %s", got)
	}
}

func TestHandle_SuccessRacingAdminCancel(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	o := h.newOrder(t)
	body, sig := paystackSuccess(o.Number)

	start := make(chan struct{})
	var wg sync.WaitGroup
	var cancelErr, payErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		<-start
		_, cancelErr = h.orders.Cancel(ctx, order.CancelCommand{OrderID: o.ID, Reason: "admin", ActorType: order.ActorAdmin})
	}()
	go func() {
		defer wg.Done()
		<-start
		_, payErr = h.reconciler.HandleProviderEvent(ctx, "paystack", body, sig)
	}()
	close(start)
	wg.Wait()

	if payErr != nil {
		t.Fatalf("webhook: %v", payErr)
	}
	final := h.status(t, o.ID)
	switch final {
	case order.StatusCancelled:
		if cancelErr != nil {
			t.Errorf("cancelled but cancel returned %v", cancelErr)
		}
	case order.StatusConfirmed:
		// the cancel lost; confirmed orders may still be cancelled, so it can
		// only have failed on the version check
		if cancelErr != nil && !errors.Is(cancelErr, apperr.ErrConcurrentModification) {
			t.Errorf("cancel err = %v", cancelErr)
		}
	default:
		t.Fatalf("final status %s", final)
	}
}
