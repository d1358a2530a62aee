package order

import (
	"errors"
	"strings"
	"testing"
	"time"

	"wali/internal/apperr"
	"wali/internal/types"
)

var testNow = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

func idPtr(v string) *types.ID {
	id := types.ID(v)
	return &id
}

// contextFor supplies every precondition the target needs.
func contextFor(target Status) TransitionContext {
	tc := TransitionContext{ActorType: ActorAdmin}
	switch target {
	case StatusAssigned:
		tc.DriverID = idPtr("drv-1")
	case StatusDelivered:
		tc.ProofOfDelivery = "https://cdn.wali.ci/pod/1.jpg"
	case StatusCancelled, StatusFailed:
		tc.Reason = "customer_request"
	}
	return tc
}

func orderIn(s Status) Order {
	o := Order{ID: "o-1", Number: "WL-260314-ABC123", Status: s, Version: 3}
	if HasDriver(s) {
		o.DriverID = idPtr("drv-1")
	}
	return o
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusConfirmed, true},
		{StatusPending, StatusCancelled, true},
		{StatusPending, StatusFailed, true},
		{StatusConfirmed, StatusAssigned, true},
		{StatusConfirmed, StatusCancelled, true},
		{StatusAssigned, StatusPickedUp, true},
		{StatusAssigned, StatusCancelled, true},
		{StatusPickedUp, StatusInTransit, true},
		{StatusInTransit, StatusDelivered, true},
		{StatusInTransit, StatusFailed, true},
		{StatusPickedUp, StatusFailed, true},
		// skipping states
		{StatusPending, StatusAssigned, false},
		{StatusConfirmed, StatusPickedUp, false},
		{StatusAssigned, StatusDelivered, false},
		// no cancel once goods are picked up
		{StatusPickedUp, StatusCancelled, false},
		{StatusInTransit, StatusCancelled, false},
		// no going back
		{StatusConfirmed, StatusPending, false},
		{StatusInTransit, StatusPickedUp, false},
		// terminal
		{StatusDelivered, StatusCancelled, false},
		{StatusCancelled, StatusPending, false},
		{StatusFailed, StatusConfirmed, false},
		// self loops
		{StatusPending, StatusPending, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestTransition_TableClosure(t *testing.T) {
	for _, from := range Statuses {
		for _, to := range Statuses {
			_, err := Transition(orderIn(from), to, contextFor(to), testNow)
			if CanTransition(from, to) {
				if err != nil {
					t.Errorf("%s -> %s: unexpected error %v", from, to, err)
				}
				continue
			}
			if !errors.Is(err, apperr.ErrInvalidTransition) {
				t.Errorf("%s -> %s: err = %v, want ErrInvalidTransition", from, to, err)
			}
		}
	}
}

func TestTransition_TerminalStates(t *testing.T) {
	for _, s := range Statuses {
		if IsTerminal(s) != (len(Transitions[s]) == 0) {
			t.Errorf("IsTerminal(%s) disagrees with the transition table", s)
		}
	}
	for _, actor := range []string{ActorCustomer, ActorDriver, ActorAdmin, ActorSystem, ActorPayment} {
		tc := TransitionContext{ActorType: actor, Reason: "changed my mind"}
		if _, err := Transition(orderIn(StatusDelivered), StatusCancelled, tc, testNow); !errors.Is(err, apperr.ErrInvalidTransition) {
			t.Errorf("actor %s: err = %v, want ErrInvalidTransition", actor, err)
		}
	}
}

func TestTransition_TextLimitCountsCharacters(t *testing.T) {
	// 500 accented characters are 1000 bytes
	reason := strings.Repeat("é", MaxTextLen)
	next, err := Transition(orderIn(StatusPending), StatusCancelled, TransitionContext{Reason: reason}, testNow)
	if err != nil {
		t.Fatalf("reason of %d characters rejected: %v", MaxTextLen, err)
	}
	if next.CancelReason != reason {
		t.Error("cancel reason not stored")
	}
	proof := strings.Repeat("ç", MaxTextLen)
	if _, err := Transition(orderIn(StatusInTransit), StatusDelivered, TransitionContext{ProofOfDelivery: proof}, testNow); err != nil {
		t.Fatalf("proof of %d characters rejected: %v", MaxTextLen, err)
	}
	if _, err := Transition(orderIn(StatusPending), StatusCancelled, TransitionContext{Reason: reason + "é"}, testNow); !errors.Is(err, apperr.ErrInvalidRequest) {
		t.Errorf("err = %v, want ErrInvalidRequest", err)
	}
}

func TestTransition_Preconditions(t *testing.T) {
	long := strings.Repeat("x", MaxTextLen+1)
	cases := []struct {
		name   string
		from   Status
		target Status
		tc     TransitionContext
		want   error
	}{
		{"assign without driver", StatusConfirmed, StatusAssigned, TransitionContext{}, apperr.ErrMissingPrecondition},
		{"assign with empty driver", StatusConfirmed, StatusAssigned, TransitionContext{DriverID: idPtr("")}, apperr.ErrMissingPrecondition},
		{"deliver without proof", StatusInTransit, StatusDelivered, TransitionContext{}, apperr.ErrMissingPrecondition},
		{"cancel without reason", StatusPending, StatusCancelled, TransitionContext{}, apperr.ErrMissingPrecondition},
		{"fail without reason", StatusInTransit, StatusFailed, TransitionContext{}, apperr.ErrMissingPrecondition},
		{"proof on pickup", StatusAssigned, StatusPickedUp, TransitionContext{ProofOfDelivery: "https://x"}, apperr.ErrInvalidRequest},
		{"proof too long", StatusInTransit, StatusDelivered, TransitionContext{ProofOfDelivery: long}, apperr.ErrInvalidRequest},
		{"reason too long", StatusPending, StatusCancelled, TransitionContext{Reason: long}, apperr.ErrInvalidRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Transition(orderIn(tc.from), tc.target, tc.tc, testNow); !errors.Is(err, tc.want) {
				t.Errorf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestTransition_SideEffects(t *testing.T) {
	t.Run("assign sets driver", func(t *testing.T) {
		next, err := Transition(orderIn(StatusConfirmed), StatusAssigned, contextFor(StatusAssigned), testNow)
		if err != nil {
			t.Fatal(err)
		}
		if next.DriverID == nil || *next.DriverID != "drv-1" {
			t.Errorf("DriverID = %v", next.DriverID)
		}
		if next.AssignedAt == nil || !next.AssignedAt.Equal(testNow) {
			t.Errorf("AssignedAt = %v", next.AssignedAt)
		}
	})

	t.Run("cancel clears driver", func(t *testing.T) {
		next, err := Transition(orderIn(StatusAssigned), StatusCancelled, TransitionContext{Reason: "driver_unavailable"}, testNow)
		if err != nil {
			t.Fatal(err)
		}
		if next.DriverID != nil {
			t.Errorf("DriverID = %v, want nil", *next.DriverID)
		}
		if next.CancelReason != "driver_unavailable" || next.CancelledAt == nil {
			t.Errorf("cancel not recorded: %+v", next)
		}
	})

	t.Run("fail clears driver", func(t *testing.T) {
		next, err := Transition(orderIn(StatusInTransit), StatusFailed, TransitionContext{Reason: "recipient_absent"}, testNow)
		if err != nil {
			t.Fatal(err)
		}
		if next.DriverID != nil || next.FailureReason != "recipient_absent" || next.FailedAt == nil {
			t.Errorf("failure not recorded: %+v", next)
		}
	})

	t.Run("deliver stores proof", func(t *testing.T) {
		next, err := Transition(orderIn(StatusInTransit), StatusDelivered, contextFor(StatusDelivered), testNow)
		if err != nil {
			t.Fatal(err)
		}
		if next.ProofOfDelivery == "" || next.DeliveredAt == nil {
			t.Errorf("delivery not recorded: %+v", next)
		}
		if next.DriverID == nil {
			t.Error("delivered order lost its driver")
		}
	})

	t.Run("input untouched", func(t *testing.T) {
		before := orderIn(StatusAssigned)
		next, err := Transition(before, StatusCancelled, TransitionContext{Reason: "r"}, testNow)
		if err != nil {
			t.Fatal(err)
		}
		if before.Status != StatusAssigned || before.DriverID == nil || before.CancelledAt != nil {
			t.Errorf("input mutated: %+v", before)
		}
		if next.Version != before.Version {
			t.Errorf("Version changed by Transition: %d", next.Version)
		}
		if !next.UpdatedAt.Equal(testNow) {
			t.Errorf("UpdatedAt = %v", next.UpdatedAt)
		}
	})
}

// Walks every path through the table and checks the driver invariant after
// each step.
func TestTransition_DriverInvariant(t *testing.T) {
	var walk func(o Order, depth int)
	walk = func(o Order, depth int) {
		if (o.DriverID != nil) != HasDriver(o.Status) {
			t.Fatalf("status %s with driver %v", o.Status, o.DriverID)
		}
		if depth > len(Statuses) {
			t.Fatal("cycle in transition table")
		}
		for _, to := range Transitions[o.Status] {
			next, err := Transition(o, to, contextFor(to), testNow)
			if err != nil {
				t.Fatalf("%s -> %s: %v", o.Status, to, err)
			}
			walk(next, depth+1)
		}
	}
	walk(Order{ID: "o-1", Status: StatusPending}, 0)
}

func TestNewNumber(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		n := NewNumber(testNow)
		if !strings.HasPrefix(n, "WL-260314-") || len(n) != len("WL-260314-ABC123") {
			t.Fatalf("bad number %q", n)
		}
		if strings.ToUpper(n) != n {
			t.Fatalf("number %q not upper case", n)
		}
		if !IsNumber(n) || !IsNumber(strings.ToLower(n)) {
			t.Fatalf("IsNumber(%q) = false", n)
		}
		seen[n] = true
	}
	if len(seen) < 190 {
		t.Errorf("only %d distinct numbers out of 200", len(seen))
	}
	if IsNumber("3f0c2a9e-0000-0000-0000-000000000000") {
		t.Error("uuid recognised as an order number")
	}
}

func TestParseStatus(t *testing.T) {
	if s, err := ParseStatus(" picked_up "); err != nil || s != StatusPickedUp {
		t.Errorf("ParseStatus = %q, %v", s, err)
	}
	if _, err := ParseStatus("LOST"); !errors.Is(err, apperr.ErrInvalidRequest) {
		t.Errorf("err = %v, want ErrInvalidRequest", err)
	}
}
