package order

import (
	"fmt"
	"time"
	"unicode/utf8"

	"wali/internal/apperr"
	"wali/internal/types"
)

// MaxTextLen bounds free-text fields (reasons, proof of delivery, notes).
const MaxTextLen = 500

// Transitions is the order state flow as code. Statuses absent from the
// map are terminal.
var Transitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled, StatusFailed},
	StatusConfirmed: {StatusAssigned, StatusCancelled, StatusFailed},
	StatusAssigned:  {StatusPickedUp, StatusCancelled, StatusFailed},
	StatusPickedUp:  {StatusInTransit, StatusFailed},
	StatusInTransit: {StatusDelivered, StatusFailed},
}

func CanTransition(from, to Status) bool {
	next, ok := Transitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}

func IsTerminal(s Status) bool {
	switch s {
	case StatusDelivered, StatusCancelled, StatusFailed:
		return true
	}
	return false
}

// HasDriver reports whether an order in status s carries a driver.
func HasDriver(s Status) bool {
	switch s {
	case StatusAssigned, StatusPickedUp, StatusInTransit, StatusDelivered:
		return true
	}
	return false
}

// TransitionContext carries the inputs a transition may need. Only the
// fields relevant to the target status are read.
type TransitionContext struct {
	ActorType       string
	ActorID         *types.ID
	DriverID        *types.ID
	Reason          string
	ProofOfDelivery string
}

// Transition validates (o.Status -> target) against Transitions and returns
// the updated copy of o. o itself is never modified. Version is left alone;
// the repository bumps it on a successful write.
func Transition(o Order, target Status, tc TransitionContext, now time.Time) (Order, error) {
	if !CanTransition(o.Status, target) {
		return Order{}, fmt.Errorf("%w: %s -> %s", apperr.ErrInvalidTransition, o.Status, target)
	}
	if utf8.RuneCountInString(tc.Reason) > MaxTextLen {
		return Order{}, fmt.Errorf("%w: reason longer than %d characters", apperr.ErrInvalidRequest, MaxTextLen)
	}
	if utf8.RuneCountInString(tc.ProofOfDelivery) > MaxTextLen {
		return Order{}, fmt.Errorf("%w: proof of delivery longer than %d characters", apperr.ErrInvalidRequest, MaxTextLen)
	}
	if tc.ProofOfDelivery != "" && target != StatusDelivered {
		return Order{}, fmt.Errorf("%w: proof of delivery only accepted when delivering", apperr.ErrInvalidRequest)
	}

	next := o.Clone()
	ts := now
	switch target {
	case StatusConfirmed:
		next.ConfirmedAt = &ts
	case StatusAssigned:
		if tc.DriverID == nil || *tc.DriverID == "" {
			return Order{}, fmt.Errorf("%w: driver id required to assign", apperr.ErrMissingPrecondition)
		}
		next.DriverID = cloneID(tc.DriverID)
		next.AssignedAt = &ts
	case StatusPickedUp:
		next.PickedUpAt = &ts
	case StatusInTransit:
		next.InTransitAt = &ts
	case StatusDelivered:
		if tc.ProofOfDelivery == "" {
			return Order{}, fmt.Errorf("%w: proof of delivery required", apperr.ErrMissingPrecondition)
		}
		next.ProofOfDelivery = tc.ProofOfDelivery
		next.DeliveredAt = &ts
	case StatusCancelled:
		if tc.Reason == "" {
			return Order{}, fmt.Errorf("%w: cancellation reason required", apperr.ErrMissingPrecondition)
		}
		next.CancelReason = tc.Reason
		next.DriverID = nil
		next.CancelledAt = &ts
	case StatusFailed:
		if tc.Reason == "" {
			return Order{}, fmt.Errorf("%w: failure reason required", apperr.ErrMissingPrecondition)
		}
		next.FailureReason = tc.Reason
		next.DriverID = nil
		next.FailedAt = &ts
	}
	next.Status = target
	next.UpdatedAt = now
	return next, nil
}

func transitionEvent(before, after Order, tc TransitionContext, now time.Time) Event {
	actor := tc.ActorType
	if actor == "" {
		actor = ActorSystem
	}
	return Event{
		OrderID:    after.ID,
		FromStatus: before.Status,
		ToStatus:   after.Status,
		ActorType:  actor,
		ActorID:    cloneID(tc.ActorID),
		Reason:     tc.Reason,
		CreatedAt:  now,
	}
}
