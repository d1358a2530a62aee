// README: Order aggregate, status set and state events.
package order

import (
	"fmt"
	"strings"
	"time"

	"wali/internal/apperr"
	"wali/internal/types"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusAssigned  Status = "ASSIGNED"
	StatusPickedUp  Status = "PICKED_UP"
	StatusInTransit Status = "IN_TRANSIT"
	StatusDelivered Status = "DELIVERED"
	StatusCancelled Status = "CANCELLED"
	StatusFailed    Status = "FAILED"
)

var Statuses = []Status{
	StatusPending,
	StatusConfirmed,
	StatusAssigned,
	StatusPickedUp,
	StatusInTransit,
	StatusDelivered,
	StatusCancelled,
	StatusFailed,
}

func ParseStatus(v string) (Status, error) {
	s := Status(strings.ToUpper(strings.TrimSpace(v)))
	for _, known := range Statuses {
		if s == known {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: unknown order status %q", apperr.ErrInvalidRequest, v)
}

// Actor types recorded on state events.
const (
	ActorCustomer = "customer"
	ActorDriver   = "driver"
	ActorAdmin    = "admin"
	ActorSystem   = "system"
	ActorPayment  = "payment"
)

type Order struct {
	ID              types.ID             `json:"id"`
	Number          string               `json:"order_number"`
	CustomerID      types.ID             `json:"customer_id"`
	Type            types.OrderType      `json:"type"`
	Status          Status               `json:"status"`
	Version         int                  `json:"version"`
	Pickup          types.Place          `json:"pickup"`
	Delivery        types.Place          `json:"delivery"`
	Items           []types.OrderItem    `json:"items"`
	Price           types.PriceBreakdown `json:"price"`
	DriverID        *types.ID            `json:"driver_id,omitempty"`
	Notes           string               `json:"notes,omitempty"`
	ScheduledAt     *time.Time           `json:"scheduled_at,omitempty"`
	ProofOfDelivery string               `json:"proof_of_delivery,omitempty"`
	CancelReason    string               `json:"cancel_reason,omitempty"`
	FailureReason   string               `json:"failure_reason,omitempty"`
	CreatedAt       time.Time            `json:"created_at"`
	UpdatedAt       time.Time            `json:"updated_at"`
	ConfirmedAt     *time.Time           `json:"confirmed_at,omitempty"`
	AssignedAt      *time.Time           `json:"assigned_at,omitempty"`
	PickedUpAt      *time.Time           `json:"picked_up_at,omitempty"`
	InTransitAt     *time.Time           `json:"in_transit_at,omitempty"`
	DeliveredAt     *time.Time           `json:"delivered_at,omitempty"`
	CancelledAt     *time.Time           `json:"cancelled_at,omitempty"`
	FailedAt        *time.Time           `json:"failed_at,omitempty"`
}

// Clone returns a deep copy so callers can mutate the result freely.
func (o Order) Clone() Order {
	c := o
	if o.Items != nil {
		c.Items = make([]types.OrderItem, len(o.Items))
		copy(c.Items, o.Items)
	}
	c.DriverID = cloneID(o.DriverID)
	c.ScheduledAt = cloneTime(o.ScheduledAt)
	c.ConfirmedAt = cloneTime(o.ConfirmedAt)
	c.AssignedAt = cloneTime(o.AssignedAt)
	c.PickedUpAt = cloneTime(o.PickedUpAt)
	c.InTransitAt = cloneTime(o.InTransitAt)
	c.DeliveredAt = cloneTime(o.DeliveredAt)
	c.CancelledAt = cloneTime(o.CancelledAt)
	c.FailedAt = cloneTime(o.FailedAt)
	return c
}

// Event is one row of the order's audit trail. FromStatus is empty for the
// creation event; FromStatus == ToStatus marks a re-price.
type Event struct {
	ID         int64     `json:"id"`
	OrderID    types.ID  `json:"order_id"`
	FromStatus Status    `json:"from_status,omitempty"`
	ToStatus   Status    `json:"to_status"`
	ActorType  string    `json:"actor_type"`
	ActorID    *types.ID `json:"actor_id,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

func cloneID(v *types.ID) *types.ID {
	if v == nil {
		return nil
	}
	id := *v
	return &id
}

func cloneTime(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	t := *v
	return &t
}
