// README: Provider-neutral payment notifications and reconciliation results.
package payment

import (
	"github.com/shopspring/decimal"

	"wali/internal/modules/order"
	"wali/internal/types"
)

type EventType string

const (
	EventPaymentSucceeded EventType = "PAYMENT_SUCCEEDED"
	EventPaymentFailed    EventType = "PAYMENT_FAILED"
	EventPaymentCancelled EventType = "PAYMENT_CANCELLED"
)

// Notification is a provider webhook reduced to what reconciliation needs.
// Type is empty for provider events with no internal meaning. A zero Amount
// means the provider did not report one.
type Notification struct {
	Provider    string
	Reference   string
	Type        EventType
	RawEvent    string
	Amount      decimal.Decimal
	Currency    string
	ProviderRef string
}

type Result struct {
	Accepted          bool          `json:"accepted"`
	OrderID           types.ID      `json:"order_id,omitempty"`
	AppliedTransition *order.Status `json:"applied_transition,omitempty"`
	Reason            string        `json:"reason,omitempty"`
}

// Reasons reported in Result.Reason and stored on cancelled orders.
const (
	ReasonPaymentFailed    = "payment_failed"
	ReasonPaymentCancelled = "payment_cancelled"
	ReasonUnknownOrder     = "unknown_order"
	ReasonUnmappedEvent    = "unmapped_event"
	ReasonMalformed        = "malformed_payload"
	ReasonAmountMismatch   = "amount_mismatch"
	ReasonNoop             = "already_processed"
)
