package order

import (
	"context"
	"errors"

	"wali/internal/types"
)

// ErrDuplicateNumber is returned by Repository.Create when the generated
// order number is already taken.
var ErrDuplicateNumber = errors.New("order: duplicate order number")

// Repository persists orders and their event log. Update must fail with
// apperr.ErrConcurrentModification when the stored version is not
// expectedVersion, and must write the order and the event atomically. On
// success it sets o.Version to expectedVersion+1.
type Repository interface {
	Create(ctx context.Context, o *Order, e Event) error
	Get(ctx context.Context, id types.ID) (*Order, error)
	GetByNumber(ctx context.Context, number string) (*Order, error)
	Update(ctx context.Context, o *Order, expectedVersion int, e Event) error
	ListEvents(ctx context.Context, id types.ID) ([]Event, error)
}

// Cache is an optional read-through cache in front of the repository.
type Cache interface {
	Get(ctx context.Context, id types.ID) (*Order, bool, error)
	Set(ctx context.Context, o *Order) error
}
