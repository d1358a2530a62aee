// README: Order store backed by PostgreSQL.
package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"wali/internal/apperr"
	"wali/internal/types"
)

const uniqueViolation = "23505"

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

const orderColumns = `
	id, number, customer_id, type, status, version,
	pickup_lat, pickup_lng, pickup_address,
	delivery_lat, delivery_lng, delivery_address,
	items, distance_km, estimated_minutes,
	base_price, delivery_fee, items_subtotal, total_amount, currency,
	driver_id, notes, scheduled_at, proof_of_delivery, cancel_reason, failure_reason,
	created_at, updated_at, confirmed_at, assigned_at, picked_up_at,
	in_transit_at, delivered_at, cancelled_at, failed_at`

func (s *Store) Create(ctx context.Context, o *Order, e Event) error {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("order: encode items: %w", err)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO orders (`+orderColumns+`
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9,
			$10, $11, $12,
			$13, $14, $15,
			$16, $17, $18, $19, $20,
			$21, $22, $23, $24, $25, $26,
			$27, $28, $29, $30, $31,
			$32, $33, $34, $35
		)`,
		string(o.ID), o.Number, string(o.CustomerID), string(o.Type), string(o.Status), o.Version,
		o.Pickup.Lat, o.Pickup.Lng, o.Pickup.Address,
		o.Delivery.Lat, o.Delivery.Lng, o.Delivery.Address,
		items, o.Price.DistanceKm, o.Price.EstimatedDurationMinutes,
		o.Price.BasePrice, o.Price.DeliveryFee, o.Price.ItemsSubtotal, o.Price.TotalAmount, o.Price.Currency,
		toStringPtr(o.DriverID), o.Notes, o.ScheduledAt, o.ProofOfDelivery, o.CancelReason, o.FailureReason,
		o.CreatedAt, o.UpdatedAt, o.ConfirmedAt, o.AssignedAt, o.PickedUpAt,
		o.InTransitAt, o.DeliveredAt, o.CancelledAt, o.FailedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == "orders_number_key" {
			return ErrDuplicateNumber
		}
		return fmt.Errorf("order: insert: %w", err)
	}
	if err := appendEvent(ctx, tx, e); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Order, error) {
	row := s.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, string(id))
	o, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: order %s", apperr.ErrNotFound, id)
	}
	return o, err
}

func (s *Store) GetByNumber(ctx context.Context, number string) (*Order, error) {
	row := s.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE number = $1`, number)
	o, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: order %s", apperr.ErrNotFound, number)
	}
	return o, err
}

// Update writes o if the stored version still equals expectedVersion and
// appends e in the same transaction.
func (s *Store) Update(ctx context.Context, o *Order, expectedVersion int, e Event) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE orders
		SET status = $1,
			version = version + 1,
			distance_km = $2,
			estimated_minutes = $3,
			base_price = $4,
			delivery_fee = $5,
			items_subtotal = $6,
			total_amount = $7,
			currency = $8,
			driver_id = $9,
			proof_of_delivery = $10,
			cancel_reason = $11,
			failure_reason = $12,
			updated_at = $13,
			confirmed_at = $14,
			assigned_at = $15,
			picked_up_at = $16,
			in_transit_at = $17,
			delivered_at = $18,
			cancelled_at = $19,
			failed_at = $20
		WHERE id = $21 AND version = $22`,
		string(o.Status),
		o.Price.DistanceKm,
		o.Price.EstimatedDurationMinutes,
		o.Price.BasePrice,
		o.Price.DeliveryFee,
		o.Price.ItemsSubtotal,
		o.Price.TotalAmount,
		o.Price.Currency,
		toStringPtr(o.DriverID),
		o.ProofOfDelivery,
		o.CancelReason,
		o.FailureReason,
		o.UpdatedAt,
		o.ConfirmedAt,
		o.AssignedAt,
		o.PickedUpAt,
		o.InTransitAt,
		o.DeliveredAt,
		o.CancelledAt,
		o.FailedAt,
		string(o.ID),
		expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("order: update: %w", err)
	}
	if tag.RowsAffected() != 1 {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, string(o.ID)).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("%w: order %s", apperr.ErrNotFound, o.ID)
		}
		return fmt.Errorf("%w: order %s is no longer at version %d", apperr.ErrConcurrentModification, o.ID, expectedVersion)
	}
	if err := appendEvent(ctx, tx, e); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	o.Version = expectedVersion + 1
	return nil
}

func (s *Store) ListEvents(ctx context.Context, id types.ID) ([]Event, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, order_id, from_status, to_status, actor_type, actor_id, reason, created_at
		FROM order_state_events
		WHERE order_id = $1
		ORDER BY id`, string(id),
	)
	if err != nil {
		return nil, fmt.Errorf("order: query events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var (
			e       Event
			orderID string
			from    string
			to      string
			actorID *string
		)
		if err := rows.Scan(&e.ID, &orderID, &from, &to, &e.ActorType, &actorID, &e.Reason, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("order: scan event: %w", err)
		}
		e.OrderID = types.ID(orderID)
		e.FromStatus = Status(from)
		e.ToStatus = Status(to)
		e.ActorID = toIDPtr(actorID)
		out = append(out, e)
	}
	return out, rows.Err()
}

func appendEvent(ctx context.Context, tx pgx.Tx, e Event) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO order_state_events (
			order_id, from_status, to_status, actor_type, actor_id, reason, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		string(e.OrderID),
		string(e.FromStatus),
		string(e.ToStatus),
		e.ActorType,
		toStringPtr(e.ActorID),
		e.Reason,
		e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("order: append event: %w", err)
	}
	return nil
}

func scanOrder(row pgx.Row) (*Order, error) {
	var (
		o          Order
		id         string
		customerID string
		orderType  string
		status     string
		items      []byte
		driverID   *string
	)
	err := row.Scan(
		&id, &o.Number, &customerID, &orderType, &status, &o.Version,
		&o.Pickup.Lat, &o.Pickup.Lng, &o.Pickup.Address,
		&o.Delivery.Lat, &o.Delivery.Lng, &o.Delivery.Address,
		&items, &o.Price.DistanceKm, &o.Price.EstimatedDurationMinutes,
		&o.Price.BasePrice, &o.Price.DeliveryFee, &o.Price.ItemsSubtotal, &o.Price.TotalAmount, &o.Price.Currency,
		&driverID, &o.Notes, &o.ScheduledAt, &o.ProofOfDelivery, &o.CancelReason, &o.FailureReason,
		&o.CreatedAt, &o.UpdatedAt, &o.ConfirmedAt, &o.AssignedAt, &o.PickedUpAt,
		&o.InTransitAt, &o.DeliveredAt, &o.CancelledAt, &o.FailedAt,
	)
	if err != nil {
		return nil, err
	}
	o.ID = types.ID(id)
	o.CustomerID = types.ID(customerID)
	o.Type = types.OrderType(orderType)
	o.Status = Status(status)
	o.DriverID = toIDPtr(driverID)
	if len(items) > 0 {
		if err := json.Unmarshal(items, &o.Items); err != nil {
			return nil, fmt.Errorf("order: decode items: %w", err)
		}
	}
	normalizeTimes(&o)
	return &o, nil
}

// normalizeTimes puts every timestamp read back from Postgres in UTC.
func normalizeTimes(o *Order) {
	o.CreatedAt = o.CreatedAt.UTC()
	o.UpdatedAt = o.UpdatedAt.UTC()
	for _, p := range []**time.Time{
		&o.ScheduledAt, &o.ConfirmedAt, &o.AssignedAt, &o.PickedUpAt,
		&o.InTransitAt, &o.DeliveredAt, &o.CancelledAt, &o.FailedAt,
	} {
		if *p != nil {
			t := (*p).UTC()
			*p = &t
		}
	}
}

func toStringPtr(v *types.ID) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}

func toIDPtr(v *string) *types.ID {
	if v == nil {
		return nil
	}
	id := types.ID(*v)
	return &id
}
