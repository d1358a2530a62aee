// README: Pricing store backed by PostgreSQL.
package pricing

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"wali/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// LoadTariffs reads every row of pricing_tariffs into a validated table.
func (s *Store) LoadTariffs(ctx context.Context) (Table, error) {
	rows, err := s.db.Query(ctx, `
		SELECT order_type, base_fee, per_km_rate, free_km, min_fee, max_fee, currency
		FROM pricing_tariffs`)
	if err != nil {
		return Table{}, fmt.Errorf("pricing: query tariffs: %w", err)
	}
	defer rows.Close()

	table := Table{Tariffs: make(map[types.OrderType]Tariff)}
	for rows.Next() {
		var (
			orderType string
			currency  string
			t         Tariff
		)
		if err := rows.Scan(&orderType, &t.BaseFee, &t.PerKmRate, &t.FreeKm, &t.MinFee, &t.MaxFee, &currency); err != nil {
			return Table{}, fmt.Errorf("pricing: scan tariff: %w", err)
		}
		ot, err := types.ParseOrderType(orderType)
		if err != nil {
			return Table{}, fmt.Errorf("pricing: %w", err)
		}
		if table.Currency != "" && table.Currency != currency {
			return Table{}, fmt.Errorf("pricing: mixed currencies %s and %s", table.Currency, currency)
		}
		table.Currency = currency
		table.Tariffs[ot] = t
	}
	if err := rows.Err(); err != nil {
		return Table{}, fmt.Errorf("pricing: read tariffs: %w", err)
	}
	if err := table.Validate(); err != nil {
		return Table{}, err
	}
	return table, nil
}

// Upsert writes one tariff row.
func (s *Store) Upsert(ctx context.Context, currency string, ot types.OrderType, t Tariff) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO pricing_tariffs (order_type, base_fee, per_km_rate, free_km, min_fee, max_fee, currency, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (order_type) DO UPDATE SET
			base_fee = EXCLUDED.base_fee,
			per_km_rate = EXCLUDED.per_km_rate,
			free_km = EXCLUDED.free_km,
			min_fee = EXCLUDED.min_fee,
			max_fee = EXCLUDED.max_fee,
			currency = EXCLUDED.currency,
			updated_at = NOW()`,
		string(ot), t.BaseFee, t.PerKmRate, t.FreeKm, t.MinFee, t.MaxFee, currency,
	)
	return err
}
