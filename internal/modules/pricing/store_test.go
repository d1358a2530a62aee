// README: Postgres tariff store tests; skipped unless WALI_TEST_DSN is set.
package pricing

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"wali/internal/infra"
	"wali/internal/modules/geo"
	"wali/internal/types"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()

	dsn := os.Getenv("WALI_TEST_DSN")
	if dsn == "" {
		t.Skip("WALI_TEST_DSN not set; skipping DB-backed tariff tests")
	}
	ctx := context.Background()
	db, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	dir, err := infra.MigrationsDir()
	if err != nil {
		t.Fatalf("locate migrations: %v", err)
	}
	if err := infra.ApplyMigrations(ctx, db, dir); err != nil {
		t.Fatalf("apply migration: %v", err)
	}
	if _, err := db.Exec(ctx, "TRUNCATE TABLE pricing_tariffs"); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return NewStore(db)
}

func TestStore_UpsertAndLoad(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	if _, err := s.LoadTariffs(ctx); err == nil {
		t.Fatal("expected empty tariff table to fail validation")
	}

	table := testTable()
	for ot, tariff := range table.Tariffs {
		if err := s.Upsert(ctx, table.Currency, ot, tariff); err != nil {
			t.Fatalf("upsert %s: %v", ot, err)
		}
	}
	got, err := s.LoadTariffs(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	for ot, want := range table.Tariffs {
		if got.Tariffs[ot] != want {
			t.Errorf("%s = %+v, want %+v", ot, got.Tariffs[ot], want)
		}
	}

	// the database can back the pricing service directly
	svc := NewService(s, geo.DefaultServiceArea())
	if err := svc.Reload(ctx); err != nil {
		t.Fatalf("reload: %v", err)
	}
	b, err := svc.Calculate(ctx, Request{Type: types.OrderTypeDelivery, Pickup: treichville, Delivery: nearby})
	if err != nil || b.TotalAmount != 1000 {
		t.Errorf("Calculate = %+v, %v", b, err)
	}

	if err := s.Upsert(ctx, "EUR", types.OrderTypeFood, table.Tariffs[types.OrderTypeFood]); err != nil {
		t.Fatal(err)
	}
	if _, err := s.LoadTariffs(ctx); err == nil {
		t.Error("expected mixed currencies to be rejected")
	}
}
