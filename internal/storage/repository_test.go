package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"myex/internal/core"
	"myex/internal/log"
	"myex/internal/sources"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "db", "myex.db"), log.New(log.DefaultConfig()))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestRunMigrationsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.db")
	v1, err := RunMigrations(path)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	v2, err := RunMigrations(path)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if v1 != 2 || v2 != 2 {
		t.Fatalf("versions = %d, %d; want 2, 2", v1, v2)
	}
}

func TestRepositoryTransactions(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	saved, err := repo.AddTransaction(ctx, core.Transaction{
		Date:        time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC),
		Amount:      decimal.RequireFromString("19.90"),
		Currency:    core.BRL,
		Category:    core.Transport,
		Type:        core.Expense,
		Description: "metro",
	})
	if err != nil {
		t.Fatalf("AddTransaction: %v", err)
	}
	if saved.ID == "" || saved.Source != core.SourceManual {
		t.Fatalf("defaults not applied: %+v", saved)
	}

	if _, err := repo.AddTransaction(ctx, core.Transaction{Amount: decimal.NewFromInt(1), Category: core.Food, Type: core.Expense}); !errors.Is(err, core.ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}

	// A row written outside the application with an unknown category.
	if _, err := repo.db.ExecContext(ctx, `INSERT INTO transactions (id, date, amount, category, type) VALUES ('x', '2025-06-04', '5', 'pets', 'expense')`); err != nil {
		t.Fatalf("raw insert: %v", err)
	}

	list, err := repo.ListTransactions(ctx)
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(list))
	}
	got := list[0]
	if got.ID != saved.ID || got.Currency != core.BRL || !got.Amount.Equal(decimal.RequireFromString("19.9")) ||
		!got.Date.Equal(saved.Date) || got.Description != "metro" {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if list[1].Validate() == nil {
		t.Fatalf("malformed row should not validate")
	}
}

func TestRepositoryTrips(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	tr, err := repo.AddTrip(ctx, core.Trip{
		Name:   "Rio",
		Start:  time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		End:    time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC),
		Budget: decimal.NewFromInt(1500),
	})
	if err != nil {
		t.Fatalf("AddTrip: %v", err)
	}

	got, err := repo.GetTrip(ctx, tr.ID)
	if err != nil {
		t.Fatalf("GetTrip: %v", err)
	}
	if got.Name != "Rio" || !got.Budget.Equal(decimal.NewFromInt(1500)) || !got.End.Equal(tr.End) {
		t.Fatalf("unexpected trip: %+v", got)
	}

	if _, err := repo.GetTrip(ctx, "missing"); !errors.Is(err, sources.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	trips, err := repo.ListTrips(ctx)
	if err != nil || len(trips) != 1 {
		t.Fatalf("ListTrips = %v, %v", trips, err)
	}
}

func TestRepositoryDeleteTransaction(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	saved, err := repo.AddTransaction(ctx, core.Transaction{
		Date:     time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC),
		Amount:   decimal.NewFromInt(10),
		Category: core.Food,
		Type:     core.Expense,
	})
	if err != nil {
		t.Fatalf("AddTransaction: %v", err)
	}

	if err := repo.DeleteTransaction(ctx, saved.ID); err != nil {
		t.Fatalf("DeleteTransaction: %v", err)
	}
	list, err := repo.ListTransactions(ctx)
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("soft deleted transaction still listed: %+v", list)
	}

	if err := repo.DeleteTransaction(ctx, saved.ID); !errors.Is(err, sources.ErrNotFound) {
		t.Fatalf("second delete: expected ErrNotFound, got %v", err)
	}
}

func TestRepositoryDeleteTripDetachesTransactions(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	tr, err := repo.AddTrip(ctx, core.Trip{
		Name:  "Rio",
		Start: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("AddTrip: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := repo.AddTransaction(ctx, core.Transaction{
			Date:     time.Date(2025, 6, 2+i, 0, 0, 0, 0, time.UTC),
			Amount:   decimal.NewFromInt(5),
			Category: core.Food,
			Type:     core.Expense,
			TripID:   tr.ID,
		}); err != nil {
			t.Fatalf("AddTransaction: %v", err)
		}
	}

	detached, err := repo.DeleteTrip(ctx, tr.ID)
	if err != nil {
		t.Fatalf("DeleteTrip: %v", err)
	}
	if detached != 2 {
		t.Fatalf("detached = %d, want 2", detached)
	}

	list, _ := repo.ListTransactions(ctx)
	if len(list) != 2 {
		t.Fatalf("transactions must survive trip deletion, got %d", len(list))
	}
	for _, tx := range list {
		if tx.TripID != "" {
			t.Fatalf("trip_id not cleared: %+v", tx)
		}
	}

	if _, err := repo.GetTrip(ctx, tr.ID); !errors.Is(err, sources.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if _, err := repo.DeleteTrip(ctx, tr.ID); !errors.Is(err, sources.ErrNotFound) {
		t.Fatalf("second delete: expected ErrNotFound, got %v", err)
	}
}
