// Package storage is the SQLite-backed transaction and trip store.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"myex/internal/core"
	"myex/internal/log"
	"myex/internal/sources"
)

// Ensure interface conformance
var (
	_ sources.Reader = (*SQLiteRepository)(nil)
	_ sources.Writer = (*SQLiteRepository)(nil)
)

type SQLiteRepository struct {
	db     *sql.DB
	logger *log.Logger
}

func NewSQLiteRepository(dbPath string, logger *log.Logger) (*SQLiteRepository, error) {
	logger = logger.WithComponent(log.ComponentStorage)

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	version, err := RunMigrations(dbPath)
	if err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// modernc sqlite serializes writers; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	logger.Info("SQLite repository ready", "path", dbPath, "schema_version", version)
	return &SQLiteRepository{db: db, logger: logger}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// AddTransaction implements sources.TransactionWriter
func (r *SQLiteRepository) AddTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Currency == "" {
		t.Currency = core.PrimaryCurrency
	}
	if t.Source == "" {
		t.Source = core.SourceManual
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO transactions (id, date, amount, currency, category, type, description, source, trip_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Date.Format(sources.DateLayout), t.Amount.String(), string(t.Currency),
		string(t.Category), string(t.Type), t.Description, string(t.Source), t.TripID)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}

	r.logger.InfoContext(ctx, "Transaction saved to SQLite",
		log.FieldOperation, log.OpCreate,
		log.FieldTransaction, t.ID,
		"amount", t.Amount.String(),
		log.FieldCurrency, string(t.Currency),
		log.FieldTripID, t.TripID)
	return t, nil
}

// ListTransactions returns rows in insertion order. Rows are converted
// leniently so malformed data reaches the ledger, which skips and counts it.
func (r *SQLiteRepository) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, date, amount, currency, category, type, description, source, trip_id
		FROM transactions
		WHERE deleted_at IS NULL
		ORDER BY created_at, rowid`)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		var rec sources.TransactionRecord
		if err := rows.Scan(&rec.ID, &rec.Date, &rec.Amount, &rec.Currency, &rec.Category,
			&rec.Type, &rec.Description, &rec.Source, &rec.TripID); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, rec.Transaction())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

// AddTrip implements sources.TripWriter
func (r *SQLiteRepository) AddTrip(ctx context.Context, tr core.Trip) (core.Trip, error) {
	if err := tr.Validate(); err != nil {
		return core.Trip{}, err
	}
	if tr.ID == "" {
		tr.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO trips (id, name, start_date, end_date, budget)
		VALUES (?, ?, ?, ?, ?)`,
		tr.ID, tr.Name, tr.Start.Format(sources.DateLayout), tr.End.Format(sources.DateLayout), tr.Budget.String())
	if err != nil {
		return core.Trip{}, fmt.Errorf("insert trip: %w", err)
	}
	r.logger.InfoContext(ctx, "Trip saved to SQLite", log.FieldOperation, log.OpCreate, log.FieldTripID, tr.ID)
	return tr, nil
}

func (r *SQLiteRepository) ListTrips(ctx context.Context) ([]core.Trip, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, start_date, end_date, budget
		FROM trips
		ORDER BY start_date, id`)
	if err != nil {
		return nil, fmt.Errorf("query trips: %w", err)
	}
	defer rows.Close()

	var out []core.Trip
	for rows.Next() {
		tr, err := scanTrip(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trips: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) GetTrip(ctx context.Context, id string) (core.Trip, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, start_date, end_date, budget
		FROM trips
		WHERE id = ?`, id)
	tr, err := scanTrip(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Trip{}, fmt.Errorf("trip %q: %w", id, sources.ErrNotFound)
	}
	return tr, err
}

// DeleteTransaction soft deletes a transaction so it drops out of listings.
func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE transactions SET deleted_at = CURRENT_TIMESTAMP
		WHERE id = ? AND deleted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	} else if n == 0 {
		return fmt.Errorf("transaction %q: %w", id, sources.ErrNotFound)
	}
	r.logger.InfoContext(ctx, "Transaction soft deleted", log.FieldOperation, log.OpDelete, log.FieldTransaction, id)
	return nil
}

// DeleteTrip removes the trip and clears trip_id on its live transactions
// in one database transaction.
func (r *SQLiteRepository) DeleteTrip(ctx context.Context, id string) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin delete trip: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM trips WHERE id = ?`, id)
	if err != nil {
		return 0, fmt.Errorf("delete trip: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return 0, fmt.Errorf("delete trip: %w", err)
	} else if n == 0 {
		return 0, fmt.Errorf("trip %q: %w", id, sources.ErrNotFound)
	}

	res, err = tx.ExecContext(ctx, `
		UPDATE transactions SET trip_id = ''
		WHERE trip_id = ? AND deleted_at IS NULL`, id)
	if err != nil {
		return 0, fmt.Errorf("detach trip transactions: %w", err)
	}
	detached, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("detach trip transactions: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit delete trip: %w", err)
	}

	r.logger.InfoContext(ctx, "Trip deleted",
		log.FieldOperation, log.OpDelete,
		log.FieldTripID, id,
		log.FieldCount, detached)
	return int(detached), nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTrip(s scanner) (core.Trip, error) {
	var rec sources.TripRecord
	if err := s.Scan(&rec.ID, &rec.Name, &rec.Start, &rec.End, &rec.Budget); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Trip{}, err
		}
		return core.Trip{}, fmt.Errorf("scan trip: %w", err)
	}
	tr, err := rec.Trip()
	if err != nil {
		return core.Trip{}, fmt.Errorf("trip %q: %w", rec.ID, err)
	}
	return tr, nil
}
