// Package sources defines where the ledger gets its transactions and trips.
package sources

import (
	"context"
	"errors"

	"myex/internal/core"
)

var ErrNotFound = errors.New("not found")

// Ports for outbound adapters.
type (
	// TransactionLister returns every known transaction; the ledger does
	// its own month filtering.
	TransactionLister interface {
		ListTransactions(ctx context.Context) ([]core.Transaction, error)
	}

	// TransactionWriter persists a validated transaction and returns it with
	// its assigned ID.
	TransactionWriter interface {
		AddTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error)
	}

	// TripWriter persists a validated trip and returns it with its ID.
	TripWriter interface {
		AddTrip(ctx context.Context, tr core.Trip) (core.Trip, error)
	}

	// TransactionDeleter removes a transaction, returning ErrNotFound for
	// unknown IDs.
	TransactionDeleter interface {
		DeleteTransaction(ctx context.Context, id string) error
	}

	// TripDeleter removes a trip and detaches its transactions, which then
	// count toward the monthly ledger. It returns how many were detached.
	TripDeleter interface {
		DeleteTrip(ctx context.Context, id string) (int, error)
	}

	TripLister interface {
		ListTrips(ctx context.Context) ([]core.Trip, error)
	}

	// TripReader returns ErrNotFound for unknown IDs.
	TripReader interface {
		GetTrip(ctx context.Context, id string) (core.Trip, error)
	}

	// Reader is what the refresh loop and HTTP layer read from.
	Reader interface {
		TransactionLister
		TripLister
		TripReader
	}

	// Writer is implemented by backends that accept changes.
	Writer interface {
		TransactionWriter
		TripWriter
		TransactionDeleter
		TripDeleter
	}
)
