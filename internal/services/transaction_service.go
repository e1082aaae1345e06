// Package services orchestrates writes across the configured backend, the
// event bus and the live ledger.
package services

import (
	"context"
	"errors"
	"fmt"

	"myex/internal/core"
	"myex/internal/log"
	"myex/internal/sources"
)

var (
	ErrReadOnly    = errors.New("backend is read-only")
	ErrUnknownTrip = errors.New("unknown trip")
)

// ValidationError wraps a rejected transaction or trip.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string { return e.Err.Error() }

func (e *ValidationError) Unwrap() error { return e.Err }

// Publisher announces stored transactions to other processes.
type Publisher interface {
	PublishTransactionRecorded(ctx context.Context, id string) error
	PublishTransactionDeleted(ctx context.Context, id string) error
}

// Reloader refreshes the live ledger after a write.
type Reloader interface {
	Reload(ctx context.Context) error
}

// TransactionService saves entries first, then publishes and reloads. The
// save is the only step whose failure is reported; publish and reload
// failures are logged because the entry is already durable.
type TransactionService struct {
	writer    sources.Writer
	trips     sources.TripReader
	publisher Publisher
	reloader  Reloader
	logger    *log.Logger
}

// NewTransactionService accepts a nil writer (read-only backend), publisher
// or reloader.
func NewTransactionService(writer sources.Writer, trips sources.TripReader, publisher Publisher, reloader Reloader, logger *log.Logger) *TransactionService {
	return &TransactionService{
		writer:    writer,
		trips:     trips,
		publisher: publisher,
		reloader:  reloader,
		logger:    logger.WithComponent(log.ComponentApp),
	}
}

func (s *TransactionService) ReadOnly() bool {
	return s.writer == nil
}

// CreateTransaction validates t, checks its trip exists, stores it and
// announces it. Descriptions are length-checked here only, so entries that
// reach the backend by other means still aggregate.
func (s *TransactionService) CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if s.writer == nil {
		return core.Transaction{}, ErrReadOnly
	}
	if err := t.Validate(); err != nil {
		return core.Transaction{}, &ValidationError{Err: err}
	}
	if err := core.CheckDescription(t.Description); err != nil {
		return core.Transaction{}, &ValidationError{Err: err}
	}
	if t.IsTrip() && s.trips != nil {
		_, err := s.trips.GetTrip(ctx, t.TripID)
		if errors.Is(err, sources.ErrNotFound) {
			return core.Transaction{}, &ValidationError{Err: fmt.Errorf("%w %s", ErrUnknownTrip, t.TripID)}
		}
		if err != nil {
			return core.Transaction{}, fmt.Errorf("lookup trip: %w", err)
		}
	}

	saved, err := s.writer.AddTransaction(ctx, t)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}

	s.publish(ctx, saved.ID, Publisher.PublishTransactionRecorded)
	s.reload(ctx)

	s.logger.InfoContext(ctx, "Transaction recorded",
		log.FieldOperation, log.OpCreate,
		log.FieldTransaction, saved.ID,
		log.FieldTripID, saved.TripID)
	return saved, nil
}

// CreateTrip validates and stores tr.
func (s *TransactionService) CreateTrip(ctx context.Context, tr core.Trip) (core.Trip, error) {
	if s.writer == nil {
		return core.Trip{}, ErrReadOnly
	}
	if err := tr.Validate(); err != nil {
		return core.Trip{}, &ValidationError{Err: err}
	}
	saved, err := s.writer.AddTrip(ctx, tr)
	if err != nil {
		return core.Trip{}, fmt.Errorf("save trip: %w", err)
	}
	s.logger.InfoContext(ctx, "Trip created",
		log.FieldOperation, log.OpCreate,
		log.FieldTripID, saved.ID)
	return saved, nil
}

// DeleteTransaction removes the entry, announces the deletion and reloads.
func (s *TransactionService) DeleteTransaction(ctx context.Context, id string) error {
	if s.writer == nil {
		return ErrReadOnly
	}
	if err := s.writer.DeleteTransaction(ctx, id); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}

	s.publish(ctx, id, Publisher.PublishTransactionDeleted)
	s.reload(ctx)

	s.logger.InfoContext(ctx, "Transaction deleted",
		log.FieldOperation, log.OpDelete,
		log.FieldTransaction, id)
	return nil
}

// DeleteTrip removes the trip and detaches its transactions, which stay in
// the ledger as ordinary entries. It returns how many were detached.
func (s *TransactionService) DeleteTrip(ctx context.Context, id string) (int, error) {
	if s.writer == nil {
		return 0, ErrReadOnly
	}
	detached, err := s.writer.DeleteTrip(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("delete trip: %w", err)
	}
	s.reload(ctx)

	s.logger.InfoContext(ctx, "Trip deleted",
		log.FieldOperation, log.OpDelete,
		log.FieldTripID, id,
		log.FieldCount, detached)
	return detached, nil
}

// publish sends one event through the given Publisher method.
func (s *TransactionService) publish(ctx context.Context, id string, send func(Publisher, context.Context, string) error) {
	if s.publisher == nil {
		s.logger.DebugContext(ctx, "Event publisher not available, skipping transaction event")
		return
	}
	if err := send(s.publisher, ctx, id); err != nil {
		s.logger.WarnContext(ctx, "Transaction event not published",
			log.FieldOperation, log.OpPublish,
			log.FieldTransaction, id,
			log.FieldError, err.Error())
	}
}

func (s *TransactionService) reload(ctx context.Context) {
	if s.reloader == nil {
		return
	}
	if err := s.reloader.Reload(ctx); err != nil {
		s.logger.WarnContext(ctx, "Ledger reload after write failed", log.FieldError, err.Error())
	}
}
