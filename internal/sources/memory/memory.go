// Package memory is an in-process transaction and trip store, optionally
// seeded from a JSON file.
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"myex/internal/core"
	"myex/internal/sources"
)

// SeedFile is the file name NewFromDir looks for.
const SeedFile = "seed.json"

type Store struct {
	mu    sync.RWMutex
	txs   []core.Transaction
	trips []core.Trip
}

// Seed is the on-disk layout of a seed file.
type Seed struct {
	Transactions []sources.TransactionRecord `json:"transactions"`
	Trips        []sources.TripRecord        `json:"trips"`
}

func New() *Store {
	return &Store{}
}

// NewFromDir loads dir/seed.json when present. A missing file yields an empty
// store; an unreadable or invalid one is an error.
func NewFromDir(dir string) (*Store, error) {
	s := New()
	data, err := os.ReadFile(filepath.Join(dir, SeedFile))
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read seed: %w", err)
	}
	var seed Seed
	if err := json.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("decode seed: %w", err)
	}
	if err := s.Load(seed); err != nil {
		return nil, err
	}
	return s, nil
}

// Load appends seed contents. Transactions are kept even when malformed so the
// ledger can report them; trips must be valid.
func (s *Store) Load(seed Seed) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range seed.Trips {
		tr, err := r.Trip()
		if err != nil {
			return fmt.Errorf("seed trip %d: %w", i, err)
		}
		if tr.ID == "" {
			tr.ID = uuid.NewString()
		}
		s.trips = append(s.trips, tr)
	}
	for _, r := range seed.Transactions {
		t := r.Transaction()
		if t.ID == "" {
			t.ID = uuid.NewString()
		}
		s.txs = append(s.txs, t)
	}
	return nil
}

// AddTransaction validates and stores t, assigning an ID when missing.
func (s *Store) AddTransaction(_ context.Context, t core.Transaction) (core.Transaction, error) {
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
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txs = append(s.txs, t)
	return t, nil
}

func (s *Store) ListTransactions(_ context.Context) ([]core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]core.Transaction(nil), s.txs...), nil
}

// AddTrip validates and stores tr, assigning an ID when missing.
func (s *Store) AddTrip(_ context.Context, tr core.Trip) (core.Trip, error) {
	if err := tr.Validate(); err != nil {
		return core.Trip{}, err
	}
	if tr.ID == "" {
		tr.ID = uuid.NewString()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trips = append(s.trips, tr)
	return tr, nil
}

func (s *Store) ListTrips(_ context.Context) ([]core.Trip, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]core.Trip(nil), s.trips...), nil
}

func (s *Store) GetTrip(_ context.Context, id string) (core.Trip, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, tr := range s.trips {
		if tr.ID == id {
			return tr, nil
		}
	}
	return core.Trip{}, fmt.Errorf("trip %q: %w", id, sources.ErrNotFound)
}

func (s *Store) DeleteTransaction(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, t := range s.txs {
		if t.ID == id {
			s.txs = append(s.txs[:i:i], s.txs[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("transaction %q: %w", id, sources.ErrNotFound)
}

// DeleteTrip removes the trip and clears the trip ID on its transactions.
func (s *Store) DeleteTrip(_ context.Context, id string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := -1
	for i, tr := range s.trips {
		if tr.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return 0, fmt.Errorf("trip %q: %w", id, sources.ErrNotFound)
	}
	s.trips = append(s.trips[:idx:idx], s.trips[idx+1:]...)

	detached := 0
	for i := range s.txs {
		if s.txs[i].TripID == id {
			s.txs[i].TripID = ""
			detached++
		}
	}
	return detached, nil
}
