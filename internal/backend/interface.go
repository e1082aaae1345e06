// Package backend selects and builds the transaction source configured by
// DATA_BACKEND.
package backend

import (
	"context"

	"myex/internal/sources"
)

// CleanupFunc releases backend resources.
type CleanupFunc func() error

// BackendResult contains the backend and an optional cleanup function.
// Writer is nil for read-only backends.
type BackendResult struct {
	Reader  sources.Reader
	Writer  sources.Writer
	Cleanup CleanupFunc
}

// Close runs Cleanup when set.
func (r *BackendResult) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// Google Sheets specific
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleTripsSheetName     string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// Memory backend specific
	DataDirectory string
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	SheetsBackend BackendType = "sheets"
	MemoryBackend BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, SheetsBackend, MemoryBackend:
		return true
	default:
		return false
	}
}

// ReadOnly reports whether the backend rejects new entries.
func (bt BackendType) ReadOnly() bool {
	return bt == SheetsBackend
}
