package backend

import (
	"context"
	"time"

	"acctlog/internal/store"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// WatchFunc runs a backend's change detection until ctx is done.
type WatchFunc func(ctx context.Context) error

// BackendResult contains the store instance and optional lifecycle hooks
type BackendResult struct {
	Store   store.Store
	Cleanup CleanupFunc
	// Watch is set for backends without a native change stream.
	Watch WatchFunc
}

// Factory creates backends based on configuration
type Factory interface {
	// CreateBackend creates a store instance based on the provided config
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	// Backend type
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// Google Sheets specific
	GoogleSpreadsheetID  string
	GoogleDocumentsSheet string
	GoogleLocationsSheet string
	GoogleCredentials    []byte
	SheetsPollInterval   time.Duration

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

// String implements fmt.Stringer
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
