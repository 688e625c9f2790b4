// Package storage provides the queryable audit log for autopilot activity.
// The JSON files under .odavl/ remain the interchange format; the database
// is a supplemental record for history queries and reporting.
package storage

import (
	"context"

	"github.com/odavlstudio/odavl/internal/storage/sqlite"
	"github.com/odavlstudio/odavl/internal/types"
)

// Storage defines the interface for audit log backends
type Storage interface {
	// Cycles
	RecordCycle(ctx context.Context, cycle *types.CycleResult) error
	GetCycle(ctx context.Context, id string) (*types.CycleResult, error)
	ListCycles(ctx context.Context, limit int) ([]*types.CycleResult, error)

	// Trust events - one row per learn step
	RecordTrustEvent(ctx context.Context, recipeID string, success bool, trust float64, runs int) error
	GetTrustEvents(ctx context.Context, recipeID string, limit int) ([]*sqlite.TrustEventRow, error)

	// Attestations
	RecordAttestation(ctx context.Context, att *types.Attestation) error
	ListAttestations(ctx context.Context, limit int) ([]*types.Attestation, error)

	// Guardian runs
	RecordGuardianRun(ctx context.Context, run *sqlite.GuardianRunRow) error
	ListGuardianRuns(ctx context.Context, limit int) ([]*sqlite.GuardianRunRow, error)

	// Lifecycle
	Close() error
}

// Config holds database configuration
type Config struct {
	// Path is the SQLite database file path
	// Default: ".odavl/odavl.db"
	// Special value ":memory:" creates an in-memory database (useful for tests)
	Path string
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Path: ".odavl/odavl.db",
	}
}

// NewStorage creates a new SQLite audit log backend
func NewStorage(ctx context.Context, cfg *Config) (Storage, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Path == "" {
		cfg.Path = ".odavl/odavl.db"
	}
	return sqlite.New(cfg.Path)
}
