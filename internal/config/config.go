// Package config holds the workspace layout and runtime settings for the
// autopilot. Settings load from the environment with the ODAVL_ prefix;
// environment variables override defaults.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Workspace resolves the on-disk layout of the .odavl state directory.
type Workspace struct {
	// Root is the project directory being managed.
	Root string
}

// NewWorkspace returns a workspace rooted at dir ("." when empty).
func NewWorkspace(dir string) *Workspace {
	if dir == "" {
		dir = "."
	}
	return &Workspace{Root: dir}
}

// StateDir is the .odavl directory.
func (w *Workspace) StateDir() string { return filepath.Join(w.Root, ".odavl") }

// InsightReport is the primary analysis report path.
func (w *Workspace) InsightReport() string { return filepath.Join(w.StateDir(), "insight.json") }

// InsightFallback is the secondary analysis report path.
func (w *Workspace) InsightFallback() string {
	return filepath.Join(w.StateDir(), "insight", "latest-analysis.json")
}

// RecipesDir holds the recipe JSON files.
func (w *Workspace) RecipesDir() string { return filepath.Join(w.StateDir(), "recipes") }

// TrustFile is the flat JSON array of trust records.
func (w *Workspace) TrustFile() string { return filepath.Join(w.StateDir(), "recipes-trust.json") }

// UndoDir holds timestamped undo snapshots.
func (w *Workspace) UndoDir() string { return filepath.Join(w.StateDir(), "undo") }

// HistoryFile is the append-only cycle history.
func (w *Workspace) HistoryFile() string { return filepath.Join(w.StateDir(), "history.json") }

// TrustHistoryFile is the append-only trust-change history.
func (w *Workspace) TrustHistoryFile() string {
	return filepath.Join(w.StateDir(), "trust-history.json")
}

// ObserveFile is the latest metrics snapshot.
func (w *Workspace) ObserveFile() string {
	return filepath.Join(w.StateDir(), "metrics", "latest-observe.json")
}

// GatesFile is the quality-gate thresholds file.
func (w *Workspace) GatesFile() string { return filepath.Join(w.StateDir(), "gates.yml") }

// DatabaseFile is the SQLite audit log.
func (w *Workspace) DatabaseFile() string { return filepath.Join(w.StateDir(), "odavl.db") }

// ReportsDir holds verify and guardian reports.
func (w *Workspace) ReportsDir() string { return filepath.Join(w.Root, "reports") }

// GuardianReportsDir holds guardian reports.
func (w *Workspace) GuardianReportsDir() string { return filepath.Join(w.ReportsDir(), "guardian") }

// Config holds autopilot runtime settings
type Config struct {
	// CommandTimeout bounds each recipe shell command.
	// Default: 2 minutes
	CommandTimeout time.Duration `json:"command_timeout"`

	// SnapshotRetention is how many undo snapshots to keep.
	// Default: 10
	SnapshotRetention int `json:"snapshot_retention"`

	// RollbackOnGateFailure restores the pre-act snapshot when a cycle's
	// gates fail.
	// Default: true
	RollbackOnGateFailure bool `json:"rollback_on_gate_failure"`

	// MaxCyclesPerRun caps cycles for a single `odavl run`.
	// Default: 1
	MaxCyclesPerRun int `json:"max_cycles_per_run"`

	// WatchInterval is the minimum spacing between watch-mode cycles.
	// Default: 30 seconds
	WatchInterval time.Duration `json:"watch_interval"`

	// ScanMaxFiles caps the fallback shallow scan.
	// Default: 2000
	ScanMaxFiles int `json:"scan_max_files"`
}

// DefaultConfig returns default autopilot settings
func DefaultConfig() *Config {
	return &Config{
		CommandTimeout:        2 * time.Minute,
		SnapshotRetention:     10,
		RollbackOnGateFailure: true,
		MaxCyclesPerRun:       1,
		WatchInterval:         30 * time.Second,
		ScanMaxFiles:          2000,
	}
}

// LoadFromEnv loads settings from environment variables.
// Environment variables override default values.
// Prefix: ODAVL_
func LoadFromEnv() *Config {
	cfg := DefaultConfig()

	if val := os.Getenv("ODAVL_COMMAND_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil && d > 0 {
			cfg.CommandTimeout = d
		}
	}

	if val := os.Getenv("ODAVL_SNAPSHOT_RETENTION"); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n > 0 {
			cfg.SnapshotRetention = n
		}
	}

	if val := os.Getenv("ODAVL_ROLLBACK_ON_GATE_FAILURE"); val != "" {
		cfg.RollbackOnGateFailure = parseBool(val)
	}

	if val := os.Getenv("ODAVL_MAX_CYCLES_PER_RUN"); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n > 0 {
			cfg.MaxCyclesPerRun = n
		}
	}

	if val := os.Getenv("ODAVL_WATCH_INTERVAL"); val != "" {
		if d, err := time.ParseDuration(val); err == nil && d > 0 {
			cfg.WatchInterval = d
		}
	}

	if val := os.Getenv("ODAVL_SCAN_MAX_FILES"); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n > 0 {
			cfg.ScanMaxFiles = n
		}
	}

	return cfg
}

func parseBool(val string) bool {
	switch val {
	case "true", "TRUE", "True", "1", "yes", "YES":
		return true
	}
	return false
}
