// Package trust maintains the bounded running success ratio for each
// recipe and applies the learn step of the autopilot cycle.
package trust

import (
	"fmt"
	"os"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/odavlstudio/odavl/internal/atomicio"
	"github.com/odavlstudio/odavl/internal/types"
)

// Store holds trust records, persisted as a flat JSON array.
type Store struct {
	path    string
	records map[string]*types.TrustRecord
}

// LoadStore reads the trust file. A missing file is empty state.
func LoadStore(path string) (*Store, error) {
	s := &Store{path: path, records: make(map[string]*types.TrustRecord)}

	var list []*types.TrustRecord
	if err := atomicio.ReadJSON(path, &list); err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("failed to load trust file: %w", err)
	}
	for _, rec := range list {
		s.records[rec.ID] = rec
	}
	return s, nil
}

// Get returns the record for a recipe, or nil when it has never run.
func (s *Store) Get(id string) *types.TrustRecord {
	return s.records[id]
}

// All returns the records keyed by recipe ID.
func (s *Store) All() map[string]*types.TrustRecord {
	return s.records
}

// Records returns all records sorted by recipe ID.
func (s *Store) Records() []*types.TrustRecord {
	list := make([]*types.TrustRecord, 0, len(s.records))
	for _, rec := range s.records {
		list = append(list, rec)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list
}

// Update applies one run outcome: runs is incremented, trust is recomputed
// as success/runs clamped to [0.1, 1.0], and three consecutive failures set
// the blacklist flag. A success resets the failure streak but never clears
// an existing blacklist; that requires an explicit Reset.
func (s *Store) Update(id string, success bool) *types.TrustRecord {
	rec := s.records[id]
	if rec == nil {
		rec = &types.TrustRecord{ID: id}
		s.records[id] = rec
	}

	rec.Runs++
	if success {
		rec.Success++
		rec.ConsecutiveFailures = 0
	} else {
		rec.ConsecutiveFailures++
		if rec.ConsecutiveFailures >= types.BlacklistThreshold {
			rec.Blacklisted = true
		}
	}

	rec.Trust = types.ClampTrust(float64(rec.Success) / float64(rec.Runs))
	rec.UpdatedAt = time.Now()
	return rec
}

// Reset clears a recipe's record entirely, including the blacklist flag.
func (s *Store) Reset(id string) {
	delete(s.records, id)
}

// Save writes the trust file atomically, sorted by recipe ID.
func (s *Store) Save() error {
	if err := atomicio.WriteJSON(s.path, s.Records()); err != nil {
		return fmt.Errorf("failed to save trust file: %w", err)
	}
	return nil
}

// TrustEvent is one entry in the append-only trust history.
type TrustEvent struct {
	RecipeID string    `json:"recipe_id"`
	Success  bool      `json:"success"`
	Trust    float64   `json:"trust"`
	Runs     int       `json:"runs"`
	At       time.Time `json:"at"`
}

// Learner applies the learn step: trust update plus the two append-only
// history logs.
type Learner struct {
	store            *Store
	historyPath      string
	trustHistoryPath string
	log              *zap.Logger
}

// NewLearner creates a learner over the given store and history files.
func NewLearner(store *Store, historyPath, trustHistoryPath string, log *zap.Logger) *Learner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Learner{
		store:            store,
		historyPath:      historyPath,
		trustHistoryPath: trustHistoryPath,
		log:              log,
	}
}

// Learn records a cycle outcome: the trust record is updated and saved,
// and the cycle plus the trust change are appended to their history files.
// History append failures are logged, not fatal; the trust file is the
// source of truth.
func (l *Learner) Learn(cycle *types.CycleResult, success bool) (*types.TrustRecord, error) {
	rec := l.store.Update(cycle.RecipeID, success)
	if err := l.store.Save(); err != nil {
		return nil, err
	}

	if err := appendJSON(l.historyPath, cycle); err != nil {
		l.log.Warn("failed to append cycle history", zap.Error(err))
	}
	event := &TrustEvent{
		RecipeID: rec.ID,
		Success:  success,
		Trust:    rec.Trust,
		Runs:     rec.Runs,
		At:       rec.UpdatedAt,
	}
	if err := appendJSON(l.trustHistoryPath, event); err != nil {
		l.log.Warn("failed to append trust history", zap.Error(err))
	}

	l.log.Info("learn: trust updated",
		zap.String("recipe", rec.ID),
		zap.Bool("success", success),
		zap.Float64("trust", rec.Trust),
		zap.Bool("blacklisted", rec.Blacklisted))
	return rec, nil
}

// appendJSON appends v to a JSON array file, rewriting it atomically.
func appendJSON(path string, v interface{}) error {
	var entries []interface{}
	if err := atomicio.ReadJSON(path, &entries); err != nil && !os.IsNotExist(err) {
		return err
	}
	entries = append(entries, v)
	return atomicio.WriteJSON(path, entries)
}
