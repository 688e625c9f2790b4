// Package undo snapshots files before a recipe touches them and restores
// them by overwrite. Snapshots are timestamped JSON documents under
// .odavl/undo/ plus a latest.json pointer; both are written atomically.
package undo

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/odavlstudio/odavl/internal/atomicio"
	"github.com/odavlstudio/odavl/internal/types"
)

const latestName = "latest.json"

// Manager owns the undo snapshot directory.
type Manager struct {
	dir       string
	root      string // workspace root, relative snapshot paths resolve here
	retention int
	log       *zap.Logger
}

// NewManager creates an undo manager. Retention of 0 or less keeps 10.
func NewManager(dir, root string, retention int, log *zap.Logger) *Manager {
	if retention <= 0 {
		retention = 10
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{dir: dir, root: root, retention: retention, log: log}
}

// Snapshot copies the current content of paths into a new snapshot.
// A directory path expands to every regular file beneath it. Paths that
// do not exist are recorded as nil so a restore deletes them.
func (m *Manager) Snapshot(recipeID string, paths []string) (*types.UndoSnapshot, error) {
	files, err := m.expand(paths)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	snap := &types.UndoSnapshot{
		ID:            fmt.Sprintf("%s-%s", now.Format("20060102-150405.000000000"), uuid.NewString()[:8]),
		Timestamp:     now,
		RecipeID:      recipeID,
		ModifiedFiles: files,
		Data:          make(map[string]*string, len(files)),
	}

	for _, p := range files {
		data, err := os.ReadFile(m.resolve(p))
		if err != nil {
			if os.IsNotExist(err) {
				snap.Data[p] = nil
				continue
			}
			return nil, fmt.Errorf("failed to read %s for snapshot: %w", p, err)
		}
		content := string(data)
		snap.Data[p] = &content
	}

	path := filepath.Join(m.dir, snap.ID+".json")
	if err := atomicio.WriteJSON(path, snap); err != nil {
		return nil, fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := atomicio.WriteJSON(filepath.Join(m.dir, latestName), snap); err != nil {
		return nil, fmt.Errorf("failed to write latest snapshot: %w", err)
	}

	if err := m.prune(); err != nil {
		m.log.Warn("snapshot prune failed", zap.Error(err))
	}

	m.log.Info("snapshot taken",
		zap.String("snapshot", snap.ID),
		zap.String("recipe", recipeID),
		zap.Int("files", len(paths)))
	return snap, nil
}

// expand resolves declared paths to the files they cover: a directory
// entry expands to every regular file beneath it, a plain file or missing
// path is kept as is.
func (m *Manager) expand(paths []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	add := func(p string) {
		if p != "" && !seen[p] {
			seen[p] = true
			files = append(files, p)
		}
	}

	for _, p := range paths {
		resolved := m.resolve(p)
		info, err := os.Stat(resolved)
		if err != nil || !info.IsDir() {
			add(p)
			continue
		}
		walkErr := filepath.WalkDir(resolved, func(fp string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() || !d.Type().IsRegular() {
				return nil
			}
			if filepath.IsAbs(p) {
				add(fp)
				return nil
			}
			rel, err := filepath.Rel(m.root, fp)
			if err != nil {
				return err
			}
			add(rel)
			return nil
		})
		if walkErr != nil {
			return nil, fmt.Errorf("failed to expand %s for snapshot: %w", p, walkErr)
		}
	}
	return files, nil
}

// Latest returns the most recent snapshot, or nil when none exists.
func (m *Manager) Latest() (*types.UndoSnapshot, error) {
	var snap types.UndoSnapshot
	if err := atomicio.ReadJSON(filepath.Join(m.dir, latestName), &snap); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return &snap, nil
}

// Get loads a snapshot by ID.
func (m *Manager) Get(id string) (*types.UndoSnapshot, error) {
	var snap types.UndoSnapshot
	if err := atomicio.ReadJSON(filepath.Join(m.dir, id+".json"), &snap); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("snapshot %s not found", id)
		}
		return nil, err
	}
	return &snap, nil
}

// List returns snapshot IDs, newest first.
func (m *Manager) List() ([]string, error) {
	ids, err := m.listOldestFirst()
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(ids)-1; i < j; i, j = i+1, j-1 {
		ids[i], ids[j] = ids[j], ids[i]
	}
	return ids, nil
}

// Restore overwrites files with snapshot content. Entries recorded as nil
// (the file did not exist at snapshot time) are deleted.
func (m *Manager) Restore(snap *types.UndoSnapshot) (int, error) {
	restored := 0
	for p, content := range snap.Data {
		target := m.resolve(p)
		if content == nil {
			if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
				return restored, fmt.Errorf("failed to remove %s: %w", p, err)
			}
			restored++
			continue
		}
		if err := atomicio.WriteFile(target, []byte(*content), 0644); err != nil {
			return restored, fmt.Errorf("failed to restore %s: %w", p, err)
		}
		restored++
	}

	m.log.Info("snapshot restored",
		zap.String("snapshot", snap.ID),
		zap.Int("files", restored))
	return restored, nil
}

// RestoreByID restores a specific snapshot, or the latest when id is empty.
func (m *Manager) RestoreByID(id string) (int, error) {
	var snap *types.UndoSnapshot
	var err error
	if id == "" {
		snap, err = m.Latest()
		if err == nil && snap == nil {
			err = fmt.Errorf("no snapshots available")
		}
	} else {
		snap, err = m.Get(id)
	}
	if err != nil {
		return 0, err
	}
	return m.Restore(snap)
}

// prune keeps only the newest retention snapshots.
func (m *Manager) prune() error {
	ids, err := m.listOldestFirst()
	if err != nil {
		return err
	}
	excess := len(ids) - m.retention
	for i := 0; i < excess; i++ {
		if err := os.Remove(filepath.Join(m.dir, ids[i]+".json")); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

// listOldestFirst returns snapshot IDs sorted ascending. Snapshot IDs start
// with a sortable timestamp, so lexical order is chronological order.
func (m *Manager) listOldestFirst() ([]string, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || name == latestName || !strings.HasSuffix(name, ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *Manager) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.root, p)
}
