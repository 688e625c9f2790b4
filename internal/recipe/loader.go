// Package recipe loads fix recipes and picks the one to run next.
package recipe

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/odavlstudio/odavl/internal/types"
)

// Load reads every *.json recipe from dir. Duplicate IDs are an error;
// an individual unreadable or invalid file is skipped with a warning so one
// bad recipe cannot take the whole autopilot down. A missing directory
// yields an empty catalog.
func Load(dir string, log *zap.Logger) ([]*types.Recipe, error) {
	if log == nil {
		log = zap.NewNop()
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read recipes directory: %w", err)
	}

	seen := make(map[string]string) // id -> filename
	var recipes []*types.Recipe

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(dir, entry.Name())

		data, err := os.ReadFile(path)
		if err != nil {
			log.Warn("skipping unreadable recipe", zap.String("file", entry.Name()), zap.Error(err))
			continue
		}

		var r types.Recipe
		if err := json.Unmarshal(data, &r); err != nil {
			log.Warn("skipping malformed recipe", zap.String("file", entry.Name()), zap.Error(err))
			continue
		}
		if err := r.Validate(); err != nil {
			log.Warn("skipping invalid recipe", zap.String("file", entry.Name()), zap.Error(err))
			continue
		}

		if prev, dup := seen[r.ID]; dup {
			return nil, fmt.Errorf("duplicate recipe id %q in %s and %s", r.ID, prev, entry.Name())
		}
		seen[r.ID] = entry.Name()
		recipes = append(recipes, &r)
	}

	sort.Slice(recipes, func(i, j int) bool { return recipes[i].ID < recipes[j].ID })
	return recipes, nil
}
