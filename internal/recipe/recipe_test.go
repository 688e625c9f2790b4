package recipe

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odavlstudio/odavl/internal/types"
)

func writeRecipe(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

const fixImports = `{
	"id": "fix-imports",
	"name": "Organize imports",
	"trust": 0.6,
	"condition": {"metric": "imports", "op": ">", "value": 0},
	"actions": [{"type": "command", "run": "npx organize-imports-cli"}]
}`

const fixLint = `{
	"id": "fix-lint",
	"name": "ESLint autofix",
	"trust": 0.8,
	"condition": {"metric": "eslint", "op": ">", "value": 0},
	"actions": [{"type": "command", "run": "npx eslint --fix ."}]
}`

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	writeRecipe(t, dir, "fix-imports.json", fixImports)
	writeRecipe(t, dir, "fix-lint.json", fixLint)
	writeRecipe(t, dir, "notes.txt", "not a recipe")

	recipes, err := Load(dir, nil)
	require.NoError(t, err)
	require.Len(t, recipes, 2)
	assert.Equal(t, "fix-imports", recipes[0].ID)
	assert.Equal(t, "fix-lint", recipes[1].ID)
}

func TestLoadMissingDir(t *testing.T) {
	recipes, err := Load(filepath.Join(t.TempDir(), "nope"), nil)
	require.NoError(t, err)
	assert.Empty(t, recipes)
}

func TestLoadSkipsMalformedFiles(t *testing.T) {
	dir := t.TempDir()
	writeRecipe(t, dir, "good.json", fixLint)
	writeRecipe(t, dir, "broken.json", "{oops")
	writeRecipe(t, dir, "invalid.json", `{"id": "x", "name": "no actions", "actions": []}`)

	recipes, err := Load(dir, nil)
	require.NoError(t, err)
	require.Len(t, recipes, 1)
	assert.Equal(t, "fix-lint", recipes[0].ID)
}

func TestLoadDuplicateIDs(t *testing.T) {
	dir := t.TempDir()
	writeRecipe(t, dir, "a.json", fixLint)
	writeRecipe(t, dir, "b.json", fixLint)

	_, err := Load(dir, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate recipe id")
}

func metricsWith(counts map[string]int) *types.Metrics {
	m := types.NewMetrics()
	for k, v := range counts {
		m.Counts[k] = v
		m.TotalIssues += v
	}
	return m
}

func testRecipes() []*types.Recipe {
	return []*types.Recipe{
		{
			ID: "fix-imports", Name: "Organize imports", Trust: 0.6,
			Condition: &types.Condition{Metric: "imports", Op: types.OpGT, Value: 0},
			Actions:   []types.Action{{Type: types.ActionCommand, Run: "true"}},
		},
		{
			ID: "fix-lint", Name: "ESLint autofix", Trust: 0.8,
			Condition: &types.Condition{Metric: "eslint", Op: types.OpGT, Value: 0},
			Actions:   []types.Action{{Type: types.ActionCommand, Run: "true"}},
		},
	}
}

func TestDecidePicksHighestTrust(t *testing.T) {
	m := metricsWith(map[string]int{"imports": 2, "eslint": 3})

	d := Decide(testRecipes(), m, nil, nil, nil)
	require.False(t, d.IsNoop())
	assert.Equal(t, "fix-lint", d.RecipeID)
	assert.Equal(t, 0.8, d.Trust)
}

func TestDecideStoredTrustOverridesRecipeTrust(t *testing.T) {
	m := metricsWith(map[string]int{"imports": 2, "eslint": 3})
	trust := map[string]*types.TrustRecord{
		"fix-lint": {ID: "fix-lint", Runs: 10, Success: 2, Trust: 0.2},
	}

	d := Decide(testRecipes(), m, trust, nil, nil)
	assert.Equal(t, "fix-imports", d.RecipeID)
}

func TestDecideSkipsBlacklisted(t *testing.T) {
	m := metricsWith(map[string]int{"eslint": 3})
	trust := map[string]*types.TrustRecord{
		"fix-lint": {ID: "fix-lint", Runs: 3, Success: 0, Trust: 0.1, Blacklisted: true},
	}

	d := Decide(testRecipes(), m, trust, nil, nil)
	assert.True(t, d.IsNoop())
}

func TestDecideNoopWhenNothingMatches(t *testing.T) {
	m := metricsWith(nil)
	d := Decide(testRecipes(), m, nil, nil, nil)
	assert.True(t, d.IsNoop())
	assert.Equal(t, types.NoopRecipeID, d.RecipeID)
	assert.Nil(t, d.Recipe)
}

func TestDecideDeterministicTiebreak(t *testing.T) {
	recipes := testRecipes()
	recipes[0].Trust = 0.8 // Same trust as fix-lint
	m := metricsWith(map[string]int{"imports": 1, "eslint": 1})

	for i := 0; i < 5; i++ {
		d := Decide(recipes, m, nil, nil, nil)
		assert.Equal(t, "fix-imports", d.RecipeID, "lowest ID wins ties")
	}
}
