package autopilot

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odavlstudio/odavl/internal/atomicio"
	"github.com/odavlstudio/odavl/internal/config"
	"github.com/odavlstudio/odavl/internal/storage/sqlite"
	"github.com/odavlstudio/odavl/internal/types"
	"github.com/odavlstudio/odavl/internal/undo"
)

// newTestEngine builds an engine over a temp workspace with no analysis
// report, so observations fall back to the shallow scan.
func newTestEngine(t *testing.T) (*Engine, *config.Workspace) {
	t.Helper()
	ws := config.NewWorkspace(t.TempDir())

	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	e, err := New(&Config{Workspace: ws, Store: store})
	require.NoError(t, err)
	return e, ws
}

func writeRecipe(t *testing.T, ws *config.Workspace, r *types.Recipe) {
	t.Helper()
	require.NoError(t, atomicio.WriteJSON(filepath.Join(ws.RecipesDir(), r.ID+".json"), r))
}

func writeSource(t *testing.T, ws *config.Workspace, rel, content string) {
	t.Helper()
	require.NoError(t, atomicio.WriteFile(filepath.Join(ws.Root, rel), []byte(content), 0o644))
}

func TestNewRequiresWorkspace(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)

	_, err = New(&Config{})
	assert.Error(t, err)
}

func TestCycleNoopWhenNoRecipeMatches(t *testing.T) {
	e, _ := newTestEngine(t)

	cycle, err := e.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.NoopRecipeID, cycle.RecipeID)
	assert.Equal(t, types.PhaseCompleted, cycle.Phase)
	assert.False(t, cycle.StartedAt.IsZero())
	assert.False(t, cycle.CompletedAt.IsZero())
}

func TestCycleAppliesFixAndAttests(t *testing.T) {
	e, ws := newTestEngine(t)
	writeSource(t, ws, "src/app.ts", "let a: any;\nlet b: any;\n")
	writeRecipe(t, ws, &types.Recipe{
		ID:        "fix-any",
		Name:      "Replace explicit any",
		Condition: &types.Condition{Metric: "typescript", Op: types.OpGT, Value: 0},
		Actions: []types.Action{
			{Type: types.ActionEdit, Path: "src/app.ts", Find: ": any", Replace: ": unknown"},
		},
	})

	cycle, err := e.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fix-any", cycle.RecipeID)
	assert.Equal(t, types.PhaseCompleted, cycle.Phase)
	assert.True(t, cycle.GatesPassed)
	assert.False(t, cycle.RolledBack)
	assert.Equal(t, -2, cycle.Deltas["typescript"])

	data, err := os.ReadFile(filepath.Join(ws.Root, "src/app.ts"))
	require.NoError(t, err)
	assert.NotContains(t, string(data), ": any")

	// Verified improvement leaves an attestation in the audit log
	atts, err := e.store.ListAttestations(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, atts, 1)
	assert.Equal(t, "fix-any", atts[0].RecipeID)

	// Learn step raised trust for the recipe
	events, err := e.store.GetTrustEvents(context.Background(), "fix-any", 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.True(t, events[0].Success)
	assert.Equal(t, 1.0, events[0].Trust)
}

func TestCycleRollsBackOnGateFailure(t *testing.T) {
	e, ws := newTestEngine(t)
	original := "// TODO fix this\nlet a: any;\n"
	writeSource(t, ws, "src/app.ts", original)
	// The "fix" makes things worse: one TODO becomes two
	writeRecipe(t, ws, &types.Recipe{
		ID:        "bad-fix",
		Name:      "Makes things worse",
		Condition: &types.Condition{Metric: "todo", Op: types.OpGT, Value: 0},
		Actions: []types.Action{
			{Type: types.ActionEdit, Path: "src/app.ts", Find: "// TODO fix this", Replace: "// TODO fix this\n// TODO and this"},
		},
	})

	cycle, err := e.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.PhaseCompleted, cycle.Phase)
	assert.False(t, cycle.GatesPassed)
	assert.True(t, cycle.RolledBack)

	data, err := os.ReadFile(filepath.Join(ws.Root, "src/app.ts"))
	require.NoError(t, err)
	assert.Equal(t, original, string(data), "rollback restored the original content")

	events, err := e.store.GetTrustEvents(context.Background(), "bad-fix", 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.False(t, events[0].Success)

	atts, err := e.store.ListAttestations(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, atts, "no attestation for a failed verification")
}

func TestCycleSnapshotTakenBeforeActing(t *testing.T) {
	e, ws := newTestEngine(t)
	writeSource(t, ws, "src/app.ts", "let a: any;\n")
	writeRecipe(t, ws, &types.Recipe{
		ID:        "fix-any",
		Name:      "Replace explicit any",
		Condition: &types.Condition{Metric: "typescript", Op: types.OpGT, Value: 0},
		Actions: []types.Action{
			{Type: types.ActionEdit, Path: "src/app.ts", Find: ": any", Replace: ": unknown"},
		},
	})

	_, err := e.RunCycle(context.Background())
	require.NoError(t, err)

	um := undo.NewManager(ws.UndoDir(), ws.Root, 10, nil)
	snap, err := um.Latest()
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, "fix-any", snap.RecipeID)
	require.Contains(t, snap.Data, "src/app.ts")
	assert.Contains(t, *snap.Data["src/app.ts"], ": any", "snapshot holds pre-act content")
}

func TestCycleWithDirectoryFilesHint(t *testing.T) {
	e, ws := newTestEngine(t)
	writeSource(t, ws, "src/app.ts", "let a = 1;\nconsole.log(a);\n")
	// Command recipes declare a directory; the snapshot covers the files
	// beneath it
	writeRecipe(t, ws, &types.Recipe{
		ID:        "drop-console",
		Name:      "Remove console.log",
		Condition: &types.Condition{Metric: "console", Op: types.OpGT, Value: 0},
		Actions: []types.Action{
			{Type: types.ActionCommand, Run: `sed -i '/console\.log/d' src/app.ts`, TimeoutSec: 30},
		},
		Files: []string{"src"},
	})

	cycle, err := e.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.PhaseCompleted, cycle.Phase)
	assert.True(t, cycle.GatesPassed)

	um := undo.NewManager(ws.UndoDir(), ws.Root, 10, nil)
	snap, err := um.Latest()
	require.NoError(t, err)
	require.NotNil(t, snap)
	require.Contains(t, snap.Data, filepath.Join("src", "app.ts"))
	assert.Contains(t, *snap.Data[filepath.Join("src", "app.ts")], "console.log")

	data, err := os.ReadFile(filepath.Join(ws.Root, "src/app.ts"))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "console.log")
}

func TestCycleRecordedInAuditLog(t *testing.T) {
	e, _ := newTestEngine(t)

	cycle, err := e.RunCycle(context.Background())
	require.NoError(t, err)

	stored, err := e.store.GetCycle(context.Background(), cycle.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, types.PhaseCompleted, stored.Phase)
}

func TestRunStopsAfterNoop(t *testing.T) {
	ws := config.NewWorkspace(t.TempDir())
	settings := config.DefaultConfig()
	settings.MaxCyclesPerRun = 5

	e, err := New(&Config{Workspace: ws, Settings: settings})
	require.NoError(t, err)

	results, err := e.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1, "noop ends the run early")
	assert.Equal(t, types.NoopRecipeID, results[0].RecipeID)
}

func TestRunChainsCyclesUntilClean(t *testing.T) {
	ws := config.NewWorkspace(t.TempDir())
	settings := config.DefaultConfig()
	settings.MaxCyclesPerRun = 5

	e, err := New(&Config{Workspace: ws, Settings: settings})
	require.NoError(t, err)

	writeSource(t, ws, "src/app.ts", "let a: any;\nconsole.log(a);\n")
	writeRecipe(t, ws, &types.Recipe{
		ID:        "fix-any",
		Name:      "Replace explicit any",
		Condition: &types.Condition{Metric: "typescript", Op: types.OpGT, Value: 0},
		Actions: []types.Action{
			{Type: types.ActionEdit, Path: "src/app.ts", Find: ": any", Replace: ": unknown"},
		},
	})
	writeRecipe(t, ws, &types.Recipe{
		ID:        "drop-console",
		Name:      "Remove console.log",
		Condition: &types.Condition{Metric: "console", Op: types.OpGT, Value: 0},
		Actions: []types.Action{
			{Type: types.ActionEdit, Path: "src/app.ts", Find: "console.log(a);\n", Replace: ""},
		},
	})

	results, err := e.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 3, "two fixes then a noop")
	assert.Equal(t, types.NoopRecipeID, results[2].RecipeID)

	data, err := os.ReadFile(filepath.Join(ws.Root, "src/app.ts"))
	require.NoError(t, err)
	assert.NotContains(t, string(data), ": any")
	assert.NotContains(t, string(data), "console.log")
}
