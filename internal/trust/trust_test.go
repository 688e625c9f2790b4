package trust

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odavlstudio/odavl/internal/atomicio"
	"github.com/odavlstudio/odavl/internal/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := LoadStore(filepath.Join(t.TempDir(), "recipes-trust.json"))
	require.NoError(t, err)
	return s
}

func TestUpdateComputesBoundedRatio(t *testing.T) {
	s := newTestStore(t)

	rec := s.Update("fix-lint", true)
	assert.Equal(t, 1, rec.Runs)
	assert.Equal(t, 1, rec.Success)
	assert.Equal(t, 1.0, rec.Trust)

	rec = s.Update("fix-lint", false)
	assert.Equal(t, 2, rec.Runs)
	assert.Equal(t, 0.5, rec.Trust)
}

func TestTrustNeverLeavesBounds(t *testing.T) {
	s := newTestStore(t)

	// All failures: ratio would be 0, clamp holds the floor
	for i := 0; i < 20; i++ {
		rec := s.Update("always-fails", false)
		assert.GreaterOrEqual(t, rec.Trust, types.TrustFloor)
		assert.LessOrEqual(t, rec.Trust, types.TrustCeiling)
	}
	assert.Equal(t, types.TrustFloor, s.Get("always-fails").Trust)

	// All successes: ratio is exactly 1, never above
	for i := 0; i < 20; i++ {
		rec := s.Update("always-works", true)
		assert.Equal(t, types.TrustCeiling, rec.Trust)
	}
}

func TestBlacklistAfterThreeConsecutiveFailures(t *testing.T) {
	s := newTestStore(t)

	s.Update("flaky", false)
	s.Update("flaky", false)
	assert.False(t, s.Get("flaky").Blacklisted)

	s.Update("flaky", false)
	assert.True(t, s.Get("flaky").Blacklisted)
}

func TestSuccessResetsFailureStreak(t *testing.T) {
	s := newTestStore(t)

	s.Update("flaky", false)
	s.Update("flaky", false)
	s.Update("flaky", true)
	s.Update("flaky", false)
	s.Update("flaky", false)

	rec := s.Get("flaky")
	assert.Equal(t, 2, rec.ConsecutiveFailures)
	assert.False(t, rec.Blacklisted, "streak restarted after the success")
}

func TestSuccessDoesNotClearBlacklist(t *testing.T) {
	s := newTestStore(t)
	for i := 0; i < 3; i++ {
		s.Update("bad", false)
	}
	require.True(t, s.Get("bad").Blacklisted)

	s.Update("bad", true)
	assert.True(t, s.Get("bad").Blacklisted, "only an explicit reset clears the blacklist")

	s.Reset("bad")
	assert.Nil(t, s.Get("bad"))
}

func TestStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recipes-trust.json")
	s, err := LoadStore(path)
	require.NoError(t, err)

	s.Update("fix-lint", true)
	s.Update("fix-imports", false)
	require.NoError(t, s.Save())

	reloaded, err := LoadStore(path)
	require.NoError(t, err)
	require.NotNil(t, reloaded.Get("fix-lint"))
	assert.Equal(t, 1.0, reloaded.Get("fix-lint").Trust)

	records := reloaded.Records()
	require.Len(t, records, 2)
	assert.Equal(t, "fix-imports", records[0].ID, "records sorted by ID")
}

func TestLearnerAppendsHistory(t *testing.T) {
	dir := t.TempDir()
	s, err := LoadStore(filepath.Join(dir, "recipes-trust.json"))
	require.NoError(t, err)

	historyPath := filepath.Join(dir, "history.json")
	trustHistoryPath := filepath.Join(dir, "trust-history.json")
	l := NewLearner(s, historyPath, trustHistoryPath, nil)

	cycle := &types.CycleResult{
		ID:        "c1",
		RecipeID:  "fix-lint",
		StartedAt: time.Now(),
		Phase:     types.PhaseCompleted,
	}
	rec, err := l.Learn(cycle, true)
	require.NoError(t, err)
	assert.Equal(t, 1.0, rec.Trust)

	_, err = l.Learn(&types.CycleResult{ID: "c2", RecipeID: "fix-lint"}, false)
	require.NoError(t, err)

	var history []types.CycleResult
	require.NoError(t, atomicio.ReadJSON(historyPath, &history))
	assert.Len(t, history, 2)
	assert.Equal(t, "c1", history[0].ID)

	var events []TrustEvent
	require.NoError(t, atomicio.ReadJSON(trustHistoryPath, &events))
	require.Len(t, events, 2)
	assert.Equal(t, 1.0, events[0].Trust)
	assert.Equal(t, 0.5, events[1].Trust)
}

func TestPredictorClampsToUnitInterval(t *testing.T) {
	p := NewPredictor()

	risky := &types.Recipe{
		ID: "risky", Name: "risky", Trust: 0.1,
		Actions: []types.Action{
			{Type: types.ActionCommand, Run: "a"},
			{Type: types.ActionCommand, Run: "b"},
			{Type: types.ActionCommand, Run: "c"},
			{Type: types.ActionCommand, Run: "d"},
			{Type: types.ActionCommand, Run: "e"},
			{Type: types.ActionCommand, Run: "f"},
		},
	}
	rec := &types.TrustRecord{ID: "risky", Runs: 9, Success: 1, Trust: 0.1, ConsecutiveFailures: 5}

	score := p.Score(risky, rec)
	assert.GreaterOrEqual(t, score, 0.0)
	assert.LessOrEqual(t, score, 1.0)

	safe := &types.Recipe{
		ID: "safe", Name: "safe", Trust: 1.0,
		Actions: []types.Action{{Type: types.ActionEdit, Path: "a.ts", Find: "x", Replace: "y"}},
	}
	safeScore := p.Score(safe, &types.TrustRecord{ID: "safe", Runs: 10, Success: 10, Trust: 1.0})
	assert.GreaterOrEqual(t, safeScore, 0.0)
	assert.Less(t, safeScore, score, "trusted edit recipe scores lower risk than failing command recipe")
}

func TestPredictorNeverRunRecipe(t *testing.T) {
	p := NewPredictor()
	r := &types.Recipe{
		ID: "new", Name: "new",
		Actions: []types.Action{{Type: types.ActionCommand, Run: "x"}},
	}
	score := p.Score(r, nil)
	assert.GreaterOrEqual(t, score, 0.0)
	assert.LessOrEqual(t, score, 1.0)
}
