package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odavlstudio/odavl/internal/types"
)

func newTestDB(t *testing.T) *SQLiteStorage {
	t.Helper()
	s, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestFileDatabaseUsesWAL(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), "odavl.db"))
	require.NoError(t, err)
	defer s.Close()

	var mode string
	require.NoError(t, s.db.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)
}

func TestRecordAndGetCycle(t *testing.T) {
	s := newTestDB(t)
	ctx := context.Background()

	cycle := &types.CycleResult{
		ID:          "c1",
		RecipeID:    "fix-lint",
		Phase:       types.PhaseCompleted,
		GatesPassed: true,
		StartedAt:   time.Now().Add(-time.Minute),
		CompletedAt: time.Now(),
		Deltas:      map[string]int{"eslint": -2},
	}
	require.NoError(t, s.RecordCycle(ctx, cycle))

	got, err := s.GetCycle(ctx, "c1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "fix-lint", got.RecipeID)
	assert.Equal(t, types.PhaseCompleted, got.Phase)
	assert.Equal(t, -2, got.Deltas["eslint"])
}

func TestGetCycleNotFound(t *testing.T) {
	s := newTestDB(t)

	got, err := s.GetCycle(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestListCyclesNewestFirst(t *testing.T) {
	s := newTestDB(t)
	ctx := context.Background()

	base := time.Now()
	for i, id := range []string{"c1", "c2", "c3"} {
		require.NoError(t, s.RecordCycle(ctx, &types.CycleResult{
			ID:        id,
			Phase:     types.PhaseCompleted,
			StartedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}

	cycles, err := s.ListCycles(ctx, 2)
	require.NoError(t, err)
	require.Len(t, cycles, 2)
	assert.Equal(t, "c3", cycles[0].ID)
	assert.Equal(t, "c2", cycles[1].ID)
}

func TestTrustEventsFilterByRecipe(t *testing.T) {
	s := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, s.RecordTrustEvent(ctx, "fix-lint", true, 1.0, 1))
	require.NoError(t, s.RecordTrustEvent(ctx, "fix-imports", false, 0.1, 1))
	require.NoError(t, s.RecordTrustEvent(ctx, "fix-lint", false, 0.5, 2))

	events, err := s.GetTrustEvents(ctx, "fix-lint", 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, 0.5, events[0].Trust, "newest first")
	assert.Equal(t, 1.0, events[1].Trust)

	all, err := s.GetTrustEvents(ctx, "", 10)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestAttestationRoundTrip(t *testing.T) {
	s := newTestDB(t)
	ctx := context.Background()

	att := &types.Attestation{
		ID:          "a1",
		RecipeID:    "fix-lint",
		Hash:        "deadbeef",
		BeforeTotal: 5,
		AfterTotal:  3,
		CreatedAt:   time.Now().UTC(),
	}
	require.NoError(t, s.RecordAttestation(ctx, att))

	atts, err := s.ListAttestations(ctx, 10)
	require.NoError(t, err)
	require.Len(t, atts, 1)
	assert.Equal(t, "deadbeef", atts[0].Hash)
	assert.Equal(t, 5, atts[0].BeforeTotal)
}

func TestGuardianRunRoundTrip(t *testing.T) {
	s := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, s.RecordGuardianRun(ctx, &GuardianRunRow{
		URL:           "https://example.com",
		Accessibility: 90,
		Performance:   75,
		Security:      60,
		Console:       100,
		IssueCount:    4,
		ReportPath:    "reports/guardian/run.json",
	}))
	require.NoError(t, s.RecordGuardianRun(ctx, &GuardianRunRow{
		URL: "https://example.com/about",
	}))

	runs, err := s.ListGuardianRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "https://example.com/about", runs[0].URL, "newest first")
	assert.Equal(t, 90, runs[1].Accessibility)
	assert.False(t, runs[1].CreatedAt.IsZero())
}
