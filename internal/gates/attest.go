package gates

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/odavlstudio/odavl/internal/atomicio"
	"github.com/odavlstudio/odavl/internal/types"
)

// VerifyReport is the document written to reports/verify-<ts>.json.
type VerifyReport struct {
	RecipeID    string             `json:"recipe_id"`
	Deltas      map[string]int     `json:"deltas"`
	Gates       []types.GateResult `json:"gates"`
	GatesPassed bool               `json:"gates_passed"`
	Attestation *types.Attestation `json:"attestation,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
}

// NewAttestation stamps a verified improvement. The hash covers the recipe,
// both totals, and the timestamp, so any record tampering is detectable.
func NewAttestation(recipeID string, before, after *types.Metrics) *types.Attestation {
	now := time.Now().UTC()
	payload := fmt.Sprintf("%s|%d|%d|%d", recipeID, before.TotalIssues, after.TotalIssues, now.UnixNano())
	sum := sha256.Sum256([]byte(payload))

	return &types.Attestation{
		ID:          uuid.NewString(),
		RecipeID:    recipeID,
		Hash:        hex.EncodeToString(sum[:]),
		BeforeTotal: before.TotalIssues,
		AfterTotal:  after.TotalIssues,
		CreatedAt:   now,
	}
}

// WriteVerifyReport persists a verify report under the reports directory
// and returns its path. An attestation is attached only when the gates
// passed and the total issue count did not increase.
func WriteVerifyReport(reportsDir, recipeID string, before, after *types.Metrics, results []types.GateResult, passed bool) (string, *types.Attestation, error) {
	report := &VerifyReport{
		RecipeID:    recipeID,
		Deltas:      before.Delta(after),
		Gates:       results,
		GatesPassed: passed,
		CreatedAt:   time.Now(),
	}
	if passed && after.TotalIssues <= before.TotalIssues {
		report.Attestation = NewAttestation(recipeID, before, after)
	}

	path := filepath.Join(reportsDir, fmt.Sprintf("verify-%s.json", report.CreatedAt.Format("20060102-150405")))
	if err := atomicio.WriteJSON(path, report); err != nil {
		return "", nil, fmt.Errorf("failed to write verify report: %w", err)
	}
	return path, report.Attestation, nil
}
