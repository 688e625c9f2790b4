package trust

import (
	"github.com/odavlstudio/odavl/internal/types"
)

// Predictor estimates the risk of running a recipe from cheap features.
// It is a fixed feature-weighting heuristic, not a learned model, and it
// only annotates decisions; trust ordering is never overridden by it.
type Predictor struct{}

// NewPredictor returns the default heuristic predictor.
func NewPredictor() *Predictor {
	return &Predictor{}
}

// Feature weights. Low trust dominates; a running failure streak, many
// actions, and a high share of shell commands each add smaller amounts.
const (
	weightLowTrust      = 0.5
	weightFailureStreak = 0.2
	weightActionCount   = 0.15
	weightCommandShare  = 0.15

	maxActionsConsidered = 5
)

// Score returns a risk estimate clamped to [0, 1]. rec may be nil for a
// recipe that has never run; its authored trust is used instead.
func (p *Predictor) Score(r *types.Recipe, rec *types.TrustRecord) float64 {
	trustValue := r.Trust
	streak := 0.0
	if rec != nil {
		trustValue = rec.Trust
		streak = float64(rec.ConsecutiveFailures) / float64(types.BlacklistThreshold)
		if streak > 1 {
			streak = 1
		}
	}
	if trustValue == 0 {
		trustValue = types.TrustFloor
	}

	actions := float64(len(r.Actions))
	if actions > maxActionsConsidered {
		actions = maxActionsConsidered
	}

	commands := 0
	for _, a := range r.Actions {
		if a.Type == types.ActionCommand {
			commands++
		}
	}
	commandShare := 0.0
	if len(r.Actions) > 0 {
		commandShare = float64(commands) / float64(len(r.Actions))
	}

	risk := weightLowTrust*(1-trustValue) +
		weightFailureStreak*streak +
		weightActionCount*(actions/maxActionsConsidered) +
		weightCommandShare*commandShare

	if risk < 0 {
		return 0
	}
	if risk > 1 {
		return 1
	}
	return risk
}
