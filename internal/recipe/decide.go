package recipe

import (
	"sort"

	"go.uber.org/zap"

	"github.com/odavlstudio/odavl/internal/types"
)

// Decision is the outcome of the decide step.
type Decision struct {
	RecipeID string
	Recipe   *types.Recipe // nil for noop
	Trust    float64
	Risk     float64 // heuristic predictor annotation, informational only
}

// IsNoop reports whether no recipe was selected.
func (d *Decision) IsNoop() bool { return d.RecipeID == types.NoopRecipeID }

// RiskScorer annotates candidate recipes with a risk estimate in [0, 1].
// It never changes the trust ordering.
type RiskScorer interface {
	Score(r *types.Recipe, rec *types.TrustRecord) float64
}

// Decide filters recipes by their condition against the current metrics,
// drops blacklisted ones, and returns the highest-trust candidate. Stored
// trust records override the trust value authored in the recipe file. Ties
// break on recipe ID so repeated runs are deterministic.
func Decide(recipes []*types.Recipe, m *types.Metrics, trust map[string]*types.TrustRecord, scorer RiskScorer, log *zap.Logger) *Decision {
	if log == nil {
		log = zap.NewNop()
	}

	type candidate struct {
		recipe *types.Recipe
		trust  float64
		record *types.TrustRecord
	}
	var candidates []candidate

	for _, r := range recipes {
		rec := trust[r.ID]
		if rec != nil && rec.Blacklisted {
			log.Debug("skipping blacklisted recipe", zap.String("recipe", r.ID))
			continue
		}
		if r.Condition != nil && !r.Condition.Matches(m) {
			continue
		}

		effective := r.Trust
		if rec != nil {
			effective = rec.Trust
		}
		if effective == 0 {
			effective = types.TrustFloor
		}
		candidates = append(candidates, candidate{recipe: r, trust: effective, record: rec})
	}

	if len(candidates) == 0 {
		log.Info("decide: no recipe matched", zap.Int("total_issues", m.TotalIssues))
		return &Decision{RecipeID: types.NoopRecipeID}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].trust != candidates[j].trust {
			return candidates[i].trust > candidates[j].trust
		}
		return candidates[i].recipe.ID < candidates[j].recipe.ID
	})

	top := candidates[0]
	d := &Decision{
		RecipeID: top.recipe.ID,
		Recipe:   top.recipe,
		Trust:    top.trust,
	}
	if scorer != nil {
		d.Risk = scorer.Score(top.recipe, top.record)
	}

	log.Info("decide: selected recipe",
		zap.String("recipe", d.RecipeID),
		zap.Float64("trust", d.Trust),
		zap.Float64("risk", d.Risk),
		zap.Int("candidates", len(candidates)))
	return d
}
