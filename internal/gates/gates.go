// Package gates enforces the numeric thresholds a fix attempt must satisfy
// before its changes are considered an improvement.
package gates

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/odavlstudio/odavl/internal/types"
)

// Gate is a named threshold on one detector's issue-count delta.
type Gate struct {
	// MaxIncrease is the largest tolerated issue-count increase.
	// Zero means the count must not grow at all.
	MaxIncrease int `yaml:"max_increase"`

	// MinImprovement, when positive, requires the count to drop by at
	// least this much.
	MinImprovement int `yaml:"min_improvement"`
}

// Config holds the gate thresholds loaded from gates.yml.
type Config struct {
	// Gates maps detector name to its threshold.
	Gates map[string]Gate `yaml:"gates"`

	// Total guards the overall issue count across all detectors.
	Total Gate `yaml:"total"`
}

// DefaultGatesConfig is permissive on individual detectors but refuses any
// growth in the total issue count, so a recipe that makes things worse
// overall always fails verification.
func DefaultGatesConfig() *Config {
	return &Config{
		Gates: map[string]Gate{},
		Total: Gate{MaxIncrease: 0},
	}
}

// LoadConfig reads gates.yml. A missing file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultGatesConfig(), nil
		}
		return nil, fmt.Errorf("failed to read gates file: %w", err)
	}

	cfg := DefaultGatesConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse gates file: %w", err)
	}
	return cfg, nil
}

// GateProvider is an interface for evaluating quality gates.
// This allows for pluggable gate implementations (e.g., for testing).
type GateProvider interface {
	// Evaluate checks before/after metrics against all gates.
	// Returns the results and whether all gates passed.
	Evaluate(before, after *types.Metrics) ([]types.GateResult, bool)
}

// Verifier evaluates metric deltas against the configured gates.
type Verifier struct {
	cfg      *Config
	provider GateProvider // Optional: pluggable provider (defaults to built-in)
}

// NewVerifier creates a verifier. A nil config uses the defaults.
func NewVerifier(cfg *Config, provider GateProvider) *Verifier {
	if cfg == nil {
		cfg = DefaultGatesConfig()
	}
	return &Verifier{cfg: cfg, provider: provider}
}

// Evaluate checks every configured gate against the before/after deltas.
// All gates run even after a failure so the report covers everything.
func (v *Verifier) Evaluate(before, after *types.Metrics) ([]types.GateResult, bool) {
	if v.provider != nil {
		return v.provider.Evaluate(before, after)
	}

	deltas := before.Delta(after)
	allPassed := true
	var results []types.GateResult

	names := make([]string, 0, len(v.cfg.Gates))
	for name := range v.cfg.Gates {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		gate := v.cfg.Gates[name]
		result := checkGate(name, name, deltas[name], gate)
		if !result.Passed {
			allPassed = false
		}
		results = append(results, result)
	}

	totalDelta := after.TotalIssues - before.TotalIssues
	totalResult := checkGate("total", "", totalDelta, v.cfg.Total)
	if !totalResult.Passed {
		allPassed = false
	}
	results = append(results, totalResult)

	return results, allPassed
}

func checkGate(name, metric string, delta int, gate Gate) types.GateResult {
	result := types.GateResult{Gate: name, Metric: metric, Passed: true}

	if delta > gate.MaxIncrease {
		result.Passed = false
		result.Detail = fmt.Sprintf("delta %+d exceeds max increase %d", delta, gate.MaxIncrease)
		return result
	}
	if gate.MinImprovement > 0 && -delta < gate.MinImprovement {
		result.Passed = false
		result.Detail = fmt.Sprintf("delta %+d misses min improvement %d", delta, gate.MinImprovement)
		return result
	}

	result.Detail = fmt.Sprintf("delta %+d", delta)
	return result
}
