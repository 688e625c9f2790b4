package types

import (
	"fmt"
	"time"
)

// Recipe describes an automated fix: one or more actions guarded by a
// condition on the current metrics. Recipes are authored as JSON files in
// .odavl/recipes/ and are read-only at runtime.
type Recipe struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Trust       float64    `json:"trust,omitempty"`
	Condition   *Condition `json:"condition,omitempty"`
	Actions     []Action   `json:"actions"`

	// Files lists workspace paths a command action may modify, so the undo
	// snapshot can cover them. Edit action paths are covered automatically.
	Files []string `json:"files,omitempty"`
}

// TouchedPaths returns every workspace path this recipe may modify:
// the declared Files hint plus all edit-action targets, deduplicated.
func (r *Recipe) TouchedPaths() []string {
	seen := make(map[string]bool)
	var paths []string
	add := func(p string) {
		if p != "" && !seen[p] {
			seen[p] = true
			paths = append(paths, p)
		}
	}
	for _, f := range r.Files {
		add(f)
	}
	for _, a := range r.Actions {
		if a.Type == ActionEdit {
			add(a.Path)
		}
	}
	return paths
}

// Validate checks if the recipe has valid field values
func (r *Recipe) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("id is required")
	}
	if len(r.ID) > 100 {
		return fmt.Errorf("id must be 100 characters or less (got %d)", len(r.ID))
	}
	if r.Name == "" {
		return fmt.Errorf("name is required")
	}
	if r.Trust < 0 || r.Trust > 1 {
		return fmt.Errorf("trust must be between 0 and 1 (got %g)", r.Trust)
	}
	if len(r.Actions) == 0 {
		return fmt.Errorf("at least one action is required")
	}
	for i := range r.Actions {
		if err := r.Actions[i].Validate(); err != nil {
			return fmt.Errorf("action %d: %w", i, err)
		}
	}
	if r.Condition != nil {
		if err := r.Condition.Validate(); err != nil {
			return fmt.Errorf("condition: %w", err)
		}
	}
	return nil
}

// ActionType categorizes recipe actions
type ActionType string

const (
	ActionCommand ActionType = "command"
	ActionEdit    ActionType = "edit"
)

// IsValid checks if the action type value is valid
func (t ActionType) IsValid() bool {
	switch t {
	case ActionCommand, ActionEdit:
		return true
	}
	return false
}

// Action is a single step of a recipe: either a shell command or a file edit.
type Action struct {
	Type ActionType `json:"type"`

	// Command action fields
	Run        string `json:"run,omitempty"`
	Dir        string `json:"dir,omitempty"`
	TimeoutSec int    `json:"timeout_sec,omitempty"`

	// Edit action fields
	Path    string `json:"path,omitempty"`
	Find    string `json:"find,omitempty"`
	Replace string `json:"replace,omitempty"`
}

// Validate checks if the action has valid field values
func (a *Action) Validate() error {
	if !a.Type.IsValid() {
		return fmt.Errorf("invalid action type: %s", a.Type)
	}
	switch a.Type {
	case ActionCommand:
		if a.Run == "" {
			return fmt.Errorf("run is required for command actions")
		}
	case ActionEdit:
		if a.Path == "" {
			return fmt.Errorf("path is required for edit actions")
		}
		if a.Find == "" {
			return fmt.Errorf("find is required for edit actions")
		}
	}
	if a.TimeoutSec < 0 {
		return fmt.Errorf("timeout_sec cannot be negative")
	}
	return nil
}

// ConditionOp is a comparison operator in a recipe condition
type ConditionOp string

const (
	OpGT  ConditionOp = ">"
	OpGTE ConditionOp = ">="
	OpLT  ConditionOp = "<"
	OpLTE ConditionOp = "<="
	OpEQ  ConditionOp = "=="
	OpNEQ ConditionOp = "!="
)

// IsValid checks if the condition operator is valid
func (o ConditionOp) IsValid() bool {
	switch o {
	case OpGT, OpGTE, OpLT, OpLTE, OpEQ, OpNEQ:
		return true
	}
	return false
}

// Condition gates a recipe on a metric threshold.
type Condition struct {
	Metric string      `json:"metric"`
	Op     ConditionOp `json:"op"`
	Value  int         `json:"value"`
}

// Validate checks if the condition has valid field values
func (c *Condition) Validate() error {
	if c.Metric == "" {
		return fmt.Errorf("metric is required")
	}
	if !c.Op.IsValid() {
		return fmt.Errorf("invalid operator: %s", c.Op)
	}
	return nil
}

// Matches evaluates the condition against a metrics snapshot.
// An unknown metric reads as zero.
func (c *Condition) Matches(m *Metrics) bool {
	v := m.Count(c.Metric)
	switch c.Op {
	case OpGT:
		return v > c.Value
	case OpGTE:
		return v >= c.Value
	case OpLT:
		return v < c.Value
	case OpLTE:
		return v <= c.Value
	case OpEQ:
		return v == c.Value
	case OpNEQ:
		return v != c.Value
	}
	return false
}

// Trust score bounds. Trust is a bounded running success ratio: it never
// reaches zero (a blacklist flag handles permanently failing recipes) and
// never exceeds one.
const (
	TrustFloor   = 0.1
	TrustCeiling = 1.0

	// BlacklistThreshold is the number of consecutive failures after which
	// a recipe is no longer eligible for selection.
	BlacklistThreshold = 3
)

// ClampTrust bounds a raw trust ratio to [TrustFloor, TrustCeiling].
func ClampTrust(v float64) float64 {
	if v < TrustFloor {
		return TrustFloor
	}
	if v > TrustCeiling {
		return TrustCeiling
	}
	return v
}

// TrustRecord tracks the running success ratio for one recipe.
// Mutated only by the learn step; persisted as a flat JSON array.
type TrustRecord struct {
	ID                  string    `json:"id"`
	Runs                int       `json:"runs"`
	Success             int       `json:"success"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	Blacklisted         bool      `json:"blacklisted"`
	Trust               float64   `json:"trust"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// Validate checks if the trust record has valid field values
func (t *TrustRecord) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("id is required")
	}
	if t.Runs < 0 {
		return fmt.Errorf("runs cannot be negative")
	}
	if t.Success < 0 || t.Success > t.Runs {
		return fmt.Errorf("success must be between 0 and runs (got %d/%d)", t.Success, t.Runs)
	}
	if t.Trust < TrustFloor || t.Trust > TrustCeiling {
		return fmt.Errorf("trust must be between %g and %g (got %g)", TrustFloor, TrustCeiling, t.Trust)
	}
	return nil
}

// Metrics is a flat snapshot of issue counts per detector category,
// produced fresh on every observe. It is a transient DTO, not a domain
// entity; only the learn step's history files keep copies around.
type Metrics struct {
	Counts       map[string]int `json:"counts"`
	TotalIssues  int            `json:"total_issues"`
	FilesScanned int            `json:"files_scanned"`
	Source       string         `json:"source"` // "report" or "scan"
	GeneratedAt  time.Time      `json:"generated_at"`
}

// NewMetrics returns an empty metrics snapshot.
func NewMetrics() *Metrics {
	return &Metrics{Counts: make(map[string]int), GeneratedAt: time.Now()}
}

// Count returns the issue count for a detector category (zero if unknown).
func (m *Metrics) Count(detector string) int {
	if m == nil || m.Counts == nil {
		return 0
	}
	return m.Counts[detector]
}

// Delta returns per-detector differences (after minus before).
// Detectors present on either side are included.
func (m *Metrics) Delta(after *Metrics) map[string]int {
	deltas := make(map[string]int)
	for k, v := range m.Counts {
		deltas[k] = after.Count(k) - v
	}
	for k, v := range after.Counts {
		if _, seen := m.Counts[k]; !seen {
			deltas[k] = v
		}
	}
	return deltas
}

// UndoSnapshot is a full-content copy of the files a recipe is about to
// touch. A nil content entry marks a file that did not exist at snapshot
// time; restoring such an entry deletes the file.
type UndoSnapshot struct {
	ID            string             `json:"id"`
	Timestamp     time.Time          `json:"timestamp"`
	RecipeID      string             `json:"recipe_id"`
	ModifiedFiles []string           `json:"modified_files"`
	Data          map[string]*string `json:"data"`
}

// Validate checks if the snapshot has valid field values
func (s *UndoSnapshot) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("id is required")
	}
	if s.Timestamp.IsZero() {
		return fmt.Errorf("timestamp is required")
	}
	return nil
}

// CyclePhase represents the state of an autopilot cycle
type CyclePhase string

const (
	PhaseObserving CyclePhase = "observing"
	PhaseDeciding  CyclePhase = "deciding"
	PhaseActing    CyclePhase = "acting"
	PhaseVerifying CyclePhase = "verifying"
	PhaseLearning  CyclePhase = "learning"
	PhaseCompleted CyclePhase = "completed"
	PhaseFailed    CyclePhase = "failed"
)

// IsValid checks if the cycle phase value is valid
func (p CyclePhase) IsValid() bool {
	switch p {
	case PhaseObserving, PhaseDeciding, PhaseActing, PhaseVerifying,
		PhaseLearning, PhaseCompleted, PhaseFailed:
		return true
	}
	return false
}

// ValidTransitions defines the valid phase transitions for an autopilot cycle.
//
//	observing → deciding → acting → verifying → learning → completed
//	    ↓          ↓         ↓          ↓           ↓
//	  failed     failed    failed     failed      failed
//
// A cycle that decides "noop" skips straight from deciding to completed.
func (p CyclePhase) ValidTransitions() []CyclePhase {
	switch p {
	case PhaseObserving:
		return []CyclePhase{PhaseDeciding, PhaseFailed}
	case PhaseDeciding:
		return []CyclePhase{PhaseActing, PhaseCompleted, PhaseFailed}
	case PhaseActing:
		return []CyclePhase{PhaseVerifying, PhaseFailed}
	case PhaseVerifying:
		return []CyclePhase{PhaseLearning, PhaseFailed}
	case PhaseLearning:
		return []CyclePhase{PhaseCompleted, PhaseFailed}
	case PhaseCompleted, PhaseFailed:
		return []CyclePhase{} // Terminal states
	default:
		return []CyclePhase{}
	}
}

// CanTransitionTo checks if a transition to the target phase is valid
func (p CyclePhase) CanTransitionTo(target CyclePhase) bool {
	for _, valid := range p.ValidTransitions() {
		if valid == target {
			return true
		}
	}
	return false
}

// NoopRecipeID is the decision result when no recipe's condition matches.
const NoopRecipeID = "noop"

// GateResult represents the outcome of a single quality gate check
type GateResult struct {
	Gate   string `json:"gate"`
	Metric string `json:"metric,omitempty"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// ActResult summarizes the execution of a recipe's actions.
// Shell failures are captured as stderr strings rather than propagated
// as errors; a cycle distinguishes "ran with failures" from "could not run".
type ActResult struct {
	RecipeID   string        `json:"recipe_id"`
	Succeeded  int           `json:"succeeded"`
	Failed     int           `json:"failed"`
	Stderr     []string      `json:"stderr,omitempty"`
	SnapshotID string        `json:"snapshot_id,omitempty"`
	Duration   time.Duration `json:"duration"`
}

// CycleResult records one full pass of the autopilot loop.
type CycleResult struct {
	ID          string         `json:"id"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt time.Time      `json:"completed_at"`
	Phase       CyclePhase     `json:"phase"`
	RecipeID    string         `json:"recipe_id"`
	Before      *Metrics       `json:"before,omitempty"`
	After       *Metrics       `json:"after,omitempty"`
	Deltas      map[string]int `json:"deltas,omitempty"`
	Gates       []GateResult   `json:"gates,omitempty"`
	GatesPassed bool           `json:"gates_passed"`
	RolledBack  bool           `json:"rolled_back,omitempty"`
	Error       string         `json:"error,omitempty"`
}

// Attestation is a hash-stamped record asserting that a verified
// improvement occurred: gates passed and total issues did not increase.
type Attestation struct {
	ID          string    `json:"id"`
	RecipeID    string    `json:"recipe_id"`
	Hash        string    `json:"hash"`
	BeforeTotal int       `json:"before_total"`
	AfterTotal  int       `json:"after_total"`
	CreatedAt   time.Time `json:"created_at"`
}
