// Package autopilot orchestrates the observe, decide, act, verify, learn
// cycle over a workspace.
package autopilot

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/odavlstudio/odavl/internal/act"
	"github.com/odavlstudio/odavl/internal/config"
	"github.com/odavlstudio/odavl/internal/gates"
	"github.com/odavlstudio/odavl/internal/insight"
	"github.com/odavlstudio/odavl/internal/recipe"
	"github.com/odavlstudio/odavl/internal/storage"
	"github.com/odavlstudio/odavl/internal/trust"
	"github.com/odavlstudio/odavl/internal/types"
	"github.com/odavlstudio/odavl/internal/undo"
)

// Config holds the dependencies for an autopilot engine.
type Config struct {
	// Workspace is the project being managed. Required.
	Workspace *config.Workspace

	// Settings are the runtime settings. Defaults are used when nil.
	Settings *config.Config

	// Logger receives structured cycle logging. Defaults to a nop logger.
	Logger *zap.Logger

	// Store is the optional audit log. Recording failures are logged,
	// never fatal.
	Store storage.Storage

	// Gates overrides the built-in threshold evaluation when set.
	Gates gates.GateProvider
}

// Engine runs autopilot cycles.
type Engine struct {
	ws       *config.Workspace
	settings *config.Config
	log      *zap.Logger
	store    storage.Storage

	observer *insight.Observer
	executor *act.Executor
	undo     *undo.Manager
	verifier *gates.Verifier
}

// New creates an engine over a workspace.
func New(cfg *Config) (*Engine, error) {
	if cfg == nil || cfg.Workspace == nil {
		return nil, fmt.Errorf("workspace is required")
	}
	settings := cfg.Settings
	if settings == nil {
		settings = config.DefaultConfig()
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	gatesCfg, err := gates.LoadConfig(cfg.Workspace.GatesFile())
	if err != nil {
		return nil, fmt.Errorf("failed to load gates: %w", err)
	}

	return &Engine{
		ws:       cfg.Workspace,
		settings: settings,
		log:      log,
		store:    cfg.Store,
		observer: insight.NewObserver(cfg.Workspace, settings, log),
		executor: act.NewExecutor(cfg.Workspace.Root, settings.CommandTimeout, log),
		undo:     undo.NewManager(cfg.Workspace.UndoDir(), cfg.Workspace.Root, settings.SnapshotRetention, log),
		verifier: gates.NewVerifier(gatesCfg, cfg.Gates),
	}, nil
}

// Run executes up to MaxCyclesPerRun cycles, stopping early when a cycle
// decides there is nothing to do or fails.
func (e *Engine) Run(ctx context.Context) ([]*types.CycleResult, error) {
	var results []*types.CycleResult
	for i := 0; i < e.settings.MaxCyclesPerRun; i++ {
		cycle, err := e.RunCycle(ctx)
		if cycle != nil {
			results = append(results, cycle)
		}
		if err != nil {
			return results, err
		}
		if cycle.RecipeID == types.NoopRecipeID || cycle.RolledBack {
			break
		}
	}
	return results, nil
}

// RunCycle executes one full observe, decide, act, verify, learn pass.
// The returned cycle result is always non-nil and already recorded.
func (e *Engine) RunCycle(ctx context.Context) (*types.CycleResult, error) {
	cycle := &types.CycleResult{
		ID:        uuid.NewString(),
		StartedAt: time.Now(),
		Phase:     types.PhaseObserving,
	}
	e.log.Info("cycle started", zap.String("cycle", cycle.ID))

	err := e.runPhases(ctx, cycle)
	cycle.CompletedAt = time.Now()
	if err != nil {
		cycle.Phase = types.PhaseFailed
		cycle.Error = err.Error()
		e.log.Error("cycle failed", zap.String("cycle", cycle.ID), zap.Error(err))
	}

	e.record(ctx, cycle)
	return cycle, err
}

func (e *Engine) runPhases(ctx context.Context, cycle *types.CycleResult) error {
	// Observe
	before, err := e.observer.Observe()
	if err != nil {
		return fmt.Errorf("observe: %w", err)
	}
	cycle.Before = before

	// Decide
	if err := e.advance(cycle, types.PhaseDeciding); err != nil {
		return err
	}
	recipes, err := recipe.Load(e.ws.RecipesDir(), e.log)
	if err != nil {
		return fmt.Errorf("decide: %w", err)
	}
	trustStore, err := trust.LoadStore(e.ws.TrustFile())
	if err != nil {
		return fmt.Errorf("decide: %w", err)
	}
	decision := recipe.Decide(recipes, before, trustStore.All(), trust.NewPredictor(), e.log)
	cycle.RecipeID = decision.RecipeID
	if decision.IsNoop() {
		return e.advance(cycle, types.PhaseCompleted)
	}

	// Act
	if err := e.advance(cycle, types.PhaseActing); err != nil {
		return err
	}
	snap, err := e.undo.Snapshot(decision.RecipeID, decision.Recipe.TouchedPaths())
	if err != nil {
		return fmt.Errorf("act: snapshot: %w", err)
	}
	actResult, err := e.executor.Run(ctx, decision.Recipe)
	if err != nil {
		return fmt.Errorf("act: %w", err)
	}
	actResult.SnapshotID = snap.ID

	// Verify
	if err := e.advance(cycle, types.PhaseVerifying); err != nil {
		return err
	}
	after, err := e.observer.Observe()
	if err != nil {
		return fmt.Errorf("verify: %w", err)
	}
	cycle.After = after
	cycle.Deltas = before.Delta(after)
	cycle.Gates, cycle.GatesPassed = e.verifier.Evaluate(before, after)

	reportPath, attestation, err := gates.WriteVerifyReport(
		e.ws.ReportsDir(), decision.RecipeID, before, after, cycle.Gates, cycle.GatesPassed)
	if err != nil {
		e.log.Warn("failed to write verify report", zap.Error(err))
	} else {
		e.log.Info("verify report written", zap.String("path", reportPath))
	}
	if attestation != nil && e.store != nil {
		if err := e.store.RecordAttestation(ctx, attestation); err != nil {
			e.log.Warn("failed to record attestation", zap.Error(err))
		}
	}

	if !cycle.GatesPassed && e.settings.RollbackOnGateFailure {
		if _, err := e.undo.Restore(snap); err != nil {
			return fmt.Errorf("verify: rollback: %w", err)
		}
		cycle.RolledBack = true
		e.log.Warn("gates failed, changes rolled back",
			zap.String("cycle", cycle.ID),
			zap.String("recipe", decision.RecipeID),
			zap.String("snapshot", snap.ID))
	}

	// Learn
	if err := e.advance(cycle, types.PhaseLearning); err != nil {
		return err
	}
	success := cycle.GatesPassed && actResult.Failed == 0
	learner := trust.NewLearner(trustStore, e.ws.HistoryFile(), e.ws.TrustHistoryFile(), e.log)
	rec, err := learner.Learn(cycle, success)
	if err != nil {
		return fmt.Errorf("learn: %w", err)
	}
	if e.store != nil {
		if err := e.store.RecordTrustEvent(ctx, rec.ID, success, rec.Trust, rec.Runs); err != nil {
			e.log.Warn("failed to record trust event", zap.Error(err))
		}
	}

	return e.advance(cycle, types.PhaseCompleted)
}

// advance moves the cycle to the next phase, enforcing the state machine.
func (e *Engine) advance(cycle *types.CycleResult, target types.CyclePhase) error {
	if !cycle.Phase.CanTransitionTo(target) {
		return fmt.Errorf("invalid phase transition: %s -> %s", cycle.Phase, target)
	}
	cycle.Phase = target
	e.log.Debug("phase transition",
		zap.String("cycle", cycle.ID),
		zap.String("phase", string(target)))
	return nil
}

// record persists the cycle to the audit log when one is configured.
func (e *Engine) record(ctx context.Context, cycle *types.CycleResult) {
	if e.store == nil {
		return
	}
	if err := e.store.RecordCycle(ctx, cycle); err != nil {
		e.log.Warn("failed to record cycle", zap.String("cycle", cycle.ID), zap.Error(err))
	}
}
