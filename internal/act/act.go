// Package act executes a recipe's actions. Shell failures are captured as
// stderr strings in the result rather than returned as errors; the cycle
// decides what a partial failure means.
package act

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/odavlstudio/odavl/internal/atomicio"
	"github.com/odavlstudio/odavl/internal/types"
)

// Executor runs recipe actions inside a workspace.
type Executor struct {
	root           string
	defaultTimeout time.Duration
	log            *zap.Logger
}

// NewExecutor creates an executor rooted at the workspace directory.
func NewExecutor(root string, defaultTimeout time.Duration, log *zap.Logger) *Executor {
	if defaultTimeout <= 0 {
		defaultTimeout = 2 * time.Minute
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Executor{root: root, defaultTimeout: defaultTimeout, log: log}
}

// Run executes the recipe's actions in order and reports how many succeeded.
// Only a context cancellation aborts the run early; individual action
// failures are recorded and the remaining actions still execute, which gives
// comprehensive feedback about everything that is broken.
func (e *Executor) Run(ctx context.Context, r *types.Recipe) (*types.ActResult, error) {
	start := time.Now()
	result := &types.ActResult{RecipeID: r.ID}

	for i, action := range r.Actions {
		if err := ctx.Err(); err != nil {
			result.Duration = time.Since(start)
			return result, fmt.Errorf("recipe %s aborted at action %d: %w", r.ID, i, err)
		}

		var err error
		switch action.Type {
		case types.ActionCommand:
			err = e.runCommand(ctx, action)
		case types.ActionEdit:
			err = e.applyEdit(action)
		default:
			err = fmt.Errorf("unknown action type: %s", action.Type)
		}

		if err != nil {
			result.Failed++
			result.Stderr = append(result.Stderr, err.Error())
			e.log.Warn("action failed",
				zap.String("recipe", r.ID),
				zap.Int("action", i),
				zap.String("type", string(action.Type)),
				zap.Error(err))
			continue
		}
		result.Succeeded++
	}

	result.Duration = time.Since(start)
	e.log.Info("act finished",
		zap.String("recipe", r.ID),
		zap.Int("succeeded", result.Succeeded),
		zap.Int("failed", result.Failed),
		zap.Duration("duration", result.Duration))
	return result, nil
}

// runCommand executes a shell command with a bounded timeout.
func (e *Executor) runCommand(ctx context.Context, action types.Action) error {
	timeout := e.defaultTimeout
	if action.TimeoutSec > 0 {
		timeout = time.Duration(action.TimeoutSec) * time.Second
	}
	cmdCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(cmdCtx, "sh", "-c", action.Run)
	cmd.Dir = e.root
	if action.Dir != "" {
		cmd.Dir = filepath.Join(e.root, action.Dir)
	}

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return fmt.Errorf("command %q failed: %s", action.Run, msg)
	}
	return nil
}

// applyEdit rewrites a file with a find/replace. The file must exist and
// must contain the search string; anything else is a failed action.
func (e *Executor) applyEdit(action types.Action) error {
	path := filepath.Join(e.root, action.Path)
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("edit %s: %w", action.Path, err)
	}

	content := string(data)
	if !strings.Contains(content, action.Find) {
		return fmt.Errorf("edit %s: pattern not found", action.Path)
	}

	updated := strings.ReplaceAll(content, action.Find, action.Replace)
	if err := atomicio.WriteFile(path, []byte(updated), 0644); err != nil {
		return fmt.Errorf("edit %s: %w", action.Path, err)
	}
	return nil
}
