package autopilot

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// skipDirs are directories the watcher never descends into. The state
// directory is excluded so the autopilot's own writes never trigger it.
var skipDirs = map[string]bool{
	".odavl":       true,
	".git":         true,
	"node_modules": true,
	"dist":         true,
	"build":        true,
	"vendor":       true,
	"reports":      true,
}

// Watch runs cycles continuously, triggered by file changes in the
// workspace. Cycles are rate limited to one per WatchInterval so a burst
// of saves coalesces into a single pass. Blocks until ctx is cancelled.
func (e *Engine) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := e.addWatchDirs(watcher); err != nil {
		return err
	}

	limiter := rate.NewLimiter(rate.Every(e.settings.WatchInterval), 1)
	e.log.Info("watch mode started",
		zap.String("root", e.ws.Root),
		zap.Duration("interval", e.settings.WatchInterval))

	return e.watchLoop(ctx, watcher, watcher.Events, watcher.Errors, limiter)
}

// watchLoop coalesces change events into rate-limited cycles. A change that
// arrives during the cooldown arms a wake-up timer, so a pending trigger
// always runs even when no further events follow.
func (e *Engine) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, events <-chan fsnotify.Event, errs <-chan error, limiter *rate.Limiter) error {
	dirty := false
	var wake <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			e.log.Info("watch mode stopped")
			return ctx.Err()

		case event, ok := <-events:
			if !ok {
				return nil
			}
			if !relevantEvent(event) {
				continue
			}
			// New directories need explicit registration
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = e.maybeWatchDir(watcher, event.Name)
				}
			}
			dirty = true

		case err, ok := <-errs:
			if !ok {
				return nil
			}
			e.log.Warn("watch error", zap.Error(err))

		case <-wake:
			wake = nil
		}

		if !dirty {
			continue
		}
		if limiter.Allow() {
			dirty = false
			wake = nil
			if _, err := e.RunCycle(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				e.log.Error("watch cycle failed", zap.Error(err))
			}
		} else if wake == nil {
			r := limiter.Reserve()
			delay := r.Delay()
			r.Cancel()
			wake = time.After(delay)
		}
	}
}

// addWatchDirs registers the workspace root and every non-excluded
// subdirectory with the watcher.
func (e *Engine) addWatchDirs(watcher *fsnotify.Watcher) error {
	return filepath.WalkDir(e.ws.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		name := d.Name()
		if path != e.ws.Root && (skipDirs[name] || strings.HasPrefix(name, ".")) {
			return filepath.SkipDir
		}
		if err := watcher.Add(path); err != nil {
			e.log.Warn("failed to watch directory", zap.String("dir", path), zap.Error(err))
		}
		return nil
	})
}

func (e *Engine) maybeWatchDir(watcher *fsnotify.Watcher, path string) error {
	name := filepath.Base(path)
	if skipDirs[name] || strings.HasPrefix(name, ".") {
		return nil
	}
	return watcher.Add(path)
}

// relevantEvent filters out chmod noise and changes under excluded paths.
func relevantEvent(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	for part := range strings.SplitSeq(filepath.ToSlash(event.Name), "/") {
		if skipDirs[part] {
			return false
		}
	}
	return true
}
