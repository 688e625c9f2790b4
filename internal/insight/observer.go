// Package insight produces the metrics snapshot that drives the autopilot:
// it reads the latest static-analysis report and maps per-detector issue
// counts into a flat Metrics object. When no report exists it falls back to
// a shallow scan of the workspace so the observe step never fails hard.
package insight

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/odavlstudio/odavl/internal/atomicio"
	"github.com/odavlstudio/odavl/internal/config"
	"github.com/odavlstudio/odavl/internal/types"
)

// report mirrors the on-disk analysis report. Two shapes are accepted:
// a detectors map of issue lists, or a pre-aggregated summary.
type report struct {
	GeneratedAt time.Time                `json:"generated_at"`
	Files       int                      `json:"files"`
	Detectors   map[string][]reportIssue `json:"detectors"`
	Summary     map[string]int           `json:"summary"`
}

type reportIssue struct {
	File     string `json:"file"`
	Line     int    `json:"line"`
	Message  string `json:"message"`
	Severity string `json:"severity"`
}

// Observer reads analysis reports and writes the latest-observe snapshot.
type Observer struct {
	ws      *config.Workspace
	cfg     *config.Config
	log     *zap.Logger
	scanner *scanner
}

// NewObserver creates an observer for the given workspace.
func NewObserver(ws *config.Workspace, cfg *config.Config, log *zap.Logger) *Observer {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Observer{
		ws:      ws,
		cfg:     cfg,
		log:     log,
		scanner: newScanner(ws.Root, cfg.ScanMaxFiles),
	}
}

// Observe returns the current metrics snapshot and persists it to
// .odavl/metrics/latest-observe.json. A missing or corrupt report is not an
// error: the fallback scan supplies metrics instead.
func (o *Observer) Observe() (*types.Metrics, error) {
	m, err := o.fromReport(o.ws.InsightReport())
	if err != nil {
		o.log.Debug("primary report unavailable",
			zap.String("path", o.ws.InsightReport()), zap.Error(err))
		m, err = o.fromReport(o.ws.InsightFallback())
	}
	if err != nil {
		o.log.Info("no analysis report found, running shallow scan")
		m, err = o.scanner.Scan()
		if err != nil {
			return nil, fmt.Errorf("fallback scan failed: %w", err)
		}
	}

	if err := atomicio.WriteJSON(o.ws.ObserveFile(), m); err != nil {
		// Persisting the snapshot is best-effort; observation still counts.
		o.log.Warn("failed to write observe snapshot", zap.Error(err))
	}

	o.log.Info("observed",
		zap.String("source", m.Source),
		zap.Int("total_issues", m.TotalIssues),
		zap.Int("detectors", len(m.Counts)))
	return m, nil
}

// fromReport loads one report file and flattens it into metrics.
func (o *Observer) fromReport(path string) (*types.Metrics, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var r report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}

	m := types.NewMetrics()
	m.Source = "report"
	m.FilesScanned = r.Files

	switch {
	case len(r.Detectors) > 0:
		for detector, issues := range r.Detectors {
			m.Counts[detector] = len(issues)
			m.TotalIssues += len(issues)
		}
	case len(r.Summary) > 0:
		for detector, count := range r.Summary {
			m.Counts[detector] = count
			m.TotalIssues += count
		}
	default:
		return nil, fmt.Errorf("report has no detectors or summary")
	}

	if !r.GeneratedAt.IsZero() {
		m.GeneratedAt = r.GeneratedAt
	}
	return m, nil
}
