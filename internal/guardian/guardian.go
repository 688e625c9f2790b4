// Package guardian audits running web applications with a headless browser:
// accessibility, performance, security headers, and console errors.
package guardian

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Config holds guardian settings.
type Config struct {
	// URLs to audit. Required.
	URLs []string

	// ReportsDir receives the JSON and HTML reports.
	ReportsDir string

	// Headless controls the browser mode. Default: true.
	Headless bool

	// NavigationTimeout bounds page load per URL. Default: 30s.
	NavigationTimeout time.Duration

	// Concurrency is the number of pages audited in parallel. Default: 2.
	Concurrency int

	// DebuggerURL attaches to an existing browser instead of launching one.
	DebuggerURL string

	Logger *zap.Logger
}

// Guardian runs web audits.
type Guardian struct {
	cfg *Config
	log *zap.Logger
}

// New creates a guardian. URLs are required.
func New(cfg *Config) (*Guardian, error) {
	if cfg == nil || len(cfg.URLs) == 0 {
		return nil, fmt.Errorf("at least one URL is required")
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 30 * time.Second
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 2
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Guardian{cfg: cfg, log: log}, nil
}

// Run audits every configured URL and returns the combined report.
// Individual page failures are recorded in the report, not fatal; the run
// errors only when the browser itself cannot be started.
func (g *Guardian) Run(ctx context.Context) (*Report, error) {
	controlURL := g.cfg.DebuggerURL
	if controlURL == "" {
		url, err := launcher.New().Headless(g.cfg.Headless).Launch()
		if err != nil {
			return nil, fmt.Errorf("failed to launch browser: %w", err)
		}
		controlURL = url
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}
	defer browser.Close()

	report := NewReport()
	var mu sync.Mutex

	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.cfg.Concurrency)
	for _, url := range g.cfg.URLs {
		eg.Go(func() error {
			audit := g.auditPage(gctx, browser, url)
			mu.Lock()
			report.Pages = append(report.Pages, audit)
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	report.Finalize(g.cfg.URLs)
	g.log.Info("guardian run finished",
		zap.Int("pages", len(report.Pages)),
		zap.Int("score", report.Score))
	return report, nil
}

// auditPage loads one URL and runs every audit category against it.
// Errors degrade to a failed page entry so one broken URL never aborts
// the rest of the run.
func (g *Guardian) auditPage(ctx context.Context, browser *rod.Browser, url string) *PageAudit {
	audit := &PageAudit{URL: url, AuditedAt: time.Now()}
	start := time.Now()

	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		audit.Error = fmt.Sprintf("failed to open page: %v", err)
		return audit
	}
	defer page.Close()

	pageCtx, cancel := context.WithTimeout(ctx, g.cfg.NavigationTimeout)
	defer cancel()
	page = page.Context(pageCtx)

	// Console errors and response headers stream in during the load
	var mu sync.Mutex
	var consoleErrors []string
	var mainHeaders map[string]string

	wait := page.EachEvent(
		func(ev *proto.RuntimeConsoleAPICalled) {
			if ev.Type != proto.RuntimeConsoleAPICalledTypeError {
				return
			}
			mu.Lock()
			consoleErrors = append(consoleErrors, stringifyConsoleArgs(ev.Args))
			mu.Unlock()
		},
		func(ev *proto.RuntimeExceptionThrown) {
			mu.Lock()
			consoleErrors = append(consoleErrors, ev.ExceptionDetails.Text)
			mu.Unlock()
		},
		func(ev *proto.NetworkResponseReceived) {
			if ev.Type != proto.NetworkResourceTypeDocument {
				return
			}
			headers := make(map[string]string, len(ev.Response.Headers))
			for k, v := range ev.Response.Headers {
				headers[strings.ToLower(k)] = v.String()
			}
			mu.Lock()
			if mainHeaders == nil {
				mainHeaders = headers
			}
			mu.Unlock()
		},
	)
	// The wait function blocks until the page context ends; the deferred
	// cancel unblocks it when this audit returns.
	go wait()

	if err := (proto.NetworkEnable{}).Call(page); err != nil {
		g.log.Warn("failed to enable network events", zap.String("url", url), zap.Error(err))
	}

	if err := page.Navigate(url); err != nil {
		audit.Error = fmt.Sprintf("failed to navigate: %v", err)
		return audit
	}
	if err := page.WaitLoad(); err != nil {
		audit.Error = fmt.Sprintf("page did not finish loading: %v", err)
		return audit
	}
	audit.LoadTime = time.Since(start)

	a11y, err := g.collectAccessibility(page)
	if err != nil {
		g.log.Warn("accessibility audit failed", zap.String("url", url), zap.Error(err))
	}
	perf, err := g.collectPerformance(page)
	if err != nil {
		g.log.Warn("performance audit failed", zap.String("url", url), zap.Error(err))
	}
	sec, err := g.collectSecurity(page)
	if err != nil {
		g.log.Warn("security audit failed", zap.String("url", url), zap.Error(err))
	}
	mixedContent := 0
	if sec != nil {
		mixedContent = sec.MixedContent
	}

	mu.Lock()
	headers := mainHeaders
	errorsSeen := append([]string(nil), consoleErrors...)
	mu.Unlock()

	audit.Accessibility = scoreAccessibility(a11y)
	audit.Performance = scorePerformance(perf)
	audit.Security = scoreSecurity(url, headers, mixedContent)
	audit.Console = scoreConsole(errorsSeen)
	return audit
}

func stringifyConsoleArgs(args []*proto.RuntimeRemoteObject) string {
	var parts []string
	for _, a := range args {
		if a == nil {
			continue
		}
		if a.Value.Nil() {
			parts = append(parts, a.Description)
			continue
		}
		parts = append(parts, a.Value.String())
	}
	return strings.Join(parts, " ")
}
