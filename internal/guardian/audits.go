package guardian

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-rod/rod"
)

// a11yFindings are the raw accessibility signals extracted from the DOM.
type a11yFindings struct {
	ImagesMissingAlt   int  `json:"imagesMissingAlt"`
	InputsMissingLabel int  `json:"inputsMissingLabel"`
	EmptyButtons       int  `json:"emptyButtons"`
	EmptyLinks         int  `json:"emptyLinks"`
	MissingLang        bool `json:"missingLang"`
	MissingTitle       bool `json:"missingTitle"`
}

// perfTiming are the raw performance signals from the Navigation Timing API.
type perfTiming struct {
	DOMContentLoadedMs float64 `json:"domContentLoadedMs"`
	LoadMs             float64 `json:"loadMs"`
	TTFBMs             float64 `json:"ttfbMs"`
	TransferKB         int     `json:"transferKb"`
	Resources          int     `json:"resources"`
	DOMNodes           int     `json:"domNodes"`
}

// securityFindings are the DOM-level security signals.
type securityFindings struct {
	MixedContent int `json:"mixedContent"`
}

const accessibilityJS = `() => {
	const imagesMissingAlt = [...document.querySelectorAll('img:not([alt])')].length;
	const inputsMissingLabel = [...document.querySelectorAll('input:not([type=hidden]), select, textarea')]
		.filter(el => {
			if (el.labels && el.labels.length > 0) return false;
			if (el.getAttribute('aria-label') || el.getAttribute('aria-labelledby')) return false;
			return true;
		}).length;
	const emptyButtons = [...document.querySelectorAll('button')]
		.filter(b => !b.textContent.trim() && !b.getAttribute('aria-label')).length;
	const emptyLinks = [...document.querySelectorAll('a[href]')]
		.filter(a => !a.textContent.trim() && !a.getAttribute('aria-label') && !a.querySelector('img[alt]')).length;
	return {
		imagesMissingAlt,
		inputsMissingLabel,
		emptyButtons,
		emptyLinks,
		missingLang: !document.documentElement.getAttribute('lang'),
		missingTitle: !document.title,
	};
}`

const performanceJS = `() => {
	const nav = performance.getEntriesByType('navigation')[0];
	return {
		domContentLoadedMs: nav ? nav.domContentLoadedEventEnd - nav.startTime : 0,
		loadMs: nav ? nav.loadEventEnd - nav.startTime : 0,
		ttfbMs: nav ? nav.responseStart - nav.startTime : 0,
		transferKb: nav ? Math.round((nav.transferSize || 0) / 1024) : 0,
		resources: performance.getEntriesByType('resource').length,
		domNodes: document.getElementsByTagName('*').length,
	};
}`

const securityJS = `() => {
	const sources = [
		['img', 'src'], ['script', 'src'], ['iframe', 'src'],
		['audio', 'src'], ['video', 'src'], ['source', 'src'],
		['link', 'href'],
	];
	let mixed = 0;
	for (const [tag, attr] of sources) {
		for (const el of document.querySelectorAll(tag + '[' + attr + ']')) {
			const v = el.getAttribute(attr);
			if (v && v.startsWith('http://')) mixed++;
		}
	}
	return { mixedContent: mixed };
}`

func (g *Guardian) collectAccessibility(page *rod.Page) (*a11yFindings, error) {
	var findings a11yFindings
	if err := evalInto(page, accessibilityJS, &findings); err != nil {
		return nil, err
	}
	return &findings, nil
}

func (g *Guardian) collectPerformance(page *rod.Page) (*perfTiming, error) {
	var timing perfTiming
	if err := evalInto(page, performanceJS, &timing); err != nil {
		return nil, err
	}
	return &timing, nil
}

func (g *Guardian) collectSecurity(page *rod.Page) (*securityFindings, error) {
	var findings securityFindings
	if err := evalInto(page, securityJS, &findings); err != nil {
		return nil, err
	}
	return &findings, nil
}

func evalInto(page *rod.Page, js string, out interface{}) error {
	res, err := page.Evaluate(&rod.EvalOptions{JS: js, ByValue: true, AwaitPromise: true})
	if err != nil {
		return err
	}
	data, err := json.Marshal(res.Value)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

// scoreAccessibility turns DOM findings into a 0-100 category score.
// A nil findings value means the audit could not run at all.
func scoreAccessibility(f *a11yFindings) CategoryScore {
	if f == nil {
		return CategoryScore{Score: 0, Issues: []Issue{{Severity: "error", Message: "accessibility audit did not run"}}}
	}

	score := 100
	var issues []Issue
	penalize := func(count, perItem, cap int, severity, format string) {
		if count == 0 {
			return
		}
		p := count * perItem
		if p > cap {
			p = cap
		}
		score -= p
		issues = append(issues, Issue{Severity: severity, Message: fmt.Sprintf(format, count)})
	}

	penalize(f.ImagesMissingAlt, 5, 30, "warning", "%d image(s) missing alt text")
	penalize(f.InputsMissingLabel, 5, 30, "warning", "%d form control(s) missing a label")
	penalize(f.EmptyButtons, 10, 20, "error", "%d button(s) with no accessible name")
	penalize(f.EmptyLinks, 10, 20, "error", "%d link(s) with no accessible name")
	if f.MissingLang {
		score -= 10
		issues = append(issues, Issue{Severity: "warning", Message: "document is missing a lang attribute"})
	}
	if f.MissingTitle {
		score -= 5
		issues = append(issues, Issue{Severity: "warning", Message: "document is missing a title"})
	}

	return CategoryScore{Score: clampScore(score), Issues: issues}
}

// Performance thresholds. Load times under fast score full marks; the load
// penalty grows linearly until slow.
const (
	perfFastMs = 1000.0
	perfSlowMs = 8000.0

	perfMaxTTFBMs     = 600.0
	perfMaxTransferKB = 2048
	perfMaxDOMNodes   = 1500
	perfMaxRequests   = 100
)

func scorePerformance(p *perfTiming) CategoryScore {
	if p == nil {
		return CategoryScore{Score: 0, Issues: []Issue{{Severity: "error", Message: "performance audit did not run"}}}
	}

	score := 100
	var issues []Issue

	if p.LoadMs > perfFastMs {
		ratio := (p.LoadMs - perfFastMs) / (perfSlowMs - perfFastMs)
		if ratio > 1 {
			ratio = 1
		}
		score -= int(ratio * 60)
		issues = append(issues, Issue{
			Severity: "warning",
			Message:  fmt.Sprintf("page load took %.0fms", p.LoadMs),
		})
	}
	if p.TTFBMs > perfMaxTTFBMs {
		score -= 10
		issues = append(issues, Issue{
			Severity: "warning",
			Message:  fmt.Sprintf("slow time to first byte: %.0fms", p.TTFBMs),
		})
	}
	if p.TransferKB > perfMaxTransferKB {
		score -= 10
		issues = append(issues, Issue{
			Severity: "warning",
			Message:  fmt.Sprintf("document transfer size %dKB", p.TransferKB),
		})
	}
	if p.DOMNodes > perfMaxDOMNodes {
		score -= 20
		issues = append(issues, Issue{
			Severity: "warning",
			Message:  fmt.Sprintf("large DOM: %d nodes", p.DOMNodes),
		})
	}
	if p.Resources > perfMaxRequests {
		score -= 20
		issues = append(issues, Issue{
			Severity: "warning",
			Message:  fmt.Sprintf("%d resource requests", p.Resources),
		})
	}

	return CategoryScore{Score: clampScore(score), Issues: issues}
}

// securityHeaders are the response headers checked on the main document,
// with the points each is worth.
var securityHeaders = []struct {
	name      string
	points    int
	httpsOnly bool
	message   string
}{
	{"content-security-policy", 25, false, "missing Content-Security-Policy header"},
	{"strict-transport-security", 20, true, "missing Strict-Transport-Security header"},
	{"x-content-type-options", 20, false, "missing X-Content-Type-Options header"},
	{"x-frame-options", 20, false, "missing X-Frame-Options header"},
	{"referrer-policy", 15, false, "missing Referrer-Policy header"},
}

func scoreSecurityHeaders(url string, headers map[string]string) CategoryScore {
	if headers == nil {
		return CategoryScore{Score: 0, Issues: []Issue{{Severity: "error", Message: "response headers unavailable"}}}
	}

	isHTTPS := strings.HasPrefix(url, "https://")
	score := 0
	total := 0
	var issues []Issue

	for _, h := range securityHeaders {
		if h.httpsOnly && !isHTTPS {
			continue
		}
		total += h.points
		if _, ok := headers[h.name]; ok {
			score += h.points
			continue
		}
		// frame-ancestors in CSP covers the same attack as X-Frame-Options
		if h.name == "x-frame-options" && strings.Contains(headers["content-security-policy"], "frame-ancestors") {
			score += h.points
			continue
		}
		issues = append(issues, Issue{Severity: "warning", Message: h.message})
	}

	if total == 0 {
		return CategoryScore{Score: 100}
	}
	return CategoryScore{Score: clampScore(score * 100 / total), Issues: issues}
}

// scoreSecurity combines the header audit with transport-level checks:
// a plain-HTTP page is penalized outright, an HTTPS page loses points for
// every subresource still loaded over http.
func scoreSecurity(url string, headers map[string]string, mixedContent int) CategoryScore {
	result := scoreSecurityHeaders(url, headers)
	score := result.Score
	issues := result.Issues

	if !strings.HasPrefix(url, "https://") {
		score -= 25
		issues = append(issues, Issue{Severity: "error", Message: "page served over plain HTTP"})
	} else if mixedContent > 0 {
		penalty := mixedContent * 10
		if penalty > 30 {
			penalty = 30
		}
		score -= penalty
		issues = append(issues, Issue{
			Severity: "error",
			Message:  fmt.Sprintf("%d mixed-content resource(s) loaded over http", mixedContent),
		})
	}

	return CategoryScore{Score: clampScore(score), Issues: issues}
}

func scoreConsole(errors []string) CategoryScore {
	score := 100 - len(errors)*10
	var issues []Issue
	for _, msg := range errors {
		issues = append(issues, Issue{Severity: "error", Message: "console error: " + msg})
	}
	return CategoryScore{Score: clampScore(score), Issues: issues}
}

func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
