package guardian

import (
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/odavlstudio/odavl/internal/atomicio"
	"github.com/odavlstudio/odavl/internal/storage/sqlite"
)

// Issue is one audit finding.
type Issue struct {
	Severity string `json:"severity"` // "error" or "warning"
	Message  string `json:"message"`
}

// CategoryScore is a 0-100 score for one audit category with its findings.
type CategoryScore struct {
	Score  int     `json:"score"`
	Issues []Issue `json:"issues,omitempty"`
}

// PageAudit is the audit result for one URL.
type PageAudit struct {
	URL       string        `json:"url"`
	Error     string        `json:"error,omitempty"`
	LoadTime  time.Duration `json:"load_time"`
	AuditedAt time.Time     `json:"audited_at"`

	Accessibility CategoryScore `json:"accessibility"`
	Performance   CategoryScore `json:"performance"`
	Security      CategoryScore `json:"security"`
	Console       CategoryScore `json:"console"`
}

// Score is the average of the four category scores. A page that failed to
// load scores zero.
func (p *PageAudit) Score() int {
	if p.Error != "" {
		return 0
	}
	return (p.Accessibility.Score + p.Performance.Score + p.Security.Score + p.Console.Score) / 4
}

// IssueCount is the total number of findings across all categories.
func (p *PageAudit) IssueCount() int {
	return len(p.Accessibility.Issues) + len(p.Performance.Issues) +
		len(p.Security.Issues) + len(p.Console.Issues)
}

// Row converts the audit into its audit-log representation.
func (p *PageAudit) Row(reportPath string) *sqlite.GuardianRunRow {
	return &sqlite.GuardianRunRow{
		URL:           p.URL,
		Accessibility: p.Accessibility.Score,
		Performance:   p.Performance.Score,
		Security:      p.Security.Score,
		Console:       p.Console.Score,
		IssueCount:    p.IssueCount(),
		ReportPath:    reportPath,
		CreatedAt:     p.AuditedAt,
	}
}

// Report is the combined result of a guardian run.
type Report struct {
	GeneratedAt time.Time    `json:"generated_at"`
	Score       int          `json:"score"`
	Pages       []*PageAudit `json:"pages"`
}

// NewReport returns an empty report.
func NewReport() *Report {
	return &Report{GeneratedAt: time.Now()}
}

// Finalize orders pages to match the requested URL order and computes the
// overall score.
func (r *Report) Finalize(urls []string) {
	order := make(map[string]int, len(urls))
	for i, u := range urls {
		order[u] = i
	}
	sort.SliceStable(r.Pages, func(i, j int) bool {
		return order[r.Pages[i].URL] < order[r.Pages[j].URL]
	})

	if len(r.Pages) == 0 {
		r.Score = 0
		return
	}
	sum := 0
	for _, p := range r.Pages {
		sum += p.Score()
	}
	r.Score = sum / len(r.Pages)
}

// WriteJSON persists the report and returns its path.
func (r *Report) WriteJSON(dir string) (string, error) {
	path := filepath.Join(dir, fmt.Sprintf("guardian-%s.json", r.GeneratedAt.Format("20060102-150405")))
	if err := atomicio.WriteJSON(path, r); err != nil {
		return "", fmt.Errorf("failed to write guardian report: %w", err)
	}
	return path, nil
}

// gradeClass maps a score to the CSS class used in the HTML report.
func gradeClass(score int) string {
	switch {
	case score >= 80:
		return "good"
	case score >= 50:
		return "mid"
	default:
		return "bad"
	}
}

var htmlReport = template.Must(template.New("report").Funcs(template.FuncMap{
	"grade": gradeClass,
}).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Guardian Report</title>
<style>
body { font-family: -apple-system, sans-serif; margin: 2rem; color: #1a1a1a; }
h1 { font-size: 1.4rem; }
.page { border: 1px solid #ddd; border-radius: 8px; padding: 1rem; margin-bottom: 1rem; }
.scores { display: flex; gap: 1.5rem; margin: 0.5rem 0; }
.score { font-weight: 600; }
.good { color: #1a7f37; }
.mid { color: #bf8700; }
.bad { color: #cf222e; }
.issue-error { color: #cf222e; }
.issue-warning { color: #bf8700; }
ul { margin: 0.25rem 0; }
</style>
</head>
<body>
<h1>Guardian Report: overall score {{.Score}}/100</h1>
<p>Generated {{.GeneratedAt.Format "2006-01-02 15:04:05"}}</p>
{{range .Pages}}
<div class="page">
<h2>{{.URL}}</h2>
{{if .Error}}
<p class="issue-error">{{.Error}}</p>
{{else}}
<div class="scores">
<span class="score {{grade .Accessibility.Score}}">Accessibility {{.Accessibility.Score}}</span>
<span class="score {{grade .Performance.Score}}">Performance {{.Performance.Score}}</span>
<span class="score {{grade .Security.Score}}">Security {{.Security.Score}}</span>
<span class="score {{grade .Console.Score}}">Console {{.Console.Score}}</span>
</div>
<ul>
{{range .Accessibility.Issues}}<li class="issue-{{.Severity}}">{{.Message}}</li>{{end}}
{{range .Performance.Issues}}<li class="issue-{{.Severity}}">{{.Message}}</li>{{end}}
{{range .Security.Issues}}<li class="issue-{{.Severity}}">{{.Message}}</li>{{end}}
{{range .Console.Issues}}<li class="issue-{{.Severity}}">{{.Message}}</li>{{end}}
</ul>
{{end}}
</div>
{{end}}
</body>
</html>
`))

// WriteHTML renders the report as a standalone HTML page and returns its path.
func (r *Report) WriteHTML(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create reports directory: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("guardian-%s.html", r.GeneratedAt.Format("20060102-150405")))

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create HTML report: %w", err)
	}
	defer f.Close()

	if err := htmlReport.Execute(f, r); err != nil {
		return "", fmt.Errorf("failed to render HTML report: %w", err)
	}
	return path, nil
}
