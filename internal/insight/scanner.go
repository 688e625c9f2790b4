package insight

import (
	"bufio"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/odavlstudio/odavl/internal/types"
)

// scanner is the fallback when no analysis report exists: a shallow walk
// that counts rough issue signals. It is deliberately cheap and pessimistic;
// the real detectors live in the analysis tool that writes insight.json.
type scanner struct {
	root     string
	maxFiles int
}

func newScanner(root string, maxFiles int) *scanner {
	if maxFiles <= 0 {
		maxFiles = 2000
	}
	return &scanner{root: root, maxFiles: maxFiles}
}

var sourceExtensions = map[string]bool{
	".ts": true, ".tsx": true, ".js": true, ".jsx": true,
	".go": true, ".py": true, ".java": true, ".rs": true,
}

var skipDirs = map[string]bool{
	"node_modules": true, ".git": true, ".odavl": true,
	"dist": true, "build": true, "vendor": true, "reports": true,
}

const longFileThreshold = 600

// Scan walks the workspace and produces approximate metrics.
func (s *scanner) Scan() (*types.Metrics, error) {
	m := types.NewMetrics()
	m.Source = "scan"

	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // Unreadable entries are skipped, not fatal
		}
		if d.IsDir() {
			if skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if m.FilesScanned >= s.maxFiles {
			return filepath.SkipAll
		}
		ext := filepath.Ext(path)
		if !sourceExtensions[ext] {
			return nil
		}
		m.FilesScanned++
		s.scanFile(path, ext, m)
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, v := range m.Counts {
		m.TotalIssues += v
	}
	return m, nil
}

func (s *scanner) scanFile(path, ext string, m *types.Metrics) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	isTS := ext == ".ts" || ext == ".tsx"
	isJS := isTS || ext == ".js" || ext == ".jsx"

	lines := 0
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		lines++
		line := sc.Text()
		if strings.Contains(line, "TODO") || strings.Contains(line, "FIXME") {
			m.Counts["todo"]++
		}
		if isTS && strings.Contains(line, ": any") {
			m.Counts["typescript"]++
		}
		if isJS && strings.Contains(line, "console.log") {
			m.Counts["console"]++
		}
	}
	if lines > longFileThreshold {
		m.Counts["complexity"]++
	}
}
