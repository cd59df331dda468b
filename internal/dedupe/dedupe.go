// Package dedupe loads previously exported identifiers from a results folder
// so a new export can skip companies that were already delivered.
package dedupe

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// identifierColumns are the header names, in preference order, that hold the
// company identifier in previously exported CSV files.
var identifierColumns = []string{"kvknumber", "kvknummer", "kvk", "id"}

// Loader reads identifier sets from export folders and caches them keyed by
// a folder signature, so repeated previews against an unchanged folder skip
// the rescan.
type Loader struct {
	logger *zap.Logger

	mu   sync.Mutex
	path string
	sig  string
	set  map[string]struct{}
}

// NewLoader creates a dedupe loader.
func NewLoader(logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{logger: logger}
}

// Load collects the identifiers found in every *.csv and *.txt file directly
// under dir. A missing or unreadable folder is an error: silently exporting
// duplicates is worse than failing the request.
func (l *Loader) Load(dir string) (map[string]struct{}, error) {
	dir = filepath.Clean(dir)
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("duplicates folder: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("duplicates folder %s is not a directory", dir)
	}

	files, err := listFiles(dir)
	if err != nil {
		return nil, err
	}
	sig := signature(files)

	l.mu.Lock()
	if l.path == dir && l.sig == sig && l.set != nil {
		set := l.set
		l.mu.Unlock()
		return set, nil
	}
	l.mu.Unlock()

	set := make(map[string]struct{})
	for _, f := range files {
		if err := collectFile(f.path, set); err != nil {
			return nil, err
		}
	}
	l.logger.Info("duplicate identifiers loaded",
		zap.String("dir", dir),
		zap.Int("files", len(files)),
		zap.Int("identifiers", len(set)),
	)

	l.mu.Lock()
	l.path, l.sig, l.set = dir, sig, set
	l.mu.Unlock()
	return set, nil
}

type fileInfo struct {
	path string
	name string
	size int64
	mod  int64
}

func listFiles(dir string) ([]fileInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scan duplicates folder: %w", err)
	}
	var out []fileInfo
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext != ".csv" && ext != ".txt" {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", e.Name(), err)
		}
		out = append(out, fileInfo{
			path: filepath.Join(dir, e.Name()),
			name: e.Name(),
			size: info.Size(),
			mod:  info.ModTime().UnixNano(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out, nil
}

// signature folds every file's name, size and mtime into a cache key that
// changes whenever the folder contents change.
func signature(files []fileInfo) string {
	var b strings.Builder
	for _, f := range files {
		fmt.Fprintf(&b, "%s|%d|%d;", f.name, f.size, f.mod)
	}
	return b.String()
}

func collectFile(path string, set map[string]struct{}) error {
	if strings.EqualFold(filepath.Ext(path), ".txt") {
		return collectLines(path, set)
	}
	return collectCSV(path, set)
}

func collectLines(path string, set map[string]struct{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(strings.TrimPrefix(line, "\uFEFF"))
		if line != "" {
			set[line] = struct{}{}
		}
	}
	return nil
}

func collectCSV(path string, set map[string]struct{}) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.ReuseRecord = true

	header, err := r.Read()
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	col := identifierColumn(header)

	for {
		rec, err := r.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		if col >= len(rec) {
			continue
		}
		if v := strings.TrimSpace(rec[col]); v != "" {
			set[v] = struct{}{}
		}
	}
}

// identifierColumn finds the identifier column in an export header, falling
// back to the first column when no known name matches.
func identifierColumn(header []string) int {
	for _, want := range identifierColumns {
		for i, h := range header {
			h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\uFEFF")))
			if h == want {
				return i
			}
		}
	}
	return 0
}
