// Package codes stores uploaded industry-code lists, one plain-text file per
// upload, grouped into the fixed logical buckets the code-set filter knows.
package codes

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"unicode"

	"go.uber.org/zap"

	"github.com/compfilter/compfilter/internal/domain"
)

// Buckets is the fixed set of logical code buckets.
var Buckets = []string{"main", "sub", "all"}

var stemSanitizer = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Store manages per-bucket code-list files under a base directory. Reads
// snapshot under a shared lock; uploads take the exclusive lock, write
// atomically and drop the affected cache entry.
type Store struct {
	dir    string
	logger *zap.Logger

	mu    sync.RWMutex
	cache map[string]map[string]struct{} // "<bucket>/<stem>" -> code set
}

// NewStore creates a code-list store rooted at dir.
func NewStore(dir string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{dir: dir, logger: logger, cache: make(map[string]map[string]struct{})}
}

// ValidBucket reports whether the bucket name is one of the fixed buckets.
func ValidBucket(bucket string) bool {
	for _, b := range Buckets {
		if b == bucket {
			return true
		}
	}
	return false
}

// Save parses an uploaded delimited code list and stores its codes, one per
// line, as <stem>.txt inside the bucket folder. Returns the stored stem.
func (s *Store) Save(bucket, originalName string, r io.Reader) (string, error) {
	if !ValidBucket(bucket) {
		return "", fmt.Errorf("%w: unknown code bucket %q", domain.ErrConfiguration, bucket)
	}

	raw, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read code upload: %w", err)
	}
	codesList, err := parseUpload(raw)
	if err != nil {
		return "", err
	}
	if len(codesList) == 0 {
		return "", fmt.Errorf("%w: no codes found in uploaded file", domain.ErrConfiguration)
	}

	stem := sanitizeStem(strings.TrimSuffix(filepath.Base(originalName), filepath.Ext(originalName)))
	if stem == "" {
		stem = "code_list"
	}

	folder := filepath.Join(s.dir, bucket)
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return "", fmt.Errorf("create bucket dir: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	target := filepath.Join(folder, stem+".txt")
	tmp, err := os.CreateTemp(folder, stem+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("stage code list: %w", err)
	}
	if _, err := tmp.WriteString(strings.Join(codesList, "\n") + "\n"); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write code list: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("close code list: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("store code list: %w", err)
	}

	delete(s.cache, bucket+"/"+stem)
	s.logger.Info("code list stored",
		zap.String("bucket", bucket),
		zap.String("stem", stem),
		zap.Int("codes", len(codesList)),
	)
	return stem, nil
}

// List returns the stored file stems per bucket, sorted.
func (s *Store) List() (map[string][]string, error) {
	out := make(map[string][]string, len(Buckets))
	for _, bucket := range Buckets {
		matches, err := filepath.Glob(filepath.Join(s.dir, bucket, "*.txt"))
		if err != nil {
			return nil, fmt.Errorf("scan bucket %s: %w", bucket, err)
		}
		stems := make([]string, 0, len(matches))
		for _, m := range matches {
			stems = append(stems, strings.TrimSuffix(filepath.Base(m), ".txt"))
		}
		sort.Strings(stems)
		out[bucket] = stems
	}
	return out, nil
}

// Load returns the code set of one stored list. A missing or unreferenced
// file degrades to an empty set rather than an error.
func (s *Store) Load(bucket, stem string) map[string]struct{} {
	if !ValidBucket(bucket) || stem == "" {
		return nil
	}
	key := bucket + "/" + stem

	s.mu.RLock()
	if set, ok := s.cache[key]; ok {
		s.mu.RUnlock()
		return set
	}
	s.mu.RUnlock()

	path := filepath.Join(s.dir, bucket, sanitizeStem(stem)+".txt")
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("code list unreadable", zap.String("path", path), zap.Error(err))
		}
		return nil
	}

	set := make(map[string]struct{})
	for _, line := range strings.Split(string(data), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			set[line] = struct{}{}
		}
	}

	s.mu.Lock()
	s.cache[key] = set
	s.mu.Unlock()
	return set
}

// parseUpload extracts codes from the first column of a delimited upload.
// The delimiter is sniffed from the first line; a leading header row is
// skipped heuristically when it contains letters.
func parseUpload(raw []byte) ([]string, error) {
	text := strings.Trim(string(raw), "\uFEFF\n\r \t")
	if text == "" {
		return nil, nil
	}

	cr := csv.NewReader(strings.NewReader(text))
	cr.Comma = sniffDelimiter(text)
	cr.FieldsPerRecord = -1

	var out []string
	seen := make(map[string]struct{})
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse code upload: %w", err)
		}
		if len(rec) == 0 {
			continue
		}
		cell := strings.TrimSpace(rec[0])
		if cell == "" {
			continue
		}
		if len(out) == 0 && containsLetter(cell) {
			continue // header row
		}
		if _, dup := seen[cell]; dup {
			continue
		}
		seen[cell] = struct{}{}
		out = append(out, cell)
	}
	return out, nil
}

func sniffDelimiter(text string) rune {
	line := text
	if sc := bufio.NewScanner(bytes.NewReader([]byte(text))); sc.Scan() {
		line = sc.Text()
	}
	for _, d := range []rune{';', '\t', ','} {
		if strings.ContainsRune(line, d) {
			return d
		}
	}
	return ','
}

func containsLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

func sanitizeStem(stem string) string {
	stem = stemSanitizer.ReplaceAllString(stem, "_")
	return strings.Trim(stem, "._")
}
