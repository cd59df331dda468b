package dedupe

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoad_MixedFolder(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "batch1.csv", "kvknumber,name\n11111111,Alpha\n22222222,Beta\n")
	writeFile(t, dir, "extra.txt", "33333333\n\n44444444\n")
	writeFile(t, dir, "notes.md", "55555555\n") // wrong extension, ignored

	set, err := NewLoader(nil).Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	for _, id := range []string{"11111111", "22222222", "33333333", "44444444"} {
		if _, ok := set[id]; !ok {
			t.Errorf("identifier %s missing", id)
		}
	}
	if _, ok := set["55555555"]; ok {
		t.Error("identifiers from non-csv/txt files must be ignored")
	}
}

func TestLoad_IdentifierColumnFallback(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "old.csv", "nummer,naam\n99999999,Gamma\n")

	set, err := NewLoader(nil).Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, ok := set["99999999"]; !ok {
		t.Errorf("expected first-column fallback, got %v", set)
	}
}

func TestLoad_MissingFolderFails(t *testing.T) {
	if _, err := NewLoader(nil).Load(filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Error("expected error for missing folder")
	}
}

func TestLoad_FileInsteadOfFolderFails(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "plain.csv", "kvknumber\n1\n")

	if _, err := NewLoader(nil).Load(path); err == nil {
		t.Error("expected error when path is a file")
	}
}

func TestLoad_CacheInvalidatesOnChange(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "batch.csv", "kvknumber\n11111111\n")

	l := NewLoader(nil)
	first, err := l.Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(first) != 1 {
		t.Fatalf("expected 1 identifier, got %d", len(first))
	}

	// Same folder, unchanged: the cached set is reused.
	second, err := l.Load(dir)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(second) != 1 {
		t.Fatalf("unexpected reload result: %d", len(second))
	}

	if err := os.WriteFile(path, []byte("kvknumber\n11111111\n22222222\n"), 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	// Nudge the mtime in case the rewrite landed within timestamp granularity.
	later := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(path, later, later); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	third, err := l.Load(dir)
	if err != nil {
		t.Fatalf("load after change: %v", err)
	}
	if len(third) != 2 {
		t.Errorf("expected refreshed set of 2, got %d", len(third))
	}
}
