package assets

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestManager_Priority(t *testing.T) {
	low, high := t.TempDir(), t.TempDir()
	writeFile(t, low, "wood.png", "low")
	writeFile(t, low, "only-low.bin", "x")
	writeFile(t, high, "wood.png", "high")

	m := NewManager()
	if err := m.AddDir(low); err != nil {
		t.Fatal(err)
	}
	if err := m.AddDir(high); err != nil {
		t.Fatal(err)
	}

	data, err := m.Load("wood.png")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if string(data) != "high" {
		t.Errorf("got %q, want the later directory's file", data)
	}
	if _, err := m.Load("only-low.bin"); err != nil {
		t.Errorf("Load from earlier dir: %v", err)
	}
}

func TestManager_Errors(t *testing.T) {
	dir := t.TempDir()
	m := NewManager()
	if err := m.AddDir(filepath.Join(dir, "missing")); err == nil {
		t.Error("expected error for missing dir")
	}
	writeFile(t, dir, "file.txt", "x")
	if err := m.AddDir(filepath.Join(dir, "file.txt")); err == nil {
		t.Error("expected error for non-directory")
	}
	if err := m.AddDir(dir); err != nil {
		t.Fatal(err)
	}

	tests := []string{"nope.png", "../escape.png", "/abs/path.png"}
	for _, name := range tests {
		if _, err := m.Load(name); !errors.Is(err, ErrNotFound) {
			t.Errorf("Load(%q) error = %v, want ErrNotFound", name, err)
		}
	}
}

func TestManager_CollectAndCache(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.bin", "aaaa")
	writeFile(t, dir, "b.png", "bb")

	m := NewManager()
	if err := m.AddDir(dir); err != nil {
		t.Fatal(err)
	}

	got := m.Collect([]string{"a.bin", "b.png", "missing.jpg", "a.bin"})
	if len(got) != 2 {
		t.Fatalf("Collect returned %d files, want 2", len(got))
	}
	if string(got["a.bin"]) != "aaaa" || string(got["b.png"]) != "bb" {
		t.Errorf("unexpected contents: %q", got)
	}

	hits, misses, size := m.cache.Stats()
	if hits != 0 || size != 6 {
		t.Errorf("stats hits=%d size=%d, want 0 and 6", hits, size)
	}
	if misses != 3 {
		t.Errorf("misses = %d, want 3", misses)
	}

	m.Collect([]string{"a.bin"})
	if hits, _, _ := m.cache.Stats(); hits != 1 {
		t.Errorf("hits = %d, want 1", hits)
	}

	m.Close()
	if _, err := m.Load("a.bin"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load after Close error = %v", err)
	}
}
