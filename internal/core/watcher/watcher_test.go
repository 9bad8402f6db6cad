package watcher

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewWatcher_RejectsNilCallback(t *testing.T) {
	w, err := NewWatcher(100*time.Millisecond, nil, nil, nil)
	if err == nil {
		t.Fatal("expected error for nil callback")
	}
	if !errors.Is(err, os.ErrInvalid) {
		t.Fatalf("expected os.ErrInvalid, got %v", err)
	}
	if w != nil {
		t.Fatal("expected nil watcher when callback is invalid")
	}
}

func TestNewWatcher_RejectsBadGlob(t *testing.T) {
	if _, err := NewWatcher(time.Millisecond, []string{"[unterminated"}, nil, func([]string) {}); err == nil {
		t.Fatal("expected glob compile error")
	}
}

func TestWatcher(t *testing.T) {
	tmpDir := t.TempDir()

	changedFiles := make(chan []string, 1)
	w, err := NewWatcher(100*time.Millisecond, []string{"exclude_dir"}, []string{"*.gen.ts"}, func(paths []string) {
		changedFiles <- paths
	})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if err := w.Watch([]string{tmpDir}); err != nil {
		t.Fatal(err)
	}

	testFile := filepath.Join(tmpDir, "app.ts")
	if err := os.WriteFile(testFile, []byte("var a = 1;"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case paths := <-changedFiles:
		found := false
		for _, p := range paths {
			if p == testFile {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("expected %s in changed files %v", testFile, paths)
		}
	case <-time.After(2 * time.Second):
		t.Error("timed out waiting for file change event")
	}

	excludeFile := filepath.Join(tmpDir, "types.gen.ts")
	if err := os.WriteFile(excludeFile, []byte("var b;"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case paths := <-changedFiles:
		for _, p := range paths {
			if filepath.Base(p) == "types.gen.ts" {
				t.Error("excluded file triggered event")
			}
		}
	case <-time.After(500 * time.Millisecond):
	}

	// New directory should be recursively watched after create.
	subdir := filepath.Join(tmpDir, "newdir")
	if err := os.MkdirAll(subdir, 0o755); err != nil {
		t.Fatal(err)
	}
	subFile := filepath.Join(subdir, "nested.ts")
	if err := os.WriteFile(subFile, []byte("var c;"), 0o644); err != nil {
		t.Fatal(err)
	}

	foundNested := false
	timeout := time.After(2 * time.Second)
	for !foundNested {
		select {
		case paths := <-changedFiles:
			for _, p := range paths {
				if p == subFile {
					foundNested = true
					break
				}
			}
		case <-timeout:
			t.Fatal("timed out waiting for nested file event in newly created directory")
		}
	}
}

func TestWatcher_RenameTriggersChange(t *testing.T) {
	tmpDir := t.TempDir()

	changedFiles := make(chan []string, 8)
	w, err := NewWatcher(100*time.Millisecond, nil, nil, func(paths []string) {
		changedFiles <- paths
	})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if err := w.Watch([]string{tmpDir}); err != nil {
		t.Fatal(err)
	}

	oldPath := filepath.Join(tmpDir, "old.ts")
	newPath := filepath.Join(tmpDir, "new.ts")
	if err := os.WriteFile(oldPath, []byte("var a;"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(oldPath, newPath); err != nil {
		t.Fatal(err)
	}

	timeout := time.After(2 * time.Second)
	for {
		select {
		case paths := <-changedFiles:
			for _, p := range paths {
				if p == oldPath || p == newPath {
					return
				}
			}
		case <-timeout:
			t.Fatalf("timed out waiting for rename event, old=%s new=%s", oldPath, newPath)
		}
	}
}

func TestWatcher_ExtensionFilters(t *testing.T) {
	w, err := NewWatcher(10*time.Millisecond, nil, []string{"*.spec.ts"}, func([]string) {})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if !w.shouldExcludeFile("main.js") {
		t.Fatal("expected emitted .js to be excluded")
	}
	if w.shouldExcludeFile("lib.d.ts") {
		t.Fatal("expected declaration files to be watched")
	}
	if !w.shouldExcludeFile("app.spec.ts") {
		t.Fatal("expected glob exclusion to apply")
	}

	w.SetExtensions([]string{"js"})
	if w.shouldExcludeFile("main.js") {
		t.Fatal("expected extension without dot to be accepted")
	}

	w.SetExtensions(nil)
	if w.shouldExcludeFile("README") {
		t.Fatal("expected empty filter to accept everything")
	}
}

func TestWatcher_IgnoreDir(t *testing.T) {
	tmpDir := t.TempDir()
	out := filepath.Join(tmpDir, "out")

	w, err := NewWatcher(10*time.Millisecond, nil, nil, func([]string) {})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	w.IgnoreDir(out)
	w.IgnoreDir("  ")

	if !w.shouldExcludeFile(filepath.Join(out, "app.d.ts")) {
		t.Fatal("expected output directory files to be ignored")
	}
	if !w.shouldExcludeDir(out) {
		t.Fatal("expected output directory to be skipped")
	}
	if w.shouldExcludeFile(filepath.Join(tmpDir, "outside.ts")) {
		t.Fatal("expected sibling files to be watched")
	}
}
