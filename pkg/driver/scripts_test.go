package driver

import (
	"os"
	"path/filepath"
	"testing"
)

func writeScript(t *testing.T, path, contents string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("failed to write script: %v", err)
	}
}

func TestScriptCacheMemoizesParsedModules(t *testing.T) {
	path := filepath.Join(t.TempDir(), "main.ql")
	writeScript(t, path, "x = 1\n")

	cache := NewScriptCache()
	first, err := cache.Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(first.Body) != 1 {
		t.Fatalf("unexpected module body %#v", first.Body)
	}
	second, err := cache.Load(path)
	if err != nil {
		t.Fatalf("second load failed: %v", err)
	}
	if second != first {
		t.Fatalf("expected the identical cached module")
	}
	if cache.Len() != 1 {
		t.Fatalf("unexpected cache size %d", cache.Len())
	}
}

func TestScriptCacheInvalidateForcesReparse(t *testing.T) {
	path := filepath.Join(t.TempDir(), "main.ql")
	writeScript(t, path, "x = 1\n")

	cache := NewScriptCache()
	first, err := cache.Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if !cache.Invalidate(path) {
		t.Fatalf("invalidate must report an existing entry")
	}
	if cache.Invalidate(path) {
		t.Fatalf("second invalidate must report false")
	}

	writeScript(t, path, "x = 1\ny = 2\n")
	second, err := cache.Load(path)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if second == first {
		t.Fatalf("expected a re-parsed module after invalidation")
	}
	if len(second.Body) != 2 {
		t.Fatalf("reload did not pick up the new contents: %#v", second.Body)
	}
}

func TestScriptCacheRejectsEmptyPath(t *testing.T) {
	cache := NewScriptCache()
	if _, err := cache.Load(""); err == nil {
		t.Fatalf("empty path must fail")
	}
	if cache.Len() != 0 {
		t.Fatalf("failed load must not create an entry")
	}
}

func TestScriptCacheFailuresAreNotCached(t *testing.T) {
	dir := t.TempDir()
	cache := NewScriptCache()

	if _, err := cache.Load(filepath.Join(dir, "missing.ql")); err == nil {
		t.Fatalf("missing file must fail")
	}

	path := filepath.Join(dir, "main.ql")
	writeScript(t, path, "fn {\n")
	if _, err := cache.Load(path); err == nil {
		t.Fatalf("parse failure must propagate")
	}
	if cache.Len() != 0 {
		t.Fatalf("failed loads must not leave entries, got %d", cache.Len())
	}

	writeScript(t, path, "x = 1\n")
	module, err := cache.Load(path)
	if err != nil {
		t.Fatalf("load after fixing the script failed: %v", err)
	}
	if len(module.Body) != 1 {
		t.Fatalf("unexpected module body %#v", module.Body)
	}
}
