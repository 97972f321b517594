package driver

import (
	"fmt"
	"os"

	"quill/interpreter-go/pkg/ast"
	"quill/interpreter-go/pkg/parser"
	"quill/interpreter-go/pkg/refcache"
)

// ScriptCache memoizes parsed modules by source path. Modules are held
// weakly: once every consumer drops a module the entry may be reclaimed, and
// the next Load re-reads and re-parses the file.
type ScriptCache struct {
	cache *refcache.ReferenceCache[string, ast.Module]
}

// NewScriptCache creates an empty cache backed by the file-and-parse loader.
func NewScriptCache() *ScriptCache {
	return &ScriptCache{cache: refcache.New(loadScript)}
}

func loadScript(path string) (*ast.Module, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parser.ParseModule(string(source), path)
}

// Load returns the parsed module for path, reading and parsing it on first
// use. Read and parse failures propagate without caching anything.
func (c *ScriptCache) Load(path string) (*ast.Module, error) {
	if path == "" {
		return nil, fmt.Errorf("script cache: empty path")
	}
	return c.cache.Get(path)
}

// Invalidate drops the cached module for path, reporting whether an entry
// existed. The next Load re-parses the file.
func (c *ScriptCache) Invalidate(path string) bool {
	return c.cache.Remove(path)
}

// Len reports the number of cached entries, stale ones included.
func (c *ScriptCache) Len() int {
	return c.cache.Size()
}
