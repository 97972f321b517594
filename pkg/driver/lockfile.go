package driver

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// LockFileName sits next to the manifest and pins resolved dependencies.
const LockFileName = "quill.lock"

// Lockfile models the quill.lock contents.
type Lockfile struct {
	Path      string           `yaml:"-"`
	Root      string           `yaml:"root"`
	Generated string           `yaml:"generated"`
	Tool      string           `yaml:"tool"`
	Packages  []*LockedPackage `yaml:"packages"`
}

// LockedPackage captures a single resolved dependency entry.
type LockedPackage struct {
	Name     string `yaml:"name"`
	Version  string `yaml:"version"`
	Source   string `yaml:"source"`
	Checksum string `yaml:"checksum,omitempty"`
}

// NewLockfile constructs a lockfile with metadata seeded for the root
// package.
func NewLockfile(root, tool string) *Lockfile {
	return &Lockfile{
		Root:      SanitizeName(root),
		Generated: time.Now().UTC().Format(time.RFC3339),
		Tool:      strings.TrimSpace(tool),
		Packages:  []*LockedPackage{},
	}
}

// LoadLockfile parses quill.lock from disk.
func LoadLockfile(path string) (*Lockfile, error) {
	if path == "" {
		return nil, fmt.Errorf("lockfile: empty path")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("lockfile: resolve %s: %w", path, err)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, err
	}
	var lock Lockfile
	if err := yaml.Unmarshal(data, &lock); err != nil {
		return nil, fmt.Errorf("lockfile: parse %s: %w", abs, err)
	}
	lock.Path = abs
	return &lock, nil
}

// WriteLockfile serializes the lockfile with deterministic package order.
func WriteLockfile(lock *Lockfile, path string) error {
	if lock == nil {
		return fmt.Errorf("lockfile: nil lockfile")
	}
	sort.Slice(lock.Packages, func(a, b int) bool {
		return lock.Packages[a].Name < lock.Packages[b].Name
	})
	data, err := yaml.Marshal(lock)
	if err != nil {
		return fmt.Errorf("lockfile: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("lockfile: write %s: %w", path, err)
	}
	return nil
}

// FindPackage returns the locked entry for name, if any.
func (l *Lockfile) FindPackage(name string) (*LockedPackage, bool) {
	sanitized := SanitizeName(name)
	for _, pkg := range l.Packages {
		if pkg != nil && pkg.Name == sanitized {
			return pkg, true
		}
	}
	return nil, false
}

// Upsert replaces or appends a locked entry.
func (l *Lockfile) Upsert(pkg *LockedPackage) {
	if pkg == nil {
		return
	}
	for i, existing := range l.Packages {
		if existing != nil && existing.Name == pkg.Name {
			l.Packages[i] = pkg
			return
		}
	}
	l.Packages = append(l.Packages, pkg)
}
