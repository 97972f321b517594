// Package driver handles project configuration: the quill.yml manifest and
// the quill.lock lockfile.
package driver

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ManifestFileName is the project manifest discovered by walking up from
// the working directory.
const ManifestFileName = "quill.yml"

// Manifest represents the parsed contents of quill.yml.
type Manifest struct {
	Path         string
	Name         string
	Version      string
	Entry        string
	Authors      []string
	Dependencies map[string]*DependencySpec
}

// DependencySpec describes a dependency descriptor in the manifest.
type DependencySpec struct {
	Git    string `yaml:"git,omitempty"`
	Rev    string `yaml:"rev,omitempty"`
	Tag    string `yaml:"tag,omitempty"`
	Branch string `yaml:"branch,omitempty"`
	Path   string `yaml:"path,omitempty"`
}

// ValidationError aggregates manifest validation failures.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 0 {
		return "manifest: invalid configuration"
	}
	var b strings.Builder
	b.WriteString("manifest validation failed:")
	for _, issue := range e.Issues {
		b.WriteString("\n- ")
		b.WriteString(issue)
	}
	return b.String()
}

type manifestFile struct {
	Name         string                     `yaml:"name"`
	Version      string                     `yaml:"version"`
	Entry        string                     `yaml:"entry"`
	Authors      []string                   `yaml:"authors"`
	Dependencies map[string]*DependencySpec `yaml:"dependencies"`
}

// LoadManifest parses quill.yml from disk, returning a validated manifest.
func LoadManifest(path string) (*Manifest, error) {
	if path == "" {
		return nil, fmt.Errorf("manifest: empty path")
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("manifest: resolve %s: %w", path, err)
	}
	file, err := os.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("manifest: open %s: %w", absPath, err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)

	var raw manifestFile
	if err := decoder.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("manifest: %s is empty", absPath)
		}
		return nil, fmt.Errorf("manifest: parse %s: %w", absPath, err)
	}

	manifest := &Manifest{
		Path:         absPath,
		Name:         strings.TrimSpace(raw.Name),
		Version:      strings.TrimSpace(raw.Version),
		Entry:        strings.TrimSpace(raw.Entry),
		Authors:      raw.Authors,
		Dependencies: raw.Dependencies,
	}
	if err := manifest.validate(); err != nil {
		return nil, err
	}
	return manifest, nil
}

var versionPattern = regexp.MustCompile(`^\d+\.\d+\.\d+([.-][0-9A-Za-z.-]+)?$`)

func (m *Manifest) validate() error {
	var errs ValidationError
	if m.Name == "" {
		errs.Issues = append(errs.Issues, "name must be provided")
	}
	if m.Version != "" && !versionPattern.MatchString(m.Version) {
		errs.Issues = append(errs.Issues, fmt.Sprintf("version %q is not a valid semantic version", m.Version))
	}
	for i, author := range m.Authors {
		if strings.TrimSpace(author) == "" {
			errs.Issues = append(errs.Issues, fmt.Sprintf("authors[%d] must be a non-empty string", i))
		}
	}
	for name, spec := range m.Dependencies {
		if strings.TrimSpace(name) == "" {
			errs.Issues = append(errs.Issues, "dependency names must be non-empty")
			continue
		}
		if spec == nil {
			errs.Issues = append(errs.Issues, fmt.Sprintf("dependency %q requires a source", name))
			continue
		}
		if spec.Git == "" && spec.Path == "" {
			errs.Issues = append(errs.Issues, fmt.Sprintf("dependency %q requires a git or path source", name))
		}
		if spec.Git == "" && (spec.Rev != "" || spec.Tag != "" || spec.Branch != "") {
			errs.Issues = append(errs.Issues, fmt.Sprintf("dependency %q: rev/tag/branch require a git source", name))
		}
	}
	if len(errs.Issues) > 0 {
		sort.Strings(errs.Issues)
		return &errs
	}
	return nil
}

// EntryPath resolves the manifest's entry script relative to the manifest
// location.
func (m *Manifest) EntryPath() (string, error) {
	entry := m.Entry
	if entry == "" {
		entry = "main.ql"
	}
	if filepath.IsAbs(entry) {
		return entry, nil
	}
	return filepath.Join(filepath.Dir(m.Path), entry), nil
}

// DependencyNames returns dependency names in sorted order.
func (m *Manifest) DependencyNames() []string {
	names := make([]string, 0, len(m.Dependencies))
	for name := range m.Dependencies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var unsafeSegment = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// SanitizeName normalizes a package name into a filesystem-safe segment.
func SanitizeName(name string) string {
	cleaned := unsafeSegment.ReplaceAllString(strings.TrimSpace(name), "-")
	cleaned = strings.Trim(cleaned, "-.")
	if cleaned == "" {
		return "package"
	}
	return cleaned
}
