package main

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/rs/zerolog"

	"quill/interpreter-go/pkg/driver"
)

func runDeps(args []string) int {
	verbose := false
	if len(args) > 0 && args[0] == "-v" {
		verbose = true
		args = args[1:]
	}
	logger := newLogger(verbose)

	mode := "install"
	if len(args) > 0 {
		mode = args[0]
	}
	switch mode {
	case "install", "update":
	default:
		fmt.Fprintf(os.Stderr, "unknown deps command %q (want install or update)\n", mode)
		return 1
	}

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to determine working directory: %v\n", err)
		return 1
	}
	manifestPath, err := findManifest(cwd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "unable to locate %s: %v\n", driver.ManifestFileName, err)
		return 1
	}
	manifest, err := driver.LoadManifest(manifestPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read manifest: %v\n", err)
		return 1
	}
	cacheDir, err := resolveQuillHome()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to resolve QUILL_HOME: %v\n", err)
		return 1
	}

	lockPath := filepath.Join(filepath.Dir(manifest.Path), driver.LockFileName)
	lock, err := driver.LoadLockfile(lockPath)
	lockCreated := false
	switch {
	case err == nil:
		if lock.Root != driver.SanitizeName(manifest.Name) {
			fmt.Fprintf(os.Stderr, "lockfile root %q does not match manifest name %q\n", lock.Root, manifest.Name)
			return 1
		}
	case errors.Is(err, os.ErrNotExist):
		lock = driver.NewLockfile(manifest.Name, cliToolVersion)
		lock.Path = lockPath
		lockCreated = true
	default:
		fmt.Fprintf(os.Stderr, "failed to read lockfile: %v\n", err)
		return 1
	}

	if mode == "update" {
		lock.Packages = nil
	}

	installer := newDependencyInstaller(manifest, cacheDir, logger)
	changed, err := installer.Install(lock)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to install dependencies: %v\n", err)
		return 1
	}

	lock.Tool = cliToolVersion
	if changed || lockCreated {
		if err := driver.WriteLockfile(lock, lockPath); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write lockfile: %v\n", err)
			return 1
		}
		fmt.Fprintf(os.Stdout, "Updated %s\n", lockPath)
	} else {
		fmt.Fprintf(os.Stdout, "%s already up to date\n", driver.LockFileName)
	}
	fmt.Fprintln(os.Stdout, "Dependencies installed.")
	return 0
}

type dependencyInstaller struct {
	manifest *driver.Manifest
	cacheDir string
	logger   zerolog.Logger
}

func newDependencyInstaller(manifest *driver.Manifest, cacheDir string, logger zerolog.Logger) *dependencyInstaller {
	return &dependencyInstaller{manifest: manifest, cacheDir: cacheDir, logger: logger}
}

// Install ensures every declared dependency has a checkout in the cache and
// a matching lockfile entry. Reports whether the lockfile changed.
func (d *dependencyInstaller) Install(lock *driver.Lockfile) (bool, error) {
	changed := false
	for _, name := range d.manifest.DependencyNames() {
		spec := d.manifest.Dependencies[name]
		if existing, ok := lock.FindPackage(name); ok && d.checkoutExists(existing) {
			d.logger.Debug().Str("dep", name).Str("version", existing.Version).Msg("dependency already installed")
			continue
		}
		var pkg *driver.LockedPackage
		var err error
		switch {
		case spec.Git != "":
			pkg, err = d.fetchGit(name, spec)
		case spec.Path != "":
			pkg, err = d.fetchPath(name, spec)
		default:
			err = fmt.Errorf("dependency %q has no source", name)
		}
		if err != nil {
			return changed, err
		}
		lock.Upsert(pkg)
		changed = true
		d.logger.Info().Str("dep", pkg.Name).Str("version", pkg.Version).Str("source", pkg.Source).Msg("installed dependency")
	}
	return changed, nil
}

func (d *dependencyInstaller) checkoutDir(name, version string) string {
	return filepath.Join(d.cacheDir, "pkg", "src", driver.SanitizeName(name), sanitizePathSegment(version))
}

func (d *dependencyInstaller) checkoutExists(pkg *driver.LockedPackage) bool {
	info, err := os.Stat(d.checkoutDir(pkg.Name, pkg.Version))
	return err == nil && info.IsDir()
}

func (d *dependencyInstaller) fetchGit(name string, spec *driver.DependencySpec) (*driver.LockedPackage, error) {
	url := strings.TrimSpace(spec.Git)
	revision, version, err := gitRevisionFromSpec(spec)
	if err != nil {
		return nil, fmt.Errorf("dependency %q: %w", name, err)
	}

	baseDir := filepath.Join(d.cacheDir, "pkg", "src", driver.SanitizeName(name))
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, err
	}

	tmpDir, err := os.MkdirTemp(baseDir, "git-fetch-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(tmpDir)

	repo, err := git.PlainClone(tmpDir, false, &git.CloneOptions{URL: url})
	if err != nil {
		return nil, fmt.Errorf("dependency %q: clone %s: %w", name, url, err)
	}

	commit := version
	if revision != "" {
		hash, err := repo.ResolveRevision(revision)
		if err != nil {
			return nil, fmt.Errorf("dependency %q: resolve %s: %w", name, revision, err)
		}
		worktree, err := repo.Worktree()
		if err != nil {
			return nil, err
		}
		if err := worktree.Checkout(&git.CheckoutOptions{Hash: *hash}); err != nil {
			return nil, fmt.Errorf("dependency %q: checkout %s: %w", name, hash, err)
		}
		commit = hash.String()
	} else {
		head, err := repo.Head()
		if err != nil {
			return nil, err
		}
		commit = head.Hash().String()
		version = commit[:12]
	}

	dir := d.checkoutDir(name, version)
	if err := os.RemoveAll(dir); err != nil {
		return nil, err
	}
	if err := os.Rename(tmpDir, dir); err != nil {
		return nil, err
	}

	checksum, err := dirChecksum(dir)
	if err != nil {
		return nil, err
	}
	return &driver.LockedPackage{
		Name:     driver.SanitizeName(name),
		Version:  version,
		Source:   fmt.Sprintf("git+%s@%s", url, commit),
		Checksum: checksum,
	}, nil
}

func (d *dependencyInstaller) fetchPath(name string, spec *driver.DependencySpec) (*driver.LockedPackage, error) {
	src := spec.Path
	if !filepath.IsAbs(src) {
		src = filepath.Join(filepath.Dir(d.manifest.Path), src)
	}
	info, err := os.Stat(src)
	if err != nil {
		return nil, fmt.Errorf("dependency %q: %w", name, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("dependency %q: %s is not a directory", name, src)
	}
	checksum, err := dirChecksum(src)
	if err != nil {
		return nil, err
	}
	return &driver.LockedPackage{
		Name:     driver.SanitizeName(name),
		Version:  "local",
		Source:   "path+" + src,
		Checksum: checksum,
	}, nil
}

func gitRevisionFromSpec(spec *driver.DependencySpec) (plumbing.Revision, string, error) {
	if rev := strings.TrimSpace(spec.Rev); rev != "" {
		return plumbing.Revision(rev), rev, nil
	}
	if tag := strings.TrimSpace(spec.Tag); tag != "" {
		return plumbing.Revision("refs/tags/" + tag), tag, nil
	}
	if branch := strings.TrimSpace(spec.Branch); branch != "" {
		return plumbing.Revision("refs/heads/" + branch), branch, nil
	}
	return "", "", nil
}

func dirChecksum(path string) (string, error) {
	h := sha256.New()
	err := filepath.WalkDir(path, func(p string, entry os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			if entry.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		h.Write([]byte(filepath.Base(p)))
		h.Write(data)
		return nil
	})
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

var pathSegmentReplacer = strings.NewReplacer("/", "-", "\\", "-", ":", "-")

func sanitizePathSegment(segment string) string {
	cleaned := pathSegmentReplacer.Replace(strings.TrimSpace(segment))
	if cleaned == "" {
		return "unversioned"
	}
	return cleaned
}
