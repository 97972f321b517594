package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"quill/interpreter-go/pkg/driver"
	"quill/interpreter-go/pkg/interpreter"
)

const cliToolVersion = "quill-cli 0.1.0-dev"

var errManifestNotFound = errors.New("quill.yml not found")

// scripts memoizes parsed entry files across run invocations in one process.
var scripts = driver.NewScriptCache()

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return 1
	}

	switch args[0] {
	case "--help", "-h", "help":
		printUsage()
		return 0
	case "--version", "-V", "version":
		fmt.Fprintln(os.Stdout, cliToolVersion)
		return 0
	case "run":
		return runEntry(args[1:])
	case "repl":
		return runRepl(args[1:])
	case "deps":
		return runDeps(args[1:])
	default:
		return runEntry(args)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `usage: quill <command> [arguments]

Commands:
  run [file]       run a script (or the manifest entry when no file given)
  repl             start an interactive session
  deps install     fetch dependencies declared in quill.yml
  deps update      re-resolve and fetch dependencies
  version          print the tool version

Flags:
  -v               verbose logging (before the command)`)
}

func newLogger(verbose bool) zerolog.Logger {
	level := zerolog.WarnLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()
}

func runEntry(args []string) int {
	verbose := false
	if len(args) > 0 && args[0] == "-v" {
		verbose = true
		args = args[1:]
	}
	logger := newLogger(verbose)

	var entry string
	switch len(args) {
	case 0:
		manifestPath, err := findManifest(".")
		if err != nil {
			fmt.Fprintln(os.Stderr, "quill run requires a source file (quill.yml not found)")
			return 1
		}
		manifest, err := driver.LoadManifest(manifestPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load manifest: %v\n", err)
			return 1
		}
		entry, err = manifest.EntryPath()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to resolve entry: %v\n", err)
			return 1
		}
	case 1:
		entry = args[0]
	default:
		fmt.Fprintf(os.Stderr, "unexpected arguments after %q\n", args[0])
		return 1
	}

	module, err := scripts.Load(entry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", entry, err)
		return 1
	}

	interp := interpreter.New()
	interp.SetLogger(logger)
	logger.Debug().Str("entry", entry).Msg("running script")
	if _, _, err := interp.EvaluateModule(module); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", entry, err)
		return 1
	}
	return 0
}

// findManifest walks upward from start looking for quill.yml.
func findManifest(start string) (string, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", fmt.Errorf("resolve start directory %q: %w", start, err)
	}
	if info, statErr := os.Stat(dir); statErr == nil && !info.IsDir() {
		dir = filepath.Dir(dir)
	}
	origin := dir
	for {
		candidate := filepath.Join(dir, driver.ManifestFileName)
		info, err := os.Stat(candidate)
		if err == nil && !info.IsDir() {
			return candidate, nil
		}
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return "", err
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("no %s found from %s upwards: %w", driver.ManifestFileName, origin, errManifestNotFound)
		}
		dir = parent
	}
}

// resolveQuillHome returns the cache directory for fetched dependencies.
func resolveQuillHome() (string, error) {
	if home := os.Getenv("QUILL_HOME"); home != "" {
		return home, nil
	}
	userHome, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(userHome, ".quill"), nil
}
