package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"

	"quill/interpreter-go/pkg/interpreter"
	"quill/interpreter-go/pkg/parser"
	"quill/interpreter-go/pkg/runtime"
)

func runRepl(args []string) int {
	verbose := false
	if len(args) > 0 && args[0] == "-v" {
		verbose = true
		args = args[1:]
	}
	if len(args) > 0 {
		fmt.Fprintf(os.Stderr, "unexpected arguments: %s\n", strings.Join(args, " "))
		return 1
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "quill> ",
		HistoryFile:     replHistoryPath(),
		InterruptPrompt: "^C",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start repl: %v\n", err)
		return 1
	}
	defer rl.Close()

	interp := interpreter.New()
	interp.SetLogger(newLogger(verbose))
	fmt.Fprintln(os.Stdout, cliToolVersion)

	var pending strings.Builder
	for {
		prompt := "quill> "
		if pending.Len() > 0 {
			prompt = "   ... "
		}
		rl.SetPrompt(prompt)

		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			pending.Reset()
			continue
		}
		if errors.Is(err, io.EOF) {
			return 0
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "repl: %v\n", err)
			return 1
		}

		pending.WriteString(line)
		pending.WriteString("\n")
		source := pending.String()
		if strings.TrimSpace(source) == "" {
			pending.Reset()
			continue
		}
		if openBraces(source) > 0 {
			continue // wait for the block to close
		}
		pending.Reset()

		module, err := parser.ParseModule(source, "<repl>")
		if err != nil {
			fmt.Fprintf(os.Stderr, "parse error: %v\n", err)
			continue
		}
		val, _, err := interp.EvaluateModule(module)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		if _, isVoid := val.(runtime.VoidValue); !isVoid {
			fmt.Fprintln(os.Stdout, runtime.ToString(val))
		}
	}
}

// openBraces counts unbalanced braces so multi-line blocks can be entered
// interactively. Strings and comments are respected well enough for
// interactive use.
func openBraces(source string) int {
	depth := 0
	inString := false
	inComment := false
	escaped := false
	for _, ch := range source {
		switch {
		case inComment:
			if ch == '\n' {
				inComment = false
			}
		case inString:
			if escaped {
				escaped = false
			} else if ch == '\\' {
				escaped = true
			} else if ch == '"' {
				inString = false
			}
		case ch == '"':
			inString = true
		case ch == '#':
			inComment = true
		case ch == '{':
			depth++
		case ch == '}':
			depth--
		}
	}
	return depth
}

func replHistoryPath() string {
	home, err := resolveQuillHome()
	if err != nil {
		return ""
	}
	if err := os.MkdirAll(home, 0o755); err != nil {
		return ""
	}
	return home + string(os.PathSeparator) + "repl_history"
}
