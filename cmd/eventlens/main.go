// eventlens queries and browses aggregated event listings from a local
// cache. The default command runs the query engine over the cache; a
// trailing free-text argument routes through the LLM agent instead.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/term"

	"github.com/hrygo/eventlens/internal/userconfig"
	"github.com/hrygo/eventlens/queryengine"
	"github.com/hrygo/eventlens/store"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(argv []string) int {
	configPath, err := extractConfigPath(argv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	cfg, err := userconfig.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	argv, code, handled := resolveShortcut(argv, cfg, configPath)
	if handled {
		return code
	}

	root := newRootCmd(cfg, configPath)
	root.SetArgs(argv)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitCode(err)
	}
	return 0
}

// exitError carries an exit code alongside the message. Validation and
// usage problems exit 2, everything else 1.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }

func (e *exitError) Unwrap() error { return e.err }

func usageError(format string, args ...any) *exitError {
	return &exitError{code: 2, err: errors.Errorf(format, args...)}
}

func exitCode(err error) int {
	var coded *exitError
	if errors.As(err, &coded) {
		return coded.code
	}
	var validation *queryengine.ValidationError
	if errors.As(err, &validation) {
		return 2
	}
	var cache *store.CacheError
	if errors.As(err, &cache) {
		return 1
	}
	return 1
}

// extractConfigPath scans argv for --config before cobra parses anything,
// because the user config must be loaded to resolve shortcuts.
func extractConfigPath(argv []string) (string, error) {
	for i, arg := range argv {
		if arg == "--config" && i+1 < len(argv) {
			return argv[i+1], nil
		}
		if value, ok := strings.CutPrefix(arg, "--config="); ok {
			return value, nil
		}
	}
	if env := os.Getenv("EVENTLENS_CONFIG"); env != "" {
		return env, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "resolve home directory")
	}
	return filepath.Join(home, ".eventlens", "config.toml"), nil
}

// valueFlags are global flags that consume the following argument, which
// the shortcut scanner must skip over to find the subcommand position.
var valueFlags = map[string]struct{}{
	"--config":    {},
	"--cache-dir": {},
	"--driver":    {},
}

// resolveShortcut rewrites "sc <name> [extra...]" into the stored argument
// list. The listing form ("sc" with no name) falls through to the sc
// subcommand. Returns the possibly rewritten argv; handled is true when
// the invocation was fully serviced here.
func resolveShortcut(argv []string, cfg *userconfig.Config, configPath string) ([]string, int, bool) {
	i := 0
	for i < len(argv) {
		arg := argv[i]
		if arg == "--" {
			return argv, 0, false
		}
		if strings.HasPrefix(arg, "-") {
			if _, ok := valueFlags[arg]; ok {
				i += 2
				continue
			}
			i++
			continue
		}
		break
	}
	if i >= len(argv) || argv[i] != "sc" {
		return argv, 0, false
	}

	beforeSc := argv[:i]
	afterSc := argv[i+1:]

	// No name follows sc: let the sc subcommand print the listing.
	if len(afterSc) == 0 || strings.HasPrefix(afterSc[0], "-") {
		return argv, 0, false
	}

	name := afterSc[0]
	extra := afterSc[1:]

	stored, ok := cfg.Shortcuts[name]
	if !ok {
		available := "(none)"
		if len(cfg.Shortcuts) > 0 {
			names := make([]string, 0, len(cfg.Shortcuts))
			for n := range cfg.Shortcuts {
				names = append(names, n)
			}
			sort.Strings(names)
			available = strings.Join(names, ", ")
		}
		fmt.Fprintf(os.Stderr, "Error: unknown shortcut '%s'. Available: %s\n", name, available)
		return nil, 2, true
	}

	resolved := make([]string, 0, len(beforeSc)+len(stored)+len(extra))
	resolved = append(resolved, beforeSc...)
	resolved = append(resolved, stored...)
	resolved = append(resolved, extra...)

	echoShortcut(resolved)
	return resolved, 0, false
}

// echoShortcut prints the resolved command to stderr, dimmed on a TTY.
func echoShortcut(resolved []string) {
	dim, reset := "", ""
	if term.IsTerminal(int(os.Stderr.Fd())) {
		dim, reset = "\033[2m", "\033[0m"
	}
	fmt.Fprintf(os.Stderr, "%seventlens %s%s\n",
		dim, strings.Join(stripPathArgs(resolved), " "), reset)
}

// stripPathArgs drops --config and --cache-dir so the echoed command stays
// copy-pasteable in any environment.
func stripPathArgs(args []string) []string {
	clean := make([]string, 0, len(args))
	skip := false
	for _, arg := range args {
		if skip {
			skip = false
			continue
		}
		if arg == "--config" || arg == "--cache-dir" {
			skip = true
			continue
		}
		if strings.HasPrefix(arg, "--config=") || strings.HasPrefix(arg, "--cache-dir=") {
			continue
		}
		clean = append(clean, arg)
	}
	return clean
}
