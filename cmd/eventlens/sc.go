package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hrygo/eventlens/internal/userconfig"
)

// newScCmd handles the listing form of "sc". Invocations that name a
// shortcut never reach this command: main rewrites them into the stored
// argument list before cobra parses anything.
func newScCmd(cfg *userconfig.Config, configPath string) *cobra.Command {
	return &cobra.Command{
		Use:   "sc [name] [args...]",
		Short: "Run a named shortcut from config.",
		RunE: func(_ *cobra.Command, _ []string) error {
			if len(cfg.Shortcuts) > 0 {
				fmt.Println("Available shortcuts:")
				names := make([]string, 0, len(cfg.Shortcuts))
				for name := range cfg.Shortcuts {
					names = append(names, name)
				}
				sort.Strings(names)
				for _, name := range names {
					fmt.Printf("  %s: %s\n", name, strings.Join(cfg.Shortcuts[name], " "))
				}
			} else {
				fmt.Println("No shortcuts defined.")
			}
			fmt.Printf("\nAdd shortcuts to %s:\n", configPath)
			fmt.Println("  [shortcuts]")
			fmt.Println(`  popular = ["--sort", "guest", "--min-guest", "100"]`)
			fmt.Println(`  weekend = ["--range", "weekend"]`)
			return nil
		},
	}
}
