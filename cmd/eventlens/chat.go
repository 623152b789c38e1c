package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hrygo/eventlens/internal/userconfig"
	"github.com/hrygo/eventlens/queryengine"
)

func newChatCmd(g *globalOptions, cfg *userconfig.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Interactive chat with the event assistant.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if g.jsonOut {
				return usageError("--json is not supported with 'chat'.")
			}

			a, err := newApp(g, cfg)
			if err != nil {
				return err
			}
			ag, err := newAgent(g, a)
			if err != nil {
				return err
			}

			fmt.Println("Chat with the event assistant. Type 'exit' or press Ctrl-D to quit.")
			scanner := bufio.NewScanner(os.Stdin)
			for {
				fmt.Print("> ")
				if !scanner.Scan() {
					fmt.Println()
					return scanner.Err()
				}
				line := strings.TrimSpace(scanner.Text())
				if line == "" {
					continue
				}
				if line == "exit" || line == "quit" {
					return nil
				}

				// Each turn opens a fresh conversation; failures stay in
				// the loop so one bad request does not end the session.
				err := runAgentInteractive(cmd.Context(), g, a, ag, line,
					queryengine.Params{}, queryengine.SortDate, 0)
				if err != nil {
					fmt.Fprintln(os.Stderr, err)
				}
			}
		},
	}
}
