package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/hrygo/eventlens/internal/profile"
	"github.com/hrygo/eventlens/internal/userconfig"
	"github.com/hrygo/eventlens/plugin/ai"
	"github.com/hrygo/eventlens/plugin/geocode"
	"github.com/hrygo/eventlens/plugin/luma"
	"github.com/hrygo/eventlens/service/refresh"
)

func newRefreshCmd(g *globalOptions, cfg *userconfig.Config) *cobra.Command {
	var retries, days int

	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Fetch events from all sources and write to cache.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if g.jsonOut {
				return usageError("--json is not supported with 'refresh'.")
			}

			a, err := newApp(g, cfg)
			if err != nil {
				return err
			}

			client := luma.NewClient(retries)
			downloader := luma.NewDownloader(client)
			geocoder := geocode.NewClient(a.profile.CacheDir)

			// Enrichment degrades to geocoding only when no LLM key is set.
			var llm ai.LLMService
			if a.profile.APIKey != "" {
				llm, err = ai.NewLLMService(&ai.Config{
					BaseURL:   a.profile.AIBaseURL,
					APIKey:    a.profile.APIKey,
					Model:     a.profile.AIModel,
					MaxTokens: a.profile.AIMaxTokens,
				})
				if err != nil {
					return err
				}
			}
			enricher := luma.NewEnricher(geocoder, llm)

			svc := refresh.New(downloader, enricher, a.backend.Provider, a.loc, days)
			count, location, err := svc.Refresh(cmd.Context())
			if err != nil {
				return &exitError{code: 1, err: errors.Errorf("Error fetching events: %v", err)}
			}
			slog.Debug("snapshot written", "location", location)
			fmt.Fprintf(os.Stderr, "Cached %d events\n", count)
			return nil
		},
	}

	cmd.Flags().IntVar(&retries, "retries", profile.DefaultRetries,
		fmt.Sprintf("Retry attempts for HTTP requests with exponential backoff (default: %d).", profile.DefaultRetries))
	cmd.Flags().IntVar(&days, "days", 0,
		fmt.Sprintf("Number of days ahead to fetch events (default: %d).", profile.DefaultFetchDays))
	return cmd
}
