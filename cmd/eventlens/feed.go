package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gorilla/feeds"
	"github.com/spf13/cobra"

	"github.com/hrygo/eventlens/internal/userconfig"
	"github.com/hrygo/eventlens/store"
)

func newFeedCmd(g *globalOptions, cfg *userconfig.Config) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "feed",
		Short: "Export cached events as an RSS or Atom feed.",
		Args:  cobra.NoArgs,
	}
	opts := addQueryFlags(cmd.Flags())
	cmd.Flags().StringVar(&format, "format", "rss", "Feed format: 'rss' or 'atom'.")

	cmd.RunE = func(_ *cobra.Command, _ []string) error {
		if format != "rss" && format != "atom" {
			return usageError("--format must be 'rss' or 'atom'.")
		}

		a, err := newApp(g, cfg)
		if err != nil {
			return err
		}

		// Feed readers keep their own read state, so seen suppression is
		// bypassed.
		params := opts.params()
		params.ShowAll = true
		result, err := a.events.Query(params)
		if err != nil {
			return err
		}

		feed := &feeds.Feed{
			Title:       "eventlens: upcoming events",
			Link:        &feeds.Link{Href: "https://luma.com"},
			Description: "Aggregated event listings from the local cache",
			Created:     time.Now(),
		}
		for _, event := range topSlice(result.Events, opts.top) {
			item := &feeds.Item{
				Id:          event.ID,
				Title:       event.Title,
				Link:        &feeds.Link{Href: event.URL},
				Description: describeEvent(event),
			}
			if start, err := store.ParseStartAt(event.StartAt); err == nil {
				item.Created = start
			}
			feed.Items = append(feed.Items, item)
		}

		if format == "atom" {
			return feed.WriteAtom(os.Stdout)
		}
		return feed.WriteRss(os.Stdout)
	}
	return cmd
}

// describeEvent summarizes guest count and location for the feed body.
func describeEvent(event *store.Event) string {
	parts := []string{fmt.Sprintf("%d guests", event.GuestCount)}
	var place []string
	for _, field := range []*string{event.City, event.Region, event.Country} {
		if field != nil && *field != "" {
			place = append(place, *field)
		}
	}
	if len(place) > 0 {
		parts = append(parts, strings.Join(place, ", "))
	}
	if event.LocationType != nil && *event.LocationType != "" {
		parts = append(parts, *event.LocationType)
	}
	return strings.Join(parts, " | ")
}
