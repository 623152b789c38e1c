// Package refresh coordinates the download, enrichment, and caching of
// event snapshots.
package refresh

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"github.com/hrygo/eventlens/internal/profile"
	"github.com/hrygo/eventlens/store"
)

// Downloader fetches raw events for a window.
type Downloader interface {
	DownloadEvents(ctx context.Context, start, end time.Time) ([]*store.Event, error)
}

// Enricher fills missing location fields.
type Enricher interface {
	EnrichEvents(ctx context.Context, events []*store.Event) []*store.Event
}

// Service runs one refresh cycle: fetch, enrich, save.
type Service struct {
	downloader Downloader
	enricher   Enricher
	provider   store.Provider
	loc        *time.Location
	days       int
	now        func() time.Time
}

// New creates a refresh Service anchored to the reference timezone. A
// non-positive days value falls back to the default fetch window.
func New(downloader Downloader, enricher Enricher, provider store.Provider, loc *time.Location, days int) *Service {
	if days <= 0 {
		days = profile.DefaultFetchDays
	}
	return &Service{
		downloader: downloader,
		enricher:   enricher,
		provider:   provider,
		loc:        loc,
		days:       days,
		now:        time.Now,
	}
}

// Refresh fetches events starting between today's midnight in the
// reference timezone and the end of the fetch window, enriches them, and
// writes a new snapshot. It returns the event count and the snapshot
// location.
func (s *Service) Refresh(ctx context.Context) (int, string, error) {
	now := s.now()
	start, end := s.window(now)

	events, err := s.downloader.DownloadEvents(ctx, start, end)
	if err != nil {
		return 0, "", errors.Wrap(err, "download events")
	}
	slog.Info("downloaded events", "count", len(events))

	if s.enricher != nil {
		events = s.enricher.EnrichEvents(ctx, events)
	}

	location, err := s.provider.Save(events, now)
	if err != nil {
		return 0, "", errors.Wrap(err, "save snapshot")
	}
	return len(events), location, nil
}

func (s *Service) window(now time.Time) (time.Time, time.Time) {
	local := now.In(s.loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.loc)
	return start, start.AddDate(0, 0, s.days)
}
