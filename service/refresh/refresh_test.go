package refresh

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/eventlens/store"
)

type stubDownloader struct {
	start, end time.Time
	events     []*store.Event
	err        error
}

func (s *stubDownloader) DownloadEvents(_ context.Context, start, end time.Time) ([]*store.Event, error) {
	s.start, s.end = start, end
	return s.events, s.err
}

type stubEnricher struct {
	called bool
}

func (s *stubEnricher) EnrichEvents(_ context.Context, events []*store.Event) []*store.Event {
	s.called = true
	return events
}

func TestRefreshWindowStartsAtLocalMidnight(t *testing.T) {
	loc, err := time.LoadLocation("America/Los_Angeles")
	require.NoError(t, err)

	downloader := &stubDownloader{events: []*store.Event{{ID: "a", URL: "https://luma.com/a"}}}
	enricher := &stubEnricher{}
	provider := store.NewMemoryProvider(nil)

	svc := New(downloader, enricher, provider, loc, 0)
	// 03:00 UTC on Jan 16 is still Jan 15 in Los Angeles.
	svc.now = func() time.Time { return time.Date(2026, 1, 16, 3, 0, 0, 0, time.UTC) }

	count, location, err := svc.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, "memory", location)
	assert.True(t, enricher.called)

	wantStart := time.Date(2026, 1, 15, 0, 0, 0, 0, loc)
	assert.True(t, downloader.start.Equal(wantStart))
	assert.True(t, downloader.end.Equal(wantStart.AddDate(0, 0, 30)))

	saved, err := provider.Load()
	require.NoError(t, err)
	assert.Len(t, saved, 1)
}

func TestRefreshHonorsDayOverride(t *testing.T) {
	loc := time.UTC
	downloader := &stubDownloader{}
	provider := store.NewMemoryProvider(nil)

	svc := New(downloader, nil, provider, loc, 7)
	svc.now = func() time.Time { return time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC) }

	_, _, err := svc.Refresh(context.Background())
	require.NoError(t, err)

	wantStart := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	assert.True(t, downloader.end.Equal(wantStart.AddDate(0, 0, 7)))
}

func TestRefreshPropagatesDownloadError(t *testing.T) {
	loc := time.UTC
	downloader := &stubDownloader{err: assert.AnError}
	provider := store.NewMemoryProvider(nil)

	svc := New(downloader, nil, provider, loc, 0)
	_, _, err := svc.Refresh(context.Background())
	require.Error(t, err)
}
