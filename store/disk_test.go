package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func diskEvent(title string) *Event {
	url := "https://lu.ma/" + title
	return &Event{
		ID:         GenerateEventID(url),
		Title:      title,
		URL:        url,
		StartAt:    "2026-01-15T20:00:00Z",
		GuestCount: 100,
		Sources:    []string{"category:ai"},
	}
}

func TestDiskProviderRoundTrip(t *testing.T) {
	provider := NewDiskProvider(t.TempDir())
	saved := []*Event{diskEvent("Alpha"), diskEvent("Beta")}

	path, err := provider.Save(saved, time.Now())
	require.NoError(t, err)
	assert.FileExists(t, path)

	loaded, err := provider.Load()
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, saved[0].ID, loaded[0].ID)
	assert.Equal(t, "Alpha", loaded[0].Title)
	assert.Equal(t, []string{"category:ai"}, loaded[0].Sources)
}

func TestDiskProviderNewestSnapshotWins(t *testing.T) {
	provider := NewDiskProvider(t.TempDir())
	older := time.Date(2026, 1, 14, 8, 0, 0, 0, time.UTC)
	newer := time.Date(2026, 1, 15, 8, 0, 0, 0, time.UTC)

	_, err := provider.Save([]*Event{diskEvent("Old")}, older)
	require.NoError(t, err)
	_, err = provider.Save([]*Event{diskEvent("New")}, newer)
	require.NoError(t, err)

	loaded, err := provider.Load()
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "New", loaded[0].Title)
}

func TestDiskProviderMissingCache(t *testing.T) {
	provider := NewDiskProvider(t.TempDir())

	_, err := provider.Load()
	require.Error(t, err)
	var cacheErr *CacheError
	require.ErrorAs(t, err, &cacheErr)
	assert.Contains(t, err.Error(), "no cached events")
}

func TestDiskProviderCorruptSnapshot(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, snapshotPrefix+"2026-01-15_08-00-00.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	provider := NewDiskProvider(dir)
	_, err := provider.Load()
	require.Error(t, err)
	var cacheErr *CacheError
	require.ErrorAs(t, err, &cacheErr)
}

func TestDiskProviderStaleness(t *testing.T) {
	// No snapshot reports fresh; Load carries the real error.
	empty := NewDiskProvider(t.TempDir())
	staleness, err := empty.CheckStaleness()
	require.NoError(t, err)
	assert.False(t, staleness.IsStale)

	fresh := NewDiskProvider(t.TempDir())
	_, err = fresh.Save([]*Event{diskEvent("Fresh")}, time.Now())
	require.NoError(t, err)
	staleness, err = fresh.CheckStaleness()
	require.NoError(t, err)
	assert.False(t, staleness.IsStale)
	assert.Less(t, staleness.Age, time.Minute)

	stale := NewDiskProvider(t.TempDir())
	_, err = stale.Save([]*Event{diskEvent("Stale")}, time.Now().Add(-StaleAfter-time.Hour))
	require.NoError(t, err)
	staleness, err = stale.CheckStaleness()
	require.NoError(t, err)
	assert.True(t, staleness.IsStale)
	assert.Greater(t, staleness.Age, StaleAfter)
}

func TestDiskSeenStoreRoundTrip(t *testing.T) {
	seen := NewDiskSeenStore(t.TempDir())

	urls, err := seen.SeenURLs()
	require.NoError(t, err)
	assert.Empty(t, urls)

	require.NoError(t, seen.MarkSeen([]string{"https://lu.ma/a", "https://lu.ma/b"}))
	require.NoError(t, seen.MarkSeen([]string{"https://lu.ma/b", "https://lu.ma/c"}))

	urls, err = seen.SeenURLs()
	require.NoError(t, err)
	assert.Len(t, urls, 3)
	assert.Contains(t, urls, "https://lu.ma/a")
	assert.Contains(t, urls, "https://lu.ma/c")
}

func TestDiskSeenStoreCorruptFileReadsEmpty(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, seenFilename), []byte("][garbage"), 0o644))

	seen := NewDiskSeenStore(dir)
	urls, err := seen.SeenURLs()
	require.NoError(t, err)
	assert.Empty(t, urls)

	// Marking seen over a corrupt file rewrites it cleanly.
	require.NoError(t, seen.MarkSeen([]string{"https://lu.ma/a"}))
	urls, err = seen.SeenURLs()
	require.NoError(t, err)
	assert.Len(t, urls, 1)
}

func TestDiskSeenStoreReset(t *testing.T) {
	seen := NewDiskSeenStore(t.TempDir())

	cleared, err := seen.ResetSeen()
	require.NoError(t, err)
	assert.False(t, cleared)

	require.NoError(t, seen.MarkSeen([]string{"https://lu.ma/a"}))
	cleared, err = seen.ResetSeen()
	require.NoError(t, err)
	assert.True(t, cleared)

	urls, err := seen.SeenURLs()
	require.NoError(t, err)
	assert.Empty(t, urls)
}
