package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/eventlens/queryengine"
	"github.com/hrygo/eventlens/store"
)

func fixedClock() time.Time {
	loc, err := time.LoadLocation("America/Los_Angeles")
	if err != nil {
		panic(err)
	}
	return time.Date(2026, 1, 15, 10, 0, 0, 0, loc)
}

func newTestService(events []*store.Event) (*Service, *store.MemoryProvider) {
	loc, err := time.LoadLocation("America/Los_Angeles")
	if err != nil {
		panic(err)
	}
	provider := store.NewMemoryProvider(events)
	engine := queryengine.NewEngineAt(loc, fixedClock)
	return New(provider, provider, engine), provider
}

func makeEvent(title string, guests int) *store.Event {
	url := "https://lu.ma/" + title
	return &store.Event{
		ID:         store.GenerateEventID(url),
		Title:      title,
		URL:        url,
		StartAt:    "2026-01-15T20:00:00Z",
		GuestCount: guests,
		Sources:    []string{"category:ai"},
	}
}

func TestQueryAppliesSeenSuppression(t *testing.T) {
	a, b := makeEvent("Alpha", 100), makeEvent("Beta", 100)
	svc, provider := newTestService([]*store.Event{a, b})
	require.NoError(t, provider.MarkSeen([]string{a.URL}))

	result, err := svc.Query(queryengine.Params{})
	require.NoError(t, err)
	require.Len(t, result.Events, 1)
	assert.Equal(t, "Beta", result.Events[0].Title)
	assert.Equal(t, 1, result.Total)

	result, err = svc.Query(queryengine.Params{ShowAll: true})
	require.NoError(t, err)
	assert.Len(t, result.Events, 2)
	assert.Equal(t, 2, result.Total)
}

func TestQueryAllIgnoresSeenState(t *testing.T) {
	a, b := makeEvent("Alpha", 100), makeEvent("Beta", 100)
	svc, provider := newTestService([]*store.Event{a, b})
	require.NoError(t, provider.MarkSeen([]string{a.URL}))

	result, err := svc.QueryAll(queryengine.Params{})
	require.NoError(t, err)
	assert.Len(t, result.Events, 2)
	assert.Equal(t, 2, result.Total)
}

func TestGetByIDsPreservesOrderAndDedupes(t *testing.T) {
	a, b, c := makeEvent("Alpha", 10), makeEvent("Beta", 20), makeEvent("Gamma", 30)
	svc, _ := newTestService([]*store.Event{a, b, c})

	resolved, err := svc.GetByIDs([]string{c.ID, "missing", a.ID, c.ID})
	require.NoError(t, err)

	titles := make([]string, len(resolved))
	for i, e := range resolved {
		titles[i] = e.Title
	}
	assert.Equal(t, []string{"Gamma", "Alpha"}, titles)
}

func TestGetByIDsIgnoresSeenState(t *testing.T) {
	a := makeEvent("Alpha", 10)
	svc, provider := newTestService([]*store.Event{a})
	require.NoError(t, provider.MarkSeen([]string{a.URL}))

	resolved, err := svc.GetByIDs([]string{a.ID})
	require.NoError(t, err)
	require.Len(t, resolved, 1)
}

func TestMarkSeenIsIdempotent(t *testing.T) {
	a := makeEvent("Alpha", 10)
	svc, _ := newTestService([]*store.Event{a})

	require.NoError(t, svc.MarkSeen([]*store.Event{a}))
	require.NoError(t, svc.MarkSeen([]*store.Event{a}))

	result, err := svc.Query(queryengine.Params{})
	require.NoError(t, err)
	assert.Empty(t, result.Events)

	cleared, err := svc.ResetSeen()
	require.NoError(t, err)
	assert.True(t, cleared)

	result, err = svc.Query(queryengine.Params{})
	require.NoError(t, err)
	assert.Len(t, result.Events, 1)
}
