package queryengine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/eventlens/store"
)

// Thursday, January 15, 2026, 10:00 in Los Angeles (PST, UTC-8).
func fixedNow() time.Time {
	loc := mustLA()
	return time.Date(2026, 1, 15, 10, 0, 0, 0, loc)
}

func mustLA() *time.Location {
	loc, err := time.LoadLocation("America/Los_Angeles")
	if err != nil {
		panic(err)
	}
	return loc
}

func testEngine() *Engine {
	return NewEngineAt(mustLA(), fixedNow)
}

func makeEvent(title, startAt string, guests int) *store.Event {
	url := "https://lu.ma/" + title
	return &store.Event{
		ID:         store.GenerateEventID(url),
		Title:      title,
		URL:        url,
		StartAt:    startAt,
		GuestCount: guests,
		Sources:    []string{"category:ai"},
	}
}

func strPtr(s string) *string { return &s }

func TestQueryDefaultWindow(t *testing.T) {
	events := []*store.Event{
		makeEvent("Yesterday", "2026-01-14T20:00:00Z", 100),
		makeEvent("Today", "2026-01-15T20:00:00Z", 100),
		makeEvent("Day 13", "2026-01-28T20:00:00Z", 100),
		makeEvent("Day 14", "2026-01-29T20:00:00Z", 100),
	}

	result, err := testEngine().Query(events, Params{}, nil)
	require.NoError(t, err)

	titles := eventTitles(result.Events)
	assert.Equal(t, []string{"Today", "Day 13"}, titles)
	assert.Equal(t, 2, result.Total)
}

func TestQueryWindowBoundaryIsLocalMidnight(t *testing.T) {
	// 07:59 UTC is still the previous day in Los Angeles.
	events := []*store.Event{
		makeEvent("Late Wednesday", "2026-01-15T07:59:00Z", 10),
		makeEvent("Thursday Midnight", "2026-01-15T08:00:00Z", 10),
	}

	result, err := testEngine().Query(events, Params{Days: Int(1)}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Thursday Midnight"}, eventTitles(result.Events))
}

func TestQueryExplicitDatesInclusive(t *testing.T) {
	events := []*store.Event{
		makeEvent("Jan 20", "2026-01-20T20:00:00Z", 10),
		makeEvent("Jan 22", "2026-01-22T20:00:00Z", 10),
		makeEvent("Jan 23", "2026-01-23T20:00:00Z", 10),
	}

	result, err := testEngine().Query(events, Params{FromDate: "20260120", ToDate: "20260122"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Jan 20", "Jan 22"}, eventTitles(result.Events))
}

func TestQuerySkipsUnparseableStart(t *testing.T) {
	events := []*store.Event{
		makeEvent("Good", "2026-01-15T20:00:00Z", 10),
		makeEvent("Broken", "not-a-timestamp", 10),
	}

	result, err := testEngine().Query(events, Params{}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Good"}, eventTitles(result.Events))
}

func TestQueryGuestBounds(t *testing.T) {
	events := []*store.Event{
		makeEvent("Small", "2026-01-15T20:00:00Z", 10),
		makeEvent("Medium", "2026-01-15T21:00:00Z", 80),
		makeEvent("Huge", "2026-01-15T22:00:00Z", 500),
	}

	result, err := testEngine().Query(events, Params{MinGuest: Int(50), MaxGuest: Int(100)}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Medium"}, eventTitles(result.Events))
}

func TestQueryHourFilterUsesReferenceTimezone(t *testing.T) {
	// 20:00 UTC is noon PST.
	events := []*store.Event{
		makeEvent("Noon", "2026-01-15T20:00:00Z", 10),
		makeEvent("Evening", "2026-01-16T02:00:00Z", 10), // 18:00 PST
	}

	result, err := testEngine().Query(events, Params{MinHour: Int(17)}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Evening"}, eventTitles(result.Events))

	result, err = testEngine().Query(events, Params{MaxHour: Int(12)}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Noon"}, eventTitles(result.Events))
}

func TestQueryWeekdayFilter(t *testing.T) {
	events := []*store.Event{
		makeEvent("Thursday Meetup", "2026-01-15T20:00:00Z", 10),
		makeEvent("Saturday Hack", "2026-01-17T20:00:00Z", 10),
		makeEvent("Sunday Social", "2026-01-18T20:00:00Z", 10),
	}

	result, err := testEngine().Query(events, Params{Weekdays: "Sat,Sun"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Saturday Hack", "Sunday Social"}, eventTitles(result.Events))

	// Full names match by their three-letter prefix.
	result, err = testEngine().Query(events, Params{Weekdays: "Saturday, sunday"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Saturday Hack", "Sunday Social"}, eventTitles(result.Events))
}

func TestQueryExcludeKeywords(t *testing.T) {
	events := []*store.Event{
		makeEvent("AI Happy Hour", "2026-01-15T20:00:00Z", 10),
		makeEvent("Founder Dinner", "2026-01-15T21:00:00Z", 10),
		makeEvent("Demo Night", "2026-01-15T22:00:00Z", 10),
	}

	result, err := testEngine().Query(events, Params{Exclude: "dinner, happy hour"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Demo Night"}, eventTitles(result.Events))
}

func TestQueryTitleFilters(t *testing.T) {
	events := []*store.Event{
		makeEvent("AI Builders Meetup", "2026-01-15T20:00:00Z", 10),
		makeEvent("Robotics Lab Tour", "2026-01-15T21:00:00Z", 10),
	}
	engine := testEngine()

	result, err := engine.Query(events, Params{Search: "builders"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"AI Builders Meetup"}, eventTitles(result.Events))

	result, err = engine.Query(events, Params{Regex: "^robotics"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Robotics Lab Tour"}, eventTitles(result.Events))

	result, err = engine.Query(events, Params{Glob: "ai *"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"AI Builders Meetup"}, eventTitles(result.Events))
}

func TestQueryNamedLocationFilters(t *testing.T) {
	sf := makeEvent("SF Demo", "2026-01-15T20:00:00Z", 10)
	sf.City = strPtr("San Francisco")
	sf.Region = strPtr("California")
	sf.Country = strPtr("United States")
	oakland := makeEvent("Oakland Demo", "2026-01-15T21:00:00Z", 10)
	oakland.City = strPtr("Oakland")
	online := makeEvent("Online Demo", "2026-01-15T22:00:00Z", 10)
	online.LocationType = strPtr("online")

	events := []*store.Event{sf, oakland, online}
	engine := testEngine()

	result, err := engine.Query(events, Params{City: "san francisco"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"SF Demo"}, eventTitles(result.Events))

	result, err = engine.Query(events, Params{LocationType: "online"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Online Demo"}, eventTitles(result.Events))
}

func TestQueryCoordinateSearch(t *testing.T) {
	near := makeEvent("Near", "2026-01-15T20:00:00Z", 10)
	near.Latitude, near.Longitude = floatPtr(37.34), floatPtr(-121.89)
	far := makeEvent("Far", "2026-01-15T21:00:00Z", 10)
	far.Latitude, far.Longitude = floatPtr(37.77), floatPtr(-122.42)
	noCoords := makeEvent("No Coordinates", "2026-01-15T22:00:00Z", 10)

	events := []*store.Event{near, far, noCoords}
	engine := testEngine()

	// Default radius of 5 miles keeps only the San Jose event.
	result, err := engine.Query(events, Params{
		SearchLat: Float(37.33939), SearchLon: Float(-121.89496),
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Near"}, eventTitles(result.Events))

	result, err = engine.Query(events, Params{
		SearchLat: Float(37.33939), SearchLon: Float(-121.89496),
		SearchRadiusMiles: Float(60),
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Near", "Far"}, eventTitles(result.Events))

	// Only --city conflicts with coordinates; region and country combine.
	near.Region = strPtr("California")
	result, err = engine.Query(events, Params{
		Region:    "california",
		SearchLat: Float(37.33939), SearchLon: Float(-121.89496),
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Near"}, eventTitles(result.Events))
}

func TestQueryDateSortOrder(t *testing.T) {
	events := []*store.Event{
		makeEvent("Zeta", "2026-01-15T20:00:00Z", 50),
		makeEvent("Alpha", "2026-01-15T23:00:00Z", 50),
		makeEvent("Popular", "2026-01-15T22:00:00Z", 200),
		makeEvent("Earlier Day", "2026-01-15T07:00:00Z", 5), // Jan 14 PST, filtered
		makeEvent("Next Day", "2026-01-16T20:00:00Z", 900),
	}

	result, err := testEngine().Query(events, Params{}, nil)
	require.NoError(t, err)

	// Same calendar day sorts by guest count, then case-insensitive title.
	assert.Equal(t, []string{"Popular", "Alpha", "Zeta", "Next Day"}, eventTitles(result.Events))
}

func TestQueryGuestSortOrder(t *testing.T) {
	events := []*store.Event{
		makeEvent("Later Tie", "2026-01-16T20:00:00Z", 100),
		makeEvent("Earlier Tie", "2026-01-15T20:00:00Z", 100),
		makeEvent("Biggest", "2026-01-17T20:00:00Z", 400),
	}

	result, err := testEngine().Query(events, Params{Sort: SortGuest}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Biggest", "Earlier Tie", "Later Tie"}, eventTitles(result.Events))
}

func TestQuerySeenSuppression(t *testing.T) {
	events := []*store.Event{
		makeEvent("Fresh", "2026-01-15T20:00:00Z", 10),
		makeEvent("Already Seen", "2026-01-15T21:00:00Z", 10),
	}
	seen := map[string]struct{}{
		"https://lu.ma/Already Seen": {},
	}
	engine := testEngine()

	result, err := engine.Query(events, Params{}, seen)
	require.NoError(t, err)
	assert.Equal(t, []string{"Fresh"}, eventTitles(result.Events))
	// Total reflects the result after suppression.
	assert.Equal(t, 1, result.Total)

	// ShowAll restores suppressed events without touching the seen set.
	result, err = engine.Query(events, Params{ShowAll: true}, seen)
	require.NoError(t, err)
	assert.Len(t, result.Events, 2)
	assert.Equal(t, 2, result.Total)
}

func TestQueryValidationErrors(t *testing.T) {
	tests := []struct {
		name   string
		params Params
	}{
		{"min hour too large", Params{MinHour: Int(24)}},
		{"max hour negative", Params{MaxHour: Int(-1)}},
		{"search and regex", Params{Search: "ai", Regex: "ai"}},
		{"regex and glob", Params{Regex: "ai", Glob: "ai*"}},
		{"unknown weekday", Params{Weekdays: "Mon,Funday"}},
		{"days with from date", Params{Days: Int(3), FromDate: "20260120"}},
		{"range with days", Params{Range: "week", Days: Int(3)}},
		{"range with dates", Params{Range: "today", ToDate: "20260120"}},
		{"unknown range", Params{Range: "fortnight"}},
		{"malformed from date", Params{FromDate: "2026-01-20"}},
		{"to before from", Params{FromDate: "20260122", ToDate: "20260120"}},
		{"city with coordinates", Params{City: "San Jose", SearchLat: Float(37.3), SearchLon: Float(-121.9)}},
		{"lat without lon", Params{SearchLat: Float(37.3)}},
		{"radius without coordinates", Params{SearchRadiusMiles: Float(10)}},
		{"bad regex", Params{Regex: "("}},
		{"bad glob", Params{Glob: "[unclosed"}},
	}

	engine := testEngine()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engine.Query(nil, tt.params, nil)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
		})
	}
}

func TestQueryDoesNotMutateInput(t *testing.T) {
	events := []*store.Event{
		makeEvent("B Event", "2026-01-15T20:00:00Z", 10),
		makeEvent("A Event", "2026-01-15T21:00:00Z", 10),
	}

	_, err := testEngine().Query(events, Params{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "B Event", events[0].Title)
	assert.Equal(t, "A Event", events[1].Title)
}

func TestHaversineMiles(t *testing.T) {
	// San Jose to San Francisco is roughly 42 miles.
	d := haversineMiles(37.33939, -121.89496, 37.7749, -122.4194)
	assert.InDelta(t, 42, d, 3)

	assert.Zero(t, haversineMiles(37.0, -122.0, 37.0, -122.0))
}

func eventTitles(events []*store.Event) []string {
	titles := make([]string, 0, len(events))
	for _, e := range events {
		titles = append(titles, e.Title)
	}
	return titles
}

func floatPtr(v float64) *float64 { return &v }
