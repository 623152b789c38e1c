package render

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/eventlens/store"
)

func testRenderer() *Renderer {
	loc, err := time.LoadLocation("America/Los_Angeles")
	if err != nil {
		panic(err)
	}
	// Thursday, January 15, 2026.
	return NewAt(loc, func() time.Time {
		return time.Date(2026, 1, 15, 10, 0, 0, 0, loc)
	})
}

func renderEvent(title, startAt string, guests int) *store.Event {
	return &store.Event{
		ID:         store.GenerateEventID("https://lu.ma/" + title),
		Title:      title,
		URL:        "https://lu.ma/" + title,
		StartAt:    startAt,
		GuestCount: guests,
	}
}

func TestFormatEventTime(t *testing.T) {
	r := testRenderer()

	// 20:00 UTC is noon PST on the current day.
	assert.Equal(t, "Today Jan 15, 12PM", r.FormatEventTime("2026-01-15T20:00:00Z"))
	// 02:30 UTC next day is 6:30 PM PST the same evening.
	assert.Equal(t, "Today Jan 15, 6:30PM", r.FormatEventTime("2026-01-16T02:30:00Z"))
	assert.Equal(t, "Fri Jan 16, 12PM", r.FormatEventTime("2026-01-16T20:00:00Z"))
	// Unparseable timestamps pass through.
	assert.Equal(t, "soon", r.FormatEventTime("soon"))
}

func TestPrintEventsHeaderAndRows(t *testing.T) {
	r := testRenderer()
	events := []*store.Event{
		renderEvent("AI Meetup", "2026-01-15T20:00:00Z", 150),
		renderEvent("Demo Night", "2026-01-16T20:00:00Z", 80),
	}

	var buf strings.Builder
	r.PrintEvents(&buf, events, Options{Sort: "date"})
	out := buf.String()

	assert.Contains(t, out, "Top 2 events (sorted by date):")
	assert.Contains(t, out, "[150]")
	assert.Contains(t, out, "AI Meetup | https://lu.ma/AI Meetup")
	assert.Contains(t, out, "Demo Night")
}

func TestPrintEventsSeparatesISOWeeks(t *testing.T) {
	r := testRenderer()
	events := []*store.Event{
		renderEvent("This Week", "2026-01-15T20:00:00Z", 10),
		renderEvent("Next Week", "2026-01-20T20:00:00Z", 10),
	}

	var buf strings.Builder
	r.PrintEvents(&buf, events, Options{Sort: "date"})

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Empty(t, lines[2])

	// Guest order interleaves weeks, so no separators there.
	buf.Reset()
	r.PrintEvents(&buf, events, Options{Sort: "guest"})
	assert.Len(t, strings.Split(strings.TrimRight(buf.String(), "\n"), "\n"), 3)
}

func TestPrintEventsDimsSeenAndBoldsMidweek(t *testing.T) {
	r := testRenderer()
	seen := renderEvent("Seen Thursday", "2026-01-15T20:00:00Z", 10)
	fresh := renderEvent("Fresh Tuesday", "2026-01-20T20:00:00Z", 10)

	var buf strings.Builder
	r.PrintEvents(&buf, []*store.Event{seen, fresh}, Options{
		Sort:    "date",
		ShowAll: true,
		Seen:    map[string]struct{}{seen.URL: {}},
		Color:   true,
	})
	out := buf.String()

	assert.Contains(t, out, Dim+"[10]")
	assert.Contains(t, out, Bold+"[10]")
}
