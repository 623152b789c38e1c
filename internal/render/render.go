// Package render formats query results for the terminal.
package render

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/hrygo/eventlens/store"
)

// ANSI sequences used for event listings.
const (
	Bold  = "\033[1m"
	Dim   = "\033[2m"
	Reset = "\033[0m"
)

// midweekHighlight marks the weekdays rendered bold in listings.
var midweekHighlight = map[time.Weekday]struct{}{
	time.Tuesday:  {},
	time.Thursday: {},
}

// Options controls event listing output.
type Options struct {
	// Sort is echoed in the header and controls week separators.
	Sort string
	// ShowAll dims seen events instead of hiding them.
	ShowAll bool
	// Seen is the set of reviewed URLs, used with ShowAll.
	Seen map[string]struct{}
	// Color enables ANSI styling.
	Color bool
}

// Renderer prints events in the reference timezone.
type Renderer struct {
	loc *time.Location
	now func() time.Time
}

// New creates a Renderer.
func New(loc *time.Location) *Renderer {
	return &Renderer{loc: loc, now: time.Now}
}

// NewAt creates a Renderer with a fixed clock, for tests.
func NewAt(loc *time.Location, now func() time.Time) *Renderer {
	return &Renderer{loc: loc, now: now}
}

// FormatEventTime renders an event start like "Thu Jan 15, 6PM", with
// "Today" replacing the weekday when the event is on the current day.
func (r *Renderer) FormatEventTime(startAt string) string {
	at, err := store.ParseStartAt(startAt)
	if err != nil {
		return startAt
	}
	local := at.In(r.loc)

	timePart := local.Format("3PM")
	if local.Minute() != 0 {
		timePart = local.Format("3:04PM")
	}

	weekday := local.Format("Mon")
	now := r.now().In(r.loc)
	if local.Year() == now.Year() && local.YearDay() == now.YearDay() {
		weekday = "Today"
	}
	return fmt.Sprintf("%s %s %d, %s", weekday, local.Format("Jan"), local.Day(), timePart)
}

// PrintEvents writes the event listing: a count header, one aligned row
// per event, and a blank line between ISO weeks when sorted by date.
func (r *Renderer) PrintEvents(w io.Writer, events []*store.Event, opts Options) {
	fmt.Fprintf(w, "Top %d events (sorted by %s):\n", len(events), opts.Sort)

	scoreWidth := 3
	dateWidth := 0
	for _, event := range events {
		if n := len(fmt.Sprintf("[%d]", event.GuestCount)); n > scoreWidth {
			scoreWidth = n
		}
		if n := len(r.FormatEventTime(event.StartAt)); n > dateWidth {
			dateWidth = n
		}
	}

	var prevWeek string
	for _, event := range events {
		at, err := store.ParseStartAt(event.StartAt)
		if err != nil {
			continue
		}
		local := at.In(r.loc)

		if opts.Sort != "guest" {
			year, week := local.ISOWeek()
			currentWeek := fmt.Sprintf("%d-%02d", year, week)
			if prevWeek != "" && currentWeek != prevWeek {
				fmt.Fprintln(w)
			}
			prevWeek = currentWeek
		}

		score := pad(fmt.Sprintf("[%d]", event.GuestCount), scoreWidth)
		date := pad(r.FormatEventTime(event.StartAt), dateWidth)
		line := fmt.Sprintf("%s %s | %s | %s", score, date, event.Title, event.URL)

		if opts.Color {
			_, seen := opts.Seen[event.URL]
			if opts.ShowAll && seen {
				line = Dim + line + Reset
			} else if _, ok := midweekHighlight[local.Weekday()]; ok {
				line = Bold + line + Reset
			}
		}
		fmt.Fprintln(w, line)
	}
}

func pad(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}
