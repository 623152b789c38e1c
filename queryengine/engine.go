package queryengine

import (
	"math"
	"path"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/hrygo/eventlens/internal/profile"
	"github.com/hrygo/eventlens/store"
)

// earthRadiusMiles is the mean Earth radius used by the haversine filter.
const earthRadiusMiles = 3958.8

// Result is the outcome of one query. Total counts the returned events
// after seen suppression, before any display truncation by the caller.
// WindowStart and WindowEnd are the resolved half-open window bounds in
// the reference timezone.
type Result struct {
	Events      []*store.Event
	Total       int
	WindowStart time.Time
	WindowEnd   time.Time
}

// Engine evaluates queries against an in-memory event collection. The
// reference location fixes what "today", weekday names, and hour filters
// mean; the clock is injectable so tests run against a fixed instant.
type Engine struct {
	loc *time.Location
	now func() time.Time
}

// NewEngine creates an engine anchored to the given reference timezone.
func NewEngine(loc *time.Location) *Engine {
	return &Engine{loc: loc, now: time.Now}
}

// NewEngineAt creates an engine with a fixed clock, for tests.
func NewEngineAt(loc *time.Location, now func() time.Time) *Engine {
	return &Engine{loc: loc, now: now}
}

// Query validates params, filters and sorts events, and suppresses seen
// listings. The input slice is never mutated. All errors are of type
// *ValidationError.
func (e *Engine) Query(events []*store.Event, params Params, seen map[string]struct{}) (*Result, error) {
	if err := e.validate(params); err != nil {
		return nil, err
	}

	from, to, err := e.resolveWindow(params)
	if err != nil {
		return nil, err
	}

	matched, err := e.filter(events, params, from, to)
	if err != nil {
		return nil, err
	}

	e.sortEvents(matched, params.Sort)

	out := make([]*store.Event, 0, len(matched))
	for _, m := range matched {
		if !params.ShowAll && seen != nil {
			if _, ok := seen[m.event.URL]; ok {
				continue
			}
		}
		out = append(out, m.event)
	}
	return &Result{Events: out, Total: len(out), WindowStart: from, WindowEnd: to}, nil
}

func (e *Engine) validate(params Params) error {
	if params.MinHour != nil && (*params.MinHour < 0 || *params.MinHour > 23) {
		return newValidationError("--min-time must be between 0 and 23")
	}
	if params.MaxHour != nil && (*params.MaxHour < 0 || *params.MaxHour > 23) {
		return newValidationError("--max-time must be between 0 and 23")
	}

	titleFilters := 0
	for _, f := range []string{params.Search, params.Regex, params.Glob} {
		if f != "" {
			titleFilters++
		}
	}
	if titleFilters > 1 {
		return newValidationError("--search, --regex, and --glob are mutually exclusive")
	}

	if params.Weekdays != "" {
		if _, err := parseWeekdays(params.Weekdays); err != nil {
			return err
		}
	}

	if params.Range != "" && (params.Days != nil || params.FromDate != "" || params.ToDate != "") {
		return newValidationError("--range cannot be used with --days, --from, or --to")
	}
	if params.Days != nil && (params.FromDate != "" || params.ToDate != "") {
		return newValidationError("--days cannot be combined with --from or --to")
	}

	hasCoords := params.SearchLat != nil || params.SearchLon != nil
	if params.City != "" && hasCoords {
		return newValidationError("--city cannot be combined with --lat/--lon")
	}
	if (params.SearchLat == nil) != (params.SearchLon == nil) {
		return newValidationError("--lat and --lon must be provided together")
	}
	if params.SearchRadiusMiles != nil && params.SearchLat == nil {
		return newValidationError("--radius requires --lat and --lon")
	}

	if params.Regex != "" {
		if _, err := regexp.Compile("(?i)" + params.Regex); err != nil {
			return newValidationError("Invalid regex %q: %v", params.Regex, err)
		}
	}
	if params.Glob != "" {
		if _, err := path.Match(strings.ToLower(params.Glob), ""); err != nil {
			return newValidationError("Invalid glob pattern %q", params.Glob)
		}
	}
	return nil
}

// resolveWindow computes the half-open [from, to) window in the reference
// timezone. The end is the midnight after the last included day, so the
// to date is inclusive.
func (e *Engine) resolveWindow(params Params) (time.Time, time.Time, error) {
	today := e.midnightToday()

	fromDate, toDate := params.FromDate, params.ToDate
	if params.Range != "" {
		var err error
		fromDate, toDate, err = resolveRange(params.Range, today)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	}

	from := today
	if fromDate != "" {
		d, err := e.parseDate(fromDate)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		from = d
	}

	var to time.Time
	switch {
	case toDate != "":
		d, err := e.parseDate(toDate)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		to = d.AddDate(0, 0, 1)
	case params.Days != nil:
		to = today.AddDate(0, 0, *params.Days)
	default:
		to = from.AddDate(0, 0, profile.DefaultWindowDays)
	}

	if !to.After(from) {
		return time.Time{}, time.Time{}, newValidationError("--to must be on or after --from")
	}
	return from, to, nil
}

func (e *Engine) midnightToday() time.Time {
	now := e.now().In(e.loc)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, e.loc)
}

func (e *Engine) parseDate(value string) (time.Time, error) {
	d, err := time.ParseInLocation(dateLayout, value, e.loc)
	if err != nil {
		return time.Time{}, newValidationError("Invalid date %q. Use YYYYMMDD, e.g. 20260115.", value)
	}
	return d, nil
}

// matchedEvent pairs an event with its parsed start instant so the sort
// does not reparse timestamps.
type matchedEvent struct {
	event *store.Event
	start time.Time
}

func (e *Engine) filter(events []*store.Event, params Params, from, to time.Time) ([]matchedEvent, error) {
	var titleRe *regexp.Regexp
	if params.Regex != "" {
		titleRe = regexp.MustCompile("(?i)" + params.Regex)
	}

	var weekdays map[time.Weekday]struct{}
	if params.Weekdays != "" {
		weekdays, _ = parseWeekdays(params.Weekdays)
	}

	var excludes []string
	for _, kw := range strings.Split(params.Exclude, ",") {
		if kw = strings.TrimSpace(kw); kw != "" {
			excludes = append(excludes, strings.ToLower(kw))
		}
	}

	radius := profile.DefaultRadiusMiles
	if params.SearchRadiusMiles != nil {
		radius = *params.SearchRadiusMiles
	}

	var matched []matchedEvent
	for _, event := range events {
		start, err := store.ParseStartAt(event.StartAt)
		if err != nil {
			continue
		}
		local := start.In(e.loc)

		if local.Before(from) || !local.Before(to) {
			continue
		}
		if params.MinGuest != nil && event.GuestCount < *params.MinGuest {
			continue
		}
		if params.MaxGuest != nil && event.GuestCount > *params.MaxGuest {
			continue
		}
		if params.MinHour != nil && local.Hour() < *params.MinHour {
			continue
		}
		if params.MaxHour != nil && local.Hour() > *params.MaxHour {
			continue
		}
		if weekdays != nil {
			if _, ok := weekdays[local.Weekday()]; !ok {
				continue
			}
		}
		if excludedTitle(event.Title, excludes) {
			continue
		}

		lowerTitle := strings.ToLower(event.Title)
		if params.Search != "" && !strings.Contains(lowerTitle, strings.ToLower(params.Search)) {
			continue
		}
		if titleRe != nil && !titleRe.MatchString(event.Title) {
			continue
		}
		if params.Glob != "" {
			if ok, _ := path.Match(strings.ToLower(params.Glob), lowerTitle); !ok {
				continue
			}
		}

		if params.City != "" && !equalFold(event.City, params.City) {
			continue
		}
		if params.Region != "" && !equalFold(event.Region, params.Region) {
			continue
		}
		if params.Country != "" && !equalFold(event.Country, params.Country) {
			continue
		}
		if params.LocationType != "" && !equalFold(event.LocationType, params.LocationType) {
			continue
		}

		if params.SearchLat != nil {
			if !event.HasCoordinates() {
				continue
			}
			d := haversineMiles(*params.SearchLat, *params.SearchLon, *event.Latitude, *event.Longitude)
			if d > radius {
				continue
			}
		}

		matched = append(matched, matchedEvent{event: event, start: local})
	}
	return matched, nil
}

// sortEvents orders the matches. Date order groups by calendar day in the
// reference timezone with the most popular events first within each day;
// guest order ranks by popularity with earlier events breaking ties. Both
// fall back to case-insensitive title order so results are deterministic.
func (e *Engine) sortEvents(matched []matchedEvent, sortOrder string) {
	switch sortOrder {
	case SortGuest:
		slices.SortStableFunc(matched, func(a, b matchedEvent) int {
			if c := b.event.GuestCount - a.event.GuestCount; c != 0 {
				return c
			}
			if c := a.start.Compare(b.start); c != 0 {
				return c
			}
			return strings.Compare(strings.ToLower(a.event.Title), strings.ToLower(b.event.Title))
		})
	default:
		slices.SortStableFunc(matched, func(a, b matchedEvent) int {
			if c := strings.Compare(a.start.Format(dateLayout), b.start.Format(dateLayout)); c != 0 {
				return c
			}
			if c := b.event.GuestCount - a.event.GuestCount; c != 0 {
				return c
			}
			return strings.Compare(strings.ToLower(a.event.Title), strings.ToLower(b.event.Title))
		})
	}
}

var weekdayNames = map[string]time.Weekday{
	"mon": time.Monday,
	"tue": time.Tuesday,
	"wed": time.Wednesday,
	"thu": time.Thursday,
	"fri": time.Friday,
	"sat": time.Saturday,
	"sun": time.Sunday,
}

func parseWeekdays(value string) (map[time.Weekday]struct{}, error) {
	days := map[time.Weekday]struct{}{}
	for _, token := range strings.Split(value, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		// Full names match by their three-letter prefix: "Saturday" is Sat.
		key := strings.ToLower(token)
		if len(key) > 3 {
			key = key[:3]
		}
		wd, ok := weekdayNames[key]
		if !ok {
			return nil, newValidationError("Invalid weekday %q. Use three-letter names like Mon,Sat.", token)
		}
		days[wd] = struct{}{}
	}
	if len(days) == 0 {
		return nil, newValidationError("--day requires at least one weekday name")
	}
	return days, nil
}

func excludedTitle(title string, excludes []string) bool {
	if len(excludes) == 0 {
		return false
	}
	lower := strings.ToLower(title)
	for _, kw := range excludes {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func equalFold(field *string, want string) bool {
	return field != nil && strings.EqualFold(*field, want)
}

// haversineMiles is the great-circle distance between two coordinates.
func haversineMiles(lat1, lon1, lat2, lon2 float64) float64 {
	const deg = math.Pi / 180
	dLat := (lat2 - lat1) * deg
	dLon := (lon2 - lon1) * deg
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*deg)*math.Cos(lat2*deg)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusMiles * math.Asin(math.Sqrt(a))
}
