// Package queryengine filters, validates, and sorts cached events.
//
// The engine is a pure function over an in-memory event collection: it
// performs no I/O and never mutates its inputs, so it is safe to call
// concurrently from parallel tool dispatches.
package queryengine

import "fmt"

// Sort orders.
const (
	SortDate  = "date"
	SortGuest = "guest"
)

// Params is the full set of recognized query options. Nil pointer fields
// are unset. At most one of the window-selection modes (Days vs
// FromDate/ToDate vs Range), one of the title-filter modes (Search vs
// Regex vs Glob), and one of the location-filter modes (name fields vs
// coordinate search) may be used; violations are validation errors.
type Params struct {
	// Days is the window size in days starting from today. Days=1 means
	// today only. Mutually exclusive with FromDate/ToDate and Range.
	Days *int `json:"days,omitempty"`
	// FromDate is the inclusive start date in YYYYMMDD format.
	FromDate string `json:"from_date,omitempty"`
	// ToDate is the inclusive end date in YYYYMMDD format.
	ToDate string `json:"to_date,omitempty"`
	// Range is a predefined shorthand: today, tomorrow, week[+N],
	// weekday[+N], weekend[+N]. Mutually exclusive with Days and dates.
	Range string `json:"range,omitempty"`

	MinGuest *int `json:"min_guest,omitempty"`
	MaxGuest *int `json:"max_guest,omitempty"`

	// MinHour and MaxHour bound the event start hour (0-23) evaluated in
	// the reference timezone.
	MinHour *int `json:"min_time,omitempty"`
	MaxHour *int `json:"max_time,omitempty"`

	// Weekdays is a comma-separated weekday filter, e.g. "Sat,Sun".
	Weekdays string `json:"day,omitempty"`
	// Exclude is a comma-separated list of title keywords to drop.
	Exclude string `json:"exclude,omitempty"`

	Search string `json:"search,omitempty"`
	Regex  string `json:"regex,omitempty"`
	Glob   string `json:"glob,omitempty"`

	// Sort is "date" (default) or "guest".
	Sort string `json:"sort,omitempty"`

	// ShowAll disables seen-state suppression. Internal only: it is not
	// part of the tool schema exposed to the LLM.
	ShowAll bool `json:"-"`

	City         string `json:"city,omitempty"`
	Region       string `json:"region,omitempty"`
	Country      string `json:"country,omitempty"`
	LocationType string `json:"location_type,omitempty"`

	SearchLat         *float64 `json:"search_lat,omitempty"`
	SearchLon         *float64 `json:"search_lon,omitempty"`
	SearchRadiusMiles *float64 `json:"search_radius_miles,omitempty"`
}

// ValidationError reports bad or contradictory query parameters. It is
// always recoverable by the caller correcting its input.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string { return e.msg }

func newValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

// Int returns a pointer to v, for building Params literals.
func Int(v int) *int { return &v }

// Float returns a pointer to v, for building Params literals.
func Float(v float64) *float64 { return &v }
