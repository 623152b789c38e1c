package store

import "time"

// ParseStartAt parses an ISO-8601 instant as stored on events and snapshots
// and normalizes it to UTC.
func ParseStartAt(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
