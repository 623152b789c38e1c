package queryengine

import (
	"strconv"
	"strings"
	"time"
)

const dateLayout = "20060102"

// resolveRange expands a predefined range shorthand into inclusive
// from/to dates (YYYYMMDD) relative to today in the reference timezone.
//
// Supported forms: today, tomorrow, week[+N], weekday[+N], weekend[+N].
// For the current week the window never starts in the past: the from date
// is clamped to today, and a weekday/weekend window that has already fully
// passed rolls over to the next week.
func resolveRange(value string, today time.Time) (string, string, error) {
	name, offset, err := splitRange(value)
	if err != nil {
		return "", "", err
	}

	switch name {
	case "today":
		return today.Format(dateLayout), today.Format(dateLayout), nil
	case "tomorrow":
		d := today.AddDate(0, 0, 1)
		return d.Format(dateLayout), d.Format(dateLayout), nil
	case "week":
		monday := startOfWeek(today).AddDate(0, 0, 7*offset)
		from := monday
		if offset == 0 && today.After(monday) {
			from = today
		}
		return from.Format(dateLayout), monday.AddDate(0, 0, 6).Format(dateLayout), nil
	case "weekday":
		monday := startOfWeek(today).AddDate(0, 0, 7*offset)
		friday := monday.AddDate(0, 0, 4)
		if offset == 0 && today.After(friday) {
			monday = monday.AddDate(0, 0, 7)
			friday = friday.AddDate(0, 0, 7)
		}
		from := monday
		if offset == 0 && today.After(monday) && !today.After(friday) {
			from = today
		}
		return from.Format(dateLayout), friday.Format(dateLayout), nil
	case "weekend":
		saturday := startOfWeek(today).AddDate(0, 0, 7*offset+5)
		sunday := saturday.AddDate(0, 0, 1)
		from := saturday
		if offset == 0 && today.After(saturday) {
			from = today
		}
		return from.Format(dateLayout), sunday.Format(dateLayout), nil
	default:
		return "", "", newValidationError(
			"Invalid --range %q. Use today, tomorrow, week[+N], weekday[+N], or weekend[+N].", value)
	}
}

// splitRange separates "week+2" into ("week", 2).
func splitRange(value string) (string, int, error) {
	name := strings.ToLower(strings.TrimSpace(value))
	offset := 0
	if idx := strings.Index(name, "+"); idx >= 0 {
		n, err := strconv.Atoi(name[idx+1:])
		if err != nil || n < 0 {
			return "", 0, newValidationError(
				"Invalid --range offset in %q. Use a non-negative integer, e.g. week+1.", value)
		}
		offset = n
		name = name[:idx]
	}
	return name, offset, nil
}

// startOfWeek returns the Monday of the week containing d.
func startOfWeek(d time.Time) time.Time {
	wd := int(d.Weekday())
	// time.Weekday counts Sunday as 0; shift so Monday is the first day.
	wd = (wd + 6) % 7
	return d.AddDate(0, 0, -wd)
}
