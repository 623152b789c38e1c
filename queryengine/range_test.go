package queryengine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func midnight(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, mustLA())
}

func TestResolveRange(t *testing.T) {
	// Thursday.
	today := midnight(2026, time.January, 15)

	tests := []struct {
		value string
		from  string
		to    string
	}{
		{"today", "20260115", "20260115"},
		{"tomorrow", "20260116", "20260116"},
		// Current week starts today, not on the Monday already behind us.
		{"week", "20260115", "20260118"},
		{"week+1", "20260119", "20260125"},
		{"week+2", "20260126", "20260201"},
		{"weekday", "20260115", "20260116"},
		{"weekday+1", "20260119", "20260123"},
		{"weekend", "20260117", "20260118"},
		{"weekend+1", "20260124", "20260125"},
		{"WEEK", "20260115", "20260118"},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			from, to, err := resolveRange(tt.value, today)
			require.NoError(t, err)
			assert.Equal(t, tt.from, from)
			assert.Equal(t, tt.to, to)
		})
	}
}

func TestResolveRangeWeekdayRollsOverOnWeekend(t *testing.T) {
	// Saturday: the work week is over, so "weekday" means next week.
	saturday := midnight(2026, time.January, 17)

	from, to, err := resolveRange("weekday", saturday)
	require.NoError(t, err)
	assert.Equal(t, "20260119", from)
	assert.Equal(t, "20260123", to)
}

func TestResolveRangeWeekendClampsToToday(t *testing.T) {
	// Sunday: only the rest of the weekend remains.
	sunday := midnight(2026, time.January, 18)

	from, to, err := resolveRange("weekend", sunday)
	require.NoError(t, err)
	assert.Equal(t, "20260118", from)
	assert.Equal(t, "20260118", to)
}

func TestResolveRangeOnMonday(t *testing.T) {
	monday := midnight(2026, time.January, 12)

	from, to, err := resolveRange("week", monday)
	require.NoError(t, err)
	assert.Equal(t, "20260112", from)
	assert.Equal(t, "20260118", to)
}

func TestResolveRangeErrors(t *testing.T) {
	today := midnight(2026, time.January, 15)

	for _, value := range []string{"fortnight", "week+x", "week+-1", "weekday+"} {
		t.Run(value, func(t *testing.T) {
			_, _, err := resolveRange(value, today)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
		})
	}
}
