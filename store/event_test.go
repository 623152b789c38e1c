package store

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateEventID(t *testing.T) {
	id := GenerateEventID("https://lu.ma/ai-meetup")
	assert.Len(t, id, EventIDLength)
	assert.Equal(t, id, GenerateEventID("https://lu.ma/ai-meetup"))
	assert.NotEqual(t, id, GenerateEventID("https://lu.ma/ai-meetup-2"))
}

func TestEventJSONRoundTrip(t *testing.T) {
	city := "San Francisco"
	lat, lon := 37.7749, -122.4194
	handle := "in/host"
	event := &Event{
		ID:         GenerateEventID("https://lu.ma/ai-meetup"),
		Title:      "AI Meetup",
		URL:        "https://lu.ma/ai-meetup",
		StartAt:    "2026-01-15T20:00:00Z",
		GuestCount: 250,
		Sources:    []string{"category:ai", "calendar:genai-sf"},
		Latitude:   &lat,
		Longitude:  &lon,
		City:       &city,
		Hosts:      []Host{{Name: "Host", LinkedInHandle: &handle}},
	}

	data, err := json.Marshal(event)
	require.NoError(t, err)

	var decoded Event
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, event.ID, decoded.ID)
	assert.Equal(t, event.Sources, decoded.Sources)
	require.NotNil(t, decoded.City)
	assert.Equal(t, city, *decoded.City)
	require.Len(t, decoded.Hosts, 1)
	require.NotNil(t, decoded.Hosts[0].LinkedInHandle)
	assert.Equal(t, handle, *decoded.Hosts[0].LinkedInHandle)
	// Unset location fields stay nil through the round trip.
	assert.Nil(t, decoded.Region)
	assert.Nil(t, decoded.LocationType)
}

func TestEventCloneIsDeep(t *testing.T) {
	city := "San Francisco"
	handle := "in/host"
	event := &Event{
		ID:      GenerateEventID("https://lu.ma/ai-meetup"),
		Title:   "AI Meetup",
		URL:     "https://lu.ma/ai-meetup",
		Sources: []string{"category:ai"},
		City:    &city,
		Hosts:   []Host{{Name: "Host", LinkedInHandle: &handle}},
	}

	clone := event.Clone()
	*clone.City = "Oakland"
	clone.Sources[0] = "category:crypto"
	*clone.Hosts[0].LinkedInHandle = "in/other"

	assert.Equal(t, "San Francisco", *event.City)
	assert.Equal(t, "category:ai", event.Sources[0])
	assert.Equal(t, "in/host", *event.Hosts[0].LinkedInHandle)
}

func TestHasCoordinates(t *testing.T) {
	lat, lon := 37.7749, -122.4194
	assert.False(t, (&Event{Latitude: &lat}).HasCoordinates())
	assert.False(t, (&Event{Longitude: &lon}).HasCoordinates())
	assert.True(t, (&Event{Latitude: &lat, Longitude: &lon}).HasCoordinates())
}
