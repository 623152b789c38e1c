package store

import (
	"crypto/sha256"
	"encoding/hex"
)

// EventIDLength is the number of hex characters kept from the URL hash.
const EventIDLength = 8

// Host is an event organizer as reported by the source platform.
type Host struct {
	Name           string  `json:"name"`
	LinkedInHandle *string `json:"linkedin_handle"`
	YouTubeHandle  *string `json:"youtube_handle"`
}

// Event is a single aggregated event listing. Events are immutable once
// constructed; enrichment produces a new record via Clone.
type Event struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	URL        string   `json:"url"`
	StartAt    string   `json:"start_at"`
	GuestCount int      `json:"guest_count"`
	Sources    []string `json:"sources"`

	LocationType *string  `json:"location_type"`
	Latitude     *float64 `json:"latitude"`
	Longitude    *float64 `json:"longitude"`
	City         *string  `json:"city"`
	Region       *string  `json:"region"`
	Country      *string  `json:"country"`

	Hosts []Host `json:"hosts,omitempty"`
}

// GenerateEventID derives the stable short event ID from the canonical URL.
// The same URL always yields the same ID.
func GenerateEventID(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])[:EventIDLength]
}

// Clone returns a deep copy of the event.
func (e *Event) Clone() *Event {
	c := *e
	c.Sources = append([]string(nil), e.Sources...)
	c.LocationType = clonePtr(e.LocationType)
	c.Latitude = clonePtr(e.Latitude)
	c.Longitude = clonePtr(e.Longitude)
	c.City = clonePtr(e.City)
	c.Region = clonePtr(e.Region)
	c.Country = clonePtr(e.Country)
	if e.Hosts != nil {
		c.Hosts = make([]Host, len(e.Hosts))
		for i, h := range e.Hosts {
			c.Hosts[i] = Host{
				Name:           h.Name,
				LinkedInHandle: clonePtr(h.LinkedInHandle),
				YouTubeHandle:  clonePtr(h.YouTubeHandle),
			}
		}
	}
	return &c
}

// HasCoordinates reports whether both latitude and longitude are set.
func (e *Event) HasCoordinates() bool {
	return e.Latitude != nil && e.Longitude != nil
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
