package luma

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/hrygo/eventlens/plugin/ai"
	"github.com/hrygo/eventlens/plugin/geocode"
	"github.com/hrygo/eventlens/store"
)

// llmEnrichBatchSize bounds how many events one enrichment prompt covers.
const llmEnrichBatchSize = 20

var jsonArrayRe = regexp.MustCompile(`(?s)\[.*\]`)

// Geocoder is the location-resolution capability the enricher needs.
type Geocoder interface {
	Reverse(ctx context.Context, lat, lon float64) geocode.Location
	Forward(ctx context.Context, city, region, country string) geocode.Location
	Flush() error
}

// Enricher fills missing location fields on downloaded events. Pass 1
// geocodes events with partial location data; passes 2 and 3 ask the LLM
// to gap-fill what geocoding left open and to infer locations for events
// with no location data at all. A nil llm skips the LLM passes.
type Enricher struct {
	geocoder Geocoder
	llm      ai.LLMService
}

// NewEnricher creates an Enricher.
func NewEnricher(geocoder Geocoder, llm ai.LLMService) *Enricher {
	return &Enricher{geocoder: geocoder, llm: llm}
}

// EnrichEvents returns a copy of events with missing location fields
// filled where possible. Enrichment is best effort and never fails the
// refresh.
func (e *Enricher) EnrichEvents(ctx context.Context, events []*store.Event) []*store.Event {
	needed := 0
	for _, event := range events {
		if isEnrichCandidate(event) {
			needed++
		}
	}
	if needed == 0 {
		return events
	}
	slog.Info("enriching events with missing location data", "count", needed)

	result := make([]*store.Event, len(events))
	copy(result, events)

	geocoded := e.geocodePass(ctx, result)
	inferred := 0
	if e.llm != nil {
		inferred = e.llmPass(ctx, result)
	}

	slog.Info("location enrichment finished",
		"needed", needed,
		"geocoded", geocoded,
		"inferred", inferred,
		"unresolved", needed-geocoded-inferred)
	return result
}

func (e *Enricher) geocodePass(ctx context.Context, events []*store.Event) int {
	enriched := 0
	for i, event := range events {
		if !isEnrichCandidate(event) {
			continue
		}

		var loc geocode.Location
		switch {
		case event.HasCoordinates():
			loc = e.geocoder.Reverse(ctx, *event.Latitude, *event.Longitude)
		case event.City != nil || event.Region != nil || event.Country != nil:
			loc = e.geocoder.Forward(ctx,
				derefString(event.City), derefString(event.Region), derefString(event.Country))
		default:
			continue
		}

		if updated := applyLocation(event, loc); updated != event {
			events[i] = updated
			enriched++
		}
	}
	if err := e.geocoder.Flush(); err != nil {
		slog.Warn("could not save geocode cache", "error", err)
	}
	return enriched
}

// llmPass runs the gap-fill pass over events that still miss fields after
// geocoding, then the inference pass over events with no location at all.
func (e *Enricher) llmPass(ctx context.Context, events []*store.Event) int {
	var gapFill, zeroData []int
	for i, event := range events {
		if !isEnrichCandidate(event) {
			continue
		}
		if hasAnyLocation(event) {
			gapFill = append(gapFill, i)
		} else {
			zeroData = append(zeroData, i)
		}
	}

	enriched := e.llmFill(ctx, events, gapFill, "filling gaps left after geocoding")
	enriched += e.llmFill(ctx, events, zeroData, "inferring location from title and sources")
	return enriched
}

func (e *Enricher) llmFill(ctx context.Context, events []*store.Event, indices []int, description string) int {
	enriched := 0
	for start := 0; start < len(indices); start += llmEnrichBatchSize {
		batch := indices[start:min(start+llmEnrichBatchSize, len(indices))]
		slog.Info("llm enrichment batch", "pass", description, "events", len(batch))

		prompt := buildEnrichPrompt(events, batch)
		text, err := e.llm.Chat(ctx, []ai.Message{ai.UserMessage(prompt)})
		if err != nil {
			slog.Warn("llm enrichment failed", "error", err)
			continue
		}

		inBatch := make(map[int]struct{}, len(batch))
		for _, i := range batch {
			inBatch[i] = struct{}{}
		}
		for _, item := range parseEnrichResponse(text) {
			if item.Index == nil {
				continue
			}
			i := *item.Index
			if _, ok := inBatch[i]; !ok {
				continue
			}
			loc := geocode.Location{
				Latitude:  item.Latitude,
				Longitude: item.Longitude,
				City:      item.City,
				Region:    item.Region,
				Country:   item.Country,
			}
			if updated := applyLocation(events[i], loc); updated != events[i] {
				events[i] = updated
				enriched++
			}
		}
	}
	return enriched
}

type enrichResponseItem struct {
	Index     *int     `json:"index"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	City      *string  `json:"city"`
	Region    *string  `json:"region"`
	Country   *string  `json:"country"`
}

func parseEnrichResponse(text string) []enrichResponseItem {
	var items []enrichResponseItem
	if err := json.Unmarshal([]byte(text), &items); err == nil {
		return items
	}
	if m := jsonArrayRe.FindString(text); m != "" {
		if err := json.Unmarshal([]byte(m), &items); err == nil {
			return items
		}
	}
	return nil
}

func buildEnrichPrompt(events []*store.Event, indices []int) string {
	var b strings.Builder
	b.WriteString("You are given a list of events with missing location fields.\n")
	b.WriteString("For each event, fill in the missing fields based on the event title, sources, and any existing location fields.\n\n")
	b.WriteString("Rules:\n")
	b.WriteString("- Use full proper names, not abbreviations. Examples: \"San Francisco\" not \"SF\", \"California\" not \"CA\", \"United States\" not \"US\".\n")
	b.WriteString("- Return null for any field you cannot confidently determine.\n")
	b.WriteString("- Only fill fields listed as missing for each event.\n\n")
	b.WriteString("Source hints (calendar/category names that imply a city):\n")
	b.WriteString("- \"sf\", \"genai-sf\", \"frontiertower\", \"sf-hardware-meetup\", \"sfaiengineers\" imply San Francisco, California, United States\n\n")
	b.WriteString("Respond with a JSON array. Each element has an \"index\" matching the event index and values for the missing fields.\n")
	b.WriteString(`Example response: [{"index": 0, "city": "San Francisco", "region": "California", "country": "United States", "latitude": null, "longitude": null}]`)
	b.WriteString("\n\nEvents:\n")

	for _, i := range indices {
		event := events[i]
		fmt.Fprintf(&b, "- Index %d: title=%q, sources=%v\n", i, event.Title, event.Sources)
		if existing := existingFields(event); len(existing) > 0 {
			fmt.Fprintf(&b, "  Existing: %s\n", strings.Join(existing, ", "))
		}
		fmt.Fprintf(&b, "  Missing: %s\n", strings.Join(missingFields(event), ", "))
	}
	return b.String()
}

// isEnrichCandidate excludes online events and events that already carry
// a full location.
func isEnrichCandidate(event *store.Event) bool {
	if event.LocationType != nil && strings.EqualFold(*event.LocationType, "online") {
		return false
	}
	return len(missingFields(event)) > 0
}

func missingFields(event *store.Event) []string {
	var missing []string
	if !event.HasCoordinates() {
		missing = append(missing, "latitude", "longitude")
	}
	if event.City == nil {
		missing = append(missing, "city")
	}
	if event.Region == nil {
		missing = append(missing, "region")
	}
	if event.Country == nil {
		missing = append(missing, "country")
	}
	return missing
}

func existingFields(event *store.Event) []string {
	var existing []string
	if event.Latitude != nil {
		existing = append(existing, fmt.Sprintf("latitude=%v", *event.Latitude))
	}
	if event.Longitude != nil {
		existing = append(existing, fmt.Sprintf("longitude=%v", *event.Longitude))
	}
	if event.City != nil {
		existing = append(existing, "city="+*event.City)
	}
	if event.Region != nil {
		existing = append(existing, "region="+*event.Region)
	}
	if event.Country != nil {
		existing = append(existing, "country="+*event.Country)
	}
	return existing
}

func hasAnyLocation(event *store.Event) bool {
	return event.HasCoordinates() ||
		event.City != nil || event.Region != nil || event.Country != nil
}

// applyLocation fills the event's nil location fields from loc. The input
// event is never mutated; the same pointer comes back when nothing
// changed.
func applyLocation(event *store.Event, loc geocode.Location) *store.Event {
	changed := false
	updated := event.Clone()
	if updated.Latitude == nil && loc.Latitude != nil {
		updated.Latitude = loc.Latitude
		changed = true
	}
	if updated.Longitude == nil && loc.Longitude != nil {
		updated.Longitude = loc.Longitude
		changed = true
	}
	if updated.City == nil && loc.City != nil {
		updated.City = loc.City
		changed = true
	}
	if updated.Region == nil && loc.Region != nil {
		updated.Region = loc.Region
		changed = true
	}
	if updated.Country == nil && loc.Country != nil {
		updated.Country = loc.Country
		changed = true
	}
	if !changed {
		return event
	}
	return updated
}

func derefString(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
