package luma

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/hrygo/eventlens/store"
)

// Default discovery coordinates (San Jose) used by the category endpoint.
const (
	DiscoverLat = 37.33939
	DiscoverLon = -121.89496
)

// DefaultCategoryURLs are the discovery pages fetched on every refresh.
var DefaultCategoryURLs = []string{
	"https://luma.com/ai",
	"https://luma.com/tech",
	"https://luma.com/sf",
}

// Calendar is one curated calendar source. A known CalendarAPIID skips
// the page-scrape resolution step.
type Calendar struct {
	URL           string
	CalendarAPIID string
}

// DefaultCalendars are the curated calendars fetched on every refresh.
var DefaultCalendars = []Calendar{
	{URL: "https://luma.com/genai-sf", CalendarAPIID: "cal-JTdFQadEz0AOxyV"},
	{URL: "https://luma.com/frontiertower", CalendarAPIID: "cal-Sl7q1nHTRXQzjP2"},
	{URL: "https://luma.com/sf-hardware-meetup", CalendarAPIID: "cal-tFAzNGOZ9xn6kT2"},
	{URL: "https://luma.com/deepmind", CalendarAPIID: "cal-7Q5A70Bz5Idxopu"},
	{URL: "https://luma.com/genai-collective", CalendarAPIID: "cal-E74MDlDKBaeAwXK"},
	{URL: "https://luma.com/sfaiengineers", CalendarAPIID: "cal-EmYs2kgt1D9Gb27"},
	{URL: "https://luma.com/datadoghq", CalendarAPIID: "cal-58UTRXnfpeEA6ii"},
}

// eventRecord is one raw listing before deduplication.
type eventRecord struct {
	Title      string
	URL        string
	StartAt    string
	GuestCount int
	Source     string
}

// pageResponse is one page of either paginated endpoint.
type pageResponse struct {
	Entries    []pageEntry `json:"entries"`
	HasMore    bool        `json:"has_more"`
	NextCursor string      `json:"next_cursor"`
}

type pageEntry struct {
	Event struct {
		Name    string `json:"name"`
		URL     string `json:"url"`
		StartAt string `json:"start_at"`
	} `json:"event"`
	GuestCount int `json:"guest_count"`
}

var (
	nextDataRe      = regexp.MustCompile(`(?s)<script id="__NEXT_DATA__" type="application/json">(.*?)</script>`)
	calendarAPIIDRe = regexp.MustCompile(`"calendar_api_id"\s*:\s*"(cal-[^"]+)"`)
)

// Downloader fetches events from every configured source.
type Downloader struct {
	client     *Client
	categories []string
	calendars  []Calendar
}

// NewDownloader creates a Downloader over the default sources.
func NewDownloader(client *Client) *Downloader {
	return &Downloader{
		client:     client,
		categories: DefaultCategoryURLs,
		calendars:  DefaultCalendars,
	}
}

// DownloadEvents fetches all sources, keeps events starting inside
// [start, end), and returns the deduplicated result.
func (d *Downloader) DownloadEvents(ctx context.Context, start, end time.Time) ([]*store.Event, error) {
	var records []eventRecord

	for _, categoryURL := range d.categories {
		slug, err := extractSlug(categoryURL)
		if err != nil {
			return nil, err
		}
		slog.Info("fetching category events", "slug", slug)
		page, err := d.fetchCategoryEvents(ctx, slug, start, end)
		if err != nil {
			return nil, errors.Wrapf(err, "fetch category %s", slug)
		}
		records = append(records, page...)
	}

	for _, cal := range d.calendars {
		slug, err := extractSlug(cal.URL)
		if err != nil {
			return nil, err
		}

		calendarID := cal.CalendarAPIID
		if calendarID == "" {
			slog.Info("resolving source type", "slug", slug)
			calendarID, err = d.resolveCalendarID(ctx, slug)
			if err != nil {
				return nil, errors.Wrapf(err, "resolve calendar %s", slug)
			}
		}

		var page []eventRecord
		if calendarID != "" {
			slog.Info("fetching calendar events", "slug", slug, "calendar_id", calendarID)
			page, err = d.fetchCalendarEvents(ctx, slug, calendarID, start, end)
		} else {
			slog.Info("fetching discover events via slug fallback", "slug", slug)
			page, err = d.fetchCategoryEvents(ctx, slug, start, end)
		}
		if err != nil {
			return nil, errors.Wrapf(err, "fetch calendar %s", slug)
		}
		records = append(records, page...)
	}

	return dedupeByURL(records)
}

func (d *Downloader) fetchCategoryEvents(ctx context.Context, slug string, start, end time.Time) ([]eventRecord, error) {
	webURL := d.client.webBase + "/" + slug
	params := url.Values{
		"latitude":         {strconv.FormatFloat(DiscoverLat, 'f', -1, 64)},
		"longitude":        {strconv.FormatFloat(DiscoverLon, 'f', -1, 64)},
		"pagination_limit": {paginationLimit},
		"slug":             {slug},
	}
	return d.fetchPaginated(ctx,
		d.client.apiBase+"/discover/get-paginated-events", params, webURL,
		"category:"+slug, start, end)
}

func (d *Downloader) fetchCalendarEvents(ctx context.Context, slug, calendarID string, start, end time.Time) ([]eventRecord, error) {
	webURL := d.client.webBase + "/" + slug
	params := url.Values{
		"calendar_api_id":  {calendarID},
		"pagination_limit": {paginationLimit},
		"period":           {"future"},
	}
	return d.fetchPaginated(ctx,
		d.client.apiBase+"/calendar/get-items", params, webURL,
		"calendar:"+slug, start, end)
}

// fetchPaginated walks a cursor-paginated endpoint. A repeated cursor
// stops the walk so a misbehaving endpoint cannot loop forever.
func (d *Downloader) fetchPaginated(ctx context.Context, endpoint string, params url.Values, webURL, source string, start, end time.Time) ([]eventRecord, error) {
	var results []eventRecord
	seenCursors := map[string]struct{}{}
	cursor := ""

	for {
		query := url.Values{}
		for k, vs := range params {
			query[k] = vs
		}
		if cursor != "" {
			query.Set("pagination_cursor", cursor)
		}

		var page pageResponse
		if err := d.client.getJSON(ctx, endpoint+"?"+query.Encode(), webURL, &page); err != nil {
			return nil, err
		}
		if len(page.Entries) == 0 {
			break
		}

		for _, entry := range page.Entries {
			record, ok := recordFromEntry(entry, source, d.client.webBase)
			if !ok {
				continue
			}
			at, err := store.ParseStartAt(record.StartAt)
			if err != nil {
				continue
			}
			if !at.Before(start) && at.Before(end) {
				results = append(results, record)
			}
		}

		if !page.HasMore || page.NextCursor == "" {
			break
		}
		if _, repeated := seenCursors[page.NextCursor]; repeated {
			break
		}
		seenCursors[page.NextCursor] = struct{}{}
		cursor = page.NextCursor
	}
	return results, nil
}

// resolveCalendarID scrapes a calendar page for its API ID. An empty
// return means the slug is a discovery page, not a calendar.
func (d *Downloader) resolveCalendarID(ctx context.Context, slug string) (string, error) {
	html, err := d.client.getHTML(ctx, d.client.webBase+"/"+slug)
	if err != nil {
		return "", err
	}

	if m := nextDataRe.FindStringSubmatch(html); m != nil {
		var nextData struct {
			Props struct {
				PageProps struct {
					InitialData struct {
						Data struct {
							Calendar *struct {
								APIID string `json:"api_id"`
							} `json:"calendar"`
						} `json:"data"`
					} `json:"initialData"`
				} `json:"pageProps"`
			} `json:"props"`
		}
		if err := json.Unmarshal([]byte(m[1]), &nextData); err == nil {
			cal := nextData.Props.PageProps.InitialData.Data.Calendar
			if cal != nil && strings.HasPrefix(cal.APIID, "cal-") {
				return cal.APIID, nil
			}
		}
		return "", nil
	}

	if m := calendarAPIIDRe.FindStringSubmatch(html); m != nil {
		return m[1], nil
	}
	return "", nil
}

func recordFromEntry(entry pageEntry, source, webBase string) (eventRecord, bool) {
	title := strings.TrimSpace(entry.Event.Name)
	if title == "" || entry.Event.URL == "" || entry.Event.StartAt == "" {
		return eventRecord{}, false
	}
	return eventRecord{
		Title:      title,
		URL:        webBase + "/" + entry.Event.URL,
		StartAt:    entry.Event.StartAt,
		GuestCount: entry.GuestCount,
		Source:     source,
	}, true
}

func extractSlug(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", errors.Wrapf(err, "parse source url %s", rawURL)
	}
	slug := strings.Trim(u.Path, "/")
	if slug == "" {
		return "", errors.Errorf("could not parse slug from URL: %s", rawURL)
	}
	return slug, nil
}

// dedupeByURL merges listings of the same event seen from several
// sources: highest guest count wins, the earliest start keeps its title,
// and sources accumulate sorted.
func dedupeByURL(records []eventRecord) ([]*store.Event, error) {
	type merged struct {
		record  eventRecord
		start   time.Time
		sources map[string]struct{}
	}

	byURL := map[string]*merged{}
	var order []string
	for _, rec := range records {
		at, err := store.ParseStartAt(rec.StartAt)
		if err != nil {
			continue
		}

		existing, ok := byURL[rec.URL]
		if !ok {
			byURL[rec.URL] = &merged{
				record:  rec,
				start:   at,
				sources: map[string]struct{}{rec.Source: {}},
			}
			order = append(order, rec.URL)
			continue
		}

		if rec.GuestCount > existing.record.GuestCount {
			existing.record.GuestCount = rec.GuestCount
		}
		existing.sources[rec.Source] = struct{}{}
		if at.Before(existing.start) {
			existing.start = at
			existing.record.StartAt = rec.StartAt
			existing.record.Title = rec.Title
		}
	}

	events := make([]*store.Event, 0, len(byURL))
	ids := make(map[string]struct{}, len(byURL))
	for _, u := range order {
		m := byURL[u]
		sources := make([]string, 0, len(m.sources))
		for s := range m.sources {
			sources = append(sources, s)
		}
		sort.Strings(sources)

		event := &store.Event{
			ID:         store.GenerateEventID(m.record.URL),
			Title:      m.record.Title,
			URL:        m.record.URL,
			StartAt:    m.record.StartAt,
			GuestCount: m.record.GuestCount,
			Sources:    sources,
		}
		if _, collision := ids[event.ID]; collision {
			return nil, errors.Errorf(
				"event ID hash collision detected for %s", event.URL)
		}
		ids[event.ID] = struct{}{}
		events = append(events, event)
	}
	return events, nil
}
