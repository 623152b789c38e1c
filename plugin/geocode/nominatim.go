// Package geocode resolves event locations through the Nominatim API,
// with a disk cache so repeated refreshes stay within the service's
// usage policy.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "https://nominatim.openstreetmap.org"
	userAgent      = "eventlens/1.0"
	// Nominatim's usage policy caps anonymous clients at one request
	// per second.
	requestDelay = time.Second

	cacheFilename = "coordinates-to-city.json"

	// coordPrecision rounds cache keys to about 1.1 km, enough for
	// city-level lookups.
	coordPrecision = 2
)

// Location is a partially resolved place. Nil fields are unknown.
type Location struct {
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	City      *string  `json:"city,omitempty"`
	Region    *string  `json:"region,omitempty"`
	Country   *string  `json:"country,omitempty"`
}

// Empty reports whether the lookup resolved nothing.
func (l Location) Empty() bool {
	return l.Latitude == nil && l.Longitude == nil &&
		l.City == nil && l.Region == nil && l.Country == nil
}

// Client is a rate-limited Nominatim client with a persistent cache.
type Client struct {
	http      *http.Client
	limiter   *rate.Limiter
	baseURL   string
	cachePath string
	cache     map[string]Location
	dirty     bool
}

// NewClient creates a Client caching under cacheDir. A corrupt or missing
// cache file starts empty.
func NewClient(cacheDir string) *Client {
	c := &Client{
		http:      &http.Client{Timeout: 30 * time.Second},
		limiter:   rate.NewLimiter(rate.Every(requestDelay), 1),
		baseURL:   defaultBaseURL,
		cachePath: filepath.Join(cacheDir, cacheFilename),
		cache:     map[string]Location{},
	}
	if data, err := os.ReadFile(c.cachePath); err == nil {
		_ = json.Unmarshal(data, &c.cache)
	}
	return c
}

// ReverseKey builds the cache key for a reverse lookup.
func ReverseKey(lat, lon float64) string {
	return fmt.Sprintf("rev:%s,%s", roundCoord(lat), roundCoord(lon))
}

// ForwardKey builds the cache key for a forward lookup.
func ForwardKey(city, region, country string) string {
	return fmt.Sprintf("fwd:%s|%s|%s",
		strings.ToLower(city), strings.ToLower(region), strings.ToLower(country))
}

// Reverse resolves city, region, and country from coordinates. Failures
// resolve to an empty Location; geocoding is best effort.
func (c *Client) Reverse(ctx context.Context, lat, lon float64) Location {
	key := ReverseKey(lat, lon)
	if cached, ok := c.cache[key]; ok {
		return cached
	}

	loc := c.reverse(ctx, lat, lon)
	c.remember(key, loc)
	return loc
}

// Forward resolves coordinates from place names, then reverse-resolves
// them to normalize the names.
func (c *Client) Forward(ctx context.Context, city, region, country string) Location {
	key := ForwardKey(city, region, country)
	if cached, ok := c.cache[key]; ok {
		return cached
	}

	loc := c.forward(ctx, city, region, country)
	c.remember(key, loc)
	return loc
}

// Flush persists newly resolved locations to the cache file.
func (c *Client) Flush() error {
	if !c.dirty {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(c.cachePath), 0o755); err != nil {
		return errors.Wrap(err, "create geocode cache dir")
	}
	data, err := json.MarshalIndent(c.cache, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal geocode cache")
	}
	if err := os.WriteFile(c.cachePath, data, 0o644); err != nil {
		return errors.Wrap(err, "write geocode cache")
	}
	c.dirty = false
	return nil
}

func (c *Client) remember(key string, loc Location) {
	c.cache[key] = loc
	if !loc.Empty() {
		c.dirty = true
	}
}

func (c *Client) reverse(ctx context.Context, lat, lon float64) Location {
	query := url.Values{
		"lat":    {strconv.FormatFloat(lat, 'f', -1, 64)},
		"lon":    {strconv.FormatFloat(lon, 'f', -1, 64)},
		"format": {"json"},
	}

	var resp struct {
		Address struct {
			City    string `json:"city"`
			Town    string `json:"town"`
			Village string `json:"village"`
			State   string `json:"state"`
			Country string `json:"country"`
		} `json:"address"`
	}
	if err := c.get(ctx, c.baseURL+"/reverse?"+query.Encode(), &resp); err != nil {
		slog.Warn("nominatim reverse lookup failed", "error", err)
		return Location{}
	}

	var loc Location
	if city := firstNonEmpty(resp.Address.City, resp.Address.Town, resp.Address.Village); city != "" {
		loc.City = &city
	}
	if resp.Address.State != "" {
		loc.Region = &resp.Address.State
	}
	if resp.Address.Country != "" {
		loc.Country = &resp.Address.Country
	}
	return loc
}

func (c *Client) forward(ctx context.Context, city, region, country string) Location {
	var parts []string
	for _, p := range []string{city, region, country} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return Location{}
	}

	query := url.Values{
		"q":      {strings.Join(parts, ", ")},
		"format": {"json"},
		"limit":  {"1"},
	}

	var resp []struct {
		Lat string `json:"lat"`
		Lon string `json:"lon"`
	}
	if err := c.get(ctx, c.baseURL+"/search?"+query.Encode(), &resp); err != nil {
		slog.Warn("nominatim forward lookup failed", "error", err)
		return Location{}
	}
	if len(resp) == 0 {
		return Location{}
	}

	lat, latErr := strconv.ParseFloat(resp[0].Lat, 64)
	lon, lonErr := strconv.ParseFloat(resp[0].Lon, 64)
	if latErr != nil || lonErr != nil {
		return Location{}
	}

	loc := c.reverse(ctx, lat, lon)
	loc.Latitude = &lat
	loc.Longitude = &lon
	return loc
}

func (c *Client) get(ctx context.Context, rawURL string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, out)
}

func roundCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', coordPrecision, 64)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
