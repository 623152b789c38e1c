package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/hrygo/eventlens/internal/profile"
	"github.com/hrygo/eventlens/internal/render"
	"github.com/hrygo/eventlens/internal/userconfig"
	"github.com/hrygo/eventlens/plugin/luma"
	"github.com/hrygo/eventlens/queryengine"
	"github.com/hrygo/eventlens/service/events"
	"github.com/hrygo/eventlens/store"
	"github.com/hrygo/eventlens/store/db"
)

const rootLong = `Query and browse aggregated event listings from a local cache.

Sources:
  Categories: ai, tech, sf
  Calendars: genai-sf, frontiertower, sf-hardware-meetup, deepmind,
             genai-collective, sfaiengineers, datadoghq

A trailing free-text argument routes the request through the LLM agent:
  eventlens "what are the biggest AI events this weekend?"

Cache: <cache-dir>/events-<timestamp>.json`

const rootExample = `  eventlens refresh
  eventlens
  eventlens --days 7 --top 50
  eventlens --sort guest --min-guest 100
  eventlens --search AI --day Tue,Thu
  eventlens sc popular`

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	cacheDir   string
	configPath string
	driver     string
	jsonOut    bool
	debug      bool
}

func newRootCmd(cfg *userconfig.Config, configPath string) *cobra.Command {
	g := &globalOptions{configPath: configPath}

	root := &cobra.Command{
		Use:           "eventlens [flags] [query]",
		Short:         "Query and browse cached event listings",
		Long:          rootLong,
		Example:       rootExample,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&g.cacheDir, "cache-dir", "", "Override the cache directory (default: ~/.cache/eventlens).")
	pf.StringVar(&g.configPath, "config", configPath, "Override the config file path (default: ~/.eventlens/config.toml).")
	pf.StringVar(&g.driver, "driver", "", "Storage backend: 'disk' (default) or 'sqlite'.")
	pf.BoolVar(&g.jsonOut, "json", false, "Output structured JSON to stdout instead of human-readable text.")
	pf.BoolVar(&g.debug, "debug", false, "Enable debug logging (e.g. agent tool call params).")

	opts := addQueryFlags(root.Flags())

	root.RunE = func(cmd *cobra.Command, args []string) error {
		a, err := newApp(g, cfg)
		if err != nil {
			return err
		}
		if len(args) > 0 {
			return runAgent(cmd, g, opts, a, strings.Join(args, " "))
		}
		return runQuery(g, opts, a)
	}

	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &exitError{code: 2, err: err}
	})

	root.AddCommand(
		newRefreshCmd(g, cfg),
		newChatCmd(g, cfg),
		newScCmd(cfg, configPath),
		newFeedCmd(g, cfg),
	)
	return root
}

// queryOptions mirrors the query engine parameters as CLI flags. Numeric
// flags use Changed to distinguish "unset" from an explicit zero.
type queryOptions struct {
	days      int
	fromDate  string
	toDate    string
	dateRange string
	top       int
	sortBy    string

	minGuest int
	maxGuest int
	minTime  int
	maxTime  int

	day     string
	exclude string
	search  string
	regex   string
	glob    string

	city         string
	region       string
	country      string
	locationType string
	sf           bool
	lat          float64
	lon          float64
	radius       float64

	discard bool
	showAll bool
	reset   bool

	flags *pflag.FlagSet
}

func addQueryFlags(fs *pflag.FlagSet) *queryOptions {
	o := &queryOptions{flags: fs}

	fs.IntVar(&o.days, "days", 0, "Time window in days from now (default: 14). Mutually exclusive with --from-date/--to-date.")
	fs.StringVar(&o.fromDate, "from-date", "", "Start date for the event window (inclusive), YYYYMMDD.")
	fs.StringVar(&o.toDate, "to-date", "", "End date for the event window (inclusive), YYYYMMDD.")
	fs.StringVar(&o.dateRange, "range", "", "Predefined date range: today, tomorrow, week[+N], weekday[+N], weekend[+N].")
	fs.IntVar(&o.top, "top", 0, "Limit how many events to print after sorting (default: all).")
	fs.StringVar(&o.sortBy, "sort", queryengine.SortDate, "Sort by event 'date' (default) or by 'guest'.")
	fs.IntVar(&o.minGuest, "min-guest", 0, "Minimum guest count to include.")
	fs.IntVar(&o.maxGuest, "max-guest", 0, "Maximum guest count to include (default: no limit).")
	fs.IntVar(&o.minTime, "min-time", 0, "Minimum event start hour in local time (0-23). Example: 18.")
	fs.IntVar(&o.maxTime, "max-time", 0, "Maximum event start hour in local time (0-23). Example: 21.")
	fs.StringVar(&o.day, "day", "", "Comma-separated weekday filter (e.g. 'Tue,Thu'). Case-insensitive.")
	fs.StringVar(&o.exclude, "exclude", "", "Comma-separated keywords to exclude from titles (case-insensitive).")
	fs.StringVar(&o.search, "search", "", "Only show events whose title contains this keyword (case-insensitive).")
	fs.StringVar(&o.regex, "regex", "", "Only show events whose title matches this regex (case-insensitive).")
	fs.StringVar(&o.glob, "glob", "", "Only show events whose title matches this glob pattern (e.g. '*AI*meetup*').")
	fs.StringVar(&o.city, "city", "", "Filter by city name (case-insensitive exact match).")
	fs.StringVar(&o.region, "region", "", "Filter by region/state (case-insensitive exact match).")
	fs.StringVar(&o.country, "country", "", "Filter by country (case-insensitive exact match).")
	fs.StringVar(&o.locationType, "location-type", "", "Filter by location type (e.g. 'offline', 'online').")
	fs.BoolVar(&o.sf, "sf", false, "Shortcut: filter by city 'San Francisco'. Overrides --city.")
	fs.Float64Var(&o.lat, "lat", 0, "Latitude of the search center for the proximity filter. Requires --lon.")
	fs.Float64Var(&o.lon, "lon", 0, "Longitude of the search center for the proximity filter. Requires --lat.")
	fs.Float64Var(&o.radius, "radius", 0, "Search radius in miles (default: 5). Requires --lat and --lon.")
	fs.BoolVar(&o.discard, "discard", false, "Mark all displayed events as seen. Mutually exclusive with --all and --reset.")
	fs.BoolVar(&o.showAll, "all", false, "Show all events including previously discarded (seen ones are grayed out).")
	fs.BoolVar(&o.reset, "reset", false, "Clear the seen events list. Mutually exclusive with --discard.")

	return o
}

func (o *queryOptions) changed(name string) bool {
	return o.flags.Changed(name)
}

func (o *queryOptions) params() queryengine.Params {
	p := queryengine.Params{
		FromDate:     o.fromDate,
		ToDate:       o.toDate,
		Range:        o.dateRange,
		Weekdays:     o.day,
		Exclude:      o.exclude,
		Search:       o.search,
		Regex:        o.regex,
		Glob:         o.glob,
		Sort:         o.sortBy,
		ShowAll:      o.showAll,
		City:         o.city,
		Region:       o.region,
		Country:      o.country,
		LocationType: o.locationType,
	}
	if o.sf {
		p.City = "San Francisco"
	}
	if o.changed("days") {
		p.Days = queryengine.Int(o.days)
	}
	if o.changed("min-guest") {
		p.MinGuest = queryengine.Int(o.minGuest)
	}
	if o.changed("max-guest") {
		p.MaxGuest = queryengine.Int(o.maxGuest)
	}
	if o.changed("min-time") {
		p.MinHour = queryengine.Int(o.minTime)
	}
	if o.changed("max-time") {
		p.MaxHour = queryengine.Int(o.maxTime)
	}
	if o.changed("lat") {
		p.SearchLat = queryengine.Float(o.lat)
	}
	if o.changed("lon") {
		p.SearchLon = queryengine.Float(o.lon)
	}
	if o.changed("radius") {
		p.SearchRadiusMiles = queryengine.Float(o.radius)
	}
	return p
}

// app bundles the wired services for one invocation.
type app struct {
	profile  *profile.Profile
	loc      *time.Location
	backend  *db.Backend
	events   *events.Service
	renderer *render.Renderer
}

func newApp(g *globalOptions, cfg *userconfig.Config) (*app, error) {
	p := &profile.Profile{
		CacheDir:   g.cacheDir,
		ConfigPath: g.configPath,
		Driver:     g.driver,
		Debug:      g.debug,
	}
	if err := p.FromEnv(); err != nil {
		return nil, err
	}
	if p.APIKey == "" {
		p.APIKey = cfg.APIKey
	}
	setupLogging(g.debug)

	loc, err := p.Location()
	if err != nil {
		return nil, err
	}
	backend, err := db.NewBackend(p)
	if err != nil {
		return nil, err
	}
	return &app{
		profile:  p,
		loc:      loc,
		backend:  backend,
		events:   events.New(backend.Provider, backend.Seen, queryengine.NewEngine(loc)),
		renderer: render.New(loc),
	}, nil
}

func setupLogging(debug bool) {
	level := slog.LevelWarn
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// queryEnvelope is the JSON form of one query result. Nil pointer fields
// marshal as null, matching unset flags.
type queryEnvelope struct {
	GeneratedAt    string         `json:"generated_at"`
	WindowDays     *int           `json:"window_days"`
	FromDate       *string        `json:"from_date"`
	ToDate         *string        `json:"to_date"`
	WindowStartUTC string         `json:"window_start_utc"`
	WindowEndUTC   string         `json:"window_end_utc"`
	RankBy         string         `json:"rank_by"`
	Sort           string         `json:"sort"`
	MinGuest       *int           `json:"min_guest"`
	MaxGuest       *int           `json:"max_guest"`
	MinTime        *int           `json:"min_time"`
	MaxTime        *int           `json:"max_time"`
	DedupeBy       string         `json:"dedupe_by"`
	Lat            float64        `json:"lat"`
	Lon            float64        `json:"lon"`
	Total          int            `json:"total_events_after_dedupe"`
	Events         []*store.Event `json:"events"`
	Type           string         `json:"type"`
}

func runQuery(g *globalOptions, o *queryOptions, a *app) error {
	if o.discard && o.showAll {
		return usageError("--discard and --all are mutually exclusive.")
	}
	if o.discard && o.reset {
		return usageError("--discard and --reset are mutually exclusive.")
	}

	if o.reset {
		cleared, err := a.events.ResetSeen()
		if err != nil {
			return errors.Wrap(err, "reset seen events")
		}
		if cleared {
			fmt.Fprintln(os.Stderr, "Cleared seen events.")
		} else {
			fmt.Fprintln(os.Stderr, "No seen events to clear.")
		}
	}

	warnStaleness(a)

	params := o.params()
	result, err := a.events.Query(params)
	if err != nil {
		return err
	}

	if g.jsonOut {
		if err := printQueryEnvelope(o, result); err != nil {
			return err
		}
		if o.discard {
			return a.events.MarkSeen(result.Events)
		}
		return nil
	}

	display := topSlice(result.Events, o.top)
	seen, err := a.backend.Seen.SeenURLs()
	if err != nil {
		return errors.Wrap(err, "load seen urls")
	}
	a.renderer.PrintEvents(os.Stdout, display, render.Options{
		Sort:    o.sortBy,
		ShowAll: o.showAll,
		Seen:    seen,
		Color:   stdoutIsTTY(),
	})

	if o.discard {
		if err := a.events.MarkSeen(display); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Marked %d events as seen.\n", len(display))
	}
	return nil
}

func printQueryEnvelope(o *queryOptions, result *queryengine.Result) error {
	return printJSON(buildQueryEnvelope(o, result))
}

func buildQueryEnvelope(o *queryOptions, result *queryengine.Result) queryEnvelope {
	env := queryEnvelope{
		GeneratedAt:    time.Now().UTC().Format(time.RFC3339),
		FromDate:       strPtrOrNil(o.fromDate),
		ToDate:         strPtrOrNil(o.toDate),
		WindowStartUTC: result.WindowStart.UTC().Format(time.RFC3339),
		WindowEndUTC:   result.WindowEnd.UTC().Format(time.RFC3339),
		RankBy:         "guest_count",
		Sort:           o.sortBy,
		DedupeBy:       "url",
		Lat:            luma.DiscoverLat,
		Lon:            luma.DiscoverLon,
		Total:          result.Total,
		Events:         result.Events,
		Type:           "query",
	}
	switch {
	case o.changed("days"):
		env.WindowDays = queryengine.Int(o.days)
	case o.fromDate == "" && o.toDate == "":
		env.WindowDays = queryengine.Int(profile.DefaultWindowDays)
	}
	if o.changed("min-guest") {
		env.MinGuest = queryengine.Int(o.minGuest)
	}
	if o.changed("max-guest") {
		env.MaxGuest = queryengine.Int(o.maxGuest)
	}
	if o.changed("min-time") {
		env.MinTime = queryengine.Int(o.minTime)
	}
	if o.changed("max-time") {
		env.MaxTime = queryengine.Int(o.maxTime)
	}
	return env
}

func warnStaleness(a *app) {
	staleness, err := a.events.CheckStaleness()
	if err != nil || !staleness.IsStale {
		return
	}
	days := int(staleness.Age.Hours() / 24)
	if days >= 1 {
		plural := "s"
		if days == 1 {
			plural = ""
		}
		fmt.Fprintf(os.Stderr, "Warning: cache is %d day%s old. Run 'eventlens refresh' to update.\n", days, plural)
		return
	}
	fmt.Fprintf(os.Stderr, "Warning: cache is %d hours old. Run 'eventlens refresh' to update.\n", int(staleness.Age.Hours()))
}

func printJSON(v any) error {
	encoded, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode json")
	}
	fmt.Println(string(encoded))
	return nil
}

func topSlice(events []*store.Event, top int) []*store.Event {
	if top > 0 && top < len(events) {
		return events[:top]
	}
	return events
}

func strPtrOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func stdoutIsTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func stderrStyle() (dim, reset string) {
	if term.IsTerminal(int(os.Stderr.Fd())) {
		return render.Dim, render.Reset
	}
	return "", ""
}
