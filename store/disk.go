package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const (
	snapshotPrefix = "events-"
	snapshotStamp  = "2006-01-02_15-04-05"
	seenFilename   = "seen.json"
)

// snapshotPayload is the on-disk snapshot envelope.
type snapshotPayload struct {
	FetchedAt string   `json:"fetched_at"`
	FetchID   string   `json:"fetch_id,omitempty"`
	Events    []*Event `json:"events"`
}

// DiskProvider reads and writes event snapshots as JSON files in a cache
// directory. The newest events-<stamp>.json file wins.
type DiskProvider struct {
	cacheDir string
}

// NewDiskProvider creates a provider rooted at cacheDir. The directory is
// created lazily on the first Save.
func NewDiskProvider(cacheDir string) *DiskProvider {
	return &DiskProvider{cacheDir: cacheDir}
}

// Load returns the events from the newest snapshot file.
func (p *DiskProvider) Load() ([]*Event, error) {
	path := p.latestSnapshot()
	if path == "" {
		return nil, NewCacheError("no cached events. Run 'eventlens refresh' first")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewCacheError("cannot read cache file %s: %v", path, err)
	}
	var payload snapshotPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, NewCacheError("cannot read cache file %s: %v", path, err)
	}
	return payload.Events, nil
}

// Save writes a new snapshot file and returns its path.
func (p *DiskProvider) Save(events []*Event, fetchedAt time.Time) (string, error) {
	if err := os.MkdirAll(p.cacheDir, 0o755); err != nil {
		return "", errors.Wrap(err, "create cache directory")
	}
	payload := snapshotPayload{
		FetchedAt: fetchedAt.UTC().Format(time.RFC3339),
		FetchID:   uuid.NewString(),
		Events:    events,
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", errors.Wrap(err, "marshal snapshot")
	}
	name := snapshotPrefix + fetchedAt.UTC().Format(snapshotStamp) + ".json"
	path := filepath.Join(p.cacheDir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", errors.Wrap(err, "write snapshot")
	}
	return path, nil
}

// CheckStaleness reports the age of the newest snapshot. A missing or
// unreadable snapshot reports as fresh; Load carries the real error.
func (p *DiskProvider) CheckStaleness() (Staleness, error) {
	path := p.latestSnapshot()
	if path == "" {
		return Staleness{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Staleness{}, nil
	}
	var payload snapshotPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return Staleness{}, nil
	}
	fetchedAt, err := ParseStartAt(payload.FetchedAt)
	if err != nil {
		return Staleness{}, nil
	}
	age := time.Since(fetchedAt)
	return Staleness{IsStale: age > StaleAfter, Age: age}, nil
}

// latestSnapshot returns the path of the newest snapshot file, or "".
// Timestamps sort lexically, so the last name wins.
func (p *DiskProvider) latestSnapshot() string {
	entries, err := os.ReadDir(p.cacheDir)
	if err != nil {
		return ""
	}
	var names []string
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() && strings.HasPrefix(name, snapshotPrefix) && strings.HasSuffix(name, ".json") {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return ""
	}
	sort.Strings(names)
	return filepath.Join(p.cacheDir, names[len(names)-1])
}

// DiskSeenStore persists seen-event URLs as a sorted JSON array next to the
// snapshots. A corrupt or missing file reads as an empty set.
type DiskSeenStore struct {
	cacheDir string
}

// NewDiskSeenStore creates a seen store rooted at cacheDir.
func NewDiskSeenStore(cacheDir string) *DiskSeenStore {
	return &DiskSeenStore{cacheDir: cacheDir}
}

// SeenURLs returns the set of URLs marked seen.
func (s *DiskSeenStore) SeenURLs() (map[string]struct{}, error) {
	data, err := os.ReadFile(filepath.Join(s.cacheDir, seenFilename))
	if err != nil {
		return map[string]struct{}{}, nil
	}
	var urls []string
	if err := json.Unmarshal(data, &urls); err != nil {
		return map[string]struct{}{}, nil
	}
	seen := make(map[string]struct{}, len(urls))
	for _, u := range urls {
		seen[u] = struct{}{}
	}
	return seen, nil
}

// MarkSeen adds urls to the seen set.
func (s *DiskSeenStore) MarkSeen(urls []string) error {
	seen, _ := s.SeenURLs()
	for _, u := range urls {
		seen[u] = struct{}{}
	}
	sorted := make([]string, 0, len(seen))
	for u := range seen {
		sorted = append(sorted, u)
	}
	sort.Strings(sorted)
	data, err := json.MarshalIndent(sorted, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal seen list")
	}
	if err := os.MkdirAll(s.cacheDir, 0o755); err != nil {
		return errors.Wrap(err, "create cache directory")
	}
	return errors.Wrap(os.WriteFile(filepath.Join(s.cacheDir, seenFilename), data, 0o644), "write seen list")
}

// ResetSeen removes the seen list. It reports whether anything was cleared.
func (s *DiskSeenStore) ResetSeen() (bool, error) {
	path := filepath.Join(s.cacheDir, seenFilename)
	if _, err := os.Stat(path); err != nil {
		return false, nil
	}
	if err := os.Remove(path); err != nil {
		return false, errors.Wrap(err, "remove seen list")
	}
	return true, nil
}
