// Package events exposes the cached event collection behind the query
// engine: load, query, resolve by ID, and seen-state bookkeeping.
package events

import (
	"github.com/pkg/errors"

	"github.com/hrygo/eventlens/queryengine"
	"github.com/hrygo/eventlens/store"
)

// Service binds a storage backend to the query engine.
type Service struct {
	provider store.Provider
	seen     store.SeenStore
	engine   *queryengine.Engine
}

// New creates a Service.
func New(provider store.Provider, seen store.SeenStore, engine *queryengine.Engine) *Service {
	return &Service{provider: provider, seen: seen, engine: engine}
}

// Query loads the newest snapshot and runs the query engine over it.
// Seen suppression applies unless the params disable it.
func (s *Service) Query(params queryengine.Params) (*queryengine.Result, error) {
	events, err := s.provider.Load()
	if err != nil {
		return nil, err
	}

	var seenURLs map[string]struct{}
	if !params.ShowAll {
		seenURLs, err = s.seen.SeenURLs()
		if err != nil {
			return nil, errors.Wrap(err, "load seen urls")
		}
	}
	return s.engine.Query(events, params, seenURLs)
}

// QueryAll runs the query engine without consulting the seen set. The
// agent's tool path uses it: discarded listings stay visible to the model,
// seen gating belongs to the explicit CLI path only.
func (s *Service) QueryAll(params queryengine.Params) (*queryengine.Result, error) {
	events, err := s.provider.Load()
	if err != nil {
		return nil, err
	}
	return s.engine.Query(events, params, nil)
}

// GetByIDs resolves event IDs against the newest snapshot. Order follows
// the input, duplicates collapse onto their first occurrence, and unknown
// IDs are dropped. Seen state never gates resolution: an ID the caller
// already holds always resolves.
func (s *Service) GetByIDs(ids []string) ([]*store.Event, error) {
	events, err := s.provider.Load()
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*store.Event, len(events))
	for _, event := range events {
		byID[event.ID] = event
	}

	resolved := make([]*store.Event, 0, len(ids))
	picked := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := picked[id]; dup {
			continue
		}
		picked[id] = struct{}{}
		if event, ok := byID[id]; ok {
			resolved = append(resolved, event)
		}
	}
	return resolved, nil
}

// MarkSeen records the events' URLs as reviewed.
func (s *Service) MarkSeen(events []*store.Event) error {
	if len(events) == 0 {
		return nil
	}
	urls := make([]string, 0, len(events))
	for _, event := range events {
		urls = append(urls, event.URL)
	}
	return errors.Wrap(s.seen.MarkSeen(urls), "mark seen")
}

// ResetSeen clears the seen set and reports whether anything was removed.
func (s *Service) ResetSeen() (bool, error) {
	return s.seen.ResetSeen()
}

// CheckStaleness reports the age of the newest snapshot.
func (s *Service) CheckStaleness() (store.Staleness, error) {
	return s.provider.CheckStaleness()
}
