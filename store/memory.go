package store

import (
	"sync"
	"time"
)

// MemoryProvider holds events in memory. Used by tests and the eval runner.
type MemoryProvider struct {
	mu     sync.RWMutex
	events []*Event
	seen   map[string]struct{}
}

// NewMemoryProvider creates a provider preloaded with events.
func NewMemoryProvider(events []*Event) *MemoryProvider {
	return &MemoryProvider{events: events, seen: map[string]struct{}{}}
}

func (p *MemoryProvider) Load() ([]*Event, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.events, nil
}

func (p *MemoryProvider) Save(events []*Event, _ time.Time) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = events
	return "memory", nil
}

func (p *MemoryProvider) CheckStaleness() (Staleness, error) {
	return Staleness{}, nil
}

func (p *MemoryProvider) SeenURLs() (map[string]struct{}, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	seen := make(map[string]struct{}, len(p.seen))
	for u := range p.seen {
		seen[u] = struct{}{}
	}
	return seen, nil
}

func (p *MemoryProvider) MarkSeen(urls []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, u := range urls {
		p.seen[u] = struct{}{}
	}
	return nil
}

func (p *MemoryProvider) ResetSeen() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cleared := len(p.seen) > 0
	p.seen = map[string]struct{}{}
	return cleared, nil
}
