// Package db selects the storage backend from the runtime profile.
package db

import (
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/hrygo/eventlens/internal/profile"
	"github.com/hrygo/eventlens/store"
	"github.com/hrygo/eventlens/store/db/sqlite"
)

// Backend bundles the snapshot provider with its seen store.
type Backend struct {
	Provider store.Provider
	Seen     store.SeenStore
}

// NewBackend creates the storage backend named by the profile driver.
// "disk" keeps JSON snapshot files in the cache directory; "sqlite" keeps
// everything in a single database file.
func NewBackend(p *profile.Profile) (*Backend, error) {
	switch p.Driver {
	case "", "disk":
		return &Backend{
			Provider: store.NewDiskProvider(p.CacheDir),
			Seen:     store.NewDiskSeenStore(p.CacheDir),
		}, nil
	case "sqlite":
		dsn := p.DSN
		if dsn == "" {
			dsn = filepath.Join(p.CacheDir, "events.db")
		}
		db, err := sqlite.NewDB(dsn)
		if err != nil {
			return nil, errors.Wrap(err, "create sqlite backend")
		}
		return &Backend{Provider: db, Seen: db}, nil
	default:
		return nil, errors.Errorf("unknown storage driver %q: only 'disk' and 'sqlite' are supported", p.Driver)
	}
}
