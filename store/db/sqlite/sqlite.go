// Package sqlite implements the snapshot provider and seen store on top of
// a local SQLite database. It is an alternative to the JSON disk provider
// for setups that prefer a single cache file.
package sqlite

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	// SQLite driver.
	_ "modernc.org/sqlite"

	"github.com/hrygo/eventlens/store"
)

// DB implements store.Provider and store.SeenStore over SQLite.
type DB struct {
	db *sql.DB
}

// NewDB opens (and if needed creates) the database at dsn.
func NewDB(dsn string) (*DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite database")
	}
	d := &DB{db: db}
	if err := d.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return d, nil
}

// Close releases the underlying handle.
func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS snapshot (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			fetch_id TEXT NOT NULL,
			fetched_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS event (
			snapshot_id INTEGER NOT NULL REFERENCES snapshot (id) ON DELETE CASCADE,
			event_id TEXT NOT NULL,
			title TEXT NOT NULL,
			url TEXT NOT NULL,
			start_at TEXT NOT NULL,
			guest_count INTEGER NOT NULL,
			payload TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_event_snapshot ON event (snapshot_id)`,
		`CREATE TABLE IF NOT EXISTS seen (
			url TEXT PRIMARY KEY
		)`,
	}
	for _, stmt := range stmts {
		if _, err := d.db.Exec(stmt); err != nil {
			return errors.Wrap(err, "migrate sqlite schema")
		}
	}
	return nil
}

// Load returns the events of the newest snapshot.
func (d *DB) Load() ([]*store.Event, error) {
	var snapshotID int64
	err := d.db.QueryRow(`SELECT id FROM snapshot ORDER BY fetched_at DESC, id DESC LIMIT 1`).Scan(&snapshotID)
	if err == sql.ErrNoRows {
		return nil, store.NewCacheError("no cached events. Run 'eventlens refresh' first")
	}
	if err != nil {
		return nil, store.NewCacheError("cannot read event cache: %v", err)
	}

	rows, err := d.db.Query(`SELECT payload FROM event WHERE snapshot_id = ? ORDER BY rowid`, snapshotID)
	if err != nil {
		return nil, store.NewCacheError("cannot read event cache: %v", err)
	}
	defer rows.Close()

	var events []*store.Event
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, store.NewCacheError("cannot read event cache: %v", err)
		}
		event := &store.Event{}
		if err := json.Unmarshal([]byte(payload), event); err != nil {
			return nil, store.NewCacheError("corrupt event row: %v", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewCacheError("cannot read event cache: %v", err)
	}
	return events, nil
}

// Save writes a new snapshot in one transaction and returns its fetch ID.
func (d *DB) Save(events []*store.Event, fetchedAt time.Time) (string, error) {
	tx, err := d.db.Begin()
	if err != nil {
		return "", errors.Wrap(err, "begin snapshot transaction")
	}
	defer func() { _ = tx.Rollback() }()

	fetchID := uuid.NewString()
	res, err := tx.Exec(`INSERT INTO snapshot (fetch_id, fetched_at) VALUES (?, ?)`,
		fetchID, fetchedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return "", errors.Wrap(err, "insert snapshot")
	}
	snapshotID, err := res.LastInsertId()
	if err != nil {
		return "", errors.Wrap(err, "snapshot id")
	}

	stmt, err := tx.Prepare(`INSERT INTO event
		(snapshot_id, event_id, title, url, start_at, guest_count, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", errors.Wrap(err, "prepare event insert")
	}
	defer stmt.Close()

	for _, event := range events {
		payload, err := json.Marshal(event)
		if err != nil {
			return "", errors.Wrap(err, "marshal event")
		}
		if _, err := stmt.Exec(snapshotID, event.ID, event.Title, event.URL,
			event.StartAt, event.GuestCount, string(payload)); err != nil {
			return "", errors.Wrapf(err, "insert event %s", event.ID)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", errors.Wrap(err, "commit snapshot")
	}
	return fetchID, nil
}

// CheckStaleness reports the age of the newest snapshot.
func (d *DB) CheckStaleness() (store.Staleness, error) {
	var fetchedAt string
	err := d.db.QueryRow(`SELECT fetched_at FROM snapshot ORDER BY fetched_at DESC, id DESC LIMIT 1`).Scan(&fetchedAt)
	if err != nil {
		return store.Staleness{}, nil
	}
	ts, err := store.ParseStartAt(fetchedAt)
	if err != nil {
		return store.Staleness{}, nil
	}
	age := time.Since(ts)
	return store.Staleness{IsStale: age > store.StaleAfter, Age: age}, nil
}

// SeenURLs returns the set of URLs marked seen.
func (d *DB) SeenURLs() (map[string]struct{}, error) {
	rows, err := d.db.Query(`SELECT url FROM seen`)
	if err != nil {
		return nil, errors.Wrap(err, "load seen urls")
	}
	defer rows.Close()

	seen := map[string]struct{}{}
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return nil, errors.Wrap(err, "scan seen url")
		}
		seen[url] = struct{}{}
	}
	return seen, errors.Wrap(rows.Err(), "load seen urls")
}

// MarkSeen adds urls to the seen set.
func (d *DB) MarkSeen(urls []string) error {
	tx, err := d.db.Begin()
	if err != nil {
		return errors.Wrap(err, "begin seen transaction")
	}
	defer func() { _ = tx.Rollback() }()

	for _, url := range urls {
		if _, err := tx.Exec(`INSERT OR IGNORE INTO seen (url) VALUES (?)`, url); err != nil {
			return errors.Wrap(err, "mark seen")
		}
	}
	return errors.Wrap(tx.Commit(), "commit seen")
}

// ResetSeen clears the seen set and reports whether anything was removed.
func (d *DB) ResetSeen() (bool, error) {
	res, err := d.db.Exec(`DELETE FROM seen`)
	if err != nil {
		return false, errors.Wrap(err, "reset seen")
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}
