// Package catalog indexes decoded quests in a SQLite database so tools
// can list and filter them without re-decoding the archives every time.
package catalog

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	_ "modernc.org/sqlite"

	"github.com/seliria/questfile/pkg/quest"
)

// ErrNotFound indicates the requested quest is not in the catalog.
var ErrNotFound = errors.New("catalog: quest not found")

// cacheSize bounds the decoded-quest cache. Decoded quests are a few
// hundred kilobytes each.
const cacheSize = 32

// Entry is one catalog row.
type Entry struct {
	Path        string
	QuestNo     uint16
	ID          uint32
	Name        string
	Episode     quest.Episode
	ObjectCount int
	NpcCount    int
}

// Catalog stores quest snapshots in SQLite and keeps recently decoded
// quests in an LRU cache keyed by archive path.
type Catalog struct {
	db    *sql.DB
	codec *quest.Codec
	cache *lru.Cache[string, *quest.Quest]
	mu    sync.Mutex
}

// Open opens or creates a catalog database.
func Open(dbPath string, codec *quest.Codec) (*Catalog, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Set busy timeout for concurrent access
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS quests (
		path TEXT PRIMARY KEY,
		quest_no INTEGER NOT NULL,
		quest_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		episode INTEGER NOT NULL,
		object_count INTEGER NOT NULL,
		npc_count INTEGER NOT NULL,
		snapshot BLOB NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	cache, err := lru.New[string, *quest.Quest](cacheSize)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Catalog{db: db, codec: codec, cache: cache}, nil
}

// Close closes the database connection.
func (c *Catalog) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Add decodes the archive at path and indexes it, replacing any earlier
// row for the same path. It returns the decoded quest and the decode
// warnings.
func (c *Catalog) Add(path string) (*quest.Quest, []string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading %s: %w", path, err)
	}
	result, err := c.codec.DecodeQuest(data, true)
	if err != nil {
		return nil, nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	q := result.Quest

	snapshot, err := quest.MarshalSnapshot(q.Snapshot())
	if err != nil {
		return nil, nil, err
	}

	c.mu.Lock()
	_, err = c.db.Exec(`INSERT OR REPLACE INTO quests
		(path, quest_no, quest_id, name, episode, object_count, npc_count, snapshot)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		path, q.QuestNo, q.ID, q.Name, uint8(q.Episode), len(q.Objects), len(q.Npcs), snapshot)
	c.mu.Unlock()
	if err != nil {
		return nil, nil, fmt.Errorf("saving quest: %w", err)
	}

	c.cache.Add(path, q)
	return q, result.Warnings, nil
}

// Remove drops a path from the catalog and the cache.
func (c *Catalog) Remove(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.db.Exec("DELETE FROM quests WHERE path = ?", path); err != nil {
		return fmt.Errorf("deleting quest: %w", err)
	}
	c.cache.Remove(path)
	return nil
}

// List returns all catalog entries ordered by quest number, then path.
func (c *Catalog) List() ([]Entry, error) {
	rows, err := c.db.Query(`SELECT path, quest_no, quest_id, name, episode,
		object_count, npc_count FROM quests ORDER BY quest_no, path`)
	if err != nil {
		return nil, fmt.Errorf("querying quests: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ListEpisode returns the entries for one episode, ordered like List.
func (c *Catalog) ListEpisode(ep quest.Episode) ([]Entry, error) {
	rows, err := c.db.Query(`SELECT path, quest_no, quest_id, name, episode,
		object_count, npc_count FROM quests WHERE episode = ?
		ORDER BY quest_no, path`, uint8(ep))
	if err != nil {
		return nil, fmt.Errorf("querying quests: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Find returns the entry for one path.
func (c *Catalog) Find(path string) (*Entry, error) {
	row := c.db.QueryRow(`SELECT path, quest_no, quest_id, name, episode,
		object_count, npc_count FROM quests WHERE path = ?`, path)
	e, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &e, nil
}

// Snapshot returns the stored snapshot for one path.
func (c *Catalog) Snapshot(path string) (*quest.Snapshot, error) {
	var blob []byte
	err := c.db.QueryRow("SELECT snapshot FROM quests WHERE path = ?", path).Scan(&blob)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying snapshot: %w", err)
	}
	return quest.UnmarshalSnapshot(blob)
}

// Quest returns the decoded quest at path, served from the cache when
// warm. A cold read decodes the archive again.
func (c *Catalog) Quest(path string) (*quest.Quest, error) {
	if q, ok := c.cache.Get(path); ok {
		return q, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	result, err := c.codec.DecodeQuest(data, true)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	c.cache.Add(path, result.Quest)
	return result.Quest, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (Entry, error) {
	var e Entry
	var episode uint8
	err := row.Scan(&e.Path, &e.QuestNo, &e.ID, &e.Name, &episode,
		&e.ObjectCount, &e.NpcCount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, err
		}
		return Entry{}, fmt.Errorf("scanning quest: %w", err)
	}
	e.Episode = quest.Episode(episode)
	return e, nil
}
