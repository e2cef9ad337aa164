// Package index implements the index/dedup store: an embedded
// relational database recording which filesystem path each release group
// and album was last seen at, so duplicate locations across the library can
// be surfaced as warnings.
package index

import (
	"database/sql"
	"fmt"
	"sync"

	_ "modernc.org/sqlite" // pure-Go SQLite driver

	"github.com/uocradio/libguard/internal/util"
)

// Store is the embedded SQLite-backed index. Every read and every write
// takes mu and runs on the single pooled connection, so all access is
// serialized: reads do not run concurrently with each other or with a write.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open opens or creates the index database at path, applying the schema
// below if it isn't already present.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_timeout=5000&_busy_timeout=5000&cache=shared", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("index: open %s: %w", path, err)
	}
	// A single shared connection, opened with cross-thread sharing enabled:
	// SQLite's own file-level locking plus our mutex is the serialization,
	// one pooled *sql.DB connection avoids fighting it with Go's pool.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("index: apply schema: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS release_groups(
	id INTEGER PRIMARY KEY,
	releasegroup_id TEXT NOT NULL,
	path TEXT NOT NULL,
	UNIQUE(releasegroup_id, path)
);
CREATE TABLE IF NOT EXISTS albums(
	id INTEGER PRIMARY KEY,
	album_id TEXT NOT NULL,
	path TEXT NOT NULL,
	UNIQUE(album_id, path)
);
CREATE INDEX IF NOT EXISTS idx_releasegroup ON release_groups(releasegroup_id);
CREATE INDEX IF NOT EXISTS idx_album        ON albums(album_id);
CREATE INDEX IF NOT EXISTS idx_rg_path      ON release_groups(path);
CREATE INDEX IF NOT EXISTS idx_album_path   ON albums(path);
`

// AddResult reports what AddAlbum actually did, for callers that want to
// log or count outcomes.
type AddResult struct {
	Inserted               bool
	DuplicateReleaseGroup   bool // same release_group_id already at another path
	DuplicateAlbum          bool // same album_id already at another path
}

// AddAlbum implements its add_album: insert the (release_group_id,
// path) and (album_id, path) rows unless either identifier is already
// registered at a *different* path, in which case nothing is inserted and
// the duplicate-location flags are set so the caller can warn.
func (s *Store) AddAlbum(path, releaseGroupID, albumID string) (AddResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result AddResult

	tx, err := s.db.Begin()
	if err != nil {
		return result, fmt.Errorf("index: begin: %w", err)
	}
	defer tx.Rollback()

	rgExactExists, err := exists(tx, "release_groups", "releasegroup_id", releaseGroupID, "path", path)
	if err != nil {
		return result, err
	}
	albumExactExists, err := exists(tx, "albums", "album_id", albumID, "path", path)
	if err != nil {
		return result, err
	}
	if rgExactExists && albumExactExists {
		// Step 1: the exact pair already exists for both tables -> no-op.
		return result, tx.Commit()
	}

	otherRGPath, err := otherPathFor(tx, "release_groups", "releasegroup_id", releaseGroupID, path)
	if err != nil {
		return result, err
	}
	if otherRGPath != "" {
		result.DuplicateReleaseGroup = true
		util.WarnLog("index: same release group %s at multiple locations: %s and %s", releaseGroupID, otherRGPath, path)
	}

	otherAlbumPath, err := otherPathFor(tx, "albums", "album_id", albumID, path)
	if err != nil {
		return result, err
	}
	if otherAlbumPath != "" {
		result.DuplicateAlbum = true
		util.WarnLog("index: same album %s at multiple locations: %s and %s", albumID, otherAlbumPath, path)
	}

	if result.DuplicateReleaseGroup || result.DuplicateAlbum {
		// Step 3: any duplicate-location warning suppresses the insert.
		return result, tx.Commit()
	}

	if !rgExactExists {
		if _, err := tx.Exec(`INSERT INTO release_groups(releasegroup_id, path) VALUES (?, ?)`, releaseGroupID, path); err != nil {
			return result, fmt.Errorf("index: insert release_groups: %w", err)
		}
	}
	if !albumExactExists {
		if _, err := tx.Exec(`INSERT INTO albums(album_id, path) VALUES (?, ?)`, albumID, path); err != nil {
			return result, fmt.Errorf("index: insert albums: %w", err)
		}
	}
	result.Inserted = true
	return result, tx.Commit()
}

func exists(tx *sql.Tx, table, idCol, idVal, pathCol, pathVal string) (bool, error) {
	var n int
	q := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s = ? AND %s = ?`, table, idCol, pathCol)
	if err := tx.QueryRow(q, idVal, pathVal).Scan(&n); err != nil {
		return false, fmt.Errorf("index: query %s: %w", table, err)
	}
	return n > 0, nil
}

// otherPathFor returns a path already registered for idVal in table other
// than excludePath, or "" if none exists.
func otherPathFor(tx *sql.Tx, table, idCol, idVal, excludePath string) (string, error) {
	q := fmt.Sprintf(`SELECT path FROM %s WHERE %s = ? AND path != ? LIMIT 1`, table, idCol)
	var path string
	err := tx.QueryRow(q, idVal, excludePath).Scan(&path)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: query %s: %w", table, err)
	}
	return path, nil
}

// ReleaseGroupPaths returns every path registered for releaseGroupID, for
// tests and for `lguard show`-style duplicate reports.
func (s *Store) ReleaseGroupPaths(releaseGroupID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return queryPaths(s.db, `SELECT path FROM release_groups WHERE releasegroup_id = ?`, releaseGroupID)
}

// AlbumPaths returns every path registered for albumID.
func (s *Store) AlbumPaths(albumID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return queryPaths(s.db, `SELECT path FROM albums WHERE album_id = ?`, albumID)
}

func queryPaths(db *sql.DB, query, arg string) ([]string, error) {
	rows, err := db.Query(query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

// Entry is one (id, path) row as recorded in either table.
type Entry struct {
	ID   string
	Path string
}

// AllReleaseGroups returns every registered (release_group_id, path) row,
// for `lguard show`.
func (s *Store) AllReleaseGroups() ([]Entry, error) {
	return s.allEntries("release_groups", "releasegroup_id")
}

// AllAlbums returns every registered (album_id, path) row.
func (s *Store) AllAlbums() ([]Entry, error) {
	return s.allEntries("albums", "album_id")
}

func (s *Store) allEntries(table, idCol string) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q := fmt.Sprintf(`SELECT %s, path FROM %s ORDER BY %s, path`, idCol, table, idCol)
	rows, err := s.db.Query(q)
	if err != nil {
		return nil, fmt.Errorf("index: query %s: %w", table, err)
	}
	defer rows.Close()
	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Path); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// DuplicateReleaseGroups returns every release_group_id registered at two or
// more distinct paths. Under AddAlbum's write-time gate this should always be empty for
// data written through AddAlbum; it exists as a defensive integrity check
// `lguard show` runs before printing, not as the primary duplicate signal —
// that signal is the warning AddAlbum itself logs the moment it detects the
// second location, since the second row is deliberately never stored.
func (s *Store) DuplicateReleaseGroups() ([]Duplicate, error) {
	return s.duplicates("release_groups", "releasegroup_id")
}

// DuplicateAlbums is DuplicateReleaseGroups' album-table counterpart.
func (s *Store) DuplicateAlbums() ([]Duplicate, error) {
	return s.duplicates("albums", "album_id")
}

// Duplicate names one identifier registered at more than one path.
type Duplicate struct {
	ID    string
	Paths []string
}

func (s *Store) duplicates(table, idCol string) ([]Duplicate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q := fmt.Sprintf(`SELECT %s FROM %s GROUP BY %s HAVING COUNT(DISTINCT path) > 1 ORDER BY %s`, idCol, table, idCol, idCol)
	rows, err := s.db.Query(q)
	if err != nil {
		return nil, fmt.Errorf("index: query duplicate %s: %w", table, err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	dups := make([]Duplicate, 0, len(ids))
	for _, id := range ids {
		paths, err := queryPaths(s.db, fmt.Sprintf(`SELECT path FROM %s WHERE %s = ?`, table, idCol), id)
		if err != nil {
			return nil, err
		}
		dups = append(dups, Duplicate{ID: id, Paths: paths})
	}
	return dups, nil
}
