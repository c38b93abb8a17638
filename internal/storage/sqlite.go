package storage

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// dbFile is the database name inside the configured data directory.
const dbFile = "keyprefs.db"

// Store wraps a SQLite database holding namespaced preferences and page layouts.
type Store struct {
	db *sql.DB
}

// pragmas run once per connection, in order, before migrations.
var pragmas = []struct {
	stmt string
	what string
}{
	// The CLI and a running keyboard process may hold keyprefs.db at the same
	// time; a device switch from one must wait out a layout commit from the other.
	{"PRAGMA busy_timeout = 5000", "setting busy timeout"},
	// Device and currency reads stay unblocked while a layout commit is written.
	{"PRAGMA journal_mode = WAL", "setting journal mode"},
	// A selected device survives power loss once SetPref returns.
	{"PRAGMA synchronous = FULL", "setting synchronous mode"},
}

// Open opens (or creates) keyprefs.db in dataDir and brings its schema up to date.
// Pass ":memory:" as dataDir for an in-memory database (used by tests).
func Open(dataDir string) (*Store, error) {
	dsn := ":memory:"
	if dataDir != ":memory:" {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, dbFile)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// One connection: ":memory:" lives only as long as it does, and layout
	// commits never race each other for the write lock inside this process.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	if err := s.db.Ping(); err != nil {
		return fmt.Errorf("pinging database: %w", err)
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p.stmt); err != nil {
			return fmt.Errorf("%s: %w", p.what, err)
		}
	}
	if err := s.migrate(); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

type migration struct {
	version int
	name    string
}

// pendingMigrations lists embedded migrations not yet recorded in
// schema_version, lowest version first.
func (s *Store) pendingMigrations() ([]migration, error) {
	applied, err := s.AppliedMigrations()
	if err != nil {
		return nil, fmt.Errorf("reading schema_version: %w", err)
	}
	done := make(map[int]bool, len(applied))
	for _, v := range applied {
		done[v] = true
	}

	names, err := fs.Glob(migrationsFS, "migrations/*.sql")
	if err != nil {
		return nil, fmt.Errorf("listing migrations: %w", err)
	}

	var pending []migration
	for _, name := range names {
		v, err := parseMigrationVersion(path.Base(name))
		if err != nil {
			return nil, err
		}
		if !done[v] {
			pending = append(pending, migration{version: v, name: name})
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].version < pending[j].version })
	return pending, nil
}

// migrate applies each pending migration in its own transaction together with
// its schema_version row, so a failed upgrade leaves keyprefs.db on the last
// good version.
func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	pending, err := s.pendingMigrations()
	if err != nil {
		return err
	}
	for _, m := range pending {
		if err := s.apply(m); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) apply(m migration) error {
	body, err := migrationsFS.ReadFile(m.name)
	if err != nil {
		return fmt.Errorf("reading migration %s: %w", m.name, err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning migration %d: %w", m.version, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(string(body)); err != nil {
		return fmt.Errorf("applying migration %d: %w", m.version, err)
	}
	if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", m.version); err != nil {
		return fmt.Errorf("recording migration %d: %w", m.version, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing migration %d: %w", m.version, err)
	}
	return nil
}

// parseMigrationVersion reads the leading "NNN_" of a migration file name.
func parseMigrationVersion(filename string) (int, error) {
	prefix, _, ok := strings.Cut(filename, "_")
	if !ok {
		return 0, fmt.Errorf("migration %q: missing version prefix", filename)
	}
	v, err := strconv.Atoi(prefix)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("migration %q: bad version %q", filename, prefix)
	}
	return v, nil
}


// AppliedMigrations returns the list of applied migration versions in ascending order.
func (s *Store) AppliedMigrations() ([]int, error) {
	rows, err := s.db.Query("SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// --- Preferences ---

// GetPref returns the value stored under namespace/key. ok is false when the
// key has never been written.
func (s *Store) GetPref(namespace, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM preferences WHERE namespace = ? AND key = ?", namespace, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (s *Store) SetPref(namespace, key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO preferences (namespace, key, value, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(namespace, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		namespace, key, value, time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

func (s *Store) HasPref(namespace, key string) (bool, error) {
	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM preferences WHERE namespace = ? AND key = ?", namespace, key).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListPrefs returns every preference in namespace ordered by key.
func (s *Store) ListPrefs(namespace string) ([]Preference, error) {
	rows, err := s.db.Query(`
		SELECT namespace, key, value, updated_at
		FROM preferences WHERE namespace = ? ORDER BY key ASC`, namespace,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Preference
	for rows.Next() {
		var p Preference
		var updatedAt string
		if err := rows.Scan(&p.Namespace, &p.Key, &p.Value, &updatedAt); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339, updatedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing updated_at: %w", err)
		}
		p.UpdatedAt = t
		results = append(results, p)
	}
	return results, rows.Err()
}

// --- Layouts ---

func (s *Store) SaveLayout(page, content string) error {
	_, err := s.db.Exec(`
		INSERT INTO layouts (page, content, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(page) DO UPDATE SET content = excluded.content, updated_at = excluded.updated_at`,
		page, content, time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// GetLayout returns the persisted layout for page, or ErrNotFound if none
// has been committed yet.
func (s *Store) GetLayout(page string) (Layout, error) {
	var l Layout
	var updatedAt string
	err := s.db.QueryRow("SELECT page, content, updated_at FROM layouts WHERE page = ?", page).
		Scan(&l.Page, &l.Content, &updatedAt)
	if err == sql.ErrNoRows {
		return Layout{}, ErrNotFound
	}
	if err != nil {
		return Layout{}, err
	}
	t, err := time.Parse(time.RFC3339, updatedAt)
	if err != nil {
		return Layout{}, fmt.Errorf("parsing updated_at: %w", err)
	}
	l.UpdatedAt = t
	return l, nil
}
