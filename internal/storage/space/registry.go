package space

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/maruel/pane/internal/models"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
	_ "modernc.org/sqlite" // Registers the "sqlite" driver.
)

// globalDBFile is the database holding the cross-space tag store.
const globalDBFile = "global.db"

// Registry owns every database handle in the process: one per space plus
// the global tag database. Handles are opened lazily, migrated on open,
// cached for the process lifetime and shared across concurrent requests.
// Close must be called exactly once on shutdown.
type Registry struct {
	dataDir     string
	storageRoot string
	collator    *collate.Collator

	mu     sync.RWMutex
	spaces map[string]*sql.DB
	global *sql.DB

	closeOnce sync.Once
	closeErr  error
}

// NewRegistry opens a registry over dataDir (database files) and
// storageRoot (document trees), creating both directories and the global
// tag database as needed.
func NewRegistry(dataDir, storageRoot string) (*Registry, error) {
	dataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, err
	}
	storageRoot, err = filepath.Abs(storageRoot)
	if err != nil {
		return nil, err
	}
	for _, dir := range []string{dataDir, storageRoot} {
		if err := os.MkdirAll(dir, 0o755); err != nil { //nolint:gosec // G301: 0o755 is intentional for data directories
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	global, err := openSQLite(filepath.Join(dataDir, globalDBFile))
	if err != nil {
		return nil, fmt.Errorf("failed to open global database: %w", err)
	}
	if err := EnsureGlobalSchema(global); err != nil {
		_ = global.Close()
		return nil, err
	}
	return &Registry{
		dataDir:     dataDir,
		storageRoot: storageRoot,
		collator:    collate.New(language.Und, collate.IgnoreCase),
		spaces:      make(map[string]*sql.DB),
		global:      global,
	}, nil
}

// openSQLite opens a SQLite database with write-ahead logging so readers
// are not blocked by the single writer. modernc.org/sqlite driver name is
// "sqlite"; the _pragma DSN options apply to every pooled connection.
func openSQLite(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Global returns the handle of the global tag database.
func (r *Registry) Global() *sql.DB {
	return r.global
}

// StorageRoot returns the absolute root of all space storage trees.
func (r *Registry) StorageRoot() string {
	return r.storageRoot
}

func (r *Registry) dbPath(slug string) string {
	return filepath.Join(r.dataDir, slug+".db")
}

// SlugExists reports whether a space database file exists for slug.
func (r *Registry) SlugExists(slug string) bool {
	if !ValidSlug(slug) || slug+".db" == globalDBFile {
		return false
	}
	_, err := os.Stat(r.dbPath(slug))
	return err == nil
}

// DB returns the cached handle for a space, opening and migrating it on
// first use. Fails with a NotFound error when the slug is invalid or no
// backing file exists.
func (r *Registry) DB(slug string) (*sql.DB, error) {
	if !r.SlugExists(slug) {
		return nil, models.NotFound("Space")
	}

	r.mu.RLock()
	if db, ok := r.spaces[slug]; ok {
		r.mu.RUnlock()
		return db, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if db, ok := r.spaces[slug]; ok {
		return db, nil
	}
	db, err := r.openSpace(slug, "")
	if err != nil {
		return nil, err
	}
	r.spaces[slug] = db
	return db, nil
}

// openSpace opens one space database and brings its schema current.
func (r *Registry) openSpace(slug, displayName string) (*sql.DB, error) {
	db, err := openSQLite(r.dbPath(slug))
	if err != nil {
		return nil, fmt.Errorf("failed to open space %s: %w", slug, err)
	}
	if err := EnsureSchema(db, displayName); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate space %s: %w", slug, err)
	}
	if err := MigrateTagsToGlobal(db, r.global); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to globalize tags for space %s: %w", slug, err)
	}
	return db, nil
}

// CreateDB creates the backing file for a new space, applies the schema
// with the given display name, caches and returns the handle. The caller
// must guarantee the slug does not collide; use UniqueSlug for that.
func (r *Registry) CreateDB(slug, displayName string) (*sql.DB, error) {
	if err := CheckSlug(slug); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if db, ok := r.spaces[slug]; ok {
		return db, nil
	}
	db, err := r.openSpace(slug, displayName)
	if err != nil {
		return nil, err
	}
	r.spaces[slug] = db
	return db, nil
}

// CloseDB evicts and closes one cached space handle. Closing an uncached
// slug is a no-op.
func (r *Registry) CloseDB(slug string) error {
	r.mu.Lock()
	db, ok := r.spaces[slug]
	delete(r.spaces, slug)
	r.mu.Unlock()
	if !ok {
		return nil
	}
	return db.Close()
}

// Close closes every cached handle, including the global database.
// Safe to call more than once; only the first call does the work.
// Individual close failures are collected, not fatal to the rest.
func (r *Registry) Close() error {
	r.closeOnce.Do(func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		var errs []error
		for slug, db := range r.spaces {
			if err := db.Close(); err != nil {
				errs = append(errs, fmt.Errorf("space %s: %w", slug, err))
			}
		}
		r.spaces = make(map[string]*sql.DB)
		if err := r.global.Close(); err != nil {
			errs = append(errs, fmt.Errorf("global: %w", err))
		}
		r.closeErr = errors.Join(errs...)
	})
	return r.closeErr
}

// ListSpaces enumerates every valid space database, reading each display
// name from meta (falling back to the slug). Unreadable or corrupt files
// are skipped with a warning rather than failing the whole listing. The
// result is ordered by display name, case-insensitively and locale-aware.
func (r *Registry) ListSpaces() ([]models.Space, error) {
	entries, err := os.ReadDir(r.dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read data directory: %w", err)
	}
	var spaces []models.Space
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".db") || name == globalDBFile {
			continue
		}
		slug := strings.TrimSuffix(name, ".db")
		if !ValidSlug(slug) {
			continue
		}
		db, err := r.DB(slug)
		if err != nil {
			slog.Warn("Skipping unreadable space database", "slug", slug, "err", err)
			continue
		}
		displayName, err := GetMeta(db, "display_name")
		if err != nil {
			slog.Warn("Skipping space with unreadable meta", "slug", slug, "err", err)
			continue
		}
		if displayName == "" {
			displayName = slug
		}
		spaces = append(spaces, models.Space{Slug: slug, Name: displayName})
	}
	sort.SliceStable(spaces, func(i, j int) bool {
		return r.collator.CompareString(spaces[i].Name, spaces[j].Name) < 0
	})
	return spaces, nil
}

// countSpaceFiles counts the space database files on disk, readable or
// not. The last-space guard in DeleteSpace uses this rather than
// ListSpaces so an unreadable space still counts as one.
func (r *Registry) countSpaceFiles() (int, error) {
	entries, err := os.ReadDir(r.dataDir)
	if err != nil {
		return 0, fmt.Errorf("failed to read data directory: %w", err)
	}
	n := 0
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".db") || name == globalDBFile {
			continue
		}
		if ValidSlug(strings.TrimSuffix(name, ".db")) {
			n++
		}
	}
	return n, nil
}

// UniqueSlug derives a slug from name and appends a numeric suffix until
// it does not collide with an existing space.
func (r *Registry) UniqueSlug(name string) string {
	base := Slugify(name)
	slug := base
	for suffix := 2; r.SlugExists(slug) || slug+".db" == globalDBFile; suffix++ {
		slug = fmt.Sprintf("%s-%d", base, suffix)
	}
	return slug
}

// CreateSpace creates a new space from a display name: generates a unique
// slug, creates and migrates the database, and creates the storage
// subtree.
func (r *Registry) CreateSpace(name string) (models.Space, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Space{}, models.MissingField("name")
	}
	slug := r.UniqueSlug(name)
	if _, err := r.CreateDB(slug, name); err != nil {
		return models.Space{}, err
	}
	if err := os.MkdirAll(filepath.Join(r.storageRoot, slug), 0o755); err != nil { //nolint:gosec // G301: 0o755 is intentional for data directories
		return models.Space{}, models.StorageError("failed to create space storage directory", err)
	}
	return models.Space{Slug: slug, Name: name}, nil
}

// RenameSpace overwrites a space's display name.
func (r *Registry) RenameSpace(slug, name string) (models.Space, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Space{}, models.MissingField("name")
	}
	db, err := r.DB(slug)
	if err != nil {
		return models.Space{}, err
	}
	if err := SetMeta(db, "display_name", name); err != nil {
		return models.Space{}, err
	}
	return models.Space{Slug: slug, Name: name}, nil
}

// DeleteSpace closes and removes a space: the database file with its WAL
// sidecars, and the storage subtree. The last remaining space cannot be
// deleted.
func (r *Registry) DeleteSpace(slug string) error {
	if !r.SlugExists(slug) {
		return models.NotFound("Space")
	}
	n, err := r.countSpaceFiles()
	if err != nil {
		return err
	}
	if n <= 1 {
		return models.BadRequest("Cannot delete the last space")
	}
	if err := r.CloseDB(slug); err != nil {
		slog.Warn("Failed to close space database before deletion", "slug", slug, "err", err)
	}
	for _, ext := range []string{".db", ".db-wal", ".db-shm", ".db-journal"} {
		p := filepath.Join(r.dataDir, slug+ext)
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return models.StorageError("failed to remove space database", err)
		}
	}
	return newFileTree(r.storageRoot, slug).removeAll()
}

// Space returns a Store bound to one space's database handle and storage
// tree.
func (r *Registry) Space(slug string) (*Store, error) {
	db, err := r.DB(slug)
	if err != nil {
		return nil, err
	}
	return &Store{
		slug:   slug,
		db:     db,
		global: r.global,
		files:  newFileTree(r.storageRoot, slug),
	}, nil
}
