package space

import (
	"database/sql"
	"fmt"
)

// EnsureSchema creates or upgrades the schema of a space database. It is
// idempotent: tables and indexes are created only if absent and column
// migrations probe the existing shape before issuing ALTER statements, so
// running it against any prior schema version is safe and never destructive.
//
// displayName, when non-empty, is written to the meta table only if no
// display name is recorded yet.
func EnsureSchema(db *sql.DB, displayName string) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS categories (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			slug TEXT NOT NULL UNIQUE,
			color TEXT NOT NULL DEFAULT '#6366f1',
			sort_order INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL DEFAULT (datetime('now')),
			updated_at TEXT NOT NULL DEFAULT (datetime('now'))
		)`,
		`CREATE TABLE IF NOT EXISTS items (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			category_id INTEGER NOT NULL REFERENCES categories(id) ON DELETE CASCADE,
			type TEXT NOT NULL CHECK(type IN ('link', 'note', 'document')),
			title TEXT NOT NULL,
			content TEXT,
			file_path TEXT,
			file_name TEXT,
			file_size INTEGER,
			mime_type TEXT,
			description TEXT,
			favicon_url TEXT,
			sort_order INTEGER NOT NULL DEFAULT 0,
			is_pinned INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL DEFAULT (datetime('now')),
			updated_at TEXT NOT NULL DEFAULT (datetime('now'))
		)`,
		`CREATE TABLE IF NOT EXISTS item_tags (
			item_id INTEGER NOT NULL REFERENCES items(id) ON DELETE CASCADE,
			tag_id INTEGER NOT NULL,
			PRIMARY KEY (item_id, tag_id)
		)`,
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_items_category ON items(category_id)`,
		`CREATE INDEX IF NOT EXISTS idx_items_sort ON items(category_id, sort_order)`,
		`CREATE INDEX IF NOT EXISTS idx_categories_sort ON categories(sort_order)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}

	// Migration: add favicon_url for link items.
	ok, err := hasColumn(db, "items", "favicon_url")
	if err != nil {
		return err
	}
	if !ok {
		if _, err := db.Exec(`ALTER TABLE items ADD COLUMN favicon_url TEXT`); err != nil {
			return fmt.Errorf("failed to add favicon_url column: %w", err)
		}
	}

	// Migration: add parent_id for hierarchical categories.
	ok, err = hasColumn(db, "categories", "parent_id")
	if err != nil {
		return err
	}
	if !ok {
		stmts := []string{
			`ALTER TABLE categories ADD COLUMN parent_id INTEGER REFERENCES categories(id) ON DELETE CASCADE`,
			`CREATE INDEX idx_categories_parent ON categories(parent_id)`,
			`CREATE INDEX idx_categories_parent_sort ON categories(parent_id, sort_order)`,
		}
		for _, stmt := range stmts {
			if _, err := db.Exec(stmt); err != nil {
				return fmt.Errorf("failed to add parent_id column: %w", err)
			}
		}
	}

	if displayName != "" {
		existing, err := GetMeta(db, "display_name")
		if err != nil {
			return err
		}
		if existing == "" {
			if err := SetMeta(db, "display_name", displayName); err != nil {
				return err
			}
		}
	}
	return nil
}

// EnsureGlobalSchema creates the cross-space tag table in the global
// database. Idempotent, including the additive color migration for
// installations that predate tag colors.
func EnsureGlobalSchema(db *sql.DB) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS tags (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		color TEXT NOT NULL DEFAULT '#8b5cf6'
	)`); err != nil {
		return fmt.Errorf("failed to create global tags table: %w", err)
	}
	ok, err := hasColumn(db, "tags", "color")
	if err != nil {
		return err
	}
	if !ok {
		if _, err := db.Exec(`ALTER TABLE tags ADD COLUMN color TEXT NOT NULL DEFAULT '#8b5cf6'`); err != nil {
			return fmt.Errorf("failed to add tag color column: %w", err)
		}
	}
	return nil
}

// MigrateTagsToGlobal moves a space's local tags into the global tag store.
//
// Spaces created before tags became global own a local tags table; its
// presence is the idempotency guard. Local tags are copied into the global
// table with insert-or-ignore on name (first color wins), then in a single
// transaction on the space database the local tags and item_tags tables are
// dropped, item_tags is recreated without a foreign key to tags, and every
// association is reinserted remapped to its global tag id. Associations
// whose tag no longer resolves are discarded. Running this twice is a no-op.
func MigrateTagsToGlobal(spaceDB, globalDB *sql.DB) error {
	ok, err := hasTable(spaceDB, "tags")
	if err != nil {
		return err
	}
	if !ok {
		return nil // Already migrated.
	}

	rows, err := spaceDB.Query(`SELECT id, name, color FROM tags`)
	if err != nil {
		return fmt.Errorf("failed to read local tags: %w", err)
	}
	type localTag struct {
		id          int64
		name, color string
	}
	var locals []localTag
	for rows.Next() {
		var t localTag
		if err := rows.Scan(&t.id, &t.name, &t.color); err != nil {
			rows.Close()
			return err
		}
		locals = append(locals, t)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	// Build the old-id to global-id map.
	idMap := make(map[int64]int64, len(locals))
	for _, t := range locals {
		if _, err := globalDB.Exec(`INSERT OR IGNORE INTO tags (name, color) VALUES (?, ?)`, t.name, t.color); err != nil {
			return fmt.Errorf("failed to copy tag %q to global store: %w", t.name, err)
		}
		var globalID int64
		if err := globalDB.QueryRow(`SELECT id FROM tags WHERE name = ?`, t.name).Scan(&globalID); err != nil {
			return fmt.Errorf("failed to resolve global id for tag %q: %w", t.name, err)
		}
		idMap[t.id] = globalID
	}

	tx, err := spaceDB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // No-op after commit.

	assocRows, err := tx.Query(`SELECT item_id, tag_id FROM item_tags`)
	if err != nil {
		return fmt.Errorf("failed to read item tags: %w", err)
	}
	type assoc struct{ itemID, tagID int64 }
	var assocs []assoc
	for assocRows.Next() {
		var a assoc
		if err := assocRows.Scan(&a.itemID, &a.tagID); err != nil {
			assocRows.Close()
			return err
		}
		assocs = append(assocs, a)
	}
	if err := assocRows.Err(); err != nil {
		assocRows.Close()
		return err
	}
	assocRows.Close()

	// The old item_tags carries a foreign key to the local tags table, so
	// both must go before item_tags can reference global ids.
	stmts := []string{
		`DROP TABLE IF EXISTS item_tags`,
		`DROP TABLE IF EXISTS tags`,
		`CREATE TABLE IF NOT EXISTS item_tags (
			item_id INTEGER NOT NULL REFERENCES items(id) ON DELETE CASCADE,
			tag_id INTEGER NOT NULL,
			PRIMARY KEY (item_id, tag_id)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("failed to rebuild item_tags: %w", err)
		}
	}
	for _, a := range assocs {
		globalID, ok := idMap[a.tagID]
		if !ok {
			continue // Tag no longer resolves; drop the association.
		}
		if _, err := tx.Exec(`INSERT OR IGNORE INTO item_tags (item_id, tag_id) VALUES (?, ?)`, a.itemID, globalID); err != nil {
			return fmt.Errorf("failed to remap item tag: %w", err)
		}
	}
	return tx.Commit()
}

// SetMeta writes a meta key, overwriting any existing value.
func SetMeta(db *sql.DB, key, value string) error {
	_, err := db.Exec(`INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)`, key, value)
	return err
}

// GetMeta reads a meta key, returning "" when absent.
func GetMeta(db *sql.DB, key string) (string, error) {
	var value string
	err := db.QueryRow(`SELECT value FROM meta WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// hasColumn probes table_info for the presence of a column.
func hasColumn(db *sql.DB, table, column string) (bool, error) {
	rows, err := db.Query(fmt.Sprintf(`PRAGMA table_info(%s)`, table))
	if err != nil {
		return false, fmt.Errorf("failed to probe %s columns: %w", table, err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			cid       int
			name, typ string
			notNull   int
			dflt      any
			pk        int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}

// hasTable reports whether a table exists.
func hasTable(db *sql.DB, table string) (bool, error) {
	var name string
	err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
