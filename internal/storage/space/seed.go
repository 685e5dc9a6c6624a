package space

import (
	"fmt"

	"github.com/maruel/pane/internal/models"
)

// Seed populates an empty space with a starter set of categories, items
// and tags. Refused when the space already has categories.
func (s *Store) Seed() error {
	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM categories`).Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return models.Conflict("Space already contains data")
	}

	tagIDs := make(map[string]int64)
	for _, t := range []models.Tag{
		{Name: "reference", Color: "#8b5cf6"},
		{Name: "tutorial", Color: "#10b981"},
		{Name: "reading-list", Color: "#f59e0b"},
	} {
		if _, err := s.global.Exec(`INSERT OR IGNORE INTO tags (name, color) VALUES (?, ?)`, t.Name, t.Color); err != nil {
			return fmt.Errorf("failed to seed tag %q: %w", t.Name, err)
		}
		var id int64
		if err := s.global.QueryRow(`SELECT id FROM tags WHERE name = ?`, t.Name).Scan(&id); err != nil {
			return fmt.Errorf("failed to resolve seeded tag %q: %w", t.Name, err)
		}
		tagIDs[t.Name] = id
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // No-op after commit.

	type seedItem struct {
		typ     models.ItemType
		title   string
		content string
		desc    string
		tags    []string
	}
	type seedCategory struct {
		name  string
		color string
		items []seedItem
	}
	cats := []seedCategory{
		{
			name: "Development", color: "#6366f1",
			items: []seedItem{
				{models.ItemTypeLink, "Go Documentation", "https://go.dev/doc/", "Official Go language documentation", []string{"reference"}},
				{models.ItemTypeLink, "MDN Web Docs", "https://developer.mozilla.org/", "Web platform reference", []string{"reference"}},
				{models.ItemTypeNote, "Shell one-liners", "`du -sh * | sort -h` lists directory sizes.", "", nil},
			},
		},
		{
			name: "Reading", color: "#10b981",
			items: []seedItem{
				{models.ItemTypeLink, "The Go Blog", "https://go.dev/blog/", "Articles from the Go team", []string{"reading-list", "tutorial"}},
			},
		},
	}

	for ci, c := range cats {
		res, err := tx.Exec(`INSERT INTO categories (name, slug, color, sort_order) VALUES (?, ?, ?, ?)`,
			c.name, Slugify(c.name), c.color, ci+1)
		if err != nil {
			return fmt.Errorf("failed to seed category %q: %w", c.name, err)
		}
		catID, err := res.LastInsertId()
		if err != nil {
			return err
		}
		for ii, it := range c.items {
			var desc *string
			if it.desc != "" {
				desc = &it.desc
			}
			res, err := tx.Exec(`INSERT INTO items (category_id, type, title, content, description, sort_order) VALUES (?, ?, ?, ?, ?, ?)`,
				catID, string(it.typ), it.title, it.content, desc, ii+1)
			if err != nil {
				return fmt.Errorf("failed to seed item %q: %w", it.title, err)
			}
			itemID, err := res.LastInsertId()
			if err != nil {
				return err
			}
			for _, tagName := range it.tags {
				if _, err := tx.Exec(`INSERT OR IGNORE INTO item_tags (item_id, tag_id) VALUES (?, ?)`, itemID, tagIDs[tagName]); err != nil {
					return fmt.Errorf("failed to seed item tag: %w", err)
				}
			}
		}
	}
	return tx.Commit()
}
