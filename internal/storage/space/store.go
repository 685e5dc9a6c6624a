package space

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/maruel/pane/internal/models"
)

// Store exposes the category and item operations of a single space. It is
// bound to the space's cached database handle, the global tag database,
// and the space's storage tree. Obtain one via Registry.Space.
type Store struct {
	slug   string
	db     *sql.DB
	global *sql.DB
	files  *FileTree
}

// Slug returns the space slug this store is bound to.
func (s *Store) Slug() string {
	return s.slug
}

// Files returns the space's storage tree.
func (s *Store) Files() *FileTree {
	return s.files
}

// categoryCols selects a category row plus its direct child count.
const categoryCols = `c.id, c.name, c.slug, c.color, c.sort_order, c.parent_id,
	(SELECT COUNT(*) FROM categories ch WHERE ch.parent_id = c.id),
	c.created_at, c.updated_at`

// itemCols selects a full item row.
const itemCols = `id, category_id, type, title, content, file_path, file_name,
	file_size, mime_type, description, favicon_url, sort_order, is_pinned,
	created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCategory(row rowScanner) (*models.Category, error) {
	var c models.Category
	err := row.Scan(&c.ID, &c.Name, &c.Slug, &c.Color, &c.SortOrder, &c.ParentID,
		&c.ChildrenCount, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func scanItem(row rowScanner) (*models.Item, error) {
	var it models.Item
	err := row.Scan(&it.ID, &it.CategoryID, &it.Type, &it.Title, &it.Content,
		&it.FilePath, &it.FileName, &it.FileSize, &it.MimeType, &it.Description,
		&it.FaviconURL, &it.SortOrder, &it.IsPinned, &it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		return nil, err
	}
	it.Tags = []models.Tag{}
	return &it, nil
}

// tagsForItems loads item→tag associations for the given item ids and
// resolves them against the global tag store. Associations whose tag no
// longer exists are silently dropped.
func (s *Store) tagsForItems(ids []int64) (map[int64][]models.Tag, error) {
	byItem := make(map[int64][]models.Tag, len(ids))
	if len(ids) == 0 {
		return byItem, nil
	}

	tagRows, err := s.global.Query(`SELECT id, name, color FROM tags`)
	if err != nil {
		return nil, fmt.Errorf("failed to read global tags: %w", err)
	}
	defer tagRows.Close()
	tagByID := make(map[int64]models.Tag)
	for tagRows.Next() {
		var t models.Tag
		if err := tagRows.Scan(&t.ID, &t.Name, &t.Color); err != nil {
			return nil, err
		}
		tagByID[t.ID] = t
	}
	if err := tagRows.Err(); err != nil {
		return nil, err
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.db.Query(`SELECT item_id, tag_id FROM item_tags WHERE item_id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to read item tags: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var itemID, tagID int64
		if err := rows.Scan(&itemID, &tagID); err != nil {
			return nil, err
		}
		if t, ok := tagByID[tagID]; ok {
			byItem[itemID] = append(byItem[itemID], t)
		}
	}
	return byItem, rows.Err()
}

// validateTagIDs verifies every id exists in the global tag store. Called
// before any insert transaction begins so tag errors cause no partial
// writes.
func (s *Store) validateTagIDs(ids []int64) error {
	for _, id := range ids {
		var one int
		err := s.global.QueryRow(`SELECT 1 FROM tags WHERE id = ?`, id).Scan(&one)
		if err == sql.ErrNoRows {
			return models.NotFound("Tag").WithDetail("tag_id", id)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// isUniqueViolation reports whether err is a SQLite UNIQUE constraint
// failure.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint")
}
