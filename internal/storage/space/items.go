package space

import (
	"database/sql"
	"fmt"

	"github.com/maruel/pane/internal/models"
)

// ItemFilter narrows a listing. Zero value lists everything.
type ItemFilter struct {
	CategoryID *int64
	Type       models.ItemType
	Search     string
}

// ItemCreate carries the fields of a new link or note item.
type ItemCreate struct {
	CategoryID  int64
	Type        models.ItemType
	Title       string
	Content     *string
	Description *string
	FaviconURL  *string
	Tags        []int64
}

// DocumentCreate carries an uploaded file and its metadata.
type DocumentCreate struct {
	CategoryID  int64
	Title       string
	Description *string
	FileName    string
	MimeType    string
	Data        []byte
	Tags        []int64
}

// ItemUpdate is a partial update. Each field distinguishes absent (left
// alone) from explicitly null (cleared).
type ItemUpdate struct {
	Title       models.Optional[string]
	Content     models.Optional[string]
	Description models.Optional[string]
	FaviconURL  models.Optional[string]
	CategoryID  models.Optional[int64]
	IsPinned    models.Optional[bool]
	Tags        models.Optional[[]int64]
}

// ListItems returns items matching the filter, pinned first, then by
// sibling position, with tags hydrated from the global store.
func (s *Store) ListItems(f ItemFilter) ([]models.Item, error) {
	query := `SELECT ` + itemCols + ` FROM items WHERE 1=1`
	var args []any
	if f.CategoryID != nil {
		query += ` AND category_id = ?`
		args = append(args, *f.CategoryID)
	}
	if f.Type != "" {
		if !f.Type.Valid() {
			return nil, models.BadRequest("Invalid item type").WithDetail("type", string(f.Type))
		}
		query += ` AND type = ?`
		args = append(args, string(f.Type))
	}
	if f.Search != "" {
		query += ` AND (title LIKE ? OR content LIKE ? OR description LIKE ?)`
		pat := "%" + f.Search + "%"
		args = append(args, pat, pat, pat)
	}
	query += ` ORDER BY is_pinned DESC, sort_order, created_at`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()
	items := []models.Item{}
	var ids []int64
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *it)
		ids = append(ids, it.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	tags, err := s.tagsForItems(ids)
	if err != nil {
		return nil, err
	}
	for i := range items {
		if t, ok := tags[items[i].ID]; ok {
			items[i].Tags = t
		}
	}
	return items, nil
}

// GetItem loads one item with its tags.
func (s *Store) GetItem(id int64) (*models.Item, error) {
	it, err := scanItem(s.db.QueryRow(`SELECT `+itemCols+` FROM items WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, models.NotFound("Item")
	}
	if err != nil {
		return nil, err
	}
	tags, err := s.tagsForItems([]int64{id})
	if err != nil {
		return nil, err
	}
	if t, ok := tags[id]; ok {
		it.Tags = t
	}
	return it, nil
}

// CreateItem creates a link or note item. Every referenced tag is
// validated against the global store before the transaction begins, so a
// bad tag id fails the whole request without touching the database.
func (s *Store) CreateItem(req ItemCreate) (*models.Item, error) {
	if req.Title == "" {
		return nil, models.MissingField("title")
	}
	if !req.Type.Valid() || req.Type == models.ItemTypeDocument {
		return nil, models.BadRequest("Invalid item type").WithDetail("type", string(req.Type))
	}
	if err := s.validateTagIDs(req.Tags); err != nil {
		return nil, err
	}
	if _, err := s.GetCategory(req.CategoryID); err != nil {
		return nil, err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback() //nolint:errcheck // No-op after commit.

	var maxOrder sql.NullInt64
	if err := tx.QueryRow(`SELECT MAX(sort_order) FROM items WHERE category_id = ?`, req.CategoryID).Scan(&maxOrder); err != nil {
		return nil, err
	}
	res, err := tx.Exec(`INSERT INTO items (category_id, type, title, content, description, favicon_url, sort_order)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		req.CategoryID, string(req.Type), req.Title, req.Content, req.Description, req.FaviconURL, maxOrder.Int64+1)
	if err != nil {
		return nil, fmt.Errorf("failed to create item: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	for _, tagID := range req.Tags {
		if _, err := tx.Exec(`INSERT OR IGNORE INTO item_tags (item_id, tag_id) VALUES (?, ?)`, id, tagID); err != nil {
			return nil, fmt.Errorf("failed to tag item: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.GetItem(id)
}

// CreateDocument stores an uploaded file in the category's storage
// directory and creates the matching item row. The file is written first;
// if the row insert then fails, the file is removed so no orphan remains.
func (s *Store) CreateDocument(req DocumentCreate) (*models.Item, error) {
	if req.FileName == "" {
		return nil, models.MissingField("file")
	}
	if err := s.validateTagIDs(req.Tags); err != nil {
		return nil, err
	}
	cat, err := s.GetCategory(req.CategoryID)
	if err != nil {
		return nil, err
	}
	title := req.Title
	if title == "" {
		title = req.FileName
	}
	mime := req.MimeType
	if mime == "" {
		mime = "application/octet-stream"
	}

	rel, err := s.files.SaveFile(cat.Slug, req.FileName, req.Data)
	if err != nil {
		return nil, err
	}

	id, err := s.insertDocumentRow(req, rel, title, mime)
	if err != nil {
		if delErr := s.files.DeleteFile(rel); delErr != nil {
			warnStorage("remove file after failed insert", delErr, "space", s.slug, "path", rel)
		}
		return nil, err
	}
	return s.GetItem(id)
}

func (s *Store) insertDocumentRow(req DocumentCreate, rel, title, mime string) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback() //nolint:errcheck // No-op after commit.

	var maxOrder sql.NullInt64
	if err := tx.QueryRow(`SELECT MAX(sort_order) FROM items WHERE category_id = ?`, req.CategoryID).Scan(&maxOrder); err != nil {
		return 0, err
	}
	res, err := tx.Exec(`INSERT INTO items (category_id, type, title, description, file_path, file_name, file_size, mime_type, sort_order)
		VALUES (?, 'document', ?, ?, ?, ?, ?, ?, ?)`,
		req.CategoryID, title, req.Description, rel, req.FileName, len(req.Data), mime, maxOrder.Int64+1)
	if err != nil {
		return 0, fmt.Errorf("failed to create document item: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	for _, tagID := range req.Tags {
		if _, err := tx.Exec(`INSERT OR IGNORE INTO item_tags (item_id, tag_id) VALUES (?, ?)`, id, tagID); err != nil {
			return 0, fmt.Errorf("failed to tag item: %w", err)
		}
	}
	return id, tx.Commit()
}

// UpdateItem applies a partial update. Absent fields are left alone; null
// clears nullable fields. Moving a document to another category rewrites
// its stored path inside the row transaction and relocates the file only
// after commit; the move is idempotent so a crash between the two is
// repaired by retrying.
func (s *Store) UpdateItem(id int64, req ItemUpdate) (*models.Item, error) {
	if req.Title.Set && !req.Title.Valid {
		return nil, models.BadRequest("title cannot be null")
	}
	if req.CategoryID.Set && !req.CategoryID.Valid {
		return nil, models.BadRequest("category_id cannot be null")
	}
	if req.IsPinned.Set && !req.IsPinned.Valid {
		return nil, models.BadRequest("is_pinned cannot be null")
	}
	if req.Tags.Set && req.Tags.Valid {
		if err := s.validateTagIDs(req.Tags.Value); err != nil {
			return nil, err
		}
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback() //nolint:errcheck // No-op after commit.

	existing, err := scanItem(tx.QueryRow(`SELECT `+itemCols+` FROM items WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, models.NotFound("Item")
	}
	if err != nil {
		return nil, err
	}

	set := `title = COALESCE(?, title), updated_at = datetime('now')`
	args := []any{optArg(req.Title)}
	for _, f := range []struct {
		col string
		v   models.Optional[string]
	}{
		{"content", req.Content},
		{"description", req.Description},
		{"favicon_url", req.FaviconURL},
	} {
		if f.v.Set {
			set += `, ` + f.col + ` = ?`
			args = append(args, optArg(f.v))
		}
	}
	if req.IsPinned.Set {
		set += `, is_pinned = ?`
		args = append(args, req.IsPinned.Value)
	}

	var pendingMove *struct {
		oldRel, newSlug string
	}
	if req.CategoryID.Set && req.CategoryID.Value != existing.CategoryID {
		var slug string
		err := tx.QueryRow(`SELECT slug FROM categories WHERE id = ?`, req.CategoryID.Value).Scan(&slug)
		if err == sql.ErrNoRows {
			return nil, models.NotFound("Category")
		}
		if err != nil {
			return nil, err
		}
		set += `, category_id = ?`
		args = append(args, req.CategoryID.Value)
		if existing.FilePath != nil {
			set += `, file_path = ?`
			args = append(args, s.files.PathFor(*existing.FilePath, slug))
			pendingMove = &struct{ oldRel, newSlug string }{*existing.FilePath, slug}
		}
	}

	args = append(args, id)
	if _, err := tx.Exec(`UPDATE items SET `+set+` WHERE id = ?`, args...); err != nil {
		return nil, fmt.Errorf("failed to update item: %w", err)
	}

	if req.Tags.Set {
		if _, err := tx.Exec(`DELETE FROM item_tags WHERE item_id = ?`, id); err != nil {
			return nil, fmt.Errorf("failed to clear item tags: %w", err)
		}
		if req.Tags.Valid {
			for _, tagID := range req.Tags.Value {
				if _, err := tx.Exec(`INSERT OR IGNORE INTO item_tags (item_id, tag_id) VALUES (?, ?)`, id, tagID); err != nil {
					return nil, fmt.Errorf("failed to tag item: %w", err)
				}
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	if pendingMove != nil {
		if _, err := s.files.MoveFile(pendingMove.oldRel, pendingMove.newSlug); err != nil {
			warnStorage("move file after category change", err, "space", s.slug, "item", id)
		}
	}
	return s.GetItem(id)
}

// optArg maps an Optional string to its SQL argument: nil when absent or
// null, the value otherwise.
func optArg(o models.Optional[string]) any {
	if o.Set && o.Valid {
		return o.Value
	}
	return nil
}

// DeleteItem removes an item row and, for documents, its stored file. The
// row delete is authoritative; a failed file delete is logged and the
// item is still gone.
func (s *Store) DeleteItem(id int64) error {
	it, err := scanItem(s.db.QueryRow(`SELECT `+itemCols+` FROM items WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return models.NotFound("Item")
	}
	if err != nil {
		return err
	}
	if it.FilePath != nil {
		if err := s.files.DeleteFile(*it.FilePath); err != nil {
			warnStorage("remove file of deleted item", err, "space", s.slug, "item", id)
		}
	}
	if _, err := s.db.Exec(`DELETE FROM items WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}
	return nil
}

// ReorderItems applies a batch of position and category assignments in a
// single transaction. Moves whose item or target category no longer
// exists are skipped. Document files are relocated after commit with
// idempotent moves, so retrying a batch interrupted between commit and
// relocation converges disk to the committed rows.
func (s *Store) ReorderItems(moves []models.ItemMove) error {
	type fileMove struct {
		itemID          int64
		oldRel, newSlug string
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // No-op after commit.

	var pending []fileMove
	for _, m := range moves {
		it, err := scanItem(tx.QueryRow(`SELECT `+itemCols+` FROM items WHERE id = ?`, m.ID))
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return err
		}
		if m.CategoryID != it.CategoryID {
			var slug string
			err := tx.QueryRow(`SELECT slug FROM categories WHERE id = ?`, m.CategoryID).Scan(&slug)
			if err == sql.ErrNoRows {
				continue
			}
			if err != nil {
				return err
			}
			if it.FilePath != nil {
				newRel := s.files.PathFor(*it.FilePath, slug)
				if _, err := tx.Exec(`UPDATE items SET category_id = ?, sort_order = ?, file_path = ?, updated_at = datetime('now') WHERE id = ?`,
					m.CategoryID, m.SortOrder, newRel, m.ID); err != nil {
					return fmt.Errorf("failed to move item: %w", err)
				}
				pending = append(pending, fileMove{m.ID, *it.FilePath, slug})
				continue
			}
		}
		if _, err := tx.Exec(`UPDATE items SET category_id = ?, sort_order = ?, updated_at = datetime('now') WHERE id = ?`,
			m.CategoryID, m.SortOrder, m.ID); err != nil {
			return fmt.Errorf("failed to reorder item: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	for _, fm := range pending {
		if _, err := s.files.MoveFile(fm.oldRel, fm.newSlug); err != nil {
			warnStorage("move file after reorder", err, "space", s.slug, "item", fm.itemID)
		}
	}
	return nil
}
