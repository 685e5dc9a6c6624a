package space

import (
	"database/sql"
	"fmt"

	"github.com/maruel/pane/internal/models"
)

// ListCategories returns every category in the space, ordered by sibling
// position.
func (s *Store) ListCategories() ([]models.Category, error) {
	return s.queryCategories(`SELECT ` + categoryCols + ` FROM categories c ORDER BY c.sort_order, c.name`)
}

// ListChildCategories returns the direct children of parentID, or the root
// categories when parentID is nil.
func (s *Store) ListChildCategories(parentID *int64) ([]models.Category, error) {
	if parentID == nil {
		return s.queryCategories(`SELECT ` + categoryCols + ` FROM categories c WHERE c.parent_id IS NULL ORDER BY c.sort_order, c.name`)
	}
	return s.queryCategories(`SELECT `+categoryCols+` FROM categories c WHERE c.parent_id = ? ORDER BY c.sort_order, c.name`, *parentID)
}

func (s *Store) queryCategories(query string, args ...any) ([]models.Category, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()
	out := []models.Category{}
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// GetCategory loads one category by id.
func (s *Store) GetCategory(id int64) (*models.Category, error) {
	c, err := scanCategory(s.db.QueryRow(`SELECT `+categoryCols+` FROM categories c WHERE c.id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, models.NotFound("Category")
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// CreateCategory creates a category under parentID (nil for a root
// category). The slug is derived from the name; the new category is
// appended after its siblings.
func (s *Store) CreateCategory(name, color string, parentID *int64) (*models.Category, error) {
	if name == "" {
		return nil, models.MissingField("name")
	}
	if color == "" {
		return nil, models.MissingField("color")
	}
	slug := Slugify(name)

	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback() //nolint:errcheck // No-op after commit.

	if parentID != nil {
		var one int
		err := tx.QueryRow(`SELECT 1 FROM categories WHERE id = ?`, *parentID).Scan(&one)
		if err == sql.ErrNoRows {
			return nil, models.NotFound("Parent category")
		}
		if err != nil {
			return nil, err
		}
	}

	var maxOrder sql.NullInt64
	if err := tx.QueryRow(`SELECT MAX(sort_order) FROM categories WHERE parent_id IS ?`, parentID).Scan(&maxOrder); err != nil {
		return nil, err
	}
	res, err := tx.Exec(`INSERT INTO categories (name, slug, color, sort_order, parent_id) VALUES (?, ?, ?, ?, ?)`,
		name, slug, color, maxOrder.Int64+1, parentID)
	if isUniqueViolation(err) {
		return nil, models.Conflict("A category with that name already exists")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create category: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	c, err := scanCategory(tx.QueryRow(`SELECT `+categoryCols+` FROM categories c WHERE c.id = ?`, id))
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return c, nil
}

// UpdateCategory renames, recolors or reparents a category.
//
// Reparenting walks the proposed parent's ancestor chain and refuses any
// parent that is the category itself or one of its descendants.
//
// A name change changes the slug, which changes the on-disk directory of
// every document in the category. The new slug and the rewritten item
// file paths are committed in one transaction; the directory itself is
// renamed only after commit. If that rename fails, a compensating
// transaction restores the old slug and paths so rows and disk stay
// consistent.
func (s *Store) UpdateCategory(id int64, name, color string, parentID models.Optional[int64]) (*models.Category, error) {
	if name == "" {
		return nil, models.MissingField("name")
	}
	if color == "" {
		return nil, models.MissingField("color")
	}
	newSlug := Slugify(name)

	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback() //nolint:errcheck // No-op after commit.

	existing, err := scanCategory(tx.QueryRow(`SELECT `+categoryCols+` FROM categories c WHERE c.id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, models.NotFound("Category")
	}
	if err != nil {
		return nil, err
	}

	newParent := existing.ParentID
	if parentID.Set {
		if parentID.Valid {
			v := parentID.Value
			if err := checkNoCycle(tx, id, v); err != nil {
				return nil, err
			}
			newParent = &v
		} else {
			newParent = nil
		}
	}

	_, err = tx.Exec(`UPDATE categories SET name = ?, slug = ?, color = ?, parent_id = ?, updated_at = datetime('now') WHERE id = ?`,
		name, newSlug, color, newParent, id)
	if isUniqueViolation(err) {
		return nil, models.Conflict("A category with that name already exists")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update category: %w", err)
	}

	oldSlug := existing.Slug
	if newSlug != oldSlug {
		if err := rewritePathPrefix(tx, oldSlug, newSlug); err != nil {
			return nil, err
		}
	}

	updated, err := scanCategory(tx.QueryRow(`SELECT `+categoryCols+` FROM categories c WHERE c.id = ?`, id))
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	if newSlug != oldSlug {
		if err := s.files.RenameCategoryDir(oldSlug, newSlug); err != nil {
			// Roll the rows back to match the directory that never moved.
			if compErr := s.revertSlugChange(id, existing, oldSlug, newSlug); compErr != nil {
				return nil, models.StorageError("failed to rename category directory and to restore previous paths", compErr)
			}
			return nil, err
		}
	}
	return updated, nil
}

// checkNoCycle walks from the proposed parent up to the root and fails if
// the chain passes through id.
func checkNoCycle(tx *sql.Tx, id, parentID int64) error {
	cur := parentID
	for {
		if cur == id {
			return models.Cycle()
		}
		var next *int64
		err := tx.QueryRow(`SELECT parent_id FROM categories WHERE id = ?`, cur).Scan(&next)
		if err == sql.ErrNoRows {
			return models.NotFound("Parent category")
		}
		if err != nil {
			return err
		}
		if next == nil {
			return nil
		}
		cur = *next
	}
}

// rewritePathPrefix swaps the category slug prefix of every item file path
// in the category directory.
func rewritePathPrefix(tx *sql.Tx, oldSlug, newSlug string) error {
	_, err := tx.Exec(`UPDATE items SET file_path = ? || substr(file_path, ?) WHERE file_path LIKE ?`,
		newSlug+"/", len(oldSlug)+2, oldSlug+"/%")
	if err != nil {
		return fmt.Errorf("failed to rewrite item paths: %w", err)
	}
	return nil
}

// revertSlugChange undoes a committed slug rename whose directory rename
// failed.
func (s *Store) revertSlugChange(id int64, previous *models.Category, oldSlug, newSlug string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // No-op after commit.
	if _, err := tx.Exec(`UPDATE categories SET name = ?, slug = ?, color = ?, parent_id = ?, updated_at = datetime('now') WHERE id = ?`,
		previous.Name, oldSlug, previous.Color, previous.ParentID, id); err != nil {
		return err
	}
	if err := rewritePathPrefix(tx, newSlug, oldSlug); err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteCategory removes a category and its whole subtree. Rows go first:
// the descendant closure is computed with a recursive CTE, then the root
// row is deleted and foreign keys cascade through child categories, items
// and tag associations in one transaction. The storage directories of the
// deleted categories are removed afterwards, each independently and
// best-effort.
func (s *Store) DeleteCategory(id int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // No-op after commit.

	rows, err := tx.Query(`WITH RECURSIVE subtree(id, slug) AS (
			SELECT id, slug FROM categories WHERE id = ?
			UNION ALL
			SELECT c.id, c.slug FROM categories c JOIN subtree s ON c.parent_id = s.id
		)
		SELECT slug FROM subtree`, id)
	if err != nil {
		return fmt.Errorf("failed to collect category subtree: %w", err)
	}
	var slugs []string
	for rows.Next() {
		var slug string
		if err := rows.Scan(&slug); err != nil {
			rows.Close()
			return err
		}
		slugs = append(slugs, slug)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()
	if len(slugs) == 0 {
		return models.NotFound("Category")
	}

	if _, err := tx.Exec(`DELETE FROM categories WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete category: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	for _, slug := range slugs {
		if err := s.files.RemoveCategoryDir(slug); err != nil {
			warnStorage("remove category directory", err, "space", s.slug, "category", slug)
		}
	}
	return nil
}

// Breadcrumb returns the ancestor chain of a category from the root down
// to the category itself.
func (s *Store) Breadcrumb(id int64) ([]models.BreadcrumbSegment, error) {
	rows, err := s.db.Query(`WITH RECURSIVE chain(id, name, parent_id) AS (
			SELECT id, name, parent_id FROM categories WHERE id = ?
			UNION ALL
			SELECT c.id, c.name, c.parent_id FROM categories c JOIN chain ch ON c.id = ch.parent_id
		)
		SELECT id, name FROM chain`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to build breadcrumb: %w", err)
	}
	defer rows.Close()
	var chain []models.BreadcrumbSegment
	for rows.Next() {
		var seg models.BreadcrumbSegment
		if err := rows.Scan(&seg.ID, &seg.Name); err != nil {
			return nil, err
		}
		chain = append(chain, seg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(chain) == 0 {
		return nil, models.NotFound("Category")
	}
	// The CTE walks child to root; callers want root first.
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

// ReorderCategories rewrites sibling positions to match the given order:
// the first id gets position 1, the second 2, and so on. Ids that do not
// exist are skipped without disturbing the numbering of the rest.
func (s *Store) ReorderCategories(orderedIDs []int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // No-op after commit.
	for i, id := range orderedIDs {
		if _, err := tx.Exec(`UPDATE categories SET sort_order = ?, updated_at = datetime('now') WHERE id = ?`, i+1, id); err != nil {
			return fmt.Errorf("failed to reorder categories: %w", err)
		}
	}
	return tx.Commit()
}
