package space

import (
	"fmt"
	"strings"

	"github.com/maruel/pane/internal/models"
)

// Tags live in the global database and are shared by every space; these
// operations therefore hang off the registry, not off a space store.

// ListTags returns every tag, ordered by name.
func (r *Registry) ListTags() ([]models.Tag, error) {
	rows, err := r.global.Query(`SELECT id, name, color FROM tags ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	defer rows.Close()
	tags := []models.Tag{}
	for rows.Next() {
		var t models.Tag
		if err := rows.Scan(&t.ID, &t.Name, &t.Color); err != nil {
			return nil, err
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

// CreateTag creates a tag. Names are unique across the whole installation.
func (r *Registry) CreateTag(name, color string) (*models.Tag, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, models.MissingField("name")
	}
	if color == "" {
		color = "#8b5cf6"
	}
	res, err := r.global.Exec(`INSERT INTO tags (name, color) VALUES (?, ?)`, name, color)
	if isUniqueViolation(err) {
		return nil, models.Conflict("A tag with that name already exists")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create tag: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &models.Tag{ID: id, Name: name, Color: color}, nil
}

// UpdateTag renames or recolors a tag.
func (r *Registry) UpdateTag(id int64, name, color string) (*models.Tag, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, models.MissingField("name")
	}
	if color == "" {
		return nil, models.MissingField("color")
	}
	res, err := r.global.Exec(`UPDATE tags SET name = ?, color = ? WHERE id = ?`, name, color, id)
	if isUniqueViolation(err) {
		return nil, models.Conflict("A tag with that name already exists")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update tag: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, models.NotFound("Tag")
	}
	return &models.Tag{ID: id, Name: name, Color: color}, nil
}

// DeleteTag removes a tag from the global store. Associations in space
// databases are not chased here; they are filtered out on read and
// cleaned up by each space's tag migration path.
func (r *Registry) DeleteTag(id int64) error {
	res, err := r.global.Exec(`DELETE FROM tags WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete tag: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return models.NotFound("Tag")
	}
	return nil
}
