package space

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/maruel/ksid"
	"github.com/maruel/pane/internal/models"
)

// FileTree manages the storage subtree of a single space:
// <storage root>/<space slug>/<category slug>/<generated name>.
//
// Every path is resolved and checked against the space root before any
// filesystem call; relative paths stored in item rows can never reach
// outside the tree.
type FileTree struct {
	root string // absolute path of the space's storage directory
}

func newFileTree(storageRoot, slug string) *FileTree {
	return &FileTree{root: filepath.Join(storageRoot, slug)}
}

// Root returns the absolute path of the space's storage directory.
func (t *FileTree) Root() string {
	return t.root
}

// Resolve resolves a stored relative path to an absolute one, enforcing
// the sandbox. Used by the file-serving layer.
func (t *FileTree) Resolve(rel string) (string, error) {
	return resolveUnder(t.root, rel)
}

// ensureCategoryDir creates the directory for a category slug and returns
// its absolute path.
func (t *FileTree) ensureCategoryDir(categorySlug string) (string, error) {
	if err := CheckSlug(categorySlug); err != nil {
		return "", err
	}
	dir, err := resolveUnder(t.root, categorySlug)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil { //nolint:gosec // G301: 0o755 is intentional for user data directories
		return "", models.StorageError("failed to create category directory", err)
	}
	return dir, nil
}

// SaveFile writes data under the category's directory with a generated
// unique name that preserves the original extension. Returns the relative
// path to store in the item row.
func (t *FileTree) SaveFile(categorySlug, originalName string, data []byte) (string, error) {
	dir, err := t.ensureCategoryDir(categorySlug)
	if err != nil {
		return "", err
	}
	name := ksid.NewID().String() + filepath.Ext(originalName)
	abs, err := resolveUnder(dir, name)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(abs, data, 0o644); err != nil { //nolint:gosec // G306: 0o644 is intentional for user uploads
		return "", models.StorageError("failed to write file", err)
	}
	return filepath.ToSlash(filepath.Join(categorySlug, name)), nil
}

// PathFor returns the relative path a stored file will have once it lives
// under newCategorySlug, without touching the filesystem. Reorder and move
// operations record this path in the database transaction and relocate the
// file only after commit.
func (t *FileTree) PathFor(rel, newCategorySlug string) string {
	return filepath.ToSlash(filepath.Join(newCategorySlug, filepath.Base(rel)))
}

// MoveFile relocates a stored file into another category's directory and
// returns the new relative path. The move is idempotent: an absent source
// means a previous attempt already succeeded and is not an error.
func (t *FileTree) MoveFile(oldRel, newCategorySlug string) (string, error) {
	oldAbs, err := resolveUnder(t.root, oldRel)
	if err != nil {
		return "", err
	}
	newRel := t.PathFor(oldRel, newCategorySlug)
	if _, err := os.Stat(oldAbs); os.IsNotExist(err) {
		return newRel, nil
	}
	dir, err := t.ensureCategoryDir(newCategorySlug)
	if err != nil {
		return "", err
	}
	newAbs, err := resolveUnder(dir, filepath.Base(oldRel))
	if err != nil {
		return "", err
	}
	if err := os.Rename(oldAbs, newAbs); err != nil {
		return "", models.StorageError("failed to move file", err)
	}
	return newRel, nil
}

// DeleteFile removes a stored file. A missing file is not an error.
func (t *FileTree) DeleteFile(rel string) error {
	abs, err := resolveUnder(t.root, rel)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil && !os.IsNotExist(err) {
		return models.StorageError("failed to delete file", err)
	}
	return nil
}

// RenameCategoryDir renames a category's directory after a slug change.
// No-op when the old directory does not exist (the category had no files).
func (t *FileTree) RenameCategoryDir(oldSlug, newSlug string) error {
	if err := CheckSlug(oldSlug); err != nil {
		return err
	}
	if err := CheckSlug(newSlug); err != nil {
		return err
	}
	oldAbs, err := resolveUnder(t.root, oldSlug)
	if err != nil {
		return err
	}
	newAbs, err := resolveUnder(t.root, newSlug)
	if err != nil {
		return err
	}
	if _, err := os.Stat(oldAbs); os.IsNotExist(err) {
		return nil
	}
	if err := os.Rename(oldAbs, newAbs); err != nil {
		return models.StorageError("failed to rename category directory", err)
	}
	return nil
}

// RemoveCategoryDir removes a category's directory and everything in it.
func (t *FileTree) RemoveCategoryDir(categorySlug string) error {
	if err := CheckSlug(categorySlug); err != nil {
		return err
	}
	dir, err := resolveUnder(t.root, categorySlug)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return models.StorageError("failed to remove category directory", err)
	}
	return nil
}

// removeAll deletes the whole space subtree. Called on space deletion.
func (t *FileTree) removeAll() error {
	if err := os.RemoveAll(t.root); err != nil {
		return models.StorageError("failed to remove storage subtree", err)
	}
	return nil
}

// warnStorage logs a best-effort storage failure that does not abort the
// surrounding operation.
func warnStorage(op string, err error, args ...any) {
	slog.Warn(fmt.Sprintf("Storage cleanup failed: %s", op), append(args, "err", err)...)
}
