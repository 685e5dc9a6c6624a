package space

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/maruel/pane/internal/models"
)

func mustCreateCategory(t *testing.T, st *Store, name string, parentID *int64) *models.Category {
	t.Helper()
	c, err := st.CreateCategory(name, "#6366f1", parentID)
	if err != nil {
		t.Fatalf("CreateCategory(%q) error: %v", name, err)
	}
	return c
}

func TestCreateCategory(t *testing.T) {
	st := newTestStore(t)
	c := mustCreateCategory(t, st, "Dev Tools", nil)
	if c.Slug != "dev-tools" {
		t.Errorf("slug = %q, want %q", c.Slug, "dev-tools")
	}
	if c.SortOrder != 1 {
		t.Errorf("sort_order = %d, want 1", c.SortOrder)
	}
	c2 := mustCreateCategory(t, st, "Reading", nil)
	if c2.SortOrder != 2 {
		t.Errorf("second sort_order = %d, want 2", c2.SortOrder)
	}
}

func TestCreateCategoryUnknownParent(t *testing.T) {
	st := newTestStore(t)
	missing := int64(999)
	if _, err := st.CreateCategory("Child", "#fff", &missing); err == nil {
		t.Fatal("CreateCategory() with unknown parent succeeded")
	}
}

func TestCreateCategoryDuplicateName(t *testing.T) {
	st := newTestStore(t)
	mustCreateCategory(t, st, "Dup", nil)
	_, err := st.CreateCategory("Dup", "#fff", nil)
	var apiErr *models.APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode() != 409 {
		t.Fatalf("duplicate create error = %v, want 409 conflict", err)
	}
}

func TestChildrenCountAndListing(t *testing.T) {
	st := newTestStore(t)
	root := mustCreateCategory(t, st, "Root", nil)
	mustCreateCategory(t, st, "Child A", &root.ID)
	mustCreateCategory(t, st, "Child B", &root.ID)

	got, err := st.GetCategory(root.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.ChildrenCount != 2 {
		t.Errorf("children_count = %d, want 2", got.ChildrenCount)
	}

	roots, err := st.ListChildCategories(nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(roots) != 1 || roots[0].ID != root.ID {
		t.Errorf("root listing = %v, want just %d", roots, root.ID)
	}
	children, err := st.ListChildCategories(&root.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(children) != 2 {
		t.Errorf("child listing length = %d, want 2", len(children))
	}
	all, err := st.ListCategories()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Errorf("full listing length = %d, want 3", len(all))
	}
}

func TestUpdateCategoryCycleRejected(t *testing.T) {
	st := newTestStore(t)
	a := mustCreateCategory(t, st, "A", nil)
	b := mustCreateCategory(t, st, "B", &a.ID)
	c := mustCreateCategory(t, st, "C", &b.ID)

	// A under its grandchild C.
	_, err := st.UpdateCategory(a.ID, "A", a.Color, models.Optional[int64]{Set: true, Valid: true, Value: c.ID})
	var apiErr *models.APIError
	if !errors.As(err, &apiErr) || apiErr.Code() != models.ErrorCodeCycle {
		t.Fatalf("cycle update error = %v, want CYCLE_DETECTED", err)
	}

	// A under itself.
	_, err = st.UpdateCategory(a.ID, "A", a.Color, models.Optional[int64]{Set: true, Valid: true, Value: a.ID})
	if !errors.As(err, &apiErr) || apiErr.Code() != models.ErrorCodeCycle {
		t.Fatalf("self-parent update error = %v, want CYCLE_DETECTED", err)
	}
}

func TestUpdateCategoryReparentAndClear(t *testing.T) {
	st := newTestStore(t)
	a := mustCreateCategory(t, st, "A", nil)
	b := mustCreateCategory(t, st, "B", nil)

	moved, err := st.UpdateCategory(b.ID, "B", b.Color, models.Optional[int64]{Set: true, Valid: true, Value: a.ID})
	if err != nil {
		t.Fatalf("reparent error: %v", err)
	}
	if moved.ParentID == nil || *moved.ParentID != a.ID {
		t.Errorf("parent_id = %v, want %d", moved.ParentID, a.ID)
	}

	// Explicit null moves it back to the root.
	cleared, err := st.UpdateCategory(b.ID, "B", b.Color, models.Optional[int64]{Set: true})
	if err != nil {
		t.Fatalf("clear parent error: %v", err)
	}
	if cleared.ParentID != nil {
		t.Errorf("parent_id = %v, want nil", cleared.ParentID)
	}

	// Absent parent field leaves the parent alone.
	reparented, err := st.UpdateCategory(b.ID, "B", b.Color, models.Optional[int64]{Set: true, Valid: true, Value: a.ID})
	if err != nil {
		t.Fatal(err)
	}
	kept, err := st.UpdateCategory(b.ID, "B renamed", b.Color, models.Optional[int64]{})
	if err != nil {
		t.Fatal(err)
	}
	if kept.ParentID == nil || *kept.ParentID != *reparented.ParentID {
		t.Errorf("parent_id changed on name-only update: %v", kept.ParentID)
	}
}

func TestUpdateCategorySlugRenameMovesFilesAndDir(t *testing.T) {
	st := newTestStore(t)
	c := mustCreateCategory(t, st, "Docs", nil)
	item, err := st.CreateDocument(DocumentCreate{
		CategoryID: c.ID,
		FileName:   "report.pdf",
		MimeType:   "application/pdf",
		Data:       []byte("pdf bytes"),
	})
	if err != nil {
		t.Fatalf("CreateDocument() error: %v", err)
	}

	renamed, err := st.UpdateCategory(c.ID, "Documents", c.Color, models.Optional[int64]{})
	if err != nil {
		t.Fatalf("UpdateCategory() error: %v", err)
	}
	if renamed.Slug != "documents" {
		t.Errorf("slug = %q, want %q", renamed.Slug, "documents")
	}

	got, err := st.GetItem(item.ID)
	if err != nil {
		t.Fatal(err)
	}
	wantPrefix := "documents/"
	if got.FilePath == nil || (*got.FilePath)[:len(wantPrefix)] != wantPrefix {
		t.Errorf("file_path = %v, want prefix %q", got.FilePath, wantPrefix)
	}
	abs, err := st.Files().Resolve(*got.FilePath)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(abs); err != nil {
		t.Errorf("file missing at renamed path: %v", err)
	}
	if _, err := os.Stat(filepath.Join(st.Files().Root(), "docs")); !os.IsNotExist(err) {
		t.Error("old category directory still present")
	}
}

func TestDeleteCategoryCascades(t *testing.T) {
	st := newTestStore(t)
	root := mustCreateCategory(t, st, "Root", nil)
	child := mustCreateCategory(t, st, "Child", &root.ID)
	if _, err := st.CreateItem(ItemCreate{CategoryID: child.ID, Type: models.ItemTypeNote, Title: "n"}); err != nil {
		t.Fatal(err)
	}
	if _, err := st.CreateDocument(DocumentCreate{CategoryID: child.ID, FileName: "f.txt", Data: []byte("x")}); err != nil {
		t.Fatal(err)
	}

	if err := st.DeleteCategory(root.ID); err != nil {
		t.Fatalf("DeleteCategory() error: %v", err)
	}
	if _, err := st.GetCategory(child.ID); err == nil {
		t.Error("child category survived cascade")
	}
	items, err := st.ListItems(ItemFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 0 {
		t.Errorf("items survived cascade: %v", items)
	}
	if _, err := os.Stat(filepath.Join(st.Files().Root(), "child")); !os.IsNotExist(err) {
		t.Error("child storage directory still present")
	}
}

func TestDeleteCategoryUnknown(t *testing.T) {
	st := newTestStore(t)
	if err := st.DeleteCategory(12345); err == nil {
		t.Fatal("DeleteCategory() for unknown id succeeded")
	}
}

func TestBreadcrumb(t *testing.T) {
	st := newTestStore(t)
	a := mustCreateCategory(t, st, "A", nil)
	b := mustCreateCategory(t, st, "B", &a.ID)
	c := mustCreateCategory(t, st, "C", &b.ID)

	chain, err := st.Breadcrumb(c.ID)
	if err != nil {
		t.Fatalf("Breadcrumb() error: %v", err)
	}
	want := []string{"A", "B", "C"}
	if len(chain) != len(want) {
		t.Fatalf("chain length = %d, want %d", len(chain), len(want))
	}
	for i := range want {
		if chain[i].Name != want[i] {
			t.Errorf("chain[%d] = %q, want %q", i, chain[i].Name, want[i])
		}
	}

	if _, err := st.Breadcrumb(999); err == nil {
		t.Error("Breadcrumb() for unknown id succeeded")
	}
}

func TestReorderCategories(t *testing.T) {
	st := newTestStore(t)
	a := mustCreateCategory(t, st, "A", nil)
	b := mustCreateCategory(t, st, "B", nil)
	c := mustCreateCategory(t, st, "C", nil)

	// Include an id that does not exist; it must be skipped harmlessly.
	if err := st.ReorderCategories([]int64{c.ID, 999, a.ID, b.ID}); err != nil {
		t.Fatalf("ReorderCategories() error: %v", err)
	}
	got, err := st.ListCategories()
	if err != nil {
		t.Fatal(err)
	}
	wantOrder := []int64{c.ID, a.ID, b.ID}
	for i, want := range wantOrder {
		if got[i].ID != want {
			t.Errorf("position %d = id %d, want %d", i, got[i].ID, want)
		}
	}
}
