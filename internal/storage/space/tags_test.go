package space

import (
	"errors"
	"testing"

	"github.com/maruel/pane/internal/models"
)

func TestTagCRUD(t *testing.T) {
	r := newTestRegistry(t)
	tag, err := r.CreateTag("reading", "#111111")
	if err != nil {
		t.Fatalf("CreateTag() error: %v", err)
	}
	if tag.Name != "reading" || tag.Color != "#111111" {
		t.Errorf("tag = %+v", tag)
	}

	updated, err := r.UpdateTag(tag.ID, "to-read", "#222222")
	if err != nil {
		t.Fatalf("UpdateTag() error: %v", err)
	}
	if updated.Name != "to-read" {
		t.Errorf("name = %q, want %q", updated.Name, "to-read")
	}

	tags, err := r.ListTags()
	if err != nil {
		t.Fatal(err)
	}
	if len(tags) != 1 || tags[0].Name != "to-read" {
		t.Errorf("ListTags() = %v", tags)
	}

	if err := r.DeleteTag(tag.ID); err != nil {
		t.Fatalf("DeleteTag() error: %v", err)
	}
	if err := r.DeleteTag(tag.ID); err == nil {
		t.Error("second DeleteTag() succeeded")
	}
}

func TestTagNameConflict(t *testing.T) {
	r := newTestRegistry(t)
	if _, err := r.CreateTag("dup", ""); err != nil {
		t.Fatal(err)
	}
	_, err := r.CreateTag("dup", "#333333")
	var apiErr *models.APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode() != 409 {
		t.Fatalf("duplicate create error = %v, want 409", err)
	}

	other, err := r.CreateTag("other", "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.UpdateTag(other.ID, "dup", "#444444"); err == nil {
		t.Error("rename onto existing name succeeded")
	}
}

func TestTagsSharedAcrossSpaces(t *testing.T) {
	r := newTestRegistry(t)
	for _, name := range []string{"One", "Two"} {
		if _, err := r.CreateSpace(name); err != nil {
			t.Fatal(err)
		}
	}
	tag, err := r.CreateTag("shared", "#555555")
	if err != nil {
		t.Fatal(err)
	}

	for _, slug := range []string{"one", "two"} {
		st, err := r.Space(slug)
		if err != nil {
			t.Fatal(err)
		}
		cat, err := st.CreateCategory("C", "#fff", nil)
		if err != nil {
			t.Fatal(err)
		}
		item, err := st.CreateItem(ItemCreate{
			CategoryID: cat.ID,
			Type:       models.ItemTypeNote,
			Title:      "n",
			Tags:       []int64{tag.ID},
		})
		if err != nil {
			t.Fatalf("space %s: %v", slug, err)
		}
		if len(item.Tags) != 1 || item.Tags[0].ID != tag.ID {
			t.Errorf("space %s tags = %v", slug, item.Tags)
		}
	}
}

func TestDeletedTagFilteredOnRead(t *testing.T) {
	r := newTestRegistry(t)
	if _, err := r.CreateSpace("One"); err != nil {
		t.Fatal(err)
	}
	st, err := r.Space("one")
	if err != nil {
		t.Fatal(err)
	}
	cat, err := st.CreateCategory("C", "#fff", nil)
	if err != nil {
		t.Fatal(err)
	}
	tag, err := r.CreateTag("gone", "")
	if err != nil {
		t.Fatal(err)
	}
	item, err := st.CreateItem(ItemCreate{CategoryID: cat.ID, Type: models.ItemTypeNote, Title: "n", Tags: []int64{tag.ID}})
	if err != nil {
		t.Fatal(err)
	}
	if err := r.DeleteTag(tag.ID); err != nil {
		t.Fatal(err)
	}
	got, err := st.GetItem(item.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Tags) != 0 {
		t.Errorf("tags = %v, want dangling association hidden", got.Tags)
	}
}
