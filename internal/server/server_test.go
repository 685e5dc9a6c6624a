package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/maruel/pane/internal/models"
	"github.com/maruel/pane/internal/storage"
	"github.com/maruel/pane/internal/storage/space"
)

func newTestServer(t *testing.T) (*Server, http.Handler) {
	t.Helper()
	root := t.TempDir()
	reg, err := space.NewRegistry(filepath.Join(root, "data"), filepath.Join(root, "storage"))
	if err != nil {
		t.Fatalf("NewRegistry() error: %v", err)
	}
	t.Cleanup(func() { _ = reg.Close() })
	cfg := storage.DefaultServerConfig()
	cfg.RateLimitPerMinute = 6000
	cfg.RateLimitBurst = 1000
	srv := New(reg, cfg)
	t.Cleanup(srv.Close)
	return srv, srv.Router()
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("failed to decode %q: %v", w.Body.String(), err)
	}
	return out
}

func TestHealth(t *testing.T) {
	_, h := newTestServer(t)
	w := doJSON(t, h, "GET", "/api/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestSpaceLifecycle(t *testing.T) {
	_, h := newTestServer(t)

	w := doJSON(t, h, "POST", "/api/spaces", map[string]any{"name": "My Stuff"})
	if w.Code != http.StatusOK {
		t.Fatalf("create status = %d: %s", w.Code, w.Body)
	}
	sp := decode[models.Space](t, w)
	if sp.Slug != "my-stuff" {
		t.Errorf("slug = %q", sp.Slug)
	}

	w = doJSON(t, h, "GET", "/api/spaces", nil)
	list := decode[struct {
		Spaces []models.Space `json:"spaces"`
	}](t, w)
	if len(list.Spaces) != 1 {
		t.Fatalf("spaces = %v", list.Spaces)
	}

	w = doJSON(t, h, "PUT", "/api/spaces/my-stuff", map[string]any{"name": "Renamed"})
	if w.Code != http.StatusOK {
		t.Fatalf("rename status = %d: %s", w.Code, w.Body)
	}

	// Deleting the only space is refused.
	w = doJSON(t, h, "DELETE", "/api/spaces/my-stuff", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("delete last space status = %d, want 400", w.Code)
	}
	errResp := decode[models.ErrorResponse](t, w)
	if errResp.Error.Code != models.ErrorCodeValidationFailed {
		t.Errorf("error code = %q", errResp.Error.Code)
	}
}

func TestUnknownSpaceIs404(t *testing.T) {
	_, h := newTestServer(t)
	w := doJSON(t, h, "GET", "/api/spaces/nope/categories", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	errResp := decode[models.ErrorResponse](t, w)
	if errResp.Error.Code != models.ErrorCodeNotFound {
		t.Errorf("error code = %q, want NOT_FOUND", errResp.Error.Code)
	}
}

func mustCreateSpace(t *testing.T, h http.Handler, name string) models.Space {
	t.Helper()
	w := doJSON(t, h, "POST", "/api/spaces", map[string]any{"name": name})
	if w.Code != http.StatusOK {
		t.Fatalf("create space status = %d: %s", w.Code, w.Body)
	}
	return decode[models.Space](t, w)
}

func TestCategoryEndpoints(t *testing.T) {
	_, h := newTestServer(t)
	sp := mustCreateSpace(t, h, "Home")

	w := doJSON(t, h, "POST", "/api/spaces/"+sp.Slug+"/categories", map[string]any{"name": "Dev", "color": "#6366f1"})
	if w.Code != http.StatusOK {
		t.Fatalf("create category status = %d: %s", w.Code, w.Body)
	}
	cat := decode[models.Category](t, w)

	w = doJSON(t, h, "POST", "/api/spaces/"+sp.Slug+"/categories", map[string]any{"name": "Sub", "color": "#fff", "parent_id": cat.ID})
	if w.Code != http.StatusOK {
		t.Fatalf("create child status = %d: %s", w.Code, w.Body)
	}
	child := decode[models.Category](t, w)

	// Missing color is rejected before the engine runs.
	w = doJSON(t, h, "POST", "/api/spaces/"+sp.Slug+"/categories", map[string]any{"name": "NoColor"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing color status = %d, want 400", w.Code)
	}

	// Cycle via the API maps to 400 CYCLE_DETECTED.
	w = doJSON(t, h, "PUT", fmt.Sprintf("/api/spaces/%s/categories/%d", sp.Slug, cat.ID),
		map[string]any{"name": cat.Name, "color": cat.Color, "parent_id": child.ID})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("cycle status = %d, want 400: %s", w.Code, w.Body)
	}
	errResp := decode[models.ErrorResponse](t, w)
	if errResp.Error.Code != models.ErrorCodeCycle {
		t.Errorf("error code = %q, want CYCLE_DETECTED", errResp.Error.Code)
	}

	w = doJSON(t, h, "GET", fmt.Sprintf("/api/spaces/%s/categories/%d/breadcrumb", sp.Slug, child.ID), nil)
	bc := decode[struct {
		Breadcrumb []models.BreadcrumbSegment `json:"breadcrumb"`
	}](t, w)
	if len(bc.Breadcrumb) != 2 || bc.Breadcrumb[0].ID != cat.ID {
		t.Errorf("breadcrumb = %v", bc.Breadcrumb)
	}

	w = doJSON(t, h, "GET", "/api/spaces/"+sp.Slug+"/categories?parent=root", nil)
	roots := decode[struct {
		Categories []models.Category `json:"categories"`
	}](t, w)
	if len(roots.Categories) != 1 || roots.Categories[0].ID != cat.ID {
		t.Errorf("root listing = %v", roots.Categories)
	}
}

func TestItemEndpoints(t *testing.T) {
	_, h := newTestServer(t)
	sp := mustCreateSpace(t, h, "Home")
	w := doJSON(t, h, "POST", "/api/spaces/"+sp.Slug+"/categories", map[string]any{"name": "Links", "color": "#fff"})
	cat := decode[models.Category](t, w)

	w = doJSON(t, h, "POST", "/api/spaces/"+sp.Slug+"/items", map[string]any{
		"category_id": cat.ID,
		"type":        "link",
		"title":       "Go Blog",
		"content":     "https://go.dev/blog/",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("create item status = %d: %s", w.Code, w.Body)
	}
	item := decode[models.Item](t, w)

	// Unknown JSON fields are rejected.
	w = doJSON(t, h, "POST", "/api/spaces/"+sp.Slug+"/items", map[string]any{
		"category_id": cat.ID, "type": "link", "title": "x", "bogus": true,
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("unknown field status = %d, want 400", w.Code)
	}

	// Partial update: null clears, absent keeps.
	w = doJSON(t, h, "PUT", fmt.Sprintf("/api/spaces/%s/items/%d", sp.Slug, item.ID), map[string]any{
		"title":   "Renamed",
		"content": nil,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("update status = %d: %s", w.Code, w.Body)
	}
	got := decode[models.Item](t, w)
	if got.Title != "Renamed" || got.Content != nil {
		t.Errorf("got %+v", got)
	}

	w = doJSON(t, h, "GET", "/api/spaces/"+sp.Slug+"/items?type=link", nil)
	list := decode[struct {
		Items []models.Item `json:"items"`
	}](t, w)
	if len(list.Items) != 1 {
		t.Errorf("items = %v", list.Items)
	}

	w = doJSON(t, h, "DELETE", fmt.Sprintf("/api/spaces/%s/items/%d", sp.Slug, item.ID), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete status = %d", w.Code)
	}
	w = doJSON(t, h, "GET", fmt.Sprintf("/api/spaces/%s/items/%d", sp.Slug, item.ID), nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("get deleted status = %d, want 404", w.Code)
	}
}

func TestUploadAndServeDocument(t *testing.T) {
	_, h := newTestServer(t)
	sp := mustCreateSpace(t, h, "Home")
	w := doJSON(t, h, "POST", "/api/spaces/"+sp.Slug+"/categories", map[string]any{"name": "Files", "color": "#fff"})
	cat := decode[models.Category](t, w)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("category_id", fmt.Sprint(cat.ID)); err != nil {
		t.Fatal(err)
	}
	if err := mw.WriteField("title", "Notes"); err != nil {
		t.Fatal(err)
	}
	fw, err := mw.CreateFormFile("file", "notes.txt")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write([]byte("hello world")); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest("POST", "/api/spaces/"+sp.Slug+"/items/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("upload status = %d: %s", rec.Code, rec.Body)
	}
	item := decode[models.Item](t, rec)
	if item.FilePath == nil {
		t.Fatal("file_path missing")
	}

	serveReq := httptest.NewRequest("GET", "/files/"+sp.Slug+"/"+*item.FilePath, nil)
	serveRec := httptest.NewRecorder()
	h.ServeHTTP(serveRec, serveReq)
	if serveRec.Code != http.StatusOK {
		t.Fatalf("serve status = %d", serveRec.Code)
	}
	if got := serveRec.Body.String(); got != "hello world" {
		t.Errorf("served body = %q", got)
	}
	if ct := serveRec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("content type = %q", ct)
	}
	if serveRec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("nosniff header missing")
	}
}

func TestTagEndpoints(t *testing.T) {
	_, h := newTestServer(t)
	w := doJSON(t, h, "POST", "/api/tags", map[string]any{"name": "reading", "color": "#111"})
	if w.Code != http.StatusOK {
		t.Fatalf("create tag status = %d: %s", w.Code, w.Body)
	}
	tag := decode[models.Tag](t, w)

	w = doJSON(t, h, "POST", "/api/tags", map[string]any{"name": "reading", "color": "#222"})
	if w.Code != http.StatusConflict {
		t.Fatalf("duplicate tag status = %d, want 409", w.Code)
	}

	w = doJSON(t, h, "PUT", fmt.Sprintf("/api/tags/%d", tag.ID), map[string]any{"name": "to-read", "color": "#333"})
	if w.Code != http.StatusOK {
		t.Fatalf("update tag status = %d: %s", w.Code, w.Body)
	}

	w = doJSON(t, h, "DELETE", fmt.Sprintf("/api/tags/%d", tag.ID), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete tag status = %d", w.Code)
	}
}

func TestRateLimitExceeded(t *testing.T) {
	root := t.TempDir()
	reg, err := space.NewRegistry(filepath.Join(root, "data"), filepath.Join(root, "storage"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = reg.Close() })
	cfg := storage.DefaultServerConfig()
	cfg.RateLimitPerMinute = 60
	cfg.RateLimitBurst = 2
	srv := New(reg, cfg)
	t.Cleanup(srv.Close)
	h := srv.Router()

	var last *httptest.ResponseRecorder
	for range 3 {
		last = doJSON(t, h, "GET", "/api/spaces", nil)
	}
	if last.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", last.Code)
	}
	if last.Header().Get("Retry-After") == "" {
		t.Error("Retry-After header missing")
	}
}
