package server

import (
	"io"
	"log/slog"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/maruel/pane/internal/models"
	"github.com/maruel/pane/internal/storage/space"
)

// contentTypes maps known file extensions to safe content types. Anything
// not listed is served as an opaque download.
var contentTypes = map[string]string{
	".pdf":  "application/pdf",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
	".txt":  "text/plain; charset=utf-8",
	".md":   "text/plain; charset=utf-8",
	".csv":  "text/csv; charset=utf-8",
	".json": "application/json",
	".mp3":  "audio/mpeg",
	".mp4":  "video/mp4",
	".webm": "video/webm",
	".zip":  "application/zip",
}

// activeContent marks extensions that can execute script when rendered
// inline; these are always forced to download under a sandboxing CSP.
var activeContent = map[string]bool{
	".svg":   true,
	".html":  true,
	".htm":   true,
	".xhtml": true,
	".xml":   true,
}

// UploadDocument handles a multipart document upload:
// POST /api/spaces/{space}/items/upload with fields category_id, title,
// description, repeated tags, and the file under "file".
func (s *Server) UploadDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !checkRateLimit(w, r, s.limiter) {
		return
	}
	st, err := s.reg.Space(r.PathValue("space"))
	if err != nil {
		writeJSONResponse[struct{}](ctx, w, nil, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		apiErr := models.PayloadTooLarge(s.cfg.MaxUploadBytes)
		if !strings.Contains(err.Error(), "request body too large") {
			apiErr = models.BadRequest("Invalid multipart form")
		}
		writeJSONResponse[struct{}](ctx, w, nil, apiErr)
		return
	}
	defer r.MultipartForm.RemoveAll() //nolint:errcheck // Temp file cleanup.

	categoryID, err := strconv.ParseInt(r.FormValue("category_id"), 10, 64)
	if err != nil {
		writeJSONResponse[struct{}](ctx, w, nil, models.MissingField("category_id"))
		return
	}
	var tags []int64
	for _, v := range r.MultipartForm.Value["tags"] {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeJSONResponse[struct{}](ctx, w, nil, models.BadRequest("Invalid tag id").WithDetail("tag", v))
			return
		}
		tags = append(tags, id)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSONResponse[struct{}](ctx, w, nil, models.MissingField("file"))
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		writeJSONResponse[struct{}](ctx, w, nil, models.InternalWithError("failed to read upload", err))
		return
	}

	var desc *string
	if d := r.FormValue("description"); d != "" {
		desc = &d
	}
	item, err := st.CreateDocument(space.DocumentCreate{
		CategoryID:  categoryID,
		Title:       r.FormValue("title"),
		Description: desc,
		FileName:    path.Base(header.Filename),
		MimeType:    header.Header.Get("Content-Type"),
		Data:        data,
		Tags:        tags,
	})
	writeJSONResponse(ctx, w, item, err)
}

// ServeFile serves a stored document:
// GET /files/{space}/{category}/{name}. Paths resolve through the space's
// storage sandbox; content types come from the extension whitelist and
// active content is always forced to download.
func (s *Server) ServeFile(w http.ResponseWriter, r *http.Request) {
	st, err := s.reg.Space(r.PathValue("space"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	rel := path.Join(r.PathValue("category"), r.PathValue("name"))
	abs, err := st.Files().Resolve(rel)
	if err != nil {
		slog.Warn("Rejected file path", "space", r.PathValue("space"), "path", rel, "err", err)
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	ext := strings.ToLower(path.Ext(rel))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	switch {
	case activeContent[ext]:
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Disposition", "attachment")
		w.Header().Set("Content-Security-Policy", "sandbox")
	default:
		ct, ok := contentTypes[ext]
		if !ok {
			ct = "application/octet-stream"
			w.Header().Set("Content-Disposition", "attachment")
		}
		w.Header().Set("Content-Type", ct)
	}
	http.ServeFile(w, r, abs)
}
