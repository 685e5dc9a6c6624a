// Package server implements the HTTP API over the space registry.
package server

import (
	"context"
	"net/http"

	"github.com/maruel/pane/internal/server/ratelimit"
	"github.com/maruel/pane/internal/storage"
	"github.com/maruel/pane/internal/storage/space"
)

// Server holds the dependencies shared by every handler.
type Server struct {
	reg     *space.Registry
	cfg     storage.ServerConfig
	limiter *ratelimit.Limiter
}

// New creates a server over the registry with the given configuration.
func New(reg *space.Registry, cfg storage.ServerConfig) *Server {
	return &Server{
		reg:     reg,
		cfg:     cfg,
		limiter: ratelimit.NewLimiter(cfg.RateLimitPerMinute, cfg.RateLimitBurst),
	}
}

// Close releases the server's background resources. The registry is owned
// by the caller and closed separately.
func (s *Server) Close() {
	s.limiter.Close()
}

type healthRequest struct{}

func (r *healthRequest) Validate() error { return nil }

type healthResponse struct {
	Status string `json:"status"`
}

// Health reports server liveness.
func (s *Server) Health(ctx context.Context, req *healthRequest) (*healthResponse, error) {
	return &healthResponse{Status: "ok"}, nil
}

// Router creates and configures the HTTP router.
func (s *Server) Router() http.Handler {
	// JSON request bodies are small; the multipart upload endpoint carries
	// its own larger cap.
	const maxJSONBody = 1 << 20

	mux := &http.ServeMux{}

	mux.Handle("GET /api/health", Wrap(s.Health, nil, 0))

	// Spaces
	mux.Handle("GET /api/spaces", Wrap(s.ListSpaces, s.limiter, maxJSONBody))
	mux.Handle("POST /api/spaces", Wrap(s.CreateSpace, s.limiter, maxJSONBody))
	mux.Handle("PUT /api/spaces/{space}", Wrap(s.RenameSpace, s.limiter, maxJSONBody))
	mux.Handle("DELETE /api/spaces/{space}", Wrap(s.DeleteSpace, s.limiter, maxJSONBody))
	mux.Handle("POST /api/spaces/{space}/seed", Wrap(s.SeedSpace, s.limiter, maxJSONBody))
	mux.Handle("GET /api/spaces/{space}/overview", Wrap(s.GetOverview, s.limiter, maxJSONBody))

	// Categories
	mux.Handle("GET /api/spaces/{space}/categories", Wrap(s.ListCategories, s.limiter, maxJSONBody))
	mux.Handle("POST /api/spaces/{space}/categories", Wrap(s.CreateCategory, s.limiter, maxJSONBody))
	mux.Handle("PUT /api/spaces/{space}/categories/reorder", Wrap(s.ReorderCategories, s.limiter, maxJSONBody))
	mux.Handle("GET /api/spaces/{space}/categories/{id}", Wrap(s.GetCategory, s.limiter, maxJSONBody))
	mux.Handle("PUT /api/spaces/{space}/categories/{id}", Wrap(s.UpdateCategory, s.limiter, maxJSONBody))
	mux.Handle("DELETE /api/spaces/{space}/categories/{id}", Wrap(s.DeleteCategory, s.limiter, maxJSONBody))
	mux.Handle("GET /api/spaces/{space}/categories/{id}/breadcrumb", Wrap(s.GetBreadcrumb, s.limiter, maxJSONBody))

	// Items
	mux.Handle("GET /api/spaces/{space}/items", Wrap(s.ListItems, s.limiter, maxJSONBody))
	mux.Handle("POST /api/spaces/{space}/items", Wrap(s.CreateItem, s.limiter, maxJSONBody))
	mux.Handle("PUT /api/spaces/{space}/items/reorder", Wrap(s.ReorderItems, s.limiter, maxJSONBody))
	mux.HandleFunc("POST /api/spaces/{space}/items/upload", s.UploadDocument)
	mux.Handle("GET /api/spaces/{space}/items/{id}", Wrap(s.GetItem, s.limiter, maxJSONBody))
	mux.Handle("PUT /api/spaces/{space}/items/{id}", Wrap(s.UpdateItem, s.limiter, maxJSONBody))
	mux.Handle("DELETE /api/spaces/{space}/items/{id}", Wrap(s.DeleteItem, s.limiter, maxJSONBody))

	// Tags (global)
	mux.Handle("GET /api/tags", Wrap(s.ListTags, s.limiter, maxJSONBody))
	mux.Handle("POST /api/tags", Wrap(s.CreateTag, s.limiter, maxJSONBody))
	mux.Handle("PUT /api/tags/{id}", Wrap(s.UpdateTag, s.limiter, maxJSONBody))
	mux.Handle("DELETE /api/tags/{id}", Wrap(s.DeleteTag, s.limiter, maxJSONBody))

	// File serving (raw stored documents)
	mux.HandleFunc("GET /files/{space}/{category}/{name}", s.ServeFile)

	return mux
}
