package server

import (
	"context"

	"github.com/maruel/pane/internal/models"
	"github.com/maruel/pane/internal/storage/space"
)

type listItemsRequest struct {
	Space      string `path:"space"`
	CategoryID *int64 `query:"category_id"`
	Type       string `query:"type"`
	Search     string `query:"search"`
}

func (r *listItemsRequest) Validate() error {
	if r.Type != "" && !models.ItemType(r.Type).Valid() {
		return models.BadRequest("Invalid item type").WithDetail("type", r.Type)
	}
	return nil
}

type itemListResponse struct {
	Items []models.Item `json:"items"`
}

// ListItems returns items matching the filter, pinned first.
func (s *Server) ListItems(ctx context.Context, req *listItemsRequest) (*itemListResponse, error) {
	st, err := s.reg.Space(req.Space)
	if err != nil {
		return nil, err
	}
	items, err := st.ListItems(space.ItemFilter{
		CategoryID: req.CategoryID,
		Type:       models.ItemType(req.Type),
		Search:     req.Search,
	})
	if err != nil {
		return nil, err
	}
	return &itemListResponse{Items: items}, nil
}

type createItemRequest struct {
	Space       string  `path:"space"`
	CategoryID  int64   `json:"category_id"`
	Type        string  `json:"type"`
	Title       string  `json:"title"`
	Content     *string `json:"content"`
	Description *string `json:"description"`
	FaviconURL  *string `json:"favicon_url"`
	Tags        []int64 `json:"tags"`
}

func (r *createItemRequest) Validate() error {
	if r.Title == "" {
		return models.MissingField("title")
	}
	if r.CategoryID == 0 {
		return models.MissingField("category_id")
	}
	t := models.ItemType(r.Type)
	if !t.Valid() || t == models.ItemTypeDocument {
		return models.BadRequest("Invalid item type").WithDetail("type", r.Type)
	}
	return nil
}

// CreateItem creates a link or note item. Documents go through the
// multipart upload endpoint instead.
func (s *Server) CreateItem(ctx context.Context, req *createItemRequest) (*models.Item, error) {
	st, err := s.reg.Space(req.Space)
	if err != nil {
		return nil, err
	}
	return st.CreateItem(space.ItemCreate{
		CategoryID:  req.CategoryID,
		Type:        models.ItemType(req.Type),
		Title:       req.Title,
		Content:     req.Content,
		Description: req.Description,
		FaviconURL:  req.FaviconURL,
		Tags:        req.Tags,
	})
}

type getItemRequest struct {
	Space string `path:"space"`
	ID    int64  `path:"id"`
}

func (r *getItemRequest) Validate() error { return nil }

// GetItem loads one item with its tags.
func (s *Server) GetItem(ctx context.Context, req *getItemRequest) (*models.Item, error) {
	st, err := s.reg.Space(req.Space)
	if err != nil {
		return nil, err
	}
	return st.GetItem(req.ID)
}

type updateItemRequest struct {
	Space       string                   `path:"space"`
	ID          int64                    `path:"id"`
	Title       models.Optional[string]  `json:"title"`
	Content     models.Optional[string]  `json:"content"`
	Description models.Optional[string]  `json:"description"`
	FaviconURL  models.Optional[string]  `json:"favicon_url"`
	CategoryID  models.Optional[int64]   `json:"category_id"`
	IsPinned    models.Optional[bool]    `json:"is_pinned"`
	Tags        models.Optional[[]int64] `json:"tags"`
}

func (r *updateItemRequest) Validate() error {
	if r.Title.Set && (!r.Title.Valid || r.Title.Value == "") {
		return models.BadRequest("title cannot be empty")
	}
	if r.CategoryID.Set && !r.CategoryID.Valid {
		return models.BadRequest("category_id cannot be null")
	}
	return nil
}

// UpdateItem applies a partial update; absent fields are left unchanged,
// null clears nullable fields.
func (s *Server) UpdateItem(ctx context.Context, req *updateItemRequest) (*models.Item, error) {
	st, err := s.reg.Space(req.Space)
	if err != nil {
		return nil, err
	}
	return st.UpdateItem(req.ID, space.ItemUpdate{
		Title:       req.Title,
		Content:     req.Content,
		Description: req.Description,
		FaviconURL:  req.FaviconURL,
		CategoryID:  req.CategoryID,
		IsPinned:    req.IsPinned,
		Tags:        req.Tags,
	})
}

type deleteItemRequest struct {
	Space string `path:"space"`
	ID    int64  `path:"id"`
}

func (r *deleteItemRequest) Validate() error { return nil }

// DeleteItem removes an item and, for documents, its stored file.
func (s *Server) DeleteItem(ctx context.Context, req *deleteItemRequest) (*statusResponse, error) {
	st, err := s.reg.Space(req.Space)
	if err != nil {
		return nil, err
	}
	if err := st.DeleteItem(req.ID); err != nil {
		return nil, err
	}
	return &statusResponse{Status: "deleted"}, nil
}

type reorderItemsRequest struct {
	Space string            `path:"space"`
	Moves []models.ItemMove `json:"moves"`
}

func (r *reorderItemsRequest) Validate() error {
	if len(r.Moves) == 0 {
		return models.MissingField("moves")
	}
	return nil
}

// ReorderItems applies a batch of position and category assignments.
func (s *Server) ReorderItems(ctx context.Context, req *reorderItemsRequest) (*statusResponse, error) {
	st, err := s.reg.Space(req.Space)
	if err != nil {
		return nil, err
	}
	if err := st.ReorderItems(req.Moves); err != nil {
		return nil, err
	}
	return &statusResponse{Status: "reordered"}, nil
}
