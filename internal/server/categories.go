package server

import (
	"context"
	"strconv"

	"github.com/maruel/pane/internal/models"
	"github.com/maruel/pane/internal/storage/space"
)

type listCategoriesRequest struct {
	Space string `path:"space"`
	// Parent filters the listing: empty for every category, "root" for
	// root-level categories, or a category id for its direct children.
	Parent string `query:"parent"`
}

func (r *listCategoriesRequest) Validate() error {
	if r.Parent != "" && r.Parent != "root" {
		if _, err := strconv.ParseInt(r.Parent, 10, 64); err != nil {
			return models.BadRequest("Invalid parent filter").WithDetail("parent", r.Parent)
		}
	}
	return nil
}

type categoryListResponse struct {
	Categories []models.Category `json:"categories"`
}

// ListCategories returns categories of a space, optionally filtered to
// one level of the tree.
func (s *Server) ListCategories(ctx context.Context, req *listCategoriesRequest) (*categoryListResponse, error) {
	st, err := s.reg.Space(req.Space)
	if err != nil {
		return nil, err
	}
	var cats []models.Category
	switch req.Parent {
	case "":
		cats, err = st.ListCategories()
	case "root":
		cats, err = st.ListChildCategories(nil)
	default:
		id, _ := strconv.ParseInt(req.Parent, 10, 64)
		cats, err = st.ListChildCategories(&id)
	}
	if err != nil {
		return nil, err
	}
	return &categoryListResponse{Categories: cats}, nil
}

type createCategoryRequest struct {
	Space    string `path:"space"`
	Name     string `json:"name"`
	Color    string `json:"color"`
	ParentID *int64 `json:"parent_id"`
}

func (r *createCategoryRequest) Validate() error {
	if r.Name == "" {
		return models.MissingField("name")
	}
	if r.Color == "" {
		return models.MissingField("color")
	}
	return nil
}

// CreateCategory creates a category, appended after its siblings.
func (s *Server) CreateCategory(ctx context.Context, req *createCategoryRequest) (*models.Category, error) {
	st, err := s.reg.Space(req.Space)
	if err != nil {
		return nil, err
	}
	return st.CreateCategory(req.Name, req.Color, req.ParentID)
}

type getCategoryRequest struct {
	Space string `path:"space"`
	ID    int64  `path:"id"`
}

func (r *getCategoryRequest) Validate() error { return nil }

// GetCategory loads one category.
func (s *Server) GetCategory(ctx context.Context, req *getCategoryRequest) (*models.Category, error) {
	st, err := s.reg.Space(req.Space)
	if err != nil {
		return nil, err
	}
	return st.GetCategory(req.ID)
}

type updateCategoryRequest struct {
	Space    string                 `path:"space"`
	ID       int64                  `path:"id"`
	Name     string                 `json:"name"`
	Color    string                 `json:"color"`
	ParentID models.Optional[int64] `json:"parent_id"`
}

func (r *updateCategoryRequest) Validate() error {
	if r.Name == "" {
		return models.MissingField("name")
	}
	if r.Color == "" {
		return models.MissingField("color")
	}
	return nil
}

// UpdateCategory renames, recolors or reparents a category.
func (s *Server) UpdateCategory(ctx context.Context, req *updateCategoryRequest) (*models.Category, error) {
	st, err := s.reg.Space(req.Space)
	if err != nil {
		return nil, err
	}
	return st.UpdateCategory(req.ID, req.Name, req.Color, req.ParentID)
}

type deleteCategoryRequest struct {
	Space string `path:"space"`
	ID    int64  `path:"id"`
}

func (r *deleteCategoryRequest) Validate() error { return nil }

// DeleteCategory removes a category and its whole subtree.
func (s *Server) DeleteCategory(ctx context.Context, req *deleteCategoryRequest) (*statusResponse, error) {
	st, err := s.reg.Space(req.Space)
	if err != nil {
		return nil, err
	}
	if err := st.DeleteCategory(req.ID); err != nil {
		return nil, err
	}
	return &statusResponse{Status: "deleted"}, nil
}

type breadcrumbRequest struct {
	Space string `path:"space"`
	ID    int64  `path:"id"`
}

func (r *breadcrumbRequest) Validate() error { return nil }

type breadcrumbResponse struct {
	Breadcrumb []models.BreadcrumbSegment `json:"breadcrumb"`
}

// GetBreadcrumb returns a category's ancestor chain, root first.
func (s *Server) GetBreadcrumb(ctx context.Context, req *breadcrumbRequest) (*breadcrumbResponse, error) {
	st, err := s.reg.Space(req.Space)
	if err != nil {
		return nil, err
	}
	chain, err := st.Breadcrumb(req.ID)
	if err != nil {
		return nil, err
	}
	return &breadcrumbResponse{Breadcrumb: chain}, nil
}

type overviewRequest struct {
	Space string `path:"space"`
}

func (r *overviewRequest) Validate() error { return nil }

type overviewCategory struct {
	models.Category
	Children []models.Category `json:"children"`
	Items    []models.Item     `json:"items"`
}

type overviewResponse struct {
	Categories []overviewCategory `json:"categories"`
}

// GetOverview returns the root view of a space: every root category with
// its direct children and its items.
func (s *Server) GetOverview(ctx context.Context, req *overviewRequest) (*overviewResponse, error) {
	st, err := s.reg.Space(req.Space)
	if err != nil {
		return nil, err
	}
	roots, err := st.ListChildCategories(nil)
	if err != nil {
		return nil, err
	}
	out := overviewResponse{Categories: []overviewCategory{}}
	for _, c := range roots {
		children, err := st.ListChildCategories(&c.ID)
		if err != nil {
			return nil, err
		}
		items, err := st.ListItems(space.ItemFilter{CategoryID: &c.ID})
		if err != nil {
			return nil, err
		}
		out.Categories = append(out.Categories, overviewCategory{Category: c, Children: children, Items: items})
	}
	return &out, nil
}

type reorderCategoriesRequest struct {
	Space      string  `path:"space"`
	OrderedIDs []int64 `json:"ordered_ids"`
}

func (r *reorderCategoriesRequest) Validate() error {
	if len(r.OrderedIDs) == 0 {
		return models.MissingField("ordered_ids")
	}
	return nil
}

// ReorderCategories rewrites category positions to match the given order.
func (s *Server) ReorderCategories(ctx context.Context, req *reorderCategoriesRequest) (*statusResponse, error) {
	st, err := s.reg.Space(req.Space)
	if err != nil {
		return nil, err
	}
	if err := st.ReorderCategories(req.OrderedIDs); err != nil {
		return nil, err
	}
	return &statusResponse{Status: "reordered"}, nil
}
