package server

import (
	"context"

	"github.com/maruel/pane/internal/models"
)

type listTagsRequest struct{}

func (r *listTagsRequest) Validate() error { return nil }

type tagListResponse struct {
	Tags []models.Tag `json:"tags"`
}

// ListTags returns every tag, shared across all spaces.
func (s *Server) ListTags(ctx context.Context, req *listTagsRequest) (*tagListResponse, error) {
	tags, err := s.reg.ListTags()
	if err != nil {
		return nil, err
	}
	return &tagListResponse{Tags: tags}, nil
}

type createTagRequest struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

func (r *createTagRequest) Validate() error {
	if r.Name == "" {
		return models.MissingField("name")
	}
	return nil
}

// CreateTag creates a tag with an installation-wide unique name.
func (s *Server) CreateTag(ctx context.Context, req *createTagRequest) (*models.Tag, error) {
	return s.reg.CreateTag(req.Name, req.Color)
}

type updateTagRequest struct {
	ID    int64  `path:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

func (r *updateTagRequest) Validate() error {
	if r.Name == "" {
		return models.MissingField("name")
	}
	if r.Color == "" {
		return models.MissingField("color")
	}
	return nil
}

// UpdateTag renames or recolors a tag.
func (s *Server) UpdateTag(ctx context.Context, req *updateTagRequest) (*models.Tag, error) {
	return s.reg.UpdateTag(req.ID, req.Name, req.Color)
}

type deleteTagRequest struct {
	ID int64 `path:"id"`
}

func (r *deleteTagRequest) Validate() error { return nil }

// DeleteTag removes a tag everywhere; stale associations are filtered on
// read.
func (s *Server) DeleteTag(ctx context.Context, req *deleteTagRequest) (*statusResponse, error) {
	if err := s.reg.DeleteTag(req.ID); err != nil {
		return nil, err
	}
	return &statusResponse{Status: "deleted"}, nil
}
