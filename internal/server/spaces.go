package server

import (
	"context"

	"github.com/maruel/pane/internal/models"
)

type listSpacesRequest struct{}

func (r *listSpacesRequest) Validate() error { return nil }

type spaceListResponse struct {
	Spaces []models.Space `json:"spaces"`
}

// ListSpaces returns every space, ordered by display name.
func (s *Server) ListSpaces(ctx context.Context, req *listSpacesRequest) (*spaceListResponse, error) {
	spaces, err := s.reg.ListSpaces()
	if err != nil {
		return nil, err
	}
	return &spaceListResponse{Spaces: spaces}, nil
}

type createSpaceRequest struct {
	Name string `json:"name"`
}

func (r *createSpaceRequest) Validate() error {
	if r.Name == "" {
		return models.MissingField("name")
	}
	return nil
}

// CreateSpace creates a new space with a slug derived from the name.
func (s *Server) CreateSpace(ctx context.Context, req *createSpaceRequest) (*models.Space, error) {
	sp, err := s.reg.CreateSpace(req.Name)
	if err != nil {
		return nil, err
	}
	return &sp, nil
}

type renameSpaceRequest struct {
	Space string `path:"space"`
	Name  string `json:"name"`
}

func (r *renameSpaceRequest) Validate() error {
	if r.Name == "" {
		return models.MissingField("name")
	}
	return nil
}

// RenameSpace changes a space's display name. The slug never changes.
func (s *Server) RenameSpace(ctx context.Context, req *renameSpaceRequest) (*models.Space, error) {
	sp, err := s.reg.RenameSpace(req.Space, req.Name)
	if err != nil {
		return nil, err
	}
	return &sp, nil
}

type deleteSpaceRequest struct {
	Space string `path:"space"`
}

func (r *deleteSpaceRequest) Validate() error { return nil }

type statusResponse struct {
	Status string `json:"status"`
}

// DeleteSpace removes a space, its database and its files.
func (s *Server) DeleteSpace(ctx context.Context, req *deleteSpaceRequest) (*statusResponse, error) {
	if err := s.reg.DeleteSpace(req.Space); err != nil {
		return nil, err
	}
	return &statusResponse{Status: "deleted"}, nil
}

type seedSpaceRequest struct {
	Space string `path:"space"`
}

func (r *seedSpaceRequest) Validate() error { return nil }

// SeedSpace fills an empty space with starter content.
func (s *Server) SeedSpace(ctx context.Context, req *seedSpaceRequest) (*statusResponse, error) {
	st, err := s.reg.Space(req.Space)
	if err != nil {
		return nil, err
	}
	if err := st.Seed(); err != nil {
		return nil, err
	}
	return &statusResponse{Status: "seeded"}, nil
}
