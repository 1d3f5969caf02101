package blog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tolet/service/internal/storage"
	"github.com/tolet/service/internal/upload"
	"github.com/tolet/service/internal/validate"
)

// Service contains business logic for blog posts.
type Service struct {
	repo  *Repository
	blobs storage.Storage
}

// NewService creates a new blog Service.
func NewService(repo *Repository, blobs storage.Storage) *Service {
	return &Service{repo: repo, blobs: blobs}
}

// Create validates the form, persists the cover image and stores the post.
// Nothing is kept when validation fails.
func (s *Service) Create(ctx context.Context, form *upload.Form) (*Blog, error) {
	title, _ := form.Fields["title"].(string)
	content, _ := form.Fields["content"].(string)
	author, _ := form.Fields["author"].(string)

	if title == "" || content == "" || author == "" || len(form.Files) == 0 {
		form.Discard()
		return nil, &validate.Error{Message: "Title, content, author, and image are required"}
	}

	ref, err := s.blobs.Save(ctx, form.Files[0])
	if err != nil {
		form.Discard()
		return nil, fmt.Errorf("store blog image: %w", err)
	}

	b, err := s.repo.Create(ctx, Blog{Title: title, Content: content, Author: author, Img: ref})
	if err != nil {
		s.forget(ctx, ref)
		return nil, err
	}
	return b, nil
}

// List returns all posts.
func (s *Service) List(ctx context.Context) ([]*Blog, error) {
	return s.repo.List(ctx)
}

// GetByID returns one post.
func (s *Service) GetByID(ctx context.Context, id string) (*Blog, error) {
	return s.repo.GetByID(ctx, id)
}

// Delete removes the post, then its image.
func (s *Service) Delete(ctx context.Context, id string) error {
	b, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}
	if err := s.blobs.Delete(ctx, b.Img); err != nil {
		return fmt.Errorf("delete blog image: %w", err)
	}
	return nil
}

// IsNotFound returns true when the error indicates a post was not found.
func (s *Service) IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// forget removes an image whose document was never written.
func (s *Service) forget(ctx context.Context, ref string) {
	if err := s.blobs.Delete(context.WithoutCancel(ctx), ref); err != nil {
		slog.Warn("orphaned blog image", "ref", ref, "error", err)
	}
}
