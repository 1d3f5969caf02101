// Package blog manages blog posts and their cover images.
package blog

import (
	"context"
	"errors"
	"fmt"

	"github.com/tolet/service/internal/db"
)

// Blog is a published post. Img is a local "uploads/..." path or a hosted URL.
type Blog struct {
	ID      string `json:"_id"     example:"6f1c0b8e-2d1c-4a0c-9f43-2b0c2f1d9a11"`
	Title   string `json:"title"   example:"Five things to check before renting"`
	Content string `json:"content" example:"Start with the water pressure..."`
	Author  string `json:"author"  example:"Asha"`
	Img     string `json:"img"     example:"uploads/1700000000000-cover.jpg"`
}

// ErrNotFound is returned when a blog post does not exist.
var ErrNotFound = errors.New("blog not found")

// Repository handles blog persistence.
type Repository struct {
	store db.Store
}

// NewRepository creates a new Repository on the given store.
func NewRepository(store db.Store) *Repository {
	return &Repository{store: store}
}

// Create inserts b and returns the stored post.
func (r *Repository) Create(ctx context.Context, b Blog) (*Blog, error) {
	doc, err := r.store.Insert(ctx, db.Blogs, db.Document{
		"title":   b.Title,
		"content": b.Content,
		"author":  b.Author,
		"img":     b.Img,
	})
	if err != nil {
		return nil, fmt.Errorf("create blog: %w", err)
	}
	return fromDocument(doc), nil
}

// List returns every post in storage order.
func (r *Repository) List(ctx context.Context) ([]*Blog, error) {
	docs, err := r.store.Find(ctx, db.Blogs, nil)
	if err != nil {
		return nil, fmt.Errorf("list blogs: %w", err)
	}
	out := make([]*Blog, 0, len(docs))
	for _, d := range docs {
		out = append(out, fromDocument(d))
	}
	return out, nil
}

// GetByID fetches a post by id.
func (r *Repository) GetByID(ctx context.Context, id string) (*Blog, error) {
	doc, err := r.store.FindByID(ctx, db.Blogs, id)
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get blog by id: %w", err)
	}
	return fromDocument(doc), nil
}

// Delete removes a post and returns what was stored.
func (r *Repository) Delete(ctx context.Context, id string) (*Blog, error) {
	doc, err := r.store.DeleteByID(ctx, db.Blogs, id)
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("delete blog: %w", err)
	}
	return fromDocument(doc), nil
}

func fromDocument(d db.Document) *Blog {
	return &Blog{
		ID:      d.ID(),
		Title:   d.String("title"),
		Content: d.String("content"),
		Author:  d.String("author"),
		Img:     d.String("img"),
	}
}
