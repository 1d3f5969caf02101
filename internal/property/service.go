package property

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tolet/service/internal/comment"
	"github.com/tolet/service/internal/db"
	"github.com/tolet/service/internal/storage"
	"github.com/tolet/service/internal/upload"
	"github.com/tolet/service/internal/validate"
)

// Detail is a property together with its commets.
type Detail struct {
	Property *Property        `json:"property"`
	Comets   []*comment.Commet `json:"comets"`
}

// Service contains business logic for properties.
type Service struct {
	store db.Store
	repo  *Repository
	blobs storage.Storage
}

// NewService creates a new property Service. The store is needed directly to
// run the cascade delete in one transaction.
func NewService(store db.Store, blobs storage.Storage) *Service {
	return &Service{store: store, repo: NewRepository(store), blobs: blobs}
}

// Repository exposes the service's repository, e.g. as the property check for commets.
func (s *Service) Repository() *Repository {
	return s.repo
}

// Create stores a property with its images. Locality and at least one image
// are required.
func (s *Service) Create(ctx context.Context, form *upload.Form) (*Property, error) {
	missing := validate.Missing(form.Fields, localityKey)
	if len(form.Files) == 0 {
		missing = append(missing, "images")
	}
	if err := validate.Required(missing...); err != nil {
		form.Discard()
		return nil, err
	}

	refs, err := storage.SaveAll(ctx, s.blobs, form.Files)
	if err != nil {
		form.Discard()
		return nil, fmt.Errorf("store property images: %w", err)
	}

	p, err := s.repo.Create(ctx, form.Fields, refs)
	if err != nil {
		s.forget(ctx, refs)
		return nil, err
	}
	return p, nil
}

// List returns every property.
func (s *Service) List(ctx context.Context) ([]*Property, error) {
	return s.repo.List(ctx)
}

// ListByLocality returns properties in the given locality.
func (s *Service) ListByLocality(ctx context.Context, locality string) ([]*Property, error) {
	return s.repo.ListByLocality(ctx, locality)
}

// Get returns a property with its commets.
func (s *Service) Get(ctx context.Context, id string) (*Detail, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	comets, err := comment.NewRepository(s.store).ListByProperty(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Detail{Property: p, Comets: comets}, nil
}

// Update replaces the non-image fields with the form fields and appends any
// uploaded images to the stored list.
func (s *Service) Update(ctx context.Context, id string, form *upload.Form) (*Property, error) {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		form.Discard()
		return nil, err
	}

	refs, err := storage.SaveAll(ctx, s.blobs, form.Files)
	if err != nil {
		form.Discard()
		return nil, fmt.Errorf("store property images: %w", err)
	}

	p, err := s.repo.Replace(ctx, id, form.Fields, refs)
	if err != nil {
		s.forget(ctx, refs)
		return nil, err
	}
	return p, nil
}

// Delete removes the property and its commets in one transaction, then
// deletes every image they referenced.
func (s *Service) Delete(ctx context.Context, id string) error {
	var refs []string
	err := s.store.WithTx(ctx, func(ctx context.Context, tx db.Store) error {
		p, err := NewRepository(tx).Delete(ctx, id)
		if err != nil {
			return err
		}
		comets, err := comment.NewRepository(tx).DeleteByProperty(ctx, id)
		if err != nil {
			return err
		}

		refs = append(refs, p.Img...)
		for _, c := range comets {
			refs = append(refs, c.Img)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := storage.DeleteAll(ctx, s.blobs, refs); err != nil {
		return fmt.Errorf("delete property images: %w", err)
	}
	slog.Debug("property deleted", "id", id, "images", len(refs))
	return nil
}

// IsNotFound returns true when the error indicates a property was not found.
func (s *Service) IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// forget removes images whose document was never written.
func (s *Service) forget(ctx context.Context, refs []string) {
	if err := storage.DeleteAll(context.WithoutCancel(ctx), s.blobs, refs); err != nil {
		slog.Warn("orphaned property images", "refs", refs, "error", err)
	}
}
