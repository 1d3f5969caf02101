package comment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tolet/service/internal/storage"
	"github.com/tolet/service/internal/upload"
	"github.com/tolet/service/internal/validate"
)

// ErrPropertyNotFound is returned when commenting on a property that does not exist.
var ErrPropertyNotFound = errors.New("property not found")

// PropertyChecker reports whether a property exists.
type PropertyChecker interface {
	Exists(ctx context.Context, id string) (bool, error)
}

// Service contains business logic for commets.
type Service struct {
	repo       *Repository
	properties PropertyChecker
	blobs      storage.Storage
}

// NewService creates a new commet Service.
func NewService(repo *Repository, properties PropertyChecker, blobs storage.Storage) *Service {
	return &Service{repo: repo, properties: properties, blobs: blobs}
}

// Create attaches a commet with exactly one image to an existing property.
func (s *Service) Create(ctx context.Context, propertyID string, form *upload.Form) (*Commet, error) {
	ok, err := s.properties.Exists(ctx, propertyID)
	if err != nil {
		form.Discard()
		return nil, fmt.Errorf("check property: %w", err)
	}
	if !ok {
		form.Discard()
		return nil, ErrPropertyNotFound
	}
	if len(form.Files) == 0 {
		return nil, validate.Required("image")
	}

	ref, err := s.blobs.Save(ctx, form.Files[0])
	if err != nil {
		form.Discard()
		return nil, fmt.Errorf("store commet image: %w", err)
	}

	c, err := s.repo.Create(ctx, Commet{PropertyID: propertyID, Img: ref, Fields: form.Fields})
	if err != nil {
		if derr := s.blobs.Delete(context.WithoutCancel(ctx), ref); derr != nil {
			slog.Warn("orphaned commet image", "ref", ref, "error", derr)
		}
		return nil, err
	}
	return c, nil
}

// ListByProperty returns the commets of a property.
func (s *Service) ListByProperty(ctx context.Context, propertyID string) ([]*Commet, error) {
	return s.repo.ListByProperty(ctx, propertyID)
}

// Delete removes a commet, then its image.
func (s *Service) Delete(ctx context.Context, id string) error {
	c, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}
	if err := s.blobs.Delete(ctx, c.Img); err != nil {
		return fmt.Errorf("delete commet image: %w", err)
	}
	return nil
}

// IsNotFound returns true when the error indicates a commet was not found.
func (s *Service) IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsPropertyNotFound returns true when the target property does not exist.
func (s *Service) IsPropertyNotFound(err error) bool {
	return errors.Is(err, ErrPropertyNotFound)
}
