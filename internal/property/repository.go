// Package property manages rental listings. A property carries arbitrary
// descriptive fields, a Locality used for search and a growing list of images.
package property

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tolet/service/internal/db"
)

const (
	localityKey = "Locality"
	imagesKey   = "img"
)

// Property is a listing. Fields carries every stored field other than the id
// and the images, Locality included.
type Property struct {
	ID     string
	Img    []string
	Fields map[string]any
}

// MarshalJSON flattens Fields alongside the id and images.
func (p Property) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(p.Fields)+2)
	for k, v := range p.Fields {
		out[k] = v
	}
	out[db.IDKey] = p.ID
	img := p.Img
	if img == nil {
		img = []string{}
	}
	out[imagesKey] = img
	return json.Marshal(out)
}

// ErrNotFound is returned when a property does not exist.
var ErrNotFound = errors.New("property not found")

// Repository handles property persistence.
type Repository struct {
	store db.Store
}

// NewRepository creates a new Repository on the given store.
func NewRepository(store db.Store) *Repository {
	return &Repository{store: store}
}

// Create inserts a property with the given fields and image references.
func (r *Repository) Create(ctx context.Context, fields map[string]any, img []string) (*Property, error) {
	doc := db.Document(fields).WithoutID(imagesKey)
	doc[imagesKey] = img

	stored, err := r.store.Insert(ctx, db.Properties, doc)
	if err != nil {
		return nil, fmt.Errorf("create property: %w", err)
	}
	return fromDocument(stored), nil
}

// List returns every property.
func (r *Repository) List(ctx context.Context) ([]*Property, error) {
	return r.find(ctx, nil)
}

// ListByLocality returns properties whose Locality equals locality exactly.
func (r *Repository) ListByLocality(ctx context.Context, locality string) ([]*Property, error) {
	return r.find(ctx, db.Filter{localityKey: locality})
}

func (r *Repository) find(ctx context.Context, filter db.Filter) ([]*Property, error) {
	docs, err := r.store.Find(ctx, db.Properties, filter)
	if err != nil {
		return nil, fmt.Errorf("list properties: %w", err)
	}
	out := make([]*Property, 0, len(docs))
	for _, d := range docs {
		out = append(out, fromDocument(d))
	}
	return out, nil
}

// GetByID fetches a property by id.
func (r *Repository) GetByID(ctx context.Context, id string) (*Property, error) {
	doc, err := r.store.FindByID(ctx, db.Properties, id)
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get property by id: %w", err)
	}
	return fromDocument(doc), nil
}

// Exists reports whether a property with id is stored.
func (r *Repository) Exists(ctx context.Context, id string) (bool, error) {
	_, err := r.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Replace overwrites every non-image field with fields and appends img to the
// stored images in one store operation.
func (r *Repository) Replace(ctx context.Context, id string, fields map[string]any, img []string) (*Property, error) {
	doc, err := r.store.Replace(ctx, db.Properties, id, db.Mutation{
		Set:    db.Document(fields).WithoutID(imagesKey),
		Append: map[string][]string{imagesKey: img},
	})
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update property: %w", err)
	}
	return fromDocument(doc), nil
}

// Delete removes a property and returns it.
func (r *Repository) Delete(ctx context.Context, id string) (*Property, error) {
	doc, err := r.store.DeleteByID(ctx, db.Properties, id)
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("delete property: %w", err)
	}
	return fromDocument(doc), nil
}

func fromDocument(d db.Document) *Property {
	img := d.Strings(imagesKey)
	if img == nil {
		img = []string{}
	}
	return &Property{
		ID:     d.ID(),
		Img:    img,
		Fields: d.WithoutID(imagesKey),
	}
}
