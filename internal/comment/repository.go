// Package comment manages commets: image-bearing comments attached to a
// property. The collection and JSON names keep the "commet" spelling that
// API clients already depend on.
package comment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tolet/service/internal/db"
)

// Commet is a comment on a property. Fields carries every submitted field
// other than the ones modelled explicitly.
type Commet struct {
	ID         string
	PropertyID string
	Img        string
	Fields     map[string]any
}

// MarshalJSON flattens Fields alongside the fixed keys.
func (c Commet) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(c.Fields)+3)
	for k, v := range c.Fields {
		out[k] = v
	}
	out[db.IDKey] = c.ID
	out["property_id"] = c.PropertyID
	out["img"] = c.Img
	return json.Marshal(out)
}

// ErrNotFound is returned when a commet does not exist.
var ErrNotFound = errors.New("commet not found")

// Repository handles commet persistence.
type Repository struct {
	store db.Store
}

// NewRepository creates a new Repository on the given store.
func NewRepository(store db.Store) *Repository {
	return &Repository{store: store}
}

// Create inserts c and returns the stored commet.
func (r *Repository) Create(ctx context.Context, c Commet) (*Commet, error) {
	doc := db.Document(c.Fields).WithoutID("property_id", "img")
	doc["property_id"] = c.PropertyID
	doc["img"] = c.Img

	stored, err := r.store.Insert(ctx, db.Commets, doc)
	if err != nil {
		return nil, fmt.Errorf("create commet: %w", err)
	}
	return fromDocument(stored), nil
}

// ListByProperty returns the commets attached to a property.
func (r *Repository) ListByProperty(ctx context.Context, propertyID string) ([]*Commet, error) {
	docs, err := r.store.Find(ctx, db.Commets, db.Filter{"property_id": propertyID})
	if err != nil {
		return nil, fmt.Errorf("list commets: %w", err)
	}
	return fromDocuments(docs), nil
}

// Delete removes one commet and returns it.
func (r *Repository) Delete(ctx context.Context, id string) (*Commet, error) {
	doc, err := r.store.DeleteByID(ctx, db.Commets, id)
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("delete commet: %w", err)
	}
	return fromDocument(doc), nil
}

// DeleteByProperty removes every commet of a property and returns them.
func (r *Repository) DeleteByProperty(ctx context.Context, propertyID string) ([]*Commet, error) {
	docs, err := r.store.DeleteMany(ctx, db.Commets, db.Filter{"property_id": propertyID})
	if err != nil {
		return nil, fmt.Errorf("delete commets of property %s: %w", propertyID, err)
	}
	return fromDocuments(docs), nil
}

func fromDocument(d db.Document) *Commet {
	return &Commet{
		ID:         d.ID(),
		PropertyID: d.String("property_id"),
		Img:        d.String("img"),
		Fields:     d.WithoutID("property_id", "img"),
	}
}

func fromDocuments(docs []db.Document) []*Commet {
	out := make([]*Commet, 0, len(docs))
	for _, d := range docs {
		out = append(out, fromDocument(d))
	}
	return out
}
