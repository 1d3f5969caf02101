package db

import (
	"context"
	"errors"
	"sort"
)

// Collections, one per entity type.
const (
	Blogs      = "blogs"
	Properties = "properties"
	Commets    = "commets"
	Contacts   = "contacts"
)

// IDKey is the document key carrying the primary key.
const IDKey = "_id"

// ErrNotFound is returned when no document matches the given id.
var ErrNotFound = errors.New("document not found")

// Document is a loosely typed stored record. Values are JSON-compatible.
type Document map[string]any

// ID returns the document's primary key, or "" if it has none.
func (d Document) ID() string {
	id, _ := d[IDKey].(string)
	return id
}

// String returns d[key] when it is a string.
func (d Document) String(key string) string {
	s, _ := d[key].(string)
	return s
}

// Strings returns d[key] as a list of strings. A single string yields a
// one-element list; non-string elements are skipped.
func (d Document) Strings(key string) []string {
	switch v := d[key].(type) {
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// WithoutID returns a shallow copy of d minus the primary key and the given keys.
func (d Document) WithoutID(drop ...string) Document {
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	delete(out, IDKey)
	for _, k := range drop {
		delete(out, k)
	}
	return out
}

// Filter matches documents whose top-level string fields equal the given values.
type Filter map[string]string

func (f Filter) keys() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Mutation describes an update: Set replaces every field except the primary key
// and the Append keys; Append extends the stored arrays with new values.
type Mutation struct {
	Set    Document
	Append map[string][]string
}

func (m Mutation) appendKeys() []string {
	keys := make([]string, 0, len(m.Append))
	for k := range m.Append {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Store is the document database used by every entity repository.
type Store interface {
	// Insert stores doc and returns it with its assigned IDKey.
	Insert(ctx context.Context, coll string, doc Document) (Document, error)
	// FindByID returns ErrNotFound when id is unknown or malformed.
	FindByID(ctx context.Context, coll, id string) (Document, error)
	// Find returns matching documents in insertion order, never nil.
	Find(ctx context.Context, coll string, filter Filter) ([]Document, error)
	// Replace applies m atomically and returns the updated document.
	Replace(ctx context.Context, coll, id string, m Mutation) (Document, error)
	// DeleteByID removes and returns one document.
	DeleteByID(ctx context.Context, coll, id string) (Document, error)
	// DeleteMany removes and returns every document matching a non-empty filter.
	DeleteMany(ctx context.Context, coll string, filter Filter) ([]Document, error)
	// WithTx runs fn against a transactional view of the store when the backend
	// supports it; otherwise fn runs directly and partial effects remain on error.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
	Close(ctx context.Context) error
}

var errEmptyFilter = errors.New("refusing to delete with an empty filter")
