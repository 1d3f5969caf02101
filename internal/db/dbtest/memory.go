// Package dbtest provides an in-memory db.Store for service and handler tests.
package dbtest

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"

	"github.com/tolet/service/internal/db"
)

// Memory is a db.Store kept in process memory. Documents are round-tripped
// through JSON so callers see the same value types a real database returns.
// WithTx snapshots the data and restores it when fn fails.
type Memory struct {
	mu    sync.Mutex
	colls map[string][]db.Document
	fail  map[string]error
}

var _ db.Store = (*Memory)(nil)

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{
		colls: make(map[string][]db.Document),
		fail:  make(map[string]error),
	}
}

// FailOn makes every later call of op ("Insert", "Find", ...) on coll return err.
// An empty coll matches all collections.
func (m *Memory) FailOn(op, coll string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail[op+"/"+coll] = err
}

// Count returns the number of documents in coll.
func (m *Memory) Count(coll string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.colls[coll])
}

// Seed inserts docs directly, bypassing failure injection, and returns their ids.
func (m *Memory) Seed(coll string, docs ...db.Document) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		stored := clone(d.WithoutID())
		stored[db.IDKey] = uuid.NewString()
		m.colls[coll] = append(m.colls[coll], stored)
		ids = append(ids, stored.ID())
	}
	return ids
}

func (m *Memory) failure(op, coll string) error {
	if err := m.fail[op+"/"+coll]; err != nil {
		return err
	}
	return m.fail[op+"/"]
}

func (m *Memory) Insert(_ context.Context, coll string, doc db.Document) (db.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("Insert", coll); err != nil {
		return nil, err
	}
	stored := clone(doc.WithoutID())
	stored[db.IDKey] = uuid.NewString()
	m.colls[coll] = append(m.colls[coll], stored)
	return clone(stored), nil
}

func (m *Memory) FindByID(_ context.Context, coll, id string) (db.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("FindByID", coll); err != nil {
		return nil, err
	}
	i := m.index(coll, id)
	if i < 0 {
		return nil, db.ErrNotFound
	}
	return clone(m.colls[coll][i]), nil
}

func (m *Memory) Find(_ context.Context, coll string, filter db.Filter) ([]db.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("Find", coll); err != nil {
		return nil, err
	}
	out := []db.Document{}
	for _, d := range m.colls[coll] {
		if matches(d, filter) {
			out = append(out, clone(d))
		}
	}
	return out, nil
}

func (m *Memory) Replace(_ context.Context, coll, id string, mut db.Mutation) (db.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("Replace", coll); err != nil {
		return nil, err
	}
	i := m.index(coll, id)
	if i < 0 {
		return nil, db.ErrNotFound
	}

	old := m.colls[coll][i]
	drop := make([]string, 0, len(mut.Append))
	for k := range mut.Append {
		drop = append(drop, k)
	}
	next := clone(mut.Set.WithoutID(drop...))
	for k, vals := range mut.Append {
		list := []any{}
		for _, s := range old.Strings(k) {
			list = append(list, s)
		}
		for _, s := range vals {
			list = append(list, s)
		}
		next[k] = list
	}
	next[db.IDKey] = id
	m.colls[coll][i] = next
	return clone(next), nil
}

func (m *Memory) DeleteByID(_ context.Context, coll, id string) (db.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("DeleteByID", coll); err != nil {
		return nil, err
	}
	i := m.index(coll, id)
	if i < 0 {
		return nil, db.ErrNotFound
	}
	doc := m.colls[coll][i]
	m.colls[coll] = append(m.colls[coll][:i:i], m.colls[coll][i+1:]...)
	return clone(doc), nil
}

func (m *Memory) DeleteMany(_ context.Context, coll string, filter db.Filter) ([]db.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("DeleteMany", coll); err != nil {
		return nil, err
	}
	removed := []db.Document{}
	kept := m.colls[coll][:0:0]
	for _, d := range m.colls[coll] {
		if matches(d, filter) {
			removed = append(removed, clone(d))
			continue
		}
		kept = append(kept, d)
	}
	m.colls[coll] = kept
	return removed, nil
}

func (m *Memory) WithTx(ctx context.Context, fn func(ctx context.Context, tx db.Store) error) error {
	m.mu.Lock()
	snapshot := make(map[string][]db.Document, len(m.colls))
	for k, docs := range m.colls {
		snapshot[k] = append([]db.Document(nil), docs...)
	}
	m.mu.Unlock()

	if err := fn(ctx, m); err != nil {
		m.mu.Lock()
		m.colls = snapshot
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *Memory) Close(context.Context) error { return nil }

func (m *Memory) index(coll, id string) int {
	for i, d := range m.colls[coll] {
		if d.ID() == id {
			return i
		}
	}
	return -1
}

func matches(d db.Document, filter db.Filter) bool {
	for k, v := range filter {
		s, ok := d[k].(string)
		if !ok || s != v {
			return false
		}
	}
	return true
}

func clone(d db.Document) db.Document {
	raw, err := json.Marshal(d)
	if err != nil {
		panic(err)
	}
	out := db.Document{}
	if err := json.Unmarshal(raw, &out); err != nil {
		panic(err)
	}
	return out
}
