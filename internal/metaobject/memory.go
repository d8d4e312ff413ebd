package metaobject

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// MemStore keeps metaobjects in process memory, in insertion order.
type MemStore struct {
	mu          sync.RWMutex
	order       []string
	records     map[string]Metaobject
	definitions map[string]Definition
}

// NewMemStore constructs an empty store.
func NewMemStore() *MemStore {
	return &MemStore{
		records:     make(map[string]Metaobject),
		definitions: make(map[string]Definition),
	}
}

// List returns up to first records of typ.
func (s *MemStore) List(_ context.Context, typ string, first int) ([]Metaobject, error) {
	if first <= 0 {
		first = DefaultPageSize
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Metaobject, 0)
	for _, id := range s.order {
		rec := s.records[id]
		if rec.Type != typ {
			continue
		}
		out = append(out, clone(rec))
		if len(out) == first {
			break
		}
	}
	return out, nil
}

// Create stores a record under a fresh GID.
func (s *MemStore) Create(_ context.Context, typ string, fields []Field) (Metaobject, error) {
	rec := Metaobject{
		ID:     fmt.Sprintf("gid://shopify/Metaobject/%s", uuid.NewString()),
		Type:   typ,
		Fields: append([]Field(nil), fields...),
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.ID] = rec
	s.order = append(s.order, rec.ID)
	return clone(rec), nil
}

// Update merges fields into an existing record by key.
func (s *MemStore) Update(_ context.Context, id string, fields []Field) (Metaobject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return Metaobject{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	rec = clone(rec)
	for _, f := range fields {
		replaced := false
		for i := range rec.Fields {
			if rec.Fields[i].Key == f.Key {
				rec.Fields[i].Value = f.Value
				replaced = true
				break
			}
		}
		if !replaced {
			rec.Fields = append(rec.Fields, f)
		}
	}
	s.records[id] = rec
	return clone(rec), nil
}

// Delete removes a record.
func (s *MemStore) Delete(_ context.Context, id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(s.records, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return id, nil
}

// CreateDefinition records a definition; a second definition of the same type reports a user error.
func (s *MemStore) CreateDefinition(_ context.Context, def Definition) (DefinitionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.definitions[def.Type]; exists {
		return DefinitionResult{UserErrors: []DefinitionError{{
			Field:   []string{"definition", "type"},
			Message: "Type has already been taken",
		}}}, nil
	}
	s.definitions[def.Type] = def
	return DefinitionResult{
		ID:         fmt.Sprintf("gid://shopify/MetaobjectDefinition/%s", uuid.NewString()),
		UserErrors: []DefinitionError{},
	}, nil
}

// Put inserts a record verbatim, including malformed ones. Intended for tests and seeding.
func (s *MemStore) Put(rec Metaobject) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[rec.ID]; !exists {
		s.order = append(s.order, rec.ID)
	}
	s.records[rec.ID] = clone(rec)
}

func clone(rec Metaobject) Metaobject {
	rec.Fields = append([]Field(nil), rec.Fields...)
	return rec
}
