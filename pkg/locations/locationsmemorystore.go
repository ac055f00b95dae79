// FILE: pkg/locations/locationsmemorystore.go

package locations

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// InMemoryStore is a thread-safe, in-memory implementation of the Store interface.
type InMemoryStore struct {
	sync.RWMutex
	records map[uuid.UUID]Record
}

// NewInMemoryStore creates a new in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		records: make(map[uuid.UUID]Record),
	}
}

// Save inserts or replaces the record for rec.ID.
func (s *InMemoryStore) Save(ctx context.Context, rec Record) error {
	s.Lock()
	defer s.Unlock()
	s.records[rec.ID] = rec
	return nil
}

// GetByID retrieves a record by its UUID.
func (s *InMemoryStore) GetByID(ctx context.Context, id uuid.UUID) (Record, error) {
	s.RLock()
	defer s.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return Record{}, fmt.Errorf("location with ID %s: %w", id, ErrNotFound)
	}
	return rec, nil
}

// List returns all records ordered by name.
func (s *InMemoryStore) List(ctx context.Context) ([]Record, error) {
	s.RLock()
	defer s.RUnlock()

	all := make([]Record, 0, len(s.records))
	for _, rec := range s.records {
		all = append(all, rec)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Name == all[j].Name {
			return all[i].ID.String() < all[j].ID.String()
		}
		return all[i].Name < all[j].Name
	})
	return all, nil
}
