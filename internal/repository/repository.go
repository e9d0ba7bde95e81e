// Package repository maps domain records onto document store collections.
package repository

import (
	"encoding/json"
	"fmt"
	"time"

	"savium-invest-go/internal/store"
)

// Repository provides typed access to every collection
type Repository struct {
	store store.DocumentStore
	now   func() time.Time
}

func New(s store.DocumentStore) *Repository {
	return &Repository{store: s, now: time.Now}
}

// WithClock returns a copy whose timestamps come from now.
func (r *Repository) WithClock(now func() time.Time) *Repository {
	return &Repository{store: r.store, now: now}
}

// Store exposes the underlying document store.
func (r *Repository) Store() store.DocumentStore {
	return r.store
}

func (r *Repository) timeNow() time.Time {
	return r.now().UTC()
}

func decode[T any](doc store.Document) (T, error) {
	var out T
	raw, err := json.Marshal(doc.Data)
	if err != nil {
		return out, fmt.Errorf("unable to marshal document %s: %w", doc.Id, err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("unable to decode document %s: %w", doc.Id, err)
	}
	return out, nil
}

func decodeAll[T any](docs []store.Document) ([]T, error) {
	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		v, err := decode[T](doc)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
