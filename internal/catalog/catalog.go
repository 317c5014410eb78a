// Package catalog records exported packages and publishes new ones.
package catalog

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"
)

var ErrNotFound = errors.New("package not found")

type Package struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	BlobKey      string    `json:"blobKey"`
	MasteryScore *int      `json:"masteryScore,omitempty"`
	CreatedBy    string    `json:"createdBy,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

type Store interface {
	Put(ctx context.Context, p Package) error
	Get(ctx context.Context, id string) (Package, error)
	List(ctx context.Context, limit, offset int) ([]Package, error)
}

type MemoryStore struct {
	mu   sync.RWMutex
	pkgs map[string]Package
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{pkgs: map[string]Package{}} }

func (m *MemoryStore) Put(_ context.Context, p Package) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pkgs[p.ID] = p
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (Package, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.pkgs[id]
	if !ok {
		return Package{}, ErrNotFound
	}
	return p, nil
}

// List returns newest first.
func (m *MemoryStore) List(_ context.Context, limit, offset int) ([]Package, error) {
	m.mu.RLock()
	out := make([]Package, 0, len(m.pkgs))
	for _, p := range m.pkgs {
		out = append(out, p)
	}
	m.mu.RUnlock()
	slices.SortFunc(out, func(a, b Package) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return compareStrings(a.ID, b.ID)
	})
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func compareStrings(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
