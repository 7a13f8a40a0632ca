package favorites

import (
	"context"
	"sort"
	"sync"

	"github.com/andrifirman/go-print-assets/internal/assets"
)

// MemoryStore mirrors the postgres Repo semantics in memory, including the
// (owner, reference) uniqueness constraint. Used by tests and the dev profile.
type MemoryStore struct {
	mu     sync.Mutex
	byID   map[string]assets.SavedAsset
	byRef  map[ownerRef]string // -> asset id
	refsOf map[string][]string
}

type ownerRef struct{ owner, ref string }

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:   map[string]assets.SavedAsset{},
		byRef:  map[ownerRef]string{},
		refsOf: map[string][]string{},
	}
}

func (m *MemoryStore) FindByRefs(ctx context.Context, ownerID string, refs []string) (assets.SavedAsset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ref := range refs {
		if id, ok := m.byRef[ownerRef{ownerID, ref}]; ok {
			return m.byID[id], nil
		}
	}
	return assets.SavedAsset{}, assets.ErrNotFound
}

func (m *MemoryStore) Insert(ctx context.Context, a assets.SavedAsset, refs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ref := range refs {
		if _, taken := m.byRef[ownerRef{a.OwnerID, ref}]; taken {
			return ErrDuplicate
		}
	}
	m.byID[a.ID] = a
	m.refsOf[a.ID] = append([]string(nil), refs...)
	for _, ref := range refs {
		m.byRef[ownerRef{a.OwnerID, ref}] = a.ID
	}
	return nil
}

func (m *MemoryStore) List(ctx context.Context, ownerID string) ([]assets.SavedAsset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []assets.SavedAsset
	for _, a := range m.byID {
		if a.OwnerID == ownerID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) Get(ctx context.Context, assetID string) (assets.SavedAsset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[assetID]
	if !ok {
		return assets.SavedAsset{}, assets.ErrNotFound
	}
	return a, nil
}

func (m *MemoryStore) Delete(ctx context.Context, assetID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[assetID]
	if !ok {
		return assets.ErrNotFound
	}
	for _, ref := range m.refsOf[assetID] {
		delete(m.byRef, ownerRef{a.OwnerID, ref})
	}
	delete(m.refsOf, assetID)
	delete(m.byID, assetID)
	return nil
}
