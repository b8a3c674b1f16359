package store

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

var (
	ErrStoreNotFound = errors.New("store not found")
)

// Provider returns the store holding a project's data.
type Provider interface {
	Provide(projectID uuid.UUID) (Store, error)
}

// ProjectStoreProvider routes projects to dedicated stores.
type ProjectStoreProvider struct {
	mu     sync.RWMutex
	stores map[string]Store
}

func NewProjectStoreProvider() *ProjectStoreProvider {
	return &ProjectStoreProvider{
		stores: make(map[string]Store),
	}
}

// Register binds a project to a store.
func (p *ProjectStoreProvider) Register(projectID uuid.UUID, store Store) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stores[projectID.String()] = store
}

func (p *ProjectStoreProvider) Provide(projectID uuid.UUID) (Store, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if store, ok := p.stores[projectID.String()]; ok {
		return store, nil
	}

	return nil, ErrStoreNotFound
}

// DefaultProvider serves every project from one store.
type DefaultProvider struct {
	store Store
}

func NewDefaultProvider(store Store) *DefaultProvider {
	return &DefaultProvider{store: store}
}

func (p *DefaultProvider) Provide(projectID uuid.UUID) (Store, error) {
	return p.store, nil
}
