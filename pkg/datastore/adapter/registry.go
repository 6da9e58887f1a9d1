package adapter

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/redbco/redb-esadapter/pkg/dbcapabilities"
)

// Registry manages the registration and retrieval of engine backends.
type Registry struct {
	backends map[dbcapabilities.EngineID]Backend
	mu       sync.RWMutex
}

// NewRegistry creates a new backend registry.
func NewRegistry() *Registry {
	return &Registry{
		backends: make(map[dbcapabilities.EngineID]Backend),
	}
}

// Register registers a backend.
// If a backend for the same engine is already registered, it will be replaced.
func (r *Registry) Register(backend Backend) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.backends[backend.Type()] = backend
}

// Get retrieves a registered backend by engine ID.
// Returns ErrAdapterNotFound if the backend is not registered.
func (r *Registry) Get(engine dbcapabilities.EngineID) (Backend, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	backend, exists := r.backends[engine]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrAdapterNotFound, engine)
	}

	return backend, nil
}

// GetByName retrieves a registered backend by engine name or alias.
func (r *Registry) GetByName(name string) (Backend, error) {
	engine, ok := dbcapabilities.ParseID(name)
	if !ok {
		return nil, fmt.Errorf("%w: unknown engine '%s'", ErrAdapterNotFound, name)
	}

	return r.Get(engine)
}

// IsRegistered checks if a backend is registered for the given engine.
func (r *Registry) IsRegistered(engine dbcapabilities.EngineID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.backends[engine]
	return exists
}

// ListRegistered returns the registered engine IDs in sorted order.
func (r *Registry) ListRegistered() []dbcapabilities.EngineID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]dbcapabilities.EngineID, 0, len(r.backends))
	for id := range r.backends {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	return ids
}

// Unregister removes a backend from the registry.
func (r *Registry) Unregister(engine dbcapabilities.EngineID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.backends, engine)
}

// Clear removes all backends from the registry.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.backends = make(map[dbcapabilities.EngineID]Backend)
}

// Connect opens a session using the backend selected by config.Engine.
// Failures that are not already typed are reported as *ConnectionError.
func (r *Registry) Connect(ctx context.Context, config DatastoreConfig) (Session, error) {
	engine, err := config.EngineID()
	if err != nil {
		return nil, err
	}

	backend, err := r.Get(engine)
	if err != nil {
		return nil, err
	}

	session, err := backend.Connect(ctx, config)
	if err != nil {
		var connErr *ConnectionError
		var cfgErr *ConfigurationError
		if errors.As(err, &connErr) || errors.As(err, &cfgErr) {
			return nil, err
		}
		return nil, NewConnectionError(engine, config.Hosts, err)
	}

	return session, nil
}

// globalRegistry is the default global backend registry.
var globalRegistry = NewRegistry()

// Register registers a backend in the global registry.
func Register(backend Backend) {
	globalRegistry.Register(backend)
}

// Get retrieves a backend from the global registry.
func Get(engine dbcapabilities.EngineID) (Backend, error) {
	return globalRegistry.Get(engine)
}

// GetByName retrieves a backend from the global registry by name.
func GetByName(name string) (Backend, error) {
	return globalRegistry.GetByName(name)
}

// IsRegistered checks if a backend is registered in the global registry.
func IsRegistered(engine dbcapabilities.EngineID) bool {
	return globalRegistry.IsRegistered(engine)
}

// ListRegistered returns all registered engines from the global registry.
func ListRegistered() []dbcapabilities.EngineID {
	return globalRegistry.ListRegistered()
}

// GlobalRegistry returns the global backend registry.
func GlobalRegistry() *Registry {
	return globalRegistry
}
