package datastore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/redbco/redb-esadapter/pkg/datastore/adapter"
	"github.com/redbco/redb-esadapter/pkg/health"
)

type entry struct {
	handle      *Handle
	collections map[string]*Collection
}

// Registry maps datastore identities to their handle and collection proxies.
//
// An identity is reserved before its session is opened, so concurrent
// registrations of the same identity have exactly one winner. Entries are
// published whole and never overwritten.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	pending map[string]struct{}

	backends *adapter.Registry
	logger   *DatastoreLogger
	recorder Recorder
	secrets  SecretResolver
	health   *health.Checker
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	return newRegistry(buildOptions(opts))
}

func newRegistry(o options) *Registry {
	return &Registry{
		entries:  make(map[string]*entry),
		pending:  make(map[string]struct{}),
		backends: o.backends,
		logger:   o.logger,
		recorder: o.recorder,
		secrets:  o.secrets,
		health:   o.health,
	}
}

// Register connects a datastore and publishes it with one proxy per
// collection definition. It fails with ErrIdentityMissing or
// ErrIdentityDuplicate before touching the registry, and leaves the registry
// unchanged when the connection fails.
func (r *Registry) Register(ctx context.Context, cfg adapter.DatastoreConfig, defs []adapter.CollectionDef) error {
	// identities are opaque keys; lookups use the exact registered string
	identity := cfg.Identity
	if strings.TrimSpace(identity) == "" {
		return adapter.ErrIdentityMissing
	}

	if err := r.reserve(identity); err != nil {
		return err
	}
	published := false
	defer func() {
		if !published {
			r.release(identity)
		}
	}()

	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := validateCollections(cfg, defs); err != nil {
		return err
	}

	connectCfg, err := r.resolveSecrets(cfg)
	if err != nil {
		return err
	}

	logCtx := LogContext{Engine: cfg.Engine, Identity: identity, Hosts: cfg.Hosts}
	r.logger.LogConnectionAttempt(logCtx)

	session, err := r.backends.Connect(ctx, connectCfg)
	if err != nil {
		r.logger.LogConnectionFailure(logCtx, err)
		return err
	}

	h := &Handle{
		identity:    identity,
		config:      cfg,
		session:     session,
		connectedAt: time.Now(),
	}
	e := &entry{
		handle:      h,
		collections: make(map[string]*Collection, len(defs)),
	}
	for _, def := range defs {
		e.collections[def.Name] = newCollection(h, def)
	}

	r.mu.Lock()
	delete(r.pending, identity)
	r.entries[identity] = e
	n := len(r.entries)
	r.mu.Unlock()
	published = true

	r.recorder.SetDatastores(n)
	r.logger.LogConnectionSuccess(h.logContext(), len(defs))
	return nil
}

func (r *Registry) reserve(identity string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[identity]; ok {
		return fmt.Errorf("%w: %s", adapter.ErrIdentityDuplicate, identity)
	}
	if _, ok := r.pending[identity]; ok {
		return fmt.Errorf("%w: %s (registration in progress)", adapter.ErrIdentityDuplicate, identity)
	}
	r.pending[identity] = struct{}{}
	return nil
}

func (r *Registry) release(identity string) {
	r.mu.Lock()
	delete(r.pending, identity)
	r.mu.Unlock()
}

func validateCollections(cfg adapter.DatastoreConfig, defs []adapter.CollectionDef) error {
	engine, _ := cfg.EngineID()
	seen := make(map[string]bool, len(defs))
	for _, def := range defs {
		if def.Name == "" {
			return adapter.NewConfigurationError(engine, "collections", "collection name is required")
		}
		if seen[def.Name] {
			return adapter.NewConfigurationError(engine, "collections", fmt.Sprintf("duplicate collection %s", def.Name))
		}
		seen[def.Name] = true
	}
	return nil
}

func (r *Registry) resolveSecrets(cfg adapter.DatastoreConfig) (adapter.DatastoreConfig, error) {
	if r.secrets == nil {
		return cfg, nil
	}
	engine, _ := cfg.EngineID()

	out := cfg
	if cfg.Password != "" {
		secret, err := r.secrets.Resolve(cfg.Password)
		if err != nil {
			return cfg, adapter.NewConfigurationError(engine, "password", err.Error())
		}
		out.Password = secret
	}
	if cfg.APIKey != "" {
		secret, err := r.secrets.Resolve(cfg.APIKey)
		if err != nil {
			return cfg, adapter.NewConfigurationError(engine, "apiKey", err.Error())
		}
		out.APIKey = secret
	}
	return out, nil
}

// Resolve returns the proxy for collection on the datastore identity.
func (r *Registry) Resolve(identity, collection string) (*Collection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[identity]
	if !ok {
		return nil, adapter.NewDatastoreNotFoundError(identity)
	}
	c, ok := e.collections[collection]
	if !ok {
		return nil, adapter.NewCollectionNotFoundError(identity, collection)
	}
	return c, nil
}

// Handle returns the handle of a registered datastore.
func (r *Registry) Handle(identity string) (*Handle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[identity]
	if !ok {
		return nil, adapter.NewDatastoreNotFoundError(identity)
	}
	return e.handle, nil
}

// Collections returns the collection names of a datastore in sorted order.
func (r *Registry) Collections(identity string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[identity]
	if !ok {
		return nil, adapter.NewDatastoreNotFoundError(identity)
	}
	names := make([]string, 0, len(e.collections))
	for name := range e.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Identities returns the registered identities in sorted order.
func (r *Registry) Identities() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of registered datastores.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Teardown removes identity and closes its session. Close failures are
// logged only. Unknown identities are ignored.
func (r *Registry) Teardown(ctx context.Context, identity string) {
	r.mu.Lock()
	e, ok := r.entries[identity]
	if ok {
		delete(r.entries, identity)
	}
	n := len(r.entries)
	r.mu.Unlock()

	if !ok {
		return
	}

	r.recorder.SetDatastores(n)
	r.health.Remove(healthCheckName(identity))

	logCtx := e.handle.logContext()
	if err := e.handle.session.Close(); err != nil {
		r.logger.LogTeardownFailure(logCtx, err)
		return
	}
	r.logger.LogTeardownSuccess(logCtx)
}

// TeardownAll tears down every registered datastore.
func (r *Registry) TeardownAll(ctx context.Context) {
	for _, id := range r.Identities() {
		r.Teardown(ctx, id)
	}
}
