package datastore

import (
	"context"
	"time"

	"github.com/redbco/redb-esadapter/pkg/datastore/adapter"
	"github.com/redbco/redb-esadapter/pkg/dbcapabilities"
)

// Adapter is the public surface over a Registry: datastore lifecycle,
// collection lifecycle hooks and document operations addressed by
// (identity, collection).
type Adapter struct {
	registry *Registry
	logger   *DatastoreLogger
	recorder Recorder
}

// NewAdapter creates an adapter that owns a fresh Registry.
func NewAdapter(opts ...Option) *Adapter {
	o := buildOptions(opts)
	return &Adapter{
		registry: newRegistry(o),
		logger:   o.logger,
		recorder: o.recorder,
	}
}

// Registry exposes the underlying registry.
func (a *Adapter) Registry() *Registry {
	return a.registry
}

// RegisterDatastore connects a datastore and its collections.
func (a *Adapter) RegisterDatastore(ctx context.Context, cfg adapter.DatastoreConfig, defs []adapter.CollectionDef) error {
	return a.registry.Register(ctx, cfg, defs)
}

// Teardown removes a datastore. It always succeeds.
func (a *Adapter) Teardown(ctx context.Context, identity string) error {
	a.registry.Teardown(ctx, identity)
	return nil
}

// Close tears down every datastore.
func (a *Adapter) Close(ctx context.Context) {
	a.registry.TeardownAll(ctx)
}

// Capabilities returns the capabilities of the datastore's engine. Describe,
// Define and Drop are absent from Operations when the engine has no explicit
// collection definitions.
func (a *Adapter) Capabilities(identity string) (dbcapabilities.Capability, error) {
	h, err := a.registry.Handle(identity)
	if err != nil {
		return dbcapabilities.Capability{}, err
	}
	return h.Capabilities(), nil
}

// Supports reports whether the datastore's engine implements op.
func (a *Adapter) Supports(identity string, op dbcapabilities.Operation) bool {
	caps, err := a.Capabilities(identity)
	if err != nil {
		return false
	}
	return caps.Operations.Has(op)
}

// Client returns the raw engine client of a datastore for calls the
// adapter does not cover. Callers type-assert the result.
func (a *Adapter) Client(identity string) (interface{}, error) {
	h, err := a.registry.Handle(identity)
	if err != nil {
		return nil, err
	}
	return h.session.Raw(), nil
}

// schemaTarget returns the schema operator and target for engines that
// implement op. ok is false when the hook does not apply.
func (a *Adapter) schemaTarget(identity, collection string, op dbcapabilities.Operation) (adapter.SchemaOperator, adapter.Target, bool) {
	h, err := a.registry.Handle(identity)
	if err != nil || !h.Capabilities().Operations.Has(op) {
		return nil, adapter.Target{}, false
	}
	c, err := a.registry.Resolve(identity, collection)
	if err != nil {
		return nil, adapter.Target{}, false
	}
	return h.session.Schema(), c.Target(), true
}

func (a *Adapter) stub(identity, collection string, op dbcapabilities.Operation) {
	a.logger.LogStub(LogContext{Identity: identity, Collection: collection, Operation: string(op)})
}

// Describe returns the collection definition. On engines without explicit
// definitions it logs and returns nil, nil.
func (a *Adapter) Describe(ctx context.Context, identity, collection string) (map[string]interface{}, error) {
	ops, target, ok := a.schemaTarget(identity, collection, dbcapabilities.OpDescribe)
	if !ok {
		a.stub(identity, collection, dbcapabilities.OpDescribe)
		return nil, nil
	}
	return observe(a, identity, collection, dbcapabilities.OpDescribe, func() (map[string]interface{}, error) {
		return ops.Describe(ctx, target)
	})
}

// Define creates the collection definition. On engines without explicit
// definitions it logs and succeeds.
func (a *Adapter) Define(ctx context.Context, identity, collection string, definition map[string]interface{}) error {
	ops, target, ok := a.schemaTarget(identity, collection, dbcapabilities.OpDefine)
	if !ok {
		a.stub(identity, collection, dbcapabilities.OpDefine)
		return nil
	}
	_, err := observe(a, identity, collection, dbcapabilities.OpDefine, func() (struct{}, error) {
		return struct{}{}, ops.Define(ctx, target, definition)
	})
	return err
}

// Drop removes the collection definition. On engines without explicit
// definitions it logs and succeeds.
func (a *Adapter) Drop(ctx context.Context, identity, collection string) error {
	ops, target, ok := a.schemaTarget(identity, collection, dbcapabilities.OpDrop)
	if !ok {
		a.stub(identity, collection, dbcapabilities.OpDrop)
		return nil
	}
	_, err := observe(a, identity, collection, dbcapabilities.OpDrop, func() (struct{}, error) {
		return struct{}{}, ops.Drop(ctx, target)
	})
	return err
}

// Create inserts a document.
func (a *Adapter) Create(ctx context.Context, identity, collection string, doc adapter.Document) (*adapter.InsertedDoc, error) {
	return dispatch(a, identity, collection, dbcapabilities.OpCreate, func(c *Collection) (*adapter.InsertedDoc, error) {
		return c.Insert(ctx, doc)
	})
}

// Search returns the documents matching criteria. indices overrides the
// collection's own index.
func (a *Adapter) Search(ctx context.Context, identity, collection string, criteria adapter.Criteria, indices ...string) ([]adapter.Document, error) {
	return dispatch(a, identity, collection, dbcapabilities.OpSearch, func(c *Collection) ([]adapter.Document, error) {
		return c.Search(ctx, criteria, indices...)
	})
}

// Find is an alias of Search.
func (a *Adapter) Find(ctx context.Context, identity, collection string, criteria adapter.Criteria, indices ...string) ([]adapter.Document, error) {
	return a.Search(ctx, identity, collection, criteria, indices...)
}

// Update applies patch to the document id.
func (a *Adapter) Update(ctx context.Context, identity, collection, id string, patch adapter.Document) (*adapter.UpdatedDoc, error) {
	return dispatch(a, identity, collection, dbcapabilities.OpUpdate, func(c *Collection) (*adapter.UpdatedDoc, error) {
		return c.Update(ctx, id, patch)
	})
}

// Destroy deletes the document id.
func (a *Adapter) Destroy(ctx context.Context, identity, collection, id string) (*adapter.Ack, error) {
	return dispatch(a, identity, collection, dbcapabilities.OpDestroy, func(c *Collection) (*adapter.Ack, error) {
		return c.Destroy(ctx, id)
	})
}

// Count returns the number of documents matching criteria.
func (a *Adapter) Count(ctx context.Context, identity, collection string, criteria adapter.Criteria) (int64, error) {
	return dispatch(a, identity, collection, dbcapabilities.OpCount, func(c *Collection) (int64, error) {
		return c.Count(ctx, criteria)
	})
}

// Bulk sends ops to the collection in a single request.
func (a *Adapter) Bulk(ctx context.Context, identity, collection string, ops []adapter.BulkOperation) (*adapter.BulkResult, error) {
	return dispatch(a, identity, collection, dbcapabilities.OpBulk, func(c *Collection) (*adapter.BulkResult, error) {
		return c.Bulk(ctx, ops)
	})
}

// dispatch resolves the collection proxy and runs fn on it.
func dispatch[T any](a *Adapter, identity, collection string, op dbcapabilities.Operation, fn func(*Collection) (T, error)) (T, error) {
	return observe(a, identity, collection, op, func() (T, error) {
		c, err := a.registry.Resolve(identity, collection)
		if err != nil {
			var zero T
			return zero, err
		}
		return fn(c)
	})
}

func observe[T any](a *Adapter, identity, collection string, op dbcapabilities.Operation, fn func() (T, error)) (T, error) {
	start := time.Now()
	result, err := fn()
	elapsed := time.Since(start)

	a.recorder.ObserveOperation(identity, collection, op, elapsed, err)

	logCtx := LogContext{Identity: identity, Collection: collection, Operation: string(op), Elapsed: elapsed}
	if h, herr := a.registry.Handle(identity); herr == nil {
		logCtx.Engine = string(h.Engine())
	}
	if err != nil {
		a.logger.LogOperationFailure(logCtx, err)
	} else {
		a.logger.LogOperationSuccess(logCtx)
	}
	return result, err
}
