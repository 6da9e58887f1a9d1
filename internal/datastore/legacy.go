package datastore

import (
	"context"
	"sync"

	"github.com/redbco/redb-esadapter/pkg/datastore/adapter"
)

// Completion receives the outcome of a Legacy call.
type Completion[T any] func(result T, err error)

// Deferred is a result that settles exactly once.
type Deferred[T any] struct {
	once   sync.Once
	done   chan struct{}
	result T
	err    error
}

func newDeferred[T any]() *Deferred[T] {
	return &Deferred[T]{done: make(chan struct{})}
}

func (d *Deferred[T]) settle(result T, err error) {
	d.once.Do(func() {
		d.result, d.err = result, err
		close(d.done)
	})
}

// Done is closed once the result is available.
func (d *Deferred[T]) Done() <-chan struct{} {
	return d.done
}

// Await blocks until the result is available or ctx ends. Giving up on ctx
// does not cancel the underlying operation.
func (d *Deferred[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-d.done:
		return d.result, d.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Legacy offers the Adapter operations in completion style: with a non-nil
// Completion the call returns nil and the completion runs exactly once;
// without one the call returns a Deferred.
type Legacy struct {
	adapter *Adapter
}

// NewLegacy wraps a.
func NewLegacy(a *Adapter) *Legacy {
	return &Legacy{adapter: a}
}

// Adapter returns the wrapped adapter.
func (l *Legacy) Adapter() *Adapter {
	return l.adapter
}

func run[T any](fn func() (T, error), done Completion[T]) *Deferred[T] {
	d := newDeferred[T]()
	go func() {
		result, err := fn()
		d.settle(result, err)
		if done != nil {
			done(result, err)
		}
	}()
	if done != nil {
		return nil
	}
	return d
}

func (l *Legacy) RegisterDatastore(ctx context.Context, cfg adapter.DatastoreConfig, defs []adapter.CollectionDef, done Completion[struct{}]) *Deferred[struct{}] {
	return run(func() (struct{}, error) {
		return struct{}{}, l.adapter.RegisterDatastore(ctx, cfg, defs)
	}, done)
}

func (l *Legacy) Teardown(ctx context.Context, identity string, done Completion[struct{}]) *Deferred[struct{}] {
	return run(func() (struct{}, error) {
		return struct{}{}, l.adapter.Teardown(ctx, identity)
	}, done)
}

func (l *Legacy) Describe(ctx context.Context, identity, collection string, done Completion[map[string]interface{}]) *Deferred[map[string]interface{}] {
	return run(func() (map[string]interface{}, error) {
		return l.adapter.Describe(ctx, identity, collection)
	}, done)
}

func (l *Legacy) Define(ctx context.Context, identity, collection string, definition map[string]interface{}, done Completion[struct{}]) *Deferred[struct{}] {
	return run(func() (struct{}, error) {
		return struct{}{}, l.adapter.Define(ctx, identity, collection, definition)
	}, done)
}

func (l *Legacy) Drop(ctx context.Context, identity, collection string, done Completion[struct{}]) *Deferred[struct{}] {
	return run(func() (struct{}, error) {
		return struct{}{}, l.adapter.Drop(ctx, identity, collection)
	}, done)
}

func (l *Legacy) Create(ctx context.Context, identity, collection string, doc adapter.Document, done Completion[*adapter.InsertedDoc]) *Deferred[*adapter.InsertedDoc] {
	return run(func() (*adapter.InsertedDoc, error) {
		return l.adapter.Create(ctx, identity, collection, doc)
	}, done)
}

func (l *Legacy) Search(ctx context.Context, identity, collection string, criteria adapter.Criteria, indices []string, done Completion[[]adapter.Document]) *Deferred[[]adapter.Document] {
	return run(func() ([]adapter.Document, error) {
		return l.adapter.Search(ctx, identity, collection, criteria, indices...)
	}, done)
}

// Find is an alias of Search.
func (l *Legacy) Find(ctx context.Context, identity, collection string, criteria adapter.Criteria, indices []string, done Completion[[]adapter.Document]) *Deferred[[]adapter.Document] {
	return l.Search(ctx, identity, collection, criteria, indices, done)
}

func (l *Legacy) Update(ctx context.Context, identity, collection, id string, patch adapter.Document, done Completion[*adapter.UpdatedDoc]) *Deferred[*adapter.UpdatedDoc] {
	return run(func() (*adapter.UpdatedDoc, error) {
		return l.adapter.Update(ctx, identity, collection, id, patch)
	}, done)
}

func (l *Legacy) Destroy(ctx context.Context, identity, collection, id string, done Completion[*adapter.Ack]) *Deferred[*adapter.Ack] {
	return run(func() (*adapter.Ack, error) {
		return l.adapter.Destroy(ctx, identity, collection, id)
	}, done)
}

func (l *Legacy) Count(ctx context.Context, identity, collection string, criteria adapter.Criteria, done Completion[int64]) *Deferred[int64] {
	return run(func() (int64, error) {
		return l.adapter.Count(ctx, identity, collection, criteria)
	}, done)
}

func (l *Legacy) Bulk(ctx context.Context, identity, collection string, ops []adapter.BulkOperation, done Completion[*adapter.BulkResult]) *Deferred[*adapter.BulkResult] {
	return run(func() (*adapter.BulkResult, error) {
		return l.adapter.Bulk(ctx, identity, collection, ops)
	}, done)
}
