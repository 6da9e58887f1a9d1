package datastore

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redbco/redb-esadapter/pkg/datastore/adapter"
)

type outcome[T any] struct {
	result T
	err    error
}

// viaCallback runs call in completion style and checks the completion fires
// exactly once and nothing is returned.
func viaCallback[T any](t *testing.T, call func(Completion[T]) *Deferred[T]) outcome[T] {
	t.Helper()
	var calls int32
	ch := make(chan outcome[T], 2)

	d := call(func(result T, err error) {
		atomic.AddInt32(&calls, 1)
		ch <- outcome[T]{result, err}
	})
	assert.Nil(t, d, "callback mode returns no deferred value")

	var out outcome[T]
	select {
	case out = <-ch:
	case <-time.After(5 * time.Second):
		t.Fatal("completion was never called")
	}

	// give a second invocation a chance to show up
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	return out
}

func viaDeferred[T any](t *testing.T, call func(Completion[T]) *Deferred[T]) outcome[T] {
	t.Helper()
	d := call(nil)
	require.NotNil(t, d)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	result, err := d.Await(ctx)

	// settles once: awaiting again yields the same outcome
	again, againErr := d.Await(ctx)
	assert.Equal(t, result, again)
	assert.Equal(t, err, againErr)

	select {
	case <-d.Done():
	default:
		t.Error("Done should be closed after Await returned")
	}
	return outcome[T]{result, err}
}

func TestLegacyModesAreEquivalent(t *testing.T) {
	ctx := context.Background()
	a, _ := newTestAdapter(t)
	l := NewLegacy(a)
	assert.Same(t, a, l.Adapter())

	reg := viaCallback(t, func(done Completion[struct{}]) *Deferred[struct{}] {
		return l.RegisterDatastore(ctx, adapter.DatastoreConfig{Identity: "es1"}, defs("widget"), done)
	})
	require.NoError(t, reg.err)

	dup := viaDeferred(t, func(done Completion[struct{}]) *Deferred[struct{}] {
		return l.RegisterDatastore(ctx, adapter.DatastoreConfig{Identity: "es1"}, defs("widget"), done)
	})
	assert.ErrorIs(t, dup.err, adapter.ErrIdentityDuplicate)

	// fixed IDs make the two modes produce identical results
	for _, id := range []string{"cb", "df"} {
		_, err := a.Create(ctx, "es1", "widget", adapter.Document{adapter.IDField: id, "name": id})
		require.NoError(t, err)
	}

	t.Run("create", func(t *testing.T) {
		call := func(id string) func(Completion[*adapter.InsertedDoc]) *Deferred[*adapter.InsertedDoc] {
			return func(done Completion[*adapter.InsertedDoc]) *Deferred[*adapter.InsertedDoc] {
				return l.Create(ctx, "es1", "widget", adapter.Document{adapter.IDField: "new-" + id, "v": 1}, done)
			}
		}
		cb, df := viaCallback(t, call("x")), viaDeferred(t, call("y"))
		require.NoError(t, cb.err)
		require.NoError(t, df.err)
		assert.Equal(t, cb.result.Result, df.result.Result)
		assert.Equal(t, cb.result.Version, df.result.Version)
	})

	t.Run("search and find", func(t *testing.T) {
		criteria := adapter.Criteria{"query": map[string]interface{}{"term": map[string]interface{}{"name": "cb"}}}
		cb := viaCallback(t, func(done Completion[[]adapter.Document]) *Deferred[[]adapter.Document] {
			return l.Search(ctx, "es1", "widget", criteria, nil, done)
		})
		df := viaDeferred(t, func(done Completion[[]adapter.Document]) *Deferred[[]adapter.Document] {
			return l.Find(ctx, "es1", "widget", criteria, nil, done)
		})
		require.NoError(t, cb.err)
		assert.Equal(t, cb, df)
		assert.Len(t, cb.result, 1)
	})

	t.Run("count", func(t *testing.T) {
		call := func(done Completion[int64]) *Deferred[int64] {
			return l.Count(ctx, "es1", "widget", nil, done)
		}
		cb, df := viaCallback(t, call), viaDeferred(t, call)
		require.NoError(t, cb.err)
		assert.Equal(t, cb, df)
		assert.Equal(t, int64(4), cb.result)
	})

	t.Run("update", func(t *testing.T) {
		call := func(id string) func(Completion[*adapter.UpdatedDoc]) *Deferred[*adapter.UpdatedDoc] {
			return func(done Completion[*adapter.UpdatedDoc]) *Deferred[*adapter.UpdatedDoc] {
				return l.Update(ctx, "es1", "widget", id, adapter.Document{"name": "z"}, done)
			}
		}
		cb, df := viaCallback(t, call("cb")), viaDeferred(t, call("df"))
		require.NoError(t, cb.err)
		require.NoError(t, df.err)
		assert.Equal(t, cb.result.Version, df.result.Version)
		assert.Equal(t, cb.result.Result, df.result.Result)
	})

	t.Run("destroy", func(t *testing.T) {
		call := func(id string) func(Completion[*adapter.Ack]) *Deferred[*adapter.Ack] {
			return func(done Completion[*adapter.Ack]) *Deferred[*adapter.Ack] {
				return l.Destroy(ctx, "es1", "widget", id, done)
			}
		}
		cb, df := viaCallback(t, call("cb")), viaDeferred(t, call("df"))
		require.NoError(t, cb.err)
		require.NoError(t, df.err)
		assert.Equal(t, cb.result.Result, df.result.Result)

		// errors travel the same way
		cbErr, dfErr := viaCallback(t, call("cb")), viaDeferred(t, call("df"))
		assert.True(t, adapter.IsNotFound(cbErr.err))
		assert.True(t, adapter.IsNotFound(dfErr.err))
	})

	t.Run("bulk", func(t *testing.T) {
		call := func(done Completion[*adapter.BulkResult]) *Deferred[*adapter.BulkResult] {
			return l.Bulk(ctx, "es1", "widget", []adapter.BulkOperation{{Action: adapter.BulkDelete, ID: "absent"}}, done)
		}
		cb, df := viaCallback(t, call), viaDeferred(t, call)
		require.NoError(t, cb.err)
		assert.Equal(t, cb, df)
		assert.True(t, cb.result.Errors)
	})

	t.Run("unknown datastore", func(t *testing.T) {
		call := func(done Completion[*adapter.InsertedDoc]) *Deferred[*adapter.InsertedDoc] {
			return l.Create(ctx, "unknown", "widget", adapter.Document{}, done)
		}
		cb, df := viaCallback(t, call), viaDeferred(t, call)
		assert.ErrorIs(t, cb.err, adapter.ErrDatastoreNotFound)
		assert.ErrorIs(t, df.err, adapter.ErrDatastoreNotFound)
		assert.Nil(t, cb.result)
		assert.Nil(t, df.result)
	})

	t.Run("lifecycle hooks", func(t *testing.T) {
		desc := viaCallback(t, func(done Completion[map[string]interface{}]) *Deferred[map[string]interface{}] {
			return l.Describe(ctx, "es1", "widget", done)
		})
		assert.NoError(t, desc.err)
		assert.NoError(t, viaDeferred(t, func(done Completion[struct{}]) *Deferred[struct{}] {
			return l.Define(ctx, "es1", "widget", nil, done)
		}).err)
		assert.NoError(t, viaCallback(t, func(done Completion[struct{}]) *Deferred[struct{}] {
			return l.Drop(ctx, "es1", "widget", done)
		}).err)
	})

	td := viaCallback(t, func(done Completion[struct{}]) *Deferred[struct{}] {
		return l.Teardown(ctx, "es1", done)
	})
	assert.NoError(t, td.err)
	assert.NoError(t, viaDeferred(t, func(done Completion[struct{}]) *Deferred[struct{}] {
		return l.Teardown(ctx, "es1", done)
	}).err)
	assert.Equal(t, 0, a.Registry().Len())
}

func TestDeferredAwaitHonoursContext(t *testing.T) {
	d := newDeferred[int]()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.Await(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	d.settle(7, nil)
	d.settle(8, nil)
	v, err := d.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}
