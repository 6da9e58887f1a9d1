package datastore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redbco/redb-esadapter/internal/datastore/datastoretest"
	"github.com/redbco/redb-esadapter/pkg/datastore/adapter"
	"github.com/redbco/redb-esadapter/pkg/dbcapabilities"
)

type recordedOp struct {
	identity, collection string
	op                   dbcapabilities.Operation
	failed               bool
}

type fakeRecorder struct {
	mu         sync.Mutex
	ops        []recordedOp
	datastores int
}

func (f *fakeRecorder) ObserveOperation(identity, collection string, op dbcapabilities.Operation, elapsed time.Duration, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops = append(f.ops, recordedOp{identity, collection, op, err != nil})
}

func (f *fakeRecorder) SetDatastores(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.datastores = n
}

func newTestAdapter(t *testing.T, opts ...Option) (*Adapter, *datastoretest.Backend) {
	t.Helper()
	backend := datastoretest.NewBackend()
	backends := adapter.NewRegistry()
	backends.Register(backend)
	a := NewAdapter(append([]Option{WithBackends(backends)}, opts...)...)
	t.Cleanup(func() { a.Close(context.Background()) })
	return a, backend
}

func TestWidgetScenario(t *testing.T) {
	ctx := context.Background()
	a, _ := newTestAdapter(t)

	require.NoError(t, a.RegisterDatastore(ctx, adapter.DatastoreConfig{Identity: "es1"}, defs("widget")))

	created, err := a.Create(ctx, "es1", "widget", adapter.Document{"name": "a"})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	assert.Equal(t, "widget", created.Index)
	assert.Equal(t, "created", created.Result)

	docs, err := a.Search(ctx, "es1", "widget", adapter.Criteria{})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "a", docs[0]["name"])
	assert.Equal(t, created.ID, docs[0][adapter.IDField])

	ack, err := a.Destroy(ctx, "es1", "widget", created.ID)
	require.NoError(t, err)
	assert.True(t, ack.Found)

	n, err := a.Count(ctx, "es1", "widget", adapter.Criteria{})
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestUnknownDatastoreAndCollection(t *testing.T) {
	ctx := context.Background()
	a, _ := newTestAdapter(t)

	_, err := a.Create(ctx, "unknown", "widget", adapter.Document{})
	assert.ErrorIs(t, err, adapter.ErrDatastoreNotFound)

	require.NoError(t, a.RegisterDatastore(ctx, adapter.DatastoreConfig{Identity: "es1"}, defs("widget")))

	calls := map[string]func() error{
		"create":  func() error { _, err := a.Create(ctx, "es1", "gadget", adapter.Document{}); return err },
		"search":  func() error { _, err := a.Search(ctx, "es1", "gadget", nil); return err },
		"update":  func() error { _, err := a.Update(ctx, "es1", "gadget", "1", adapter.Document{}); return err },
		"destroy": func() error { _, err := a.Destroy(ctx, "es1", "gadget", "1"); return err },
		"count":   func() error { _, err := a.Count(ctx, "es1", "gadget", nil); return err },
		"bulk":    func() error { _, err := a.Bulk(ctx, "es1", "gadget", nil); return err },
	}
	for name, call := range calls {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, call(), adapter.ErrCollectionNotFound)
		})
	}

	// torn down identities behave like never-registered ones
	require.NoError(t, a.Teardown(ctx, "es1"))
	_, err = a.Count(ctx, "es1", "widget", nil)
	assert.ErrorIs(t, err, adapter.ErrDatastoreNotFound)

	_, err = a.Client("es1")
	assert.ErrorIs(t, err, adapter.ErrDatastoreNotFound)
	_, err = a.Capabilities("es1")
	assert.ErrorIs(t, err, adapter.ErrDatastoreNotFound)
}

func TestCountMatchesSeededDocuments(t *testing.T) {
	ctx := context.Background()
	a, _ := newTestAdapter(t)
	require.NoError(t, a.RegisterDatastore(ctx, adapter.DatastoreConfig{Identity: "es1"}, defs("widget")))

	colors := []string{"red", "blue", "red", "green", "red"}
	for _, c := range colors {
		_, err := a.Create(ctx, "es1", "widget", adapter.Document{"color": c})
		require.NoError(t, err)
	}

	tests := []struct {
		name     string
		criteria adapter.Criteria
		expected int64
	}{
		{"all", adapter.Criteria{}, 5},
		{"match_all", adapter.Criteria{"query": map[string]interface{}{"match_all": map[string]interface{}{}}}, 5},
		{"term", adapter.Criteria{"query": map[string]interface{}{"term": map[string]interface{}{"color": "red"}}}, 3},
		{"no match", adapter.Criteria{"query": map[string]interface{}{"match": map[string]interface{}{"color": "black"}}}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := a.Count(ctx, "es1", "widget", tt.criteria)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, n, int64(0))
			assert.Equal(t, tt.expected, n)

			docs, err := a.Find(ctx, "es1", "widget", tt.criteria)
			require.NoError(t, err)
			assert.Len(t, docs, int(tt.expected))
		})
	}
}

func TestEngineErrorsPassThrough(t *testing.T) {
	ctx := context.Background()
	a, _ := newTestAdapter(t)
	require.NoError(t, a.RegisterDatastore(ctx, adapter.DatastoreConfig{Identity: "es1"}, defs("widget")))

	_, err := a.Update(ctx, "es1", "widget", "missing", adapter.Document{"x": 1})
	assert.ErrorIs(t, err, adapter.ErrEngine)
	assert.True(t, adapter.IsNotFound(err))

	_, err = a.Destroy(ctx, "es1", "widget", "missing")
	assert.True(t, adapter.IsNotFound(err))

	_, err = a.Search(ctx, "es1", "widget", adapter.Criteria{"query": map[string]interface{}{"fuzzy_magic": map[string]interface{}{}}})
	var engErr *adapter.EngineError
	require.ErrorAs(t, err, &engErr)
	assert.Equal(t, 400, engErr.Status)
	assert.Equal(t, "parsing_exception", engErr.Type)
}

func TestUpdateAndSearchIndicesOverride(t *testing.T) {
	ctx := context.Background()
	a, _ := newTestAdapter(t)
	require.NoError(t, a.RegisterDatastore(ctx, adapter.DatastoreConfig{Identity: "es1"}, defs("widget", "gadget")))

	w, err := a.Create(ctx, "es1", "widget", adapter.Document{adapter.IDField: "w1", "name": "a"})
	require.NoError(t, err)
	assert.Equal(t, "w1", w.ID)
	_, err = a.Create(ctx, "es1", "gadget", adapter.Document{"name": "g"})
	require.NoError(t, err)

	upd, err := a.Update(ctx, "es1", "widget", "w1", adapter.Document{"name": "b"})
	require.NoError(t, err)
	assert.Equal(t, "updated", upd.Result)
	assert.Equal(t, int64(2), upd.Version)

	docs, err := a.Search(ctx, "es1", "widget", nil)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "b", docs[0]["name"])

	docs, err = a.Search(ctx, "es1", "widget", nil, "widget", "gadget")
	require.NoError(t, err)
	assert.Len(t, docs, 2)
}

func TestBulk(t *testing.T) {
	ctx := context.Background()
	a, _ := newTestAdapter(t)
	require.NoError(t, a.RegisterDatastore(ctx, adapter.DatastoreConfig{Identity: "es1"}, defs("widget")))

	res, err := a.Bulk(ctx, "es1", "widget", []adapter.BulkOperation{
		{Action: adapter.BulkIndex, ID: "1", Document: adapter.Document{"n": 1}},
		{Action: adapter.BulkIndex, ID: "2", Document: adapter.Document{"n": 2}},
		{Action: adapter.BulkUpdate, ID: "1", Document: adapter.Document{"n": 10}},
		{Action: adapter.BulkDelete, ID: "2"},
		{Action: adapter.BulkDelete, ID: "404"},
	})
	require.NoError(t, err)
	assert.True(t, res.Errors)
	require.Len(t, res.Items, 5)
	failed := res.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, "404", failed[0].ID)
	assert.Equal(t, 404, failed[0].Status)

	n, err := a.Count(ctx, "es1", "widget", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestCapabilitiesAndClient(t *testing.T) {
	ctx := context.Background()
	a, _ := newTestAdapter(t)
	require.NoError(t, a.RegisterDatastore(ctx, adapter.DatastoreConfig{Identity: "es1"}, defs("widget")))

	caps, err := a.Capabilities("es1")
	require.NoError(t, err)
	assert.Equal(t, dbcapabilities.Elasticsearch, caps.ID)
	assert.False(t, caps.Syncable)
	assert.Equal(t, 1, caps.AdapterAPIVersion)

	assert.True(t, a.Supports("es1", dbcapabilities.OpBulk))
	assert.False(t, a.Supports("es1", dbcapabilities.OpDefine))
	assert.False(t, a.Supports("unknown", dbcapabilities.OpBulk))

	raw, err := a.Client("es1")
	require.NoError(t, err)
	_, ok := raw.(*datastoretest.Store)
	assert.True(t, ok)
}

func TestLifecycleHookStubs(t *testing.T) {
	ctx := context.Background()
	a, _ := newTestAdapter(t)
	require.NoError(t, a.RegisterDatastore(ctx, adapter.DatastoreConfig{Identity: "es1"}, defs("widget")))

	for _, id := range []string{"es1", "unknown"} {
		desc, err := a.Describe(ctx, id, "widget")
		assert.NoError(t, err)
		assert.Nil(t, desc)
		assert.NoError(t, a.Define(ctx, id, "widget", map[string]interface{}{"name": "string"}))
		assert.NoError(t, a.Drop(ctx, id, "widget"))
	}
}

func TestLifecycleHooksRoutedWhenSupported(t *testing.T) {
	ctx := context.Background()
	a, backend := newTestAdapter(t)
	schema := &datastoretest.SchemaRecorder{}
	backend.Schema = schema
	backend.Operations = dbcapabilities.NewOperationSet(append(dbcapabilities.DocumentOperations.List(),
		dbcapabilities.OpDescribe, dbcapabilities.OpDefine, dbcapabilities.OpDrop)...)

	require.NoError(t, a.RegisterDatastore(ctx, adapter.DatastoreConfig{Identity: "es1"}, defs("widget")))

	desc, err := a.Describe(ctx, "es1", "widget")
	require.NoError(t, err)
	assert.Equal(t, "widget", desc["index"])
	require.NoError(t, a.Define(ctx, "es1", "widget", nil))
	require.NoError(t, a.Drop(ctx, "es1", "widget"))

	assert.Equal(t, []string{"describe:widget", "define:widget", "drop:widget"}, schema.Calls())
}

func TestRecorderObservesOperations(t *testing.T) {
	ctx := context.Background()
	rec := &fakeRecorder{}
	a, _ := newTestAdapter(t, WithRecorder(rec))

	require.NoError(t, a.RegisterDatastore(ctx, adapter.DatastoreConfig{Identity: "es1"}, defs("widget")))
	_, err := a.Create(ctx, "es1", "widget", adapter.Document{"a": 1})
	require.NoError(t, err)
	_, err = a.Count(ctx, "nope", "widget", nil)
	require.Error(t, err)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, 1, rec.datastores)
	assert.Equal(t, []recordedOp{
		{"es1", "widget", dbcapabilities.OpCreate, false},
		{"nope", "widget", dbcapabilities.OpCount, true},
	}, rec.ops)
}
