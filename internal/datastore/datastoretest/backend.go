// Package datastoretest provides an in-memory engine backend for tests.
package datastoretest

import (
	"context"
	"fmt"
	"net/http"
	"reflect"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/redbco/redb-esadapter/pkg/datastore/adapter"
	"github.com/redbco/redb-esadapter/pkg/dbcapabilities"
)

// Backend is an in-memory adapter.Backend. Sessions opened against the
// same hosts share one document store, so data survives re-registration.
type Backend struct {
	Engine dbcapabilities.EngineID

	// ConnectErr, when set, is returned by Connect.
	ConnectErr error
	// BeforeConnect runs at the start of Connect, e.g. to block it.
	BeforeConnect func(ctx context.Context, cfg adapter.DatastoreConfig)
	// Operations overrides the advertised operation set.
	Operations dbcapabilities.OperationSet
	// Schema is returned by Session.Schema when set.
	Schema adapter.SchemaOperator

	mu       sync.Mutex
	stores   map[string]*Store
	sessions []*Session
	connects int32
}

// NewBackend returns a backend that identifies as Elasticsearch.
func NewBackend() *Backend {
	return &Backend{
		Engine: dbcapabilities.Elasticsearch,
		stores: make(map[string]*Store),
	}
}

func (b *Backend) Type() dbcapabilities.EngineID { return b.Engine }

func (b *Backend) Capabilities() dbcapabilities.Capability {
	caps := dbcapabilities.MustGet(b.Engine)
	if b.Operations != nil {
		caps.Operations = b.Operations
	}
	return caps
}

// Connect opens a session on the store shared by cfg.Hosts.
func (b *Backend) Connect(ctx context.Context, cfg adapter.DatastoreConfig) (adapter.Session, error) {
	atomic.AddInt32(&b.connects, 1)
	if b.BeforeConnect != nil {
		b.BeforeConnect(ctx, cfg)
	}
	if b.ConnectErr != nil {
		return nil, b.ConnectErr
	}
	if err := ctx.Err(); err != nil {
		return nil, adapter.NewConnectionError(b.Engine, cfg.Hosts, err)
	}

	s := &Session{
		id:      uuid.NewString(),
		backend: b,
		config:  cfg,
		store:   b.Store(fmt.Sprint(cfg.Hosts)),
	}
	s.connected.Store(true)

	b.mu.Lock()
	b.sessions = append(b.sessions, s)
	b.mu.Unlock()
	return s, nil
}

// Connects returns how many times Connect was called.
func (b *Backend) Connects() int {
	return int(atomic.LoadInt32(&b.connects))
}

// Sessions returns every session opened so far.
func (b *Backend) Sessions() []*Session {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*Session(nil), b.sessions...)
}

// Store returns the document store for a host key, creating it if needed.
func (b *Backend) Store(key string) *Store {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stores == nil {
		b.stores = make(map[string]*Store)
	}
	st, ok := b.stores[key]
	if !ok {
		st = NewStore(b.Engine)
		b.stores[key] = st
	}
	return st
}

// Session is an in-memory adapter.Session.
type Session struct {
	id        string
	backend   *Backend
	config    adapter.DatastoreConfig
	store     *Store
	connected atomic.Bool

	// PingErr and CloseErr, when set, are returned by Ping and Close.
	PingErr  error
	CloseErr error
	closes   int32
}

func (s *Session) ID() string                          { return s.id }
func (s *Session) Type() dbcapabilities.EngineID       { return s.backend.Engine }
func (s *Session) IsConnected() bool                   { return s.connected.Load() }
func (s *Session) Documents() adapter.DocumentOperator { return s.store }
func (s *Session) Raw() interface{}                    { return s.store }
func (s *Session) Config() adapter.DatastoreConfig     { return s.config }
func (s *Session) Backend() adapter.Backend            { return s.backend }

func (s *Session) Schema() adapter.SchemaOperator {
	if s.backend.Schema != nil {
		return s.backend.Schema
	}
	return adapter.NewUnsupportedSchemaOperator(s.backend.Engine)
}

func (s *Session) Ping(ctx context.Context) error {
	if !s.IsConnected() {
		return adapter.ErrConnectionClosed
	}
	return s.PingErr
}

func (s *Session) Close() error {
	atomic.AddInt32(&s.closes, 1)
	s.connected.Store(false)
	return s.CloseErr
}

// Closes returns how many times Close was called.
func (s *Session) Closes() int {
	return int(atomic.LoadInt32(&s.closes))
}

// Store holds documents per index and implements adapter.DocumentOperator
// with a small subset of the query DSL: match_all, term and match.
type Store struct {
	engine dbcapabilities.EngineID

	mu       sync.RWMutex
	indices  map[string]map[string]adapter.Document
	versions map[string]int64
}

// NewStore returns an empty store whose errors carry engine.
func NewStore(engine dbcapabilities.EngineID) *Store {
	return &Store{
		engine:   engine,
		indices:  make(map[string]map[string]adapter.Document),
		versions: make(map[string]int64),
	}
}

// Indices returns the names of the indices holding documents, sorted.
func (st *Store) Indices() []string {
	st.mu.RLock()
	defer st.mu.RUnlock()
	out := make([]string, 0, len(st.indices))
	for name := range st.indices {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func copyDoc(doc adapter.Document) adapter.Document {
	out := make(adapter.Document, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out
}

func (st *Store) notFound(op, index, id string) error {
	return adapter.NewEngineError(st.engine, op, http.StatusNotFound, "document_missing_exception",
		fmt.Sprintf("[%s]: document missing", id), []byte(fmt.Sprintf(`{"_index":%q,"_id":%q,"found":false}`, index, id)))
}

// put stores doc and returns the new version. Callers hold st.mu.
func (st *Store) put(index, id string, doc adapter.Document) (int64, bool) {
	docs, ok := st.indices[index]
	if !ok {
		docs = make(map[string]adapter.Document)
		st.indices[index] = docs
	}
	_, existed := docs[id]
	body := copyDoc(doc)
	delete(body, adapter.IDField)
	docs[id] = body
	st.versions[index+"/"+id]++
	return st.versions[index+"/"+id], existed
}

func (st *Store) Index(ctx context.Context, target adapter.Target, doc adapter.Document) (*adapter.InsertedDoc, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	id, _ := doc[adapter.IDField].(string)
	if id == "" {
		id = uuid.NewString()
	}
	version, existed := st.put(target.Index, id, doc)
	result := "created"
	if existed {
		result = "updated"
	}
	stored := copyDoc(st.indices[target.Index][id])
	stored[adapter.IDField] = id
	return &adapter.InsertedDoc{ID: id, Index: target.Index, Version: version, Result: result, Document: stored}, nil
}

func (st *Store) Search(ctx context.Context, indices []string, criteria adapter.Criteria) ([]adapter.Document, error) {
	match, err := st.matcher(criteria)
	if err != nil {
		return nil, err
	}

	st.mu.RLock()
	defer st.mu.RUnlock()

	out := make([]adapter.Document, 0)
	for _, index := range indices {
		docs, ok := st.indices[index]
		if !ok {
			return nil, adapter.NewEngineError(st.engine, "search", http.StatusNotFound, "index_not_found_exception",
				"no such index ["+index+"]", nil)
		}
		ids := make([]string, 0, len(docs))
		for id := range docs {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			if !match(docs[id]) {
				continue
			}
			hit := copyDoc(docs[id])
			hit[adapter.IDField] = id
			out = append(out, hit)
		}
	}
	return out, nil
}

func (st *Store) Update(ctx context.Context, target adapter.Target, id string, patch adapter.Document) (*adapter.UpdatedDoc, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	doc, ok := st.indices[target.Index][id]
	if !ok {
		return nil, st.notFound("update", target.Index, id)
	}
	merged := copyDoc(doc)
	for k, v := range patch {
		merged[k] = v
	}
	result := "updated"
	if reflect.DeepEqual(merged, doc) {
		result = "noop"
	}
	version, _ := st.put(target.Index, id, merged)
	return &adapter.UpdatedDoc{ID: id, Index: target.Index, Version: version, Result: result}, nil
}

func (st *Store) Delete(ctx context.Context, target adapter.Target, id string) (*adapter.Ack, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if _, ok := st.indices[target.Index][id]; !ok {
		return nil, st.notFound("delete", target.Index, id)
	}
	delete(st.indices[target.Index], id)
	return &adapter.Ack{ID: id, Index: target.Index, Result: "deleted", Found: true}, nil
}

func (st *Store) Count(ctx context.Context, indices []string, criteria adapter.Criteria) (int64, error) {
	match, err := st.matcher(criteria)
	if err != nil {
		return 0, err
	}

	st.mu.RLock()
	defer st.mu.RUnlock()

	var n int64
	for _, index := range indices {
		docs, ok := st.indices[index]
		if !ok {
			return 0, adapter.NewEngineError(st.engine, "count", http.StatusNotFound, "index_not_found_exception",
				"no such index ["+index+"]", nil)
		}
		for _, doc := range docs {
			if match(doc) {
				n++
			}
		}
	}
	return n, nil
}

func (st *Store) Bulk(ctx context.Context, target adapter.Target, ops []adapter.BulkOperation) (*adapter.BulkResult, error) {
	res := &adapter.BulkResult{Items: make([]adapter.BulkItem, 0, len(ops))}
	for _, op := range ops {
		t := target
		if op.Index != "" {
			t.Index = op.Index
		}
		item := adapter.BulkItem{Action: op.Action, ID: op.ID, Index: t.Index}

		var err error
		switch op.Action {
		case adapter.BulkIndex, adapter.BulkCreate:
			doc := copyDoc(op.Document)
			if op.ID != "" {
				doc[adapter.IDField] = op.ID
			}
			var ins *adapter.InsertedDoc
			if ins, err = st.Index(ctx, t, doc); err == nil {
				item.ID, item.Status, item.Result = ins.ID, http.StatusCreated, ins.Result
			}
		case adapter.BulkUpdate:
			var upd *adapter.UpdatedDoc
			if upd, err = st.Update(ctx, t, op.ID, op.Document); err == nil {
				item.Status, item.Result = http.StatusOK, upd.Result
			}
		case adapter.BulkDelete:
			var ack *adapter.Ack
			if ack, err = st.Delete(ctx, t, op.ID); err == nil {
				item.Status, item.Result = http.StatusOK, ack.Result
			}
		default:
			err = adapter.NewEngineError(st.engine, "bulk", http.StatusBadRequest, "illegal_argument_exception",
				fmt.Sprintf("unknown bulk action [%s]", op.Action), nil)
		}

		if err != nil {
			item.Status = http.StatusBadRequest
			if adapter.IsNotFound(err) {
				item.Status = http.StatusNotFound
			}
			item.Error = err.Error()
			res.Errors = true
		}
		res.Items = append(res.Items, item)
	}
	return res, nil
}

func (st *Store) matcher(criteria adapter.Criteria) (func(adapter.Document) bool, error) {
	all := func(adapter.Document) bool { return true }
	if len(criteria) == 0 {
		return all, nil
	}
	query, ok := criteria["query"].(map[string]interface{})
	if !ok || len(query) == 0 {
		return all, nil
	}
	for kind, body := range query {
		switch kind {
		case "match_all":
			return all, nil
		case "term", "match":
			fields, _ := body.(map[string]interface{})
			return func(doc adapter.Document) bool {
				for field, want := range fields {
					if m, ok := want.(map[string]interface{}); ok {
						if v, ok := m["value"]; ok {
							want = v
						} else if v, ok := m["query"]; ok {
							want = v
						}
					}
					if fmt.Sprint(doc[field]) != fmt.Sprint(want) {
						return false
					}
				}
				return true
			}, nil
		default:
			return nil, adapter.NewEngineError(st.engine, "search", http.StatusBadRequest, "parsing_exception",
				fmt.Sprintf("unknown query [%s]", kind), nil)
		}
	}
	return all, nil
}

// SchemaRecorder is a SchemaOperator that records the calls it receives.
type SchemaRecorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *SchemaRecorder) record(op string, target adapter.Target) {
	r.mu.Lock()
	r.calls = append(r.calls, op+":"+target.Index)
	r.mu.Unlock()
}

// Calls returns the recorded calls as "op:index".
func (r *SchemaRecorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *SchemaRecorder) Describe(ctx context.Context, target adapter.Target) (map[string]interface{}, error) {
	r.record("describe", target)
	return map[string]interface{}{"index": target.Index, "type": target.Type}, nil
}

func (r *SchemaRecorder) Define(ctx context.Context, target adapter.Target, definition map[string]interface{}) error {
	r.record("define", target)
	return nil
}

func (r *SchemaRecorder) Drop(ctx context.Context, target adapter.Target) error {
	r.record("drop", target)
	return nil
}
