// Package eswiretest runs an in-process HTTP server that speaks enough of the
// document REST API to exercise the engine backends without a real cluster.
package eswiretest

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/mux"

	"github.com/redbco/redb-esadapter/internal/datastore/datastoretest"
	"github.com/redbco/redb-esadapter/pkg/datastore/adapter"
	"github.com/redbco/redb-esadapter/pkg/dbcapabilities"
)

// Request is one request received by a Cluster.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
}

// Cluster is a fake single-node cluster backed by a datastoretest.Store.
type Cluster struct {
	Engine  dbcapabilities.EngineID
	Version string
	Store   *datastoretest.Store

	server *httptest.Server

	mu       sync.Mutex
	requests []Request
	failures map[string]int
}

// NewCluster starts a cluster reporting engine and version. It is closed
// when the test ends.
func NewCluster(t testing.TB, engine dbcapabilities.EngineID, version string) *Cluster {
	t.Helper()
	c := &Cluster{
		Engine:   engine,
		Version:  version,
		Store:    datastoretest.NewStore(engine),
		failures: make(map[string]int),
	}
	c.server = httptest.NewServer(c.routes())
	t.Cleanup(c.server.Close)
	return c
}

// URL returns the base URL of the cluster.
func (c *Cluster) URL() string { return c.server.URL }

// Host returns the "host:port" of the cluster.
func (c *Cluster) Host() string { return strings.TrimPrefix(c.server.URL, "http://") }

// Close stops the server; later requests fail at the transport.
func (c *Cluster) Close() { c.server.Close() }

// Requests returns the requests received so far.
func (c *Cluster) Requests() []Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Request(nil), c.requests...)
}

// RequestsTo returns the requests whose path is path.
func (c *Cluster) RequestsTo(path string) []Request {
	var out []Request
	for _, r := range c.Requests() {
		if r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

// FailNext makes the next n requests to path answer 503.
func (c *Cluster) FailNext(path string, n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures[path] = n
}

func (c *Cluster) routes() http.Handler {
	r := mux.NewRouter()
	r.Use(c.record)

	r.HandleFunc("/", c.info).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/_nodes/http", c.nodes).Methods(http.MethodGet)
	r.HandleFunc("/_search", c.search).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/_count", c.count).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/_bulk", c.bulk).Methods(http.MethodPost, http.MethodPut)
	r.HandleFunc("/{index}/_doc", c.index).Methods(http.MethodPost)
	r.HandleFunc("/{index}/_doc/{id}", c.index).Methods(http.MethodPost, http.MethodPut)
	r.HandleFunc("/{index}/_doc/{id}", c.delete).Methods(http.MethodDelete)
	r.HandleFunc("/{index}/_update/{id}", c.update).Methods(http.MethodPost)
	r.HandleFunc("/{index}/_search", c.search).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/{index}/_count", c.count).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/{index}/_bulk", c.bulk).Methods(http.MethodPost, http.MethodPut)
	return r
}

func (c *Cluster) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.mu.Lock()
		c.requests = append(c.requests, Request{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.Query(),
			Header: r.Header.Clone(),
		})
		failing := c.failures[r.URL.Path] > 0
		if failing {
			c.failures[r.URL.Path]--
		}
		c.mu.Unlock()

		if c.Engine == dbcapabilities.Elasticsearch {
			w.Header().Set("X-Elastic-Product", "Elasticsearch")
		}
		if failing {
			c.writeError(w, adapter.NewEngineError(c.Engine, "", http.StatusServiceUnavailable,
				"cluster_block_exception", "blocked by: [SERVICE_UNAVAILABLE]", nil))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (c *Cluster) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (c *Cluster) writeError(w http.ResponseWriter, err error) {
	engErr, ok := err.(*adapter.EngineError)
	if !ok {
		c.writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"error":  map[string]string{"type": "exception", "reason": err.Error()},
			"status": http.StatusInternalServerError,
		})
		return
	}
	cause := map[string]string{"type": engErr.Type, "reason": engErr.Reason}
	c.writeJSON(w, engErr.Status, map[string]interface{}{
		"error": map[string]interface{}{
			"root_cause": []map[string]string{cause},
			"type":       engErr.Type,
			"reason":     engErr.Reason,
		},
		"status": engErr.Status,
	})
}

func (c *Cluster) info(w http.ResponseWriter, r *http.Request) {
	version := map[string]string{"number": c.Version}
	if c.Engine == dbcapabilities.OpenSearch {
		version["distribution"] = "opensearch"
	}
	c.writeJSON(w, http.StatusOK, map[string]interface{}{
		"name":         "node-1",
		"cluster_name": "test-cluster",
		"cluster_uuid": "test-uuid",
		"version":      version,
		"tagline":      "You Know, for Search",
	})
}

func (c *Cluster) nodes(w http.ResponseWriter, r *http.Request) {
	c.writeJSON(w, http.StatusOK, map[string]interface{}{
		"nodes": map[string]interface{}{
			"node-1": map[string]interface{}{
				"name":  "node-1",
				"roles": []string{"master", "data", "ingest"},
				"http":  map[string]interface{}{"publish_address": c.Host()},
			},
		},
	})
}

func decodeBody(r *http.Request, v interface{}) error {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	return json.Unmarshal(raw, v)
}

func (c *Cluster) badRequest(w http.ResponseWriter, err error) {
	c.writeError(w, adapter.NewEngineError(c.Engine, "", http.StatusBadRequest, "parse_exception", err.Error(), nil))
}

func (c *Cluster) indices(r *http.Request) []string {
	if index := mux.Vars(r)["index"]; index != "" {
		return strings.Split(index, ",")
	}
	return c.Store.Indices()
}

func (c *Cluster) index(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	doc := adapter.Document{}
	if err := decodeBody(r, &doc); err != nil {
		c.badRequest(w, err)
		return
	}
	if _, ok := doc[adapter.IDField]; ok {
		c.writeError(w, adapter.NewEngineError(c.Engine, "index", http.StatusBadRequest, "document_parsing_exception",
			"Field [_id] is a metadata field and cannot be added inside a document", nil))
		return
	}
	if id := vars["id"]; id != "" {
		doc[adapter.IDField] = id
	}

	ins, err := c.Store.Index(r.Context(), adapter.Target{Index: vars["index"]}, doc)
	if err != nil {
		c.writeError(w, err)
		return
	}
	status := http.StatusCreated
	if ins.Result != "created" {
		status = http.StatusOK
	}
	c.writeJSON(w, status, map[string]interface{}{
		"_index":   ins.Index,
		"_id":      ins.ID,
		"_version": ins.Version,
		"result":   ins.Result,
	})
}

func (c *Cluster) update(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	var body struct {
		Doc adapter.Document `json:"doc"`
	}
	if err := decodeBody(r, &body); err != nil {
		c.badRequest(w, err)
		return
	}
	upd, err := c.Store.Update(r.Context(), adapter.Target{Index: vars["index"]}, vars["id"], body.Doc)
	if err != nil {
		c.writeError(w, err)
		return
	}
	c.writeJSON(w, http.StatusOK, map[string]interface{}{
		"_index":   upd.Index,
		"_id":      upd.ID,
		"_version": upd.Version,
		"result":   upd.Result,
	})
}

func (c *Cluster) delete(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	ack, err := c.Store.Delete(r.Context(), adapter.Target{Index: vars["index"]}, vars["id"])
	if adapter.IsNotFound(err) {
		c.writeJSON(w, http.StatusNotFound, map[string]interface{}{
			"_index": vars["index"],
			"_id":    vars["id"],
			"result": "not_found",
		})
		return
	}
	if err != nil {
		c.writeError(w, err)
		return
	}
	c.writeJSON(w, http.StatusOK, map[string]interface{}{
		"_index": ack.Index,
		"_id":    ack.ID,
		"result": ack.Result,
	})
}

func (c *Cluster) search(w http.ResponseWriter, r *http.Request) {
	criteria := adapter.Criteria{}
	if err := decodeBody(r, &criteria); err != nil {
		c.badRequest(w, err)
		return
	}
	docs, err := c.Store.Search(r.Context(), c.indices(r), criteria)
	if err != nil {
		c.writeError(w, err)
		return
	}

	hits := make([]map[string]interface{}, 0, len(docs))
	for _, doc := range docs {
		source := make(map[string]interface{}, len(doc))
		for k, v := range doc {
			if k != adapter.IDField {
				source[k] = v
			}
		}
		hits = append(hits, map[string]interface{}{
			"_id":     doc[adapter.IDField],
			"_score":  1.0,
			"_source": source,
		})
	}
	c.writeJSON(w, http.StatusOK, map[string]interface{}{
		"took":      1,
		"timed_out": false,
		"hits": map[string]interface{}{
			"total": map[string]interface{}{"value": len(hits), "relation": "eq"},
			"hits":  hits,
		},
	})
}

func (c *Cluster) count(w http.ResponseWriter, r *http.Request) {
	criteria := adapter.Criteria{}
	if err := decodeBody(r, &criteria); err != nil {
		c.badRequest(w, err)
		return
	}
	n, err := c.Store.Count(r.Context(), c.indices(r), criteria)
	if err != nil {
		c.writeError(w, err)
		return
	}
	c.writeJSON(w, http.StatusOK, map[string]interface{}{"count": n})
}

func (c *Cluster) bulk(w http.ResponseWriter, r *http.Request) {
	defaultIndex := mux.Vars(r)["index"]
	var ops []adapter.BulkOperation

	scanner := bufio.NewScanner(r.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var meta map[adapter.BulkAction]struct {
			Index string `json:"_index"`
			ID    string `json:"_id"`
		}
		if err := json.Unmarshal(line, &meta); err != nil || len(meta) != 1 {
			c.badRequest(w, fmt.Errorf("malformed action line: %s", line))
			return
		}
		for action, m := range meta {
			op := adapter.BulkOperation{Action: action, ID: m.ID, Index: m.Index}
			if op.Index == "" {
				op.Index = defaultIndex
			}
			if action != adapter.BulkDelete {
				if !scanner.Scan() {
					c.badRequest(w, fmt.Errorf("missing source for %s", action))
					return
				}
				var doc adapter.Document
				if err := json.Unmarshal(scanner.Bytes(), &doc); err != nil {
					c.badRequest(w, err)
					return
				}
				if action == adapter.BulkUpdate {
					patch, _ := doc["doc"].(map[string]interface{})
					doc = adapter.Document(patch)
				}
				op.Document = doc
			}
			ops = append(ops, op)
		}
	}
	if err := scanner.Err(); err != nil {
		c.badRequest(w, err)
		return
	}

	res, err := c.Store.Bulk(r.Context(), adapter.Target{Index: defaultIndex}, ops)
	if err != nil {
		c.writeError(w, err)
		return
	}

	items := make([]map[string]interface{}, 0, len(res.Items))
	for _, it := range res.Items {
		entry := map[string]interface{}{
			"_index": it.Index,
			"_id":    it.ID,
			"status": it.Status,
		}
		if it.Result != "" {
			entry["result"] = it.Result
		}
		if it.Error != "" {
			errType := "illegal_argument_exception"
			if it.Status == http.StatusNotFound {
				errType = "document_missing_exception"
			}
			entry["error"] = map[string]string{"type": errType, "reason": it.Error}
		}
		items = append(items, map[string]interface{}{string(it.Action): entry})
	}
	c.writeJSON(w, http.StatusOK, map[string]interface{}{
		"took":   3,
		"errors": res.Errors,
		"items":  items,
	})
}
