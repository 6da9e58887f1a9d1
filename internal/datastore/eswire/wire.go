// Package eswire encodes request bodies and decodes responses of the
// document REST API shared by Elasticsearch and OpenSearch.
package eswire

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/redbco/redb-esadapter/pkg/datastore/adapter"
	"github.com/redbco/redb-esadapter/pkg/dbcapabilities"
)

// SplitID removes the IDField from doc and returns it with the remaining
// body. doc itself is not modified.
func SplitID(doc adapter.Document) (string, adapter.Document) {
	body := make(adapter.Document, len(doc))
	var id string
	for k, v := range doc {
		if k == adapter.IDField {
			if s, ok := v.(string); ok {
				id = s
			} else if v != nil {
				id = fmt.Sprint(v)
			}
			continue
		}
		body[k] = v
	}
	return id, body
}

// JSON encodes v as a request body.
func JSON(v interface{}) (io.Reader, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		return nil, fmt.Errorf("failed to encode request body: %w", err)
	}
	return &buf, nil
}

// CriteriaBody encodes criteria, or returns nil for empty criteria so the
// engine applies its own match_all default.
func CriteriaBody(criteria adapter.Criteria) (io.Reader, error) {
	if len(criteria) == 0 {
		return nil, nil
	}
	return JSON(criteria)
}

// UpdateBody wraps patch in a partial document update.
func UpdateBody(patch adapter.Document) (io.Reader, error) {
	if patch == nil {
		patch = adapter.Document{}
	}
	return JSON(map[string]interface{}{"doc": patch})
}

type bulkMeta struct {
	Index string `json:"_index,omitempty"`
	ID    string `json:"_id,omitempty"`
}

// BulkBody encodes ops as an NDJSON bulk request against target.
func BulkBody(engine dbcapabilities.EngineID, target adapter.Target, ops []adapter.BulkOperation) (io.Reader, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i, op := range ops {
		if !op.Action.Valid() {
			return nil, adapter.NewEngineError(engine, "bulk", http.StatusBadRequest, "illegal_argument_exception",
				fmt.Sprintf("unknown bulk action [%s] at position %d", op.Action, i), nil)
		}

		meta := bulkMeta{Index: target.Index, ID: op.ID}
		if op.Index != "" {
			meta.Index = op.Index
		}
		doc := op.Document
		if meta.ID == "" && doc != nil {
			meta.ID, doc = SplitID(doc)
		}
		if err := enc.Encode(map[string]bulkMeta{string(op.Action): meta}); err != nil {
			return nil, fmt.Errorf("failed to encode bulk operation %d: %w", i, err)
		}

		switch op.Action {
		case adapter.BulkDelete:
			continue
		case adapter.BulkUpdate:
			if err := enc.Encode(map[string]interface{}{"doc": doc}); err != nil {
				return nil, fmt.Errorf("failed to encode bulk operation %d: %w", i, err)
			}
		default:
			if doc == nil {
				doc = adapter.Document{}
			}
			if err := enc.Encode(doc); err != nil {
				return nil, fmt.Errorf("failed to encode bulk operation %d: %w", i, err)
			}
		}
	}
	return &buf, nil
}

type errorBody struct {
	Error  json.RawMessage `json:"error"`
	Status int             `json:"status"`
	Result string          `json:"result"`
}

type errorCause struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

// ReadBody reads a response body. Statuses above 299 become an
// *adapter.EngineError carrying the engine's error type and reason.
func ReadBody(engine dbcapabilities.EngineID, op string, status int, body io.Reader) ([]byte, error) {
	var raw []byte
	if body != nil {
		var err error
		if raw, err = io.ReadAll(body); err != nil {
			return nil, fmt.Errorf("failed to read %s response: %w", op, err)
		}
	}
	if status < 300 {
		return raw, nil
	}
	return nil, DecodeError(engine, op, status, raw)
}

// DecodeError builds the engine error for a failed response.
func DecodeError(engine dbcapabilities.EngineID, op string, status int, raw []byte) *adapter.EngineError {
	var eb errorBody
	var cause errorCause
	if len(raw) > 0 && json.Unmarshal(raw, &eb) == nil && len(eb.Error) > 0 {
		if json.Unmarshal(eb.Error, &cause) != nil {
			var msg string
			if json.Unmarshal(eb.Error, &msg) == nil {
				cause.Reason = msg
			}
		}
	}
	if cause.Type == "" && eb.Result != "" {
		cause.Type = eb.Result
	}
	if cause.Reason == "" {
		cause.Reason = strings.ToLower(http.StatusText(status))
	}
	return adapter.NewEngineError(engine, op, status, cause.Type, cause.Reason, raw)
}

type writeResponse struct {
	Index   string `json:"_index"`
	ID      string `json:"_id"`
	Version int64  `json:"_version"`
	Result  string `json:"result"`
}

func decode(op string, raw []byte, v interface{}) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", op, err)
	}
	return nil
}

// DecodeIndex decodes an index response. doc is the body that was sent.
func DecodeIndex(raw []byte, doc adapter.Document) (*adapter.InsertedDoc, error) {
	var r writeResponse
	if err := decode("index", raw, &r); err != nil {
		return nil, err
	}
	stored := make(adapter.Document, len(doc)+1)
	for k, v := range doc {
		stored[k] = v
	}
	stored[adapter.IDField] = r.ID
	return &adapter.InsertedDoc{ID: r.ID, Index: r.Index, Version: r.Version, Result: r.Result, Document: stored}, nil
}

func DecodeUpdate(raw []byte) (*adapter.UpdatedDoc, error) {
	var r writeResponse
	if err := decode("update", raw, &r); err != nil {
		return nil, err
	}
	return &adapter.UpdatedDoc{ID: r.ID, Index: r.Index, Version: r.Version, Result: r.Result}, nil
}

func DecodeDelete(raw []byte) (*adapter.Ack, error) {
	var r writeResponse
	if err := decode("delete", raw, &r); err != nil {
		return nil, err
	}
	return &adapter.Ack{ID: r.ID, Index: r.Index, Result: r.Result, Found: r.Result == "deleted"}, nil
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Index  string                 `json:"_index"`
			ID     string                 `json:"_id"`
			Source map[string]interface{} `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// DecodeHits returns the documents of a search response, each with its
// IDField set. Only the page the engine returned is decoded.
func DecodeHits(raw []byte) ([]adapter.Document, error) {
	var r searchResponse
	if err := decode("search", raw, &r); err != nil {
		return nil, err
	}
	out := make([]adapter.Document, 0, len(r.Hits.Hits))
	for _, hit := range r.Hits.Hits {
		doc := make(adapter.Document, len(hit.Source)+1)
		for k, v := range hit.Source {
			doc[k] = v
		}
		doc[adapter.IDField] = hit.ID
		out = append(out, doc)
	}
	return out, nil
}

func DecodeCount(raw []byte) (int64, error) {
	var r struct {
		Count int64 `json:"count"`
	}
	if err := decode("count", raw, &r); err != nil {
		return 0, err
	}
	return r.Count, nil
}

type bulkItemResponse struct {
	Index  string          `json:"_index"`
	ID     string          `json:"_id"`
	Status int             `json:"status"`
	Result string          `json:"result"`
	Error  json.RawMessage `json:"error"`
}

// DecodeBulk decodes a bulk response into per-item outcomes.
func DecodeBulk(raw []byte) (*adapter.BulkResult, error) {
	var r struct {
		Took   int64                                    `json:"took"`
		Errors bool                                     `json:"errors"`
		Items  []map[adapter.BulkAction]bulkItemResponse `json:"items"`
	}
	if err := decode("bulk", raw, &r); err != nil {
		return nil, err
	}

	res := &adapter.BulkResult{Took: r.Took, Errors: r.Errors, Items: make([]adapter.BulkItem, 0, len(r.Items))}
	for _, entry := range r.Items {
		for action, it := range entry {
			item := adapter.BulkItem{Action: action, ID: it.ID, Index: it.Index, Status: it.Status, Result: it.Result}
			if len(it.Error) > 0 && string(it.Error) != "null" {
				var cause errorCause
				if json.Unmarshal(it.Error, &cause) == nil && cause.Type != "" {
					item.Error = cause.Type + ": " + cause.Reason
				} else {
					item.Error = string(it.Error)
				}
			}
			res.Items = append(res.Items, item)
		}
	}
	return res, nil
}

// Info is the root endpoint response of a cluster.
type Info struct {
	Name        string `json:"name"`
	ClusterName string `json:"cluster_name"`
	ClusterUUID string `json:"cluster_uuid"`
	Version     struct {
		Number       string `json:"number"`
		Distribution string `json:"distribution"`
	} `json:"version"`
}

func DecodeInfo(raw []byte) (*Info, error) {
	var info Info
	if err := decode("info", raw, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// MajorVersion returns the leading number of a dotted version string.
func MajorVersion(v string) (int, bool) {
	head, _, _ := strings.Cut(strings.TrimSpace(v), ".")
	n, err := strconv.Atoi(head)
	if err != nil {
		return 0, false
	}
	return n, true
}

// CompatibleVersion reports whether the cluster version satisfies the
// configured API version. An empty or unparsable value never conflicts.
func CompatibleVersion(apiVersion, clusterVersion string) bool {
	want, ok := MajorVersion(apiVersion)
	if !ok {
		return true
	}
	got, ok := MajorVersion(clusterVersion)
	if !ok {
		return true
	}
	return want == got
}

