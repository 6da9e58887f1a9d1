package dbcapabilities

import (
	"sort"
	"strings"
)

// EngineID is the canonical identifier for a search engine backend.
// Use these constants to look up capability information.
type EngineID string

const (
	Elasticsearch EngineID = "elasticsearch"
	OpenSearch    EngineID = "opensearch"
)

// DataParadigm enumerates the primary data storage paradigms an engine supports.
type DataParadigm string

const (
	ParadigmDocument    DataParadigm = "document"    // Collections, documents
	ParadigmSearchIndex DataParadigm = "searchindex" // Inverted indices
	ParadigmVector      DataParadigm = "vector"      // Vector embeddings
)

// Operation names one adapter-level operation.
type Operation string

const (
	OpCreate   Operation = "create"
	OpSearch   Operation = "search"
	OpUpdate   Operation = "update"
	OpDestroy  Operation = "destroy"
	OpCount    Operation = "count"
	OpBulk     Operation = "bulk"
	OpClient   Operation = "client"
	OpDescribe Operation = "describe"
	OpDefine   Operation = "define"
	OpDrop     Operation = "drop"
)

// OperationSet is the set of operations a backend actually performs.
// Operations missing from the set are still accepted by the adapter facade
// when the contract requires it (describe/define/drop) but do nothing.
type OperationSet map[Operation]bool

// NewOperationSet builds a set from the given operations.
func NewOperationSet(ops ...Operation) OperationSet {
	set := make(OperationSet, len(ops))
	for _, op := range ops {
		set[op] = true
	}
	return set
}

// Has reports whether op is in the set.
func (s OperationSet) Has(op Operation) bool {
	return s[op]
}

// List returns the operations in the set, sorted.
func (s OperationSet) List() []Operation {
	out := make([]Operation, 0, len(s))
	for op, ok := range s {
		if ok {
			out = append(out, op)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// DocumentOperations is the operation set shared by the search engine backends.
var DocumentOperations = NewOperationSet(OpCreate, OpSearch, OpUpdate, OpDestroy, OpCount, OpBulk, OpClient)

// Capability describes what an engine supports in a way callers can consume uniformly.
type Capability struct {
	// Human-friendly product name, e.g., "Elasticsearch".
	Name string `json:"name"`

	// Canonical ID used across the codebase (see EngineID constants).
	ID EngineID `json:"id"`

	// Primary data storage paradigms supported.
	Paradigms []DataParadigm `json:"paradigms"`

	// Operations the backend performs. Describe/define/drop are absent for
	// engines where collections are implicit.
	Operations OperationSet `json:"operations"`

	// Syncable reports whether the adapter can migrate collection schemas.
	Syncable bool `json:"syncable"`

	// AdapterAPIVersion is the version of the adapter contract implemented.
	AdapterAPIVersion int `json:"adapterApiVersion"`

	// DefaultPort is used when a configured host carries no port.
	DefaultPort int `json:"defaultPort"`

	// Common aliases that map to this engine.
	Aliases []string `json:"aliases,omitempty"`
}

// All is a registry of capabilities keyed by the canonical engine ID.
var All = map[EngineID]Capability{
	Elasticsearch: {
		Name:              "Elasticsearch",
		ID:                Elasticsearch,
		Paradigms:         []DataParadigm{ParadigmSearchIndex, ParadigmDocument},
		Operations:        DocumentOperations,
		Syncable:          false,
		AdapterAPIVersion: 1,
		DefaultPort:       9200,
		Aliases:           []string{"es", "elastic"},
	},
	OpenSearch: {
		Name:              "OpenSearch",
		ID:                OpenSearch,
		Paradigms:         []DataParadigm{ParadigmSearchIndex, ParadigmDocument, ParadigmVector},
		Operations:        DocumentOperations,
		Syncable:          false,
		AdapterAPIVersion: 1,
		DefaultPort:       9200,
		Aliases:           []string{"os", "aws-opensearch"},
	},
}

var aliasIndex map[string]EngineID

func init() {
	aliasIndex = make(map[string]EngineID)
	for id, c := range All {
		aliasIndex[string(id)] = id
		for _, a := range c.Aliases {
			aliasIndex[strings.ToLower(a)] = id
		}
	}
}

// ParseID resolves a free-form engine name or alias to its canonical ID.
func ParseID(name string) (EngineID, bool) {
	id, ok := aliasIndex[strings.ToLower(strings.TrimSpace(name))]
	return id, ok
}

// IDs returns the list of all known engine IDs.
func IDs() []EngineID {
	out := make([]EngineID, 0, len(All))
	for id := range All {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Get returns capabilities for the given ID and a boolean indicating existence.
func Get(id EngineID) (Capability, bool) {
	c, ok := All[id]
	return c, ok
}

// MustGet returns capabilities for the given ID and panics if not found.
func MustGet(id EngineID) Capability {
	c, ok := Get(id)
	if !ok {
		panic("dbcapabilities: unknown engine id: " + string(id))
	}
	return c
}

// Supports reports whether the engine performs the given operation.
func Supports(id EngineID, op Operation) bool {
	c, ok := Get(id)
	return ok && c.Operations.Has(op)
}
