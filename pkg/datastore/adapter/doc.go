// Package adapter provides the unified interface for all search engine backends.
//
// This package defines the contracts that engine-specific implementations must follow,
// so datastores backed by Elasticsearch or OpenSearch are driven through the same calls.
//
// # Architecture
//
//   - Backend: The interface every engine implements (Type, Capabilities, Connect)
//   - Session: An active client session for one datastore
//   - DocumentOperator: Index, Search, Update, Delete, Count and Bulk, forwarded 1:1
//   - SchemaOperator: Collection definition operations, unsupported on search engines
//   - Registry: Manages backend registration and retrieval
//
// # Usage
//
// Engines register themselves with the global registry from their init function:
//
//	import (
//	    _ "github.com/redbco/redb-esadapter/internal/datastore/elasticsearch"
//	)
//
// Then open a session:
//
//	config := adapter.DatastoreConfig{
//	    Identity: "es1",
//	    Engine:   "elasticsearch",
//	    Hosts:    []string{"127.0.0.1:9200"},
//	}.WithDefaults()
//
//	session, err := adapter.GlobalRegistry().Connect(ctx, config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer session.Close()
//
//	target := adapter.CollectionDef{Name: "widget"}.Target(config.IndexPrefix)
//	ack, err := session.Documents().Index(ctx, target, adapter.Document{"name": "a"})
//
// # Error Handling
//
// Errors are sentinels plus typed errors that match them through errors.Is:
//
//   - NotFoundError: ErrDatastoreNotFound or ErrCollectionNotFound
//   - ConnectionError: ErrConnectionFailed
//   - EngineError: ErrEngine, carrying the engine's status and body unchanged
//   - UnsupportedOperationError: ErrOperationNotSupported
//   - ConfigurationError: ErrInvalidConfiguration
//
//	if adapter.IsNotFound(err) {
//	    // the engine has no such document or index
//	}
//
// # Thread Safety
//
// The Registry uses mutex locks to protect concurrent access. Session
// implementations must be safe for concurrent use.
package adapter
