package adapter

import (
	"context"

	"github.com/redbco/redb-esadapter/pkg/dbcapabilities"
)

// Backend represents a search engine technology.
// Each engine (Elasticsearch, OpenSearch, ...) must implement this interface.
type Backend interface {
	// Type returns the canonical engine identifier
	Type() dbcapabilities.EngineID

	// Capabilities returns the capability metadata for this engine
	Capabilities() dbcapabilities.Capability

	// Connect establishes a client session for one datastore. It returns only
	// once the engine has confirmed the session is usable.
	Connect(ctx context.Context, config DatastoreConfig) (Session, error)
}

// Session represents an active client session to the engine for one datastore.
type Session interface {
	// Identity and status
	ID() string
	Type() dbcapabilities.EngineID
	IsConnected() bool

	// Lifecycle management
	Ping(ctx context.Context) error
	Close() error

	// Operation interfaces
	Documents() DocumentOperator
	Schema() SchemaOperator

	// Raw returns the underlying engine client.
	// Type assertion is required when using Raw().
	Raw() interface{}

	// Configuration
	Config() DatastoreConfig
	Backend() Backend
}

// DocumentOperator forwards document operations to the engine.
// Implementations must not retry, paginate or rewrite requests.
type DocumentOperator interface {
	Index(ctx context.Context, target Target, doc Document) (*InsertedDoc, error)
	Search(ctx context.Context, indices []string, criteria Criteria) ([]Document, error)
	Update(ctx context.Context, target Target, id string, patch Document) (*UpdatedDoc, error)
	Delete(ctx context.Context, target Target, id string) (*Ack, error)
	Count(ctx context.Context, indices []string, criteria Criteria) (int64, error)
	Bulk(ctx context.Context, target Target, ops []BulkOperation) (*BulkResult, error)
}

// SchemaOperator handles collection-level definition operations.
// Engines where collections are implicit return UnsupportedSchemaOperator.
type SchemaOperator interface {
	Describe(ctx context.Context, target Target) (map[string]interface{}, error)
	Define(ctx context.Context, target Target, definition map[string]interface{}) error
	Drop(ctx context.Context, target Target) error
}
