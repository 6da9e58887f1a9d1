package elasticsearch

import (
	"context"
	"net/http"
	"sync/atomic"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/redbco/redb-esadapter/internal/datastore/eswire"
	"github.com/redbco/redb-esadapter/pkg/datastore/adapter"
	"github.com/redbco/redb-esadapter/pkg/dbcapabilities"
)

// Session implements adapter.Session for Elasticsearch.
type Session struct {
	client    *elasticsearch.Client
	transport *http.Transport
	config    adapter.DatastoreConfig
	backend   *Backend
	info      eswire.Info
	connected atomic.Bool
}

// ID returns the identity of the datastore the session belongs to.
func (s *Session) ID() string {
	return s.config.Identity
}

// Type returns the engine identifier.
func (s *Session) Type() dbcapabilities.EngineID {
	return dbcapabilities.Elasticsearch
}

// IsConnected returns whether the session is open.
func (s *Session) IsConnected() bool {
	return s.connected.Load()
}

// ClusterInfo returns what the cluster reported when the session was opened.
func (s *Session) ClusterInfo() eswire.Info {
	return s.info
}

// Ping tests the connection.
func (s *Session) Ping(ctx context.Context) error {
	if !s.IsConnected() {
		return adapter.ErrConnectionClosed
	}

	res, err := esapi.PingRequest{}.Do(ctx, s.client)
	if err != nil {
		return adapter.NewConnectionError(dbcapabilities.Elasticsearch, s.config.Hosts, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return eswire.DecodeError(dbcapabilities.Elasticsearch, "ping", res.StatusCode, nil)
	}
	return nil
}

// Close marks the session closed and drops idle connections.
func (s *Session) Close() error {
	if s.connected.CompareAndSwap(true, false) {
		s.transport.CloseIdleConnections()
	}
	return nil
}

// Documents returns the document operator.
func (s *Session) Documents() adapter.DocumentOperator {
	return &documents{session: s}
}

// Schema returns the schema operator. Indices are created implicitly, so
// collection definition is not supported.
func (s *Session) Schema() adapter.SchemaOperator {
	return adapter.NewUnsupportedSchemaOperator(dbcapabilities.Elasticsearch)
}

// Raw returns the underlying *elasticsearch.Client.
func (s *Session) Raw() interface{} {
	return s.client
}

// Config returns the configuration the session was opened with.
func (s *Session) Config() adapter.DatastoreConfig {
	return s.config
}

// Backend returns the backend that opened the session.
func (s *Session) Backend() adapter.Backend {
	return s.backend
}
