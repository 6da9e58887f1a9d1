// Package opensearch implements the datastore backend for OpenSearch.
package opensearch

import (
	"context"
	"net/http"
	"sync/atomic"

	"github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"

	"github.com/redbco/redb-esadapter/internal/datastore/eswire"
	"github.com/redbco/redb-esadapter/pkg/datastore/adapter"
	"github.com/redbco/redb-esadapter/pkg/dbcapabilities"
	"github.com/redbco/redb-esadapter/pkg/logger"
)

// Backend implements adapter.Backend for OpenSearch.
type Backend struct {
	logger *logger.Logger
}

// Option configures a Backend.
type Option func(*Backend)

func WithLogger(l *logger.Logger) Option {
	return func(b *Backend) {
		b.logger = l
	}
}

// NewBackend creates a new OpenSearch backend instance.
func NewBackend(opts ...Option) *Backend {
	b := &Backend{}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Backend) Type() dbcapabilities.EngineID {
	return dbcapabilities.OpenSearch
}

func (b *Backend) Capabilities() dbcapabilities.Capability {
	return dbcapabilities.MustGet(dbcapabilities.OpenSearch)
}

func clientConfig(cfg adapter.DatastoreConfig, addresses []string, rt http.RoundTripper) opensearch.Config {
	osCfg := opensearch.Config{
		Addresses:            addresses,
		Username:             cfg.Username,
		Password:             cfg.Password,
		Transport:            rt,
		DiscoverNodesOnStart: adapter.BoolValue(cfg.SniffOnStart, false),
	}
	// unset keeps the client's default retry count
	if cfg.MaxRetries != nil {
		osCfg.MaxRetries = *cfg.MaxRetries
		osCfg.DisableRetry = *cfg.MaxRetries == 0
	}
	return osCfg
}

// Connect establishes a connection to OpenSearch.
func (b *Backend) Connect(ctx context.Context, cfg adapter.DatastoreConfig) (adapter.Session, error) {
	engine := dbcapabilities.OpenSearch

	addresses, err := dbcapabilities.NodeAddresses(cfg.Hosts, b.Capabilities().DefaultPort, cfg.TLS)
	if err != nil {
		return nil, adapter.NewConfigurationError(engine, "hosts", err.Error())
	}

	transport, err := eswire.HTTPTransport(cfg)
	if err != nil {
		return nil, adapter.NewConfigurationError(engine, "caCert", err.Error())
	}

	var ref atomic.Pointer[opensearch.Client]
	var rt http.RoundTripper = transport
	if adapter.BoolValue(cfg.SniffOnConnectionFault, false) {
		rt = &eswire.FaultTransport{
			Transport: transport,
			OnFault: func() {
				if c := ref.Load(); c != nil {
					if err := c.DiscoverNodes(); err != nil && b.logger != nil {
						b.logger.Warn("Node discovery for datastore %s failed: %v", cfg.Identity, err)
					}
				}
			},
		}
	}
	if cfg.APIKey != "" {
		rt = &eswire.HeaderTransport{
			Transport: rt,
			Header:    http.Header{"Authorization": []string{"ApiKey " + cfg.APIKey}},
		}
	}

	client, err := opensearch.NewClient(clientConfig(cfg, addresses, eswire.NewLoggingTransport(rt, b.logger, cfg.Identity)))
	if err != nil {
		return nil, adapter.NewConnectionError(engine, cfg.Hosts, err)
	}
	ref.Store(client)

	// Test connection
	res, err := opensearchapi.InfoRequest{}.Do(ctx, client)
	if err != nil {
		transport.CloseIdleConnections()
		return nil, adapter.NewConnectionError(engine, cfg.Hosts, err)
	}
	defer res.Body.Close()

	raw, err := eswire.ReadBody(engine, "info", res.StatusCode, res.Body)
	if err != nil {
		transport.CloseIdleConnections()
		return nil, adapter.NewConnectionError(engine, cfg.Hosts, err)
	}
	info, err := eswire.DecodeInfo(raw)
	if err != nil {
		transport.CloseIdleConnections()
		return nil, adapter.NewConnectionError(engine, cfg.Hosts, err)
	}

	if !eswire.CompatibleVersion(cfg.APIVersion, info.Version.Number) && b.logger != nil {
		b.logger.Warn("Datastore %s expects API version %s but cluster %s runs %s",
			cfg.Identity, cfg.APIVersion, info.ClusterName, info.Version.Number)
	}

	conn := &Session{
		client:    client,
		transport: transport,
		config:    cfg,
		backend:   b,
		info:      *info,
	}
	conn.connected.Store(true)
	return conn, nil
}

// Session implements adapter.Session for OpenSearch.
type Session struct {
	client    *opensearch.Client
	transport *http.Transport
	config    adapter.DatastoreConfig
	backend   *Backend
	info      eswire.Info
	connected atomic.Bool
}

// ID returns the identity of the datastore.
func (s *Session) ID() string {
	return s.config.Identity
}

func (s *Session) Type() dbcapabilities.EngineID {
	return dbcapabilities.OpenSearch
}

func (s *Session) IsConnected() bool {
	return s.connected.Load()
}

// ClusterInfo returns what the cluster reported on connect.
func (s *Session) ClusterInfo() eswire.Info {
	return s.info
}

// Ping tests the connection.
func (s *Session) Ping(ctx context.Context) error {
	if !s.IsConnected() {
		return adapter.ErrConnectionClosed
	}

	res, err := opensearchapi.PingRequest{}.Do(ctx, s.client)
	if err != nil {
		return adapter.NewConnectionError(dbcapabilities.OpenSearch, s.config.Hosts, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return eswire.DecodeError(dbcapabilities.OpenSearch, "ping", res.StatusCode, nil)
	}
	return nil
}

// Close closes the connection.
func (s *Session) Close() error {
	if s.connected.CompareAndSwap(true, false) {
		s.transport.CloseIdleConnections()
	}
	return nil
}

func (s *Session) Documents() adapter.DocumentOperator {
	return &documents{session: s}
}

func (s *Session) Schema() adapter.SchemaOperator {
	return adapter.NewUnsupportedSchemaOperator(dbcapabilities.OpenSearch)
}

// Raw returns the underlying *opensearch.Client.
func (s *Session) Raw() interface{} {
	return s.client
}

func (s *Session) Config() adapter.DatastoreConfig {
	return s.config
}

func (s *Session) Backend() adapter.Backend {
	return s.backend
}
