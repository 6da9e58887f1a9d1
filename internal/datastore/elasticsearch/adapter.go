// Package elasticsearch implements the datastore backend for Elasticsearch
// on top of the official go-elasticsearch client.
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
	"github.com/redbco/redb-esadapter/pkg/logger"
)

// Backend implements adapter.Backend for Elasticsearch.
type Backend struct {
	logger *logger.Logger
}

// Option configures a Backend.
type Option func(*Backend)

// WithLogger logs engine round trips and connection warnings to l.
func WithLogger(l *logger.Logger) Option {
	return func(b *Backend) {
		b.logger = l
	}
}

// NewBackend creates a new Elasticsearch backend instance.
func NewBackend(opts ...Option) *Backend {
	b := &Backend{}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Type returns the engine identifier.
func (b *Backend) Type() dbcapabilities.EngineID {
	return dbcapabilities.Elasticsearch
}

// Capabilities returns the capability metadata.
func (b *Backend) Capabilities() dbcapabilities.Capability {
	return dbcapabilities.MustGet(dbcapabilities.Elasticsearch)
}

// clientConfig maps a datastore configuration onto the client configuration.
// The returned transport is the one the client sends requests through.
func (b *Backend) clientConfig(cfg adapter.DatastoreConfig) (elasticsearch.Config, *http.Transport, *atomic.Pointer[elasticsearch.Client], error) {
	engine := dbcapabilities.Elasticsearch

	addresses, err := dbcapabilities.NodeAddresses(cfg.Hosts, b.Capabilities().DefaultPort, cfg.TLS)
	if err != nil {
		return elasticsearch.Config{}, nil, nil, adapter.NewConfigurationError(engine, "hosts", err.Error())
	}

	transport, err := eswire.HTTPTransport(cfg)
	if err != nil {
		return elasticsearch.Config{}, nil, nil, adapter.NewConfigurationError(engine, "caCert", err.Error())
	}

	// Discovery after a connection fault needs the client, which only exists
	// once the config has been built.
	var client atomic.Pointer[elasticsearch.Client]
	fault := &eswire.FaultTransport{Transport: transport}
	if adapter.BoolValue(cfg.SniffOnConnectionFault, false) {
		fault.OnFault = func() {
			c := client.Load()
			if c == nil {
				return
			}
			if err := c.DiscoverNodes(); err != nil && b.logger != nil {
				b.logger.Warn("Node discovery for datastore %s failed: %v", cfg.Identity, err)
			}
		}
	}

	esCfg := elasticsearch.Config{
		Addresses:            addresses,
		Username:             cfg.Username,
		Password:             cfg.Password,
		APIKey:               cfg.APIKey,
		Transport:            eswire.NewLoggingTransport(fault, b.logger, cfg.Identity),
		DiscoverNodesOnStart: adapter.BoolValue(cfg.SniffOnStart, false),
	}
	// unset keeps the client's default retry count
	if cfg.MaxRetries != nil {
		esCfg.MaxRetries = *cfg.MaxRetries
		esCfg.DisableRetry = *cfg.MaxRetries == 0
	}
	return esCfg, transport, &client, nil
}

// Connect creates a client for cfg and confirms the cluster answers.
func (b *Backend) Connect(ctx context.Context, cfg adapter.DatastoreConfig) (adapter.Session, error) {
	engine := dbcapabilities.Elasticsearch

	esCfg, transport, ref, err := b.clientConfig(cfg)
	if err != nil {
		return nil, err
	}

	client, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		return nil, adapter.NewConnectionError(engine, cfg.Hosts, err)
	}
	ref.Store(client)

	info, err := clusterInfo(ctx, client)
	if err != nil {
		transport.CloseIdleConnections()
		return nil, adapter.NewConnectionError(engine, cfg.Hosts, err)
	}

	if !eswire.CompatibleVersion(cfg.APIVersion, info.Version.Number) && b.logger != nil {
		b.logger.Warn("Datastore %s expects API version %s but cluster %s runs %s",
			cfg.Identity, cfg.APIVersion, info.ClusterName, info.Version.Number)
	}

	s := &Session{
		client:    client,
		transport: transport,
		config:    cfg,
		backend:   b,
		info:      *info,
	}
	s.connected.Store(true)
	return s, nil
}

func clusterInfo(ctx context.Context, client *elasticsearch.Client) (*eswire.Info, error) {
	res, err := esapi.InfoRequest{}.Do(ctx, client)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	raw, err := eswire.ReadBody(dbcapabilities.Elasticsearch, "info", res.StatusCode, res.Body)
	if err != nil {
		return nil, err
	}
	return eswire.DecodeInfo(raw)
}
