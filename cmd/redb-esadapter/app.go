package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/redbco/redb-esadapter/internal/datastore"
	"github.com/redbco/redb-esadapter/internal/datastore/elasticsearch"
	"github.com/redbco/redb-esadapter/internal/datastore/opensearch"
	"github.com/redbco/redb-esadapter/internal/metrics"
	"github.com/redbco/redb-esadapter/pkg/config"
	"github.com/redbco/redb-esadapter/pkg/datastore/adapter"
	"github.com/redbco/redb-esadapter/pkg/keyring"
	"github.com/redbco/redb-esadapter/pkg/logger"
)

const keyringProbeTimeout = 2 * time.Second

// app is what every command starts from: the loaded configuration and an
// adapter wired with logging, metrics and secret resolution.
type app struct {
	file     *config.File
	settings *config.Config
	logger   *logger.Logger
	metrics  *metrics.Metrics
	registry *prometheus.Registry
	adapter  *datastore.Adapter
}

func newApp() (*app, error) {
	file, settings, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}

	level := file.Logging.Level
	if logLevel != "" {
		level = logLevel
	}
	lvl, err := logger.ParseLevel(level)
	if err != nil {
		return nil, err
	}

	l := logger.New("esadapter", Version)
	l.SetOutput(os.Stderr)
	l.SetLevel(lvl)

	backends := adapter.NewRegistry()
	backends.Register(elasticsearch.NewBackend(elasticsearch.WithLogger(l)))
	backends.Register(opensearch.NewBackend(opensearch.WithLogger(l)))

	keyringPath := file.Keyring.Path
	if keyringPath == "" {
		keyringPath = keyring.DefaultKeyringPath()
	}
	secrets := keyring.NewResolver(keyring.NewStore(keyringPath, keyring.MasterPasswordFromEnv(), keyringProbeTimeout))

	m := metrics.New()
	reg := prometheus.NewRegistry()
	reg.MustRegister(m, collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return &app{
		file:     file,
		settings: settings,
		logger:   l,
		metrics:  m,
		registry: reg,
		adapter: datastore.NewAdapter(
			datastore.WithBackends(backends),
			datastore.WithLogger(l),
			datastore.WithRecorder(m),
			datastore.WithSecrets(secrets),
		),
	}, nil
}

// registerAll registers every configured datastore. Failures are logged and
// do not stop the remaining registrations.
func (a *app) registerAll(ctx context.Context) int {
	registered := 0
	for _, ds := range a.file.Datastores {
		if err := a.adapter.RegisterDatastore(ctx, ds.DatastoreConfig, ds.Collections); err != nil {
			a.logger.Error("Failed to register datastore %s: %v", ds.Identity, err)
			continue
		}
		registered++
	}
	return registered
}

// registerOne registers the configured datastore with the given identity.
func (a *app) registerOne(ctx context.Context, identity string) error {
	ds, ok := a.file.Datastore(identity)
	if !ok {
		return fmt.Errorf("not in %s: %w", a.configName(), adapter.NewDatastoreNotFoundError(identity))
	}
	return a.adapter.RegisterDatastore(ctx, ds.DatastoreConfig, ds.Collections)
}

func (a *app) configName() string {
	if configFile == "" {
		return "configuration"
	}
	return configFile
}

func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), a.file.Server.ShutdownTimeout)
	defer cancel()
	a.adapter.Close(ctx)
}
