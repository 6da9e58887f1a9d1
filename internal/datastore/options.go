package datastore

import (
	"time"

	"github.com/redbco/redb-esadapter/pkg/datastore/adapter"
	"github.com/redbco/redb-esadapter/pkg/dbcapabilities"
	"github.com/redbco/redb-esadapter/pkg/health"
	"github.com/redbco/redb-esadapter/pkg/logger"
)

// Recorder receives operation outcomes, e.g. for metrics.
type Recorder interface {
	ObserveOperation(identity, collection string, op dbcapabilities.Operation, elapsed time.Duration, err error)
	SetDatastores(n int)
}

// SecretResolver turns configured secret references into secrets.
type SecretResolver interface {
	Resolve(ref string) (string, error)
}

type nopRecorder struct{}

func (nopRecorder) ObserveOperation(string, string, dbcapabilities.Operation, time.Duration, error) {}

func (nopRecorder) SetDatastores(int) {}

type options struct {
	backends *adapter.Registry
	logger   *DatastoreLogger
	recorder Recorder
	secrets  SecretResolver
	health   *health.Checker
}

// Option configures a Registry or Adapter.
type Option func(*options)

func defaultOptions() options {
	return options{
		backends: adapter.GlobalRegistry(),
		logger:   NewDatastoreLogger(nil),
		recorder: nopRecorder{},
		health:   health.NewChecker(),
	}
}

func buildOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithBackends selects the backend registry engines are resolved from.
// Defaults to adapter.GlobalRegistry().
func WithBackends(r *adapter.Registry) Option {
	return func(o *options) {
		if r != nil {
			o.backends = r
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(o *options) {
		o.logger = NewDatastoreLogger(l)
	}
}

// WithRecorder sets the operation recorder.
func WithRecorder(r Recorder) Option {
	return func(o *options) {
		if r != nil {
			o.recorder = r
		}
	}
}

// WithSecrets sets the resolver for password and API key references.
// Without one, configured values are used literally.
func WithSecrets(s SecretResolver) Option {
	return func(o *options) {
		o.secrets = s
	}
}

// WithHealthChecker sets the checker datastore health checks are recorded in.
func WithHealthChecker(c *health.Checker) Option {
	return func(o *options) {
		if c != nil {
			o.health = c
		}
	}
}
