package adapter

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redbco/redb-esadapter/pkg/dbcapabilities"
)

type stubBackend struct {
	id      dbcapabilities.EngineID
	err     error
	session Session
}

func (b *stubBackend) Type() dbcapabilities.EngineID { return b.id }

func (b *stubBackend) Capabilities() dbcapabilities.Capability {
	return dbcapabilities.MustGet(b.id)
}

func (b *stubBackend) Connect(ctx context.Context, config DatastoreConfig) (Session, error) {
	return b.session, b.err
}

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	assert.Empty(t, r.ListRegistered())

	r.Register(&stubBackend{id: dbcapabilities.OpenSearch})
	r.Register(&stubBackend{id: dbcapabilities.Elasticsearch})

	assert.True(t, r.IsRegistered(dbcapabilities.Elasticsearch))
	assert.Equal(t, []dbcapabilities.EngineID{dbcapabilities.Elasticsearch, dbcapabilities.OpenSearch}, r.ListRegistered())

	b, err := r.GetByName("es")
	require.NoError(t, err)
	assert.Equal(t, dbcapabilities.Elasticsearch, b.Type())

	_, err = r.GetByName("solr")
	assert.ErrorIs(t, err, ErrAdapterNotFound)

	backend, err := r.Get(dbcapabilities.OpenSearch)
	require.NoError(t, err)
	assert.Equal(t, dbcapabilities.OpenSearch, backend.Capabilities().ID)

	r.Unregister(dbcapabilities.OpenSearch)
	_, err = r.Get(dbcapabilities.OpenSearch)
	assert.ErrorIs(t, err, ErrAdapterNotFound)

	r.Clear()
	assert.Empty(t, r.ListRegistered())
}

func TestRegistryConnectErrors(t *testing.T) {
	tests := []struct {
		name    string
		backend *stubBackend
		config  DatastoreConfig
		check   func(t *testing.T, err error)
	}{
		{
			name:    "unknown engine",
			backend: &stubBackend{id: dbcapabilities.Elasticsearch},
			config:  DatastoreConfig{Identity: "x", Engine: "solr"},
			check: func(t *testing.T, err error) {
				assert.True(t, IsConfigurationError(err))
			},
		},
		{
			name:    "backend not registered",
			backend: &stubBackend{id: dbcapabilities.Elasticsearch},
			config:  DatastoreConfig{Identity: "x", Engine: "opensearch"},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrAdapterNotFound)
			},
		},
		{
			name:    "plain failure becomes connection error",
			backend: &stubBackend{id: dbcapabilities.Elasticsearch, err: errors.New("refused")},
			config:  DatastoreConfig{Identity: "x", Hosts: []string{"h:1"}},
			check: func(t *testing.T, err error) {
				var connErr *ConnectionError
				require.True(t, errors.As(err, &connErr))
				assert.Equal(t, []string{"h:1"}, connErr.Hosts)
			},
		},
		{
			name: "typed failure kept",
			backend: &stubBackend{
				id:  dbcapabilities.Elasticsearch,
				err: NewConnectionError(dbcapabilities.Elasticsearch, []string{"other:2"}, errors.New("timeout")),
			},
			config: DatastoreConfig{Identity: "x", Hosts: []string{"h:1"}},
			check: func(t *testing.T, err error) {
				var connErr *ConnectionError
				require.True(t, errors.As(err, &connErr))
				assert.Equal(t, []string{"other:2"}, connErr.Hosts)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry()
			r.Register(tt.backend)
			_, err := r.Connect(context.Background(), tt.config)
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}
