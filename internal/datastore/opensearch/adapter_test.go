package opensearch

import (
	"context"
	"errors"
	"testing"

	"github.com/opensearch-project/opensearch-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redbco/redb-esadapter/internal/datastore"
	"github.com/redbco/redb-esadapter/internal/datastore/eswire/eswiretest"
	"github.com/redbco/redb-esadapter/pkg/datastore/adapter"
	"github.com/redbco/redb-esadapter/pkg/dbcapabilities"
)

func testConfig(c *eswiretest.Cluster) adapter.DatastoreConfig {
	return adapter.DatastoreConfig{
		Identity:               "os1",
		Engine:                 "opensearch",
		Hosts:                  []string{c.Host()},
		SniffOnStart:           adapter.Bool(false),
		SniffOnConnectionFault: adapter.Bool(false),
		APIVersion:             "2",
	}.WithDefaults()
}

func TestConnectAndDocuments(t *testing.T) {
	ctx := context.Background()
	c := eswiretest.NewCluster(t, dbcapabilities.OpenSearch, "2.11.1")

	sess, err := NewBackend().Connect(ctx, testConfig(c))
	require.NoError(t, err)
	s := sess.(*Session)
	t.Cleanup(func() { s.Close() })

	assert.Equal(t, "os1", s.ID())
	assert.Equal(t, dbcapabilities.OpenSearch, s.Type())
	assert.Equal(t, "opensearch", s.ClusterInfo().Version.Distribution)
	_, ok := s.Raw().(*opensearch.Client)
	assert.True(t, ok)
	require.NoError(t, s.Ping(ctx))

	docs := s.Documents()
	target := adapter.Target{Index: "widget", Type: adapter.DefaultDocumentType}

	ins, err := docs.Index(ctx, target, adapter.Document{adapter.IDField: "w1", "name": "a"})
	require.NoError(t, err)
	assert.Equal(t, "w1", ins.ID)

	found, err := docs.Search(ctx, []string{"widget"}, adapter.Criteria{})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "a", found[0]["name"])

	upd, err := docs.Update(ctx, target, "w1", adapter.Document{"name": "b"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), upd.Version)

	res, err := docs.Bulk(ctx, target, []adapter.BulkOperation{
		{Action: adapter.BulkIndex, ID: "w2", Document: adapter.Document{"name": "c"}},
		{Action: adapter.BulkDelete, ID: "w1"},
	})
	require.NoError(t, err)
	assert.False(t, res.Errors)

	n, err := docs.Count(ctx, []string{"widget"}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = docs.Delete(ctx, target, "w1")
	var engErr *adapter.EngineError
	require.True(t, errors.As(err, &engErr))
	assert.Equal(t, dbcapabilities.OpenSearch, engErr.Engine)
	assert.True(t, adapter.IsNotFound(err))

	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Ping(ctx), adapter.ErrConnectionClosed)
}

func TestClientConfigRetries(t *testing.T) {
	tests := []struct {
		name         string
		maxRetries   *int
		wantRetries  int
		wantDisabled bool
	}{
		{"unset keeps client default", nil, 0, false},
		{"explicit zero disables", adapter.Int(0), 0, true},
		{"explicit count", adapter.Int(2), 2, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := adapter.DatastoreConfig{Identity: "os1", Engine: "opensearch", MaxRetries: tt.maxRetries}.WithDefaults()
			osCfg := clientConfig(cfg, []string{"http://os1:9200"}, nil)
			assert.Equal(t, tt.wantRetries, osCfg.MaxRetries)
			assert.Equal(t, tt.wantDisabled, osCfg.DisableRetry)
			assert.Equal(t, []string{"http://os1:9200"}, osCfg.Addresses)
		})
	}
}

func TestAPIKeyHeader(t *testing.T) {
	c := eswiretest.NewCluster(t, dbcapabilities.OpenSearch, "2.11.1")
	cfg := testConfig(c)
	cfg.APIKey = "b3M6a2V5"

	sess, err := NewBackend().Connect(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { sess.Close() })

	reqs := c.RequestsTo("/")
	require.NotEmpty(t, reqs)
	assert.Equal(t, "ApiKey b3M6a2V5", reqs[len(reqs)-1].Header.Get("Authorization"))
}

func TestConnectUnreachable(t *testing.T) {
	c := eswiretest.NewCluster(t, dbcapabilities.OpenSearch, "2.11.1")
	cfg := testConfig(c)
	c.Close()

	_, err := NewBackend().Connect(context.Background(), cfg)
	require.Error(t, err)
	assert.True(t, adapter.IsConnectionError(err))
}

func TestAdapterOverOpenSearch(t *testing.T) {
	ctx := context.Background()
	c := eswiretest.NewCluster(t, dbcapabilities.OpenSearch, "2.11.1")

	backends := adapter.NewRegistry()
	backends.Register(NewBackend())
	a := datastore.NewAdapter(datastore.WithBackends(backends))
	t.Cleanup(func() { a.Close(context.Background()) })

	require.NoError(t, a.RegisterDatastore(ctx, testConfig(c), []adapter.CollectionDef{{Name: "widget"}}))

	caps, err := a.Capabilities("os1")
	require.NoError(t, err)
	assert.Equal(t, dbcapabilities.OpenSearch, caps.ID)

	_, err = a.Create(ctx, "os1", "widget", adapter.Document{"name": "a"})
	require.NoError(t, err)
	n, err := a.Count(ctx, "os1", "widget", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestRegisteredGlobally(t *testing.T) {
	assert.True(t, adapter.GlobalRegistry().IsRegistered(dbcapabilities.OpenSearch))
}
