package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redbco/redb-esadapter/pkg/datastore/adapter"
	"github.com/redbco/redb-esadapter/pkg/dbcapabilities"
)

func TestObserveOperation(t *testing.T) {
	m := New()

	m.ObserveOperation("es1", "widget", dbcapabilities.OpCreate, 10*time.Millisecond, nil)
	m.ObserveOperation("es1", "widget", dbcapabilities.OpCreate, 20*time.Millisecond, nil)
	m.ObserveOperation("es1", "widget", dbcapabilities.OpSearch, time.Millisecond, adapter.NewCollectionNotFoundError("es1", "widget"))

	assert.Equal(t, float64(2), testutil.ToFloat64(m.Operations.WithLabelValues("es1", "widget", "create", "ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Operations.WithLabelValues("es1", "widget", "search", adapter.CodeCollectionNotFound)))
	assert.Equal(t, 2, testutil.CollectAndCount(m.Durations))
}

func TestSetDatastores(t *testing.T) {
	m := New()
	m.SetDatastores(3)
	assert.Equal(t, float64(3), testutil.ToFloat64(m.Datastores))
	m.SetDatastores(0)
	assert.Equal(t, float64(0), testutil.ToFloat64(m.Datastores))
}

func TestRegister(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	m := New()
	require.NoError(t, reg.Register(m))

	m.SetDatastores(1)
	expected := `
# HELP redb_esadapter_datastores Number of registered datastores.
# TYPE redb_esadapter_datastores gauge
redb_esadapter_datastores 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "redb_esadapter_datastores"))

	assert.Error(t, reg.Register(New()), "duplicate collectors must be rejected")
}
