package adapter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/redbco/redb-esadapter/pkg/dbcapabilities"
)

func TestNotFoundErrorMatching(t *testing.T) {
	dsErr := NewDatastoreNotFoundError("unknown")
	assert.ErrorIs(t, dsErr, ErrDatastoreNotFound)
	assert.False(t, errors.Is(dsErr, ErrCollectionNotFound))
	assert.Equal(t, "datastore not found: unknown", dsErr.Error())

	colErr := NewCollectionNotFoundError("es1", "gadget")
	assert.ErrorIs(t, colErr, ErrCollectionNotFound)
	assert.False(t, errors.Is(colErr, ErrDatastoreNotFound))
	assert.Contains(t, colErr.Error(), "es1")
	assert.Contains(t, colErr.Error(), "gadget")

	// survives wrapping
	wrapped := fmt.Errorf("create: %w", colErr)
	var nf *NotFoundError
	assert.True(t, errors.As(wrapped, &nf))
	assert.Equal(t, "gadget", nf.ResourceName)
}

func TestConnectionError(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := NewConnectionError(dbcapabilities.Elasticsearch, []string{"a:9200", "b:9200"}, cause)

	assert.True(t, IsConnectionError(err))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "a:9200,b:9200")
}

func TestEngineError(t *testing.T) {
	body := []byte(`{"error":{"type":"document_missing_exception"},"status":404}`)
	err := NewEngineError(dbcapabilities.Elasticsearch, "update", http.StatusNotFound, "document_missing_exception", "[_doc][7]: document missing", body)

	assert.ErrorIs(t, err, ErrEngine)
	assert.True(t, IsNotFound(err))
	assert.False(t, IsConflict(err))
	assert.Equal(t, body, err.Body)
	assert.Equal(t, "[elasticsearch] update failed with status 404: document_missing_exception: [_doc][7]: document missing", err.Error())

	conflict := fmt.Errorf("wrapped: %w", NewEngineError(dbcapabilities.OpenSearch, "index", http.StatusConflict, "", "", nil))
	assert.True(t, IsConflict(conflict))
	assert.False(t, IsNotFound(errors.New("plain")))
}

func TestUnsupportedAndConfigurationErrors(t *testing.T) {
	ctx := context.Background()
	ops := NewUnsupportedSchemaOperator(dbcapabilities.Elasticsearch)

	_, err := ops.Describe(ctx, Target{Index: "widget"})
	assert.True(t, IsUnsupported(err))
	assert.True(t, IsUnsupported(ops.Define(ctx, Target{}, nil)))
	assert.True(t, IsUnsupported(ops.Drop(ctx, Target{})))

	cfgErr := NewConfigurationError(dbcapabilities.Elasticsearch, "hosts", "empty")
	assert.True(t, IsConfigurationError(cfgErr))
	assert.Equal(t, "invalid configuration for elasticsearch: field 'hosts': empty", cfgErr.Error())
}

func TestBulkResultFailed(t *testing.T) {
	res := &BulkResult{
		Errors: true,
		Items: []BulkItem{
			{Action: BulkIndex, ID: "1", Status: 201, Result: "created"},
			{Action: BulkDelete, ID: "2", Status: 404, Error: "not_found"},
		},
	}
	failed := res.Failed()
	if assert.Len(t, failed, 1) {
		assert.Equal(t, "2", failed[0].ID)
	}

	assert.True(t, BulkUpdate.Valid())
	assert.False(t, BulkAction("upsert").Valid())
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, CodeOK},
		{"missing identity", fmt.Errorf("register: %w", ErrIdentityMissing), CodeIdentityMissing},
		{"duplicate identity", ErrIdentityDuplicate, CodeIdentityDuplicate},
		{"unknown datastore", NewDatastoreNotFoundError("x"), CodeDatastoreNotFound},
		{"unknown collection", NewCollectionNotFoundError("es1", "x"), CodeCollectionNotFound},
		{"unsupported", NewUnsupportedOperationError(dbcapabilities.Elasticsearch, "define", ""), CodeUnsupported},
		{"connection", NewConnectionError(dbcapabilities.Elasticsearch, nil, errors.New("refused")), CodeConnection},
		{"closed", ErrConnectionClosed, CodeConnectionClosed},
		{"configuration", NewConfigurationError(dbcapabilities.Elasticsearch, "hosts", "empty"), CodeConfiguration},
		{"no backend", fmt.Errorf("%w: mysql", ErrAdapterNotFound), CodeAdapterNotFound},
		{"typed engine error", NewEngineError(dbcapabilities.Elasticsearch, "count", 404, "index_not_found_exception", "", nil), "index_not_found_exception"},
		{"untyped engine error", NewEngineError(dbcapabilities.Elasticsearch, "count", 500, "", "", nil), CodeEngine},
		{"deadline", context.DeadlineExceeded, CodeCanceled},
		{"anything else", errors.New("boom"), CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorCode(tt.err))
		})
	}
}
