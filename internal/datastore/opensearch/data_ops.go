package opensearch

import (
	"context"

	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"

	"github.com/redbco/redb-esadapter/internal/datastore/eswire"
	"github.com/redbco/redb-esadapter/pkg/datastore/adapter"
	"github.com/redbco/redb-esadapter/pkg/dbcapabilities"
)

// documents implements adapter.DocumentOperator for OpenSearch.
type documents struct {
	session *Session
}

// perform sends req and returns the body of a successful response.
// Failed responses come back as *adapter.EngineError.
func (d *documents) perform(ctx context.Context, op string, req opensearchapi.Request) ([]byte, error) {
	if !d.session.IsConnected() {
		return nil, adapter.ErrConnectionClosed
	}

	res, err := req.Do(ctx, d.session.client)
	if err != nil {
		return nil, adapter.NewConnectionError(dbcapabilities.OpenSearch, d.session.config.Hosts, err)
	}
	defer res.Body.Close()

	return eswire.ReadBody(dbcapabilities.OpenSearch, op, res.StatusCode, res.Body)
}

func (d *documents) Index(ctx context.Context, target adapter.Target, doc adapter.Document) (*adapter.InsertedDoc, error) {
	id, body := eswire.SplitID(doc)
	reader, err := eswire.JSON(body)
	if err != nil {
		return nil, err
	}

	raw, err := d.perform(ctx, "index", opensearchapi.IndexRequest{
		Index:      target.Index,
		DocumentID: id,
		Body:       reader,
		Refresh:    d.session.config.Refresh,
	})
	if err != nil {
		return nil, err
	}
	return eswire.DecodeIndex(raw, body)
}

func (d *documents) Search(ctx context.Context, indices []string, criteria adapter.Criteria) ([]adapter.Document, error) {
	reader, err := eswire.CriteriaBody(criteria)
	if err != nil {
		return nil, err
	}

	raw, err := d.perform(ctx, "search", opensearchapi.SearchRequest{
		Index: indices,
		Body:  reader,
	})
	if err != nil {
		return nil, err
	}
	return eswire.DecodeHits(raw)
}

func (d *documents) Update(ctx context.Context, target adapter.Target, id string, patch adapter.Document) (*adapter.UpdatedDoc, error) {
	reader, err := eswire.UpdateBody(patch)
	if err != nil {
		return nil, err
	}

	raw, err := d.perform(ctx, "update", opensearchapi.UpdateRequest{
		Index:      target.Index,
		DocumentID: id,
		Body:       reader,
		Refresh:    d.session.config.Refresh,
	})
	if err != nil {
		return nil, err
	}
	return eswire.DecodeUpdate(raw)
}

func (d *documents) Delete(ctx context.Context, target adapter.Target, id string) (*adapter.Ack, error) {
	raw, err := d.perform(ctx, "delete", opensearchapi.DeleteRequest{
		Index:      target.Index,
		DocumentID: id,
		Refresh:    d.session.config.Refresh,
	})
	if err != nil {
		return nil, err
	}
	return eswire.DecodeDelete(raw)
}

func (d *documents) Count(ctx context.Context, indices []string, criteria adapter.Criteria) (int64, error) {
	reader, err := eswire.CriteriaBody(criteria)
	if err != nil {
		return 0, err
	}

	raw, err := d.perform(ctx, "count", opensearchapi.CountRequest{
		Index: indices,
		Body:  reader,
	})
	if err != nil {
		return 0, err
	}
	return eswire.DecodeCount(raw)
}

func (d *documents) Bulk(ctx context.Context, target adapter.Target, ops []adapter.BulkOperation) (*adapter.BulkResult, error) {
	if len(ops) == 0 {
		return &adapter.BulkResult{Items: []adapter.BulkItem{}}, nil
	}

	reader, err := eswire.BulkBody(dbcapabilities.OpenSearch, target, ops)
	if err != nil {
		return nil, err
	}

	raw, err := d.perform(ctx, "bulk", opensearchapi.BulkRequest{
		Index:   target.Index,
		Body:    reader,
		Refresh: d.session.config.Refresh,
	})
	if err != nil {
		return nil, err
	}
	return eswire.DecodeBulk(raw)
}
