package datastore

import (
	"context"

	"github.com/redbco/redb-esadapter/pkg/datastore/adapter"
)

// Collection is the proxy for one named collection of a datastore. Every
// method is a direct forward to the engine session against the bound
// index and type.
type Collection struct {
	name     string
	identity string
	target   adapter.Target
	docs     adapter.DocumentOperator
}

func newCollection(h *Handle, def adapter.CollectionDef) *Collection {
	return &Collection{
		name:     def.Name,
		identity: h.identity,
		target:   def.Target(h.config.IndexPrefix),
		docs:     h.session.Documents(),
	}
}

func (c *Collection) Name() string           { return c.name }
func (c *Collection) Identity() string       { return c.identity }
func (c *Collection) Index() string          { return c.target.Index }
func (c *Collection) Type() string           { return c.target.Type }
func (c *Collection) Target() adapter.Target { return c.target }

// Insert indexes doc. An "_id" field, when present, selects the document ID.
func (c *Collection) Insert(ctx context.Context, doc adapter.Document) (*adapter.InsertedDoc, error) {
	return c.docs.Index(ctx, c.target, doc)
}

// Search runs criteria against the collection's index, or against indices
// when any are given.
func (c *Collection) Search(ctx context.Context, criteria adapter.Criteria, indices ...string) ([]adapter.Document, error) {
	if len(indices) == 0 {
		indices = []string{c.target.Index}
	}
	return c.docs.Search(ctx, indices, criteria)
}

// Update applies a partial document to id.
func (c *Collection) Update(ctx context.Context, id string, patch adapter.Document) (*adapter.UpdatedDoc, error) {
	return c.docs.Update(ctx, c.target, id, patch)
}

// Destroy deletes the document id.
func (c *Collection) Destroy(ctx context.Context, id string) (*adapter.Ack, error) {
	return c.docs.Delete(ctx, c.target, id)
}

// Count returns the number of documents matching criteria.
func (c *Collection) Count(ctx context.Context, criteria adapter.Criteria) (int64, error) {
	return c.docs.Count(ctx, []string{c.target.Index}, criteria)
}

// Bulk sends ops in one bulk request.
func (c *Collection) Bulk(ctx context.Context, ops []adapter.BulkOperation) (*adapter.BulkResult, error) {
	return c.docs.Bulk(ctx, c.target, ops)
}
