package adapter

import (
	"context"

	"github.com/redbco/redb-esadapter/pkg/dbcapabilities"
)

// UnsupportedSchemaOperator is a nil object for engines where collections
// have no explicit definition.
type UnsupportedSchemaOperator struct {
	engine dbcapabilities.EngineID
}

func (u *UnsupportedSchemaOperator) Describe(ctx context.Context, target Target) (map[string]interface{}, error) {
	return nil, NewUnsupportedOperationError(u.engine, string(dbcapabilities.OpDescribe), "")
}

func (u *UnsupportedSchemaOperator) Define(ctx context.Context, target Target, definition map[string]interface{}) error {
	return NewUnsupportedOperationError(u.engine, string(dbcapabilities.OpDefine), "")
}

func (u *UnsupportedSchemaOperator) Drop(ctx context.Context, target Target) error {
	return NewUnsupportedOperationError(u.engine, string(dbcapabilities.OpDrop), "")
}

// NewUnsupportedSchemaOperator creates a new unsupported schema operator.
func NewUnsupportedSchemaOperator(engine dbcapabilities.EngineID) SchemaOperator {
	return &UnsupportedSchemaOperator{engine: engine}
}
