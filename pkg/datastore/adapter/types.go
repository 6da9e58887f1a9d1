package adapter

// Document is a schemaless document as exchanged with the engine.
type Document map[string]interface{}

// Criteria is a query body in the engine's own DSL, forwarded unmodified.
type Criteria map[string]interface{}

// Target is the physical index/type pair a collection is bound to.
type Target struct {
	Index string `json:"index"`
	Type  string `json:"type"`
}

// IDField is the key under which document IDs are exposed in results.
const IDField = "_id"

// InsertedDoc is the engine acknowledgement of an index request.
type InsertedDoc struct {
	ID       string   `json:"id"`
	Index    string   `json:"index"`
	Version  int64    `json:"version"`
	Result   string   `json:"result"`
	Document Document `json:"document,omitempty"`
}

// UpdatedDoc is the engine acknowledgement of an update request.
type UpdatedDoc struct {
	ID      string `json:"id"`
	Index   string `json:"index"`
	Version int64  `json:"version"`
	Result  string `json:"result"`
}

// Ack is the engine acknowledgement of a delete request.
type Ack struct {
	ID     string `json:"id"`
	Index  string `json:"index"`
	Result string `json:"result"`
	Found  bool   `json:"found"`
}

// BulkAction is one of the bulk API actions.
type BulkAction string

const (
	BulkIndex  BulkAction = "index"
	BulkCreate BulkAction = "create"
	BulkUpdate BulkAction = "update"
	BulkDelete BulkAction = "delete"
)

// Valid reports whether a is a known bulk action.
func (a BulkAction) Valid() bool {
	switch a {
	case BulkIndex, BulkCreate, BulkUpdate, BulkDelete:
		return true
	}
	return false
}

// BulkOperation is one line pair of a bulk request.
type BulkOperation struct {
	Action BulkAction `json:"action"`
	ID     string     `json:"id,omitempty"`
	// Index overrides the collection's index for this operation.
	Index    string   `json:"index,omitempty"`
	Document Document `json:"document,omitempty"`
}

// BulkItem is the per-operation outcome of a bulk request.
type BulkItem struct {
	Action BulkAction `json:"action"`
	ID     string     `json:"id"`
	Index  string     `json:"index"`
	Status int        `json:"status"`
	Result string     `json:"result,omitempty"`
	Error  string     `json:"error,omitempty"`
}

// BulkResult is the engine response to a bulk request.
type BulkResult struct {
	Took   int64      `json:"took"`
	Errors bool       `json:"errors"`
	Items  []BulkItem `json:"items"`
}

// Failed returns the items that carry an error.
func (r *BulkResult) Failed() []BulkItem {
	var out []BulkItem
	for _, it := range r.Items {
		if it.Error != "" {
			out = append(out, it)
		}
	}
	return out
}
