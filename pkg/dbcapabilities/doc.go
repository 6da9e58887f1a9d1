// Package dbcapabilities provides a shared registry describing the capabilities of
// the search engines the adapter can front. Callers import this package to make
// decisions based on uniform metadata (paradigms, supported operations).
//
// Minimal usage example:
//
//	import "github.com/redbco/redb-esadapter/pkg/dbcapabilities"
//
//	func canDrop(engine string) bool {
//	    id, ok := dbcapabilities.ParseID(engine)
//	    return ok && dbcapabilities.Supports(id, dbcapabilities.OpDrop)
//	}
//
// Operations absent from a capability's OperationSet are either rejected or
// accepted as no-ops by the adapter, depending on the contract for that
// operation; the set lets callers tell the two apart from real work.
package dbcapabilities
