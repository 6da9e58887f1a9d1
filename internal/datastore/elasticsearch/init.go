package elasticsearch

import "github.com/redbco/redb-esadapter/pkg/datastore/adapter"

func init() {
	// Register Elasticsearch backend with the global registry
	adapter.Register(NewBackend())
}
