package opensearch

import "github.com/redbco/redb-esadapter/pkg/datastore/adapter"

func init() {
	// Register OpenSearch backend with the global registry
	adapter.Register(NewBackend())
}
