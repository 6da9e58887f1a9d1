package datastore

import (
	"time"

	"github.com/redbco/redb-esadapter/pkg/datastore/adapter"
	"github.com/redbco/redb-esadapter/pkg/dbcapabilities"
)

// Handle is the live engine session of one registered datastore.
// It is immutable once published in a Registry.
type Handle struct {
	identity    string
	config      adapter.DatastoreConfig
	session     adapter.Session
	connectedAt time.Time
}

func (h *Handle) Identity() string { return h.identity }

// Config returns the configuration as registered, with defaults applied.
// Secret references are kept unresolved.
func (h *Handle) Config() adapter.DatastoreConfig { return h.config }

func (h *Handle) Session() adapter.Session { return h.session }

func (h *Handle) Engine() dbcapabilities.EngineID { return h.session.Type() }

func (h *Handle) ConnectedAt() time.Time { return h.connectedAt }

// Capabilities returns the capability metadata of the handle's engine.
func (h *Handle) Capabilities() dbcapabilities.Capability {
	return h.session.Backend().Capabilities()
}

func (h *Handle) logContext() LogContext {
	return LogContext{
		Engine:   string(h.Engine()),
		Identity: h.identity,
		Hosts:    h.config.Hosts,
	}
}
