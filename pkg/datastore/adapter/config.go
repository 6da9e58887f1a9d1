package adapter

import (
	"fmt"
	"strings"

	"github.com/redbco/redb-esadapter/pkg/dbcapabilities"
)

// DatastoreConfig contains the configuration for one registered datastore.
// Engine options are passed through to the engine client unmodified.
type DatastoreConfig struct {
	// Identity is the unique key of the datastore in the registry.
	Identity string `json:"identity" yaml:"identity"`

	// Engine selects the backend, e.g. "elasticsearch" (default) or "opensearch".
	Engine string `json:"engine,omitempty" yaml:"engine,omitempty"`

	// Node list, "host:port" or full URLs.
	Hosts []string `json:"hosts,omitempty" yaml:"hosts,omitempty"`

	// Client session options
	SniffOnStart           *bool  `json:"sniffOnStart,omitempty" yaml:"sniffOnStart,omitempty"`
	SniffOnConnectionFault *bool  `json:"sniffOnConnectionFault,omitempty" yaml:"sniffOnConnectionFault,omitempty"`
	KeepAlive              *bool  `json:"keepAlive,omitempty" yaml:"keepAlive,omitempty"`
	APIVersion             string `json:"apiVersion,omitempty" yaml:"apiVersion,omitempty"` // unset accepts any cluster version
	PoolSize               int    `json:"poolSize,omitempty" yaml:"poolSize,omitempty"`

	// MaxRetries overrides the engine client's retry count when set.
	// An explicit 0 disables retries.
	MaxRetries *int `json:"maxRetries,omitempty" yaml:"maxRetries,omitempty"`

	// Schema declares whether collection schemas are enforced. Pass-through only.
	Schema bool `json:"schema,omitempty" yaml:"schema,omitempty"`

	// Authentication. Password and APIKey may be secret references
	// (see pkg/keyring).
	Username string `json:"username,omitempty" yaml:"username,omitempty"`
	Password string `json:"password,omitempty" yaml:"password,omitempty"`
	APIKey   string `json:"apiKey,omitempty" yaml:"apiKey,omitempty"`

	// TLS configuration
	TLS           bool   `json:"tls,omitempty" yaml:"tls,omitempty"`
	TLSSkipVerify bool   `json:"tlsSkipVerify,omitempty" yaml:"tlsSkipVerify,omitempty"`
	CACert        string `json:"caCert,omitempty" yaml:"caCert,omitempty"`

	// IndexPrefix is prepended to every collection's index name.
	IndexPrefix string `json:"indexPrefix,omitempty" yaml:"indexPrefix,omitempty"`

	// Refresh is forwarded as the refresh parameter of write requests
	// ("", "true", "false" or "wait_for").
	Refresh string `json:"refresh,omitempty" yaml:"refresh,omitempty"`

	// Engine-specific options (use sparingly)
	Options map[string]interface{} `json:"options,omitempty" yaml:"options,omitempty"`
}

// Defaults is the connection configuration applied to unset fields.
var Defaults = DatastoreConfig{
	Engine:                 string(dbcapabilities.Elasticsearch),
	Hosts:                  []string{"127.0.0.1:9200"},
	SniffOnStart:           Bool(true),
	SniffOnConnectionFault: Bool(true),
	KeepAlive:              Bool(false),
}

// Bool returns a pointer to b.
func Bool(b bool) *bool {
	return &b
}

// BoolValue dereferences p, falling back to def when p is nil.
func BoolValue(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

// Int returns a pointer to n.
func Int(n int) *int {
	return &n
}

// WithDefaults returns a copy of c with Defaults filled into unset fields.
func (c DatastoreConfig) WithDefaults() DatastoreConfig {
	out := c
	if out.Engine == "" {
		out.Engine = Defaults.Engine
	}
	if len(out.Hosts) == 0 {
		out.Hosts = append([]string(nil), Defaults.Hosts...)
	}
	if out.SniffOnStart == nil {
		out.SniffOnStart = Bool(*Defaults.SniffOnStart)
	}
	if out.SniffOnConnectionFault == nil {
		out.SniffOnConnectionFault = Bool(*Defaults.SniffOnConnectionFault)
	}
	if out.KeepAlive == nil {
		out.KeepAlive = Bool(*Defaults.KeepAlive)
	}
	return out
}

// EngineID resolves the configured engine to its canonical ID.
func (c DatastoreConfig) EngineID() (dbcapabilities.EngineID, error) {
	name := c.Engine
	if name == "" {
		name = Defaults.Engine
	}
	id, ok := dbcapabilities.ParseID(name)
	if !ok {
		return "", NewConfigurationError(dbcapabilities.EngineID(name), "engine", fmt.Sprintf("unknown engine: %s", name))
	}
	return id, nil
}

// Validate checks the configuration. A missing identity yields ErrIdentityMissing.
func (c DatastoreConfig) Validate() error {
	if strings.TrimSpace(c.Identity) == "" {
		return ErrIdentityMissing
	}

	engine, err := c.EngineID()
	if err != nil {
		return err
	}

	if c.PoolSize < 0 {
		return NewConfigurationError(engine, "poolSize", "must not be negative")
	}
	if c.MaxRetries != nil && *c.MaxRetries < 0 {
		return NewConfigurationError(engine, "maxRetries", "must not be negative")
	}

	switch c.Refresh {
	case "", "true", "false", "wait_for":
	default:
		return NewConfigurationError(engine, "refresh", fmt.Sprintf("unsupported value %q", c.Refresh))
	}

	for _, h := range c.Hosts {
		if strings.TrimSpace(h) == "" {
			return NewConfigurationError(engine, "hosts", "host entries cannot be empty")
		}
	}

	return nil
}

// CollectionDef declares one collection (model) of a datastore.
type CollectionDef struct {
	// Name is the model name used to address the collection.
	Name string `json:"name" yaml:"name"`

	// Index overrides the index derived from Name.
	Index string `json:"index,omitempty" yaml:"index,omitempty"`

	// Type is the document type; "_doc" when empty.
	Type string `json:"type,omitempty" yaml:"type,omitempty"`
}

// DefaultDocumentType is used when a collection declares no type.
const DefaultDocumentType = "_doc"

// Target returns the index/type pair the collection is bound to.
func (d CollectionDef) Target(prefix string) Target {
	index := d.Index
	if index == "" {
		index = d.Name
	}
	typ := d.Type
	if typ == "" {
		typ = DefaultDocumentType
	}
	return Target{
		Index: strings.ToLower(prefix + index),
		Type:  typ,
	}
}
