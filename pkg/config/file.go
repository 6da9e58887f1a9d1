package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/redbco/redb-esadapter/pkg/datastore/adapter"
)

// Well-known keys of the flattened configuration
const (
	KeyHTTPAddress     = "server.http_address"
	KeyReadTimeout     = "server.read_timeout"
	KeyWriteTimeout    = "server.write_timeout"
	KeyShutdownTimeout = "server.shutdown_timeout"
	KeyLogLevel        = "logging.level"
	KeyKeyringPath     = "keyring.path"
	KeyDatastores      = "datastores"
)

// EnvPrefix is prepended to upper-cased keys for environment overrides,
// e.g. REDB_ESADAPTER_LOGGING_LEVEL overrides logging.level.
const EnvPrefix = "REDB_ESADAPTER_"

// File is the YAML configuration file
type File struct {
	Server     ServerConfig     `yaml:"server"`
	Logging    LoggingConfig    `yaml:"logging"`
	Keyring    KeyringConfig    `yaml:"keyring"`
	Datastores []DatastoreEntry `yaml:"datastores"`
}

type ServerConfig struct {
	HTTPAddress     string        `yaml:"http_address"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

type KeyringConfig struct {
	Path string `yaml:"path"`
}

// DatastoreEntry is one datastore to register at startup
type DatastoreEntry struct {
	adapter.DatastoreConfig `yaml:",inline"`
	Collections             []adapter.CollectionDef `yaml:"collections"`
}

// DefaultFile returns the configuration used when no file is given
func DefaultFile() *File {
	return &File{
		Server: ServerConfig{
			HTTPAddress:     ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// LoadFile reads a YAML configuration file on top of DefaultFile and applies
// environment overrides. An empty path yields the defaults.
func LoadFile(path string) (*File, error) {
	f := DefaultFile()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, f); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := f.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// EnvKey returns the environment variable that overrides key
func EnvKey(key string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

func (f *File) applyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		KeyHTTPAddress: &f.Server.HTTPAddress,
		KeyLogLevel:    &f.Logging.Level,
		KeyKeyringPath: &f.Keyring.Path,
	}
	for key, dst := range strs {
		if v, ok := lookup(EnvKey(key)); ok {
			*dst = v
		}
	}

	durations := map[string]*time.Duration{
		KeyReadTimeout:     &f.Server.ReadTimeout,
		KeyWriteTimeout:    &f.Server.WriteTimeout,
		KeyShutdownTimeout: &f.Server.ShutdownTimeout,
	}
	for key, dst := range durations {
		v, ok := lookup(EnvKey(key))
		if !ok {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvKey(key), err)
		}
		*dst = d
	}
	return nil
}

// Validate checks datastore entries for missing or repeated identities
func (f *File) Validate() error {
	seen := make(map[string]bool, len(f.Datastores))
	for i, ds := range f.Datastores {
		if err := ds.DatastoreConfig.Validate(); err != nil {
			return fmt.Errorf("datastores[%d]: %w", i, err)
		}
		if seen[ds.Identity] {
			return fmt.Errorf("datastores[%d]: %w: %s", i, adapter.ErrIdentityDuplicate, ds.Identity)
		}
		seen[ds.Identity] = true

		names := make(map[string]bool, len(ds.Collections))
		for _, c := range ds.Collections {
			if c.Name == "" {
				return fmt.Errorf("datastores[%d]: collection name is required", i)
			}
			if names[c.Name] {
				return fmt.Errorf("datastores[%d]: duplicate collection %s", i, c.Name)
			}
			names[c.Name] = true
		}
	}
	return nil
}

// Datastore returns the entry with the given identity
func (f *File) Datastore(identity string) (DatastoreEntry, bool) {
	for _, ds := range f.Datastores {
		if ds.Identity == identity {
			return ds, true
		}
	}
	return DatastoreEntry{}, false
}

// Flatten renders the file as key/value pairs for Config
func (f *File) Flatten() map[string]string {
	values := map[string]string{
		KeyHTTPAddress:     f.Server.HTTPAddress,
		KeyReadTimeout:     f.Server.ReadTimeout.String(),
		KeyWriteTimeout:    f.Server.WriteTimeout.String(),
		KeyShutdownTimeout: f.Server.ShutdownTimeout.String(),
		KeyLogLevel:        f.Logging.Level,
		KeyKeyringPath:     f.Keyring.Path,
	}

	identities := make([]string, 0, len(f.Datastores))
	for _, ds := range f.Datastores {
		identities = append(identities, ds.Identity)
		prefix := KeyDatastores + "." + ds.Identity + "."
		values[prefix+"engine"] = ds.Engine
		values[prefix+"hosts"] = strings.Join(ds.Hosts, ",")

		names := make([]string, 0, len(ds.Collections))
		for _, c := range ds.Collections {
			names = append(names, c.Name)
		}
		values[prefix+"collections"] = strings.Join(names, ",")
	}
	values[KeyDatastores] = strings.Join(identities, ",")

	return values
}

// Load reads path and returns both the parsed file and the flattened store
func Load(path string) (*File, *Config, error) {
	f, err := LoadFile(path)
	if err != nil {
		return nil, nil, err
	}
	c := New()
	c.Update(f.Flatten())
	return f, c, nil
}
