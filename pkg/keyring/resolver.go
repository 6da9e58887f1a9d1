package keyring

import (
	"fmt"
	"os"
	"strings"
)

// Reference prefixes understood by Resolver.
const (
	KeyringPrefix = "keyring:"
	EnvPrefix     = "env:"
)

// Resolver turns secret references from configuration into secret values.
//
//	keyring:<service>/<user>   looked up in the Store
//	env:<NAME>                 read from the environment
//	anything else              used literally
type Resolver struct {
	store  Store
	lookup func(string) (string, bool)
}

// NewResolver creates a resolver backed by store. A nil store rejects
// keyring references.
func NewResolver(store Store) *Resolver {
	return &Resolver{store: store, lookup: os.LookupEnv}
}

// Resolve returns the secret a reference points to.
func (r *Resolver) Resolve(ref string) (string, error) {
	switch {
	case strings.HasPrefix(ref, KeyringPrefix):
		service, user, ok := strings.Cut(strings.TrimPrefix(ref, KeyringPrefix), "/")
		if !ok || service == "" || user == "" {
			return "", fmt.Errorf("malformed keyring reference %q, expected keyring:<service>/<user>", ref)
		}
		if r.store == nil {
			return "", fmt.Errorf("no keyring configured for reference %q", ref)
		}
		return r.store.Get(service, user)

	case strings.HasPrefix(ref, EnvPrefix):
		name := strings.TrimPrefix(ref, EnvPrefix)
		value, ok := r.lookup(name)
		if !ok {
			return "", fmt.Errorf("%w: environment variable %s is not set", ErrNotFound, name)
		}
		return value, nil
	}

	return ref, nil
}
