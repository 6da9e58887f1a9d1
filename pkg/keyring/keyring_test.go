package keyring

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gokeyring "github.com/zalando/go-keyring"
)

func TestFileKeyringRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "keyring.json")
	fk := NewFileKeyring(path, "master")

	_, err := fk.Get("es", "elastic")
	assert.True(t, errors.Is(err, ErrNotFound))

	require.NoError(t, fk.Set("es", "elastic", "changeme"))
	secret, err := fk.Get("es", "elastic")
	require.NoError(t, err)
	assert.Equal(t, "changeme", secret)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "changeme")

	// a different master password cannot decrypt
	_, err = NewFileKeyring(path, "other").Get("es", "elastic")
	assert.Error(t, err)

	require.NoError(t, fk.Delete("es", "elastic"))
	require.NoError(t, fk.Delete("es", "elastic"))
	_, err = fk.Get("es", "elastic")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestResolver(t *testing.T) {
	gokeyring.MockInit()
	require.NoError(t, SystemKeyring{}.Set("redb-esadapter", "es1", "from-keyring"))

	r := NewResolver(SystemKeyring{})
	r.lookup = func(name string) (string, bool) {
		if name == "ES_PASSWORD" {
			return "from-env", true
		}
		return "", false
	}

	tests := []struct {
		name     string
		ref      string
		expected string
		wantErr  bool
	}{
		{"literal", "plain-secret", "plain-secret", false},
		{"empty literal", "", "", false},
		{"keyring", "keyring:redb-esadapter/es1", "from-keyring", false},
		{"keyring missing entry", "keyring:redb-esadapter/none", "", true},
		{"keyring malformed", "keyring:noslash", "", true},
		{"env", "env:ES_PASSWORD", "from-env", false},
		{"env unset", "env:MISSING", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Resolve(tt.ref)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestResolverWithoutStore(t *testing.T) {
	_, err := NewResolver(nil).Resolve("keyring:svc/user")
	assert.Error(t, err)
}
