package dbcapabilities

import (
	"testing"
)

func TestNodeAddress(t *testing.T) {
	tests := []struct {
		name        string
		entry       string
		defaultPort int
		useTLS      bool
		expected    string
		expectError bool
	}{
		{
			name:        "host and port",
			entry:       "127.0.0.1:9200",
			defaultPort: 9200,
			expected:    "http://127.0.0.1:9200",
		},
		{
			name:        "bare host gets default port",
			entry:       "es-node-1",
			defaultPort: 9200,
			expected:    "http://es-node-1:9200",
		},
		{
			name:        "tls scheme for bare host",
			entry:       "search.internal:9243",
			defaultPort: 9200,
			useTLS:      true,
			expected:    "https://search.internal:9243",
		},
		{
			name:        "explicit url kept",
			entry:       "https://cluster.example.com:443/",
			defaultPort: 9200,
			expected:    "https://cluster.example.com:443",
		},
		{
			name:        "explicit url without port",
			entry:       "http://localhost",
			defaultPort: 9200,
			expected:    "http://localhost:9200",
		},
		{
			name:        "empty entry",
			entry:       "  ",
			expectError: true,
		},
		{
			name:        "unsupported scheme",
			entry:       "ftp://host:21",
			expectError: true,
		},
		{
			name:        "port out of range",
			entry:       "host:70000",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NodeAddress(tt.entry, tt.defaultPort, tt.useTLS)
			if tt.expectError {
				if err == nil {
					t.Errorf("expected error for %q, got %q", tt.entry, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestNodeAddresses(t *testing.T) {
	got, err := NodeAddresses([]string{"a:9200", "b:9201"}, 9200, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0] != "http://a:9200" || got[1] != "http://b:9201" {
		t.Errorf("unexpected addresses: %v", got)
	}

	if _, err := NodeAddresses([]string{"a:9200", ""}, 9200, false); err == nil {
		t.Error("expected error when one entry is empty")
	}
}
