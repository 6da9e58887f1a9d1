package dbcapabilities

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// NodeAddress converts a configured host entry into a node URL.
//
// Accepted forms:
//   - "host:port"            -> http://host:port
//   - "host"                 -> http://host:<defaultPort>
//   - "http(s)://host[:port]" kept, with the default port added when missing
func NodeAddress(entry string, defaultPort int, useTLS bool) (string, error) {
	entry = strings.TrimSpace(entry)
	if entry == "" {
		return "", fmt.Errorf("host entry cannot be empty")
	}

	if !strings.Contains(entry, "://") {
		scheme := "http"
		if useTLS {
			scheme = "https"
		}
		entry = scheme + "://" + entry
	}

	u, err := url.Parse(entry)
	if err != nil {
		return "", fmt.Errorf("invalid host entry %q: %v", entry, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("invalid host entry %q: unsupported scheme %s", entry, u.Scheme)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("invalid host entry %q: missing host", entry)
	}

	if u.Port() == "" && defaultPort > 0 {
		u.Host = net.JoinHostPort(u.Hostname(), strconv.Itoa(defaultPort))
	} else if p := u.Port(); p != "" {
		if n, err := strconv.Atoi(p); err != nil || n <= 0 || n > 65535 {
			return "", fmt.Errorf("invalid host entry %q: bad port %s", entry, p)
		}
	}

	return strings.TrimSuffix(u.String(), "/"), nil
}

// NodeAddresses converts every entry with NodeAddress.
func NodeAddresses(entries []string, defaultPort int, useTLS bool) ([]string, error) {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		addr, err := NodeAddress(e, defaultPort, useTLS)
		if err != nil {
			return nil, err
		}
		out = append(out, addr)
	}
	return out, nil
}
