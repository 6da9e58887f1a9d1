package eswire

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/redbco/redb-esadapter/pkg/datastore/adapter"
	"github.com/redbco/redb-esadapter/pkg/logger"
)

// TLSConfig builds the client TLS configuration, or nil when TLS is off
// and no CA certificate is configured.
func TLSConfig(cfg adapter.DatastoreConfig) (*tls.Config, error) {
	if !cfg.TLS && cfg.CACert == "" && !cfg.TLSSkipVerify {
		return nil, nil
	}

	tlsConfig := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: cfg.TLSSkipVerify,
	}

	if cfg.CACert != "" {
		caCert, err := os.ReadFile(cfg.CACert)
		if err != nil {
			return nil, fmt.Errorf("error reading CA certificate: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("no certificates found in %s", cfg.CACert)
		}
		tlsConfig.RootCAs = pool
	}

	return tlsConfig, nil
}

// HTTPTransport maps the session options of cfg onto an http.Transport.
func HTTPTransport(cfg adapter.DatastoreConfig) (*http.Transport, error) {
	tlsConfig, err := TLSConfig(cfg)
	if err != nil {
		return nil, err
	}

	t := http.DefaultTransport.(*http.Transport).Clone()
	t.TLSClientConfig = tlsConfig
	t.DisableKeepAlives = !adapter.BoolValue(cfg.KeepAlive, false)
	if cfg.PoolSize > 0 {
		t.MaxIdleConnsPerHost = cfg.PoolSize
		t.MaxConnsPerHost = cfg.PoolSize
	}
	return t, nil
}

// LoggingTransport logs every engine round trip at debug level.
type LoggingTransport struct {
	Transport http.RoundTripper
	Logger    *logger.Logger
	Identity  string
}

// NewLoggingTransport wraps next. A nil logger makes it a pass-through.
func NewLoggingTransport(next http.RoundTripper, l *logger.Logger, identity string) http.RoundTripper {
	if l == nil {
		return next
	}
	return &LoggingTransport{Transport: next, Logger: l, Identity: identity}
}

func (t *LoggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.Transport.RoundTrip(req)
	elapsed := time.Since(start)

	fields := t.Logger.WithFields(map[string]string{
		"datastore": t.Identity,
		"method":    req.Method,
		"path":      req.URL.Path,
	})
	if err != nil {
		fields.Warn("engine request failed after %v: %v", elapsed, err)
		return nil, err
	}
	fields.Debug("engine responded %s in %v", resp.Status, elapsed)
	return resp, nil
}

// FaultTransport runs OnFault in the background when a round trip fails
// at the transport level. At most one OnFault runs at a time.
type FaultTransport struct {
	Transport http.RoundTripper
	OnFault   func()

	running atomic.Bool
}

func (t *FaultTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.Transport.RoundTrip(req)
	if err != nil && t.OnFault != nil && t.running.CompareAndSwap(false, true) {
		go func() {
			defer t.running.Store(false)
			t.OnFault()
		}()
	}
	return resp, err
}

// HeaderTransport sets fixed headers on every request it forwards.
type HeaderTransport struct {
	Transport http.RoundTripper
	Header    http.Header
}

func (t *HeaderTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for k, v := range t.Header {
		req.Header[k] = v
	}
	return t.Transport.RoundTrip(req)
}
