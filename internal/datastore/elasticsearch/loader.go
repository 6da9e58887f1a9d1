package elasticsearch

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"runtime"
	"sync"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esutil"

	"github.com/redbco/redb-esadapter/internal/datastore/eswire"
	"github.com/redbco/redb-esadapter/pkg/datastore/adapter"
)

// LoaderConfig tunes the background bulk indexer.
type LoaderConfig struct {
	Workers       int
	FlushBytes    int
	FlushInterval time.Duration
	Refresh       string
}

// DefaultLoaderConfig returns the settings used when a field is zero.
func DefaultLoaderConfig() LoaderConfig {
	return LoaderConfig{
		Workers:       runtime.NumCPU(),
		FlushBytes:    5 * 1024 * 1024,
		FlushInterval: 30 * time.Second,
	}
}

// LoadStats summarizes a finished load.
type LoadStats struct {
	Added   uint64   `json:"added"`
	Indexed uint64   `json:"indexed"`
	Failed  uint64   `json:"failed"`
	Errors  []string `json:"errors,omitempty"`
}

// maxLoadErrors caps how many item failures a Loader keeps.
const maxLoadErrors = 100

// Loader streams documents into one index through esutil.BulkIndexer.
type Loader struct {
	indexer esutil.BulkIndexer
	index   string

	mu     sync.Mutex
	errors []string
}

// NewLoader creates a loader writing to index.
func NewLoader(client *elasticsearch.Client, index string, cfg LoaderConfig) (*Loader, error) {
	def := DefaultLoaderConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.FlushBytes <= 0 {
		cfg.FlushBytes = def.FlushBytes
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = def.FlushInterval
	}

	l := &Loader{index: index}
	indexer, err := esutil.NewBulkIndexer(esutil.BulkIndexerConfig{
		Client:        client,
		Index:         index,
		NumWorkers:    cfg.Workers,
		FlushBytes:    cfg.FlushBytes,
		FlushInterval: cfg.FlushInterval,
		Refresh:       cfg.Refresh,
		OnError: func(ctx context.Context, err error) {
			l.recordError(err.Error())
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bulk indexer: %w", err)
	}
	l.indexer = indexer
	return l, nil
}

func (l *Loader) recordError(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.errors) < maxLoadErrors {
		l.errors = append(l.errors, msg)
	}
}

// Add queues doc for indexing. An IDField in doc becomes the document ID.
func (l *Loader) Add(ctx context.Context, doc adapter.Document) error {
	id, body := eswire.SplitID(doc)
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}

	return l.indexer.Add(ctx, esutil.BulkIndexerItem{
		Action:     string(adapter.BulkIndex),
		DocumentID: id,
		Body:       bytes.NewReader(payload),
		OnFailure: func(ctx context.Context, item esutil.BulkIndexerItem, res esutil.BulkIndexerResponseItem, err error) {
			if err != nil {
				l.recordError(err.Error())
				return
			}
			l.recordError(fmt.Sprintf("%s: %s: %s", item.DocumentID, res.Error.Type, res.Error.Reason))
		},
	})
}

// Close flushes pending documents and returns the totals.
func (l *Loader) Close(ctx context.Context) (LoadStats, error) {
	err := l.indexer.Close(ctx)
	st := l.indexer.Stats()

	l.mu.Lock()
	defer l.mu.Unlock()
	stats := LoadStats{
		Added:   st.NumAdded,
		Indexed: st.NumIndexed + st.NumCreated + st.NumUpdated,
		Failed:  st.NumFailed,
		Errors:  append([]string(nil), l.errors...),
	}
	if err != nil {
		return stats, fmt.Errorf("failed to flush bulk indexer: %w", err)
	}
	return stats, nil
}

// Load reads newline-delimited JSON documents from r into index. Blank
// lines are skipped; a malformed line stops the load.
func Load(ctx context.Context, client *elasticsearch.Client, index string, r io.Reader, cfg LoaderConfig) (LoadStats, error) {
	l, err := NewLoader(client, index, cfg)
	if err != nil {
		return LoadStats{}, err
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	var readErr error
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		var doc adapter.Document
		if err := json.Unmarshal(raw, &doc); err != nil {
			readErr = fmt.Errorf("line %d: %w", line, err)
			break
		}
		if err := l.Add(ctx, doc); err != nil {
			readErr = fmt.Errorf("line %d: %w", line, err)
			break
		}
	}
	if readErr == nil {
		readErr = scanner.Err()
	}

	stats, err := l.Close(ctx)
	if readErr != nil {
		return stats, readErr
	}
	return stats, err
}
