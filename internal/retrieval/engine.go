// Package retrieval turns a natural-language query into the top-k most
// similar indexed chunks.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragd/internal/logging"
	"github.com/fyrsmithlabs/ragd/internal/vectorstore"
)

// ErrEmptyQuery is returned for queries with no content.
var ErrEmptyQuery = errors.New("query must not be empty")

// ErrInvalidConfig is returned when the engine is constructed with bad options.
var ErrInvalidConfig = errors.New("invalid retrieval config")

// DefaultTopK matches the service default for result count.
const DefaultTopK = 5

// visibilityOverfetch is the multiplier applied to the store query limit when
// a visibility filter is set, so that chunks of still-ingesting documents do
// not eat into the caller's k.
const visibilityOverfetch = 4

// Embedder produces a query vector. Satisfied by embeddings.Service.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Config holds retrieval defaults.
type Config struct {
	// TopK is the default result count when a query does not set one.
	TopK int
}

// Validate checks config bounds.
func (c Config) Validate() error {
	if c.TopK <= 0 {
		return fmt.Errorf("%w: top_k must be positive, got %d", ErrInvalidConfig, c.TopK)
	}
	return nil
}

// Options adjust a single retrieval call.
type Options struct {
	// TopK overrides the engine default when positive.
	TopK int
	// DocumentID restricts results to chunks of one document.
	DocumentID string
}

// Engine embeds queries and searches the vector store.
type Engine struct {
	embedder Embedder
	store    vectorstore.Store
	topK     int

	// visible reports whether a document's chunks may be returned. Nil means
	// no filtering. Wired to the catalog so documents the current process
	// knows are mid-ingestion stay invisible to queries. The predicate must
	// report true for documents it has no record of; anything indexed before
	// the daemon last restarted falls in that bucket.
	visible func(documentID string) bool

	logger  *logging.Logger
	metrics *Metrics
}

// NewEngine builds a retrieval engine. visible may be nil.
func NewEngine(embedder Embedder, store vectorstore.Store, cfg Config, visible func(string) bool, logger *logging.Logger) (*Engine, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrInvalidConfig)
	}
	if store == nil {
		return nil, fmt.Errorf("%w: store is required", ErrInvalidConfig)
	}
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Engine{
		embedder: embedder,
		store:    store,
		topK:     cfg.TopK,
		visible:  visible,
		logger:   logger,
		metrics:  NewMetrics(),
	}, nil
}

// Retrieve embeds the query and returns up to k scored chunks, most similar
// first. Ties are broken by ascending chunk index, then document ID, so equal
// scores order the same on every call.
func (e *Engine) Retrieve(ctx context.Context, query string, opts Options) ([]vectorstore.ScoredRecord, error) {
	start := time.Now()

	if query == "" {
		return nil, ErrEmptyQuery
	}
	k := opts.TopK
	if k <= 0 {
		k = e.topK
	}

	vector, err := e.embedder.EmbedQuery(ctx, query)
	if err != nil {
		e.metrics.RecordQuery(ctx, time.Since(start), 0, err)
		return nil, fmt.Errorf("embed query: %w", err)
	}

	limit := k
	if e.visible != nil {
		limit = k * visibilityOverfetch
	}
	var filter *vectorstore.Filter
	if opts.DocumentID != "" {
		filter = &vectorstore.Filter{DocumentID: opts.DocumentID}
	}
	results, err := e.store.Search(ctx, vector, limit, filter)
	if err != nil {
		e.metrics.RecordQuery(ctx, time.Since(start), 0, err)
		return nil, fmt.Errorf("search: %w", err)
	}

	if e.visible != nil {
		visible := results[:0]
		for _, r := range results {
			if e.visible(r.DocumentID) {
				visible = append(visible, r)
			}
		}
		results = visible
	}
	if len(results) > k {
		results = results[:k]
	}

	e.metrics.RecordQuery(ctx, time.Since(start), len(results), nil)
	e.logger.Debug(ctx, "retrieval completed",
		zap.Int("requested", k),
		zap.Int("returned", len(results)),
	)
	return results, nil
}
