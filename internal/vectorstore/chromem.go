package vectorstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	chromem "github.com/philippgille/chromem-go"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragd/internal/logging"
)

// ChromemConfig holds configuration for the embedded chromem-go store.
type ChromemConfig struct {
	// Path is the directory for persistent storage. Empty means in-memory
	// only, which is what tests use.
	Path string

	// Compress enables gzip compression for stored data.
	Compress bool

	// Collection is the collection name.
	// Default: "documents"
	Collection string

	// Dimension is the vector dimensionality the collection must carry.
	Dimension int
}

// ApplyDefaults sets default values for unset fields.
func (c *ChromemConfig) ApplyDefaults() {
	if c.Collection == "" {
		c.Collection = "documents"
	}
}

// Validate validates the configuration.
func (c *ChromemConfig) Validate() error {
	if c.Dimension <= 0 {
		return fmt.Errorf("%w: dimension must be positive", ErrInvalidConfig)
	}
	return nil
}

// ChromemStore implements Store using chromem-go, an embeddable vector
// database in pure Go. It needs no external service, which makes it the
// local-mode and test backend. Vectors arrive precomputed, so the chromem
// embedding function is never invoked.
type ChromemStore struct {
	db     *chromem.DB
	config ChromemConfig
	logger *logging.Logger
}

// NewChromemStore creates a ChromemStore, persistent when a path is set.
func NewChromemStore(config ChromemConfig, logger *logging.Logger) (*ChromemStore, error) {
	if logger == nil {
		logger = logging.NewNop()
	}

	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var db *chromem.DB
	if config.Path == "" {
		db = chromem.NewDB()
	} else {
		path, err := expandPath(config.Path)
		if err != nil {
			return nil, fmt.Errorf("expanding path: %w", err)
		}
		if err := os.MkdirAll(path, 0o755); err != nil {
			return nil, fmt.Errorf("creating directory %s: %w", path, err)
		}
		db, err = chromem.NewPersistentDB(path, config.Compress)
		if err != nil {
			return nil, fmt.Errorf("creating chromem DB: %w", err)
		}
	}

	store := &ChromemStore{
		db:     db,
		config: config,
		logger: logger.Named("chromem"),
	}

	logger.Info(context.Background(), "chromem store initialized",
		zap.String("path", config.Path),
		zap.String("collection", config.Collection),
		zap.Int("dimension", config.Dimension),
	)

	return store, nil
}

// expandPath expands ~ to home directory.
func expandPath(path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

// noEmbedding is installed as the chromem embedding function. All vectors
// are computed upstream by the embedding service; reaching this is a bug.
func noEmbedding(ctx context.Context, text string) ([]float32, error) {
	return nil, fmt.Errorf("vectors are precomputed; no embedding function available")
}

// EnsureCollection creates the collection if absent.
func (s *ChromemStore) EnsureCollection(ctx context.Context) error {
	_, err := s.db.GetOrCreateCollection(s.config.Collection, nil, noEmbedding)
	if err != nil {
		return fmt.Errorf("creating collection %s: %w", s.config.Collection, err)
	}
	return nil
}

func (s *ChromemStore) collection() (*chromem.Collection, error) {
	c := s.db.GetCollection(s.config.Collection, noEmbedding)
	if c == nil {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, s.config.Collection)
	}
	return c, nil
}

// Upsert inserts or replaces records by point ID.
func (s *ChromemStore) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return ErrEmptyRecords
	}
	if err := checkDimensions(s.config.Collection, records, s.config.Dimension); err != nil {
		return err
	}

	if err := s.EnsureCollection(ctx); err != nil {
		return err
	}
	collection, err := s.collection()
	if err != nil {
		return err
	}

	docs := make([]chromem.Document, len(records))
	for i, r := range records {
		docs[i] = chromem.Document{
			ID:        r.PointID,
			Content:   r.Text,
			Embedding: r.Vector,
			Metadata: map[string]string{
				payloadDocumentID: r.DocumentID,
				payloadChunkIndex: strconv.Itoa(r.ChunkIndex),
				payloadFilename:   r.Filename,
				payloadUploadedAt: r.UploadedAt.UTC().Format(time.RFC3339),
			},
		}
	}

	// Embeddings are precomputed, so a concurrency of 1 avoids pointless
	// goroutine fan-out.
	if err := collection.AddDocuments(ctx, docs, 1); err != nil {
		ids := make([]string, len(records))
		for i, r := range records {
			ids[i] = r.PointID
		}
		return &IndexWriteError{FailedIDs: ids, Err: err}
	}

	s.logger.Debug(ctx, "upserted records",
		zap.String("collection", s.config.Collection),
		zap.Int("count", len(records)),
	)
	return nil
}

// Search performs cosine similarity search, returning at most k records in
// the deterministic order. Fewer than k stored records returns all of them.
func (s *ChromemStore) Search(ctx context.Context, vector []float32, k int, filter *Filter) ([]ScoredRecord, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}
	if len(vector) != s.config.Dimension {
		return nil, &SchemaMismatchError{
			Collection: s.config.Collection,
			Got:        len(vector),
			Want:       s.config.Dimension,
		}
	}

	collection := s.db.GetCollection(s.config.Collection, noEmbedding)
	if collection == nil {
		// Lazy creation means an untouched store is simply empty.
		return nil, nil
	}

	var where map[string]string
	if filter != nil && filter.DocumentID != "" {
		where = map[string]string{payloadDocumentID: filter.DocumentID}
	}

	// chromem rejects nResults larger than the stored document count.
	n := k
	if count := collection.Count(); count < n {
		n = count
	}
	if n == 0 {
		return nil, nil
	}

	hits, err := collection.QueryEmbedding(ctx, vector, n, where, nil)
	if err != nil {
		return nil, fmt.Errorf("querying collection: %w", err)
	}

	results := make([]ScoredRecord, 0, len(hits))
	for _, hit := range hits {
		r := Record{
			PointID:    hit.ID,
			Text:       hit.Content,
			DocumentID: hit.Metadata[payloadDocumentID],
			Filename:   hit.Metadata[payloadFilename],
		}
		if idx, err := strconv.Atoi(hit.Metadata[payloadChunkIndex]); err == nil {
			r.ChunkIndex = idx
		}
		if ts, err := time.Parse(time.RFC3339, hit.Metadata[payloadUploadedAt]); err == nil {
			r.UploadedAt = ts
		}
		results = append(results, ScoredRecord{Record: r, Score: hit.Similarity})
	}
	sortScored(results)
	return results, nil
}

// DeleteDocument removes all records of a document via metadata filter.
func (s *ChromemStore) DeleteDocument(ctx context.Context, documentID string) error {
	if documentID == "" {
		return fmt.Errorf("document ID cannot be empty")
	}

	collection := s.db.GetCollection(s.config.Collection, noEmbedding)
	if collection == nil {
		return nil
	}
	if err := collection.Delete(ctx, map[string]string{payloadDocumentID: documentID}, nil); err != nil {
		return fmt.Errorf("deleting document %s: %w", documentID, err)
	}
	return nil
}

// Count returns the number of records in the collection.
func (s *ChromemStore) Count(ctx context.Context) (int, error) {
	collection := s.db.GetCollection(s.config.Collection, noEmbedding)
	if collection == nil {
		return 0, nil
	}
	return collection.Count(), nil
}

// Close is a no-op; chromem persists writes as they happen.
func (s *ChromemStore) Close() error {
	return nil
}
