// Package vectorstore persists and queries chunk vectors with their metadata.
//
// The Store interface is transport-agnostic. Two implementations are
// provided: QdrantStore (external Qdrant over gRPC, the production backend)
// and ChromemStore (embedded chromem-go for local mode and tests). Both
// enforce a single collection schema and the same result-ordering contract.
package vectorstore

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"context"
)

// Sentinel errors for vector store operations.
var (
	// ErrCollectionNotFound is returned when the collection does not exist.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrEmptyRecords indicates empty or nil records.
	ErrEmptyRecords = errors.New("empty or nil records")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrConnectionFailed indicates the store backend is unreachable.
	ErrConnectionFailed = errors.New("failed to connect to vector store")
)

// SchemaMismatchError indicates dimension or model drift between the
// configured embedding schema and the stored collection. Fatal: requires
// operator intervention and is never auto-resolved, so vectors are never
// silently truncated.
type SchemaMismatchError struct {
	Collection string
	Got        int
	Want       int
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("schema mismatch for collection %q: dimension %d, configured %d",
		e.Collection, e.Got, e.Want)
}

// IndexWriteError indicates a partial upsert failure. FailedIDs identifies
// the record subset to retry; confirmed records need not be re-sent.
type IndexWriteError struct {
	FailedIDs []string
	Err       error
}

func (e *IndexWriteError) Error() string {
	return fmt.Sprintf("index write failed for %d records: %v", len(e.FailedIDs), e.Err)
}

func (e *IndexWriteError) Unwrap() error {
	return e.Err
}

// Record is the durable unit stored in the vector index.
type Record struct {
	// PointID is the deterministic per-chunk identifier; upsert on it
	// replaces, never duplicates.
	PointID    string
	Vector     []float32
	DocumentID string
	ChunkIndex int
	Text       string
	Filename   string
	UploadedAt time.Time
}

// ScoredRecord is a search hit with its cosine similarity score.
type ScoredRecord struct {
	Record
	Score float32
}

// Filter restricts a search to matching records.
type Filter struct {
	// DocumentID, when non-empty, limits results to one document.
	DocumentID string
}

// Payload field names of the collection schema.
const (
	payloadDocumentID = "document_id"
	payloadChunkIndex = "chunk_index"
	payloadText       = "text"
	payloadFilename   = "filename"
	payloadUploadedAt = "uploaded_at"
)

// Store is the interface for vector storage operations.
//
// Search returns at most k results ordered by descending cosine similarity;
// ties break by ascending (chunk index, document id) so results are
// reproducible. Upsert is idempotent on point ID. DeleteDocument removes
// every record of a document, leaving no orphans.
type Store interface {
	// EnsureCollection lazily creates the collection, verifying that any
	// existing collection matches the configured vector dimension. A
	// mismatch returns a SchemaMismatchError.
	EnsureCollection(ctx context.Context) error

	// Upsert writes records; re-upserting a point ID replaces the record.
	Upsert(ctx context.Context, records []Record) error

	// Search returns up to k records most similar to the query vector.
	Search(ctx context.Context, vector []float32, k int, filter *Filter) ([]ScoredRecord, error)

	// DeleteDocument removes all records belonging to a document.
	DeleteDocument(ctx context.Context, documentID string) error

	// Count returns the number of records in the collection.
	Count(ctx context.Context) (int, error)

	// Close releases backend resources.
	Close() error
}

// sortScored applies the deterministic result ordering: descending score,
// then ascending chunk index, then ascending document ID.
func sortScored(results []ScoredRecord) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if results[i].ChunkIndex != results[j].ChunkIndex {
			return results[i].ChunkIndex < results[j].ChunkIndex
		}
		return results[i].DocumentID < results[j].DocumentID
	})
}

// checkDimensions validates record vectors against the collection dimension.
func checkDimensions(collection string, records []Record, want int) error {
	for _, r := range records {
		if len(r.Vector) != want {
			return &SchemaMismatchError{Collection: collection, Got: len(r.Vector), Want: want}
		}
	}
	return nil
}
