package workflows

import (
	"time"

	"github.com/fyrsmithlabs/ragd/internal/document"
)

// IngestInput starts an ingestion workflow for one document.
type IngestInput struct {
	DocumentID string
	Filename   string
	Text       string
	UploadedAt time.Time

	// BatchSize is the number of chunks embedded per activity. Each batch's
	// success is independently durable: a document-level retry resumes after
	// the last completed batch instead of re-embedding it.
	BatchSize int
}

// IngestResult summarizes a completed ingestion run.
type IngestResult struct {
	DocumentID string
	ChunkCount int
	Indexed    int
}

// SplitInput is the splitting activity input.
type SplitInput struct {
	DocumentID string
	Text       string
}

// SplitResult carries the ordered chunks of a document.
type SplitResult struct {
	Chunks []document.Chunk
}

// EmbedBatchInput is the embedding activity input for one chunk batch.
type EmbedBatchInput struct {
	DocumentID string
	BatchIndex int
	Texts      []string
}

// EmbedBatchResult carries one vector per input text, order preserved.
type EmbedBatchResult struct {
	Vectors [][]float32
}

// IndexInput is the indexing activity input.
type IndexInput struct {
	DocumentID string
	Filename   string
	UploadedAt time.Time
	Chunks     []document.Chunk
	Vectors    [][]float32
}

// IndexResult reports how many records were confirmed indexed.
type IndexResult struct {
	Indexed int
}

// StatusInput updates a document's catalog status.
type StatusInput struct {
	DocumentID string
	Status     document.Status
}

// FailInput marks a document terminally failed.
type FailInput struct {
	DocumentID string
	Step       string
	Reason     string
}

// CompleteInput marks a document completed.
type CompleteInput struct {
	DocumentID string
	ChunkCount int
}
