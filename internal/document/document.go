// Package document defines the document data model and the in-process catalog
// that tracks ingestion state.
package document

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the ingestion state of a document.
//
// A document moves received -> splitting -> embedding -> indexing -> completed,
// with failed reachable from any non-terminal state. Once completed the
// document is read-only.
type Status string

const (
	StatusReceived  Status = "received"
	StatusSplitting Status = "splitting"
	StatusEmbedding Status = "embedding"
	StatusIndexing  Status = "indexing"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether the status is an end state.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Document is the unit of ingestion.
type Document struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	UploadedAt time.Time `json:"uploaded_at"`
	Status     Status    `json:"status"`

	// FailedStep and FailureReason are set only when Status is failed.
	FailedStep    string `json:"failed_step,omitempty"`
	FailureReason string `json:"failure_reason,omitempty"`

	// ChunkCount is set once the document completes.
	ChunkCount int `json:"chunk_count,omitempty"`

	// WorkflowID identifies the ingestion workflow run for this document.
	WorkflowID string `json:"workflow_id,omitempty"`
}

// Chunk is an ordered slice of a document's text. Immutable once created.
type Chunk struct {
	DocumentID string `json:"document_id"`
	Index      int    `json:"index"`
	Text       string `json:"text"`
	TokenCount int    `json:"token_count"`
}

// PointID returns the deterministic vector store point ID for this chunk:
// a name-based UUID over "<documentID>:<index>". Re-ingesting the same
// document therefore replaces records instead of duplicating them.
func (c Chunk) PointID() string {
	name := fmt.Sprintf("%s:%d", c.DocumentID, c.Index)
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)).String()
}

// ValidationError describes a single invalid field at a system boundary.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Validate checks boundary invariants on an incoming document.
func (d *Document) Validate() error {
	if strings.TrimSpace(d.ID) == "" {
		return &ValidationError{Field: "id", Reason: "must not be empty"}
	}
	if strings.TrimSpace(d.Filename) == "" {
		return &ValidationError{Field: "filename", Reason: "must not be empty"}
	}
	return nil
}
