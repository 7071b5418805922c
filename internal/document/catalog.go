package document

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Sentinel errors for catalog operations.
var (
	// ErrNotFound is returned when a document does not exist in the catalog.
	ErrNotFound = errors.New("document not found")

	// ErrAlreadyExists is returned when registering a duplicate document ID.
	ErrAlreadyExists = errors.New("document already exists")

	// ErrReadOnly is returned when mutating a document in a terminal state.
	ErrReadOnly = errors.New("document is in a terminal state")
)

// Catalog tracks document ingestion state in process memory.
//
// The ingestion workflow owns a document for its processing lifetime; the
// catalog is the shared view the status endpoint reads. All methods are safe
// for concurrent use.
type Catalog struct {
	mu   sync.RWMutex
	docs map[string]*Document
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		docs: make(map[string]*Document),
	}
}

// Register adds a new document in the received state.
func (c *Catalog) Register(id, filename string) (*Document, error) {
	doc := &Document{
		ID:         id,
		Filename:   filename,
		UploadedAt: time.Now().UTC(),
		Status:     StatusReceived,
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.docs[id]; ok {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyExists, id)
	}
	c.docs[id] = doc
	return copyDoc(doc), nil
}

// Get returns a snapshot of a document.
func (c *Catalog) Get(id string) (*Document, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	doc, ok := c.docs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return copyDoc(doc), nil
}

// List returns snapshots of all documents ordered by upload time, then ID.
func (c *Catalog) List() []*Document {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]*Document, 0, len(c.docs))
	for _, doc := range c.docs {
		out = append(out, copyDoc(doc))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UploadedAt.Equal(out[j].UploadedAt) {
			return out[i].UploadedAt.Before(out[j].UploadedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// SetStatus transitions a document to a new non-terminal working state.
func (c *Catalog) SetStatus(id string, status Status) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	doc, ok := c.docs[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if doc.Status.Terminal() {
		return fmt.Errorf("%w: %s is %s", ErrReadOnly, id, doc.Status)
	}
	doc.Status = status
	return nil
}

// SetWorkflowID records the workflow run handling this document.
func (c *Catalog) SetWorkflowID(id, workflowID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	doc, ok := c.docs[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	doc.WorkflowID = workflowID
	return nil
}

// MarkFailed transitions a document to the terminal failed state, preserving
// the failing step and error detail.
func (c *Catalog) MarkFailed(id, step, reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	doc, ok := c.docs[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if doc.Status == StatusCompleted {
		return fmt.Errorf("%w: %s is completed", ErrReadOnly, id)
	}
	doc.Status = StatusFailed
	doc.FailedStep = step
	doc.FailureReason = reason
	return nil
}

// Complete transitions a document to completed and records its chunk count.
func (c *Catalog) Complete(id string, chunkCount int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	doc, ok := c.docs[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if doc.Status == StatusFailed {
		return fmt.Errorf("%w: %s is failed", ErrReadOnly, id)
	}
	doc.Status = StatusCompleted
	doc.ChunkCount = chunkCount
	doc.FailedStep = ""
	doc.FailureReason = ""
	return nil
}

// Visible reports whether a document's indexed chunks may be served to
// queries. The catalog is process-local, so records indexed by a previous
// run of the daemon have no entry here; unknown documents are therefore
// visible. Known documents are visible only once completed, which keeps
// mid-ingestion and partially indexed failed documents out of answers.
func (c *Catalog) Visible(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	doc, ok := c.docs[id]
	if !ok {
		return true
	}
	return doc.Status == StatusCompleted
}

// Delete removes a document from the catalog.
func (c *Catalog) Delete(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.docs[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(c.docs, id)
	return nil
}

func copyDoc(d *Document) *Document {
	cp := *d
	return &cp
}
