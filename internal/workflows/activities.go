package workflows

import (
	"context"
	"errors"
	"fmt"

	"go.temporal.io/sdk/temporal"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragd/internal/document"
	"github.com/fyrsmithlabs/ragd/internal/embeddings"
	"github.com/fyrsmithlabs/ragd/internal/logging"
	"github.com/fyrsmithlabs/ragd/internal/splitter"
	"github.com/fyrsmithlabs/ragd/internal/vectorstore"
)

// indexBatchSize bounds the number of points sent per upsert call.
const indexBatchSize = 64

// Activities holds the dependencies the ingestion pipeline runs against.
// Register one instance per worker.
type Activities struct {
	splitter *splitter.Splitter
	embedder *embeddings.Service
	store    vectorstore.Store
	catalog  *document.Catalog
	logger   *logging.Logger
}

// NewActivities wires the pipeline dependencies for activity registration.
func NewActivities(sp *splitter.Splitter, emb *embeddings.Service, store vectorstore.Store, catalog *document.Catalog, logger *logging.Logger) *Activities {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Activities{
		splitter: sp,
		embedder: emb,
		store:    store,
		catalog:  catalog,
		logger:   logger,
	}
}

// SplitDocument chunks the document text. Documents with no extractable text
// fail permanently; retrying cannot produce chunks from an empty input.
func (a *Activities) SplitDocument(ctx context.Context, input SplitInput) (*SplitResult, error) {
	ctx = logging.ContextWithDocumentID(ctx, input.DocumentID)

	chunks, err := a.splitter.Split(input.DocumentID, input.Text)
	if err != nil {
		var extractErr *splitter.ExtractionError
		if errors.As(err, &extractErr) {
			return nil, temporal.NewNonRetryableApplicationError(extractErr.Error(), errTypeExtraction, err)
		}
		return nil, fmt.Errorf("split document %s: %w", input.DocumentID, err)
	}

	a.logger.Info(ctx, "document split",
		zap.Int("chunks", len(chunks)),
	)
	return &SplitResult{Chunks: chunks}, nil
}

// EmbedChunkBatch embeds one batch of chunk texts. Dimension mismatches are
// permanent configuration errors; transport failures surface as retryable
// EmbeddingError after the service has exhausted its own retries.
func (a *Activities) EmbedChunkBatch(ctx context.Context, input EmbedBatchInput) (*EmbedBatchResult, error) {
	ctx = logging.ContextWithDocumentID(ctx, input.DocumentID)

	vectors, err := a.embedder.EmbedBatch(ctx, input.Texts)
	if err != nil {
		if errors.Is(err, embeddings.ErrDimensionMismatch) {
			return nil, temporal.NewNonRetryableApplicationError(err.Error(), errTypeSchemaMismatch, err)
		}
		var embedErr *embeddings.EmbeddingError
		if errors.As(err, &embedErr) {
			return nil, temporal.NewApplicationError(embedErr.Error(), errTypeEmbedding, err)
		}
		return nil, fmt.Errorf("embed batch %d of document %s: %w", input.BatchIndex, input.DocumentID, err)
	}

	a.logger.Debug(ctx, "chunk batch embedded",
		zap.Int("batch", input.BatchIndex),
		zap.Int("size", len(input.Texts)),
	)
	return &EmbedBatchResult{Vectors: vectors}, nil
}

// IndexRecords writes chunk records to the vector store. Writes that fail for
// a subset of records are retried for that subset only; point IDs are
// deterministic, so re-upserting confirmed records on a later attempt is safe.
func (a *Activities) IndexRecords(ctx context.Context, input IndexInput) (*IndexResult, error) {
	ctx = logging.ContextWithDocumentID(ctx, input.DocumentID)

	if len(input.Chunks) != len(input.Vectors) {
		return nil, temporal.NewNonRetryableApplicationError(
			fmt.Sprintf("chunk/vector count mismatch: %d chunks, %d vectors", len(input.Chunks), len(input.Vectors)),
			errTypeSchemaMismatch, nil)
	}

	records := make([]vectorstore.Record, len(input.Chunks))
	for i, chunk := range input.Chunks {
		records[i] = vectorstore.Record{
			PointID:    chunk.PointID(),
			Vector:     input.Vectors[i],
			DocumentID: input.DocumentID,
			ChunkIndex: chunk.Index,
			Text:       chunk.Text,
			Filename:   input.Filename,
			UploadedAt: input.UploadedAt,
		}
	}

	indexed := 0
	var failed []vectorstore.Record
	var lastErr error
	for start := 0; start < len(records); start += indexBatchSize {
		end := min(start+indexBatchSize, len(records))
		batch := records[start:end]
		if err := a.store.Upsert(ctx, batch); err != nil {
			var mismatch *vectorstore.SchemaMismatchError
			if errors.As(err, &mismatch) {
				return nil, temporal.NewNonRetryableApplicationError(mismatch.Error(), errTypeSchemaMismatch, err)
			}
			failed = append(failed, batch...)
			lastErr = err
			continue
		}
		indexed += len(batch)
	}

	// One in-activity retry of only the failed subset before handing the
	// decision back to the workflow retry policy.
	if len(failed) > 0 {
		if err := a.store.Upsert(ctx, failed); err != nil {
			ids := make([]string, len(failed))
			for i, r := range failed {
				ids[i] = r.PointID
			}
			werr := &vectorstore.IndexWriteError{FailedIDs: ids, Err: lastErr}
			return nil, temporal.NewApplicationError(werr.Error(), errTypeIndexWrite, err)
		}
		indexed += len(failed)
	}

	a.logger.Info(ctx, "document indexed",
		zap.Int("records", indexed),
	)
	return &IndexResult{Indexed: indexed}, nil
}

// SetDocumentStatus advances the document through the pipeline states.
func (a *Activities) SetDocumentStatus(ctx context.Context, input StatusInput) error {
	if err := a.catalog.SetStatus(input.DocumentID, input.Status); err != nil {
		return temporal.NewNonRetryableApplicationError(
			fmt.Sprintf("set status %s on document %s: %v", input.Status, input.DocumentID, err),
			errTypeCatalog, err)
	}
	return nil
}

// MarkDocumentFailed records a terminal failure with the step it occurred in.
func (a *Activities) MarkDocumentFailed(ctx context.Context, input FailInput) error {
	if err := a.catalog.MarkFailed(input.DocumentID, input.Step, input.Reason); err != nil {
		return temporal.NewNonRetryableApplicationError(
			fmt.Sprintf("mark document %s failed: %v", input.DocumentID, err),
			errTypeCatalog, err)
	}
	a.logger.Warn(logging.ContextWithDocumentID(ctx, input.DocumentID), "document failed",
		zap.String("step", input.Step),
		zap.String("reason", input.Reason),
	)
	return nil
}

// CompleteDocument marks the document completed with its final chunk count.
func (a *Activities) CompleteDocument(ctx context.Context, input CompleteInput) error {
	if err := a.catalog.Complete(input.DocumentID, input.ChunkCount); err != nil {
		return temporal.NewNonRetryableApplicationError(
			fmt.Sprintf("complete document %s: %v", input.DocumentID, err),
			errTypeCatalog, err)
	}
	return nil
}
