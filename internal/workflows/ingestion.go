// Package workflows runs the durable document ingestion pipeline on
// Temporal. A document is split once, then embedded and indexed one chunk
// batch at a time; each completed activity is checkpointed by the workflow
// history, so a worker restart resumes after the last completed step instead
// of re-running the whole pipeline.
package workflows

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/fyrsmithlabs/ragd/internal/document"
)

// defaultEmbedBatch is the chunk batch size used when the input leaves it
// unset. Small enough that a batch of 3072-dimension vectors stays within a
// single activity payload.
const defaultEmbedBatch = 16

// payloadBudgetBytes bounds the encoded size of one batch of vectors carried
// through workflow history. Temporal rejects payloads above 2MB; half of
// that leaves room for chunk text and encoding overhead.
const payloadBudgetBytes = 1 << 20

// floatTextBytes approximates the JSON-encoded size of one float32 vector
// component, separator included.
const floatTextBytes = 12

// EmbedBatchFor clamps an embedding batch size so that one batch of vectors
// of the given dimension fits in an activity payload. A non-positive
// configured size falls back to the default.
func EmbedBatchFor(configured, dimension int) int {
	batch := configured
	if batch <= 0 {
		batch = defaultEmbedBatch
	}
	if dimension <= 0 {
		return batch
	}
	if limit := payloadBudgetBytes / (dimension * floatTextBytes); limit < batch {
		batch = limit
	}
	if batch < 1 {
		batch = 1
	}
	return batch
}

// WorkflowIDFor returns the deterministic workflow ID for a document so that
// a second ingestion request for the same document joins the running workflow
// instead of starting a duplicate pipeline.
func WorkflowIDFor(documentID string) string {
	return "ingest-" + documentID
}

// IngestDocumentWorkflow drives one document through the ingestion pipeline.
// Failures surface in the catalog with the step they occurred in; the
// document is marked failed even when the workflow itself is canceled
// mid-pipeline.
func IngestDocumentWorkflow(ctx workflow.Context, input IngestInput) (*IngestResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("ingestion started", "document_id", input.DocumentID, "filename", input.Filename)

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    time.Minute,
			MaximumAttempts:    4,
			NonRetryableErrorTypes: []string{
				errTypeExtraction,
				errTypeSchemaMismatch,
				errTypeCatalog,
			},
		},
	})

	var a *Activities

	// Splitting.
	if err := workflow.ExecuteActivity(ctx, a.SetDocumentStatus, StatusInput{
		DocumentID: input.DocumentID,
		Status:     document.StatusSplitting,
	}).Get(ctx, nil); err != nil {
		return nil, failDocument(ctx, input.DocumentID, StepSplitting, err)
	}

	var split SplitResult
	if err := workflow.ExecuteActivity(ctx, a.SplitDocument, SplitInput{
		DocumentID: input.DocumentID,
		Text:       input.Text,
	}).Get(ctx, &split); err != nil {
		return nil, failDocument(ctx, input.DocumentID, StepSplitting, err)
	}

	// Embedding and indexing, one durable activity pair per chunk batch.
	// Each batch of vectors goes straight to the store instead of
	// accumulating in workflow history, so document size never pushes an
	// activity payload past the server limit.
	if err := workflow.ExecuteActivity(ctx, a.SetDocumentStatus, StatusInput{
		DocumentID: input.DocumentID,
		Status:     document.StatusEmbedding,
	}).Get(ctx, nil); err != nil {
		return nil, failDocument(ctx, input.DocumentID, StepEmbedding, err)
	}

	batchSize := input.BatchSize
	if batchSize <= 0 {
		batchSize = defaultEmbedBatch
	}

	indexed := 0
	for start, batchIndex := 0, 0; start < len(split.Chunks); start, batchIndex = start+batchSize, batchIndex+1 {
		end := min(start+batchSize, len(split.Chunks))
		chunks := split.Chunks[start:end]
		texts := make([]string, 0, len(chunks))
		for _, chunk := range chunks {
			texts = append(texts, chunk.Text)
		}

		var batch EmbedBatchResult
		if err := workflow.ExecuteActivity(ctx, a.EmbedChunkBatch, EmbedBatchInput{
			DocumentID: input.DocumentID,
			BatchIndex: batchIndex,
			Texts:      texts,
		}).Get(ctx, &batch); err != nil {
			return nil, failDocument(ctx, input.DocumentID, StepEmbedding, err)
		}

		// The document reports indexing once the first records head to
		// the store; later batches still embed under that status.
		if batchIndex == 0 {
			if err := workflow.ExecuteActivity(ctx, a.SetDocumentStatus, StatusInput{
				DocumentID: input.DocumentID,
				Status:     document.StatusIndexing,
			}).Get(ctx, nil); err != nil {
				return nil, failDocument(ctx, input.DocumentID, StepIndexing, err)
			}
		}

		var result IndexResult
		if err := workflow.ExecuteActivity(ctx, a.IndexRecords, IndexInput{
			DocumentID: input.DocumentID,
			Filename:   input.Filename,
			UploadedAt: input.UploadedAt,
			Chunks:     chunks,
			Vectors:    batch.Vectors,
		}).Get(ctx, &result); err != nil {
			return nil, failDocument(ctx, input.DocumentID, StepIndexing, err)
		}
		indexed += result.Indexed
	}

	if err := workflow.ExecuteActivity(ctx, a.CompleteDocument, CompleteInput{
		DocumentID: input.DocumentID,
		ChunkCount: len(split.Chunks),
	}).Get(ctx, nil); err != nil {
		return nil, failDocument(ctx, input.DocumentID, StepIndexing, err)
	}

	logger.Info("ingestion completed",
		"document_id", input.DocumentID,
		"chunks", len(split.Chunks),
		"indexed", indexed,
	)
	return &IngestResult{
		DocumentID: input.DocumentID,
		ChunkCount: len(split.Chunks),
		Indexed:    indexed,
	}, nil
}

// failDocument records the terminal failure in the catalog and returns the
// original pipeline error. It runs on a disconnected context so the catalog
// is updated even when the failure is a cancellation.
func failDocument(ctx workflow.Context, documentID, step string, cause error) error {
	dctx := ctx
	if temporal.IsCanceledError(cause) || ctx.Err() != nil {
		dctx = newDisconnectedActivityContext(ctx)
	}

	var a *Activities
	if err := workflow.ExecuteActivity(dctx, a.MarkDocumentFailed, FailInput{
		DocumentID: documentID,
		Step:       step,
		Reason:     cause.Error(),
	}).Get(dctx, nil); err != nil {
		workflow.GetLogger(ctx).Error("failed to record document failure",
			"document_id", documentID, "error", err)
	}
	return fmt.Errorf("%s: %w", step, cause)
}

func newDisconnectedActivityContext(ctx workflow.Context) workflow.Context {
	dctx, _ := workflow.NewDisconnectedContext(ctx)
	return workflow.WithActivityOptions(dctx, workflow.ActivityOptions{
		StartToCloseTimeout: time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 2,
		},
	})
}
