package workflows

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/client"
)

// Ingestor starts and cancels ingestion workflows on a Temporal cluster.
type Ingestor struct {
	client     client.Client
	taskQueue  string
	embedBatch int
}

// NewIngestor wraps a Temporal client for the given task queue. embedBatch
// is stamped on every ingestion input that does not set its own; size it
// with EmbedBatchFor so batches fit in an activity payload.
func NewIngestor(c client.Client, taskQueue string, embedBatch int) *Ingestor {
	return &Ingestor{client: c, taskQueue: taskQueue, embedBatch: embedBatch}
}

// StartIngestion launches the ingestion workflow for a document. The
// workflow ID is derived from the document ID, so Temporal rejects a second
// concurrent start for the same document.
func (i *Ingestor) StartIngestion(ctx context.Context, input IngestInput) (string, error) {
	if input.BatchSize <= 0 {
		input.BatchSize = i.embedBatch
	}
	run, err := i.client.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        WorkflowIDFor(input.DocumentID),
		TaskQueue: i.taskQueue,
	}, IngestDocumentWorkflow, input)
	if err != nil {
		return "", fmt.Errorf("start ingestion workflow: %w", err)
	}
	return run.GetID(), nil
}

// CancelIngestion requests cancellation of a running ingestion workflow.
func (i *Ingestor) CancelIngestion(ctx context.Context, workflowID string) error {
	if err := i.client.CancelWorkflow(ctx, workflowID, ""); err != nil {
		return fmt.Errorf("cancel ingestion workflow %s: %w", workflowID, err)
	}
	return nil
}
