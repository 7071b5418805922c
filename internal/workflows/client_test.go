package workflows

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/client"
)

type fakeWorkflowRun struct {
	client.WorkflowRun
	id string
}

func (f fakeWorkflowRun) GetID() string { return f.id }

// fakeTemporalClient records starts and cancellations. The embedded
// interface keeps it compiling against the full client surface.
type fakeTemporalClient struct {
	client.Client
	lastOptions client.StartWorkflowOptions
	lastInput   IngestInput
	canceled    []string
}

func (f *fakeTemporalClient) ExecuteWorkflow(ctx context.Context, options client.StartWorkflowOptions, workflowFn interface{}, args ...interface{}) (client.WorkflowRun, error) {
	f.lastOptions = options
	f.lastInput = args[0].(IngestInput)
	return fakeWorkflowRun{id: options.ID}, nil
}

func (f *fakeTemporalClient) CancelWorkflow(ctx context.Context, workflowID, runID string) error {
	f.canceled = append(f.canceled, workflowID)
	return nil
}

func TestIngestorStartIngestion(t *testing.T) {
	input := IngestInput{
		DocumentID: "doc-1",
		Filename:   "report.txt",
		Text:       "Some document text.",
		UploadedAt: time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC),
	}

	t.Run("stamps the configured embed batch size", func(t *testing.T) {
		tc := &fakeTemporalClient{}
		ingestor := NewIngestor(tc, "ingestion", EmbedBatchFor(64, 3072))

		workflowID, err := ingestor.StartIngestion(context.Background(), input)
		require.NoError(t, err)

		assert.Equal(t, WorkflowIDFor("doc-1"), workflowID)
		assert.Equal(t, "ingestion", tc.lastOptions.TaskQueue)
		assert.Equal(t, EmbedBatchFor(64, 3072), tc.lastInput.BatchSize)
	})

	t.Run("keeps an explicit batch size", func(t *testing.T) {
		tc := &fakeTemporalClient{}
		ingestor := NewIngestor(tc, "ingestion", 16)

		withBatch := input
		withBatch.BatchSize = 4
		_, err := ingestor.StartIngestion(context.Background(), withBatch)
		require.NoError(t, err)
		assert.Equal(t, 4, tc.lastInput.BatchSize)
	})
}

func TestIngestorCancelIngestion(t *testing.T) {
	tc := &fakeTemporalClient{}
	ingestor := NewIngestor(tc, "ingestion", 16)

	require.NoError(t, ingestor.CancelIngestion(context.Background(), WorkflowIDFor("doc-1")))
	assert.Equal(t, []string{"ingest-doc-1"}, tc.canceled)
}
