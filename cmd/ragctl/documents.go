package main

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// ingestCmd uploads a document for ingestion
var ingestCmd = &cobra.Command{
	Use:   "ingest [file]",
	Short: "Upload a document for ingestion",
	Long: `Upload a document to ragd and start its ingestion pipeline.

Text files are sent as-is; PDF files are sent as raw bytes and the server
extracts their text. The command returns immediately with the document ID;
use "ragctl status" to follow ingestion progress.

Examples:
  # Ingest a file
  ragctl ingest report.txt

  # Ingest a PDF
  ragctl ingest paper.pdf

  # Ingest from stdin with an explicit name
  cat notes.md | ragctl ingest - --name notes.md`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

// statusCmd shows one document's ingestion state
var statusCmd = &cobra.Command{
	Use:   "status <document-id>",
	Short: "Show a document's ingestion status",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

// listCmd lists all documents
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all documents",
	RunE:  runList,
}

// deleteCmd removes a document and its indexed chunks
var deleteCmd = &cobra.Command{
	Use:   "delete <document-id>",
	Short: "Delete a document and its indexed chunks",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

var ingestName string

func init() {
	ingestCmd.Flags().StringVar(&ingestName, "name", "", "document name (defaults to the file name)")
}

// IngestRequest matches internal/http/server.go IngestRequest
type IngestRequest struct {
	Filename string `json:"filename"`
	Text     string `json:"text,omitempty"`
	Data     []byte `json:"data,omitempty"`
}

// IngestResponse matches internal/http/server.go IngestResponse
type IngestResponse struct {
	DocumentID string `json:"document_id"`
	WorkflowID string `json:"workflow_id"`
	Status     string `json:"status"`
}

// DocumentResponse matches internal/http/server.go DocumentResponse
type DocumentResponse struct {
	ID            string    `json:"id"`
	Filename      string    `json:"filename"`
	UploadedAt    time.Time `json:"uploaded_at"`
	Status        string    `json:"status"`
	ChunkCount    int       `json:"chunk_count,omitempty"`
	FailedStep    string    `json:"failed_step,omitempty"`
	FailureReason string    `json:"failure_reason,omitempty"`
}

func runIngest(cmd *cobra.Command, args []string) error {
	var content []byte
	var err error
	name := ingestName

	if args[0] == "-" {
		content, err = io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("failed to read from stdin: %w", err)
		}
		if name == "" {
			return fmt.Errorf("--name is required when reading from stdin")
		}
	} else {
		content, err = os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read file %s: %w", args[0], err)
		}
		if name == "" {
			name = filepath.Base(args[0])
		}
	}

	if len(content) == 0 {
		return fmt.Errorf("no content to ingest")
	}

	req := IngestRequest{Filename: name}
	if strings.EqualFold(filepath.Ext(name), ".pdf") {
		req.Data = content
	} else {
		req.Text = string(content)
	}

	var resp IngestResponse
	err = postJSON("/api/v1/documents", req, 60*time.Second, http.StatusAccepted, &resp)
	if err != nil {
		return err
	}

	fmt.Printf("Document ID: %s\n", resp.DocumentID)
	fmt.Printf("Workflow ID: %s\n", resp.WorkflowID)
	fmt.Printf("Status:      %s\n", resp.Status)
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	var doc DocumentResponse
	if err := getJSON("/api/v1/documents/"+args[0], 10*time.Second, &doc); err != nil {
		return err
	}
	printDocument(doc)
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	var docs []DocumentResponse
	if err := getJSON("/api/v1/documents", 10*time.Second, &docs); err != nil {
		return err
	}
	if len(docs) == 0 {
		fmt.Println("No documents.")
		return nil
	}
	for _, doc := range docs {
		fmt.Printf("%s  %-10s  %4d chunks  %s\n", doc.ID, doc.Status, doc.ChunkCount, doc.Filename)
	}
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	url := fmt.Sprintf("%s/api/v1/documents/%s", serverURL, args[0])
	req, err := http.NewRequest(http.MethodDelete, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request to %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		return statusError(resp)
	}
	fmt.Printf("Deleted %s\n", args[0])
	return nil
}

func printDocument(doc DocumentResponse) {
	fmt.Printf("ID:          %s\n", doc.ID)
	fmt.Printf("Filename:    %s\n", doc.Filename)
	fmt.Printf("Uploaded:    %s\n", doc.UploadedAt.Format(time.RFC3339))
	fmt.Printf("Status:      %s\n", doc.Status)
	if doc.ChunkCount > 0 {
		fmt.Printf("Chunks:      %d\n", doc.ChunkCount)
	}
	if doc.FailedStep != "" {
		fmt.Printf("Failed step: %s\n", doc.FailedStep)
		fmt.Printf("Reason:      %s\n", doc.FailureReason)
	}
}
