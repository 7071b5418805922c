package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragd/internal/answer"
	"github.com/fyrsmithlabs/ragd/internal/document"
	"github.com/fyrsmithlabs/ragd/internal/eval"
	"github.com/fyrsmithlabs/ragd/internal/extract"
	"github.com/fyrsmithlabs/ragd/internal/logging"
	"github.com/fyrsmithlabs/ragd/internal/retrieval"
	"github.com/fyrsmithlabs/ragd/internal/vectorstore"
	"github.com/fyrsmithlabs/ragd/internal/workflows"
)

// maxDocumentBytes bounds an uploaded document body.
const maxDocumentBytes = 10 << 20

// Ingestor starts and cancels ingestion workflows. Implemented by the
// Temporal client wrapper in cmd/ragd.
type Ingestor interface {
	StartIngestion(ctx context.Context, input workflows.IngestInput) (workflowID string, err error)
	CancelIngestion(ctx context.Context, workflowID string) error
}

// Retriever is the query side of the retrieval engine.
type Retriever interface {
	Retrieve(ctx context.Context, query string, opts retrieval.Options) ([]vectorstore.ScoredRecord, error)
}

// Answerer generates a cited answer from retrieved chunks.
type Answerer interface {
	Synthesize(ctx context.Context, query string, chunks []vectorstore.ScoredRecord) (*answer.Answer, error)
}

// Evaluator runs the evaluation harness.
type Evaluator interface {
	Run(ctx context.Context, questions []eval.Question) (*eval.Report, error)
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
}

// Server exposes the document and query API.
type Server struct {
	echo      *echo.Echo
	catalog   *document.Catalog
	store     vectorstore.Store
	ingestor  Ingestor
	retriever Retriever
	answerer  Answerer
	evaluator Evaluator
	logger    *logging.Logger
	config    Config
}

// NewServer creates the API server and registers all routes.
func NewServer(catalog *document.Catalog, store vectorstore.Store, ingestor Ingestor, retriever Retriever, answerer Answerer, evaluator Evaluator, logger *logging.Logger, cfg Config) (*Server, error) {
	if catalog == nil {
		return nil, fmt.Errorf("catalog is required")
	}
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if ingestor == nil {
		return nil, fmt.Errorf("ingestor is required")
	}
	if retriever == nil {
		return nil, fmt.Errorf("retriever is required")
	}
	if answerer == nil {
		return nil, fmt.Errorf("answerer is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.BodyLimit(fmt.Sprintf("%d", maxDocumentBytes)))
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			requestID := c.Response().Header().Get(echo.HeaderXRequestID)
			ctx := logging.ContextWithRequestID(c.Request().Context(), requestID)
			c.SetRequest(c.Request().WithContext(ctx))

			err := next(c)

			logger.Info(ctx, "http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
			)
			return err
		}
	})

	s := &Server{
		echo:      e,
		catalog:   catalog,
		store:     store,
		ingestor:  ingestor,
		retriever: retriever,
		answerer:  answerer,
		evaluator: evaluator,
		logger:    logger,
		config:    cfg,
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.POST("/documents", s.handleIngest)
	v1.GET("/documents", s.handleListDocuments)
	v1.GET("/documents/:id", s.handleGetDocument)
	v1.DELETE("/documents/:id", s.handleDeleteDocument)
	v1.POST("/query", s.handleQuery)
	v1.POST("/evaluate", s.handleEvaluate)
}

// IngestRequest is the request body for POST /api/v1/documents. DocumentID
// is optional; the server generates one when absent. Callers send either
// pre-extracted text or the raw file bytes in data (base64 in JSON); PDF
// bytes are extracted server side.
type IngestRequest struct {
	DocumentID string `json:"document_id,omitempty"`
	Filename   string `json:"filename"`
	Text       string `json:"text,omitempty"`
	Data       []byte `json:"data,omitempty"`
}

// IngestResponse acknowledges an accepted document.
type IngestResponse struct {
	DocumentID string `json:"document_id"`
	WorkflowID string `json:"workflow_id"`
	Status     string `json:"status"`
}

// DocumentResponse is the API shape of a catalog entry.
type DocumentResponse struct {
	ID            string    `json:"id"`
	Filename      string    `json:"filename"`
	UploadedAt    time.Time `json:"uploaded_at"`
	Status        string    `json:"status"`
	ChunkCount    int       `json:"chunk_count,omitempty"`
	FailedStep    string    `json:"failed_step,omitempty"`
	FailureReason string    `json:"failure_reason,omitempty"`
}

// QueryRequest is the request body for POST /api/v1/query.
type QueryRequest struct {
	Query      string `json:"query"`
	TopK       int    `json:"top_k,omitempty"`
	DocumentID string `json:"document_id,omitempty"`
}

// QueryResponse is the cited answer for a query.
type QueryResponse struct {
	Query      string            `json:"query"`
	Answer     string            `json:"answer"`
	Citations  []answer.Citation `json:"citations"`
	Confidence float64           `json:"confidence"`
	NoContext  bool              `json:"no_context"`
	LatencyMS  int64             `json:"latency_ms"`
}

// QueryErrorResponse reports a failed answer generation while preserving
// what retrieval found, so the caller can still use the sources.
type QueryErrorResponse struct {
	Query     string            `json:"query"`
	Error     string            `json:"error"`
	Citations []answer.Citation `json:"citations"`
	Contexts  []string          `json:"contexts"`
	LatencyMS int64             `json:"latency_ms"`
}

// EvaluateRequest optionally overrides the built-in question set.
type EvaluateRequest struct {
	Questions []eval.Question `json:"questions,omitempty"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// handleIngest accepts a document and starts its ingestion workflow. The
// response is 202: ingestion continues asynchronously and progress is
// visible through GET /api/v1/documents/:id.
func (s *Server) handleIngest(c echo.Context) error {
	var req IngestRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Filename == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "filename field is required")
	}
	text := req.Text
	if text == "" {
		if len(req.Data) == 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "text or data field is required")
		}
		extracted, err := extract.Text(req.Filename, req.Data)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("failed to extract document text: %v", err))
		}
		text = extracted
	}

	documentID := req.DocumentID
	if documentID == "" {
		documentID = uuid.NewString()
	}

	ctx := c.Request().Context()
	doc, err := s.catalog.Register(documentID, req.Filename)
	if err != nil {
		if errors.Is(err, document.ErrAlreadyExists) {
			return echo.NewHTTPError(http.StatusConflict, "document already exists")
		}
		s.logger.Error(ctx, "failed to register document", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to register document")
	}

	workflowID, err := s.ingestor.StartIngestion(ctx, workflows.IngestInput{
		DocumentID: doc.ID,
		Filename:   doc.Filename,
		Text:       text,
		UploadedAt: doc.UploadedAt,
	})
	if err != nil {
		// The catalog entry must not dangle without a pipeline behind it.
		_ = s.catalog.Delete(doc.ID)
		s.logger.Error(ctx, "failed to start ingestion", zap.Error(err))
		return echo.NewHTTPError(http.StatusServiceUnavailable, "failed to start ingestion")
	}
	if err := s.catalog.SetWorkflowID(doc.ID, workflowID); err != nil {
		s.logger.Warn(ctx, "failed to record workflow id", zap.Error(err))
	}

	return c.JSON(http.StatusAccepted, IngestResponse{
		DocumentID: doc.ID,
		WorkflowID: workflowID,
		Status:     string(document.StatusReceived),
	})
}

func (s *Server) handleListDocuments(c echo.Context) error {
	docs := s.catalog.List()
	out := make([]DocumentResponse, len(docs))
	for i, d := range docs {
		out[i] = toDocumentResponse(d)
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleGetDocument(c echo.Context) error {
	doc, err := s.catalog.Get(c.Param("id"))
	if err != nil {
		if errors.Is(err, document.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "document not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load document")
	}
	return c.JSON(http.StatusOK, toDocumentResponse(doc))
}

// handleDeleteDocument removes a document's chunks from the index and its
// catalog entry. A still-running ingestion workflow is canceled first so it
// cannot re-index chunks after the delete.
func (s *Server) handleDeleteDocument(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	doc, err := s.catalog.Get(id)
	if err != nil {
		if errors.Is(err, document.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "document not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load document")
	}

	if !doc.Status.Terminal() && doc.WorkflowID != "" {
		if err := s.ingestor.CancelIngestion(ctx, doc.WorkflowID); err != nil {
			s.logger.Warn(ctx, "failed to cancel ingestion workflow",
				zap.String("workflow_id", doc.WorkflowID),
				zap.Error(err),
			)
		}
	}

	if err := s.store.DeleteDocument(ctx, id); err != nil {
		s.logger.Error(ctx, "failed to delete document chunks", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to delete document chunks")
	}
	if err := s.catalog.Delete(id); err != nil && !errors.Is(err, document.ErrNotFound) {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to delete document")
	}

	return c.NoContent(http.StatusNoContent)
}

// handleQuery answers a question over the indexed corpus. A query that
// retrieval cannot ground still returns 200 with the fixed non-answer and
// no_context set; only infrastructure failures are error statuses.
func (s *Server) handleQuery(c echo.Context) error {
	var req QueryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query field is required")
	}
	if req.TopK < 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "top_k must not be negative")
	}

	start := time.Now()
	ctx := c.Request().Context()
	chunks, err := s.retriever.Retrieve(ctx, req.Query, retrieval.Options{
		TopK:       req.TopK,
		DocumentID: req.DocumentID,
	})
	if err != nil {
		if errors.Is(err, retrieval.ErrEmptyQuery) {
			return echo.NewHTTPError(http.StatusBadRequest, "query field is required")
		}
		s.logger.Error(ctx, "retrieval failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "retrieval failed")
	}

	ans, err := s.answerer.Synthesize(ctx, req.Query, chunks)
	if err != nil {
		var genErr *answer.GenerationError
		if errors.As(err, &genErr) {
			s.logger.Error(ctx, "generation failed", zap.Error(err))
			// Retrieval already succeeded, so hand back what was found.
			citations := make([]answer.Citation, len(chunks))
			contexts := make([]string, len(chunks))
			for i, chunk := range chunks {
				citations[i] = answer.Citation{
					Source:     i + 1,
					DocumentID: chunk.DocumentID,
					Filename:   chunk.Filename,
					ChunkIndex: chunk.ChunkIndex,
					Score:      chunk.Score,
				}
				contexts[i] = chunk.Text
			}
			return c.JSON(http.StatusBadGateway, QueryErrorResponse{
				Query:     req.Query,
				Error:     "answer generation failed",
				Citations: citations,
				Contexts:  contexts,
				LatencyMS: time.Since(start).Milliseconds(),
			})
		}
		s.logger.Error(ctx, "synthesis failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "answer synthesis failed")
	}

	return c.JSON(http.StatusOK, QueryResponse{
		Query:      req.Query,
		Answer:     ans.Text,
		Citations:  ans.Citations,
		Confidence: ans.Confidence,
		NoContext:  ans.NoContext,
		LatencyMS:  time.Since(start).Milliseconds(),
	})
}

func (s *Server) handleEvaluate(c echo.Context) error {
	if s.evaluator == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "evaluation is not configured")
	}

	var req EvaluateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	ctx := c.Request().Context()
	report, err := s.evaluator.Run(ctx, req.Questions)
	if err != nil {
		if errors.Is(err, eval.ErrNoResults) {
			return echo.NewHTTPError(http.StatusConflict, "no question produced a result; is anything indexed?")
		}
		s.logger.Error(ctx, "evaluation failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "evaluation failed")
	}
	return c.JSON(http.StatusOK, report)
}

func toDocumentResponse(d *document.Document) DocumentResponse {
	return DocumentResponse{
		ID:            d.ID,
		Filename:      d.Filename,
		UploadedAt:    d.UploadedAt,
		Status:        string(d.Status),
		ChunkCount:    d.ChunkCount,
		FailedStep:    d.FailedStep,
		FailureReason: d.FailureReason,
	}
}

// UseMetrics installs the metrics middleware. Call before Start.
func (s *Server) UseMetrics(m *HTTPMetrics) {
	s.echo.Use(m.MetricsMiddleware())
}

// Start starts the HTTP server and blocks until shutdown.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info(context.Background(), "starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "shutting down http server")
	return s.echo.Shutdown(ctx)
}
