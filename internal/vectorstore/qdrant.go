package vectorstore

import (
	"context"
	"fmt"
	"time"

	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/fyrsmithlabs/ragd/internal/logging"
)

// QdrantConfig configures the Qdrant gRPC store.
type QdrantConfig struct {
	// Host is the Qdrant server hostname or IP address.
	// Default: "localhost"
	Host string

	// Port is the Qdrant gRPC port (NOT the HTTP REST port).
	// Default: 6334
	Port int

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool

	// APIKey is the optional API key for authentication.
	APIKey string

	// Collection is the collection name.
	// Default: "documents"
	Collection string

	// Dimension is the vector dimensionality the collection must carry.
	Dimension int

	// MaxMessageSize is the maximum gRPC message size in bytes.
	// Default: 50MB
	MaxMessageSize int

	// DialTimeout is the timeout for establishing the connection.
	// Default: 5 seconds
	DialTimeout time.Duration

	// RequestTimeout is the default timeout for individual requests.
	// Default: 30 seconds
	RequestTimeout time.Duration

	// RetryAttempts is the number of retries for transient failures.
	// Default: 3
	RetryAttempts int
}

// ApplyDefaults sets default values for unset fields.
func (c *QdrantConfig) ApplyDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 6334
	}
	if c.Collection == "" {
		c.Collection = "documents"
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = 50 * 1024 * 1024
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = 30 * time.Second
	}
	if c.RetryAttempts == 0 {
		c.RetryAttempts = 3
	}
}

// Validate validates the configuration.
func (c *QdrantConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("%w: host is required", ErrInvalidConfig)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: invalid port %d", ErrInvalidConfig, c.Port)
	}
	if c.Dimension <= 0 {
		return fmt.Errorf("%w: dimension must be positive", ErrInvalidConfig)
	}
	return nil
}

// QdrantStore implements Store using Qdrant's official Go client over gRPC.
type QdrantStore struct {
	client *qdrant.Client
	config QdrantConfig
	logger *logging.Logger
}

// NewQdrantStore connects to Qdrant and verifies the connection health.
func NewQdrantStore(config QdrantConfig, logger *logging.Logger) (*QdrantStore, error) {
	if logger == nil {
		logger = logging.NewNop()
	}

	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	qdrantConfig := &qdrant.Config{
		Host:   config.Host,
		Port:   config.Port,
		UseTLS: config.UseTLS,
		APIKey: config.APIKey,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(config.MaxMessageSize),
				grpc.MaxCallSendMsgSize(config.MaxMessageSize),
			),
		},
	}
	if !config.UseTLS {
		qdrantConfig.GrpcOptions = append(qdrantConfig.GrpcOptions,
			grpc.WithTransportCredentials(insecure.NewCredentials()),
		)
	}

	client, err := qdrant.NewClient(qdrantConfig)
	if err != nil {
		return nil, fmt.Errorf("creating qdrant client: %w", err)
	}

	store := &QdrantStore{
		client: client,
		config: config,
		logger: logger.Named("qdrant"),
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.DialTimeout)
	defer cancel()

	if _, err := client.HealthCheck(ctx); err != nil {
		_ = client.Close()
		logger.Error(ctx, "qdrant health check failed",
			zap.String("host", config.Host),
			zap.Int("port", config.Port),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	logger.Info(ctx, "qdrant connection established",
		zap.String("host", config.Host),
		zap.Int("port", config.Port),
		zap.String("collection", config.Collection),
	)

	return store, nil
}

// EnsureCollection creates the collection if absent, with cosine distance and
// the configured dimension. An existing collection with a different vector
// size fails with SchemaMismatchError rather than silently storing truncated
// vectors.
func (s *QdrantStore) EnsureCollection(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.RequestTimeout)
	defer cancel()

	return s.retryOperation(ctx, func() error {
		info, err := s.client.GetCollectionInfo(ctx, s.config.Collection)
		if err != nil {
			st, ok := status.FromError(err)
			if !ok || st.Code() != codes.NotFound {
				return err
			}
			s.logger.Info(ctx, "creating collection",
				zap.String("collection", s.config.Collection),
				zap.Int("dimension", s.config.Dimension),
			)
			return s.client.CreateCollection(ctx, &qdrant.CreateCollection{
				CollectionName: s.config.Collection,
				VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
					Size:     uint64(s.config.Dimension),
					Distance: qdrant.Distance_Cosine,
				}),
			})
		}

		size := info.GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize()
		if int(size) != s.config.Dimension {
			return &SchemaMismatchError{
				Collection: s.config.Collection,
				Got:        int(size),
				Want:       s.config.Dimension,
			}
		}
		return nil
	})
}

// Upsert inserts or replaces records by point ID. The write waits for
// acknowledgment so a record is searchable once Upsert returns.
func (s *QdrantStore) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return ErrEmptyRecords
	}
	if err := checkDimensions(s.config.Collection, records, s.config.Dimension); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.RequestTimeout)
	defer cancel()

	points := make([]*qdrant.PointStruct, len(records))
	for i, r := range records {
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(r.PointID),
			Vectors: qdrant.NewVectors(r.Vector...),
			Payload: map[string]*qdrant.Value{
				payloadDocumentID: {Kind: &qdrant.Value_StringValue{StringValue: r.DocumentID}},
				payloadChunkIndex: {Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(r.ChunkIndex)}},
				payloadText:       {Kind: &qdrant.Value_StringValue{StringValue: r.Text}},
				payloadFilename:   {Kind: &qdrant.Value_StringValue{StringValue: r.Filename}},
				payloadUploadedAt: {Kind: &qdrant.Value_StringValue{StringValue: r.UploadedAt.UTC().Format(time.RFC3339)}},
			},
		}
	}

	err := s.retryOperation(ctx, func() error {
		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: s.config.Collection,
			Points:         points,
			Wait:           qdrant.PtrOf(true),
		})
		return err
	})
	if err != nil {
		ids := make([]string, len(records))
		for i, r := range records {
			ids[i] = r.PointID
		}
		return &IndexWriteError{FailedIDs: ids, Err: err}
	}
	return nil
}

// Search performs similarity search, returning at most k records in the
// deterministic order (descending score, ascending chunk index, document ID).
func (s *QdrantStore) Search(ctx context.Context, vector []float32, k int, filter *Filter) ([]ScoredRecord, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}
	if len(vector) != s.config.Dimension {
		return nil, &SchemaMismatchError{
			Collection: s.config.Collection,
			Got:        len(vector),
			Want:       s.config.Dimension,
		}
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.RequestTimeout)
	defer cancel()

	var qdrantFilter *qdrant.Filter
	if filter != nil && filter.DocumentID != "" {
		qdrantFilter = &qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch(payloadDocumentID, filter.DocumentID),
			},
		}
	}

	var points []*qdrant.ScoredPoint
	err := s.retryOperation(ctx, func() error {
		res, err := s.client.Query(ctx, &qdrant.QueryPoints{
			CollectionName: s.config.Collection,
			Query:          qdrant.NewQuery(vector...),
			Limit:          qdrant.PtrOf(uint64(k)),
			WithPayload:    qdrant.NewWithPayload(true),
			Filter:         qdrantFilter,
		})
		if err != nil {
			return err
		}
		points = res
		return nil
	})
	if err != nil {
		return nil, err
	}

	results := make([]ScoredRecord, 0, len(points))
	for _, p := range points {
		results = append(results, ScoredRecord{
			Record: recordFromPayload(extractPointID(p.GetId()), p.GetPayload()),
			Score:  p.GetScore(),
		})
	}
	sortScored(results)
	return results, nil
}

// DeleteDocument removes all records of a document via payload filter.
func (s *QdrantStore) DeleteDocument(ctx context.Context, documentID string) error {
	if documentID == "" {
		return fmt.Errorf("document ID cannot be empty")
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.RequestTimeout)
	defer cancel()

	return s.retryOperation(ctx, func() error {
		_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
			CollectionName: s.config.Collection,
			Points: &qdrant.PointsSelector{
				PointsSelectorOneOf: &qdrant.PointsSelector_Filter{
					Filter: &qdrant.Filter{
						Must: []*qdrant.Condition{
							qdrant.NewMatch(payloadDocumentID, documentID),
						},
					},
				},
			},
			Wait: qdrant.PtrOf(true),
		})
		return err
	})
}

// Count returns the number of points in the collection.
func (s *QdrantStore) Count(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.RequestTimeout)
	defer cancel()

	var count int
	err := s.retryOperation(ctx, func() error {
		info, err := s.client.GetCollectionInfo(ctx, s.config.Collection)
		if err != nil {
			st, ok := status.FromError(err)
			if ok && st.Code() == codes.NotFound {
				count = 0
				return nil
			}
			return err
		}
		if pc := info.GetPointsCount(); pc != 0 {
			count = int(pc)
		} else {
			count = 0
		}
		return nil
	})
	return count, err
}

// Close closes the client connection.
func (s *QdrantStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// retryOperation retries an operation with exponential backoff.
func (s *QdrantStore) retryOperation(ctx context.Context, operation func() error) error {
	var lastErr error
	backoff := time.Second

	for attempt := 0; attempt <= s.config.RetryAttempts; attempt++ {
		err := operation()
		if err == nil {
			if attempt > 0 {
				s.logger.Info(ctx, "operation recovered after retries",
					zap.Int("attempts", attempt),
				)
			}
			return nil
		}

		lastErr = err

		if !isTransientQdrantError(err) {
			return err
		}
		if attempt == s.config.RetryAttempts {
			break
		}

		s.logger.Debug(ctx, "retrying operation after transient error",
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", s.config.RetryAttempts),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return fmt.Errorf("operation canceled: %w", ctx.Err())
		case <-time.After(backoff):
			backoff *= 2
		}
	}

	s.logger.Warn(ctx, "operation failed after all retries exhausted",
		zap.Int("total_attempts", s.config.RetryAttempts+1),
		zap.Error(lastErr),
	)
	return fmt.Errorf("operation failed after %d retries: %w", s.config.RetryAttempts, lastErr)
}

// isTransientQdrantError checks if a gRPC error should be retried.
func isTransientQdrantError(err error) bool {
	if err == nil {
		return false
	}
	st, ok := status.FromError(err)
	if !ok {
		return false
	}
	switch st.Code() {
	case codes.Unavailable, codes.DeadlineExceeded, codes.Aborted, codes.ResourceExhausted:
		return true
	default:
		return false
	}
}

func extractPointID(id *qdrant.PointId) string {
	if id == nil {
		return ""
	}
	if u := id.GetUuid(); u != "" {
		return u
	}
	if n := id.GetNum(); n != 0 {
		return fmt.Sprintf("%d", n)
	}
	return ""
}

func recordFromPayload(pointID string, payload map[string]*qdrant.Value) Record {
	r := Record{PointID: pointID}
	if v, ok := payload[payloadDocumentID]; ok {
		r.DocumentID = v.GetStringValue()
	}
	if v, ok := payload[payloadChunkIndex]; ok {
		r.ChunkIndex = int(v.GetIntegerValue())
	}
	if v, ok := payload[payloadText]; ok {
		r.Text = v.GetStringValue()
	}
	if v, ok := payload[payloadFilename]; ok {
		r.Filename = v.GetStringValue()
	}
	if v, ok := payload[payloadUploadedAt]; ok {
		if ts, err := time.Parse(time.RFC3339, v.GetStringValue()); err == nil {
			r.UploadedAt = ts
		}
	}
	return r
}
