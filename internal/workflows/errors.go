package workflows

// Pipeline step names recorded on failed documents.
const (
	StepSplitting = "splitting"
	StepEmbedding = "embedding"
	StepIndexing  = "indexing"
)

// Application error types used to classify activity failures. Errors of the
// non-retryable types fail the step immediately instead of being retried.
const (
	errTypeExtraction     = "ExtractionError"
	errTypeSchemaMismatch = "SchemaMismatchError"
	errTypeEmbedding      = "EmbeddingError"
	errTypeIndexWrite     = "IndexWriteError"
	errTypeCatalog        = "CatalogError"
)
