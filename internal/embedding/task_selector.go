package embedding

import (
	"context"

	"audiencelens/internal/logging"
)

// ContentType distinguishes the two kinds of text the semantic index ever
// embeds: a catalog variable's indexed text, or an incoming user query.
// GenAI-class providers produce better vectors when told which one they're
// looking at.
type ContentType string

const (
	ContentTypeVariable ContentType = "variable" // name+description+category, indexed once at load
	ContentTypeQuery    ContentType = "query"    // free-form text, embedded per request
)

// TaskTypeAwareEngine is implemented by providers that can bias a single
// embedding call toward retrieval-query or retrieval-document semantics.
type TaskTypeAwareEngine interface {
	EmbedWithTaskType(ctx context.Context, text string, taskType string) ([]float32, error)
}

// TaskTypeBatchAwareEngine is the batch counterpart of TaskTypeAwareEngine.
type TaskTypeBatchAwareEngine interface {
	EmbedBatchWithTaskType(ctx context.Context, texts []string, taskType string) ([][]float32, error)
}

// SelectTaskType maps a ContentType to the provider task-type string. Queries
// and documents get asymmetric task types so that, for providers that honor
// them (GenAI), a query vector and a document vector describing the same
// concept land closer together than two independently-embedded documents.
func SelectTaskType(contentType ContentType) string {
	switch contentType {
	case ContentTypeQuery:
		return "RETRIEVAL_QUERY"
	case ContentTypeVariable:
		return "RETRIEVAL_DOCUMENT"
	default:
		logging.SemanticDebug("SelectTaskType: unknown content_type=%s, defaulting to SEMANTIC_SIMILARITY", contentType)
		return "SEMANTIC_SIMILARITY"
	}
}
