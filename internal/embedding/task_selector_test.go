package embedding

import "testing"

func TestSelectTaskTypeQuery(t *testing.T) {
	if got := SelectTaskType(ContentTypeQuery); got != "RETRIEVAL_QUERY" {
		t.Fatalf("SelectTaskType(query)=%q, want RETRIEVAL_QUERY", got)
	}
}

func TestSelectTaskTypeVariable(t *testing.T) {
	if got := SelectTaskType(ContentTypeVariable); got != "RETRIEVAL_DOCUMENT" {
		t.Fatalf("SelectTaskType(variable)=%q, want RETRIEVAL_DOCUMENT", got)
	}
}

func TestSelectTaskTypeUnknownFallsBackToSimilarity(t *testing.T) {
	if got := SelectTaskType(ContentType("unknown")); got != "SEMANTIC_SIMILARITY" {
		t.Fatalf("SelectTaskType(unknown)=%q, want SEMANTIC_SIMILARITY", got)
	}
}
