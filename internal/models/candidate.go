package models

// SearchMethod records which index path(s) contributed to a Candidate.
type SearchMethod string

const (
	SearchMethodKeyword  SearchMethod = "keyword"
	SearchMethodSemantic SearchMethod = "semantic"
	SearchMethodHybrid   SearchMethod = "hybrid"
)

// Candidate pairs a variable with its retrieval provenance: the scores that
// produced it and which query terms/concepts it matched. Candidates are
// built fresh per request; they carry the variable's code plus a pointer to
// the record in the snapshot that served the request. Sessions keep only the
// code, so they outlive a reload (§9 cyclic-reference note).
type Candidate struct {
	Code string `json:"code"`

	// Variable is populated from the snapshot that served the request and
	// is safe to read for the lifetime of the response, but is never stored
	// long-term — sessions persist Code only and rehydrate on demand.
	Variable *Variable `json:"variable"`

	KeywordScore  float64 `json:"keyword_score"`
	SemanticScore float64 `json:"semantic_score"`
	FusedScore    float64 `json:"fused_score"`

	MatchedKeywords []string     `json:"matched_keywords,omitempty"`
	MatchedConcepts []string     `json:"matched_concepts,omitempty"`
	SearchMethod    SearchMethod `json:"search_method"`
}

// Clone returns a shallow copy safe for a caller to mutate (e.g. reordering
// in a result slice) without racing the scorer's working slice.
func (c *Candidate) Clone() *Candidate {
	cp := *c
	return &cp
}
