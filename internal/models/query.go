package models

// ConceptCategory labels a single extracted concept with the domain it
// belongs to, per the query processor's concept dictionary (§4.2 stage 4).
type ConceptCategory string

const (
	ConceptDemographic  ConceptCategory = "demographic"
	ConceptFinancial    ConceptCategory = "financial"
	ConceptGeographic   ConceptCategory = "geographic"
	ConceptBehavioral   ConceptCategory = "behavioral"
	ConceptPsychographic ConceptCategory = "psychographic"
)

// Concept is one labeled extraction from the query text.
type Concept struct {
	Term     string          `json:"term"`
	Category ConceptCategory `json:"category"`
}

// NumericRange is a (field-hint, low, high) tuple extracted from numeric
// patterns in the query ("25-34", "over 100k", "age 18+").
type NumericRange struct {
	FieldHint string  `json:"field_hint"`
	Low       float64 `json:"low"`
	High      float64 `json:"high"`
}

// Query is the structured representation of a single user request, built
// fresh per request by the query processor and discarded after scoring.
type Query struct {
	Raw        string `json:"raw"`
	Normalized string `json:"normalized"`

	Concepts      []Concept      `json:"concepts"`
	NumericRanges []NumericRange `json:"numeric_ranges"`
	Expansions    []string       `json:"expansions"`
	IntentTags    []string       `json:"intent_tags"`

	// Degraded is set when the NLP-backed stages (numeric/concept
	// extraction) did not run to completion — disabled by configuration or
	// timed out — so normalize/spell-correct/synonym-expansion are all the
	// query carries.
	Degraded bool `json:"degraded"`

	// SemanticUnavailable is set by the facade/semantic index when the
	// embedding provider could not be reached for this request.
	SemanticUnavailable bool `json:"semantic_unavailable,omitempty"`
}

// HasIntentTag reports whether the query was classified with the given
// domain tag.
func (q *Query) HasIntentTag(tag string) bool {
	for _, t := range q.IntentTags {
		if t == tag {
			return true
		}
	}
	return false
}

// ConceptCategories returns the distinct set of concept categories present
// in the query, used by end-to-end tests asserting query_context.concepts.
// The hybrid scorer's domain boost does not use it; it compares the
// caller's domain hint with Variable.Domain.
func (q *Query) ConceptCategories() []string {
	seen := make(map[ConceptCategory]bool)
	var out []string
	for _, c := range q.Concepts {
		if !seen[c.Category] {
			seen[c.Category] = true
			out = append(out, string(c.Category))
		}
	}
	return out
}
