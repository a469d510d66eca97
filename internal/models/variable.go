// Package models holds the data types shared across every retrieval
// component: the catalog's Variable, the query pipeline's Query, a scored
// Candidate, and the Session workflow state.
package models

// DataType enumerates the valid predicate data types a Variable can carry.
type DataType string

const (
	DataTypeNumeric     DataType = "numeric"
	DataTypeCategorical DataType = "categorical"
	DataTypeBoolean     DataType = "boolean"
	DataTypeOrdinal     DataType = "ordinal"
)

// Variable is the atomic catalog entry. Once built by the catalog loader it
// is never mutated; a reload replaces the whole snapshot rather than editing
// records in place.
type Variable struct {
	Code        string   `json:"code"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Theme       string   `json:"theme"`
	Product     string   `json:"product"`
	Domain      string   `json:"domain"`
	DataType    DataType `json:"data_type"`
	Operators   []string `json:"operators"`

	// Keywords is populated by the catalog loader: for CSV input, the
	// lowercased, de-duplicated tokens of name+description+category, not
	// stemmed; columnar input supplies its own list. The keyword index does
	// not read it and tokenizes the variable's fields itself.
	Keywords []string `json:"keywords,omitempty"`

	// Embedding is the optional dense vector for this variable. Its length,
	// when present, equals the semantic index's declared dimensionality.
	Embedding []float32 `json:"-"`
}

// HasEmbedding reports whether this variable carries a usable embedding.
func (v *Variable) HasEmbedding() bool {
	return len(v.Embedding) > 0
}
