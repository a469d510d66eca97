// Package catalog implements the Catalog Loader (C1): it loads Variable
// records from a columnar binary source (preferred) or a CSV fallback,
// normalizes the schema, and publishes an immutable CatalogSnapshot behind a
// pointer swap so that in-flight requests keep a read-consistent view across
// a reload.
package catalog

import (
	"sort"
	"time"

	"audiencelens/internal/models"
)

// SourceFormat records which file format produced a snapshot, surfaced by
// the stats endpoint.
type SourceFormat string

const (
	SourceColumnar SourceFormat = "columnar"
	SourceCSV      SourceFormat = "csv"
)

// Snapshot is an immutable, point-in-time view of every variable plus the
// facet indexes derived from them. Once built it is never mutated — a
// reload builds a brand new Snapshot and swaps the pointer atomically.
type Snapshot struct {
	byCode map[string]*models.Variable
	all    []*models.Variable

	byTheme   map[string][]*models.Variable
	byProduct map[string][]*models.Variable
	byDomain  map[string][]*models.Variable
	byCategory map[string][]*models.Variable

	HasEmbeddings bool
	Dimensions    int
	SourceFormat  SourceFormat
	LoadDuration  time.Duration
	LoadedAt      time.Time
}

func newSnapshot() *Snapshot {
	return &Snapshot{
		byCode:     make(map[string]*models.Variable),
		byTheme:    make(map[string][]*models.Variable),
		byProduct:  make(map[string][]*models.Variable),
		byDomain:   make(map[string][]*models.Variable),
		byCategory: make(map[string][]*models.Variable),
	}
}

func (s *Snapshot) add(v *models.Variable) {
	s.byCode[v.Code] = v
	s.all = append(s.all, v)
	s.byTheme[v.Theme] = append(s.byTheme[v.Theme], v)
	s.byProduct[v.Product] = append(s.byProduct[v.Product], v)
	s.byDomain[v.Domain] = append(s.byDomain[v.Domain], v)
	s.byCategory[v.Category] = append(s.byCategory[v.Category], v)
	if v.HasEmbedding() {
		s.HasEmbeddings = true
	}
}

// Get returns the variable for code, or nil if absent in this snapshot.
func (s *Snapshot) Get(code string) *models.Variable {
	return s.byCode[code]
}

// Iterate returns all variables in this snapshot, in load order.
func (s *Snapshot) Iterate() []*models.Variable {
	return s.all
}

// Count returns the total number of variables in this snapshot.
func (s *Snapshot) Count() int {
	return len(s.all)
}

// ByCategory returns all variables sharing the given category facet.
func (s *Snapshot) ByCategory(category string) []*models.Variable {
	return s.byCategory[category]
}

// CountBy returns the number of variables per distinct value of the named
// facet (one of "theme", "product", "domain", "category").
func (s *Snapshot) CountBy(facet string) map[string]int {
	var src map[string][]*models.Variable
	switch facet {
	case "theme":
		src = s.byTheme
	case "product":
		src = s.byProduct
	case "domain":
		src = s.byDomain
	case "category":
		src = s.byCategory
	default:
		return nil
	}
	out := make(map[string]int, len(src))
	for k, v := range src {
		out[k] = len(v)
	}
	return out
}

// Themes returns the sorted distinct theme facets present in this snapshot.
func (s *Snapshot) Themes() []string {
	out := make([]string, 0, len(s.byTheme))
	for k := range s.byTheme {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
