// Package keyword implements the Keyword Index (C3): an inverted index over
// the catalog's derived keyword fields, scored by tf*idf*field-weight with a
// Levenshtein-based fuzzy fallback for query tokens with no exact posting.
package keyword

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"

	"audiencelens/internal/catalog"
	"audiencelens/internal/logging"
	"audiencelens/internal/models"
)

// field weights, per §4.3.
const (
	weightName        = 3.0
	weightDescription = 1.0
	weightCategory    = 0.5
	fuzzyPenalty      = 0.5
	fuzzyMaxEdit       = 2
)

// posting is one (variable-code, field-weighted-term-frequency) entry for a
// token: weightedTF = sum over occurrences of the field weight each
// occurrence came from (name=3.0, description=1.0, category=0.5).
type posting struct {
	code       string
	weightedTF float64
}

// Index is an inverted index built once per catalog snapshot. It holds only
// read-only references and is rebuilt atomically alongside catalog reloads
// — callers simply construct a new Index from the new snapshot and swap
// their own pointer, mirroring the catalog's own swap discipline.
type Index struct {
	postings map[string][]posting // stemmed token -> postings
	docCount int
	snapshot *catalog.Snapshot

	mu sync.RWMutex
}

// Build constructs an Index over every variable in snap.
func Build(snap *catalog.Snapshot) *Index {
	idx := &Index{
		postings: make(map[string][]posting),
		snapshot: snap,
	}
	for _, v := range snap.Iterate() {
		idx.indexVariable(v)
	}
	idx.docCount = snap.Count()
	return idx
}

func (idx *Index) indexVariable(v *models.Variable) {
	weighted := make(map[string]float64)
	for _, tok := range tokenize(v.Name) {
		weighted[tok] += weightName
	}
	for _, tok := range tokenize(v.Description) {
		weighted[tok] += weightDescription
	}
	for _, tok := range tokenize(v.Category) {
		weighted[tok] += weightCategory
	}
	for tok, w := range weighted {
		idx.postings[tok] = append(idx.postings[tok], posting{code: v.Code, weightedTF: w})
	}
}

// Tokenize exposes the index's own tokenize+stem pipeline so callers (the
// hybrid scorer, the retrieval facade) produce query tokens using exactly
// the same rules the index was built with.
func Tokenize(s string) []string {
	return tokenize(s)
}

func tokenize(s string) []string {
	s = strings.ToLower(s)
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9')
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) >= 2 {
			out = append(out, stem(f))
		}
	}
	return out
}

// stem is a minimal suffix-stripping stemmer; sufficient to fold plurals
// and common verb endings without pulling in a full Porter implementation.
func stem(tok string) string {
	for _, suffix := range []string{"ies", "es", "s"} {
		if strings.HasSuffix(tok, suffix) && len(tok) > len(suffix)+2 {
			return strings.TrimSuffix(tok, suffix)
		}
	}
	return tok
}

func (idx *Index) idf(token string) float64 {
	n := len(idx.postings[token])
	if n == 0 || idx.docCount == 0 {
		return 0
	}
	return math.Log(float64(idx.docCount)/float64(n) + 1)
}

// Search returns candidates for the tokens in normalized, scored per §4.3:
// kw_score = normalize(sum(tf*idf*field_weight)), normalized by dividing by
// the maximum achievable score for this query. Ties break on shorter name,
// then lexicographic code.
func (idx *Index) Search(ctx context.Context, tokens []string) []*models.Candidate {
	timer := logging.StartTimer(logging.CategoryKeyword, "Search")
	defer timer.Stop()

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	type acc struct {
		raw     float64
		matched map[string]bool
	}
	scores := make(map[string]*acc)
	maxPossible := 0.0

	for _, tok := range tokens {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		// weightedTF already reflects field weight (name=3.0, description=1.0,
		// category=0.5 baked in at index time), so scoring here is plain
		// weightedTF*idf.
		postings, exact := idx.postings[tok]

		if exact {
			idfv := idx.idf(tok)
			maxTF := 0.0
			for _, p := range postings {
				if p.weightedTF > maxTF {
					maxTF = p.weightedTF
				}
			}
			maxPossible += maxTF * idfv

			for _, p := range postings {
				a := scores[p.code]
				if a == nil {
					a = &acc{matched: make(map[string]bool)}
					scores[p.code] = a
				}
				a.raw += p.weightedTF * idfv
				a.matched[tok] = true
			}
			continue
		}

		// Fuzzy fallback: match against tokens at Levenshtein <= fuzzyMaxEdit,
		// with a 0.5 score penalty.
		for cand, postings := range idx.postings {
			if editDistance(tok, cand) > fuzzyMaxEdit {
				continue
			}
			idfv := idx.idf(cand)
			maxTF := 0.0
			for _, p := range postings {
				if p.weightedTF > maxTF {
					maxTF = p.weightedTF
				}
			}
			maxPossible += maxTF * idfv
			for _, p := range postings {
				a := scores[p.code]
				if a == nil {
					a = &acc{matched: make(map[string]bool)}
					scores[p.code] = a
				}
				a.raw += p.weightedTF * idfv * fuzzyPenalty
				a.matched[tok] = true
			}
		}
	}

	if maxPossible <= 0 {
		maxPossible = 1
	}

	out := make([]*models.Candidate, 0, len(scores))
	for code, a := range scores {
		v := idx.snapshot.Get(code)
		if v == nil {
			continue
		}
		matched := make([]string, 0, len(a.matched))
		for t := range a.matched {
			matched = append(matched, t)
		}
		sort.Strings(matched)
		out = append(out, &models.Candidate{
			Code:            code,
			Variable:        v,
			KeywordScore:    clamp01(a.raw / maxPossible),
			MatchedKeywords: matched,
			SearchMethod:    models.SearchMethodKeyword,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].KeywordScore != out[j].KeywordScore {
			return out[i].KeywordScore > out[j].KeywordScore
		}
		if len(out[i].Variable.Name) != len(out[j].Variable.Name) {
			return len(out[i].Variable.Name) < len(out[j].Variable.Name)
		}
		return out[i].Code < out[j].Code
	})

	logging.KeywordDebug("search over %d tokens matched %d candidates", len(tokens), len(out))
	return out
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

func editDistance(a, b string) int {
	la, lb := len(a), len(b)
	if la == 0 {
		return lb
	}
	if lb == 0 {
		return la
	}
	prev := make([]int, lb+1)
	curr := make([]int, lb+1)
	for j := 0; j <= lb; j++ {
		prev[j] = j
	}
	for i := 1; i <= la; i++ {
		curr[0] = i
		for j := 1; j <= lb; j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			c := curr[j-1] + 1
			if prev[j]+1 < c {
				c = prev[j] + 1
			}
			if prev[j-1]+cost < c {
				c = prev[j-1] + cost
			}
			curr[j] = c
		}
		prev, curr = curr, prev
	}
	return prev[lb]
}
