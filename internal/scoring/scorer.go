// Package scoring implements the Hybrid Scorer (C5): it fans out a query to
// the keyword and semantic indexes concurrently, fuses their scores, and
// applies the domain-boost and concept-coverage adjustments described in
// §4.5, degrading to a single-index result set (no halving) when one side is
// unavailable.
package scoring

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"audiencelens/internal/config"
	"audiencelens/internal/keyword"
	"audiencelens/internal/logging"
	"audiencelens/internal/models"
	"audiencelens/internal/semantic"
)

// maxConceptCoverageMatches caps how many distinct concept matches count
// toward the coverage bonus, per §4.5.
const maxConceptCoverageMatches = 5

// conceptCoverageBonusPerMatch is the per-match contribution to the coverage
// bonus (capped at maxConceptCoverageMatches matches).
const conceptCoverageBonusPerMatch = 0.02

// Scorer fuses keyword and semantic candidate sets for a processed query.
type Scorer struct {
	cfg      config.ScoringConfig
	keywords *keyword.Index
	semantic *semantic.Index
}

// New constructs a Scorer bound to a single catalog snapshot's indexes.
func New(cfg config.ScoringConfig, keywords *keyword.Index, sem *semantic.Index) *Scorer {
	return &Scorer{cfg: cfg, keywords: keywords, semantic: sem}
}

// Result is the fused outcome of a single Score call.
type Result struct {
	Candidates          []*models.Candidate
	SemanticUnavailable bool
}

// Score runs the keyword and semantic lookups concurrently via errgroup,
// fuses the two candidate sets by code, and returns them ordered by fused
// score descending (ties: keyword score descending, then code ascending).
// domainHint, when non-empty, must match a candidate's Variable.Domain for
// the domain boost to apply. matchedConcepts is the set of concept terms the
// query extracted, used for the coverage bonus.
func (s *Scorer) Score(ctx context.Context, tokens []string, queryText string, domainHint string, matchedConcepts []string, topK int) (*Result, error) {
	timer := logging.StartTimer(logging.CategoryScorer, "Score")
	defer timer.Stop()

	topK = s.clampTopK(topK)

	var keywordResults []*models.Candidate
	var semanticResults []*models.Candidate
	var semanticUnavailable bool

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		keywordResults = s.keywords.Search(gctx, tokens)
		return nil
	})
	g.Go(func() error {
		if s.semantic == nil {
			semanticUnavailable = true
			return nil
		}
		results, unavailable, err := s.semantic.Search(gctx, queryText, s.semanticTopN())
		semanticResults = results
		semanticUnavailable = unavailable
		if err != nil {
			logging.Get(logging.CategoryScorer).Warn("semantic search error, degrading to keyword-only: %v", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	fused := s.fuse(keywordResults, semanticResults, semanticUnavailable, domainHint, matchedConcepts)

	if len(fused) > topK {
		logging.ScorerDebug("clamping %d candidates to top_k=%d", len(fused), topK)
		fused = fused[:topK]
	}

	return &Result{Candidates: fused, SemanticUnavailable: semanticUnavailable}, nil
}

func (s *Scorer) semanticTopN() int {
	return 0 // let the semantic index apply its own configured default
}

func (s *Scorer) clampTopK(topK int) int {
	def := s.cfg.DefaultTopK
	if def <= 0 {
		def = 50
	}
	max := s.cfg.MaxTopK
	if max <= 0 {
		max = 200
	}
	if topK <= 0 {
		return def
	}
	if topK > max {
		logging.Get(logging.CategoryScorer).Warn("requested top_k=%d exceeds max_top_k=%d, clamping", topK, max)
		return max
	}
	return topK
}

// fuse merges keyword and semantic candidates keyed by variable code. When
// semantic is unavailable, fused_score falls back to the keyword score alone
// (no halving of the keyword weight) per §4.5's single-index degradation
// rule.
func (s *Scorer) fuse(kwResults, semResults []*models.Candidate, semanticUnavailable bool, domainHint string, matchedConcepts []string) []*models.Candidate {
	byCode := make(map[string]*models.Candidate)

	for _, c := range kwResults {
		cp := c.Clone()
		byCode[cp.Code] = cp
	}
	for _, c := range semResults {
		existing, ok := byCode[c.Code]
		if !ok {
			byCode[c.Code] = c.Clone()
			continue
		}
		existing.SemanticScore = c.SemanticScore
		if existing.SearchMethod != c.SearchMethod {
			existing.SearchMethod = models.SearchMethodHybrid
		}
	}

	wSem, wKw := s.fusionWeights(semanticUnavailable)

	concepts := make(map[string]bool, len(matchedConcepts))
	for _, c := range matchedConcepts {
		concepts[c] = true
	}

	out := make([]*models.Candidate, 0, len(byCode))
	for _, c := range byCode {
		fused := wKw*c.KeywordScore + wSem*c.SemanticScore

		if domainHint != "" && c.Variable != nil && c.Variable.Domain == domainHint {
			fused *= s.cfg.DomainBoost
		}

		matched := countMatchedConcepts(c, concepts)
		if matched > maxConceptCoverageMatches {
			matched = maxConceptCoverageMatches
		}
		fused += conceptCoverageBonusPerMatch * float64(matched)

		if fused > 1 {
			fused = 1
		}
		c.FusedScore = fused
		out = append(out, c)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].FusedScore != out[j].FusedScore {
			return out[i].FusedScore > out[j].FusedScore
		}
		if out[i].KeywordScore != out[j].KeywordScore {
			return out[i].KeywordScore > out[j].KeywordScore
		}
		return out[i].Code < out[j].Code
	})

	return out
}

// fusionWeights returns the (semantic, keyword) weight pair to apply. When
// the semantic index is unavailable, the keyword score is used unscaled
// (weight 1.0) rather than halved, so a keyword-only result set isn't
// artificially penalized relative to a hybrid one.
func (s *Scorer) fusionWeights(semanticUnavailable bool) (wSem, wKw float64) {
	if semanticUnavailable {
		return 0, 1
	}
	wSem, wKw = s.cfg.WeightSemantic, s.cfg.WeightKeyword
	if wSem == 0 && wKw == 0 {
		wSem, wKw = 0.7, 0.3
	}
	return wSem, wKw
}

func countMatchedConcepts(c *models.Candidate, concepts map[string]bool) int {
	if len(concepts) == 0 || c.Variable == nil {
		return 0
	}
	count := 0
	fields := []string{c.Variable.Category, c.Variable.Domain, c.Variable.Theme}
	for _, f := range fields {
		if concepts[f] {
			count++
		}
	}
	for _, kw := range c.MatchedKeywords {
		if concepts[kw] {
			count++
		}
	}
	return count
}
