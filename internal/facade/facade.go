// Package facade implements the Retrieval Façade (C10): the single entry
// point exposing search, refine, fetch-by-id, category and stats, wiring
// together every other component (catalog, query processor, keyword and
// semantic indexes, hybrid scorer, similarity filter, session manager,
// search router and the resilience guards) behind one Service value built
// once at boot and handed explicitly to every constructor — no
// package-level singletons.
package facade

import (
	"context"
	"math"
	"sort"
	"sync/atomic"

	"audiencelens/internal/catalog"
	"audiencelens/internal/cluster"
	"audiencelens/internal/config"
	"audiencelens/internal/errs"
	"audiencelens/internal/keyword"
	"audiencelens/internal/logging"
	"audiencelens/internal/models"
	"audiencelens/internal/query"
	"audiencelens/internal/resilience"
	"audiencelens/internal/router"
	"audiencelens/internal/scoring"
	"audiencelens/internal/semantic"
	"audiencelens/internal/session"
	"audiencelens/internal/similarity"
)

// indexes bundles everything derived from a single catalog snapshot so it
// can be rebuilt and swapped atomically alongside a catalog reload,
// matching the catalog's own pointer-swap discipline (§5).
type indexes struct {
	snapshot *catalog.Snapshot
	keyword  *keyword.Index
	semantic *semantic.Index
	scorer   *scoring.Scorer
}

// Service is the single struct the rest of the process depends on. It is
// constructed once at boot and injected everywhere; there are no
// package-level singletons (§9 "process-wide state replacements").
type Service struct {
	cfg *config.Config

	cat       *catalog.Catalog
	processor *query.Processor
	similar   *similarity.Filter
	sessions  *session.Manager
	router    *router.Router
	guards    *resilience.Set
	clusterer cluster.Clusterer

	idx atomic.Pointer[indexes]
}

// New constructs a Service from cfg, cat and sem. sem may be nil (the
// semantic path starts permanently unavailable in that case). lexicon seeds
// the query processor's spell-corrector from the catalog's own keyword
// vocabulary.
func New(cfg *config.Config, cat *catalog.Catalog, sem *semantic.Index, lexicon []string) *Service {
	s := &Service{
		cfg:       cfg,
		cat:       cat,
		processor: query.New(cfg.Query, lexicon, DefaultConcepts(), DefaultSynonyms()),
		similar:   similarity.New(cfg.Similarity),
		sessions:  session.New(cfg.Session),
		router:    router.New(cfg.Router),
		guards:    resilience.NewSet(cfg.Resilience),
		clusterer: cluster.RoundRobinStub{},
	}
	s.rebuildIndexes(sem)
	return s
}

// rebuildIndexes builds a fresh keyword+semantic+scorer bundle over the
// catalog's current snapshot and swaps it in atomically.
func (s *Service) rebuildIndexes(sem *semantic.Index) {
	snap := s.cat.Snapshot()
	kw := keyword.Build(snap)
	scorer := scoring.New(s.cfg.Scoring, kw, sem)
	s.idx.Store(&indexes{snapshot: snap, keyword: kw, semantic: sem, scorer: scorer})
}

// Reload reloads the catalog and rebuilds every derived index atomically,
// then swaps the bundle in — in-flight requests keep using the bundle they
// started with (§5 read-consistent snapshots).
func (s *Service) Reload(ctx context.Context, sem *semantic.Index) error {
	// Catalog reloads go through the file-read Guard so repeated load
	// failures (corrupt columnar file, missing CSV fallback) trip the
	// breaker and short-circuit further reload attempts instead of retrying
	// a source that keeps failing.
	_, outcome := resilience.Call(ctx, s.guards.FileRead, "", func(callCtx context.Context) (struct{}, error) {
		return struct{}{}, s.cat.Reload(callCtx)
	})
	if !outcome.OK {
		return errs.Wrap(outcome.Kind, outcome.Message, nil)
	}
	s.rebuildIndexes(sem)
	return nil
}

// Sessions exposes the session manager for the HTTP layer's session
// endpoints.
func (s *Service) Sessions() *session.Manager { return s.sessions }

// Router exposes the search router for the HTTP layer's migration endpoints.
func (s *Service) Router() *router.Router { return s.router }

// Catalog exposes the underlying Catalog so cmd-level tooling can start its
// optional fsnotify watcher or trigger a manual Reload.
func (s *Service) Catalog() *catalog.Catalog { return s.cat }

// Filters narrows a search/refine/category request to variables sharing a
// facet value, applied per §6's request body.
type Filters struct {
	Theme    string
	Category string
}

// SearchRequest is the facade's internal representation of §6's search
// request body, after HTTP-layer defaulting/validation.
type SearchRequest struct {
	Query       string
	TopK        int
	UseSemantic bool
	UseKeyword  bool
	Filters     Filters
	UserID      string // for the search router's deterministic bucketing
}

// TopKUnspecified is the TopK value a caller passes to mean "no top_k was
// supplied at all" — distinct from an explicit 0, which §8's boundary rules
// still clamp to 1 with a warning. Only the HTTP DTO layer needs this: it's
// the one place an omitted JSON field and an explicit 0 would otherwise be
// indistinguishable.
const TopKUnspecified = math.MinInt

// MethodsUsed reports which retrieval paths actually contributed to a
// response, independent of what the caller requested — e.g. UseSemantic may
// be true in the request but Semantic false in the response if the
// embedding provider was unavailable (§4.10, §8 boundary behaviors).
type MethodsUsed struct {
	Keyword  bool `json:"keyword"`
	Semantic bool `json:"semantic"`
}

// SearchResponse is the facade's result shape, matching §4.10's
// results/total_found/query_context/methods_used schema.
type SearchResponse struct {
	Results      []*models.Candidate `json:"results"`
	TotalFound   int                 `json:"total_found"`
	QueryContext *models.Query       `json:"query_context"`
	MethodsUsed  MethodsUsed         `json:"methods_used"`
	Warnings     []string            `json:"warnings,omitempty"`
	Pipeline     router.Pipeline     `json:"pipeline,omitempty"`
}

// Search implements the façade's primary operation (§4.10). It validates
// and clamps the request, routes it between the legacy and unified
// pipelines (C8), runs the query processor and hybrid scorer, applies the
// similarity filter, and returns a paginated, deduplicated result set.
func (s *Service) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	timer := logging.StartTimer(logging.CategoryFacade, "Search")
	defer timer.Stop()

	if isBlank(req.Query) {
		return nil, errs.New(errs.KindInvalidQuery, "query must not be empty")
	}

	idx := s.idx.Load()
	if idx == nil {
		return nil, errs.New(errs.KindServiceUnavailable, "catalog not loaded")
	}

	var warnings []string
	topK, clampWarning := clampTopK(req.TopK, s.cfg.Scoring.DefaultTopK, s.cfg.Scoring.MaxTopK)
	if clampWarning != "" {
		warnings = append(warnings, clampWarning)
	}

	decision := s.router.Route(req.UserID)

	q := s.processor.Process(ctx, req.Query)

	tokens := keyword.Tokenize(q.Normalized)
	tokens = append(tokens, q.Expansions...)

	domainHint := ""
	if len(q.IntentTags) > 0 {
		domainHint = q.IntentTags[0]
	}
	conceptTerms := make([]string, 0, len(q.Concepts))
	for _, c := range q.Concepts {
		conceptTerms = append(conceptTerms, c.Term)
	}

	useKeyword := req.UseKeyword
	useSemantic := req.UseSemantic && decision.Pipeline == router.PipelineUnified

	scorer := idx.scorer
	if !useKeyword && !useSemantic {
		// Nothing requested: treat as keyword-only rather than returning an
		// empty result set outright, matching the facade's "never silently
		// drop a viable path" posture.
		useKeyword = true
	}
	effectiveScorer := scorer
	if !useKeyword || !useSemantic {
		effectiveScorer = scoring.New(scoringConfigFor(s.cfg.Scoring, useKeyword, useSemantic), idx.keyword, semanticOrNil(idx, useSemantic))
	}

	result, err := effectiveScorer.Score(ctx, tokens, q.Normalized, domainHint, conceptTerms, topK)
	if err != nil {
		return nil, err
	}

	q.SemanticUnavailable = result.SemanticUnavailable
	methods := MethodsUsed{Keyword: useKeyword, Semantic: useSemantic && !result.SemanticUnavailable}
	if req.UseSemantic && result.SemanticUnavailable {
		warnings = append(warnings, "semantic_unavailable")
	}

	candidates := applyFilters(result.Candidates, req.Filters)
	candidates = s.similar.Apply(candidates)

	if len(candidates) > topK {
		candidates = candidates[:topK]
	}

	logging.Facade("search query=%q pipeline=%s results=%d methods=%+v", req.Query, decision.Pipeline, len(candidates), methods)

	return &SearchResponse{
		Results:      candidates,
		TotalFound:   len(candidates),
		QueryContext: q,
		MethodsUsed:  methods,
		Warnings:     warnings,
		Pipeline:     decision.Pipeline,
	}, nil
}

// Refine implements refine(): like Search, but the session's
// already-confirmed variables are always merged into the query text;
// keepSelected does not change that.
func (s *Service) Refine(ctx context.Context, sessionID string, req SearchRequest, keepSelected bool) (*SearchResponse, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}

	// keepSelected is always honored: RefineQuery itself folds the session's
	// confirmed variables into the merged query text (§4.7); there is no
	// separate "discard prior selections" path in the state machine.
	_ = keepSelected
	sess, mergedQuery, err := s.sessions.RefineQuery(ctx, sessionID, req.Query)
	if err != nil {
		return nil, err
	}
	req.Query = mergedQuery

	resp, err := s.Search(ctx, req)
	if err != nil {
		return nil, err
	}

	codes := make([]string, 0, len(resp.Results))
	for _, c := range resp.Results {
		codes = append(codes, c.Code)
	}
	if err := s.sessions.StoreCandidates(sess.ID, codes); err != nil {
		logging.Get(logging.CategoryFacade).Warn("failed to store candidates for session %s: %v", sess.ID, err)
	}
	return resp, nil
}

// GetVariable implements get_variable(): round-trips to the same record a
// prior search's candidate embedded (§8 invariant 4), since both read
// through the same snapshot pointer.
func (s *Service) GetVariable(code string) (*models.Variable, error) {
	idx := s.idx.Load()
	if idx == nil {
		return nil, errs.New(errs.KindServiceUnavailable, "catalog not loaded")
	}
	v := idx.snapshot.Get(code)
	if v == nil {
		return nil, errs.New(errs.KindNotFound, "variable "+code+" not found")
	}
	return v, nil
}

// ByCategory implements by_category().
func (s *Service) ByCategory(category string, topK int) (*SearchResponse, error) {
	idx := s.idx.Load()
	if idx == nil {
		return nil, errs.New(errs.KindServiceUnavailable, "catalog not loaded")
	}
	topK, warning := clampTopK(topK, s.cfg.Scoring.DefaultTopK, s.cfg.Scoring.MaxTopK)

	vars := append([]*models.Variable(nil), idx.snapshot.ByCategory(category)...)
	sort.Slice(vars, func(i, j int) bool { return vars[i].Code < vars[j].Code })

	out := make([]*models.Candidate, 0, min(len(vars), topK))
	for _, v := range vars {
		if len(out) >= topK {
			break
		}
		out = append(out, &models.Candidate{
			Code:         v.Code,
			Variable:     v,
			FusedScore:   1,
			SearchMethod: models.SearchMethodKeyword,
		})
	}

	resp := &SearchResponse{Results: out, TotalFound: len(out)}
	if warning != "" {
		resp.Warnings = append(resp.Warnings, warning)
	}
	return resp, nil
}

// StatsResponse implements stats()'s response shape.
type StatsResponse struct {
	TotalVariables int                 `json:"total_variables"`
	ByTheme        map[string]int      `json:"by_theme"`
	ByProduct      map[string]int      `json:"by_product"`
	ByDomain       map[string]int      `json:"by_domain"`
	HasEmbeddings  bool                `json:"has_embeddings"`
	SourceFormat   catalog.SourceFormat `json:"source_format"`
	LoadDurationMS int64               `json:"load_duration_ms"`
	Config         StatsConfig         `json:"config"`
}

// StatsConfig surfaces the non-secret parts of the active configuration.
type StatsConfig struct {
	WeightSemantic    float64 `json:"weight_semantic"`
	WeightKeyword     float64 `json:"weight_keyword"`
	SimilarityEnabled bool    `json:"similarity_enabled"`
	RolloutPercentage int     `json:"rollout_percentage"`
}

// Stats implements stats().
func (s *Service) Stats() (*StatsResponse, error) {
	idx := s.idx.Load()
	if idx == nil {
		return nil, errs.New(errs.KindServiceUnavailable, "catalog not loaded")
	}
	snap := idx.snapshot
	return &StatsResponse{
		TotalVariables: snap.Count(),
		ByTheme:        snap.CountBy("theme"),
		ByProduct:      snap.CountBy("product"),
		ByDomain:       snap.CountBy("domain"),
		HasEmbeddings:  snap.HasEmbeddings,
		SourceFormat:   snap.SourceFormat,
		LoadDurationMS: snap.LoadDuration.Milliseconds(),
		Config: StatsConfig{
			WeightSemantic:    s.cfg.Scoring.WeightSemantic,
			WeightKeyword:     s.cfg.Scoring.WeightKeyword,
			SimilarityEnabled: s.cfg.Similarity.Enabled,
			RolloutPercentage: s.cfg.Router.RolloutPercentage,
		},
	}, nil
}

// ComputeSegments drives the session's computeSegments event, rehydrating
// the confirmed variable codes into full records for the clusterer.
func (s *Service) ComputeSegments(ctx context.Context, sessionID string) (*models.Session, error) {
	idx := s.idx.Load()
	if idx == nil {
		return nil, errs.New(errs.KindServiceUnavailable, "catalog not loaded")
	}
	return s.sessions.ComputeSegments(ctx, sessionID, func(ctx context.Context, confirmed []string) ([]models.Segment, error) {
		vars := make([]*models.Variable, 0, len(confirmed))
		for _, code := range confirmed {
			if v := idx.snapshot.Get(code); v != nil {
				vars = append(vars, v)
			}
		}
		return s.clusterer.Cluster(ctx, cluster.Request{
			SessionID:     sessionID,
			VariableCodes: confirmed,
			Variables:     vars,
		})
	})
}

func applyFilters(candidates []*models.Candidate, f Filters) []*models.Candidate {
	if f.Theme == "" && f.Category == "" {
		return candidates
	}
	out := make([]*models.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Variable == nil {
			continue
		}
		if f.Theme != "" && c.Variable.Theme != f.Theme {
			continue
		}
		if f.Category != "" && c.Variable.Category != f.Category {
			continue
		}
		out = append(out, c)
	}
	return out
}

// clampTopK enforces §4.10's "top_k outside [1,200] -> clamped silently and
// a warning added to response" rule. top_k == 0 is an explicit below-minimum
// value per §8's boundary behavior and is clamped to 1 with a warning, same
// as any other non-positive value; only TopKUnspecified (no top_k supplied
// at all) falls back to def without a warning.
func clampTopK(topK, def, max int) (int, string) {
	if def <= 0 {
		def = 50
	}
	if max <= 0 {
		max = 200
	}
	if topK == TopKUnspecified {
		return def, ""
	}
	if topK < 1 {
		return 1, "top_k below minimum, clamped to 1"
	}
	if topK > max {
		return max, "top_k above maximum, clamped to " + itoa(max)
	}
	return topK, ""
}

func scoringConfigFor(cfg config.ScoringConfig, useKeyword, useSemantic bool) config.ScoringConfig {
	out := cfg
	if !useSemantic {
		out.WeightSemantic, out.WeightKeyword = 0, 1
	} else if !useKeyword {
		out.WeightSemantic, out.WeightKeyword = 1, 0
	}
	return out
}

func semanticOrNil(idx *indexes, useSemantic bool) *semantic.Index {
	if !useSemantic {
		return nil
	}
	return idx.semantic
}

func isBlank(s string) bool {
	for _, r := range s {
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			return false
		}
	}
	return true
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := [20]byte{}
	i := len(digits)
	neg := n < 0
	if neg {
		n = -n
	}
	for n > 0 {
		i--
		digits[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		digits[i] = '-'
	}
	return string(digits[i:])
}
