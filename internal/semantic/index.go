// Package semantic implements the Semantic Index (C4): a dense-vector
// nearest-neighbor search over the catalog's variable embeddings. It prefers
// ANN search through a vec0 virtual table when one is registered (sqlite-vec's
// cgo bindings with the sqlite_vec tag, see init_vec.go, or the pure-Go
// stand-in in driver_pure.go for non-cgo builds) and falls back to
// brute-force cosine similarity otherwise.
package semantic

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"audiencelens/internal/catalog"
	"audiencelens/internal/config"
	"audiencelens/internal/embedding"
	"audiencelens/internal/logging"
	"audiencelens/internal/models"
	"audiencelens/internal/resilience"
)

// retry budget for query-time embedding calls, per §4.4.
const (
	retryBase  = 200 * time.Millisecond
	retryCap   = 2 * time.Second
	retryCount = 2
)

// Index holds a snapshot's embedded variables plus whichever search backend
// is available: sqlite-vec ANN, or brute-force cosine over the in-memory
// vector slice.
type Index struct {
	snapshot *catalog.Snapshot
	engine   embedding.EmbeddingEngine
	cfg      config.EmbeddingConfig
	res      config.ResilienceConfig

	codes   []string
	vectors [][]float32
	dims    int

	db         *sql.DB
	vecEnabled bool

	guard *resilience.Guard

	mu sync.RWMutex
}

// Build constructs a semantic Index over every embedded variable in snap.
// engine may be nil, in which case the index always reports itself
// unavailable and Search degrades to "no semantic contribution" rather than
// erroring — callers fall back to keyword-only results (§4.9).
func Build(snap *catalog.Snapshot, engine embedding.EmbeddingEngine, cfg config.EmbeddingConfig, res config.ResilienceConfig) *Index {
	timer := logging.StartTimer(logging.CategorySemantic, "Build")
	defer timer.Stop()

	idx := &Index{
		snapshot: snap,
		engine:   engine,
		cfg:      cfg,
		res:      res,
		dims:     snap.Dimensions,
		guard:    resilience.NewGuard(resilience.ResourceEmbedding, res.EmbeddingTimeout, res),
	}

	for _, v := range snap.Iterate() {
		if !v.HasEmbedding() {
			continue
		}
		idx.codes = append(idx.codes, v.Code)
		idx.vectors = append(idx.vectors, v.Embedding)
	}

	if idx.dims == 0 && len(idx.vectors) > 0 {
		idx.dims = len(idx.vectors[0])
	}

	logging.Semantic("semantic index built: %d embedded variables (dims=%d)", len(idx.codes), idx.dims)

	if len(idx.vectors) > 0 {
		idx.initVecStore()
	}

	return idx
}

// Unavailable reports whether this index has no usable query path: either no
// embedding engine was configured, or the snapshot carries no embeddings.
func (idx *Index) Unavailable() bool {
	return idx.engine == nil || len(idx.vectors) == 0
}

// Search embeds queryText (with retry/backoff on provider failure) and
// returns the topN nearest variables by cosine similarity, mapped to
// sem_score = (similarity+1)/2 per §4.4. The second return value reports
// whether the semantic path was unavailable for this call (no engine, no
// embedded variables, or embedding failed after retries) — callers should
// set the response's semantic_unavailable flag and proceed keyword-only.
func (idx *Index) Search(ctx context.Context, queryText string, topN int) ([]*models.Candidate, bool, error) {
	timer := logging.StartTimer(logging.CategorySemantic, "Search")
	defer timer.Stop()

	if idx.Unavailable() {
		logging.SemanticWarn("semantic search unavailable: no engine or no embedded variables")
		return nil, true, nil
	}

	if topN <= 0 {
		topN = idx.cfg.TopN
	}
	if topN <= 0 {
		topN = 200
	}

	queryVec, err := idx.embedWithRetry(ctx, queryText)
	if err != nil {
		logging.Get(logging.CategorySemantic).Error("query embedding failed after retries: %v", err)
		return nil, true, err
	}

	idx.mu.RLock()
	vecEnabled := idx.vecEnabled
	idx.mu.RUnlock()

	if vecEnabled {
		results, err := idx.searchVec(ctx, queryVec, topN)
		if err == nil {
			return results, false, nil
		}
		logging.Get(logging.CategorySemantic).Warn("sqlite-vec search failed, falling back to brute force: %v", err)
	}

	return idx.searchBruteForce(queryVec, topN), false, nil
}

func (idx *Index) searchBruteForce(queryVec []float32, topN int) []*models.Candidate {
	top, err := embedding.FindTopK(queryVec, idx.vectors, topN)
	if err != nil {
		logging.Get(logging.CategorySemantic).Error("brute-force search failed: %v", err)
		return nil
	}

	out := make([]*models.Candidate, 0, len(top))
	for _, r := range top {
		code := idx.codes[r.Index]
		v := idx.snapshot.Get(code)
		if v == nil {
			continue
		}
		out = append(out, &models.Candidate{
			Code:          code,
			Variable:      v,
			SemanticScore: semScore(r.Similarity),
			SearchMethod:  models.SearchMethodSemantic,
		})
	}
	return out
}

// semScore maps a [-1, 1] cosine similarity onto a [0, 1] score, per §4.4.
func semScore(similarity float64) float64 {
	s := (similarity + 1) / 2
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

// embedWithRetry embeds text, retrying up to retryCount times with
// exponential backoff (base retryBase, capped at retryCap) plus jitter, on
// provider failure.
func (idx *Index) embedWithRetry(ctx context.Context, text string) ([]float32, error) {
	taskType := embedding.SelectTaskType(embedding.ContentTypeQuery)

	var lastErr error
	for attempt := 0; attempt <= retryCount; attempt++ {
		if attempt > 0 {
			delay := backoffDelay(attempt)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		// Every attempt runs through the embedding Guard: once the provider
		// has failed past its cumulative budget the breaker opens and
		// subsequent attempts (here and from concurrent callers) fail fast
		// instead of burning the retry budget against a known-dead provider.
		vec, outcome := resilience.Call(ctx, idx.guard, "", func(callCtx context.Context) ([]float32, error) {
			if taskAware, ok := idx.engine.(embedding.TaskTypeAwareEngine); ok {
				return taskAware.EmbedWithTaskType(callCtx, text, taskType)
			}
			return idx.engine.Embed(callCtx, text)
		})
		if outcome.OK {
			return vec, nil
		}
		lastErr = fmt.Errorf("%s: %s", outcome.Kind, outcome.Message)
		logging.SemanticWarn("embed attempt %d/%d failed: %v", attempt+1, retryCount+1, lastErr)
		if idx.guard.Disabled() {
			break
		}
	}
	return nil, fmt.Errorf("embedding failed after %d attempts: %w", retryCount+1, lastErr)
}

func backoffDelay(attempt int) time.Duration {
	d := retryBase * time.Duration(1<<uint(attempt-1))
	if d > retryCap {
		d = retryCap
	}
	jitter := time.Duration(rand.Int63n(int64(d) / 2))
	return d/2 + jitter
}

// Dimensions returns the vector width this index was built with.
func (idx *Index) Dimensions() int {
	return idx.dims
}

// Count returns the number of embedded variables indexed.
func (idx *Index) Count() int {
	return len(idx.codes)
}
