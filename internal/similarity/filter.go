// Package similarity implements the Similarity Filter (C6): it clusters
// near-duplicate candidate names by Jaro-Winkler similarity and keeps at
// most MaxPerCluster representatives per cluster, preserving the incoming
// (fused-score) order and never dropping a cluster's top-ranked member.
//
// No third-party Jaro-Winkler implementation is wired into this module
// (see DESIGN.md), so the metric is implemented directly here in the same
// small, self-contained style as this module's other string-distance
// helpers (internal/query's Levenshtein, internal/keyword's editDistance).
package similarity

import (
	"strings"

	"audiencelens/internal/config"
	"audiencelens/internal/logging"
	"audiencelens/internal/models"
)

// Filter deduplicates near-identical candidates by name similarity.
type Filter struct {
	cfg config.SimilarityConfig
}

// New constructs a Filter from the similarity configuration.
func New(cfg config.SimilarityConfig) *Filter {
	return &Filter{cfg: cfg}
}

// Apply clusters candidates whose Variable.Name exceeds the configured
// Jaro-Winkler threshold and keeps at most MaxPerCluster per cluster,
// always keeping the first (highest-ranked) member of each cluster.
// Candidates not clustered with anything pass through unchanged. Order is
// preserved: the output is a stable filtering of the input, never a
// re-sort.
func (f *Filter) Apply(candidates []*models.Candidate) []*models.Candidate {
	if !f.cfg.Enabled || len(candidates) == 0 {
		return candidates
	}

	threshold := f.cfg.Threshold
	if threshold <= 0 {
		threshold = 0.85
	}
	maxPerCluster := f.cfg.MaxPerCluster
	if maxPerCluster <= 0 {
		maxPerCluster = 2
	}

	clusterCounts := make([]int, 0, len(candidates))
	clusterOf := make([]int, len(candidates))
	for i := range clusterOf {
		clusterOf[i] = -1
	}

	out := make([]*models.Candidate, 0, len(candidates))
	dropped := 0

	for i, c := range candidates {
		name := candidateName(c)
		cluster := -1
		for j := 0; j < i; j++ {
			if clusterOf[j] == -1 {
				continue
			}
			if JaroWinkler(name, candidateName(candidates[j])) >= threshold {
				cluster = clusterOf[j]
				break
			}
		}

		if cluster == -1 {
			cluster = len(clusterCounts)
			clusterCounts = append(clusterCounts, 0)
		}
		clusterOf[i] = cluster

		if clusterCounts[cluster] < maxPerCluster {
			clusterCounts[cluster]++
			out = append(out, c)
		} else {
			dropped++
		}
	}

	if dropped > 0 {
		logging.SimilarityDebug("filtered %d near-duplicate candidates (threshold=%.2f, max_per_cluster=%d)",
			dropped, threshold, maxPerCluster)
	}
	return out
}

func candidateName(c *models.Candidate) string {
	if c.Variable == nil {
		return c.Code
	}
	return strings.ToLower(c.Variable.Name)
}

// JaroWinkler computes the Jaro-Winkler similarity of a and b, in [0, 1].
func JaroWinkler(a, b string) float64 {
	j := jaro(a, b)
	if j <= 0 {
		return j
	}

	prefix := 0
	maxPrefix := 4
	for prefix < len(a) && prefix < len(b) && prefix < maxPrefix && a[prefix] == b[prefix] {
		prefix++
	}

	const scalingFactor = 0.1
	return j + float64(prefix)*scalingFactor*(1-j)
}

func jaro(a, b string) float64 {
	la, lb := len(a), len(b)
	if la == 0 && lb == 0 {
		return 1
	}
	if la == 0 || lb == 0 {
		return 0
	}

	matchDistance := max(la, lb)/2 - 1
	if matchDistance < 0 {
		matchDistance = 0
	}

	aMatches := make([]bool, la)
	bMatches := make([]bool, lb)

	matches := 0
	for i := 0; i < la; i++ {
		start := i - matchDistance
		if start < 0 {
			start = 0
		}
		end := i + matchDistance + 1
		if end > lb {
			end = lb
		}
		for j := start; j < end; j++ {
			if bMatches[j] || a[i] != b[j] {
				continue
			}
			aMatches[i] = true
			bMatches[j] = true
			matches++
			break
		}
	}

	if matches == 0 {
		return 0
	}

	transpositions := 0
	k := 0
	for i := 0; i < la; i++ {
		if !aMatches[i] {
			continue
		}
		for !bMatches[k] {
			k++
		}
		if a[i] != b[k] {
			transpositions++
		}
		k++
	}

	m := float64(matches)
	return (m/float64(la) + m/float64(lb) + (m-float64(transpositions)/2)/m) / 3
}
