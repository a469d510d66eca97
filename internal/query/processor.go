// Package query implements the Query Processor (C2): a pipeline of optional,
// independently disablable stages that turns raw user text into a
// structured models.Query. Stages 3-4 (numeric and concept extraction) are
// the "NLP-backed" stages that must degrade gracefully under a time budget
// rather than block; everything else is cheap, synchronous string
// processing.
package query

import (
	"context"
	"regexp"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"audiencelens/internal/config"
	"audiencelens/internal/logging"
	"audiencelens/internal/models"
)

// Processor runs the normalize -> spell-correct -> numeric-extraction ->
// concept-extraction -> synonym-expansion -> intent-classification pipeline.
type Processor struct {
	cfg config.QueryConfig

	lexicon   map[string]bool   // known tokens, derived from catalog keywords, for spell-correction
	concepts  map[string]models.ConceptCategory // term -> concept category
	synonyms  map[string][]string               // term -> up to k synonyms
	intentDomains map[string][]models.ConceptCategory // domain -> concept categories that count toward it
}

// New constructs a Processor. lexicon, concepts and synonyms are data, not
// logic — they are supplied by the caller (typically built from the loaded
// catalog's keyword set plus a static concept/synonym map) so that tests can
// parameterize over them instead of hard-coding a specific vocabulary.
func New(cfg config.QueryConfig, lexicon []string, concepts map[string]models.ConceptCategory, synonyms map[string][]string) *Processor {
	lex := make(map[string]bool, len(lexicon))
	for _, w := range lexicon {
		lex[strings.ToLower(w)] = true
	}
	return &Processor{
		cfg:      cfg,
		lexicon:  lex,
		concepts: concepts,
		synonyms: synonyms,
		intentDomains: defaultIntentDomains(),
	}
}

// defaultIntentDomains maps a handful of seed domain tags onto the concept
// categories that, at >= 2 matches, classify a query into that domain. This
// is intentionally small and replaceable — it's data the deployer tunes.
func defaultIntentDomains() map[string][]models.ConceptCategory {
	return map[string][]models.ConceptCategory{
		"automotive":  {models.ConceptBehavioral, models.ConceptDemographic},
		"health":      {models.ConceptDemographic, models.ConceptPsychographic},
		"immigration": {models.ConceptDemographic, models.ConceptGeographic},
	}
}

var (
	punctRe     = regexp.MustCompile(`[^\p{L}\p{N}\s-]+`)
	whitespaceRe = regexp.MustCompile(`\s+`)

	ageRangeRe   = regexp.MustCompile(`(?i)\bage[sd]?\s*(\d{1,3})\s*(?:-|to|–)\s*(\d{1,3})\b`)
	ageOverRe    = regexp.MustCompile(`(?i)\bage[sd]?\s*(\d{1,3})\+`)
	numRangeRe   = regexp.MustCompile(`\b(\d{1,3})\s*(?:-|to|–)\s*(\d{1,3})\b`)
	incomeOverRe = regexp.MustCompile(`(?i)\bover\s*\$?\s*(\d+(?:\.\d+)?)\s*k\b`)
	percentRe    = regexp.MustCompile(`\b(\d{1,3}(?:\.\d+)?)\s*%`)
)

// Process runs the full pipeline within ctx's deadline. If the NLP-backed
// stages (numeric/concept extraction) are disabled or fail to produce a
// result within cfg.NLPInitBudget, Process still returns a valid Query using
// only normalize/spell-correct/synonym-expansion, with Degraded=true.
func (p *Processor) Process(ctx context.Context, raw string) *models.Query {
	timer := logging.StartTimer(logging.CategoryQuery, "Process")
	defer timer.Stop()

	q := &models.Query{Raw: raw}
	q.Normalized = p.normalize(raw)
	q.Normalized = p.spellCorrect(q.Normalized)

	nlpDone := make(chan struct{})
	var numeric []models.NumericRange
	var concepts []models.Concept

	go func() {
		defer close(nlpDone)
		numeric = p.extractNumeric(q.Normalized)
		concepts = p.extractConcepts(q.Normalized)
	}()

	if !p.cfg.DisableNLP {
		budget := p.cfg.NLPInitBudget
		if budget <= 0 {
			budget = 5 * time.Second
		}
		select {
		case <-nlpDone:
			q.NumericRanges = numeric
			q.Concepts = concepts
		case <-time.After(budget):
			logging.Get(logging.CategoryQuery).Warn("NLP stages exceeded budget %v, degrading", budget)
			q.Degraded = true
		case <-ctx.Done():
			q.Degraded = true
		}
	} else {
		q.Degraded = true
	}

	q.Expansions = p.expandSynonyms(q.Normalized)
	q.IntentTags = p.classifyIntent(q.Concepts)

	logging.QueryDebug("processed query: normalized=%q degraded=%v concepts=%d numeric=%d intents=%v",
		q.Normalized, q.Degraded, len(q.Concepts), len(q.NumericRanges), q.IntentTags)
	return q
}

// normalize lowercases, applies Unicode NFKC, collapses whitespace, and
// strips punctuation except hyphens inside compound words.
func (p *Processor) normalize(raw string) string {
	s := norm.NFKC.String(raw)
	s = strings.ToLower(s)
	s = punctRe.ReplaceAllString(s, " ")
	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// spellCorrect replaces tokens of length >= 4 that are not in the lexicon
// with the closest lexicon entry at Levenshtein distance <= cfg's max edit.
// When several entries are equally close, which one is chosen is not
// defined.
func (p *Processor) spellCorrect(normalized string) string {
	if len(p.lexicon) == 0 {
		return normalized
	}
	maxEdit := p.cfg.SpellCorrectMaxEdit
	if maxEdit <= 0 {
		maxEdit = 2
	}
	tokens := strings.Fields(normalized)
	for i, tok := range tokens {
		if len(tok) < 4 || p.lexicon[tok] {
			continue
		}
		best := ""
		bestDist := maxEdit + 1
		for cand := range p.lexicon {
			if abs(len(cand)-len(tok)) > maxEdit {
				continue
			}
			d := levenshtein(tok, cand)
			if d < bestDist {
				bestDist = d
				best = cand
			}
		}
		if best != "" && bestDist <= maxEdit {
			tokens[i] = best
		}
	}
	return strings.Join(tokens, " ")
}

// extractNumeric recognizes age/income/percentage ranges via regex.
func (p *Processor) extractNumeric(normalized string) []models.NumericRange {
	var out []models.NumericRange
	for _, m := range ageRangeRe.FindAllStringSubmatch(normalized, -1) {
		out = append(out, models.NumericRange{FieldHint: "age", Low: atof(m[1]), High: atof(m[2])})
	}
	for _, m := range ageOverRe.FindAllStringSubmatch(normalized, -1) {
		out = append(out, models.NumericRange{FieldHint: "age", Low: atof(m[1]), High: 150})
	}
	for _, m := range incomeOverRe.FindAllStringSubmatch(normalized, -1) {
		out = append(out, models.NumericRange{FieldHint: "income", Low: atof(m[1]) * 1000, High: 0})
	}
	for _, m := range percentRe.FindAllStringSubmatch(normalized, -1) {
		out = append(out, models.NumericRange{FieldHint: "percentage", Low: atof(m[1]), High: atof(m[1])})
	}
	if len(out) == 0 {
		for _, m := range numRangeRe.FindAllStringSubmatch(normalized, -1) {
			out = append(out, models.NumericRange{FieldHint: "", Low: atof(m[1]), High: atof(m[2])})
		}
	}
	return out
}

// extractConcepts looks up each token against the concept dictionary.
func (p *Processor) extractConcepts(normalized string) []models.Concept {
	var out []models.Concept
	seen := make(map[string]bool)
	for _, tok := range strings.Fields(normalized) {
		if cat, ok := p.concepts[tok]; ok && !seen[tok] {
			seen[tok] = true
			out = append(out, models.Concept{Term: tok, Category: cat})
		}
	}
	return out
}

// expandSynonyms contributes up to k synonyms per surface token.
func (p *Processor) expandSynonyms(normalized string) []string {
	k := p.cfg.SynonymExpansionK
	if k <= 0 {
		k = 5
	}
	seen := make(map[string]bool)
	var out []string
	for _, tok := range strings.Fields(normalized) {
		syns := p.synonyms[tok]
		for i, s := range syns {
			if i >= k {
				break
			}
			if !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
	}
	return out
}

// classifyIntent tags the query with a domain when >= 2 of its concepts
// belong to that domain's configured category set.
func (p *Processor) classifyIntent(concepts []models.Concept) []string {
	if len(concepts) == 0 {
		return nil
	}
	counts := make(map[models.ConceptCategory]int)
	for _, c := range concepts {
		counts[c.Category]++
	}
	var tags []string
	for domain, cats := range p.intentDomains {
		matches := 0
		for _, cat := range cats {
			matches += counts[cat]
		}
		if matches >= 2 {
			tags = append(tags, domain)
		}
	}
	return tags
}

func atof(s string) float64 {
	var f float64
	var sign float64 = 1
	i := 0
	if i < len(s) && s[i] == '-' {
		sign = -1
		i++
	}
	for ; i < len(s); i++ {
		c := s[i]
		if c == '.' {
			i++
			frac := 0.1
			for ; i < len(s) && unicode.IsDigit(rune(s[i])); i++ {
				f += float64(s[i]-'0') * frac
				frac /= 10
			}
			break
		}
		if !unicode.IsDigit(rune(c)) {
			break
		}
		f = f*10 + float64(c-'0')
	}
	return f * sign
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// levenshtein computes edit distance between two strings.
func levenshtein(a, b string) int {
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
			curr[j] = min3(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[lb]
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}
