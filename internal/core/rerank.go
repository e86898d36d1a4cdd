package core

import (
	"regexp"
	"sort"
	"strings"
)

// queryIntent is the regex-classified intent of a query, used by the
// re-ranker's semantic/contextual signal boosts (spec §4.7).
type queryIntent string

const (
	intentNone         queryIntent = ""
	intentPrice        queryIntent = "price"
	intentComparison   queryIntent = "comparison"
	intentSpec         queryIntent = "specification"
	intentAvailability queryIntent = "availability"
	intentCalculation  queryIntent = "calculation"
)

// IntentRule pairs a query intent with the regex that classifies it. Rules
// are checked in slice order; the first match wins (spec §9 OQ2: the
// intent-boost table is data, not inline control flow, so a caller can
// plug in a different domain's classification via a Reranker constructor
// option instead of editing this file).
type IntentRule struct {
	Intent  queryIntent
	Pattern *regexp.Regexp
}

// DefaultIntentRules is the spec's literal intent list: price, comparison,
// specification, availability, calculation, checked in that order.
func DefaultIntentRules() []IntentRule {
	return []IntentRule{
		{intentPrice, regexp.MustCompile(`(?i)\b(price|cost|cheap|expensive|how much|\$|fee|rate)\b`)},
		{intentComparison, regexp.MustCompile(`(?i)\b(compare|versus|vs\.?|difference|better|best|cheaper|which)\b`)},
		{intentSpec, regexp.MustCompile(`(?i)\b(spec|dimension|weight|size|capacity|feature|material)\b`)},
		{intentAvailability, regexp.MustCompile(`(?i)\b(available|in stock|stock|when can|lead time|ship)\b`)},
		{intentCalculation, regexp.MustCompile(`(?i)\b(total|sum|how many|calculate|average|percent|%)\b`)},
	}
}

var (
	priceTermPattern = regexp.MustCompile(`(?i)\b(price|cost|\$|fee|rate|usd|eur)\b`)
	digitPattern     = regexp.MustCompile(`\d`)
	numberPattern    = regexp.MustCompile(`-?\d+(\.\d+)?`)
	rowMarkerPattern = regexp.MustCompile(`(?m)^(Sheet:|Row:|\|.*\|)`)
)

func classifyIntent(query string, rules []IntentRule) queryIntent {
	for _, rule := range rules {
		if rule.Pattern.MatchString(query) {
			return rule.Intent
		}
	}
	return intentNone
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func isTabular(metadata map[string]any) bool {
	ct, _ := metadata["chunk_type"].(string)
	return ct == string(ChunkTypeSpreadsheetRow) || ct == string(ChunkTypeTable)
}

func countRowMarkers(content string) int {
	return len(rowMarkerPattern.FindAllString(content, -1))
}

func countDistinctNumbers(content string) int {
	matches := numberPattern.FindAllString(content, -1)
	seen := make(map[string]bool, len(matches))
	for _, m := range matches {
		seen[m] = true
	}
	return len(seen)
}

// semanticSignal scales the base vector similarity by intent-specific
// content boosts and a length multiplier (spec §4.7).
func semanticSignal(baseSimilarity float64, intent queryIntent, content string) float64 {
	score := baseSimilarity
	switch intent {
	case intentPrice:
		if digitPattern.MatchString(content) {
			score += 0.3
		}
		if priceTermPattern.MatchString(content) {
			score += 0.2
		}
	case intentComparison:
		if countRowMarkers(content) > 3 {
			score += 0.2
		}
	case intentCalculation:
		if countDistinctNumbers(content) >= 2 {
			score += 0.4
		}
	}
	switch {
	case len(content) < 50:
		score *= 0.8
	case len(content) > 5000:
		score *= 0.9
	}
	return clamp01(score)
}

// contextualSignal combines the lexical term-overlap ratio with a tabular
// content-type boost and a row-marker structural boost (spec §4.7).
func contextualSignal(query, content string, intent queryIntent, metadata map[string]any) float64 {
	score := termOverlapRatio(query, content)
	if isTabular(metadata) && (intent == intentPrice || intent == intentCalculation) {
		score += 0.3
	}
	if countRowMarkers(content) > 0 && intent == intentPrice {
		score += 0.2
	}
	return clamp01(score)
}

// structuralSignal rewards tabular, dense, and moderately-sized content
// independent of the query (spec §4.7).
func structuralSignal(content string, metadata map[string]any) float64 {
	score := 0.5
	if isTabular(metadata) {
		score += 0.2
	}
	if len(content) > 1000 {
		score += 0.1
	}
	rows := countRowMarkers(content)
	if rows >= 2 && rows <= 20 {
		score += 0.05
	}
	return clamp01(score)
}

// RerankCandidate is one item passed into Rerank: a vector match paired with
// its originating collection, plus the normalized similarity the caller
// computed via Similarity(distance).
type RerankCandidate struct {
	ID         string
	Collection string
	Content    string
	Metadata   map[string]any
	Similarity float64
}

// RerankedResult is a RerankCandidate annotated with its final score.
type RerankedResult struct {
	RerankCandidate
	FinalScore float64
}

// Reranker implements the re-ranker (C7): a pure function over (query,
// candidates) parameterized by an intent-rule table, in the teacher's
// struct-plus-constructor-option idiom (rag/reranker.go's RRFReranker).
type Reranker struct {
	intentRules []IntentRule
}

// RerankerOption configures a Reranker.
type RerankerOption func(*Reranker)

// WithIntentRules overrides the default intent-classification table.
func WithIntentRules(rules []IntentRule) RerankerOption {
	return func(r *Reranker) { r.intentRules = rules }
}

// NewReranker builds a Reranker with DefaultIntentRules unless overridden.
func NewReranker(opts ...RerankerOption) *Reranker {
	r := &Reranker{intentRules: DefaultIntentRules()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Rerank scores and sorts candidates by final score descending. It never
// removes candidates, only reorders and optionally truncates to limit. If
// fewer than two candidates are given, reranking is a no-op (spec §4.7).
// limit <= 0 means no truncation.
func (r *Reranker) Rerank(query string, candidates []RerankCandidate, limit int) []RerankedResult {
	results := make([]RerankedResult, len(candidates))
	if len(candidates) < 2 {
		for i, c := range candidates {
			results[i] = RerankedResult{RerankCandidate: c, FinalScore: c.Similarity}
		}
		return results
	}

	intent := classifyIntent(query, r.intentRules)
	for i, c := range candidates {
		semantic := semanticSignal(c.Similarity, intent, c.Content)
		contextual := contextualSignal(query, c.Content, intent, c.Metadata)
		structural := structuralSignal(c.Content, c.Metadata)
		original := clamp01(c.Similarity)
		final := 0.4*semantic + 0.3*contextual + 0.2*structural + 0.1*original
		results[i] = RerankedResult{RerankCandidate: c, FinalScore: final}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].FinalScore > results[j].FinalScore
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}

// normalizeQuery is the cache-key normalization shared by the hybrid
// retriever (spec §4.8): lowercased and trimmed.
func normalizeQuery(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}
