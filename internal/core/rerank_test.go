package core

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRerankNoOpUnderTwoCandidates(t *testing.T) {
	r := NewReranker()

	empty := r.Rerank("price of widgets", nil, 5)
	assert.Empty(t, empty)

	one := r.Rerank("price of widgets", []RerankCandidate{
		{ID: "a", Content: "widgets cost $10", Similarity: 0.42},
	}, 5)
	require.Len(t, one, 1)
	assert.Equal(t, 0.42, one[0].FinalScore)
}

func TestRerankNeverDropsCandidates(t *testing.T) {
	r := NewReranker()
	candidates := []RerankCandidate{
		{ID: "a", Content: "the quick brown fox", Similarity: 0.1},
		{ID: "b", Content: "jumps over the lazy dog", Similarity: 0.2},
		{ID: "c", Content: "completely unrelated filler text", Similarity: 0.05},
	}
	ranked := r.Rerank("fox dog", candidates, 0)
	assert.Len(t, ranked, len(candidates))
}

func TestRerankTruncatesToLimit(t *testing.T) {
	r := NewReranker()
	candidates := []RerankCandidate{
		{ID: "a", Content: "alpha", Similarity: 0.9},
		{ID: "b", Content: "beta", Similarity: 0.5},
		{ID: "c", Content: "gamma", Similarity: 0.1},
	}
	ranked := r.Rerank("alpha beta gamma", candidates, 2)
	assert.Len(t, ranked, 2)
}

func TestRerankOrdersByFinalScoreDescending(t *testing.T) {
	r := NewReranker()
	candidates := []RerankCandidate{
		{ID: "low", Content: "nothing relevant here at all", Similarity: 0.1},
		{ID: "high", Content: "the price is $99.99, a great rate", Similarity: 0.6,
			Metadata: map[string]any{"chunk_type": "spreadsheet_row"}},
	}
	ranked := r.Rerank("what is the price?", candidates, 0)
	require.Len(t, ranked, 2)
	assert.Equal(t, "high", ranked[0].ID)
	assert.Greater(t, ranked[0].FinalScore, ranked[1].FinalScore)
}

func TestClassifyIntentFirstMatchWins(t *testing.T) {
	rules := DefaultIntentRules()
	assert.Equal(t, intentPrice, classifyIntent("how much does it cost?", rules))
	assert.Equal(t, intentComparison, classifyIntent("compare these two plans", rules))
	assert.Equal(t, intentSpec, classifyIntent("what is the weight and dimension?", rules))
	assert.Equal(t, intentAvailability, classifyIntent("is it in stock?", rules))
	assert.Equal(t, intentCalculation, classifyIntent("what is the total sum?", rules))
	assert.Equal(t, intentNone, classifyIntent("tell me a story", rules))
}

func TestWithIntentRulesOverridesDefault(t *testing.T) {
	custom := []IntentRule{
		{Intent: queryIntent("custom"), Pattern: regexp.MustCompile(`(?i)\bfoo\b`)},
	}
	r := NewReranker(WithIntentRules(custom))
	assert.Equal(t, queryIntent("custom"), classifyIntent("say foo now", r.intentRules))
	assert.Equal(t, intentNone, classifyIntent("how much does it cost", r.intentRules))
}

func TestSemanticSignalClampedToUnitInterval(t *testing.T) {
	score := semanticSignal(0.95, intentPrice, "this costs $1000 at a great rate")
	assert.LessOrEqual(t, score, 1.0)
	assert.GreaterOrEqual(t, score, 0.0)
}

func TestStructuralSignalRewardsTabularContent(t *testing.T) {
	tabular := structuralSignal("Sheet: 'Prices'. Row: 2. 'Item': 'Widget'", map[string]any{"chunk_type": "spreadsheet_row"})
	plain := structuralSignal("just some prose", map[string]any{"chunk_type": "paragraph"})
	assert.Greater(t, tabular, plain)
}

func TestNormalizeQueryLowercasesAndTrims(t *testing.T) {
	assert.Equal(t, "hello world", normalizeQuery("  Hello World  "))
}

