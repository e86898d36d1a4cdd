package core

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAssembleContextSentinelWhenEmpty(t *testing.T) {
	out := AssembleContext("anything", map[string][]VectorMatch{}, map[string]float64{})
	assert.Equal(t, noContextSentinel, out)
}

func TestAssembleContextSentinelWhenAllCollectionsEmpty(t *testing.T) {
	out := AssembleContext("anything", map[string][]VectorMatch{
		CollectionDocuments: {},
	}, map[string]float64{})
	assert.Equal(t, noContextSentinel, out)
}

func TestAssembleContextOrdersBySignalDescending(t *testing.T) {
	perCollection := map[string][]VectorMatch{
		CollectionDocuments:     {{ID: "d1", Document: "a document result"}},
		CollectionConversations: {{ID: "c1", Document: "a conversation result"}},
	}
	signalMap := map[string]float64{
		CollectionDocuments:     0.2,
		CollectionConversations: 0.9,
	}
	out := AssembleContext("q", perCollection, signalMap)

	convIdx := strings.Index(out, CollectionConversations)
	docIdx := strings.Index(out, CollectionDocuments)
	assert.Greater(t, docIdx, -1)
	assert.Greater(t, convIdx, -1)
	assert.Less(t, convIdx, docIdx, "the higher-signal collection should be emitted first")
}

func TestAssembleContextCapsResultsPerBlock(t *testing.T) {
	var matches []VectorMatch
	for i := 0; i < 10; i++ {
		matches = append(matches, VectorMatch{ID: "x", Document: "result content", Distance: float64(i)})
	}
	out := AssembleContext("q", map[string][]VectorMatch{CollectionDocuments: matches}, map[string]float64{CollectionDocuments: 0.5})
	assert.Equal(t, maxResultsPerBlock, strings.Count(out, "result content"))
	assert.Contains(t, out, "(3 result(s) from 1 collection(s))")
}

func TestAssembleContextTruncatesLongContent(t *testing.T) {
	long := strings.Repeat("x", maxContentChars+50)
	out := AssembleContext("q", map[string][]VectorMatch{
		CollectionDocuments: {{ID: "x", Document: long}},
	}, map[string]float64{CollectionDocuments: 0.5})
	assert.NotContains(t, out, strings.Repeat("x", maxContentChars+1))
}

func TestAssembleContextAnnotatesParsedTimestamp(t *testing.T) {
	out := AssembleContext("q", map[string][]VectorMatch{
		CollectionDocuments: {{ID: "x", Document: "content", Metadata: map[string]any{"timestamp": "2024-03-01T00:00:00Z"}}},
	}, map[string]float64{CollectionDocuments: 0.5})
	assert.Contains(t, out, "(2024-03-01)")
}

func TestAssembleContextOmitsAnnotationOnBadTimestamp(t *testing.T) {
	out := AssembleContext("q", map[string][]VectorMatch{
		CollectionDocuments: {{ID: "x", Document: "content", Metadata: map[string]any{"timestamp": "not-a-date"}}},
	}, map[string]float64{CollectionDocuments: 0.5})
	assert.NotContains(t, out, "not-a-date")
}

func TestFallbackListingNeverFails(t *testing.T) {
	blocks := []collectionBlock{{name: "x", matches: []VectorMatch{{Document: "some content"}}}}
	out := fallbackListing(blocks)
	assert.Contains(t, out, "some content")
}
