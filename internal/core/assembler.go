package core

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

const (
	noContextSentinel  = "No relevant information was found for this query."
	maxResultsPerBlock = 3
	maxContentChars    = 300
)

// collectionBlock is one collection's contribution to the assembled
// context, ordered by signal_strength descending (spec §4.9).
type collectionBlock struct {
	name    string
	signal  float64
	matches []VectorMatch
}

// AssembleContext implements the context assembler (C9): produces a single
// human-readable string from {collection_name: [results], signal_map}.
// query is unused by the formatting rules themselves but kept for parity
// with the retriever's call site and future signal-aware formatting.
func AssembleContext(query string, perCollection map[string][]VectorMatch, signalMap map[string]float64) string {
	blocks := make([]collectionBlock, 0, len(perCollection))
	for name, matches := range perCollection {
		if len(matches) == 0 {
			continue
		}
		blocks = append(blocks, collectionBlock{name: name, signal: signalMap[name], matches: matches})
	}
	if len(blocks) == 0 {
		return noContextSentinel
	}

	sort.SliceStable(blocks, func(i, j int) bool {
		return blocks[i].signal > blocks[j].signal
	})

	out, ok := formatBlocks(blocks)
	if !ok {
		return fallbackListing(blocks)
	}
	if out == "" {
		return noContextSentinel
	}
	return out
}

// formatBlocks does the real work; ok=false signals a formatting failure
// that should fall back to the minimal listing (spec §4.9).
func formatBlocks(blocks []collectionBlock) (string, bool) {
	var b strings.Builder
	totalResults := 0
	contributingCollections := 0

	for _, block := range blocks {
		n := len(block.matches)
		if n > maxResultsPerBlock {
			n = maxResultsPerBlock
		}
		if n == 0 {
			continue
		}

		fmt.Fprintf(&b, "## %s (relevance: %.3f)\n", block.name, block.signal)
		emitted := 0
		for rank, m := range block.matches[:n] {
			content := truncateContent(m.Document, maxContentChars)
			line := fmt.Sprintf("%d. [%.3f] %s", rank+1, Similarity(m.Distance), content)
			if ts, ok := parseTimestamp(m.Metadata); ok {
				line += fmt.Sprintf(" (%s)", ts.Format("2006-01-02"))
			}
			b.WriteString(line)
			b.WriteString("\n")
			emitted++
		}
		if emitted > 0 {
			totalResults += emitted
			contributingCollections++
			b.WriteString("\n")
		}
	}

	if totalResults == 0 {
		return "", true
	}

	fmt.Fprintf(&b, "(%d result(s) from %d collection(s))\n", totalResults, contributingCollections)
	return b.String(), true
}

// fallbackListing is the minimal listing used when formatBlocks fails
// (spec §4.9) — it never fails itself, since it performs no parsing.
func fallbackListing(blocks []collectionBlock) string {
	var b strings.Builder
	count := 0
	for _, block := range blocks {
		for _, m := range block.matches {
			content := truncateContent(m.Document, maxContentChars)
			b.WriteString("- ")
			b.WriteString(content)
			b.WriteString("\n")
			count++
		}
	}
	if count == 0 {
		return noContextSentinel
	}
	return b.String()
}

func truncateContent(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// parseTimestamp leniently parses a "timestamp" metadata field as ISO-ish
// time. Absence or a malformed value is not an error: the annotation is
// simply omitted (spec §4.9).
func parseTimestamp(metadata map[string]any) (time.Time, bool) {
	raw, ok := metadata["timestamp"]
	if !ok {
		return time.Time{}, false
	}
	s, ok := raw.(string)
	if !ok || s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
