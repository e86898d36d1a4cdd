package core

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// TextChunkerConfig holds the parameters of spec §4.4's text chunker.
type TextChunkerConfig struct {
	MaxChunkSize int // tokens, default 1000
	MinChunkSize int // tokens, default 100
	OverlapSize  int // words carried over from the previous chunk, default 100; <= 0 means 15
}

// DefaultTextChunkerConfig returns the spec-default parameters.
func DefaultTextChunkerConfig() TextChunkerConfig {
	return TextChunkerConfig{MaxChunkSize: 1000, MinChunkSize: 100, OverlapSize: 100}
}

// TokenCounter counts the approximate or exact number of tokens in a
// string. Grounded on the teacher's TokenCounter interface
// (DefaultTokenCounter/TikTokenCounter in the moved-then-replaced
// rag/chunk.go).
type TokenCounter interface {
	Count(text string) int
}

// ApproxTokenCounter implements spec §4.4's len(text)/4 token approximation,
// the default used for chunk-size decisions and stored token-count metadata.
type ApproxTokenCounter struct{}

func (ApproxTokenCounter) Count(text string) int {
	n := len(text) / 4
	if n == 0 && text != "" {
		n = 1
	}
	return n
}

// TikTokenCounter offers exact token counts via tiktoken-go, for callers
// that want a precision counter instead of the spec's approximation (e.g.
// a caller billing against an actual model's tokenizer).
type TikTokenCounter struct {
	tke *tiktoken.Tiktoken
}

// NewTikTokenCounter builds a TikTokenCounter for the given encoding
// ("cl100k_base" is the common default for recent OpenAI-compatible
// models).
func NewTikTokenCounter(encoding string) (*TikTokenCounter, error) {
	tke, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to get encoding: %w", err)
	}
	return &TikTokenCounter{tke: tke}, nil
}

func (t *TikTokenCounter) Count(text string) int {
	return len(t.tke.Encode(text, nil, nil))
}

var (
	headingLinePattern   = regexp.MustCompile(`(?m)^(#{1,6}\s|\d+\.\s)`)
	sentenceBoundaryPattern = regexp.MustCompile(`(?:[.!?])\s+`)
)

type textSection struct {
	content string
	heading string
}

// splitSections segments text by double-newline paragraph breaks, starting
// a new section at markdown-header or numbered-list lines (spec §4.4 step 2).
func splitSections(text string) []textSection {
	paragraphs := strings.Split(text, "\n\n")
	var sections []textSection
	var current strings.Builder
	var currentHeading string

	flush := func() {
		if current.Len() > 0 {
			sections = append(sections, textSection{content: strings.TrimSpace(current.String()), heading: currentHeading})
			current.Reset()
		}
	}

	for _, para := range paragraphs {
		trimmed := strings.TrimSpace(para)
		if trimmed == "" {
			continue
		}
		if headingLinePattern.MatchString(trimmed) {
			flush()
			firstLine := strings.SplitN(trimmed, "\n", 2)[0]
			currentHeading = strings.TrimSpace(headingLinePattern.ReplaceAllString(firstLine, ""))
			current.WriteString(trimmed)
			continue
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(trimmed)
	}
	flush()

	if len(sections) == 0 && strings.TrimSpace(text) != "" {
		sections = append(sections, textSection{content: strings.TrimSpace(text)})
	}
	return sections
}

func splitSentences(text string) []string {
	indices := sentenceBoundaryPattern.FindAllStringIndex(text, -1)
	if len(indices) == 0 {
		return []string{text}
	}
	var sentences []string
	start := 0
	for _, idx := range indices {
		sentences = append(sentences, text[start:idx[1]])
		start = idx[1]
	}
	if start < len(text) {
		sentences = append(sentences, text[start:])
	}
	return sentences
}

// lastWords returns the last n whitespace-delimited words of s, for
// prepending as overlap onto the next chunk.
func lastWords(s string, n int) string {
	words := strings.Fields(s)
	if len(words) <= n {
		return s
	}
	return strings.Join(words[len(words)-n:], " ")
}

// ChunkText implements spec §4.4's text chunker: whole-document short
// circuit, section segmentation, per-section sentence-packing with an
// OverlapSize-word overlap, and contiguous chunk_index/chunk_count metadata.
func ChunkText(text string, cfg TextChunkerConfig, counter TokenCounter) []Chunk {
	if counter == nil {
		counter = ApproxTokenCounter{}
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var raw []Chunk

	if counter.Count(text) <= cfg.MaxChunkSize {
		raw = append(raw, Chunk{Content: text, Metadata: map[string]any{"chunk_type": string(ChunkTypeSmart)}})
	} else {
		for _, section := range splitSections(text) {
			meta := map[string]any{"chunk_type": string(ChunkTypeSection)}
			if section.heading != "" {
				meta["heading"] = section.heading
			}
			tokenCount := counter.Count(section.content)
			if tokenCount <= cfg.MaxChunkSize {
				raw = append(raw, Chunk{Content: section.content, Metadata: meta})
				continue
			}
			raw = append(raw, packSentences(section.content, cfg, counter, meta)...)
		}
	}

	count := len(raw)
	for i := range raw {
		if raw[i].Metadata == nil {
			raw[i].Metadata = map[string]any{}
		}
		raw[i].Metadata["chunk_index"] = i
		raw[i].Metadata["chunk_count"] = count
	}
	return raw
}

// packSentences greedily packs sentences up to MaxChunkSize tokens,
// requiring each emitted chunk to reach MinChunkSize, and prepends the last
// cfg.OverlapSize words (15 when OverlapSize <= 0) of the previous chunk as
// overlap (spec §4.4 step 3).
func packSentences(text string, cfg TextChunkerConfig, counter TokenCounter, baseMeta map[string]any) []Chunk {
	overlapWords := cfg.OverlapSize
	if overlapWords <= 0 {
		overlapWords = 15
	}

	sentences := splitSentences(text)
	var chunks []Chunk
	var current strings.Builder
	var previousTail string

	flush := func() {
		content := strings.TrimSpace(current.String())
		if content == "" {
			return
		}
		meta := make(map[string]any, len(baseMeta))
		for k, v := range baseMeta {
			meta[k] = v
		}
		chunks = append(chunks, Chunk{Content: content, Metadata: meta})
		previousTail = lastWords(content, overlapWords)
		current.Reset()
	}

	for _, sentence := range sentences {
		candidate := current.String() + sentence
		if current.Len() > 0 && counter.Count(candidate) > cfg.MaxChunkSize && counter.Count(current.String()) >= cfg.MinChunkSize {
			flush()
			current.WriteString(previousTail)
			if previousTail != "" {
				current.WriteString(" ")
			}
		}
		current.WriteString(sentence)
	}
	flush()

	return chunks
}
