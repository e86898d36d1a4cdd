package core

import (
	"context"
	"os"
	"strings"
	"unicode/utf8"
)

// textExtractor handles plain text and markdown files, grounded on the
// teacher's TextParser (rag/parse.go). Encoding is auto-detected via a
// UTF-8 validity check; per spec §4.3 the fallback for low-confidence
// detection is UTF-8 itself, so there is no separate decode step — content
// that fails the UTF-8 check is treated as UTF-8 anyway and only tagged
// "utf-8 (fallback)"; its invalid byte sequences are kept as read
// (normalizeText removes control characters, not invalid sequences).
type textExtractor struct{}

func (textExtractor) Extract(ctx context.Context, path string) (ExtractResult, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return ExtractResult{}, wrapErr(ErrFileNotFound, "FileNotFound", err)
	}

	encoding := "utf-8"
	if !utf8.Valid(content) {
		encoding = "utf-8 (fallback)"
	}

	text := string(content)
	lineCount := strings.Count(text, "\n") + 1
	paragraphCount := len(strings.Split(strings.TrimSpace(text), "\n\n"))

	return ExtractResult{
		Content: text,
		Metadata: map[string]any{
			"encoding":        encoding,
			"line_count":      lineCount,
			"paragraph_count": paragraphCount,
		},
	}, nil
}
