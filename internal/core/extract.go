package core

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

// extractorVersion is stamped on every extraction result, matching
// original_source's base_extractor.py convention of tagging output with
// the extractor implementation that produced it.
const extractorVersion = "1"

// defaultMaxFileSize is the extraction size cap (spec §4.3); exceeding it
// is a validation failure, not an extraction failure, so it is checked
// before any extractor runs.
const defaultMaxFileSize = 50 * 1024 * 1024

// ExtractResult is what an Extractor produces from a binary blob (spec
// §4.3): normalized text, format-independent plus format-specific
// metadata, and optionally pre-computed chunks for formats (spreadsheets)
// where the extractor knows the natural unit better than the generic
// chunker.
type ExtractResult struct {
	Content  string
	Metadata map[string]any
	Chunks   []Chunk
}

// Extractor recovers text and structure from one file format.
type Extractor interface {
	Extract(ctx context.Context, path string) (ExtractResult, error)
}

var extractors = map[string]Extractor{
	".pdf":  pdfExtractor{},
	".txt":  textExtractor{},
	".md":   textExtractor{},
	".xlsx": xlsxExtractor{},
	".docx": docxExtractor{},
}

// controlCharPattern strips C0 control characters other than tab/newline,
// per spec §4.3's "control chars stripped" requirement.
var controlCharPattern = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F]`)

var whitespaceRunPattern = regexp.MustCompile(`[ \t]+`)

// normalizeText strips control characters and collapses runs of
// horizontal whitespace, preserving paragraph breaks so the chunker's
// double-newline section detection still works.
func normalizeText(s string) string {
	s = controlCharPattern.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(whitespaceRunPattern.ReplaceAllString(line, " "), " ")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// ExtractDocument validates a file against the cap and extension,
// sniffs its content type as a defense against a mislabeled extension, and
// dispatches to the matching Extractor.
func ExtractDocument(ctx context.Context, path string, maxFileSize int64) (ExtractResult, error) {
	if maxFileSize <= 0 {
		maxFileSize = defaultMaxFileSize
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ExtractResult{}, wrapErr(ErrFileNotFound, "FileNotFound", err)
		}
		return ExtractResult{}, wrapErr(ErrFileNotFound, "FileNotFound", err)
	}
	if info.Size() > maxFileSize {
		return ExtractResult{}, wrapErr(ErrFileTooLarge, "FileTooLarge", nil)
	}

	ext := strings.ToLower(filepath.Ext(path))
	extractor, ok := extractors[ext]
	if !ok {
		return ExtractResult{}, wrapErr(ErrUnsupportedFormat, "UnsupportedFormat", nil)
	}

	// Content-sniffed MIME detection guards against an extension that
	// doesn't match the actual file content (e.g. a renamed archive);
	// extraction still proceeds by extension, since that's what selects
	// the structural parser, but a gross mismatch is logged.
	if mtype, err := mimetype.DetectFile(path); err == nil {
		if !mimeMatchesExtension(mtype, ext) {
			GlobalLogger.Warn("file content does not match extension", "path", path, "ext", ext, "detected", mtype.String())
		}
	}

	result, err := extractor.Extract(ctx, path)
	if err != nil {
		return ExtractResult{}, err
	}

	if result.Metadata == nil {
		result.Metadata = map[string]any{}
	}
	result.Metadata["file_name"] = filepath.Base(path)
	result.Metadata["file_type"] = strings.TrimPrefix(ext, ".")
	result.Metadata["file_size"] = info.Size()
	result.Metadata["modified_time"] = info.ModTime().Format(time.RFC3339)
	result.Metadata["extractor_version"] = extractorVersion
	result.Content = normalizeText(result.Content)

	return result, nil
}

func mimeMatchesExtension(mtype *mimetype.MIME, ext string) bool {
	for m := mtype; m != nil; m = m.Parent() {
		if m.Extension() == ext {
			return true
		}
	}
	return false
}
