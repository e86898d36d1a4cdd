package core

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
)

// pdfExtractor recovers text from PDF files, grounded on the teacher's
// PDFParser (rag/parse.go) — page-by-page GetPlainText concatenation —
// enriched with page count and document-info metadata the teacher never
// surfaced, and an explicit encrypted-PDF check per spec §4.3.
type pdfExtractor struct{}

func (pdfExtractor) Extract(ctx context.Context, path string) (ExtractResult, error) {
	file, err := os.Open(path)
	if err != nil {
		return ExtractResult{}, wrapErr(ErrFileNotFound, "FileNotFound", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return ExtractResult{}, wrapErr(ErrExtractionFailed, "ExtractionFailed", err)
	}

	reader, err := pdf.NewReader(file, info.Size())
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "encrypt") {
			return ExtractResult{}, wrapErr(ErrEncryptedPDF, "EncryptedPDF", err)
		}
		return ExtractResult{}, wrapErr(ErrExtractionFailed, "ExtractionFailed", err)
	}

	var text strings.Builder
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			GlobalLogger.Warn("pdf page extraction failed", "path", path, "page", i, "error", err)
			continue
		}
		text.WriteString(content)
		text.WriteString("\n\n")
	}

	metadata := map[string]any{
		"page_count": numPages,
	}
	if info := reader.Trailer().Key("Info"); !info.IsNull() {
		pdfInfo := map[string]string{}
		if v := info.Key("Title").Text(); v != "" {
			pdfInfo["title"] = v
		}
		if v := info.Key("Author").Text(); v != "" {
			pdfInfo["author"] = v
		}
		if v := info.Key("Subject").Text(); v != "" {
			pdfInfo["subject"] = v
		}
		if v := info.Key("Creator").Text(); v != "" {
			pdfInfo["creator"] = v
		}
		metadata["pdf_info"] = stringifyMap(anyifyStringMap(pdfInfo))
	}

	if text.Len() == 0 {
		return ExtractResult{}, wrapErr(ErrExtractionFailed, "ExtractionFailed", fmt.Errorf("no extractable text in %s", path))
	}

	return ExtractResult{Content: text.String(), Metadata: metadata}, nil
}

func anyifyStringMap(m map[string]string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
