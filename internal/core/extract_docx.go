package core

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// docxExtractor reads an Office Open XML wordprocessing document directly
// via archive/zip + encoding/xml, for the same reason as xlsxExtractor: no
// OOXML library exists anywhere in the example pack. It walks
// word/document.xml token-by-token rather than unmarshaling into a typed
// tree, since the namespace-qualified run/paragraph structure is deeply
// nested and only the text runs and paragraph boundaries matter here.
type docxExtractor struct{}

func (docxExtractor) Extract(ctx context.Context, path string) (ExtractResult, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return ExtractResult{}, wrapErr(ErrExtractionFailed, "ExtractionFailed", err)
	}
	defer zr.Close()

	var docFile *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			docFile = f
			break
		}
	}
	if docFile == nil {
		return ExtractResult{}, wrapErr(ErrExtractionFailed, "ExtractionFailed", fmt.Errorf("word/document.xml missing"))
	}

	rc, err := docFile.Open()
	if err != nil {
		return ExtractResult{}, wrapErr(ErrExtractionFailed, "ExtractionFailed", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return ExtractResult{}, wrapErr(ErrExtractionFailed, "ExtractionFailed", err)
	}

	var text strings.Builder
	paragraphCount := 0
	tableCount := 0
	decoder := xml.NewDecoder(strings.NewReader(string(data)))
	inText := false
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return ExtractResult{}, wrapErr(ErrExtractionFailed, "ExtractionFailed", err)
		}
		switch el := tok.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case "t":
				inText = true
			case "p":
				paragraphCount++
			case "tbl":
				tableCount++
			}
		case xml.EndElement:
			switch el.Name.Local {
			case "t":
				inText = false
			case "p":
				text.WriteString("\n\n")
			case "tr":
				text.WriteString("\n")
			}
		case xml.CharData:
			if inText {
				text.Write(el)
			}
		}
	}

	return ExtractResult{
		Content: text.String(),
		Metadata: map[string]any{
			"paragraph_count": paragraphCount,
			"table_count":     tableCount,
		},
	}, nil
}
