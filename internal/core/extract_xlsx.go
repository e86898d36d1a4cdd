package core

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
)

// xlsxExtractor reads an Office Open XML spreadsheet directly via
// archive/zip + encoding/xml (see DESIGN.md: no OOXML library appears
// anywhere in the example pack). It pre-computes spreadsheet_row chunks
// per sheet per spec §4.4's tabular chunker, since the extractor knows the
// row/column structure the generic text chunker would otherwise have to
// reverse-engineer from flattened text.
type xlsxExtractor struct{}

// maxSheetRows/maxSheetCols are package-level vars, not consts, so the root
// facade can apply config.Config's RAGCORE_MAX_SHEET_ROWS/COLS overrides at
// startup.
var (
	maxSheetRows = 10000
	maxSheetCols = 50
)

type xlsxSharedStrings struct {
	XMLName xml.Name   `xml:"sst"`
	Items   []xlsxSIEl `xml:"si"`
}

type xlsxSIEl struct {
	T     string      `xml:"t"`
	Runs  []xlsxRunEl `xml:"r"`
}

type xlsxRunEl struct {
	T string `xml:"t"`
}

func (si xlsxSIEl) text() string {
	if si.T != "" {
		return si.T
	}
	var b strings.Builder
	for _, r := range si.Runs {
		b.WriteString(r.T)
	}
	return b.String()
}

type xlsxWorkbook struct {
	Sheets []xlsxSheetRef `xml:"sheets>sheet"`
}

type xlsxSheetRef struct {
	Name string `xml:"name,attr"`
}

type xlsxSheetData struct {
	Rows []xlsxRowEl `xml:"sheetData>row"`
}

type xlsxRowEl struct {
	R     int         `xml:"r,attr"`
	Cells []xlsxCellEl `xml:"c"`
}

type xlsxCellEl struct {
	R string `xml:"r,attr"`
	T string `xml:"t,attr"`
	V string `xml:"v"`
	Is *xlsxSIEl `xml:"is"`
}

// SetSheetCaps overrides the per-sheet row/column caps (defaults 10000/50),
// per config.Config's RAGCORE_MAX_SHEET_ROWS/RAGCORE_MAX_SHEET_COLS.
func SetSheetCaps(rows, cols int) {
	if rows > 0 {
		maxSheetRows = rows
	}
	if cols > 0 {
		maxSheetCols = cols
	}
}

var cellColumnPattern = regexp.MustCompile(`^([A-Z]+)\d+$`)

// columnIndex converts a cell reference's column letters ("A", "AB") to a
// zero-based column index.
func columnIndex(cellRef string) int {
	m := cellColumnPattern.FindStringSubmatch(cellRef)
	if m == nil {
		return -1
	}
	letters := m[1]
	idx := 0
	for _, c := range letters {
		idx = idx*26 + int(c-'A'+1)
	}
	return idx - 1
}

func (xlsxExtractor) Extract(ctx context.Context, path string) (ExtractResult, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return ExtractResult{}, wrapErr(ErrExtractionFailed, "ExtractionFailed", err)
	}
	defer zr.Close()

	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		files[f.Name] = f
	}

	shared, err := readSharedStrings(files["xl/sharedStrings.xml"])
	if err != nil {
		return ExtractResult{}, wrapErr(ErrExtractionFailed, "ExtractionFailed", err)
	}

	workbookFile, ok := files["xl/workbook.xml"]
	if !ok {
		return ExtractResult{}, wrapErr(ErrExtractionFailed, "ExtractionFailed", fmt.Errorf("xl/workbook.xml missing"))
	}
	var workbook xlsxWorkbook
	if err := decodeXML(workbookFile, &workbook); err != nil {
		return ExtractResult{}, wrapErr(ErrExtractionFailed, "ExtractionFailed", err)
	}

	var textBuilder strings.Builder
	var chunks []Chunk
	sheetNames := make([]string, 0, len(workbook.Sheets))

	for i, sheetRef := range workbook.Sheets {
		sheetName := sheetRef.Name
		if sheetName == "" {
			sheetName = fmt.Sprintf("Sheet%d", i+1)
		}
		sheetNames = append(sheetNames, sheetName)

		sheetFile, ok := files[fmt.Sprintf("xl/worksheets/sheet%d.xml", i+1)]
		if !ok {
			continue
		}
		var sheetData xlsxSheetData
		if err := decodeXML(sheetFile, &sheetData); err != nil {
			GlobalLogger.Warn("xlsx sheet decode failed", "path", path, "sheet", sheetName, "error", err)
			continue
		}

		sheetChunks := extractSheetRows(sheetName, sheetData, shared)
		chunks = append(chunks, sheetChunks...)
		for _, c := range sheetChunks {
			textBuilder.WriteString(c.Content)
			textBuilder.WriteString("\n")
		}
	}

	return ExtractResult{
		Content: textBuilder.String(),
		Metadata: map[string]any{
			"sheet_count": len(workbook.Sheets),
			"sheet_names": strings.Join(sheetNames, ", "),
		},
		Chunks: chunks,
	}, nil
}

func readSharedStrings(f *zip.File) ([]string, error) {
	if f == nil {
		return nil, nil
	}
	var sst xlsxSharedStrings
	if err := decodeXML(f, &sst); err != nil {
		return nil, err
	}
	out := make([]string, len(sst.Items))
	for i, item := range sst.Items {
		out[i] = item.text()
	}
	return out, nil
}

func decodeXML(f *zip.File, v interface{}) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return err
	}
	return xml.Unmarshal(data, v)
}

func cellValue(cell xlsxCellEl, shared []string) string {
	switch cell.T {
	case "s":
		idx, err := strconv.Atoi(cell.V)
		if err != nil || idx < 0 || idx >= len(shared) {
			return ""
		}
		return shared[idx]
	case "inlineStr":
		if cell.Is != nil {
			return cell.Is.text()
		}
		return ""
	default:
		return cell.V
	}
}

var numericPattern = regexp.MustCompile(`^-?[\d,.]+%?$`)

func isPurelyNumeric(s string) bool {
	trimmed := strings.TrimPrefix(strings.TrimSpace(s), "$")
	return numericPattern.MatchString(trimmed)
}

// extractSheetRows builds one spreadsheet_row Chunk per non-empty row,
// per spec §4.4's tabular chunker: header detection by the >70%
// non-numeric heuristic, Column_N synthesis otherwise, capped at
// maxSheetRows rows and maxSheetCols columns per sheet.
func extractSheetRows(sheetName string, sheet xlsxSheetData, shared []string) []Chunk {
	rows := sheet.Rows
	if len(rows) == 0 {
		return nil
	}

	truncatedRows := false
	if len(rows) > maxSheetRows+1 {
		rows = rows[:maxSheetRows+1]
		truncatedRows = true
	}

	headerRow := rows[0]
	headerCells := make(map[int]string)
	maxCol := 0
	for _, cell := range headerRow.Cells {
		col := columnIndex(cell.R)
		if col < 0 || col >= maxSheetCols {
			continue
		}
		headerCells[col] = cellValue(cell, shared)
		if col+1 > maxCol {
			maxCol = col + 1
		}
	}

	nonEmpty, nonNumeric := 0, 0
	for _, v := range headerCells {
		if strings.TrimSpace(v) == "" {
			continue
		}
		nonEmpty++
		if !isPurelyNumeric(v) {
			nonNumeric++
		}
	}
	hasHeaders := nonEmpty > 0 && float64(nonNumeric)/float64(nonEmpty) > 0.7

	headers := make([]string, maxCol)
	for i := range headers {
		if hasHeaders {
			if v, ok := headerCells[i]; ok && strings.TrimSpace(v) != "" {
				headers[i] = v
				continue
			}
		}
		headers[i] = fmt.Sprintf("Column_%d", i+1)
	}

	dataRows := rows
	startRowNumber := 1
	if hasHeaders {
		dataRows = rows[1:]
		startRowNumber = 2
	}

	var chunks []Chunk
	for i, row := range dataRows {
		values := make(map[int]string)
		maxRowCol := maxCol
		for _, cell := range row.Cells {
			col := columnIndex(cell.R)
			if col < 0 || col >= maxSheetCols {
				continue
			}
			if col+1 > maxRowCol {
				maxRowCol = col + 1
			}
			v := cellValue(cell, shared)
			if strings.TrimSpace(v) != "" {
				values[col] = v
			}
		}
		if len(values) == 0 {
			continue
		}

		var parts []string
		for col := 0; col < maxRowCol; col++ {
			v, ok := values[col]
			if !ok {
				continue
			}
			header := fmt.Sprintf("Column_%d", col+1)
			if col < len(headers) {
				header = headers[col]
			}
			parts = append(parts, fmt.Sprintf("'%s': '%s'", header, v))
		}

		content := fmt.Sprintf("Sheet: '%s'. Row: %d. %s", sheetName, startRowNumber+i, strings.Join(parts, ", "))
		if len(content) < 10 {
			continue
		}

		totalFields := maxRowCol
		if totalFields == 0 {
			totalFields = 1
		}
		fillRatio := float64(len(values)) / float64(totalFields)

		chunks = append(chunks, Chunk{
			Content: content,
			Metadata: map[string]any{
				"chunk_type":         string(ChunkTypeSpreadsheetRow),
				"sheet_name":         sheetName,
				"row_number":         startRowNumber + i,
				"original_row_index": row.R,
				"non_empty_fields":   len(values),
				"total_fields":       totalFields,
				"fill_ratio":         fillRatio,
			},
		})
	}

	if truncatedRows {
		GlobalLogger.Warn("sheet row count exceeds cap, truncated", "sheet", sheetName, "cap", maxSheetRows)
	}

	return chunks
}
