// Package source implements Crucible's row-provider abstraction (§6): a
// small Provider interface any input format satisfies, plus concrete
// readers for delimited text, JSON Lines, and XLSX, and writers for the
// curated-output formats.
//
// The XLSX reader is adapted from the teacher's
// internal/converter/xlsx_parser.go, which wrapped excelize the same way;
// here it feeds directly into column.Table instead of the teacher's
// CellMatrix/markdown rendering pipeline.
package source

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/cruciblehq/crucible/internal/column"
	"github.com/cruciblehq/crucible/internal/curation"
)

// Provider is any source capable of yielding headers and rows for
// analysis (§6: "headers(), rows(), row_count()").
type Provider interface {
	Headers() []string
	Rows() []column.Row
	RowCount() int
}

// tableProvider adapts a *column.Table to Provider.
type tableProvider struct{ t *column.Table }

func (p tableProvider) Headers() []string   { return p.t.Headers }
func (p tableProvider) Rows() []column.Row  { return p.t.Rows }
func (p tableProvider) RowCount() int       { return p.t.RowCount() }

// AsProvider wraps a parsed Table as a Provider.
func AsProvider(t *column.Table) Provider { return tableProvider{t} }

// ReadDelimited parses CSV or TSV content. delimiter is sniffed from the
// first line when comma is ambiguous: a header line with more tabs than
// commas is treated as TSV.
func ReadDelimited(r io.Reader, format curation.SourceFormat) (*column.Table, []string, error) {
	buffered := bufio.NewReader(r)
	peek, _ := buffered.Peek(4096)

	delim := ','
	if format == curation.FormatTSV || sniffTSV(peek) {
		delim = '\t'
	}

	reader := csv.NewReader(buffered)
	reader.Comma = delim
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("source: reading delimited input: %w", err)
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("source: empty input")
	}

	headers, warnings := column.NormalizeHeaders(records[0])
	rows := make([]column.Row, len(records)-1)
	for i, rec := range records[1:] {
		rows[i] = column.Row(rec)
	}
	return &column.Table{Headers: headers, Rows: rows}, warnings, nil
}

func sniffTSV(peek []byte) bool {
	firstLine := peek
	if idx := strings.IndexByte(string(peek), '\n'); idx >= 0 {
		firstLine = peek[:idx]
	}
	return strings.Count(string(firstLine), "\t") > strings.Count(string(firstLine), ",")
}

// ReadJSONL parses newline-delimited JSON objects, one row per line,
// unioning every object's keys (in first-seen order) into the header set.
func ReadJSONL(r io.Reader) (*column.Table, []string, error) {
	dec := json.NewDecoder(r)
	var records []map[string]any
	var headerOrder []string
	seen := map[string]bool{}

	for dec.More() {
		var obj map[string]any
		if err := dec.Decode(&obj); err != nil {
			return nil, nil, fmt.Errorf("source: decoding jsonl record %d: %w", len(records)+1, err)
		}
		records = append(records, obj)
		keys := make([]string, 0, len(obj))
		for k := range obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if !seen[k] {
				seen[k] = true
				headerOrder = append(headerOrder, k)
			}
		}
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("source: empty input")
	}

	headers, warnings := column.NormalizeHeaders(headerOrder)
	rows := make([]column.Row, len(records))
	for i, rec := range records {
		row := make(column.Row, len(headerOrder))
		for j, key := range headerOrder {
			if v, ok := rec[key]; ok && v != nil {
				row[j] = stringifyJSONValue(v)
			}
		}
		rows[i] = row
	}
	return &column.Table{Headers: headers, Rows: rows}, warnings, nil
}

func stringifyJSONValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	default:
		raw, _ := json.Marshal(val)
		return string(raw)
	}
}

// ReadXLSX parses the first (or named) sheet of an Excel workbook.
// Adapted from the teacher's XLSXParser.ParseReader, which built the
// same excelize.OpenReader + GetRows shape for its CellMatrix pipeline.
func ReadXLSX(r io.Reader, sheetName string) (*column.Table, []string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("source: reading xlsx: %w", err)
	}
	defer f.Close()

	if sheetName == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, nil, fmt.Errorf("source: workbook has no sheets")
		}
		sheetName = sheets[0]
	}
	records, err := f.GetRows(sheetName)
	if err != nil {
		return nil, nil, fmt.Errorf("source: reading sheet %q: %w", sheetName, err)
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("source: sheet %q is empty", sheetName)
	}

	headers, warnings := column.NormalizeHeaders(records[0])
	width := len(headers)
	rows := make([]column.Row, len(records)-1)
	for i, rec := range records[1:] {
		row := make(column.Row, width)
		copy(row, rec)
		rows[i] = row
	}
	return &column.Table{Headers: headers, Rows: rows}, warnings, nil
}

// Read dispatches to the reader matching format.
func Read(r io.Reader, format curation.SourceFormat) (*column.Table, []string, error) {
	switch format {
	case curation.FormatCSV, curation.FormatTSV:
		return ReadDelimited(r, format)
	case curation.FormatJSONL:
		return ReadJSONL(r)
	case curation.FormatXLSX:
		return ReadXLSX(r, "")
	case curation.FormatParquet:
		return nil, nil, fmt.Errorf("source: parquet requires a seekable file; use ReadParquetFile")
	default:
		return nil, nil, fmt.Errorf("source: unsupported format %q", format)
	}
}

// DetectFormat guesses a SourceFormat from a file extension (§6).
func DetectFormat(filename string) curation.SourceFormat {
	lower := strings.ToLower(filename)
	switch {
	case strings.HasSuffix(lower, ".tsv"):
		return curation.FormatTSV
	case strings.HasSuffix(lower, ".jsonl") || strings.HasSuffix(lower, ".ndjson"):
		return curation.FormatJSONL
	case strings.HasSuffix(lower, ".xlsx"):
		return curation.FormatXLSX
	case strings.HasSuffix(lower, ".parquet"):
		return curation.FormatParquet
	default:
		return curation.FormatCSV
	}
}
