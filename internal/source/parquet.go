package source

import (
	"fmt"
	"sort"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/cruciblehq/crucible/internal/column"
)

// parquetBatchSize mirrors the pack's Parquet loader, which reads rows in
// fixed-size batches of map[string]interface{} rather than all at once
// (adapted from omarkamali-semango's ParquetLoader).
const parquetBatchSize = 1000

// ReadParquetFile streams every row of the Parquet file at path through a
// generic map[string]interface{} reader and stringifies values, the same
// shape the pack's ParquetLoader.Load builds before handing rows onward.
func ReadParquetFile(path string) (*column.Table, []string, error) {
	fr, err := local.NewLocalFileReader(path)
	if err != nil {
		return nil, nil, fmt.Errorf("source: opening parquet file: %w", err)
	}
	defer fr.Close()

	pr, err := reader.NewParquetReader(fr, nil, 4)
	if err != nil {
		return nil, nil, fmt.Errorf("source: opening parquet reader: %w", err)
	}
	defer pr.ReadStop()

	total := int(pr.GetNumRows())
	var records []map[string]any
	for read := 0; read < total; {
		n := parquetBatchSize
		if total-read < n {
			n = total - read
		}
		batch := make([]any, n)
		if err := pr.Read(&batch); err != nil {
			return nil, nil, fmt.Errorf("source: reading parquet rows: %w", err)
		}
		for _, raw := range batch {
			if m, ok := raw.(map[string]any); ok {
				records = append(records, m)
			}
		}
		read += n
	}

	var headerOrder []string
	seen := map[string]bool{}
	for _, rec := range records {
		keys := make([]string, 0, len(rec))
		for k := range rec {
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

// WriteParquetFile writes t to path as a Parquet file with one UTF8
// BYTE_ARRAY column per header, using parquet-go's CSV writer (a flat
// schema of string columns, declared the way writer.NewCSVWriter expects).
func WriteParquetFile(path string, t *column.Table) error {
	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return fmt.Errorf("source: creating parquet file: %w", err)
	}
	defer fw.Close()

	schema := buildParquetSchema(t.Headers)
	pw, err := writer.NewCSVWriter(schema, fw, 4)
	if err != nil {
		return fmt.Errorf("source: creating parquet writer: %w", err)
	}
	for _, row := range t.Rows {
		rec := make([]*string, len(t.Headers))
		for i := range t.Headers {
			val := ""
			if i < len(row) {
				val = row[i]
			}
			rec[i] = &val
		}
		if err := pw.WriteString(rec); err != nil {
			return fmt.Errorf("source: writing parquet row: %w", err)
		}
	}
	return pw.WriteStop()
}

func buildParquetSchema(headers []string) []string {
	schema := make([]string, len(headers))
	for i, h := range headers {
		schema[i] = "name=" + sanitizeParquetName(h) + ", type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"
	}
	return schema
}

func sanitizeParquetName(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	if len(out) == 0 {
		return "col"
	}
	return string(out)
}
