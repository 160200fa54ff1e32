package source

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/cruciblehq/crucible/internal/column"
	"github.com/cruciblehq/crucible/internal/curation"
)

// Write serializes a curated table to w in format (§6: curated output
// formats TSV/CSV/JSON/XLSX/Parquet — Parquet is handled by WriteParquetFile).
func Write(w io.Writer, t *column.Table, format curation.SourceFormat) error {
	switch format {
	case curation.FormatCSV:
		return writeDelimited(w, t, ',')
	case curation.FormatTSV:
		return writeDelimited(w, t, '\t')
	case curation.FormatJSONL:
		return writeJSONL(w, t)
	case curation.FormatXLSX:
		return writeXLSX(w, t)
	case curation.FormatParquet:
		return fmt.Errorf("source: parquet output requires a file path; use WriteParquetFile")
	default:
		return fmt.Errorf("source: unsupported output format %q", format)
	}
}

func writeDelimited(w io.Writer, t *column.Table, delim rune) error {
	cw := csv.NewWriter(w)
	cw.Comma = delim
	if err := cw.Write(t.Headers); err != nil {
		return err
	}
	for _, row := range t.Rows {
		rec := make([]string, len(t.Headers))
		copy(rec, row)
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeJSONL(w io.Writer, t *column.Table) error {
	enc := json.NewEncoder(w)
	for _, row := range t.Rows {
		obj := make(map[string]string, len(t.Headers))
		for i, h := range t.Headers {
			if i < len(row) {
				obj[h] = row[i]
			}
		}
		if err := enc.Encode(obj); err != nil {
			return err
		}
	}
	return nil
}

func writeXLSX(w io.Writer, t *column.Table) error {
	f := excelize.NewFile()
	defer f.Close()
	const sheet = "Sheet1"

	for col, h := range t.Headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}
	for r, row := range t.Rows {
		for c, v := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}
	}
	return f.Write(w)
}
