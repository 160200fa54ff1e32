package source

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cruciblehq/crucible/internal/column"
	"github.com/cruciblehq/crucible/internal/curation"
)

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		filename string
		want     curation.SourceFormat
	}{
		{"data.csv", curation.FormatCSV},
		{"data.tsv", curation.FormatTSV},
		{"data.jsonl", curation.FormatJSONL},
		{"data.ndjson", curation.FormatJSONL},
		{"data.xlsx", curation.FormatXLSX},
		{"data.parquet", curation.FormatParquet},
		{"data.unknown", curation.FormatCSV},
	}
	for _, tt := range tests {
		if got := DetectFormat(tt.filename); got != tt.want {
			t.Errorf("DetectFormat(%q) = %v, want %v", tt.filename, got, tt.want)
		}
	}
}

func TestReadDelimited_CSV(t *testing.T) {
	input := "id,name\n1,alpha\n2,beta\n"
	tbl, _, err := ReadDelimited(strings.NewReader(input), curation.FormatCSV)
	if err != nil {
		t.Fatalf("ReadDelimited returned error: %v", err)
	}
	if len(tbl.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(tbl.Rows))
	}
	if tbl.Rows[1][1] != "beta" {
		t.Errorf("expected row 1 col 1 = beta, got %q", tbl.Rows[1][1])
	}
}

func TestReadDelimited_SniffsTSV(t *testing.T) {
	input := "id\tname\n1\talpha\n"
	tbl, _, err := ReadDelimited(strings.NewReader(input), curation.FormatCSV)
	if err != nil {
		t.Fatalf("ReadDelimited returned error: %v", err)
	}
	if len(tbl.Headers) != 2 || tbl.Headers[0] != "id" {
		t.Errorf("expected TSV sniffed into 2 headers, got %v", tbl.Headers)
	}
}

func TestReadDelimited_EmptyInputErrors(t *testing.T) {
	_, _, err := ReadDelimited(strings.NewReader(""), curation.FormatCSV)
	if err == nil {
		t.Error("expected error for empty input")
	}
}

func TestReadJSONL_UnionsKeysInFirstSeenOrder(t *testing.T) {
	input := `{"id":"1","name":"alpha"}
{"id":"2","age":30}
`
	tbl, _, err := ReadJSONL(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ReadJSONL returned error: %v", err)
	}
	if len(tbl.Headers) != 3 {
		t.Fatalf("expected 3 unioned headers, got %v", tbl.Headers)
	}
	if tbl.Rows[0][2] != "" {
		t.Errorf("expected missing key left blank, got %q", tbl.Rows[0][2])
	}
}

func TestWriteAndReadDelimited_RoundTrip(t *testing.T) {
	tbl := &column.Table{Headers: []string{"id", "name"}, Rows: []column.Row{{"1", "alpha"}, {"2", "beta"}}}
	var buf bytes.Buffer
	if err := writeDelimited(&buf, tbl, ','); err != nil {
		t.Fatalf("writeDelimited returned error: %v", err)
	}

	got, _, err := ReadDelimited(&buf, curation.FormatCSV)
	if err != nil {
		t.Fatalf("ReadDelimited returned error: %v", err)
	}
	if len(got.Rows) != 2 || got.Rows[1][1] != "beta" {
		t.Errorf("unexpected round-tripped rows: %+v", got.Rows)
	}
}

func TestWriteXLSX_RoundTrip(t *testing.T) {
	tbl := &column.Table{Headers: []string{"id", "name"}, Rows: []column.Row{{"1", "alpha"}}}
	var buf bytes.Buffer
	if err := writeXLSX(&buf, tbl); err != nil {
		t.Fatalf("writeXLSX returned error: %v", err)
	}

	got, _, err := ReadXLSX(bytes.NewReader(buf.Bytes()), "")
	if err != nil {
		t.Fatalf("ReadXLSX returned error: %v", err)
	}
	if len(got.Rows) != 1 || got.Rows[0][1] != "alpha" {
		t.Errorf("unexpected round-tripped xlsx rows: %+v", got.Rows)
	}
}

func TestSanitizeParquetName(t *testing.T) {
	tests := []struct{ in, want string }{
		{"patient_id", "patient_id"},
		{"blood pressure", "blood_pressure"},
		{"", "col"},
		{"%%%", "col"},
	}
	for _, tt := range tests {
		if got := sanitizeParquetName(tt.in); got != tt.want {
			t.Errorf("sanitizeParquetName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestWriteAndReadParquetFile_RoundTrip(t *testing.T) {
	tbl := &column.Table{Headers: []string{"id", "name"}, Rows: []column.Row{{"1", "alpha"}, {"2", "beta"}}}
	path := filepath.Join(t.TempDir(), "out.parquet")

	if err := WriteParquetFile(path, tbl); err != nil {
		t.Fatalf("WriteParquetFile returned error: %v", err)
	}

	got, _, err := ReadParquetFile(path)
	if err != nil {
		t.Fatalf("ReadParquetFile returned error: %v", err)
	}
	if len(got.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(got.Rows))
	}
}
