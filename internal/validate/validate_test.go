package validate

import (
	"context"
	"testing"

	"github.com/cruciblehq/crucible/internal/column"
	"github.com/cruciblehq/crucible/internal/curation"
)

func tableOf(headers []string, rows ...column.Row) *column.Table {
	return &column.Table{Headers: headers, Rows: rows}
}

func TestCompleteness_FlagsHighNullFraction(t *testing.T) {
	schema := &curation.TableSchema{Columns: []curation.ColumnSchema{
		{Name: "notes", Stats: curation.ColumnStats{NullCount: 4}},
	}}
	tbl := tableOf([]string{"notes"}, column.Row{""}, column.Row{""}, column.Row{""}, column.Row{""}, column.Row{"x"})

	obs := completeness(schema, tbl, DefaultConfig())
	if len(obs) != 1 {
		t.Fatalf("expected 1 observation, got %d", len(obs))
	}
	if obs[0].Severity != curation.SeverityWarning {
		t.Errorf("expected Warning severity, got %s", obs[0].Severity)
	}
}

func TestUniqueness_FlagsDuplicates(t *testing.T) {
	schema := &curation.TableSchema{Columns: []curation.ColumnSchema{
		{Name: "id", Unique: true},
	}}
	tbl := tableOf([]string{"id"}, column.Row{"1"}, column.Row{"1"}, column.Row{"2"})

	obs := uniqueness(schema, tbl, DefaultConfig())
	if len(obs) != 1 {
		t.Fatalf("expected 1 observation, got %d", len(obs))
	}
	if obs[0].Severity != curation.SeverityError {
		t.Errorf("expected Error severity, got %s", obs[0].Severity)
	}
}

func TestTypeValidator_FlagsMismatches(t *testing.T) {
	schema := &curation.TableSchema{Columns: []curation.ColumnSchema{
		{Name: "age", InferredType: curation.TypeInteger},
	}}
	tbl := tableOf([]string{"age"}, column.Row{"30"}, column.Row{"not-a-number"}, column.Row{"40"})

	obs := typeValidator(schema, tbl, DefaultConfig())
	if len(obs) != 1 {
		t.Fatalf("expected 1 observation, got %d", len(obs))
	}
	if got := obs[0].Evidence.RowIndices; len(got) != 1 || got[0] != 1 {
		t.Errorf("expected row 1 flagged, got %v", got)
	}
}

func TestRangeValidator_WarningVsError(t *testing.T) {
	schema := &curation.TableSchema{Columns: []curation.ColumnSchema{
		{Name: "score", ExpectedRange: &curation.Range{Min: 0, Max: 10}},
	}}
	tbl := tableOf([]string{"score"}, column.Row{"12"}, column.Row{"1000"})

	obs := rangeValidator(schema, tbl, DefaultConfig())
	var sawWarning, sawError bool
	for _, o := range obs {
		if o.Severity == curation.SeverityWarning {
			sawWarning = true
		}
		if o.Severity == curation.SeverityError {
			sawError = true
		}
	}
	if !sawWarning || !sawError {
		t.Errorf("expected both a warning and an error observation, got %+v", obs)
	}
}

func TestSetMembership_FlagsOutOfSetValues(t *testing.T) {
	schema := &curation.TableSchema{Columns: []curation.ColumnSchema{
		{Name: "status", ExpectedValues: []string{"active", "withdrawn"}},
	}}
	tbl := tableOf([]string{"status"}, column.Row{"active"}, column.Row{"deceased"})

	obs := setMembership(schema, tbl, DefaultConfig())
	if len(obs) != 1 {
		t.Fatalf("expected 1 observation, got %d", len(obs))
	}
}

func TestSetMembership_IgnoresCaseVariant(t *testing.T) {
	schema := &curation.TableSchema{Columns: []curation.ColumnSchema{
		{Name: "status", ExpectedValues: []string{"Active"}},
	}}
	tbl := tableOf([]string{"status"}, column.Row{"active"})

	obs := setMembership(schema, tbl, DefaultConfig())
	if len(obs) != 0 {
		t.Errorf("expected near-variant to be ignored, got %+v", obs)
	}
}

func TestDuplicate_FlagsRepeatedIdentifierRows(t *testing.T) {
	schema := &curation.TableSchema{
		Columns:   []curation.ColumnSchema{{Name: "id", SemanticRole: curation.RoleSampleId}},
		UniqueKey: []string{"id"},
	}
	tbl := tableOf([]string{"id"}, column.Row{"a"}, column.Row{"a"}, column.Row{"b"})

	obs := duplicate(schema, tbl, DefaultConfig())
	if len(obs) != 1 {
		t.Fatalf("expected 1 observation, got %d", len(obs))
	}
}

func TestBooleanConsistency_FlagsMixedFamilies(t *testing.T) {
	schema := &curation.TableSchema{Columns: []curation.ColumnSchema{
		{Name: "active", InferredType: curation.TypeBoolean},
	}}
	tbl := tableOf([]string{"active"}, column.Row{"true"}, column.Row{"yes"})

	obs := booleanConsistency(schema, tbl, DefaultConfig())
	if len(obs) != 1 {
		t.Fatalf("expected 1 observation, got %d", len(obs))
	}
}

func TestCrossColumn_FlagsPartialPresence(t *testing.T) {
	schema := &curation.TableSchema{
		CrossColumnRules: []curation.CrossColumnRule{
			{ID: "r1", Columns: []string{"start_date", "end_date"}, Description: "both or neither"},
		},
	}
	tbl := tableOf([]string{"start_date", "end_date"},
		column.Row{"2024-01-01", "2024-02-01"},
		column.Row{"2024-01-01", ""},
	)

	obs := crossColumn(schema, tbl, DefaultConfig())
	if len(obs) != 1 {
		t.Fatalf("expected 1 observation, got %d", len(obs))
	}
}

func TestEditDistance(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"kitten", "sitting", 3},
		{"same", "same", 0},
		{"", "abc", 3},
	}
	for _, tt := range tests {
		if got := editDistance(tt.a, tt.b); got != tt.want {
			t.Errorf("editDistance(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestRun_ProducesDeterministicOrder(t *testing.T) {
	schema := &curation.TableSchema{Columns: []curation.ColumnSchema{
		{Name: "id", Unique: true},
		{Name: "age", InferredType: curation.TypeInteger},
	}}
	tbl := tableOf([]string{"id", "age"},
		column.Row{"1", "30"},
		column.Row{"1", "bad"},
	)

	first, err := Run(context.Background(), schema, tbl, DefaultConfig(), 4)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	second, err := Run(context.Background(), schema, tbl, DefaultConfig(), 4)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("non-deterministic observation count: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Errorf("non-deterministic ordering at index %d: %s vs %s", i, first[i].ID, second[i].ID)
		}
	}
}
