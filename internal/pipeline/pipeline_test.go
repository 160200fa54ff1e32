package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/cruciblehq/crucible/internal/column"
	"github.com/cruciblehq/crucible/internal/config"
	"github.com/cruciblehq/crucible/internal/curation"
)

func testConfig() *config.Config {
	return &config.Config{
		WorkerCount:                4,
		ConfidenceThreshold:        config.DefaultConfidenceThreshold,
		CompletenessWarnThreshold:  config.DefaultCompletenessWarnThreshold,
		CompletenessErrorThreshold: config.DefaultCompletenessErrorThreshold,
		TypeErrorFraction:          config.DefaultTypeErrorFraction,
		RangeErrorSpanMultiplier:   config.DefaultRangeErrorSpanMultiplier,
		OutlierWarnFraction:        config.DefaultOutlierWarnFraction,
		TypoMaxEditDistance:        config.DefaultTypoMaxEditDistance,
		AIEnabled:                  false,
	}
}

func sampleTable() *column.Table {
	return &column.Table{
		Headers: []string{"patient_id", "age", "status"},
		Rows: []column.Row{
			{"P001", "34", "active"},
			{"P002", "29", "Active"},
			{"P003", "not-a-number", "withdrawn"},
		},
	}
}

func TestNew_AIDisabledHasNoAugmentor(t *testing.T) {
	p := New(testConfig())
	if p.augmentor != nil {
		t.Error("expected nil augmentor when AIEnabled is false")
	}
}

func TestAnalyze_ProducesOneColumnSchemaPerHeader(t *testing.T) {
	p := New(testConfig())
	schema := p.Analyze(context.Background(), sampleTable(), curation.CurationContext{})
	if len(schema.Columns) != 3 {
		t.Fatalf("expected 3 columns, got %d", len(schema.Columns))
	}
}

func TestAnalyze_IdentifierColumnContextOverridesRole(t *testing.T) {
	p := New(testConfig())
	ctx := curation.CurationContext{IdentifierColumn: "patient_id"}
	schema := p.Analyze(context.Background(), sampleTable(), ctx)

	col := schema.Column("patient_id")
	if col == nil {
		t.Fatal("expected a patient_id column")
	}
	if col.SemanticRole != curation.RoleSampleId {
		t.Errorf("expected RoleSampleId override, got %v", col.SemanticRole)
	}
}

func TestValidateAndSuggest_EndToEnd(t *testing.T) {
	p := New(testConfig())
	tbl := sampleTable()
	schema := p.Analyze(context.Background(), tbl, curation.CurationContext{})

	observations, err := p.Validate(context.Background(), &schema, tbl)
	if err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}

	suggestions := p.Suggest(context.Background(), &schema, observations)
	for _, s := range suggestions {
		found := false
		for _, o := range observations {
			if o.ID == s.ObservationID {
				found = true
			}
		}
		if !found {
			t.Errorf("suggestion %s references unknown observation %s", s.ID, s.ObservationID)
		}
	}
}

func TestBuildLayer_ProducesConsistentDocument(t *testing.T) {
	p := New(testConfig())
	tbl := sampleTable()
	meta := curation.SourceMetadata{File: "patients.csv", RowCount: tbl.RowCount(), ColumnCount: tbl.ColumnCount()}

	layer, err := p.BuildLayer(context.Background(), tbl, meta, curation.CurationContext{}, time.Unix(0, 0))
	if err != nil {
		t.Fatalf("BuildLayer returned error: %v", err)
	}

	doc := layer.Document()
	if len(doc.Schema.Columns) != 3 {
		t.Errorf("expected 3 schema columns, got %d", len(doc.Schema.Columns))
	}
	for _, s := range doc.Suggestions {
		matched := false
		for _, o := range doc.Observations {
			if o.ID == s.ObservationID {
				matched = true
			}
		}
		if !matched {
			t.Errorf("suggestion %s has no matching observation in the built layer", s.ID)
		}
	}
}

func TestWeightsFromConfig_OverridesOnlySetFields(t *testing.T) {
	weights := weightsFromConfig(map[string]float64{"statistical": 0.9})
	if weights.Statistical != 0.9 {
		t.Errorf("expected overridden Statistical weight 0.9, got %f", weights.Statistical)
	}
	if weights.Semantic != 0.4 {
		t.Errorf("expected default Semantic weight preserved, got %f", weights.Semantic)
	}
}
