package ai

import (
	"strings"
	"testing"
)

func ptrF(v float64) *float64 { return &v }

// ---------------------------------------------------------------------------
// ValidateSchemaRefinement
// ---------------------------------------------------------------------------

func TestValidateSchemaRefinement_NilResult(t *testing.T) {
	v := NewValidator()
	if err := v.ValidateSchemaRefinement(nil); err == nil {
		t.Error("expected error for nil result")
	}
}

func TestValidateSchemaRefinement_RejectsUnknownSchemaVersion(t *testing.T) {
	v := NewValidator()
	result := &SchemaRefinementResult{
		SchemaVersion: "v999",
		SemanticRole:  "covariate",
	}
	if err := v.ValidateSchemaRefinement(result); err == nil {
		t.Error("expected error for unknown schema version")
	}
}

func TestValidateSchemaRefinement_RejectsUnknownSemanticRole(t *testing.T) {
	v := NewValidator()
	result := &SchemaRefinementResult{
		SchemaVersion: SchemaVersionSchemaRefinement,
		SemanticRole:  "not_a_real_role",
	}
	if err := v.ValidateSchemaRefinement(result); err == nil {
		t.Error("expected error for unknown semantic role")
	}
}

func TestValidateSchemaRefinement_AcceptsAllKnownRoles(t *testing.T) {
	v := NewValidator()
	for _, role := range validSemanticRoles {
		result := &SchemaRefinementResult{
			SchemaVersion:  SchemaVersionSchemaRefinement,
			SemanticRole:   role,
			RoleConfidence: 0.5,
		}
		if err := v.ValidateSchemaRefinement(result); err != nil {
			t.Errorf("role %q: expected no error, got %v", role, err)
		}
	}
}

func TestValidateSchemaRefinement_ClampsRoleConfidence(t *testing.T) {
	v := NewValidator()
	result := &SchemaRefinementResult{
		SchemaVersion:  SchemaVersionSchemaRefinement,
		SemanticRole:   "outcome",
		RoleConfidence: 1.5,
	}
	if err := v.ValidateSchemaRefinement(result); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.RoleConfidence != 1.0 {
		t.Errorf("expected RoleConfidence clamped to 1.0, got %f", result.RoleConfidence)
	}
}

func TestValidateSchemaRefinement_RejectsInvertedRange(t *testing.T) {
	v := NewValidator()
	result := &SchemaRefinementResult{
		SchemaVersion:     SchemaVersionSchemaRefinement,
		SemanticRole:      "covariate",
		ExpectedRangeLow:  ptrF(10),
		ExpectedRangeHigh: ptrF(5),
	}
	if err := v.ValidateSchemaRefinement(result); err == nil {
		t.Error("expected error for expected_range_low > expected_range_high")
	}
}

func TestValidateSchemaRefinement_TruncatesLongInsight(t *testing.T) {
	v := NewValidator()
	result := &SchemaRefinementResult{
		SchemaVersion:  SchemaVersionSchemaRefinement,
		SemanticRole:   "covariate",
		RoleConfidence: 0.5,
		Insight:        strings.Repeat("x", 300),
	}
	if err := v.ValidateSchemaRefinement(result); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Insight) != 200 {
		t.Errorf("expected insight truncated to 200 chars, got %d", len(result.Insight))
	}
}

// ---------------------------------------------------------------------------
// ValidateObservationExplain
// ---------------------------------------------------------------------------

func TestValidateObservationExplain_NilResult(t *testing.T) {
	v := NewValidator()
	if err := v.ValidateObservationExplain(nil); err == nil {
		t.Error("expected error for nil result")
	}
}

func TestValidateObservationExplain_RejectsUnknownSchemaVersion(t *testing.T) {
	v := NewValidator()
	result := &ObservationExplainResult{SchemaVersion: "v999", Explanation: "looks fine"}
	if err := v.ValidateObservationExplain(result); err == nil {
		t.Error("expected error for unknown schema version")
	}
}

func TestValidateObservationExplain_RejectsEmptyExplanation(t *testing.T) {
	v := NewValidator()
	result := &ObservationExplainResult{SchemaVersion: SchemaVersionObservationExplain}
	if err := v.ValidateObservationExplain(result); err == nil {
		t.Error("expected error for empty explanation")
	}
}

func TestValidateObservationExplain_ClampsConfidence(t *testing.T) {
	v := NewValidator()
	result := &ObservationExplainResult{
		SchemaVersion: SchemaVersionObservationExplain,
		Explanation:   "value is an outlier relative to the column distribution",
		Confidence:    -0.5,
	}
	if err := v.ValidateObservationExplain(result); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Confidence != 0 {
		t.Errorf("expected confidence clamped to 0, got %f", result.Confidence)
	}
}

// ---------------------------------------------------------------------------
// ValidateSuggestionRationale
// ---------------------------------------------------------------------------

func TestValidateSuggestionRationale_NilResult(t *testing.T) {
	v := NewValidator()
	if err := v.ValidateSuggestionRationale(nil, 0.5); err == nil {
		t.Error("expected error for nil result")
	}
}

func TestValidateSuggestionRationale_RejectsUnknownSchemaVersion(t *testing.T) {
	v := NewValidator()
	result := &SuggestionRationaleResult{SchemaVersion: "v999", Rationale: "because"}
	if err := v.ValidateSuggestionRationale(result, 0.5); err == nil {
		t.Error("expected error for unknown schema version")
	}
}

func TestValidateSuggestionRationale_RejectsEmptyRationale(t *testing.T) {
	v := NewValidator()
	result := &SuggestionRationaleResult{SchemaVersion: SchemaVersionSuggestionRationale}
	if err := v.ValidateSuggestionRationale(result, 0.5); err == nil {
		t.Error("expected error for empty rationale")
	}
}

func TestValidateSuggestionRationale_TruncatesLongRationale(t *testing.T) {
	v := NewValidator()
	result := &SuggestionRationaleResult{
		SchemaVersion:        SchemaVersionSuggestionRationale,
		Rationale:            strings.Repeat("y", 300),
		CalibratedConfidence: 0.5,
	}
	if err := v.ValidateSuggestionRationale(result, 0.5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Rationale) != 200 {
		t.Errorf("expected rationale truncated to 200 chars, got %d", len(result.Rationale))
	}
}

func TestValidateSuggestionRationale_ClampsAboveRuleConfidenceBand(t *testing.T) {
	v := NewValidator()
	result := &SuggestionRationaleResult{
		SchemaVersion:        SchemaVersionSuggestionRationale,
		Rationale:            "strongly supported by the rule",
		CalibratedConfidence: 0.99,
	}
	if err := v.ValidateSuggestionRationale(result, 0.5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.CalibratedConfidence > 0.70+1e-9 {
		t.Errorf("expected calibrated confidence clamped to rule_confidence+0.2, got %f", result.CalibratedConfidence)
	}
}

func TestValidateSuggestionRationale_ClampsBelowRuleConfidenceBand(t *testing.T) {
	v := NewValidator()
	result := &SuggestionRationaleResult{
		SchemaVersion:        SchemaVersionSuggestionRationale,
		Rationale:            "weakly supported",
		CalibratedConfidence: 0.01,
	}
	if err := v.ValidateSuggestionRationale(result, 0.5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.CalibratedConfidence < 0.30-1e-9 {
		t.Errorf("expected calibrated confidence clamped to rule_confidence-0.2, got %f", result.CalibratedConfidence)
	}
}
