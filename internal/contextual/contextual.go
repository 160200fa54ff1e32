// Package contextual implements the Contextual Analyzer (§4.3): it turns
// user-supplied CurationContext hints into per-column overrides (highest
// trust, replace rather than blend into fusion) and priors.
//
// Grounded on the "override beats inference" precedence the teacher encodes
// for BYOK/manual column overrides in
// internal/converter/column_overrides.go, generalized from spreadsheet
// column mapping to Crucible's schema fields.
package contextual

import "github.com/cruciblehq/crucible/internal/curation"

// OverrideWeight is the fusion source weight for a Contextual override: it
// always wins (§4.4 default weights: Contextual 1.0).
const OverrideWeight = 1.0

// Candidate is one contextual analyzer output for a single column field.
type Candidate struct {
	Field      string // "semantic_role", "unique", "expected_values", "expected_range", "description"
	Value      any
	IsOverride bool // true: replace outright; false: a prior to blend at fusion
	Confidence float64
}

// Analyze derives the override/prior Candidates for one column from the
// curation context (§4.3). Known-column hints are always overrides; when
// the column is the context's identifier_column it also gets overrides
// setting semantic_role to SampleId and unique to true. The context's
// domain is not used here.
func Analyze(columnName string, ctx curation.CurationContext) []Candidate {
	var out []Candidate

	if hint, ok := ctx.KnownColumns[columnName]; ok {
		if len(hint.ExpectedValues) > 0 {
			out = append(out, Candidate{Field: "expected_values", Value: hint.ExpectedValues, IsOverride: true, Confidence: OverrideWeight})
		}
		if hint.ExpectedRange != nil {
			out = append(out, Candidate{Field: "expected_range", Value: *hint.ExpectedRange, IsOverride: true, Confidence: OverrideWeight})
		}
		if hint.Description != "" {
			out = append(out, Candidate{Field: "description", Value: hint.Description, IsOverride: true, Confidence: OverrideWeight})
		}
	}

	if ctx.IdentifierColumn == columnName {
		out = append(out, Candidate{Field: "semantic_role", Value: curation.RoleSampleId, IsOverride: true, Confidence: OverrideWeight})
		out = append(out, Candidate{Field: "unique", Value: true, IsOverride: true, Confidence: OverrideWeight})
	}

	return out
}

// NullTokens returns the extra null-token set supplied via context, for the
// statistical analyzer's null detector (§4.1's "per-column custom set").
func NullTokens(ctx curation.CurationContext) []string { return ctx.NullTokensExtra }
