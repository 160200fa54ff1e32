package ai

// Schema versions - bump when changing structure
const (
	SchemaVersionSchemaRefinement    = "v1"
	SchemaVersionObservationExplain  = "v1"
	SchemaVersionSuggestionRationale = "v1"
)

// ==================== Schema Refinement ====================

// SchemaRefinementRequest carries a fused column profile plus samples for
// the augmentor to refine (§4.5: "given fused schema + samples, request
// refinement and insights from an external provider").
type SchemaRefinementRequest struct {
	ColumnName    string   `json:"column_name"`
	InferredType  string   `json:"inferred_type"`
	SemanticType  string   `json:"semantic_type"`
	SemanticRole  string   `json:"semantic_role"`
	Samples       []string `json:"samples"`
	HeaderTokens  []string `json:"header_tokens"`
	Domain        string   `json:"domain,omitempty"`
	StudyName     string   `json:"study_name,omitempty"`
	ExistingNotes string   `json:"existing_notes,omitempty"`
}

// SchemaRefinementResult is the structured output of a schema refinement call.
type SchemaRefinementResult struct {
	SchemaVersion     string   `json:"schema_version"`
	SemanticRole      string   `json:"semantic_role"` // one of curation.SemanticRole values
	RoleConfidence    float64  `json:"role_confidence"`
	ExpectedValues    []string `json:"expected_values,omitempty"`
	ExpectedRangeLow  *float64 `json:"expected_range_low,omitempty"`
	ExpectedRangeHigh *float64 `json:"expected_range_high,omitempty"`
	Insight           string   `json:"insight,omitempty"`
}

// ==================== Observation Explanation ====================

// ObservationExplainRequest asks the augmentor for a human-readable
// explanation of a machine-detected observation.
type ObservationExplainRequest struct {
	ObservationType string `json:"observation_type"`
	Column          string `json:"column"`
	Severity        string `json:"severity"`
	EvidenceSummary string `json:"evidence_summary"`
}

// ObservationExplainResult is the structured output of an explanation call.
type ObservationExplainResult struct {
	SchemaVersion string  `json:"schema_version"`
	Explanation   string  `json:"explanation"`
	Confidence    float64 `json:"confidence"`
}

// ==================== Suggestion Rationale ====================

// SuggestionRationaleRequest asks the augmentor to write rationale text and
// calibrate confidence for a rule-generated suggestion. The action and
// parameters themselves are never decided by the augmentor (§4.7).
type SuggestionRationaleRequest struct {
	ActionTag       string  `json:"action_tag"`
	ObservationType string  `json:"observation_type"`
	Column          string  `json:"column"`
	RuleConfidence  float64 `json:"rule_confidence"`
	AffectedRows    int     `json:"affected_rows"`
}

// SuggestionRationaleResult is the structured output of a rationale call.
type SuggestionRationaleResult struct {
	SchemaVersion        string  `json:"schema_version"`
	Rationale            string  `json:"rationale"`
	CalibratedConfidence float64 `json:"calibrated_confidence"`
}
