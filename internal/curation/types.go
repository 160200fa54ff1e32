// Package curation holds Crucible's central data model — the ColumnSchema,
// TableSchema, Observation, Suggestion, and Decision types every other
// component reads or produces — plus the CurationLayer that aggregates them
// into the single durable document a curation run operates on.
package curation

import "time"

// PrimitiveType is the inferred storage type of a column.
type PrimitiveType string

const (
	TypeInteger  PrimitiveType = "Integer"
	TypeFloat    PrimitiveType = "Float"
	TypeString   PrimitiveType = "String"
	TypeBoolean  PrimitiveType = "Boolean"
	TypeDate     PrimitiveType = "Date"
	TypeDateTime PrimitiveType = "DateTime"
)

// SemanticType is the inferred analytical role of a column's values.
type SemanticType string

const (
	SemanticIdentifier SemanticType = "Identifier"
	SemanticCategorical SemanticType = "Categorical"
	SemanticOrdinal     SemanticType = "Ordinal"
	SemanticContinuous  SemanticType = "Continuous"
	SemanticFreeText    SemanticType = "FreeText"
	SemanticMissing     SemanticType = "Missing"
)

// SemanticRole is the inferred purpose of a column within a study/dataset.
type SemanticRole string

const (
	RoleSampleId       SemanticRole = "SampleId"
	RoleGroupingVar    SemanticRole = "GroupingVar"
	RoleCovariate      SemanticRole = "Covariate"
	RoleOutcome        SemanticRole = "Outcome"
	RoleTechnical      SemanticRole = "Technical"
	RoleAdministrative SemanticRole = "Administrative"
	RoleUnknown        SemanticRole = "Unknown"
)

// InferenceSource names a contributor to a fused field value.
type InferenceSource string

const (
	SourceContextual InferenceSource = "Contextual"
	SourceStatistical InferenceSource = "Statistical"
	SourceSemantic    InferenceSource = "Semantic"
	SourceLLM         InferenceSource = "LLM"
)

// Range is an inclusive numeric bound, used for both expected ranges and
// observed min/max summaries.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// NumericSummary holds the statistical profile computed for Integer/Float
// columns (§4.1).
type NumericSummary struct {
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	Std    float64 `json:"std"`
	Q1     float64 `json:"q1"`
	Median float64 `json:"median"`
	Q3     float64 `json:"q3"`
}

// ColumnStats is the full statistical profile attached to a ColumnSchema.
type ColumnStats struct {
	NullCount          int            `json:"null_count"`
	NullPatternCounts  map[string]int `json:"null_pattern_counts,omitempty"`
	UniqueCount        int            `json:"unique_count"`
	ValueCounts        map[string]int `json:"value_counts,omitempty"`
	Numeric            *NumericSummary `json:"numeric,omitempty"`
	OutlierRowIndices  []int          `json:"outlier_row_indices,omitempty"`
}

// Constraint is an ordered, named rule attached to a column by fusion
// (e.g. a derived regex pattern or an expected-range bound).
type Constraint struct {
	Kind  string `json:"kind"`
	Value string `json:"value"`
}

// ColumnSchema is the fused, per-column inference result (§3).
type ColumnSchema struct {
	Name             string            `json:"name"`
	InferredType     PrimitiveType     `json:"inferred_type"`
	SemanticType     SemanticType      `json:"semantic_type"`
	SemanticRole     SemanticRole      `json:"semantic_role"`
	Nullable         bool              `json:"nullable"`
	Unique           bool              `json:"unique"`
	ExpectedValues   []string          `json:"expected_values,omitempty"`
	ExpectedRange    *Range            `json:"expected_range,omitempty"`
	Constraints      []Constraint      `json:"constraints,omitempty"`
	Stats            ColumnStats       `json:"stats"`
	Confidence       float64           `json:"confidence"`
	InferenceSources []InferenceSource `json:"inference_sources,omitempty"`
}

// CrossColumnRule is a conditional-presence or functional-dependency rule
// spanning more than one column.
type CrossColumnRule struct {
	ID          string   `json:"id"`
	Description string   `json:"description"`
	Columns     []string `json:"columns"`
}

// TableSchema is the ordered set of column schemas plus row-level and
// cross-column constraints (§3).
type TableSchema struct {
	Columns          []ColumnSchema    `json:"columns"`
	UniqueKey        []string          `json:"unique_key,omitempty"`
	CrossColumnRules []CrossColumnRule `json:"cross_column_rules,omitempty"`
}

// ColumnNames returns the schema's column names in declared order.
func (t *TableSchema) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Column returns the ColumnSchema for name, or nil if the table has no such
// column.
func (t *TableSchema) Column(name string) *ColumnSchema {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i]
		}
	}
	return nil
}

// ObservationType tags the kind of problem an Observation reports.
type ObservationType string

const (
	ObsMissingPattern       ObservationType = "MissingPattern"
	ObsInconsistency        ObservationType = "Inconsistency"
	ObsOutlier              ObservationType = "Outlier"
	ObsDuplicate            ObservationType = "Duplicate"
	ObsTypeMismatch         ObservationType = "TypeMismatch"
	ObsConstraintViolation  ObservationType = "ConstraintViolation"
	ObsCompleteness         ObservationType = "Completeness"
	ObsCardinality          ObservationType = "Cardinality"
	ObsCrossColumn          ObservationType = "CrossColumn"
)

// Severity ranks how urgently an Observation should be reviewed.
type Severity string

const (
	SeverityInfo    Severity = "Info"
	SeverityWarning Severity = "Warning"
	SeverityError   Severity = "Error"
)

// Rank returns the ordinal used by the suggestion-priority formula
// and by observation sort order (§4.7, §5): Info < Warning < Error.
func (s Severity) Rank() int {
	switch s {
	case SeverityInfo:
		return 1
	case SeverityWarning:
		return 2
	case SeverityError:
		return 3
	default:
		return 0
	}
}

// Evidence is a tagged union over the small closed set of evidence shapes
// validators emit (§9). Exactly one field should be populated; it is
// serialized untagged (a flat JSON object) for file compatibility (§6).
type Evidence struct {
	ValueCounts     map[string]int `json:"value_counts,omitempty"`
	RowIndices      []int          `json:"row_indices,omitempty"`
	ValueAtRow      *ValueAtRow    `json:"value_at_row,omitempty"`
	ExpectedVsActual *ExpectedVsActual `json:"expected_vs_actual,omitempty"`
	Custom          map[string]any `json:"custom,omitempty"`
}

// ValueAtRow pins a single offending value to the row it came from.
type ValueAtRow struct {
	Row   int    `json:"row"`
	Value string `json:"value"`
}

// ExpectedVsActual records a mismatch between a declared/expected shape and
// what was actually observed.
type ExpectedVsActual struct {
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
}

// Observation is a machine-detected fact about the data (§3). Observations
// are created once during validation and never mutated afterward.
type Observation struct {
	ID          string          `json:"id"`
	Type        ObservationType `json:"type"`
	Severity    Severity        `json:"severity"`
	Column      string          `json:"column,omitempty"`
	Columns     []string        `json:"columns,omitempty"`
	Description string          `json:"description"`
	Evidence    Evidence        `json:"evidence"`
	Confidence  float64         `json:"confidence"`
	Detector    string          `json:"detector"`
	DetectedAt  time.Time       `json:"detected_at"`
}

// AffectedColumns returns Column alone, or Columns for cross-column
// observations, whichever is populated.
func (o *Observation) AffectedColumns() []string {
	if o.Column != "" {
		return []string{o.Column}
	}
	return o.Columns
}

// AffectedRowCount returns the number of rows the evidence identifies as
// affected, used by both the suggestion engine (inherited row count) and
// the data-quality-score formula (§4.8).
func (o *Observation) AffectedRowCount() int {
	switch {
	case o.Evidence.RowIndices != nil:
		return len(o.Evidence.RowIndices)
	case o.Evidence.ValueAtRow != nil:
		return 1
	case o.Evidence.ValueCounts != nil:
		total := 0
		for _, n := range o.Evidence.ValueCounts {
			total += n
		}
		return total
	default:
		return 0
	}
}

// ActionTag names the kind of fix a Suggestion proposes.
type ActionTag string

const (
	ActionStandardize ActionTag = "Standardize"
	ActionConvertNA   ActionTag = "ConvertNA"
	ActionCoerce      ActionTag = "Coerce"
	ActionFlag        ActionTag = "Flag"
	ActionRemove      ActionTag = "Remove"
	ActionMerge       ActionTag = "Merge"
	ActionRename      ActionTag = "Rename"
	ActionSplit       ActionTag = "Split"
	ActionDerive      ActionTag = "Derive"
	ActionConvertDate ActionTag = "ConvertDate"
)

// reversibleActions lists actions whose effect can be fully undone by
// re-running transform against the original rows; used by the priority
// formula's action weight (§4.7).
var reversibleActions = map[ActionTag]bool{
	ActionStandardize: true,
	ActionConvertNA:   true,
	ActionFlag:        true,
	ActionConvertDate: true,
	ActionRename:      true,
}

// IsReversible reports whether action is generally undoable.
func (a ActionTag) IsReversible() bool { return reversibleActions[a] }

// Suggestion is a concrete, proposed fix for exactly one Observation (§3).
// Created once during suggestion generation and never mutated afterward.
type Suggestion struct {
	ID              string         `json:"id"`
	ObservationID   string         `json:"observation_id"`
	Action          ActionTag      `json:"action"`
	Parameters      map[string]any `json:"parameters,omitempty"`
	Priority        float64        `json:"priority"`
	Rationale       string         `json:"rationale"`
	AffectedRows    int            `json:"affected_rows"`
	Confidence      float64        `json:"confidence"`
	Reversible      bool           `json:"reversible"`
}

// DecisionStatus tracks where a Decision sits in its lifecycle (§3).
type DecisionStatus string

const (
	DecisionPending  DecisionStatus = "Pending"
	DecisionAccepted DecisionStatus = "Accepted"
	DecisionRejected DecisionStatus = "Rejected"
	DecisionModified DecisionStatus = "Modified"
	DecisionApplied  DecisionStatus = "Applied"
)

// Decision is the user's verdict on exactly one Suggestion (§3). Decisions
// are append-only: status transitions are the only mutation, and a
// Decision is never deleted — Reset transitions status back to Pending
// rather than removing the record.
type Decision struct {
	ID            string         `json:"id"`
	SuggestionID  string         `json:"suggestion_id"`
	Status        DecisionStatus `json:"status"`
	Actor         string         `json:"actor"`
	Timestamp     time.Time      `json:"timestamp"`
	Modifications map[string]any `json:"modifications,omitempty"`
	Notes         string         `json:"notes,omitempty"`
}

// SourceFormat names the parsed shape of the original input file.
type SourceFormat string

const (
	FormatTSV     SourceFormat = "tsv"
	FormatCSV     SourceFormat = "csv"
	FormatJSONL   SourceFormat = "jsonl"
	FormatXLSX    SourceFormat = "xlsx"
	FormatParquet SourceFormat = "parquet"
)

// SourceMetadata identifies the raw bytes a layer was computed from (§3, §6).
type SourceMetadata struct {
	File         string       `json:"file"`
	Hash         string       `json:"hash"`
	SizeBytes    int64        `json:"size_bytes"`
	Format       SourceFormat `json:"format"`
	Encoding     string       `json:"encoding"`
	RowCount     int          `json:"row_count"`
	ColumnCount  int          `json:"column_count"`
	AnalyzedAt   time.Time    `json:"analyzed_at"`
}

// ColumnHint is a per-column context override supplied by the user (§6).
type ColumnHint struct {
	Description    string   `json:"description,omitempty"`
	ExpectedValues []string `json:"expected_values,omitempty"`
	ExpectedRange  *Range   `json:"expected_range,omitempty"`
	Ontology       string   `json:"ontology,omitempty"`
}

// InferenceConfig tunes the inference/validation pipeline (§6).
type InferenceConfig struct {
	ConfidenceThreshold float64            `json:"confidence_threshold"`
	LLMEnabled          bool               `json:"llm_enabled"`
	SourceWeights       map[string]float64 `json:"source_weights,omitempty"`
}

// CurationContext is the full set of user-supplied hints consumed by the
// contextual analyzer (§4.3, §6).
type CurationContext struct {
	Domain              string                `json:"domain,omitempty"`
	StudyName           string                `json:"study_name,omitempty"`
	ExpectedSampleCount int                   `json:"expected_sample_count,omitempty"`
	IdentifierColumn    string                `json:"identifier_column,omitempty"`
	KnownColumns        map[string]ColumnHint `json:"known_columns,omitempty"`
	NullTokensExtra     []string              `json:"null_tokens_extra,omitempty"`
	Strict              bool                  `json:"strict,omitempty"`
	InferenceConfig     InferenceConfig       `json:"inference_config"`
}

// Summary is the recomputed-after-every-mutation rollup of a layer's state
// (§4.8).
type Summary struct {
	TotalColumns           int            `json:"total_columns"`
	TotalObservations      int            `json:"total_observations"`
	TotalSuggestions       int            `json:"total_suggestions"`
	CountsBySeverity       map[string]int `json:"counts_by_severity"`
	CountsByObservationType map[string]int `json:"counts_by_observation_type"`
	CountsByDecisionStatus map[string]int `json:"counts_by_decision_status"`
	TotalAffectedRows      int            `json:"total_affected_rows"`
	DataQualityScore       float64        `json:"data_quality_score"`
	Recommendation         string         `json:"recommendation"`
}

// CurationLayer is the root document: source identity, schema, findings,
// and the append-only decision log tying them together (§3).
type CurationLayer struct {
	Version     string           `json:"crucible_version"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
	Source      SourceMetadata   `json:"source"`
	Context     CurationContext  `json:"context"`
	Schema      TableSchema      `json:"schema"`
	Observations []Observation   `json:"observations"`
	Suggestions []Suggestion     `json:"suggestions"`
	Decisions   []Decision       `json:"decisions"`
	Summary     Summary          `json:"summary"`
	Stale       bool             `json:"stale,omitempty"`

	// Extra preserves unknown top-level fields encountered on load so they
	// round-trip unchanged (§6 forward compatibility).
	Extra map[string]any `json:"-"`
}
