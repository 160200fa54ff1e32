// Package fusion implements component E (§4.4): combining the statistical,
// semantic, and contextual profiles — plus an optional LLM refinement —
// into a single ColumnSchema with a fused confidence score and a record of
// every contributing source.
package fusion

import (
	"github.com/cruciblehq/crucible/internal/contextual"
	"github.com/cruciblehq/crucible/internal/curation"
	"github.com/cruciblehq/crucible/internal/semantic"
	"github.com/cruciblehq/crucible/internal/stats"
)

// Weights are the per-source weights used in final_confidence =
// Σ(source_confidence × source_weight) (§4.4). Defaults match the spec
// exactly; Contextual is conventionally 1.0 and always an override.
type Weights struct {
	Contextual  float64
	Statistical float64
	Semantic    float64
	LLM         float64
}

// DefaultWeights are the spec's default per-source weights (§4.4).
var DefaultWeights = Weights{Contextual: 1.0, Statistical: 0.6, Semantic: 0.4, LLM: 0.5}

func (w Weights) of(source curation.InferenceSource) float64 {
	switch source {
	case curation.SourceContextual:
		return w.Contextual
	case curation.SourceStatistical:
		return w.Statistical
	case curation.SourceSemantic:
		return w.Semantic
	case curation.SourceLLM:
		return w.LLM
	default:
		return 0
	}
}

// LLMRefinement is the subset of an LLM augmentor's schema-refinement
// result fusion needs, kept decoupled from internal/ai's request/response
// envelope so fusion has no dependency on the augmentor.
type LLMRefinement struct {
	SemanticType curation.SemanticType
	SemanticRole curation.SemanticRole
	Confidence   float64
}

// Inputs bundles everything fusion needs for one column (§4.4 step 1).
type Inputs struct {
	ColumnName  string
	RowCount    int
	Statistical stats.Profile
	Semantic    semantic.Candidate
	Contextual  []contextual.Candidate
	LLM         *LLMRefinement // nil when augmentation was skipped/unavailable
}

type candidate struct {
	value      any
	source     curation.InferenceSource
	confidence float64
	isOverride bool
}

// Fuse runs the fusion algorithm (§4.4) for one column and returns its
// ColumnSchema.
func Fuse(in Inputs, weights Weights) curation.ColumnSchema {
	fields := map[string][]candidate{}

	addType := func(value curation.PrimitiveType, source curation.InferenceSource, conf float64) {
		fields["inferred_type"] = append(fields["inferred_type"], candidate{value, source, conf, false})
	}
	addSemantic := func(value curation.SemanticType, source curation.InferenceSource, conf float64, override bool) {
		fields["semantic_type"] = append(fields["semantic_type"], candidate{value, source, conf, override})
	}
	addRole := func(value curation.SemanticRole, source curation.InferenceSource, conf float64, override bool) {
		fields["semantic_role"] = append(fields["semantic_role"], candidate{value, source, conf, override})
	}

	addType(in.Statistical.Type, curation.SourceStatistical, in.Statistical.TypeConfidence)

	if in.Semantic.SemanticType != "" {
		addSemantic(in.Semantic.SemanticType, curation.SourceSemantic, in.Semantic.SemanticConfidence, false)
	}
	if in.Semantic.Role != "" {
		addRole(in.Semantic.Role, curation.SourceSemantic, in.Semantic.RoleConfidence, false)
	}

	if in.LLM != nil {
		if in.LLM.SemanticType != "" {
			addSemantic(in.LLM.SemanticType, curation.SourceLLM, in.LLM.Confidence, false)
		}
		if in.LLM.SemanticRole != "" {
			addRole(in.LLM.SemanticRole, curation.SourceLLM, in.LLM.Confidence, false)
		}
	}

	var expectedValues []string
	var expectedRange *curation.Range
	var unique bool
	var description string

	for _, c := range in.Contextual {
		switch c.Field {
		case "semantic_role":
			addRole(c.Value.(curation.SemanticRole), curation.SourceContextual, c.Confidence, true)
		case "expected_values":
			expectedValues = c.Value.([]string)
		case "expected_range":
			r := c.Value.(curation.Range)
			expectedRange = &r
		case "unique":
			unique = c.Value.(bool)
		case "description":
			description = c.Value.(string)
		}
	}
	_ = description

	schema := curation.ColumnSchema{
		Name:           in.ColumnName,
		Nullable:       in.Statistical.Stats.NullCount > 0,
		Unique:         unique || in.Statistical.Stats.UniqueCount == in.RowCount && in.RowCount > 0,
		ExpectedValues: expectedValues,
		ExpectedRange:  expectedRange,
		Stats:          in.Statistical.Stats,
	}

	schema.InferredType, schema.SemanticType, schema.SemanticRole, schema.Confidence, schema.InferenceSources =
		resolve(fields, weights, in)

	resolveContradictions(&schema, in)

	if in.Statistical.Stats.NullCount == len(in.Statistical.Stats.NullPatternCounts) && in.RowCount > 0 {
		// all-null column handled below in resolveContradictions
	}

	return schema
}

// resolve picks the winning value per field (highest final_confidence,
// summed over every source proposing that value, with any Contextual
// override short-circuiting the rest) and aggregates
// every contributing source across all fields (§4.4 steps 2-3).
func resolve(fields map[string][]candidate, weights Weights, in Inputs) (
	curation.PrimitiveType, curation.SemanticType, curation.SemanticRole, float64, []curation.InferenceSource,
) {
	sourceSet := map[curation.InferenceSource]bool{}
	var totalConfidence float64
	var fieldCount int

	pickBest := func(cands []candidate) (candidate, bool) {
		var best candidate
		found := false
		bestScore := -1.0
		scores := map[any]float64{}
		for _, c := range cands {
			sourceSet[c.source] = true
			if c.isOverride {
				return c, true
			}
			scores[c.value] += c.confidence * weights.of(c.source)
			if score := scores[c.value]; score > bestScore {
				bestScore = score
				best = c
				found = true
			}
		}
		if found {
			totalConfidence += bestScore
			fieldCount++
		}
		return best, found
	}

	var typ curation.PrimitiveType = curation.TypeString
	if c, ok := pickBest(fields["inferred_type"]); ok {
		typ = c.value.(curation.PrimitiveType)
	}
	var semType curation.SemanticType
	if c, ok := pickBest(fields["semantic_type"]); ok {
		semType = c.value.(curation.SemanticType)
	}
	var role curation.SemanticRole = curation.RoleUnknown
	if c, ok := pickBest(fields["semantic_role"]); ok {
		role = c.value.(curation.SemanticRole)
	}

	confidence := 0.0
	if fieldCount > 0 {
		confidence = totalConfidence / float64(fieldCount)
		if confidence > 1 {
			confidence = 1
		}
	}

	sources := make([]curation.InferenceSource, 0, len(sourceSet))
	for s := range sourceSet {
		sources = append(sources, s)
	}
	return typ, semType, role, confidence, sources
}

// resolveContradictions applies the deterministic tie-breaks named in
// §4.4 step 4 and the all-null boundary behavior from §8.
func resolveContradictions(schema *curation.ColumnSchema, in Inputs) {
	// "if statistical says Integer but semantic says Identifier, choose
	// String/Identifier when unique_count == row_count"
	if schema.InferredType == curation.TypeInteger && schema.SemanticType == curation.SemanticIdentifier &&
		in.RowCount > 0 && in.Statistical.Stats.UniqueCount == in.RowCount {
		schema.InferredType = curation.TypeString
	}

	if in.RowCount > 0 && in.Statistical.Stats.NullCount == in.RowCount {
		schema.InferredType = curation.TypeString
		schema.SemanticType = curation.SemanticMissing
		schema.Stats.OutlierRowIndices = nil
	}

	if schema.SemanticType == "" {
		schema.SemanticType = defaultSemanticType(schema.InferredType)
	}
}

func defaultSemanticType(t curation.PrimitiveType) curation.SemanticType {
	switch t {
	case curation.TypeInteger, curation.TypeFloat:
		return curation.SemanticContinuous
	case curation.TypeBoolean:
		return curation.SemanticCategorical
	default:
		return curation.SemanticFreeText
	}
}
