// Package pipeline wires the Column Frame, Statistical/Semantic/Contextual
// analyzers, Fusion, Validator Set, Suggestion Engine, and Curation Layer
// into the end-to-end operations cmd/crucible exposes: analyze, validate,
// suggest, decide, and apply.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/cruciblehq/crucible/internal/ai"
	"github.com/cruciblehq/crucible/internal/column"
	"github.com/cruciblehq/crucible/internal/config"
	"github.com/cruciblehq/crucible/internal/contextual"
	"github.com/cruciblehq/crucible/internal/curation"
	"github.com/cruciblehq/crucible/internal/fusion"
	"github.com/cruciblehq/crucible/internal/semantic"
	"github.com/cruciblehq/crucible/internal/stats"
	"github.com/cruciblehq/crucible/internal/suggest"
	"github.com/cruciblehq/crucible/internal/validate"
)

// Pipeline bundles the configuration and optional LLM augmentor shared
// across every curation operation run against one input.
type Pipeline struct {
	cfg       *config.Config
	augmentor ai.Augmentor // nil when AI is disabled or unavailable
}

// New builds a Pipeline. If cfg.AIEnabled, it attempts to construct a live
// augmentor; failure to do so degrades to rule-only inference rather than
// failing the whole run (§4.5: "the pipeline degrades gracefully").
func New(cfg *config.Config) *Pipeline {
	p := &Pipeline{cfg: cfg}
	if !cfg.AIEnabled {
		return p
	}
	augmentor, err := ai.NewAugmentor(ai.Config{
		Model:          cfg.AnthropicModel,
		PromptProfile:  cfg.AIPromptProfile,
		CacheTTL:       cfg.AICacheTTL,
		MaxCacheSize:   cfg.AIMaxCacheSize,
		RequestTimeout: cfg.AIRequestTimeout,
		MaxRetries:     cfg.AIMaxRetries,
		APIKey:         cfg.AnthropicAPIKey,
		RetryBaseDelay: cfg.AIRetryBaseDelay,
	})
	if err != nil {
		return p
	}
	p.augmentor = augmentor
	return p
}

// Analyze runs the Statistical, Semantic, and Contextual analyzers plus
// Fusion over every column of table, producing a TableSchema (§4.1-§4.4).
func (p *Pipeline) Analyze(ctx context.Context, table *column.Table, curCtx curation.CurationContext) curation.TableSchema {
	nulls := stats.NewNullDetector(append(append([]string{}, p.cfg.NullTokensExtra...), contextual.NullTokens(curCtx)...))
	weights := fusion.DefaultWeights
	if curCtx.InferenceConfig.SourceWeights != nil {
		weights = weightsFromConfig(curCtx.InferenceConfig.SourceWeights)
	}

	columns := make([]curation.ColumnSchema, 0, table.ColumnCount())
	for _, frame := range table.Frames() {
		statProfile := stats.Analyze(frame, nulls)

		samples, _ := frame.NonNullSamples(nulls.IsNull, semantic.MaxSamples)
		semCandidate := semantic.Analyze(frame.Name, samples)

		ctxCandidates := contextual.Analyze(frame.Name, curCtx)

		var llm *fusion.LLMRefinement
		if p.augmentor != nil {
			llm = p.refineSchema(ctx, frame.Name, statProfile, semCandidate, samples, curCtx)
		}

		schema := fusion.Fuse(fusion.Inputs{
			ColumnName:  frame.Name,
			RowCount:    table.RowCount(),
			Statistical: statProfile,
			Semantic:    semCandidate,
			Contextual:  ctxCandidates,
			LLM:         llm,
		}, weights)
		columns = append(columns, schema)
	}

	return curation.TableSchema{Columns: columns}
}

func weightsFromConfig(w map[string]float64) fusion.Weights {
	weights := fusion.DefaultWeights
	if v, ok := w["contextual"]; ok {
		weights.Contextual = v
	}
	if v, ok := w["statistical"]; ok {
		weights.Statistical = v
	}
	if v, ok := w["semantic"]; ok {
		weights.Semantic = v
	}
	if v, ok := w["llm"]; ok {
		weights.LLM = v
	}
	return weights
}

// refineSchema asks the augmentor to refine one column's fused profile,
// translating its result into fusion's decoupled LLMRefinement shape.
// Any error degrades to nil (no LLM contribution) rather than failing
// analysis (§4.5).
func (p *Pipeline) refineSchema(ctx context.Context, column string, prof stats.Profile, cand semantic.Candidate, samples []string, curCtx curation.CurationContext) *fusion.LLMRefinement {
	budget := ai.NewTimeBudget(ai.TimeBudgetConfig{PerCallLimit: p.cfg.AITimeBudget, TotalLimit: p.cfg.AITimeBudget})
	callCtx, cancel, ok := budget.WithCallDeadline(ctx)
	if !ok {
		return nil
	}
	defer cancel()

	result, err := p.augmentor.RefineSchema(callCtx, ai.SchemaRefinementRequest{
		ColumnName:   column,
		InferredType: string(prof.Type),
		SemanticType: string(cand.SemanticType),
		SemanticRole: string(cand.Role),
		Samples:      samples,
		HeaderTokens: cand.HeaderTokens,
		Domain:       curCtx.Domain,
		StudyName:    curCtx.StudyName,
	})
	if err != nil || result == nil {
		return nil
	}
	return &fusion.LLMRefinement{
		SemanticRole: curation.SemanticRole(result.SemanticRole),
		Confidence:   result.RoleConfidence,
	}
}

// Validate runs the full validator set against schema and table (§4.6).
func (p *Pipeline) Validate(ctx context.Context, schema *curation.TableSchema, table *column.Table) ([]curation.Observation, error) {
	cfg := validate.Config{
		CompletenessWarnThreshold:  p.cfg.CompletenessWarnThreshold,
		CompletenessErrorThreshold: p.cfg.CompletenessErrorThreshold,
		TypeErrorFraction:          p.cfg.TypeErrorFraction,
		RangeErrorSpanMultiplier:   p.cfg.RangeErrorSpanMultiplier,
		Strict:                     p.cfg.Strict,
		OutlierWarnFraction:        p.cfg.OutlierWarnFraction,
		TypoMaxEditDistance:        p.cfg.TypoMaxEditDistance,
	}
	return validate.Run(ctx, schema, table, cfg, p.cfg.WorkerCount)
}

// rationaleAdapter implements suggest.RationaleAugmentor on top of
// ai.Augmentor's CalibrateSuggestion, translating between the two
// packages' request/response shapes.
type rationaleAdapter struct {
	augmentor ai.Augmentor
	budget    ai.TimeBudgetConfig
}

func (a rationaleAdapter) CalibrateSuggestion(ctx context.Context, action, description string, ruleConfidence float64) (string, float64, bool) {
	budget := ai.NewTimeBudget(a.budget)
	callCtx, cancel, ok := budget.WithCallDeadline(ctx)
	if !ok {
		return "", 0, false
	}
	defer cancel()

	result, err := a.augmentor.CalibrateSuggestion(callCtx, ai.SuggestionRationaleRequest{
		ActionTag:      action,
		RuleConfidence: ruleConfidence,
	})
	if err != nil || result == nil {
		return "", 0, false
	}
	return result.Rationale, result.CalibratedConfidence, true
}

// Suggest runs the Suggestion Engine over observations (§4.7).
func (p *Pipeline) Suggest(ctx context.Context, schema *curation.TableSchema, observations []curation.Observation) []curation.Suggestion {
	var engine *suggest.Engine
	if p.augmentor != nil {
		engine = suggest.NewEngine(rationaleAdapter{augmentor: p.augmentor, budget: ai.TimeBudgetConfig{PerCallLimit: p.cfg.AITimeBudget, TotalLimit: p.cfg.AITimeBudget}})
	} else {
		engine = suggest.NewEngine(nil)
	}
	return engine.GetSuggestions(ctx, schema, observations)
}

// BuildLayer runs analyze, validate, and suggest in sequence and returns a
// freshly populated Layer (§3, §4.8).
func (p *Pipeline) BuildLayer(ctx context.Context, table *column.Table, source curation.SourceMetadata, curCtx curation.CurationContext, now time.Time) (*curation.Layer, error) {
	schema := p.Analyze(ctx, table, curCtx)

	observations, err := p.Validate(ctx, &schema, table)
	if err != nil {
		return nil, fmt.Errorf("pipeline: validating: %w", err)
	}

	layer := curation.New(source, curCtx, schema, now)
	layer.SetObservations(observations)

	suggestions := p.Suggest(ctx, &schema, observations)
	if err := layer.SetSuggestions(suggestions); err != nil {
		return nil, fmt.Errorf("pipeline: setting suggestions: %w", err)
	}
	return layer, nil
}
