package ai

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

const (
	// Cache key scopes, one per augmentor operation.
	CacheKeyScopeSchemaRefinement    = "schema_refinement"
	CacheKeyScopeObservationExplain  = "observation_explain"
	CacheKeyScopeSuggestionRationale = "suggestion_rationale"
)

// Augmentor defines the three LLM-backed augmentation calls available to the
// curation pipeline (§4.5). Every method is best-effort: a nil result with a
// non-nil error means the caller should proceed without augmentation rather
// than fail the run.
type Augmentor interface {
	RefineSchema(ctx context.Context, req SchemaRefinementRequest) (*SchemaRefinementResult, error)
	ExplainObservation(ctx context.Context, req ObservationExplainRequest) (*ObservationExplainResult, error)
	CalibrateSuggestion(ctx context.Context, req SuggestionRationaleRequest) (*SuggestionRationaleResult, error)
	GetMode() string // "on" when the underlying provider is configured
	GetModel() string
}

// Config holds augmentor configuration.
type Config struct {
	Model               string        // model name (e.g., "gpt-4o-mini")
	PromptProfile       string        // PromptProfileDefault or PromptProfileLite
	CacheTTL            time.Duration // Cache time-to-live
	MaxCacheSize        int           // Maximum cache entries
	RequestTimeout      time.Duration // Timeout for individual requests (upper bound; see TimeBudget)
	MaxRetries          int           // Number of retry attempts
	APIKey              string        // provider API key (required)
	RetryBaseDelay      time.Duration // Base delay between retries
	DisableCache        bool          // When true (BYOK), skip cache to avoid cross-user pollution
	MaxCompletionTokens int           // Guardrail: maximum completion tokens per request
	TimeBudget          TimeBudgetConfig
}

// DefaultConfig returns default configuration.
func DefaultConfig() Config {
	return Config{
		Model:               "gpt-4o-mini",
		PromptProfile:       PromptProfileDefault,
		CacheTTL:            1 * time.Hour,
		MaxCacheSize:        1000,
		RequestTimeout:      30 * time.Second,
		MaxRetries:          3,
		RetryBaseDelay:      1 * time.Second,
		MaxCompletionTokens: 1200,
		TimeBudget:          DefaultTimeBudgetConfig(),
	}
}

// AugmentorImpl implements Augmentor on top of the generic LLM client,
// reusing the cache/budget/tracer/metrics plumbing built for the teacher's
// column-mapping service.
type AugmentorImpl struct {
	client         *Client
	cache          CacheLayer
	validator      *Validator
	model          string
	promptProfile  string
	disableCache   bool
	promptRegistry *PromptRegistry
	promptBuilder  *PromptBuilder
	cacheMetrics   *CacheMetrics
	cacheCleanup   func()
	timeBudgetCfg  TimeBudgetConfig

	tracer        *AITracer
	costTracker   *CostTracker
	budgetManager *BudgetManager
	aiMetrics     *AIMetrics
}

// NewAugmentor creates a new augmentor instance.
func NewAugmentor(config Config) (*AugmentorImpl, error) {
	client, err := NewClient(config)
	if err != nil {
		return nil, err
	}

	cacheCfg := CacheConfigFromServiceConfig(config)
	cacheStack, cleanup, cacheErr := BuildCacheStack(cacheCfg)
	if cacheErr != nil {
		return nil, fmt.Errorf("cache setup failed: %w", cacheErr)
	}

	var cacheMetrics *CacheMetrics
	if multi, ok := cacheStack.(*MultiLevelCache); ok {
		cacheMetrics = AttachMetrics(multi)
	}

	aiMetrics := NewAIMetrics()
	costCalc := NewCostCalculator()
	costTracker := NewCostTracker()
	tracer := NewAITracer(aiMetrics, costCalc, costTracker)
	budgetMgr := NewBudgetManager(DefaultBudgetConfig())

	registry := DefaultPromptRegistry()

	return &AugmentorImpl{
		client:         client,
		cache:          cacheStack,
		validator:      NewValidator(),
		model:          config.Model,
		promptProfile:  NormalizePromptProfile(config.PromptProfile),
		disableCache:   config.DisableCache,
		promptRegistry: registry,
		promptBuilder:  NewPromptBuilder(registry, DefaultExampleStore()),
		cacheMetrics:   cacheMetrics,
		cacheCleanup:   cleanup,
		timeBudgetCfg:  config.TimeBudget,
		tracer:         tracer,
		costTracker:    costTracker,
		budgetManager:  budgetMgr,
		aiMetrics:      aiMetrics,
	}, nil
}

// GetMode returns "on" when the augmentor is active (used for metadata).
func (a *AugmentorImpl) GetMode() string { return "on" }

func (a *AugmentorImpl) GetModel() string { return a.model }

// RefineSchema asks the provider to confirm or correct a column's inferred
// semantic role and contribute a human-readable insight (§4.5).
func (a *AugmentorImpl) RefineSchema(ctx context.Context, req SchemaRefinementRequest) (*SchemaRefinementResult, error) {
	var cacheKey string
	if !a.disableCache {
		var err error
		cacheKey, err = MakeCacheKey(CacheKeyScopeSchemaRefinement, a.model, a.promptCacheVersion(PromptIDSchemaRefinement), SchemaVersionSchemaRefinement, req)
		if err == nil {
			if cached, ok := a.cache.Get(cacheKey); ok {
				a.recordCacheHit(CacheKeyScopeSchemaRefinement)
				return cached.(*SchemaRefinementResult), nil
			}
		}
	}

	if err := a.checkBudget(CacheKeyScopeSchemaRefinement); err != nil {
		return nil, err
	}

	var result *SchemaRefinementResult
	trace, err := a.tracer.TraceCall(ctx, TraceInput{
		Operation: CacheKeyScopeSchemaRefinement,
		Model:     a.model,
	}, func(ctx context.Context) (*TraceOutput, error) {
		r, usage, callErr := a.client.RefineColumnSchema(ctx, req)
		if callErr != nil {
			return nil, callErr
		}
		result = r
		out := &TraceOutput{Confidence: r.RoleConfidence}
		if usage != nil {
			out.InputTokens = usage.InputTokens
			out.OutputTokens = usage.OutputTokens
		}
		return out, nil
	})
	a.logAICall(trace, err)
	if err != nil {
		return nil, err
	}
	a.recordSpend(trace.Cost.TotalCost)

	if err := a.validator.ValidateSchemaRefinement(result); err != nil {
		slog.Warn("ai.RefineSchema validation failed", "error", err, "column", req.ColumnName)
		return nil, err
	}

	if !a.disableCache && cacheKey != "" {
		a.cache.Set(cacheKey, result)
	}

	return result, nil
}

// ExplainObservation asks the provider for reviewer-facing prose explaining
// a detected data quality observation (§4.5/§4.6).
func (a *AugmentorImpl) ExplainObservation(ctx context.Context, req ObservationExplainRequest) (*ObservationExplainResult, error) {
	var cacheKey string
	if !a.disableCache {
		var err error
		cacheKey, err = MakeCacheKey(CacheKeyScopeObservationExplain, a.model, a.promptCacheVersion(PromptIDObservationExplain), SchemaVersionObservationExplain, req)
		if err == nil {
			if cached, ok := a.cache.Get(cacheKey); ok {
				a.recordCacheHit(CacheKeyScopeObservationExplain)
				return cached.(*ObservationExplainResult), nil
			}
		}
	}

	if err := a.checkBudget(CacheKeyScopeObservationExplain); err != nil {
		return nil, err
	}

	var result *ObservationExplainResult
	trace, err := a.tracer.TraceCall(ctx, TraceInput{
		Operation: CacheKeyScopeObservationExplain,
		Model:     a.model,
	}, func(ctx context.Context) (*TraceOutput, error) {
		r, usage, callErr := a.client.ExplainObservation(ctx, req)
		if callErr != nil {
			return nil, callErr
		}
		result = r
		out := &TraceOutput{Confidence: r.Confidence}
		if usage != nil {
			out.InputTokens = usage.InputTokens
			out.OutputTokens = usage.OutputTokens
		}
		return out, nil
	})
	a.logAICall(trace, err)
	if err != nil {
		return nil, err
	}
	a.recordSpend(trace.Cost.TotalCost)

	if err := a.validator.ValidateObservationExplain(result); err != nil {
		slog.Warn("ai.ExplainObservation validation failed", "error", err, "observation_type", req.ObservationType)
		return nil, err
	}

	if !a.disableCache && cacheKey != "" {
		a.cache.Set(cacheKey, result)
	}

	return result, nil
}

// CalibrateSuggestion asks the provider to write rationale text and
// calibrate confidence for a rule-generated suggestion (§4.7). It never
// changes the action the rule engine chose.
func (a *AugmentorImpl) CalibrateSuggestion(ctx context.Context, req SuggestionRationaleRequest) (*SuggestionRationaleResult, error) {
	var cacheKey string
	if !a.disableCache {
		var err error
		cacheKey, err = MakeCacheKey(CacheKeyScopeSuggestionRationale, a.model, a.promptCacheVersion(PromptIDSuggestionRationale), SchemaVersionSuggestionRationale, req)
		if err == nil {
			if cached, ok := a.cache.Get(cacheKey); ok {
				a.recordCacheHit(CacheKeyScopeSuggestionRationale)
				return cached.(*SuggestionRationaleResult), nil
			}
		}
	}

	if err := a.checkBudget(CacheKeyScopeSuggestionRationale); err != nil {
		return nil, err
	}

	var result *SuggestionRationaleResult
	trace, err := a.tracer.TraceCall(ctx, TraceInput{
		Operation: CacheKeyScopeSuggestionRationale,
		Model:     a.model,
	}, func(ctx context.Context) (*TraceOutput, error) {
		r, usage, callErr := a.client.CalibrateSuggestion(ctx, req)
		if callErr != nil {
			return nil, callErr
		}
		result = r
		out := &TraceOutput{Confidence: r.CalibratedConfidence}
		if usage != nil {
			out.InputTokens = usage.InputTokens
			out.OutputTokens = usage.OutputTokens
		}
		return out, nil
	})
	a.logAICall(trace, err)
	if err != nil {
		return nil, err
	}
	a.recordSpend(trace.Cost.TotalCost)

	if err := a.validator.ValidateSuggestionRationale(result, req.RuleConfidence); err != nil {
		slog.Warn("ai.CalibrateSuggestion validation failed", "error", err, "action_tag", req.ActionTag)
		return nil, err
	}

	if !a.disableCache && cacheKey != "" {
		a.cache.Set(cacheKey, result)
	}

	return result, nil
}

// promptCacheVersion returns the hash-based cache version for an operation,
// falling back to the prompt's own version constant if registry lookup fails.
func (a *AugmentorImpl) promptCacheVersion(promptID string) string {
	if a.promptRegistry != nil {
		if entry, ok := a.promptRegistry.Get(promptID); ok {
			return entry.CacheVersion()
		}
	}
	return "v1"
}

// --- Observability helpers ---

func (a *AugmentorImpl) checkBudget(operation string) error {
	if a.budgetManager == nil {
		return nil
	}
	ok, remaining := a.budgetManager.CheckBudget()
	if !ok {
		slog.Warn("ai_budget_exceeded", "operation", operation, "remaining", remaining)
		return fmt.Errorf("%w: daily AI budget exceeded", ErrAIUnavailable)
	}
	return nil
}

func (a *AugmentorImpl) recordSpend(cost float64) {
	if a.budgetManager != nil && cost > 0 {
		a.budgetManager.RecordSpend(cost)
	}
}

func (a *AugmentorImpl) recordCacheHit(operation string) {
	if a.tracer != nil {
		a.tracer.TraceCall(context.Background(), TraceInput{
			Operation: operation,
			Model:     a.model,
			CacheHit:  true,
		}, func(ctx context.Context) (*TraceOutput, error) {
			return &TraceOutput{}, nil
		})
	}
}

func (a *AugmentorImpl) logAICall(trace AICallTrace, err error) {
	attrs := []any{
		"operation", trace.Operation,
		"model", trace.Model,
		"latency_ms", trace.Latency.Milliseconds(),
		"input_tokens", trace.InputTokens,
		"output_tokens", trace.OutputTokens,
		"cost_usd", fmt.Sprintf("%.6f", trace.Cost.TotalCost),
		"confidence", fmt.Sprintf("%.2f", trace.Confidence),
		"cache_hit", trace.CacheHit,
	}

	if err != nil {
		attrs = append(attrs, "error", err.Error())
		slog.Error("ai_call_failed", attrs...)
	} else {
		slog.Info("ai_call_completed", attrs...)
	}
}

// GetAIMetrics returns the AI pipeline metrics snapshot.
func (a *AugmentorImpl) GetAIMetrics() AIMetricsSnapshot {
	if a.aiMetrics == nil {
		return AIMetricsSnapshot{}
	}
	return a.aiMetrics.GetSnapshot()
}

// GetCostSummary returns the cost tracking summary.
func (a *AugmentorImpl) GetCostSummary() CostSummary {
	if a.costTracker == nil {
		return CostSummary{}
	}
	return a.costTracker.GetSummary()
}

// GetBudgetStatus returns the current budget status.
func (a *AugmentorImpl) GetBudgetStatus() BudgetStatus {
	if a.budgetManager == nil {
		return BudgetStatus{}
	}
	return a.budgetManager.GetStatus()
}

// GetAIMetricsPrometheus returns metrics in Prometheus text format.
func (a *AugmentorImpl) GetAIMetricsPrometheus() string {
	if a.aiMetrics == nil {
		return ""
	}
	return a.aiMetrics.PrometheusFormat()
}

// PromptInfo contains metadata about a registered prompt (for diagnostics).
type PromptInfo struct {
	ID           string `json:"id"`
	Version      string `json:"version"`
	Hash         string `json:"hash"`
	CacheVersion string `json:"cache_version"`
}

// GetPromptInfo returns metadata about all registered prompts.
func (a *AugmentorImpl) GetPromptInfo() []PromptInfo {
	if a.promptRegistry == nil {
		return nil
	}
	entries := a.promptRegistry.List()
	info := make([]PromptInfo, len(entries))
	for i, e := range entries {
		info[i] = PromptInfo{
			ID:           e.ID,
			Version:      e.Version,
			Hash:         e.Hash,
			CacheVersion: e.CacheVersion(),
		}
	}
	return info
}

// GetCacheMetrics returns a point-in-time snapshot of cache performance metrics.
func (a *AugmentorImpl) GetCacheMetrics() CacheMetricsSnapshot {
	if a.cacheMetrics == nil {
		return CacheMetricsSnapshot{}
	}
	return a.cacheMetrics.GetStats()
}

// Close releases resources held by the augmentor (e.g., persistent cache DB).
// Should be called on server shutdown.
func (a *AugmentorImpl) Close() error {
	if a.cacheCleanup != nil {
		a.cacheCleanup()
	}
	return nil
}
