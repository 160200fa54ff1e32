package ai

// ModelRouterConfig configures model selection thresholds and model names.
type ModelRouterConfig struct {
	SimpleModel  string // Model for routine calls (default: gpt-4o-mini)
	ComplexModel string // Model for harder calls (default: gpt-4o)
	// SampleThreshold: schema refinement calls with more than this many
	// sampled values route to ComplexModel.
	SampleThreshold int
}

// OperationKind identifies which of the three augmentor calls is being routed.
type OperationKind string

const (
	OperationSchemaRefinement    OperationKind = PromptIDSchemaRefinement
	OperationObservationExplain  OperationKind = PromptIDObservationExplain
	OperationSuggestionRationale OperationKind = PromptIDSuggestionRationale
)

// RoutingContext provides call characteristics used to select a model.
type RoutingContext struct {
	Operation   OperationKind
	SampleCount int
	Severity    string // for ObservationExplain: "Warning", "Critical", etc.
}

// ModelRouter selects the appropriate model based on call complexity.
type ModelRouter struct {
	config ModelRouterConfig
}

// NewModelRouter creates a ModelRouter with sensible defaults for any zero-value fields.
func NewModelRouter(cfg ModelRouterConfig) *ModelRouter {
	if cfg.SimpleModel == "" {
		cfg.SimpleModel = "gpt-4o-mini"
	}
	if cfg.ComplexModel == "" {
		cfg.ComplexModel = "gpt-4o"
	}
	if cfg.SampleThreshold <= 0 {
		cfg.SampleThreshold = 100
	}
	return &ModelRouter{config: cfg}
}

// SelectModel returns the model name appropriate for the given routing context.
//
// Rules (in priority order):
//  1. SchemaRefinement with SampleCount above threshold → complex model
//     (more samples means more room for a wrong generalization)
//  2. ObservationExplain with Critical severity → complex model
//  3. Default → simple model (rationale/explain text is low-stakes prose)
func (r *ModelRouter) SelectModel(ctx RoutingContext) string {
	if ctx.Operation == OperationSchemaRefinement && ctx.SampleCount > r.config.SampleThreshold {
		return r.config.ComplexModel
	}
	if ctx.Operation == OperationObservationExplain && ctx.Severity == "Critical" {
		return r.config.ComplexModel
	}
	return r.config.SimpleModel
}
