package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	// Truncation limits for prompts
	MaxEvidenceSummaryBytes = 2000

	// Default retry after for rate limiting
	DefaultRetryAfterSeconds = 60

	// Max retries for JSON parse errors (with feedback in prompt)
	maxParseRetries = 2
)

// UsageInfo holds actual token usage returned by the OpenAI API.
type UsageInfo struct {
	InputTokens  int64
	OutputTokens int64
}

// Client wraps the OpenAI API with structured output support
type Client struct {
	client        openai.Client
	model         string
	config        Config
	promptProfile string
	maxRetries    int
	retryDelay    time.Duration
	breaker       *CircuitBreaker
}

// NewClient creates a new OpenAI client
func NewClient(config Config) (*Client, error) {
	apiKey := config.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}

	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	}

	// Apply defaults for missing config values
	defaults := DefaultConfig()
	if config.Model == "" {
		config.Model = defaults.Model
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = defaults.MaxRetries
	}
	if config.RetryBaseDelay <= 0 {
		config.RetryBaseDelay = defaults.RetryBaseDelay
	}
	if config.PromptProfile == "" {
		config.PromptProfile = os.Getenv("AI_PROMPT_PROFILE")
	}
	config.PromptProfile = NormalizePromptProfile(config.PromptProfile)

	var clientOpts []option.RequestOption
	clientOpts = append(clientOpts, option.WithAPIKey(apiKey))

	client := openai.NewClient(clientOpts...)

	breaker := NewCircuitBreaker(DefaultCircuitBreakerConfig())

	return &Client{
		client:        client,
		model:         config.Model,
		config:        config,
		promptProfile: config.PromptProfile,
		maxRetries:    config.MaxRetries,
		retryDelay:    config.RetryBaseDelay,
		breaker:       breaker,
	}, nil
}

// callWithBreaker wraps an AI call with circuit breaker protection.
// Returns ErrAIUnavailable immediately if circuit is open.
func (c *Client) callWithBreaker(ctx context.Context, operation string, fn func() error) error {
	if c.breaker != nil && !c.breaker.Allow() {
		return &AIError{
			Err:     ErrAIUnavailable,
			Message: fmt.Sprintf("circuit breaker open for %s", operation),
		}
	}
	err := fn()
	if err != nil && c.breaker != nil {
		statusCode := extractHTTPStatusCode(err)
		classified := ClassifyError(statusCode, err)
		// Only trip circuit breaker for provider-unavailable errors (5xx, timeouts)
		// Don't trip for content/validation errors which are non-transient provider failures
		if classified.Category == ErrorCategoryTransient {
			c.breaker.RecordFailure()
		}
		return err
	}
	if c.breaker != nil {
		c.breaker.RecordSuccess()
	}
	return nil
}

// RefineColumnSchema asks the provider to confirm/correct a column's semantic
// role and, where applicable, its expected value set or numeric range (§4.5).
func (c *Client) RefineColumnSchema(ctx context.Context, req SchemaRefinementRequest) (*SchemaRefinementResult, *UsageInfo, error) {
	userContent := formatSchemaRefinementPrompt(req)
	result := &SchemaRefinementResult{}
	schema := c.buildSchemaRefinementSchema()

	var usage UsageInfo
	err := c.callWithBreaker(ctx, "RefineColumnSchema", func() error {
		return c.callStructured(ctx, SystemPromptSchemaRefinement, userContent, schema, result, &usage)
	})
	if err != nil {
		return nil, nil, err
	}
	if result.SchemaVersion == "" {
		result.SchemaVersion = SchemaVersionSchemaRefinement
	}
	return result, &usage, nil
}

// ExplainObservation asks the provider to write a human-readable explanation
// of a machine-detected observation (§4.5, §4.4).
func (c *Client) ExplainObservation(ctx context.Context, req ObservationExplainRequest) (*ObservationExplainResult, *UsageInfo, error) {
	userContent := formatObservationExplainPrompt(req)
	result := &ObservationExplainResult{}
	schema := c.buildObservationExplainSchema()

	var usage UsageInfo
	err := c.callWithBreaker(ctx, "ExplainObservation", func() error {
		return c.callStructured(ctx, SystemPromptObservationExplain, userContent, schema, result, &usage)
	})
	if err != nil {
		return nil, nil, err
	}
	if result.SchemaVersion == "" {
		result.SchemaVersion = SchemaVersionObservationExplain
	}
	return result, &usage, nil
}

// CalibrateSuggestion asks the provider for rationale text and a calibrated
// confidence for a rule-generated suggestion. The action itself is never
// decided by the model (§4.7).
func (c *Client) CalibrateSuggestion(ctx context.Context, req SuggestionRationaleRequest) (*SuggestionRationaleResult, *UsageInfo, error) {
	userContent := formatSuggestionRationalePrompt(req)
	result := &SuggestionRationaleResult{}
	schema := c.buildSuggestionRationaleSchema()

	var usage UsageInfo
	err := c.callWithBreaker(ctx, "CalibrateSuggestion", func() error {
		return c.callStructured(ctx, SystemPromptSuggestionRationale, userContent, schema, result, &usage)
	})
	if err != nil {
		return nil, nil, err
	}
	if result.SchemaVersion == "" {
		result.SchemaVersion = SchemaVersionSuggestionRationale
	}

	// calibrated_confidence must stay within +/-0.2 of rule_confidence unless
	// clearly out of bounds; clamp defensively either way.
	result.CalibratedConfidence = clamp(result.CalibratedConfidence, 0, 1)

	return result, &usage, nil
}

// callStructured makes a structured output call with retry logic.
// Retries on rate limit/server errors. On JSON parse failure, retries up to maxParseRetries
// with parse error feedback in the prompt.
// If usage is non-nil, it is populated with actual token counts from the API response.
func (c *Client) callStructured(ctx context.Context, systemPrompt, userContent string, schema interface{}, out interface{}, usage *UsageInfo) error {
	var lastErr error

	maxAttempts := 1 + c.maxRetries
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	// Track maximum tokens to use (may increase on truncation)
	currentMaxTokens := c.config.MaxCompletionTokens
	const MaxTokensLimit = 4000 // cap to prevent infinite growth

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			delay := c.retryDelayFor(attempt, lastErr)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		// Inner loop: retry with parse-error feedback (max maxParseRetries times)
		var parseErr error
		baseMessages := []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userContent),
		}

		for parseAttempt := 0; parseAttempt <= maxParseRetries; parseAttempt++ {
			messages := baseMessages
			if parseAttempt > 0 && parseErr != nil {
				feedback := fmt.Sprintf("Your previous response had invalid JSON: %v. Please return valid JSON matching the schema.", parseErr.Error())
				messages = append(messages, openai.UserMessage(feedback))
			}

			reqCtx := ctx
			var cancel context.CancelFunc
			if c.config.RequestTimeout > 0 {
				reqCtx, cancel = context.WithTimeout(ctx, c.config.RequestTimeout)
			}

			resp, err := c.client.Chat.Completions.New(reqCtx, openai.ChatCompletionNewParams{
				Model:               openai.ChatModel(c.model),
				Messages:            messages,
				MaxCompletionTokens: openai.Int(int64(currentMaxTokens)),
				ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
					OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
						JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
							Name:   "response",
							Schema: schema,
							Strict: openai.Bool(true),
						},
					},
				},
			})
			if cancel != nil {
				cancel()
			}

			if err != nil {
				lastErr = c.translateError(err)
				if !c.isRetryable(lastErr) {
					return lastErr
				}
				break // exit inner loop, retry outer (rate limit backoff)
			}

			if len(resp.Choices) == 0 {
				lastErr = ErrAIInvalidOutput
				slog.Warn("ai.callStructured", "error", "no choices", "attempt", parseAttempt+1)
				break
			}

			choice := resp.Choices[0]
			msg := choice.Message

			// Check refusal (model declined for safety/content policy)
			if msg.Refusal != "" {
				lastErr = fmt.Errorf("%w: %s", ErrAIRefused, msg.Refusal)
				slog.Warn("ai.callStructured", "error", "model refused", "refusal", msg.Refusal)
				return lastErr
			}

			// Check finish_reason for truncation or content filter
			switch choice.FinishReason {
			case "length":
				lastErr = fmt.Errorf("%w: response truncated (max tokens reached)", ErrAITruncated)
				slog.Warn("ai.callStructured", "error", "response truncated", "finish_reason", choice.FinishReason, "current_max_tokens", currentMaxTokens)

				// Truncation is retryable: increase max_tokens and retry
				if currentMaxTokens < MaxTokensLimit {
					newMax := int(float64(currentMaxTokens) * 1.5)
					if newMax > MaxTokensLimit {
						newMax = MaxTokensLimit
					}
					currentMaxTokens = newMax
					slog.Info("ai.callStructured", "msg", "truncation retry with increased tokens", "new_max_tokens", newMax)
					break // exit inner loop, retry outer with increased tokens
				}
				// If we've already hit the limit, return the error
				return lastErr
			case "content_filter":
				lastErr = fmt.Errorf("%w: content filtered", ErrAIInvalidOutput)
				slog.Warn("ai.callStructured", "error", "content filtered", "finish_reason", choice.FinishReason)
				return lastErr
			}

			content := msg.Content
			if content == "" {
				lastErr = ErrAIInvalidOutput
				slog.Warn("ai.callStructured", "error", "empty content", "finish_reason", choice.FinishReason)
				break
			}

			if err := json.Unmarshal([]byte(content), out); err != nil {
				parseErr = err
				lastErr = fmt.Errorf("%w: %v", ErrAIInvalidOutput, err)
				slog.Warn("ai.callStructured", "error", "json parse failed", "parse_err", err.Error(), "attempt", parseAttempt+1)
				if parseAttempt < maxParseRetries {
					continue // retry inner with feedback
				}
				return lastErr
			}

			if usage != nil {
				usage.InputTokens = resp.Usage.PromptTokens
				usage.OutputTokens = resp.Usage.CompletionTokens
			}
			return nil
		}
	}

	return lastErr
}

func (c *Client) retryDelayFor(attempt int, lastErr error) time.Duration {
	if attempt <= 0 {
		return 0
	}
	base := c.retryDelay * time.Duration(1<<uint(attempt-1))
	var aiErr *AIError
	if errors.As(lastErr, &aiErr) && aiErr.RetryAfter > 0 {
		base = time.Duration(aiErr.RetryAfter) * time.Second
	}
	return base + jitterDuration(base/4)
}

func jitterDuration(base time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	// Note: As of Go 1.20, the global rand is automatically seeded
	maxJitter := int64(base)
	if maxJitter <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(maxJitter + 1))
}

// extractHTTPStatusCode attempts to extract HTTP status code from error.
// Returns 0 if no status code can be determined.
func extractHTTPStatusCode(err error) int {
	if err == nil {
		return 0
	}

	// Check if it's an openai.Error with StatusCode
	if apiErr, ok := err.(*openai.Error); ok {
		return apiErr.StatusCode
	}

	// Check if it's an AIError that wraps an openai.Error
	var aiErr *AIError
	if errors.As(err, &aiErr) {
		return extractHTTPStatusCode(aiErr.Err)
	}

	return 0
}

// translateError converts OpenAI errors to domain errors
func (c *Client) translateError(err error) error {
	if err == nil {
		return nil
	}

	errMsg := err.Error()

	// Rate limit errors
	if apiErr, ok := err.(*openai.Error); ok {
		if apiErr.StatusCode == 429 {
			return &AIError{
				Err:        ErrAIRateLimited,
				Message:    "Rate limited by OpenAI",
				RetryAfter: DefaultRetryAfterSeconds,
			}
		}
		// Server errors
		if apiErr.StatusCode >= 500 {
			return &AIError{
				Err:     ErrAIUnavailable,
				Message: fmt.Sprintf("OpenAI server error: %d", apiErr.StatusCode),
			}
		}
	}

	// Network/timeout errors
	if isTimeoutError(err) {
		return &AIError{
			Err:     ErrAIUnavailable,
			Message: "Request timeout",
		}
	}

	// Default to unavailable
	return &AIError{
		Err:     ErrAIUnavailable,
		Message: errMsg,
	}
}

// isRetryable determines if an error should trigger a retry
func (c *Client) isRetryable(err error) bool {
	// Check if it's an AIError
	var aiErr *AIError
	if errors.As(err, &aiErr) {
		return aiErr.Err == ErrAIRateLimited || aiErr.Err == ErrAIUnavailable
	}
	// Check if it's one of our domain errors
	return errors.Is(err, ErrAIRateLimited) || errors.Is(err, ErrAIUnavailable)
}

// isTimeoutError checks if error is a timeout
func isTimeoutError(err error) bool {
	if err == context.DeadlineExceeded {
		return true
	}
	// Check for net.Error with Timeout() method
	type timeoutError interface {
		Timeout() bool
	}
	if te, ok := err.(timeoutError); ok {
		return te.Timeout()
	}
	return false
}

// handleFinishReason checks the OpenAI finish reason and returns appropriate error
func handleFinishReason(reason string) error {
	switch reason {
	case "stop":
		return nil
	case "length":
		return fmt.Errorf("%w: response truncated (finish_reason=length)", ErrAITruncated)
	case "content_filter":
		return fmt.Errorf("%w: blocked by content filter", ErrAIContentFiltered)
	default:
		return nil
	}
}

// handleRefusal checks if the model refused the request
func handleRefusal(refusal string) error {
	if refusal == "" {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrAIRefused, refusal)
}

var validSemanticRoles = []string{
	"sample_id", "grouping_var", "covariate", "outcome", "technical", "administrative", "unknown",
}

// buildSchemaRefinementSchema builds the JSON schema for schema refinement results
func (c *Client) buildSchemaRefinementSchema() interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"schema_version": map[string]interface{}{
				"type": "string",
				"enum": []string{SchemaVersionSchemaRefinement},
			},
			"semantic_role": map[string]interface{}{
				"type": "string",
				"enum": validSemanticRoles,
			},
			"role_confidence": map[string]interface{}{
				"type":    "number",
				"minimum": 0,
				"maximum": 1,
			},
			"expected_values": map[string]interface{}{
				"type":  "array",
				"items": map[string]interface{}{"type": "string"},
			},
			"expected_range_low": map[string]interface{}{
				"type": []string{"number", "null"},
			},
			"expected_range_high": map[string]interface{}{
				"type": []string{"number", "null"},
			},
			"insight": map[string]interface{}{
				"type":      "string",
				"maxLength": 200,
			},
		},
		"required":             []string{"schema_version", "semantic_role", "role_confidence", "expected_values", "expected_range_low", "expected_range_high", "insight"},
		"additionalProperties": false,
	}
}

// buildObservationExplainSchema builds the JSON schema for explanation results
func (c *Client) buildObservationExplainSchema() interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"schema_version": map[string]interface{}{
				"type": "string",
				"enum": []string{SchemaVersionObservationExplain},
			},
			"explanation": map[string]interface{}{"type": "string"},
			"confidence": map[string]interface{}{
				"type":    "number",
				"minimum": 0,
				"maximum": 1,
			},
		},
		"required":             []string{"schema_version", "explanation", "confidence"},
		"additionalProperties": false,
	}
}

// buildSuggestionRationaleSchema builds the JSON schema for rationale results
func (c *Client) buildSuggestionRationaleSchema() interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"schema_version": map[string]interface{}{
				"type": "string",
				"enum": []string{SchemaVersionSuggestionRationale},
			},
			"rationale": map[string]interface{}{
				"type":      "string",
				"maxLength": 200,
			},
			"calibrated_confidence": map[string]interface{}{
				"type":    "number",
				"minimum": 0,
				"maximum": 1,
			},
		},
		"required":             []string{"schema_version", "rationale", "calibrated_confidence"},
		"additionalProperties": false,
	}
}

// formatSchemaRefinementPrompt formats the user prompt for schema refinement
func formatSchemaRefinementPrompt(req SchemaRefinementRequest) string {
	var b strings.Builder
	b.WriteString("TASK: refine the inferred schema for one column.\n")
	b.WriteString("OUTPUT CONTRACT: return strict JSON matching SchemaRefinementResult.\n\n")
	b.WriteString(fmt.Sprintf("column_name=%s\n", SanitizeForPrompt(req.ColumnName)))
	b.WriteString(fmt.Sprintf("inferred_type=%s\n", req.InferredType))
	b.WriteString(fmt.Sprintf("semantic_type=%s\n", req.SemanticType))
	b.WriteString(fmt.Sprintf("current_semantic_role=%s\n", req.SemanticRole))
	if req.Domain != "" {
		b.WriteString(fmt.Sprintf("domain=%s\n", SanitizeForPrompt(req.Domain)))
	}
	if req.StudyName != "" {
		b.WriteString(fmt.Sprintf("study_name=%s\n", SanitizeForPrompt(req.StudyName)))
	}
	if req.ExistingNotes != "" {
		b.WriteString(fmt.Sprintf("existing_notes=%s\n", SanitizeForPrompt(req.ExistingNotes)))
	}
	b.WriteString(fmt.Sprintf("header_tokens=%v\n", req.HeaderTokens))
	b.WriteString("\nSAMPLES (up to 200 non-null values):\n")
	for _, s := range req.Samples {
		b.WriteString(fmt.Sprintf("- %s\n", SanitizeForPrompt(s)))
	}
	return b.String()
}

// formatObservationExplainPrompt formats the user prompt for explanation calls
func formatObservationExplainPrompt(req ObservationExplainRequest) string {
	evidence := req.EvidenceSummary
	if len(evidence) > MaxEvidenceSummaryBytes {
		evidence = evidence[:MaxEvidenceSummaryBytes] + "... (truncated)"
	}
	var b strings.Builder
	b.WriteString("TASK: explain a data quality observation for a human reviewer.\n")
	b.WriteString("OUTPUT CONTRACT: return strict JSON matching ObservationExplainResult.\n\n")
	b.WriteString(fmt.Sprintf("observation_type=%s\n", req.ObservationType))
	b.WriteString(fmt.Sprintf("column=%s\n", SanitizeForPrompt(req.Column)))
	b.WriteString(fmt.Sprintf("severity=%s\n", req.Severity))
	b.WriteString(fmt.Sprintf("evidence_summary=%s\n", SanitizeForPrompt(evidence)))
	return b.String()
}

// formatSuggestionRationalePrompt formats the user prompt for rationale calls
func formatSuggestionRationalePrompt(req SuggestionRationaleRequest) string {
	var b strings.Builder
	b.WriteString("TASK: write rationale text and calibrate confidence for a proposed fix.\n")
	b.WriteString("OUTPUT CONTRACT: return strict JSON matching SuggestionRationaleResult.\n\n")
	b.WriteString(fmt.Sprintf("action_tag=%s\n", req.ActionTag))
	b.WriteString(fmt.Sprintf("observation_type=%s\n", req.ObservationType))
	b.WriteString(fmt.Sprintf("column=%s\n", SanitizeForPrompt(req.Column)))
	b.WriteString(fmt.Sprintf("rule_confidence=%.3f\n", req.RuleConfidence))
	b.WriteString(fmt.Sprintf("affected_rows=%d\n", req.AffectedRows))
	return b.String()
}
