package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
)

// LLMRequest represents a structured LLM call
type LLMRequest struct {
	SystemPrompt string
	UserContent  string
	Schema       interface{} // JSON schema for structured output
	MaxTokens    int
	Temperature  float64
	Model        string // optional override
}

// LLMResponse from the LLM
type LLMResponse struct {
	Content          string // raw JSON response
	Model            string // actual model used
	FinishReason     string // "stop", "length", "content_filter"
	Refusal          string // non-empty if model refused
	TokensUsed       int    // total tokens
	PromptTokens     int
	CompletionTokens int
	// Fallback chain metadata
	Attempts     int  // number of providers tried (1 = primary succeeded)
	FallbackUsed bool // true if a non-primary provider was used
}

// LLMProvider abstracts LLM backends. The augmentor (§4.5) talks to this
// interface only; it never depends on a specific vendor SDK.
type LLMProvider interface {
	// CallStructured sends a prompt and expects structured JSON output matching the schema
	CallStructured(ctx context.Context, req LLMRequest) (*LLMResponse, error)
	// Name returns the provider name (e.g., "openai", "anthropic")
	Name() string
	// ModelID returns the active model identifier
	ModelID() string
}

// OpenAIProvider wraps the existing OpenAI client as an LLMProvider
type OpenAIProvider struct {
	client *Client // reuse existing Client
	model  string
}

// NewOpenAIProvider creates an OpenAIProvider backed by the given Client.
// client may be nil when used in unit tests that don't exercise CallStructured.
func NewOpenAIProvider(client *Client, model string) *OpenAIProvider {
	return &OpenAIProvider{client: client, model: model}
}

// Name returns the provider name.
func (p *OpenAIProvider) Name() string { return "openai" }

// ModelID returns the active model identifier.
func (p *OpenAIProvider) ModelID() string { return p.model }

// CallStructured adapts req onto the shared Client.callStructured machinery
// (retry, circuit breaker, truncation handling all live there).
func (p *OpenAIProvider) CallStructured(ctx context.Context, req LLMRequest) (*LLMResponse, error) {
	if p.client == nil {
		return nil, fmt.Errorf("%w: openai provider has no client", ErrAIUnavailable)
	}

	raw := json.RawMessage("{}")
	var usage UsageInfo
	err := p.client.callWithBreaker(ctx, "CallStructured", func() error {
		return p.client.callStructured(ctx, req.SystemPrompt, req.UserContent, req.Schema, &raw, &usage)
	})
	if err != nil {
		return nil, err
	}

	return &LLMResponse{
		Content:          string(raw),
		Model:            p.model,
		FinishReason:     "stop",
		TokensUsed:       int(usage.InputTokens + usage.OutputTokens),
		PromptTokens:     int(usage.InputTokens),
		CompletionTokens: int(usage.OutputTokens),
		Attempts:         1,
	}, nil
}

// AnthropicProvider wraps Anthropic's Messages API as an LLMProvider, giving
// the augmentor a second vendor option alongside OpenAIProvider. Structured
// output is obtained by forcing use of a single "emit_result" tool whose
// input_schema is the caller's JSON schema, since Anthropic has no native
// JSON-schema response_format equivalent.
type AnthropicProvider struct {
	client anthropic.Client
	model  string
}

// NewAnthropicProvider creates an AnthropicProvider for the given model
// (e.g. anthropic.ModelClaude3_5HaikuLatest). apiKey is read from
// ANTHROPIC_API_KEY when empty.
func NewAnthropicProvider(apiKey, model string) *AnthropicProvider {
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	client := anthropic.NewClient(anthropicoption.WithAPIKey(apiKey))
	return &AnthropicProvider{client: client, model: model}
}

// Name returns the provider name.
func (p *AnthropicProvider) Name() string { return "anthropic" }

// ModelID returns the active model identifier.
func (p *AnthropicProvider) ModelID() string { return p.model }

// CallStructured forces a single tool call ("emit_result") whose input
// schema is req.Schema, then returns the tool-call input verbatim as JSON.
func (p *AnthropicProvider) CallStructured(ctx context.Context, req LLMRequest) (*LLMResponse, error) {
	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 1200
	}

	tool := anthropic.ToolParam{
		Name:        "emit_result",
		Description: anthropic.String("Emit the structured result. Always call this exactly once."),
		InputSchema: anthropic.ToolInputSchemaParam{
			Type:       "object",
			Properties: req.Schema,
		},
	}

	resp, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: req.SystemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.UserContent)),
		},
		Tools: []anthropic.ToolUnionParam{{OfTool: &tool}},
		ToolChoice: anthropic.ToolChoiceUnionParam{
			OfTool: &anthropic.ToolChoiceToolParam{Name: "emit_result"},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: anthropic call failed: %v", ErrAIUnavailable, err)
	}

	for _, block := range resp.Content {
		if block.Type != "tool_use" {
			continue
		}
		raw, marshalErr := json.Marshal(block.Input)
		if marshalErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrAIInvalidOutput, marshalErr)
		}
		return &LLMResponse{
			Content:          string(raw),
			Model:            p.model,
			FinishReason:     string(resp.StopReason),
			PromptTokens:     int(resp.Usage.InputTokens),
			CompletionTokens: int(resp.Usage.OutputTokens),
			TokensUsed:       int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
			Attempts:         1,
		}, nil
	}

	return nil, fmt.Errorf("%w: no tool_use block in anthropic response", ErrAIInvalidOutput)
}
