package ai

import (
	"strings"
	"testing"
)

func TestPromptBuilder_BuildSchemaRefinementPrompt(t *testing.T) {
	registry := DefaultPromptRegistry()
	exampleStore := DefaultExampleStore()
	builder := NewPromptBuilder(registry, exampleStore)

	prompt, err := builder.BuildPrompt(PromptIDSchemaRefinement, PromptContext{
		Domain:       "pediatric cohort",
		SemanticType: "Continuous",
		SampleCount:  6,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(prompt.Content, "semantic_role") {
		t.Error("expected prompt to contain semantic_role from the JSON output reminder")
	}

	if !strings.Contains(prompt.Content, "FEW-SHOT EXAMPLES") {
		t.Error("expected prompt to contain few-shot examples section")
	}

	if !strings.Contains(prompt.Content, "age") {
		t.Error("expected prompt to contain the pediatric cohort example's column name")
	}

	if prompt.Hash == "" {
		t.Error("expected non-empty prompt hash")
	}
}

func TestPromptBuilder_DifferentContextDifferentHash(t *testing.T) {
	registry := DefaultPromptRegistry()
	exampleStore := DefaultExampleStore()
	builder := NewPromptBuilder(registry, exampleStore)

	prompt1, _ := builder.BuildPrompt(PromptIDSchemaRefinement, PromptContext{
		Domain: "pediatric cohort",
	})
	prompt2, _ := builder.BuildPrompt(PromptIDSchemaRefinement, PromptContext{
		Domain: "retail transactions",
	})

	if prompt1.Hash == prompt2.Hash {
		t.Error("different domain hints should produce different hashes")
	}
}

func TestPromptBuilder_SameContextSameHash(t *testing.T) {
	registry := DefaultPromptRegistry()
	exampleStore := DefaultExampleStore()
	builder := NewPromptBuilder(registry, exampleStore)

	ctx := PromptContext{Domain: "pediatric cohort", SemanticType: "Continuous", SampleCount: 6}
	prompt1, _ := builder.BuildPrompt(PromptIDSchemaRefinement, ctx)
	prompt2, _ := builder.BuildPrompt(PromptIDSchemaRefinement, ctx)

	if prompt1.Hash != prompt2.Hash {
		t.Error("same context should produce same hash")
	}
}

func TestPromptBuilder_BuildObservationExplainPrompt(t *testing.T) {
	registry := DefaultPromptRegistry()
	exampleStore := DefaultExampleStore()
	builder := NewPromptBuilder(registry, exampleStore)

	prompt, err := builder.BuildPrompt(PromptIDObservationExplain, PromptContext{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if prompt.Content == "" {
		t.Error("expected non-empty prompt content")
	}
	if prompt.Hash == "" {
		t.Error("expected non-empty hash")
	}
}

func TestPromptBuilder_UnknownOperation(t *testing.T) {
	registry := NewPromptRegistry()
	exampleStore := NewExampleStore()
	builder := NewPromptBuilder(registry, exampleStore)

	_, err := builder.BuildPrompt("nonexistent_operation", PromptContext{})
	if err == nil {
		t.Error("expected error for unknown operation")
	}
}

func TestPromptBuilder_CacheVersionIncludesBuiltHash(t *testing.T) {
	registry := DefaultPromptRegistry()
	exampleStore := DefaultExampleStore()
	builder := NewPromptBuilder(registry, exampleStore)

	prompt, _ := builder.BuildPrompt(PromptIDSchemaRefinement, PromptContext{
		Domain:       "pediatric cohort",
		SemanticType: "Continuous",
		SampleCount:  6,
	})

	cacheVersion := prompt.CacheVersion
	if cacheVersion == "" {
		t.Error("expected non-empty cache version")
	}
	if len(cacheVersion) < 10 {
		t.Error("cache version should include hash component")
	}
}

func TestPromptBuilder_RefinementContextAppended(t *testing.T) {
	registry := DefaultPromptRegistry()
	exampleStore := DefaultExampleStore()
	builder := NewPromptBuilder(registry, exampleStore)

	prompt, err := builder.BuildPrompt(PromptIDSchemaRefinement, PromptContext{
		Domain:            "pediatric cohort",
		SampleCount:       6,
		RefinementContext: "Column was flagged ambiguous between covariate and outcome",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(prompt.Content, "Column was flagged ambiguous between covariate and outcome") {
		t.Error("expected refinement context to be included in prompt")
	}
}

func TestPromptBuilder_DomainHintAddedToPrompt(t *testing.T) {
	registry := DefaultPromptRegistry()
	exampleStore := DefaultExampleStore()
	builder := NewPromptBuilder(registry, exampleStore)

	prompt, _ := builder.BuildPrompt(PromptIDSchemaRefinement, PromptContext{
		Domain: "retail transactions",
	})

	if !strings.Contains(prompt.Content, "retail transactions") {
		t.Error("expected domain hint to be mentioned in prompt context")
	}
}
