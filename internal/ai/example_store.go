package ai

import (
	"fmt"
	"strings"
	"sync"
)

// Example represents a few-shot example for an augmentor operation. A single
// struct backs all three operations; only the fields relevant to the
// registered Operation are populated.
type Example struct {
	Operation string // one of PromptIDSchemaRefinement/ObservationExplain/SuggestionRationale

	// Selection metadata
	Domain       string // dataset domain hint this example best matches
	SemanticType string // inferred semantic type this example best matches

	SchemaRefinement    *SchemaRefinementExample
	ObservationExplain  *ObservationExplainExample
	SuggestionRationale *SuggestionRationaleExample
}

// ExampleFilter controls which examples are returned by GetExamples.
type ExampleFilter struct {
	Domain     string
	MaxResults int // Maximum examples to return (0 = all)
}

// ExampleStore manages few-shot examples for augmentor operations.
type ExampleStore struct {
	mu       sync.RWMutex
	examples map[string][]Example // operation → examples
}

// NewExampleStore creates a new empty example store.
func NewExampleStore() *ExampleStore {
	return &ExampleStore{
		examples: make(map[string][]Example),
	}
}

// Register adds an example to the store.
func (s *ExampleStore) Register(example Example) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.examples[example.Operation] = append(s.examples[example.Operation], example)
}

// GetExamples retrieves examples matching the filter.
func (s *ExampleStore) GetExamples(operation string, filter ExampleFilter) []Example {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all, ok := s.examples[operation]
	if !ok {
		return nil
	}

	var result []Example
	for _, ex := range all {
		if filter.Domain != "" && ex.Domain != "" && ex.Domain != filter.Domain {
			continue
		}
		result = append(result, ex)
		if filter.MaxResults > 0 && len(result) >= filter.MaxResults {
			break
		}
	}
	return result
}

// FormatExamplesForPrompt converts examples into a text block for inclusion in prompts.
func FormatExamplesForPrompt(examples []Example) string {
	if len(examples) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("FEW-SHOT EXAMPLES:\n")
	for i, ex := range examples {
		switch {
		case ex.SchemaRefinement != nil:
			r := ex.SchemaRefinement
			b.WriteString(fmt.Sprintf("\n--- Example %d (column=%s) ---\n", i+1, r.Request.ColumnName))
			b.WriteString(fmt.Sprintf("Input: inferred_type=%s samples=%v header_tokens=%v\n",
				r.Request.InferredType, r.Request.Samples, r.Request.HeaderTokens))
			b.WriteString(fmt.Sprintf("Expected: semantic_role=%s role_confidence=%.2f insight=%q\n",
				r.Expected.SemanticRole, r.Expected.RoleConfidence, r.Expected.Insight))
		case ex.ObservationExplain != nil:
			o := ex.ObservationExplain
			b.WriteString(fmt.Sprintf("\n--- Example %d (observation=%s, column=%s) ---\n", i+1, o.Request.ObservationType, o.Request.Column))
			b.WriteString(fmt.Sprintf("Evidence: %s\n", o.Request.EvidenceSummary))
			b.WriteString(fmt.Sprintf("Expected: explanation=%q confidence=%.2f\n", o.Expected.Explanation, o.Expected.Confidence))
		case ex.SuggestionRationale != nil:
			sr := ex.SuggestionRationale
			b.WriteString(fmt.Sprintf("\n--- Example %d (action=%s, column=%s) ---\n", i+1, sr.Request.ActionTag, sr.Request.Column))
			b.WriteString(fmt.Sprintf("Input: rule_confidence=%.2f affected_rows=%d\n", sr.Request.RuleConfidence, sr.Request.AffectedRows))
			b.WriteString(fmt.Sprintf("Expected: rationale=%q calibrated_confidence=%.2f\n", sr.Expected.Rationale, sr.Expected.CalibratedConfidence))
		}
	}
	return b.String()
}

// DefaultExampleStore creates a store pre-loaded with the few-shot examples
// defined alongside the system prompts in prompts.go.
func DefaultExampleStore() *ExampleStore {
	store := NewExampleStore()

	for i := range SchemaRefinementExamples {
		ex := SchemaRefinementExamples[i]
		store.Register(Example{
			Operation:        PromptIDSchemaRefinement,
			Domain:           ex.Request.Domain,
			SemanticType:     ex.Request.SemanticType,
			SchemaRefinement: &ex,
		})
	}
	for i := range ObservationExplainExamples {
		ex := ObservationExplainExamples[i]
		store.Register(Example{
			Operation:          PromptIDObservationExplain,
			ObservationExplain: &ex,
		})
	}
	for i := range SuggestionRationaleExamples {
		ex := SuggestionRationaleExamples[i]
		store.Register(Example{
			Operation:           PromptIDSuggestionRationale,
			SuggestionRationale: &ex,
		})
	}

	return store
}

// SelectionContext provides context for dynamic example selection.
type SelectionContext struct {
	Domain       string // dataset domain hint
	SemanticType string // inferred semantic type
	SampleCount  int    // number of sampled values in the request
	MaxResults   int    // max examples to return (default: DefaultMaxExamples)
}

// DefaultMaxExamples caps how many few-shot examples are appended to a prompt.
const DefaultMaxExamples = 3

// SelectExamples dynamically selects the most relevant examples using scoring.
func (s *ExampleStore) SelectExamples(operation string, ctx SelectionContext) []Example {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all, ok := s.examples[operation]
	if !ok || len(all) == 0 {
		return nil
	}

	maxResults := ctx.MaxResults
	if maxResults <= 0 {
		maxResults = DefaultMaxExamples
	}

	type scored struct {
		example Example
		score   int
	}
	scoredExamples := make([]scored, len(all))
	for i, ex := range all {
		scoredExamples[i] = scored{
			example: ex,
			score:   calculateExampleScore(ex, ctx),
		}
	}

	// Sort by score descending (insertion sort — stable, fine for small N).
	for i := 1; i < len(scoredExamples); i++ {
		key := scoredExamples[i]
		j := i - 1
		for j >= 0 && scoredExamples[j].score < key.score {
			scoredExamples[j+1] = scoredExamples[j]
			j--
		}
		scoredExamples[j+1] = key
	}

	if len(scoredExamples) > maxResults {
		scoredExamples = scoredExamples[:maxResults]
	}

	result := make([]Example, len(scoredExamples))
	for i, sc := range scoredExamples {
		result[i] = sc.example
	}
	return result
}

// calculateExampleScore computes a relevance score for an example given context.
//
// Scoring breakdown:
//   - Exact domain match:        +100
//   - Exact semantic type match: +50
//   - No context given at all:   +10 base (ensures examples still surface)
func calculateExampleScore(ex Example, ctx SelectionContext) int {
	score := 0

	if ctx.Domain != "" && ex.Domain != "" && ex.Domain == ctx.Domain {
		score += 100
	}
	if ctx.SemanticType != "" && ex.SemanticType != "" && ex.SemanticType == ctx.SemanticType {
		score += 50
	}
	if ctx.Domain == "" && ctx.SemanticType == "" {
		score += 10
	}

	return score
}
