// Package suggest implements the Suggestion Engine (§4.7): deterministic
// rule-based mapping from each Observation to zero or more Suggestions,
// with priority and confidence computed per the spec's formula. An
// optional Rationale augmentor may be attached to calibrate the generated
// text/confidence, but it never decides the action or its parameters.
//
// Structurally grounded on the teacher's internal/suggest/suggester.go
// (a thin wrapper exposing IsConfigured/GetSuggestions over a backing
// service) — generalized so the backing "service" is this package's own
// deterministic rule table instead of an LLM call.
package suggest

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/cruciblehq/crucible/internal/curation"
)

// actionWeight favors reversible operations in the priority formula (§4.7:
// "Action weights favor reversible operations").
func actionWeight(a curation.ActionTag) float64 {
	if a.IsReversible() {
		return 1.0
	}
	return 2.0
}

// RationaleAugmentor is the narrow capability the suggestion engine may
// optionally use to calibrate a suggestion's rationale text/confidence.
// Implemented by internal/ai's Augmentor; kept as a local interface so
// this package has no hard dependency on the augmentor's request/response
// envelope.
type RationaleAugmentor interface {
	CalibrateSuggestion(ctx context.Context, action, description string, ruleConfidence float64) (rationale string, confidence float64, ok bool)
}

// Engine maps Observations to Suggestions (§4.7). A nil Rationale augmentor
// means suggestions use the rule engine's own rationale/confidence
// unmodified — the "degrades gracefully" behavior required of any LLM
// dependency (§4.5).
type Engine struct {
	Rationale RationaleAugmentor
}

// NewEngine builds a suggestion Engine, optionally backed by a rationale
// augmentor.
func NewEngine(rationale RationaleAugmentor) *Engine {
	return &Engine{Rationale: rationale}
}

// IsConfigured reports whether the engine has an LLM-backed rationale
// augmentor attached (mirrors the teacher's IsConfigured contract).
func (e *Engine) IsConfigured() bool { return e.Rationale != nil }

// GetSuggestions generates Suggestions for every Observation, in
// observation order, then sorts by the priority formula for presentation.
func (e *Engine) GetSuggestions(ctx context.Context, schema *curation.TableSchema, observations []curation.Observation) []curation.Suggestion {
	var out []curation.Suggestion
	for _, obs := range observations {
		for _, s := range mapObservation(schema, obs) {
			s.Priority = priority(obs.Severity, s.Action, s.Confidence)
			s.ID = curation.DeterministicID("suggestion", obs.ID, string(s.Action))
			if e.Rationale != nil {
				if rationale, conf, ok := e.Rationale.CalibrateSuggestion(ctx, string(s.Action), obs.Description, s.Confidence); ok {
					s.Rationale = rationale
					s.Confidence = conf
				}
			}
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// priority implements (severity_rank × action_weight) / max(confidence,
// 0.01), lower is more important (§4.7).
func priority(sev curation.Severity, action curation.ActionTag, confidence float64) float64 {
	conf := confidence
	if conf < 0.01 {
		conf = 0.01
	}
	return float64(sev.Rank()) * actionWeight(action) / conf
}

// mapObservation implements the non-exhaustive rule table of §4.7.
func mapObservation(schema *curation.TableSchema, obs curation.Observation) []curation.Suggestion {
	switch obs.Type {
	case curation.ObsMissingPattern:
		tokens := make([]string, 0, len(obs.Evidence.ValueCounts))
		for k := range obs.Evidence.ValueCounts {
			tokens = append(tokens, k)
		}
		sort.Strings(tokens)
		return []curation.Suggestion{{
			ObservationID: obs.ID,
			Action:        curation.ActionConvertNA,
			Parameters:    map[string]any{"from_values": tokens, "to": nil},
			Rationale:     fmt.Sprintf("normalize %d recognized null tokens in %s to a single null representation", len(tokens), obs.Column),
			AffectedRows:  obs.AffectedRowCount(),
			Confidence:    obs.Confidence,
			Reversible:    curation.ActionConvertNA.IsReversible(),
		}}

	case curation.ObsInconsistency:
		return inconsistencySuggestions(obs)

	case curation.ObsTypeMismatch:
		col := schema.Column(obs.Column)
		if col == nil || (col.InferredType != curation.TypeInteger && col.InferredType != curation.TypeFloat) {
			return nil
		}
		return []curation.Suggestion{{
			ObservationID: obs.ID,
			Action:        curation.ActionCoerce,
			Parameters:    map[string]any{"target_type": string(col.InferredType)},
			Rationale:     fmt.Sprintf("coerce non-conforming cells in %s to %s", obs.Column, col.InferredType),
			AffectedRows:  obs.AffectedRowCount(),
			Confidence:    obs.Confidence,
			Reversible:    curation.ActionCoerce.IsReversible(),
		}}

	case curation.ObsOutlier:
		return []curation.Suggestion{{
			ObservationID: obs.ID,
			Action:        curation.ActionFlag,
			Parameters:    map[string]any{"reason": "out_of_expected_range"},
			Rationale:     fmt.Sprintf("flag outlier value(s) in %s for manual review", obs.Column),
			AffectedRows:  obs.AffectedRowCount(),
			Confidence:    obs.Confidence,
			Reversible:    true,
		}}

	case curation.ObsDuplicate:
		return []curation.Suggestion{{
			ObservationID: obs.ID,
			Action:        curation.ActionMerge,
			Parameters:    map[string]any{"strategy": "keep_first_if_identical", "else": "flag"},
			Rationale:     "merge duplicate identifier rows when remaining columns agree, otherwise flag for review",
			AffectedRows:  obs.AffectedRowCount(),
			Confidence:    obs.Confidence,
			Reversible:    false,
		}}

	default:
		return nil
	}
}

// inconsistencySuggestions covers the three observation shapes that share
// the ObsInconsistency tag: BooleanConsistency/CaseConsistency both map to
// Standardize; Typo maps to Standardize with a discounted confidence;
// DateConsistency maps to ConvertDate (§4.7).
func inconsistencySuggestions(obs curation.Observation) []curation.Suggestion {
	switch obs.Detector {
	case "date_consistency":
		return []curation.Suggestion{{
			ObservationID: obs.ID,
			Action:        curation.ActionConvertDate,
			Parameters:    map[string]any{"target_format": "YYYY-MM-DD"},
			Rationale:     fmt.Sprintf("normalize %s to a single ISO 8601 date format", obs.Column),
			AffectedRows:  obs.AffectedRowCount(),
			Confidence:    obs.Confidence,
			Reversible:    curation.ActionConvertDate.IsReversible(),
		}}
	case "typo":
		mapping := map[string]string{}
		for key := range obs.Evidence.ValueCounts {
			parts := strings.SplitN(key, "->", 2)
			if len(parts) == 2 {
				mapping[parts[0]] = parts[1]
			}
		}
		return []curation.Suggestion{{
			ObservationID: obs.ID,
			Action:        curation.ActionStandardize,
			Parameters:    map[string]any{"mapping": mapping},
			Rationale:     fmt.Sprintf("standardize likely typo variants in %s to their frequent canonical form", obs.Column),
			AffectedRows:  obs.AffectedRowCount(),
			Confidence:    obs.Confidence * 0.8,
			Reversible:    curation.ActionStandardize.IsReversible(),
		}}
	default: // boolean_consistency, case_consistency
		mapping := canonicalMapping(obs.Evidence.ValueCounts)
		return []curation.Suggestion{{
			ObservationID: obs.ID,
			Action:        curation.ActionStandardize,
			Parameters:    map[string]any{"mapping": mapping},
			Rationale:     fmt.Sprintf("standardize all surface forms in %s to their most frequent lower-cased form", obs.Column),
			AffectedRows:  obs.AffectedRowCount(),
			Confidence:    obs.Confidence,
			Reversible:    curation.ActionStandardize.IsReversible(),
		}}
	}
}

// canonicalMapping picks the most frequent lower-cased variant per group
// (group key encoded as "lower:surface" in evidence) as the canonical
// target and maps every other variant to it (§4.7: "canonical = most
// frequent lower-cased form; include all variants").
func canonicalMapping(evidence map[string]int) map[string]string {
	groups := map[string]map[string]int{}
	for key, n := range evidence {
		parts := strings.SplitN(key, ":", 2)
		if len(parts) != 2 {
			continue
		}
		lower, surface := parts[0], parts[1]
		if groups[lower] == nil {
			groups[lower] = map[string]int{}
		}
		groups[lower][surface] = n
	}
	mapping := map[string]string{}
	for lower, variants := range groups {
		canonical := lower
		best := -1
		var surfaces []string
		for s := range variants {
			surfaces = append(surfaces, s)
		}
		sort.Strings(surfaces)
		for _, s := range surfaces {
			if variants[s] > best {
				best = variants[s]
				canonical = strings.ToLower(s)
			}
		}
		for _, s := range surfaces {
			mapping[s] = canonical
		}
	}
	return mapping
}
