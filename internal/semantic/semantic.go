// Package semantic implements the Semantic Analyzer (§4.2): from a column's
// header name and a sample of its non-null values, it proposes a semantic
// role prior, a regex pattern candidate, and the normalized concept tokens
// parsed out of the header.
//
// Grounded on the teacher's internal/converter/header_detect.go and
// sanitizer.go regex-driven detection style, repointed at Crucible's role
// priors instead of spreadsheet-column-mapping guesses.
package semantic

import (
	"regexp"
	"strings"

	"github.com/cruciblehq/crucible/internal/curation"
)

// MaxSamples bounds how many non-null cells the analyzer inspects (§4.2).
const MaxSamples = 200

// PatternMatchThreshold: a pattern candidate is proposed when at least this
// fraction of samples match it (§4.2).
const PatternMatchThreshold = 0.90

var headerTokenBoundary = regexp.MustCompile(`[_\-]+|([a-z0-9])([A-Z])`)

// SplitHeaderTokens splits a header on `_`, `-`, and camelCase boundaries,
// lower-casing the result (§4.2).
func SplitHeaderTokens(header string) []string {
	spaced := headerTokenBoundary.ReplaceAllString(header, "$1 $2")
	spaced = strings.NewReplacer("_", " ", "-", " ").Replace(spaced)
	fields := strings.Fields(spaced)
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		tokens = append(tokens, strings.ToLower(f))
	}
	return tokens
}

// rolePrior is a single known-token -> role prior entry (§4.2).
type rolePrior struct {
	role       curation.SemanticRole
	semantic   curation.SemanticType
	confidence float64
}

// tokenRolePriors maps normalized header tokens to role/semantic-type
// priors. Non-exhaustive but covers the canonical examples from §4.2.
var tokenRolePriors = map[string]rolePrior{
	"id":        {curation.RoleSampleId, curation.SemanticIdentifier, 0.9},
	"uuid":      {curation.RoleSampleId, curation.SemanticIdentifier, 0.9},
	"sample":    {curation.RoleSampleId, curation.SemanticIdentifier, 0.6},
	"subject":   {curation.RoleSampleId, curation.SemanticIdentifier, 0.6},
	"patient":   {curation.RoleSampleId, curation.SemanticIdentifier, 0.6},
	"age":       {curation.RoleCovariate, curation.SemanticContinuous, 0.8},
	"bmi":       {curation.RoleCovariate, curation.SemanticContinuous, 0.8},
	"weight":    {curation.RoleCovariate, curation.SemanticContinuous, 0.7},
	"height":    {curation.RoleCovariate, curation.SemanticContinuous, 0.7},
	"sex":       {curation.RoleGroupingVar, curation.SemanticCategorical, 0.8},
	"gender":    {curation.RoleGroupingVar, curation.SemanticCategorical, 0.8},
	"group":     {curation.RoleGroupingVar, curation.SemanticCategorical, 0.7},
	"cohort":    {curation.RoleGroupingVar, curation.SemanticCategorical, 0.7},
	"status":    {curation.RoleOutcome, curation.SemanticCategorical, 0.5},
	"outcome":   {curation.RoleOutcome, curation.SemanticCategorical, 0.8},
	"diagnosis": {curation.RoleOutcome, curation.SemanticCategorical, 0.7},
	"date":      {curation.RoleTechnical, curation.SemanticContinuous, 0.5},
	"timestamp": {curation.RoleTechnical, curation.SemanticContinuous, 0.5},
	"notes":     {curation.RoleAdministrative, curation.SemanticFreeText, 0.6},
	"comment":   {curation.RoleAdministrative, curation.SemanticFreeText, 0.6},
	"comments":  {curation.RoleAdministrative, curation.SemanticFreeText, 0.6},
}

// pattern candidates (§4.2): ISO date, decimal coordinate, alphanumeric id,
// SHA-prefixed hash.
var patternCandidates = []struct {
	name string
	re   *regexp.Regexp
}{
	{"iso_date", regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)},
	{"decimal_coordinate", regexp.MustCompile(`^-?\d{1,3}\.\d+$`)},
	{"alphanumeric_id", regexp.MustCompile(`^[A-Za-z]{1,6}[0-9]{2,}$`)},
	{"sha_hash", regexp.MustCompile(`^(sha1:|sha256:)?[0-9a-fA-F]{32,64}$`)},
}

// Candidate is the semantic analyzer's output for one column.
type Candidate struct {
	Role             curation.SemanticRole
	RoleConfidence   float64
	SemanticType     curation.SemanticType
	SemanticConfidence float64
	Pattern          string // name of the matched pattern candidate, if any
	PatternConfidence float64
	HeaderTokens     []string
}

// Analyze derives a Candidate from a header name and up to MaxSamples
// non-null sample values.
func Analyze(header string, samples []string) Candidate {
	tokens := SplitHeaderTokens(header)
	if len(samples) > MaxSamples {
		samples = samples[:MaxSamples]
	}

	cand := Candidate{HeaderTokens: tokens}
	for _, tok := range tokens {
		if prior, ok := tokenRolePriors[tok]; ok && prior.confidence > cand.RoleConfidence {
			cand.Role = prior.role
			cand.RoleConfidence = prior.confidence
			cand.SemanticType = prior.semantic
			cand.SemanticConfidence = prior.confidence
		}
	}
	if cand.Role == "" {
		cand.Role = curation.RoleUnknown
	}

	if len(samples) == 0 {
		return cand
	}
	for _, pc := range patternCandidates {
		matched := 0
		for _, s := range samples {
			if pc.re.MatchString(strings.TrimSpace(s)) {
				matched++
			}
		}
		frac := float64(matched) / float64(len(samples))
		if frac >= PatternMatchThreshold && frac > cand.PatternConfidence {
			cand.Pattern = pc.name
			cand.PatternConfidence = frac
			if pc.name == "alphanumeric_id" || pc.name == "sha_hash" {
				if cand.SemanticType == "" || cand.SemanticConfidence < frac {
					cand.SemanticType = curation.SemanticIdentifier
					cand.SemanticConfidence = frac
				}
			}
		}
	}
	return cand
}
