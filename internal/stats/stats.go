// Package stats implements the Statistical Analyzer (§4.1): from a single
// Column Frame it derives null detection, type guessing, cardinality, and
// (for numeric columns) a streaming mean/std plus sampled quartiles and
// outlier detection.
package stats

import (
	"hash/fnv"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cruciblehq/crucible/internal/column"
	"github.com/cruciblehq/crucible/internal/curation"
)

// defaultNullTokens are recognized null patterns beyond the empty string
// (§4.1). Matching is case-insensitive.
var defaultNullTokens = []string{
	"na", "n/a", "null", ".", "missing", "not applicable", "not collected",
	"unknown", "none",
}

// TypeThreshold is the fraction of non-null cells that must parse under a
// candidate type for the guess to succeed (§4.1).
const TypeThreshold = 0.95

// CardinalityMaxCount and CardinalityMaxFraction gate whether the exact
// value_counts map is retained (§4.1): retained if unique_count <= 256 OR
// unique_count <= 5% of rows.
const (
	CardinalityMaxCount    = 256
	CardinalityMaxFraction = 0.05
)

// OutlierZScoreThreshold and OutlierMaxIndices bound outlier detection
// (§4.1): IQR rule AND z-score >= 4, capped at the first 50 offending rows.
const (
	OutlierZScoreThreshold = 4.0
	OutlierMaxIndices      = 50
)

// QuantileSampleThreshold: above this many non-null numeric values,
// quartiles are computed from a fixed-size reservoir sample rather than a
// full sort, per §4.1's "may be approximated via reservoir sampling".
const QuantileSampleThreshold = 100000
const quantileSampleSize = 20000

// NullDetector decides whether a raw cell should be treated as missing,
// combining the built-in token set with any per-column extras from context
// (§4.1's "per-column custom set from context").
type NullDetector struct {
	tokens map[string]bool
}

// NewNullDetector builds a NullDetector from the default tokens plus extra.
func NewNullDetector(extra []string) *NullDetector {
	tokens := make(map[string]bool, len(defaultNullTokens)+len(extra))
	for _, t := range defaultNullTokens {
		tokens[t] = true
	}
	for _, t := range extra {
		tokens[strings.ToLower(strings.TrimSpace(t))] = true
	}
	return &NullDetector{tokens: tokens}
}

// IsNull reports whether cell matches a recognized null pattern.
func (d *NullDetector) IsNull(cell string) bool {
	if cell == "" {
		return true
	}
	return d.tokens[strings.ToLower(strings.TrimSpace(cell))]
}

// Profile is the statistical analyzer's per-column output (§4.1).
type Profile struct {
	Type           curation.PrimitiveType
	TypeConfidence float64
	Stats          curation.ColumnStats
}

// Analyze computes a full statistical Profile for frame.
func Analyze(frame *column.Frame, nulls *NullDetector) Profile {
	nullCount := 0
	nullPatterns := map[string]int{}
	var nonNull []string
	var nonNullIdx []int
	for i, cell := range frame.Cells {
		if nulls.IsNull(cell) {
			nullCount++
			key := strings.ToLower(strings.TrimSpace(cell))
			if key == "" {
				key = "<empty>"
			}
			nullPatterns[key]++
			continue
		}
		nonNull = append(nonNull, cell)
		nonNullIdx = append(nonNullIdx, frame.RowIndices[i])
	}

	typ, conf := guessType(nonNull)

	uniqueCount, valueCounts := cardinality(nonNull, len(frame.Cells))

	stats := curation.ColumnStats{
		NullCount:         nullCount,
		NullPatternCounts: nullPatterns,
		UniqueCount:       uniqueCount,
		ValueCounts:       valueCounts,
	}

	if typ == curation.TypeInteger || typ == curation.TypeFloat {
		numeric, outliers := numericSummary(frame.Name, nonNull, nonNullIdx)
		stats.Numeric = &numeric
		stats.OutlierRowIndices = outliers
	}

	return Profile{Type: typ, TypeConfidence: conf, Stats: stats}
}

// guessType tries Boolean -> Integer -> Float -> Date -> DateTime -> String
// in order, succeeding at the first candidate >= TypeThreshold (§4.1).
func guessType(values []string) (curation.PrimitiveType, float64) {
	if len(values) == 0 {
		return curation.TypeString, 1.0
	}
	candidates := []struct {
		typ   curation.PrimitiveType
		match func(string) bool
	}{
		{curation.TypeBoolean, isBoolean},
		{curation.TypeInteger, isInteger},
		{curation.TypeFloat, isFloat},
		{curation.TypeDate, isDate},
		{curation.TypeDateTime, isDateTime},
	}
	for _, c := range candidates {
		matched := 0
		for _, v := range values {
			if c.match(v) {
				matched++
			}
		}
		frac := float64(matched) / float64(len(values))
		if frac >= TypeThreshold {
			return c.typ, frac
		}
	}
	return curation.TypeString, 1.0
}

var booleanTrue = map[string]bool{"true": true, "yes": true, "y": true, "1": true}
var booleanFalse = map[string]bool{"false": true, "no": true, "n": true, "0": true}

func isBoolean(v string) bool {
	lv := strings.ToLower(strings.TrimSpace(v))
	return booleanTrue[lv] || booleanFalse[lv]
}

func isInteger(v string) bool {
	_, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	return err == nil
}

func isFloat(v string) bool {
	_, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	return err == nil
}

var dateLayouts = []string{"2006-01-02", "01/02/2006", "2006/01/02", "Jan 2 2006", "Jan _2 2006"}
var dateTimeLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"}

func isDate(v string) bool {
	v = strings.TrimSpace(v)
	for _, layout := range dateLayouts {
		if _, err := time.Parse(layout, v); err == nil {
			return true
		}
	}
	return false
}

func isDateTime(v string) bool {
	v = strings.TrimSpace(v)
	for _, layout := range dateTimeLayouts {
		if _, err := time.Parse(layout, v); err == nil {
			return true
		}
	}
	return false
}

// MatchesType reports whether cell parses under primitive type t, using the
// same per-type parsers the type guesser itself uses (§4.6's Type
// validator: "non-null cell fails to parse as col.inferred_type").
func MatchesType(cell string, t curation.PrimitiveType) bool {
	switch t {
	case curation.TypeBoolean:
		return isBoolean(cell)
	case curation.TypeInteger:
		return isInteger(cell)
	case curation.TypeFloat:
		return isFloat(cell)
	case curation.TypeDate:
		return isDate(cell)
	case curation.TypeDateTime:
		return isDateTime(cell)
	default:
		return true
	}
}

// MatchedDateFormats returns the names of every recognized date/datetime
// layout that cell parses against, used by the DateConsistency validator
// to detect heterogeneous formats (§4.6).
func MatchedDateFormats(cell string) []string {
	cell = strings.TrimSpace(cell)
	var formats []string
	for _, layout := range dateLayouts {
		if _, err := time.Parse(layout, cell); err == nil {
			formats = append(formats, layout)
		}
	}
	for _, layout := range dateTimeLayouts {
		if _, err := time.Parse(layout, cell); err == nil {
			formats = append(formats, layout)
		}
	}
	return formats
}

// DateLayouts exposes the recognized date/datetime layouts for
// DateConsistency validation and ConvertDate suggestions.
func DateLayouts() []string     { return append([]string{}, dateLayouts...) }
func DateTimeLayouts() []string { return append([]string{}, dateTimeLayouts...) }

// cardinality computes exact unique_count and retains value_counts only
// when small enough to be useful evidence (§4.1).
func cardinality(values []string, totalRows int) (int, map[string]int) {
	counts := map[string]int{}
	for _, v := range values {
		counts[v]++
	}
	unique := len(counts)
	fraction := 0.0
	if totalRows > 0 {
		fraction = float64(unique) / float64(totalRows)
	}
	if unique <= CardinalityMaxCount || fraction <= CardinalityMaxFraction {
		return unique, counts
	}
	return unique, nil
}

// welford accumulates mean/variance in a single pass (Welford's algorithm),
// grounded on the teacher's/pack's preference for streaming numeric
// accumulators rather than two-pass computation. No example repo ships a
// reusable Welford implementation, so this stays on stdlib math — see
// DESIGN.md.
type welford struct {
	count int
	mean  float64
	m2    float64
}

func (w *welford) push(x float64) {
	w.count++
	delta := x - w.mean
	w.mean += delta / float64(w.count)
	delta2 := x - w.mean
	w.m2 += delta * delta2
}

func (w *welford) variance() float64 {
	if w.count < 2 {
		return 0
	}
	return w.m2 / float64(w.count-1)
}

// seedFromName derives a deterministic seed from the column name (§4.1:
// "any random sampling uses a fixed seed derived from the column name").
func seedFromName(name string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(name))
	return h.Sum64()
}

// numericSummary computes min/max/mean/std exactly via Welford's algorithm
// and quartiles + outliers from a (possibly reservoir-sampled) copy of the
// values, returning up to OutlierMaxIndices offending row indices in
// original row order.
func numericSummary(columnName string, values []string, rowIdx []int) (curation.NumericSummary, []int) {
	w := welford{}
	nums := make([]float64, 0, len(values))
	min, max := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			continue
		}
		w.push(f)
		nums = append(nums, f)
		if f < min {
			min = f
		}
		if f > max {
			max = f
		}
	}
	if len(nums) == 0 {
		return curation.NumericSummary{}, nil
	}

	sampleForQuantiles := nums
	if len(nums) > QuantileSampleThreshold {
		sampleForQuantiles = reservoirSample(nums, quantileSampleSize, seedFromName(columnName))
	}
	sorted := append([]float64{}, sampleForQuantiles...)
	sort.Float64s(sorted)
	q1 := percentile(sorted, 0.25)
	median := percentile(sorted, 0.50)
	q3 := percentile(sorted, 0.75)

	summary := curation.NumericSummary{
		Min: min, Max: max, Mean: w.mean, Std: math.Sqrt(w.variance()),
		Q1: q1, Median: median, Q3: q3,
	}

	outliers := detectOutliers(nums, rowIdx, q1, q3, w.mean, summary.Std)
	return summary, outliers
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}
	idx := p * float64(len(sorted)-1)
	lo := int(math.Floor(idx))
	hi := int(math.Ceil(idx))
	if lo == hi {
		return sorted[lo]
	}
	frac := idx - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

// detectOutliers applies the IQR rule AND z-score >= 4 test (§4.1),
// returning up to OutlierMaxIndices row indices in original row order.
func detectOutliers(values []float64, rowIdx []int, q1, q3, mean, std float64) []int {
	iqr := q3 - q1
	lower := q1 - 1.5*iqr
	upper := q3 + 1.5*iqr
	var out []int
	for i, v := range values {
		if v >= lower && v <= upper {
			continue
		}
		if std == 0 {
			continue
		}
		z := math.Abs((v - mean) / std)
		if z >= OutlierZScoreThreshold {
			out = append(out, rowIdx[i])
			if len(out) >= OutlierMaxIndices {
				break
			}
		}
	}
	return out
}

// reservoirSample performs a deterministic reservoir sample seeded by
// seed, used only for quartile approximation on very large columns.
func reservoirSample(values []float64, k int, seed uint64) []float64 {
	if len(values) <= k {
		return values
	}
	rng := newSplitMix64(seed)
	reservoir := append([]float64{}, values[:k]...)
	for i := k; i < len(values); i++ {
		j := int(rng.next() % uint64(i+1))
		if j < k {
			reservoir[j] = values[i]
		}
	}
	return reservoir
}

// splitMix64 is a tiny deterministic PRNG so sampling never depends on
// math/rand's global state, keeping runs reproducible across processes.
type splitMix64 struct{ state uint64 }

func newSplitMix64(seed uint64) *splitMix64 { return &splitMix64{state: seed} }

func (s *splitMix64) next() uint64 {
	s.state += 0x9E3779B97F4A7C15
	z := s.state
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	return z ^ (z >> 31)
}

