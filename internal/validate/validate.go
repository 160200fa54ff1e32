// Package validate implements the Validator Set (§4.6): pure functions
// from (TableSchema, rows, Config) to Observations. Each validator runs
// independently and may execute in parallel (§5); Run sorts the combined
// result to a canonical order so scheduling never changes observable
// output.
package validate

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/unicode/norm"

	"github.com/cruciblehq/crucible/internal/column"
	"github.com/cruciblehq/crucible/internal/curation"
	"github.com/cruciblehq/crucible/internal/stats"
)

// Validator is a pure detector: (TableSchema, rows, Config) -> Observations.
type Validator struct {
	ID string
	Fn func(schema *curation.TableSchema, table *column.Table, cfg Config) []curation.Observation
}

// All returns the full registry of required validators (§4.6), in a fixed
// order used as the secondary sort key for deterministic output.
func All() []Validator {
	return []Validator{
		{"completeness", completeness},
		{"uniqueness", uniqueness},
		{"type", typeValidator},
		{"range", rangeValidator},
		{"set_membership", setMembership},
		{"pattern", pattern},
		{"duplicate", duplicate},
		{"outlier", outlier},
		{"case_consistency", caseConsistency},
		{"typo", typo},
		{"boolean_consistency", booleanConsistency},
		{"date_consistency", dateConsistency},
		{"cross_column", crossColumn},
	}
}

// Run executes every validator — in parallel, bounded by workers — and
// returns the combined Observations sorted by (column order, validator id,
// evidence key) per §5's determinism-vs-parallelism requirement.
func Run(ctx context.Context, schema *curation.TableSchema, table *column.Table, cfg Config, workers int) ([]curation.Observation, error) {
	validators := All()
	results := make([][]curation.Observation, len(validators))

	g, gctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i, v := range validators {
		i, v := i, v
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return curation.ErrCancelled
			default:
			}
			results[i] = v.Fn(schema, table, cfg)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	columnOrder := make(map[string]int, len(schema.Columns))
	for i, c := range schema.Columns {
		columnOrder[c.Name] = i
	}

	var all []curation.Observation
	for _, obsList := range results {
		all = append(all, obsList...)
	}
	sort.SliceStable(all, func(i, j int) bool {
		ci := primaryColumn(all[i], columnOrder)
		cj := primaryColumn(all[j], columnOrder)
		if ci != cj {
			return ci < cj
		}
		if all[i].Detector != all[j].Detector {
			return all[i].Detector < all[j].Detector
		}
		return all[i].ID < all[j].ID
	})
	return all, nil
}

func primaryColumn(o curation.Observation, order map[string]int) int {
	cols := o.AffectedColumns()
	if len(cols) == 0 {
		return len(order)
	}
	if idx, ok := order[cols[0]]; ok {
		return idx
	}
	return len(order)
}

func makeObservation(validatorID string, t curation.ObservationType, sev curation.Severity, column, description string, ev curation.Evidence, confidence float64, now time.Time) curation.Observation {
	key := evidenceKey(ev)
	return curation.Observation{
		ID:          curation.DeterministicID(validatorID, column, key),
		Type:        t,
		Severity:    sev,
		Column:      column,
		Description: description,
		Evidence:    ev,
		Confidence:  confidence,
		Detector:    validatorID,
		DetectedAt:  now,
	}
}

func evidenceKey(ev curation.Evidence) string {
	switch {
	case ev.ValueAtRow != nil:
		return fmt.Sprintf("row:%d", ev.ValueAtRow.Row)
	case ev.RowIndices != nil:
		return fmt.Sprintf("rows:%d:%d", ev.RowIndices[0], len(ev.RowIndices))
	case ev.ValueCounts != nil:
		keys := make([]string, 0, len(ev.ValueCounts))
		for k := range ev.ValueCounts {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return strings.Join(keys, ",")
	case ev.ExpectedVsActual != nil:
		return ev.ExpectedVsActual.Expected + "->" + ev.ExpectedVsActual.Actual
	default:
		return ""
	}
}

func completeness(schema *curation.TableSchema, table *column.Table, cfg Config) []curation.Observation {
	var out []curation.Observation
	now := time.Now()
	for _, col := range schema.Columns {
		if table.RowCount() == 0 {
			continue
		}
		fraction := float64(col.Stats.NullCount) / float64(table.RowCount())
		if fraction <= cfg.CompletenessWarnThreshold {
			continue
		}
		sev := curation.SeverityWarning
		if fraction > cfg.CompletenessErrorThreshold {
			sev = curation.SeverityError
		}
		ev := curation.Evidence{ValueCounts: col.Stats.NullPatternCounts}
		desc := fmt.Sprintf("%.0f%% of %s is null", fraction*100, col.Name)
		out = append(out, makeObservation("completeness", curation.ObsCompleteness, sev, col.Name, desc, ev, fraction, now))
	}
	return out
}

func uniqueness(schema *curation.TableSchema, table *column.Table, cfg Config) []curation.Observation {
	var out []curation.Observation
	now := time.Now()
	for _, col := range schema.Columns {
		if !col.Unique {
			continue
		}
		frame := table.Frame(col.Name)
		if frame == nil {
			continue
		}
		seen := map[string][]int{}
		for i, cell := range frame.Cells {
			if cell == "" {
				continue
			}
			seen[cell] = append(seen[cell], frame.RowIndices[i])
		}
		var dupRows []int
		counts := map[string]int{}
		for v, rows := range seen {
			if len(rows) > 1 {
				dupRows = append(dupRows, rows...)
				counts[v] = len(rows)
			}
		}
		if len(dupRows) == 0 {
			continue
		}
		sort.Ints(dupRows)
		ev := curation.Evidence{ValueCounts: counts, RowIndices: dupRows}
		desc := fmt.Sprintf("column %s is declared unique but has duplicate values", col.Name)
		out = append(out, makeObservation("uniqueness", curation.ObsConstraintViolation, curation.SeverityError, col.Name, desc, ev, 1.0, now))
	}
	return out
}

func typeValidator(schema *curation.TableSchema, table *column.Table, cfg Config) []curation.Observation {
	var out []curation.Observation
	now := time.Now()
	for _, col := range schema.Columns {
		frame := table.Frame(col.Name)
		if frame == nil {
			continue
		}
		var badRows []int
		for i, cell := range frame.Cells {
			if cell == "" {
				continue
			}
			if !stats.MatchesType(cell, col.InferredType) {
				badRows = append(badRows, frame.RowIndices[i])
			}
		}
		if len(badRows) == 0 {
			continue
		}
		fraction := float64(len(badRows)) / float64(max(frame.Len(), 1))
		sev := curation.SeverityWarning
		if fraction > cfg.TypeErrorFraction {
			sev = curation.SeverityError
		}
		if len(badRows) > stats.OutlierMaxIndices {
			badRows = badRows[:stats.OutlierMaxIndices]
		}
		ev := curation.Evidence{RowIndices: badRows}
		desc := fmt.Sprintf("%d cells in %s do not parse as %s", len(badRows), col.Name, col.InferredType)
		out = append(out, makeObservation("type", curation.ObsTypeMismatch, sev, col.Name, desc, ev, 1-fraction, now))
	}
	return out
}

func rangeValidator(schema *curation.TableSchema, table *column.Table, cfg Config) []curation.Observation {
	var out []curation.Observation
	now := time.Now()
	for _, col := range schema.Columns {
		if col.ExpectedRange == nil {
			continue
		}
		frame := table.Frame(col.Name)
		if frame == nil {
			continue
		}
		span := col.ExpectedRange.Max - col.ExpectedRange.Min
		var warnRows, errRows []int
		for i, cell := range frame.Cells {
			f, ok := parseFloat(cell)
			if !ok {
				continue
			}
			if f >= col.ExpectedRange.Min && f <= col.ExpectedRange.Max {
				continue
			}
			if span > 0 && (f < col.ExpectedRange.Min-cfg.RangeErrorSpanMultiplier*span || f > col.ExpectedRange.Max+cfg.RangeErrorSpanMultiplier*span) {
				errRows = append(errRows, frame.RowIndices[i])
			} else {
				warnRows = append(warnRows, frame.RowIndices[i])
			}
		}
		if len(errRows) > 0 {
			ev := curation.Evidence{RowIndices: capRows(errRows)}
			desc := fmt.Sprintf("%s has values far outside expected range [%v,%v]", col.Name, col.ExpectedRange.Min, col.ExpectedRange.Max)
			out = append(out, makeObservation("range", curation.ObsConstraintViolation, curation.SeverityError, col.Name, desc, ev, 0.9, now))
		}
		if len(warnRows) > 0 {
			ev := curation.Evidence{RowIndices: capRows(warnRows)}
			desc := fmt.Sprintf("%s has values outside expected range [%v,%v]", col.Name, col.ExpectedRange.Min, col.ExpectedRange.Max)
			out = append(out, makeObservation("range", curation.ObsConstraintViolation, curation.SeverityWarning, col.Name, desc, ev, 0.7, now))
		}
	}
	return out
}

func setMembership(schema *curation.TableSchema, table *column.Table, cfg Config) []curation.Observation {
	var out []curation.Observation
	now := time.Now()
	for _, col := range schema.Columns {
		if len(col.ExpectedValues) == 0 {
			continue
		}
		allowed := map[string]bool{}
		for _, v := range col.ExpectedValues {
			allowed[v] = true
		}
		frame := table.Frame(col.Name)
		if frame == nil {
			continue
		}
		counts := map[string]int{}
		var rows []int
		for i, cell := range frame.Cells {
			if cell == "" || allowed[cell] {
				continue
			}
			if nearVariant(cell, col.ExpectedValues) {
				continue
			}
			counts[cell]++
			rows = append(rows, frame.RowIndices[i])
		}
		if len(rows) == 0 {
			continue
		}
		sev := curation.SeverityWarning
		if cfg.Strict {
			sev = curation.SeverityError
		}
		ev := curation.Evidence{ValueCounts: counts, RowIndices: capRows(rows)}
		desc := fmt.Sprintf("%s has values outside its expected set", col.Name)
		out = append(out, makeObservation("set_membership", curation.ObsConstraintViolation, sev, col.Name, desc, ev, 0.8, now))
	}
	return out
}

func pattern(schema *curation.TableSchema, table *column.Table, cfg Config) []curation.Observation {
	var out []curation.Observation
	now := time.Now()
	for _, col := range schema.Columns {
		var re string
		for _, c := range col.Constraints {
			if c.Kind == "pattern" {
				re = c.Value
			}
		}
		if re == "" {
			continue
		}
		matcher := compileCached(re)
		if matcher == nil {
			continue
		}
		frame := table.Frame(col.Name)
		if frame == nil {
			continue
		}
		var rows []int
		for i, cell := range frame.Cells {
			if cell == "" {
				continue
			}
			if !matcher.MatchString(cell) {
				rows = append(rows, frame.RowIndices[i])
			}
		}
		if len(rows) == 0 {
			continue
		}
		ev := curation.Evidence{RowIndices: capRows(rows)}
		desc := fmt.Sprintf("%s has values that do not match its constraint pattern", col.Name)
		out = append(out, makeObservation("pattern", curation.ObsConstraintViolation, curation.SeverityWarning, col.Name, desc, ev, 0.7, now))
	}
	return out
}

func duplicate(schema *curation.TableSchema, table *column.Table, cfg Config) []curation.Observation {
	var out []curation.Observation
	now := time.Now()
	idCols := identifierColumns(schema)
	if len(idCols) == 0 {
		return out
	}
	seen := map[string][]int{}
	for r, row := range table.Rows {
		key := rowKey(table.Headers, row, idCols)
		if key == "" {
			continue
		}
		seen[key] = append(seen[key], r)
	}
	var dupRows []int
	for _, rows := range seen {
		if len(rows) > 1 {
			dupRows = append(dupRows, rows...)
		}
	}
	if len(dupRows) == 0 {
		return out
	}
	sort.Ints(dupRows)
	ev := curation.Evidence{RowIndices: capRows(dupRows)}
	desc := "duplicate rows found on identifier column(s) " + strings.Join(idCols, ",")
	out = append(out, makeObservation("duplicate", curation.ObsDuplicate, curation.SeverityError, strings.Join(idCols, ","), desc, ev, 1.0, now))
	return out
}

func identifierColumns(schema *curation.TableSchema) []string {
	if len(schema.UniqueKey) > 0 {
		return schema.UniqueKey
	}
	var ids []string
	for _, c := range schema.Columns {
		if c.SemanticRole == curation.RoleSampleId || c.Unique {
			ids = append(ids, c.Name)
		}
	}
	return ids
}

func rowKey(headers []string, row column.Row, cols []string) string {
	idx := map[string]int{}
	for i, h := range headers {
		idx[h] = i
	}
	var parts []string
	for _, c := range cols {
		i, ok := idx[c]
		if !ok || i >= len(row) || row[i] == "" {
			return ""
		}
		parts = append(parts, row[i])
	}
	return strings.Join(parts, "\x1f")
}

func outlier(schema *curation.TableSchema, table *column.Table, cfg Config) []curation.Observation {
	var out []curation.Observation
	now := time.Now()
	for _, col := range schema.Columns {
		if len(col.Stats.OutlierRowIndices) == 0 {
			continue
		}
		fraction := float64(len(col.Stats.OutlierRowIndices)) / float64(max(table.RowCount(), 1))
		sev := curation.SeverityInfo
		if fraction > cfg.OutlierWarnFraction {
			sev = curation.SeverityWarning
		}
		ev := curation.Evidence{RowIndices: col.Stats.OutlierRowIndices}
		desc := fmt.Sprintf("%s has %d outlier value(s)", col.Name, len(col.Stats.OutlierRowIndices))
		out = append(out, makeObservation("outlier", curation.ObsOutlier, sev, col.Name, desc, ev, 0.8, now))
	}
	return out
}

func caseConsistency(schema *curation.TableSchema, table *column.Table, cfg Config) []curation.Observation {
	var out []curation.Observation
	now := time.Now()
	for _, col := range schema.Columns {
		if col.SemanticType != curation.SemanticCategorical {
			continue
		}
		frame := table.Frame(col.Name)
		if frame == nil {
			continue
		}
		groups := map[string]map[string]int{}
		for _, cell := range frame.Cells {
			if cell == "" {
				continue
			}
			key := norm.NFC.String(strings.ToLower(cell))
			if groups[key] == nil {
				groups[key] = map[string]int{}
			}
			groups[key][cell]++
		}
		merged := map[string]int{}
		inconsistent := false
		for lower, variants := range groups {
			if len(variants) >= 2 {
				inconsistent = true
				for v, n := range variants {
					merged[lower+":"+v] = n
				}
			}
		}
		if !inconsistent {
			continue
		}
		ev := curation.Evidence{ValueCounts: caseConsistencyEvidence(groups)}
		desc := fmt.Sprintf("%s has multiple surface forms for the same value", col.Name)
		out = append(out, makeObservation("case_consistency", curation.ObsInconsistency, curation.SeverityWarning, col.Name, desc, ev, 0.85, now))
	}
	return out
}

func caseConsistencyEvidence(groups map[string]map[string]int) map[string]int {
	flat := map[string]int{}
	for lower, variants := range groups {
		if len(variants) < 2 {
			continue
		}
		for v, n := range variants {
			flat[lower+":"+v] = n
		}
	}
	return flat
}

func typo(schema *curation.TableSchema, table *column.Table, cfg Config) []curation.Observation {
	var out []curation.Observation
	now := time.Now()
	for _, col := range schema.Columns {
		if col.Stats.ValueCounts == nil {
			continue
		}
		pairs := typoPairs(col.Stats.ValueCounts, cfg.TypoMaxEditDistance)
		if len(pairs) == 0 {
			continue
		}
		counts := map[string]int{}
		for typoVal, canonical := range pairs {
			counts[typoVal+"->"+canonical] = col.Stats.ValueCounts[typoVal]
		}
		ev := curation.Evidence{ValueCounts: counts}
		desc := fmt.Sprintf("%s has likely typo variants of frequent values", col.Name)
		out = append(out, makeObservation("typo", curation.ObsInconsistency, curation.SeverityWarning, col.Name, desc, ev, 0.6, now))
	}
	return out
}

// typoPairs finds rare values within edit distance maxDist of a frequent
// value sharing the same first two characters, mapping typo -> canonical.
func typoPairs(valueCounts map[string]int, maxDist int) map[string]string {
	type entry struct {
		value string
		count int
	}
	var entries []entry
	for v, c := range valueCounts {
		entries = append(entries, entry{v, c})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].count > entries[j].count })

	pairs := map[string]string{}
	for i := range entries {
		if entries[i].count > 1 {
			continue // only rare (count==1) values are typo candidates
		}
		for j := range entries {
			if i == j || entries[j].count <= entries[i].count {
				continue
			}
			if !strings.EqualFold(prefix(entries[i].value, 2), prefix(entries[j].value, 2)) {
				continue
			}
			if editDistance(entries[i].value, entries[j].value) <= maxDist {
				pairs[entries[i].value] = entries[j].value
				break
			}
		}
	}
	return pairs
}

func prefix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func editDistance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur := make([]int, len(rb)+1)
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = min(cur[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev = cur
	}
	return prev[len(rb)]
}

func booleanConsistency(schema *curation.TableSchema, table *column.Table, cfg Config) []curation.Observation {
	var out []curation.Observation
	now := time.Now()
	for _, col := range schema.Columns {
		if col.InferredType != curation.TypeBoolean {
			continue
		}
		frame := table.Frame(col.Name)
		if frame == nil {
			continue
		}
		families := map[string]bool{}
		counts := map[string]int{}
		for _, cell := range frame.Cells {
			if cell == "" {
				continue
			}
			families[booleanFamily(cell)] = true
			counts[cell]++
		}
		if len(families) <= 1 {
			continue
		}
		ev := curation.Evidence{ValueCounts: counts}
		desc := fmt.Sprintf("%s mixes boolean surface-form families", col.Name)
		out = append(out, makeObservation("boolean_consistency", curation.ObsInconsistency, curation.SeverityWarning, col.Name, desc, ev, 0.85, now))
	}
	return out
}

func booleanFamily(cell string) string {
	switch strings.ToLower(strings.TrimSpace(cell)) {
	case "true", "false":
		return "true_false"
	case "yes", "no":
		return "yes_no"
	case "y", "n":
		return "y_n"
	case "1", "0":
		return "one_zero"
	default:
		return "other"
	}
}

func dateConsistency(schema *curation.TableSchema, table *column.Table, cfg Config) []curation.Observation {
	var out []curation.Observation
	now := time.Now()
	for _, col := range schema.Columns {
		if col.InferredType != curation.TypeDate && col.InferredType != curation.TypeDateTime {
			continue
		}
		frame := table.Frame(col.Name)
		if frame == nil {
			continue
		}
		families := map[string]int{}
		for _, cell := range frame.Cells {
			if cell == "" {
				continue
			}
			for _, layout := range stats.MatchedDateFormats(cell) {
				families[layout]++
			}
		}
		if len(families) <= 1 {
			continue
		}
		ev := curation.Evidence{ValueCounts: families}
		desc := fmt.Sprintf("%s contains dates in more than one format", col.Name)
		out = append(out, makeObservation("date_consistency", curation.ObsInconsistency, curation.SeverityWarning, col.Name, desc, ev, 0.8, now))
	}
	return out
}

func crossColumn(schema *curation.TableSchema, table *column.Table, cfg Config) []curation.Observation {
	var out []curation.Observation
	now := time.Now()
	idx := map[string]int{}
	for i, h := range table.Headers {
		idx[h] = i
	}
	for _, rule := range schema.CrossColumnRules {
		var badRows []int
		for r, row := range table.Rows {
			if !crossColumnRuleHolds(rule, idx, row) {
				badRows = append(badRows, r)
			}
		}
		if len(badRows) == 0 {
			continue
		}
		ev := curation.Evidence{RowIndices: capRows(badRows)}
		out = append(out, curation.Observation{
			ID:          curation.DeterministicID("cross_column", rule.ID, evidenceKey(ev)),
			Type:        curation.ObsCrossColumn,
			Severity:    curation.SeverityWarning,
			Columns:     rule.Columns,
			Description: rule.Description,
			Evidence:    ev,
			Confidence:  0.7,
			Detector:    "cross_column",
			DetectedAt:  now,
		})
	}
	return out
}

// crossColumnRuleHolds checks the simple conditional-presence shape: all
// named columns must be either all-empty or all-populated in a row.
func crossColumnRuleHolds(rule curation.CrossColumnRule, idx map[string]int, row column.Row) bool {
	present := 0
	for _, c := range rule.Columns {
		i, ok := idx[c]
		if ok && i < len(row) && row[i] != "" {
			present++
		}
	}
	return present == 0 || present == len(rule.Columns)
}

func nearVariant(cell string, allowed []string) bool {
	lower := strings.ToLower(strings.TrimSpace(cell))
	for _, a := range allowed {
		if strings.ToLower(a) == lower {
			return true
		}
	}
	return false
}

func parseFloat(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return f, err == nil
}

func capRows(rows []int) []int {
	if len(rows) > stats.OutlierMaxIndices {
		return rows[:stats.OutlierMaxIndices]
	}
	return rows
}

var patternCache = map[string]*regexp.Regexp{}

func compileCached(pattern string) *regexp.Regexp {
	if re, ok := patternCache[pattern]; ok {
		return re
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil
	}
	patternCache[pattern] = re
	return re
}
