// Package transform implements the Transform Engine (§4.9): replaying
// Accepted/Modified decisions against the original rows to produce a
// curated table, plus an audit log of every cell it touched.
//
// The engine never mutates the table it is given — Apply always returns a
// fresh copy — and re-applying the same layer to the same rows a second
// time produces an identical result (idempotence), since every action is
// defined as "set cell to its target form" rather than "transform the
// current value".
package transform

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/cruciblehq/crucible/internal/column"
	"github.com/cruciblehq/crucible/internal/curation"
)

// CellChange records one cell's transformation for the audit log.
type CellChange struct {
	Row    int    `json:"row"`
	Column string `json:"column"`
	Before string `json:"before"`
	After  string `json:"after"`
	Diff   string `json:"diff"`
}

// AuditEntry ties a single applied suggestion to the cell changes it
// produced (§4.9: "audit log: suggestion id, action, row indices,
// before/after pairs").
type AuditEntry struct {
	SuggestionID string       `json:"suggestion_id"`
	ObservationID string      `json:"observation_id"`
	Action       curation.ActionTag `json:"action"`
	Column       string       `json:"column,omitempty"`
	Changes      []CellChange `json:"changes"`
	AppliedAt    time.Time    `json:"applied_at"`
}

// Result is the outcome of an Apply run.
type Result struct {
	Table *column.Table
	Audit []AuditEntry
}

// Apply replays every Accepted or Modified decision in the layer, in
// priority-then-id order, against table and returns a new curated table
// plus the audit trail. table is never mutated. Apply refuses to run
// against a layer flagged stale (§4.8/§7: ErrStaleSource).
func Apply(schema *curation.TableSchema, table *column.Table, doc curation.CurationLayer, now time.Time) (*Result, error) {
	if doc.Stale {
		return nil, curation.ErrStaleSource
	}

	out := cloneTable(table)

	decisionsBySuggestion := make(map[string]curation.Decision, len(doc.Decisions))
	for _, d := range doc.Decisions {
		decisionsBySuggestion[d.SuggestionID] = d
	}
	obsByID := make(map[string]curation.Observation, len(doc.Observations))
	for _, o := range doc.Observations {
		obsByID[o.ID] = o
	}

	type applied struct {
		suggestion curation.Suggestion
		decision   curation.Decision
	}
	var actionable []applied
	for _, s := range doc.Suggestions {
		d, ok := decisionsBySuggestion[s.ID]
		if !ok || (d.Status != curation.DecisionAccepted && d.Status != curation.DecisionModified) {
			continue
		}
		actionable = append(actionable, applied{suggestion: s, decision: d})
	}
	sort.SliceStable(actionable, func(i, j int) bool {
		if actionable[i].suggestion.Priority != actionable[j].suggestion.Priority {
			return actionable[i].suggestion.Priority < actionable[j].suggestion.Priority
		}
		return actionable[i].suggestion.ID < actionable[j].suggestion.ID
	})

	var audit []AuditEntry
	for _, a := range actionable {
		s := a.suggestion
		params := mergeParams(s.Parameters, a.decision.Modifications)
		obs := obsByID[s.ObservationID]
		col := obs.Column
		colIdx := columnIndex(out.Headers, col)

		var changes []CellChange
		switch s.Action {
		case curation.ActionConvertNA:
			changes = applyConvertNA(out, colIdx, params)
		case curation.ActionStandardize:
			changes = applyStandardize(out, colIdx, params)
		case curation.ActionConvertDate:
			changes = applyConvertDate(out, colIdx)
		case curation.ActionCoerce:
			changes = applyCoerce(out, colIdx, params)
		case curation.ActionFlag, curation.ActionRemove, curation.ActionMerge, curation.ActionRename, curation.ActionSplit, curation.ActionDerive:
			// These actions require row/column structural decisions the
			// rule engine deliberately leaves to a human reviewer's
			// modification params; absent explicit params they are
			// recorded in the audit log without mutating cells.
			changes = nil
		}

		audit = append(audit, AuditEntry{
			SuggestionID:  s.ID,
			ObservationID: s.ObservationID,
			Action:        s.Action,
			Column:        col,
			Changes:       changes,
			AppliedAt:     now,
		})
	}

	return &Result{Table: out, Audit: audit}, nil
}

func cloneTable(t *column.Table) *column.Table {
	headers := append([]string(nil), t.Headers...)
	rows := make([]column.Row, len(t.Rows))
	for i, r := range t.Rows {
		rows[i] = append(column.Row(nil), r...)
	}
	return &column.Table{Headers: headers, Rows: rows}
}

func columnIndex(headers []string, name string) int {
	for i, h := range headers {
		if h == name {
			return i
		}
	}
	return -1
}

func mergeParams(base map[string]any, overrides map[string]any) map[string]any {
	if len(overrides) == 0 {
		return base
	}
	merged := make(map[string]any, len(base)+len(overrides))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range overrides {
		merged[k] = v
	}
	return merged
}

func setCell(table *column.Table, row, col int, value string) (before string) {
	before = table.Rows[row][col]
	table.Rows[row][col] = value
	return before
}

func cellDiff(before, after string) string {
	if before == after {
		return ""
	}
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(before),
		B:        difflib.SplitLines(after),
		FromFile: "before",
		ToFile:   "after",
		Context:  0,
	}
	text, _ := difflib.GetUnifiedDiffString(diff)
	if text == "" {
		return fmt.Sprintf("-%s\n+%s\n", before, after)
	}
	return text
}

func applyConvertNA(table *column.Table, colIdx int, params map[string]any) []CellChange {
	if colIdx < 0 {
		return nil
	}
	fromValues := stringSet(params["from_values"])
	var changes []CellChange
	for r, row := range table.Rows {
		if colIdx >= len(row) {
			continue
		}
		cell := row[colIdx]
		if !fromValues[cell] {
			continue
		}
		before := setCell(table, r, colIdx, "")
		if before == "" {
			continue
		}
		changes = append(changes, CellChange{Row: r, Column: table.Headers[colIdx], Before: before, After: "", Diff: cellDiff(before, "")})
	}
	return changes
}

func applyStandardize(table *column.Table, colIdx int, params map[string]any) []CellChange {
	if colIdx < 0 {
		return nil
	}
	mapping, _ := params["mapping"].(map[string]any)
	var changes []CellChange
	for r, row := range table.Rows {
		if colIdx >= len(row) {
			continue
		}
		cell := row[colIdx]
		target, ok := mapping[cell]
		targetStr, _ := target.(string)
		if !ok || targetStr == cell {
			continue
		}
		before := setCell(table, r, colIdx, targetStr)
		changes = append(changes, CellChange{Row: r, Column: table.Headers[colIdx], Before: before, After: targetStr, Diff: cellDiff(before, targetStr)})
	}
	return changes
}

var isoDateLayout = "2006-01-02"

func applyConvertDate(table *column.Table, colIdx int) []CellChange {
	if colIdx < 0 {
		return nil
	}
	var changes []CellChange
	for r, row := range table.Rows {
		if colIdx >= len(row) {
			continue
		}
		cell := strings.TrimSpace(row[colIdx])
		if cell == "" {
			continue
		}
		parsed, ok := parseAnyDate(cell)
		if !ok {
			continue
		}
		target := parsed.Format(isoDateLayout)
		if target == cell {
			continue
		}
		before := setCell(table, r, colIdx, target)
		changes = append(changes, CellChange{Row: r, Column: table.Headers[colIdx], Before: before, After: target, Diff: cellDiff(before, target)})
	}
	return changes
}

func parseAnyDate(s string) (time.Time, bool) {
	layouts := []string{
		"2006-01-02", "01/02/2006", "1/2/2006", "02-01-2006", "Jan 2, 2006", "January 2, 2006",
		time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func applyCoerce(table *column.Table, colIdx int, params map[string]any) []CellChange {
	if colIdx < 0 {
		return nil
	}
	targetType, _ := params["target_type"].(string)
	var changes []CellChange
	for r, row := range table.Rows {
		if colIdx >= len(row) {
			continue
		}
		cell := strings.TrimSpace(row[colIdx])
		if cell == "" {
			continue
		}
		normalized, ok := coerceNumeric(cell, targetType)
		if !ok || normalized == cell {
			continue
		}
		before := setCell(table, r, colIdx, normalized)
		changes = append(changes, CellChange{Row: r, Column: table.Headers[colIdx], Before: before, After: normalized, Diff: cellDiff(before, normalized)})
	}
	return changes
}

func coerceNumeric(cell, targetType string) (string, bool) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ',', '$', '%', ' ':
			return -1
		}
		return r
	}, cell)
	switch curation.PrimitiveType(targetType) {
	case curation.TypeInteger:
		f, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return "", false
		}
		return strconv.FormatInt(int64(f), 10), true
	case curation.TypeFloat:
		f, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return "", false
		}
		return strconv.FormatFloat(f, 'f', -1, 64), true
	default:
		return "", false
	}
}

func stringSet(v any) map[string]bool {
	set := map[string]bool{}
	items, _ := v.([]string)
	if items != nil {
		for _, s := range items {
			set[s] = true
		}
		return set
	}
	if anyItems, ok := v.([]any); ok {
		for _, it := range anyItems {
			if s, ok := it.(string); ok {
				set[s] = true
			}
		}
	}
	return set
}
