// Package column holds the in-memory representation of tabular input: a
// Table of raw cells plus the per-column Frame view the analyzers consume.
package column

import (
	"strconv"
	"strings"
)

// Frame is one column's data: its header name, the ordered raw cell text,
// and the original file row index each cell came from. Cells are never
// coerced in place — every analyzer works from this raw text.
type Frame struct {
	Name       string
	Cells      []string
	RowIndices []int
}

// NewFrame builds a Frame, defaulting RowIndices to 0..len(cells)-1 when the
// caller has no sparser row mapping to supply.
func NewFrame(name string, cells []string, rowIndices []int) *Frame {
	if rowIndices == nil {
		rowIndices = make([]int, len(cells))
		for i := range cells {
			rowIndices[i] = i
		}
	}
	return &Frame{Name: name, Cells: cells, RowIndices: rowIndices}
}

// Len returns the number of cells in the frame.
func (f *Frame) Len() int { return len(f.Cells) }

// NonNullSamples returns up to max cells that isNull reports as non-null,
// in row order, alongside the row index each sample came from.
func (f *Frame) NonNullSamples(isNull func(string) bool, max int) ([]string, []int) {
	samples := make([]string, 0, max)
	indices := make([]int, 0, max)
	for i, cell := range f.Cells {
		if isNull(cell) {
			continue
		}
		samples = append(samples, cell)
		indices = append(indices, f.RowIndices[i])
		if len(samples) >= max {
			break
		}
	}
	return samples, indices
}

// Row is one record's raw cells, in header order.
type Row []string

// Table is the row-major view of an entire dataset: headers in original
// order plus the raw cell matrix, one slice per row.
type Table struct {
	Headers []string
	Rows    []Row
}

// RowCount returns the number of data rows (excluding the header).
func (t *Table) RowCount() int { return len(t.Rows) }

// ColumnCount returns the number of columns.
func (t *Table) ColumnCount() int { return len(t.Headers) }

// Frames splits the table into one Frame per column, in header order.
func (t *Table) Frames() []*Frame {
	frames := make([]*Frame, len(t.Headers))
	for col, name := range t.Headers {
		cells := make([]string, len(t.Rows))
		indices := make([]int, len(t.Rows))
		for r, row := range t.Rows {
			if col < len(row) {
				cells[r] = row[col]
			}
			indices[r] = r
		}
		frames[col] = NewFrame(name, cells, indices)
	}
	return frames
}

// Frame returns the single column Frame matching name, or nil if absent.
func (t *Table) Frame(name string) *Frame {
	for _, f := range t.Frames() {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// NormalizeHeaders trims, collapses internal whitespace, and disambiguates
// blank/duplicate headers, returning the normalized names and any
// human-readable warnings produced along the way.
func NormalizeHeaders(raw []string) ([]string, []string) {
	normalized := make([]string, len(raw))
	seen := make(map[string]int)
	var warnings []string

	for i, h := range raw {
		name := strings.TrimSpace(h)
		name = strings.Join(strings.Fields(name), " ")
		if name != "" && name != h {
			warnings = append(warnings, "header at position "+strconv.Itoa(i)+" whitespace-normalized to "+name)
		}
		if name == "" {
			name = "Column " + strconv.Itoa(i+1)
			warnings = append(warnings, "blank header at position "+strconv.Itoa(i)+" renamed to "+name)
		}
		if count, exists := seen[name]; exists {
			seen[name] = count + 1
			renamed := name + " (" + strconv.Itoa(count+1) + ")"
			warnings = append(warnings, "duplicate header '"+name+"' at position "+strconv.Itoa(i)+" renamed to "+renamed)
			name = renamed
		} else {
			seen[name] = 1
		}
		normalized[i] = name
	}
	return normalized, warnings
}
