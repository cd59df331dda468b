package domain

import "strings"

// Header holds the ordered column names of a dataset pass and a
// case-insensitive name→index map computed once. Immutable after creation.
type Header struct {
	cols  []string
	index map[string]int
}

// NewHeader builds a Header from raw column names. Lookup keys are trimmed
// and lowercased; the original spelling is preserved in Columns.
func NewHeader(cols []string) *Header {
	h := &Header{
		cols:  cols,
		index: make(map[string]int, len(cols)),
	}
	for i, c := range cols {
		key := strings.ToLower(strings.TrimSpace(c))
		if _, ok := h.index[key]; !ok {
			h.index[key] = i
		}
	}
	return h
}

// Columns returns the column names in file order.
func (h *Header) Columns() []string { return h.cols }

// Len returns the column count.
func (h *Header) Len() int { return len(h.cols) }

// Find returns the index of the first candidate column name present in the
// header. Candidates are matched case-insensitively.
func (h *Header) Find(candidates ...string) (int, bool) {
	for _, c := range candidates {
		if i, ok := h.index[strings.ToLower(strings.TrimSpace(c))]; ok {
			return i, true
		}
	}
	return 0, false
}

// Field returns the trimmed cell at idx, tolerating short rows.
func Field(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
