package filter

import "github.com/compfilter/compfilter/internal/domain"

// seenColumns are tried, in order, to locate the company identifier for the
// duplicate-exclusion unit.
var seenColumns = []string{"kvknumber", "kvknummer", "kvk", "id"}

// ExcludeSeen builds the advanced-mode predicate that drops rows whose
// identifier appears in a previous export. It runs after every registry
// unit.
func ExcludeSeen(h *domain.Header, seen map[string]struct{}, warn Warn) (Predicate, bool) {
	if len(seen) == 0 {
		return nil, false
	}
	col, ok := h.Find(seenColumns...)
	if !ok {
		warn("dedupe", "no identifier column found in dataset, duplicate exclusion disabled")
		return nil, false
	}
	return func(row []string) bool {
		_, dup := seen[domain.Field(row, col)]
		return !dup
	}, true
}
