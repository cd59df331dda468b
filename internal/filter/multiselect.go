package filter

import (
	"context"
	"fmt"
	"strings"

	"github.com/compfilter/compfilter/internal/domain"
)

var (
	activityColumns  = []string{"economischactief", "economically_active"}
	legalformColumns = []string{"rechtsvorm", "legal_form"}
)

// UnknownValue stands in for an empty cell in multiselect filters, so the
// dashboard can offer "unknown" as a pickable option.
const UnknownValue = "UNKNOWN"

// valueFilter matches a dataset column against a set of accepted values.
// Both the activity and the legal-form unit are instances of it.
type valueFilter struct {
	key     string
	label   string
	scanner ValueScanner
	columns []string
}

func newValueFilter(key, label string, scanner ValueScanner, columns []string) *valueFilter {
	return &valueFilter{key: key, label: label, scanner: scanner, columns: columns}
}

func (f *valueFilter) Spec() domain.FilterSpec {
	return domain.FilterSpec{Key: f.key, Label: f.label, Kind: domain.KindMultiselect}
}

// Options scans the dataset for the distinct values of the filter column.
func (f *valueFilter) Options(ctx context.Context) ([]string, error) {
	if f.scanner == nil {
		return nil, nil
	}
	return f.scanner.DistinctValues(ctx, f.columns)
}

func (f *valueFilter) Compile(h *domain.Header, sel domain.Selection, warn Warn) (Predicate, bool, error) {
	selected := sel.Values(f.key)
	if len(selected) == 0 {
		return nil, false, nil
	}
	col, ok := h.Find(f.columns...)
	if !ok {
		warn(f.key, fmt.Sprintf("column %q not present in dataset, filter disabled", f.columns[0]))
		return nil, false, nil
	}

	want := make(map[string]struct{}, len(selected))
	for _, v := range selected {
		want[strings.ToLower(v)] = struct{}{}
	}
	return func(row []string) bool {
		v := domain.Field(row, col)
		if EmptyCell(v) {
			v = UnknownValue
		}
		_, hit := want[strings.ToLower(v)]
		return hit
	}, true, nil
}
