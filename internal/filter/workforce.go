package filter

import (
	"math"

	"github.com/compfilter/compfilter/internal/domain"
)

var (
	workforceMinColumns = []string{"workingminimum", "working_minimum", "werkzamepersonenmin"}
	workforceMaxColumns = []string{"workingmaximum", "working_maximum", "werkzamepersonenmax"}
)

// workforceSentinel in a row's maximum column means "no upper bound
// recorded": the row's interval is open above.
const workforceSentinel = 999_999_999

// workforceFilter matches rows whose recorded workforce interval overlaps
// the requested one.
type workforceFilter struct{}

func (f *workforceFilter) Spec() domain.FilterSpec {
	return domain.FilterSpec{Key: "workforce", Label: "Workforce size", Kind: domain.KindRange}
}

func (f *workforceFilter) Compile(h *domain.Header, sel domain.Selection, warn Warn) (Predicate, bool, error) {
	bounds := sel.Range("workforce")
	if bounds.Empty() {
		return nil, false, nil
	}
	minCol, okMin := h.Find(workforceMinColumns...)
	maxCol, okMax := h.Find(workforceMaxColumns...)
	if !okMin || !okMax {
		warn("workforce", "workforce columns not present in dataset, filter disabled")
		return nil, false, nil
	}

	warned := false
	return func(row []string) bool {
		lo, okLo := parseNumber(domain.Field(row, minCol))
		hi, okHi := parseNumber(domain.Field(row, maxCol))
		if !okLo && !okHi {
			if !warned {
				warned = true
				warn("workforce", "rows with non-numeric workforce columns were skipped")
			}
			return false
		}
		// A one-sided row still describes a usable interval.
		if !okLo {
			lo = hi
		}
		if !okHi {
			hi = lo
		}
		if hi >= workforceSentinel {
			hi = math.Inf(1)
		}
		if bounds.Lower != nil && hi < *bounds.Lower {
			return false
		}
		if bounds.Upper != nil && lo > *bounds.Upper {
			return false
		}
		return true
	}, true, nil
}
