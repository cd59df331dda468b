package filter

import (
	"strings"

	"github.com/compfilter/compfilter/internal/domain"
)

var (
	usageColumns      = []string{"gebruiksdoel", "building_usage", "usage"}
	mainColumns       = []string{"hoofdvestiging", "is_hoofdvestiging", "main_establishment"}
	nonmailingColumns = []string{"nonmailing", "nonmailingindicatie", "non_mailing_indicatie"}
	areaColumns       = []string{"oppervlakte", "floor_area", "area"}
)

// premisesFilter matches on establishment properties: building usage,
// main-establishment and non-mailing flags, and floor area. Tokens:
// usage=<value>, main=TRUE/FALSE, nonmailing=TRUE/FALSE, areamin=<n>,
// areamax=<n>.
type premisesFilter struct{}

func (f *premisesFilter) Spec() domain.FilterSpec {
	return domain.FilterSpec{Key: "premises", Label: "Premises", Kind: domain.KindGroup}
}

func (f *premisesFilter) Compile(h *domain.Header, sel domain.Selection, warn Warn) (Predicate, bool, error) {
	tok := groupTokens(sel.Values("premises"))
	if len(tok) == 0 {
		return nil, false, nil
	}

	var checks []Predicate

	if usages := tok["usage"]; len(usages) > 0 {
		if col, ok := h.Find(usageColumns...); ok {
			want := make(map[string]struct{}, len(usages))
			for _, u := range usages {
				want[strings.ToLower(u)] = struct{}{}
			}
			checks = append(checks, func(row []string) bool {
				_, hit := want[strings.ToLower(domain.Field(row, col))]
				return hit
			})
		} else {
			warn("premises", "building-usage column not present in dataset, usage tokens skipped")
		}
	}

	for _, flag := range []struct {
		name    string
		columns []string
	}{
		{"main", mainColumns},
		{"nonmailing", nonmailingColumns},
	} {
		want, ok := boolFlag(tok, flag.name)
		if !ok {
			continue
		}
		col, found := h.Find(flag.columns...)
		if !found {
			warn("premises", "column for "+flag.name+" not present in dataset, flag skipped")
			continue
		}
		checks = append(checks, func(row []string) bool {
			b, parsed := cellBool(domain.Field(row, col))
			return parsed && b == want
		})
	}

	areaMin, hasMin := numberToken(tok, "premises", "areamin", warn)
	areaMax, hasMax := numberToken(tok, "premises", "areamax", warn)
	if hasMin || hasMax {
		if col, ok := h.Find(areaColumns...); ok {
			checks = append(checks, func(row []string) bool {
				area, parsed := parseNumber(domain.Field(row, col))
				if !parsed {
					return false
				}
				if hasMin && area < areaMin {
					return false
				}
				if hasMax && area > areaMax {
					return false
				}
				return true
			})
		} else {
			warn("premises", "floor-area column not present in dataset, area tokens skipped")
		}
	}

	if len(checks) == 0 {
		return nil, false, nil
	}
	return allOf(checks), true, nil
}

func allOf(checks []Predicate) Predicate {
	if len(checks) == 1 {
		return checks[0]
	}
	return func(row []string) bool {
		for _, c := range checks {
			if !c(row) {
				return false
			}
		}
		return true
	}
}
