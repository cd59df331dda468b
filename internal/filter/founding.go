package filter

import (
	"fmt"
	"time"

	"github.com/compfilter/compfilter/internal/domain"
)

var (
	foundingDateColumns = []string{"datumoprichting", "oprichtingsdatum", "founding_date"}
	tradenameColumns    = []string{"handelsnamen", "tradenames", "trade_names"}
)

// foundingFilter matches on founding date and trade-name presence. Tokens:
// datemin=<date>, datemax=<date>, tradenames=TRUE/FALSE.
type foundingFilter struct{}

func (f *foundingFilter) Spec() domain.FilterSpec {
	return domain.FilterSpec{Key: "founding", Label: "Founding", Kind: domain.KindGroup}
}

func (f *foundingFilter) Compile(h *domain.Header, sel domain.Selection, warn Warn) (Predicate, bool, error) {
	tok := groupTokens(sel.Values("founding"))
	if len(tok) == 0 {
		return nil, false, nil
	}

	var checks []Predicate

	dateMin, hasMin := dateToken(tok, "datemin", warn)
	dateMax, hasMax := dateToken(tok, "datemax", warn)
	if hasMin || hasMax {
		if col, ok := h.Find(foundingDateColumns...); ok {
			checks = append(checks, func(row []string) bool {
				d, parsed := parseDate(domain.Field(row, col))
				if !parsed {
					return false
				}
				if hasMin && d.Before(dateMin) {
					return false
				}
				if hasMax && d.After(dateMax) {
					return false
				}
				return true
			})
		} else {
			warn("founding", "founding-date column not present in dataset, date tokens skipped")
		}
	}

	if want, ok := boolFlag(tok, "tradenames"); ok {
		if col, found := h.Find(tradenameColumns...); found {
			checks = append(checks, func(row []string) bool {
				return !EmptyCell(domain.Field(row, col)) == want
			})
		} else {
			warn("founding", "trade-names column not present in dataset, flag skipped")
		}
	}

	if len(checks) == 0 {
		return nil, false, nil
	}
	return allOf(checks), true, nil
}

func dateToken(tok map[string][]string, name string, warn Warn) (time.Time, bool) {
	for _, v := range tok[name] {
		if d, ok := parseDate(v); ok {
			return d, true
		}
		warn("founding", fmt.Sprintf("ignoring %s token %q: not a date", name, v))
	}
	return time.Time{}, false
}
