package filter

import (
	"fmt"

	"github.com/compfilter/compfilter/internal/domain"
)

// outreachFlags maps each reachability flag to its column candidates.
var outreachFlags = []struct {
	name    string
	columns []string
}{
	{"fax", []string{"faxnummer", "fax"}},
	{"phone", []string{"telefoonnummer", "telefoon", "phone"}},
	{"post", []string{"postadres", "postal_address", "post"}},
}

// outreachFilter matches on traditional reachability: fax, phone and postal
// address presence. Tokens are "fax=TRUE" style; selecting both TRUE and
// FALSE for one flag cancels that flag.
type outreachFilter struct{}

func (f *outreachFilter) Spec() domain.FilterSpec {
	return domain.FilterSpec{Key: "outreach", Label: "Traditional outreach", Kind: domain.KindGroup}
}

func (f *outreachFilter) Compile(h *domain.Header, sel domain.Selection, warn Warn) (Predicate, bool, error) {
	tok := groupTokens(sel.Values("outreach"))
	if len(tok) == 0 {
		return nil, false, nil
	}

	type check struct {
		col  int
		want bool
	}
	var checks []check
	for _, flag := range outreachFlags {
		want, ok := boolFlag(tok, flag.name)
		if !ok {
			continue
		}
		col, ok := h.Find(flag.columns...)
		if !ok {
			warn("outreach", fmt.Sprintf("column for %q not present in dataset, flag skipped", flag.name))
			continue
		}
		checks = append(checks, check{col: col, want: want})
	}
	if len(checks) == 0 {
		return nil, false, nil
	}
	return func(row []string) bool {
		for _, c := range checks {
			if !EmptyCell(domain.Field(row, c.col)) != c.want {
				return false
			}
		}
		return true
	}, true, nil
}
