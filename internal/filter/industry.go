package filter

import (
	"fmt"
	"sort"

	"github.com/compfilter/compfilter/internal/domain"
)

// industryColumns maps a code bucket to the dataset columns that carry it.
var industryColumns = map[string][]string{
	"main": {"mainsbi", "main_sbi", "hoofd_sbi", "hoofdactiviteit", "sbi_hoofdactiviteit", "sbihoofdcode", "sbi_main"},
	"sub":  {"subsbi", "sub_sbi", "nevenactiviteiten", "nevensbi", "sbi_nevenactiviteit", "sbisubcode", "sbi_sub"},
	"all":  {"sbi_codes", "alle_sbi_activiteiten", "sbi_all"},
}

// industryFilter matches rows whose industry codes intersect the effective
// code set of every selected bucket. The effective set of a bucket is the
// union of its manual codes and its referenced stored list.
type industryFilter struct {
	lists CodeLists
}

func (f *industryFilter) Spec() domain.FilterSpec {
	return domain.FilterSpec{Key: "industry", Label: "Industry codes", Kind: domain.KindCodeSet}
}

func (f *industryFilter) Compile(h *domain.Header, sel domain.Selection, warn Warn) (Predicate, bool, error) {
	buckets := sel.CodeBuckets("industry")
	if len(buckets) == 0 {
		return nil, false, nil
	}

	names := make([]string, 0, len(buckets))
	for name := range buckets {
		names = append(names, name)
	}
	sort.Strings(names)

	type check struct {
		col   int
		codes map[string]struct{}
	}
	var checks []check
	for _, name := range names {
		columns, known := industryColumns[name]
		if !known {
			warn("industry", fmt.Sprintf("unknown code bucket %q ignored", name))
			continue
		}
		bucket := buckets[name]
		codes := make(map[string]struct{}, len(bucket.Manual))
		for _, c := range bucket.Manual {
			codes[c] = struct{}{}
		}
		if bucket.File != "" && f.lists != nil {
			for c := range f.lists.Load(name, bucket.File) {
				codes[c] = struct{}{}
			}
		}
		if len(codes) == 0 {
			warn("industry", fmt.Sprintf("bucket %q selects no codes", name))
			continue
		}
		col, ok := h.Find(columns...)
		if !ok {
			warn("industry", fmt.Sprintf("column for bucket %q not present in dataset, bucket skipped", name))
			continue
		}
		checks = append(checks, check{col: col, codes: codes})
	}
	if len(checks) == 0 {
		return nil, false, nil
	}

	// Every bucket must pass on its own.
	return func(row []string) bool {
		for _, c := range checks {
			hit := false
			for _, code := range TokenizeCodes(domain.Field(row, c.col)) {
				if _, ok := c.codes[code]; ok {
					hit = true
					break
				}
			}
			if !hit {
				return false
			}
		}
		return true
	}, true, nil
}
