package filter

import (
	"context"
	"strings"

	"github.com/compfilter/compfilter/internal/domain"
)

var contactColumns = []string{"contactpersoon", "contact_person", "contactperson"}

// contactFilter matches on the presence of a contact person. Selecting both
// TRUE and FALSE (or neither) is a passthrough.
type contactFilter struct{}

func (f *contactFilter) Spec() domain.FilterSpec {
	return domain.FilterSpec{Key: "contact", Label: "Contact person", Kind: domain.KindMultiselect}
}

func (f *contactFilter) Options(context.Context) ([]string, error) {
	return []string{"TRUE", "FALSE"}, nil
}

func (f *contactFilter) Compile(h *domain.Header, sel domain.Selection, warn Warn) (Predicate, bool, error) {
	var wantTrue, wantFalse bool
	for _, v := range sel.Values("contact") {
		switch strings.ToUpper(v) {
		case "TRUE":
			wantTrue = true
		case "FALSE":
			wantFalse = true
		}
	}
	if wantTrue == wantFalse {
		return nil, false, nil
	}
	col, ok := h.Find(contactColumns...)
	if !ok {
		warn("contact", "contact-person column not present in dataset, filter disabled")
		return nil, false, nil
	}
	return func(row []string) bool {
		present := !EmptyCell(domain.Field(row, col))
		return present == wantTrue
	}, true, nil
}
