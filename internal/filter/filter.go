// Package filter holds the filter units of the streaming pipeline: each unit
// turns its slice of the request selection into a row predicate, and the
// registry folds the active predicates into a single pass over the dataset.
package filter

import (
	"context"

	"github.com/compfilter/compfilter/internal/domain"
	"github.com/compfilter/compfilter/internal/geo"
)

// Predicate decides one row. The row slice is only valid for the duration of
// the call: the CSV reader reuses its record buffer.
type Predicate func(row []string) bool

// Warn records a data-format warning for the running pass. Warnings surface
// in the response and the request log, they never abort the pass.
type Warn func(key, message string)

// Filter is one unit of the fixed registry.
type Filter interface {
	Spec() domain.FilterSpec

	// Compile builds the row predicate for one pass against the pass header.
	// active is false when the selection leaves the unit idle or a missing
	// column disabled it; an error means the request cannot proceed at all.
	Compile(h *domain.Header, sel domain.Selection, warn Warn) (p Predicate, active bool, err error)
}

// OptionLister is implemented by filters whose accepted values can be listed
// for the dashboard.
type OptionLister interface {
	Options(ctx context.Context) ([]string, error)
}

// ValueScanner enumerates the distinct values of a dataset column. The
// pipeline implements it with a dedicated streaming pass.
type ValueScanner interface {
	DistinctValues(ctx context.Context, candidates []string) ([]string, error)
}

// AreaIndex yields a consistent geometry view for one pass.
type AreaIndex interface {
	Snapshot() (*geo.Snapshot, error)
	Labels() ([]string, error)
}

// CodeLists resolves a stored code-list file to its code set.
type CodeLists interface {
	Load(bucket, stem string) map[string]struct{}
}

// Registry is the fixed, ordered filter chain. The order is part of the API
// contract: /api/filters lists units in this order and predicates are folded
// in this order.
type Registry []Filter

// NewRegistry builds the registry.
func NewRegistry(scanner ValueScanner, areas AreaIndex, lists CodeLists) Registry {
	return Registry{
		newValueFilter("activity", "Economically active", scanner, activityColumns),
		newValueFilter("legalform", "Legal form", scanner, legalformColumns),
		&workforceFilter{},
		&locationFilter{areas: areas},
		&contactFilter{},
		&mediaFilter{},
		&outreachFilter{},
		&premisesFilter{},
		&foundingFilter{},
		&industryFilter{lists: lists},
	}
}

// Specs returns the static metadata of every unit, in registry order.
func (r Registry) Specs() []domain.FilterSpec {
	out := make([]domain.FilterSpec, len(r))
	for i, f := range r {
		out[i] = f.Spec()
	}
	return out
}

// Compile folds the active units into one predicate. An empty selection
// compiles to a pass-everything predicate.
func (r Registry) Compile(h *domain.Header, sel domain.Selection, warn Warn) (Predicate, error) {
	var preds []Predicate
	for _, f := range r {
		p, active, err := f.Compile(h, sel, warn)
		if err != nil {
			return nil, err
		}
		if active {
			preds = append(preds, p)
		}
	}
	switch len(preds) {
	case 0:
		return func([]string) bool { return true }, nil
	case 1:
		return preds[0], nil
	}
	return func(row []string) bool {
		for _, p := range preds {
			if !p(row) {
				return false
			}
		}
		return true
	}, nil
}
