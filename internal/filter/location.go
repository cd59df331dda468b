package filter

import (
	"context"
	"fmt"

	"github.com/compfilter/compfilter/internal/domain"
	"github.com/compfilter/compfilter/internal/geo"
)

var (
	lonColumns = []string{"longitude", "lon", "lng", "x"}
	latColumns = []string{"latitude", "lat", "y"}
)

// locationFilter matches rows whose coordinate falls in or on any of the
// selected areas. Labels resolve against a snapshot taken when the pass
// compiles, so concurrent uploads never change a pass in flight.
type locationFilter struct {
	areas AreaIndex
}

func (f *locationFilter) Spec() domain.FilterSpec {
	return domain.FilterSpec{Key: "location", Label: "Location", Kind: domain.KindGeo}
}

func (f *locationFilter) Options(ctx context.Context) ([]string, error) {
	if f.areas == nil {
		return nil, nil
	}
	return f.areas.Labels()
}

func (f *locationFilter) Compile(h *domain.Header, sel domain.Selection, warn Warn) (Predicate, bool, error) {
	labels := sel.Values("location")
	if len(labels) == 0 {
		return nil, false, nil
	}
	lonCol, okLon := h.Find(lonColumns...)
	latCol, okLat := h.Find(latColumns...)
	if !okLon || !okLat {
		warn("location", "coordinate columns not present in dataset, filter disabled")
		return nil, false, nil
	}
	if f.areas == nil {
		return nil, false, fmt.Errorf("%w: no geometry registry configured", domain.ErrConfiguration)
	}

	snap, err := f.areas.Snapshot()
	if err != nil {
		return nil, false, fmt.Errorf("geometry registry: %w", err)
	}
	var entries []*geo.Entry
	for _, label := range labels {
		e, ok := snap.Lookup(label)
		if !ok {
			// Never match against stale or guessed geometry.
			warn("location", fmt.Sprintf("unknown area %q, it matches no rows", label))
			continue
		}
		entries = append(entries, e)
	}

	warned := false
	return func(row []string) bool {
		lon, okX := parseNumber(domain.Field(row, lonCol))
		lat, okY := parseNumber(domain.Field(row, latCol))
		if !okX || !okY {
			if !warned {
				warned = true
				warn("location", "rows without parsable coordinates were skipped")
			}
			return false
		}
		for _, e := range entries {
			if e.Contains(lon, lat) {
				return true
			}
		}
		return false
	}, true, nil
}
