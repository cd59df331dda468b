// Package analysis compares the filtered subset of the dataset against the
// unfiltered baseline along a fixed set of dimensions. Both passes stream the
// dataset independently and run concurrently; the baseline is always computed
// live so it can never drift from the data on disk.
package analysis

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/compfilter/compfilter/internal/domain"
	"github.com/compfilter/compfilter/internal/filter"
	"github.com/compfilter/compfilter/internal/pipeline"
)

// DimSummary is always included; the others are opt-in per request.
const (
	DimSummary   = "summary"
	DimLegalform = "legalform"
	DimRegion    = "region"
	DimIndustry  = "industry"
)

// Column candidates per dimension signal.
var (
	legalformCols = []string{"rechtsvorm", "legal_form"}
	industryCols  = []string{"sbi_codes", "alle_sbi_activiteiten", "sbi_all"}
	lonCols       = []string{"longitude", "lon", "lng", "x"}
	latCols       = []string{"latitude", "lat", "y"}

	// summarySignals maps a presence signal to its column candidates. A row
	// counts for a signal when the cell is non-empty; "active" additionally
	// requires a truthy value.
	summarySignals = []struct {
		name    string
		columns []string
	}{
		{"contactperson", []string{"contactpersoon", "contact_person", "contactperson"}},
		{"active", []string{"economischactief", "economically_active"}},
		{"email", []string{"emailadres", "email"}},
		{"facebook", []string{"facebook"}},
		{"instagram", []string{"instagram"}},
		{"linkedin", []string{"linkedin"}},
		{"pinterest", []string{"pinterest"}},
		{"twitter", []string{"twitter"}},
		{"youtube", []string{"youtube"}},
		{"internetaddress", []string{"internetadres", "internetaddress", "website"}},
		{"phone", []string{"telefoonnummer", "telefoon", "phone"}},
		{"fax", []string{"faxnummer", "fax"}},
	}
)

// Category is one comparison line: how often a category occurs in the
// filtered subset versus the baseline.
type Category struct {
	Name        string  `json:"name"`
	FilteredAbs int     `json:"filteredAbs"`
	FilteredPct float64 `json:"filteredPct"`
	BaselinePct float64 `json:"baselinePct"`
	DiffPct     float64 `json:"diffPct"`
	ExpectedAbs float64 `json:"expectedAbs"`
}

// Dimension groups categories under a dimension name.
type Dimension struct {
	Name       string     `json:"name"`
	Categories []Category `json:"categories"`
}

// Report is the full analysis response.
type Report struct {
	FilteredTotal int         `json:"filteredTotal"`
	BaselineTotal int         `json:"baselineTotal"`
	Dimensions    []Dimension `json:"dimensions"`
	Warnings      []string    `json:"warnings"`
}

// Analyzer runs comparison passes through the pipeline.
type Analyzer struct {
	pipe   *pipeline.Pipeline
	areas  filter.AreaIndex
	logger *zap.Logger
}

// New creates an analyzer. areas backs the region dimension and may be nil.
func New(pipe *pipeline.Pipeline, areas filter.AreaIndex, logger *zap.Logger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{pipe: pipe, areas: areas, logger: logger}
}

// Run computes the comparison. dims selects the optional dimensions; the
// summary dimension is always present. Unknown dimension names produce a
// warning and are skipped.
func (a *Analyzer) Run(ctx context.Context, sel domain.Selection, adv domain.Advanced, dims []string) (*Report, error) {
	var warnings []string
	wanted := map[string]bool{DimSummary: true}
	for _, d := range dims {
		switch d = strings.ToLower(strings.TrimSpace(d)); d {
		case DimSummary, DimLegalform, DimRegion, DimIndustry:
			wanted[d] = true
		case "":
		default:
			warnings = append(warnings, fmt.Sprintf("analysis: unknown dimension %q skipped", d))
		}
	}

	var resolveRegion func(x, y float64) (string, bool)
	if wanted[DimRegion] {
		if a.areas == nil {
			warnings = append(warnings, "analysis: no geometry registry configured, region dimension skipped")
			delete(wanted, DimRegion)
		} else {
			snap, err := a.areas.Snapshot()
			if err != nil {
				return nil, fmt.Errorf("geometry registry: %w", err)
			}
			resolveRegion = snap.ResolveRegion
		}
	}

	filtered := newCounters()
	baseline := newCounters()

	g, gctx := errgroup.WithContext(ctx)
	var passWarnings []string
	g.Go(func() error {
		ws, err := a.runPass(gctx, sel, adv, pipeline.OpAnalysis, wanted, resolveRegion, filtered)
		passWarnings = ws
		return err
	})
	g.Go(func() error {
		// The baseline is the whole dataset: no selection, no dedupe.
		_, err := a.runPass(gctx, domain.Selection{}, domain.Advanced{}, pipeline.OpAnalysis, wanted, resolveRegion, baseline)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	warnings = append(warnings, passWarnings...)

	report := &Report{
		FilteredTotal: filtered.total,
		BaselineTotal: baseline.total,
		Warnings:      warnings,
	}
	for _, name := range []string{DimSummary, DimLegalform, DimRegion, DimIndustry} {
		if !wanted[name] {
			continue
		}
		report.Dimensions = append(report.Dimensions, compare(name, filtered, baseline))
	}
	a.logger.Info("analysis complete",
		zap.Int("filtered", filtered.total),
		zap.Int("baseline", baseline.total),
		zap.Int("dimensions", len(report.Dimensions)),
	)
	return report, nil
}

// runPass streams one pass and feeds every matching row to the counters.
func (a *Analyzer) runPass(ctx context.Context, sel domain.Selection, adv domain.Advanced, op string,
	wanted map[string]bool, resolveRegion func(x, y float64) (string, bool), c *counters) ([]string, error) {

	res, err := a.pipe.Run(ctx, sel, adv, op)
	if err != nil {
		return nil, err
	}
	defer res.Close()

	observers := buildObservers(res.Header(), wanted, resolveRegion)
	for {
		row, err := res.Next()
		if err == io.EOF {
			return res.Warnings(), nil
		}
		if err != nil {
			return nil, err
		}
		c.total++
		for _, obs := range observers {
			obs(row, c)
		}
	}
}

type counters struct {
	total int
	dims  map[string]map[string]int
}

func newCounters() *counters {
	return &counters{dims: make(map[string]map[string]int)}
}

func (c *counters) inc(dim, category string) {
	m, ok := c.dims[dim]
	if !ok {
		m = make(map[string]int)
		c.dims[dim] = m
	}
	m[category]++
}

type observer func(row []string, c *counters)

// buildObservers resolves the dimension columns against the pass header.
// Dimensions whose columns are absent simply produce no categories.
func buildObservers(h *domain.Header, wanted map[string]bool, resolveRegion func(x, y float64) (string, bool)) []observer {
	var out []observer

	if wanted[DimSummary] {
		for _, sig := range summarySignals {
			col, ok := h.Find(sig.columns...)
			if !ok {
				continue
			}
			name := sig.name
			truthyOnly := name == "active"
			out = append(out, func(row []string, c *counters) {
				v := domain.Field(row, col)
				if filter.EmptyCell(v) {
					return
				}
				if truthyOnly && !strings.EqualFold(v, "JA") && !strings.EqualFold(v, "TRUE") {
					return
				}
				c.inc(DimSummary, name)
			})
		}
	}

	if wanted[DimLegalform] {
		if col, ok := h.Find(legalformCols...); ok {
			out = append(out, func(row []string, c *counters) {
				v := domain.Field(row, col)
				if filter.EmptyCell(v) {
					v = filter.UnknownValue
				}
				c.inc(DimLegalform, v)
			})
		}
	}

	if wanted[DimRegion] && resolveRegion != nil {
		lonCol, okLon := h.Find(lonCols...)
		latCol, okLat := h.Find(latCols...)
		if okLon && okLat {
			out = append(out, func(row []string, c *counters) {
				lon, okX := parseCoord(domain.Field(row, lonCol))
				lat, okY := parseCoord(domain.Field(row, latCol))
				if !okX || !okY {
					c.inc(DimRegion, filter.UnknownValue)
					return
				}
				if name, ok := resolveRegion(lon, lat); ok {
					c.inc(DimRegion, name)
				} else {
					c.inc(DimRegion, filter.UnknownValue)
				}
			})
		}
	}

	if wanted[DimIndustry] {
		if col, ok := h.Find(industryCols...); ok {
			out = append(out, func(row []string, c *counters) {
				for _, code := range filter.TokenizeCodes(domain.Field(row, col)) {
					c.inc(DimIndustry, code)
				}
			})
		}
	}
	return out
}

// compare merges the filtered and baseline counts of one dimension into
// sorted comparison lines.
func compare(dim string, filtered, baseline *counters) Dimension {
	names := make(map[string]struct{})
	for name := range filtered.dims[dim] {
		names[name] = struct{}{}
	}
	for name := range baseline.dims[dim] {
		names[name] = struct{}{}
	}

	d := Dimension{Name: dim, Categories: make([]Category, 0, len(names))}
	for name := range names {
		fAbs := filtered.dims[dim][name]
		bAbs := baseline.dims[dim][name]
		fPct := pct(fAbs, filtered.total)
		bPct := pct(bAbs, baseline.total)
		d.Categories = append(d.Categories, Category{
			Name:        name,
			FilteredAbs: fAbs,
			FilteredPct: fPct,
			BaselinePct: bPct,
			DiffPct:     fPct - bPct,
			ExpectedAbs: bPct / 100 * float64(filtered.total),
		})
	}
	sortCategories(d.Categories)
	return d
}

func pct(abs, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(abs) / float64(total) * 100
}

// sortCategories orders by filtered count descending, name ascending as the
// tiebreak, so the largest buckets surface first.
func sortCategories(cats []Category) {
	sort.Slice(cats, func(i, j int) bool {
		if cats[i].FilteredAbs != cats[j].FilteredAbs {
			return cats[i].FilteredAbs > cats[j].FilteredAbs
		}
		return cats[i].Name < cats[j].Name
	})
}

func parseCoord(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	return f, err == nil
}
