package analysis

import (
	"context"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/compfilter/compfilter/internal/dataset"
	"github.com/compfilter/compfilter/internal/dedupe"
	"github.com/compfilter/compfilter/internal/domain"
	"github.com/compfilter/compfilter/internal/geo"
	"github.com/compfilter/compfilter/internal/pipeline"
)

const analysisCSV = "kvknumber,economischactief,rechtsvorm,contactpersoon,longitude,latitude,sbi_codes\n" +
	"1,JA,BV,Jan,5.0,53.0,['0161']\n" +
	"2,JA,BV,,5.0,53.0,\"['0161','4711']\"\n" +
	"3,NEE,NV,Piet,5.0,51.0,['4711']\n" +
	"4,JA,Eenmanszaak,,0.0,0.0,\n"

const analysisRegions = `{
  "type": "FeatureCollection",
  "features": [
    {
      "type": "Feature",
      "properties": {"naam": "Noordvlakte"},
      "geometry": {"type": "Polygon", "coordinates": [[[4,52],[6,52],[6,54],[4,54],[4,52]]]}
    },
    {
      "type": "Feature",
      "properties": {"naam": "Zuidvlakte"},
      "geometry": {"type": "Polygon", "coordinates": [[[4,50],[6,50],[6,52],[4,52],[4,50]]]}
    }
  ]
}`

func newTestAnalyzer(t *testing.T) (*Analyzer, *pipeline.Pipeline) {
	t.Helper()
	dir := t.TempDir()
	datasetPath := filepath.Join(dir, "dataset.csv")
	if err := os.WriteFile(datasetPath, []byte(analysisCSV), 0o644); err != nil {
		t.Fatalf("write dataset: %v", err)
	}
	regionsPath := filepath.Join(dir, "regions.geojson")
	if err := os.WriteFile(regionsPath, []byte(analysisRegions), 0o644); err != nil {
		t.Fatalf("write regions: %v", err)
	}
	areas := geo.NewStore(regionsPath, filepath.Join(dir, "custom_aoi"), nil, nil)
	source := dataset.NewSource(datasetPath, ',', "utf-8")
	pipe := pipeline.New(source, areas, nil, dedupe.NewLoader(nil), nil)
	return New(pipe, areas, nil), pipe
}

func sel(t *testing.T, pipe *pipeline.Pipeline, raw map[string]any) domain.Selection {
	t.Helper()
	msg := make(map[string]json.RawMessage, len(raw))
	for k, v := range raw {
		b, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		msg[k] = b
	}
	s, err := domain.NormalizeSelection(msg, pipe.Specs())
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	return s
}

func category(t *testing.T, r *Report, dim, name string) Category {
	t.Helper()
	for _, d := range r.Dimensions {
		if d.Name != dim {
			continue
		}
		for _, c := range d.Categories {
			if c.Name == name {
				return c
			}
		}
	}
	t.Fatalf("category %s/%s missing in %+v", dim, name, r.Dimensions)
	return Category{}
}

func TestRun_SummaryAlwaysPresent(t *testing.T) {
	a, pipe := newTestAnalyzer(t)

	r, err := a.Run(context.Background(), sel(t, pipe, nil), domain.Advanced{}, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if r.FilteredTotal != 4 || r.BaselineTotal != 4 {
		t.Errorf("totals = %d/%d, want 4/4", r.FilteredTotal, r.BaselineTotal)
	}
	if len(r.Dimensions) != 1 || r.Dimensions[0].Name != DimSummary {
		t.Fatalf("expected only the summary dimension, got %+v", r.Dimensions)
	}
	if c := category(t, r, DimSummary, "contactperson"); c.FilteredAbs != 2 {
		t.Errorf("contactperson = %d, want 2", c.FilteredAbs)
	}
	if c := category(t, r, DimSummary, "active"); c.FilteredAbs != 3 {
		t.Errorf("active = %d, want 3 (only truthy cells count)", c.FilteredAbs)
	}
}

func TestRun_FilteredVersusBaseline(t *testing.T) {
	a, pipe := newTestAnalyzer(t)

	r, err := a.Run(context.Background(),
		sel(t, pipe, map[string]any{"legalform": []string{"BV"}}),
		domain.Advanced{}, []string{DimLegalform})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if r.FilteredTotal != 2 || r.BaselineTotal != 4 {
		t.Fatalf("totals = %d/%d, want 2/4", r.FilteredTotal, r.BaselineTotal)
	}

	bv := category(t, r, DimLegalform, "BV")
	if bv.FilteredPct != 100 || bv.BaselinePct != 50 {
		t.Errorf("BV pct = %v/%v, want 100/50", bv.FilteredPct, bv.BaselinePct)
	}
	if bv.DiffPct != 50 {
		t.Errorf("BV diff = %v, want 50", bv.DiffPct)
	}
	// expectedAbs = baselinePct/100 * filteredTotal.
	if math.Abs(bv.ExpectedAbs-1.0) > 1e-9 {
		t.Errorf("BV expectedAbs = %v, want 1", bv.ExpectedAbs)
	}

	// Categories present only in the baseline still appear.
	nv := category(t, r, DimLegalform, "NV")
	if nv.FilteredAbs != 0 || nv.BaselinePct != 25 {
		t.Errorf("NV = %+v, want 0 filtered / 25%% baseline", nv)
	}
}

func TestRun_RegionAndIndustryDimensions(t *testing.T) {
	a, pipe := newTestAnalyzer(t)

	r, err := a.Run(context.Background(), sel(t, pipe, nil), domain.Advanced{},
		[]string{DimRegion, DimIndustry})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if c := category(t, r, DimRegion, "Noordvlakte"); c.FilteredAbs != 2 {
		t.Errorf("Noordvlakte = %d, want 2", c.FilteredAbs)
	}
	if c := category(t, r, DimRegion, "Zuidvlakte"); c.FilteredAbs != 1 {
		t.Errorf("Zuidvlakte = %d, want 1", c.FilteredAbs)
	}
	if c := category(t, r, DimRegion, "UNKNOWN"); c.FilteredAbs != 1 {
		t.Errorf("unresolved region = %d, want 1", c.FilteredAbs)
	}

	// A row with two codes counts once per code.
	if c := category(t, r, DimIndustry, "0161"); c.FilteredAbs != 2 {
		t.Errorf("0161 = %d, want 2", c.FilteredAbs)
	}
	if c := category(t, r, DimIndustry, "4711"); c.FilteredAbs != 2 {
		t.Errorf("4711 = %d, want 2", c.FilteredAbs)
	}
}

func TestRun_UnknownDimensionWarns(t *testing.T) {
	a, pipe := newTestAnalyzer(t)

	r, err := a.Run(context.Background(), sel(t, pipe, nil), domain.Advanced{},
		[]string{"favourite_colour"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(r.Warnings) != 1 {
		t.Errorf("expected one warning, got %v", r.Warnings)
	}
	if len(r.Dimensions) != 1 {
		t.Errorf("unknown dimension must not add output: %+v", r.Dimensions)
	}
}

func TestRun_ExpectedAbsConsistency(t *testing.T) {
	a, pipe := newTestAnalyzer(t)

	r, err := a.Run(context.Background(),
		sel(t, pipe, map[string]any{"activity": []string{"JA"}}),
		domain.Advanced{}, []string{DimLegalform})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	for _, d := range r.Dimensions {
		for _, c := range d.Categories {
			want := c.BaselinePct / 100 * float64(r.FilteredTotal)
			if math.Abs(c.ExpectedAbs-want) > 1e-9 {
				t.Errorf("%s/%s expectedAbs = %v, want %v", d.Name, c.Name, c.ExpectedAbs, want)
			}
		}
	}
}
