// Package compfilter is the in-process SDK for the filtering pipeline: the
// same services the HTTP API exposes, wired without a server. Tooling and
// batch jobs use it to run previews, exports and analyses directly against a
// dataset on disk.
package compfilter

import (
	"context"
	"encoding/json"
	"errors"
	"io"

	"github.com/compfilter/compfilter/internal/analysis"
	"github.com/compfilter/compfilter/internal/codes"
	"github.com/compfilter/compfilter/internal/dataset"
	"github.com/compfilter/compfilter/internal/dedupe"
	"github.com/compfilter/compfilter/internal/domain"
	"github.com/compfilter/compfilter/internal/export"
	"github.com/compfilter/compfilter/internal/geo"
	"github.com/compfilter/compfilter/internal/pipeline"
)

// Re-exported types so SDK callers never import internal packages.
type (
	// FilterInfo is one filter unit with its selectable options.
	FilterInfo = pipeline.FilterInfo
	// Advanced holds the advanced request options.
	Advanced = domain.Advanced
	// Destination is one save target.
	Destination = export.Destination
	// SaveReport is the aggregate save result.
	SaveReport = export.SaveReport
	// AnalysisReport is the filtered-versus-baseline comparison.
	AnalysisReport = analysis.Report
)

// Client is the compfilter SDK entry point.
type Client struct {
	pipe     *pipeline.Pipeline
	analyzer *analysis.Analyzer
	areas    *geo.Store
	codes    *codes.Store
}

// New creates a Client over a dataset file.
func New(opts ...Option) (*Client, error) {
	cfg := &clientConfig{delimiter: ',', encoding: "utf-8"}
	for _, o := range opts {
		o(cfg)
	}
	if cfg.datasetPath == "" {
		return nil, errors.New("compfilter: dataset path required (use WithDataset)")
	}

	areas := geo.NewStore(cfg.regionsFile, cfg.customDir, nil, cfg.logger)
	codeLists := codes.NewStore(cfg.codesDir, cfg.logger)
	source := dataset.NewSource(cfg.datasetPath, cfg.delimiter, cfg.encoding)
	pipe := pipeline.New(source, areas, codeLists, dedupe.NewLoader(cfg.logger), cfg.logger)

	return &Client{
		pipe:     pipe,
		analyzer: analysis.New(pipe, areas, cfg.logger),
		areas:    areas,
		codes:    codeLists,
	}, nil
}

// Filters lists the filter units with their options.
func (c *Client) Filters(ctx context.Context) ([]FilterInfo, error) {
	return c.pipe.Filters(ctx)
}

// Preview counts the rows a selection matches.
func (c *Client) Preview(ctx context.Context, selection map[string]json.RawMessage, adv Advanced) (int, []string, error) {
	sel, err := domain.NormalizeSelection(selection, c.pipe.Specs())
	if err != nil {
		return 0, nil, err
	}
	return c.pipe.Count(ctx, sel, adv, pipeline.OpPreview)
}

// Export streams the matching rows to w as a CSV document and returns the
// row count.
func (c *Client) Export(ctx context.Context, selection map[string]json.RawMessage, adv Advanced, w io.Writer) (int, error) {
	sel, err := domain.NormalizeSelection(selection, c.pipe.Specs())
	if err != nil {
		return 0, err
	}
	res, err := c.pipe.Run(ctx, sel, adv, pipeline.OpDownload)
	if err != nil {
		return 0, err
	}
	defer res.Close()
	return export.WriteCSV(w, res.Header().Columns(), c.pipe.Delimiter(), res.Next)
}

// Save distributes the matching rows over the destinations.
func (c *Client) Save(ctx context.Context, selection map[string]json.RawMessage, adv Advanced, dests []Destination) (*SaveReport, error) {
	sel, err := domain.NormalizeSelection(selection, c.pipe.Specs())
	if err != nil {
		return nil, err
	}
	total, _, err := c.pipe.Count(ctx, sel, adv, pipeline.OpSave)
	if err != nil {
		return nil, err
	}
	if err := export.ValidateDestinations(dests, total); err != nil {
		return nil, err
	}
	res, err := c.pipe.Run(ctx, sel, adv, pipeline.OpSave)
	if err != nil {
		return nil, err
	}
	defer res.Close()
	return export.Save(total, res.Header().Columns(), c.pipe.Delimiter(), res.Next, dests, nil)
}

// Analyze compares the filtered subset against the baseline.
func (c *Client) Analyze(ctx context.Context, selection map[string]json.RawMessage, adv Advanced, dimensions []string) (*AnalysisReport, error) {
	sel, err := domain.NormalizeSelection(selection, c.pipe.Specs())
	if err != nil {
		return nil, err
	}
	return c.analyzer.Run(ctx, sel, adv, dimensions)
}

// UploadArea stores a GeoJSON document and returns its label.
func (c *Client) UploadArea(filename string, data []byte) (string, error) {
	return c.areas.SaveCustom(filename, data)
}

// DeleteArea removes an uploaded area by label.
func (c *Client) DeleteArea(label string) error {
	return c.areas.DeleteCustom(label)
}

// Areas lists all known area labels.
func (c *Client) Areas() ([]string, error) {
	return c.areas.Labels()
}

// UploadCodes stores a code list into a bucket and returns the stored stem.
func (c *Client) UploadCodes(bucket, filename string, r io.Reader) (string, error) {
	return c.codes.Save(bucket, filename, r)
}
