// Package pipeline composes the dataset source, the filter registry and the
// advanced request options into streaming passes. Every operation (preview,
// download, save, analysis) is one or more sequential passes; nothing is ever
// buffered beyond the row in flight.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"sort"

	"go.uber.org/zap"

	"github.com/compfilter/compfilter/internal/dataset"
	"github.com/compfilter/compfilter/internal/dedupe"
	"github.com/compfilter/compfilter/internal/domain"
	"github.com/compfilter/compfilter/internal/filter"
	"github.com/compfilter/compfilter/internal/metrics"
)

// Operation labels, used for metrics and the request log.
const (
	OpPreview  = "preview"
	OpDownload = "download"
	OpSave     = "save"
	OpAnalysis = "analysis"
)

// Pipeline owns the filter registry and produces filtered passes.
type Pipeline struct {
	source *dataset.Source
	reg    filter.Registry
	dupes  *dedupe.Loader
	logger *zap.Logger
}

// New builds the pipeline and its registry. areas and lists back the
// location and industry units; dupes backs the advanced duplicate exclusion.
func New(source *dataset.Source, areas filter.AreaIndex, lists filter.CodeLists, dupes *dedupe.Loader, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Pipeline{source: source, dupes: dupes, logger: logger}
	p.reg = filter.NewRegistry(&columnScanner{source: source}, areas, lists)
	return p
}

// Specs returns the registry metadata in registry order.
func (p *Pipeline) Specs() []domain.FilterSpec { return p.reg.Specs() }

// Delimiter returns the dataset field separator; exports preserve it.
func (p *Pipeline) Delimiter() rune { return p.source.Delimiter() }

// FilterInfo is one registry unit as served by the filters endpoint.
type FilterInfo struct {
	domain.FilterSpec
	Options []string `json:"options,omitempty"`
}

// Filters lists every unit with its selectable options, in registry order.
func (p *Pipeline) Filters(ctx context.Context) ([]FilterInfo, error) {
	out := make([]FilterInfo, 0, len(p.reg))
	for _, f := range p.reg {
		info := FilterInfo{FilterSpec: f.Spec()}
		if lister, ok := f.(filter.OptionLister); ok {
			opts, err := lister.Options(ctx)
			if err != nil {
				return nil, fmt.Errorf("options for %s: %w", info.Key, err)
			}
			info.Options = opts
		}
		out = append(out, info)
	}
	return out, nil
}

// Run opens a filtered pass. The caller must Close the result.
func (p *Pipeline) Run(ctx context.Context, sel domain.Selection, adv domain.Advanced, operation string) (*Result, error) {
	stream, err := p.source.Open(ctx)
	if err != nil {
		return nil, err
	}
	warnings := newWarningSet(p.logger, operation)

	pred, err := p.reg.Compile(stream.Header(), sel, warnings.add)
	if err != nil {
		stream.Close()
		return nil, err
	}

	if adv.ExcludeSeen {
		if adv.DuplicatesPath == "" {
			stream.Close()
			return nil, fmt.Errorf("%w: excludeSeen requires duplicatesPath", domain.ErrInvalidSelection)
		}
		seen, err := p.dupes.Load(adv.DuplicatesPath)
		if err != nil {
			stream.Close()
			return nil, err
		}
		if drop, active := filter.ExcludeSeen(stream.Header(), seen, warnings.add); active {
			keep := pred
			pred = func(row []string) bool { return keep(row) && drop(row) }
		}
	}

	return &Result{
		stream:    stream,
		pred:      pred,
		warnings:  warnings,
		operation: operation,
	}, nil
}

// Count runs a full pass and returns the matching row count.
func (p *Pipeline) Count(ctx context.Context, sel domain.Selection, adv domain.Advanced, operation string) (int, []string, error) {
	res, err := p.Run(ctx, sel, adv, operation)
	if err != nil {
		return 0, nil, err
	}
	defer res.Close()

	count := 0
	for {
		_, err := res.Next()
		if err == io.EOF {
			return count, res.Warnings(), nil
		}
		if err != nil {
			return 0, nil, err
		}
		count++
	}
}

// Result is one streaming filtered pass.
type Result struct {
	stream    *dataset.Stream
	pred      filter.Predicate
	warnings  *warningSet
	operation string
}

// Header returns the dataset header of this pass.
func (r *Result) Header() *domain.Header { return r.stream.Header() }

// Next returns the next matching row, or io.EOF when the pass is complete.
// The returned slice is only valid until the following call.
func (r *Result) Next() ([]string, error) {
	for {
		row, err := r.stream.Next()
		if err != nil {
			return nil, err
		}
		metrics.RowsScanned.WithLabelValues(r.operation).Inc()
		if r.pred(row) {
			metrics.RowsMatched.WithLabelValues(r.operation).Inc()
			return row, nil
		}
	}
}

// Warnings returns the data-format warnings collected so far, in first-seen
// order.
func (r *Result) Warnings() []string { return r.warnings.list() }

// Close releases the underlying pass.
func (r *Result) Close() error { return r.stream.Close() }

// warningSet deduplicates warnings per pass and mirrors them to the log.
type warningSet struct {
	logger    *zap.Logger
	operation string
	seen      map[string]struct{}
	msgs      []string
}

func newWarningSet(logger *zap.Logger, operation string) *warningSet {
	return &warningSet{
		logger:    logger,
		operation: operation,
		seen:      make(map[string]struct{}),
	}
}

func (w *warningSet) add(key, message string) {
	full := key + ": " + message
	if _, dup := w.seen[full]; dup {
		return
	}
	w.seen[full] = struct{}{}
	w.msgs = append(w.msgs, full)
	w.logger.Warn("data format warning",
		zap.String("operation", w.operation),
		zap.String("filter", key),
		zap.String("warning", message),
	)
}

func (w *warningSet) list() []string { return w.msgs }

// columnScanner enumerates the distinct values of a dataset column with a
// dedicated pass. It backs the multiselect option listings.
type columnScanner struct {
	source *dataset.Source
}

func (c *columnScanner) DistinctValues(ctx context.Context, candidates []string) ([]string, error) {
	stream, err := c.source.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	col, ok := stream.Header().Find(candidates...)
	if !ok {
		return nil, nil
	}

	seen := make(map[string]struct{})
	for {
		row, err := stream.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		v := domain.Field(row, col)
		if filter.EmptyCell(v) {
			v = filter.UnknownValue
		}
		seen[v] = struct{}{}
	}

	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Strings(out)
	return out, nil
}
