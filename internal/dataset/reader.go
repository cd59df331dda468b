// Package dataset provides the single-pass streaming row source over the
// delimited record file. Rows are produced in file order and never buffered
// beyond the record currently in flight.
package dataset

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/encoding/charmap"

	"github.com/compfilter/compfilter/internal/domain"
)

const utf8BOM = "\uFEFF"

// Source describes the dataset file. One Source serves many concurrent
// passes; each Open returns an independent Stream.
type Source struct {
	path      string
	delimiter rune
	encoding  string
}

// NewSource creates a dataset source. delimiter is the field separator;
// encoding is "utf-8" or "latin-1".
func NewSource(path string, delimiter rune, encoding string) *Source {
	return &Source{path: path, delimiter: delimiter, encoding: encoding}
}

// Path returns the dataset file path.
func (s *Source) Path() string { return s.path }

// Delimiter returns the field separator.
func (s *Source) Delimiter() rune { return s.delimiter }

// Open starts a new sequential pass. The header row is consumed immediately;
// the caller must Close the stream when done.
func (s *Source) Open(ctx context.Context) (*Stream, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}

	var r io.Reader = f
	switch strings.ToLower(s.encoding) {
	case "", "utf-8", "utf8":
		// no transform
	case "latin-1", "latin1", "iso-8859-1":
		r = charmap.ISO8859_1.NewDecoder().Reader(f)
	default:
		f.Close()
		return nil, fmt.Errorf("unsupported dataset encoding %q", s.encoding)
	}

	cr := csv.NewReader(r)
	cr.Comma = s.delimiter
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	cols, err := cr.Read()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("read dataset header: %w", err)
	}
	header := domain.NewHeader(stripHeaderBOM(append([]string(nil), cols...)))

	return &Stream{ctx: ctx, f: f, r: cr, header: header}, nil
}

// Stream is one sequential pass over the dataset.
type Stream struct {
	ctx    context.Context
	f      *os.File
	r      *csv.Reader
	header *domain.Header
	line   int
}

// Header returns the dataset header for this pass.
func (st *Stream) Header() *domain.Header { return st.header }

// Next returns the next row, or io.EOF when the pass is complete. The
// returned slice is only valid until the following Next call. Rows with a
// deviating field count are returned as-is; filters tolerate short rows.
func (st *Stream) Next() ([]string, error) {
	if err := st.ctx.Err(); err != nil {
		return nil, err
	}
	row, err := st.r.Read()
	if err == io.EOF {
		return nil, io.EOF
	}
	st.line++
	if err != nil {
		return nil, fmt.Errorf("dataset row %d: %w", st.line, err)
	}
	return row, nil
}

// Line returns the number of data rows read so far.
func (st *Stream) Line() int { return st.line }

// Close releases the underlying file.
func (st *Stream) Close() error {
	return st.f.Close()
}

// stripHeaderBOM removes a UTF-8 BOM from the first header cell if present.
func stripHeaderBOM(cols []string) []string {
	if len(cols) > 0 {
		cols[0] = strings.TrimPrefix(cols[0], utf8BOM)
	}
	return cols
}
