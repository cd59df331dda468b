package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/compfilter/compfilter/internal/domain"
)

// Destination is one output target of a save request. Exactly one of Quota
// and Rest applies: a fixed row quota, or everything the fixed quotas leave
// over.
type Destination struct {
	Directory      string `json:"directory"`
	BaseFilename   string `json:"baseFilename"`
	MaxRowsPerFile int    `json:"maxRowsPerFile"` // 0 = no chunking
	Quota          int    `json:"quota"`
	Rest           bool   `json:"rest"`
}

// DestinationReport describes what one destination received.
type DestinationReport struct {
	Directory    string   `json:"directory"`
	BaseFilename string   `json:"baseFilename"`
	RowsWritten  int      `json:"rowsWritten"`
	FilesCreated int      `json:"filesCreated"`
	FilePaths    []string `json:"filePaths"`
}

// SaveReport is the aggregate result of a save request.
type SaveReport struct {
	TotalRows    int                 `json:"totalRows"`
	Destinations []DestinationReport `json:"destinations"`
}

// ValidateDestinations checks a destination list against the row total from
// the counting pass. At most one destination may take the rest and it must
// come after every fixed quota, or it would absorb the whole stream; without
// a rest destination the fixed quotas must cover the total, otherwise rows
// would silently vanish.
func ValidateDestinations(dests []Destination, total int) error {
	if len(dests) == 0 {
		return fmt.Errorf("%w: at least one destination is required", domain.ErrConfiguration)
	}
	restSeen := false
	fixedSum := 0
	for i, d := range dests {
		if strings.TrimSpace(d.Directory) == "" || strings.TrimSpace(d.BaseFilename) == "" {
			return fmt.Errorf("%w: destination %d needs a directory and a base filename", domain.ErrConfiguration, i+1)
		}
		if d.MaxRowsPerFile < 0 {
			return fmt.Errorf("%w: destination %d has a negative chunk size", domain.ErrConfiguration, i+1)
		}
		if d.Rest {
			if restSeen {
				return fmt.Errorf("%w: only one destination may take the rest", domain.ErrConfiguration)
			}
			if i != len(dests)-1 {
				return fmt.Errorf("%w: the rest destination must come after all fixed quotas", domain.ErrConfiguration)
			}
			restSeen = true
			continue
		}
		if d.Quota <= 0 {
			return fmt.Errorf("%w: destination %d needs a positive quota or rest", domain.ErrConfiguration, i+1)
		}
		fixedSum += d.Quota
	}
	if !restSeen && fixedSum < total {
		return fmt.Errorf("%w: quotas cover %d of %d rows and no destination takes the rest",
			domain.ErrConfiguration, fixedSum, total)
	}
	return nil
}

// Save distributes the pass over the destinations in order: each fixed
// destination receives its quota, the rest destination whatever remains.
// next yields matching rows until io.EOF; total must come from a preceding
// counting pass over the same selection.
func Save(total int, header []string, delimiter rune, next func() ([]string, error), dests []Destination, logger *zap.Logger) (*SaveReport, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := ValidateDestinations(dests, total); err != nil {
		return nil, err
	}

	report := &SaveReport{TotalRows: total}
	cur := 0
	w, err := newDestWriter(dests[cur], header, delimiter)
	if err != nil {
		return nil, err
	}

	flush := func() {
		report.Destinations = append(report.Destinations, w.finish())
		logger.Info("destination written",
			zap.String("directory", dests[cur].Directory),
			zap.Int("rows", w.report.RowsWritten),
			zap.Int("files", w.report.FilesCreated),
		)
	}

	for {
		row, err := next()
		if err == io.EOF {
			break
		}
		if err != nil {
			w.abort()
			return nil, err
		}
		// Advance past destinations whose quota is met. The rest destination
		// has no quota and absorbs everything that reaches it.
		for !dests[cur].Rest && w.report.RowsWritten >= dests[cur].Quota {
			if cur+1 >= len(dests) {
				w.abort()
				return nil, fmt.Errorf("%w: rows exceed the declared total", domain.ErrConfiguration)
			}
			flush()
			cur++
			if w, err = newDestWriter(dests[cur], header, delimiter); err != nil {
				return nil, err
			}
		}
		if err := w.write(row); err != nil {
			w.abort()
			return nil, err
		}
	}
	flush()
	cur++

	// Destinations the pass never reached still appear in the report, empty.
	for ; cur < len(dests); cur++ {
		report.Destinations = append(report.Destinations, DestinationReport{
			Directory:    dests[cur].Directory,
			BaseFilename: dests[cur].BaseFilename,
			FilePaths:    []string{},
		})
	}
	return report, nil
}

// destWriter writes one destination, rolling over to a numbered chunk file
// whenever the chunk size is reached. Every chunk is a complete CSV document
// with its own BOM and header, flushed and closed before the next opens.
type destWriter struct {
	dest      Destination
	header    []string
	delimiter rune

	file       *os.File
	cw         *csv.Writer
	rowsInFile int
	report     DestinationReport
}

func newDestWriter(dest Destination, header []string, delimiter rune) (*destWriter, error) {
	if err := os.MkdirAll(dest.Directory, 0o755); err != nil {
		return nil, fmt.Errorf("create destination dir: %w", err)
	}
	return &destWriter{
		dest:      dest,
		header:    header,
		delimiter: delimiter,
		report: DestinationReport{
			Directory:    dest.Directory,
			BaseFilename: dest.BaseFilename,
			FilePaths:    []string{},
		},
	}, nil
}

func (d *destWriter) write(row []string) error {
	if d.file != nil && d.dest.MaxRowsPerFile > 0 && d.rowsInFile >= d.dest.MaxRowsPerFile {
		if err := d.closeFile(); err != nil {
			return err
		}
	}
	if d.file == nil {
		if err := d.openChunk(); err != nil {
			return err
		}
	}
	if err := d.cw.Write(row); err != nil {
		return err
	}
	d.rowsInFile++
	d.report.RowsWritten++
	return nil
}

func (d *destWriter) openChunk() error {
	base := strings.TrimSuffix(d.dest.BaseFilename, filepath.Ext(d.dest.BaseFilename))
	name := base + ".csv"
	if d.dest.MaxRowsPerFile > 0 {
		name = fmt.Sprintf("%s_%d.csv", base, d.report.FilesCreated+1)
	}
	path := filepath.Join(d.dest.Directory, name)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := io.WriteString(f, utf8BOM); err != nil {
		f.Close()
		return err
	}
	cw := csv.NewWriter(f)
	cw.Comma = d.delimiter
	cw.UseCRLF = true
	if err := cw.Write(d.header); err != nil {
		f.Close()
		return err
	}

	d.file = f
	d.cw = cw
	d.rowsInFile = 0
	d.report.FilesCreated++
	d.report.FilePaths = append(d.report.FilePaths, path)
	return nil
}

func (d *destWriter) closeFile() error {
	if d.file == nil {
		return nil
	}
	d.cw.Flush()
	err := d.cw.Error()
	if cerr := d.file.Close(); err == nil {
		err = cerr
	}
	d.file = nil
	d.cw = nil
	return err
}

// finish closes the open chunk and returns the report.
func (d *destWriter) finish() DestinationReport {
	_ = d.closeFile()
	return d.report
}

// abort closes the open chunk without pretending it completed. Finished
// chunks stay on disk.
func (d *destWriter) abort() {
	_ = d.closeFile()
}
