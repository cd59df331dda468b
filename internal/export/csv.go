// Package export writes filtered passes back out as CSV: a single streamed
// download, or a multi-destination allocation on local disk.
package export

import (
	"encoding/csv"
	"io"
)

const utf8BOM = "\uFEFF"

// WriteCSV streams rows to w as one complete CSV document: UTF-8 BOM, the
// original header first, CRLF line endings, minimal quoting, the original
// delimiter. next yields rows until io.EOF. Returns the data rows written.
func WriteCSV(w io.Writer, header []string, delimiter rune, next func() ([]string, error)) (int, error) {
	if _, err := io.WriteString(w, utf8BOM); err != nil {
		return 0, err
	}
	cw := csv.NewWriter(w)
	cw.Comma = delimiter
	cw.UseCRLF = true

	if err := cw.Write(header); err != nil {
		return 0, err
	}
	n := 0
	for {
		row, err := next()
		if err == io.EOF {
			break
		}
		if err != nil {
			cw.Flush()
			return n, err
		}
		if err := cw.Write(row); err != nil {
			return n, err
		}
		n++
	}
	cw.Flush()
	return n, cw.Error()
}
