package fetcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// Table is a header row plus string data rows read from a flat file.
type Table struct {
	Header []string
	Rows   [][]string
}

// Index returns the position of a header column, or -1.
func (t *Table) Index(name string) int {
	for i, h := range t.Header {
		if h == name {
			return i
		}
	}
	return -1
}

// Cell returns the trimmed cell at (row, col), or "" when the row is short.
func (t *Table) Cell(row, col int) string {
	if col < 0 || row < 0 || row >= len(t.Rows) || col >= len(t.Rows[row]) {
		return ""
	}
	return strings.TrimSpace(t.Rows[row][col])
}

// ReadTable reads a CSV or XLSX file into a Table, choosing the parser by
// extension. CSV input is UTF-8, optionally with a signature, or CP949.
func ReadTable(ctx context.Context, path string) (*Table, error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return ReadXLSX(path, "")
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "csv: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	rowCh, errCh := StreamCSV(ctx, f, CSVOptions{LazyQuotes: true})

	t := &Table{}
	for row := range rowCh {
		if t.Header == nil {
			t.Header = trimAll(row)
			continue
		}
		t.Rows = append(t.Rows, row)
	}
	for err := range errCh {
		if err != nil {
			return nil, eris.Wrapf(err, "csv: parse %s", path)
		}
	}
	return t, nil
}

func trimAll(cells []string) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = strings.TrimSpace(c)
	}
	return out
}
