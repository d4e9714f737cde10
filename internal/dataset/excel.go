package dataset

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/xuri/excelize/v2"
)

// loadExcel reads the first sheet of a workbook and stages it into DuckDB
// through a temporary CSV so column types are sniffed the same way as for
// plain CSV files.
func (l *Loader) loadExcel(ctx context.Context, path, name string) (Item, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return Item{}, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return emptyTable(path, name, nil), nil
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return Item{}, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return emptyTable(path, name, nil), nil
	}

	header := headerNames(rows[0])
	body := rows[1:]
	l.logger.Debug("read workbook", "sheet", sheets[0], "rows", len(body), "columns", len(header))

	if len(body) == 0 {
		return emptyTable(path, name, header), nil
	}

	tmp, truncated, err := writeStagingCSV(header, body)
	if err != nil {
		return Item{}, err
	}
	defer func() { _ = os.Remove(tmp) }()
	if truncated > 0 {
		l.logger.Warn("workbook rows wider than header truncated",
			"path", path, "sheet", sheets[0], "rows", truncated, "columns", len(header))
	}

	relation := l.nextRelation(name)
	if err := l.store.LoadCSV(ctx, relation, tmp); err != nil {
		return Item{}, err
	}
	return l.itemFor(ctx, path, name, relation)
}

// writeStagingCSV writes header and body to a temporary CSV file and returns
// its path with the number of rows cut to the header width. The file is
// removed on every failure.
func writeStagingCSV(header []string, body [][]string) (string, int, error) {
	tmp, err := os.CreateTemp("", "ledgerlens-*.csv")
	if err != nil {
		return "", 0, fmt.Errorf("failed to create staging file: %w", err)
	}

	truncated, err := writeCSVRows(tmp, header, body)
	if err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", 0, err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", 0, fmt.Errorf("failed to close staging file: %w", err)
	}
	return tmp.Name(), truncated, nil
}

func writeCSVRows(out io.Writer, header []string, body [][]string) (int, error) {
	w := csv.NewWriter(out)
	if err := w.Write(header); err != nil {
		return 0, fmt.Errorf("failed to write staging header: %w", err)
	}
	truncated := 0
	for _, row := range body {
		padded, cut := padRow(row, len(header))
		if cut {
			truncated++
		}
		if err := w.Write(padded); err != nil {
			return 0, fmt.Errorf("failed to write staging row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return 0, fmt.Errorf("failed to flush staging file: %w", err)
	}
	return truncated, nil
}

// headerNames fills blank and duplicate headers the way spreadsheet users
// expect: "Unnamed: <i>" for blanks, ".<n>" suffixes for repeats.
func headerNames(raw []string) []string {
	out := make([]string, len(raw))
	seen := make(map[string]int, len(raw))
	for i, h := range raw {
		h = strings.TrimSpace(h)
		if h == "" {
			h = fmt.Sprintf("Unnamed: %d", i)
		}
		if n, dup := seen[h]; dup {
			seen[h] = n + 1
			h = fmt.Sprintf("%s.%d", h, n+1)
		} else {
			seen[h] = 0
		}
		out[i] = h
	}
	return out
}

// padRow fits row to width cells. It reports true when non-empty cells past
// width were dropped.
func padRow(row []string, width int) ([]string, bool) {
	if len(row) >= width {
		cut := false
		for _, cell := range row[width:] {
			if strings.TrimSpace(cell) != "" {
				cut = true
				break
			}
		}
		return row[:width], cut
	}
	padded := make([]string, width)
	copy(padded, row)
	return padded, false
}

func emptyTable(path, name string, header []string) Item {
	cols := make([]Column, len(header))
	for i, h := range header {
		cols[i] = Column{Name: h, Type: "VARCHAR", Position: i + 1}
	}
	return Item{Name: name, Table: &Table{Name: name, Source: path, Columns: cols}}
}
