package reduce

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/leapstack-labs/ledgerlens/internal/dataset"
)

// NullText is rendered for missing values.
const NullText = "NaN"

// plainStyle renders aligned columns without borders, the way a dataframe
// prints in a console.
var plainStyle = func() table.Style {
	s := table.StyleDefault
	s.Name = "Plain"
	s.Box.PaddingLeft = ""
	s.Box.PaddingRight = ""
	s.Box.MiddleVertical = "  "
	s.Format.Header = text.FormatDefault
	s.Options = table.Options{
		DrawBorder:      false,
		SeparateColumns: true,
		SeparateFooter:  false,
		SeparateHeader:  false,
		SeparateRows:    false,
	}
	return s
}()

// renderRows renders limit rows starting at offset (load order), prefixed by
// their 0-based position.
func (r *Reducer) renderRows(ctx context.Context, t *dataset.Table, offset, limit int64) (string, error) {
	if offset < 0 {
		offset = 0
	}

	selects := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		selects[i] = fmt.Sprintf("CAST(%s AS VARCHAR)", dataset.QuoteIdent(c.Name))
	}
	//nolint:gosec // identifiers are quoted
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY rowid LIMIT %d OFFSET %d",
		strings.Join(selects, ", "), dataset.QuoteIdent(t.Relation), limit, offset)

	rows, err := r.q.QueryContext(ctx, query)
	if err != nil {
		return "", fmt.Errorf("failed to query rows: %w", err)
	}
	defer func() { _ = rows.Close() }()

	tw := newTable(append([]string{""}, t.ColumnNames()...))

	values := make([]sql.NullString, len(t.Columns))
	ptrs := make([]any, len(values))
	for i := range values {
		ptrs[i] = &values[i]
	}

	pos := offset
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return "", fmt.Errorf("failed to scan row: %w", err)
		}
		row := make(table.Row, 0, len(values)+1)
		row = append(row, pos)
		for _, v := range values {
			row = append(row, nullable(v))
		}
		tw.AppendRow(row)
		pos++
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("error iterating rows: %w", err)
	}

	return tw.Render(), nil
}

func newTable(header []string) table.Writer {
	tw := table.NewWriter()
	tw.SetStyle(plainStyle)

	hr := make(table.Row, len(header))
	configs := make([]table.ColumnConfig, len(header))
	for i, h := range header {
		hr[i] = h
		configs[i] = table.ColumnConfig{
			Number:      i + 1,
			Align:       text.AlignRight,
			AlignHeader: text.AlignRight,
		}
	}
	tw.AppendHeader(hr)
	tw.SetColumnConfigs(configs)
	return tw
}

func nullable(v sql.NullString) string {
	if !v.Valid {
		return NullText
	}
	return v.String
}
