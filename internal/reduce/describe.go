package reduce

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/leapstack-labs/ledgerlens/internal/dataset"
)

// StatNames lists the summary rows in output order.
var StatNames = []string{"count", "unique", "top", "freq", "mean", "std", "min", "25%", "50%", "75%", "max"}

type columnStats map[string]string

// describe builds a per-column statistical summary with one row per statistic
// and one column per table column. Statistics that do not apply to a column
// are rendered as NaN.
func (r *Reducer) describe(ctx context.Context, t *dataset.Table) (string, error) {
	stats := make([]columnStats, len(t.Columns))
	for i, c := range t.Columns {
		var (
			s   columnStats
			err error
		)
		if IsNumericType(c.Type) {
			s, err = r.numericStats(ctx, t.Relation, c.Name)
		} else {
			s, err = r.categoricalStats(ctx, t.Relation, c.Name)
		}
		if err != nil {
			return "", fmt.Errorf("column %s: %w", c.Name, err)
		}
		stats[i] = s
	}

	tw := newTable(append([]string{""}, t.ColumnNames()...))
	for _, stat := range StatNames {
		row := make(table.Row, 0, len(stats)+1)
		row = append(row, stat)
		for _, s := range stats {
			v, ok := s[stat]
			if !ok {
				v = NullText
			}
			row = append(row, v)
		}
		tw.AppendRow(row)
	}
	return tw.Render(), nil
}

func (r *Reducer) numericStats(ctx context.Context, relation, column string) (columnStats, error) {
	col := dataset.QuoteIdent(column)
	//nolint:gosec // identifiers are quoted
	query := fmt.Sprintf(`SELECT
		count(%[1]s),
		avg(%[1]s)::DOUBLE,
		stddev_samp(%[1]s)::DOUBLE,
		min(%[1]s)::DOUBLE,
		quantile_cont(%[1]s, 0.25)::DOUBLE,
		quantile_cont(%[1]s, 0.5)::DOUBLE,
		quantile_cont(%[1]s, 0.75)::DOUBLE,
		max(%[1]s)::DOUBLE
	FROM %[2]s`, col, dataset.QuoteIdent(relation))

	var (
		count int64
		vals  [7]sql.NullFloat64
	)
	err := r.q.QueryRowContext(ctx, query).Scan(&count,
		&vals[0], &vals[1], &vals[2], &vals[3], &vals[4], &vals[5], &vals[6])
	if err != nil {
		return nil, fmt.Errorf("failed to summarize numeric column: %w", err)
	}

	s := columnStats{"count": strconv.FormatInt(count, 10)}
	for i, name := range []string{"mean", "std", "min", "25%", "50%", "75%", "max"} {
		s[name] = formatFloat(vals[i])
	}
	return s, nil
}

func (r *Reducer) categoricalStats(ctx context.Context, relation, column string) (columnStats, error) {
	col := dataset.QuoteIdent(column)
	rel := dataset.QuoteIdent(relation)

	//nolint:gosec // identifiers are quoted
	query := fmt.Sprintf(`SELECT
		count(%[1]s),
		count(DISTINCT %[1]s),
		min(CAST(%[1]s AS VARCHAR)),
		max(CAST(%[1]s AS VARCHAR))
	FROM %[2]s`, col, rel)

	var (
		count, unique int64
		lo, hi        sql.NullString
	)
	if err := r.q.QueryRowContext(ctx, query).Scan(&count, &unique, &lo, &hi); err != nil {
		return nil, fmt.Errorf("failed to summarize column: %w", err)
	}

	s := columnStats{
		"count":  strconv.FormatInt(count, 10),
		"unique": strconv.FormatInt(unique, 10),
		"min":    nullable(lo),
		"max":    nullable(hi),
	}

	//nolint:gosec // identifiers are quoted
	topQuery := fmt.Sprintf(`SELECT CAST(%[1]s AS VARCHAR) AS v, count(*) AS n
	FROM %[2]s
	WHERE %[1]s IS NOT NULL
	GROUP BY v
	ORDER BY n DESC, v
	LIMIT 1`, col, rel)

	var (
		top  sql.NullString
		freq int64
	)
	err := r.q.QueryRowContext(ctx, topQuery).Scan(&top, &freq)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// all values null
	case err != nil:
		return nil, fmt.Errorf("failed to find most frequent value: %w", err)
	default:
		s["top"] = nullable(top)
		s["freq"] = strconv.FormatInt(freq, 10)
	}
	return s, nil
}

// IsNumericType reports whether a DuckDB column type is numeric.
func IsNumericType(typ string) bool {
	t := strings.ToUpper(strings.TrimSpace(typ))
	if strings.HasPrefix(t, "DECIMAL") || strings.HasPrefix(t, "NUMERIC") {
		return true
	}
	switch t {
	case "TINYINT", "SMALLINT", "INTEGER", "BIGINT", "HUGEINT",
		"UTINYINT", "USMALLINT", "UINTEGER", "UBIGINT", "UHUGEINT",
		"FLOAT", "REAL", "DOUBLE":
		return true
	}
	return false
}

func formatFloat(v sql.NullFloat64) string {
	if !v.Valid || math.IsNaN(v.Float64) {
		return NullText
	}
	f := v.Float64
	if math.Abs(f) >= 1e15 {
		return strconv.FormatFloat(f, 'e', 6, 64)
	}
	s := strconv.FormatFloat(f, 'f', 6, 64)
	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")
	if s == "-0" {
		s = "0"
	}
	return s
}
