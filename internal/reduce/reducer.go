package reduce

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/ledgerlens/internal/dataset"
)

// Querier is the subset of *sql.DB the reducer needs.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Excerpt is the reduced text form of one batch item.
type Excerpt struct {
	Name     string
	Strategy Strategy
	Rows     int64
	Cols     int
	Window   int
	Text     string
	Errors   []error
}

// Shape formats the source shape as "(rows, cols)".
func (e Excerpt) Shape() string {
	return fmt.Sprintf("(%d, %d)", e.Rows, e.Cols)
}

// Degraded reports whether any section of the excerpt could not be produced.
func (e Excerpt) Degraded() bool { return len(e.Errors) > 0 }

// ReductionError reports a section of an excerpt that could not be produced.
type ReductionError struct {
	Table   string
	Section string
	Err     error
}

func (e *ReductionError) Error() string {
	return fmt.Sprintf("reduce %s (%s): %v", e.Table, e.Section, e.Err)
}

func (e *ReductionError) Unwrap() error { return e.Err }

// EmptyMarker is the text emitted for tables with zero rows.
const EmptyMarker = "(vazio)"

// Reducer renders batch items into excerpts.
type Reducer struct {
	q      Querier
	policy Policy
	logger *slog.Logger
}

// New creates a reducer reading table data through q.
func New(q Querier, policy Policy, logger *slog.Logger) *Reducer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Reducer{q: q, policy: policy, logger: logger}
}

// ReduceAll reduces every item, preserving order.
func (r *Reducer) ReduceAll(ctx context.Context, items []dataset.Item) []Excerpt {
	out := make([]Excerpt, 0, len(items))
	for _, it := range items {
		out = append(out, r.Reduce(ctx, it))
	}
	return out
}

// Reduce renders a single item. Failures degrade the affected section and are
// recorded in Excerpt.Errors; Reduce itself never fails.
func (r *Reducer) Reduce(ctx context.Context, item dataset.Item) Excerpt {
	if !item.IsTable() {
		var value any
		if item.Raw != nil {
			value = item.Raw.Value
		}
		r.logger.Info("including raw content as text", "name", item.Name)
		return Excerpt{Name: item.Name, Strategy: StrategyRaw, Text: dataset.RawText(value)}
	}

	t := item.Table
	rows, cols := t.Shape()
	ex := Excerpt{Name: item.Name, Rows: rows, Cols: cols}
	ex.Strategy, ex.Window = r.policy.Plan(rows)

	switch ex.Strategy {
	case StrategyEmpty:
		r.logger.Info("table is empty", "name", item.Name)
		ex.Text = emptyText(t)
	case StrategyFull:
		r.logger.Info("including full table", "name", item.Name, "rows", rows)
		ex.Text = r.fullText(ctx, t, &ex)
	default:
		r.logger.Info("including head, tail and summary", "name", item.Name, "rows", rows, "window", ex.Window)
		ex.Text = r.headTailText(ctx, t, &ex)
	}
	return ex
}

func emptyText(t *dataset.Table) string {
	if len(t.Columns) == 0 {
		return EmptyMarker
	}
	return EmptyMarker + "\nColunas: " + strings.Join(t.ColumnNames(), ", ")
}

func (r *Reducer) fullText(ctx context.Context, t *dataset.Table, ex *Excerpt) string {
	text, err := r.renderRows(ctx, t, 0, t.Rows)
	if err != nil {
		r.fail(ex, "rows", err)
		return fmt.Sprintf("--- DADOS DE %s INDISPONÍVEIS ---", t.Name)
	}
	return text
}

func (r *Reducer) headTailText(ctx context.Context, t *dataset.Table, ex *Excerpt) string {
	name := t.Name
	n := int64(ex.Window)
	var b strings.Builder

	head, err := r.renderRows(ctx, t, 0, n)
	if err != nil {
		r.fail(ex, "head", err)
		head = "(linhas indisponíveis)"
	}
	fmt.Fprintf(&b, "--- INÍCIO DAS PRIMEIRAS %d LINHAS DE %s ---\n", n, name)
	b.WriteString(head)
	fmt.Fprintf(&b, "\n--- FIM DAS PRIMEIRAS %d LINHAS DE %s ---\n\n", n, name)

	tail, err := r.renderRows(ctx, t, t.Rows-n, n)
	if err != nil {
		r.fail(ex, "tail", err)
		tail = "(linhas indisponíveis)"
	}
	fmt.Fprintf(&b, "--- INÍCIO DAS ÚLTIMAS %d LINHAS DE %s ---\n", n, name)
	b.WriteString(tail)
	fmt.Fprintf(&b, "\n--- FIM DAS ÚLTIMAS %d LINHAS DE %s ---\n\n", n, name)

	summary, err := r.describe(ctx, t)
	if err != nil {
		r.fail(ex, "describe", err)
		fmt.Fprintf(&b, "--- RESUMO ESTATÍSTICO (DESCRIBE) DE %s INDISPONÍVEL ---", name)
		return b.String()
	}
	fmt.Fprintf(&b, "--- RESUMO ESTATÍSTICO (DESCRIBE) DE %s ---\n", name)
	b.WriteString(summary)
	fmt.Fprintf(&b, "\n--- FIM DO RESUMO ESTATÍSTICO DE %s ---", name)
	return b.String()
}

func (r *Reducer) fail(ex *Excerpt, section string, err error) {
	rerr := &ReductionError{Table: ex.Name, Section: section, Err: err}
	r.logger.Warn("reduction section unavailable", "name", ex.Name, "section", section, "error", err)
	ex.Errors = append(ex.Errors, rerr)
}
