// Package dataset loads tabular accounting data into an in-memory DuckDB
// store and exposes it as an ordered batch of named items.
package dataset

import (
	"errors"
	"fmt"
)

// Column describes one column of a loaded table.
type Column struct {
	Name     string
	Type     string
	Position int
}

// Table is a loaded tabular dataset backed by a DuckDB relation.
// Tables are read-only once loaded and live as long as the owning Store.
type Table struct {
	Name     string
	Source   string
	Relation string
	Rows     int64
	Columns  []Column
}

// Shape returns (rows, columns).
func (t *Table) Shape() (int64, int) {
	return t.Rows, len(t.Columns)
}

// ColumnNames returns the column names in ordinal order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Raw is a loaded object that is not a table, e.g. a JSON document that is
// not a list of records.
type Raw struct {
	Name   string
	Source string
	Value  any
}

// Item is one named entry of a batch. Exactly one of Table or Raw is set.
type Item struct {
	Name  string
	Table *Table
	Raw   *Raw
}

// IsTable reports whether the item holds a table.
func (i Item) IsTable() bool { return i.Table != nil }

// Shape returns the item shape; raw items report (0, 0).
func (i Item) Shape() (int64, int) {
	if i.Table == nil {
		return 0, 0
	}
	return i.Table.Shape()
}

// Batch is an ordered collection of loaded items. Files that failed to load
// are recorded in Skipped and do not appear in Items.
type Batch struct {
	Items   []Item
	Skipped []*LoadError
}

// Names returns the logical names of the loaded items, in order.
func (b *Batch) Names() []string {
	names := make([]string, len(b.Items))
	for i, it := range b.Items {
		names[i] = it.Name
	}
	return names
}

// Len returns the number of loaded items.
func (b *Batch) Len() int { return len(b.Items) }

// FileMapping maps a file inside the data directory to a logical name.
type FileMapping struct {
	File string `koanf:"file" yaml:"file"`
	Name string `koanf:"name" yaml:"name"`
}

// ErrUnsupportedFormat is wrapped by LoadError for unknown file extensions.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// ErrDuplicateName is wrapped by LoadError when a logical name repeats.
var ErrDuplicateName = errors.New("duplicate logical name")

// LoadError describes a file that could not be loaded.
type LoadError struct {
	Path string
	Name string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s (%s): %v", e.Name, e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }
