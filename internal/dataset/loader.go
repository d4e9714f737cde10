package dataset

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Loader reads data files into a Store.
type Loader struct {
	store  *Store
	logger *slog.Logger
	seq    int
}

// NewLoader creates a loader writing into store.
func NewLoader(store *Store, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Loader{store: store, logger: logger}
}

// Supported reports whether path has a loadable extension.
func Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".tsv", ".xlsx", ".xlsm", ".parquet", ".json", ".ndjson", ".jsonl", ".yaml", ".yml":
		return true
	}
	return false
}

// Load loads the mapped files from dir, in mapping order.
// Files that cannot be loaded are logged and recorded in Batch.Skipped; only
// context cancellation aborts the batch.
func (l *Loader) Load(ctx context.Context, dir string, mapping []FileMapping) (*Batch, error) {
	batch := &Batch{}
	seen := make(map[string]bool, len(mapping))

	for _, m := range mapping {
		if err := ctx.Err(); err != nil {
			return batch, err
		}

		name := strings.TrimSpace(m.Name)
		if name == "" {
			name = LogicalName(m.File)
		}
		path := m.File
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, m.File)
		}

		if seen[name] {
			l.skip(batch, &LoadError{Path: path, Name: name, Err: ErrDuplicateName})
			continue
		}

		item, err := l.LoadFile(ctx, path, name)
		if err != nil {
			if ctx.Err() != nil {
				return batch, ctx.Err()
			}
			l.skip(batch, &LoadError{Path: path, Name: name, Err: err})
			continue
		}

		seen[name] = true
		batch.Items = append(batch.Items, item)
	}

	l.logger.Info("dataset loaded", "items", len(batch.Items), "skipped", len(batch.Skipped))
	return batch, nil
}

// LoadDir loads every supported file in dir, in sorted file name order.
// Logical names are the file names without extension.
func (l *Loader) LoadDir(ctx context.Context, dir string) (*Batch, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read data directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !Supported(entry.Name()) {
			continue
		}
		files = append(files, entry.Name())
	}
	sort.Strings(files)

	mapping := make([]FileMapping, len(files))
	for i, f := range files {
		mapping[i] = FileMapping{File: f, Name: LogicalName(f)}
	}
	return l.Load(ctx, dir, mapping)
}

// LoadFile loads a single file under the given logical name.
func (l *Loader) LoadFile(ctx context.Context, path, name string) (Item, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Item{}, err
	}
	if info.IsDir() {
		return Item{}, fmt.Errorf("%s is a directory: %w", path, fs.ErrInvalid)
	}

	l.logger.Debug("loading file", "name", name, "path", path)

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv", ".tsv":
		return l.loadTable(ctx, path, name, l.store.LoadCSV)
	case ".parquet":
		return l.loadTable(ctx, path, name, l.store.LoadParquet)
	case ".ndjson", ".jsonl":
		return l.loadTable(ctx, path, name, l.store.LoadNDJSON)
	case ".xlsx", ".xlsm":
		return l.loadExcel(ctx, path, name)
	case ".json":
		return l.loadJSON(ctx, path, name)
	case ".yaml", ".yml":
		return l.loadYAML(ctx, path, name)
	default:
		return Item{}, fmt.Errorf("%q: %w", ext, ErrUnsupportedFormat)
	}
}

type stageFunc func(ctx context.Context, relation, path string) error

func (l *Loader) loadTable(ctx context.Context, path, name string, stage stageFunc) (Item, error) {
	relation := l.nextRelation(name)
	if err := stage(ctx, relation, path); err != nil {
		return Item{}, err
	}
	return l.itemFor(ctx, path, name, relation)
}

func (l *Loader) itemFor(ctx context.Context, source, name, relation string) (Item, error) {
	columns, rows, err := l.store.Describe(ctx, relation)
	if err != nil {
		return Item{}, err
	}
	l.logger.Debug("table loaded", "name", name, "rows", rows, "columns", len(columns))
	return Item{Name: name, Table: &Table{
		Name:     name,
		Source:   source,
		Relation: relation,
		Rows:     rows,
		Columns:  columns,
	}}, nil
}

func (l *Loader) nextRelation(name string) string {
	l.seq++
	return fmt.Sprintf("t%d_%s", l.seq, slug(name))
}

func (l *Loader) skip(batch *Batch, err *LoadError) {
	l.logger.Warn("skipping file", "name", err.Name, "path", err.Path, "error", err.Err)
	batch.Skipped = append(batch.Skipped, err)
}

// LogicalName derives a logical name from a file name.
func LogicalName(file string) string {
	base := filepath.Base(file)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func slug(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
