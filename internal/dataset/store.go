package dataset

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	_ "github.com/marcboeker/go-duckdb" // duckdb driver
)

// Store owns the DuckDB database that backs every loaded table.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens a DuckDB database. Use "" or ":memory:" for an in-memory store.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	if path == "" {
		path = ":memory:"
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping duckdb: %w", err)
	}

	return NewStore(db, logger), nil
}

// NewStore wraps an existing connection.
func NewStore(db *sql.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{db: db, logger: logger}
}

// DB returns the underlying connection.
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	s.logger.Debug("closing database connection")
	return s.db.Close()
}

// Exec executes a SQL statement that doesn't return rows.
func (s *Store) Exec(ctx context.Context, sqlStr string) error {
	if s.db == nil {
		return fmt.Errorf("database connection not established")
	}
	if _, err := s.db.ExecContext(ctx, sqlStr); err != nil {
		return fmt.Errorf("failed to execute SQL: %w", err)
	}
	return nil
}

// LoadCSV loads a delimited text file into relation.
// DuckDB sniffs the delimiter and column types.
func (s *Store) LoadCSV(ctx context.Context, relation, filePath string) error {
	return s.createFrom(ctx, relation, filePath, "read_csv_auto(%s, header=true)")
}

// LoadParquet loads a parquet file into relation.
func (s *Store) LoadParquet(ctx context.Context, relation, filePath string) error {
	return s.createFrom(ctx, relation, filePath, "read_parquet(%s)")
}

// LoadJSONArray loads a JSON file holding an array of records into relation.
func (s *Store) LoadJSONArray(ctx context.Context, relation, filePath string) error {
	return s.createFrom(ctx, relation, filePath, "read_json_auto(%s, format='array')")
}

// LoadNDJSON loads a newline-delimited JSON file into relation.
func (s *Store) LoadNDJSON(ctx context.Context, relation, filePath string) error {
	return s.createFrom(ctx, relation, filePath, "read_json_auto(%s, format='newline_delimited')")
}

func (s *Store) createFrom(ctx context.Context, relation, filePath, reader string) error {
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return fmt.Errorf("failed to get absolute path: %w", err)
	}

	//nolint:gosec // relation is generated by the loader, path is quoted
	query := fmt.Sprintf(
		"CREATE OR REPLACE TABLE %s AS SELECT * FROM "+reader,
		QuoteIdent(relation),
		quoteLiteral(absPath),
	)
	s.logger.Debug("staging table", "relation", relation, "path", absPath)

	return s.Exec(ctx, query)
}

// Describe reads column metadata and the row count of relation.
func (s *Store) Describe(ctx context.Context, relation string) ([]Column, int64, error) {
	if s.db == nil {
		return nil, 0, fmt.Errorf("database connection not established")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT
			column_name,
			data_type,
			ordinal_position
		FROM information_schema.columns
		WHERE table_schema = 'main' AND table_name = ?
		ORDER BY ordinal_position
	`, relation)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query column metadata: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var columns []Column
	for rows.Next() {
		var col Column
		if err := rows.Scan(&col.Name, &col.Type, &col.Position); err != nil {
			return nil, 0, fmt.Errorf("failed to scan column metadata: %w", err)
		}
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating column metadata: %w", err)
	}
	if len(columns) == 0 {
		return nil, 0, fmt.Errorf("table %s not found", relation)
	}

	var rowCount int64
	//nolint:gosec // relation is generated by the loader
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+QuoteIdent(relation)).Scan(&rowCount); err != nil {
		return nil, 0, fmt.Errorf("failed to count rows: %w", err)
	}

	return columns, rowCount, nil
}

// QuoteIdent quotes a SQL identifier for DuckDB.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
