package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/shoptalk/shoptalk/internal/observability"
	"github.com/shoptalk/shoptalk/internal/query"
	"github.com/shoptalk/shoptalk/internal/storage"
)

// Engine executes read-only analytics queries against a single DuckDB
// database that holds the denormalized e-commerce dataset. The database is
// opened once and shared for the process lifetime; DuckDB serializes access
// internally, so Execute is safe for concurrent callers.
type Engine struct {
	db      *sql.DB
	workDir string
}

// Open opens the warehouse database at path. An empty path opens an
// in-memory database, which is only useful together with AttachDataset.
func Open(ctx context.Context, dbPath string) (*Engine, error) {
	db, err := sql.Open("duckdb", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open warehouse db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping warehouse db: %w", err)
	}
	return &Engine{db: db}, nil
}

func (e *Engine) Close() error {
	if e.workDir != "" {
		_ = os.RemoveAll(e.workDir)
	}
	if e.db == nil {
		return nil
	}
	return e.db.Close()
}

// AttachDataset pulls every parquet object under prefix from the object
// store and exposes each table directory as a view, so the warehouse can run
// against a published dataset without a local database file.
func (e *Engine) AttachDataset(ctx context.Context, store storage.ObjectStore, prefix string) error {
	if store == nil {
		return fmt.Errorf("object store is required")
	}
	if strings.TrimSpace(prefix) == "" {
		return fmt.Errorf("dataset prefix is required")
	}

	objects, err := store.List(ctx, prefix)
	if err != nil {
		return fmt.Errorf("list dataset objects: %w", err)
	}
	if len(objects) == 0 {
		return fmt.Errorf("no dataset files under prefix %q", prefix)
	}

	if e.workDir == "" {
		workDir, err := os.MkdirTemp("", "shoptalk-dataset-")
		if err != nil {
			return fmt.Errorf("create dataset work dir: %w", err)
		}
		e.workDir = workDir
	}

	groupedPaths := map[string][]string{}
	for index, object := range objects {
		if !strings.HasSuffix(object.Key, ".parquet") {
			continue
		}
		tableName := path.Base(path.Dir(object.Key))
		localPath := filepath.Join(e.workDir, fmt.Sprintf("%s_%d.parquet", sanitizeFileComponent(tableName), index))
		if err := e.downloadObject(ctx, store, object.Key, localPath); err != nil {
			return err
		}
		groupedPaths[tableName] = append(groupedPaths[tableName], localPath)
	}
	if len(groupedPaths) == 0 {
		return fmt.Errorf("no parquet files under prefix %q", prefix)
	}

	tableNames := make([]string, 0, len(groupedPaths))
	for tableName := range groupedPaths {
		tableNames = append(tableNames, tableName)
	}
	sort.Strings(tableNames)

	for _, tableName := range tableNames {
		viewSQL := fmt.Sprintf(`CREATE OR REPLACE VIEW %s AS SELECT * FROM read_parquet(%s)`, quoteIdent(tableName), quoteStringArray(groupedPaths[tableName]))
		if _, err := e.db.ExecContext(ctx, viewSQL); err != nil {
			return fmt.Errorf("create view for table %q: %w", tableName, err)
		}
	}
	return nil
}

func (e *Engine) downloadObject(ctx context.Context, store storage.ObjectStore, key, localPath string) error {
	reader, err := store.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("get dataset object %q: %w", key, err)
	}
	defer func() { _ = reader.Close() }()

	file, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("create local parquet file %q: %w", localPath, err)
	}
	if _, err := io.Copy(file, reader); err != nil {
		_ = file.Close()
		return fmt.Errorf("write local parquet file %q: %w", localPath, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("flush local parquet file %q: %w", localPath, err)
	}
	return nil
}

func (e *Engine) Execute(ctx context.Context, request query.Request) (query.Result, error) {
	sqlText := stripTrailingSemicolons(request.SQL)
	if sqlText == "" {
		return query.Result{}, fmt.Errorf("sql is required")
	}
	if request.RowLimit > 0 {
		sqlText = fmt.Sprintf("SELECT * FROM (%s) AS q LIMIT %d", sqlText, request.RowLimit)
	}

	start := time.Now()
	rows, err := e.db.QueryContext(ctx, sqlText)
	if err != nil {
		return query.Result{}, fmt.Errorf("execute query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return query.Result{}, fmt.Errorf("query columns: %w", err)
	}

	resultRows := make([][]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return query.Result{}, fmt.Errorf("scan row: %w", err)
		}
		resultRows = append(resultRows, normalizeValues(values))
	}
	if err := rows.Err(); err != nil {
		return query.Result{}, fmt.Errorf("iterate rows: %w", err)
	}

	duration := time.Since(start)
	observability.ObserveWarehouseQueryDuration(duration)

	return query.Result{
		Columns:  columns,
		Rows:     resultRows,
		Duration: duration,
	}, nil
}

func (e *Engine) ListTables(ctx context.Context) ([]string, error) {
	rows, err := e.db.QueryContext(ctx, `
SELECT table_name
FROM information_schema.tables
WHERE table_schema = 'main'
ORDER BY table_name`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate table rows: %w", err)
	}
	return tables, nil
}

func (e *Engine) ListColumns(ctx context.Context, tableName string) ([]string, error) {
	rows, err := e.db.QueryContext(ctx, `
SELECT column_name
FROM information_schema.columns
WHERE table_schema = 'main' AND table_name = ?
ORDER BY ordinal_position`, tableName)
	if err != nil {
		return nil, fmt.Errorf("list columns for %q: %w", tableName, err)
	}
	defer func() { _ = rows.Close() }()

	var columns []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan column name: %w", err)
		}
		columns = append(columns, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate column rows: %w", err)
	}
	return columns, nil
}

// Exec runs arbitrary DDL/DML against the warehouse. Intended for test and
// bootstrap setup, not for the conversation pipeline.
func (e *Engine) Exec(ctx context.Context, sqlText string, args ...any) error {
	if _, err := e.db.ExecContext(ctx, sqlText, args...); err != nil {
		return fmt.Errorf("exec: %w", err)
	}
	return nil
}

func normalizeValues(values []any) []any {
	normalized := make([]any, len(values))
	for i, value := range values {
		switch typed := value.(type) {
		case []byte:
			normalized[i] = string(typed)
		default:
			normalized[i] = typed
		}
	}
	return normalized
}

func quoteIdent(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

func quoteStringArray(values []string) string {
	quoted := make([]string, 0, len(values))
	for _, value := range values {
		quoted = append(quoted, `'`+strings.ReplaceAll(value, `'`, `''`)+`'`)
	}
	return "[" + strings.Join(quoted, ",") + "]"
}

func sanitizeFileComponent(value string) string {
	value = strings.ReplaceAll(value, "/", "_")
	value = strings.ReplaceAll(value, "..", "_")
	if value == "" {
		return "table"
	}
	return value
}

func stripTrailingSemicolons(sqlText string) string {
	trimmed := strings.TrimSpace(sqlText)
	for strings.HasSuffix(trimmed, ";") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
	}
	return trimmed
}
