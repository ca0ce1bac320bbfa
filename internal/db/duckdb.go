package db

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/joeblew999/plat-landuse/internal/service"
)

var (
	mu       sync.Mutex
	instance *sql.DB
)

// Config holds database configuration.
type Config struct {
	// Path is the DuckDB database file. Empty opens an in-memory database.
	Path string
}

// Get returns the singleton DuckDB connection, opening it on first use
// or after Close.
func Get(cfg Config) (*sql.DB, error) {
	mu.Lock()
	defer mu.Unlock()

	if instance != nil {
		return instance, nil
	}
	conn, err := Open(cfg)
	if err != nil {
		return nil, err
	}
	instance = conn
	return instance, nil
}

// Open opens a new DuckDB connection.
func Open(cfg Config) (*sql.DB, error) {
	conn, err := sql.Open("duckdb", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("opening duckdb: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("opening duckdb: %w", err)
	}
	return conn, nil
}

// Close closes the singleton connection. The next Get opens a new one.
func Close() error {
	mu.Lock()
	defer mu.Unlock()

	if instance == nil {
		return nil
	}
	err := instance.Close()
	instance = nil
	return err
}

// Store keeps a queryable copy of the loaded map features.
type Store struct {
	db     *sql.DB
	layers *service.LayerService
}

// NewStore creates a feature store on db with an empty features table,
// so summaries work before the first map is indexed.
func NewStore(db *sql.DB, layers *service.LayerService) (*Store, error) {
	if _, err := db.Exec(featuresSchema); err != nil {
		return nil, fmt.Errorf("creating features table: %w", err)
	}
	return &Store{db: db, layers: layers}, nil
}

// DB returns the underlying connection.
func (s *Store) DB() *sql.DB {
	return s.db
}

const featuresColumns = `(
	layer    VARCHAR NOT NULL,
	category VARCHAR,
	class    VARCHAR,
	area_ha  DOUBLE
)`

const (
	featuresSchema = `CREATE TABLE IF NOT EXISTS features ` + featuresColumns
	featuresTable  = `CREATE OR REPLACE TABLE features ` + featuresColumns
)

// Index rebuilds the features table from m. It implements service.Indexer.
func (s *Store) Index(ctx context.Context, m *service.Map) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, featuresTable); err != nil {
		return fmt.Errorf("creating features table: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO features VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range s.layers.Records(m) {
		category := sql.NullString{String: r.Category, Valid: r.HasCategory}
		class := sql.NullString{String: r.Class, Valid: r.Class != ""}
		area := sql.NullFloat64{Float64: r.Area, Valid: r.HasArea}
		if _, err := stmt.ExecContext(ctx, r.Layer, category, class, area); err != nil {
			return fmt.Errorf("inserting %s feature: %w", r.Layer, err)
		}
	}
	return tx.Commit()
}

// CategorySummary aggregates the features of one category.
type CategorySummary struct {
	Category string  `json:"category" doc:"Style table category (Default for unknown values)" example:"Residential"`
	Features int     `json:"features" doc:"Number of features" example:"12"`
	AreaHA   float64 `json:"areaHa" doc:"Sum of source area values in hectares" example:"13.8456"`
}

// Summary returns per-category counts and areas for one layer, ordered
// by category. Areas are the sum of the precomputed source values.
func (s *Store) Summary(ctx context.Context, layer string) ([]CategorySummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT coalesce(class, ''), count(*), coalesce(sum(area_ha), 0)
		FROM features
		WHERE layer = ?
		GROUP BY class
		ORDER BY class`, layer)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []CategorySummary{}
	for rows.Next() {
		var cs CategorySummary
		if err := rows.Scan(&cs.Category, &cs.Features, &cs.AreaHA); err != nil {
			return nil, err
		}
		out = append(out, cs)
	}
	return out, rows.Err()
}

// Tables returns all table names.
func (s *Store) Tables(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SHOW TABLES")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tables := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

// QueryResult is the generic result of an ad-hoc query.
type QueryResult struct {
	Columns []string
	Rows    []map[string]any
}

// Query executes an ad-hoc SQL query.
func (s *Store) Query(ctx context.Context, query string) (*QueryResult, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	res := &QueryResult{Columns: columns, Rows: []map[string]any{}}
	for rows.Next() {
		values := make([]any, len(columns))
		valuePtrs := make([]any, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, err
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = values[i]
		}
		res.Rows = append(res.Rows, row)
	}
	return res, rows.Err()
}
