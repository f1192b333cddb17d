// Package db mirrors the scene into DuckDB for aggregate stats and ad-hoc
// SQL over buildings and trees.
package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/marcboeker/go-duckdb"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-trees/internal/scene"
)

// ErrEmptyQuery is returned for a blank SQL string.
var ErrEmptyQuery = errors.New("empty query")

// Config holds database configuration. An empty DataDir keeps the database
// in memory.
type Config struct {
	DataDir string
	DBName  string
}

const schema = `CREATE TABLE IF NOT EXISTS features (
	seq           INTEGER,
	kind          VARCHAR,
	tree_id       VARCHAR,
	building_id   VARCHAR,
	geometry_type VARCHAR,
	height        DOUBLE,
	base          DOUBLE,
	properties    VARCHAR
)`

// Catalog is a DuckDB copy of the current scene.
type Catalog struct {
	mu sync.Mutex
	db *sql.DB
}

// Open creates or opens the catalog database.
func Open(cfg Config) (*Catalog, error) {
	dsn := ""
	if cfg.DataDir != "" {
		duckdbDir := filepath.Join(cfg.DataDir, "duckdb")
		if err := os.MkdirAll(duckdbDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create duckdb directory: %w", err)
		}
		name := cfg.DBName
		if name == "" {
			name = "trees"
		}
		dsn = filepath.Join(duckdbDir, name+".duckdb")
	}

	conn, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Catalog{db: conn}, nil
}

// Close closes the database connection.
func (c *Catalog) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Sync replaces the features table with the contents of a GeoJSON
// FeatureCollection.
func (c *Catalog) Sync(ctx context.Context, data []byte) error {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return fmt.Errorf("%w: %v", scene.ErrInvalidGeoJSON, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM features"); err != nil {
		return fmt.Errorf("clear features: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO features
		(seq, kind, tree_id, building_id, geometry_type, height, base, properties)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, f := range fc.Features {
		r := rowOf(f)
		if _, err := stmt.ExecContext(ctx, i, r.kind, r.treeID, r.buildingID, r.geomType, r.height, r.base, r.props); err != nil {
			return fmt.Errorf("insert feature %d: %w", i, err)
		}
	}
	return tx.Commit()
}

type row struct {
	kind       string
	treeID     sql.NullString
	buildingID sql.NullString
	geomType   string
	height     sql.NullFloat64
	base       sql.NullFloat64
	props      string
}

func rowOf(f *geojson.Feature) row {
	r := row{kind: string(scene.Kind(f)), props: "{}"}
	if f.Geometry != nil {
		r.geomType = f.Geometry.GeoJSONType()
	}
	if r.kind == string(scene.Buildings) {
		if v, ok := f.Properties[scene.PropBuildingID]; ok {
			r.buildingID = sql.NullString{String: scene.FormatValue(v), Valid: true}
		}
	} else if id, ok := f.Properties[scene.PropTreeID].(string); ok {
		r.treeID = sql.NullString{String: id, Valid: true}
	}
	if h, ok := scene.Number(f.Properties[scene.PropHeight]); ok {
		r.height = sql.NullFloat64{Float64: h, Valid: true}
	}
	if b, ok := scene.Number(f.Properties[scene.PropBase]); ok {
		r.base = sql.NullFloat64{Float64: b, Valid: true}
	}
	if b, err := json.Marshal(f.Properties); err == nil && len(f.Properties) > 0 {
		r.props = string(b)
	}
	return r
}

// Stats aggregates the synced scene.
type Stats struct {
	Buildings      int     `json:"buildings" doc:"Number of buildings"`
	Trees          int     `json:"trees" doc:"Number of trees"`
	MeanTreeHeight float64 `json:"meanTreeHeight" doc:"Mean total tree height in metres"`
	MaxTreeHeight  float64 `json:"maxTreeHeight" doc:"Tallest tree in metres"`
	MeanBuilding   float64 `json:"meanBuildingHeight" doc:"Mean building height in metres, where known"`
}

// Stats computes counts and heights over the synced scene. A tree's total
// height is its canopy base plus canopy height.
func (c *Catalog) Stats(ctx context.Context) (Stats, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var s Stats
	err := c.db.QueryRowContext(ctx, `SELECT
		count(*) FILTER (WHERE kind = 'buildings'),
		count(*) FILTER (WHERE kind = 'canopies'),
		coalesce(avg(coalesce(base, 0) + height) FILTER (WHERE kind = 'canopies'), 0),
		coalesce(max(coalesce(base, 0) + height) FILTER (WHERE kind = 'canopies'), 0),
		coalesce(avg(height) FILTER (WHERE kind = 'buildings'), 0)
		FROM features`).Scan(&s.Buildings, &s.Trees, &s.MeanTreeHeight, &s.MaxTreeHeight, &s.MeanBuilding)
	if err != nil {
		return Stats{}, fmt.Errorf("stats: %w", err)
	}
	return s, nil
}

// Result is a generic query result.
type Result struct {
	Columns []string         `json:"columns" doc:"Column names"`
	Rows    []map[string]any `json:"rows" doc:"Query results"`
	Count   int              `json:"count" doc:"Number of rows returned"`
}

// Query executes a SQL query against the catalog.
func (c *Catalog) Query(ctx context.Context, query string, args ...any) (Result, error) {
	if query == "" {
		return Result{}, ErrEmptyQuery
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return Result{}, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return Result{}, fmt.Errorf("columns: %w", err)
	}

	results := []map[string]any{}
	for rows.Next() {
		values := make([]any, len(columns))
		valuePtrs := make([]any, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return Result{}, fmt.Errorf("scan: %w", err)
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = values[i]
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return Result{}, err
	}

	return Result{Columns: columns, Rows: results, Count: len(results)}, nil
}

// Tables lists the catalog's tables.
func (c *Catalog) Tables(ctx context.Context) ([]string, error) {
	res, err := c.Query(ctx, "SHOW TABLES")
	if err != nil {
		return nil, err
	}
	tables := make([]string, 0, res.Count)
	for _, r := range res.Rows {
		if name, ok := r["name"].(string); ok {
			tables = append(tables, name)
		}
	}
	return tables, nil
}
