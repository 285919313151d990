// Package store persists scan output to a SQLite index so queries and the
// HTTP API do not require rescanning the classpath. Only raw graph facts are
// stored; transitive closures are recomputed when the graph is reloaded.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/classlens/classlens/internal/classfile"
	"github.com/classlens/classlens/internal/graph"
)

// Edge kinds persisted in the edges table.
const (
	EdgeSuperclass = "superclass"
	EdgeInterface  = "interface"
	EdgeAnnotation = "annotation"
)

// Store handles persistence of scan output to SQLite.
type Store struct {
	db      *sql.DB
	dbPath  string
	baseDir string
}

// Open creates or opens a classlens index database, stored at
// .classlens/index.db relative to the given project directory.
func Open(projectDir string) (*Store, error) {
	indexDir := filepath.Join(projectDir, ".classlens")
	if err := os.MkdirAll(indexDir, 0755); err != nil {
		return nil, fmt.Errorf("creating .classlens directory: %w", err)
	}

	dbPath := filepath.Join(indexDir, "index.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -64000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma: %w", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Store{
		db:      db,
		dbPath:  dbPath,
		baseDir: projectDir,
	}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DBPath returns the path to the database file.
func (s *Store) DBPath() string {
	return s.dbPath
}

// Clear removes all data from the database (for a fresh scan).
func (s *Store) Clear() error {
	for _, table := range []string{"edges", "constants", "types", "metadata"} {
		if _, err := s.db.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("clearing table %s: %w", table, err)
		}
	}
	return nil
}

// SaveScan replaces the persisted index with the given graph and constant
// matches, in a single transaction so readers never see a half-written scan.
func (s *Store) SaveScan(g *graph.Graph, constants []classfile.FieldConstant, elements []string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"edges", "constants", "types", "metadata"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("clearing table %s: %w", table, err)
		}
	}

	for _, name := range g.Names() {
		n := g.Node(name)
		resolved := 0
		if n.Resolved {
			resolved = 1
		}
		if _, err := tx.Exec(`
			INSERT INTO types (name, kind, resolved, superclass)
			VALUES (?, ?, ?, ?)
		`, n.Name, n.Kind.String(), resolved, n.Superclass); err != nil {
			return fmt.Errorf("inserting type %s: %w", n.Name, err)
		}
		if !n.Resolved {
			continue
		}
		if n.Superclass != "" {
			if err := insertEdge(tx, n.Name, n.Superclass, EdgeSuperclass); err != nil {
				return err
			}
		}
		for _, iname := range n.Interfaces {
			if err := insertEdge(tx, n.Name, iname, EdgeInterface); err != nil {
				return err
			}
		}
		for _, aname := range n.Annotations {
			if err := insertEdge(tx, n.Name, aname, EdgeAnnotation); err != nil {
				return err
			}
		}
	}

	for _, c := range constants {
		if _, err := tx.Exec(`
			INSERT OR REPLACE INTO constants (class, field, type, value)
			VALUES (?, ?, ?, ?)
		`, c.Class, c.Field, string(c.Kind), formatConstant(c)); err != nil {
			return fmt.Errorf("inserting constant %s: %w", c.QualifiedField(), err)
		}
	}

	meta := map[string]string{
		"scanned_at": time.Now().Format(time.RFC3339),
		"classpath":  strings.Join(elements, string(os.PathListSeparator)),
	}
	for key, value := range meta {
		if _, err := tx.Exec(`
			INSERT INTO metadata (key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value
		`, key, value); err != nil {
			return fmt.Errorf("storing metadata: %w", err)
		}
	}

	return tx.Commit()
}

func insertEdge(tx *sql.Tx, sub, super, kind string) error {
	if _, err := tx.Exec(`
		INSERT OR IGNORE INTO edges (sub, super, kind) VALUES (?, ?, ?)
	`, sub, super, kind); err != nil {
		return fmt.Errorf("inserting edge %s -> %s: %w", sub, super, err)
	}
	return nil
}

// LoadGraph rebuilds the relationship graph and constant matches from the
// persisted facts. Placeholder nodes are recreated implicitly when resolved
// rows cite them as supertypes.
func (s *Store) LoadGraph() (*graph.Graph, []classfile.FieldConstant, error) {
	rows, err := s.db.Query(`
		SELECT name, kind, superclass FROM types WHERE resolved = 1 ORDER BY name
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("querying types: %w", err)
	}
	defer rows.Close()

	records := make(map[string]*classfile.ClassRecord)
	var order []string
	for rows.Next() {
		var name, kind string
		var superclass sql.NullString
		if err := rows.Scan(&name, &kind, &superclass); err != nil {
			return nil, nil, fmt.Errorf("scanning type row: %w", err)
		}
		k, err := graph.KindFromString(kind)
		if err != nil {
			return nil, nil, fmt.Errorf("type %s: %w", name, err)
		}
		rec := &classfile.ClassRecord{
			Name:         name,
			Superclass:   superclass.String,
			IsInterface:  k != graph.KindClass,
			IsAnnotation: k == graph.KindAnnotation,
		}
		records[name] = rec
		order = append(order, name)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	edgeRows, err := s.db.Query(`SELECT sub, super, kind FROM edges ORDER BY sub, super`)
	if err != nil {
		return nil, nil, fmt.Errorf("querying edges: %w", err)
	}
	defer edgeRows.Close()

	for edgeRows.Next() {
		var sub, super, kind string
		if err := edgeRows.Scan(&sub, &super, &kind); err != nil {
			return nil, nil, fmt.Errorf("scanning edge row: %w", err)
		}
		rec := records[sub]
		if rec == nil {
			continue
		}
		switch kind {
		case EdgeInterface:
			rec.Interfaces = append(rec.Interfaces, super)
		case EdgeAnnotation:
			rec.Annotations = append(rec.Annotations, super)
		}
	}
	if err := edgeRows.Err(); err != nil {
		return nil, nil, err
	}

	g := graph.New()
	for _, name := range order {
		if _, err := g.Merge(records[name]); err != nil {
			return nil, nil, fmt.Errorf("rebuilding graph: %w", err)
		}
	}

	constants, err := s.loadConstants()
	if err != nil {
		return nil, nil, err
	}
	return g, constants, nil
}

func (s *Store) loadConstants() ([]classfile.FieldConstant, error) {
	rows, err := s.db.Query(`SELECT class, field, type, value FROM constants ORDER BY class, field`)
	if err != nil {
		return nil, fmt.Errorf("querying constants: %w", err)
	}
	defer rows.Close()

	var constants []classfile.FieldConstant
	for rows.Next() {
		var class, field, kind, value string
		if err := rows.Scan(&class, &field, &kind, &value); err != nil {
			return nil, fmt.Errorf("scanning constant row: %w", err)
		}
		c, err := parseConstant(class, field, classfile.ConstKind(kind), value)
		if err != nil {
			return nil, err
		}
		constants = append(constants, c)
	}
	return constants, rows.Err()
}

// formatConstant renders a constant value for the TEXT value column.
func formatConstant(c classfile.FieldConstant) string {
	switch v := c.Value.(type) {
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case float32:
		return strconv.FormatFloat(float64(v), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case string:
		return v
	}
	return fmt.Sprintf("%v", c.Value)
}

func parseConstant(class, field string, kind classfile.ConstKind, value string) (classfile.FieldConstant, error) {
	c := classfile.FieldConstant{Class: class, Field: field, Kind: kind}
	var err error
	switch kind {
	case classfile.ConstInt, classfile.ConstChar:
		var v int64
		v, err = strconv.ParseInt(value, 10, 32)
		c.Value = int32(v)
	case classfile.ConstLong:
		c.Value, err = strconv.ParseInt(value, 10, 64)
	case classfile.ConstFloat:
		var v float64
		v, err = strconv.ParseFloat(value, 32)
		c.Value = float32(v)
	case classfile.ConstDouble:
		c.Value, err = strconv.ParseFloat(value, 64)
	case classfile.ConstBool:
		c.Value, err = strconv.ParseBool(value)
	case classfile.ConstString:
		c.Value = value
	default:
		err = fmt.Errorf("unknown constant kind %q", kind)
	}
	if err != nil {
		return c, fmt.Errorf("constant %s.%s: %w", class, field, err)
	}
	return c, nil
}

// SetMetadata stores a key-value pair in the metadata table.
func (s *Store) SetMetadata(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

// GetMetadata retrieves a value from the metadata table.
func (s *Store) GetMetadata(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	return value, err
}

// Stats holds statistics about the persisted index.
type Stats struct {
	TypeCount     int       `json:"type_count"`
	ResolvedCount int       `json:"resolved_count"`
	EdgeCount     int       `json:"edge_count"`
	ConstantCount int       `json:"constant_count"`
	ScannedAt     time.Time `json:"scanned_at"`
}

// GetStats returns statistics about the persisted index.
func (s *Store) GetStats() (*Stats, error) {
	stats := &Stats{}

	counts := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM types", &stats.TypeCount},
		{"SELECT COUNT(*) FROM types WHERE resolved = 1", &stats.ResolvedCount},
		{"SELECT COUNT(*) FROM edges", &stats.EdgeCount},
		{"SELECT COUNT(*) FROM constants", &stats.ConstantCount},
	}
	for _, c := range counts {
		if err := s.db.QueryRow(c.query).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("counting: %w", err)
		}
	}

	if ts, err := s.GetMetadata("scanned_at"); err == nil {
		stats.ScannedAt, _ = time.Parse(time.RFC3339, ts)
	}
	return stats, nil
}
