package store

// schema contains the SQL statements to create the classlens index schema.
const schema = `
-- One row per graph node, resolved definitions and placeholders alike
CREATE TABLE IF NOT EXISTS types (
    name       TEXT PRIMARY KEY,
    kind       TEXT NOT NULL,
    resolved   INTEGER NOT NULL,
    superclass TEXT
);

CREATE INDEX IF NOT EXISTS idx_types_kind ON types(kind);
CREATE INDEX IF NOT EXISTS idx_types_resolved ON types(resolved);

-- Directed subtype -> supertype edges, tagged by relationship kind:
-- 'superclass', 'interface' or 'annotation'
CREATE TABLE IF NOT EXISTS edges (
    sub   TEXT NOT NULL,
    super TEXT NOT NULL,
    kind  TEXT NOT NULL,
    PRIMARY KEY (sub, super, kind)
);

CREATE INDEX IF NOT EXISTS idx_edges_sub ON edges(sub);
CREATE INDEX IF NOT EXISTS idx_edges_super ON edges(super);

-- Literal values of requested static final fields
CREATE TABLE IF NOT EXISTS constants (
    class TEXT NOT NULL,
    field TEXT NOT NULL,
    type  TEXT NOT NULL,
    value TEXT NOT NULL,
    PRIMARY KEY (class, field)
);

-- Metadata table for scan info
CREATE TABLE IF NOT EXISTS metadata (
    key   TEXT PRIMARY KEY,
    value TEXT
);
`
